package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/apmas/apmas/internal/apmaserr"
	"github.com/apmas/apmas/internal/config"
	"github.com/apmas/apmas/internal/projectfile"
)

func newServeCommand() *cobra.Command {
	var configPath, projectPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Initialize a new project from a project file and run the supervisor loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			pf, err := projectfile.Load(projectPath)
			if err != nil {
				return err
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.st.GetProjectState(); err == nil {
				return apmaserr.ConfigError("a project is already initialized in %q; use 'apmas resume' instead", cfg.DataDirectory)
			} else if !apmaserr.Is(err, apmaserr.KindNotFound) {
				return err
			}

			if err := a.sup.InitializeProject(pf.ProjectState(), pf.AgentSpecs()); err != nil {
				return err
			}

			return runUntilSignal(a)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "apmas.yaml", "Path to the apmas configuration file")
	cmd.Flags().StringVar(&projectPath, "project", "project.yaml", "Path to the project definition file")
	return cmd
}

func runUntilSignal(a *app) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	a.runAgentHosts(ctx)
	go a.sup.Run(ctx)

	<-shutdown
	a.log.Info("shutting down (signal received)")
	cancel()
	return nil
}
