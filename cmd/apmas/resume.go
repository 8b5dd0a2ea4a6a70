package main

import (
	"github.com/spf13/cobra"

	"github.com/apmas/apmas/internal/config"
)

func newResumeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume the supervisor loop against an already-initialized project",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.st.GetProjectState(); err != nil {
				return err
			}

			return runUntilSignal(a)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "apmas.yaml", "Path to the apmas configuration file")
	return cmd
}
