package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/apmas/apmas/internal/config"
	"github.com/apmas/apmas/internal/store"
)

func newMigrateCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Open the state store, applying any pending schema migration, and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			dbPath := filepath.Join(cfg.DataDirectory, "apmas.db")
			st, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			fmt.Printf("state store at %s is up to date\n", dbPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "apmas.yaml", "Path to the apmas configuration file")
	return cmd
}
