package main

import (
	"github.com/infralens/infralens/internal/config"
	"github.com/infralens/infralens/internal/logging"
	"github.com/infralens/infralens/internal/sessionstore"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the Postgres session table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := logging.BootstrapFromEnv(logging.BootstrapOptions{
			Command: cmd.CommandPath(),
			Writer:  cmd.ErrOrStderr(),
		}); err != nil {
			return err
		}
		cfg, err := config.LoadWithOptions(config.LoadOptions{RequireSessionDatabaseURL: true})
		if err != nil {
			return err
		}
		return sessionstore.Migrate(cfg.SessionDatabaseURL)
	},
}
