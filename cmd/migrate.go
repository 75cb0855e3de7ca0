package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/example/hotel-call-scheduler/internal/config"
	"github.com/example/hotel-call-scheduler/internal/db"
	"github.com/example/hotel-call-scheduler/internal/logging"
	"github.com/example/hotel-call-scheduler/internal/migrate"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.LogLevel, cfg.LogFormat, "callsched")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			applied, err := migrate.Up(ctx, d, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "applied %d migration(s)\n", len(applied))
			return nil
		},
	}
}
