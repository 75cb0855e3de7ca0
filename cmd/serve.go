package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/hotel-call-scheduler/internal/auth"
	"github.com/example/hotel-call-scheduler/internal/scheduler"
	"github.com/example/hotel-call-scheduler/internal/trigger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var migrateUp, schedule bool

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		Short:   "Run the trigger HTTP endpoint, optionally with the built-in scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, appOptions{migrate: migrateUp})
			if err != nil {
				return err
			}
			defer a.Close()

			checker := auth.NewChecker(a.cfg.TriggerToken, a.cfg.TriggerTokenBcrypt, a.cfg.TriggerJWTSecret)
			if !checker.Configured() {
				a.log.Warn("no trigger credential configured, every trigger request will be rejected")
			}

			if schedule {
				s := &scheduler.Scheduler{
					Runner: a.runner,
					Jobs:   scheduler.DefaultJobs(a.cfg.Schedule),
					Log:    a.log.Named("scheduler"),
				}
				go func() { _ = s.Run(ctx) }()
			}

			router := trigger.NewRouter(a.runner, checker, a.ping, a.log)
			if err := trigger.Serve(ctx, a.cfg.ListenAddr, router, a.log); err != nil {
				a.log.Error("server stopped", zap.Error(err))
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().BoolVar(&schedule, "schedule", false, "run sync, scheduling and dispatch on the configured intervals")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
