package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/example/hotel-call-scheduler/internal/trigger"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var callType string

	c := &cobra.Command{
		Use:   "run <operation>",
		Short: "Run one trigger operation and print its summary",
		Long:  "Operations: " + strings.Join(trigger.Ops(), ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := a.runner.Run(ctx, trigger.Request{Op: args[0], CallType: callType})
			if err != nil {
				if errors.Is(err, trigger.ErrBadRequest) {
					return fmt.Errorf("%w (known operations: %s)", err, strings.Join(trigger.Ops(), ", "))
				}
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(sum); err != nil {
				return err
			}
			if sum.Error != "" {
				return errors.New(sum.Error)
			}
			return nil
		},
	}
	c.Flags().StringVar(&callType, "call-type", "", "restrict process to one call type")
	return c
}
