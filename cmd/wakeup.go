package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/example/hotel-call-scheduler/internal/hotel"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newWakeUpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wakeup",
		Short: "Manage wake-up requests",
	}
	cmd.AddCommand(newWakeUpAddCmd())
	return cmd
}

func newWakeUpAddCmd() *cobra.Command {
	var room, at string

	c := &cobra.Command{
		Use:   "add",
		Short: "Record a wake-up request for a room",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			when, err := parseLocalTime(at, a.cfg.Location)
			if err != nil {
				return err
			}

			w := hotel.WakeUpRequest{
				ID:          uuid.NewString(),
				RoomNumber:  room,
				RequestedAt: when,
				Status:      hotel.WakeUpPending,
			}
			if err := a.store.CreateWakeUp(ctx, w); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created wake-up id=%s room=%s at=%s\n", w.ID, room, when.Format(time.RFC3339))
			return nil
		},
	}
	c.Flags().StringVar(&room, "room", "", "room number")
	c.Flags().StringVar(&at, "at", "", "wake-up time, RFC3339 or hotel-local YYYY-MM-DD HH:MM")
	_ = c.MarkFlagRequired("room")
	_ = c.MarkFlagRequired("at")
	return c
}

func parseLocalTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at (want RFC3339 or YYYY-MM-DD HH:MM)")
	}
	return t, nil
}
