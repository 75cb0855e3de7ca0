// Package dispatch places due outbound calls and drives their bounded
// retry state machine. Wake-up requests take a separate, narrower path.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/hotel-call-scheduler/internal/callref"
	"github.com/example/hotel-call-scheduler/internal/config"
	"github.com/example/hotel-call-scheduler/internal/gateway"
	"github.com/example/hotel-call-scheduler/internal/hotel"
	"github.com/example/hotel-call-scheduler/internal/internaltypes"
	"github.com/example/hotel-call-scheduler/internal/notify"
	"github.com/example/hotel-call-scheduler/internal/phone"
	"github.com/example/hotel-call-scheduler/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Gateway interface {
	Enabled() bool
	Place(ctx context.Context, call gateway.Call) gateway.Result
}

type Notifier interface {
	Notify(ctx context.Context, m notify.Message) bool
}

type CallStore interface {
	DueScheduledCalls(ctx context.Context, q store.DueQuery) ([]hotel.DueCall, error)
	GetScheduledCall(ctx context.Context, id string) (hotel.ScheduledCall, error)
	MarkCallInProgress(ctx context.Context, id string, at time.Time) error
	CountCallAttempt(ctx context.Context, id string, at time.Time) error
	SetCallHandle(ctx context.Context, id, handle string) error
	RescheduleCall(ctx context.Context, id string, at time.Time, notes string) error
	FailCall(ctx context.Context, id, notes string) error
}

// Options carries the hotel-wide settings both dispatch paths need.
type Options struct {
	HotelName string
	Region    string // default phone region
	Location  *time.Location
	Signer    *callref.Signer
}

type Result struct {
	Processed   int  `json:"processed"`
	Attempted   int  `json:"attempted"`
	Rescheduled int  `json:"rescheduled"`
	Failed      int  `json:"failed"`
	Errors      int  `json:"errors,omitempty"`
	Skipped     bool `json:"skipped,omitempty"`
}

type outcome int

const (
	outNone outcome = iota
	outProcessed
	outRescheduled
	outFailed
	outError
)

type Engine struct {
	store  CallStore
	gw     Gateway
	notify Notifier
	cfg    config.Dispatch
	opts   Options
	log    *zap.Logger

	Now func() time.Time
}

func NewEngine(st CallStore, gw Gateway, n Notifier, cfg config.Dispatch, opts Options, log *zap.Logger) *Engine {
	return &Engine{
		store:  st,
		gw:     gw,
		notify: n,
		cfg:    cfg,
		opts:   opts,
		log:    log.Named("dispatch"),
		Now:    time.Now,
	}
}

// Process places every due call in one batch. ct narrows the batch to a
// single milestone; nil means all of them.
func (e *Engine) Process(ctx context.Context, ct *hotel.CallType) (Result, error) {
	if !e.gw.Enabled() {
		e.log.Info("call gateway not configured, skipping dispatch")
		return Result{Skipped: true}, nil
	}

	q := store.DueQuery{Now: e.Now(), Ceiling: e.cfg.AttemptCeiling, Limit: e.cfg.BatchSize}
	if ct != nil {
		q.CallType = *ct
	}
	due, err := e.store.DueScheduledCalls(ctx, q)
	if err != nil {
		return Result{}, fmt.Errorf("select due calls: %w", err)
	}

	outcomes := make([]outcome, len(due))
	attempted := make([]bool, len(due))
	if e.cfg.Concurrency <= 1 {
		for i, d := range due {
			outcomes[i], attempted[i] = e.processOne(ctx, d)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(e.cfg.Concurrency)
		for i, d := range due {
			g.Go(func() error {
				outcomes[i], attempted[i] = e.processOne(ctx, d)
				return nil
			})
		}
		_ = g.Wait()
	}

	var res Result
	for i, o := range outcomes {
		if attempted[i] {
			res.Attempted++
		}
		switch o {
		case outProcessed:
			res.Processed++
		case outRescheduled:
			res.Rescheduled++
		case outFailed:
			res.Failed++
		case outError:
			res.Errors++
		}
	}
	e.log.Info("dispatch pass done",
		zap.Int("due", len(due)),
		zap.Int("processed", res.Processed),
		zap.Int("rescheduled", res.Rescheduled),
		zap.Int("failed", res.Failed),
		zap.Int("errors", res.Errors))
	return res, nil
}

func (e *Engine) processOne(ctx context.Context, d hotel.DueCall) (out outcome, attempted bool) {
	c, st := d.Call, d.Stay
	log := e.log.With(
		zap.String("call_id", c.ID),
		zap.String("reservation_id", c.ReservationID),
		zap.String("call_type", string(c.CallType)))

	claimed := false
	defer func() {
		if r := recover(); r != nil {
			log.Error("dispatch item panicked", zap.Any("panic", r), zap.Stack("stack"))
			out = e.recoverFailure(ctx, d, claimed, fmt.Sprintf("internal error: %v", r), log)
		}
	}()

	text, err := renderCall(c.CallType, st, e.opts.HotelName)
	if err != nil {
		return e.failTerminal(ctx, d, err.Error(), log), false
	}
	number, err := phone.Normalize(st.Guest.Phone, e.opts.Region)
	if err != nil {
		return e.failTerminal(ctx, d, fmt.Sprintf("guest phone unusable: %v", err), log), false
	}

	if err := e.store.MarkCallInProgress(ctx, c.ID, e.Now()); err != nil {
		if errors.Is(err, internaltypes.ErrConflict) {
			log.Info("call already claimed by another pass, skipping")
			return outNone, false
		}
		log.Error("mark call in progress", zap.Error(err))
		return outError, false
	}
	claimed = true

	meta := map[string]string{
		"scheduled_call_id": c.ID,
		"reservation_id":    c.ReservationID,
		"call_type":         string(c.CallType),
		"guest_name":        st.Guest.FullName(),
		"room_number":       st.Reservation.RoomNumber,
	}
	if ref, err := e.opts.Signer.Encode(callref.Ref{Kind: "scheduled", ID: c.ID}); err != nil {
		log.Warn("sign call reference", zap.Error(err))
	} else if ref != "" {
		meta["ref"] = ref
	}

	res := e.gw.Place(ctx, gateway.Call{Phone: number, FirstMessage: text, Metadata: meta})
	if !res.OK {
		log.Warn("call placement failed", zap.String("error", res.Error))
		return e.handleFailure(ctx, d, res.Error, log), true
	}

	if err := e.store.SetCallHandle(ctx, c.ID, res.CallID); err != nil {
		// the call is already ringing; losing the handle only hurts webhook correlation
		log.Error("store call handle", zap.String("call_handle", res.CallID), zap.Error(err))
	}
	log.Info("call placed", zap.String("call_handle", res.CallID))
	return outProcessed, true
}

// handleFailure retries with a fixed backoff until the effective attempt
// limit, then fails the job and alerts staff.
func (e *Engine) handleFailure(ctx context.Context, d hotel.DueCall, reason string, log *zap.Logger) outcome {
	cur, err := e.store.GetScheduledCall(ctx, d.Call.ID)
	if err != nil {
		log.Error("reload call after failure", zap.Error(err))
		return outError
	}
	limit := min(cur.MaxAttempts, e.cfg.AttemptCeiling)
	if cur.Attempts >= limit {
		if err := e.store.FailCall(ctx, cur.ID, reason); err != nil {
			log.Error("mark call failed", zap.Error(err))
			return outError
		}
		e.alertStaff(ctx, d, fmt.Sprintf("%s call to %s failed after %d attempts: %s",
			d.Call.CallType.Slug(), d.Stay.Guest.FullName(), cur.Attempts, reason))
		return outFailed
	}

	next := e.Now().Add(e.cfg.RetryBackoff)
	if err := e.store.RescheduleCall(ctx, cur.ID, next, reason); err != nil {
		log.Error("reschedule call", zap.Error(err))
		return outError
	}
	log.Info("call rescheduled", zap.Int("attempts", cur.Attempts), zap.Time("scheduled_at", next))
	return outRescheduled
}

// recoverFailure applies the retry rule after a panic. An attempt that
// panicked before the claim is still counted so the job stays bounded.
func (e *Engine) recoverFailure(ctx context.Context, d hotel.DueCall, claimed bool, reason string, log *zap.Logger) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("failure handling panicked", zap.Any("panic", r))
			out = outError
		}
	}()
	if !claimed {
		if err := e.store.CountCallAttempt(ctx, d.Call.ID, e.Now()); err != nil {
			log.Error("count call attempt", zap.Error(err))
			return outError
		}
	}
	return e.handleFailure(ctx, d, reason, log)
}

// failTerminal fails a job whose data can never produce a call.
func (e *Engine) failTerminal(ctx context.Context, d hotel.DueCall, reason string, log *zap.Logger) outcome {
	log.Warn("call cannot be placed", zap.String("reason", reason))
	if err := e.store.FailCall(ctx, d.Call.ID, reason); err != nil {
		log.Error("mark call failed", zap.Error(err))
		return outError
	}
	e.alertStaff(ctx, d, fmt.Sprintf("%s call to %s not placed: %s",
		d.Call.CallType.Slug(), d.Stay.Guest.FullName(), reason))
	return outFailed
}

func (e *Engine) alertStaff(ctx context.Context, d hotel.DueCall, text string) {
	u := notify.Normal
	if d.Call.Urgent || d.Stay.Guest.VIP {
		u = notify.Urgent
	}
	e.notify.Notify(ctx, notify.Message{RoomNumber: d.Stay.Reservation.RoomNumber, Urgency: u, Text: text})
}
