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
	"go.uber.org/zap"
)

const missedWindowNote = "missed wake-up window"

type WakeUpStore interface {
	ExpireWakeUps(ctx context.Context, before time.Time, notes string) ([]hotel.WakeUpRequest, error)
	DueWakeUps(ctx context.Context, from, to time.Time, limit int) ([]hotel.WakeUpRequest, error)
	CheckedInStayForRoom(ctx context.Context, room string) (hotel.Stay, error)
	IncrementWakeUpAttempts(ctx context.Context, id string) (int, error)
	CompleteWakeUp(ctx context.Context, id string, at time.Time) error
	FailWakeUp(ctx context.Context, id, notes string) error
}

type WakeUpResult struct {
	Processed int  `json:"processed"`
	Attempted int  `json:"attempted"`
	Pending   int  `json:"pending"`
	Failed    int  `json:"failed"`
	Expired   int  `json:"expired"`
	Errors    int  `json:"errors,omitempty"`
	Skipped   bool `json:"skipped,omitempty"`
}

type WakeUps struct {
	store  WakeUpStore
	gw     Gateway
	notify Notifier
	cfg    config.WakeUp
	opts   Options
	log    *zap.Logger

	Now func() time.Time
}

func NewWakeUps(st WakeUpStore, gw Gateway, n Notifier, cfg config.WakeUp, opts Options, log *zap.Logger) *WakeUps {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &WakeUps{
		store:  st,
		gw:     gw,
		notify: n,
		cfg:    cfg,
		opts:   opts,
		log:    log.Named("wakeup"),
		Now:    time.Now,
	}
}

// Process fires pending wake-up calls requested within the last window.
// Requests older than the window are failed and escalated to staff first.
func (w *WakeUps) Process(ctx context.Context) (WakeUpResult, error) {
	if !w.gw.Enabled() {
		w.log.Info("call gateway not configured, skipping wake-ups")
		return WakeUpResult{Skipped: true}, nil
	}

	var res WakeUpResult
	now := w.Now()
	from := now.Add(-w.cfg.Window)

	expired, err := w.store.ExpireWakeUps(ctx, from, missedWindowNote)
	if err != nil {
		w.log.Error("expire stale wake-ups", zap.Error(err))
		res.Errors++
	}
	for _, r := range expired {
		res.Expired++
		w.notify.Notify(ctx, notify.Message{
			RoomNumber: r.RoomNumber,
			Urgency:    notify.Urgent,
			Text:       fmt.Sprintf("Wake-up call for room %s at %s was missed", r.RoomNumber, w.clock(r.RequestedAt)),
		})
	}

	due, err := w.store.DueWakeUps(ctx, from, now, w.cfg.BatchSize)
	if err != nil {
		return res, fmt.Errorf("select due wake-ups: %w", err)
	}
	for _, r := range due {
		switch w.processOne(ctx, r, &res) {
		case outProcessed:
			res.Processed++
		case outRescheduled:
			res.Pending++
		case outFailed:
			res.Failed++
		case outError:
			res.Errors++
		}
	}

	w.log.Info("wake-up pass done",
		zap.Int("due", len(due)),
		zap.Int("completed", res.Processed),
		zap.Int("failed", res.Failed),
		zap.Int("expired", res.Expired))
	return res, nil
}

func (w *WakeUps) processOne(ctx context.Context, r hotel.WakeUpRequest, res *WakeUpResult) (out outcome) {
	log := w.log.With(zap.String("wake_up_id", r.ID), zap.String("room_number", r.RoomNumber))
	defer func() {
		if p := recover(); p != nil {
			log.Error("wake-up item panicked", zap.Any("panic", p), zap.Stack("stack"))
			out = outError
		}
	}()

	st, err := w.store.CheckedInStayForRoom(ctx, r.RoomNumber)
	if errors.Is(err, internaltypes.ErrNotFound) {
		return w.fail(ctx, r, "no checked-in reservation for room", log)
	}
	if err != nil {
		log.Error("look up room occupant", zap.Error(err))
		return outError
	}

	number, err := phone.Normalize(st.Guest.Phone, w.opts.Region)
	if err != nil {
		return w.fail(ctx, r, fmt.Sprintf("guest phone unusable: %v", err), log)
	}
	text, err := render(st.Guest.PreferredLanguage, wakeUpTemplate, content{
		FirstName:  st.Guest.FirstName,
		HotelName:  w.opts.HotelName,
		RoomNumber: r.RoomNumber,
		Time:       w.clock(r.RequestedAt),
	})
	if err != nil {
		return w.fail(ctx, r, err.Error(), log)
	}

	attempts, err := w.store.IncrementWakeUpAttempts(ctx, r.ID)
	if err != nil {
		log.Error("count wake-up attempt", zap.Error(err))
		return outError
	}
	res.Attempted++

	meta := map[string]string{
		"wake_up_id":     r.ID,
		"reservation_id": st.Reservation.ID,
		"call_type":      wakeUpTemplate,
		"guest_name":     st.Guest.FullName(),
		"room_number":    r.RoomNumber,
	}
	if ref, err := w.opts.Signer.Encode(callref.Ref{Kind: "wakeup", ID: r.ID}); err == nil && ref != "" {
		meta["ref"] = ref
	}

	placed := w.gw.Place(ctx, gateway.Call{Phone: number, FirstMessage: text, Metadata: meta})
	if placed.OK {
		if err := w.store.CompleteWakeUp(ctx, r.ID, w.Now()); err != nil {
			log.Error("mark wake-up completed", zap.Error(err))
			return outError
		}
		log.Info("wake-up call placed", zap.String("call_handle", placed.CallID))
		return outProcessed
	}

	log.Warn("wake-up call failed", zap.Int("attempts", attempts), zap.String("error", placed.Error))
	if attempts >= w.cfg.MaxAttempts {
		return w.fail(ctx, r, placed.Error, log)
	}
	// left pending; the next sweep retries
	return outRescheduled
}

func (w *WakeUps) fail(ctx context.Context, r hotel.WakeUpRequest, reason string, log *zap.Logger) outcome {
	if err := w.store.FailWakeUp(ctx, r.ID, reason); err != nil {
		log.Error("mark wake-up failed", zap.Error(err))
		return outError
	}
	log.Warn("wake-up failed", zap.String("reason", reason))
	w.notify.Notify(ctx, notify.Message{
		RoomNumber: r.RoomNumber,
		Urgency:    notify.Urgent,
		Text:       fmt.Sprintf("Wake-up call for room %s at %s failed: %s", r.RoomNumber, w.clock(r.RequestedAt), reason),
	})
	return outFailed
}

func (w *WakeUps) clock(t time.Time) string {
	return t.In(w.opts.Location).Format("3:04 PM")
}
