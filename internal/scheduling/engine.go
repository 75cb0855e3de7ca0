// Package scheduling creates ScheduledCall jobs for each guest-journey
// milestone.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/hotel-call-scheduler/internal/hotel"
	"github.com/example/hotel-call-scheduler/internal/internaltypes"
	"github.com/example/hotel-call-scheduler/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store interface {
	EligibleStays(ctx context.Context, q store.EligibleQuery) ([]hotel.Stay, error)
	CreateScheduledCall(ctx context.Context, c hotel.ScheduledCall) error
}

type fallback int

const (
	keepTarget fallback = iota
	inAnHour
	nowUrgent
)

// milestone describes which reservations get a call and when. Window
// offsets are days relative to the hotel-local today, half-open.
type milestone struct {
	status    hotel.ReservationStatus
	field     store.DateField
	from, to  int
	hour      int
	onMissed  fallback
}

var milestones = map[hotel.CallType]milestone{
	hotel.CallPreArrival:  {hotel.StatusConfirmed, store.ByCheckIn, 1, 2, 16, inAnHour},
	hotel.CallMidStay:     {hotel.StatusCheckedIn, store.ByCheckIn, -2, -1, 14, inAnHour},
	hotel.CallPreCheckout: {hotel.StatusCheckedIn, store.ByCheckOut, 0, 1, 8, nowUrgent},
	hotel.CallPostStay:    {hotel.StatusCheckedOut, store.ByCheckOut, -3, -2, 14, keepTarget},
}

type Engine struct {
	store       Store
	loc         *time.Location
	maxAttempts int
	log         *zap.Logger

	Now func() time.Time
}

func New(st Store, loc *time.Location, maxAttempts int, log *zap.Logger) *Engine {
	return &Engine{
		store:       st,
		loc:         loc,
		maxAttempts: maxAttempts,
		log:         log.Named("scheduling"),
		Now:         time.Now,
	}
}

// Schedule inserts one job per eligible reservation for ct and returns how
// many were created. Reservations that already have a job of this type are
// skipped, so repeated runs on the same day create nothing new.
func (e *Engine) Schedule(ctx context.Context, ct hotel.CallType) (int, error) {
	m, ok := milestones[ct]
	if !ok {
		return 0, fmt.Errorf("unknown call type %q", ct)
	}
	now := e.Now()
	window := hotel.DaysFrom(now, e.loc, m.from, m.to)

	stays, err := e.store.EligibleStays(ctx, store.EligibleQuery{
		Status: m.status, DateField: m.field, Window: window, CallType: ct,
	})
	if err != nil {
		return 0, fmt.Errorf("select %s candidates: %w", ct, err)
	}

	at, urgent := e.callTime(m, now)
	created := 0
	for _, st := range stays {
		call := hotel.ScheduledCall{
			ID:            uuid.NewString(),
			ReservationID: st.Reservation.ID,
			CallType:      ct,
			ScheduledAt:   at,
			Status:        hotel.CallScheduled,
			MaxAttempts:   e.maxAttempts,
			Urgent:        urgent,
		}
		err := e.store.CreateScheduledCall(ctx, call)
		if errors.Is(err, internaltypes.ErrDuplicate) {
			// lost a race with a concurrent pass
			continue
		}
		if err != nil {
			return created, fmt.Errorf("create %s call for reservation %s: %w", ct, st.Reservation.ID, err)
		}
		created++
		e.log.Debug("scheduled call",
			zap.String("call_id", call.ID),
			zap.String("reservation_id", call.ReservationID),
			zap.String("call_type", string(ct)),
			zap.Time("scheduled_at", at))
	}

	e.log.Info("scheduling pass done",
		zap.String("call_type", string(ct)),
		zap.String("window_from", window.From),
		zap.String("window_to", window.To),
		zap.Int("candidates", len(stays)),
		zap.Int("created", created))
	return created, nil
}

func (e *Engine) callTime(m milestone, now time.Time) (time.Time, bool) {
	local := now.In(e.loc)
	target := time.Date(local.Year(), local.Month(), local.Day(), m.hour, 0, 0, 0, e.loc)
	if !target.Before(now) {
		return target, false
	}
	switch m.onMissed {
	case inAnHour:
		return now.Add(time.Hour), false
	case nowUrgent:
		return now, true
	}
	return target, false
}

type Result struct {
	Created map[hotel.CallType]int    `json:"created"`
	Errors  map[hotel.CallType]string `json:"errors,omitempty"`
	Total   int                       `json:"total"`
}

// ScheduleAll runs every milestone. A failing milestone is reported and the
// rest still run.
func (e *Engine) ScheduleAll(ctx context.Context) Result {
	res := Result{Created: map[hotel.CallType]int{}}
	for _, ct := range hotel.CallTypes {
		n, err := e.Schedule(ctx, ct)
		res.Created[ct] = n
		res.Total += n
		if err != nil {
			if res.Errors == nil {
				res.Errors = map[hotel.CallType]string{}
			}
			res.Errors[ct] = err.Error()
			e.log.Error("scheduling pass failed", zap.String("call_type", string(ct)), zap.Error(err))
		}
	}
	return res
}
