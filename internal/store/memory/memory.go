// Package memory is an in-process Call Record Store. It backs the engine
// tests and `--store=memory` dry runs; it enforces the same uniqueness rules
// as the PostgreSQL schema.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/hotel-call-scheduler/internal/hotel"
	"github.com/example/hotel-call-scheduler/internal/internaltypes"
	"github.com/example/hotel-call-scheduler/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.Mutex

	guests       map[string]hotel.Guest
	reservations map[string]hotel.Reservation
	calls        map[string]hotel.ScheduledCall
	wakeUps      map[string]hotel.WakeUpRequest
}

func New() *Store {
	return &Store{
		guests:       map[string]hotel.Guest{},
		reservations: map[string]hotel.Reservation{},
		calls:        map[string]hotel.ScheduledCall{},
		wakeUps:      map[string]hotel.WakeUpRequest{},
	}
}

func (s *Store) stay(r hotel.Reservation) hotel.Stay {
	return hotel.Stay{Reservation: r, Guest: s.guests[r.GuestID]}
}

func (s *Store) hasCall(reservationID string, ct hotel.CallType) bool {
	for _, c := range s.calls {
		if c.ReservationID == reservationID && c.CallType == ct {
			return true
		}
	}
	return false
}

func (s *Store) EligibleStays(ctx context.Context, q store.EligibleQuery) ([]hotel.Stay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []hotel.Stay
	for _, r := range s.reservations {
		if r.Status != q.Status {
			continue
		}
		d := r.CheckIn
		if q.DateField == store.ByCheckOut {
			d = r.CheckOut
		}
		if !q.Window.Contains(d) || s.hasCall(r.ID, q.CallType) {
			continue
		}
		out = append(out, s.stay(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reservation.ID < out[j].Reservation.ID })
	return out, nil
}

func (s *Store) CreateScheduledCall(ctx context.Context, c hotel.ScheduledCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[c.ReservationID]; !ok {
		return internaltypes.ErrNotFound
	}
	if _, ok := s.calls[c.ID]; ok || s.hasCall(c.ReservationID, c.CallType) {
		return internaltypes.ErrDuplicate
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.calls[c.ID] = c
	return nil
}

func (s *Store) ListScheduledCalls(ctx context.Context, reservationID string) ([]hotel.ScheduledCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []hotel.ScheduledCall
	for _, c := range s.calls {
		if c.ReservationID == reservationID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CallType < out[j].CallType })
	return out, nil
}

func (s *Store) DueScheduledCalls(ctx context.Context, q store.DueQuery) ([]hotel.DueCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []hotel.DueCall
	for _, c := range s.calls {
		if c.Status != hotel.CallScheduled || c.ScheduledAt.After(q.Now) {
			continue
		}
		if c.Attempts >= q.Ceiling || c.Attempts >= c.MaxAttempts {
			continue
		}
		if q.CallType != "" && c.CallType != q.CallType {
			continue
		}
		out = append(out, hotel.DueCall{Call: c, Stay: s.stay(s.reservations[c.ReservationID])})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Call.ScheduledAt.Equal(out[j].Call.ScheduledAt) {
			return out[i].Call.ID < out[j].Call.ID
		}
		return out[i].Call.ScheduledAt.Before(out[j].Call.ScheduledAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) GetScheduledCall(ctx context.Context, id string) (hotel.ScheduledCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[id]
	if !ok {
		return hotel.ScheduledCall{}, internaltypes.ErrNotFound
	}
	return c, nil
}

func (s *Store) updateCall(id string, fn func(*hotel.ScheduledCall)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[id]
	if !ok {
		return internaltypes.ErrNotFound
	}
	fn(&c)
	c.UpdatedAt = time.Now()
	s.calls[id] = c
	return nil
}

func (s *Store) MarkCallInProgress(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[id]
	if !ok || c.Status != hotel.CallScheduled {
		return internaltypes.ErrConflict
	}
	c.Attempts++
	c.AttemptedAt = &at
	c.Status = hotel.CallInProgress
	c.UpdatedAt = time.Now()
	s.calls[id] = c
	return nil
}

func (s *Store) CountCallAttempt(ctx context.Context, id string, at time.Time) error {
	return s.updateCall(id, func(c *hotel.ScheduledCall) {
		c.Attempts++
		c.AttemptedAt = &at
	})
}

func (s *Store) SetCallHandle(ctx context.Context, id, handle string) error {
	return s.updateCall(id, func(c *hotel.ScheduledCall) { c.CallHandle = &handle })
}

func (s *Store) RescheduleCall(ctx context.Context, id string, at time.Time, notes string) error {
	return s.updateCall(id, func(c *hotel.ScheduledCall) {
		c.Status = hotel.CallScheduled
		c.ScheduledAt = at
		c.Notes = &notes
	})
}

func (s *Store) FailCall(ctx context.Context, id, notes string) error {
	return s.updateCall(id, func(c *hotel.ScheduledCall) {
		c.Status = hotel.CallFailed
		c.Notes = &notes
	})
}

func (s *Store) CreateWakeUp(ctx context.Context, w hotel.WakeUpRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wakeUps[w.ID]; ok {
		return internaltypes.ErrDuplicate
	}
	if w.Status == "" {
		w.Status = hotel.WakeUpPending
	}
	w.CreatedAt = time.Now()
	s.wakeUps[w.ID] = w
	return nil
}

func (s *Store) GetWakeUp(ctx context.Context, id string) (hotel.WakeUpRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wakeUps[id]
	if !ok {
		return hotel.WakeUpRequest{}, internaltypes.ErrNotFound
	}
	return w, nil
}

func (s *Store) sortedWakeUps(match func(hotel.WakeUpRequest) bool) []hotel.WakeUpRequest {
	var out []hotel.WakeUpRequest
	for _, w := range s.wakeUps {
		if match(w) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out
}

func (s *Store) DueWakeUps(ctx context.Context, from, to time.Time, limit int) ([]hotel.WakeUpRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.sortedWakeUps(func(w hotel.WakeUpRequest) bool {
		return w.Status == hotel.WakeUpPending && !w.RequestedAt.Before(from) && !w.RequestedAt.After(to)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ExpireWakeUps(ctx context.Context, before time.Time, notes string) ([]hotel.WakeUpRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.sortedWakeUps(func(w hotel.WakeUpRequest) bool {
		return w.Status == hotel.WakeUpPending && w.RequestedAt.Before(before)
	})
	for i := range out {
		n := notes
		out[i].Status = hotel.WakeUpFailed
		out[i].Notes = &n
		s.wakeUps[out[i].ID] = out[i]
	}
	return out, nil
}

func (s *Store) CheckedInStayForRoom(ctx context.Context, room string) (hotel.Stay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *hotel.Reservation
	for _, r := range s.reservations {
		if r.RoomNumber != room || r.Status != hotel.StatusCheckedIn {
			continue
		}
		if best == nil || r.CheckIn.After(best.CheckIn) {
			r := r
			best = &r
		}
	}
	if best == nil {
		return hotel.Stay{}, internaltypes.ErrNotFound
	}
	return s.stay(*best), nil
}

func (s *Store) updateWakeUp(id string, fn func(*hotel.WakeUpRequest)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wakeUps[id]
	if !ok {
		return internaltypes.ErrNotFound
	}
	fn(&w)
	s.wakeUps[id] = w
	return nil
}

func (s *Store) IncrementWakeUpAttempts(ctx context.Context, id string) (int, error) {
	var n int
	err := s.updateWakeUp(id, func(w *hotel.WakeUpRequest) {
		w.Attempts++
		n = w.Attempts
	})
	return n, err
}

func (s *Store) CompleteWakeUp(ctx context.Context, id string, at time.Time) error {
	return s.updateWakeUp(id, func(w *hotel.WakeUpRequest) {
		w.Status = hotel.WakeUpCompleted
		w.CompletedAt = &at
	})
}

func (s *Store) FailWakeUp(ctx context.Context, id, notes string) error {
	return s.updateWakeUp(id, func(w *hotel.WakeUpRequest) {
		w.Status = hotel.WakeUpFailed
		w.Notes = &notes
	})
}

func (s *Store) GuestByExternalID(ctx context.Context, externalID string) (hotel.Guest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.guests {
		if g.ExternalID != nil && *g.ExternalID == externalID {
			return g, nil
		}
	}
	return hotel.Guest{}, internaltypes.ErrNotFound
}

// GuestByContact matches locally-created guests (no external id) by phone,
// then by case-insensitive email.
func (s *Store) GuestByContact(ctx context.Context, phone, email string) (hotel.Guest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.guests))
	for id := range s.guests {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if phone != "" {
		for _, id := range ids {
			g := s.guests[id]
			if g.ExternalID == nil && g.Phone == phone {
				return g, nil
			}
		}
	}
	if email != "" {
		for _, id := range ids {
			g := s.guests[id]
			if g.ExternalID == nil && strings.EqualFold(g.Email, email) {
				return g, nil
			}
		}
	}
	return hotel.Guest{}, internaltypes.ErrNotFound
}

func (s *Store) CreateGuest(ctx context.Context, g hotel.Guest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.guests[g.ID]; ok {
		return internaltypes.ErrDuplicate
	}
	if g.ExternalID != nil {
		for _, other := range s.guests {
			if other.ExternalID != nil && *other.ExternalID == *g.ExternalID {
				return internaltypes.ErrDuplicate
			}
		}
	}
	now := time.Now()
	g.CreatedAt, g.UpdatedAt = now, now
	s.guests[g.ID] = g
	return nil
}

func (s *Store) LinkGuestExternalID(ctx context.Context, guestID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guests[guestID]
	if !ok {
		return internaltypes.ErrNotFound
	}
	g.ExternalID = &externalID
	g.UpdatedAt = time.Now()
	s.guests[guestID] = g
	return nil
}

func (s *Store) ReservationByExternalID(ctx context.Context, externalID string) (hotel.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.reservations {
		if r.ExternalID != nil && *r.ExternalID == externalID {
			return r, nil
		}
	}
	return hotel.Reservation{}, internaltypes.ErrNotFound
}

func (s *Store) CreateReservation(ctx context.Context, r hotel.Reservation) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[r.ID]; ok {
		return internaltypes.ErrDuplicate
	}
	if _, ok := s.guests[r.GuestID]; !ok {
		return internaltypes.ErrNotFound
	}
	now := time.Now()
	r.CreatedAt, r.UpdatedAt = now, now
	s.reservations[r.ID] = r
	return nil
}

// UpdateReservationFromPMS overwrites only the PMS-owned fields.
func (s *Store) UpdateReservationFromPMS(ctx context.Context, r hotel.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.reservations[r.ID]
	if !ok {
		return internaltypes.ErrNotFound
	}
	cur.RoomNumber = r.RoomNumber
	cur.RoomType = r.RoomType
	cur.CheckIn = r.CheckIn
	cur.CheckOut = r.CheckOut
	cur.Status = r.Status
	cur.GuestCount = r.GuestCount
	cur.SpecialRequests = r.SpecialRequests
	if err := cur.Validate(); err != nil {
		return err
	}
	cur.UpdatedAt = time.Now()
	s.reservations[r.ID] = cur
	return nil
}
