package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/hotel-call-scheduler/internal/db"
	"github.com/example/hotel-call-scheduler/internal/hotel"
	"github.com/example/hotel-call-scheduler/internal/internaltypes"
	"github.com/example/hotel-call-scheduler/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct{ db *db.DB }

func NewStore(d *db.DB) *Store { return &Store{db: d} }

const stayColumns = `
r.id::text, r.external_id, r.guest_id::text, r.room_number, r.room_type, r.check_in_date, r.check_out_date,
r.guest_count, r.status, r.special_requests, r.created_at, r.updated_at,
g.id::text, g.external_id, g.first_name, g.last_name, g.email, g.phone, g.preferred_language, g.vip,
g.created_at, g.updated_at`

const callColumns = `
c.id::text, c.reservation_id::text, c.call_type, c.scheduled_at, c.attempted_at, c.status, c.attempts,
c.max_attempts, c.call_handle, c.notes, c.urgent, c.created_at, c.updated_at`

const wakeUpColumns = `id::text, room_number, requested_at, status, attempts, completed_at, notes, created_at`

func stayDest(s *hotel.Stay) []any {
	r, g := &s.Reservation, &s.Guest
	return []any{
		&r.ID, &r.ExternalID, &r.GuestID, &r.RoomNumber, &r.RoomType, &r.CheckIn, &r.CheckOut,
		&r.GuestCount, &r.Status, &r.SpecialRequests, &r.CreatedAt, &r.UpdatedAt,
		&g.ID, &g.ExternalID, &g.FirstName, &g.LastName, &g.Email, &g.Phone, &g.PreferredLanguage, &g.VIP,
		&g.CreatedAt, &g.UpdatedAt,
	}
}

func callDest(c *hotel.ScheduledCall) []any {
	return []any{
		&c.ID, &c.ReservationID, &c.CallType, &c.ScheduledAt, &c.AttemptedAt, &c.Status, &c.Attempts,
		&c.MaxAttempts, &c.CallHandle, &c.Notes, &c.Urgent, &c.CreatedAt, &c.UpdatedAt,
	}
}

func wakeUpDest(w *hotel.WakeUpRequest) []any {
	return []any{&w.ID, &w.RoomNumber, &w.RequestedAt, &w.Status, &w.Attempts, &w.CompletedAt, &w.Notes, &w.CreatedAt}
}

func (s *Store) EligibleStays(ctx context.Context, q store.EligibleQuery) ([]hotel.Stay, error) {
	switch q.DateField {
	case store.ByCheckIn, store.ByCheckOut:
	default:
		return nil, fmt.Errorf("unsupported date field %q", q.DateField)
	}
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
SELECT %s
FROM reservations r
JOIN guests g ON g.id = r.guest_id
WHERE r.status = $1
  AND r.%s >= $2::date
  AND r.%s < $3::date
  AND NOT EXISTS (
    SELECT 1 FROM scheduled_calls c WHERE c.reservation_id = r.id AND c.call_type = $4
  )
ORDER BY r.id`, stayColumns, q.DateField, q.DateField),
		q.Status, q.Window.From, q.Window.To, q.CallType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []hotel.Stay
	for rows.Next() {
		var st hotel.Stay
		if err := rows.Scan(stayDest(&st)...); err != nil {
			return nil, db.Wrap(err)
		}
		out = append(out, st)
	}
	return out, db.Wrap(rows.Err())
}

func (s *Store) CreateScheduledCall(ctx context.Context, c hotel.ScheduledCall) error {
	return s.db.Exec(ctx, `
INSERT INTO scheduled_calls(id,reservation_id,call_type,scheduled_at,status,attempts,max_attempts,urgent,notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, c.ReservationID, c.CallType, c.ScheduledAt, c.Status, c.Attempts, c.MaxAttempts, c.Urgent, c.Notes)
}

func (s *Store) ListScheduledCalls(ctx context.Context, reservationID string) ([]hotel.ScheduledCall, error) {
	rows, err := s.db.Query(ctx, `SELECT `+callColumns+` FROM scheduled_calls c WHERE c.reservation_id=$1 ORDER BY c.call_type`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []hotel.ScheduledCall
	for rows.Next() {
		var c hotel.ScheduledCall
		if err := rows.Scan(callDest(&c)...); err != nil {
			return nil, db.Wrap(err)
		}
		out = append(out, c)
	}
	return out, db.Wrap(rows.Err())
}

func (s *Store) DueScheduledCalls(ctx context.Context, q store.DueQuery) ([]hotel.DueCall, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+callColumns+`,`+stayColumns+`
FROM scheduled_calls c
JOIN reservations r ON r.id = c.reservation_id
JOIN guests g ON g.id = r.guest_id
WHERE c.status = 'scheduled'
  AND c.scheduled_at <= $1
  AND c.attempts < $2
  AND c.attempts < c.max_attempts
  AND ($3::text = '' OR c.call_type = $3::text)
ORDER BY c.scheduled_at ASC, c.id
LIMIT $4`, q.Now, q.Ceiling, string(q.CallType), q.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []hotel.DueCall
	for rows.Next() {
		var d hotel.DueCall
		dest := append(callDest(&d.Call), stayDest(&d.Stay)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, db.Wrap(err)
		}
		out = append(out, d)
	}
	return out, db.Wrap(rows.Err())
}

func (s *Store) GetScheduledCall(ctx context.Context, id string) (hotel.ScheduledCall, error) {
	var c hotel.ScheduledCall
	err := s.db.QueryRow(ctx, `SELECT `+callColumns+` FROM scheduled_calls c WHERE c.id=$1`, id).Scan(callDest(&c)...)
	return c, db.Wrap(err)
}

func (s *Store) MarkCallInProgress(ctx context.Context, id string, at time.Time) error {
	err := s.db.ExecOne(ctx, `
UPDATE scheduled_calls SET attempts=attempts+1, attempted_at=$2, status='in_progress', updated_at=now()
WHERE id=$1 AND status='scheduled'`, id, at)
	if errors.Is(err, internaltypes.ErrNotFound) {
		return internaltypes.ErrConflict
	}
	return err
}

func (s *Store) CountCallAttempt(ctx context.Context, id string, at time.Time) error {
	return s.db.ExecOne(ctx, `UPDATE scheduled_calls SET attempts=attempts+1, attempted_at=$2, updated_at=now() WHERE id=$1`, id, at)
}

func (s *Store) SetCallHandle(ctx context.Context, id, handle string) error {
	return s.db.ExecOne(ctx, `UPDATE scheduled_calls SET call_handle=$2, updated_at=now() WHERE id=$1`, id, handle)
}

func (s *Store) RescheduleCall(ctx context.Context, id string, at time.Time, notes string) error {
	return s.db.ExecOne(ctx, `
UPDATE scheduled_calls SET status='scheduled', scheduled_at=$2, notes=$3, updated_at=now()
WHERE id=$1`, id, at, notes)
}

func (s *Store) FailCall(ctx context.Context, id, notes string) error {
	return s.db.ExecOne(ctx, `UPDATE scheduled_calls SET status='failed', notes=$2, updated_at=now() WHERE id=$1`, id, notes)
}

func (s *Store) CreateWakeUp(ctx context.Context, w hotel.WakeUpRequest) error {
	if w.Status == "" {
		w.Status = hotel.WakeUpPending
	}
	return s.db.Exec(ctx, `
INSERT INTO wake_up_requests(id,room_number,requested_at,status,attempts)
VALUES ($1,$2,$3,$4,$5)`, w.ID, w.RoomNumber, w.RequestedAt, w.Status, w.Attempts)
}

func (s *Store) GetWakeUp(ctx context.Context, id string) (hotel.WakeUpRequest, error) {
	var w hotel.WakeUpRequest
	err := s.db.QueryRow(ctx, `SELECT `+wakeUpColumns+` FROM wake_up_requests WHERE id=$1`, id).Scan(wakeUpDest(&w)...)
	return w, db.Wrap(err)
}

func (s *Store) scanWakeUps(rows db.Rows) ([]hotel.WakeUpRequest, error) {
	defer rows.Close()
	var out []hotel.WakeUpRequest
	for rows.Next() {
		var w hotel.WakeUpRequest
		if err := rows.Scan(wakeUpDest(&w)...); err != nil {
			return nil, db.Wrap(err)
		}
		out = append(out, w)
	}
	return out, db.Wrap(rows.Err())
}

func (s *Store) DueWakeUps(ctx context.Context, from, to time.Time, limit int) ([]hotel.WakeUpRequest, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+wakeUpColumns+`
FROM wake_up_requests
WHERE status='pending' AND requested_at >= $1 AND requested_at <= $2
ORDER BY requested_at ASC
LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, err
	}
	return s.scanWakeUps(rows)
}

func (s *Store) ExpireWakeUps(ctx context.Context, before time.Time, notes string) ([]hotel.WakeUpRequest, error) {
	rows, err := s.db.Query(ctx, `
UPDATE wake_up_requests SET status='failed', notes=$2
WHERE status='pending' AND requested_at < $1
RETURNING `+wakeUpColumns, before, notes)
	if err != nil {
		return nil, err
	}
	return s.scanWakeUps(rows)
}

func (s *Store) CheckedInStayForRoom(ctx context.Context, room string) (hotel.Stay, error) {
	var st hotel.Stay
	err := s.db.QueryRow(ctx, `
SELECT `+stayColumns+`
FROM reservations r
JOIN guests g ON g.id = r.guest_id
WHERE r.room_number=$1 AND r.status='checked_in'
ORDER BY r.check_in_date DESC
LIMIT 1`, room).Scan(stayDest(&st)...)
	return st, db.Wrap(err)
}

func (s *Store) IncrementWakeUpAttempts(ctx context.Context, id string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `UPDATE wake_up_requests SET attempts=attempts+1 WHERE id=$1 RETURNING attempts`, id).Scan(&n)
	return n, db.Wrap(err)
}

func (s *Store) CompleteWakeUp(ctx context.Context, id string, at time.Time) error {
	return s.db.ExecOne(ctx, `UPDATE wake_up_requests SET status='completed', completed_at=$2 WHERE id=$1`, id, at)
}

func (s *Store) FailWakeUp(ctx context.Context, id, notes string) error {
	return s.db.ExecOne(ctx, `UPDATE wake_up_requests SET status='failed', notes=$2 WHERE id=$1`, id, notes)
}
