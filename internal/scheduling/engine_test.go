package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/hotel-call-scheduler/internal/hotel"
	"github.com/example/hotel-call-scheduler/internal/internaltypes"
	"github.com/example/hotel-call-scheduler/internal/store"
	"github.com/example/hotel-call-scheduler/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var nyc = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func date(s string) time.Time {
	d, err := hotel.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func addStay(t *testing.T, s *memory.Store, id string, status hotel.ReservationStatus, in, out string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateGuest(ctx, hotel.Guest{ID: "g-" + id, FirstName: "Ana", Phone: "+12024561111"}))
	require.NoError(t, s.CreateReservation(ctx, hotel.Reservation{
		ID: id, GuestID: "g-" + id, RoomNumber: "101", Status: status,
		CheckIn: date(in), CheckOut: date(out), GuestCount: 1,
	}))
}

func newEngine(st Store, now time.Time) *Engine {
	e := New(st, nyc, 3, zap.NewNop())
	e.Now = func() time.Time { return now }
	return e
}

func onlyCall(t *testing.T, s *memory.Store, reservationID string) hotel.ScheduledCall {
	t.Helper()
	calls, err := s.ListScheduledCalls(context.Background(), reservationID)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	return calls[0]
}

func TestSchedulePreArrival_TargetTimeAndIdempotency(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	addStay(t, s, "r1", hotel.StatusConfirmed, "2026-06-11", "2026-06-13")
	addStay(t, s, "r2", hotel.StatusConfirmed, "2026-06-12", "2026-06-13") // outside window
	addStay(t, s, "r3", hotel.StatusCheckedIn, "2026-06-11", "2026-06-13") // wrong status

	now := time.Date(2026, 6, 10, 10, 0, 0, 0, nyc)
	e := newEngine(s, now)

	n, err := e.Schedule(ctx, hotel.CallPreArrival)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c := onlyCall(t, s, "r1")
	assert.True(t, c.ScheduledAt.Equal(time.Date(2026, 6, 10, 16, 0, 0, 0, nyc)))
	assert.Equal(t, hotel.CallScheduled, c.Status)
	assert.Equal(t, 0, c.Attempts)
	assert.Equal(t, 3, c.MaxAttempts)
	assert.False(t, c.Urgent)

	n, err = e.Schedule(ctx, hotel.CallPreArrival)
	require.NoError(t, err)
	assert.Zero(t, n)
	onlyCall(t, s, "r1")
}

func TestSchedule_HotelLocalToday(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	addStay(t, s, "r1", hotel.StatusConfirmed, "2026-06-11", "2026-06-13")

	// 02:00 UTC on the 11th is still the evening of the 10th in New York
	now := time.Date(2026, 6, 11, 2, 0, 0, 0, time.UTC)
	n, err := newEngine(s, now).Schedule(ctx, hotel.CallPreArrival)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	// 16:00 local already passed, so the call is pushed an hour out
	assert.True(t, onlyCall(t, s, "r1").ScheduledAt.Equal(now.Add(time.Hour)))
}

func TestSchedule_Fallbacks(t *testing.T) {
	now := time.Date(2026, 6, 10, 18, 30, 0, 0, nyc)
	tests := []struct {
		name   string
		ct     hotel.CallType
		status hotel.ReservationStatus
		in     string
		out    string
		want   time.Time
		urgent bool
	}{
		{"mid stay after 14:00", hotel.CallMidStay, hotel.StatusCheckedIn, "2026-06-08", "2026-06-12", now.Add(time.Hour), false},
		{"pre checkout after 08:00", hotel.CallPreCheckout, hotel.StatusCheckedIn, "2026-06-08", "2026-06-10", now, true},
		{"post stay keeps target", hotel.CallPostStay, hotel.StatusCheckedOut, "2026-06-05", "2026-06-07", time.Date(2026, 6, 10, 14, 0, 0, 0, nyc), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := memory.New()
			addStay(t, s, "r1", tt.status, tt.in, tt.out)

			n, err := newEngine(s, now).Schedule(context.Background(), tt.ct)
			require.NoError(t, err)
			require.Equal(t, 1, n)

			c := onlyCall(t, s, "r1")
			assert.True(t, c.ScheduledAt.Equal(tt.want), "got %s", c.ScheduledAt)
			assert.Equal(t, tt.urgent, c.Urgent)
			assert.Equal(t, tt.ct, c.CallType)
		})
	}
}

func TestSchedule_PreCheckoutMorning(t *testing.T) {
	s := memory.New()
	addStay(t, s, "r1", hotel.StatusCheckedIn, "2026-06-08", "2026-06-10")
	now := time.Date(2026, 6, 10, 6, 0, 0, 0, nyc)

	_, err := newEngine(s, now).Schedule(context.Background(), hotel.CallPreCheckout)
	require.NoError(t, err)
	c := onlyCall(t, s, "r1")
	assert.True(t, c.ScheduledAt.Equal(time.Date(2026, 6, 10, 8, 0, 0, 0, nyc)))
	assert.False(t, c.Urgent)
}

func TestSchedule_AtMostOnePerMilestone(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	addStay(t, s, "r1", hotel.StatusCheckedIn, "2026-06-08", "2026-06-10")
	e := newEngine(s, time.Date(2026, 6, 10, 6, 0, 0, 0, nyc))

	for i := 0; i < 3; i++ {
		res := e.ScheduleAll(ctx)
		assert.Empty(t, res.Errors)
	}
	calls, err := s.ListScheduledCalls(ctx, "r1")
	require.NoError(t, err)
	// check-in two days ago qualifies for mid stay too
	require.Len(t, calls, 2)
	assert.NotEqual(t, calls[0].CallType, calls[1].CallType)
}

// racyStore pretends another pass inserted the row between select and insert.
type racyStore struct{ *memory.Store }

func (racyStore) CreateScheduledCall(context.Context, hotel.ScheduledCall) error {
	return internaltypes.ErrDuplicate
}

func TestSchedule_DuplicateInsertIsSkipped(t *testing.T) {
	s := memory.New()
	addStay(t, s, "r1", hotel.StatusConfirmed, "2026-06-11", "2026-06-13")

	n, err := newEngine(racyStore{s}, time.Date(2026, 6, 10, 10, 0, 0, 0, nyc)).Schedule(context.Background(), hotel.CallPreArrival)
	require.NoError(t, err)
	assert.Zero(t, n)
}

type brokenStore struct{ *memory.Store }

func (brokenStore) EligibleStays(_ context.Context, q store.EligibleQuery) ([]hotel.Stay, error) {
	if q.CallType == hotel.CallMidStay {
		return nil, errors.New("connection reset")
	}
	return nil, nil
}

func TestScheduleAll_ContinuesAfterFailure(t *testing.T) {
	e := newEngine(brokenStore{memory.New()}, time.Date(2026, 6, 10, 10, 0, 0, 0, nyc))

	_, err := e.Schedule(context.Background(), hotel.CallMidStay)
	assert.ErrorContains(t, err, "connection reset")

	res := e.ScheduleAll(context.Background())
	assert.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[hotel.CallMidStay], "connection reset")
	assert.Len(t, res.Created, 4)
	assert.Zero(t, res.Total)
}

func TestSchedule_UnknownType(t *testing.T) {
	_, err := newEngine(memory.New(), time.Now()).Schedule(context.Background(), "wake_up")
	assert.Error(t, err)
}
