package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/example/hotel-call-scheduler/internal/gateway"
	"github.com/example/hotel-call-scheduler/internal/hotel"
	"github.com/example/hotel-call-scheduler/internal/notify"
	"github.com/example/hotel-call-scheduler/internal/store/memory"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu       sync.Mutex
	disabled bool
	calls    []gateway.Call
	// respond decides the result per call; nil means success
	respond func(gateway.Call) gateway.Result
}

func (g *fakeGateway) Enabled() bool { return !g.disabled }

func (g *fakeGateway) Place(_ context.Context, c gateway.Call) gateway.Result {
	g.mu.Lock()
	g.calls = append(g.calls, c)
	n := len(g.calls)
	g.mu.Unlock()
	if g.respond != nil {
		return g.respond(c)
	}
	return gateway.Result{OK: true, CallID: "vapi-" + string(rune('0'+n))}
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (n *fakeNotifier) Notify(_ context.Context, m notify.Message) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, m)
	return true
}

var nyc = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}()

type guestOpt func(*hotel.Guest)

func seed(t *testing.T, s *memory.Store, id, room string, status hotel.ReservationStatus, opts ...guestOpt) {
	t.Helper()
	ctx := context.Background()
	g := hotel.Guest{ID: "g-" + id, FirstName: "Ana", LastName: "Silva", Phone: "+12024561111", PreferredLanguage: "en"}
	for _, o := range opts {
		o(&g)
	}
	require.NoError(t, s.CreateGuest(ctx, g))
	in := time.Date(2026, 6, 9, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateReservation(ctx, hotel.Reservation{
		ID: id, GuestID: g.ID, RoomNumber: room, Status: status,
		CheckIn: in, CheckOut: in.AddDate(0, 0, 3), GuestCount: 1,
	}))
}
