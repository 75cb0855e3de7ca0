// Package store defines the Call Record Store contract shared by the
// PostgreSQL and in-memory backends.
package store

import (
	"context"
	"time"

	"github.com/example/hotel-call-scheduler/internal/hotel"
)

type DateField string

const (
	ByCheckIn  DateField = "check_in_date"
	ByCheckOut DateField = "check_out_date"
)

// EligibleQuery selects stays in Status whose DateField falls in Window and
// that have no scheduled call of CallType yet.
type EligibleQuery struct {
	Status    hotel.ReservationStatus
	DateField DateField
	Window    hotel.DateRange
	CallType  hotel.CallType
}

// DueQuery selects scheduled calls that are due at Now and still below the
// attempt ceiling, oldest first. An empty CallType matches every type.
type DueQuery struct {
	Now      time.Time
	CallType hotel.CallType
	Ceiling  int
	Limit    int
}

type Store interface {
	EligibleStays(ctx context.Context, q EligibleQuery) ([]hotel.Stay, error)
	CreateScheduledCall(ctx context.Context, c hotel.ScheduledCall) error
	ListScheduledCalls(ctx context.Context, reservationID string) ([]hotel.ScheduledCall, error)

	DueScheduledCalls(ctx context.Context, q DueQuery) ([]hotel.DueCall, error)
	GetScheduledCall(ctx context.Context, id string) (hotel.ScheduledCall, error)
	// MarkCallInProgress claims a scheduled call and counts the attempt. It
	// returns internaltypes.ErrConflict when the call is no longer scheduled.
	MarkCallInProgress(ctx context.Context, id string, at time.Time) error
	// CountCallAttempt counts an attempt that never reached the claim.
	CountCallAttempt(ctx context.Context, id string, at time.Time) error
	SetCallHandle(ctx context.Context, id, handle string) error
	RescheduleCall(ctx context.Context, id string, at time.Time, notes string) error
	FailCall(ctx context.Context, id, notes string) error

	CreateWakeUp(ctx context.Context, w hotel.WakeUpRequest) error
	GetWakeUp(ctx context.Context, id string) (hotel.WakeUpRequest, error)
	DueWakeUps(ctx context.Context, from, to time.Time, limit int) ([]hotel.WakeUpRequest, error)
	ExpireWakeUps(ctx context.Context, before time.Time, notes string) ([]hotel.WakeUpRequest, error)
	CheckedInStayForRoom(ctx context.Context, room string) (hotel.Stay, error)
	IncrementWakeUpAttempts(ctx context.Context, id string) (int, error)
	CompleteWakeUp(ctx context.Context, id string, at time.Time) error
	FailWakeUp(ctx context.Context, id, notes string) error

	GuestByExternalID(ctx context.Context, externalID string) (hotel.Guest, error)
	GuestByContact(ctx context.Context, phone, email string) (hotel.Guest, error)
	CreateGuest(ctx context.Context, g hotel.Guest) error
	LinkGuestExternalID(ctx context.Context, guestID, externalID string) error
	ReservationByExternalID(ctx context.Context, externalID string) (hotel.Reservation, error)
	CreateReservation(ctx context.Context, r hotel.Reservation) error
	UpdateReservationFromPMS(ctx context.Context, r hotel.Reservation) error
}
