package hotel

import (
	"fmt"
	"time"
)

type CallType string

const (
	CallPreArrival  CallType = "pre_arrival"
	CallMidStay     CallType = "mid_stay"
	CallPreCheckout CallType = "pre_checkout"
	CallPostStay    CallType = "post_stay"
)

// CallTypes lists the milestones in guest-journey order.
var CallTypes = []CallType{CallPreArrival, CallMidStay, CallPreCheckout, CallPostStay}

// ParseCallType accepts both the stored form (pre_arrival) and the dashed
// form used on the trigger surface (pre-arrival).
func ParseCallType(s string) (CallType, error) {
	for _, ct := range CallTypes {
		if s == string(ct) || s == ct.Slug() {
			return ct, nil
		}
	}
	return "", fmt.Errorf("unknown call type %q", s)
}

// Slug is the dashed form of the call type.
func (c CallType) Slug() string {
	b := []byte(c)
	for i := range b {
		if b[i] == '_' {
			b[i] = '-'
		}
	}
	return string(b)
}

type CallStatus string

const (
	CallScheduled  CallStatus = "scheduled"
	CallInProgress CallStatus = "in_progress"
	CallCompleted  CallStatus = "completed"
	CallFailed     CallStatus = "failed"
)

type ScheduledCall struct {
	ID            string
	ReservationID string
	CallType      CallType
	ScheduledAt   time.Time
	AttemptedAt   *time.Time
	Status        CallStatus
	Attempts      int
	MaxAttempts   int
	CallHandle    *string
	Notes         *string
	Urgent        bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DueCall is a scheduled call with the stay it belongs to.
type DueCall struct {
	Call ScheduledCall
	Stay Stay
}

type WakeUpStatus string

const (
	WakeUpPending   WakeUpStatus = "pending"
	WakeUpCompleted WakeUpStatus = "completed"
	WakeUpFailed    WakeUpStatus = "failed"
)

type WakeUpRequest struct {
	ID          string
	RoomNumber  string
	RequestedAt time.Time
	Status      WakeUpStatus
	Attempts    int
	CompletedAt *time.Time
	Notes       *string

	CreatedAt time.Time
}
