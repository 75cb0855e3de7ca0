package hotel

import "time"

type ReservationStatus string

const (
	StatusConfirmed  ReservationStatus = "confirmed"
	StatusCheckedIn  ReservationStatus = "checked_in"
	StatusCheckedOut ReservationStatus = "checked_out"
	StatusCancelled  ReservationStatus = "cancelled"
)

type Guest struct {
	ID                string
	ExternalID        *string
	FirstName         string
	LastName          string
	Email             string
	Phone             string // E.164
	PreferredLanguage string
	VIP               bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (g Guest) FullName() string {
	switch {
	case g.FirstName == "":
		return g.LastName
	case g.LastName == "":
		return g.FirstName
	}
	return g.FirstName + " " + g.LastName
}

// Reservation is one guest stay. CheckIn and CheckOut are civil dates; only
// the year, month and day are meaningful.
type Reservation struct {
	ID              string
	ExternalID      *string
	GuestID         string            `validate:"required"`
	RoomNumber      string
	RoomType        string
	CheckIn         time.Time         `validate:"required"`
	CheckOut        time.Time         `validate:"required,gtfield=CheckIn"`
	GuestCount      int               `validate:"gte=0"`
	Status          ReservationStatus `validate:"oneof=confirmed checked_in checked_out cancelled"`
	SpecialRequests string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stay is a reservation joined with its guest, the shape every engine reads.
type Stay struct {
	Reservation Reservation
	Guest       Guest
}
