package postgres

import (
	"context"

	"github.com/example/hotel-call-scheduler/internal/db"
	"github.com/example/hotel-call-scheduler/internal/hotel"
)

const guestColumns = `id::text, external_id, first_name, last_name, email, phone, preferred_language, vip, created_at, updated_at`

const reservationColumns = `id::text, external_id, guest_id::text, room_number, room_type, check_in_date, check_out_date,
guest_count, status, special_requests, created_at, updated_at`

func guestDest(g *hotel.Guest) []any {
	return []any{&g.ID, &g.ExternalID, &g.FirstName, &g.LastName, &g.Email, &g.Phone, &g.PreferredLanguage, &g.VIP, &g.CreatedAt, &g.UpdatedAt}
}

func (s *Store) GuestByExternalID(ctx context.Context, externalID string) (hotel.Guest, error) {
	var g hotel.Guest
	err := s.db.QueryRow(ctx, `SELECT `+guestColumns+` FROM guests WHERE external_id=$1`, externalID).Scan(guestDest(&g)...)
	return g, db.Wrap(err)
}

// GuestByContact matches locally-created guests (no external id) by phone,
// then by case-insensitive email.
func (s *Store) GuestByContact(ctx context.Context, phone, email string) (hotel.Guest, error) {
	var g hotel.Guest
	err := s.db.QueryRow(ctx, `
SELECT `+guestColumns+`
FROM guests
WHERE external_id IS NULL
  AND (($1::text <> '' AND phone = $1::text) OR ($2::text <> '' AND lower(email) = lower($2::text)))
ORDER BY (phone = $1::text) DESC, id
LIMIT 1`, phone, email).Scan(guestDest(&g)...)
	return g, db.Wrap(err)
}

func (s *Store) CreateGuest(ctx context.Context, g hotel.Guest) error {
	if g.PreferredLanguage == "" {
		g.PreferredLanguage = "en"
	}
	return s.db.Exec(ctx, `
INSERT INTO guests(id,external_id,first_name,last_name,email,phone,preferred_language,vip)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		g.ID, g.ExternalID, g.FirstName, g.LastName, g.Email, g.Phone, g.PreferredLanguage, g.VIP)
}

func (s *Store) LinkGuestExternalID(ctx context.Context, guestID, externalID string) error {
	return s.db.ExecOne(ctx, `UPDATE guests SET external_id=$2, updated_at=now() WHERE id=$1`, guestID, externalID)
}

func (s *Store) ReservationByExternalID(ctx context.Context, externalID string) (hotel.Reservation, error) {
	var r hotel.Reservation
	err := s.db.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE external_id=$1`, externalID).Scan(
		&r.ID, &r.ExternalID, &r.GuestID, &r.RoomNumber, &r.RoomType, &r.CheckIn, &r.CheckOut,
		&r.GuestCount, &r.Status, &r.SpecialRequests, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, db.Wrap(err)
}

func (s *Store) CreateReservation(ctx context.Context, r hotel.Reservation) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return s.db.Exec(ctx, `
INSERT INTO reservations(id,external_id,guest_id,room_number,room_type,check_in_date,check_out_date,guest_count,status,special_requests)
VALUES ($1,$2,$3,$4,$5,$6::date,$7::date,$8,$9,$10)`,
		r.ID, r.ExternalID, r.GuestID, r.RoomNumber, r.RoomType,
		r.CheckIn.Format(hotel.DateLayout), r.CheckOut.Format(hotel.DateLayout),
		r.GuestCount, r.Status, r.SpecialRequests)
}

// UpdateReservationFromPMS overwrites only the PMS-owned fields.
func (s *Store) UpdateReservationFromPMS(ctx context.Context, r hotel.Reservation) error {
	if err := r.ValidateExceptGuest(); err != nil {
		return err
	}
	return s.db.ExecOne(ctx, `
UPDATE reservations
SET room_number=$2, room_type=$3, check_in_date=$4::date, check_out_date=$5::date,
    status=$6, guest_count=$7, special_requests=$8, updated_at=now()
WHERE id=$1`,
		r.ID, r.RoomNumber, r.RoomType,
		r.CheckIn.Format(hotel.DateLayout), r.CheckOut.Format(hotel.DateLayout),
		r.Status, r.GuestCount, r.SpecialRequests)
}
