// Package reconcile merges reservations and guests from the PMS into the
// local store without touching locally-owned fields.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/hotel-call-scheduler/internal/hotel"
	"github.com/example/hotel-call-scheduler/internal/internaltypes"
	"github.com/example/hotel-call-scheduler/internal/phone"
	"github.com/example/hotel-call-scheduler/internal/pms"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PMS interface {
	Enabled() bool
	ListReservations(ctx context.Context, from, to time.Time) ([]pms.Reservation, error)
	GetGuest(ctx context.Context, id string) (pms.Guest, error)
}

type Store interface {
	GuestByExternalID(ctx context.Context, externalID string) (hotel.Guest, error)
	GuestByContact(ctx context.Context, phone, email string) (hotel.Guest, error)
	CreateGuest(ctx context.Context, g hotel.Guest) error
	LinkGuestExternalID(ctx context.Context, guestID, externalID string) error
	ReservationByExternalID(ctx context.Context, externalID string) (hotel.Reservation, error)
	CreateReservation(ctx context.Context, r hotel.Reservation) error
	UpdateReservationFromPMS(ctx context.Context, r hotel.Reservation) error
}

type Result struct {
	Synced  int  `json:"synced"`
	Errors  int  `json:"errors"`
	Skipped bool `json:"skipped,omitempty"`
}

type Syncer struct {
	store  Store
	pms    PMS
	region string
	log    *zap.Logger

	Now func() time.Time
}

func New(st Store, p PMS, region string, log *zap.Logger) *Syncer {
	return &Syncer{store: st, pms: p, region: region, log: log.Named("reconcile"), Now: time.Now}
}

// Sync pulls reservations from yesterday through the next 30 days. A
// failing item is counted and skipped; an unreachable PMS is one error.
func (s *Syncer) Sync(ctx context.Context) Result {
	if !s.pms.Enabled() {
		s.log.Info("pms not configured, skipping sync")
		return Result{Skipped: true}
	}

	now := s.Now()
	items, err := s.pms.ListReservations(ctx, now.AddDate(0, 0, -1), now.AddDate(0, 0, 30))
	if err != nil {
		s.log.Error("fetch pms reservations", zap.Error(err))
		return Result{Errors: 1}
	}

	var res Result
	for _, up := range items {
		if err := s.syncOne(ctx, up); err != nil {
			res.Errors++
			s.log.Warn("reservation sync failed", zap.String("pms_reservation_id", up.ID), zap.Error(err))
			continue
		}
		res.Synced++
	}
	s.log.Info("pms sync done", zap.Int("fetched", len(items)), zap.Int("synced", res.Synced), zap.Int("errors", res.Errors))
	return res
}

func (s *Syncer) syncOne(ctx context.Context, up pms.Reservation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if up.ID == "" {
		return errors.New("reservation without id")
	}
	status, err := normalizeStatus(up.Status)
	if err != nil {
		return err
	}
	checkIn, err := hotel.ParseDate(up.CheckInDate)
	if err != nil {
		return fmt.Errorf("check-in date: %w", err)
	}
	checkOut, err := hotel.ParseDate(up.CheckOutDate)
	if err != nil {
		return fmt.Errorf("check-out date: %w", err)
	}

	guestID, err := s.resolveGuest(ctx, up.GuestID)
	if err != nil {
		return fmt.Errorf("resolve guest %s: %w", up.GuestID, err)
	}

	r := hotel.Reservation{
		RoomNumber:      up.RoomNumber,
		RoomType:        up.RoomType,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Status:          status,
		GuestCount:      up.NumberOfGuests,
		SpecialRequests: up.SpecialRequests,
	}

	existing, err := s.store.ReservationByExternalID(ctx, up.ID)
	switch {
	case err == nil:
		r.ID = existing.ID
		return s.store.UpdateReservationFromPMS(ctx, r)
	case errors.Is(err, internaltypes.ErrNotFound):
		ext := up.ID
		r.ID = uuid.NewString()
		r.ExternalID = &ext
		r.GuestID = guestID
		return s.store.CreateReservation(ctx, r)
	default:
		return err
	}
}

// resolveGuest finds the local guest for a PMS guest id. A guest first
// created locally (e.g. by a phone booking) is matched by phone or email
// and linked, keeping its local fields.
func (s *Syncer) resolveGuest(ctx context.Context, externalID string) (string, error) {
	if externalID == "" {
		return "", errors.New("reservation has no guest")
	}
	g, err := s.store.GuestByExternalID(ctx, externalID)
	if err == nil {
		return g.ID, nil
	}
	if !errors.Is(err, internaltypes.ErrNotFound) {
		return "", err
	}

	up, err := s.pms.GetGuest(ctx, externalID)
	if err != nil {
		return "", err
	}
	number := strings.TrimSpace(up.Phone)
	if n, err := phone.Normalize(number, s.region); err == nil {
		number = n
	}
	email := strings.TrimSpace(up.Email)

	local, err := s.store.GuestByContact(ctx, number, email)
	switch {
	case err == nil:
		if err := s.store.LinkGuestExternalID(ctx, local.ID, externalID); err != nil {
			return "", err
		}
		return local.ID, nil
	case !errors.Is(err, internaltypes.ErrNotFound):
		return "", err
	}

	ext := externalID
	created := hotel.Guest{
		ID:                uuid.NewString(),
		ExternalID:        &ext,
		FirstName:         up.FirstName,
		LastName:          up.LastName,
		Email:             email,
		Phone:             number,
		PreferredLanguage: up.PreferredLanguage,
		VIP:               up.VIPStatus,
	}
	if created.PreferredLanguage == "" {
		created.PreferredLanguage = "en"
	}
	if err := s.store.CreateGuest(ctx, created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func normalizeStatus(raw string) (hotel.ReservationStatus, error) {
	token := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "-")
	switch token {
	case "confirmed", "reserved", "booked":
		return hotel.StatusConfirmed, nil
	case "checked-in", "in-house":
		return hotel.StatusCheckedIn, nil
	case "checked-out":
		return hotel.StatusCheckedOut, nil
	case "cancelled", "canceled", "no-show":
		return hotel.StatusCancelled, nil
	}
	return "", fmt.Errorf("unknown reservation status %q", raw)
}
