package hotel

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func (r Reservation) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("reservation %s: %w", r.ID, err)
	}
	return nil
}

// ValidateExceptGuest checks a reservation whose guest linkage is not known
// to the caller, such as a PMS field update.
func (r Reservation) ValidateExceptGuest() error {
	if err := validate.StructExcept(r, "GuestID"); err != nil {
		return fmt.Errorf("reservation %s: %w", r.ID, err)
	}
	return nil
}
