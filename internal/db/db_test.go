package db

import (
	"errors"
	"testing"

	"github.com/example/hotel-call-scheduler/internal/internaltypes"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil))
	assert.ErrorIs(t, Wrap(pgx.ErrNoRows), internaltypes.ErrNotFound)

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "scheduled_calls_reservation_call_type_key"}
	err := Wrap(dup)
	assert.ErrorIs(t, err, internaltypes.ErrDuplicate)
	assert.Contains(t, err.Error(), "scheduled_calls_reservation_call_type_key")

	other := Wrap(errors.New("connection reset"))
	assert.NotErrorIs(t, other, internaltypes.ErrNotFound)
	assert.Contains(t, other.Error(), "db: connection reset")
}
