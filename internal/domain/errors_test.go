package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRejectedError(t *testing.T) {
	err := Reject(ErrConflict, "barber is already booked at 10:00")
	wrapped := fmt.Errorf("create reservation: %w", err)

	assert.True(t, errors.Is(wrapped, ErrConflict))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, "conflict: barber is already booked at 10:00", err.Error())

	reason, ok := Reason(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "barber is already booked at 10:00", reason)

	_, ok = Reason(errors.New("boom"))
	assert.False(t, ok)

	assert.Equal(t, "only reason", (&RejectedError{Reason: "only reason"}).Error())
	assert.Equal(t, "not found", Reject(ErrNotFound, "").Error())
}
