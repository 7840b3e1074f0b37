package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermanent(t *testing.T) {
	err := fmt.Errorf("Reconcile: %w", Permanent(ErrAmountMismatch))

	assert.True(t, IsPermanent(err))
	assert.True(t, errors.Is(err, ErrAmountMismatch))
	assert.Equal(t, "Reconcile: amount mismatch", err.Error())

	assert.False(t, IsPermanent(ErrBookingNotFound))
	assert.Nil(t, Permanent(nil))
}
