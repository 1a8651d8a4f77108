package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"CafePos/app/money"
)

func TestKindMatching(t *testing.T) {
	err := New(KindEmptyCart, "cannot checkout an empty cart")

	assert.True(t, IsKind(err, KindEmptyCart))
	assert.False(t, IsKind(err, KindMissingTable))
	assert.Equal(t, KindEmptyCart, KindOf(err))

	wrapped := fmt.Errorf("checkout: %w", err)
	assert.True(t, IsKind(wrapped, KindEmptyCart))
	assert.True(t, errors.Is(wrapped, New(KindEmptyCart, "")))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, KindEmptyCart))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindStoreUnavailable, cause, "saving order")

	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsKind(err, KindStoreUnavailable))
}

func TestPaymentMismatchDeficit(t *testing.T) {
	err := PaymentMismatch(money.FromRupees(70))

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, money.FromRupees(70), e.Deficit)
	assert.Contains(t, err.Error(), "70.00")
}
