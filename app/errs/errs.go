package errs

import (
	"errors"
	"fmt"

	"CafePos/app/money"
)

// Kind identifies a caller-facing failure. Every kind is recoverable: the
// operation that returned it left no partial state behind.
type Kind string

const (
	KindEmptyCart           Kind = "empty_cart"
	KindMissingTable        Kind = "missing_table"
	KindInvalidItem         Kind = "invalid_item"
	KindInvalidTransition   Kind = "invalid_transition"
	KindOrderNotActive      Kind = "order_not_active"
	KindAlreadyCompleted    Kind = "already_completed"
	KindPaymentMismatch     Kind = "payment_mismatch"
	KindDrawerAlreadyOpen   Kind = "drawer_already_open"
	KindNoOpenDrawer        Kind = "no_open_drawer"
	KindAlreadyClosed       Kind = "already_closed"
	KindInsufficientPoints  Kind = "insufficient_points"
	KindPrinterNotConnected Kind = "printer_not_connected"
	KindStoreUnavailable    Kind = "store_unavailable"
)

// Error is a caller-facing engine error.
type Error struct {
	Kind    Kind
	Message string

	// Deficit is set only for KindPaymentMismatch: the amount still owed
	// (negative when overpaid).
	Deficit money.Money

	cause error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches two engine errors by kind, so errors.Is(err, errs.New(kind, ""))
// and the sentinel helpers below both work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an engine error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause; the kind still drives matching.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// PaymentMismatch reports an under- or over-payment with the exact deficit.
func PaymentMismatch(deficit money.Money) *Error {
	return &Error{
		Kind:    KindPaymentMismatch,
		Message: fmt.Sprintf("payment does not cover total, deficit %s", deficit),
		Deficit: deficit,
	}
}

// StoreUnavailable wraps a persistence transport failure. In-memory state is
// unchanged when this is returned; retrying is the caller's decision.
func StoreUnavailable(cause error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: "persistent store unavailable", cause: cause}
}

// KindOf extracts the kind from err, or "" when err is not an engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
