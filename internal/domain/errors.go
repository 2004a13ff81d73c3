package domain

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNotFound        = errors.New("record not found")
	ErrForbidden       = errors.New("access forbidden: you don't own this resource")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidPlan     = errors.New("invalid investment plan")
	ErrInvalidAmount   = errors.New("amount must be greater than zero")
	ErrInvalidMethod   = errors.New("invalid payment method")
	ErrReceiptRequired = errors.New("receipt is required for manual payments")
	ErrDuplicateTxRef  = errors.New("transaction reference already exists")
	ErrTxRefExhausted  = errors.New("could not generate a unique transaction reference")
	ErrNotManual       = errors.New("investment was not created with manual payment")
	ErrNotEligible     = errors.New("investment is not a pending manual payment")
)

// IllegalTransitionError reports a status-machine violation together with
// the state the record was actually in.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.From, e.To)
}

// TooEarlyError is returned when an administrative delete is attempted
// before the 24-hour grace period has elapsed.
type TooEarlyError struct {
	RemainingHours int
}

func (e *TooEarlyError) Error() string {
	return fmt.Sprintf("investment cannot be deleted yet: %d hours remaining", e.RemainingHours)
}

// GatewayError wraps a failure talking to the payment gateway. The caller
// may retry; the investment stays Pending.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
