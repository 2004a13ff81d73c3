package domain

import (
	"context"
	"math"
	"time"
)

// Status is the lifecycle state of an investment. Transitions only move
// forward: Pending -> Active -> Matured, with Rejected and Cancelled as
// terminal failure states reachable from Pending.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusActive    Status = "Active"
	StatusMatured   Status = "Matured"
	StatusRejected  Status = "Rejected"
	StatusCancelled Status = "Cancelled"
)

// ParseStatus validates a caller-supplied status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusActive, StatusMatured, StatusRejected, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

// CanTransition reports whether moving from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusActive || to == StatusRejected || to == StatusCancelled
	case StatusActive:
		return to == StatusMatured
	}
	return false
}

// Terminal reports whether a status has no outgoing edges.
func (s Status) Terminal() bool {
	return s == StatusMatured || s == StatusRejected || s == StatusCancelled
}

// PaymentMethod distinguishes gateway-settled investments from manual
// bank-transfer ones approved by an administrator.
type PaymentMethod string

const (
	PaymentGateway PaymentMethod = "gateway"
	PaymentManual  PaymentMethod = "manual"
)

// ParsePaymentMethod validates a caller-supplied payment method string.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentGateway, PaymentManual:
		return PaymentMethod(s), true
	}
	return "", false
}

// Investment is the primary entity: one principal placed into one plan,
// correlated to a gateway transaction by TxRef.
type Investment struct {
	ID             string        `bson:"_id,omitempty" json:"id"`
	UserID         string        `bson:"user_id" json:"user_id"`
	Plan           string        `bson:"plan" json:"plan"`
	Amount         float64       `bson:"amount" json:"amount"`
	PaymentMethod  PaymentMethod `bson:"payment_method" json:"payment_method"`
	ReceiptURL     string        `bson:"receipt_url,omitempty" json:"receipt_url,omitempty"`
	TxRef          string        `bson:"tx_ref" json:"tx_ref"`
	StartDate      time.Time     `bson:"start_date" json:"start_date"`
	MaturityDate   time.Time     `bson:"maturity_date" json:"maturity_date"`
	ExpectedReturn float64       `bson:"expected_return" json:"expected_return"`
	CountdownDays  int           `bson:"countdown_days" json:"countdown_days"`
	Status         Status        `bson:"status" json:"status"`
	CreatedAt      time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updated_at"`
}

// MaturityFrom computes the maturity date for a plan anchored at start.
func MaturityFrom(start time.Time, plan Plan) time.Time {
	return start.AddDate(0, 0, plan.DurationDays)
}

// ExpectedReturnFor computes principal plus return for a plan. Fixed at
// creation; never recomputed afterwards.
func ExpectedReturnFor(amount float64, plan Plan) float64 {
	return amount * (1 + plan.ROI)
}

// CountdownAt returns whole days until maturity, rounded up and floored
// at zero.
func CountdownAt(maturity, now time.Time) int {
	days := int(math.Ceil(maturity.Sub(now).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

// Due reports whether the investment's holding period has elapsed.
func (i *Investment) Due(now time.Time) bool {
	return !now.Before(i.MaturityDate)
}

// InvestmentRepository defines persistence for investments. All writes are
// single-document and conditioned on the record's current status, so
// concurrent writers can never clobber a transition they did not see.
type InvestmentRepository interface {
	Create(ctx context.Context, inv *Investment) error
	GetByID(ctx context.Context, id string) (*Investment, error)
	GetByTxRef(ctx context.Context, txRef string) (*Investment, error)
	ListByUser(ctx context.Context, userID string) ([]*Investment, error)
	ListByStatus(ctx context.Context, status Status) ([]*Investment, error)
	ListAll(ctx context.Context) ([]*Investment, error)
	// UpdateIf applies a partial field update only while the record is
	// still in the expected status. A record that is gone or has moved on
	// is reported as applied=false, not an error.
	UpdateIf(ctx context.Context, id string, expect Status, fields map[string]interface{}) (applied bool, err error)
	// UpdateStatusIf sets status to `to` plus any extra fields, only if the
	// record's current status is `from`. Returns ErrNotFound when no record
	// matched the id, and applied=false when the record exists but its
	// status was not `from`.
	UpdateStatusIf(ctx context.Context, id string, from, to Status, fields map[string]interface{}) (applied bool, err error)
	Delete(ctx context.Context, id string) error
}

// IdentityProvider is the narrow port to the external identity system.
type IdentityProvider interface {
	GetUser(ctx context.Context, userID string) (*User, error)
}

// Notifier sends fire-and-forget notifications. Failures are logged, never
// surfaced to the caller.
type Notifier interface {
	Send(to, subject, body string)
}

// ReceiptStore persists uploaded receipt documents and returns a URL.
type ReceiptStore interface {
	Upload(ctx context.Context, file []byte, filename string, contentType string) (string, error)
}
