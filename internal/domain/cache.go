package domain

import (
	"context"
	"time"
)

// InvestmentCache caches per-user investment lists and records webhook
// replay markers. A cache miss is (nil, nil); absence is not an error.
type InvestmentCache interface {
	GetUserInvestments(ctx context.Context, userID string) ([]*Investment, error)
	SetUserInvestments(ctx context.Context, userID string, investments []*Investment, ttl time.Duration) error
	InvalidateUserInvestments(ctx context.Context, userID string) error
	// MarkWebhookEvent returns true when this delivery is the first one
	// seen for txRef within the marker TTL.
	MarkWebhookEvent(ctx context.Context, txRef string, ttl time.Duration) (bool, error)
}
