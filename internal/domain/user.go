package domain

import (
	"context"
	"time"
)

// User is the slice of the identity record this service needs: enough to
// address gateway charges and notifications. Registration, KYC and
// credential handling live with the identity provider.
type User struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Email     string    `bson:"email" json:"email"`
	Name      string    `bson:"name" json:"name"`
	Phone     string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Roles     []string  `bson:"roles" json:"roles"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasRole checks if user has a specific role
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// UserRepository defines read access to the users collection the identity
// provider maintains.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// Role constants
const (
	RoleInvestor = "investor"
	RoleAdmin    = "admin"
)
