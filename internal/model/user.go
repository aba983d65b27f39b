package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore defines persistence operations for users.
type UserStore interface {
	GetByExternalID(ctx context.Context, externalID string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	Create(ctx context.Context, user User) (User, error)
	UpdateTier(ctx context.Context, id uuid.UUID, tier Tier, premiumUntil *time.Time) error
	Retire(ctx context.Context, id uuid.UUID) error
}

// Tier enumerates subscription tiers.
type Tier string

const (
	// TierFree is the default tier with bounded usage.
	TierFree Tier = "free"
	// TierPremium is the paid tier without usage caps.
	TierPremium Tier = "premium"
)

// User represents a profile owned by the system. Background and goal are
// stored encrypted; the structs carry ciphertext as written to the database.
type User struct {
	ID           uuid.UUID
	ExternalID   string
	Background   []byte
	Goal         []byte
	Tier         Tier
	PremiumUntil *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	RetiredAt    *time.Time
}

// IsPremium reports whether the user holds an unexpired premium subscription
// at the given instant. An expired premium user is treated as free.
func (u User) IsPremium(now time.Time) bool {
	if u.Tier != TierPremium {
		return false
	}
	if u.PremiumUntil != nil && u.PremiumUntil.Before(now) {
		return false
	}
	return true
}
