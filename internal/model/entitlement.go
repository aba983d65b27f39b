package model

import (
	"context"
	"fmt"
)

// Gate decides whether a conversation turn or mentor creation is permitted.
// Checks for the same user are atomic: concurrent requests cannot exceed the
// free-tier quota.
type Gate interface {
	// CheckTurn reserves one conversation turn for the user. Fails closed:
	// any ambiguity is a denial.
	CheckTurn(ctx context.Context, user User) (Decision, error)
	// ReleaseTurn returns a reserved turn when it failed before delivery.
	ReleaseTurn(ctx context.Context, user User) error
	// CheckMentorCreation reserves one mentor creation for the user.
	CheckMentorCreation(ctx context.Context, user User) (Decision, error)
	// ReleaseMentorCreation returns a reserved mentor creation when it
	// failed after the check.
	ReleaseMentorCreation(ctx context.Context, user User) error
}

// DenyReason enumerates entitlement denial reasons.
type DenyReason string

const (
	// DenyQuotaExhausted means the free-tier cap has been reached.
	DenyQuotaExhausted DenyReason = "quota_exhausted"
	// DenySubscriptionRequired means the operation is premium-only.
	DenySubscriptionRequired DenyReason = "subscription_required"
)

// Decision is the outcome of an entitlement check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Allow is the positive decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny is a negative decision with the given reason.
func Deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// EntitlementError carries a denial across service boundaries. It is a policy
// outcome rather than a fault: callers surface it to the user without retry.
type EntitlementError struct {
	Reason DenyReason
}

func (e *EntitlementError) Error() string {
	return fmt.Sprintf("entitlement denied: %s", e.Reason)
}
