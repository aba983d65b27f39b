package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mentorlab/mentor-server/internal/config"
	"github.com/mentorlab/mentor-server/internal/logger"
	"github.com/mentorlab/mentor-server/internal/model"
)

var _ model.Gate = (*Gate)(nil)

// reserveScript atomically reserves one unit of quota. Returns the new count
// on success and 0 when the cap is already reached, so concurrent requests
// from the same user can never overrun the quota.
var reserveScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= tonumber(ARGV[1]) then
	return 0
end
return redis.call("INCR", KEYS[1])
`)

// releaseScript returns one reserved unit, never going below zero.
var releaseScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current > 0 then
	redis.call("DECR", KEYS[1])
end
return current
`)

// Gate decides whether a conversation turn or mentor creation is permitted.
// Premium users short-circuit; free-tier usage is counted in Redis so checks
// for the same user stay atomic under concurrent requests. Fails closed: if
// the counter store is unreachable the check denies.
type Gate struct {
	rdb    redis.UniversalClient
	quota  config.Quota
	logger *logger.Logger
}

// NewGate creates a Gate backed by the given Redis client.
func NewGate(rdb redis.UniversalClient, quota config.Quota, logger *logger.Logger) *Gate {
	return &Gate{
		rdb:    rdb,
		quota:  quota,
		logger: logger,
	}
}

// CheckTurn reserves one conversation turn for the user.
func (g *Gate) CheckTurn(ctx context.Context, user model.User) (model.Decision, error) {
	return g.reserve(ctx, user, turnsKey(user.ID.String()), g.quota.FreeTurns)
}

// ReleaseTurn returns a reserved turn when it failed before delivery.
func (g *Gate) ReleaseTurn(ctx context.Context, user model.User) error {
	if user.IsPremium(time.Now()) {
		return nil
	}
	if err := releaseScript.Run(ctx, g.rdb, []string{turnsKey(user.ID.String())}).Err(); err != nil {
		return fmt.Errorf("failed to release turn quota: %w", err)
	}
	return nil
}

// CheckMentorCreation reserves one mentor creation for the user.
func (g *Gate) CheckMentorCreation(ctx context.Context, user model.User) (model.Decision, error) {
	return g.reserve(ctx, user, mentorsKey(user.ID.String()), g.quota.FreeMentors)
}

// ReleaseMentorCreation returns a reserved mentor creation when it failed
// after the check.
func (g *Gate) ReleaseMentorCreation(ctx context.Context, user model.User) error {
	if user.IsPremium(time.Now()) {
		return nil
	}
	if err := releaseScript.Run(ctx, g.rdb, []string{mentorsKey(user.ID.String())}).Err(); err != nil {
		return fmt.Errorf("failed to release mentor creation quota: %w", err)
	}
	return nil
}

func (g *Gate) reserve(ctx context.Context, user model.User, key string, cap int) (model.Decision, error) {
	if user.IsPremium(time.Now()) {
		return model.Allow(), nil
	}

	if cap <= 0 {
		return model.Deny(model.DenySubscriptionRequired), nil
	}

	reserved, err := reserveScript.Run(ctx, g.rdb, []string{key}, cap).Int64()
	if err != nil {
		// Quota state is unknown, deny rather than risk an overrun.
		g.logger.Error("quota counter unavailable, denying", "user_id", user.ID, "error", err)
		return model.Deny(model.DenyQuotaExhausted), fmt.Errorf("failed to reserve quota: %w", err)
	}

	if reserved == 0 {
		return model.Deny(model.DenyQuotaExhausted), nil
	}

	return model.Allow(), nil
}

func turnsKey(userID string) string {
	return fmt.Sprintf("quota:turns:%s", userID)
}

func mentorsKey(userID string) string {
	return fmt.Sprintf("quota:mentors:%s", userID)
}
