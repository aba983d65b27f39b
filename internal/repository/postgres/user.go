package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mentorlab/mentor-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

type UserRepository struct {
	db *Connection
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (model.User, error) {
	var user model.User
	query := `SELECT id, external_id, background, goal, tier, premium_until, created_at, updated_at, retired_at
			  FROM users WHERE external_id = $1 AND retired_at IS NULL`

	err := r.db.QueryRow(ctx, query, externalID).Scan(
		&user.ID, &user.ExternalID, &user.Background, &user.Goal, &user.Tier, &user.PremiumUntil,
		&user.CreatedAt, &user.UpdatedAt, &user.RetiredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by external id: %w", err)
	}

	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	var user model.User
	query := `SELECT id, external_id, background, goal, tier, premium_until, created_at, updated_at, retired_at
			  FROM users WHERE id = $1 AND retired_at IS NULL`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.ExternalID, &user.Background, &user.Goal, &user.Tier, &user.PremiumUntil,
		&user.CreatedAt, &user.UpdatedAt, &user.RetiredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}

	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	query := `INSERT INTO users (id, external_id, background, goal, tier, premium_until)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id, external_id, background, goal, tier, premium_until, created_at, updated_at, retired_at`

	var savedUser model.User
	err := r.db.QueryRow(ctx, query,
		user.ID, user.ExternalID, user.Background, user.Goal, user.Tier, user.PremiumUntil,
	).Scan(
		&savedUser.ID, &savedUser.ExternalID, &savedUser.Background, &savedUser.Goal,
		&savedUser.Tier, &savedUser.PremiumUntil, &savedUser.CreatedAt, &savedUser.UpdatedAt, &savedUser.RetiredAt,
	)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return savedUser, nil
}

func (r *UserRepository) UpdateTier(ctx context.Context, id uuid.UUID, tier model.Tier, premiumUntil *time.Time) error {
	query := `UPDATE users SET tier = $2, premium_until = $3, updated_at = NOW()
			  WHERE id = $1 AND retired_at IS NULL`

	cmd, err := r.db.Exec(ctx, query, id, tier, premiumUntil)
	if err != nil {
		return fmt.Errorf("failed to update user tier: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Retire(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET retired_at = NOW(), updated_at = NOW()
			  WHERE id = $1 AND retired_at IS NULL`

	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to retire user: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
