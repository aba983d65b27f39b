package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mentorlab/mentor-server/internal/model"
)

var _ model.MentorStore = (*MentorRepository)(nil)

type MentorRepository struct {
	db *Connection
}

func NewMentorRepository(db *Connection) *MentorRepository {
	return &MentorRepository{
		db: db,
	}
}

// Create inserts a new mentor and deactivates any previously active mentor of
// the same user in the same transaction, so at most one mentor per user is
// active at any time.
func (r *MentorRepository) Create(ctx context.Context, mentor model.Mentor) (model.Mentor, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.Mentor{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	deactivate := `UPDATE mentors SET active = FALSE, updated_at = NOW()
				   WHERE user_id = $1 AND active`
	if _, err := tx.Exec(ctx, deactivate, mentor.UserID); err != nil {
		return model.Mentor{}, fmt.Errorf("failed to deactivate previous mentor: %w", err)
	}

	insert := `INSERT INTO mentors (id, user_id, name, age, personality, background, greeting, active)
			   VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
			   RETURNING id, user_id, name, age, personality, background, greeting, active, created_at, updated_at`

	var savedMentor model.Mentor
	err = tx.QueryRow(ctx, insert,
		mentor.ID, mentor.UserID, mentor.Name, mentor.Age,
		mentor.Personality, mentor.Background, mentor.Greeting,
	).Scan(
		&savedMentor.ID, &savedMentor.UserID, &savedMentor.Name, &savedMentor.Age,
		&savedMentor.Personality, &savedMentor.Background, &savedMentor.Greeting,
		&savedMentor.Active, &savedMentor.CreatedAt, &savedMentor.UpdatedAt,
	)
	if err != nil {
		return model.Mentor{}, fmt.Errorf("failed to create mentor: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Mentor{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return savedMentor, nil
}

func (r *MentorRepository) GetByID(ctx context.Context, id uuid.UUID) (model.Mentor, error) {
	var mentor model.Mentor
	query := `SELECT id, user_id, name, age, personality, background, greeting, active, created_at, updated_at
			  FROM mentors WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&mentor.ID, &mentor.UserID, &mentor.Name, &mentor.Age,
		&mentor.Personality, &mentor.Background, &mentor.Greeting,
		&mentor.Active, &mentor.CreatedAt, &mentor.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Mentor{}, model.ErrNotFound
		}
		return model.Mentor{}, fmt.Errorf("failed to get mentor by id: %w", err)
	}

	return mentor, nil
}

func (r *MentorRepository) GetActiveByUserID(ctx context.Context, userID uuid.UUID) (model.Mentor, error) {
	var mentor model.Mentor
	query := `SELECT id, user_id, name, age, personality, background, greeting, active, created_at, updated_at
			  FROM mentors WHERE user_id = $1 AND active`

	err := r.db.QueryRow(ctx, query, userID).Scan(
		&mentor.ID, &mentor.UserID, &mentor.Name, &mentor.Age,
		&mentor.Personality, &mentor.Background, &mentor.Greeting,
		&mentor.Active, &mentor.CreatedAt, &mentor.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Mentor{}, model.ErrNotFound
		}
		return model.Mentor{}, fmt.Errorf("failed to get active mentor: %w", err)
	}

	return mentor, nil
}
