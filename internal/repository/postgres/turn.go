package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mentorlab/mentor-server/internal/model"
)

var _ model.TurnStore = (*TurnRepository)(nil)

type TurnRepository struct {
	db *Connection
}

func NewTurnRepository(db *Connection) *TurnRepository {
	return &TurnRepository{
		db: db,
	}
}

// Append inserts the turn with the next sequence number for its mentor.
// The sequence is assigned inside the INSERT so the UNIQUE (mentor_id, seq)
// constraint rejects a concurrent writer rather than producing duplicates.
func (r *TurnRepository) Append(ctx context.Context, turn model.Turn) (model.Turn, error) {
	query := `INSERT INTO conversation_turns (id, mentor_id, role, content, seq)
			  SELECT $1, $2, $3, $4, COALESCE(MAX(seq), 0) + 1
			  FROM conversation_turns WHERE mentor_id = $2
			  RETURNING id, mentor_id, role, content, seq, embedded_at, created_at`

	var savedTurn model.Turn
	err := r.db.QueryRow(ctx, query,
		turn.ID, turn.MentorID, string(turn.Role), turn.Content,
	).Scan(
		&savedTurn.ID, &savedTurn.MentorID, &savedTurn.Role, &savedTurn.Content,
		&savedTurn.Seq, &savedTurn.EmbeddedAt, &savedTurn.CreatedAt,
	)
	if err != nil {
		return model.Turn{}, fmt.Errorf("failed to append turn: %w", err)
	}

	return savedTurn, nil
}

func (r *TurnRepository) GetByIDs(ctx context.Context, mentorID uuid.UUID, ids []uuid.UUID) ([]model.Turn, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT id, mentor_id, role, content, seq, embedded_at, created_at
			  FROM conversation_turns
			  WHERE mentor_id = $1 AND id = ANY($2)
			  ORDER BY seq ASC`

	rows, err := r.db.Query(ctx, query, mentorID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get turns by ids: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func (r *TurnRepository) GetByMentorID(ctx context.Context, mentorID uuid.UUID) ([]model.Turn, error) {
	query := `SELECT id, mentor_id, role, content, seq, embedded_at, created_at
			  FROM conversation_turns
			  WHERE mentor_id = $1
			  ORDER BY seq ASC`

	rows, err := r.db.Query(ctx, query, mentorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get turns by mentor id: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func (r *TurnRepository) GetUnembedded(ctx context.Context, limit int) ([]model.Turn, error) {
	query := `SELECT id, mentor_id, role, content, seq, embedded_at, created_at
			  FROM conversation_turns
			  WHERE embedded_at IS NULL
			  ORDER BY created_at ASC
			  LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get unembedded turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func (r *TurnRepository) MarkEmbedded(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE conversation_turns SET embedded_at = NOW() WHERE id = ANY($1)`
	if _, err := r.db.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("failed to mark turns embedded: %w", err)
	}
	return nil
}

func (r *TurnRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM conversation_turns WHERE id = $1`

	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete turn: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func scanTurns(rows pgx.Rows) ([]model.Turn, error) {
	var turns []model.Turn
	for rows.Next() {
		var turn model.Turn
		err := rows.Scan(
			&turn.ID, &turn.MentorID, &turn.Role, &turn.Content,
			&turn.Seq, &turn.EmbeddedAt, &turn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return turns, nil
}
