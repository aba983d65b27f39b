package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TurnStore defines persistence operations for conversation turns.
// The log is append-only; turns are never updated except to record that
// their embedding has been written to the vector store.
type TurnStore interface {
	// Append inserts the turn with the next sequence number for its mentor
	// and returns the stored turn. Sequence numbers are strictly increasing
	// per mentor with no duplicates.
	Append(ctx context.Context, turn Turn) (Turn, error)
	GetByIDs(ctx context.Context, mentorID uuid.UUID, ids []uuid.UUID) ([]Turn, error)
	GetByMentorID(ctx context.Context, mentorID uuid.UUID) ([]Turn, error)
	GetUnembedded(ctx context.Context, limit int) ([]Turn, error)
	MarkEmbedded(ctx context.Context, ids []uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Role enumerates who authored a conversation turn.
type Role string

const (
	// RoleUser is a message written by the user.
	RoleUser Role = "user"
	// RoleMentor is a reply produced by the mentor persona.
	RoleMentor Role = "mentor"
)

// Turn represents one message in a mentor-scoped dialogue. Content is stored
// encrypted; EmbeddedAt is nil until the turn's vector has been upserted.
type Turn struct {
	ID         uuid.UUID
	MentorID   uuid.UUID
	Role       Role
	Content    []byte
	Seq        int64
	EmbeddedAt *time.Time
	CreatedAt  time.Time
}
