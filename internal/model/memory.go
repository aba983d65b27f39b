package model

import (
	"context"

	"github.com/google/uuid"
)

// VectorStore is the semantic memory backend. Vectors are partitioned by
// mentor id; a search never returns turns belonging to another mentor.
type VectorStore interface {
	// Upsert stores the vector for a turn. Idempotent on turnID: re-upserting
	// overwrites rather than duplicates.
	Upsert(ctx context.Context, mentorID, turnID uuid.UUID, vector []float32, meta VectorMeta) error
	// Search returns up to k hits ordered by descending similarity, ties
	// broken by most recent turn first. Fails with ErrMemoryUnavailable when
	// the backend is unreachable.
	Search(ctx context.Context, mentorID uuid.UUID, queryVector []float32, k int) ([]Hit, error)
	// Remove deletes the vector for a turn. Used when the source turn is
	// deleted by retention policy.
	Remove(ctx context.Context, mentorID, turnID uuid.UUID) error
}

// VectorMeta carries searchable attributes stored alongside a vector.
type VectorMeta struct {
	Role Role
	Seq  int64
}

// Hit is a single vector search result.
type Hit struct {
	TurnID uuid.UUID
	Seq    int64
	Score  float32
}
