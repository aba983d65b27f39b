package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorlab/mentor-server/internal/model"
)

func TestChromemStore_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	store := New()
	mentorID := uuid.New()

	turnA := uuid.New()
	turnB := uuid.New()

	require.NoError(t, store.Upsert(ctx, mentorID, turnA, []float32{1, 0, 0}, model.VectorMeta{Role: model.RoleUser, Seq: 1}))
	require.NoError(t, store.Upsert(ctx, mentorID, turnB, []float32{0, 1, 0}, model.VectorMeta{Role: model.RoleMentor, Seq: 2}))

	hits, err := store.Search(ctx, mentorID, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, turnA, hits[0].TurnID)
	assert.Equal(t, int64(1), hits[0].Seq)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestChromemStore_MentorIsolation(t *testing.T) {
	ctx := context.Background()
	store := New()

	mentorA := uuid.New()
	mentorB := uuid.New()
	turnA := uuid.New()
	turnB := uuid.New()

	require.NoError(t, store.Upsert(ctx, mentorA, turnA, []float32{1, 0, 0}, model.VectorMeta{Seq: 1}))
	require.NoError(t, store.Upsert(ctx, mentorB, turnB, []float32{1, 0, 0}, model.VectorMeta{Seq: 1}))

	hits, err := store.Search(ctx, mentorA, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, turnA, hits[0].TurnID)

	for _, hit := range hits {
		assert.NotEqual(t, turnB, hit.TurnID)
	}
}

func TestChromemStore_UpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	store := New()
	mentorID := uuid.New()
	turnID := uuid.New()

	require.NoError(t, store.Upsert(ctx, mentorID, turnID, []float32{1, 0, 0}, model.VectorMeta{Seq: 1}))
	require.NoError(t, store.Upsert(ctx, mentorID, turnID, []float32{0, 1, 0}, model.VectorMeta{Seq: 1}))

	hits, err := store.Search(ctx, mentorID, []float32{0, 1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, turnID, hits[0].TurnID)
}

func TestChromemStore_TieBreakMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	store := New()
	mentorID := uuid.New()

	older := uuid.New()
	newer := uuid.New()

	// Identical vectors produce identical similarity scores.
	require.NoError(t, store.Upsert(ctx, mentorID, older, []float32{1, 1, 0}, model.VectorMeta{Seq: 1}))
	require.NoError(t, store.Upsert(ctx, mentorID, newer, []float32{1, 1, 0}, model.VectorMeta{Seq: 2}))

	hits, err := store.Search(ctx, mentorID, []float32{1, 1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, newer, hits[0].TurnID)
	assert.Equal(t, older, hits[1].TurnID)
}

func TestChromemStore_EmptyCollection(t *testing.T) {
	ctx := context.Background()
	store := New()

	hits, err := store.Search(ctx, uuid.New(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestChromemStore_KClamped(t *testing.T) {
	ctx := context.Background()
	store := New()
	mentorID := uuid.New()

	for i := 0; i < 25; i++ {
		vec := []float32{float32(i), 1, 0}
		require.NoError(t, store.Upsert(ctx, mentorID, uuid.New(), vec, model.VectorMeta{Seq: int64(i)}))
	}

	hits, err := store.Search(ctx, mentorID, []float32{1, 1, 0}, 100)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(hits), maxSearchResults)
}

func TestChromemStore_Remove(t *testing.T) {
	ctx := context.Background()
	store := New()
	mentorID := uuid.New()
	turnID := uuid.New()

	require.NoError(t, store.Upsert(ctx, mentorID, turnID, []float32{1, 0, 0}, model.VectorMeta{Seq: 1}))
	require.NoError(t, store.Remove(ctx, mentorID, turnID))

	hits, err := store.Search(ctx, mentorID, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
