package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/mentorlab/mentor-server/internal/model"
)

var _ model.VectorStore = (*ChromemStore)(nil)

// ChromemStore implements the vector memory backend on chromem-go, an
// embedded pure-Go vector database. Each mentor gets its own collection so
// a search can never cross mentor boundaries. Only turn ids and metadata are
// stored; message content stays in the encrypted conversation log.
type ChromemStore struct {
	db          *chromem.DB
	collections map[uuid.UUID]*chromem.Collection
	mu          sync.RWMutex
}

// maxSearchResults caps k to bound prompt size downstream.
const maxSearchResults = 20

// New creates an in-memory store.
func New() *ChromemStore {
	return &ChromemStore{
		db:          chromem.NewDB(),
		collections: make(map[uuid.UUID]*chromem.Collection),
	}
}

// NewPersistent creates a store persisted under path.
func NewPersistent(path string) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open persistent vector db: %w", err)
	}
	return &ChromemStore{
		db:          db,
		collections: make(map[uuid.UUID]*chromem.Collection),
	}, nil
}

func (s *ChromemStore) getOrCreateCollection(mentorID uuid.UUID) (*chromem.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[mentorID]
	s.mu.RUnlock()
	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock.
	if col, exists := s.collections[mentorID]; exists {
		return col, nil
	}

	col, err := s.db.GetOrCreateCollection(fmt.Sprintf("mentor_%s", mentorID), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	s.collections[mentorID] = col
	return col, nil
}

// Upsert stores the vector for a turn. Idempotent on turnID: the previous
// document with the same id is replaced.
func (s *ChromemStore) Upsert(ctx context.Context, mentorID, turnID uuid.UUID, vector []float32, meta model.VectorMeta) error {
	col, err := s.getOrCreateCollection(mentorID)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrMemoryUnavailable, err)
	}

	// Delete first so re-upserting the same turn overwrites, not duplicates.
	_ = col.Delete(ctx, nil, nil, turnID.String())

	doc := chromem.Document{
		ID:        turnID.String(),
		Embedding: vector,
		Content:   turnID.String(),
		Metadata: map[string]string{
			"role": string(meta.Role),
			"seq":  strconv.FormatInt(meta.Seq, 10),
		},
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("%w: %v", model.ErrMemoryUnavailable, err)
	}

	return nil
}

// Search returns up to k hits from the mentor's collection only, ordered by
// descending similarity, ties broken by most recent turn first.
func (s *ChromemStore) Search(ctx context.Context, mentorID uuid.UUID, queryVector []float32, k int) ([]model.Hit, error) {
	col, err := s.getOrCreateCollection(mentorID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMemoryUnavailable, err)
	}

	if k <= 0 || k > maxSearchResults {
		k = maxSearchResults
	}
	if count := col.Count(); count < k {
		k = count
	}
	if k == 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, queryVector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMemoryUnavailable, err)
	}

	hits := make([]model.Hit, 0, len(results))
	for _, result := range results {
		turnID, err := uuid.Parse(result.ID)
		if err != nil {
			continue
		}
		seq, _ := strconv.ParseInt(result.Metadata["seq"], 10, 64)
		hits = append(hits, model.Hit{
			TurnID: turnID,
			Seq:    seq,
			Score:  result.Similarity,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Seq > hits[j].Seq
	})

	return hits, nil
}

// Remove deletes the vector for a turn. Used by retention to clean up
// vectors whose source turn was deleted.
func (s *ChromemStore) Remove(ctx context.Context, mentorID, turnID uuid.UUID) error {
	col, err := s.getOrCreateCollection(mentorID)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrMemoryUnavailable, err)
	}

	if err := col.Delete(ctx, nil, nil, turnID.String()); err != nil {
		return fmt.Errorf("%w: %v", model.ErrMemoryUnavailable, err)
	}

	return nil
}
