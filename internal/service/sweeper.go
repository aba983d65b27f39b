package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/google/uuid"

	"github.com/mentorlab/mentor-server/internal/logger"
	"github.com/mentorlab/mentor-server/internal/model"
)

const sweepConcurrency = 4

// Sweeper reconciles the vector store with the conversation log: turns whose
// embedding write was missed on the hot path are re-embedded and upserted on
// a fixed interval.
type Sweeper struct {
	turnStore model.TurnStore
	memory    model.VectorStore
	ai        model.AIClient
	encryptor model.Encryptor
	interval  time.Duration
	batchSize int
	logger    *logger.Logger
}

func NewSweeper(
	turnStore model.TurnStore,
	memory model.VectorStore,
	ai model.AIClient,
	encryptor model.Encryptor,
	interval time.Duration,
	batchSize int,
	logger *logger.Logger,
) *Sweeper {
	return &Sweeper{
		turnStore: turnStore,
		memory:    memory,
		ai:        ai,
		encryptor: encryptor,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("embedding sweep failed", "error", err)
			}
		}
	}
}

// Sweep processes one batch of unembedded turns.
func (s *Sweeper) Sweep(ctx context.Context) error {
	turns, err := s.turnStore.GetUnembedded(ctx, s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to load unembedded turns: %w", err)
	}
	if len(turns) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)

	for _, turn := range turns {
		g.Go(func() error {
			if err := s.embedTurn(gctx, turn); err != nil {
				// One bad turn must not stall the rest of the batch.
				s.logger.Warn("failed to embed turn", "turn_id", turn.ID, "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info("embedding sweep complete", "batch", len(turns))
	return nil
}

func (s *Sweeper) embedTurn(ctx context.Context, turn model.Turn) error {
	plaintext, err := s.encryptor.Decrypt(turn.Content, turn.ID[:])
	if err != nil {
		// The turn can never be embedded; mark it so the sweep stops
		// retrying a record that is fatal on its own.
		if markErr := s.turnStore.MarkEmbedded(ctx, []uuid.UUID{turn.ID}); markErr != nil {
			return fmt.Errorf("failed to retire undecryptable turn: %w", markErr)
		}
		return fmt.Errorf("turn content undecryptable: %w", err)
	}

	vector, err := s.ai.Embed(ctx, string(plaintext))
	if err != nil {
		return fmt.Errorf("failed to embed: %w", err)
	}

	meta := model.VectorMeta{Role: turn.Role, Seq: turn.Seq}
	if err := s.memory.Upsert(ctx, turn.MentorID, turn.ID, vector, meta); err != nil {
		return fmt.Errorf("failed to upsert vector: %w", err)
	}

	if err := s.turnStore.MarkEmbedded(ctx, []uuid.UUID{turn.ID}); err != nil {
		return fmt.Errorf("failed to mark embedded: %w", err)
	}

	return nil
}
