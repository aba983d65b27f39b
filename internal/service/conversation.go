package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/mentorlab/mentor-server/internal/logger"
	"github.com/mentorlab/mentor-server/internal/model"
)

// ConversationConfig tunes retrieval and generation.
type ConversationConfig struct {
	TopK         int
	PromptBudget int
	MaxTokens    int
	MaxRetries   int
}

// ConversationResult carries a generated reply back to the caller.
// Persisted is false when the conversation log write failed after the reply
// was generated; the reply is delivered regardless.
type ConversationResult struct {
	Reply     string
	Persisted bool
}

// Conversation orchestrates a single mentor turn: entitlement, memory
// retrieval, prompt assembly, completion and dual-write persistence.
type Conversation struct {
	userStore   model.UserStore
	mentorStore model.MentorStore
	turnStore   model.TurnStore
	memory      model.VectorStore
	ai          model.AIClient
	encryptor   model.Encryptor
	gate        model.Gate
	conf        ConversationConfig
	logger      *logger.Logger

	mu          sync.Mutex
	mentorLocks map[uuid.UUID]*sync.Mutex
}

func NewConversation(
	userStore model.UserStore,
	mentorStore model.MentorStore,
	turnStore model.TurnStore,
	memory model.VectorStore,
	ai model.AIClient,
	encryptor model.Encryptor,
	gate model.Gate,
	conf ConversationConfig,
	logger *logger.Logger,
) *Conversation {
	return &Conversation{
		userStore:   userStore,
		mentorStore: mentorStore,
		turnStore:   turnStore,
		memory:      memory,
		ai:          ai,
		encryptor:   encryptor,
		gate:        gate,
		conf:        conf,
		logger:      logger,
		mentorLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// SendMessage processes one user message and returns the mentor's reply.
// Concurrent messages to the same mentor are serialized so the conversation
// log keeps a single coherent order.
func (s *Conversation) SendMessage(ctx context.Context, externalID, message string) (ConversationResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return ConversationResult{}, fmt.Errorf("message is empty")
	}

	user, err := s.userStore.GetByExternalID(ctx, externalID)
	if err != nil {
		return ConversationResult{}, fmt.Errorf("failed to get user: %w", err)
	}

	mentor, err := s.mentorStore.GetActiveByUserID(ctx, user.ID)
	if err != nil {
		return ConversationResult{}, fmt.Errorf("failed to get active mentor: %w", err)
	}

	unlock := s.lockMentor(mentor.ID)
	defer unlock()

	decision, err := s.gate.CheckTurn(ctx, user)
	if err != nil {
		return ConversationResult{}, fmt.Errorf("failed to check entitlement: %w", err)
	}
	if !decision.Allowed {
		return ConversationResult{}, &model.EntitlementError{Reason: decision.Reason}
	}

	// The reservation is returned if the turn fails before a reply exists.
	// The release runs detached from the request context: a turn that failed
	// because the caller cancelled must still return its reservation.
	delivered := false
	defer func() {
		if delivered {
			return
		}
		if err := s.gate.ReleaseTurn(context.WithoutCancel(ctx), user); err != nil {
			s.logger.Error("failed to release turn reservation", "user_id", user.ID, "error", err)
		}
	}()

	personality, err := s.encryptor.Decrypt(mentor.Personality, mentor.ID[:])
	if err != nil {
		return ConversationResult{}, fmt.Errorf("failed to decrypt mentor persona: %w", err)
	}

	queryVector, snippets := s.retrieve(ctx, mentor.ID, message)

	systemPrompt := assembleSystemPrompt(mentor.Name, mentor.Age, string(personality), snippets, s.conf.PromptBudget)

	reply, err := s.complete(ctx, systemPrompt, message)
	if err != nil {
		return ConversationResult{}, fmt.Errorf("%w: %v", model.ErrGenerationFailed, err)
	}
	delivered = true

	// The reply exists now and is never lost: persistence failures are
	// reported on the result, not by withholding the reply.
	userTurn, mentorTurn, err := s.persistTurns(ctx, mentor.ID, message, reply)
	if err != nil {
		s.logger.Error("failed to persist conversation turns", "mentor_id", mentor.ID, "error", fmt.Errorf("%w: %v", model.ErrPersistenceFailed, err))
		return ConversationResult{Reply: reply, Persisted: false}, nil
	}

	s.index(ctx, mentor.ID, userTurn, message, queryVector)
	s.index(ctx, mentor.ID, mentorTurn, reply, nil)

	return ConversationResult{Reply: reply, Persisted: true}, nil
}

// DeleteTurn removes one turn from the user's active conversation log and
// tombstones its vector. The turn must belong to the user's active mentor.
func (s *Conversation) DeleteTurn(ctx context.Context, externalID string, turnID uuid.UUID) error {
	user, err := s.userStore.GetByExternalID(ctx, externalID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	mentor, err := s.mentorStore.GetActiveByUserID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to get active mentor: %w", err)
	}

	turns, err := s.turnStore.GetByIDs(ctx, mentor.ID, []uuid.UUID{turnID})
	if err != nil {
		return fmt.Errorf("failed to get turn: %w", err)
	}
	if len(turns) == 0 {
		return model.ErrNotFound
	}

	if err := s.turnStore.Delete(ctx, turnID); err != nil {
		return fmt.Errorf("failed to delete turn: %w", err)
	}

	// A dangling vector is harmless: retrieval resolves hits against the log
	// and a missing turn simply drops out.
	if err := s.memory.Remove(ctx, mentor.ID, turnID); err != nil {
		s.logger.Warn("failed to remove turn vector", "turn_id", turnID, "error", err)
	}

	return nil
}

// lockMentor serializes turns per mentor.
func (s *Conversation) lockMentor(mentorID uuid.UUID) func() {
	s.mu.Lock()
	lock, ok := s.mentorLocks[mentorID]
	if !ok {
		lock = &sync.Mutex{}
		s.mentorLocks[mentorID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// retrieve embeds the message and searches the mentor's memory. Retrieval is
// best effort: on any failure the turn proceeds without memory context.
func (s *Conversation) retrieve(ctx context.Context, mentorID uuid.UUID, message string) ([]float32, []memorySnippet) {
	queryVector, err := s.ai.Embed(ctx, message)
	if err != nil {
		s.logger.Warn("embedding failed, proceeding without memory", "mentor_id", mentorID, "error", err)
		return nil, nil
	}

	hits, err := s.memory.Search(ctx, mentorID, queryVector, s.conf.TopK)
	if err != nil {
		s.logger.Warn("memory search failed, proceeding without memory", "mentor_id", mentorID, "error", err)
		return queryVector, nil
	}
	if len(hits) == 0 {
		return queryVector, nil
	}

	ids := make([]uuid.UUID, 0, len(hits))
	scores := make(map[uuid.UUID]float32, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.TurnID)
		scores[hit.TurnID] = hit.Score
	}

	turns, err := s.turnStore.GetByIDs(ctx, mentorID, ids)
	if err != nil {
		s.logger.Warn("failed to load remembered turns, proceeding without memory", "mentor_id", mentorID, "error", err)
		return queryVector, nil
	}

	snippets := make([]memorySnippet, 0, len(turns))
	for _, turn := range turns {
		plaintext, err := s.encryptor.Decrypt(turn.Content, turn.ID[:])
		if err != nil {
			// Fatal for this turn only; the conversation goes on.
			s.logger.Error("skipping undecryptable turn", "turn_id", turn.ID, "error", err)
			continue
		}
		snippets = append(snippets, memorySnippet{
			Seq:   turn.Seq,
			Score: scores[turn.ID],
			Role:  turn.Role,
			Text:  string(plaintext),
		})
	}

	return queryVector, snippets
}

// complete calls the provider with exponential backoff on transient failures.
func (s *Conversation) complete(ctx context.Context, systemPrompt, message string) (string, error) {
	var reply string
	operation := func() error {
		var err error
		reply, err = s.ai.Complete(ctx, systemPrompt, message, s.conf.MaxTokens)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.conf.MaxRetries)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}

	return reply, nil
}

// persistTurns appends the user message and the mentor reply to the encrypted
// conversation log.
func (s *Conversation) persistTurns(ctx context.Context, mentorID uuid.UUID, message, reply string) (model.Turn, model.Turn, error) {
	userTurn, err := s.appendTurn(ctx, mentorID, model.RoleUser, message)
	if err != nil {
		return model.Turn{}, model.Turn{}, err
	}

	mentorTurn, err := s.appendTurn(ctx, mentorID, model.RoleMentor, reply)
	if err != nil {
		return model.Turn{}, model.Turn{}, err
	}

	return userTurn, mentorTurn, nil
}

func (s *Conversation) appendTurn(ctx context.Context, mentorID uuid.UUID, role model.Role, text string) (model.Turn, error) {
	id := uuid.New()
	ciphertext, err := s.encryptor.Encrypt([]byte(text), id[:])
	if err != nil {
		return model.Turn{}, fmt.Errorf("failed to encrypt turn: %w", err)
	}

	turn, err := s.turnStore.Append(ctx, model.Turn{
		ID:       id,
		MentorID: mentorID,
		Role:     role,
		Content:  ciphertext,
	})
	if err != nil {
		return model.Turn{}, fmt.Errorf("failed to append turn: %w", err)
	}

	return turn, nil
}

// index writes the turn's vector to memory and marks the turn embedded.
// Best effort: a missed write is picked up later by the reconciliation sweep.
func (s *Conversation) index(ctx context.Context, mentorID uuid.UUID, turn model.Turn, text string, vector []float32) {
	if vector == nil {
		var err error
		vector, err = s.ai.Embed(ctx, text)
		if err != nil {
			s.logger.Warn("failed to embed turn, left for sweep", "turn_id", turn.ID, "error", err)
			return
		}
	}

	meta := model.VectorMeta{Role: turn.Role, Seq: turn.Seq}
	if err := s.memory.Upsert(ctx, mentorID, turn.ID, vector, meta); err != nil {
		s.logger.Warn("failed to upsert turn vector, left for sweep", "turn_id", turn.ID, "error", err)
		return
	}

	if err := s.turnStore.MarkEmbedded(ctx, []uuid.UUID{turn.ID}); err != nil {
		s.logger.Warn("failed to mark turn embedded", "turn_id", turn.ID, "error", err)
	}
}
