package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/mentorlab/mentor-server/internal/logger"
	"github.com/mentorlab/mentor-server/internal/model"
)

// Export renders encrypted transcript exports of a mentor's conversation log
// and stores them as opaque blobs in object storage.
type Export struct {
	userStore   model.UserStore
	mentorStore model.MentorStore
	turnStore   model.TurnStore
	encryptor   model.Encryptor
	storage     model.Storage
	logger      *logger.Logger
}

func NewExport(
	userStore model.UserStore,
	mentorStore model.MentorStore,
	turnStore model.TurnStore,
	encryptor model.Encryptor,
	storage model.Storage,
	logger *logger.Logger,
) *Export {
	return &Export{
		userStore:   userStore,
		mentorStore: mentorStore,
		turnStore:   turnStore,
		encryptor:   encryptor,
		storage:     storage,
		logger:      logger,
	}
}

// ExportTranscript writes the full transcript of the user's active mentor to
// object storage, encrypted under the mentor's context, and returns the
// object key.
func (s *Export) ExportTranscript(ctx context.Context, externalID string) (string, error) {
	user, err := s.userStore.GetByExternalID(ctx, externalID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	mentor, err := s.mentorStore.GetActiveByUserID(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("failed to get active mentor: %w", err)
	}

	turns, err := s.turnStore.GetByMentorID(ctx, mentor.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load turns: %w", err)
	}

	transcript := s.renderTranscript(mentor, turns)

	ciphertext, err := s.encryptor.Encrypt(transcript, mentor.ID[:])
	if err != nil {
		return "", fmt.Errorf("failed to encrypt transcript: %w", err)
	}

	key := fmt.Sprintf("exports/%s/%s-%d", user.ID, mentor.ID, time.Now().Unix())
	if err := s.storage.Upload(ctx, key, bytes.NewReader(ciphertext)); err != nil {
		return "", fmt.Errorf("failed to upload transcript: %w", err)
	}

	s.logger.Info("transcript exported", "mentor_id", mentor.ID, "key", key, "turns", len(turns))

	return key, nil
}

// renderTranscript decrypts each turn into a plain-text transcript. Turns that
// fail authentication are skipped with a marker rather than aborting the
// export.
func (s *Export) renderTranscript(mentor model.Mentor, turns []model.Turn) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Conversation with %s\n\n", mentor.Name)

	for _, turn := range turns {
		plaintext, err := s.encryptor.Decrypt(turn.Content, turn.ID[:])
		if err != nil {
			s.logger.Error("skipping undecryptable turn in export", "turn_id", turn.ID, "error", err)
			fmt.Fprintf(&buf, "[%d] %s: <unreadable>\n", turn.Seq, turn.Role)
			continue
		}
		fmt.Fprintf(&buf, "[%d] %s: %s\n", turn.Seq, turn.Role, plaintext)
	}

	return buf.Bytes()
}
