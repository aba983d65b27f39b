package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mentorlab/mentor-server/internal/logger"
	"github.com/mentorlab/mentor-server/internal/model"
	"github.com/mentorlab/mentor-server/internal/persona"
)

// PersonaGenerator produces a mentor persona from user background text.
type PersonaGenerator interface {
	Generate(ctx context.Context, background string) (model.PersonaDraft, error)
}

// Mentor manages mentor persona lifecycle: creation, regeneration and lookup.
type Mentor struct {
	userStore   model.UserStore
	mentorStore model.MentorStore
	generator   PersonaGenerator
	encryptor   model.Encryptor
	gate        model.Gate
	logger      *logger.Logger
}

func NewMentor(
	userStore model.UserStore,
	mentorStore model.MentorStore,
	generator PersonaGenerator,
	encryptor model.Encryptor,
	gate model.Gate,
	logger *logger.Logger,
) *Mentor {
	return &Mentor{
		userStore:   userStore,
		mentorStore: mentorStore,
		generator:   generator,
		encryptor:   encryptor,
		gate:        gate,
		logger:      logger,
	}
}

// CreateMentor generates and persists a new mentor persona for the user,
// superseding any previously active one. Invalid input is rejected before
// the entitlement check, and the entitlement check runs before generation,
// so a failed attempt costs the user neither quota nor provider spend. A
// reservation consumed by a failure after the check is returned.
func (s *Mentor) CreateMentor(ctx context.Context, externalID, background, goal string) (model.MentorProfile, error) {
	background, err := persona.ValidateBackground(background)
	if err != nil {
		return model.MentorProfile{}, err
	}

	user, err := s.getOrCreateUser(ctx, externalID, background, goal)
	if err != nil {
		return model.MentorProfile{}, err
	}

	decision, err := s.gate.CheckMentorCreation(ctx, user)
	if err != nil {
		return model.MentorProfile{}, fmt.Errorf("failed to check entitlement: %w", err)
	}
	if !decision.Allowed {
		return model.MentorProfile{}, &model.EntitlementError{Reason: decision.Reason}
	}

	// The reservation is returned if creation fails past this point. The
	// release runs detached from the request context so a cancelled caller
	// cannot leak the reservation.
	created := false
	defer func() {
		if created {
			return
		}
		if err := s.gate.ReleaseMentorCreation(context.WithoutCancel(ctx), user); err != nil {
			s.logger.Error("failed to release mentor creation reservation", "user_id", user.ID, "error", err)
		}
	}()

	draft, err := s.generator.Generate(ctx, background)
	if err != nil {
		return model.MentorProfile{}, fmt.Errorf("failed to generate persona: %w", err)
	}

	mentorID := uuid.New()
	personality, err := s.encryptor.Encrypt([]byte(composePersonality(draft)), mentorID[:])
	if err != nil {
		return model.MentorProfile{}, fmt.Errorf("failed to encrypt persona: %w", err)
	}
	backgroundCipher, err := s.encryptor.Encrypt([]byte(draft.Background), mentorID[:])
	if err != nil {
		return model.MentorProfile{}, fmt.Errorf("failed to encrypt persona background: %w", err)
	}
	greeting, err := s.encryptor.Encrypt([]byte(draft.Greeting), mentorID[:])
	if err != nil {
		return model.MentorProfile{}, fmt.Errorf("failed to encrypt greeting: %w", err)
	}

	mentor, err := s.mentorStore.Create(ctx, model.Mentor{
		ID:          mentorID,
		UserID:      user.ID,
		Name:        draft.Name,
		Age:         draft.Age,
		Personality: personality,
		Background:  backgroundCipher,
		Greeting:    greeting,
	})
	if err != nil {
		return model.MentorProfile{}, fmt.Errorf("failed to create mentor: %w", err)
	}
	created = true

	s.logger.Info("mentor created", "user_id", user.ID, "mentor_id", mentor.ID)

	return model.MentorProfile{
		ID:          mentor.ID,
		UserID:      mentor.UserID,
		Name:        mentor.Name,
		Age:         mentor.Age,
		Personality: composePersonality(draft),
		Greeting:    draft.Greeting,
		CreatedAt:   mentor.CreatedAt,
	}, nil
}

// GetActiveMentor returns the user's active mentor with decrypted persona.
func (s *Mentor) GetActiveMentor(ctx context.Context, externalID string) (model.MentorProfile, error) {
	user, err := s.userStore.GetByExternalID(ctx, externalID)
	if err != nil {
		return model.MentorProfile{}, fmt.Errorf("failed to get user: %w", err)
	}

	mentor, err := s.mentorStore.GetActiveByUserID(ctx, user.ID)
	if err != nil {
		return model.MentorProfile{}, fmt.Errorf("failed to get active mentor: %w", err)
	}

	personality, err := s.encryptor.Decrypt(mentor.Personality, mentor.ID[:])
	if err != nil {
		return model.MentorProfile{}, fmt.Errorf("failed to decrypt persona: %w", err)
	}
	greeting, err := s.encryptor.Decrypt(mentor.Greeting, mentor.ID[:])
	if err != nil {
		return model.MentorProfile{}, fmt.Errorf("failed to decrypt greeting: %w", err)
	}

	return model.MentorProfile{
		ID:          mentor.ID,
		UserID:      mentor.UserID,
		Name:        mentor.Name,
		Age:         mentor.Age,
		Personality: string(personality),
		Greeting:    string(greeting),
		CreatedAt:   mentor.CreatedAt,
	}, nil
}

func (s *Mentor) getOrCreateUser(ctx context.Context, externalID, background, goal string) (model.User, error) {
	user, err := s.userStore.GetByExternalID(ctx, externalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	userID := uuid.New()
	backgroundCipher, err := s.encryptor.Encrypt([]byte(background), userID[:])
	if err != nil {
		return model.User{}, fmt.Errorf("failed to encrypt background: %w", err)
	}
	goalCipher, err := s.encryptor.Encrypt([]byte(goal), userID[:])
	if err != nil {
		return model.User{}, fmt.Errorf("failed to encrypt goal: %w", err)
	}

	user, err = s.userStore.Create(ctx, model.User{
		ID:         userID,
		ExternalID: externalID,
		Background: backgroundCipher,
		Goal:       goalCipher,
		Tier:       model.TierFree,
	})
	if err != nil {
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// composePersonality flattens the draft into the persona text used as the
// mentor's voice in system prompts.
func composePersonality(draft model.PersonaDraft) string {
	out := draft.PersonalityStyle
	if draft.Background != "" {
		out += "\nBackground: " + draft.Background
	}
	if draft.RecentEvents != "" {
		out += "\nRecently: " + draft.RecentEvents
	}
	return out
}
