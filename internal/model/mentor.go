package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MentorStore defines persistence operations for mentor personas.
type MentorStore interface {
	// Create inserts the persona and deactivates any previously active persona
	// of the same user in the same transaction. Regeneration supersedes, it
	// never mutates a prior persona.
	Create(ctx context.Context, mentor Mentor) (Mentor, error)
	GetByID(ctx context.Context, id uuid.UUID) (Mentor, error)
	GetActiveByUserID(ctx context.Context, userID uuid.UUID) (Mentor, error)
}

// Mentor represents an AI-generated mentor persona. Personality, background
// snapshot and greeting are stored encrypted.
type Mentor struct {
	UserID      uuid.UUID
	ID          uuid.UUID
	Name        string
	Age         int
	Personality []byte
	Background  []byte
	Greeting    []byte
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PersonaDraft is the validated output of the profile generator before
// encryption and persistence.
type PersonaDraft struct {
	Name             string `json:"name"`
	Age              int    `json:"age"`
	Background       string `json:"background"`
	RecentEvents     string `json:"recent_events"`
	PersonalityStyle string `json:"personality_style"`
	Greeting         string `json:"greeting"`
}

// MentorProfile is a persona with plaintext fields, returned to callers.
type MentorProfile struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	Age         int
	Personality string
	Greeting    string
	CreatedAt   time.Time
}
