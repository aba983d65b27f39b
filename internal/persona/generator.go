package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mentorlab/mentor-server/internal/logger"
	"github.com/mentorlab/mentor-server/internal/model"
)

// MaxBackgroundLen caps user background length to bound downstream prompt cost.
const MaxBackgroundLen = 4000

const generationMaxTokens = 512

const systemPrompt = `You create a personal mentor persona for a user based on their background and goals.
Respond with a single JSON object and nothing else, using exactly these keys:
{"name": string, "age": number, "background": string, "recent_events": string, "personality_style": string, "greeting": string}
The mentor should feel like a real person whose expertise matches the user's goals.
The greeting is the mentor's first message to the user.`

// Generator synthesizes a mentor persona from user-supplied background text.
// It makes exactly one completion call per invocation; retry policy belongs
// to the caller.
type Generator struct {
	ai     model.AIClient
	logger *logger.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(ai model.AIClient, logger *logger.Logger) *Generator {
	return &Generator{
		ai:     ai,
		logger: logger,
	}
}

// ValidateBackground normalizes user background text. Empty or over-length
// input fails with ErrInvalidBackground. Callers run it before spending
// quota or provider budget on the input.
func ValidateBackground(background string) (string, error) {
	background = strings.TrimSpace(background)
	if background == "" {
		return "", model.ErrInvalidBackground
	}
	if len(background) > MaxBackgroundLen {
		return "", fmt.Errorf("%w: background exceeds %d characters", model.ErrInvalidBackground, MaxBackgroundLen)
	}
	return background, nil
}

// Generate produces a validated persona draft. Empty or over-length input
// fails with ErrInvalidBackground before any provider call; provider faults
// and non-conforming output fail with ErrGenerationFailed.
func (g *Generator) Generate(ctx context.Context, background string) (model.PersonaDraft, error) {
	background, err := ValidateBackground(background)
	if err != nil {
		return model.PersonaDraft{}, err
	}

	content, err := g.ai.Complete(ctx, systemPrompt, background, generationMaxTokens)
	if err != nil {
		return model.PersonaDraft{}, fmt.Errorf("%w: %v", model.ErrGenerationFailed, err)
	}

	draft, err := parseDraft(content)
	if err != nil {
		g.logger.Warn("persona output rejected", "error", err)
		return model.PersonaDraft{}, fmt.Errorf("%w: %v", model.ErrGenerationFailed, err)
	}

	return draft, nil
}

// parseDraft decodes and validates the provider output. A persona with an
// empty name or personality is rejected rather than persisted.
func parseDraft(content string) (model.PersonaDraft, error) {
	content = stripCodeFence(content)

	var draft model.PersonaDraft
	if err := json.Unmarshal([]byte(content), &draft); err != nil {
		return model.PersonaDraft{}, fmt.Errorf("persona is not valid JSON: %w", err)
	}

	draft.Name = strings.TrimSpace(draft.Name)
	draft.PersonalityStyle = strings.TrimSpace(draft.PersonalityStyle)
	draft.Background = strings.TrimSpace(draft.Background)
	draft.RecentEvents = strings.TrimSpace(draft.RecentEvents)
	draft.Greeting = strings.TrimSpace(draft.Greeting)

	if draft.Name == "" {
		return model.PersonaDraft{}, fmt.Errorf("persona has empty name")
	}
	if draft.PersonalityStyle == "" {
		return model.PersonaDraft{}, fmt.Errorf("persona has empty personality")
	}

	return draft, nil
}

// stripCodeFence removes a markdown code fence the model sometimes wraps
// around JSON output.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
