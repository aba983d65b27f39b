package model

import "context"

// AIClient is the external generation capability. Implementations carry their
// own request timeouts; a timeout surfaces as an ordinary error of the call.
type AIClient interface {
	// Complete generates a reply for the given system and user prompts.
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
	// Embed converts text to its vector representation.
	Embed(ctx context.Context, text string) ([]float32, error)
}
