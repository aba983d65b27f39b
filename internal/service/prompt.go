package service

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mentorlab/mentor-server/internal/model"
)

// memorySnippet is a decrypted past turn selected for prompt context.
type memorySnippet struct {
	Seq   int64
	Score float32
	Role  model.Role
	Text  string
}

// estimateTokens approximates token count at four bytes per token. A rough
// overestimate is fine: the budget exists to bound provider cost, not to hit
// the context window exactly.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// fitMemories selects snippets that fit the token budget, dropping the
// lowest-similarity ones first. The survivors are returned in conversation
// order so the prompt reads chronologically.
func fitMemories(snippets []memorySnippet, budget int) []memorySnippet {
	byScore := slices.Clone(snippets)
	slices.SortFunc(byScore, func(a, b memorySnippet) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		// Equal similarity: prefer the more recent turn.
		if a.Seq > b.Seq {
			return -1
		}
		return 1
	})

	var kept []memorySnippet
	used := 0
	for _, sn := range byScore {
		cost := estimateTokens(sn.Text) + 4
		if used+cost > budget {
			continue
		}
		kept = append(kept, sn)
		used += cost
	}

	slices.SortFunc(kept, func(a, b memorySnippet) int {
		return int(a.Seq - b.Seq)
	})
	return kept
}

// assembleSystemPrompt builds the mentor's system prompt from the persona and
// the retrieved memories, keeping the whole prompt within the token budget.
func assembleSystemPrompt(name string, age int, personality string, snippets []memorySnippet, budget int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are %s", name)
	if age > 0 {
		fmt.Fprintf(&sb, ", %d years old", age)
	}
	sb.WriteString(", a personal mentor.\n")
	sb.WriteString(personality)
	sb.WriteString("\nStay in character. Be concrete and reference earlier conversation when it helps.\n")

	memoryBudget := budget - estimateTokens(sb.String())
	kept := fitMemories(snippets, memoryBudget)
	if len(kept) > 0 {
		sb.WriteString("\nRelevant earlier conversation:\n")
		for _, sn := range kept {
			fmt.Fprintf(&sb, "%s: %s\n", sn.Role, sn.Text)
		}
	}

	return sb.String()
}
