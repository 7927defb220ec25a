// Package themes generates ENEM-style essay prompts: a theme plus a few
// short motivating texts.
package themes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"essay-grader/internal/llm"
)

const suggestTemperature = 0.8

const suggestionPrompt = `You are a specialist in writing ENEM-style essay proposals.
Your task is to generate a fresh, relevant theme focused on challenges of contemporary Brazilian society.

=== THEME REQUIREMENTS ===
1. Follow the pattern "The democratization of...", "The challenge of...", "Ways to fight...", etc.
2. It must be a social, political, cultural or environmental problem in Brazil.
3. It must be fresh and non-repetitive (avoid worn-out themes).

=== MOTIVATING TEXT REQUIREMENTS ===
1. Provide 3 to 4 short paragraphs.
2. Include at least one statistic (plausible and coherent with the problem).
3. Include a social reflection or a reference to a sociological concept.

=== OUTPUT ===
Return strictly a JSON object with:
- "theme": string.
- "motivating_texts": list of strings.
Return only the JSON object, nothing else.`

type Suggestion struct {
	Theme           string   `json:"theme"`
	MotivatingTexts []string `json:"motivating_texts"`
}

// Generator is the slice of the provider client the suggester needs.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, temperature float64) (string, error)
}

type Suggester struct {
	gen   Generator
	retry llm.RetryPolicy
}

func NewSuggester(gen Generator, retry llm.RetryPolicy) *Suggester {
	return &Suggester{gen: gen, retry: retry}
}

func (s *Suggester) Suggest(ctx context.Context) (*Suggestion, error) {
	raw, err := s.retry.Do(ctx, func() (string, error) {
		return s.gen.GenerateJSON(ctx, suggestionPrompt, suggestTemperature)
	})
	if err != nil {
		return nil, fmt.Errorf("suggest theme: %w", err)
	}
	var sug Suggestion
	if err := json.Unmarshal([]byte(stripFences(raw)), &sug); err != nil {
		return nil, fmt.Errorf("decode theme suggestion: %w", err)
	}
	if sug.Theme == "" {
		return nil, fmt.Errorf("provider returned an empty theme")
	}
	return &sug, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
