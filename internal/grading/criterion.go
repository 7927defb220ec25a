package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"essay-grader/internal/llm"
	"essay-grader/internal/rubric"
)

// Generator is the slice of the provider client the graders need.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, temperature float64) (string, error)
	GenerateText(ctx context.Context, prompt string, temperature float64) (string, error)
}

// CriterionGrader asks the provider for one criterion verdict at a time.
// Rate limiting is absorbed here: the call retries per the policy and only
// ever returns a well-formed verdict, degrading to score 0 with an error
// marker on any non-rate-limit failure. No state is kept between calls.
type CriterionGrader struct {
	gen   Generator
	retry llm.RetryPolicy
}

func NewCriterionGrader(gen Generator, retry llm.RetryPolicy) *CriterionGrader {
	return &CriterionGrader{gen: gen, retry: retry}
}

func (g *CriterionGrader) Evaluate(ctx context.Context, essay, theme string, crit rubric.Criterion, persona rubric.Persona) CriterionVerdict {
	prompt := criterionPrompt(persona, crit, essay, theme)
	raw, err := g.retry.Do(ctx, func() (string, error) {
		return g.gen.GenerateJSON(ctx, prompt, persona.Temperature)
	})
	if err != nil {
		slog.Error("criterion evaluation failed", "criterion", crit.Number, "persona", persona.ID, "err", err)
		return degradedVerdict(crit.Number, err)
	}
	v, err := parseCriterionVerdict(raw, crit.Number)
	if err != nil {
		slog.Error("criterion response unparseable", "criterion", crit.Number, "persona", persona.ID, "err", err)
		return degradedVerdict(crit.Number, err)
	}
	return v
}

func degradedVerdict(criterion int, err error) CriterionVerdict {
	return CriterionVerdict{
		Criterion: criterion,
		Score:     0,
		Critique:  "evaluation unavailable",
		Rationale: fmt.Sprintf("systemic error: %v", err),
	}
}

type rawCriterionVerdict struct {
	Criterion int    `json:"criterion"`
	Critique  string `json:"critique"`
	Score     *int   `json:"score"`
	Rationale string `json:"rationale"`
}

func parseCriterionVerdict(raw string, want int) (CriterionVerdict, error) {
	var r rawCriterionVerdict
	if err := json.Unmarshal([]byte(stripFences(raw)), &r); err != nil {
		return CriterionVerdict{}, fmt.Errorf("decode verdict: %w", err)
	}
	if r.Score == nil {
		return CriterionVerdict{}, fmt.Errorf("verdict missing score")
	}
	// The model is told which criterion it is grading; trust the request,
	// not the echo.
	return CriterionVerdict{
		Criterion: want,
		Score:     rubric.SnapScore(*r.Score),
		Critique:  r.Critique,
		Rationale: r.Rationale,
	}, nil
}

// stripFences removes a markdown code fence some models wrap JSON in.
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
