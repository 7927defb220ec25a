package grading

import (
	"context"
	"log/slog"
	"sort"

	"essay-grader/internal/llm"
	"essay-grader/internal/rubric"
)

const (
	commentTemperature = 0.7
	commentFallback    = "Could not generate the final comment."
)

// EssayGrader produces one grader's full verdict: the five criteria graded
// one at a time, then an overall comment. Criteria are never graded in
// parallel; the provider rate limit is shared across personas.
type EssayGrader struct {
	criterion *CriterionGrader
	gen       Generator
	retry     llm.RetryPolicy
}

func NewEssayGrader(gen Generator, retry llm.RetryPolicy) *EssayGrader {
	return &EssayGrader{
		criterion: NewCriterionGrader(gen, retry),
		gen:       gen,
		retry:     retry,
	}
}

func (g *EssayGrader) Grade(ctx context.Context, essay, theme, personaID string) (GraderVerdict, error) {
	persona := rubric.PersonaByID(personaID)
	slog.Info("starting correction", "persona", persona.ID)

	criteria := make([]CriterionVerdict, 0, rubric.NumCriteria)
	for _, crit := range rubric.Criteria() {
		if err := ctx.Err(); err != nil {
			return GraderVerdict{}, err
		}
		slog.Info("grading criterion", "persona", persona.ID, "criterion", crit.Number)
		criteria = append(criteria, g.criterion.Evaluate(ctx, essay, theme, crit, persona))
	}

	// Downstream consumers index criteria by position.
	sort.Slice(criteria, func(i, j int) bool { return criteria[i].Criterion < criteria[j].Criterion })

	total := 0
	for _, c := range criteria {
		if c.Score > 0 {
			total += c.Score
		}
	}

	v := GraderVerdict{
		PersonaID:      persona.ID,
		Criteria:       criteria,
		TotalScore:     total,
		OverallComment: g.overallComment(ctx, criteria),
	}
	slog.Info("correction done", "persona", persona.ID, "total", v.TotalScore)
	return v, nil
}

func (g *EssayGrader) overallComment(ctx context.Context, criteria []CriterionVerdict) string {
	out, err := g.retry.Do(ctx, func() (string, error) {
		return g.gen.GenerateText(ctx, summaryPrompt(criteria), commentTemperature)
	})
	if err != nil {
		slog.Error("overall comment generation failed", "err", err)
		return commentFallback
	}
	return out
}
