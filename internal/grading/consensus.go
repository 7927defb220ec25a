package grading

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"golang.org/x/sync/errgroup"

	"essay-grader/internal/rubric"
)

// Discrepancy thresholds on the 0-200 per-criterion / 0-1000 total scale.
// Either condition alone triggers escalation to the supervisor.
const (
	totalGap     = 100
	criterionGap = 80
)

const (
	sourceTwoGraders = "average of graders 1 and 2"
	sourcePanel      = "panel consensus (average of the two closest scores)"
)

// Grader is what the consensus engine needs from an essay grader.
type Grader interface {
	Grade(ctx context.Context, essay, theme, personaID string) (GraderVerdict, error)
}

// Partial carries pre-computed verdicts for retry-after-partial-failure.
// A non-nil verdict means that grader is not re-invoked.
type Partial struct {
	GraderA    *GraderVerdict `json:"grader_a,omitempty"`
	GraderB    *GraderVerdict `json:"grader_b,omitempty"`
	Supervisor *GraderVerdict `json:"supervisor,omitempty"`
}

// Consensus runs two graders concurrently, tests for discrepancy, and
// escalates to a supervisor grader only on disagreement.
type Consensus struct {
	grader Grader
}

func NewConsensus(grader Grader) *Consensus {
	return &Consensus{grader: grader}
}

func (c *Consensus) Reconcile(ctx context.Context, essay, theme string, partial Partial) (*ConsensusResult, error) {
	var a, b GraderVerdict
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = c.verdictFor(gctx, essay, theme, rubric.PersonaGraderA, partial.GraderA)
		return err
	})
	g.Go(func() error {
		var err error
		b, err = c.verdictFor(gctx, essay, theme, rubric.PersonaGraderB, partial.GraderB)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !Discrepant(a, b) {
		slog.Info("no discrepancy, averaging graders", "total_a", a.TotalScore, "total_b", b.TotalScore)
		return averageVerdicts(a, b), nil
	}

	slog.Info("discrepancy detected, escalating to supervisor", "total_a", a.TotalScore, "total_b", b.TotalScore)
	sup, err := c.verdictFor(ctx, essay, theme, rubric.PersonaSupervisor, partial.Supervisor)
	if err != nil {
		return nil, err
	}
	return arbitrate(a, b, sup), nil
}

func (c *Consensus) verdictFor(ctx context.Context, essay, theme, personaID string, precomputed *GraderVerdict) (GraderVerdict, error) {
	if precomputed != nil {
		slog.Info("reusing pre-computed verdict", "persona", personaID)
		if err := precomputed.Validate(); err != nil {
			return GraderVerdict{}, fmt.Errorf("pre-computed verdict for %s: %w", personaID, err)
		}
		return *precomputed, nil
	}
	v, err := c.grader.Grade(ctx, essay, theme, personaID)
	if err != nil {
		return GraderVerdict{}, fmt.Errorf("grader %s: %w", personaID, err)
	}
	if err := v.Validate(); err != nil {
		return GraderVerdict{}, fmt.Errorf("grader %s produced invalid verdict: %w", personaID, err)
	}
	return v, nil
}

// Discrepant reports whether the two verdicts disagree beyond tolerance:
// totals more than 100 apart, or any single criterion more than 80 apart.
func Discrepant(a, b GraderVerdict) bool {
	if intAbs(a.TotalScore-b.TotalScore) > totalGap {
		return true
	}
	for i := range a.Criteria {
		if intAbs(a.Criteria[i].Score-b.Criteria[i].Score) > criterionGap {
			return true
		}
	}
	return false
}

func averageVerdicts(a, b GraderVerdict) *ConsensusResult {
	res := &ConsensusResult{
		SourceLabel: sourceTwoGraders,
		RawVerdicts: []GraderVerdict{a, b},
	}
	for i := range a.Criteria {
		ca, cb := a.Criteria[i], b.Criteria[i]
		mean := float64(ca.Score+cb.Score) / 2
		res.FinalCriteria = append(res.FinalCriteria, FinalCriterion{
			Criterion: ca.Criterion,
			Score:     mean,
			Justification: fmt.Sprintf("[Average C%d] Grader 1 (%d): %s | Grader 2 (%d): %s",
				ca.Criterion, ca.Score, ca.Rationale, cb.Score, cb.Rationale),
		})
		res.FinalTotal += mean
	}
	return res
}

// arbitrate resolves a discrepancy per criterion: among the three scores it
// averages the closest pair. On equal differences the supervisor pairs win,
// (A,Sup) first, then (B,Sup), then (A,B) as the last resort.
func arbitrate(a, b, sup GraderVerdict) *ConsensusResult {
	res := &ConsensusResult{
		SourceLabel: sourcePanel,
		RawVerdicts: []GraderVerdict{a, b, sup},
	}
	for i := range a.Criteria {
		s1 := float64(a.Criteria[i].Score)
		s2 := float64(b.Criteria[i].Score)
		s3 := float64(sup.Criteria[i].Score)

		d13 := math.Abs(s1 - s3)
		d23 := math.Abs(s2 - s3)
		d12 := math.Abs(s1 - s2)

		var score float64
		switch {
		case d13 <= d12 && d13 <= d23:
			score = (s1 + s3) / 2
		case d23 <= d12 && d23 <= d13:
			score = (s2 + s3) / 2
		default:
			score = (s1 + s2) / 2
		}

		num := a.Criteria[i].Criterion
		res.FinalCriteria = append(res.FinalCriteria, FinalCriterion{
			Criterion: num,
			Score:     score,
			Justification: fmt.Sprintf("[Consensus C%d] Panel scores: (%.0f, %.0f, %.0f). Final criterion score: %s.",
				num, s1, s2, s3, strconv.FormatFloat(score, 'f', -1, 64)),
		})
		res.FinalTotal += score
	}
	return res
}

func intAbs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
