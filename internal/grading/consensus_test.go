package grading

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"essay-grader/internal/rubric"
)

// mockVerdict mirrors the shape graders produce; the total is set explicitly
// so threshold tests can probe boundaries independent of the criteria.
func mockVerdict(persona string, total int, scores ...int) GraderVerdict {
	if len(scores) == 0 {
		scores = []int{120, 120, 120, 120, 120}
	}
	v := GraderVerdict{PersonaID: persona, TotalScore: total}
	for i, s := range scores {
		v.Criteria = append(v.Criteria, CriterionVerdict{
			Criterion: i + 1,
			Score:     s,
			Rationale: "mock rationale",
		})
	}
	return v
}

// consistentVerdict recomputes the total from the scores so Validate passes.
func consistentVerdict(persona string, scores ...int) GraderVerdict {
	total := 0
	for _, s := range scores {
		total += s
	}
	return mockVerdict(persona, total, scores...)
}

type stubGrader struct {
	calls    atomic.Int64
	verdicts map[string]GraderVerdict
	err      error
}

func (s *stubGrader) Grade(ctx context.Context, essay, theme, personaID string) (GraderVerdict, error) {
	s.calls.Add(1)
	if s.err != nil {
		return GraderVerdict{}, s.err
	}
	return s.verdicts[personaID], nil
}

func TestDiscrepantTotals(t *testing.T) {
	// Difference > 100
	assert.True(t, Discrepant(mockVerdict("a", 800), mockVerdict("b", 600)))

	// Difference == 100 is within tolerance
	assert.False(t, Discrepant(mockVerdict("a", 800), mockVerdict("b", 700)))
}

func TestDiscrepantCriterion(t *testing.T) {
	a := mockVerdict("a", 600, 200, 120, 120, 120, 120)
	b := mockVerdict("b", 600, 80, 120, 120, 120, 120) // diff 120 on criterion 1
	assert.True(t, Discrepant(a, b))

	a = mockVerdict("a", 600, 120, 120, 120, 120, 120)
	b = mockVerdict("b", 600, 120, 120, 120, 120, 120)
	assert.False(t, Discrepant(a, b))

	// Exactly 80 apart is within tolerance
	a = mockVerdict("a", 600, 200, 120, 120, 120, 120)
	b = mockVerdict("b", 600, 120, 120, 120, 120, 120)
	assert.False(t, Discrepant(a, b))
}

func TestReconcileAveragesWithoutDiscrepancy(t *testing.T) {
	grader := &stubGrader{verdicts: map[string]GraderVerdict{
		rubric.PersonaGraderA: consistentVerdict(rubric.PersonaGraderA, 160, 160, 160, 160, 160),
		rubric.PersonaGraderB: consistentVerdict(rubric.PersonaGraderB, 160, 160, 120, 160, 120),
	}}
	c := NewConsensus(grader)

	res, err := c.Reconcile(context.Background(), "essay", "theme", Partial{})
	require.NoError(t, err)

	assert.Equal(t, float64(760), res.FinalTotal)
	assert.Equal(t, sourceTwoGraders, res.SourceLabel)
	require.Len(t, res.FinalCriteria, 5)
	assert.Equal(t, float64(160), res.FinalCriteria[0].Score)
	assert.Equal(t, float64(140), res.FinalCriteria[2].Score)
	assert.Len(t, res.RawVerdicts, 2)
	// Supervisor never invoked
	assert.Equal(t, int64(2), grader.calls.Load())
}

func TestReconcileMeanOfTotals(t *testing.T) {
	// Totals 800 and 700 with no per-criterion gap over 80 -> final 750.
	a := mockVerdict(rubric.PersonaGraderA, 800, 160, 160, 160, 160, 160)
	b := mockVerdict(rubric.PersonaGraderB, 700, 140, 140, 140, 140, 140)

	res := averageVerdicts(a, b)
	assert.Equal(t, float64(750), res.FinalTotal)
	for _, fc := range res.FinalCriteria {
		assert.Equal(t, float64(150), fc.Score)
	}
}

func TestReconcileEscalatesOnDiscrepancy(t *testing.T) {
	grader := &stubGrader{verdicts: map[string]GraderVerdict{
		rubric.PersonaGraderA:    consistentVerdict(rubric.PersonaGraderA, 200, 120, 120, 120, 120),
		rubric.PersonaGraderB:    consistentVerdict(rubric.PersonaGraderB, 80, 120, 120, 120, 120),
		rubric.PersonaSupervisor: consistentVerdict(rubric.PersonaSupervisor, 120, 120, 120, 120, 120),
	}}
	c := NewConsensus(grader)

	res, err := c.Reconcile(context.Background(), "essay", "theme", Partial{})
	require.NoError(t, err)

	assert.Equal(t, sourcePanel, res.SourceLabel)
	assert.Len(t, res.RawVerdicts, 3)
	assert.Equal(t, int64(3), grader.calls.Load())
	// Criterion 1: diffs (A,Sup)=80, (B,Sup)=40, (A,B)=120 -> average B and Sup
	assert.Equal(t, float64(100), res.FinalCriteria[0].Score)
	assert.Equal(t, float64(580), res.FinalTotal)
}

func TestArbitrationTieBreakPrefersGraderASupervisorPair(t *testing.T) {
	// (A,Sup) and (B,Sup) are both 40 apart; the A-supervisor pair wins.
	a := consistentVerdict("a", 80, 120, 120, 120, 120)
	b := consistentVerdict("b", 160, 120, 120, 120, 120)
	sup := consistentVerdict("sup", 120, 120, 120, 120, 120)

	res := arbitrate(a, b, sup)
	assert.Equal(t, float64(100), res.FinalCriteria[0].Score)
}

func TestArbitrationFallsBackToOriginalPair(t *testing.T) {
	// Supervisor equidistant but further than the original pair.
	a := consistentVerdict("a", 120, 120, 120, 120, 120)
	b := consistentVerdict("b", 120, 120, 120, 120, 120)
	sup := consistentVerdict("sup", 200, 120, 120, 120, 120)

	res := arbitrate(a, b, sup)
	// d12=0 beats d13=d23=80
	assert.Equal(t, float64(120), res.FinalCriteria[0].Score)
}

func TestReconcileSkipsSuppliedVerdicts(t *testing.T) {
	grader := &stubGrader{}
	c := NewConsensus(grader)
	a := consistentVerdict(rubric.PersonaGraderA, 160, 160, 160, 160, 160)
	b := consistentVerdict(rubric.PersonaGraderB, 160, 160, 160, 120, 160)

	res, err := c.Reconcile(context.Background(), "essay", "theme", Partial{GraderA: &a, GraderB: &b})
	require.NoError(t, err)
	assert.Equal(t, int64(0), grader.calls.Load())
	assert.Equal(t, float64(780), res.FinalTotal)

	// Same with a supplied supervisor for a discrepant pair
	a2 := consistentVerdict(rubric.PersonaGraderA, 200, 120, 120, 120, 120)
	b2 := consistentVerdict(rubric.PersonaGraderB, 80, 120, 120, 120, 120)
	sup := consistentVerdict(rubric.PersonaSupervisor, 120, 120, 120, 120, 120)
	res, err = c.Reconcile(context.Background(), "essay", "theme", Partial{GraderA: &a2, GraderB: &b2, Supervisor: &sup})
	require.NoError(t, err)
	assert.Equal(t, int64(0), grader.calls.Load())
	assert.Equal(t, sourcePanel, res.SourceLabel)
}

func TestReconcileNormalizesSuppliedVerdictOrder(t *testing.T) {
	grader := &stubGrader{}
	c := NewConsensus(grader)

	// Same scores per criterion, but A lists its criteria 5..1. Positional
	// pairing must not see a phantom discrepancy.
	a := consistentVerdict(rubric.PersonaGraderA, 200, 160, 120, 80, 40)
	for i, j := 0, len(a.Criteria)-1; i < j; i, j = i+1, j-1 {
		a.Criteria[i], a.Criteria[j] = a.Criteria[j], a.Criteria[i]
	}
	b := consistentVerdict(rubric.PersonaGraderB, 200, 160, 120, 80, 40)

	res, err := c.Reconcile(context.Background(), "essay", "theme", Partial{GraderA: &a, GraderB: &b})
	require.NoError(t, err)

	// No supervisor escalation, no grader calls at all
	assert.Equal(t, sourceTwoGraders, res.SourceLabel)
	assert.Equal(t, int64(0), grader.calls.Load())
	assert.Equal(t, float64(600), res.FinalTotal)
	for i, fc := range res.FinalCriteria {
		assert.Equal(t, i+1, fc.Criterion)
	}
	assert.Equal(t, float64(200), res.FinalCriteria[0].Score)
	assert.Equal(t, float64(40), res.FinalCriteria[4].Score)
}

func TestReconcilePropagatesGraderFailure(t *testing.T) {
	grader := &stubGrader{err: errors.New("provider exploded")}
	c := NewConsensus(grader)

	res, err := c.Reconcile(context.Background(), "essay", "theme", Partial{})
	require.Error(t, err)
	assert.Nil(t, res)
}

func TestReconcileRejectsInvalidSuppliedVerdict(t *testing.T) {
	bad := mockVerdict(rubric.PersonaGraderA, 999) // total does not match criteria
	c := NewConsensus(&stubGrader{})

	_, err := c.Reconcile(context.Background(), "essay", "theme", Partial{GraderA: &bad})
	require.Error(t, err)
}
