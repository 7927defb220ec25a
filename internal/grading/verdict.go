package grading

import (
	"fmt"
	"sort"

	"essay-grader/internal/rubric"
)

// CriterionVerdict is one grader's opinion on one rubric criterion.
// Immutable once produced.
type CriterionVerdict struct {
	Criterion int    `json:"criterion"`
	Score     int    `json:"score"`
	Critique  string `json:"critique"`
	Rationale string `json:"rationale"`
}

// GraderVerdict is one grader's full opinion on an essay: the five criterion
// verdicts in order, the recomputed total, and a free-text overall comment.
type GraderVerdict struct {
	PersonaID      string             `json:"persona_id"`
	Criteria       []CriterionVerdict `json:"criteria"`
	TotalScore     int                `json:"total_score"`
	OverallComment string             `json:"overall_comment"`
}

// Validate enforces the aggregation invariant: exactly criteria 1..5, each
// once, and TotalScore equal to the sum of criterion scores. A valid verdict
// is also normalized: criteria are sorted by number, so consumers may pair
// verdicts positionally.
func (v *GraderVerdict) Validate() error {
	if len(v.Criteria) != rubric.NumCriteria {
		return fmt.Errorf("verdict has %d criteria, want %d", len(v.Criteria), rubric.NumCriteria)
	}
	seen := make(map[int]bool, rubric.NumCriteria)
	sum := 0
	for _, c := range v.Criteria {
		if c.Criterion < 1 || c.Criterion > rubric.NumCriteria {
			return fmt.Errorf("criterion number %d out of range", c.Criterion)
		}
		if seen[c.Criterion] {
			return fmt.Errorf("duplicate criterion %d", c.Criterion)
		}
		seen[c.Criterion] = true
		sum += c.Score
	}
	if v.TotalScore != sum {
		return fmt.Errorf("total %d does not match criteria sum %d", v.TotalScore, sum)
	}
	sort.Slice(v.Criteria, func(i, j int) bool { return v.Criteria[i].Criterion < v.Criteria[j].Criterion })
	return nil
}

// FinalCriterion is one reconciled criterion score. The score is a float:
// it can be the average of two grader scores, and nothing below assumes the
// rubric keeps averages integral.
type FinalCriterion struct {
	Criterion     int     `json:"criterion"`
	Score         float64 `json:"score"`
	Justification string  `json:"justification"`
}

// ConsensusResult is the externally visible grading outcome: the reconciled
// per-criterion scores, how they were derived, and the raw verdicts kept as
// an audit trail (two without escalation, three with).
type ConsensusResult struct {
	FinalCriteria []FinalCriterion `json:"final_criteria"`
	FinalTotal    float64          `json:"final_total"`
	SourceLabel   string           `json:"source_label"`
	RawVerdicts   []GraderVerdict  `json:"raw_verdicts"`
}
