// Package rubric holds the fixed five-criterion ENEM grading rubric: the
// score domain, the scoring bands and anti-criteria fed to the graders, and
// the grader personas. Process-wide, immutable configuration.
package rubric

const (
	NumCriteria = 5
	MaxScore    = 200
	MaxTotal    = 1000
)

// AllowedScores is the discrete per-criterion score domain.
var AllowedScores = []int{0, 40, 80, 120, 160, 200}

// SnapScore clamps n to the nearest allowed value. Graders occasionally
// return off-scale numbers; they are normalized here rather than rejected.
func SnapScore(n int) int {
	best := AllowedScores[0]
	for _, s := range AllowedScores {
		if abs(n-s) < abs(n-best) {
			best = s
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Criterion is one rubric dimension. Scoring describes the score bands,
// AntiCriteria lists failure patterns that cap the score.
type Criterion struct {
	Number       int
	Scoring      string
	AntiCriteria string
}

// Criteria returns the five ENEM criteria in order.
func Criteria() []Criterion {
	return criteria
}

// ByNumber returns the criterion with the given number (1..5).
func ByNumber(n int) (Criterion, bool) {
	if n < 1 || n > NumCriteria {
		return Criterion{}, false
	}
	return criteria[n-1], true
}

var criteria = []Criterion{
	{
		Number: 1,
		Scoring: `- 200: excellent syntactic structure (at most 1 flaw) AND excellent grammar (at most 2 deviations).
- 160: good syntactic structure AND few grammatical deviations.
- 120: average structure AND/OR frequent grammatical deviations.
- 80: deficient structure OR many deviations.
- 40: severe and frequent deviations.
- 0: no command of the formal written register.`,
		AntiCriteria: `- COUNT grammatical deviations AND informal/colloquial expressions.
- First person ("I think", "I believe"): max 80.
- Slang, informality, colloquial register: max 120.
- Severe agreement errors: max 80.
- Repeated gross errors: max 80 (or 40 if very frequent).
- Childish or limited vocabulary: max 80.
- More than 5 grammatical deviations: max 120.
- Many deviations plus spelling errors: max 80.
- Severe syntax deficiencies: max 40.
- 3-4 medium deviations: max 160.
- Up to 2 light deviations: may receive 200.`,
	},
	{
		Number: 2,
		Scoring: `- 200: full topic coverage, legitimated, pertinent and PRODUCTIVE repertoire.
- 160: full topic coverage, legitimated/pertinent repertoire, but unproductive.
- 120: full topic coverage, predictable/common-sense repertoire.
- 80: tangential to the topic, or non-pertinent repertoire.
- 40: off topic, or disconnected repertoire.
- 0: complete departure from the topic.`,
		AntiCriteria: `- No legitimated sociocultural repertoire at all: max 120.
- Common sense only, no citations or data: max 120.
- CLICHE repertoire (memorized citation without development): max 120.
- No repertoire whatsoever (not even structured common sense): max 80.
- Tangential approach or partial departure from the topic: max 40.
- Legitimated repertoire used superficially or predictably: max 120.
- Legitimated repertoire, productive use, real development: 200.`,
	},
	{
		Number: 3,
		Scoring: `- 200: strong authorship, structural critique, strategic and consistent project.
- 160: organized, but predictable or shallow arguments.
- 120: flawed project, limited or lacunar argumentation.
- 80: disorganized, contradictory.
- 40: disconnected information (single block).
- 0: not an argumentative essay.`,
		AntiCriteria: `- Argumentation built on personal opinion ("I think"): max 80.
- Childish or disconnected argumentation: max 40.
- Mere paraphrase of the topic with no arguments: max 40.
- GLASS CEILING: if criterion 1 is below 80, criterion 3 cannot exceed 80.
- Circular/repetitive argumentation or tangential drift: max 80.
- ORGANIZED text but COMMON-SENSE argumentation: max 120.
- Lists of facts without critical analysis: max 120.
- Predictable arguments with no analysis of structural causes: max 120.
- Description of the problem without deep critical analysis: max 120.
- Good but predictable argumentation: 160.
- CONSISTENT, DEEP, AUTHORIAL argumentation: 200.`,
	},
	{
		Number: 4,
		Scoring: `- 200: excellent articulation, diversified cohesive devices (within and across paragraphs).
- 160: good articulation, few inadequacies or repetitions.
- 120: average articulation, noticeable repetition or inadequacies.
- 80: insufficient articulation, limited device repertoire.
- 40: precarious.
- 0: no articulation.`,
		AntiCriteria: `- Excessive word repetition (same word more than 5 times): max 120.
- Very basic or repeated connectives: max 160.
- Good articulation with small repetitions: 160.
- Excellent articulation, varied connectives: 200.`,
	},
	{
		Number: 5,
		Scoring: `- 200: complete intervention proposal (5 elements), well articulated.
- 160: 5 elements, but weak detailing or average articulation.
- 120: 4 valid elements.
- 80: 3 elements.
- 40: 1 or 2 elements, or a human-rights violation (voids the criterion).
- 0: no proposal.`,
		AntiCriteria: `- Vague proposal that names no agent, action or means: max 120.
- Generic proposal ("the government should act", "schools should teach"): max 160.
- VAGUE actions with no methodology: max 160.
- 5 elements but generic detailing: max 160.
- 5 elements, SPECIFIC detailing, good articulation: 200.`,
	},
}

// Persona is a named grading disposition applied uniformly across all five
// criteria for one grader run. Temperature is a tuning parameter, not a
// structural contract; the rigorous persona runs slightly colder.
type Persona struct {
	ID           string
	Instructions string
	Temperature  float64
}

const (
	PersonaGraderA    = "grader-1"
	PersonaGraderB    = "grader-2"
	PersonaSupervisor = "supervisor"
)

var personas = map[string]Persona{
	PersonaGraderA: {
		ID:          PersonaGraderA,
		Temperature: 0.20,
		Instructions: "Your profile is TECHNICAL and EXACTING. You value grammatical correctness and recognize excellent texts, " +
			"but you are able to spot the small flaws that prevent a maximum score. You follow the official ENEM criteria faithfully.",
	},
	PersonaGraderB: {
		ID:          PersonaGraderB,
		Temperature: 0.25,
		Instructions: "Your profile is CONTEXTUAL and BALANCED. You value argumentative depth and cohesion, but you distinguish " +
			"excellent texts (180-200) from perfect texts (200). You are fair and recognize quality without being permissive.",
	},
	PersonaSupervisor: {
		ID:          PersonaSupervisor,
		Temperature: 0.25,
		Instructions: "Your profile is BALANCED and FAITHFUL to the official ENEM criteria. You aim for precision, distinguishing " +
			"very good texts (840-920 overall) from perfect texts (960-1000).",
	},
}

// PersonaByID returns the persona for id, falling back to the supervisor
// profile for unknown ids as the most neutral disposition.
func PersonaByID(id string) Persona {
	if p, ok := personas[id]; ok {
		return p
	}
	return personas[PersonaSupervisor]
}
