// Package gaps implements the knowledge-gap priority queue: multi-factor
// scoring over criticality, dependency depth, evidence strength and age, a
// max-heap queue on that score, and context-aware suggestion generation.
package gaps

import (
	"container/heap"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oldnordic/forge/reasoning/belief"
	"github.com/oldnordic/forge/reasoning/hypothesis"
)

// ID identifies a knowledge gap.
type ID uuid.UUID

// NewID generates a fresh random gap ID.
func NewID() ID { return ID(uuid.New()) }

// String implements fmt.Stringer.
func (id ID) String() string { return uuid.UUID(id).String() }

// Criticality is the urgency tier of a gap.
type Criticality int

const (
	Low Criticality = iota
	Medium
	High
)

func (c Criticality) score() float64 {
	switch c {
	case High:
		return 1.0
	case Medium:
		return 0.6
	default:
		return 0.3
	}
}

// Kind classifies the nature of a knowledge gap.
type Kind int

const (
	MissingInformation Kind = iota
	UntestedAssumption
	ContradictoryEvidence
	UnknownDependency
	Other
)

// Gap is a single knowledge gap tracked by the analyzer.
type Gap struct {
	ID               ID
	Description      string
	HypothesisID     *hypothesis.ID
	Criticality      Criticality
	Kind             Kind
	OtherText        string // populated only when Kind == Other
	CreatedAt        time.Time
	FilledAt         *time.Time
	ResolutionNotes  string
	Depth            int
	EvidenceStrength float64
	Score            float64
}

// Weights configures the relative contribution of each scoring factor.
// The defaults sum to 1.
type Weights struct {
	Criticality float64
	Depth       float64
	Evidence    float64
	Age         float64
}

// DefaultWeights returns the spec's documented default weighting, an even
// split across the four factors.
func DefaultWeights() Weights {
	return Weights{Criticality: 0.25, Depth: 0.25, Evidence: 0.25, Age: 0.25}
}

// clampUnit clamps f to [0, 1].
func clampUnit(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Score computes the multi-factor priority score for a gap under the given
// weights, as of "now". The result is clamped to [0, 1].
func Score(g Gap, w Weights, now time.Time) float64 {
	depthScore := clampUnit(float64(g.Depth) / 10.0)
	evidenceScore := 1.0 - clampUnit(absFloat(g.EvidenceStrength))
	daysOld := now.Sub(g.CreatedAt).Hours() / 24.0
	if daysOld < 0 {
		daysOld = 0
	}
	ageScore := clampUnit(daysOld / 30.0)

	score := g.Criticality.score()*w.Criticality +
		depthScore*w.Depth +
		evidenceScore*w.Evidence +
		ageScore*w.Age
	return clampUnit(score)
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// Queue is a max-heap of gaps ordered by Score, descending, with older
// CreatedAt breaking ties. It is not safe for concurrent use.
type Queue struct {
	h gapHeap
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	q := &Queue{}
	heap.Init(&q.h)
	return q
}

// Push adds a gap to the queue.
func (q *Queue) Push(g Gap) {
	heap.Push(&q.h, g)
}

// Pop removes and returns the highest-priority unfilled gap. The second
// return value is false if the queue holds no unfilled gap. Filled gaps
// reached on the way are removed from the queue.
func (q *Queue) Pop() (Gap, bool) {
	for q.h.Len() > 0 {
		g := heap.Pop(&q.h).(Gap)
		if g.FilledAt == nil {
			return g, true
		}
	}
	return Gap{}, false
}

// Peek returns the highest-priority gap without removing it.
func (q *Queue) Peek() (Gap, bool) {
	if q.h.Len() == 0 {
		return Gap{}, false
	}
	return q.h[0], true
}

// Len returns the number of gaps in the queue.
func (q *Queue) Len() int { return q.h.Len() }

// RecomputeAll re-scores every gap currently queued under a (possibly
// changed) weight configuration and re-heapifies.
func (q *Queue) RecomputeAll(w Weights, now time.Time) {
	for i := range q.h {
		q.h[i].Score = Score(q.h[i], w, now)
	}
	heap.Init(&q.h)
}

// gapHeap implements container/heap.Interface as a max-heap on Score with
// older-created-first tie-breaking, the same std-library approach the
// teacher uses for its scheduler frontier (graph/scheduler.go).
type gapHeap []Gap

func (h gapHeap) Len() int { return len(h) }

func (h gapHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score > h[j].Score
	}
	return h[i].CreatedAt.Before(h[j].CreatedAt)
}

func (h gapHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *gapHeap) Push(x any) { *h = append(*h, x.(Gap)) }

func (h *gapHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// SuggestedAction is the action the analyzer recommends for a gap.
type SuggestedAction struct {
	Kind         SuggestionKind
	HypothesisID *hypothesis.ID
	DependentID  *hypothesis.ID
	Description  string
}

// SuggestionKind enumerates the shapes a SuggestedAction can take.
type SuggestionKind int

const (
	CreateVerificationCheck SuggestionKind = iota
	Research
	Investigate
	ResolveDependency
	OtherAction
)

// Suggestion pairs a gap's id with its suggested action and priority.
type Suggestion struct {
	GapID    ID
	Action   SuggestedAction
	Priority float64
}

// GenerateSuggestion produces a context-aware, deterministic suggestion
// for a single gap, per spec.md §4.6:
//
//	UntestedAssumption        -> CreateVerificationCheck(hypothesis_id)
//	MissingInformation        -> Research(topic) if description mentions
//	                              "unknown"/"unclear", else Investigate(area)
//	ContradictoryEvidence     -> Investigate with a "conflict" rationale
//	UnknownDependency         -> ResolveDependency(first_dependent, hypothesis_id)
//	                              if a linked hypothesis has dependents, else
//	                              Investigate
//	Other(text)               -> Other(text)
func GenerateSuggestion(g Gap, graph *belief.Graph) Suggestion {
	var action SuggestedAction
	switch g.Kind {
	case UntestedAssumption:
		action = SuggestedAction{Kind: CreateVerificationCheck, HypothesisID: g.HypothesisID}
	case MissingInformation:
		lower := strings.ToLower(g.Description)
		if strings.Contains(lower, "unknown") || strings.Contains(lower, "unclear") {
			action = SuggestedAction{Kind: Research, Description: g.Description}
		} else {
			action = SuggestedAction{Kind: Investigate, Description: g.Description}
		}
	case ContradictoryEvidence:
		action = SuggestedAction{Kind: Investigate, Description: g.Description + " (conflict)"}
	case UnknownDependency:
		if g.HypothesisID != nil {
			dependents := graph.Dependents(*g.HypothesisID)
			if len(dependents) > 0 {
				action = SuggestedAction{
					Kind:         ResolveDependency,
					DependentID:  &dependents[0],
					HypothesisID: g.HypothesisID,
				}
				break
			}
		}
		action = SuggestedAction{Kind: Investigate, Description: g.Description}
	default:
		action = SuggestedAction{Kind: OtherAction, Description: g.OtherText}
	}
	return Suggestion{GapID: g.ID, Action: action, Priority: g.Score}
}

// GenerateSuggestions produces suggestions for every unfilled gap in gaps,
// sorted by priority descending.
func GenerateSuggestions(all []Gap, graph *belief.Graph) []Suggestion {
	out := make([]Suggestion, 0, len(all))
	for _, g := range all {
		if g.FilledAt != nil {
			continue
		}
		out = append(out, GenerateSuggestion(g, graph))
	}
	// Simple insertion sort keeps the tie-break stable and insertion-order
	// deterministic without pulling in sort.Slice's non-stable guarantees.
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].Priority < out[j].Priority {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}
