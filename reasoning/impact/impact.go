// Package impact implements cascade computation over the belief graph:
// given a new confidence for one hypothesis, compute the downstream
// confidence changes with depth-based decay, offer a preview/confirm/revert
// workflow, and paginate large results. This is the authoritative
// implementation of spec.md §4.4 — the original source's cascade math was
// a stub (see propagation.rs), so the BFS-with-decay, SCC-averaging, and
// max-cascade-abort semantics here are specified fresh rather than ported.
package impact

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oldnordic/forge/prob"
	"github.com/oldnordic/forge/reasoning"
	"github.com/oldnordic/forge/reasoning/belief"
	"github.com/oldnordic/forge/reasoning/hypothesis"
)

// Config tunes the cascade engine.
type Config struct {
	// DecayFactor multiplies the propagated delta at each additional depth
	// level. Default 0.95.
	DecayFactor float64
	// MinConfidence is the floor below which a propagated confidence is
	// not applied (the node is skipped). Default 0.1.
	MinConfidence float64
	// MaxCascadeSize aborts the BFS with CascadeTooLarge once the visited
	// count would exceed it. Default 10000.
	MaxCascadeSize int
	// PageSize is the default page size for GetPage. Default 50.
	PageSize int
	// SnapshotTTL is how long a preview/revert snapshot remains valid.
	// Default 15 minutes.
	SnapshotTTL time.Duration
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		DecayFactor:    0.95,
		MinConfidence:  0.1,
		MaxCascadeSize: 10000,
		PageSize:       50,
		SnapshotTTL:    15 * time.Minute,
	}
}

// PreviewID identifies a cached, not-yet-confirmed cascade preview.
type PreviewID uuid.UUID

func newPreviewID() PreviewID { return PreviewID(uuid.New()) }

// String implements fmt.Stringer.
func (id PreviewID) String() string { return uuid.UUID(id).String() }

// SnapshotID identifies a point-in-time copy of the board and graph,
// retained so that Revert can restore it within its TTL.
type SnapshotID uuid.UUID

func newSnapshotID() SnapshotID { return SnapshotID(uuid.New()) }

// String implements fmt.Stringer.
func (id SnapshotID) String() string { return uuid.UUID(id).String() }

// ConfidenceChange describes a single hypothesis's confidence change as
// computed by a cascade.
type ConfidenceChange struct {
	HypothesisID    hypothesis.ID
	Name            string
	Old             prob.Probability
	New             prob.Probability
	Delta           float64
	Depth           int
	PropagationPath []hypothesis.ID
}

// CascadePreview is the cached, read-only result of Preview: the full list
// of changes a subsequent Confirm would apply, plus pagination state.
type CascadePreview struct {
	PreviewID        PreviewID
	SnapshotID       SnapshotID
	StartHypothesis  hypothesis.ID
	NewConfidence    prob.Probability
	Changes          []ConfidenceChange
	CyclesNormalized int
	CreatedAt        time.Time
}

// Page is one paginated slice of a CascadePreview's changes.
type Page struct {
	PreviewID  PreviewID
	PageNumber int
	TotalPages int
	Changes    []ConfidenceChange
	HasMore    bool
}

// boardView and graphView are the minimal surfaces Engine needs from the
// hypothesis board and belief graph, kept narrow so the engine can be
// tested against fakes without depending on the concrete types' full APIs.
type boardView interface {
	Get(ctx context.Context, id hypothesis.ID) (hypothesis.Hypothesis, error)
	List(ctx context.Context) ([]hypothesis.Hypothesis, error)
	SetPosterior(ctx context.Context, id hypothesis.ID, posterior prob.Probability) error
}

// Engine is the impact-analysis engine: cascade computation with
// preview/confirm/revert semantics.
type Engine struct {
	board  boardView
	graph  *belief.Graph
	config Config

	previews  map[PreviewID]cachedPreview
	snapshots map[SnapshotID]snapshot
}

type cachedPreview struct {
	preview CascadePreview
	expires time.Time
}

type snapshot struct {
	hypotheses map[hypothesis.ID]hypothesis.Hypothesis
	edges      [][2]hypothesis.ID
	expires    time.Time
}

// New constructs an Engine with the default configuration.
func New(board boardView, graph *belief.Graph) *Engine {
	return NewWithConfig(board, graph, DefaultConfig())
}

// NewWithConfig constructs an Engine with an explicit configuration.
func NewWithConfig(board boardView, graph *belief.Graph, cfg Config) *Engine {
	return &Engine{
		board:     board,
		graph:     graph,
		config:    cfg,
		previews:  make(map[PreviewID]cachedPreview),
		snapshots: make(map[SnapshotID]snapshot),
	}
}

// CascadeTooLargeError is returned when a cascade's visited-node count
// would exceed Config.MaxCascadeSize.
type CascadeTooLargeError struct {
	Size  int
	Limit int
}

func (e *CascadeTooLargeError) Error() string {
	return reasoning.New(reasoning.KindCascade, "cascade too large").Error()
}

// Preview computes, but does not apply, the cascade resulting from setting
// start's confidence to newConfidence. It snapshots the board and graph
// first (for a later Revert), runs the decayed BFS, and caches the result
// under a fresh PreviewID until Confirm or expiry.
func (e *Engine) Preview(ctx context.Context, start hypothesis.ID, newConfidence prob.Probability) (CascadePreview, error) {
	snapID, err := e.snapshotState(ctx)
	if err != nil {
		return CascadePreview{}, err
	}

	startH, err := e.board.Get(ctx, start)
	if err != nil {
		return CascadePreview{}, err
	}

	changes, normalized, err := e.cascade(ctx, start, startH.Posterior, newConfidence)
	if err != nil {
		return CascadePreview{}, err
	}

	preview := CascadePreview{
		PreviewID:        newPreviewID(),
		SnapshotID:       snapID,
		StartHypothesis:  start,
		NewConfidence:    newConfidence,
		Changes:          changes,
		CyclesNormalized: normalized,
		CreatedAt:        time.Now().UTC(),
	}
	e.previews[preview.PreviewID] = cachedPreview{preview: preview, expires: preview.CreatedAt.Add(e.config.SnapshotTTL)}
	return preview, nil
}

// cascade performs the BFS-with-decay over dependents of start (incoming
// edges: nodes that depend on start), computing a ConfidenceChange for
// every visited node whose propagated confidence stays at or above
// MinConfidence. Cycles (SCCs of size > 1 reachable during the walk) are
// normalized by averaging their members' computed confidence.
func (e *Engine) cascade(ctx context.Context, start hypothesis.ID, oldStart, newStart prob.Probability) ([]ConfidenceChange, int, error) {
	startDelta := newStart.Get() - oldStart.Get()

	type frontierItem struct {
		id    hypothesis.ID
		depth int
		path  []hypothesis.ID
		delta float64
	}

	visited := map[hypothesis.ID]bool{start: true}
	queue := []frontierItem{{id: start, depth: 0, path: []hypothesis.ID{start}, delta: startDelta}}
	var changes []ConfidenceChange

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		for _, dependent := range e.graph.Dependents(item.id) {
			if visited[dependent] {
				continue
			}
			if len(visited) >= e.config.MaxCascadeSize {
				return nil, 0, &CascadeTooLargeError{Size: len(visited) + 1, Limit: e.config.MaxCascadeSize}
			}
			visited[dependent] = true

			depth := item.depth + 1
			delta := item.delta * e.config.DecayFactor
			path := append(append([]hypothesis.ID(nil), item.path...), dependent)

			h, err := e.board.Get(ctx, dependent)
			if err != nil {
				return nil, 0, err
			}
			oldConf := h.Posterior.Get()
			newConf := oldConf + delta
			if newConf > 1 {
				newConf = 1
			}
			if newConf < e.config.MinConfidence {
				// Below the floor: skip applying this node, but do not
				// stop the BFS from continuing past it.
				queue = append(queue, frontierItem{id: dependent, depth: depth, path: path, delta: delta})
				continue
			}

			newProb, err := prob.New(newConf)
			if err != nil {
				return nil, 0, reasoning.Wrap(reasoning.KindCascade, "cascade produced invalid confidence", err)
			}

			changes = append(changes, ConfidenceChange{
				HypothesisID:    dependent,
				Name:            h.Statement,
				Old:             h.Posterior,
				New:             newProb,
				Delta:           newConf - oldConf,
				Depth:           depth,
				PropagationPath: path,
			})
			queue = append(queue, frontierItem{id: dependent, depth: depth, path: path, delta: delta})
		}
	}

	normalized := e.normalizeCycles(changes)
	return changes, normalized, nil
}

// normalizeCycles finds, among the changes produced by one cascade run,
// any set of hypothesis ids that form a strongly-connected component in
// the belief graph and averages their New confidence to a single shared
// value, matching spec.md §4.4 step 3.
func (e *Engine) normalizeCycles(changes []ConfidenceChange) int {
	cycles := e.graph.DetectCycles()
	if len(cycles) == 0 {
		return 0
	}
	indexByID := make(map[hypothesis.ID]int, len(changes))
	for i, c := range changes {
		indexByID[c.HypothesisID] = i
	}
	normalized := 0
	for _, scc := range cycles {
		var sum float64
		var members []int
		for _, id := range scc {
			if i, ok := indexByID[id]; ok {
				sum += changes[i].New.Get()
				members = append(members, i)
			}
		}
		if len(members) < 2 {
			continue
		}
		avg := sum / float64(len(members))
		avgProb, err := prob.New(avg)
		if err != nil {
			continue
		}
		for _, i := range members {
			changes[i].New = avgProb
			changes[i].Delta = avg - changes[i].Old.Get()
		}
		normalized++
	}
	return normalized
}

// Confirm fetches the cached preview and applies its changes to the board
// atomically (in one pass), then drops the cache entry.
func (e *Engine) Confirm(ctx context.Context, id PreviewID) error {
	cached, ok := e.previews[id]
	if !ok || time.Now().After(cached.expires) {
		delete(e.previews, id)
		return reasoning.New(reasoning.KindNotFound, "preview not found or expired")
	}
	for _, change := range cached.preview.Changes {
		if err := e.board.SetPosterior(ctx, change.HypothesisID, change.New); err != nil {
			return err
		}
	}
	delete(e.previews, id)
	return nil
}

// GetPage returns one page of a cached preview's changes.
func (e *Engine) GetPage(id PreviewID, pageNumber int) (Page, error) {
	cached, ok := e.previews[id]
	if !ok {
		return Page{}, reasoning.New(reasoning.KindNotFound, "preview not found")
	}
	pageSize := e.config.PageSize
	if pageSize <= 0 {
		pageSize = 1
	}
	total := len(cached.preview.Changes)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	start := pageNumber * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return Page{
		PreviewID:  id,
		PageNumber: pageNumber,
		TotalPages: totalPages,
		Changes:    cached.preview.Changes[start:end],
		HasMore:    pageNumber+1 < totalPages,
	}, nil
}

// snapshotState captures the board and graph for later Revert.
func (e *Engine) snapshotState(ctx context.Context) (SnapshotID, error) {
	all, err := e.board.List(ctx)
	if err != nil {
		return SnapshotID{}, err
	}
	byID := make(map[hypothesis.ID]hypothesis.Hypothesis, len(all))
	for _, h := range all {
		byID[h.ID] = h
	}
	var edges [][2]hypothesis.ID
	for _, node := range e.graph.Nodes() {
		for _, dependee := range e.graph.Dependees(node) {
			edges = append(edges, [2]hypothesis.ID{node, dependee})
		}
	}
	id := newSnapshotID()
	e.snapshots[id] = snapshot{
		hypotheses: byID,
		edges:      edges,
		expires:    time.Now().UTC().Add(e.config.SnapshotTTL),
	}
	return id, nil
}

// Revert writes each snapshotted hypothesis's posterior back to the board
// and replaces the graph's edges with the snapshot's. Other hypothesis
// fields, such as status, are not restored. Expired snapshots fail
// NotFound.
func (e *Engine) Revert(ctx context.Context, id SnapshotID) error {
	snap, ok := e.snapshots[id]
	if !ok || time.Now().After(snap.expires) {
		delete(e.snapshots, id)
		return reasoning.New(reasoning.KindNotFound, "snapshot not found or expired")
	}
	for hID, h := range snap.hypotheses {
		if err := e.board.SetPosterior(ctx, hID, h.Posterior); err != nil {
			return err
		}
	}
	for _, node := range e.graph.Nodes() {
		for _, dependee := range e.graph.Dependees(node) {
			e.graph.RemoveDependency(node, dependee)
		}
	}
	for _, edge := range snap.edges {
		_ = e.graph.AddDependency(edge[0], edge[1])
	}
	return nil
}
