// Copyright (c) 2024 LevelGraph Go Contributors
//
// Permission is hereby granted, free of charge, to any person
// obtaining a copy of this software and associated documentation
// files (the "Software"), to deal in the Software without
// restriction, including without limitation the rights to use,
// copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the
// Software is furnished to do so, subject to the following
// conditions:
//
// The above copyright notice and this permission notice shall be
// included in all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
// EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES
// OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
// NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT
// HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY,
// WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING
// FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR
// OTHER DEALINGS IN THE SOFTWARE.

// Package hnsw implements a Hierarchical Navigable Small World graph:
// a multi-layer proximity graph that answers approximate nearest-neighbor
// queries in sublinear time. An Index owns the graph; Node holds one
// point's data and per-layer neighbor lists; search, insertion and
// deletion are implemented per Malkov & Yashunin's original algorithm,
// including the diversity-preserving neighbor-selection heuristic that
// a naive "closest M" selection does not provide.
package hnsw

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Result is one hit returned by SearchKNN, in ascending distance order.
type Result struct {
	Name     string
	Distance float32
}

// NodeRecord is the persisted form of a single Node: its data and
// per-layer neighbor names. It is also the shape handed to an OnMutate
// callback, since both uses need exactly the same information.
type NodeRecord struct {
	Name      string
	Data      Vector
	Neighbors [][]string
}

// IndexRecord is the persisted form of an Index's structural state,
// without the node bodies themselves (see NodeRecord).
type IndexRecord struct {
	Name           string
	Dim            int
	M              int
	EfConstruction int
	ML             float64
	DistanceName   string
	NodeCount      int
	NodeNames      []string
	Layers         [][]string
	Enterpoint     string
	HasEnterpoint  bool
}

// Index is one HNSW graph. All exported configuration fields are set at
// construction and read-only afterward; structural state (nodes, layer
// membership, entry point) is guarded by mu, and each Node additionally
// guards its own neighbor lists so that reads from concurrent searches
// never race with a single node's in-place mutation.
type Index struct {
	Name           string
	Dim            int
	M              int
	MMax           int
	MMax0          int
	EfConstruction int
	ML             float64
	Distance       DistanceFunc

	Logger     *slog.Logger
	OnMutate   func(NodeRecord)
	Accountant MemoryAccountant

	mu         sync.RWMutex
	nodes      map[string]*Node
	layers     []map[string]struct{} // layers[l] = node names present at layer l
	enterpoint string
	hasEntry   bool

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures an Index at construction or reload time.
type Option func(*Index)

// WithDistance overrides the default SquaredEuclidean metric.
func WithDistance(fn DistanceFunc) Option {
	return func(idx *Index) { idx.Distance = fn }
}

// WithSeed fixes the random source behind level sampling, for
// reproducible tests.
func WithSeed(seed int64) Option {
	return func(idx *Index) { idx.rng = rand.New(rand.NewSource(seed)) }
}

// WithLogger attaches a structured logger for mutation-level tracing.
func WithLogger(l *slog.Logger) Option {
	return func(idx *Index) { idx.Logger = l }
}

// MemoryAccountant lets a host that caps process memory (the way a
// key-value server caps the memory its modules may hold) track the
// graph's footprint without the engine knowing anything about the
// host's bookkeeping. Reserve is called with an estimated byte count
// before a node is added to the graph; Release is called with the same
// estimate when a node is removed. Neither call can fail the operation:
// a host that wants to enforce a limit must reject the command before
// it reaches the engine.
type MemoryAccountant interface {
	Reserve(bytes int64)
	Release(bytes int64)
}

// WithAccountant attaches a MemoryAccountant so every Add/Delete reports
// its approximate footprint change.
func WithAccountant(a MemoryAccountant) Option {
	return func(idx *Index) { idx.Accountant = a }
}

// nodeFootprint estimates a node's resident size: its vector plus one
// pointer-ish slot per neighbor slot across all its layers, a rough
// stand-in for the allocator's actual bookkeeping.
func nodeFootprint(dim int, level int, avgDegree int) int64 {
	const floatSize = 4
	const nameOverhead = 16 // amortized string header + short name
	return int64(dim*floatSize) + int64((level+1)*avgDegree*nameOverhead)
}

// WithOnMutate registers a callback invoked once for every node whose
// stored data or neighbor lists changed as a side effect of an
// operation. A single Add or Delete call can touch several nodes
// (the new node plus any repaired neighbors), so the callback may fire
// more than once per call.
func WithOnMutate(fn func(NodeRecord)) Option {
	return func(idx *Index) { idx.OnMutate = fn }
}

// NewIndex creates an empty index. M sets the target degree per layer
// (MMax equals M above layer 0; MMax0, the bottom layer's cap, is 2M);
// efConstruction sets the search breadth used while inserting.
func NewIndex(name string, dim, m, efConstruction int, opts ...Option) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("hnsw: dimension must be positive, got %d", dim)
	}
	if m <= 1 {
		return nil, fmt.Errorf("hnsw: M must be greater than 1, got %d", m)
	}
	if efConstruction <= 0 {
		return nil, fmt.Errorf("hnsw: efConstruction must be positive, got %d", efConstruction)
	}

	idx := &Index{
		Name:           name,
		Dim:            dim,
		M:              m,
		MMax:           m,
		MMax0:          m * 2,
		EfConstruction: efConstruction,
		ML:             1 / math.Log(float64(m)),
		Distance:       SquaredEuclidean,
		nodes:          make(map[string]*Node),
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Len reports the number of nodes currently in the index.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.nodes)
}

func (idx *Index) topLevel() int {
	return len(idx.layers) - 1
}

// randomLevel samples l_new = floor(-ln(U) * m_L) for U uniform on
// (0, 1], matching the original paper's level assignment so that the
// expected layer population shrinks geometrically with height.
func (idx *Index) randomLevel() int {
	idx.rngMu.Lock()
	defer idx.rngMu.Unlock()
	u := idx.rng.Float64()
	for u == 0 {
		u = idx.rng.Float64()
	}
	return int(math.Floor(-math.Log(u) * idx.ML))
}

func (idx *Index) growLayersTo(level int) {
	for len(idx.layers) <= level {
		idx.layers = append(idx.layers, make(map[string]struct{}))
	}
}

func (idx *Index) addToLayers(name string, level int) {
	idx.growLayersTo(level)
	for l := 0; l <= level; l++ {
		idx.layers[l][name] = struct{}{}
	}
}

// NodeVector returns a copy of a node's stored vector.
func (idx *Index) NodeVector(name string) (Vector, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n, ok := idx.nodes[name]
	if !ok {
		return nil, ErrUnknownNode
	}
	out := make(Vector, len(n.Data))
	copy(out, n.Data)
	return out, nil
}

// Add inserts a new node per spec §4.6: descend greedily from the
// current entry point down to the new node's own level, then at every
// level from there to the bottom run search_layer to gather candidates,
// select a diverse neighbor subset, wire the new node to it, and repair
// any neighbor whose list overflowed its degree cap as a result.
func (idx *Index) Add(name string, v Vector) error {
	if len(v) != idx.Dim {
		return ErrDimensionMismatch
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.nodes[name]; exists {
		return ErrDuplicateNode
	}

	level := idx.randomLevel()
	n := newNode(name, append(Vector{}, v...), level)

	if idx.Accountant != nil {
		idx.Accountant.Reserve(nodeFootprint(idx.Dim, level, idx.M))
	}

	touched := map[string]*Node{name: n}

	if !idx.hasEntry {
		idx.nodes[name] = n
		idx.addToLayers(name, level)
		idx.enterpoint = name
		idx.hasEntry = true
		idx.notifyAll(touched)
		return nil
	}

	top := idx.topLevel()
	ep := idx.enterpoint

	for l := top; l > level; l-- {
		w := idx.searchLayerLocked(v, []string{ep}, 1, l)
		if best, ok := w.closest(); ok {
			ep = best
		}
	}

	idx.nodes[name] = n

	for l := min(top, level); l >= 0; l-- {
		w := idx.searchLayerLocked(v, []string{ep}, idx.EfConstruction, l)
		sorted := w.sorted()
		if len(sorted) > 0 {
			ep = sorted[0].name
		}

		accepted := selectNeighbors(v, sorted, idx.M, idx.Distance, idx.nodes)
		n.writeLayer(l, accepted)

		capAt := idx.MMax
		if l == 0 {
			capAt = idx.MMax0
		}

		for _, rName := range accepted {
			r := idx.nodes[rName]
			if r == nil {
				continue
			}
			rNeighbors := r.readLayer(l)
			if !containsName(rNeighbors, name) {
				rNeighbors = append(rNeighbors, name)
			}
			if len(rNeighbors) > capAt {
				cands := candidatesFrom(r.Data, rNeighbors, idx.Distance, idx.nodes)
				rNeighbors = selectNeighbors(r.Data, cands, capAt, idx.Distance, idx.nodes)
			}
			r.writeLayer(l, rNeighbors)
			touched[rName] = r
		}
	}

	idx.addToLayers(name, level)
	if level > top {
		idx.enterpoint = name
	}

	idx.notifyAll(touched)
	return nil
}

// Delete removes a node per spec §4.7: unlink it from every former
// neighbor, and from every other node that lists it, at every layer it
// participated in, then at each of those
// layers repair each former neighbor's list by reselecting from the
// union of its remaining neighbors and the deleted node's other former
// neighbors, so the layer does not keep a hole where the node used to
// sit. Refuses with ErrNodeBusy if another operation currently holds
// the node open.
func (idx *Index) Delete(name string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n, ok := idx.nodes[name]
	if !ok {
		return ErrUnknownNode
	}
	if n.busy() {
		return ErrNodeBusy
	}

	touched := map[string]*Node{}

	for l := n.level(); l >= 0; l-- {
		former := n.readLayer(l)
		capAt := idx.MMax
		if l == 0 {
			capAt = idx.MMax0
		}

		// Lists are not strictly symmetric: a node may list name without
		// being listed back. Those nodes are unlinked and repaired too, so
		// no live node keeps a reference to the deleted one.
		for other := range idx.layers[l] {
			if other == name || containsName(former, other) {
				continue
			}
			if o := idx.nodes[other]; o != nil && containsName(o.readLayer(l), name) {
				former = append(former, other)
			}
		}

		for _, rName := range former {
			r := idx.nodes[rName]
			if r == nil {
				continue
			}
			r.writeLayer(l, removeName(r.readLayer(l), name))
		}

		for _, rName := range former {
			r := idx.nodes[rName]
			if r == nil {
				continue
			}

			pool := map[string]struct{}{}
			for _, x := range r.readLayer(l) {
				pool[x] = struct{}{}
			}
			for _, other := range former {
				if other != rName {
					pool[other] = struct{}{}
				}
			}
			delete(pool, rName)

			poolNames := make([]string, 0, len(pool))
			for pn := range pool {
				poolNames = append(poolNames, pn)
			}
			cands := candidatesFrom(r.Data, poolNames, idx.Distance, idx.nodes)
			// Bound by capAt (MMax/MMax0), not M: repair's job is to bring
			// r's layer back within its degree invariant, not to re-run the
			// target-degree heuristic an insert uses when it first picks M
			// neighbors.
			r.writeLayer(l, selectNeighbors(r.Data, cands, capAt, idx.Distance, idx.nodes))
			touched[rName] = r
		}
	}

	for l := range idx.layers {
		delete(idx.layers[l], name)
	}
	for len(idx.layers) > 0 && len(idx.layers[len(idx.layers)-1]) == 0 {
		idx.layers = idx.layers[:len(idx.layers)-1]
	}

	if idx.enterpoint == name {
		idx.hasEntry = false
		if len(idx.layers) > 0 {
			for cand := range idx.layers[len(idx.layers)-1] {
				idx.enterpoint = cand
				idx.hasEntry = true
				break
			}
		}
	}

	delete(idx.nodes, name)

	if idx.Accountant != nil {
		idx.Accountant.Release(nodeFootprint(idx.Dim, n.level(), idx.M))
	}

	idx.notifyAll(touched)
	return nil
}

// SearchKNN returns the k nearest nodes to q per spec §4.5: descend
// greedily with ef=1 from the entry point to layer 0, then run a
// breadth-ef search at layer 0 and return the closest k of the result.
func (idx *Index) SearchKNN(q Vector, k int) ([]Result, error) {
	if len(q) != idx.Dim {
		return nil, ErrDimensionMismatch
	}
	if k <= 0 {
		return nil, ErrInvalidK
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.hasEntry {
		return nil, nil
	}

	ep := idx.enterpoint
	for l := idx.topLevel(); l > 0; l-- {
		w := idx.searchLayerLocked(q, []string{ep}, 1, l)
		if best, ok := w.closest(); ok {
			ep = best
		}
	}

	ef := idx.EfConstruction
	if k > ef {
		ef = k
	}
	w := idx.searchLayerLocked(q, []string{ep}, ef, 0)
	sorted := w.sorted()
	if len(sorted) > k {
		sorted = sorted[:k]
	}

	out := make([]Result, len(sorted))
	for i, c := range sorted {
		out[i] = Result{Name: c.name, Distance: c.dist}
	}
	return out, nil
}

// searchLayerLocked implements search_layer (spec §4.5). Callers must
// already hold idx.mu (read or write); it resolves names through
// idx.nodes and each node's own lock guards that node's neighbor list.
func (idx *Index) searchLayerLocked(q Vector, entries []string, ef int, level int) *maxFrontier {
	visited := make(map[string]bool, ef*2)
	c := newMinFrontier()
	w := newMaxFrontier(ef)

	for _, e := range entries {
		if visited[e] {
			continue
		}
		visited[e] = true
		en := idx.nodes[e]
		if en == nil {
			continue
		}
		en.acquire()
		d := idx.Distance(q, en.Data)
		en.release()
		c.push(candidate{e, d})
		w.push(candidate{e, d})
	}

	for c.len() > 0 {
		cur := c.pop()
		if worst, ok := w.worst(); ok && w.full() && cur.dist > worst.dist {
			break
		}

		curNode := idx.nodes[cur.name]
		if curNode == nil {
			continue
		}
		curNode.acquire()
		friends := curNode.readLayer(level)
		curNode.release()

		for _, nb := range friends {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			nbNode := idx.nodes[nb]
			if nbNode == nil {
				continue
			}
			nbNode.acquire()
			d := idx.Distance(q, nbNode.Data)
			nbNode.release()

			worst, ok := w.worst()
			if !ok || w.len() < ef || d < worst.dist {
				c.push(candidate{nb, d})
				w.push(candidate{nb, d})
			}
		}
	}

	return w
}

// selectNeighbors implements the diversity-preserving heuristic (spec
// §4.6): walk candidates from nearest to v outward, accepting c only if
// v is strictly closer to c than every already-accepted neighbor is.
// Naively keeping the nearest m candidates instead clusters
// neighborhoods around a few hubs and measurably degrades recall,
// which is why this is the only selection rule the engine implements.
func selectNeighbors(v Vector, sortedCandidates []candidate, m int, dist DistanceFunc, nodes map[string]*Node) []string {
	accepted := make([]string, 0, m)
	acceptedNodes := make([]*Node, 0, m)

	for _, c := range sortedCandidates {
		if len(accepted) >= m {
			break
		}
		cn := nodes[c.name]
		if cn == nil {
			continue
		}
		ok := true
		for _, r := range acceptedNodes {
			if dist(cn.Data, r.Data) <= c.dist {
				ok = false
				break
			}
		}
		if ok {
			accepted = append(accepted, c.name)
			acceptedNodes = append(acceptedNodes, cn)
		}
	}
	return accepted
}

// candidatesFrom builds a distance-sorted candidate list from v to each
// named node, skipping names that do not resolve to a node in the
// index.
func candidatesFrom(v Vector, names []string, dist DistanceFunc, nodes map[string]*Node) []candidate {
	out := make([]candidate, 0, len(names))
	for _, name := range names {
		n := nodes[name]
		if n == nil {
			continue
		}
		out = append(out, candidate{name: name, dist: dist(v, n.Data)})
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// SnapshotMeta captures the index's structural state without node
// bodies: cheap enough to call after every mutating command.
func (idx *Index) SnapshotMeta() IndexRecord {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.snapshotMetaLocked()
}

func (idx *Index) snapshotMetaLocked() IndexRecord {
	distName, _ := distanceFuncName(idx.Distance)

	rec := IndexRecord{
		Name:           idx.Name,
		Dim:            idx.Dim,
		M:              idx.M,
		EfConstruction: idx.EfConstruction,
		ML:             idx.ML,
		DistanceName:   distName,
		NodeCount:      len(idx.nodes),
		Enterpoint:     idx.enterpoint,
		HasEnterpoint:  idx.hasEntry,
	}

	rec.NodeNames = make([]string, 0, len(idx.nodes))
	for name := range idx.nodes {
		rec.NodeNames = append(rec.NodeNames, name)
	}
	sort.Strings(rec.NodeNames)

	rec.Layers = make([][]string, len(idx.layers))
	for l, layer := range idx.layers {
		names := make([]string, 0, len(layer))
		for name := range layer {
			names = append(names, name)
		}
		sort.Strings(names)
		rec.Layers[l] = names
	}
	return rec
}

// Snapshot captures the full persistable state of the index: its
// structural record plus every node's data and neighbor lists.
// Returns an error if the index's distance function was never
// registered with RegisterDistanceFunc, since that would make the
// record impossible to reload.
func (idx *Index) Snapshot() (IndexRecord, []NodeRecord, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if _, ok := distanceFuncName(idx.Distance); !ok {
		return IndexRecord{}, nil, fmt.Errorf("hnsw: distance function for index %q is not registered", idx.Name)
	}

	rec := idx.snapshotMetaLocked()
	nodeRecs := make([]NodeRecord, 0, len(rec.NodeNames))
	for _, name := range rec.NodeNames {
		nodeRecs = append(nodeRecs, idx.snapshotNodeLocked(idx.nodes[name]))
	}
	return rec, nodeRecs, nil
}

// LoadIndex reconstructs an Index from a structural record and its node
// bodies, rejecting the record if any neighbor list or layer set names
// a node that was never allocated.
func LoadIndex(rec IndexRecord, nodeRecs []NodeRecord, opts ...Option) (*Index, error) {
	distFn, ok := distanceFuncs[rec.DistanceName]
	if !ok {
		return nil, fmt.Errorf("hnsw: unknown distance function %q", rec.DistanceName)
	}

	idx := &Index{
		Name:           rec.Name,
		Dim:            rec.Dim,
		M:              rec.M,
		MMax:           rec.M,
		MMax0:          rec.M * 2,
		EfConstruction: rec.EfConstruction,
		ML:             rec.ML,
		Distance:       distFn,
		nodes:          make(map[string]*Node, len(nodeRecs)),
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(idx)
	}

	byName := make(map[string]*Node, len(nodeRecs))
	for _, nr := range nodeRecs {
		byName[nr.Name] = &Node{
			Name:      nr.Name,
			Data:      append(Vector{}, nr.Data...),
			neighbors: make([][]string, len(nr.Neighbors)),
		}
	}

	for _, nr := range nodeRecs {
		n := byName[nr.Name]
		for l, names := range nr.Neighbors {
			for _, nb := range names {
				if _, ok := byName[nb]; !ok {
					return nil, fmt.Errorf("%w: node %q lists missing neighbor %q", ErrDanglingReference, nr.Name, nb)
				}
			}
			cp := make([]string, len(names))
			copy(cp, names)
			n.neighbors[l] = cp
		}
		idx.nodes[nr.Name] = n
	}

	idx.layers = make([]map[string]struct{}, len(rec.Layers))
	for l, names := range rec.Layers {
		set := make(map[string]struct{}, len(names))
		for _, name := range names {
			if _, ok := idx.nodes[name]; !ok {
				return nil, fmt.Errorf("%w: layer %d references missing node %q", ErrDanglingReference, l, name)
			}
			set[name] = struct{}{}
		}
		idx.layers[l] = set
	}

	if rec.HasEnterpoint {
		if _, ok := idx.nodes[rec.Enterpoint]; !ok {
			return nil, fmt.Errorf("%w: enterpoint %q is missing", ErrDanglingReference, rec.Enterpoint)
		}
		idx.enterpoint = rec.Enterpoint
		idx.hasEntry = true
	}

	return idx, nil
}

func (idx *Index) notifyAll(touched map[string]*Node) {
	if idx.Logger == nil && idx.OnMutate == nil {
		return
	}
	for _, n := range touched {
		rec := idx.snapshotNodeLocked(n)
		if idx.Logger != nil {
			idx.Logger.Debug("node mutated", "index", idx.Name, "node", rec.Name)
		}
		if idx.OnMutate != nil {
			idx.OnMutate(rec)
		}
	}
}

func (idx *Index) snapshotNodeLocked(n *Node) NodeRecord {
	neighbors := make([][]string, n.level()+1)
	for l := range neighbors {
		neighbors[l] = n.readLayer(l)
	}
	return NodeRecord{
		Name:      n.Name,
		Data:      append(Vector{}, n.Data...),
		Neighbors: neighbors,
	}
}

