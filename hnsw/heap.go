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

package hnsw

import (
	"container/heap"
	"sort"
)

// candidate pairs a node name with its distance to the point currently
// being searched for or inserted. Ties in distance break on node name
// so that traversal order is deterministic across runs and platforms.
type candidate struct {
	name string
	dist float32
}

func less(a, b candidate) bool {
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	return a.name < b.name
}

// candidateQueue backs minFrontier: a plain min-heap on distance.
type candidateQueue []candidate

func (q candidateQueue) Len() int            { return len(q) }
func (q candidateQueue) Less(i, j int) bool  { return less(q[i], q[j]) }
func (q candidateQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *candidateQueue) Push(x interface{}) { *q = append(*q, x.(candidate)) }
func (q *candidateQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// minFrontier is the candidate set C of search_layer (spec §4.5): an
// unbounded min-heap of nodes still to be explored, closest first.
type minFrontier struct {
	q candidateQueue
}

func newMinFrontier() *minFrontier {
	return &minFrontier{}
}

func (f *minFrontier) push(c candidate) {
	heap.Push(&f.q, c)
}

func (f *minFrontier) pop() candidate {
	return heap.Pop(&f.q).(candidate)
}

func (f *minFrontier) len() int {
	return len(f.q)
}

// resultQueue backs maxFrontier: a max-heap on distance, so the root is
// always the current worst result.
type resultQueue []candidate

func (q resultQueue) Len() int            { return len(q) }
func (q resultQueue) Less(i, j int) bool  { return less(q[j], q[i]) }
func (q resultQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *resultQueue) Push(x interface{}) { *q = append(*q, x.(candidate)) }
func (q *resultQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// maxFrontier is the result set W of search_layer (spec §4.5): a
// max-heap capped at ef entries. Pushing past capacity evicts the
// current worst entry iff the new candidate orders before it: strictly
// closer, or equally close with a smaller name.
type maxFrontier struct {
	q  resultQueue
	ef int
}

func newMaxFrontier(ef int) *maxFrontier {
	if ef < 1 {
		ef = 1
	}
	return &maxFrontier{ef: ef}
}

func (f *maxFrontier) len() int { return len(f.q) }

func (f *maxFrontier) full() bool { return len(f.q) >= f.ef }

func (f *maxFrontier) worst() (candidate, bool) {
	if len(f.q) == 0 {
		return candidate{}, false
	}
	return f.q[0], true
}

// push inserts c, evicting the current worst entry when the frontier is
// already at capacity and c orders before it (closer, or equally close
// with a smaller name). Returns true if c was kept.
func (f *maxFrontier) push(c candidate) bool {
	if len(f.q) < f.ef {
		heap.Push(&f.q, c)
		return true
	}
	worst, _ := f.worst()
	if !less(c, worst) {
		return false
	}
	heap.Pop(&f.q)
	heap.Push(&f.q, c)
	return true
}

// closest returns the nearest entry currently held, used when descending
// through upper layers with ef=1.
func (f *maxFrontier) closest() (string, bool) {
	if len(f.q) == 0 {
		return "", false
	}
	best := f.q[0]
	for _, c := range f.q[1:] {
		if less(c, best) {
			best = c
		}
	}
	return best.name, true
}

// sorted returns the frontier's entries as an ascending-distance slice.
// The frontier itself is left unchanged.
func (f *maxFrontier) sorted() []candidate {
	out := make([]candidate, len(f.q))
	copy(out, f.q)
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
