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
	"sync"
	"sync/atomic"
)

// Node is one point in the graph. Its neighbor lists are held by name
// rather than by pointer: a name that no longer resolves through the
// owning Index's node map is simply gone, which is how this package
// expresses the "weak back-reference" semantics of the data model
// without reaching for unsafe pointers or the runtime's weak package.
// Strong ownership of a Node lives in exactly one place, the Index's
// node map; every neighbor list is a set of borrowed names.
type Node struct {
	Name string
	Data Vector

	mu        sync.RWMutex
	neighbors [][]string // neighbors[l] = this node's friends at layer l

	inflight int32 // operations currently holding this node open
}

func newNode(name string, data Vector, level int) *Node {
	return &Node{
		Name:      name,
		Data:      data,
		neighbors: make([][]string, level+1),
	}
}

// level is the highest layer this node participates in.
func (n *Node) level() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.neighbors) - 1
}

// readLayer returns a copy of the neighbor names at layer l. Returns
// nil if l exceeds this node's top layer.
func (n *Node) readLayer(l int) []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if l < 0 || l >= len(n.neighbors) {
		return nil
	}
	out := make([]string, len(n.neighbors[l]))
	copy(out, n.neighbors[l])
	return out
}

// writeLayer replaces the neighbor names at layer l.
func (n *Node) writeLayer(l int, names []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if l < 0 || l >= len(n.neighbors) {
		return
	}
	cp := make([]string, len(names))
	copy(cp, names)
	n.neighbors[l] = cp
}

// acquire marks the node as held open by one more in-flight operation.
// Paired with release.
func (n *Node) acquire() {
	atomic.AddInt32(&n.inflight, 1)
}

func (n *Node) release() {
	atomic.AddInt32(&n.inflight, -1)
}

// busy reports whether some other operation currently holds this node
// open. Delete consults this to implement the NodeBusy refusal: a node
// mid-traversal is never pulled out from under a concurrent search or
// insertion.
func (n *Node) busy() bool {
	return atomic.LoadInt32(&n.inflight) > 0
}

func containsName(names []string, target string) bool {
	for _, n := range names {
		if n == target {
			return true
		}
	}
	return false
}

func removeName(names []string, target string) []string {
	out := names[:0:0]
	for _, n := range names {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}
