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

package server

import (
	"errors"
	"testing"

	"github.com/aabbdev/redis-hnsw/hnsw"
	"github.com/aabbdev/redis-hnsw/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	kv := store.NewMemStore()
	t.Cleanup(func() { kv.Close() })
	return NewRegistry(kv)
}

func TestCreateAndDescribe(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Create("images", 3, 4, 16); err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec, err := r.Describe("images")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if rec.Dim != 3 || rec.M != 4 || rec.EfConstruction != 16 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestCreateDuplicateFails(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Create("images", 3, 4, 16); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Create("images", 3, 4, 16); err != ErrDuplicateIndex {
		t.Fatalf("expected ErrDuplicateIndex, got %v", err)
	}
}

func TestDescribeUnknownIndex(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Describe("ghost"); err != hnsw.ErrUnknownIndex {
		t.Fatalf("expected hnsw.ErrUnknownIndex, got %v", err)
	}
}

func TestAddNodeSearchAndDeleteNode(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Create("images", 2, 4, 16); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.AddNode("images", "cat", hnsw.Vector{1, 1}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := r.AddNode("images", "dog", hnsw.Vector{5, 5}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	results, err := r.Search("images", hnsw.Vector{1, 1}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Name != "cat" {
		t.Fatalf("expected [cat], got %v", results)
	}

	v, err := r.GetNode("images", "cat")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if len(v) != 2 || v[0] != 1 {
		t.Fatalf("unexpected vector: %v", v)
	}

	if err := r.DeleteNode("images", "cat"); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	if _, err := r.GetNode("images", "cat"); err != hnsw.ErrUnknownNode {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}
}

func TestDropIndexThenLazyLoadFails(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Create("images", 2, 4, 16); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Drop("images"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if _, err := r.Describe("images"); err != hnsw.ErrUnknownIndex {
		t.Fatalf("expected hnsw.ErrUnknownIndex, got %v", err)
	}
}

func TestRegistryPersistsAcrossReload(t *testing.T) {
	kv := store.NewMemStore()
	defer kv.Close()

	r1 := NewRegistry(kv)
	if err := r1.Create("images", 2, 4, 16); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r1.AddNode("images", "cat", hnsw.Vector{1, 1}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	// A brand new registry over the same store must see the node
	// without anyone having called Create again.
	r2 := NewRegistry(kv)
	v, err := r2.GetNode("images", "cat")
	if err != nil {
		t.Fatalf("GetNode on reloaded registry: %v", err)
	}
	if len(v) != 2 {
		t.Fatalf("unexpected vector: %v", v)
	}
}

func TestDropUnknownIndex(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Drop("ghost"); !errors.Is(err, hnsw.ErrUnknownIndex) {
		t.Fatalf("expected hnsw.ErrUnknownIndex, got %v", err)
	}
}

func TestMemoryBytesGrowsOnAddAndShrinksOnDelete(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Create("images", 4, 4, 16); err != nil {
		t.Fatalf("Create: %v", err)
	}

	before := r.MemoryBytes()
	if err := r.AddNode("images", "cat", hnsw.Vector{1, 2, 3, 4}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	afterAdd := r.MemoryBytes()
	if afterAdd <= before {
		t.Fatalf("expected MemoryBytes to grow after AddNode: before=%d after=%d", before, afterAdd)
	}

	if err := r.DeleteNode("images", "cat"); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	afterDelete := r.MemoryBytes()
	if afterDelete != before {
		t.Fatalf("expected MemoryBytes to return to baseline after delete: before=%d after=%d", before, afterDelete)
	}
}
