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
	"testing"

	"github.com/aabbdev/redis-hnsw/store"
)

func buildSampleIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex("widgets", 2, 4, 16, WithSeed(7))
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	for name, v := range map[string]Vector{
		"a": {0, 0},
		"b": {1, 1},
		"c": {2, 2},
		"d": {3, 3},
	} {
		if err := idx.Add(name, v); err != nil {
			t.Fatalf("Add(%s): %v", name, err)
		}
	}
	return idx
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	kv := store.NewMemStore()
	defer kv.Close()

	idx := buildSampleIndex(t)
	if err := Save(kv, idx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(kv, "widgets")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Len() != idx.Len() {
		t.Fatalf("loaded %d nodes, want %d", loaded.Len(), idx.Len())
	}

	results, err := loaded.SearchKNN(Vector{1, 1}, 1)
	if err != nil {
		t.Fatalf("SearchKNN on loaded index: %v", err)
	}
	if len(results) != 1 || results[0].Name != "b" {
		t.Fatalf("expected [b] from loaded index, got %v", results)
	}
}

func TestLoadUnknownIndex(t *testing.T) {
	kv := store.NewMemStore()
	defer kv.Close()

	if _, err := Load(kv, "nope"); err != ErrUnknownIndex {
		t.Fatalf("expected ErrUnknownIndex, got %v", err)
	}
}

func TestLoadIndexDetectsDanglingNeighborReference(t *testing.T) {
	rec := IndexRecord{
		Name:          "broken",
		Dim:           2,
		M:             4,
		DistanceName:  "squared_euclidean",
		NodeNames:     []string{"a"},
		Layers:        [][]string{{"a"}},
		Enterpoint:    "a",
		HasEnterpoint: true,
	}
	nodeRecs := []NodeRecord{
		{Name: "a", Data: Vector{0, 0}, Neighbors: [][]string{{"ghost"}}},
	}

	if _, err := LoadIndex(rec, nodeRecs); err == nil {
		t.Fatal("expected dangling reference error, got nil")
	}
}

func TestLoadIndexDetectsDanglingLayerReference(t *testing.T) {
	rec := IndexRecord{
		Name:         "broken",
		Dim:          2,
		M:            4,
		DistanceName: "squared_euclidean",
		NodeNames:    []string{"a"},
		Layers:       [][]string{{"a", "ghost"}},
	}
	nodeRecs := []NodeRecord{
		{Name: "a", Data: Vector{0, 0}, Neighbors: [][]string{{}}},
	}

	if _, err := LoadIndex(rec, nodeRecs); err == nil {
		t.Fatal("expected dangling reference error, got nil")
	}
}

func TestDeleteIndexRemovesAllRecords(t *testing.T) {
	kv := store.NewMemStore()
	defer kv.Close()

	idx := buildSampleIndex(t)
	if err := Save(kv, idx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := DeleteIndex(kv, idx); err != nil {
		t.Fatalf("DeleteIndex: %v", err)
	}

	if _, err := Load(kv, "widgets"); err != ErrUnknownIndex {
		t.Fatalf("expected ErrUnknownIndex after delete, got %v", err)
	}
	if _, err := kv.Get(NodeKey("widgets", "a"), nil); err != store.ErrNotFound {
		t.Fatalf("expected node record gone, got %v", err)
	}
}

func TestOnMutateFiresForInsertAndRepair(t *testing.T) {
	var mutated []string
	idx, err := NewIndex("events", 2, 2, 16, WithSeed(3), WithOnMutate(func(nr NodeRecord) {
		mutated = append(mutated, nr.Name)
	}))
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}

	if err := idx.Add("a", Vector{0, 0}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(mutated) == 0 {
		t.Fatal("expected OnMutate to fire for the first insert")
	}

	mutated = nil
	if err := idx.Add("b", Vector{1, 1}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	found, foundNeighbor := false, false
	for _, name := range mutated {
		switch name {
		case "b":
			found = true
		case "a":
			foundNeighbor = true
		}
	}
	if !found {
		t.Fatalf("expected OnMutate to report the new node, got %v", mutated)
	}
	if !foundNeighbor {
		t.Fatalf("expected OnMutate to report the back-linked neighbor a, got %v", mutated)
	}
}

type fakeAccountant struct{ bytes int64 }

func (a *fakeAccountant) Reserve(n int64) { a.bytes += n }
func (a *fakeAccountant) Release(n int64) { a.bytes -= n }

func TestAccountantTracksReserveAndRelease(t *testing.T) {
	acc := &fakeAccountant{}
	idx, err := NewIndex("events", 2, 4, 16, WithSeed(5), WithAccountant(acc))
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}

	if err := idx.Add("a", Vector{0, 0}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	afterAdd := acc.bytes
	if afterAdd <= 0 {
		t.Fatalf("expected positive reserved bytes after Add, got %d", afterAdd)
	}

	if err := idx.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if acc.bytes != 0 {
		t.Fatalf("expected bytes to return to 0 after Delete, got %d", acc.bytes)
	}
}
