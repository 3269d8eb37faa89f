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

// Package server adapts the hnsw engine to a key-value command surface:
// it keeps a registry of open indices, lazily loading one from the host
// store the first time a command names it, and persists every mutation
// back through the same store. The wire protocol itself (see
// cmd/hnsw-server) sits one layer further out and only ever calls
// Registry.Dispatch with already-tokenized arguments.
package server

import (
	"log/slog"
	"sync"

	"github.com/aabbdev/redis-hnsw/hnsw"
	"github.com/aabbdev/redis-hnsw/store"
)

// indexPrefix namespaces every index this registry manages within the
// shared host store, the same role "hnsw" plays as a Redis key prefix
// in the module this design is descended from.
const indexPrefix = "hnsw"

// Registry is the in-memory set of open indices for one host store. An
// index absent from the map is not necessarily unknown: it may simply
// not have been touched yet this process, in which case resolve loads
// it from the store on demand.
type Registry struct {
	mu         sync.RWMutex
	kv         store.KVStore
	indices    map[string]*hnsw.Index
	Logger     *slog.Logger
	accountant *processAccountant
}

// RegistryOption configures a Registry at construction.
type RegistryOption func(*Registry)

// WithLogger attaches a structured logger; it is also handed to every
// index the registry creates or loads.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.Logger = l }
}

// NewRegistry creates a registry backed by kv. No indices are loaded
// until a command first names one.
func NewRegistry(kv store.KVStore, opts ...RegistryOption) *Registry {
	r := &Registry{kv: kv, indices: make(map[string]*hnsw.Index), accountant: newProcessAccountant()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// qualify namespaces an index's name for the registry's in-memory
// r.indices map only. The on-disk key namespace is owned entirely by
// hnsw.IndexKey/hnsw.NodeKey, which already prepend this same "hnsw."
// prefix (see hnsw/persist.go); every call into the hnsw package below
// uses the bare name so the prefix is applied exactly once.
func qualify(name string) string {
	return indexPrefix + "." + name
}

func (r *Registry) indexOptions(name string) []hnsw.Option {
	opts := []hnsw.Option{
		hnsw.WithOnMutate(func(nr hnsw.NodeRecord) {
			if err := hnsw.SaveNode(r.kv, name, nr); err != nil && r.Logger != nil {
				r.Logger.Error("persist node failed", "index", name, "node", nr.Name, "error", err)
			}
		}),
		hnsw.WithAccountant(r.accountant),
	}
	if r.Logger != nil {
		opts = append(opts, hnsw.WithLogger(r.Logger))
	}
	return opts
}

// Create registers a brand new, empty index and persists its initial
// structural record.
func (r *Registry) Create(name string, dim, m, efConstruction int) error {
	mapKey := qualify(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.indices[mapKey]; ok {
		return ErrDuplicateIndex
	}
	if _, err := r.kv.Get(hnsw.IndexKey(name), nil); err == nil {
		return ErrDuplicateIndex
	}

	idx, err := hnsw.NewIndex(name, dim, m, efConstruction, r.indexOptions(name)...)
	if err != nil {
		return err
	}
	if err := hnsw.Save(r.kv, idx); err != nil {
		return err
	}

	r.indices[mapKey] = idx
	return nil
}

// resolve returns the open index for name, loading it from the store on
// first use.
func (r *Registry) resolve(name string) (*hnsw.Index, error) {
	mapKey := qualify(name)

	r.mu.RLock()
	idx, ok := r.indices[mapKey]
	r.mu.RUnlock()
	if ok {
		return idx, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.indices[mapKey]; ok {
		return idx, nil
	}

	idx, err := hnsw.Load(r.kv, name, r.indexOptions(name)...)
	if err != nil {
		return nil, err
	}
	r.indices[mapKey] = idx
	return idx, nil
}

// Drop removes an index entirely, from memory and from the store.
func (r *Registry) Drop(name string) error {
	mapKey := qualify(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.indices[mapKey]
	if !ok {
		loaded, err := hnsw.Load(r.kv, name, r.indexOptions(name)...)
		if err != nil {
			return err
		}
		idx = loaded
	}

	if err := hnsw.DeleteIndex(r.kv, idx); err != nil {
		return err
	}
	delete(r.indices, mapKey)
	return nil
}

// Describe returns an index's structural metadata, the payload behind
// the GET command.
func (r *Registry) Describe(name string) (hnsw.IndexRecord, error) {
	idx, err := r.resolve(name)
	if err != nil {
		return hnsw.IndexRecord{}, err
	}
	return idx.SnapshotMeta(), nil
}

// MemoryBytes reports the registry's estimated total footprint across
// every index it has opened this process, fed by each index's
// MemoryAccountant callbacks.
func (r *Registry) MemoryBytes() int64 {
	return r.accountant.Bytes()
}

// AddNode inserts a node into an existing index and refreshes the
// index's persisted metadata (node_count, layers, enterpoint); the node
// record itself is written by the index's OnMutate callback as a side
// effect of Add.
func (r *Registry) AddNode(indexName, nodeName string, v hnsw.Vector) error {
	idx, err := r.resolve(indexName)
	if err != nil {
		return err
	}
	if err := idx.Add(nodeName, v); err != nil {
		return err
	}
	return hnsw.SaveIndexMeta(r.kv, idx.SnapshotMeta())
}

// GetNode returns a node's stored vector.
func (r *Registry) GetNode(indexName, nodeName string) (hnsw.Vector, error) {
	idx, err := r.resolve(indexName)
	if err != nil {
		return nil, err
	}
	return idx.NodeVector(nodeName)
}

// DeleteNode removes a node, repairs its former neighbors in memory and
// on disk (via OnMutate), deletes the node's own record, and refreshes
// the index's persisted metadata.
func (r *Registry) DeleteNode(indexName, nodeName string) error {
	idx, err := r.resolve(indexName)
	if err != nil {
		return err
	}
	if err := idx.Delete(nodeName); err != nil {
		return err
	}
	if err := r.kv.Delete(hnsw.NodeKey(idx.Name, nodeName), nil); err != nil {
		return err
	}
	return hnsw.SaveIndexMeta(r.kv, idx.SnapshotMeta())
}

// Search answers a k-nearest-neighbor query against an existing index.
func (r *Registry) Search(indexName string, q hnsw.Vector, k int) ([]hnsw.Result, error) {
	idx, err := r.resolve(indexName)
	if err != nil {
		return nil, err
	}
	return idx.SearchKNN(q, k)
}
