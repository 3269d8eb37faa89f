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
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/aabbdev/redis-hnsw/store"
)

// keyPrefix groups every key this package owns in the host store, the
// same way the original redis_module build used "hnsw" as its key
// namespace.
const keyPrefix = "hnsw"

// IndexKey is the store key an index's structural record is saved
// under.
func IndexKey(name string) []byte {
	return []byte(keyPrefix + "." + name)
}

// NodeKey is the store key a single node's record is saved under.
func NodeKey(indexName, nodeName string) []byte {
	return []byte(keyPrefix + "." + indexName + "." + nodeName)
}

// SaveIndexMeta persists just the structural record, the cheap write
// issued after every mutating command so the on-disk node_count,
// layers and enterpoint never drift from memory.
func SaveIndexMeta(kv store.KVStore, rec IndexRecord) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("hnsw: encode index record for %q: %w", rec.Name, err)
	}
	if err := kv.Put(IndexKey(rec.Name), buf.Bytes(), nil); err != nil {
		return fmt.Errorf("hnsw: persist index record for %q: %w", rec.Name, err)
	}
	return nil
}

// SaveNode persists a single node record under its owning index.
func SaveNode(kv store.KVStore, indexName string, nr NodeRecord) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(nr); err != nil {
		return fmt.Errorf("hnsw: encode node %q: %w", nr.Name, err)
	}
	if err := kv.Put(NodeKey(indexName, nr.Name), buf.Bytes(), nil); err != nil {
		return fmt.Errorf("hnsw: persist node %q: %w", nr.Name, err)
	}
	return nil
}

// Save writes the index's structural record and every node record to
// kv. Used to materialize a brand new index and in tests; day-to-day
// mutation instead uses SaveIndexMeta plus the OnMutate callback so
// that a single NODE.ADD does not rewrite the whole index.
func Save(kv store.KVStore, idx *Index) error {
	rec, nodeRecs, err := idx.Snapshot()
	if err != nil {
		return err
	}
	if err := SaveIndexMeta(kv, rec); err != nil {
		return err
	}
	for _, nr := range nodeRecs {
		if err := SaveNode(kv, idx.Name, nr); err != nil {
			return err
		}
	}
	return nil
}

// DeleteIndex removes an index's structural record and every one of
// its node records from kv.
func DeleteIndex(kv store.KVStore, idx *Index) error {
	rec := idx.SnapshotMeta()
	for _, name := range rec.NodeNames {
		if err := kv.Delete(NodeKey(idx.Name, name), nil); err != nil {
			return fmt.Errorf("hnsw: delete node %q: %w", name, err)
		}
	}
	if err := kv.Delete(IndexKey(idx.Name), nil); err != nil {
		return fmt.Errorf("hnsw: delete index record for %q: %w", idx.Name, err)
	}
	return nil
}

// Load reconstructs an index from kv, detecting dangling references
// left by a partial write the same way LoadIndex does.
func Load(kv store.KVStore, name string, opts ...Option) (*Index, error) {
	raw, err := kv.Get(IndexKey(name), nil)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, ErrUnknownIndex
		}
		return nil, fmt.Errorf("hnsw: read index record for %q: %w", name, err)
	}

	var rec IndexRecord
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("hnsw: decode index record for %q: %w", name, err)
	}

	nodeRecs := make([]NodeRecord, 0, len(rec.NodeNames))
	for _, nodeName := range rec.NodeNames {
		nraw, err := kv.Get(NodeKey(name, nodeName), nil)
		if err != nil {
			if err == store.ErrNotFound {
				return nil, fmt.Errorf("%w: node %q missing from store", ErrDanglingReference, nodeName)
			}
			return nil, fmt.Errorf("hnsw: read node %q: %w", nodeName, err)
		}
		var nr NodeRecord
		if err := gob.NewDecoder(bytes.NewReader(nraw)).Decode(&nr); err != nil {
			return nil, fmt.Errorf("hnsw: decode node %q: %w", nodeName, err)
		}
		nodeRecs = append(nodeRecs, nr)
	}

	return LoadIndex(rec, nodeRecs, opts...)
}
