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

// Package store defines the host key-value store abstraction that the
// HNSW index engine persists through. It is the only thing the engine
// knows about durability: it never touches a file or a socket directly.
package store

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Iterator is an alias for the leveldb iterator interface.
type Iterator = iterator.Iterator

// Batch is an alias for leveldb.Batch.
type Batch = leveldb.Batch

// Range is an alias for util.Range.
type Range = util.Range

// ReadOptions is an alias for opt.ReadOptions.
type ReadOptions = opt.ReadOptions

// WriteOptions is an alias for opt.WriteOptions.
type WriteOptions = opt.WriteOptions

// NewBatch creates a new batch.
func NewBatch() *Batch {
	return new(leveldb.Batch)
}

// ErrNotFound is returned when a key is not found.
var ErrNotFound = leveldb.ErrNotFound

// KVStore is the host key-value store the index engine persists
// serialized index and node records through. Command parsing, network
// transport, and the on-disk encoding scheme all live outside this
// interface; the engine only ever Gets, Puts, Deletes, and iterates.
type KVStore interface {
	Get(key []byte, ro *ReadOptions) (value []byte, err error)
	Put(key, value []byte, wo *WriteOptions) error
	Delete(key []byte, wo *WriteOptions) error
	Write(batch *Batch, wo *WriteOptions) error
	NewIterator(slice *Range, ro *ReadOptions) Iterator
	Close() error
}

// Open opens or creates a LevelDB-backed KVStore at path.
func Open(path string) (KVStore, error) {
	return leveldb.OpenFile(path, &opt.Options{})
}

// Keys matching this prefix are owned by the caller; List returns the
// suffixes (the part of the key after the prefix) of matching entries,
// which is convenient for enumerating e.g. all node names of an index.
func List(kv KVStore, prefix []byte) ([][]byte, error) {
	iter := kv.NewIterator(&Range{Start: prefix, Limit: upperBound(prefix)}, nil)
	defer iter.Release()

	var out [][]byte
	for iter.Next() {
		key := iter.Key()
		suffix := make([]byte, len(key)-len(prefix))
		copy(suffix, key[len(prefix):])
		out = append(out, suffix)
	}
	return out, iter.Error()
}

// upperBound returns the smallest byte string that is strictly greater
// than every string with the given prefix, i.e. the exclusive end of a
// prefix scan.
func upperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	// prefix is all 0xff bytes; there is no finite upper bound, so scan
	// to the end of the keyspace.
	return nil
}
