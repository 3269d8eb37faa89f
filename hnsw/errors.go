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

import "errors"

// Error kinds returned by the graph engine. The adapter that sits above
// the registry (see the server package) maps these onto the wire-level
// error kinds in the command surface; the engine itself never knows
// about that mapping.
var (
	// ErrDuplicateNode is returned when Add is called with a name that
	// already exists in the index.
	ErrDuplicateNode = errors.New("hnsw: duplicate node")

	// ErrUnknownNode is returned when a node name has no entry in the index.
	ErrUnknownNode = errors.New("hnsw: unknown node")

	// ErrDimensionMismatch is returned when a vector's length does not
	// equal the index's configured dimensionality.
	ErrDimensionMismatch = errors.New("hnsw: vector dimension mismatch")

	// ErrNodeBusy is returned when Delete is called on a node that is
	// still held open by another in-flight operation. The caller is
	// expected to retry.
	ErrNodeBusy = errors.New("hnsw: node busy, retry")

	// ErrDanglingReference is returned while reconstructing an index from
	// persisted records when a record names a node that was never
	// allocated.
	ErrDanglingReference = errors.New("hnsw: dangling node reference")

	// ErrUnknownIndex is returned when loading an index record that does
	// not exist in the host store.
	ErrUnknownIndex = errors.New("hnsw: unknown index")

	// ErrInvalidK is returned when a search is requested for k <= 0.
	ErrInvalidK = errors.New("hnsw: k must be positive")
)
