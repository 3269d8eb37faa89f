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
	"sync/atomic"
)

// processAccountant is the registry's process-wide implementation of
// hnsw.MemoryAccountant: every index the registry opens shares one,
// so GET can report a host-visible total across all indices the way
// the original Redis module's auto_memory tracking did for the whole
// keyspace rather than per key.
type processAccountant struct {
	bytes int64
}

func newProcessAccountant() *processAccountant {
	return &processAccountant{}
}

func (a *processAccountant) Reserve(n int64) { atomic.AddInt64(&a.bytes, n) }
func (a *processAccountant) Release(n int64) { atomic.AddInt64(&a.bytes, -n) }

// Bytes reports the current estimated footprint of every node held by
// indices sharing this accountant.
func (a *processAccountant) Bytes() int64 { return atomic.LoadInt64(&a.bytes) }
