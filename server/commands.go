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
	"fmt"
	"strconv"

	"github.com/aabbdev/redis-hnsw/hnsw"
)

// replyKind distinguishes the three shapes a Reply can take.
type replyKind int

const (
	kindStatus replyKind = iota
	kindInt
	kindArray
)

// Reply is the result of one command: a short status string, an
// integer, or an ordered array of further replies. It mirrors a
// key-value protocol's reply union (e.g. a RESP array) without tying
// this package to any one wire format; cmd/hnsw-server is what turns a
// Reply into bytes on a transport.
type Reply struct {
	status string
	n      int64
	items  []Reply
	kind   replyKind
}

// Status builds a short-string reply, e.g. "OK".
func Status(s string) Reply { return Reply{status: s, kind: kindStatus} }

// Int builds an integer reply.
func Int(n int64) Reply { return Reply{n: n, kind: kindInt} }

// Array builds a nested reply out of other replies.
func Array(items ...Reply) Reply { return Reply{items: items, kind: kindArray} }

func (r Reply) IsArray() bool     { return r.kind == kindArray }
func (r Reply) IsInt() bool       { return r.kind == kindInt }
func (r Reply) Items() []Reply    { return r.items }
func (r Reply) IntValue() int64   { return r.n }
func (r Reply) StatusValue() string { return r.status }

// Dispatch executes one already-tokenized command against the
// registry. Argument parsing and arity checks live here, at the
// boundary between raw tokens and the engine's typed calls; the engine
// itself never sees a string it has to parse.
func (r *Registry) Dispatch(cmd string, args []string) (Reply, error) {
	switch cmd {
	case "NEW":
		return r.cmdNew(args)
	case "GET":
		return r.cmdGet(args)
	case "DEL":
		return r.cmdDel(args)
	case "NODE.ADD":
		return r.cmdNodeAdd(args)
	case "NODE.GET":
		return r.cmdNodeGet(args)
	case "NODE.DEL":
		return r.cmdNodeDel(args)
	case "SEARCH":
		return r.cmdSearch(args)
	default:
		return Reply{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
}

// defaultDim/defaultM/defaultEf are used by NEW when the caller omits
// the optional tuning arguments.
const (
	defaultDim = 512
	defaultM   = 5
	defaultEf  = 200
)

func (r *Registry) cmdNew(args []string) (Reply, error) {
	if len(args) < 1 {
		return Reply{}, ErrWrongArity
	}

	name := args[0]
	dim, m, ef := defaultDim, defaultM, defaultEf

	var err error
	if len(args) > 1 {
		if dim, err = parseUint(args[1]); err != nil {
			return Reply{}, err
		}
	}
	if len(args) > 2 {
		if m, err = parseUint(args[2]); err != nil {
			return Reply{}, err
		}
	}
	if len(args) > 3 {
		if ef, err = parseUint(args[3]); err != nil {
			return Reply{}, err
		}
	}
	if len(args) > 4 {
		return Reply{}, ErrWrongArity
	}

	if err := r.Create(name, dim, m, ef); err != nil {
		return Reply{}, err
	}
	return Status("OK"), nil
}

func (r *Registry) cmdGet(args []string) (Reply, error) {
	if len(args) != 1 {
		return Reply{}, ErrWrongArity
	}
	rec, err := r.Describe(args[0])
	if err != nil {
		return Reply{}, err
	}
	return Array(
		Status("dim"), Int(int64(rec.Dim)),
		Status("M"), Int(int64(rec.M)),
		Status("ef_construction"), Int(int64(rec.EfConstruction)),
		Status("node_count"), Int(int64(rec.NodeCount)),
		Status("memory_bytes"), Int(r.MemoryBytes()),
	), nil
}

func (r *Registry) cmdDel(args []string) (Reply, error) {
	if len(args) != 1 {
		return Reply{}, ErrWrongArity
	}
	if err := r.Drop(args[0]); err != nil {
		return Reply{}, err
	}
	return Int(1), nil
}

func (r *Registry) cmdNodeAdd(args []string) (Reply, error) {
	if len(args) < 3 {
		return Reply{}, ErrWrongArity
	}
	v, err := parseVector(args[2:])
	if err != nil {
		return Reply{}, err
	}
	if err := r.AddNode(args[0], args[1], v); err != nil {
		return Reply{}, err
	}
	return Status("OK"), nil
}

func (r *Registry) cmdNodeGet(args []string) (Reply, error) {
	if len(args) != 2 {
		return Reply{}, ErrWrongArity
	}
	v, err := r.GetNode(args[0], args[1])
	if err != nil {
		return Reply{}, err
	}
	items := make([]Reply, len(v))
	for i, f := range v {
		items[i] = floatReply(f)
	}
	return Array(items...), nil
}

func (r *Registry) cmdNodeDel(args []string) (Reply, error) {
	if len(args) != 2 {
		return Reply{}, ErrWrongArity
	}
	if err := r.DeleteNode(args[0], args[1]); err != nil {
		return Reply{}, err
	}
	return Int(1), nil
}

func (r *Registry) cmdSearch(args []string) (Reply, error) {
	if len(args) < 3 {
		return Reply{}, ErrWrongArity
	}
	k, err := parseUint(args[1])
	if err != nil {
		return Reply{}, err
	}
	q, err := parseVector(args[2:])
	if err != nil {
		return Reply{}, err
	}

	results, err := r.Search(args[0], q, k)
	if err != nil {
		return Reply{}, err
	}

	items := make([]Reply, 0, 1+len(results)*2)
	items = append(items, Int(int64(len(results))))
	for _, res := range results {
		items = append(items, Status(res.Name), floatReply(res.Distance))
	}
	return Array(items...), nil
}

func parseUint(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrParseError, s)
	}
	return n, nil
}

func parseVector(args []string) (hnsw.Vector, error) {
	v := make(hnsw.Vector, len(args))
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrParseError, a)
		}
		v[i] = float32(f)
	}
	return v, nil
}

func floatReply(f float32) Reply {
	return Status(strconv.FormatFloat(float64(f), 'f', -1, 32))
}
