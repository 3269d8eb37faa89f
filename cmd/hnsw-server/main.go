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

// Command hnsw-server runs the HNSW index engine behind a line-oriented
// command loop: one command per line of stdin, one reply per command on
// stdout (an array reply is a header line followed by one line per
// item), in the spirit of the levelgraph CLI this tool is descended
// from but serving the vector-index command surface instead of triple
// queries.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aabbdev/redis-hnsw/server"
	"github.com/aabbdev/redis-hnsw/store"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, in io.Reader, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("hnsw-server", flag.ContinueOnError)
	fs.SetOutput(errOut)
	dbPath := fs.String("db", "hnsw.db", "path to the on-disk index store")
	memOnly := fs.Bool("mem", false, "use an in-memory store instead of the on-disk one")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	var kv store.KVStore
	var err error
	if *memOnly {
		kv = store.NewMemStore()
	} else {
		kv, err = store.Open(*dbPath)
		if err != nil {
			fmt.Fprintf(errOut, "open store: %v\n", err)
			return 1
		}
	}
	defer kv.Close()

	logger := slog.New(slog.NewTextHandler(errOut, nil))
	reg := server.NewRegistry(kv, server.WithLogger(logger))

	return serve(reg, in, out)
}

func serve(reg *server.Registry, in io.Reader, out io.Writer) int {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToUpper(fields[0])

		reply, err := reg.Dispatch(cmd, fields[1:])
		if err != nil {
			fmt.Fprintf(out, "-ERR %v\n", err)
			continue
		}
		writeReply(out, reply)
	}
	return 0
}

func writeReply(out io.Writer, r server.Reply) {
	switch {
	case r.IsArray():
		items := r.Items()
		fmt.Fprintf(out, "*%d\n", len(items))
		for _, item := range items {
			writeReply(out, item)
		}
	case r.IsInt():
		fmt.Fprintf(out, ":%d\n", r.IntValue())
	default:
		fmt.Fprintf(out, "+%s\n", r.StatusValue())
	}
}
