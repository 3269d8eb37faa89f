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

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunEndToEnd(t *testing.T) {
	script := strings.Join([]string{
		"NEW photos 2 4 16",
		"NODE.ADD photos cat 1 1",
		"NODE.ADD photos dog 5 5",
		"SEARCH photos 1 1 1",
		"NODE.DEL photos cat",
		"DEL photos",
	}, "\n") + "\n"

	var out, errOut bytes.Buffer
	code := run([]string{"-mem"}, strings.NewReader(script), &out, &errOut)
	if code != 0 {
		t.Fatalf("run exited %d, stderr: %s", code, errOut.String())
	}

	got := out.String()
	for _, want := range []string{"+OK", "*3", "cat", ":1"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, got)
		}
	}
}

func TestRunEndToEndOnDiskStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hnsw.db")
	script := strings.Join([]string{
		"NEW photos 2 4 16",
		"NODE.ADD photos cat 1 1",
		"NODE.ADD photos dog 5 5",
		"SEARCH photos 1 1 1",
	}, "\n") + "\n"

	var out, errOut bytes.Buffer
	code := run([]string{"-db", dbPath}, strings.NewReader(script), &out, &errOut)
	if code != 0 {
		t.Fatalf("run exited %d, stderr: %s", code, errOut.String())
	}

	got := out.String()
	for _, want := range []string{"+OK", "cat"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, got)
		}
	}

	// A second run against the same on-disk path must see the index and
	// node NEW persisted, proving the LevelDB path round-trips for real.
	code = run([]string{"-db", dbPath}, strings.NewReader("NODE.GET photos cat\n"), &out, &errOut)
	if code != 0 {
		t.Fatalf("second run exited %d, stderr: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "*2") {
		t.Fatalf("expected reopened on-disk store to still have node cat's 2-element vector, got:\n%s", out.String())
	}
}

func TestRunReportsErrorsWithoutStopping(t *testing.T) {
	script := "NODE.ADD ghost-index a 1 2\nNEW photos 2 4 16\n"

	var out, errOut bytes.Buffer
	code := run([]string{"-mem"}, strings.NewReader(script), &out, &errOut)
	if code != 0 {
		t.Fatalf("run exited %d, stderr: %s", code, errOut.String())
	}

	got := out.String()
	if !strings.Contains(got, "-ERR") {
		t.Fatalf("expected an -ERR line for the unknown index, got:\n%s", got)
	}
	if !strings.Contains(got, "+OK") {
		t.Fatalf("expected the later NEW to still succeed, got:\n%s", got)
	}
}
