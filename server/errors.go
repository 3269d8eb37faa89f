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

import "errors"

// Error kinds returned by command dispatch that are not already covered
// by a sentinel from the hnsw package. An unknown index is already
// exactly hnsw.ErrUnknownIndex — Registry returns that sentinel
// straight through rather than recoding it, so a caller testing with
// errors.Is only ever needs to know the hnsw package's error kinds for
// conditions the hnsw package itself can detect.
var (
	ErrWrongArity     = errors.New("server: wrong number of arguments")
	ErrDuplicateIndex = errors.New("server: index already exists")
	ErrParseError     = errors.New("server: could not parse argument")
	ErrUnknownCommand = errors.New("server: unknown command")
)
