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
	"math"
	"reflect"
)

func funcPtr(fn DistanceFunc) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// Vector is a dense embedding. Nodes and queries share this type; the
// index enforces that every Vector it touches has the same length.
type Vector []float32

// DistanceFunc computes a dissimilarity score between two vectors of
// equal length: smaller means closer. Implementations are not required
// to be metrics (SquaredEuclidean skips the square root, so it is not
// the true Euclidean distance), only to respect the same total order as
// whichever true distance they approximate.
type DistanceFunc func(a, b Vector) float32

// SquaredEuclidean is the index's reference metric. It omits the final
// square root: the ordering of distances from a fixed query point is
// identical with or without it, and every candidate comparison in the
// search and insertion kernels only cares about ordering.
func SquaredEuclidean(a, b Vector) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Euclidean is SquaredEuclidean with the square root applied, for
// callers that need an actual metric (e.g. to report distances to a
// client in the vector's own units) rather than just a total order.
func Euclidean(a, b Vector) float32 {
	return float32(math.Sqrt(float64(SquaredEuclidean(a, b))))
}

// Cosine returns 1 minus the cosine similarity of a and b, so that
// identical directions score 0 and orthogonal vectors score 1,
// matching the "smaller is closer" convention of DistanceFunc.
func Cosine(a, b Vector) float32 {
	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/float32(math.Sqrt(float64(na))*math.Sqrt(float64(nb)))
}

// DotProduct returns the negated dot product, so that the most
// similar (largest dot product) vectors sort first under the
// "smaller is closer" convention.
func DotProduct(a, b Vector) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return -dot
}

// distanceFuncs registers every distance function an index may persist
// by name, so a reloaded index can recover the same DistanceFunc value
// it was saved with. Unlike a Go function pointer, a name survives a
// round trip through the host store.
var distanceFuncs = map[string]DistanceFunc{
	"squared_euclidean": SquaredEuclidean,
	"euclidean":         Euclidean,
	"cosine":            Cosine,
	"dot":               DotProduct,
}

var distanceNames = map[uintptr]string{
	funcPtr(SquaredEuclidean): "squared_euclidean",
	funcPtr(Euclidean):        "euclidean",
	funcPtr(Cosine):           "cosine",
	funcPtr(DotProduct):       "dot",
}

// RegisterDistanceFunc makes a custom metric nameable for persistence.
// Indices built with an unregistered DistanceFunc can still run in
// memory but fail to save.
func RegisterDistanceFunc(name string, fn DistanceFunc) {
	distanceFuncs[name] = fn
	distanceNames[funcPtr(fn)] = name
}

func distanceFuncName(fn DistanceFunc) (string, bool) {
	name, ok := distanceNames[funcPtr(fn)]
	return name, ok
}
