/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package xslices provide missing functionality to the slices package.
package xslices

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// SliceWithValue creates a slice of given size filled with given value.
func SliceWithValue[T any](size int, value T) []T {
	s := make([]T, size)
	for ii := range s {
		s[ii] = value
	}
	return s
}

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// SlicesInRelData checks that got and want have the same length, and that each pair of values is
// within the relative tolerance: |got-want| <= relTolerance * max(1, |want|).
//
// The max(1, ...) makes the tolerance absolute for values close to zero, where a relative
// tolerance is meaningless. It returns an error describing the first mismatch.
func SlicesInRelData[T constraints.Integer | constraints.Float](got, want []T, relTolerance float64) error {
	if len(got) != len(want) {
		return errors.Errorf("slices have different lengths: got %d, want %d", len(got), len(want))
	}
	for ii := range got {
		g, w := float64(got[ii]), float64(want[ii])
		if math.IsNaN(g) && math.IsNaN(w) {
			continue
		}
		if math.Abs(g-w) > relTolerance*math.Max(1, math.Abs(w)) {
			return errors.Errorf("element #%d differs: got %v, want %v (relative tolerance %g)",
				ii, got[ii], want[ii], relTolerance)
		}
	}
	return nil
}
