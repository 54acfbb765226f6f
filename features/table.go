// vdjinfer: inference of V(D)J recombination statistics.
// Copyright (c) 2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/exascience/vdjinfer/blob/master/LICENSE.txt>.

package features

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Tolerance is the allowed deviation from 1 of a normalised slice.
const Tolerance = 1e-6

var (
	// ErrShapeMismatch is returned when combining features of different shapes.
	ErrShapeMismatch = errors.New("feature shapes do not match")

	// ErrEmptyAverage is returned when averaging an empty list of features.
	ErrEmptyAverage = errors.New("cannot average an empty list of features")
)

// table is a dense probability table paired with an accumulator of the
// same shape. Values are stored given-major: the slice conditioned on
// given value g is values[g*block : (g+1)*block]. Unconditioned tables
// have a single slice.
type table struct {
	dims   []int
	given  int
	block  int
	probas []float64
	dirty  []float64
}

func newTable(dims []int, conditioned bool) *table {
	t := &table{dims: dims, given: 1, block: 1}
	inner := dims
	if conditioned {
		t.given = dims[len(dims)-1]
		inner = dims[:len(dims)-1]
	}
	for _, d := range inner {
		t.block *= d
	}
	t.probas = make([]float64, t.given*t.block)
	t.dirty = make([]float64, t.given*t.block)
	return t
}

func (t *table) slice(values []float64, g int) []float64 {
	return values[g*t.block : (g+1)*t.block]
}

func (t *table) sameShape(u *table) bool {
	if len(t.dims) != len(u.dims) || t.given != u.given {
		return false
	}
	for i, d := range t.dims {
		if u.dims[i] != d {
			return false
		}
	}
	return true
}

func checkFinite(values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value %v at flat index %v", v, i)
		}
		if v < 0 {
			return fmt.Errorf("negative value %v at flat index %v", v, i)
		}
	}
	return nil
}

// validate checks that every slice sums to 1 within Tolerance, or is
// all zero.
func (t *table) validate() error {
	if len(t.probas) == 0 {
		return errors.New("empty probability table")
	}
	if err := checkFinite(t.probas); err != nil {
		return err
	}
	for g := 0; g < t.given; g++ {
		sum := floats.Sum(t.slice(t.probas, g))
		if sum == 0 || math.Abs(sum-1) <= Tolerance {
			continue
		}
		if t.given == 1 {
			return fmt.Errorf("probabilities sum to %v, not 1", sum)
		}
		return fmt.Errorf("probabilities conditioned on index %v of axis %v sum to %v, not 1", g, len(t.dims)-1, sum)
	}
	return nil
}

// normalize rescales each slice of values to sum to 1. Slices without
// mass are left at zero.
func (t *table) normalize(values []float64) {
	for g := 0; g < t.given; g++ {
		s := t.slice(values, g)
		if sum := floats.Sum(s); sum > 0 {
			floats.Scale(1/sum, s)
		}
	}
}

// cleanup returns a table whose probabilities are the normalised
// accumulator of t, with a fresh accumulator.
func (t *table) cleanup() (*table, error) {
	if err := checkFinite(t.dirty); err != nil {
		return nil, fmt.Errorf("accumulator: %v", err)
	}
	result := &table{
		dims:   t.dims,
		given:  t.given,
		block:  t.block,
		probas: append([]float64(nil), t.dirty...),
		dirty:  make([]float64, len(t.dirty)),
	}
	result.normalize(result.probas)
	return result, nil
}

// fresh returns a table sharing the probabilities of t with a zero
// accumulator. Probabilities are never modified in place, so sharing is
// safe across goroutines.
func (t *table) fresh() *table {
	return &table{
		dims:   t.dims,
		given:  t.given,
		block:  t.block,
		probas: t.probas,
		dirty:  make([]float64, len(t.dirty)),
	}
}

func (t *table) merge(u *table) error {
	if !t.sameShape(u) {
		return ErrShapeMismatch
	}
	floats.Add(t.dirty, u.dirty)
	return nil
}

func averageTables(tables []*table) (*table, error) {
	if len(tables) == 0 {
		return nil, ErrEmptyAverage
	}
	first := tables[0]
	result := &table{
		dims:   first.dims,
		given:  first.given,
		block:  first.block,
		probas: make([]float64, len(first.probas)),
		dirty:  make([]float64, len(first.dirty)),
	}
	for _, t := range tables {
		if !first.sameShape(t) {
			return nil, ErrShapeMismatch
		}
		floats.Add(result.probas, t.probas)
	}
	floats.Scale(1/float64(len(tables)), result.probas)
	return result, nil
}
