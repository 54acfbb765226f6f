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
	"fmt"

	"github.com/exascience/vdjinfer/dna"
)

// Insertion models an untemplated junction insertion: a length
// distribution, a bias for the first inserted nucleotide, and a Markov
// chain over subsequent nucleotides with transitions indexed
// [previous][next].
//
// Ambiguous nucleotides (dna.N) contribute a factor of 1 and restart the
// chain, so the nucleotide after them is scored with the first
// nucleotide bias. They are not counted by DirtyUpdate.
type Insertion struct {
	length     *table
	first      *table
	transition *table
}

// NewInsertion creates an Insertion from a length distribution (index =
// length), a first nucleotide bias over ACGT and a 4x4 transition
// matrix indexed [previous][next].
func NewInsertion(lengths, firstNucleotide []float64, transitions [][]float64) (*Insertion, error) {
	if len(lengths) == 0 {
		return nil, fmt.Errorf("length distribution: empty probability table")
	}
	length := newTable([]int{len(lengths)}, false)
	copy(length.probas, lengths)
	if err := length.validate(); err != nil {
		return nil, fmt.Errorf("length distribution: %v", err)
	}
	if len(firstNucleotide) != dna.NbNucleotides {
		return nil, fmt.Errorf("first nucleotide bias: expected %v values, got %v", dna.NbNucleotides, len(firstNucleotide))
	}
	first := newTable([]int{dna.NbNucleotides}, false)
	copy(first.probas, firstNucleotide)
	if err := first.validate(); err != nil {
		return nil, fmt.Errorf("first nucleotide bias: %v", err)
	}
	if len(transitions) != dna.NbNucleotides {
		return nil, fmt.Errorf("transition matrix: expected %v rows, got %v", dna.NbNucleotides, len(transitions))
	}
	transition := newTable([]int{dna.NbNucleotides, dna.NbNucleotides}, true)
	for prev, row := range transitions {
		if len(row) != dna.NbNucleotides {
			return nil, fmt.Errorf("transition matrix: row %v has length %v, expected %v", prev, len(row), dna.NbNucleotides)
		}
		copy(transition.slice(transition.probas, prev), row)
	}
	if err := transition.validate(); err != nil {
		return nil, fmt.Errorf("transition matrix: %v", err)
	}
	return &Insertion{length: length, first: first, transition: transition}, nil
}

// MaxLength returns the number of supported insertion lengths.
func (ins *Insertion) MaxLength() int {
	return len(ins.length.probas)
}

// LikelihoodLength returns the probability of an insertion of length n.
func (ins *Insertion) LikelihoodLength(n int) float64 {
	if n < 0 || n >= len(ins.length.probas) {
		return 0
	}
	return ins.length.probas[n]
}

// LikelihoodContent returns the probability of the inserted nucleotides
// given their number.
func (ins *Insertion) LikelihoodContent(bases dna.Dna) float64 {
	p := 1.0
	prev := dna.N
	for i, n := 0, bases.Len(); i < n; i++ {
		b := bases.At(i)
		switch {
		case b >= dna.NbNucleotides:
		case prev >= dna.NbNucleotides:
			p *= ins.first.probas[b]
		default:
			p *= ins.transition.probas[int(prev)*dna.NbNucleotides+int(b)]
		}
		prev = b
	}
	return p
}

// LikelihoodSequence returns the joint probability of the length and
// the content of the given insertion.
func (ins *Insertion) LikelihoodSequence(bases dna.Dna) float64 {
	l := ins.LikelihoodLength(bases.Len())
	if l == 0 {
		return 0
	}
	return l * ins.LikelihoodContent(bases)
}

// DirtyUpdate accumulates weight for the length and the nucleotide
// transitions of the given insertion.
func (ins *Insertion) DirtyUpdate(bases dna.Dna, weight float64) {
	n := bases.Len()
	if n >= len(ins.length.dirty) {
		return
	}
	ins.length.dirty[n] += weight
	prev := dna.N
	for i := 0; i < n; i++ {
		b := bases.At(i)
		switch {
		case b >= dna.NbNucleotides:
		case prev >= dna.NbNucleotides:
			ins.first.dirty[b] += weight
		default:
			ins.transition.dirty[int(prev)*dna.NbNucleotides+int(b)] += weight
		}
		prev = b
	}
}

// Cleanup returns an Insertion whose length distribution, first
// nucleotide bias and transition rows are the normalised accumulators
// of ins. The receiver is not modified.
func (ins *Insertion) Cleanup() (*Insertion, error) {
	length, err := ins.length.cleanup()
	if err != nil {
		return nil, fmt.Errorf("length distribution: %v", err)
	}
	first, err := ins.first.cleanup()
	if err != nil {
		return nil, fmt.Errorf("first nucleotide bias: %v", err)
	}
	transition, err := ins.transition.cleanup()
	if err != nil {
		return nil, fmt.Errorf("transition matrix: %v", err)
	}
	return &Insertion{length: length, first: first, transition: transition}, nil
}

// Fresh returns an Insertion sharing the parameters of ins with empty
// accumulators.
func (ins *Insertion) Fresh() *Insertion {
	return &Insertion{
		length:     ins.length.fresh(),
		first:      ins.first.fresh(),
		transition: ins.transition.fresh(),
	}
}

// Merge adds the accumulators of other into ins.
func (ins *Insertion) Merge(other *Insertion) error {
	if err := ins.length.merge(other.length); err != nil {
		return err
	}
	if err := ins.first.merge(other.first); err != nil {
		return err
	}
	return ins.transition.merge(other.transition)
}

// LengthDistribution returns a copy of the length distribution.
func (ins *Insertion) LengthDistribution() []float64 {
	return append([]float64(nil), ins.length.probas...)
}

// FirstNucleotideBias returns a copy of the first nucleotide bias.
func (ins *Insertion) FirstNucleotideBias() []float64 {
	return append([]float64(nil), ins.first.probas...)
}

// TransitionMatrix returns a copy of the transition matrix, indexed
// [previous][next].
func (ins *Insertion) TransitionMatrix() [][]float64 {
	result := make([][]float64, dna.NbNucleotides)
	for prev := range result {
		result[prev] = append([]float64(nil), ins.transition.slice(ins.transition.probas, prev)...)
	}
	return result
}

// LengthCounts returns a copy of the length accumulator.
func (ins *Insertion) LengthCounts() []float64 {
	return append([]float64(nil), ins.length.dirty...)
}

// AverageInsertion returns the elementwise mean of the given features.
func AverageInsertion(list []*Insertion) (*Insertion, error) {
	lengths := make([]*table, len(list))
	firsts := make([]*table, len(list))
	transitions := make([]*table, len(list))
	for i, ins := range list {
		lengths[i], firsts[i], transitions[i] = ins.length, ins.first, ins.transition
	}
	length, err := averageTables(lengths)
	if err != nil {
		return nil, fmt.Errorf("length distribution: %w", err)
	}
	first, err := averageTables(firsts)
	if err != nil {
		return nil, fmt.Errorf("first nucleotide bias: %w", err)
	}
	transition, err := averageTables(transitions)
	if err != nil {
		return nil, fmt.Errorf("transition matrix: %w", err)
	}
	return &Insertion{length: length, first: first, transition: transition}, nil
}
