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

package vdj

import (
	"sort"

	"github.com/exascience/vdjinfer/dna"
)

// Event is one candidate recombination scenario during enumeration. It
// refers to the alignments of the sequence being inferred and must not
// outlive them.
type Event struct {
	V     *VAlignment
	D     *DAlignment
	J     *JAlignment
	DelV  int
	DelJ  int
	DelD5 int
	DelD3 int
}

// VEnd is the read position just after the last V nucleotide.
func (e *Event) VEnd() int { return e.V.EndSeq - e.DelV }

// DStart is the read position of the first D nucleotide.
func (e *Event) DStart() int { return e.D.Pos + e.DelD5 }

// DEnd is the read position just after the last D nucleotide.
func (e *Event) DEnd() int { return e.D.Pos + e.D.Len - e.DelD3 }

// JStart is the read position of the first J nucleotide.
func (e *Event) JStart() int { return e.J.StartSeq + e.DelJ }

// Feasible reports whether the deleted segments are laid out in V, D, J
// order without overlap.
func (e *Event) Feasible() bool {
	dStart, dEnd := e.DStart(), e.DEnd()
	return e.VEnd() <= dStart && dStart <= dEnd && dEnd <= e.JStart()
}

// Freeze returns a StaticEvent for e that owns copies of the given
// insertions.
func (e *Event) Freeze(insVD, insDJ dna.Dna) StaticEvent {
	return StaticEvent{
		VIndex: e.V.Index,
		DIndex: e.D.Index,
		JIndex: e.J.Index,
		DelV:   e.DelV,
		DelJ:   e.DelJ,
		DelD5:  e.DelD5,
		DelD3:  e.DelD3,
		VEnd:   e.VEnd(),
		DStart: e.DStart(),
		DEnd:   e.DEnd(),
		JStart: e.JStart(),
		InsVD:  insVD.Clone(),
		InsDJ:  insDJ.Clone(),
	}
}

// StaticEvent is a self-contained recombination scenario, kept after
// inference of its sequence has finished. InsDJ is stored in the order
// returned by Sequence.InsertionsVDDJ.
type StaticEvent struct {
	VIndex, DIndex, JIndex     int
	DelV, DelJ, DelD5, DelD3   int
	VEnd, DStart, DEnd, JStart int
	InsVD, InsDJ               dna.Dna
}

// RankedEvent is a StaticEvent with its likelihood.
type RankedEvent struct {
	Likelihood float64
	Event      StaticEvent
}

// insertInOrder inserts e into events, which is sorted by decreasing
// likelihood. Among equal likelihoods, e goes last.
func insertInOrder(events []RankedEvent, e RankedEvent) []RankedEvent {
	i := sort.Search(len(events), func(i int) bool {
		return events[i].Likelihood < e.Likelihood
	})
	events = append(events, RankedEvent{})
	copy(events[i+1:], events[i:])
	events[i] = e
	return events
}
