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

import "github.com/exascience/vdjinfer/dna"

// Sequence is an observed read together with its candidate V, D and J
// alignments. It is not modified by inference.
type Sequence struct {
	Read   dna.Dna
	VGenes []*VAlignment
	DGenes []*DAlignment
	JGenes []*JAlignment
}

// extract returns the read nucleotides in [low, high). Positions
// outside the read are returned as dna.N.
func (s *Sequence) extract(low, high int) dna.Dna {
	if low >= 0 && high <= s.Read.Len() {
		return s.Read.Slice(low, high)
	}
	result := dna.Make(high - low)
	for p := low; p < high; p++ {
		if p < 0 || p >= s.Read.Len() {
			result.Set(p-low, dna.N)
		} else {
			result.Set(p-low, s.Read.At(p))
		}
	}
	return result
}

// InsertionsVDDJ returns the nucleotides inserted at the VD and DJ
// junctions of the given event. The DJ insertion is returned in reverse
// read order, starting next to the J gene, which is the order in which
// the DJ insertion model reads it. The VD insertion may share storage
// with the read.
func (s *Sequence) InsertionsVDDJ(e *Event) (insVD, insDJ dna.Dna) {
	insVD = s.extract(e.VEnd(), e.DStart())
	insDJ = s.extract(e.DEnd(), e.JStart()).Reverse()
	return insVD, insDJ
}
