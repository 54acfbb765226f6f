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
	"github.com/bits-and-blooms/bitset"

	"github.com/exascience/vdjinfer/dna"
)

// VAlignment places a V gene on a read. The gene covers read positions
// [StartSeq, EndSeq); Mismatches holds the offsets from StartSeq where
// gene and read differ.
type VAlignment struct {
	Index      int
	StartSeq   int
	EndSeq     int
	Mismatches *bitset.BitSet
}

// JAlignment places a J gene on a read, with the same conventions as
// VAlignment.
type JAlignment struct {
	Index      int
	StartSeq   int
	EndSeq     int
	Mismatches *bitset.BitSet
}

// DAlignment places a D gene of length Len at read position Pos.
// Mismatches holds the offsets from Pos where gene and read differ.
type DAlignment struct {
	Index      int
	Pos        int
	Len        int
	Mismatches *bitset.BitSet
}

func countMismatches(mismatches *bitset.BitSet, low, high int) (count int) {
	if mismatches == nil || high <= low {
		return 0
	}
	if low < 0 {
		low = 0
	}
	for i, ok := mismatches.NextSet(uint(low)); ok && int(i) < high; i, ok = mismatches.NextSet(i + 1) {
		count++
	}
	return count
}

// NbErrors returns the number of mismatches left once delV nucleotides
// are deleted from the 3' end of the gene.
func (v *VAlignment) NbErrors(delV int) int {
	return countMismatches(v.Mismatches, 0, v.EndSeq-v.StartSeq-delV)
}

// NbErrors returns the number of mismatches left once delJ nucleotides
// are deleted from the 5' end of the gene.
func (j *JAlignment) NbErrors(delJ int) int {
	return countMismatches(j.Mismatches, delJ, j.EndSeq-j.StartSeq)
}

// NbErrors returns the number of mismatches left once delD5 and delD3
// nucleotides are deleted from the 5' and 3' ends of the gene.
func (d *DAlignment) NbErrors(delD5, delD3 int) int {
	return countMismatches(d.Mismatches, delD5, d.Len-delD3)
}

// mismatches compares gene with read placed at start. Positions that
// fall outside the read are not counted, nor are ambiguous nucleotides.
func mismatches(gene, read dna.Dna, start int) *bitset.BitSet {
	length := gene.Len()
	result := bitset.New(uint(length))
	for i := 0; i < length; i++ {
		p := start + i
		if p < 0 || p >= read.Len() {
			continue
		}
		g, r := gene.At(i), read.At(p)
		if g != r && g != dna.N && r != dna.N {
			result.Set(uint(i))
		}
	}
	return result
}

// NewVAlignment aligns V gene number index to read at position start.
func NewVAlignment(index int, gene, read dna.Dna, start int) *VAlignment {
	return &VAlignment{
		Index:      index,
		StartSeq:   start,
		EndSeq:     start + gene.Len(),
		Mismatches: mismatches(gene, read, start),
	}
}

// NewJAlignment aligns J gene number index to read at position start.
func NewJAlignment(index int, gene, read dna.Dna, start int) *JAlignment {
	return &JAlignment{
		Index:      index,
		StartSeq:   start,
		EndSeq:     start + gene.Len(),
		Mismatches: mismatches(gene, read, start),
	}
}

// NewDAlignment aligns D gene number index to read at position pos.
func NewDAlignment(index int, gene, read dna.Dna, pos int) *DAlignment {
	return &DAlignment{
		Index:      index,
		Pos:        pos,
		Len:        gene.Len(),
		Mismatches: mismatches(gene, read, pos),
	}
}
