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
	"math"
	"testing"

	"github.com/exascience/vdjinfer/dna"
)

// testRead is V1 with 2 deletions, the VD insertion ACG, D1 with one
// deletion on each side, the DJ insertion TC, and J1 with one deletion.
const testRead = "TGCTCATG" + "ACG" + "GTAC" + "TC" + "AGTCAGT"

var uniformRow = []float64{0.25, 0.25, 0.25, 0.25}

func uniformMarkov() [][]float64 {
	return [][]float64{uniformRow, uniformRow, uniformRow, uniformRow}
}

func closeTo(x, y, rel float64) bool {
	return math.Abs(x-y) <= rel*math.Max(math.Abs(x), math.Abs(y))
}

func mustDna(t testing.TB, s string) dna.Dna {
	d, err := dna.FromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func mustGene(t testing.TB, name, seq string) Gene {
	g, err := NewGene(name, seq)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// deltaModel has one gene per segment and puts all mass on the
// recombination scenario of testRead.
func deltaModel(t testing.TB) *Model {
	return &Model{
		SegVs:       []Gene{mustGene(t, "V1", "TGCTCATGCA")},
		SegDs:       []Gene{mustGene(t, "D1", "GGTACC")},
		SegJs:       []Gene{mustGene(t, "J1", "CAGTCAGT")},
		PV:          []float64{1},
		PDelVGivenV: [][]float64{{0}, {0}, {1}, {0}},
		PDJ:         [][]float64{{1}},
		PDelJGivenJ: [][]float64{{0}, {1}, {0}},
		PDelD3DelD5: [][][]float64{
			{{0}, {0}, {0}},
			{{0}, {1}, {0}},
			{{0}, {0}, {0}},
		},
		PInsVD:           []float64{0, 0, 0, 1, 0, 0},
		PInsDJ:           []float64{0, 0, 1, 0, 0, 0},
		FirstNtBiasInsVD: []float64{0.4, 0.3, 0.2, 0.1},
		FirstNtBiasInsDJ: []float64{0.1, 0.2, 0.3, 0.4},
		MarkovCoefficientsVD: [][]float64{
			{0.1, 0.2, 0.3, 0.4},
			uniformRow,
			{0.5, 0.5, 0, 0},
			{0, 0, 0, 1},
		},
		MarkovCoefficientsDJ: [][]float64{
			uniformRow,
			{0.1, 0.1, 0.1, 0.7},
			uniformRow,
			uniformRow,
		},
		ErrorRate: 0,
	}
}

// richModel has two genes per segment and spreads mass over many
// scenarios.
func richModel(t testing.TB) *Model {
	ninth := 1.0 / 9
	plane := func() [][]float64 {
		return [][]float64{{ninth, ninth}, {ninth, ninth}, {ninth, ninth}}
	}
	insertions := []float64{0.1, 0.15, 0.2, 0.2, 0.15, 0.1, 0.1}
	return &Model{
		SegVs:                []Gene{mustGene(t, "V1", "TGCTCATGCA"), mustGene(t, "V2", "TGCACATGCA")},
		SegDs:                []Gene{mustGene(t, "D1", "GGTACC"), mustGene(t, "D2", "GGAACC")},
		SegJs:                []Gene{mustGene(t, "J1", "CAGTCAGT"), mustGene(t, "J2", "CATTCAGT")},
		PV:                   []float64{0.6, 0.4},
		PDelVGivenV:          [][]float64{{0.1, 0.2}, {0.2, 0.3}, {0.4, 0.3}, {0.3, 0.2}},
		PDJ:                  [][]float64{{0.3, 0.2}, {0.1, 0.4}},
		PDelJGivenJ:          [][]float64{{0.3, 0.2}, {0.5, 0.5}, {0.2, 0.3}},
		PDelD3DelD5:          [][][]float64{plane(), plane(), plane()},
		PInsVD:               insertions,
		PInsDJ:               insertions,
		FirstNtBiasInsVD:     uniformRow,
		FirstNtBiasInsDJ:     uniformRow,
		MarkovCoefficientsVD: uniformMarkov(),
		MarkovCoefficientsDJ: uniformMarkov(),
		ErrorRate:            0.1,
	}
}

func newTestFeatures(t testing.TB, m *Model) *Features {
	params := DefaultInferenceParameters()
	f, err := NewFeatures(m, &params)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

// newTestSequence aligns every gene of m to read: V genes at vStart, D
// genes at each of dPositions, J genes at jStart.
func newTestSequence(t testing.TB, m *Model, read string, vStart int, dPositions []int, jStart int) *Sequence {
	seq := &Sequence{Read: mustDna(t, read)}
	for i, g := range m.SegVs {
		seq.VGenes = append(seq.VGenes, NewVAlignment(i, g.Seq, seq.Read, vStart))
	}
	for _, pos := range dPositions {
		for i, g := range m.SegDs {
			seq.DGenes = append(seq.DGenes, NewDAlignment(i, g.Seq, seq.Read, pos))
		}
	}
	for i, g := range m.SegJs {
		seq.JGenes = append(seq.JGenes, NewJAlignment(i, g.Seq, seq.Read, jStart))
	}
	return seq
}

func richSequences(t testing.TB, m *Model) []*Sequence {
	reads := []string{
		testRead,
		"TGCACATGCCGGAACCTTCATTCAGT",
		"TGCTCATGCAGGTACCCAGTCAGT",
		"TGCTCAGGTACTCAGTCAGT",
		"TGCACATGAAGGAACCCCTTCATTCAGT",
	}
	var seqs []*Sequence
	for _, read := range reads {
		jStart := len(read) - 8
		var dPositions []int
		for pos := 6; pos+6 <= jStart+2; pos++ {
			dPositions = append(dPositions, pos)
		}
		seqs = append(seqs, newTestSequence(t, m, read, 0, dPositions, jStart))
	}
	return seqs
}
