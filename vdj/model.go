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
	"fmt"
	"strings"

	"github.com/exascience/vdjinfer/dna"
	"github.com/exascience/vdjinfer/utils"
)

// Gene is a germline gene segment.
type Gene struct {
	Name utils.Symbol
	Seq  dna.Dna
}

// NewGene creates a Gene with an interned name.
func NewGene(name, seq string) (Gene, error) {
	d, err := dna.FromString(seq)
	if err != nil {
		return Gene{}, fmt.Errorf("gene %v: %v", name, err)
	}
	return Gene{Name: utils.Intern(name), Seq: d}, nil
}

/*
Model is the parameter set of a V(D)J recombination model.

Tables are indexed as follows:

	PV[v]
	PDelVGivenV[delV][v]
	PDJ[d][j]
	PDelJGivenJ[delJ][j]
	PDelD3DelD5[delD3][delD5][d]
	PInsVD[length], PInsDJ[length]
	FirstNtBiasInsVD[nucleotide], FirstNtBiasInsDJ[nucleotide]
	MarkovCoefficientsVD[previous][next], MarkovCoefficientsDJ[previous][next]

The gene lists are optional; when present, their lengths must match
the tables.
*/
type Model struct {
	SegVs, SegDs, SegJs []Gene

	PV          []float64
	PDelVGivenV [][]float64
	PDJ         [][]float64
	PDelJGivenJ [][]float64
	PDelD3DelD5 [][][]float64

	PInsVD               []float64
	PInsDJ               []float64
	FirstNtBiasInsVD     []float64
	FirstNtBiasInsDJ     []float64
	MarkovCoefficientsVD [][]float64
	MarkovCoefficientsDJ [][]float64

	ErrorRate float64
}

// Update returns a copy of m carrying the current parameters of f.
func (m *Model) Update(f *Features) *Model {
	result := *m
	result.PV = f.V.Probabilities()
	result.PDelVGivenV = f.DelV.Probabilities()
	result.PDJ = f.DJ.Probabilities()
	result.PDelJGivenJ = f.DelJ.Probabilities()
	result.PDelD3DelD5 = f.DelD.Probabilities()
	result.PInsVD = f.InsVD.LengthDistribution()
	result.PInsDJ = f.InsDJ.LengthDistribution()
	result.FirstNtBiasInsVD = f.InsVD.FirstNucleotideBias()
	result.FirstNtBiasInsDJ = f.InsDJ.FirstNucleotideBias()
	result.MarkovCoefficientsVD = f.InsVD.TransitionMatrix()
	result.MarkovCoefficientsDJ = f.InsDJ.TransitionMatrix()
	result.ErrorRate = f.Error.Rate()
	return &result
}

func geneName(genes []Gene, prefix string, index int) string {
	fallback := fmt.Sprintf("%v#%v", prefix, index)
	if index < 0 || index >= len(genes) {
		return fallback
	}
	return utils.SymbolString(genes[index].Name, fallback)
}

// Describe returns a one-line description of the given event, using
// gene names when the model has them.
func (m *Model) Describe(e *StaticEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "V=%v D=%v J=%v", geneName(m.SegVs, "V", e.VIndex), geneName(m.SegDs, "D", e.DIndex), geneName(m.SegJs, "J", e.JIndex))
	fmt.Fprintf(&b, " delV=%v delD5=%v delD3=%v delJ=%v", e.DelV, e.DelD5, e.DelD3, e.DelJ)
	fmt.Fprintf(&b, " insVD=%v insDJ=%v", e.InsVD, e.InsDJ)
	return b.String()
}
