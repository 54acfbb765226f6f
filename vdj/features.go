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

	"github.com/exascience/pargo/parallel"

	"github.com/exascience/vdjinfer/dna"
	"github.com/exascience/vdjinfer/features"
)

// Features is the set of sub-models of a V(D)J recombination model,
// each with its parameters and an accumulator of expected counts.
//
// Infer mutates the accumulators, so a Features value must not be used
// by more than one goroutine at a time. Use Fresh to obtain one
// accumulator per goroutine, and Merge to combine them.
type Features struct {
	V     *features.Categorical1
	DelV  *features.Categorical1g1
	DJ    *features.Categorical2
	DelJ  *features.Categorical1g1
	DelD  *features.Categorical2g1
	InsVD *features.Insertion
	InsDJ *features.Insertion
	Error *features.ErrorPoisson
}

// NewFeatures creates the Features for the given model, with empty
// accumulators.
func NewFeatures(m *Model, params *InferenceParameters) (f *Features, err error) {
	f = new(Features)
	if f.V, err = features.NewCategorical1(m.PV); err != nil {
		return nil, fmt.Errorf("p(V): %w", err)
	}
	if f.DelV, err = features.NewCategorical1g1(m.PDelVGivenV); err != nil {
		return nil, fmt.Errorf("p(delV|V): %w", err)
	}
	if f.DJ, err = features.NewCategorical2(m.PDJ); err != nil {
		return nil, fmt.Errorf("p(D,J): %w", err)
	}
	if f.DelJ, err = features.NewCategorical1g1(m.PDelJGivenJ); err != nil {
		return nil, fmt.Errorf("p(delJ|J): %w", err)
	}
	if f.DelD, err = features.NewCategorical2g1(m.PDelD3DelD5); err != nil {
		return nil, fmt.Errorf("p(delD3,delD5|D): %w", err)
	}
	if f.InsVD, err = features.NewInsertion(m.PInsVD, m.FirstNtBiasInsVD, m.MarkovCoefficientsVD); err != nil {
		return nil, fmt.Errorf("VD insertion: %w", err)
	}
	if f.InsDJ, err = features.NewInsertion(m.PInsDJ, m.FirstNtBiasInsDJ, m.MarkovCoefficientsDJ); err != nil {
		return nil, fmt.Errorf("DJ insertion: %w", err)
	}
	if f.Error, err = features.NewErrorPoisson(m.ErrorRate, params.MinLikelihoodError); err != nil {
		return nil, fmt.Errorf("error model: %w", err)
	}
	if err = f.checkShapes(); err != nil {
		return nil, err
	}
	if err = checkGenes("V", m.SegVs, f.V.Dim()); err != nil {
		return nil, err
	}
	nbD, nbJ := f.DJ.Dim()
	if err = checkGenes("D", m.SegDs, nbD); err != nil {
		return nil, err
	}
	if err = checkGenes("J", m.SegJs, nbJ); err != nil {
		return nil, err
	}
	return f, nil
}

func checkGenes(segment string, genes []Gene, n int) error {
	if len(genes) > 0 && len(genes) != n {
		return fmt.Errorf("%w: %v %v genes but %v in the parameter tables", features.ErrShapeMismatch, len(genes), segment, n)
	}
	return nil
}

// checkShapes verifies that all sub-models agree on the number of V, D
// and J genes.
func (f *Features) checkShapes() error {
	nbV := f.V.Dim()
	nbD, nbJ := f.DJ.Dim()
	if _, n := f.DelV.Dim(); n != nbV {
		return fmt.Errorf("p(delV|V): %w: conditioned on %v V genes, p(V) has %v", features.ErrShapeMismatch, n, nbV)
	}
	if _, n := f.DelJ.Dim(); n != nbJ {
		return fmt.Errorf("p(delJ|J): %w: conditioned on %v J genes, p(D,J) has %v", features.ErrShapeMismatch, n, nbJ)
	}
	if _, _, n := f.DelD.Dim(); n != nbD {
		return fmt.Errorf("p(delD3,delD5|D): %w: conditioned on %v D genes, p(D,J) has %v", features.ErrShapeMismatch, n, nbD)
	}
	return nil
}

func (f *Features) likelihoodV(v *VAlignment, delV, nbErrorsV int) float64 {
	return f.V.Likelihood(v.Index) *
		f.DelV.Likelihood(delV, v.Index) *
		f.Error.Likelihood(nbErrorsV)
}

// likelihoodDJ returns the likelihood of the D and J part of e,
// including the insertion lengths. It is 0 when the segments overlap.
func (f *Features) likelihoodDJ(e *Event, nbErrorsD, nbErrorsJ int) float64 {
	vEnd, dStart, dEnd, jStart := e.VEnd(), e.DStart(), e.DEnd(), e.JStart()
	if vEnd > dStart || dStart > dEnd || dEnd > jStart {
		return 0
	}
	return f.DJ.Likelihood(e.D.Index, e.J.Index) *
		f.DelJ.Likelihood(e.DelJ, e.J.Index) *
		f.DelD.Likelihood(e.DelD3, e.DelD5, e.D.Index) *
		f.InsVD.LikelihoodLength(dStart-vEnd) *
		f.InsDJ.LikelihoodLength(jStart-dEnd) *
		f.Error.Likelihood(nbErrorsD) *
		f.Error.Likelihood(nbErrorsJ)
}

func pruned(likelihood, minLikelihood float64) bool {
	return likelihood == 0 || likelihood < minLikelihood
}

/*
Infer enumerates the recombination events that can explain seq and
returns the total generation probability of seq together with its most
likely events, sorted by decreasing likelihood.

Every event that survives pruning contributes its likelihood to the
accumulators of f. Events less likely than params.MinLikelihood are
discarded, at three stages: after the V choice, after the D and J
choices, and after scoring the inserted nucleotides. The inserted
nucleotides are scored with LikelihoodSequence, so the insertion length
probabilities weigh in at both the second and the third stage.
*/
func (f *Features) Infer(seq *Sequence, params *InferenceParameters) (probabilityGeneration float64, bestEvents []RankedEvent) {
	nbDelV, _ := f.DelV.Dim()
	nbDelJ, _ := f.DelJ.Dim()
	nbDelD3, nbDelD5, _ := f.DelD.Dim()
	minLikelihood, nbBestEvents := params.MinLikelihood, params.NbBestEvents

	for _, v := range seq.VGenes {
		for delV := 0; delV < nbDelV; delV++ {
			nbErrorsV := v.NbErrors(delV)
			lhoodV := f.likelihoodV(v, delV, nbErrorsV)
			if pruned(lhoodV, minLikelihood) {
				continue
			}
			for _, j := range seq.JGenes {
				for delJ := 0; delJ < nbDelJ; delJ++ {
					nbErrorsJ := j.NbErrors(delJ)
					for _, d := range seq.DGenes {
						for delD5 := 0; delD5 < nbDelD5; delD5++ {
							for delD3 := 0; delD3 < nbDelD3; delD3++ {
								e := Event{
									V: v, D: d, J: j,
									DelV: delV, DelJ: delJ, DelD5: delD5, DelD3: delD3,
								}
								nbErrorsD := d.NbErrors(delD5, delD3)
								lTotal := lhoodV * f.likelihoodDJ(&e, nbErrorsD, nbErrorsJ)
								if pruned(lTotal, minLikelihood) {
									continue
								}

								insVD, insDJ := seq.InsertionsVDDJ(&e)
								lTotal *= f.InsVD.LikelihoodSequence(insVD)
								lTotal *= f.InsDJ.LikelihoodSequence(insDJ)
								if pruned(lTotal, minLikelihood) {
									continue
								}

								if nbBestEvents > 0 && (len(bestEvents) < nbBestEvents || bestEvents[len(bestEvents)-1].Likelihood < lTotal) {
									bestEvents = insertInOrder(bestEvents, RankedEvent{lTotal, e.Freeze(insVD, insDJ)})
									if len(bestEvents) > nbBestEvents {
										bestEvents = bestEvents[:nbBestEvents]
									}
								}
								probabilityGeneration += lTotal
								f.dirtyUpdate(&e, insVD, insDJ, nbErrorsV, nbErrorsD, nbErrorsJ, lTotal)
							}
						}
					}
				}
			}
		}
	}
	return probabilityGeneration, bestEvents
}

func (f *Features) dirtyUpdate(e *Event, insVD, insDJ dna.Dna, nbErrorsV, nbErrorsD, nbErrorsJ int, weight float64) {
	f.V.DirtyUpdate(e.V.Index, weight)
	f.DJ.DirtyUpdate(e.D.Index, e.J.Index, weight)
	f.DelV.DirtyUpdate(e.DelV, e.V.Index, weight)
	f.DelJ.DirtyUpdate(e.DelJ, e.J.Index, weight)
	f.DelD.DirtyUpdate(e.DelD3, e.DelD5, e.D.Index, weight)
	f.InsVD.DirtyUpdate(insVD, weight)
	f.InsDJ.DirtyUpdate(insDJ, weight)
	f.Error.DirtyUpdate(nbErrorsV+nbErrorsD+nbErrorsJ, weight)
}

/*
Cleanup returns new Features whose parameters are the normalised
accumulators of f, with empty accumulators. f itself is not modified,
so Cleanup can be called more than once on the same accumulated state.
*/
func (f *Features) Cleanup() (*Features, error) {
	var result Features
	var errs [8]error
	parallel.Do(
		func() { result.V, errs[0] = f.V.Cleanup() },
		func() { result.DelV, errs[1] = f.DelV.Cleanup() },
		func() { result.DJ, errs[2] = f.DJ.Cleanup() },
		func() { result.DelJ, errs[3] = f.DelJ.Cleanup() },
		func() { result.DelD, errs[4] = f.DelD.Cleanup() },
		func() { result.InsVD, errs[5] = f.InsVD.Cleanup() },
		func() { result.InsDJ, errs[6] = f.InsDJ.Cleanup() },
		func() { result.Error, errs[7] = f.Error.Cleanup() },
	)
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("%v: %w", featureNames[i], err)
		}
	}
	return &result, nil
}

var featureNames = [...]string{
	"p(V)", "p(delV|V)", "p(D,J)", "p(delJ|J)", "p(delD3,delD5|D)",
	"VD insertion", "DJ insertion", "error model",
}

// Fresh returns Features sharing the parameters of f with empty
// accumulators.
func (f *Features) Fresh() *Features {
	return &Features{
		V:     f.V.Fresh(),
		DelV:  f.DelV.Fresh(),
		DJ:    f.DJ.Fresh(),
		DelJ:  f.DelJ.Fresh(),
		DelD:  f.DelD.Fresh(),
		InsVD: f.InsVD.Fresh(),
		InsDJ: f.InsDJ.Fresh(),
		Error: f.Error.Fresh(),
	}
}

// Merge adds the accumulators of other into f.
func (f *Features) Merge(other *Features) error {
	errs := [...]error{
		f.V.Merge(other.V),
		f.DelV.Merge(other.DelV),
		f.DJ.Merge(other.DJ),
		f.DelJ.Merge(other.DelJ),
		f.DelD.Merge(other.DelD),
		f.InsVD.Merge(other.InsVD),
		f.InsDJ.Merge(other.InsDJ),
		f.Error.Merge(other.Error),
	}
	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("%v: %w", featureNames[i], err)
		}
	}
	return nil
}

// MergeAll returns Features with the parameters of the first element of
// list and the sum of the accumulators of all elements.
func MergeAll(list []*Features) (*Features, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("cannot merge an empty list of features")
	}
	result := list[0].Fresh()
	for _, f := range list {
		if err := result.Merge(f); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Average returns Features whose parameters are the elementwise mean of
// the parameters of the given features, with empty accumulators.
func Average(list []*Features) (*Features, error) {
	if len(list) == 0 {
		return nil, features.ErrEmptyAverage
	}
	n := len(list)
	vs := make([]*features.Categorical1, n)
	delVs := make([]*features.Categorical1g1, n)
	djs := make([]*features.Categorical2, n)
	delJs := make([]*features.Categorical1g1, n)
	delDs := make([]*features.Categorical2g1, n)
	insVDs := make([]*features.Insertion, n)
	insDJs := make([]*features.Insertion, n)
	errors := make([]*features.ErrorPoisson, n)
	for i, f := range list {
		vs[i], delVs[i], djs[i], delJs[i] = f.V, f.DelV, f.DJ, f.DelJ
		delDs[i], insVDs[i], insDJs[i], errors[i] = f.DelD, f.InsVD, f.InsDJ, f.Error
	}
	var result Features
	var err error
	if result.V, err = features.AverageCategorical1(vs); err != nil {
		return nil, fmt.Errorf("p(V): %w", err)
	}
	if result.DelV, err = features.AverageCategorical1g1(delVs); err != nil {
		return nil, fmt.Errorf("p(delV|V): %w", err)
	}
	if result.DJ, err = features.AverageCategorical2(djs); err != nil {
		return nil, fmt.Errorf("p(D,J): %w", err)
	}
	if result.DelJ, err = features.AverageCategorical1g1(delJs); err != nil {
		return nil, fmt.Errorf("p(delJ|J): %w", err)
	}
	if result.DelD, err = features.AverageCategorical2g1(delDs); err != nil {
		return nil, fmt.Errorf("p(delD3,delD5|D): %w", err)
	}
	if result.InsVD, err = features.AverageInsertion(insVDs); err != nil {
		return nil, fmt.Errorf("VD insertion: %w", err)
	}
	if result.InsDJ, err = features.AverageInsertion(insDJs); err != nil {
		return nil, fmt.Errorf("DJ insertion: %w", err)
	}
	if result.Error, err = features.AverageErrorPoisson(errors); err != nil {
		return nil, fmt.Errorf("error model: %w", err)
	}
	return &result, nil
}
