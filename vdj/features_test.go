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
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/exascience/vdjinfer/features"
)

func TestInferSingleScenario(t *testing.T) {
	m := deltaModel(t)
	f := newTestFeatures(t, m)
	params := DefaultInferenceParameters()
	seq := newTestSequence(t, m, testRead, 0, []int{10}, 16)

	pgen, best := f.Infer(seq, &params)
	want := (0.4 * 0.2 * 0.25) * (0.2 * 0.7)
	if !closeTo(pgen, want, 1e-12) {
		t.Errorf("generation probability %v, want %v", pgen, want)
	}
	if len(best) != 1 {
		t.Fatalf("%v best events, want 1", len(best))
	}
	if best[0].Likelihood != pgen {
		t.Error("best event likelihood failed")
	}
	e := best[0].Event
	if e.VIndex != 0 || e.DIndex != 0 || e.JIndex != 0 {
		t.Error("best event genes failed")
	}
	if e.DelV != 2 || e.DelJ != 1 || e.DelD5 != 1 || e.DelD3 != 1 {
		t.Error("best event deletions failed")
	}
	if e.VEnd != 8 || e.DStart != 11 || e.DEnd != 15 || e.JStart != 17 {
		t.Error("best event boundaries failed")
	}
	if e.InsVD.String() != "ACG" || e.InsDJ.String() != "CT" {
		t.Errorf("best event insertions %v %v, want ACG CT", e.InsVD, e.InsDJ)
	}

	next, err := f.Cleanup()
	if err != nil {
		t.Fatal(err)
	}
	if !closeTo(next.DelV.Likelihood(2, 0), 1, 1e-12) || next.DelV.Likelihood(1, 0) != 0 {
		t.Error("p(delV|V) re-estimation failed")
	}
	if !closeTo(next.InsVD.LikelihoodLength(3), 1, 1e-12) || !closeTo(next.InsDJ.LikelihoodLength(2), 1, 1e-12) {
		t.Error("insertion length re-estimation failed")
	}
	if !closeTo(next.InsVD.FirstNucleotideBias()[0], 1, 1e-12) {
		t.Error("VD first nucleotide re-estimation failed")
	}
	if !closeTo(next.InsDJ.FirstNucleotideBias()[1], 1, 1e-12) {
		t.Error("DJ first nucleotide re-estimation failed")
	}
	if next.Error.Rate() != 0 {
		t.Error("error rate re-estimation failed")
	}

	desc := m.Describe(&e)
	if !strings.Contains(desc, "V=V1 D=D1 J=J1") || !strings.Contains(desc, "insVD=ACG insDJ=CT") {
		t.Errorf("Describe failed: %v", desc)
	}
}

func checkSorted(t *testing.T, best []RankedEvent) {
	for i := 1; i < len(best); i++ {
		if best[i-1].Likelihood < best[i].Likelihood {
			t.Error("best events not sorted by decreasing likelihood")
			return
		}
	}
}

func TestInferBestEvents(t *testing.T) {
	m := richModel(t)
	f := newTestFeatures(t, m)
	seq := richSequences(t, m)[0]
	params := DefaultInferenceParameters()

	params.NbBestEvents = 5
	pgen5, best5 := f.Fresh().Infer(seq, &params)
	if len(best5) != 5 {
		t.Fatalf("%v best events, want 5", len(best5))
	}
	checkSorted(t, best5)

	params.NbBestEvents = 0
	pgen0, best0 := f.Fresh().Infer(seq, &params)
	if pgen0 != pgen5 || len(best0) != 0 {
		t.Error("NbBestEvents = 0 failed")
	}

	params.NbBestEvents = 1
	_, best1 := f.Fresh().Infer(seq, &params)
	if len(best1) != 1 || best1[0].Likelihood != best5[0].Likelihood {
		t.Error("NbBestEvents = 1 failed")
	}

	params.NbBestEvents = 1 << 20
	pgenAll, bestAll := f.Fresh().Infer(seq, &params)
	if pgenAll != pgen5 {
		t.Error("generation probability depends on NbBestEvents")
	}
	checkSorted(t, bestAll)
	var sum float64
	for _, r := range bestAll {
		sum += r.Likelihood
		e := r.Event
		if e.VEnd > e.DStart || e.DStart > e.DEnd || e.DEnd > e.JStart {
			t.Error("infeasible event reported")
		}
	}
	if !closeTo(sum, pgenAll, 1e-9) {
		t.Errorf("sum of all event likelihoods %v, want %v", sum, pgenAll)
	}
}

func TestInferPruningMonotonic(t *testing.T) {
	m := richModel(t)
	f := newTestFeatures(t, m)
	params := DefaultInferenceParameters()
	for _, seq := range richSequences(t, m) {
		previous := 0.0
		for _, threshold := range []float64{1e-2, 1e-4, 1e-6, 1e-9, 1e-12, 0} {
			params.MinLikelihood = threshold
			pgen, _ := f.Fresh().Infer(seq, &params)
			if pgen < previous {
				t.Errorf("generation probability decreased from %v to %v at threshold %v", previous, pgen, threshold)
			}
			previous = pgen
		}
		if previous == 0 {
			t.Error("sequence without any event")
		}
	}
}

func TestInferInfeasible(t *testing.T) {
	m := richModel(t)
	f := newTestFeatures(t, m)
	seq := newTestSequence(t, m, testRead, 0, nil, 16)
	seq.DGenes = []*DAlignment{{Index: 0, Pos: 12, Len: 2}}

	e := Event{V: seq.VGenes[0], D: seq.DGenes[0], J: seq.JGenes[0], DelD5: 2, DelD3: 1}
	if e.Feasible() {
		t.Error("Feasible failed")
	}
	if f.likelihoodDJ(&e, 0, 0) != 0 {
		t.Error("likelihoodDJ of an infeasible event failed")
	}

	params := DefaultInferenceParameters()
	params.MinLikelihood = 0
	params.NbBestEvents = 1 << 20
	_, best := f.Fresh().Infer(seq, &params)
	for _, r := range best {
		if r.Event.DStart > r.Event.DEnd {
			t.Error("event with overlapping D deletions reported")
		}
	}

	// Only deletions that remove more than the whole D gene have mass.
	plane := [][]float64{{0, 0}, {0, 0}, {0, 0}}
	m.PDelD3DelD5 = [][][]float64{plane, plane, {{0, 0}, {0, 0}, {1, 1}}}
	f = newTestFeatures(t, m)
	pgen, best := f.Infer(seq, &params)
	if pgen != 0 || len(best) != 0 {
		t.Error("infeasible deletions contributed to the generation probability")
	}
	if counts := f.V.Counts(); counts[0] != 0 || counts[1] != 0 {
		t.Error("infeasible deletions contributed to the accumulators")
	}
}

func TestInferDuplicateDAlignment(t *testing.T) {
	m := richModel(t)
	f := newTestFeatures(t, m)
	params := DefaultInferenceParameters()
	seq := newTestSequence(t, m, testRead, 0, []int{10}, 16)

	pgenAll, _ := f.Fresh().Infer(seq, &params)

	only := *seq
	only.DGenes = seq.DGenes[:1]
	pgenFirst, _ := f.Fresh().Infer(&only, &params)

	dup := *seq
	dup.DGenes = append(append([]*DAlignment(nil), seq.DGenes...), seq.DGenes[0])
	pgenDup, _ := f.Fresh().Infer(&dup, &params)

	if !closeTo(pgenDup, pgenAll+pgenFirst, 1e-12) {
		t.Errorf("duplicated D alignment: %v, want %v", pgenDup, pgenAll+pgenFirst)
	}
}

func reversed(seq *Sequence) *Sequence {
	result := &Sequence{Read: seq.Read}
	for i := len(seq.VGenes) - 1; i >= 0; i-- {
		result.VGenes = append(result.VGenes, seq.VGenes[i])
	}
	for i := len(seq.DGenes) - 1; i >= 0; i-- {
		result.DGenes = append(result.DGenes, seq.DGenes[i])
	}
	for i := len(seq.JGenes) - 1; i >= 0; i-- {
		result.JGenes = append(result.JGenes, seq.JGenes[i])
	}
	return result
}

func TestInferAlignmentOrder(t *testing.T) {
	m := richModel(t)
	f := newTestFeatures(t, m)
	params := DefaultInferenceParameters()
	for _, seq := range richSequences(t, m) {
		f1, f2 := f.Fresh(), f.Fresh()
		pgen1, best1 := f1.Infer(seq, &params)
		pgen2, best2 := f2.Infer(reversed(seq), &params)
		if !closeTo(pgen1, pgen2, 1e-12) {
			t.Errorf("generation probability depends on alignment order: %v, %v", pgen1, pgen2)
		}
		if len(best1) != len(best2) || !closeTo(best1[0].Likelihood, best2[0].Likelihood, 1e-12) {
			t.Error("best events depend on alignment order")
		}
		c1, c2 := f1.DJ.Counts(), f2.DJ.Counts()
		for d := range c1 {
			for j := range c1[d] {
				if !closeTo(c1[d][j], c2[d][j], 1e-12) {
					t.Error("accumulators depend on alignment order")
				}
			}
		}
	}
}

func TestInferLeavesParametersUnchanged(t *testing.T) {
	m := richModel(t)
	f := newTestFeatures(t, m)
	params := DefaultInferenceParameters()
	for _, seq := range richSequences(t, m) {
		f.Infer(seq, &params)
	}
	if !reflect.DeepEqual(m.Update(f), m) {
		t.Error("Infer modified the parameters")
	}
}

func TestCleanupIdempotent(t *testing.T) {
	m := richModel(t)
	f := newTestFeatures(t, m)
	params := DefaultInferenceParameters()
	for _, seq := range richSequences(t, m) {
		f.Infer(seq, &params)
	}
	c1, err := f.Cleanup()
	if err != nil {
		t.Fatal(err)
	}
	c2, err := f.Cleanup()
	if err != nil {
		t.Fatal(err)
	}
	m1, m2 := m.Update(c1), m.Update(c2)
	if !reflect.DeepEqual(m1, m2) {
		t.Error("Cleanup is not idempotent")
	}
	for v := 0; v < 2; v++ {
		var sum float64
		for _, row := range m1.PDelVGivenV {
			sum += row[v]
		}
		if sum != 0 && !closeTo(sum, 1, 1e-9) {
			t.Errorf("p(delV|V=%v) sums to %v", v, sum)
		}
	}
	if c1.Error.Rate() <= 0 {
		t.Error("error rate re-estimation failed")
	}

	// The refreshed parameters are valid input for a new round.
	if _, err := NewFeatures(m1, &params); err != nil {
		t.Error(err)
	}

	avg, err := Average([]*Features{c1, c1})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(m.Update(avg), m1) {
		t.Error("Average of identical features failed")
	}
}

func TestAverageErrors(t *testing.T) {
	if _, err := Average(nil); !errors.Is(err, features.ErrEmptyAverage) {
		t.Error("Average of an empty list failed")
	}
	m := richModel(t)
	f1 := newTestFeatures(t, m)
	m.PV = []float64{0.2, 0.3, 0.5}
	m.SegVs = nil
	m.PDelVGivenV = [][]float64{{0.5, 0.5, 0.5}, {0.5, 0.5, 0.5}}
	f2 := newTestFeatures(t, m)
	if _, err := Average([]*Features{f1, f2}); !errors.Is(err, features.ErrShapeMismatch) {
		t.Error("Average of mismatched features failed")
	}
	if err := f1.Merge(f2); !errors.Is(err, features.ErrShapeMismatch) {
		t.Error("Merge of mismatched features failed")
	}
}

func TestMergeAll(t *testing.T) {
	if _, err := MergeAll(nil); err == nil {
		t.Error("MergeAll of an empty list failed")
	}
	m := richModel(t)
	f := newTestFeatures(t, m)
	params := DefaultInferenceParameters()
	sequential := f.Fresh()
	var parts []*Features
	for _, seq := range richSequences(t, m) {
		sequential.Infer(seq, &params)
		part := f.Fresh()
		part.Infer(seq, &params)
		parts = append(parts, part)
	}
	merged, err := MergeAll(parts)
	if err != nil {
		t.Fatal(err)
	}
	e1, w1 := sequential.Error.Counts()
	e2, w2 := merged.Error.Counts()
	if !closeTo(e1, e2, 1e-12) || !closeTo(w1, w2, 1e-12) {
		t.Error("MergeAll error accumulators failed")
	}
	c1, c2 := sequential.InsVD.LengthCounts(), merged.InsVD.LengthCounts()
	for i := range c1 {
		if !closeTo(c1[i], c2[i], 1e-12) {
			t.Error("MergeAll insertion accumulators failed")
		}
	}
}

func TestNewFeaturesErrors(t *testing.T) {
	params := DefaultInferenceParameters()
	for _, test := range []struct {
		name   string
		modify func(m *Model)
		shape  bool
	}{
		{"p(V)", func(m *Model) { m.PV = []float64{0.6, 0.6} }, false},
		{"p(delV|V)", func(m *Model) { m.PDelVGivenV[0][1] = 0.5 }, false},
		{"p(D,J)", func(m *Model) { m.PDJ[1] = []float64{0.1} }, false},
		{"p(delJ|J)", func(m *Model) { m.PDelJGivenJ = [][]float64{{1, 0, 0}} }, true},
		{"p(delD3,delD5|D)", func(m *Model) { m.PDelD3DelD5[0][0][0] = -1 }, false},
		{"VD insertion", func(m *Model) { m.FirstNtBiasInsVD = []float64{1, 1, 0, 0} }, false},
		{"DJ insertion", func(m *Model) { m.MarkovCoefficientsDJ = m.MarkovCoefficientsDJ[:3] }, false},
		{"error model", func(m *Model) { m.ErrorRate = -1 }, false},
	} {
		m := richModel(t)
		test.modify(m)
		_, err := NewFeatures(m, &params)
		if err == nil {
			t.Errorf("invalid %v accepted", test.name)
			continue
		}
		if !strings.HasPrefix(err.Error(), test.name+":") {
			t.Errorf("error %q does not name %v", err, test.name)
		}
		if test.shape && !errors.Is(err, features.ErrShapeMismatch) {
			t.Errorf("error %q is not a shape mismatch", err)
		}
	}

	m := richModel(t)
	m.SegJs = m.SegJs[:1]
	if _, err := NewFeatures(m, &params); !errors.Is(err, features.ErrShapeMismatch) {
		t.Error("gene list mismatch accepted")
	}
}

func TestModelUpdate(t *testing.T) {
	m := richModel(t)
	f := newTestFeatures(t, m)
	updated := m.Update(f)
	if !reflect.DeepEqual(updated, m) {
		t.Error("Update failed")
	}
	updated.PV[0] = 0
	if m.PV[0] != 0.6 {
		t.Error("Update shares tables with the features")
	}

	updated.SegVs, updated.SegDs = nil, nil
	desc := updated.Describe(&StaticEvent{VIndex: 1, JIndex: 1})
	if !strings.HasPrefix(desc, "V=V#1 D=D#0 J=J2 ") {
		t.Errorf("Describe without gene names failed: %v", desc)
	}
}

func BenchmarkInfer(b *testing.B) {
	m := richModel(b)
	f := newTestFeatures(b, m)
	seqs := richSequences(b, m)
	params := DefaultInferenceParameters()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Infer(seqs[i%len(seqs)], &params)
	}
}

// enumerate scores every event of seq without pruning, and returns the
// sum of the event likelihoods and the sum of the event likelihoods
// weighted by their total number of errors.
func enumerate(f *Features, seq *Sequence) (pgen, weightedErrors float64) {
	nbDelV, _ := f.DelV.Dim()
	nbDelJ, _ := f.DelJ.Dim()
	nbDelD3, nbDelD5, _ := f.DelD.Dim()
	for _, v := range seq.VGenes {
		for delV := 0; delV < nbDelV; delV++ {
			for _, j := range seq.JGenes {
				for delJ := 0; delJ < nbDelJ; delJ++ {
					for _, d := range seq.DGenes {
						for delD5 := 0; delD5 < nbDelD5; delD5++ {
							for delD3 := 0; delD3 < nbDelD3; delD3++ {
								e := Event{V: v, D: d, J: j, DelV: delV, DelJ: delJ, DelD5: delD5, DelD3: delD3}
								if !e.Feasible() {
									continue
								}
								errV, errD, errJ := v.NbErrors(delV), d.NbErrors(delD5, delD3), j.NbErrors(delJ)
								insVD, insDJ := seq.InsertionsVDDJ(&e)
								l := f.V.Likelihood(v.Index) * f.DelV.Likelihood(delV, v.Index) *
									f.DJ.Likelihood(d.Index, j.Index) * f.DelJ.Likelihood(delJ, j.Index) *
									f.DelD.Likelihood(delD3, delD5, d.Index) *
									f.InsVD.LikelihoodLength(insVD.Len()) * f.InsDJ.LikelihoodLength(insDJ.Len()) *
									f.Error.Likelihood(errV) * f.Error.Likelihood(errD) * f.Error.Likelihood(errJ) *
									f.InsVD.LikelihoodSequence(insVD) * f.InsDJ.LikelihoodSequence(insDJ)
								pgen += l
								weightedErrors += l * float64(errV+errD+errJ)
							}
						}
					}
				}
			}
		}
	}
	return pgen, weightedErrors
}

func TestInferMatchesEnumeration(t *testing.T) {
	m := richModel(t)
	f := newTestFeatures(t, m)
	params := DefaultInferenceParameters()
	params.MinLikelihood = 0
	for i, seq := range richSequences(t, m) {
		want, _ := enumerate(f, seq)
		pgen, _ := f.Fresh().Infer(seq, &params)
		if want == 0 || !closeTo(pgen, want, 1e-12) {
			t.Errorf("sequence %v: generation probability %v, want %v", i, pgen, want)
		}
	}
}

func TestErrorRateReestimation(t *testing.T) {
	m := richModel(t)
	f := newTestFeatures(t, m)
	params := DefaultInferenceParameters()
	params.MinLikelihood = 0
	var totalWeight, totalErrors float64
	for _, seq := range richSequences(t, m) {
		pgen, weightedErrors := enumerate(f, seq)
		totalWeight += pgen
		totalErrors += weightedErrors
		f.Infer(seq, &params)
	}
	errs, weight := f.Error.Counts()
	if !closeTo(weight, totalWeight, 1e-12) || !closeTo(errs, totalErrors, 1e-12) {
		t.Errorf("error accumulators %v/%v, want %v/%v", errs, weight, totalErrors, totalWeight)
	}
	next, err := f.Cleanup()
	if err != nil {
		t.Fatal(err)
	}
	want := totalErrors / totalWeight
	if want == 0 || !closeTo(next.Error.Rate(), want, 1e-9) {
		t.Errorf("re-estimated error rate %v, want %v", next.Error.Rate(), want)
	}
}
