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
	"log"
	"math"

	"github.com/exascience/pargo/parallel"
	"github.com/google/uuid"

	"github.com/exascience/vdjinfer/internal"
	"github.com/exascience/vdjinfer/utils"
)

// BatchResult is the outcome of inferring a batch of sequences.
type BatchResult struct {
	// ID identifies the batch in logs.
	ID uuid.UUID

	// ProbabilityGenerations and BestEvents hold the results of Infer
	// for each sequence, in input order.
	ProbabilityGenerations []float64
	BestEvents             [][]RankedEvent

	// Features has the parameters the batch was inferred with and the
	// accumulated counts of all sequences.
	Features *Features
}

// LogLikelihood returns the sum of the log generation probabilities of
// the sequences that have a non-zero generation probability, and the
// number of sequences that have none.
func (r *BatchResult) LogLikelihood() (logLikelihood float64, nbUnexplained int) {
	for _, p := range r.ProbabilityGenerations {
		if p > 0 {
			logLikelihood += math.Log(p)
		} else {
			nbUnexplained++
		}
	}
	return logLikelihood, nbUnexplained
}

type batchAccumulator struct {
	features *Features
	err      error
}

/*
InferBatch runs Infer on each of the given sequences in parallel.

The sequences are split into ranges, and each range is inferred with
its own accumulator obtained from f.Fresh. The accumulators are merged
once all ranges are done. f itself is not modified.
*/
func InferBatch(f *Features, sequences []*Sequence, params *InferenceParameters) (*BatchResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	result := &BatchResult{
		ID:                     uuid.New(),
		ProbabilityGenerations: make([]float64, len(sequences)),
		BestEvents:             make([][]RankedEvent, len(sequences)),
	}
	if len(sequences) == 0 {
		result.Features = f.Fresh()
		return result, nil
	}
	var acc batchAccumulator
	internal.TimedRun(params.Timed, fmt.Sprintf("%v version %v (%v), batch %v: inferring %v sequences.", utils.ProgramName, utils.ProgramVersion, utils.ProgramURL, result.ID, len(sequences)), func() {
		acc = parallel.RangeReduce(0, len(sequences), 0, func(low, high int) interface{} {
			local := f.Fresh()
			for i := low; i < high; i++ {
				result.ProbabilityGenerations[i], result.BestEvents[i] = local.Infer(sequences[i], params)
			}
			return batchAccumulator{features: local}
		}, func(x, y interface{}) interface{} {
			acc1 := x.(batchAccumulator)
			acc2 := y.(batchAccumulator)
			if acc1.err == nil {
				acc1.err = acc2.err
			}
			if acc1.err == nil {
				acc1.err = acc1.features.Merge(acc2.features)
			}
			return acc1
		}).(batchAccumulator)
	})
	if acc.err != nil {
		return nil, fmt.Errorf("batch %v: %w", result.ID, acc.err)
	}
	result.Features = acc.features
	if params.Timed {
		logLikelihood, nbUnexplained := result.LogLikelihood()
		log.Printf("Batch %v: log-likelihood %v, %v sequences without any surviving event.\n", result.ID, logLikelihood, nbUnexplained)
	}
	return result, nil
}
