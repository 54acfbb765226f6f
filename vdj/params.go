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
	"flag"
	"fmt"
	"math"
)

// InferenceParameters configure a call to Features.Infer.
type InferenceParameters struct {
	// MinLikelihood is the threshold below which a partial or complete
	// event is discarded, at every pruning stage.
	MinLikelihood float64

	// MinLikelihoodError is the floor of the error model likelihood.
	MinLikelihoodError float64

	// NbBestEvents is the number of most likely events reported per
	// sequence; 0 disables event tracking.
	NbBestEvents int

	// Timed enables progress and timing logs for batch inference.
	Timed bool
}

// DefaultInferenceParameters returns the parameters used when nothing
// else is specified.
func DefaultInferenceParameters() InferenceParameters {
	return InferenceParameters{
		MinLikelihood:      1e-60,
		MinLikelihoodError: 1e-60,
		NbBestEvents:       10,
	}
}

// RegisterFlags registers command line flags for p on the given flag
// set, using the current values of p as defaults.
func (p *InferenceParameters) RegisterFlags(flags *flag.FlagSet) {
	flags.Float64Var(&p.MinLikelihood, "min-likelihood", p.MinLikelihood, "discard recombination events less likely than this")
	flags.Float64Var(&p.MinLikelihoodError, "min-likelihood-error", p.MinLikelihoodError, "floor of the sequencing error likelihood")
	flags.IntVar(&p.NbBestEvents, "nb-best-events", p.NbBestEvents, "number of most likely events reported per sequence")
	flags.BoolVar(&p.Timed, "timed", p.Timed, "log progress and elapsed time of batch inference")
}

// Validate checks that the parameters are usable.
func (p *InferenceParameters) Validate() error {
	if math.IsNaN(p.MinLikelihood) || math.IsInf(p.MinLikelihood, 0) || p.MinLikelihood < 0 {
		return fmt.Errorf("invalid minimum likelihood %v", p.MinLikelihood)
	}
	if math.IsNaN(p.MinLikelihoodError) || p.MinLikelihoodError < 0 || p.MinLikelihoodError > 1 {
		return fmt.Errorf("invalid minimum error likelihood %v", p.MinLikelihoodError)
	}
	if p.NbBestEvents < 0 {
		return fmt.Errorf("invalid number of best events %v", p.NbBestEvents)
	}
	return nil
}
