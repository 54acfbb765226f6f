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
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

const errorLookupSize = 64

// ErrorPoisson models the number of sequencing errors in an aligned
// segment as Poisson distributed. Likelihoods are floored at a minimum
// so that a low error rate never rules out an alignment with errors.
type ErrorPoisson struct {
	rate          float64
	minLikelihood float64
	lookup        []float64

	errors float64
	weight float64
}

// NewErrorPoisson creates an ErrorPoisson with the given mean and
// likelihood floor.
func NewErrorPoisson(rate, minLikelihood float64) (*ErrorPoisson, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return nil, fmt.Errorf("invalid error rate %v", rate)
	}
	if math.IsNaN(minLikelihood) || minLikelihood < 0 || minLikelihood > 1 {
		return nil, fmt.Errorf("invalid minimum error likelihood %v", minLikelihood)
	}
	e := &ErrorPoisson{rate: rate, minLikelihood: minLikelihood}
	e.lookup = make([]float64, errorLookupSize)
	for k := range e.lookup {
		e.lookup[k] = e.pmf(k)
	}
	return e, nil
}

func (e *ErrorPoisson) pmf(k int) float64 {
	var p float64
	if e.rate == 0 {
		if k == 0 {
			p = 1
		}
	} else {
		p = distuv.Poisson{Lambda: e.rate}.Prob(float64(k))
	}
	return math.Max(p, e.minLikelihood)
}

// Rate returns the Poisson mean.
func (e *ErrorPoisson) Rate() float64 {
	return e.rate
}

// MinLikelihood returns the likelihood floor.
func (e *ErrorPoisson) MinLikelihood() float64 {
	return e.minLikelihood
}

// Likelihood returns the floored probability of observing k errors.
func (e *ErrorPoisson) Likelihood(k int) float64 {
	if k < 0 {
		return 0
	}
	if k < len(e.lookup) {
		return e.lookup[k]
	}
	return e.pmf(k)
}

// DirtyUpdate accumulates k errors observed with the given weight.
func (e *ErrorPoisson) DirtyUpdate(k int, weight float64) {
	e.errors += weight * float64(k)
	e.weight += weight
}

// Counts returns the accumulated weighted error count and total weight.
func (e *ErrorPoisson) Counts() (errors, weight float64) {
	return e.errors, e.weight
}

// Cleanup returns an ErrorPoisson whose rate is the weighted mean error
// count accumulated in e, or 0 if nothing was accumulated.
func (e *ErrorPoisson) Cleanup() (*ErrorPoisson, error) {
	var rate float64
	if e.weight > 0 {
		rate = e.errors / e.weight
	}
	return NewErrorPoisson(rate, e.minLikelihood)
}

// Fresh returns an ErrorPoisson with the parameters of e and empty
// accumulators.
func (e *ErrorPoisson) Fresh() *ErrorPoisson {
	return &ErrorPoisson{rate: e.rate, minLikelihood: e.minLikelihood, lookup: e.lookup}
}

// Merge adds the accumulators of other into e.
func (e *ErrorPoisson) Merge(other *ErrorPoisson) error {
	if e.minLikelihood != other.minLikelihood {
		return fmt.Errorf("%w: minimum error likelihoods %v and %v differ", ErrShapeMismatch, e.minLikelihood, other.minLikelihood)
	}
	e.errors += other.errors
	e.weight += other.weight
	return nil
}

// AverageErrorPoisson returns an ErrorPoisson with the mean rate of the
// given features.
func AverageErrorPoisson(list []*ErrorPoisson) (*ErrorPoisson, error) {
	if len(list) == 0 {
		return nil, ErrEmptyAverage
	}
	var sum float64
	for _, e := range list {
		if e.minLikelihood != list[0].minLikelihood {
			return nil, fmt.Errorf("%w: minimum error likelihoods %v and %v differ", ErrShapeMismatch, list[0].minLikelihood, e.minLikelihood)
		}
		sum += e.rate
	}
	return NewErrorPoisson(sum/float64(len(list)), list[0].minLikelihood)
}
