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

import "fmt"

func checkRows(rows [][]float64) (int, error) {
	if len(rows) == 0 {
		return 0, fmt.Errorf("empty probability table")
	}
	n := len(rows[0])
	for i, row := range rows {
		if len(row) != n {
			return 0, fmt.Errorf("row %v has length %v, expected %v", i, len(row), n)
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("empty probability table")
	}
	return n, nil
}

// Categorical1 is a categorical distribution over a single index, such
// as P(V).
type Categorical1 struct {
	t *table
}

// NewCategorical1 creates a Categorical1 from a probability vector.
func NewCategorical1(p []float64) (*Categorical1, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("empty probability table")
	}
	t := newTable([]int{len(p)}, false)
	copy(t.probas, p)
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &Categorical1{t}, nil
}

// Dim returns the number of categories.
func (c *Categorical1) Dim() int {
	return c.t.dims[0]
}

// Likelihood returns P(i), or 0 for an index out of range.
func (c *Categorical1) Likelihood(i int) float64 {
	if i < 0 || i >= c.t.dims[0] {
		return 0
	}
	return c.t.probas[i]
}

// DirtyUpdate adds weight to the accumulator for i.
func (c *Categorical1) DirtyUpdate(i int, weight float64) {
	if i < 0 || i >= c.t.dims[0] {
		return
	}
	c.t.dirty[i] += weight
}

// Cleanup returns a Categorical1 whose probabilities are the normalised
// accumulator of c. The receiver is not modified.
func (c *Categorical1) Cleanup() (*Categorical1, error) {
	t, err := c.t.cleanup()
	if err != nil {
		return nil, err
	}
	return &Categorical1{t}, nil
}

// Fresh returns a Categorical1 sharing the probabilities of c with an
// empty accumulator.
func (c *Categorical1) Fresh() *Categorical1 {
	return &Categorical1{c.t.fresh()}
}

// Merge adds the accumulator of other into c.
func (c *Categorical1) Merge(other *Categorical1) error {
	return c.t.merge(other.t)
}

// Probabilities returns a copy of the probability vector.
func (c *Categorical1) Probabilities() []float64 {
	return append([]float64(nil), c.t.probas...)
}

// Counts returns a copy of the accumulator.
func (c *Categorical1) Counts() []float64 {
	return append([]float64(nil), c.t.dirty...)
}

// AverageCategorical1 returns the elementwise mean of the given features.
func AverageCategorical1(list []*Categorical1) (*Categorical1, error) {
	tables := make([]*table, len(list))
	for i, c := range list {
		tables[i] = c.t
	}
	t, err := averageTables(tables)
	if err != nil {
		return nil, err
	}
	return &Categorical1{t}, nil
}

// Categorical1g1 is a categorical distribution over one index
// conditioned on another, such as P(delV | V). Tables are indexed
// [x][given].
type Categorical1g1 struct {
	t *table
}

// NewCategorical1g1 creates a Categorical1g1 from a table indexed
// [x][given]; every column must sum to 1 (or 0).
func NewCategorical1g1(p [][]float64) (*Categorical1g1, error) {
	ng, err := checkRows(p)
	if err != nil {
		return nil, err
	}
	nx := len(p)
	t := newTable([]int{nx, ng}, true)
	for x, row := range p {
		for g, v := range row {
			t.probas[g*nx+x] = v
		}
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &Categorical1g1{t}, nil
}

// Dim returns the number of values and the number of conditioning values.
func (c *Categorical1g1) Dim() (int, int) {
	return c.t.dims[0], c.t.dims[1]
}

func (c *Categorical1g1) index(x, given int) int {
	nx := c.t.dims[0]
	if x < 0 || x >= nx || given < 0 || given >= c.t.dims[1] {
		return -1
	}
	return given*nx + x
}

// Likelihood returns P(x | given), or 0 for indices out of range.
func (c *Categorical1g1) Likelihood(x, given int) float64 {
	if i := c.index(x, given); i >= 0 {
		return c.t.probas[i]
	}
	return 0
}

// DirtyUpdate adds weight to the accumulator for (x, given).
func (c *Categorical1g1) DirtyUpdate(x, given int, weight float64) {
	if i := c.index(x, given); i >= 0 {
		c.t.dirty[i] += weight
	}
}

// Cleanup returns a Categorical1g1 whose probabilities are the
// accumulator of c normalised per conditioning value.
func (c *Categorical1g1) Cleanup() (*Categorical1g1, error) {
	t, err := c.t.cleanup()
	if err != nil {
		return nil, err
	}
	return &Categorical1g1{t}, nil
}

// Fresh returns a Categorical1g1 sharing the probabilities of c with an
// empty accumulator.
func (c *Categorical1g1) Fresh() *Categorical1g1 {
	return &Categorical1g1{c.t.fresh()}
}

// Merge adds the accumulator of other into c.
func (c *Categorical1g1) Merge(other *Categorical1g1) error {
	return c.t.merge(other.t)
}

func (c *Categorical1g1) export(values []float64) [][]float64 {
	nx, ng := c.Dim()
	result := make([][]float64, nx)
	for x := range result {
		result[x] = make([]float64, ng)
		for g := range result[x] {
			result[x][g] = values[g*nx+x]
		}
	}
	return result
}

// Probabilities returns a copy of the table, indexed [x][given].
func (c *Categorical1g1) Probabilities() [][]float64 {
	return c.export(c.t.probas)
}

// Counts returns a copy of the accumulator, indexed [x][given].
func (c *Categorical1g1) Counts() [][]float64 {
	return c.export(c.t.dirty)
}

// AverageCategorical1g1 returns the elementwise mean of the given features.
func AverageCategorical1g1(list []*Categorical1g1) (*Categorical1g1, error) {
	tables := make([]*table, len(list))
	for i, c := range list {
		tables[i] = c.t
	}
	t, err := averageTables(tables)
	if err != nil {
		return nil, err
	}
	return &Categorical1g1{t}, nil
}

// Categorical2 is a joint categorical distribution over two indices,
// such as P(D, J). Tables are indexed [a][b].
type Categorical2 struct {
	t *table
}

// NewCategorical2 creates a Categorical2 from a table indexed [a][b];
// the whole table must sum to 1.
func NewCategorical2(p [][]float64) (*Categorical2, error) {
	nb, err := checkRows(p)
	if err != nil {
		return nil, err
	}
	t := newTable([]int{len(p), nb}, false)
	for a, row := range p {
		copy(t.probas[a*nb:(a+1)*nb], row)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &Categorical2{t}, nil
}

// Dim returns the size of both axes.
func (c *Categorical2) Dim() (int, int) {
	return c.t.dims[0], c.t.dims[1]
}

func (c *Categorical2) index(a, b int) int {
	nb := c.t.dims[1]
	if a < 0 || a >= c.t.dims[0] || b < 0 || b >= nb {
		return -1
	}
	return a*nb + b
}

// Likelihood returns P(a, b), or 0 for indices out of range.
func (c *Categorical2) Likelihood(a, b int) float64 {
	if i := c.index(a, b); i >= 0 {
		return c.t.probas[i]
	}
	return 0
}

// DirtyUpdate adds weight to the accumulator for (a, b).
func (c *Categorical2) DirtyUpdate(a, b int, weight float64) {
	if i := c.index(a, b); i >= 0 {
		c.t.dirty[i] += weight
	}
}

// Cleanup returns a Categorical2 whose probabilities are the normalised
// accumulator of c.
func (c *Categorical2) Cleanup() (*Categorical2, error) {
	t, err := c.t.cleanup()
	if err != nil {
		return nil, err
	}
	return &Categorical2{t}, nil
}

// Fresh returns a Categorical2 sharing the probabilities of c with an
// empty accumulator.
func (c *Categorical2) Fresh() *Categorical2 {
	return &Categorical2{c.t.fresh()}
}

// Merge adds the accumulator of other into c.
func (c *Categorical2) Merge(other *Categorical2) error {
	return c.t.merge(other.t)
}

func (c *Categorical2) export(values []float64) [][]float64 {
	na, nb := c.Dim()
	result := make([][]float64, na)
	for a := range result {
		result[a] = append([]float64(nil), values[a*nb:(a+1)*nb]...)
	}
	return result
}

// Probabilities returns a copy of the table, indexed [a][b].
func (c *Categorical2) Probabilities() [][]float64 {
	return c.export(c.t.probas)
}

// Counts returns a copy of the accumulator, indexed [a][b].
func (c *Categorical2) Counts() [][]float64 {
	return c.export(c.t.dirty)
}

// AverageCategorical2 returns the elementwise mean of the given features.
func AverageCategorical2(list []*Categorical2) (*Categorical2, error) {
	tables := make([]*table, len(list))
	for i, c := range list {
		tables[i] = c.t
	}
	t, err := averageTables(tables)
	if err != nil {
		return nil, err
	}
	return &Categorical2{t}, nil
}

// Categorical2g1 is a joint categorical distribution over two indices
// conditioned on a third, such as P(delD3, delD5 | D). Tables are
// indexed [a][b][given].
type Categorical2g1 struct {
	t *table
}

// NewCategorical2g1 creates a Categorical2g1 from a table indexed
// [a][b][given]; for every given value the (a, b) plane must sum to 1
// (or 0).
func NewCategorical2g1(p [][][]float64) (*Categorical2g1, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("empty probability table")
	}
	nb := len(p[0])
	ng, err := checkRows(p[0])
	if err != nil {
		return nil, err
	}
	for a, plane := range p {
		if len(plane) != nb {
			return nil, fmt.Errorf("plane %v has %v rows, expected %v", a, len(plane), nb)
		}
		n, err := checkRows(plane)
		if err != nil {
			return nil, fmt.Errorf("plane %v: %v", a, err)
		}
		if n != ng {
			return nil, fmt.Errorf("plane %v has rows of length %v, expected %v", a, n, ng)
		}
	}
	na := len(p)
	t := newTable([]int{na, nb, ng}, true)
	for a, plane := range p {
		for b, row := range plane {
			for g, v := range row {
				t.probas[g*na*nb+a*nb+b] = v
			}
		}
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &Categorical2g1{t}, nil
}

// Dim returns the size of the three axes.
func (c *Categorical2g1) Dim() (int, int, int) {
	return c.t.dims[0], c.t.dims[1], c.t.dims[2]
}

func (c *Categorical2g1) index(a, b, given int) int {
	na, nb, ng := c.Dim()
	if a < 0 || a >= na || b < 0 || b >= nb || given < 0 || given >= ng {
		return -1
	}
	return given*na*nb + a*nb + b
}

// Likelihood returns P(a, b | given), or 0 for indices out of range.
func (c *Categorical2g1) Likelihood(a, b, given int) float64 {
	if i := c.index(a, b, given); i >= 0 {
		return c.t.probas[i]
	}
	return 0
}

// DirtyUpdate adds weight to the accumulator for (a, b, given).
func (c *Categorical2g1) DirtyUpdate(a, b, given int, weight float64) {
	if i := c.index(a, b, given); i >= 0 {
		c.t.dirty[i] += weight
	}
}

// Cleanup returns a Categorical2g1 whose probabilities are the
// accumulator of c normalised per conditioning value.
func (c *Categorical2g1) Cleanup() (*Categorical2g1, error) {
	t, err := c.t.cleanup()
	if err != nil {
		return nil, err
	}
	return &Categorical2g1{t}, nil
}

// Fresh returns a Categorical2g1 sharing the probabilities of c with an
// empty accumulator.
func (c *Categorical2g1) Fresh() *Categorical2g1 {
	return &Categorical2g1{c.t.fresh()}
}

// Merge adds the accumulator of other into c.
func (c *Categorical2g1) Merge(other *Categorical2g1) error {
	return c.t.merge(other.t)
}

func (c *Categorical2g1) export(values []float64) [][][]float64 {
	na, nb, ng := c.Dim()
	result := make([][][]float64, na)
	for a := range result {
		result[a] = make([][]float64, nb)
		for b := range result[a] {
			result[a][b] = make([]float64, ng)
			for g := range result[a][b] {
				result[a][b][g] = values[g*na*nb+a*nb+b]
			}
		}
	}
	return result
}

// Probabilities returns a copy of the table, indexed [a][b][given].
func (c *Categorical2g1) Probabilities() [][][]float64 {
	return c.export(c.t.probas)
}

// Counts returns a copy of the accumulator, indexed [a][b][given].
func (c *Categorical2g1) Counts() [][][]float64 {
	return c.export(c.t.dirty)
}

// AverageCategorical2g1 returns the elementwise mean of the given features.
func AverageCategorical2g1(list []*Categorical2g1) (*Categorical2g1, error) {
	tables := make([]*table, len(list))
	for i, c := range list {
		tables[i] = c.t
	}
	t, err := averageTables(tables)
	if err != nil {
		return nil, err
	}
	return &Categorical2g1{t}, nil
}
