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

package dna

import (
	"fmt"
	"log"
)

// Nucleotide codes as stored in a Dna buffer.
const (
	A byte = iota
	C
	G
	T
	N
)

// NbNucleotides is the number of unambiguous nucleotide codes.
const NbNucleotides = 4

var codeToBase = [...]byte{'A', 'C', 'G', 'T', 'N'}

const invalidCode = 0xFF

var baseToCode [256]byte

func init() {
	for i := range baseToCode {
		baseToCode[i] = invalidCode
	}
	for code, base := range codeToBase {
		baseToCode[base] = byte(code)
		baseToCode[base+'a'-'A'] = byte(code)
	}
}

// Code returns the nucleotide code for the given base letter. It
// returns false if the letter is not one of ACGTN (in either case).
func Code(base byte) (byte, bool) {
	code := baseToCode[base]
	return code, code != invalidCode
}

// Base returns the letter for the given nucleotide code.
func Base(code byte) byte {
	if int(code) >= len(codeToBase) {
		return 'N'
	}
	return codeToBase[code]
}

// Dna is a slice-like data structure for nucleotide sequences, storing
// one nucleotide code per 4-bit value. Slices of a Dna share storage
// with it; use Clone to obtain an owned copy.
type Dna struct {
	info  int
	bytes []byte
}

// Len returns the number of nucleotides.
func (d Dna) Len() int {
	return d.info >> 1
}

func (d Dna) offset() int {
	return d.info & 1
}

// Make creates a Dna of the given length, filled with A.
func Make(n int) Dna {
	return Dna{
		info:  n << 1,
		bytes: make([]byte, (n+1)>>1),
	}
}

// FromString parses a nucleotide string.
func FromString(s string) (Dna, error) {
	d := Make(len(s))
	for i := 0; i < len(s); i++ {
		code, ok := Code(s[i])
		if !ok {
			return Dna{}, fmt.Errorf("invalid nucleotide %q at position %d", s[i], i)
		}
		d.Set(i, code)
	}
	return d, nil
}

// At returns the nucleotide code at the given index.
func (d Dna) At(index int) byte {
	if index < 0 || index >= d.Len() {
		log.Panic("index out of range")
	}
	index += d.offset()
	i := index >> 1
	bit := index & 1
	return 0xF & (d.bytes[i] >> uint((1^bit)<<2))
}

// Set sets the nucleotide code at the given index.
func (d Dna) Set(index int, code byte) {
	if index < 0 || index >= d.Len() {
		log.Panic("index out of range")
	}
	index += d.offset()
	i := index >> 1
	bit := index & 1
	d.bytes[i] = ((0xF << uint(bit<<2)) & d.bytes[i]) | ((0xF & code) << uint((1^bit)<<2))
}

// Slice returns the subsequence [low, high), sharing storage.
func (d Dna) Slice(low, high int) Dna {
	if low < 0 || high < low || high > d.Len() {
		log.Panic("slice bounds out of range")
	}
	offset := d.offset()
	return Dna{
		info:  ((high - low) << 1) | (offset ^ (low & 1)),
		bytes: d.bytes[(low+offset)>>1 : (high+offset+1)>>1],
	}
}

// Copy copies nucleotides from src and returns the number copied.
func (d Dna) Copy(src Dna) int {
	copyLen := d.Len()
	if srcLen := src.Len(); srcLen < copyLen {
		copyLen = srcLen
	}
	if copyLen == 0 {
		return 0
	}
	offset := d.offset()
	srcOffset := src.offset()
	if offset == 0 {
		if srcOffset == 0 {
			index := copyLen >> 1
			copy(d.bytes[:index], src.bytes[:index])
			if (copyLen & 1) == 1 {
				d.bytes[index] = (0xF & d.bytes[index]) | ((0xF << 4) & src.bytes[index])
			}
			return copyLen
		}
	} else if srcOffset == 1 {
		d.bytes[0] = ((0xF << 4) & d.bytes[0]) | (0xF & src.bytes[0])
		cLen := copyLen + 1
		index := cLen >> 1
		copy(d.bytes[1:index], src.bytes[1:index])
		if (cLen & 1) == 1 {
			d.bytes[index] = (0xF & d.bytes[index]) | ((0xF << 4) & src.bytes[index])
		}
		return copyLen
	}
	for i := 0; i < copyLen; i++ {
		d.Set(i, src.At(i))
	}
	return copyLen
}

// Clone returns an owned copy.
func (d Dna) Clone() Dna {
	c := Make(d.Len())
	c.Copy(d)
	return c
}

// Reverse returns an owned copy in reverse order (not complemented).
func (d Dna) Reverse() Dna {
	length := d.Len()
	r := Make(length)
	for i := 0; i < length; i++ {
		r.Set(i, d.At(length-1-i))
	}
	return r
}

// String returns the nucleotide letters.
func (d Dna) String() string {
	length := d.Len()
	b := make([]byte, length)
	for i := 0; i < length; i++ {
		b[i] = Base(d.At(i))
	}
	return string(b)
}
