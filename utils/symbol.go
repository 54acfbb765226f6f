package utils

import (
	"github.com/exascience/pargo/sync"

	"github.com/exascience/vdjinfer/internal"
)

type geneName string

func (n geneName) Hash() uint64 {
	return internal.StringHash(string(n))
}

// A Symbol is a unique pointer to a gene segment name, such as
// "TRBV5-1*01". Events and models that refer to the same gene share
// one Symbol, so names can be compared by pointer.
type Symbol *string

var geneNames = sync.NewMap(0)

/*
Intern returns the Symbol for the given gene name.

Equal names yield the same pointer and different names yield different
pointers, and *Intern(name) == name always holds.

It is safe for multiple goroutines to call Intern concurrently, for
example when gene lists are loaded in parallel.
*/
func Intern(name string) Symbol {
	entry, _ := geneNames.LoadOrStore(geneName(name), Symbol(&name))
	return entry.(Symbol)
}

// SymbolString returns the name of s, or fallback if s is nil.
func SymbolString(s Symbol, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
