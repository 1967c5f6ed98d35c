package asset

import (
	"slices"

	"github.com/packfold/packfold/pkg/errors"
)

// Symbol records where an exported (or imported) name binds locally.
type Symbol struct {
	// Local is the binding name inside the defining asset.
	Local string
	// Loc points at the declaration, for diagnostics.
	Loc *errors.Location
	// IsWeak marks re-export bindings that carry no value of their own.
	IsWeak bool
}

// SymbolTable maps export names to their local bindings.
//
// The table is mutated only through its setter operations, and only by the
// static-analysis pass that owns it; afterwards it is read-only. A table can
// be "cleared", meaning analysis bailed out for the owning asset and every
// export must be conservatively retained and read dynamically.
//
// Insertion order is preserved so enumeration is deterministic.
type SymbolTable struct {
	symbols map[string]Symbol
	names   []string
	cleared bool
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{symbols: make(map[string]Symbol)}
}

// Set records a binding for an exported name.
// Setting a name un-clears the table: analysis has produced real entries.
func (t *SymbolTable) Set(exported string, sym Symbol) {
	if _, exists := t.symbols[exported]; !exists {
		t.names = append(t.names, exported)
	}
	t.symbols[exported] = sym
	t.cleared = false
}

// Get returns the binding for an exported name.
func (t *SymbolTable) Get(exported string) (Symbol, bool) {
	sym, ok := t.symbols[exported]
	return sym, ok
}

// Names returns the exported names in insertion order.
// The returned slice is a copy.
func (t *SymbolTable) Names() []string {
	return slices.Clone(t.names)
}

// Len returns the number of entries.
func (t *SymbolTable) Len() int { return len(t.symbols) }

// Clear drops all entries and marks the table as bailed-out.
// A cleared table tells symbol resolution to stop tracing and read bindings
// dynamically off the owning asset.
func (t *SymbolTable) Clear() {
	t.symbols = make(map[string]Symbol)
	t.names = nil
	t.cleared = true
}

// IsCleared reports whether static analysis bailed out for this table.
func (t *SymbolTable) IsCleared() bool { return t.cleared }

// Merge copies entries from other into t. Existing names are overwritten.
// If other is cleared, t becomes cleared too (bailout is contagious).
func (t *SymbolTable) Merge(other *SymbolTable) {
	if other == nil {
		return
	}
	if other.cleared {
		t.Clear()
		return
	}
	for _, name := range other.names {
		t.Set(name, other.symbols[name])
	}
}

// FindLocal returns the first exported name bound to the given local name.
// Used by symbol resolution to detect re-exports: a dependency whose symbols
// bind an imported name to the same local as an asset export marks that
// export as a re-export.
func (t *SymbolTable) FindLocal(local string) (exported string, sym Symbol, ok bool) {
	for _, name := range t.names {
		s := t.symbols[name]
		if s.Local == local {
			return name, s, true
		}
	}
	return "", Symbol{}, false
}
