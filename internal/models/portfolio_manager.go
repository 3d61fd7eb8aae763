package models

import (
	"sync"
)

// SymbolLocks serializes read-modify-write sequences on one symbol.
// Uses per-symbol locks instead of a global lock; the ledger transaction
// takes care of the shared cash row.
type SymbolLocks struct {
	locks   map[string]*sync.Mutex // Map of symbol → mutex
	mapLock sync.Mutex             // Protects the map itself
}

// NewSymbolLocks creates an empty lock set
func NewSymbolLocks() *SymbolLocks {
	return &SymbolLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock locks one symbol and returns the matching unlock func
func (sl *SymbolLocks) Lock(symbol string) func() {
	sl.mapLock.Lock()
	m := sl.locks[symbol]
	if m == nil {
		m = &sync.Mutex{}
		sl.locks[symbol] = m
	}
	sl.mapLock.Unlock()

	m.Lock()
	return m.Unlock
}
