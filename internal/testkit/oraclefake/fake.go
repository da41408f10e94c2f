// Package oraclefake provides a scripted rules oracle for engine tests.
package oraclefake

import (
	"fmt"

	"github.com/louisbranch/boardframe/internal/engine/move"
	"github.com/louisbranch/boardframe/internal/engine/resolver"
)

// Query records one PendingMoves call.
type Query struct {
	Position int
	Name     string
	Args     move.Args
}

// Applied records one ApplyMove call.
type Applied struct {
	Position int
	Name     string
	Args     move.Args
}

// Ingested records one SetState call.
type Ingested struct {
	BoardJSON []byte
	Settings  map[string]any
}

// Fake is a scripted oracle. PendingFunc, ApplyFunc and SetStateFunc drive
// behavior; every call is recorded for assertions.
type Fake struct {
	PendingFunc  func(position int, name string, args move.Args) (resolver.Result, error)
	ApplyFunc    func(position int, name string, args move.Args) error
	SetStateFunc func(boardJSON []byte, settings map[string]any) error

	Queries []Query
	Applies []Applied
	States  []Ingested
}

var (
	_ resolver.Oracle        = (*Fake)(nil)
	_ resolver.StateIngestor = (*Fake)(nil)
)

// PendingMoves implements resolver.Oracle.
func (f *Fake) PendingMoves(position int, name string, args move.Args) (resolver.Result, error) {
	f.Queries = append(f.Queries, Query{Position: position, Name: name, Args: args})
	if f.PendingFunc == nil {
		return resolver.Result{}, fmt.Errorf("oraclefake: no PendingFunc scripted")
	}
	return f.PendingFunc(position, name, args)
}

// ApplyMove implements resolver.Oracle.
func (f *Fake) ApplyMove(position int, name string, args move.Args) error {
	f.Applies = append(f.Applies, Applied{Position: position, Name: name, Args: args})
	if f.ApplyFunc == nil {
		return nil
	}
	return f.ApplyFunc(position, name, args)
}

// SetState implements resolver.StateIngestor.
func (f *Fake) SetState(boardJSON []byte, settings map[string]any) error {
	f.States = append(f.States, Ingested{BoardJSON: boardJSON, Settings: settings})
	if f.SetStateFunc == nil {
		return nil
	}
	return f.SetStateFunc(boardJSON, settings)
}
