// Package game holds the authoritative game model mirrored from host
// snapshots. Objects here are replaced wholesale on each accepted snapshot,
// never incrementally patched.
package game

import (
	"encoding/json"

	"github.com/louisbranch/boardframe/internal/engine/board"
	"github.com/louisbranch/boardframe/internal/engine/sequence"
)

// Phase tracks the coarse lifecycle of a game.
type Phase string

const (
	PhaseNew      Phase = "new"
	PhaseStarted  Phase = "started"
	PhaseFinished Phase = "finished"
)

// Player is one seat at the table. Position is immutable per session once
// set.
type Player struct {
	Position int    `json:"position"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
}

// Game is the engine's mirror of authoritative host state.
type Game struct {
	Sequence      sequence.Number
	Phase         Phase
	Players       []Player
	Board         *board.Board
	FlowPosition  json.RawMessage
	ActivePlayers []int
	Winners       []int
	Settings      map[string]any
}

// New returns a game awaiting its bootstrap snapshot.
func New() *Game {
	return &Game{Sequence: sequence.Invalid, Phase: PhaseNew}
}

// Active reports whether the player at position may currently act.
func (g *Game) Active(position int) bool {
	for _, p := range g.ActivePlayers {
		if p == position {
			return true
		}
	}
	return false
}

// Finished reports whether the game has concluded.
func (g *Game) Finished() bool {
	return g.Phase == PhaseFinished
}
