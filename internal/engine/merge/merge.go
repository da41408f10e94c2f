// Package merge applies authoritative state snapshots idempotently despite
// network reordering and duplication.
//
// The merger owns the previous/current rendered-state pair used to animate
// generation transitions, and decides whether an incoming snapshot is the
// next generation, a stale retransmit, or an unreconcilable resync.
package merge

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/boardframe/internal/engine/board"
	"github.com/louisbranch/boardframe/internal/engine/game"
	"github.com/louisbranch/boardframe/internal/engine/sequence"
	"github.com/louisbranch/boardframe/internal/errors"
)

// VisualRecord is one element's rendered appearance within a generation.
type VisualRecord struct {
	PositionKey string
	Style       map[string]string
	Attributes  map[string]any
	MovedTo     board.ElementID
}

// Rendered is one generation's rendered state.
type Rendered struct {
	Sequence sequence.Number
	Elements map[board.ElementID]VisualRecord
}

func invalidRendered() Rendered {
	return Rendered{Sequence: sequence.Invalid}
}

func freshRendered(seq int) Rendered {
	return Rendered{
		Sequence: sequence.FromInt(seq),
		Elements: make(map[board.ElementID]VisualRecord),
	}
}

// Update is one authoritative snapshot as handed to the merger.
type Update struct {
	Sequence      int
	Finished      bool
	Players       []game.Player
	BoardJSON     json.RawMessage
	FlowPosition  json.RawMessage
	ActivePlayers []int
	Winners       []int
	Settings      map[string]any
	// ReadOnly marks snapshots that must not trigger pending-move
	// recomputation, such as historical views.
	ReadOnly bool
}

// Transition classifies how a snapshot related to the rendered pair.
type Transition string

const (
	// TransitionNext means a new real generation: the current rendered
	// snapshot was demoted to previous and a fresh current begun.
	TransitionNext Transition = "next"
	// TransitionReapply means a same-generation overwrite: both rendered
	// buffers were reused unmodified.
	TransitionReapply Transition = "reapply"
	// TransitionResync means the previous generation was unreconcilable
	// and both buffers were reset. Occurs after a disconnect or at session
	// start.
	TransitionResync Transition = "resync"
)

// Outcome reports what a merge did.
type Outcome struct {
	Transition Transition
	// Recompute is true when pending moves must be re-resolved for active
	// players: the update was non-read-only and the game continues.
	Recompute bool
}

// Merger accepts authoritative snapshots and reconciles them with local
// speculative state.
type Merger struct {
	Game     *game.Game
	Current  Rendered
	Previous Rendered

	// CancelSpeculation is invoked on every merge: authoritative
	// information always preempts a pending auto-submit.
	CancelSpeculation func()
}

// New creates a merger for a fresh session.
func New(g *game.Game) *Merger {
	return &Merger{
		Game:     g,
		Current:  invalidRendered(),
		Previous: invalidRendered(),
	}
}

// Merge applies one authoritative snapshot. The game model and rendered
// buffers are either fully updated or left untouched on error.
func (m *Merger) Merge(u Update) (Outcome, error) {
	if u.Sequence < 0 {
		return Outcome{}, errors.New(errors.CodeSnapshotInvalid,
			fmt.Sprintf("negative sequence %d", u.Sequence))
	}

	var b *board.Board
	if len(u.BoardJSON) > 0 {
		parsed, err := board.FromJSON(u.BoardJSON)
		if err != nil {
			return Outcome{}, errors.Wrap(errors.CodeBoardInvalid, "parse board snapshot", err)
		}
		b = parsed
	}

	if m.CancelSpeculation != nil {
		m.CancelSpeculation()
	}

	outcome := m.applyBuffers(u.Sequence)
	m.applySnapshot(u, b)

	outcome.Recompute = !u.ReadOnly && !m.Game.Finished()
	return outcome, nil
}

func (m *Merger) applyBuffers(seq int) Outcome {
	switch {
	case m.Current.Sequence.Valid() && seq == m.Current.Sequence.Int()+1:
		// Next real generation: demote current, start a fresh buffer to be
		// populated by re-render. A demoted speculative buffer is
		// normalized to its authoritative floor.
		m.Previous = m.Current
		m.Previous.Sequence = m.Previous.Sequence.Floor()
		m.Current = freshRendered(seq)
		return Outcome{Transition: TransitionNext}
	case m.Current.Sequence.Valid() && seq == m.Current.Sequence.Int():
		// Same integer generation: a retransmit, or the real counterpart
		// overwriting a speculative half-generation. Idempotent re-apply;
		// both buffers are reused.
		m.Current.Sequence = sequence.FromInt(seq)
		return Outcome{Transition: TransitionReapply}
	default:
		m.Previous = invalidRendered()
		m.Current = freshRendered(seq)
		return Outcome{Transition: TransitionResync}
	}
}

func (m *Merger) applySnapshot(u Update, b *board.Board) {
	g := m.Game
	g.Sequence = sequence.FromInt(u.Sequence)

	if g.Phase == game.PhaseNew {
		// One-time bootstrap against the first snapshot.
		g.Phase = game.PhaseStarted
		g.Settings = u.Settings
	} else if u.Settings != nil {
		g.Settings = u.Settings
	}

	// Full replace, not merge.
	g.Players = u.Players
	if b != nil {
		g.Board = b
	}
	g.FlowPosition = u.FlowPosition
	g.ActivePlayers = u.ActivePlayers

	if u.Finished {
		g.Phase = game.PhaseFinished
		g.ActivePlayers = nil
		g.Winners = u.Winners
	}
}

// Render populates the current rendered buffer. Rendering itself is the
// UI's concern; the merger only owns the buffers.
func (m *Merger) Render(elements map[board.ElementID]VisualRecord) {
	m.Current.Elements = elements
}
