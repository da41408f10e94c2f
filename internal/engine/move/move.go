// Package move defines the pending-move and selection vocabulary shared by
// the resolver, the board index, and the submission protocol.
//
// A pending move is a move the rules oracle currently considers legal,
// possibly with unresolved selections. Selections are a closed tagged
// variant; every consumer switches exhaustively on Type.
package move

import (
	"github.com/louisbranch/boardframe/internal/engine/board"
)

// Args maps argument names to committed values. A missing key means the
// argument is still unset.
type Args map[string]any

// Clone returns a shallow copy safe for independent mutation of the map.
func (a Args) Clone() Args {
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// SelectionType tags the kind of input a selection requires.
type SelectionType string

const (
	SelectionBoard   SelectionType = "board"
	SelectionChoice  SelectionType = "choice"
	SelectionButton  SelectionType = "button"
	SelectionText    SelectionType = "text"
	SelectionNumber  SelectionType = "number"
	SelectionMulti   SelectionType = "multi"
	SelectionPlace   SelectionType = "place"
	SelectionConfirm SelectionType = "confirm"
)

// SkipPolicy controls when a selection resolves without user interaction.
//
// SkipAlways and SkipOnlyOne are two independent rules with different
// guards: SkipAlways applies whenever the selection is reached, SkipOnlyOne
// applies only when the selection is the sole remaining one.
type SkipPolicy string

const (
	SkipNever   SkipPolicy = "never"
	SkipAlways  SkipPolicy = "always"
	SkipOnlyOne SkipPolicy = "only-one"
)

// Choice is one allowed value of a choice selection.
type Choice struct {
	Value any
	Label string
}

// DragSpec describes a drag endpoint for a board selection: either a fixed
// element or a dynamic selection already resolved against committed
// arguments.
type DragSpec struct {
	Element   board.ElementID
	Selection *Selection
}

// Selection describes one required input to a move.
type Selection struct {
	Name    string
	Type    SelectionType
	Prompt  string
	Confirm string
	Skip    SkipPolicy

	// Min and Max bound multi selections; zero means unbounded.
	Min int
	Max int

	// Choices is the allowed value set for choice selections.
	Choices []Choice
	// BoardCandidates lists legal elements for board and place selections.
	BoardCandidates []board.ElementID
	// PlaceInto names the target container for place selections.
	PlaceInto board.ElementID

	// DragInto and DragFrom declare drag affordances for board selections.
	DragInto *DragSpec
	DragFrom *DragSpec

	// Validate rejects a candidate value; nil accepts everything the
	// candidate sets allow.
	Validate func(value any) bool
}

// RequiresConfirmation reports whether the selection carries an explicit
// confirmation requirement that must never be silently skipped.
func (s Selection) RequiresConfirmation() bool {
	return s.Confirm != "" || s.Type == SelectionConfirm
}

// MultiValued reports whether the selection accepts more than one value.
func (s Selection) MultiValued() bool {
	return s.Type == SelectionMulti || s.Max > 1
}

// Forced returns the single satisfying value when the selection's legal
// value set collapses to exactly one member.
func (s Selection) Forced() (any, bool) {
	if s.MultiValued() {
		return nil, false
	}
	switch s.Type {
	case SelectionBoard:
		if len(s.BoardCandidates) == 1 && s.allows(string(s.BoardCandidates[0])) {
			return string(s.BoardCandidates[0]), true
		}
	case SelectionChoice:
		if len(s.Choices) == 1 && s.allows(s.Choices[0].Value) {
			return s.Choices[0].Value, true
		}
	case SelectionButton:
		// A button carries exactly one value: its own activation.
		if s.allows(true) {
			return true, true
		}
	}
	return nil, false
}

func (s Selection) allows(value any) bool {
	return s.Validate == nil || s.Validate(value)
}

// Move is a pending move owned by the resolver and read-only to the UI.
type Move struct {
	Name       string
	Args       Args
	Selections []Selection

	// RequireExplicitSubmit is true unless the move can act on first valid
	// input: exactly one selection of a directly actionable type, no
	// confirmation, not multi-valued.
	RequireExplicitSubmit bool
}

// Complete reports whether no selections remain outstanding.
func (m Move) Complete() bool {
	return len(m.Selections) == 0
}

// WithArg returns a copy of the move with one more committed argument.
func (m Move) WithArg(name string, value any) Move {
	args := m.Args.Clone()
	args[name] = value
	m.Args = args
	return m
}

// directlyActionable lists selection types the UI may act on at first input.
func directlyActionable(t SelectionType) bool {
	switch t {
	case SelectionBoard, SelectionChoice, SelectionButton:
		return true
	default:
		return false
	}
}

// AnnotateExplicitSubmit computes RequireExplicitSubmit for a move.
func AnnotateExplicitSubmit(m Move) Move {
	m.RequireExplicitSubmit = true
	if len(m.Selections) != 1 {
		return m
	}
	sel := m.Selections[0]
	if directlyActionable(sel.Type) && !sel.RequiresConfirmation() && !sel.MultiValued() {
		m.RequireExplicitSubmit = false
	}
	return m
}
