// Package resolver turns authoritative state plus a player's partial move
// into the set of legal next selections.
//
// Resolution is recursive: forced and policy-skipped selections are filled
// automatically and the rules oracle is re-queried until user input is
// genuinely required, the move completes, or placement mode is entered.
package resolver

import (
	"fmt"

	"github.com/louisbranch/boardframe/internal/engine/board"
	"github.com/louisbranch/boardframe/internal/engine/move"
	"github.com/louisbranch/boardframe/internal/errors"
)

// Result is the oracle's answer for one pending-move query.
type Result struct {
	Moves  []move.Move
	Step   string
	Prompt string
}

// Oracle is the rules engine consumed as an opaque legality oracle.
type Oracle interface {
	// PendingMoves enumerates legal moves consistent with a partial move.
	// Empty name and nil args mean "all moves for this player".
	PendingMoves(position int, name string, args move.Args) (Result, error)
	// ApplyMove executes a completed move against oracle state.
	ApplyMove(position int, name string, args move.Args) error
}

// StateIngestor is implemented by oracles that mirror game state. The
// session feeds every merged snapshot through it so rules state tracks the
// host after remote moves, a rejected optimistic move, or a resync.
type StateIngestor interface {
	SetState(boardJSON []byte, settings map[string]any) error
}

// PlacementIntent signals that resolution reached a sole place-type
// selection and the session should enter placement mode.
type PlacementIntent struct {
	Move      move.Move
	Selection move.Selection
	Piece     board.ElementID
	Container board.ElementID
}

// Resolution is the full outcome of one resolve pass.
type Resolution struct {
	// Completed is set when a move is ready for the submission protocol.
	Completed *move.Move
	// AutoSubmit distinguishes "the system determined there was only one
	// possible outcome" from "the player finished".
	AutoSubmit bool

	Pending []move.Move
	Step    string
	Prompt  string
	Board   BoardIndex

	EnterPlacement *PlacementIntent

	// DiscardedStale records that the partial move was no longer legal and
	// selection restarted. Never surfaced to the user as a failure.
	DiscardedStale bool
}

// Resolver computes pending moves against an oracle and a board.
type Resolver struct {
	Oracle Oracle
	// Board is used to validate placement layout; nil skips that check.
	Board *board.Board
}

// pieceArgName is the conventional argument holding the piece a place-type
// selection positions.
const pieceArgName = "piece"

// maxSkipDepth bounds the skip reduction loop against an oracle that keeps
// returning an unfilled selection.
const maxSkipDepth = 16

// Resolve queries the oracle for moves consistent with partial and reduces
// the candidates by the skip rules.
func (r *Resolver) Resolve(position int, partial *move.Move) (Resolution, error) {
	name := ""
	var args move.Args
	if partial != nil {
		name = partial.Name
		args = partial.Args
	}

	result, err := r.Oracle.PendingMoves(position, name, args)
	stale := false
	if partial != nil && (err != nil || len(result.Moves) == 0) {
		// The move being built is no longer legal; restart selection.
		stale = true
		partial = nil
		result, err = r.Oracle.PendingMoves(position, "", nil)
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("pending moves: %w", err)
	}

	res := Resolution{
		Step:           result.Step,
		Prompt:         result.Prompt,
		DiscardedStale: stale,
	}

	// A partial move with zero outstanding selections was finished by the
	// player and is submittable on demand.
	if partial != nil {
		for _, candidate := range result.Moves {
			if candidate.Name == partial.Name && candidate.Complete() {
				completed := candidate
				// Submit mode was fixed by the move's shape when the player
				// started it, not by the completed remainder.
				completed.RequireExplicitSubmit = partial.RequireExplicitSubmit
				res.Completed = &completed
				return res, nil
			}
		}
	}

	moves := result.Moves
	for depth := 0; len(moves) == 1 && len(moves[0].Selections) == 1; depth++ {
		if depth >= maxSkipDepth {
			return Resolution{}, errors.New(errors.CodeSelectionInvalid,
				fmt.Sprintf("skip reduction did not converge for move %q", moves[0].Name))
		}
		candidate := moves[0]
		sel := candidate.Selections[0]

		if sel.Type == move.SelectionPlace {
			intent, err := r.placementIntent(candidate, sel)
			if err != nil {
				return Resolution{}, err
			}
			res.EnterPlacement = &intent
			res.Pending = annotate(moves)
			res.Board = Index(res.Pending)
			return res, nil
		}

		fill, skip := skipValue(sel)
		if !skip {
			break
		}

		if sel.RequiresConfirmation() && sel.Type != move.SelectionConfirm {
			// Never skip past a user-facing confirmation: convert the
			// forced selection into a synthetic confirmation prompt.
			confirm := move.Selection{
				Name:    sel.Name,
				Type:    move.SelectionConfirm,
				Prompt:  sel.Confirm,
				Choices: []move.Choice{{Value: fill, Label: sel.Confirm}},
			}
			candidate.Selections = []move.Selection{confirm}
			moves = []move.Move{candidate}
			break
		}

		filled := candidate.WithArg(sel.Name, fill)
		requery, err := r.Oracle.PendingMoves(position, filled.Name, filled.Args)
		if err != nil || len(requery.Moves) == 0 {
			// Racing state change underneath the auto-fill; restart.
			res.DiscardedStale = true
			requery, err = r.Oracle.PendingMoves(position, "", nil)
			if err != nil {
				return Resolution{}, fmt.Errorf("pending moves after stale auto-fill: %w", err)
			}
			res.Step = requery.Step
			res.Prompt = requery.Prompt
			moves = requery.Moves
			continue
		}
		res.Step = requery.Step
		res.Prompt = requery.Prompt

		if len(requery.Moves) == 1 && requery.Moves[0].Complete() {
			completed := requery.Moves[0]
			res.Completed = &completed
			res.AutoSubmit = true
			return res, nil
		}
		moves = requery.Moves
	}

	res.Pending = annotate(moves)
	res.Board = Index(res.Pending)
	return res, nil
}

func (r *Resolver) placementIntent(candidate move.Move, sel move.Selection) (PlacementIntent, error) {
	// The piece argument is an element reference when the player picked it
	// on the board and a plain string when the oracle pre-committed it.
	var pieceID board.ElementID
	switch v := candidate.Args[pieceArgName].(type) {
	case board.ElementID:
		pieceID = v
	case string:
		pieceID = board.ElementID(v)
	}
	if pieceID == "" {
		return PlacementIntent{}, errors.New(errors.CodeSelectionInvalid,
			fmt.Sprintf("place selection %q has no committed piece argument", sel.Name))
	}
	if sel.PlaceInto == "" {
		return PlacementIntent{}, errors.New(errors.CodePlacementLayout,
			fmt.Sprintf("place selection %q has no target container", sel.Name))
	}
	if r.Board != nil {
		container, ok := r.Board.Lookup(sel.PlaceInto)
		if !ok || !container.HasGrid() {
			return PlacementIntent{}, errors.New(errors.CodePlacementLayout,
				fmt.Sprintf("container %q has no computed layout", sel.PlaceInto))
		}
	}
	return PlacementIntent{
		Move:      candidate,
		Selection: sel,
		Piece:     pieceID,
		Container: sel.PlaceInto,
	}, nil
}

// skipValue evaluates the two skip rules plus forcing for one selection,
// returning the value to auto-fill. The rules are deliberately independent:
// SkipAlways ignores the selection count, SkipOnlyOne requires this to be
// the sole remaining selection, which it is at every call site in the
// reduction loop.
func skipValue(sel move.Selection) (any, bool) {
	if value, forced := sel.Forced(); forced {
		return value, true
	}
	if sel.Skip != move.SkipAlways && sel.Skip != move.SkipOnlyOne {
		return nil, false
	}
	// A policy skip still needs a determinate value.
	switch sel.Type {
	case move.SelectionButton, move.SelectionConfirm:
		return true, true
	case move.SelectionChoice:
		if len(sel.Choices) == 1 {
			return sel.Choices[0].Value, true
		}
	case move.SelectionBoard:
		if len(sel.BoardCandidates) == 1 {
			return string(sel.BoardCandidates[0]), true
		}
	}
	return nil, false
}

func annotate(moves []move.Move) []move.Move {
	out := make([]move.Move, len(moves))
	for i, m := range moves {
		out[i] = move.AnnotateExplicitSubmit(m)
	}
	return out
}
