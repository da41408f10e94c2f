// Package placement supports drag-free, stepwise placement of a piece into
// a coordinate-addressed container.
//
// A placement record exists only while placement is being interactively
// adjusted. Committing folds the final coordinates into the move's
// arguments; cancelling restores the piece to its exact original container,
// index, row and column.
package placement

import (
	"fmt"

	"github.com/louisbranch/boardframe/internal/engine/board"
	"github.com/louisbranch/boardframe/internal/engine/move"
	"github.com/louisbranch/boardframe/internal/errors"
)

// Record is the transient state of one in-progress placement.
type Record struct {
	Move      move.Move
	Selection move.Selection
	Piece     board.ElementID
	Container board.ElementID

	original board.Position
	layout   []board.Slot
	done     bool
}

// Begin captures the piece's original position, moves it into the target
// container and computes the container layout.
func Begin(b *board.Board, m move.Move, sel move.Selection, piece, container board.ElementID) (*Record, error) {
	target, ok := b.Lookup(container)
	if !ok || !target.HasGrid() {
		return nil, errors.New(errors.CodePlacementLayout,
			fmt.Sprintf("container %q has no computed layout", container))
	}
	original, err := b.PositionOf(piece)
	if err != nil {
		return nil, fmt.Errorf("capture original position: %w", err)
	}
	if err := b.MovePiece(piece, container, len(target.Children()), 0, 0); err != nil {
		return nil, fmt.Errorf("move piece into container: %w", err)
	}
	layout, err := b.Layout(container)
	if err != nil {
		return nil, errors.Wrap(errors.CodePlacementLayout, "compute layout", err)
	}
	return &Record{
		Move:      m,
		Selection: sel,
		Piece:     piece,
		Container: container,
		original:  original,
		layout:    layout,
	}, nil
}

// Layout returns the most recently computed container layout.
func (r *Record) Layout() []board.Slot {
	return r.layout
}

// Adjust re-applies the container layout for new coordinates without
// re-querying the rules oracle.
func (r *Record) Adjust(b *board.Board, row, column int) error {
	if r.done {
		return fmt.Errorf("placement already finished")
	}
	el, ok := b.Lookup(r.Piece)
	if !ok {
		return fmt.Errorf("placement piece %q not found", r.Piece)
	}
	el.Row = row
	el.Column = column
	layout, err := b.Layout(r.Container)
	if err != nil {
		return errors.Wrap(errors.CodePlacementLayout, "recompute layout", err)
	}
	r.layout = layout
	return nil
}

// Commit finalizes placement, folding the piece's coordinates into the
// move's arguments. The record must not be reused afterwards.
func (r *Record) Commit(b *board.Board) (move.Move, error) {
	if r.done {
		return move.Move{}, fmt.Errorf("placement already finished")
	}
	el, ok := b.Lookup(r.Piece)
	if !ok {
		return move.Move{}, fmt.Errorf("placement piece %q not found", r.Piece)
	}
	r.done = true
	committed := r.Move.
		WithArg(r.Selection.Name, map[string]any{"row": el.Row, "column": el.Column})
	committed.Selections = nil
	return committed, nil
}

// Cancel restores the piece to its recorded original position, bit-exact,
// so container ordering is not perturbed by an abandoned attempt.
func (r *Record) Cancel(b *board.Board) error {
	if r.done {
		return fmt.Errorf("placement already finished")
	}
	r.done = true
	if err := b.Restore(r.Piece, r.original); err != nil {
		return fmt.Errorf("restore original position: %w", err)
	}
	return nil
}
