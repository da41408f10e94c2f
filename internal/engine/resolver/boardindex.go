package resolver

import (
	"github.com/louisbranch/boardframe/internal/engine/board"
	"github.com/louisbranch/boardframe/internal/engine/move"
)

// DragMove pairs a pending move with the resolved endpoint selections of a
// drag gesture. Source is committed with the dragged element, Target with
// the drop destination. A Target without a name is a fixed element: the
// destination is already implied by the move and the drop only confirms.
type DragMove struct {
	Move   move.Move
	Source move.Selection
	Target move.Selection
}

// ElementAffordances lists what can be done to one board element.
type ElementAffordances struct {
	Click []move.Move
	Drag  []DragMove
}

// BoardIndex projects candidate moves onto concrete board elements. It is
// derived state: recomputed wholesale whenever candidate moves change,
// never patched.
type BoardIndex map[board.ElementID]ElementAffordances

// Index builds the board selection index for the current candidate set.
func Index(moves []move.Move) BoardIndex {
	idx := make(BoardIndex)
	for _, m := range moves {
		for _, sel := range m.Selections {
			if sel.Type != move.SelectionBoard {
				continue
			}
			single := singleSelectionForm(m, sel)
			for _, el := range sel.BoardCandidates {
				aff := idx[el]
				aff.Click = append(aff.Click, single)
				idx[el] = aff
			}
			if sel.DragInto != nil {
				target := resolveDragEndpoint(*sel.DragInto)
				for _, el := range sel.BoardCandidates {
					aff := idx[el]
					aff.Drag = append(aff.Drag, DragMove{Move: single, Source: sel, Target: target})
					idx[el] = aff
				}
			}
			if sel.DragFrom != nil {
				source := resolveDragEndpoint(*sel.DragFrom)
				for _, src := range source.BoardCandidates {
					aff := idx[src]
					aff.Drag = append(aff.Drag, DragMove{Move: single, Source: source, Target: sel})
					idx[src] = aff
				}
			}
		}
	}
	return idx
}

// singleSelectionForm reduces a move to just the selection an affordance
// points back to.
func singleSelectionForm(m move.Move, sel move.Selection) move.Move {
	reduced := m
	reduced.Selections = []move.Selection{sel}
	return move.AnnotateExplicitSubmit(reduced)
}

// resolveDragEndpoint converts a drag endpoint into a selection: a fixed
// element becomes a nameless single-target confirmation selection, a dynamic
// selection is used as already resolved against committed arguments.
func resolveDragEndpoint(spec move.DragSpec) move.Selection {
	if spec.Selection != nil {
		return *spec.Selection
	}
	if spec.Element == "" {
		return move.Selection{Type: move.SelectionBoard}
	}
	return move.Selection{
		Type:            move.SelectionBoard,
		BoardCandidates: []board.ElementID{spec.Element},
	}
}
