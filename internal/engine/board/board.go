// Package board provides the element tree consumed by the session engine.
//
// The host serializes full board state as JSON; the engine deserializes it
// into a tree of elements addressed by identity or branch path. Containers
// carry a row/column grid used to lay out free placement.
package board

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ElementID identifies one board element within a session.
type ElementID string

// Element is one node of the board tree.
type Element struct {
	ID         ElementID
	Kind       string
	Row        int
	Column     int
	Rows       int
	Columns    int
	Attributes map[string]any

	parent   *Element
	children []*Element
}

// Parent returns the containing element, or nil for the root.
func (e *Element) Parent() *Element {
	return e.parent
}

// Children returns the contained elements in container order.
func (e *Element) Children() []*Element {
	return e.children
}

// HasGrid reports whether the element declares a placement grid.
func (e *Element) HasGrid() bool {
	return e.Rows > 0 && e.Columns > 0
}

// Position records where a piece sits, precisely enough to put it back.
type Position struct {
	Container ElementID
	Index     int
	Row       int
	Column    int
}

// Board is an element tree with an identity index.
type Board struct {
	root *Element
	byID map[ElementID]*Element
}

// New builds a board around a root element and indexes the whole tree.
func New(root *Element) (*Board, error) {
	if root == nil {
		return nil, fmt.Errorf("board root is required")
	}
	b := &Board{root: root, byID: make(map[ElementID]*Element)}
	if err := b.index(root); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Board) index(el *Element) error {
	if el.ID == "" {
		return fmt.Errorf("board element without id under %q", parentID(el))
	}
	if _, exists := b.byID[el.ID]; exists {
		return fmt.Errorf("duplicate board element id %q", el.ID)
	}
	b.byID[el.ID] = el
	for _, child := range el.children {
		child.parent = el
		if err := b.index(child); err != nil {
			return err
		}
	}
	return nil
}

func parentID(el *Element) ElementID {
	if el == nil || el.parent == nil {
		return "(root)"
	}
	return el.parent.ID
}

// Root returns the root element.
func (b *Board) Root() *Element {
	return b.root
}

// Lookup finds an element by identity.
func (b *Board) Lookup(id ElementID) (*Element, bool) {
	el, ok := b.byID[id]
	return el, ok
}

// Branch returns the child-index path from the root to the element, in the
// "0/2/1" form used by host messages.
func (b *Board) Branch(el *Element) string {
	if el == nil || el.parent == nil {
		return ""
	}
	var parts []string
	for el.parent != nil {
		idx := indexIn(el.parent.children, el)
		parts = append([]string{strconv.Itoa(idx)}, parts...)
		el = el.parent
	}
	return strings.Join(parts, "/")
}

// AtBranch resolves a "0/2/1" branch path against the tree.
func (b *Board) AtBranch(branch string) (*Element, error) {
	el := b.root
	if branch == "" {
		return el, nil
	}
	for _, part := range strings.Split(branch, "/") {
		idx, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("branch segment %q: %w", part, err)
		}
		if idx < 0 || idx >= len(el.children) {
			return nil, fmt.Errorf("branch %q leaves the tree at %q", branch, el.ID)
		}
		el = el.children[idx]
	}
	return el, nil
}

func indexIn(children []*Element, el *Element) int {
	for i, child := range children {
		if child == el {
			return i
		}
	}
	return -1
}

// PositionOf captures the exact current position of a piece.
func (b *Board) PositionOf(piece ElementID) (Position, error) {
	el, ok := b.byID[piece]
	if !ok {
		return Position{}, fmt.Errorf("board element %q not found", piece)
	}
	if el.parent == nil {
		return Position{}, fmt.Errorf("board element %q has no container", piece)
	}
	return Position{
		Container: el.parent.ID,
		Index:     indexIn(el.parent.children, el),
		Row:       el.Row,
		Column:    el.Column,
	}, nil
}

// MovePiece detaches a piece from its container and inserts it into the
// target container at the given index with the given grid coordinates.
func (b *Board) MovePiece(piece, container ElementID, index, row, column int) error {
	el, ok := b.byID[piece]
	if !ok {
		return fmt.Errorf("board element %q not found", piece)
	}
	target, ok := b.byID[container]
	if !ok {
		return fmt.Errorf("board container %q not found", container)
	}
	if el.parent != nil {
		el.parent.children = removeAt(el.parent.children, indexIn(el.parent.children, el))
	}
	if index < 0 || index > len(target.children) {
		index = len(target.children)
	}
	target.children = insertAt(target.children, index, el)
	el.parent = target
	el.Row = row
	el.Column = column
	return nil
}

// Restore moves a piece back to a previously captured position. Ordering
// within the original container is preserved exactly.
func (b *Board) Restore(piece ElementID, pos Position) error {
	return b.MovePiece(piece, pos.Container, pos.Index, pos.Row, pos.Column)
}

func removeAt(children []*Element, idx int) []*Element {
	if idx < 0 || idx >= len(children) {
		return children
	}
	return append(children[:idx:idx], children[idx+1:]...)
}

func insertAt(children []*Element, idx int, el *Element) []*Element {
	children = append(children, nil)
	copy(children[idx+1:], children[idx:])
	children[idx] = el
	return children
}

// Slot is one grid cell assignment computed for a container child.
type Slot struct {
	Element ElementID
	Row     int
	Column  int
}

// Layout assigns grid cells to a container's children in container order.
// Children carrying explicit coordinates keep them; the rest fill remaining
// cells row-major.
func (b *Board) Layout(container ElementID) ([]Slot, error) {
	el, ok := b.byID[container]
	if !ok {
		return nil, fmt.Errorf("board container %q not found", container)
	}
	if !el.HasGrid() {
		return nil, fmt.Errorf("board container %q has no grid", container)
	}
	taken := make(map[[2]int]bool)
	for _, child := range el.children {
		if child.Row > 0 || child.Column > 0 {
			taken[[2]int{child.Row, child.Column}] = true
		}
	}
	slots := make([]Slot, 0, len(el.children))
	row, col := 1, 1
	advance := func() {
		col++
		if col > el.Columns {
			col = 1
			row++
		}
	}
	for _, child := range el.children {
		if child.Row > 0 || child.Column > 0 {
			slots = append(slots, Slot{Element: child.ID, Row: child.Row, Column: child.Column})
			continue
		}
		for taken[[2]int{row, col}] && row <= el.Rows {
			advance()
		}
		if row > el.Rows {
			return nil, fmt.Errorf("container %q grid has no free cell for %q", container, child.ID)
		}
		slots = append(slots, Slot{Element: child.ID, Row: row, Column: col})
		taken[[2]int{row, col}] = true
		advance()
	}
	return slots, nil
}

// node is the JSON shape exchanged with the host for board state.
type node struct {
	ID         ElementID      `json:"id"`
	Kind       string         `json:"kind,omitempty"`
	Row        int            `json:"row,omitempty"`
	Column     int            `json:"column,omitempty"`
	Rows       int            `json:"rows,omitempty"`
	Columns    int            `json:"columns,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Children   []node         `json:"children,omitempty"`
}

// FromJSON deserializes a full board snapshot.
func FromJSON(data []byte) (*Board, error) {
	var root node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("unmarshal board: %w", err)
	}
	return New(fromNode(root))
}

func fromNode(n node) *Element {
	el := &Element{
		ID:         n.ID,
		Kind:       n.Kind,
		Row:        n.Row,
		Column:     n.Column,
		Rows:       n.Rows,
		Columns:    n.Columns,
		Attributes: n.Attributes,
	}
	for _, child := range n.Children {
		el.children = append(el.children, fromNode(child))
	}
	return el
}

// ToJSON serializes the full board state.
func (b *Board) ToJSON() ([]byte, error) {
	data, err := json.Marshal(toNode(b.root))
	if err != nil {
		return nil, fmt.Errorf("marshal board: %w", err)
	}
	return data, nil
}

func toNode(el *Element) node {
	n := node{
		ID:         el.ID,
		Kind:       el.Kind,
		Row:        el.Row,
		Column:     el.Column,
		Rows:       el.Rows,
		Columns:    el.Columns,
		Attributes: el.Attributes,
	}
	for _, child := range el.children {
		n.Children = append(n.Children, toNode(child))
	}
	return n
}

// AddChild appends a child element, wiring its parent pointer. Intended for
// test fixtures and bootstrap code that builds trees programmatically.
func (e *Element) AddChild(child *Element) *Element {
	child.parent = e
	e.children = append(e.children, child)
	return e
}
