// Package lua adapts a Lua rules script into the resolver's oracle
// interface.
//
// The script defines two global functions, plus an optional third:
//
//	pending_moves(position, name, args) -> { step, prompt, moves = {...} }
//	apply_move(position, name, args)    -> nil | error string
//	set_state(board_json, settings)     -> nil
//
// set_state receives every merged authoritative snapshot, letting the
// script rebase its own state on host authority. Scripts that derive all
// state from apply_move alone may omit it.
//
// Each move table carries name, args, and selections; each selection table
// carries name, type, prompt, confirm, skip, min, max, choices, board,
// place_into, drag_into and drag_from. The Lua state is owned by the
// session's event loop and must not be shared across goroutines.
package lua

import (
	"fmt"
	"math"
	"os"

	lua "github.com/Shopify/go-lua"

	"github.com/louisbranch/boardframe/internal/engine/board"
	"github.com/louisbranch/boardframe/internal/engine/move"
	"github.com/louisbranch/boardframe/internal/engine/resolver"
)

const (
	pendingMovesFunc = "pending_moves"
	applyMoveFunc    = "apply_move"
	setStateFunc     = "set_state"
)

// Oracle evaluates game rules through an embedded Lua state.
type Oracle struct {
	state *lua.State
}

var (
	_ resolver.Oracle        = (*Oracle)(nil)
	_ resolver.StateIngestor = (*Oracle)(nil)
)

// New loads a rules script from source.
func New(script string) (*Oracle, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)
	if err := lua.DoString(state, script); err != nil {
		return nil, fmt.Errorf("load rules script: %w", err)
	}
	o := &Oracle{state: state}
	if err := o.checkFunction(pendingMovesFunc); err != nil {
		return nil, err
	}
	if err := o.checkFunction(applyMoveFunc); err != nil {
		return nil, err
	}
	return o, nil
}

// NewFromFile loads a rules script from disk.
func NewFromFile(path string) (*Oracle, error) {
	script, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules script: %w", err)
	}
	return New(string(script))
}

func (o *Oracle) checkFunction(name string) error {
	o.state.Global(name)
	defined := o.state.IsFunction(-1)
	o.state.Pop(1)
	if !defined {
		return fmt.Errorf("rules script does not define %s", name)
	}
	return nil
}

// PendingMoves implements resolver.Oracle.
func (o *Oracle) PendingMoves(position int, name string, args move.Args) (resolver.Result, error) {
	state := o.state
	state.Global(pendingMovesFunc)
	state.PushInteger(position)
	state.PushString(name)
	pushGoValue(state, map[string]any(args))
	if err := state.ProtectedCall(3, 1, 0); err != nil {
		return resolver.Result{}, fmt.Errorf("%s: %w", pendingMovesFunc, err)
	}
	defer state.Pop(1)

	if state.TypeOf(-1) != lua.TypeTable {
		return resolver.Result{}, fmt.Errorf("%s must return a table", pendingMovesFunc)
	}
	raw := tableToMap(state, -1)
	return decodeResult(raw)
}

// ApplyMove implements resolver.Oracle.
func (o *Oracle) ApplyMove(position int, name string, args move.Args) error {
	state := o.state
	state.Global(applyMoveFunc)
	state.PushInteger(position)
	state.PushString(name)
	pushGoValue(state, map[string]any(args))
	if err := state.ProtectedCall(3, 1, 0); err != nil {
		return fmt.Errorf("%s: %w", applyMoveFunc, err)
	}
	defer state.Pop(1)

	if state.TypeOf(-1) == lua.TypeString {
		message, _ := state.ToString(-1)
		if message != "" {
			return fmt.Errorf("%s %q: %s", applyMoveFunc, name, message)
		}
	}
	return nil
}

// SetState implements resolver.StateIngestor. Scripts without a set_state
// function keep deriving state from apply_move alone.
func (o *Oracle) SetState(boardJSON []byte, settings map[string]any) error {
	state := o.state
	state.Global(setStateFunc)
	if !state.IsFunction(-1) {
		state.Pop(1)
		return nil
	}
	state.PushString(string(boardJSON))
	pushGoValue(state, settings)
	if err := state.ProtectedCall(2, 0, 0); err != nil {
		return fmt.Errorf("%s: %w", setStateFunc, err)
	}
	return nil
}

func decodeResult(raw map[string]any) (resolver.Result, error) {
	result := resolver.Result{
		Step:   stringField(raw, "step"),
		Prompt: stringField(raw, "prompt"),
	}
	rawMoves, _ := raw["moves"].([]any)
	for _, item := range rawMoves {
		table, ok := item.(map[string]any)
		if !ok {
			return resolver.Result{}, fmt.Errorf("move entry is %T, want table", item)
		}
		decoded, err := decodeMove(table)
		if err != nil {
			return resolver.Result{}, err
		}
		result.Moves = append(result.Moves, decoded)
	}
	return result, nil
}

func decodeMove(raw map[string]any) (move.Move, error) {
	m := move.Move{
		Name: stringField(raw, "name"),
		Args: move.Args{},
	}
	if m.Name == "" {
		return move.Move{}, fmt.Errorf("move has no name")
	}
	if args, ok := raw["args"].(map[string]any); ok {
		for k, v := range args {
			m.Args[k] = v
		}
	}
	rawSelections, _ := raw["selections"].([]any)
	for _, item := range rawSelections {
		table, ok := item.(map[string]any)
		if !ok {
			return move.Move{}, fmt.Errorf("selection entry of move %q is %T, want table", m.Name, item)
		}
		sel, err := decodeSelection(table)
		if err != nil {
			return move.Move{}, fmt.Errorf("move %q: %w", m.Name, err)
		}
		m.Selections = append(m.Selections, sel)
	}
	return m, nil
}

func decodeSelection(raw map[string]any) (move.Selection, error) {
	sel := move.Selection{
		Name:    stringField(raw, "name"),
		Type:    move.SelectionType(stringField(raw, "type")),
		Prompt:  stringField(raw, "prompt"),
		Confirm: stringField(raw, "confirm"),
		Min:     intField(raw, "min"),
		Max:     intField(raw, "max"),
	}
	if sel.Name == "" {
		return move.Selection{}, fmt.Errorf("selection has no name")
	}
	switch sel.Type {
	case move.SelectionBoard, move.SelectionChoice, move.SelectionButton,
		move.SelectionText, move.SelectionNumber, move.SelectionMulti,
		move.SelectionPlace, move.SelectionConfirm:
	default:
		return move.Selection{}, fmt.Errorf("selection %q has unknown type %q", sel.Name, sel.Type)
	}

	switch stringField(raw, "skip") {
	case "", "never":
		sel.Skip = move.SkipNever
	case "always":
		sel.Skip = move.SkipAlways
	case "only-one":
		sel.Skip = move.SkipOnlyOne
	default:
		return move.Selection{}, fmt.Errorf("selection %q has unknown skip policy %q", sel.Name, raw["skip"])
	}

	if choices, ok := raw["choices"].([]any); ok {
		for _, item := range choices {
			table, ok := item.(map[string]any)
			if !ok {
				return move.Selection{}, fmt.Errorf("choice of selection %q is %T, want table", sel.Name, item)
			}
			sel.Choices = append(sel.Choices, move.Choice{
				Value: table["value"],
				Label: stringField(table, "label"),
			})
		}
	}
	if candidates, ok := raw["board"].([]any); ok {
		for _, item := range candidates {
			id, ok := item.(string)
			if !ok {
				return move.Selection{}, fmt.Errorf("board candidate of selection %q is %T, want string", sel.Name, item)
			}
			sel.BoardCandidates = append(sel.BoardCandidates, board.ElementID(id))
		}
	}
	sel.PlaceInto = board.ElementID(stringField(raw, "place_into"))

	var err error
	if sel.DragInto, err = decodeDragSpec(raw, "drag_into"); err != nil {
		return move.Selection{}, fmt.Errorf("selection %q: %w", sel.Name, err)
	}
	if sel.DragFrom, err = decodeDragSpec(raw, "drag_from"); err != nil {
		return move.Selection{}, fmt.Errorf("selection %q: %w", sel.Name, err)
	}
	return sel, nil
}

func decodeDragSpec(raw map[string]any, key string) (*move.DragSpec, error) {
	value, ok := raw[key]
	if !ok || value == nil {
		return nil, nil
	}
	table, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s is %T, want table", key, value)
	}
	spec := &move.DragSpec{Element: board.ElementID(stringField(table, "element"))}
	if nested, ok := table["selection"].(map[string]any); ok {
		sel, err := decodeSelection(nested)
		if err != nil {
			return nil, fmt.Errorf("%s selection: %w", key, err)
		}
		spec.Selection = &sel
	}
	if spec.Element == "" && spec.Selection == nil {
		return nil, fmt.Errorf("%s names neither element nor selection", key)
	}
	return spec, nil
}

func stringField(raw map[string]any, key string) string {
	value, _ := raw[key].(string)
	return value
}

func intField(raw map[string]any, key string) int {
	switch v := raw[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func pushGoValue(state *lua.State, value any) {
	switch v := value.(type) {
	case nil:
		state.PushNil()
	case bool:
		state.PushBoolean(v)
	case string:
		state.PushString(v)
	case int:
		state.PushInteger(v)
	case int64:
		state.PushInteger(int(v))
	case float64:
		state.PushNumber(v)
	case board.ElementID:
		state.PushString(string(v))
	case []any:
		state.NewTable()
		for i, item := range v {
			pushGoValue(state, item)
			state.RawSetInt(-2, i+1)
		}
	case map[string]any:
		state.NewTable()
		for key, item := range v {
			pushGoValue(state, item)
			state.SetField(-2, key)
		}
	case move.Args:
		pushGoValue(state, map[string]any(v))
	default:
		state.PushString(fmt.Sprintf("%v", v))
	}
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}
	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	default:
		return nil
	}
}

// tableToGo converts a table to a slice when its keys form the contiguous
// range 1..n, and to a map otherwise.
func tableToGo(state *lua.State, index int) any {
	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}
	return tableToMap(state, index)
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}
