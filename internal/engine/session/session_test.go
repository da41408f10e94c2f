package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/louisbranch/boardframe/internal/engine/board"
	"github.com/louisbranch/boardframe/internal/engine/move"
	"github.com/louisbranch/boardframe/internal/engine/resolver"
	"github.com/louisbranch/boardframe/internal/engine/sequence"
	"github.com/louisbranch/boardframe/internal/protocol"
	"github.com/louisbranch/boardframe/internal/testkit/oraclefake"
)

const testBoardJSON = `{
	"id": "root",
	"kind": "board",
	"children": [
		{"id": "tray", "kind": "container", "rows": 2, "columns": 3, "children": [
			{"id": "P1", "kind": "piece"}
		]},
		{"id": "0/1", "kind": "space"},
		{"id": "0/2", "kind": "space"}
	]
}`

type capture struct {
	sent []protocol.Outbound
}

func (c *capture) send(msg protocol.Outbound) error {
	c.sent = append(c.sent, msg)
	return nil
}

func (c *capture) moves() []protocol.MoveMessage {
	var out []protocol.MoveMessage
	for _, msg := range c.sent {
		if m, ok := msg.(protocol.MoveMessage); ok {
			out = append(out, m)
		}
	}
	return out
}

type manualTimer struct {
	armed     bool
	delay     time.Duration
	fire      func()
	cancelled bool
}

func (t *manualTimer) schedule(d time.Duration, fire func()) func() {
	t.armed = true
	t.delay = d
	t.fire = fire
	return func() { t.cancelled = true }
}

func newTestStore(t *testing.T, oracle *oraclefake.Fake, timer *manualTimer) (*Store, *capture) {
	t.Helper()
	out := &capture{}
	cfg := Config{
		Position:  1,
		Oracle:    oracle,
		Send:      out.send,
		SessionID: "test-session",
	}
	if timer != nil {
		cfg.Schedule = timer.schedule
	}
	store, err := New(cfg)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, out
}

func stateUpdate(seq int, active ...int) protocol.StateUpdate {
	return protocol.StateUpdate{
		Sequence: seq,
		Snapshot: protocol.Snapshot{
			Players: []protocol.PlayerSeat{
				{Position: 1, Name: "alpha"},
				{Position: 2, Name: "beta"},
			},
			Board: json.RawMessage(testBoardJSON),
		},
		ActivePlayers: active,
	}
}

func boardSelectionMove() move.Move {
	return move.Move{
		Name: "advance",
		Args: move.Args{},
		Selections: []move.Selection{{
			Name:            "space",
			Type:            move.SelectionBoard,
			BoardCandidates: []board.ElementID{"0/1", "0/2"},
		}},
	}
}

func TestReadySentOnce(t *testing.T) {
	store, out := newTestStore(t, &oraclefake.Fake{}, nil)

	if err := store.Ready(context.Background()); err != nil {
		t.Fatalf("ready: %v", err)
	}
	if err := store.Ready(context.Background()); err != nil {
		t.Fatalf("ready again: %v", err)
	}
	if len(out.sent) != 1 {
		t.Fatalf("sent = %d messages, want 1", len(out.sent))
	}
	if _, ok := out.sent[0].(protocol.Ready); !ok {
		t.Fatalf("sent[0] = %T, want protocol.Ready", out.sent[0])
	}
}

func TestStateUpdateResolvesForActivePlayer(t *testing.T) {
	oracle := &oraclefake.Fake{
		PendingFunc: func(position int, name string, args move.Args) (resolver.Result, error) {
			return resolver.Result{Moves: []move.Move{boardSelectionMove()}, Prompt: "pick a space"}, nil
		},
	}
	store, _ := newTestStore(t, oracle, nil)

	if err := store.HandleMessage(context.Background(), stateUpdate(4, 1)); err != nil {
		t.Fatalf("handle state: %v", err)
	}

	if got := store.Game().Sequence; got != sequence.FromInt(4) {
		t.Fatalf("sequence = %v, want 4", got)
	}
	res := store.Resolution()
	if len(res.Pending) != 1 {
		t.Fatalf("pending = %d moves, want 1", len(res.Pending))
	}
	if res.Prompt != "pick a space" {
		t.Fatalf("prompt = %q, want %q", res.Prompt, "pick a space")
	}
	if _, ok := res.Board["0/2"]; !ok {
		t.Fatal("board index missing affordance for 0/2")
	}
}

func TestStateUpdateSkipsInactivePlayer(t *testing.T) {
	oracle := &oraclefake.Fake{}
	store, _ := newTestStore(t, oracle, nil)

	if err := store.HandleMessage(context.Background(), stateUpdate(4, 2)); err != nil {
		t.Fatalf("handle state: %v", err)
	}
	if len(oracle.Queries) != 0 {
		t.Fatalf("oracle queried %d times for inactive player, want 0", len(oracle.Queries))
	}
	if len(store.Resolution().Pending) != 0 {
		t.Fatal("expected no pending moves for inactive player")
	}
}

func TestSelectElementDirectSubmits(t *testing.T) {
	oracle := &oraclefake.Fake{
		PendingFunc: func(position int, name string, args move.Args) (resolver.Result, error) {
			if name == "advance" {
				completed := move.Move{Name: "advance", Args: args}
				return resolver.Result{Moves: []move.Move{completed}}, nil
			}
			return resolver.Result{Moves: []move.Move{boardSelectionMove()}}, nil
		},
	}
	store, out := newTestStore(t, oracle, nil)

	if err := store.HandleMessage(context.Background(), stateUpdate(4, 1)); err != nil {
		t.Fatalf("handle state: %v", err)
	}
	if err := store.SelectElement(context.Background(), "0/2"); err != nil {
		t.Fatalf("select element: %v", err)
	}

	moves := out.moves()
	if len(moves) != 1 {
		t.Fatalf("sent %d move messages, want 1", len(moves))
	}
	if moves[0].CorrelationID != 1 {
		t.Fatalf("correlation id = %d, want 1", moves[0].CorrelationID)
	}
	if moves[0].Name != "advance" {
		t.Fatalf("move name = %q, want %q", moves[0].Name, "advance")
	}
	space, ok := moves[0].Args["space"].(map[string]any)
	if !ok || space["$element"] != "0/2" {
		t.Fatalf("args[space] = %v, want tagged element reference 0/2", moves[0].Args["space"])
	}
	if len(oracle.Applies) != 1 {
		t.Fatalf("oracle applied %d times, want 1", len(oracle.Applies))
	}
	if got := store.Game().Sequence; got != sequence.FromInt(4).Speculative() {
		t.Fatalf("sequence = %v, want 4.5", got)
	}
}

// elementRef unwraps a tagged board element reference from encoded args.
func elementRef(t *testing.T, args map[string]any, key string) string {
	t.Helper()
	ref, ok := args[key].(map[string]any)
	if !ok {
		t.Fatalf("args[%s] = %T, want tagged element reference", key, args[key])
	}
	id, _ := ref["$element"].(string)
	return id
}

func TestDragElementFixedTargetCommitsSourceOnly(t *testing.T) {
	retreat := move.Move{
		Name: "retreat",
		Args: move.Args{},
		Selections: []move.Selection{{
			Name:            "piece",
			Type:            move.SelectionBoard,
			BoardCandidates: []board.ElementID{"P1", "0/1"},
			DragInto:        &move.DragSpec{Element: "tray"},
		}},
	}
	oracle := &oraclefake.Fake{
		PendingFunc: func(position int, name string, args move.Args) (resolver.Result, error) {
			if name == "retreat" {
				return resolver.Result{Moves: []move.Move{{Name: "retreat", Args: args}}}, nil
			}
			return resolver.Result{Moves: []move.Move{retreat}}, nil
		},
	}
	store, out := newTestStore(t, oracle, nil)

	if err := store.HandleMessage(context.Background(), stateUpdate(4, 1)); err != nil {
		t.Fatalf("handle state: %v", err)
	}
	if err := store.DragElement(context.Background(), "P1", "tray"); err != nil {
		t.Fatalf("drag element: %v", err)
	}

	moves := out.moves()
	if len(moves) != 1 {
		t.Fatalf("sent %d move messages, want 1", len(moves))
	}
	if got := elementRef(t, moves[0].Args, "piece"); got != "P1" {
		t.Fatalf("args[piece] = %q, want P1", got)
	}
	// The fixed destination is implied by the move; the drop must not
	// invent an argument for it.
	if len(moves[0].Args) != 1 {
		t.Fatalf("args = %v, want only the dragged piece", moves[0].Args)
	}
	if _, ok := moves[0].Args[""]; ok {
		t.Fatalf("empty argument key committed: %v", moves[0].Args)
	}
}

func TestDragElementDynamicTargetCommitsBothEndpoints(t *testing.T) {
	advance := move.Move{
		Name: "advance",
		Args: move.Args{},
		Selections: []move.Selection{{
			Name:            "piece",
			Type:            move.SelectionBoard,
			BoardCandidates: []board.ElementID{"P1", "0/1"},
			DragInto: &move.DragSpec{Selection: &move.Selection{
				Name:            "space",
				Type:            move.SelectionBoard,
				BoardCandidates: []board.ElementID{"0/1", "0/2"},
			}},
		}},
	}
	oracle := &oraclefake.Fake{
		PendingFunc: func(position int, name string, args move.Args) (resolver.Result, error) {
			if name == "advance" && args["space"] != nil {
				return resolver.Result{Moves: []move.Move{{Name: "advance", Args: args}}}, nil
			}
			return resolver.Result{Moves: []move.Move{advance}}, nil
		},
	}
	store, out := newTestStore(t, oracle, nil)

	if err := store.HandleMessage(context.Background(), stateUpdate(4, 1)); err != nil {
		t.Fatalf("handle state: %v", err)
	}
	if err := store.DragElement(context.Background(), "P1", "0/2"); err != nil {
		t.Fatalf("drag element: %v", err)
	}

	moves := out.moves()
	if len(moves) != 1 {
		t.Fatalf("sent %d move messages, want 1", len(moves))
	}
	if got := elementRef(t, moves[0].Args, "piece"); got != "P1" {
		t.Fatalf("args[piece] = %q, want P1", got)
	}
	if got := elementRef(t, moves[0].Args, "space"); got != "0/2" {
		t.Fatalf("args[space] = %q, want 0/2", got)
	}
}

func TestDragElementFromSourceDistinguishesSources(t *testing.T) {
	insert := move.Move{
		Name: "insert",
		Args: move.Args{},
		Selections: []move.Selection{{
			Name:            "slot",
			Type:            move.SelectionBoard,
			BoardCandidates: []board.ElementID{"0/1", "0/2"},
			DragFrom: &move.DragSpec{Selection: &move.Selection{
				Name:            "hand",
				Type:            move.SelectionBoard,
				BoardCandidates: []board.ElementID{"P1", "0/1"},
			}},
		}},
	}
	oracle := &oraclefake.Fake{
		PendingFunc: func(position int, name string, args move.Args) (resolver.Result, error) {
			if name == "insert" && args["slot"] != nil {
				return resolver.Result{Moves: []move.Move{{Name: "insert", Args: args}}}, nil
			}
			return resolver.Result{Moves: []move.Move{insert}}, nil
		},
	}
	store, out := newTestStore(t, oracle, nil)

	if err := store.HandleMessage(context.Background(), stateUpdate(4, 1)); err != nil {
		t.Fatalf("handle state: %v", err)
	}
	if err := store.DragElement(context.Background(), "P1", "0/2"); err != nil {
		t.Fatalf("first drag: %v", err)
	}
	if err := store.DragElement(context.Background(), "0/1", "0/2"); err != nil {
		t.Fatalf("second drag: %v", err)
	}

	moves := out.moves()
	if len(moves) != 2 {
		t.Fatalf("sent %d move messages, want 2", len(moves))
	}
	first := elementRef(t, moves[0].Args, "hand")
	second := elementRef(t, moves[1].Args, "hand")
	if first != "P1" || second != "0/1" {
		t.Fatalf("hand args = %q then %q, want P1 then 0/1", first, second)
	}
	if got := elementRef(t, moves[0].Args, "slot"); got != "0/2" {
		t.Fatalf("args[slot] = %q, want 0/2", got)
	}
}

func TestChooseThenExplicitSubmit(t *testing.T) {
	wager := move.Move{
		Name: "wager",
		Args: move.Args{},
		Selections: []move.Selection{{
			Name: "amount",
			Type: move.SelectionNumber,
		}},
	}
	oracle := &oraclefake.Fake{
		PendingFunc: func(position int, name string, args move.Args) (resolver.Result, error) {
			if name == "wager" && args["amount"] != nil {
				return resolver.Result{Moves: []move.Move{{Name: "wager", Args: args}}}, nil
			}
			return resolver.Result{Moves: []move.Move{wager}}, nil
		},
	}
	store, out := newTestStore(t, oracle, nil)

	if err := store.HandleMessage(context.Background(), stateUpdate(4, 1)); err != nil {
		t.Fatalf("handle state: %v", err)
	}
	if err := store.Choose(context.Background(), "", "amount", 12); err != nil {
		t.Fatalf("choose: %v", err)
	}

	// A number selection is not directly actionable: the completed move
	// waits for an explicit submit instead of sending on first input.
	if len(out.moves()) != 0 {
		t.Fatal("move sent before explicit submit")
	}
	if store.Resolution().Completed == nil {
		t.Fatal("completed move not held for submission")
	}

	if err := store.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	moves := out.moves()
	if len(moves) != 1 {
		t.Fatalf("sent %d move messages after submit, want 1", len(moves))
	}
	if moves[0].Args["amount"] != 12 {
		t.Fatalf("args[amount] = %v, want 12", moves[0].Args["amount"])
	}
	if len(oracle.Applies) != 1 {
		t.Fatalf("oracle applied %d times, want 1", len(oracle.Applies))
	}
	if got := store.Game().Sequence; got != sequence.FromInt(4).Speculative() {
		t.Fatalf("sequence = %v, want 4.5", got)
	}
}

func TestCancelSelectionRestartsSelection(t *testing.T) {
	wager := move.Move{
		Name: "wager",
		Args: move.Args{},
		Selections: []move.Selection{{
			Name: "amount",
			Type: move.SelectionNumber,
		}},
	}
	oracle := &oraclefake.Fake{
		PendingFunc: func(position int, name string, args move.Args) (resolver.Result, error) {
			if name == "wager" && args["amount"] != nil {
				return resolver.Result{Moves: []move.Move{{Name: "wager", Args: args}}}, nil
			}
			return resolver.Result{Moves: []move.Move{wager}}, nil
		},
	}
	store, out := newTestStore(t, oracle, nil)

	if err := store.HandleMessage(context.Background(), stateUpdate(4, 1)); err != nil {
		t.Fatalf("handle state: %v", err)
	}
	if err := store.Choose(context.Background(), "", "amount", 12); err != nil {
		t.Fatalf("choose: %v", err)
	}
	if err := store.CancelSelection(context.Background()); err != nil {
		t.Fatalf("cancel selection: %v", err)
	}

	if store.Resolution().Completed != nil {
		t.Fatal("cancelled move still held for submission")
	}
	if len(store.Resolution().Pending) != 1 {
		t.Fatalf("pending = %d moves after cancel, want 1", len(store.Resolution().Pending))
	}
	if len(out.moves()) != 0 {
		t.Fatal("cancelled selection must not submit")
	}
}

func TestStateUpdateFeedsOracleState(t *testing.T) {
	oracle := &oraclefake.Fake{}
	store, _ := newTestStore(t, oracle, nil)

	// Ingestion happens for every merged snapshot, active player or not.
	if err := store.HandleMessage(context.Background(), stateUpdate(4, 2)); err != nil {
		t.Fatalf("handle state: %v", err)
	}
	if len(oracle.States) != 1 {
		t.Fatalf("oracle ingested %d snapshots, want 1", len(oracle.States))
	}
	if string(oracle.States[0].BoardJSON) != testBoardJSON {
		t.Fatalf("ingested board = %s", oracle.States[0].BoardJSON)
	}

	if err := store.HandleMessage(context.Background(), stateUpdate(5, 2)); err != nil {
		t.Fatalf("handle second state: %v", err)
	}
	if len(oracle.States) != 2 {
		t.Fatalf("oracle ingested %d snapshots, want 2", len(oracle.States))
	}
}

func TestSelectElementWithoutAffordance(t *testing.T) {
	store, _ := newTestStore(t, &oraclefake.Fake{}, nil)
	if err := store.SelectElement(context.Background(), "nowhere"); err == nil {
		t.Fatal("expected error for element without affordance")
	}
}

func TestAckRejectionSurfaces(t *testing.T) {
	oracle := &oraclefake.Fake{
		PendingFunc: func(position int, name string, args move.Args) (resolver.Result, error) {
			if name == "advance" {
				return resolver.Result{Moves: []move.Move{{Name: "advance", Args: args}}}, nil
			}
			return resolver.Result{Moves: []move.Move{boardSelectionMove()}}, nil
		},
	}
	store, _ := newTestStore(t, oracle, nil)

	if err := store.HandleMessage(context.Background(), stateUpdate(4, 1)); err != nil {
		t.Fatalf("handle state: %v", err)
	}
	if err := store.SelectElement(context.Background(), "0/1"); err != nil {
		t.Fatalf("select element: %v", err)
	}

	err := store.HandleMessage(context.Background(), protocol.MoveAck{CorrelationID: 1, Error: "space occupied"})
	if err == nil {
		t.Fatal("expected error for rejected move")
	}
	if store.LastError() != "space occupied" {
		t.Fatalf("last error = %q, want %q", store.LastError(), "space occupied")
	}

	store.ClearError()
	if store.LastError() != "" {
		t.Fatal("clear error did not reset the surfaced message")
	}
}

func TestLateAckIgnored(t *testing.T) {
	store, _ := newTestStore(t, &oraclefake.Fake{}, nil)
	if err := store.HandleMessage(context.Background(), protocol.MoveAck{CorrelationID: 42}); err != nil {
		t.Fatalf("late ack: %v", err)
	}
}

func TestAutoSubmitScheduledAndCancelledByMerge(t *testing.T) {
	forced := move.Move{
		Name: "pass",
		Args: move.Args{},
		Selections: []move.Selection{{
			Name: "ok",
			Type: move.SelectionButton,
			Skip: move.SkipAlways,
		}},
	}
	oracle := &oraclefake.Fake{
		PendingFunc: func(position int, name string, args move.Args) (resolver.Result, error) {
			if name == "pass" {
				return resolver.Result{Moves: []move.Move{{Name: "pass", Args: args}}}, nil
			}
			return resolver.Result{Moves: []move.Move{forced}}, nil
		},
	}
	timer := &manualTimer{}
	store, out := newTestStore(t, oracle, timer)

	if err := store.HandleMessage(context.Background(), stateUpdate(4, 1)); err != nil {
		t.Fatalf("handle state: %v", err)
	}

	if !timer.armed {
		t.Fatal("auto-submittable move did not schedule a send")
	}
	if timer.delay != 500*time.Millisecond {
		t.Fatalf("delay = %v, want 500ms", timer.delay)
	}
	if len(out.moves()) != 0 {
		t.Fatal("move sent before the delay elapsed")
	}
	if len(oracle.Applies) != 0 {
		t.Fatal("auto-submission must not execute locally before sending")
	}

	// A snapshot arriving before the delay elapses cancels the send.
	if err := store.HandleMessage(context.Background(), stateUpdate(5, 2)); err != nil {
		t.Fatalf("handle second state: %v", err)
	}
	if !timer.cancelled {
		t.Fatal("merge did not cancel the scheduled auto-submission")
	}
	if len(out.moves()) != 0 {
		t.Fatal("cancelled auto-submission still sent")
	}
}

func TestAutoSubmitFires(t *testing.T) {
	forced := move.Move{
		Name: "pass",
		Args: move.Args{},
		Selections: []move.Selection{{
			Name: "ok",
			Type: move.SelectionButton,
			Skip: move.SkipAlways,
		}},
	}
	oracle := &oraclefake.Fake{
		PendingFunc: func(position int, name string, args move.Args) (resolver.Result, error) {
			if name == "pass" {
				return resolver.Result{Moves: []move.Move{{Name: "pass", Args: args}}}, nil
			}
			return resolver.Result{Moves: []move.Move{forced}}, nil
		},
	}
	timer := &manualTimer{}
	store, out := newTestStore(t, oracle, timer)

	if err := store.HandleMessage(context.Background(), stateUpdate(4, 1)); err != nil {
		t.Fatalf("handle state: %v", err)
	}
	timer.fire()

	moves := out.moves()
	if len(moves) != 1 {
		t.Fatalf("sent %d move messages after firing, want 1", len(moves))
	}
	if moves[0].Name != "pass" {
		t.Fatalf("move name = %q, want %q", moves[0].Name, "pass")
	}
	if moves[0].Args["ok"] != true {
		t.Fatalf("args[ok] = %v, want true", moves[0].Args["ok"])
	}
}

func TestPlacementFlow(t *testing.T) {
	placeMove := move.Move{
		Name: "place",
		Args: move.Args{"piece": "P1"},
		Selections: []move.Selection{{
			Name:      "spot",
			Type:      move.SelectionPlace,
			PlaceInto: "tray",
		}},
	}
	oracle := &oraclefake.Fake{}
	oracle.PendingFunc = func(position int, name string, args move.Args) (resolver.Result, error) {
		if len(oracle.Applies) > 0 {
			return resolver.Result{}, nil
		}
		return resolver.Result{Moves: []move.Move{placeMove}}, nil
	}
	store, out := newTestStore(t, oracle, nil)

	if err := store.HandleMessage(context.Background(), stateUpdate(4, 1)); err != nil {
		t.Fatalf("handle state: %v", err)
	}

	if store.Placement() == nil {
		t.Fatal("sole place selection did not enter placement mode")
	}
	if got := store.Game().Sequence; got != sequence.FromInt(4).Speculative() {
		t.Fatalf("sequence = %v, want 4.5", got)
	}

	if err := store.AdjustPlacement(context.Background(), 1, 2); err != nil {
		t.Fatalf("adjust placement: %v", err)
	}
	if err := store.CommitPlacement(context.Background()); err != nil {
		t.Fatalf("commit placement: %v", err)
	}

	moves := out.moves()
	if len(moves) != 1 {
		t.Fatalf("sent %d move messages, want 1", len(moves))
	}
	spot, ok := moves[0].Args["spot"].(map[string]any)
	if !ok {
		t.Fatalf("args[spot] = %T, want coordinates map", moves[0].Args["spot"])
	}
	if spot["row"] != 1 || spot["column"] != 2 {
		t.Fatalf("spot = %v, want row 1 column 2", spot)
	}
	if store.Placement() != nil {
		t.Fatal("placement record not cleared after commit")
	}
}

func TestPlacementCancelRestores(t *testing.T) {
	placeMove := move.Move{
		Name: "place",
		Args: move.Args{"piece": "P1"},
		Selections: []move.Selection{{
			Name:      "spot",
			Type:      move.SelectionPlace,
			PlaceInto: "tray",
		}},
	}
	calls := 0
	oracle := &oraclefake.Fake{
		PendingFunc: func(position int, name string, args move.Args) (resolver.Result, error) {
			calls++
			if calls > 1 {
				return resolver.Result{}, nil
			}
			return resolver.Result{Moves: []move.Move{placeMove}}, nil
		},
	}
	store, out := newTestStore(t, oracle, nil)

	if err := store.HandleMessage(context.Background(), stateUpdate(4, 1)); err != nil {
		t.Fatalf("handle state: %v", err)
	}
	if err := store.AdjustPlacement(context.Background(), 1, 1); err != nil {
		t.Fatalf("adjust placement: %v", err)
	}
	if err := store.CancelPlacement(context.Background()); err != nil {
		t.Fatalf("cancel placement: %v", err)
	}

	if got := store.Game().Sequence; got != sequence.FromInt(4) {
		t.Fatalf("sequence = %v, want 4 after cancel", got)
	}
	if store.Placement() != nil {
		t.Fatal("placement record not cleared after cancel")
	}
	if len(out.moves()) != 0 {
		t.Fatal("cancelled placement must not submit")
	}
	pos, err := store.Game().Board.PositionOf("P1")
	if err != nil {
		t.Fatalf("position after cancel: %v", err)
	}
	if pos.Container != "tray" || pos.Index != 0 {
		t.Fatalf("piece at %+v, want restored to tray index 0", pos)
	}
}

func TestUsersAndSettingsUpdates(t *testing.T) {
	store, _ := newTestStore(t, &oraclefake.Fake{}, nil)

	if err := store.HandleMessage(context.Background(), protocol.UsersUpdate{
		Users: []protocol.User{{ID: "u1", Name: "alpha"}},
	}); err != nil {
		t.Fatalf("users update: %v", err)
	}
	if len(store.Users()) != 1 || store.Users()[0].ID != "u1" {
		t.Fatalf("users = %+v, want one user u1", store.Users())
	}

	if err := store.HandleMessage(context.Background(), protocol.SettingsUpdate{
		Settings: map[string]any{"mode": "blitz"},
	}); err != nil {
		t.Fatalf("settings update: %v", err)
	}
	if store.Game().Settings["mode"] != "blitz" {
		t.Fatalf("settings = %v, want mode blitz", store.Game().Settings)
	}
}

func TestLobbyOperations(t *testing.T) {
	store, out := newTestStore(t, &oraclefake.Fake{}, nil)

	if err := store.StartGame(context.Background()); err != nil {
		t.Fatalf("start game: %v", err)
	}
	if err := store.ProposeSettings(context.Background(), map[string]any{"mode": "blitz"}); err != nil {
		t.Fatalf("propose settings: %v", err)
	}
	if err := store.UpdatePlayers(context.Background(), []protocol.PlayerOperation{
		{Op: protocol.OpSeat, Position: 2, UserID: "u2"},
	}); err != nil {
		t.Fatalf("update players: %v", err)
	}
	if err := store.UpdateSelfPlayer(context.Background(), "alpha", "#ff0000"); err != nil {
		t.Fatalf("update self player: %v", err)
	}

	if len(out.sent) != 4 {
		t.Fatalf("sent = %d messages, want 4", len(out.sent))
	}
	start, ok := out.sent[0].(protocol.Start)
	if !ok {
		t.Fatalf("sent[0] = %T, want protocol.Start", out.sent[0])
	}
	settings := out.sent[1].(protocol.UpdateSettings)
	if settings.CorrelationID <= start.CorrelationID {
		t.Fatalf("correlation ids not monotonic: %d then %d", start.CorrelationID, settings.CorrelationID)
	}
}
