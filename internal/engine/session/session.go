// Package session owns one frame session: the game mirror, the rendered
// pair, pending moves, the board index, placement state, and the move
// submission protocol.
//
// A Store is single-owner: inbound host messages, user selection events, and
// the auto-submit timer must all be delivered from one goroutine, in arrival
// order. The frame runtime serializes them onto an event loop; the Store
// itself holds no locks.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/boardframe/internal/engine/board"
	"github.com/louisbranch/boardframe/internal/engine/game"
	"github.com/louisbranch/boardframe/internal/engine/merge"
	"github.com/louisbranch/boardframe/internal/engine/move"
	"github.com/louisbranch/boardframe/internal/engine/placement"
	"github.com/louisbranch/boardframe/internal/engine/resolver"
	"github.com/louisbranch/boardframe/internal/engine/submit"
	"github.com/louisbranch/boardframe/internal/errors"
	"github.com/louisbranch/boardframe/internal/protocol"
	"github.com/louisbranch/boardframe/internal/storage"
)

// Config assembles a session store.
type Config struct {
	// Position is the seat this session acts for.
	Position int
	Oracle   resolver.Oracle
	// Send delivers outbound messages to the host.
	Send func(protocol.Outbound) error

	// SessionID keys journal entries; empty generates one.
	SessionID string
	// Journal is optional; nil disables journaling.
	Journal storage.Journal

	// AutoSubmitDelay overrides the default system-move delay when positive.
	AutoSubmitDelay time.Duration
	// Schedule overrides the auto-submit timer, letting the runtime route
	// the firing back onto the session's event loop.
	Schedule submit.Schedule
}

// Store is the state of one frame session.
type Store struct {
	position  int
	sessionID string
	send      func(protocol.Outbound) error
	journal   storage.Journal
	tracer    trace.Tracer

	game     *game.Game
	merger   *merge.Merger
	oracle   resolver.Oracle
	resolver *resolver.Resolver
	protocol *submit.Protocol

	partial    *move.Move
	resolution resolver.Resolution
	placing    *placement.Record

	users     []protocol.User
	lastError string
	readySent bool

	lobbyNextID int64
}

// New wires a session store. Speculation and auto-submit cancellation are
// cross-wired between the merger and the submission protocol.
func New(cfg Config) (*Store, error) {
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("oracle is required")
	}
	if cfg.Send == nil {
		return nil, fmt.Errorf("send func is required")
	}
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	g := game.New()
	s := &Store{
		position:  cfg.Position,
		sessionID: sessionID,
		send:      cfg.Send,
		journal:   cfg.Journal,
		tracer:    otel.Tracer("boardframe/session"),
		game:      g,
		merger:    merge.New(g),
		oracle:    cfg.Oracle,
		resolver:  &resolver.Resolver{Oracle: cfg.Oracle},
	}

	s.protocol = submit.New(s.sendMove, func(name string, args move.Args) error {
		return cfg.Oracle.ApplyMove(cfg.Position, name, args)
	})
	if cfg.AutoSubmitDelay > 0 {
		s.protocol.Delay = cfg.AutoSubmitDelay
	}
	if cfg.Schedule != nil {
		s.protocol.Timer = cfg.Schedule
	}
	// Optimistic execution advances the session into a half-generation that
	// the matching authoritative snapshot later overwrites.
	s.protocol.Speculate = func() {
		s.game.Sequence = s.game.Sequence.Speculative()
	}
	// Authoritative information always preempts a pending forced move.
	s.merger.CancelSpeculation = s.protocol.CancelScheduled

	return s, nil
}

// SessionID returns the journal key for this session.
func (s *Store) SessionID() string { return s.sessionID }

// Game exposes the authoritative game mirror.
func (s *Store) Game() *game.Game { return s.game }

// Users returns the lobby roster last reported by the host.
func (s *Store) Users() []protocol.User { return s.users }

// Resolution returns the latest resolve outcome: pending moves, board
// index, step and prompt.
func (s *Store) Resolution() resolver.Resolution { return s.resolution }

// Placement returns the in-progress placement record, nil outside
// placement mode.
func (s *Store) Placement() *placement.Record { return s.placing }

// LastError returns the most recent surfaced failure message, empty when
// none is outstanding.
func (s *Store) LastError() string { return s.lastError }

// ClearError acknowledges the surfaced failure.
func (s *Store) ClearError() { s.lastError = "" }

// Rendered returns the previous and current rendered buffers used to
// animate generation transitions.
func (s *Store) Rendered() (previous, current merge.Rendered) {
	return s.merger.Previous, s.merger.Current
}

// Render records the current generation's rendered elements.
func (s *Store) Render(elements map[board.ElementID]merge.VisualRecord) {
	s.merger.Render(elements)
}

// Ready announces the frame has mounted. Idempotent; only the first call
// sends.
func (s *Store) Ready(ctx context.Context) error {
	if s.readySent {
		return nil
	}
	if err := s.send(protocol.Ready{}); err != nil {
		return fmt.Errorf("send ready: %w", err)
	}
	s.readySent = true
	return nil
}

// HandleMessage processes one inbound host message.
func (s *Store) HandleMessage(ctx context.Context, msg protocol.Inbound) error {
	switch m := msg.(type) {
	case protocol.UsersUpdate:
		s.users = m.Users
		return nil
	case protocol.SettingsUpdate:
		s.game.Settings = m.Settings
		return nil
	case protocol.StateUpdate:
		return s.handleState(ctx, m)
	case protocol.MoveAck:
		return s.handleAck(ctx, m)
	default:
		return fmt.Errorf("unhandled message type %T", msg)
	}
}

func (s *Store) handleState(ctx context.Context, m protocol.StateUpdate) error {
	ctx, span := s.tracer.Start(ctx, "session.merge",
		trace.WithAttributes(
			attribute.Int("game.sequence", m.Sequence),
			attribute.Bool("game.finished", m.Finished),
		))
	defer span.End()

	players := make([]game.Player, len(m.Snapshot.Players))
	for i, seat := range m.Snapshot.Players {
		players[i] = game.Player{
			Position: seat.Position,
			UserID:   seat.UserID,
			Name:     seat.Name,
			Color:    seat.Color,
		}
	}

	outcome, err := s.merger.Merge(merge.Update{
		Sequence:      m.Sequence,
		Finished:      m.Finished,
		Players:       players,
		BoardJSON:     m.Snapshot.Board,
		FlowPosition:  m.Snapshot.FlowPosition,
		ActivePlayers: m.ActivePlayers,
		Winners:       m.Winners,
		Settings:      m.Snapshot.Settings,
		ReadOnly:      m.ReadOnly,
	})
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("merge.transition", string(outcome.Transition)))

	// The snapshot replaced the board wholesale; an in-progress placement
	// has nothing left to restore.
	s.placing = nil
	s.resolver.Board = s.game.Board

	// Rules state follows host authority, not just the display. Without
	// this, pending moves would evaluate against state diverged by remote
	// moves or a rejected optimistic move.
	if ingestor, ok := s.oracle.(resolver.StateIngestor); ok {
		if err := ingestor.SetState(m.Snapshot.Board, s.game.Settings); err != nil {
			return fmt.Errorf("ingest snapshot into rules state: %w", err)
		}
	}

	s.journalEntry(ctx, storage.Entry{
		Kind:     storage.KindSnapshot,
		Sequence: float64(s.game.Sequence),
		Payload:  m.Snapshot.Board,
	})

	if !outcome.Recompute || !s.game.Active(s.position) {
		s.partial = nil
		s.resolution = resolver.Resolution{}
		return nil
	}
	return s.resolve(ctx)
}

func (s *Store) handleAck(ctx context.Context, m protocol.MoveAck) error {
	err := s.protocol.HandleAck(m.CorrelationID, m.Error)
	s.journalEntry(ctx, storage.Entry{
		Kind:     storage.KindAck,
		Sequence: float64(s.game.Sequence),
		Detail:   m.Error,
	})
	if err != nil && errors.CodeOf(err) == errors.CodeUnknownAck {
		// Late ack for a submission already superseded by a resync.
		return nil
	}
	return err
}

// SelectElement handles a click on a board element. With a single click
// affordance the value commits immediately; the move then either resolves
// further, submits directly, or waits for an explicit submit.
func (s *Store) SelectElement(ctx context.Context, id board.ElementID) error {
	aff, ok := s.resolution.Board[id]
	if !ok || len(aff.Click) == 0 {
		return errors.New(errors.CodeSelectionInvalid,
			fmt.Sprintf("element %q has no selection affordance", id))
	}
	if len(aff.Click) > 1 {
		// Ambiguous element: the UI must disambiguate by move first.
		return errors.New(errors.CodeSelectionInvalid,
			fmt.Sprintf("element %q maps to %d moves", id, len(aff.Click)))
	}
	m := aff.Click[0]
	sel := m.Selections[0]
	return s.commit(ctx, m, sel, id)
}

// DragElement handles dropping element from onto element to. Both gesture
// endpoints commit: the source under its selection's name, the destination
// under the target selection's name. A nameless target is a fixed element
// whose identity is already implied by the move; the drop itself is the
// confirmation and only the source value commits.
func (s *Store) DragElement(ctx context.Context, from, to board.ElementID) error {
	aff, ok := s.resolution.Board[from]
	if !ok || len(aff.Drag) == 0 {
		return errors.New(errors.CodeSelectionInvalid,
			fmt.Sprintf("element %q has no drag affordance", from))
	}
	for _, drag := range aff.Drag {
		if !allowsCandidate(drag.Target, to) {
			continue
		}
		if drag.Target.Name == "" {
			return s.commit(ctx, drag.Move, drag.Source, from)
		}
		m := drag.Move
		if drag.Source.Name != "" && drag.Source.Name != drag.Target.Name {
			m = m.WithArg(drag.Source.Name, from)
		}
		return s.commit(ctx, m, drag.Target, to)
	}
	return errors.New(errors.CodeSelectionInvalid,
		fmt.Sprintf("no drag affordance from %q accepts %q", from, to))
}

// allowsCandidate reports whether a drag target selection accepts el.
func allowsCandidate(target move.Selection, el board.ElementID) bool {
	for _, candidate := range target.BoardCandidates {
		if candidate == el {
			return true
		}
	}
	return false
}

// Choose commits a value for a named selection of a pending move. An empty
// moveName is allowed when exactly one move is pending.
func (s *Store) Choose(ctx context.Context, moveName, selName string, value any) error {
	m, sel, err := s.findSelection(moveName, selName)
	if err != nil {
		return err
	}
	if sel.Validate != nil && !sel.Validate(value) {
		return errors.New(errors.CodeSelectionInvalid,
			fmt.Sprintf("value rejected for selection %q", selName))
	}
	return s.commit(ctx, m, sel, value)
}

// Submit sends the completed move that is waiting on an explicit submit.
func (s *Store) Submit(ctx context.Context) error {
	if s.resolution.Completed == nil {
		return errors.New(errors.CodeMoveIncomplete, "no completed move to submit")
	}
	return s.direct(ctx, *s.resolution.Completed)
}

// CancelSelection abandons the in-progress move and restarts selection.
func (s *Store) CancelSelection(ctx context.Context) error {
	s.partial = nil
	return s.resolve(ctx)
}

// AdjustPlacement moves the placing piece to new coordinates.
func (s *Store) AdjustPlacement(ctx context.Context, row, column int) error {
	if s.placing == nil {
		return errors.New(errors.CodeSelectionInvalid, "no placement in progress")
	}
	return s.placing.Adjust(s.game.Board, row, column)
}

// CommitPlacement finalizes placement and submits the completed move.
func (s *Store) CommitPlacement(ctx context.Context) error {
	if s.placing == nil {
		return errors.New(errors.CodeSelectionInvalid, "no placement in progress")
	}
	committed, err := s.placing.Commit(s.game.Board)
	if err != nil {
		return err
	}
	s.placing = nil
	return s.direct(ctx, committed)
}

// CancelPlacement restores the piece bit-exact and restarts selection.
func (s *Store) CancelPlacement(ctx context.Context) error {
	if s.placing == nil {
		return errors.New(errors.CodeSelectionInvalid, "no placement in progress")
	}
	if err := s.placing.Cancel(s.game.Board); err != nil {
		return err
	}
	s.placing = nil
	s.partial = nil
	s.game.Sequence = s.game.Sequence.Floor()
	return s.resolve(ctx)
}

// commit records one selection value on a move and re-resolves.
func (s *Store) commit(ctx context.Context, m move.Move, sel move.Selection, value any) error {
	var committed move.Move
	if sel.MultiValued() {
		var values []any
		if existing, ok := m.Args[sel.Name].([]any); ok {
			values = append(values, existing...)
		}
		values = append(values, value)
		if sel.Max > 0 && len(values) > sel.Max {
			return errors.New(errors.CodeSelectionInvalid,
				fmt.Sprintf("selection %q accepts at most %d values", sel.Name, sel.Max))
		}
		committed = m.WithArg(sel.Name, values)
	} else {
		committed = m.WithArg(sel.Name, value)
	}
	s.partial = &committed
	return s.resolve(ctx)
}

func (s *Store) findSelection(moveName, selName string) (move.Move, move.Selection, error) {
	candidates := s.resolution.Pending
	if moveName == "" {
		if len(candidates) != 1 {
			return move.Move{}, move.Selection{}, errors.New(errors.CodeSelectionInvalid,
				fmt.Sprintf("%d moves pending, move name required", len(candidates)))
		}
	}
	for _, m := range candidates {
		if moveName != "" && m.Name != moveName {
			continue
		}
		for _, sel := range m.Selections {
			if sel.Name == selName {
				return m, sel, nil
			}
		}
	}
	return move.Move{}, move.Selection{}, errors.New(errors.CodeSelectionInvalid,
		fmt.Sprintf("no pending selection %q", selName))
}

// resolve recomputes pending moves and reacts to the outcome: entering
// placement, scheduling an auto-submission, or submitting a move the player
// just finished.
func (s *Store) resolve(ctx context.Context) error {
	res, err := s.resolver.Resolve(s.position, s.partial)
	if err != nil {
		return err
	}
	if res.DiscardedStale {
		// The partial move silently restarted; nothing to surface.
		s.partial = nil
	}
	s.resolution = res

	if res.EnterPlacement != nil {
		intent := res.EnterPlacement
		record, err := placement.Begin(s.game.Board, intent.Move, intent.Selection, intent.Piece, intent.Container)
		if err != nil {
			return err
		}
		s.placing = record
		// Placement mutates the live board locally; the session is
		// speculative until the matching snapshot arrives.
		s.game.Sequence = s.game.Sequence.Speculative()
		return nil
	}

	if res.Completed == nil {
		return nil
	}
	if res.AutoSubmit {
		return s.protocol.Auto(*res.Completed, s.recordRejection)
	}
	if !res.Completed.RequireExplicitSubmit {
		return s.direct(ctx, *res.Completed)
	}
	// Explicit-submit move held for Submit().
	return nil
}

// direct optimistically executes and sends a completed move. A local
// execution failure surfaces without forwarding; selection restarts against
// the pre-move snapshot.
func (s *Store) direct(ctx context.Context, m move.Move) error {
	ctx, span := s.tracer.Start(ctx, "session.submit",
		trace.WithAttributes(attribute.String("move.name", m.Name)))
	defer span.End()

	id, err := s.protocol.Direct(m, s.recordRejection)
	if err != nil {
		if errors.CodeOf(err) == errors.CodeLocalExecution {
			s.lastError = err.Error()
			s.partial = nil
			if rerr := s.resolve(ctx); rerr != nil {
				return rerr
			}
		}
		return err
	}

	payload, _ := json.Marshal(m.Args)
	s.journalEntry(ctx, storage.Entry{
		Kind:     storage.KindMove,
		Sequence: float64(s.game.Sequence),
		Name:     m.Name,
		Payload:  payload,
	})
	span.SetAttributes(attribute.Int64("move.correlation_id", id))

	s.partial = nil
	return s.resolve(ctx)
}

func (s *Store) sendMove(out submit.Outbound) error {
	args, err := protocol.EncodeArgs(out.Args)
	if err != nil {
		return fmt.Errorf("encode move args: %w", err)
	}
	return s.send(protocol.MoveMessage{
		CorrelationID: out.CorrelationID,
		Name:          out.Name,
		Args:          args,
	})
}

func (s *Store) recordRejection(message string) {
	s.lastError = message
}

func (s *Store) journalEntry(ctx context.Context, entry storage.Entry) {
	if s.journal == nil {
		return
	}
	entry.SessionID = s.sessionID
	// Journal failures never interrupt play.
	_ = s.journal.Append(ctx, entry)
}

// StartGame asks the host to begin play.
func (s *Store) StartGame(ctx context.Context) error {
	return s.send(protocol.Start{CorrelationID: s.nextLobbyID()})
}

// ProposeSettings sends a settings change to the host.
func (s *Store) ProposeSettings(ctx context.Context, settings map[string]any) error {
	return s.send(protocol.UpdateSettings{
		CorrelationID: s.nextLobbyID(),
		Settings:      settings,
	})
}

// UpdatePlayers applies a batch of seat operations.
func (s *Store) UpdatePlayers(ctx context.Context, ops []protocol.PlayerOperation) error {
	return s.send(protocol.UpdatePlayers{
		CorrelationID: s.nextLobbyID(),
		Operations:    ops,
	})
}

// UpdateSelfPlayer changes this seat's own name and color.
func (s *Store) UpdateSelfPlayer(ctx context.Context, name, color string) error {
	return s.send(protocol.UpdateSelfPlayer{
		CorrelationID: s.nextLobbyID(),
		Name:          name,
		Color:         color,
	})
}

func (s *Store) nextLobbyID() int64 {
	s.lobbyNextID++
	return s.lobbyNextID
}
