// Package frame runs one frame session end to end: it validates the session
// token, loads the rules script, connects to the host, and serializes host
// messages, UI commands, and timer firings onto the session's event loop.
package frame

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/boardframe/internal/auth"
	lua "github.com/louisbranch/boardframe/internal/engine/oracle/lua"
	"github.com/louisbranch/boardframe/internal/engine/session"
	apperrors "github.com/louisbranch/boardframe/internal/errors"
	"github.com/louisbranch/boardframe/internal/protocol"
	"github.com/louisbranch/boardframe/internal/storage"
	storagesqlite "github.com/louisbranch/boardframe/internal/storage/sqlite"
	ws "github.com/louisbranch/boardframe/internal/transport/websocket"
)

// Command is one UI action executed on the session's event loop.
type Command func(ctx context.Context, store *session.Store) error

// RuntimeConfig wires one frame session.
type RuntimeConfig struct {
	HostURL     string
	Token       string
	TokenSecret string
	ScriptPath  string
	// JournalPath enables the SQLite session journal when non-empty.
	JournalPath     string
	AutoSubmitDelay time.Duration

	// Commands delivers UI actions; nil runs the session without a UI.
	Commands <-chan Command
}

// Run executes a frame session until the context is cancelled or the
// connection drops.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	verifier := auth.Verifier{Secret: []byte(cfg.TokenSecret)}
	claims, err := verifier.Validate(cfg.Token)
	if err != nil {
		return err
	}

	oracle, err := lua.NewFromFile(cfg.ScriptPath)
	if err != nil {
		return err
	}

	var journal storage.Journal
	if cfg.JournalPath != "" {
		store, err := storagesqlite.Open(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer store.Close()
		journal = store
	}

	client, err := ws.Dial(ctx, cfg.HostURL, cfg.Token)
	if err != nil {
		return err
	}
	defer client.Close()

	events := make(chan func() error, 64)

	store, err := session.New(session.Config{
		Position:        claims.Position,
		Oracle:          oracle,
		Send:            func(msg protocol.Outbound) error { return client.Send(ctx, msg) },
		SessionID:       claims.GameID + "/" + claims.UserID,
		Journal:         journal,
		AutoSubmitDelay: cfg.AutoSubmitDelay,
		Schedule:        loopSchedule(ctx, events),
	})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			msg, err := client.Receive(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			select {
			case events <- func() error { return store.HandleMessage(ctx, msg) }:
			case <-ctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		if err := store.Ready(ctx); err != nil {
			return err
		}
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-events:
				handleLoopError(ev())
			case cmd, ok := <-cfg.Commands:
				if !ok {
					cfg.Commands = nil
					continue
				}
				handleLoopError(cmd(ctx, store))
			}
		}
	})

	return g.Wait()
}

// handleLoopError logs per-event failures. Stale-move races resolve
// themselves and stay quiet; everything else is logged and the session
// continues, since one bad message must not tear down the connection.
func handleLoopError(err error) {
	if err == nil || apperrors.RecoveredSilently(err) {
		return
	}
	if apperrors.Surfaced(err) {
		log.Printf("move failed: %v", err)
		return
	}
	log.Printf("session event: %v", err)
}

// loopSchedule returns a timer that routes its firing back onto the event
// loop, so auto-submission runs serialized with everything else.
func loopSchedule(ctx context.Context, events chan<- func() error) func(time.Duration, func()) func() {
	return func(d time.Duration, fire func()) func() {
		var cancelled atomic.Bool
		timer := time.AfterFunc(d, func() {
			queued := func() error {
				if !cancelled.Load() {
					fire()
				}
				return nil
			}
			select {
			case events <- queued:
			case <-ctx.Done():
			}
		})
		return func() {
			cancelled.Store(true)
			timer.Stop()
		}
	}
}
