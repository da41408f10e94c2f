// Package storage defines the session journal contracts.
//
// The journal records every accepted snapshot and every submitted move for a
// frame session, in arrival order, so a disconnect or resync can be diagnosed
// after the fact and a session can be replayed offline.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// EntryKind discriminates journal entries.
type EntryKind string

const (
	KindSnapshot EntryKind = "snapshot"
	KindMove     EntryKind = "move"
	KindAck      EntryKind = "ack"
)

// Entry is one durable journal record.
type Entry struct {
	ID        int64
	SessionID string
	Kind      EntryKind
	// Sequence is the snapshot sequence the entry was recorded at.
	Sequence float64
	// Name holds the move name for move and ack entries.
	Name    string
	Payload []byte
	// Detail carries the ack error message, empty for accepted moves.
	Detail    string
	CreatedAt time.Time
}

// Journal persists session entries in append order.
type Journal interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, sessionID string) ([]Entry, error)
	Close() error
}
