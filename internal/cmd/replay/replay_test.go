package replay

import (
	"context"
	"flag"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/boardframe/internal/storage"
	storagesqlite "github.com/louisbranch/boardframe/internal/storage/sqlite"
)

func TestRunPrintsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := storagesqlite.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if err := store.Append(context.Background(), storage.Entry{
		SessionID: "game-1/user-1",
		Kind:      storage.KindMove,
		Sequence:  4.5,
		Name:      "advance",
		CreatedAt: now,
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	var out strings.Builder
	err = run(context.Background(), Config{JournalPath: path, SessionID: "game-1/user-1"}, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "seq=4.5 move advance") {
		t.Fatalf("output = %q, want move entry line", out.String())
	}
}

func TestRunRequiresSessionID(t *testing.T) {
	if err := run(context.Background(), Config{JournalPath: "x.db"}, &strings.Builder{}); err == nil {
		t.Fatal("expected error without session id")
	}
}

func TestParseConfigFlags(t *testing.T) {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-session-id", "game-9/user-2"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.SessionID != "game-9/user-2" {
		t.Fatalf("session id = %q, want flag value", cfg.SessionID)
	}
}
