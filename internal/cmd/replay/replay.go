// Package replay parses replay command flags and dumps a session journal.
package replay

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	entrypoint "github.com/louisbranch/boardframe/internal/platform/cmd"
	storagesqlite "github.com/louisbranch/boardframe/internal/storage/sqlite"
)

// Config holds replay command configuration.
type Config struct {
	JournalPath string `env:"BOARDFRAME_JOURNAL_PATH" envDefault:"data/journal.db"`
	SessionID   string `env:"BOARDFRAME_SESSION_ID"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.JournalPath, "journal-path", cfg.JournalPath, "The session journal SQLite path")
	fs.StringVar(&cfg.SessionID, "session-id", cfg.SessionID, "The session to replay")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run prints a session's journal entries in append order.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceReplay, func(ctx context.Context) error {
		return run(ctx, cfg, os.Stdout)
	})
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	if cfg.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	store, err := storagesqlite.Open(cfg.JournalPath)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(ctx, cfg.SessionID)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Fprintf(out, "%s seq=%g %s %s %s\n",
			entry.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
			entry.Sequence,
			entry.Kind,
			entry.Name,
			entry.Detail,
		)
	}
	return nil
}
