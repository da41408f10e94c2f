// Package frame parses frame command flags and launches the frame runtime.
package frame

import (
	"context"
	"flag"
	"time"

	"github.com/louisbranch/boardframe/internal/frame"
	entrypoint "github.com/louisbranch/boardframe/internal/platform/cmd"
)

// Config holds frame command configuration.
type Config struct {
	HostURL         string        `env:"BOARDFRAME_HOST_URL" envDefault:"ws://localhost:8080/session"`
	Token           string        `env:"BOARDFRAME_SESSION_TOKEN"`
	TokenSecret     string        `env:"BOARDFRAME_TOKEN_SECRET"`
	ScriptPath      string        `env:"BOARDFRAME_RULES_SCRIPT" envDefault:"rules/game.lua"`
	JournalPath     string        `env:"BOARDFRAME_JOURNAL_PATH"`
	AutoSubmitDelay time.Duration `env:"BOARDFRAME_AUTO_SUBMIT_DELAY" envDefault:"500ms"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HostURL, "host-url", cfg.HostURL, "The host session websocket URL")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "The session token issued by the host")
	fs.StringVar(&cfg.TokenSecret, "token-secret", cfg.TokenSecret, "The session token verification secret")
	fs.StringVar(&cfg.ScriptPath, "rules-script", cfg.ScriptPath, "The Lua rules script path")
	fs.StringVar(&cfg.JournalPath, "journal-path", cfg.JournalPath, "The session journal SQLite path, empty disables")
	fs.DurationVar(&cfg.AutoSubmitDelay, "auto-submit-delay", cfg.AutoSubmitDelay, "Delay before sending system-forced moves")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the frame runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceFrame, func(ctx context.Context) error {
		return frame.Run(ctx, frame.RuntimeConfig{
			HostURL:         cfg.HostURL,
			Token:           cfg.Token,
			TokenSecret:     cfg.TokenSecret,
			ScriptPath:      cfg.ScriptPath,
			JournalPath:     cfg.JournalPath,
			AutoSubmitDelay: cfg.AutoSubmitDelay,
		})
	})
}
