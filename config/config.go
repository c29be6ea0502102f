package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"vote-program/ledger"
	"vote-program/models"
	"vote-program/storage"
)

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config is the node's process configuration. Every flag defaults to the
// matching VOTE_* environment variable when it is set.
type Config struct {
	Port            int
	StorageDir      string
	Backend         string
	PostgresDSN     string
	Layout          models.Layout
	Space           int
	BlockSize       int
	Difficulty      uint8
	Workers         int
	QueueSize       int
	ShutdownTimeout time.Duration
	LogLevel        zerolog.Level
	LogJSON         bool
}

func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("vote-program", flag.ContinueOnError)

	cfg := &Config{}
	var layout, logLevel string
	var difficulty int

	fs.IntVar(&cfg.Port, "port", envInt("VOTE_PORT", 8080), "Server port")
	fs.StringVar(&cfg.StorageDir, "storage", envString("VOTE_STORAGE_DIR", "data"), "Directory for account and ledger storage")
	fs.StringVar(&cfg.Backend, "backend", envString("VOTE_BACKEND", BackendFile), "Account backend: memory, file or postgres")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", envString("VOTE_POSTGRES_DSN", ""), "Postgres DSN for the postgres backend")
	fs.StringVar(&layout, "layout", envString("VOTE_LAYOUT", string(models.LayoutBallots)), "Account layout: counter (v1) or ballots (v2)")
	fs.IntVar(&cfg.Space, "space", envInt("VOTE_ACCOUNT_SPACE", storage.DefaultSpace), "Bytes allocated per account")
	fs.IntVar(&cfg.BlockSize, "block-size", envInt("VOTE_BLOCK_SIZE", ledger.DefaultBlockSize), "Receipts per ledger block")
	fs.IntVar(&difficulty, "difficulty", envInt("VOTE_DIFFICULTY", 1), "Mining difficulty in leading zero bytes (0-3)")
	fs.IntVar(&cfg.Workers, "workers", envInt("VOTE_WORKERS", 4), "Transaction worker count")
	fs.IntVar(&cfg.QueueSize, "queue", envInt("VOTE_QUEUE_SIZE", 64), "Transaction queue capacity")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", envDuration("VOTE_SHUTDOWN_TIMEOUT", 10*time.Second), "Graceful shutdown timeout")
	fs.StringVar(&logLevel, "log-level", envString("VOTE_LOG_LEVEL", "info"), "Log level")
	fs.BoolVar(&cfg.LogJSON, "log-json", envBool("VOTE_LOG_JSON", false), "Emit JSON logs instead of console output")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if difficulty < 0 || difficulty > models.MaxDifficulty {
		return nil, errors.Newf("difficulty must be between 0 and %d", models.MaxDifficulty)
	}
	cfg.Difficulty = uint8(difficulty)

	var err error
	if cfg.Layout, err = models.ParseLayout(layout); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = zerolog.ParseLevel(strings.ToLower(logLevel)); err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendFile:
	case BackendPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("postgres backend requires -postgres-dsn")
		}
	default:
		return errors.Newf("unknown backend %q", c.Backend)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Newf("invalid port %d", c.Port)
	}
	minimum := models.EncodedSize(c.Layout, models.VoteAccount{})
	if c.Space < minimum || c.Space > storage.MaxAccountSpace {
		return errors.Newf("space must be between %d and %d bytes", minimum, storage.MaxAccountSpace)
	}
	if c.Difficulty > models.MaxDifficulty {
		return errors.Newf("difficulty must be between 0 and %d", models.MaxDifficulty)
	}
	if c.BlockSize <= 0 {
		return errors.New("block size must be positive")
	}
	if c.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	if c.QueueSize < 0 {
		return errors.New("queue size must not be negative")
	}
	return nil
}

func envString(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(name)))
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(name string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(name)))
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
