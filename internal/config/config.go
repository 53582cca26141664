// Package config loads causeway configuration: a CUE schema with defaults,
// unified with an optional user file.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/causeway/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// Checkpoint backends.
const (
	BackendNone   = "none"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config is the decoded, fully concrete configuration.
type Config struct {
	InboxCapacity      int        `json:"inbox_capacity"`
	OutboxCapacity     int        `json:"outbox_capacity"`
	Partitioned        bool       `json:"partitioned"`
	NonConflictingTags []string   `json:"non_conflicting_tags"`
	Checkpoint         Checkpoint `json:"checkpoint"`
	HTTPAddr           string     `json:"http_addr"`
	LogLevel           string     `json:"log_level"`
}

// Checkpoint configures where the delivered clock is persisted.
type Checkpoint struct {
	Backend  string `json:"backend"`
	Path     string `json:"path"`
	Interval int    `json:"interval"`
}

// Error reports an invalid configuration, with the CUE position when known.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: config: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("config: %s", e.Message)
}

// Default returns the configuration with every field at its default.
func Default() (Config, error) {
	return LoadBytes("", nil)
}

// Load reads a CUE file and unifies it with the schema.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return LoadBytes(path, data)
}

// LoadBytes unifies CUE source with the schema. filename is used in error
// positions only. nil data yields the defaults.
func LoadBytes(filename string, data []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}
	value := schema.LookupPath(cue.ParsePath("#Config"))

	if data != nil {
		user := ctx.CompileBytes(data, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return Config{}, formatCUEError(err)
		}
		value = value.Unify(user)
	}

	if err := value.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err)
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return Config{}, formatCUEError(err)
	}
	return cfg, nil
}

// Classifier returns the commit classifier the configuration selects.
func (c Config) Classifier() ir.Classifier {
	if !c.Partitioned {
		return ir.AllConflicting
	}
	return ir.TagClassifier(c.NonConflictingTags...)
}

// SlogLevel maps LogLevel to a slog level. Unknown values map to Info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}

	first := errs[0]
	e := &Error{Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}
