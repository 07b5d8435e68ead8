package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaCUE string

// Config is the decoded #Config.
type Config struct {
	Database  string          `json:"database"`
	Events    string          `json:"events"`
	Custody   string          `json:"custody"`
	Retention RetentionConfig `json:"retention"`
	Auth      AuthConfig      `json:"auth"`
	Log       LogConfig       `json:"log"`
}

// RetentionConfig is the registry retention window, in seconds.
type RetentionConfig struct {
	Threshold uint64 `json:"threshold"`
	ExtendTo  uint64 `json:"extendTo"`
}

// AuthConfig configures token authentication.
type AuthConfig struct {
	Secret string `json:"secret"`
	Issuer string `json:"issuer"`

	// TTL is parsed from TTLRaw.
	TTL    time.Duration `json:"-"`
	TTLRaw string        `json:"ttl"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns the configuration an empty file produces.
func Default() (*Config, error) {
	return decode(nil, "")
}

// Load reads the CUE or JSON file at path and unifies it with the schema.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data, path)
}

// Parse is Load for in-memory source. filename is used in error positions.
func Parse(src []byte, filename string) (*Config, error) {
	return decode([]byte(expandEnvVars(string(src))), filename)
}

func decode(src []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config"))

	if len(src) > 0 {
		user := ctx.CompileBytes(src, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		v = v.Unify(user)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("validating config: %w", errors.Join(toErrors(errs)...))
	}
	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with the value of VAR.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func parseDurations(cfg *Config) error {
	if cfg.Auth.TTLRaw == "" {
		return nil
	}
	d, err := time.ParseDuration(cfg.Auth.TTLRaw)
	if err != nil {
		return fmt.Errorf("auth.ttl: %w", err)
	}
	cfg.Auth.TTL = d
	return nil
}

// SlogLevel maps Log.Level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
