package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/mazestep/internal/database"
)

// Supported grid sizes for user-facing entry points.
const (
	MinSize = 3
	MaxSize = 200
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the mazestep configuration file.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	Connections ConnectionsConfig `yaml:"connections"`
	Maze        MazeConfig        `yaml:"maze"`
	Database    database.Config   `yaml:"database"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// RecordRuns writes a ledger row whenever a search finishes.
	RecordRuns bool `yaml:"record_runs"`
}

// ConnectionsConfig limits concurrent event streams.
type ConnectionsConfig struct {
	// MaxPerIP is the maximum concurrent streams from one address. 0 means
	// unlimited.
	MaxPerIP int `yaml:"max_per_ip"`

	// MaxTotal is the maximum concurrent streams overall. 0 means unlimited.
	MaxTotal int `yaml:"max_total"`
}

// WebSocketConfig holds WebSocket-specific settings.
type WebSocketConfig struct {
	// AllowedOrigins lists origins allowed to connect. Empty enforces
	// same-origin; "*" allows everything.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize caps inbound command frames, in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`
}

// MazeConfig holds defaults for new sessions.
type MazeConfig struct {
	Size int `yaml:"size"`
	// Seed is parsed by seed.Parse: blank for a clock seed, an integer, or
	// any text to hash.
	Seed         string        `yaml:"seed"`
	IgnoreWalls  bool          `yaml:"ignore_walls"`
	BatchSize    int           `yaml:"batch_size"`
	PlayInterval time.Duration `yaml:"play_interval"`
	PerTick      int           `yaml:"per_tick"`
}

// DefaultConfig returns a Config with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			RecordRuns:      true,
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: []string{},
			MaxMessageSize: 4096,
		},
		Connections: ConnectionsConfig{
			MaxPerIP: 4,
			MaxTotal: 100,
		},
		Maze: MazeConfig{
			Size:         20,
			BatchSize:    50,
			PlayInterval: 20 * time.Millisecond,
			PerTick:      1,
		},
		Database: database.DefaultConfig("data/mazestep.db"),
	}
}

// LoadConfig reads a YAML file over the defaults. A missing file is not an
// error.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return DefaultConfig(), err
	}
	return config, nil
}

// LoadDotEnv loads KEY=VALUE files into the environment without overwriting
// variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from MAZE_* variables.
func (c *Config) ApplyEnv() error {
	var errs []error
	intVar := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: %w", key, v, err))
				return
			}
			*dst = n
		}
	}
	boolVar := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: %w", key, v, err))
				return
			}
			*dst = b
		}
	}
	strVar := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	strVar("MAZE_ADDR", &c.Server.Addr)
	boolVar("MAZE_RECORD_RUNS", &c.Server.RecordRuns)
	intVar("MAZE_SIZE", &c.Maze.Size)
	strVar("MAZE_SEED", &c.Maze.Seed)
	boolVar("MAZE_IGNORE_WALLS", &c.Maze.IgnoreWalls)
	intVar("MAZE_BATCH_SIZE", &c.Maze.BatchSize)
	intVar("MAZE_PER_TICK", &c.Maze.PerTick)
	if v := os.Getenv("MAZE_PLAY_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAZE_PLAY_INTERVAL=%q: %w", v, err))
		} else {
			c.Maze.PlayInterval = d
		}
	}
	if v := os.Getenv("MAZE_ALLOWED_ORIGINS"); v != "" {
		c.WebSocket.AllowedOrigins = splitList(v)
	}

	strVar("MAZE_DB_DRIVER", &c.Database.Driver)
	strVar("MAZE_DB_PATH", &c.Database.SQLitePath)
	strVar("MAZE_PG_HOST", &c.Database.Postgres.Host)
	intVar("MAZE_PG_PORT", &c.Database.Postgres.Port)
	strVar("MAZE_PG_USER", &c.Database.Postgres.User)
	strVar("MAZE_PG_PASSWORD", &c.Database.Postgres.Password)
	strVar("MAZE_PG_DATABASE", &c.Database.Postgres.Database)
	strVar("MAZE_PG_SSLMODE", &c.Database.Postgres.SSLMode)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks ranges.
func (c *Config) Validate() error {
	var errs []error
	if err := ValidateSize(c.Maze.Size); err != nil {
		errs = append(errs, err)
	}
	if c.Maze.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("maze.batch_size %d must be at least 1", c.Maze.BatchSize))
	}
	if c.Maze.PerTick < 1 {
		errs = append(errs, fmt.Errorf("maze.per_tick %d must be at least 1", c.Maze.PerTick))
	}
	if c.Maze.PlayInterval < 0 {
		errs = append(errs, fmt.Errorf("maze.play_interval %v is negative", c.Maze.PlayInterval))
	}
	switch database.DialectType(c.Database.Driver) {
	case database.DialectSQLite, database.DialectPostgres:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not sqlite or postgres", c.Database.Driver))
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		errs = append(errs, fmt.Errorf("websocket.max_message_size %d must be positive", c.WebSocket.MaxMessageSize))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ValidateSize enforces the supported grid size range.
func ValidateSize(size int) error {
	if size < MinSize || size > MaxSize {
		return fmt.Errorf("%w: size %d outside [%d, %d]", ErrInvalidConfig, size, MinSize, MaxSize)
	}
	return nil
}

// IsOriginAllowed reports whether origin may open a WebSocket: "*" or an
// exact match in AllowedOrigins, or same-origin when the list is empty.
func (c *WebSocketConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// isSameOrigin treats a missing Origin header as same-origin (non-browser
// clients don't send one).
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true
	}
	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	return strings.TrimSuffix(originHost, "/") == requestHost
}
