package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
)

// DefaultLinkUpTimeout bounds the wait for the network stack's link-up ack.
const DefaultLinkUpTimeout = 2 * time.Second

// Config holds all application configuration.
type Config struct {
	Addr          string
	GRPCPort      int
	ProfilePath   string
	MockMode      bool
	MockSeed      int64
	ReplayPath    string
	DBPath        string
	Debug         bool
	TraceSpans    bool
	APITokenHash  string
	LinkUpTimeout time.Duration
	QueueDepth    int

	// Adapters comes from the profile file, or from --station/--ap.
	Adapters []AdapterConfig
}

// Load parses command line flags and environment variables to populate Config.
// Flags take precedence over environment variables. It exits on bad input.
func Load() *Config {
	cfg, err := Parse(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	return cfg
}

// Parse is Load for an explicit argument list.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}

	// Defaults and Environment Variables
	stations := getEnv("WLCOORD_STATIONS", "wlan0")
	aps := getEnv("WLCOORD_APS", "")
	cfg.Addr = getEnv("WLCOORD_ADDR", ":8080")
	cfg.GRPCPort = getEnvInt("WLCOORD_GRPC", 9000)
	cfg.ProfilePath = getEnv("WLCOORD_PROFILE", "")
	cfg.MockMode = getEnvBool("WLCOORD_MOCK", false)
	cfg.ReplayPath = getEnv("WLCOORD_REPLAY", "")
	cfg.DBPath = getEnv("WLCOORD_DB", "")
	cfg.Debug = getEnvBool("WLCOORD_DEBUG", false)
	cfg.TraceSpans = getEnvBool("WLCOORD_TRACE", false)
	cfg.APITokenHash = getEnv("WLCOORD_API_TOKEN_HASH", "")
	cfg.LinkUpTimeout = getEnvDuration("WLCOORD_LINKUP_TIMEOUT", DefaultLinkUpTimeout)
	cfg.QueueDepth = getEnvInt("WLCOORD_QUEUE_DEPTH", 64)

	// Command Line Flags (Override Env)
	fs := flag.NewFlagSet("wlcoord", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&stations, "station", stations, "Station interface(s) (comma separated)")
	fs.StringVar(&aps, "ap", aps, "SoftAP interface(s) (comma separated)")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address")
	fs.IntVar(&cfg.GRPCPort, "grpc", cfg.GRPCPort, "gRPC health server port (0 to disable)")
	fs.StringVar(&cfg.ProfilePath, "profile", cfg.ProfilePath, "Path to TOML adapter profile")
	fs.BoolVar(&cfg.MockMode, "mock", cfg.MockMode, "Drive the adapters with a simulated SME")
	fs.Int64Var(&cfg.MockSeed, "mock-seed", time.Now().UnixNano(), "Seed for the simulated SME")
	fs.StringVar(&cfg.ReplayPath, "replay", cfg.ReplayPath, "Replay SME events from a JSON-lines file")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite notification journal (default ~/.wlcoord/journal.db, \"off\" to disable)")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable verbose debug logging")
	fs.BoolVar(&cfg.TraceSpans, "trace", cfg.TraceSpans, "Write OpenTelemetry spans to stderr")
	fs.StringVar(&cfg.APITokenHash, "api-token-hash", cfg.APITokenHash, "bcrypt hash of the event injection bearer token")
	fs.DurationVar(&cfg.LinkUpTimeout, "linkup-timeout", cfg.LinkUpTimeout, "Maximum wait for the link-up acknowledgment")
	fs.IntVar(&cfg.QueueDepth, "queue-depth", cfg.QueueDepth, "Per-adapter event queue depth")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.DBPath == "" {
		cfg.DBPath = getDefaultDBPath()
	}
	if cfg.LinkUpTimeout <= 0 {
		return nil, fmt.Errorf("linkup-timeout must be positive, got %s", cfg.LinkUpTimeout)
	}
	if cfg.QueueDepth < 1 {
		return nil, fmt.Errorf("queue-depth must be at least 1, got %d", cfg.QueueDepth)
	}

	if cfg.ProfilePath != "" {
		adapters, err := LoadProfile(cfg.ProfilePath)
		if err != nil {
			return nil, err
		}
		cfg.Adapters = adapters
	} else {
		cfg.Adapters = adaptersFromLists(parseInterfaces(stations), parseInterfaces(aps))
		if err := ValidateAdapters(cfg.Adapters); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// JournalEnabled reports whether notifications are persisted.
func (c *Config) JournalEnabled() bool {
	return c.DBPath != "" && c.DBPath != "off"
}

// LogLevel returns the slog level selected by --debug.
func (c *Config) LogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// adaptersFromLists builds default adapter entries with locally administered
// addresses 02:00:00:00:00:NN in declaration order.
func adaptersFromLists(stations, aps []string) []AdapterConfig {
	var out []AdapterConfig
	add := func(name string, role domain.Role) {
		n := byte(len(out) + 1)
		out = append(out, AdapterConfig{
			Name: name,
			Role:    role,
			MAC:     domain.HWAddr{0x02, 0, 0, 0, 0, n},
			Privacy: OpenPrivacy,
		})
	}
	for _, s := range stations {
		add(s, domain.RoleStation)
	}
	for _, a := range aps {
		add(a, domain.RoleAP)
	}
	return out
}

func parseInterfaces(s string) []string {
	var ifaces []string
	if s == "" {
		return ifaces
	}
	parts := strings.Split(s, ",")
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			ifaces = append(ifaces, trimmed)
		}
	}
	return ifaces
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getDefaultDBPath returns the default journal path in the user's home
// directory, creating ~/.wlcoord if needed.
func getDefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("could not get user home directory, using current dir", "error", err)
		return "wlcoord.db"
	}

	dir := filepath.Join(home, ".wlcoord")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("could not create .wlcoord directory, using current dir", "error", err)
		return "wlcoord.db"
	}

	return filepath.Join(dir, "journal.db")
}
