// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/alphahub/internal/logger"
	"github.com/woozymasta/alphahub/internal/vars"
)

// ReplayAll marks a failover replay without a lower time bound.
const ReplayAll = "all"

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Admin API Options" env-namespace:"ALPHAHUB"`
	Storage   Storage       `group:"Storage Options" namespace:"db" env-namespace:"ALPHAHUB_DB"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"ALPHAHUB_GEOIP"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"ALPHAHUB_RATE_LIMIT"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"ALPHAHUB_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds admin API configuration.
type Server struct {
	// betteralign:ignore

	Address    string `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Admin API listen address" default:"127.0.0.1:8086"`
	AuthToken  string `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Admin authentication token"`
	TrustProxy bool   `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
	MaxList    int    `long:"max-list" env:"MAX_LIST" description:"Upper bound for list endpoints" default:"500"`
}

// Storage holds database configuration and maintenance switches.
type Storage struct {
	// betteralign:ignore

	Driver          string        `long:"driver" env:"DRIVER" description:"Storage driver" choice:"sqlite" choice:"postgres" default:"sqlite"`
	Path            string        `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"alphahub.db"`
	DSN             string        `long:"dsn" env:"DSN" description:"Driver DSN, overrides --db-path (required for postgres)"`
	MaxOpenConns    int           `long:"max-open-conns" env:"MAX_OPEN_CONNS" description:"Max open connections" default:"10"`
	MaxIdleConns    int           `long:"max-idle-conns" env:"MAX_IDLE_CONNS" description:"Max idle connections" default:"5"`
	ConnMaxLifetime time.Duration `long:"conn-max-lifetime" env:"CONN_MAX_LIFETIME" description:"Max connection lifetime" default:"1h"`
	Stats           bool          `long:"stats" description:"Print table statistics and exit"`
	ReplayFailover  string        `long:"replay-failover" description:"Dump failover packets as JSON lines in arrival order and exit. Optional arg: RFC3339 lower bound." optional:"true" optional-value:"all"`
	PruneFailover   time.Duration `long:"prune-failover" description:"Delete failover packets older than the given age and exit"`
	GenerateCount   int           `long:"gen-fake-data" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file, empty disables country lookup" default:"alphahub.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// RateLimit holds admin API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	Count  int           `long:"count" env:"COUNT" description:"Requests per IP within the window" default:"60"`
	Window time.Duration `long:"window" env:"WINDOW" description:"Rate limit window duration" default:"1m"`
}

// ErrNoAuthToken is returned when the admin token is missing.
var ErrNoAuthToken = errors.New("required flag `-t, --auth-token' or environment variable `ALPHAHUB_AUTH_TOKEN` was not specified")

// Maintenance reports whether a one-shot maintenance task was requested.
func (c *Config) Maintenance() bool {
	s := c.Storage
	return s.Stats || s.ReplayFailover != "" || s.PruneFailover > 0 || s.GenerateCount > 0
}

// Load parses args into a Config. Help output is written to w.
func Load(args []string, w io.Writer) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			_, _ = fmt.Fprintln(w, flagsErr.Message)
		}
		return nil, err
	}

	if cfg.Version {
		return &cfg, nil
	}

	// Maintenance runs on the local database only and needs no admin token.
	if cfg.Server.AuthToken == "" && !cfg.Maintenance() {
		return nil, ErrNoAuthToken
	}
	if cfg.RateLimit.Count <= 0 || cfg.RateLimit.Window <= 0 {
		return nil, fmt.Errorf("rate limit count and window must be positive")
	}

	return &cfg, nil
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := Load(os.Args[1:], os.Stdout)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	return cfg
}
