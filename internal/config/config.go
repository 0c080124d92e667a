// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/acrc-community/acrc/internal/logger"
	"github.com/acrc-community/acrc/internal/vars"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Server Options" env-namespace:"ACRC"`
	Storage   Storage       `group:"Storage Options" namespace:"db" env-namespace:"ACRC_DB"`
	Content   Content       `group:"Content Options" namespace:"content" env-namespace:"ACRC_CONTENT"`
	Probe     Probe         `group:"Probe Options" namespace:"probe" env-namespace:"ACRC_PROBE"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"ACRC_GEOIP"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"ACRC_RATE_LIMIT"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"ACRC_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address       string `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	AuthToken     string `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Admin authentication token"`
	MaxUploadSize string `long:"max-upload-size" env:"MAX_UPLOAD_SIZE" description:"Max size of an uploaded car archive" default:"50MB"`
	PublicURL     string `long:"public-url" env:"PUBLIC_URL" description:"Absolute URL prefix for generated download links"`
	TrustProxy    bool   `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`

	// UploadLimit is MaxUploadSize in bytes, filled by Validate.
	UploadLimit int64 `no-flag:"true"`
}

// Storage holds database configuration and maintenance switches.
type Storage struct {
	// betteralign:ignore

	Path           string `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"acrc.db"`
	RefreshAll     bool   `long:"refresh-all" description:"Re-probe ALL servers, store their status and exit"`
	RefreshOffline bool   `long:"refresh-offline" description:"Re-probe servers marked offline, store their status and exit"`
	PruneMissing   bool   `long:"prune-missing" description:"Delete cars whose archive file is missing on disk and exit"`
	GenerateCount  int    `long:"gen-fake-data" hidden:"true"`
}

// Content holds the on-disk locations of uploaded and extracted car archives.
type Content struct {
	// betteralign:ignore

	UploadDir  string `long:"upload-dir" env:"UPLOAD_DIR" description:"Directory for uploaded car archives" default:"uploads"`
	ExtractDir string `long:"extract-dir" env:"EXTRACT_DIR" description:"Directory for extracted car archives" default:"uploads/extracted"`
}

// Probe holds Assetto Corsa server HTTP API probing configuration.
type Probe struct {
	// betteralign:ignore

	PingTimeout     time.Duration `long:"ping-timeout" env:"PING_TIMEOUT" description:"Timeout of the /api/ping liveness check" default:"3s"`
	DetailsTimeout  time.Duration `long:"details-timeout" env:"DETAILS_TIMEOUT" description:"Timeout of the /api/details request" default:"5s"`
	RefreshInterval time.Duration `long:"refresh-interval" env:"REFRESH_INTERVAL" description:"Periodic status refresh of all servers (0 disables)" default:"0"`
	SoftLimitDur    time.Duration `long:"soft" env:"SOFT" description:"Skip scheduled refresh if server was refreshed within duration" default:"1m"`
	Workers         int           `long:"workers" env:"WORKERS" description:"Number of background refresh workers" default:"4"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file" default:"acrc.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Hard IP limit: requests count" default:"60"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Hard IP limit: window duration" default:"1m"`
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	return &cfg
}

// Validate checks cross-field constraints and fills derived values.
func (c *Config) Validate() error {
	if c.Server.AuthToken == "" {
		return errors.New("required flag `-t, --auth-token' or environment variable `ACRC_AUTH_TOKEN` was not specified")
	}

	size, err := humanize.ParseBytes(c.Server.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("invalid --max-upload-size %q: %w", c.Server.MaxUploadSize, err)
	}
	if size == 0 {
		return errors.New("--max-upload-size must be greater than zero")
	}
	c.Server.UploadLimit = int64(size)

	if c.Probe.PingTimeout <= 0 || c.Probe.DetailsTimeout <= 0 {
		return errors.New("probe timeouts must be positive")
	}
	if c.Probe.Workers < 1 {
		c.Probe.Workers = 1
	}
	if c.RateLimit.HardLimitCount < 1 || c.RateLimit.HardLimitWin <= 0 {
		return errors.New("rate limit count and window must be positive")
	}

	return nil
}
