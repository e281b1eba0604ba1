// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/mcstatus/internal/logger"
	"github.com/woozymasta/mcstatus/internal/vars"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Server Options" env-namespace:"MCSTATUS"`
	Resolve   Resolve       `group:"Resolve Options" namespace:"resolve" env-namespace:"MCSTATUS_RESOLVE"`
	Storage   Storage       `group:"Storage Options" namespace:"db" env-namespace:"MCSTATUS_DB"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"MCSTATUS_GEOIP"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"MCSTATUS_RATE_LIMIT"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"MCSTATUS_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address       string        `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	BaseURL       string        `short:"u" long:"base-url" env:"BASE_URL" description:"Public URL of the service used in rendered links" default:""`
	AuthToken     string        `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Admin authentication token, admin API is disabled when empty"`
	DeniedHosts   []string      `long:"deny-host" env:"DENY_HOSTS" description:"List of hosts that are never resolved" env-delim:","`
	WatchInterval time.Duration `long:"watch-interval" env:"WATCH_INTERVAL" description:"Interval between websocket status pushes" default:"10s"`
	Workers       int           `long:"workers" env:"WORKERS" description:"Number of background registry workers" default:"4"`
	TrustProxy    bool          `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
}

// Resolve holds status resolution timeouts and discovery settings.
type Resolve struct {
	// betteralign:ignore

	SRVTimeout      time.Duration `long:"srv-timeout" env:"SRV_TIMEOUT" description:"SRV record lookup timeout" default:"2s"`
	PingTimeout     time.Duration `long:"ping-timeout" env:"PING_TIMEOUT" description:"Java status ping timeout" default:"5s"`
	QueryTimeout    time.Duration `long:"query-timeout" env:"QUERY_TIMEOUT" description:"Java query protocol timeout" default:"3s"`
	BedrockTimeout  time.Duration `long:"bedrock-timeout" env:"BEDROCK_TIMEOUT" description:"Bedrock ping timeout" default:"5s"`
	DNSServer       string        `long:"dns-server" env:"DNS_SERVER" description:"DNS server (host:port) for SRV lookups, system resolver when empty"`
	ProtocolVersion int           `long:"protocol-version" env:"PROTOCOL_VERSION" description:"Protocol version announced in the Java handshake" default:"765"`
}

// Storage holds database configuration.
type Storage struct {
	// betteralign:ignore

	Path          string        `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"mcstatus.db"`
	PruneOffline  time.Duration `long:"prune-offline" description:"Delete servers not seen online within the given duration and exit"`
	CheckAll      bool          `long:"check-all" description:"Re-resolve ALL tracked servers, update rows and exit"`
	GenerateCount int           `long:"gen-fake-data" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file" default:"mcstatus.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Hard IP limit: requests count" default:"30"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Hard IP limit: window duration" default:"1m"`
	SoftLimitDur   time.Duration `long:"soft" env:"SOFT" description:"Soft limit: skip registry update if the server was recorded within duration" default:"5m"`
}

// Default returns a configuration populated with the flag defaults, without reading arguments.
func Default() *Config {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.None)
	parser.NamespaceDelimiter = "-"
	_, _ = parser.ParseArgs(nil)

	return &cfg
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

	return &cfg
}
