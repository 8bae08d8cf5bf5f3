// Package config defines the tokenbook configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/tokenbook/internal/codec"
	"github.com/alanyoungcy/tokenbook/internal/domain"
)

// Run modes.
const (
	ModeBook     = "book"
	ModeOverview = "overview"
	ModeFull     = "full"
)

// Metadata sources for the overview.
const (
	MetadataIndexer  = "indexer"
	MetadataPostgres = "postgres"
)

// Config is the root configuration. Fields are populated from a TOML file
// and then optionally overridden by TOKENBOOK_* environment variables.
type Config struct {
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
	Indexer  IndexerConfig  `toml:"indexer"`
	Network  NetworkConfig  `toml:"network"`
	Book     BookConfig     `toml:"book"`
	Overview OverviewConfig `toml:"overview"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
}

// IndexerConfig points at the chain indexing service.
type IndexerConfig struct {
	GraphQLURL     string   `toml:"graphql_url"`
	WSURL          string   `toml:"ws_url"`
	APIKey         string   `toml:"api_key"`
	PageSize       int      `toml:"page_size"`
	RequestTimeout duration `toml:"request_timeout"`
}

// NetworkConfig holds the chain and protocol constants offers are checked
// against.
type NetworkConfig struct {
	AddressPrefix string `toml:"address_prefix"`
	ProtocolTag   string `toml:"protocol_tag"`
	FeeAddress    string `toml:"fee_address"`
	FeeDivisor    uint64 `toml:"fee_divisor"`
}

// AssetConfig names one asset whose offer book is tracked.
type AssetConfig struct {
	ID       string `toml:"id"`
	Decimals int32  `toml:"decimals"`
}

// BookConfig selects the offer books to keep live.
type BookConfig struct {
	Assets        []AssetConfig `toml:"assets"`
	MirrorToRedis bool          `toml:"mirror_to_redis"`
}

// OverviewConfig controls the market overview refresh and export.
type OverviewConfig struct {
	RefreshInterval duration `toml:"refresh_interval"`
	MetadataSource  string   `toml:"metadata_source"`
	ExportEnabled   bool     `toml:"export_enabled"`
	ExportPrefix    string   `toml:"export_prefix"`
	ExportInterval  duration `toml:"export_interval"`
}

// RedisConfig holds Redis connection parameters. An empty Addr disables
// Redis.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// PostgresConfig holds PostgreSQL connection parameters for the token
// registry.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// duration lets TOML strings like "30s" decode into a time.Duration.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the values used when the file
// and environment say nothing.
func Defaults() Config {
	return Config{
		Mode:     ModeFull,
		LogLevel: "info",
		Indexer: IndexerConfig{
			GraphQLURL:     "http://localhost:8080/graphql",
			WSURL:          "ws://localhost:8080/ws",
			PageSize:       200,
			RequestTimeout: duration{30 * time.Second},
		},
		Network: NetworkConfig{
			AddressPrefix: "tkn",
			FeeDivisor:    100,
		},
		Book: BookConfig{MirrorToRedis: true},
		Overview: OverviewConfig{
			RefreshInterval: duration{time.Minute},
			MetadataSource:  MetadataIndexer,
			ExportPrefix:    "overview",
			ExportInterval:  duration{time.Hour},
		},
		Redis: RedisConfig{
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "tokenbook",
		},
		Postgres: PostgresConfig{
			Port:         5432,
			SSLMode:      "disable",
			PoolMaxConns: 5,
			PoolMinConns: 1,
		},
		S3: S3Config{
			Region: "us-east-1",
			UseSSL: true,
		},
		Server: ServerConfig{
			Enabled:    true,
			Port:       8080,
			RateLimit:  120,
			RateWindow: duration{time.Minute},
		},
	}
}

// RunsBooks reports whether the mode keeps offer books live.
func (c *Config) RunsBooks() bool { return c.Mode == ModeBook || c.Mode == ModeFull }

// RunsOverview reports whether the mode maintains the market overview.
func (c *Config) RunsOverview() bool { return c.Mode == ModeOverview || c.Mode == ModeFull }

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool { return strings.TrimSpace(c.Redis.Addr) != "" }

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks Config for invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	switch c.Mode {
	case ModeBook, ModeOverview, ModeFull:
	default:
		add("unknown mode %q (valid: book, overview, full)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	if c.Indexer.GraphQLURL == "" {
		add("indexer: graphql_url must not be empty")
	}
	if c.Indexer.PageSize < 1 {
		add("indexer: page_size must be >= 1")
	}
	if c.Indexer.RequestTimeout.Duration <= 0 {
		add("indexer: request_timeout must be > 0")
	}

	if c.RunsBooks() {
		if c.Indexer.WSURL == "" {
			add("indexer: ws_url is required for mode %s", c.Mode)
		}
		if c.Network.AddressPrefix == "" {
			add("network: address_prefix must not be empty")
		}
		if c.Network.ProtocolTag == "" {
			add("network: protocol_tag must not be empty")
		}
		if c.Network.FeeAddress == "" {
			add("network: fee_address must not be empty")
		} else if c.Network.AddressPrefix != "" {
			typ, _, err := codec.NewBech32Encoder(c.Network.AddressPrefix).Decode(c.Network.FeeAddress)
			switch {
			case err != nil:
				add("network: fee_address: %v", err)
			case typ != codec.PubKeyHash:
				add("network: fee_address must be a public-key-hash address")
			}
		}
		if c.Network.FeeDivisor == 0 {
			add("network: fee_divisor must be > 0")
		}
		if len(c.Book.Assets) == 0 {
			add("book: at least one asset is required for mode %s", c.Mode)
		}
		seen := make(map[string]bool, len(c.Book.Assets))
		for i, a := range c.Book.Assets {
			switch {
			case a.ID == "":
				add("book: assets[%d]: id must not be empty", i)
			case seen[a.ID]:
				add("book: assets[%d]: duplicate id %q", i, a.ID)
			}
			seen[a.ID] = true
			if a.Decimals < 0 || a.Decimals > domain.MaxDecimals {
				add("book: assets[%d]: decimals must be 0-%d, got %d", i, domain.MaxDecimals, a.Decimals)
			}
		}
		if c.Book.MirrorToRedis && !c.RedisEnabled() {
			add("book: mirror_to_redis requires redis.addr")
		}
	}

	if c.RunsOverview() {
		if c.Overview.RefreshInterval.Duration <= 0 {
			add("overview: refresh_interval must be > 0")
		}
		switch c.Overview.MetadataSource {
		case MetadataIndexer:
		case MetadataPostgres:
			if strings.TrimSpace(c.Postgres.DSN) == "" && c.Postgres.Host == "" {
				add("postgres: host or dsn is required when overview.metadata_source is postgres")
			}
		default:
			add("overview: unknown metadata_source %q (valid: indexer, postgres)", c.Overview.MetadataSource)
		}
		if c.Overview.ExportEnabled {
			if c.S3.Bucket == "" {
				add("s3: bucket is required when overview.export_enabled is set")
			}
			if c.Overview.ExportInterval.Duration <= 0 {
				add("overview: export_interval must be > 0")
			}
		}
	}

	if c.RedisEnabled() && c.Redis.PoolSize < 1 {
		add("redis: pool_size must be >= 1")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		add("postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server: port must be 1-65535, got %d", c.Server.Port)
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			add("server: rate_window must be > 0 when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
