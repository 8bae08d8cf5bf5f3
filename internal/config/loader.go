package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path over Defaults, loads a .env file when
// present and applies TOKENBOOK_* overrides. An empty path skips the file.
// The result has not been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	_ = godotenv.Load()

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose TOKENBOOK_* variable is set.
func applyEnvOverrides(cfg *Config) error {
	setStr(&cfg.Mode, "TOKENBOOK_MODE")
	setStr(&cfg.LogLevel, "TOKENBOOK_LOG_LEVEL")

	setStr(&cfg.Indexer.GraphQLURL, "TOKENBOOK_INDEXER_GRAPHQL_URL")
	setStr(&cfg.Indexer.WSURL, "TOKENBOOK_INDEXER_WS_URL")
	setStr(&cfg.Indexer.APIKey, "TOKENBOOK_INDEXER_API_KEY")
	setInt(&cfg.Indexer.PageSize, "TOKENBOOK_INDEXER_PAGE_SIZE")
	setDuration(&cfg.Indexer.RequestTimeout, "TOKENBOOK_INDEXER_REQUEST_TIMEOUT")

	setStr(&cfg.Network.AddressPrefix, "TOKENBOOK_NETWORK_ADDRESS_PREFIX")
	setStr(&cfg.Network.ProtocolTag, "TOKENBOOK_NETWORK_PROTOCOL_TAG")
	setStr(&cfg.Network.FeeAddress, "TOKENBOOK_NETWORK_FEE_ADDRESS")
	setUint64(&cfg.Network.FeeDivisor, "TOKENBOOK_NETWORK_FEE_DIVISOR")

	if v := os.Getenv("TOKENBOOK_BOOK_ASSETS"); v != "" {
		assets, err := parseAssets(v)
		if err != nil {
			return fmt.Errorf("config: TOKENBOOK_BOOK_ASSETS: %w", err)
		}
		cfg.Book.Assets = assets
	}
	setBool(&cfg.Book.MirrorToRedis, "TOKENBOOK_BOOK_MIRROR_TO_REDIS")

	setDuration(&cfg.Overview.RefreshInterval, "TOKENBOOK_OVERVIEW_REFRESH_INTERVAL")
	setStr(&cfg.Overview.MetadataSource, "TOKENBOOK_OVERVIEW_METADATA_SOURCE")
	setBool(&cfg.Overview.ExportEnabled, "TOKENBOOK_OVERVIEW_EXPORT_ENABLED")
	setStr(&cfg.Overview.ExportPrefix, "TOKENBOOK_OVERVIEW_EXPORT_PREFIX")
	setDuration(&cfg.Overview.ExportInterval, "TOKENBOOK_OVERVIEW_EXPORT_INTERVAL")

	setStr(&cfg.Redis.Addr, "TOKENBOOK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TOKENBOOK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TOKENBOOK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TOKENBOOK_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "TOKENBOOK_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "TOKENBOOK_REDIS_KEY_PREFIX")

	setStr(&cfg.Postgres.DSN, "TOKENBOOK_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TOKENBOOK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TOKENBOOK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TOKENBOOK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TOKENBOOK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TOKENBOOK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TOKENBOOK_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "TOKENBOOK_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.S3.Endpoint, "TOKENBOOK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TOKENBOOK_S3_REGION")
	setStr(&cfg.S3.Bucket, "TOKENBOOK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TOKENBOOK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TOKENBOOK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TOKENBOOK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TOKENBOOK_S3_FORCE_PATH_STYLE")

	setBool(&cfg.Server.Enabled, "TOKENBOOK_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TOKENBOOK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TOKENBOOK_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "TOKENBOOK_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "TOKENBOOK_SERVER_RATE_WINDOW")
	return nil
}

// parseAssets reads a comma-separated "id:decimals" list. A missing
// ":decimals" means zero.
func parseAssets(v string) ([]AssetConfig, error) {
	var out []AssetConfig
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, dec, hasDec := strings.Cut(part, ":")
		a := AssetConfig{ID: strings.TrimSpace(id)}
		if hasDec {
			n, err := strconv.ParseInt(strings.TrimSpace(dec), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("asset %q: bad decimals: %w", id, err)
			}
			a.Decimals = int32(n)
		}
		out = append(out, a)
	}
	return out, nil
}

// Each helper only mutates the target when the variable is set and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		var cleaned []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
