package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
mode = "book"
log_level = "debug"

[indexer]
graphql_url = "https://indexer.example/graphql"
ws_url = "wss://indexer.example/ws"
request_timeout = "10s"

[network]
address_prefix = "tkn"
protocol_tag = "AGR0"
fee_address = "tkn1qqg3zyg3zyg3zyg3zyg3zyg3zyg3zyg3zyx0ctfz"
fee_divisor = 50

[book]
mirror_to_redis = false

[[book.assets]]
id = "asset-1"
decimals = 2

[[book.assets]]
id = "asset-2"

[server]
port = 9090
cors_origins = ["https://app.example"]
rate_window = "30s"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokenbook.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, ModeBook, cfg.Mode)
	assert.Equal(t, 10*time.Second, cfg.Indexer.RequestTimeout.Duration)
	assert.Equal(t, 200, cfg.Indexer.PageSize, "default kept")
	assert.Equal(t, uint64(50), cfg.Network.FeeDivisor)
	assert.Equal(t, []AssetConfig{{ID: "asset-1", Decimals: 2}, {ID: "asset-2"}}, cfg.Book.Assets)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RateWindow.Duration)
	assert.Equal(t, time.Minute, cfg.Overview.RefreshInterval.Duration)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TOKENBOOK_MODE", "overview")
	t.Setenv("TOKENBOOK_INDEXER_PAGE_SIZE", "25")
	t.Setenv("TOKENBOOK_NETWORK_FEE_DIVISOR", "7")
	t.Setenv("TOKENBOOK_BOOK_ASSETS", "x:8, y")
	t.Setenv("TOKENBOOK_SERVER_CORS_ORIGINS", "a, ,b")
	t.Setenv("TOKENBOOK_OVERVIEW_REFRESH_INTERVAL", "15s")

	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, ModeOverview, cfg.Mode)
	assert.Equal(t, 25, cfg.Indexer.PageSize)
	assert.Equal(t, uint64(7), cfg.Network.FeeDivisor)
	assert.Equal(t, []AssetConfig{{ID: "x", Decimals: 8}, {ID: "y"}}, cfg.Book.Assets)
	assert.Equal(t, []string{"a", "b"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 15*time.Second, cfg.Overview.RefreshInterval.Duration)
}

func TestLoad_BadAssetsEnv(t *testing.T) {
	t.Setenv("TOKENBOOK_BOOK_ASSETS", "x:abc")
	_, err := Load("")
	assert.ErrorContains(t, err, "TOKENBOOK_BOOK_ASSETS")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate_OverviewDefaults(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "OVERVIEW"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeOverview, cfg.Mode)
	assert.True(t, cfg.RunsOverview())
	assert.False(t, cfg.RunsBooks())
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = ModeFull
	cfg.LogLevel = "loud"
	cfg.Book.Assets = []AssetConfig{{ID: "a"}, {ID: "a", Decimals: 40}}
	cfg.Overview.MetadataSource = "postgres"
	cfg.Overview.ExportEnabled = true
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"log_level",
		"protocol_tag",
		"fee_address",
		`duplicate id "a"`,
		"decimals must be 0-18",
		"mirror_to_redis requires redis.addr",
		"postgres: host or dsn",
		"s3: bucket",
		"server: port",
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestValidate_FeeAddress(t *testing.T) {
	base := Defaults()
	base.Mode = ModeBook
	base.Network.ProtocolTag = "AGR0"
	base.Book.MirrorToRedis = false
	base.Book.Assets = []AssetConfig{{ID: "a"}}

	cases := []struct {
		name    string
		address string
		want    string
	}{
		{"valid", "tkn1qqg3zyg3zyg3zyg3zyg3zyg3zyg3zyg3zyx0ctfz", ""},
		{"not bech32", "tkn:fee", "network: fee_address: codec: bech32"},
		{"other network", "tbx1qqg3zyg3zyg3zyg3zyg3zyg3zyg3zyg3zyx0ctfz", "network: fee_address"},
		{"script hash", "tkn1pqg3zyg3zyg3zyg3zyg3zyg3zyg3zyg3zyglzujq", "public-key-hash"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			cfg.Network.FeeAddress = tc.address
			err := cfg.Validate()
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestValidate_UnknownMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	assert.ErrorContains(t, cfg.Validate(), `unknown mode "trade"`)
}

func TestRedacted(t *testing.T) {
	cfg := Defaults()
	cfg.Indexer.APIKey = "k"
	cfg.S3.SecretKey = "s"
	cfg.Book.Assets = []AssetConfig{{ID: "a"}}

	out := Redacted(&cfg)
	assert.Equal(t, "***", out.Indexer.APIKey)
	assert.Equal(t, "***", out.S3.SecretKey)
	assert.Empty(t, out.Redis.Password)

	out.Book.Assets[0].ID = "changed"
	assert.Equal(t, "a", cfg.Book.Assets[0].ID)
	assert.Equal(t, "k", cfg.Indexer.APIKey)
}
