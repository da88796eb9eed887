package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetRuntimeConfig(t *testing.T) {
	t.Helper()
	reset := func() {
		runtimeConfigOnce = sync.Once{}
		runtimeConfigErr = nil
		runtimeConfigValues = nil
		runtimeConfigLoaded = false
		runtimeConfigPath = ""
		runtimeConfigPhase = ""
	}
	reset()
	t.Cleanup(reset)
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNormalizeKeySegment(t *testing.T) {
	cases := map[string]string{
		"rpc":             "RPC",
		"  batch-size  ":  "BATCH_SIZE",
		"perp.markets":    "PERP_MARKETS",
		"__weird__key__":  "WEIRD_KEY",
		"":                "",
		"compute unit 2x": "COMPUTE_UNIT_2X",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeKeySegment(in), in)
	}
}

func TestFlattenConfig(t *testing.T) {
	out, err := flattenConfig(map[string]any{
		"solana": map[string]any{
			"rpc-url":    "http://localhost:8899",
			"commitment": "finalized",
		},
		"crank": map[string]any{
			"perp_markets":   []any{"a", " b ", ""},
			"poll_interval":  "2s",
			"skip_preflight": true,
			"max_retries":    3,
		},
		"empty": nil,
	})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8899", out["SOLANA_RPC_URL"])
	assert.Equal(t, "finalized", out["SOLANA_COMMITMENT"])
	assert.Equal(t, "a,b", out["CRANK_PERP_MARKETS"])
	assert.Equal(t, "2s", out["CRANK_POLL_INTERVAL"])
	assert.Equal(t, "true", out["CRANK_SKIP_PREFLIGHT"])
	assert.Equal(t, "3", out["CRANK_MAX_RETRIES"])
	assert.NotContains(t, out, "EMPTY")
}

func TestFlattenConfigRejectsNestedLists(t *testing.T) {
	_, err := flattenConfig(map[string]any{
		"x": []any{map[string]any{"a": 1}},
	})
	require.Error(t, err)
}

func TestWebsocketURL(t *testing.T) {
	assert.Equal(t, "wss://api.mainnet-beta.solana.com", websocketURL("https://api.mainnet-beta.solana.com"))
	assert.Equal(t, "ws://127.0.0.1:8900", websocketURL("http://127.0.0.1:8899"))
	assert.Equal(t, "ws://rpc.internal:80", websocketURL("http://rpc.internal:80"))
}

func TestLoadClientConfigDefaults(t *testing.T) {
	resetRuntimeConfig(t)
	t.Setenv("CONFIG_PHASE", "nonexistent-phase")

	cfg, err := LoadClientConfig()
	require.NoError(t, err)
	assert.Equal(t, rpc.MainNetBeta_RPC, cfg.RPC.URL)
	assert.Equal(t, rpc.CommitmentConfirmed, cfg.RPC.Commitment)
	assert.Equal(t, 100, cfg.RPC.BatchSize)
	assert.Equal(t, solana.MustPublicKeyFromBase58(defaultProgramID), cfg.ProgramID)
	assert.Equal(t, "info", cfg.Log.Level)

	src, err := CurrentConfigSource()
	require.NoError(t, err)
	assert.False(t, src.Loaded)
	assert.Equal(t, "nonexistent-phase", src.Phase)
}

func TestLoadCrankConfigFromFileWithEnvOverride(t *testing.T) {
	market := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	resetRuntimeConfig(t)
	t.Setenv("CONFIG_FILE", writeConfigFile(t, `
solana:
  rpc_url: http://127.0.0.1:8899
  commitment: processed
crank:
  keypair_path: /tmp/crank.json
  perp_markets:
    - `+market.String()+`
    - `+market.String()+`
  mint_infos: `+mint.String()+`
  poll_interval: 2s
  consume_events_limit: 8
  max_retries: 0
`))
	t.Setenv("CRANK_POLL_INTERVAL", "750ms")

	cfg, err := LoadCrankConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8899", cfg.RPC.URL)
	assert.Equal(t, "ws://127.0.0.1:8900", cfg.RPC.WSURL)
	assert.Equal(t, rpc.CommitmentProcessed, cfg.RPC.Commitment)
	assert.Equal(t, "/tmp/crank.json", cfg.KeypairPath)
	assert.Equal(t, []solana.PublicKey{market}, cfg.PerpMarkets)
	assert.Equal(t, []solana.PublicKey{mint}, cfg.MintInfos)
	assert.Equal(t, 750*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 8, cfg.ConsumeEventsLimit)
	require.NotNil(t, cfg.MaxRetries)
	assert.Equal(t, uint(0), *cfg.MaxRetries)

	src, err := CurrentConfigSource()
	require.NoError(t, err)
	assert.True(t, src.Loaded)
}

func TestLoadCrankConfigErrors(t *testing.T) {
	t.Run("nothing to crank", func(t *testing.T) {
		resetRuntimeConfig(t)
		t.Setenv("CONFIG_PHASE", "nonexistent-phase")
		_, err := LoadCrankConfig()
		require.Error(t, err)
	})

	t.Run("bad market key", func(t *testing.T) {
		resetRuntimeConfig(t)
		t.Setenv("CONFIG_PHASE", "nonexistent-phase")
		t.Setenv("CRANK_PERP_MARKETS", "not-a-key")
		_, err := LoadCrankConfig()
		require.ErrorContains(t, err, "CRANK_PERP_MARKETS")
	})

	t.Run("bad commitment", func(t *testing.T) {
		resetRuntimeConfig(t)
		t.Setenv("CONFIG_PHASE", "nonexistent-phase")
		t.Setenv("CRANK_PERP_MARKETS", solana.NewWallet().PublicKey().String())
		t.Setenv("SOLANA_COMMITMENT", "recent")
		_, err := LoadCrankConfig()
		require.ErrorContains(t, err, "SOLANA_COMMITMENT")
	})

	t.Run("non-positive interval", func(t *testing.T) {
		resetRuntimeConfig(t)
		t.Setenv("CONFIG_PHASE", "nonexistent-phase")
		t.Setenv("CRANK_PERP_MARKETS", solana.NewWallet().PublicKey().String())
		t.Setenv("CRANK_POLL_INTERVAL", "-1s")
		_, err := LoadCrankConfig()
		require.ErrorContains(t, err, "CRANK_POLL_INTERVAL")
	})
}

func TestExplicitMissingConfigFileFails(t *testing.T) {
	resetRuntimeConfig(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadAPIServerConfig()
	require.Error(t, err)
}

func TestLoadLogStreamConfigReconnectBounds(t *testing.T) {
	resetRuntimeConfig(t)
	t.Setenv("CONFIG_PHASE", "nonexistent-phase")
	t.Setenv("LOGSTREAM_RECONNECT_MIN", "10s")
	t.Setenv("LOGSTREAM_RECONNECT_MAX", "1s")
	_, err := LoadLogStreamConfig()
	require.Error(t, err)
}

func TestLoadLogStreamConfigPrintTraces(t *testing.T) {
	resetRuntimeConfig(t)
	t.Setenv("CONFIG_PHASE", "nonexistent-phase")
	t.Setenv("LOGSTREAM_DB_DSN", "")

	cfg, err := LoadLogStreamConfig()
	require.NoError(t, err)
	assert.True(t, cfg.PrintTraces)

	t.Setenv("LOGSTREAM_DB_DSN", "postgres://localhost/traces")
	cfg, err = LoadLogStreamConfig()
	require.NoError(t, err)
	assert.False(t, cfg.PrintTraces)

	t.Setenv("LOGSTREAM_PRINT_TRACES", "true")
	cfg, err = LoadLogStreamConfig()
	require.NoError(t, err)
	assert.True(t, cfg.PrintTraces)
}

func TestLoadAPIServerConfigOrigins(t *testing.T) {
	resetRuntimeConfig(t)
	t.Setenv("CONFIG_PHASE", "nonexistent-phase")
	t.Setenv("API_SERVER_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("LOGSTREAM_DB_DSN", "postgres://localhost/traces")

	cfg, err := LoadAPIServerConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "postgres://localhost/traces", cfg.DBDSN)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}
