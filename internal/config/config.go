package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

const defaultProgramID = "4MangoMjqJ2firMokCjjGgoK8d4MXcrgL7XJaL3w6fVg"

type LogConfig struct {
	Level      string
	Format     string
	Output     string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type RPCConfig struct {
	URL        string
	WSURL      string
	Commitment rpc.CommitmentType
	Timeout    time.Duration
	BatchSize  int
}

// ClientConfig drives the mango CLI.
type ClientConfig struct {
	RPC       RPCConfig
	ProgramID solana.PublicKey
	Log       LogConfig
}

type CrankConfig struct {
	RPC                           RPCConfig
	ProgramID                     solana.PublicKey
	KeypairPath                   string
	PerpMarkets                   []solana.PublicKey
	MintInfos                     []solana.PublicKey
	PollInterval                  time.Duration
	ConsumeEventsLimit            int
	TxTimeout                     time.Duration
	SkipPreflight                 bool
	MaxRetries                    *uint
	ComputeUnitLimit              uint32
	ComputeUnitPriceMicroLamports uint64
	MetricsAddr                   string
	Log                           LogConfig
}

type LogStreamConfig struct {
	RPC          RPCConfig
	ProgramID    solana.PublicKey
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	DedupeSize   int
	DBDSN        string
	PrintTraces  bool
	MetricsAddr  string
	Log          LogConfig
}

type APIServerConfig struct {
	ListenAddr     string
	DBDSN          string
	RPC            RPCConfig
	ProgramID      solana.PublicKey
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
	Log            LogConfig
}

func LoadClientConfig() (ClientConfig, error) {
	if err := ensureRuntimeConfigLoaded(); err != nil {
		return ClientConfig{}, err
	}

	rpcCfg, err := loadRPCConfig()
	if err != nil {
		return ClientConfig{}, err
	}
	programID, err := envPubkey("MANGO_PROGRAM_ID", solana.MustPublicKeyFromBase58(defaultProgramID))
	if err != nil {
		return ClientConfig{}, err
	}

	return ClientConfig{
		RPC:       rpcCfg,
		ProgramID: programID,
		Log:       buildLogConfig("CLIENT", "mango"),
	}, nil
}

func LoadCrankConfig() (CrankConfig, error) {
	if err := ensureRuntimeConfigLoaded(); err != nil {
		return CrankConfig{}, err
	}

	rpcCfg, err := loadRPCConfig()
	if err != nil {
		return CrankConfig{}, err
	}
	programID, err := envPubkey("MANGO_PROGRAM_ID", solana.MustPublicKeyFromBase58(defaultProgramID))
	if err != nil {
		return CrankConfig{}, err
	}

	keypairPath, err := expandHomePath(envOrDefault("CRANK_KEYPAIR_PATH", envOrDefault("SOLANA_KEYPAIR_PATH", "~/.config/solana/id.json")))
	if err != nil {
		return CrankConfig{}, fmt.Errorf("expand keypair path: %w", err)
	}

	perpMarkets, err := envPubkeyList("CRANK_PERP_MARKETS")
	if err != nil {
		return CrankConfig{}, err
	}
	mintInfos, err := envPubkeyList("CRANK_MINT_INFOS")
	if err != nil {
		return CrankConfig{}, err
	}
	if len(perpMarkets) == 0 && len(mintInfos) == 0 {
		return CrankConfig{}, errors.New("crank has nothing to do: set CRANK_PERP_MARKETS and/or CRANK_MINT_INFOS")
	}

	pollInterval, err := envDuration("CRANK_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return CrankConfig{}, err
	}
	consumeLimit, err := envInt("CRANK_CONSUME_EVENTS_LIMIT", 10)
	if err != nil {
		return CrankConfig{}, err
	}
	txTimeout, err := envDuration("CRANK_TX_TIMEOUT", 30*time.Second)
	if err != nil {
		return CrankConfig{}, err
	}
	skipPreflight, err := envBool("CRANK_SKIP_PREFLIGHT", false)
	if err != nil {
		return CrankConfig{}, err
	}
	maxRetries, err := envOptionalUint("CRANK_MAX_RETRIES")
	if err != nil {
		return CrankConfig{}, err
	}
	cuLimit, err := envUint32("CRANK_COMPUTE_UNIT_LIMIT", 0)
	if err != nil {
		return CrankConfig{}, err
	}
	cuPrice, err := envUint64("CRANK_COMPUTE_UNIT_PRICE_MICRO_LAMPORTS", 0)
	if err != nil {
		return CrankConfig{}, err
	}

	return CrankConfig{
		RPC:                           rpcCfg,
		ProgramID:                     programID,
		KeypairPath:                   keypairPath,
		PerpMarkets:                   perpMarkets,
		MintInfos:                     mintInfos,
		PollInterval:                  pollInterval,
		ConsumeEventsLimit:            consumeLimit,
		TxTimeout:                     txTimeout,
		SkipPreflight:                 skipPreflight,
		MaxRetries:                    maxRetries,
		ComputeUnitLimit:              cuLimit,
		ComputeUnitPriceMicroLamports: cuPrice,
		MetricsAddr:                   envOrDefault("CRANK_METRICS_ADDR", ":9091"),
		Log:                           buildLogConfig("CRANK", "crank"),
	}, nil
}

func LoadLogStreamConfig() (LogStreamConfig, error) {
	if err := ensureRuntimeConfigLoaded(); err != nil {
		return LogStreamConfig{}, err
	}

	rpcCfg, err := loadRPCConfig()
	if err != nil {
		return LogStreamConfig{}, err
	}
	programID, err := envPubkey("MANGO_PROGRAM_ID", solana.MustPublicKeyFromBase58(defaultProgramID))
	if err != nil {
		return LogStreamConfig{}, err
	}
	reconnectMin, err := envDuration("LOGSTREAM_RECONNECT_MIN", time.Second)
	if err != nil {
		return LogStreamConfig{}, err
	}
	reconnectMax, err := envDuration("LOGSTREAM_RECONNECT_MAX", 30*time.Second)
	if err != nil {
		return LogStreamConfig{}, err
	}
	if reconnectMax < reconnectMin {
		return LogStreamConfig{}, fmt.Errorf("invalid LOGSTREAM_RECONNECT_MAX: must be >= LOGSTREAM_RECONNECT_MIN")
	}
	dedupeSize, err := envInt("LOGSTREAM_DEDUPE_SIZE", 4096)
	if err != nil {
		return LogStreamConfig{}, err
	}
	dbDSN := envOrDefault("LOGSTREAM_DB_DSN", "")
	// Without a database the traces go to stdout unless explicitly disabled.
	printTraces, err := envBool("LOGSTREAM_PRINT_TRACES", dbDSN == "")
	if err != nil {
		return LogStreamConfig{}, err
	}

	return LogStreamConfig{
		RPC:          rpcCfg,
		ProgramID:    programID,
		ReconnectMin: reconnectMin,
		ReconnectMax: reconnectMax,
		DedupeSize:   dedupeSize,
		DBDSN:        dbDSN,
		PrintTraces:  printTraces,
		MetricsAddr:  envOrDefault("LOGSTREAM_METRICS_ADDR", ":9090"),
		Log:          buildLogConfig("LOGSTREAM", "logstream"),
	}, nil
}

func LoadAPIServerConfig() (APIServerConfig, error) {
	if err := ensureRuntimeConfigLoaded(); err != nil {
		return APIServerConfig{}, err
	}

	rpcCfg, err := loadRPCConfig()
	if err != nil {
		return APIServerConfig{}, err
	}
	programID, err := envPubkey("MANGO_PROGRAM_ID", solana.MustPublicKeyFromBase58(defaultProgramID))
	if err != nil {
		return APIServerConfig{}, err
	}

	readTimeout, err := envDuration("API_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return APIServerConfig{}, err
	}
	writeTimeout, err := envDuration("API_SERVER_WRITE_TIMEOUT", 15*time.Second)
	if err != nil {
		return APIServerConfig{}, err
	}
	idleTimeout, err := envDuration("API_SERVER_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return APIServerConfig{}, err
	}

	return APIServerConfig{
		ListenAddr:     envOrDefault("API_SERVER_LISTEN_ADDR", ":8080"),
		DBDSN:          envOrDefault("API_SERVER_DB_DSN", envOrDefault("LOGSTREAM_DB_DSN", "")),
		RPC:            rpcCfg,
		ProgramID:      programID,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		IdleTimeout:    idleTimeout,
		AllowedOrigins: parseCSVEnv(envOrDefault("API_SERVER_ALLOWED_ORIGINS", "*"), []string{"*"}),
		Log:            buildLogConfig("API_SERVER", "api-server"),
	}, nil
}

type ConfigSource struct {
	Phase  string
	Path   string
	Loaded bool
}

func CurrentConfigSource() (ConfigSource, error) {
	if err := ensureRuntimeConfigLoaded(); err != nil {
		return ConfigSource{}, err
	}
	return ConfigSource{
		Phase:  runtimeConfigPhase,
		Path:   runtimeConfigPath,
		Loaded: runtimeConfigLoaded,
	}, nil
}

func loadRPCConfig() (RPCConfig, error) {
	commitment, err := envCommitment("SOLANA_COMMITMENT", rpc.CommitmentConfirmed)
	if err != nil {
		return RPCConfig{}, err
	}
	timeout, err := envDuration("SOLANA_RPC_TIMEOUT", 20*time.Second)
	if err != nil {
		return RPCConfig{}, err
	}
	batchSize, err := envInt("SOLANA_RPC_BATCH_SIZE", 100)
	if err != nil {
		return RPCConfig{}, err
	}

	url := envOrDefault("SOLANA_RPC_URL", rpc.MainNetBeta_RPC)
	return RPCConfig{
		URL:        url,
		WSURL:      envOrDefault("SOLANA_WS_URL", websocketURL(url)),
		Commitment: commitment,
		Timeout:    timeout,
		BatchSize:  batchSize,
	}, nil
}

// websocketURL derives the pubsub endpoint the way solana-test-validator and
// most providers lay it out: same host, ws scheme.
func websocketURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://127.0.0.1:8899"), strings.HasPrefix(httpURL, "http://localhost:8899"):
		return strings.Replace(strings.Replace(httpURL, "http://", "ws://", 1), ":8899", ":8900", 1)
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	default:
		return httpURL
	}
}

func buildLogConfig(prefix string, serviceName string) LogConfig {
	level := envOrDefault(prefix+"_LOG_LEVEL", envOrDefault("LOG_LEVEL", "info"))
	format := envOrDefault(prefix+"_LOG_FORMAT", envOrDefault("LOG_FORMAT", "text"))
	output := envOrDefault(prefix+"_LOG_OUTPUT", envOrDefault("LOG_OUTPUT", "console"))
	filePath := envOrDefault(prefix+"_LOG_FILE", envOrDefault("LOG_FILE", filepath.Join("logs", serviceName, serviceName+".log")))

	return LogConfig{
		Level:      level,
		Format:     format,
		Output:     output,
		FilePath:   filePath,
		MaxSizeMB:  cast.ToInt(envOrDefault(prefix+"_LOG_MAX_SIZE_MB", envOrDefault("LOG_MAX_SIZE_MB", "100"))),
		MaxBackups: cast.ToInt(envOrDefault(prefix+"_LOG_MAX_BACKUPS", envOrDefault("LOG_MAX_BACKUPS", "5"))),
		MaxAgeDays: cast.ToInt(envOrDefault(prefix+"_LOG_MAX_AGE_DAYS", envOrDefault("LOG_MAX_AGE_DAYS", "14"))),
		Compress:   cast.ToBool(envOrDefault(prefix+"_LOG_COMPRESS", envOrDefault("LOG_COMPRESS", "false"))),
	}
}

func envPubkey(key string, fallback solana.PublicKey) (solana.PublicKey, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return pk, nil
}

func envPubkeyList(key string) ([]solana.PublicKey, error) {
	parts := parseCSVEnv(valueForKey(key), nil)
	out := make([]solana.PublicKey, 0, len(parts))
	seen := make(map[solana.PublicKey]struct{}, len(parts))
	for _, part := range parts {
		pk, err := solana.PublicKeyFromBase58(part)
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q: %w", key, part, err)
		}
		if _, ok := seen[pk]; ok {
			continue
		}
		seen[pk] = struct{}{}
		out = append(out, pk)
	}
	return out, nil
}

func envCommitment(key string, fallback rpc.CommitmentType) (rpc.CommitmentType, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	switch strings.ToLower(raw) {
	case string(rpc.CommitmentProcessed):
		return rpc.CommitmentProcessed, nil
	case string(rpc.CommitmentConfirmed):
		return rpc.CommitmentConfirmed, nil
	case string(rpc.CommitmentFinalized):
		return rpc.CommitmentFinalized, nil
	default:
		return "", fmt.Errorf("invalid %s: %q (expected processed|confirmed|finalized)", key, raw)
	}
}

// envParse reads key through parse, returning fallback when the key is unset.
func envParse[T any](key string, fallback T, parse func(any) (T, error)) (T, error) {
	raw := strings.TrimSpace(valueForKey(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := parse(raw)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	d, err := envParse(key, fallback, cast.ToDurationE)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be > 0", key)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v, err := envParse(key, fallback, cast.ToIntE)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be > 0", key)
	}
	return v, nil
}

func envUint64(key string, fallback uint64) (uint64, error) {
	return envParse(key, fallback, cast.ToUint64E)
}

func envUint32(key string, fallback uint32) (uint32, error) {
	return envParse(key, fallback, cast.ToUint32E)
}

func envOptionalUint(key string) (*uint, error) {
	if strings.TrimSpace(valueForKey(key)) == "" {
		return nil, nil
	}
	v, err := envParse(key, uint(0), cast.ToUintE)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func envBool(key string, fallback bool) (bool, error) {
	return envParse(key, fallback, cast.ToBoolE)
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(valueForKey(key)); value != "" {
		return value
	}
	return fallback
}

func parseCSVEnv(raw string, fallback []string) []string {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func expandHomePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return homeDir, nil
		}
		return filepath.Join(homeDir, strings.TrimPrefix(path, "~/")), nil
	}
	return path, nil
}

var (
	runtimeConfigOnce   sync.Once
	runtimeConfigErr    error
	runtimeConfigValues map[string]string
	runtimeConfigLoaded bool
	runtimeConfigPath   string
	runtimeConfigPhase  string
)

// ensureRuntimeConfigLoaded reads config/config-<CONFIG_PHASE>.yaml (or
// CONFIG_FILE) once. Nested keys are flattened to upper snake case so that
// rpc.url and SOLANA_RPC_URL style lookups share one namespace; environment
// variables always win.
func ensureRuntimeConfigLoaded() error {
	runtimeConfigOnce.Do(func() {
		runtimeConfigValues = make(map[string]string)

		phase := strings.TrimSpace(os.Getenv("CONFIG_PHASE"))
		if phase == "" {
			phase = "local"
		}
		runtimeConfigPhase = phase

		configPath := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
		explicitPath := configPath != ""
		if configPath == "" {
			configPath = filepath.Join("config", "config-"+phase+".yaml")
		}

		body, err := os.ReadFile(configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && !explicitPath {
				return
			}
			runtimeConfigErr = fmt.Errorf("read config file %q: %w", configPath, err)
			return
		}

		raw := make(map[string]any)
		if err := yaml.Unmarshal(body, &raw); err != nil {
			runtimeConfigErr = fmt.Errorf("parse config file %q: %w", configPath, err)
			return
		}

		flattened, err := flattenConfig(raw)
		if err != nil {
			runtimeConfigErr = fmt.Errorf("flatten config file %q: %w", configPath, err)
			return
		}

		runtimeConfigValues = flattened
		runtimeConfigLoaded = true
		if absPath, err := filepath.Abs(configPath); err == nil {
			runtimeConfigPath = absPath
		} else {
			runtimeConfigPath = configPath
		}
	})
	return runtimeConfigErr
}

func flattenConfig(raw map[string]any) (map[string]string, error) {
	out := make(map[string]string)
	for key, value := range raw {
		segment := normalizeKeySegment(key)
		if segment == "" {
			continue
		}
		if err := flattenConfigValue(segment, value, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func flattenConfigValue(prefix string, value any, out map[string]string) error {
	switch typed := value.(type) {
	case map[string]any:
		for key, child := range typed {
			segment := normalizeKeySegment(key)
			if segment == "" {
				continue
			}
			if err := flattenConfigValue(prefix+"_"+segment, child, out); err != nil {
				return err
			}
		}
		return nil
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			text, err := cast.ToStringE(item)
			if err != nil {
				return fmt.Errorf("unsupported list item type %T under %q", item, prefix)
			}
			if text = strings.TrimSpace(text); text != "" {
				parts = append(parts, text)
			}
		}
		out[prefix] = strings.Join(parts, ",")
		return nil
	case nil:
		return nil
	default:
		text, err := cast.ToStringE(typed)
		if err != nil {
			return fmt.Errorf("unsupported value type %T under %q", typed, prefix)
		}
		out[prefix] = text
		return nil
	}
}

func normalizeKeySegment(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw))
	lastUnderscore := false

	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	return strings.Trim(b.String(), "_")
}

func valueForKey(key string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}

	if err := ensureRuntimeConfigLoaded(); err != nil {
		return ""
	}

	return strings.TrimSpace(runtimeConfigValues[key])
}
