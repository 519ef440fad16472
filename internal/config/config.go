package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Lifecycle    LifecycleConfig
	Settlement   SettlementConfig
	Worker       WorkerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	// ConnectAttempts bounds the startup ping loop.
	ConnectAttempts int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	MirrorTTLMins int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Format is "json" (default) or "console".
	Format string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	// ServiceKeys maps a service name to the bcrypt hash of its secret.
	ServiceKeys map[string]string
}

// NotificationConfig holds notifier delivery settings.
type NotificationConfig struct {
	KafkaBrokers   []string
	KafkaTopic     string
	TimeoutSeconds int
}

// LifecycleConfig tunes the transition executor.
type LifecycleConfig struct {
	MaxAttempts     int
	GuardPolicyPath string
}

// SettlementConfig describes the stake escrow on chain.
type SettlementConfig struct {
	Network              string
	RPCURL               string
	EscrowAddress        string
	EscrowPrivateKey     string
	TreasuryAddress      string
	StakeAmount          float64
	StakeCurrency        string
	StrictRecipientCheck bool
}

// WorkerConfig controls the reconciliation job.
type WorkerConfig struct {
	Enabled                  bool
	ReconcileIntervalSeconds int
	LookbackHours            int
	NoShowGraceMinutes       int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	stakeAmount, err := strconv.ParseFloat(getEnv("SETTLEMENT_STAKE_AMOUNT", "0.01"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SETTLEMENT_STAKE_AMOUNT: %w", err)
	}

	serviceKeys, err := parseServiceKeys(os.Getenv("AUTH_SERVICE_KEYS"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_SERVICE_KEYS: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-lifecycle-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			MaxConns:        maxConns,
			MinConns:        minConns,
			RunMigrations:   runMigrations,
			MigrationsDir:   getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec:  connMaxIdle,
			ConnMaxLifeSec:  connMaxLife,
			ConnectAttempts: getEnvAsInt("POSTGRES_CONNECT_ATTEMPTS", 5),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			MirrorTTLMins: getEnvAsInt("REDIS_MIRROR_TTL_MINUTES", 0),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			ServiceKeys:           serviceKeys,
		},
		Notification: NotificationConfig{
			KafkaBrokers:   getEnvAsList("NOTIFY_KAFKA_BROKERS"),
			KafkaTopic:     getEnv("NOTIFY_KAFKA_TOPIC", "lifecycle.notifications"),
			TimeoutSeconds: getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 5),
		},
		Lifecycle: LifecycleConfig{
			MaxAttempts:     getEnvAsInt("LIFECYCLE_MAX_ATTEMPTS", 3),
			GuardPolicyPath: os.Getenv("LIFECYCLE_GUARD_POLICY_PATH"),
		},
		Settlement: SettlementConfig{
			Network:              getEnv("SETTLEMENT_NETWORK", "sepolia"),
			RPCURL:               os.Getenv("SETTLEMENT_RPC_URL"),
			EscrowAddress:        os.Getenv("SETTLEMENT_ESCROW_ADDRESS"),
			EscrowPrivateKey:     os.Getenv("SETTLEMENT_ESCROW_PRIVATE_KEY"),
			TreasuryAddress:      os.Getenv("SETTLEMENT_TREASURY_ADDRESS"),
			StakeAmount:          stakeAmount,
			StakeCurrency:        getEnv("SETTLEMENT_STAKE_CURRENCY", "ETH"),
			StrictRecipientCheck: getEnvAsBool("SETTLEMENT_STRICT_RECIPIENT_CHECK", false),
		},
		Worker: WorkerConfig{
			Enabled:                  getEnvAsBool("WORKER_ENABLED", true),
			ReconcileIntervalSeconds: getEnvAsInt("WORKER_RECONCILE_INTERVAL_SECONDS", 300),
			LookbackHours:            getEnvAsInt("WORKER_LOOKBACK_HOURS", 24*14),
			NoShowGraceMinutes:       getEnvAsInt("WORKER_NO_SHOW_GRACE_MINUTES", 120),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// MirrorTTL returns how long mirrored statuses live in Redis; zero keeps them.
func (r RedisConfig) MirrorTTL() time.Duration {
	if r.MirrorTTLMins <= 0 {
		return 0
	}
	return time.Duration(r.MirrorTTLMins) * time.Minute
}

// Timeout bounds a single notifier delivery.
func (n NotificationConfig) Timeout() time.Duration {
	if n.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// Interval returns the reconciliation period.
func (w WorkerConfig) Interval() time.Duration {
	if w.ReconcileIntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(w.ReconcileIntervalSeconds) * time.Second
}

// Lookback returns how far back the reconciliation scan reaches.
func (w WorkerConfig) Lookback() time.Duration {
	return time.Duration(w.LookbackHours) * time.Hour
}

// NoShowGrace returns how long after an event ends a stake is forfeited.
func (w WorkerConfig) NoShowGrace() time.Duration {
	return time.Duration(w.NoShowGraceMinutes) * time.Minute
}

// parseServiceKeys reads "name=bcrypthash,name2=hash2".
func parseServiceKeys(raw string) (map[string]string, error) {
	keys := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return keys, nil
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, hash, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(hash) == "" {
			return nil, fmt.Errorf("malformed entry %q", part)
		}
		keys[strings.TrimSpace(name)] = strings.TrimSpace(hash)
	}
	return keys, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
