package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	DBSchema    string

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Identity provider admin API.
	IdentityBaseURL string
	IdentityAPIKey  string
	IdentityTimeout time.Duration

	// HS256 secret validating bearer session tokens (>= 32 bytes).
	SessionTokenSecret string

	// Shared secret verifying webhook signatures ("whsec_..." form).
	WebhookSecret string

	// Push relay credentials.
	RelayAppID   string
	RelayKey     string
	RelaySecret  string
	RelayCluster string
	RelayTimeout time.Duration

	// Base64 32-byte key sealing shared account passwords.
	AccountSealKey string

	// Session policy.
	MaxActiveSessions int
	RevokeConcurrency int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("CARTEIRA_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("CARTEIRA_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("CARTEIRA_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("CARTEIRA_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("CARTEIRA_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("CARTEIRA_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("CARTEIRA_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("CARTEIRA_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("CARTEIRA_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("CARTEIRA_DB_MIN_CONNS", 0),
		DBSchema:    EnvString("CARTEIRA_DB_SCHEMA", "carteira"),

		ReadinessRequireDB: EnvBool("CARTEIRA_READINESS_REQUIRE_DB", false),

		IdentityBaseURL: EnvString("CARTEIRA_IDENTITY_BASE_URL", ""),
		IdentityAPIKey:  EnvString("CARTEIRA_IDENTITY_API_KEY", ""),
		IdentityTimeout: EnvDuration("CARTEIRA_IDENTITY_TIMEOUT", 10*time.Second),

		SessionTokenSecret: EnvString("CARTEIRA_SESSION_TOKEN_SECRET", ""),

		WebhookSecret: EnvString("CARTEIRA_WEBHOOK_SECRET", ""),

		RelayAppID:   EnvString("CARTEIRA_RELAY_APP_ID", ""),
		RelayKey:     EnvString("CARTEIRA_RELAY_KEY", ""),
		RelaySecret:  EnvString("CARTEIRA_RELAY_SECRET", ""),
		RelayCluster: EnvString("CARTEIRA_RELAY_CLUSTER", "mt1"),
		RelayTimeout: EnvDuration("CARTEIRA_RELAY_TIMEOUT", 10*time.Second),

		AccountSealKey: EnvString("CARTEIRA_ACCOUNT_SEAL_KEY", ""),

		MaxActiveSessions: EnvInt("CARTEIRA_MAX_ACTIVE_SESSIONS", 1),
		RevokeConcurrency: EnvInt("CARTEIRA_REVOKE_CONCURRENCY", 4),
	}
}

// ValidateConfig fails fast on startup when a required secret is missing or
// too weak, instead of rejecting every request later.
func ValidateConfig(cfg Config) error {
	if cfg.WebhookSecret == "" {
		return errMissing("CARTEIRA_WEBHOOK_SECRET")
	}
	if len(cfg.SessionTokenSecret) < 32 {
		return errMissing("CARTEIRA_SESSION_TOKEN_SECRET (min 32 bytes)")
	}
	if cfg.IdentityBaseURL == "" || cfg.IdentityAPIKey == "" {
		return errMissing("CARTEIRA_IDENTITY_BASE_URL / CARTEIRA_IDENTITY_API_KEY")
	}
	if cfg.RelayAppID == "" || cfg.RelayKey == "" || cfg.RelaySecret == "" {
		return errMissing("CARTEIRA_RELAY_APP_ID / CARTEIRA_RELAY_KEY / CARTEIRA_RELAY_SECRET")
	}
	if cfg.DatabaseURL != "" && cfg.AccountSealKey == "" {
		return errMissing("CARTEIRA_ACCOUNT_SEAL_KEY")
	}
	return nil
}

type configError string

func (e configError) Error() string { return "config: " + string(e) + " is required" }

func errMissing(name string) error { return configError(name) }
