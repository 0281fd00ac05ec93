package config

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const PROD_STRING = "prod"

const (
	keyAppEnv          = "app_env"
	keyProdOrigins     = "prod_origins"
	keyHTTPAddr        = "http_addr"
	keyDBDSN           = "db_dsn"
	keyDBMaxConns      = "db_max_conns"
	keyJWTSecret       = "jwt_secret"
	keyJWTTTL          = "jwt_access_token_ttl"
	keyFingerprintKey  = "fingerprint_key"
	keyHoldLockTimeout = "hold_lock_timeout"
	keySweepInterval   = "sweep_interval"
	keySweepBatchSize  = "sweep_batch_size"
	keyScoreDecayAge   = "score_decay_age"
)

var defaults = map[string]string{
	keyAppEnv:          "dev",
	keyProdOrigins:     "",
	keyHTTPAddr:        ":8080",
	keyDBMaxConns:      "0",
	keyJWTTTL:          "15m",
	keyHoldLockTimeout: "2s",
	keySweepInterval:   "1m",
	keySweepBatchSize:  "200",
	keyScoreDecayAge:   "24h",
}

// Config holds all application configuration loaded from flags and environment.
type Config struct {
	IsProduction      bool
	ProdOrigins       []string
	HTTPAddr          string
	DBDSN             string
	DBMaxConns        int32
	JWTSecret         string
	JWTAccessTokenTTL time.Duration
	FingerprintKey    string
	HoldLockTimeout   time.Duration
	SweepInterval     time.Duration // zero disables the in-process sweeper
	SweepBatchSize    int
	ScoreDecayAge     time.Duration
}

// RegisterFlags adds the flags Load understands. Flag names are the keys with dashes,
// e.g. --http-addr for HTTP_ADDR.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(flagName(keyHTTPAddr), defaults[keyHTTPAddr], "HTTP listen address")
	fs.String(flagName(keyDBDSN), "", "PostgreSQL connection string")
	fs.Duration(flagName(keySweepInterval), time.Minute, "interval between in-process sweeps (0 disables)")
	fs.Int(flagName(keySweepBatchSize), 200, "rows per sweep batch")
}

// Load loads configuration from .env (optional), environment variables and, when fs is not nil,
// command line flags. Flags win over the environment.
func Load(fs *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("failed to load .env file: %v", err)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range []string{
		keyAppEnv, keyProdOrigins, keyHTTPAddr, keyDBDSN, keyDBMaxConns, keyJWTSecret, keyJWTTTL,
		keyFingerprintKey, keyHoldLockTimeout, keySweepInterval, keySweepBatchSize, keyScoreDecayAge,
	} {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
		if fs == nil {
			continue
		}
		if f := fs.Lookup(flagName(key)); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
			}
		}
	}

	cfg := &Config{
		IsProduction:   v.GetString(keyAppEnv) == PROD_STRING,
		ProdOrigins:    splitCSV(v.GetString(keyProdOrigins)),
		HTTPAddr:       v.GetString(keyHTTPAddr),
		DBDSN:          v.GetString(keyDBDSN),
		JWTSecret:      v.GetString(keyJWTSecret),
		FingerprintKey: v.GetString(keyFingerprintKey),
	}

	var err error
	if cfg.JWTAccessTokenTTL, err = getDuration(v, keyJWTTTL); err != nil {
		return nil, err
	}
	if cfg.HoldLockTimeout, err = getDuration(v, keyHoldLockTimeout); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getDuration(v, keySweepInterval); err != nil {
		return nil, err
	}
	if cfg.ScoreDecayAge, err = getDuration(v, keyScoreDecayAge); err != nil {
		return nil, err
	}
	if cfg.SweepBatchSize, err = getInt(v, keySweepBatchSize); err != nil {
		return nil, err
	}
	if cfg.SweepBatchSize <= 0 {
		return nil, fmt.Errorf("invalid %s: must be positive", envName(keySweepBatchSize))
	}
	maxConns, err := getInt(v, keyDBMaxConns)
	if err != nil {
		return nil, err
	}
	cfg.DBMaxConns = int32(maxConns)

	return cfg, nil
}

// Validate checks the settings every database-backed command needs.
func (c *Config) Validate() error {
	var errs []error
	if c.DBDSN == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.FingerprintKey == "" {
		errs = append(errs, errors.New("FINGERPRINT_KEY is required"))
	}
	return errors.Join(errs...)
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func envName(key string) string {
	return strings.ToUpper(key)
}

// getDuration parses a duration such as "15m" or "2s". Flags report durations in the same form.
func getDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", envName(key), err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", envName(key))
	}
	return d, nil
}

func getInt(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", envName(key), raw, err)
	}
	return n, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
