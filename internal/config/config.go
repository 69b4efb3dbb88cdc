// Package config binds the server's environment surface through Viper,
// following the example corpus's pattern of defaults-then-env-override
// rather than hand-rolled os.Getenv parsing.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full environment surface the server binary reads.
type Config struct {
	ListenAddr    string        `mapstructure:"listen_addr"`
	AllowedOrigin string        `mapstructure:"allowed_origin"`
	StoreDir      string        `mapstructure:"store_dir"`

	DebounceDelay time.Duration `mapstructure:"debounce_delay"`
	TailSize      int           `mapstructure:"tail_size"`
	IdleEviction  time.Duration `mapstructure:"idle_eviction"`
	ShutdownDrain time.Duration `mapstructure:"shutdown_drain"`

	MaxDocumentSizeKB int           `mapstructure:"max_document_size_kb"`
	WSReadTimeout     time.Duration `mapstructure:"ws_read_timeout"`
	WSWriteTimeout    time.Duration `mapstructure:"ws_write_timeout"`
	BroadcastBuffer   int           `mapstructure:"broadcast_buffer_size"`

	SQLiteURI string `mapstructure:"sqlite_uri"`

	S3Bucket string `mapstructure:"s3_bucket"`
	S3Prefix string `mapstructure:"s3_prefix"`

	MetricsAddr string `mapstructure:"metrics_addr"`

	LogLevel Level  `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

// Level re-exports logger.Level's string values without importing
// pkg/logger, keeping config dependency-free of the logging stack.
type Level = string

// Load reads an optional .env file, then environment variables (each
// prefixed SYNCPAD_), then falls back to defaults. Unprefixed legacy
// names from the teacher's original env surface (PORT, SQLITE_URI,
// LOG_LEVEL, ...) are also honored for operators migrating
// an existing deployment.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetEnvPrefix("SYNCPAD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	bindLegacyEnv(v)

	var cfg Config
	cfg.ListenAddr = legacyAddr(v)
	cfg.AllowedOrigin = v.GetString("allowed_origin")
	cfg.StoreDir = v.GetString("store_dir")
	cfg.DebounceDelay = v.GetDuration("debounce_delay")
	cfg.TailSize = v.GetInt("tail_size")
	cfg.IdleEviction = v.GetDuration("idle_eviction")
	cfg.ShutdownDrain = v.GetDuration("shutdown_drain")
	cfg.MaxDocumentSizeKB = v.GetInt("max_document_size_kb")
	cfg.WSReadTimeout = v.GetDuration("ws_read_timeout")
	cfg.WSWriteTimeout = v.GetDuration("ws_write_timeout")
	cfg.BroadcastBuffer = v.GetInt("broadcast_buffer_size")
	cfg.SQLiteURI = v.GetString("sqlite_uri")
	cfg.S3Bucket = v.GetString("s3_bucket")
	cfg.S3Prefix = v.GetString("s3_prefix")
	cfg.MetricsAddr = v.GetString("metrics_addr")
	cfg.LogLevel = v.GetString("log_level")
	cfg.LogFile = v.GetString("log_file")

	if cfg.TailSize <= 0 {
		return cfg, fmt.Errorf("config: tail_size must be positive, got %d", cfg.TailSize)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":3030")
	v.SetDefault("allowed_origin", "")
	v.SetDefault("store_dir", "./data/documents")
	v.SetDefault("debounce_delay", 500*time.Millisecond)
	v.SetDefault("tail_size", 10)
	v.SetDefault("idle_eviction", 30*time.Minute)
	v.SetDefault("shutdown_drain", 30*time.Second)
	v.SetDefault("max_document_size_kb", 256)
	v.SetDefault("ws_read_timeout", 10*time.Minute)
	v.SetDefault("ws_write_timeout", 10*time.Second)
	v.SetDefault("broadcast_buffer_size", 64)
	v.SetDefault("sqlite_uri", "./data/audit.db")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_prefix", "")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
}

// bindLegacyEnv lets the teacher's original, unprefixed environment
// variable names keep working alongside the new SYNCPAD_-prefixed ones.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("sqlite_uri", "SQLITE_URI")
	_ = v.BindEnv("max_document_size_kb", "MAX_DOCUMENT_SIZE_KB")
	_ = v.BindEnv("broadcast_buffer_size", "BROADCAST_BUFFER_SIZE")
	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("log_file", "LOG_FILE")
}

func legacyAddr(v *viper.Viper) string {
	_ = v.BindEnv("raw_port", "PORT")
	if port := v.GetString("raw_port"); port != "" {
		if !strings.HasPrefix(port, ":") {
			return ":" + port
		}
		return port
	}
	return v.GetString("listen_addr")
}
