package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete configuration for the leadflow service.
type Config struct {
	Server   ServerConfig   `yaml:"server" env:"SERVER"`
	Redis    RedisConfig    `yaml:"redis" env:"REDIS"`
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`
	Handoff  HandoffConfig  `yaml:"handoff" env:"HANDOFF"`
	Learner  LearnerConfig  `yaml:"learner" env:"LEARNER"`
	Log      LogConfig      `yaml:"log" env:"LOG"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	TLSCertFile     string        `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile      string        `yaml:"tls_key_file" env:"TLS_KEY_FILE"`
}

// RedisConfig configures the shared redis client used by the lock manager
// and the rate-limit counters.
type RedisConfig struct {
	Addr         string        `yaml:"addr" env:"ADDR"`
	Password     string        `yaml:"password" env:"PASSWORD"`
	DB           int           `yaml:"db" env:"DB"`
	PoolSize     int           `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	MaxRetries   int           `yaml:"max_retries" env:"MAX_RETRIES"`
	KeyPrefix    string        `yaml:"key_prefix" env:"KEY_PREFIX"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
}

// DatabaseConfig configures the durable handoff history store.
// Driver is "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	DSN    string `yaml:"dsn" env:"DSN"`
}

// HandoffConfig is the policy surface of the decision engine.
type HandoffConfig struct {
	// BaseConfidenceThreshold is the threshold before learned bias is applied.
	BaseConfidenceThreshold float64 `yaml:"base_confidence_threshold" env:"BASE_CONFIDENCE_THRESHOLD"`

	// ThresholdFloor and ThresholdCeil clamp the effective threshold so
	// learned bias can never make the engine reckless or frozen.
	ThresholdFloor float64 `yaml:"threshold_floor" env:"THRESHOLD_FLOOR"`
	ThresholdCeil  float64 `yaml:"threshold_ceil" env:"THRESHOLD_CEIL"`

	// CircularPreventionWindow is the lookback for reverse-edge detection.
	CircularPreventionWindow time.Duration `yaml:"circular_prevention_window" env:"CIRCULAR_PREVENTION_WINDOW"`

	RateLimitHourlyCap int `yaml:"rate_limit_hourly_cap" env:"RATE_LIMIT_HOURLY_CAP"`
	RateLimitDailyCap  int `yaml:"rate_limit_daily_cap" env:"RATE_LIMIT_DAILY_CAP"`

	// LockLeaseDuration bounds how long a crashed decision can hold a
	// contact. It must comfortably exceed worst-case decision latency.
	LockLeaseDuration time.Duration `yaml:"lock_lease_duration" env:"LOCK_LEASE_DURATION"`

	// LockWaitTimeout bounds how long Decide waits for a contended lock
	// before failing fast with contact_busy.
	LockWaitTimeout time.Duration `yaml:"lock_wait_timeout" env:"LOCK_WAIT_TIMEOUT"`

	// StoreTimeout is the per-call deadline for history and counter
	// operations inside the decision path.
	StoreTimeout time.Duration `yaml:"store_timeout" env:"STORE_TIMEOUT"`

	// OutcomeWindow bounds how long after a decision an outcome may still
	// be recorded against its HandoffRecord.
	OutcomeWindow time.Duration `yaml:"outcome_window" env:"OUTCOME_WINDOW"`

	// HistoryRetention bounds how long audit records are kept.
	HistoryRetention time.Duration `yaml:"history_retention" env:"HISTORY_RETENTION"`

	// RetentionSweepInterval is how often expired records are purged.
	RetentionSweepInterval time.Duration `yaml:"retention_sweep_interval" env:"RETENTION_SWEEP_INTERVAL"`
}

// LearnerConfig configures the asynchronous pattern learner.
type LearnerConfig struct {
	// Alpha is the EMA smoothing factor for bias updates.
	Alpha float64 `yaml:"alpha" env:"ALPHA"`

	// BiasStep is the magnitude of a single outcome nudge.
	BiasStep float64 `yaml:"bias_step" env:"BIAS_STEP"`

	// BiasMin and BiasMax clamp the stored bias.
	BiasMin float64 `yaml:"bias_min" env:"BIAS_MIN"`
	BiasMax float64 `yaml:"bias_max" env:"BIAS_MAX"`

	// QueueSize is the outcome event buffer; events beyond it are dropped
	// so a stalled learner never backs up into the decision path.
	QueueSize int `yaml:"queue_size" env:"QUEUE_SIZE"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" env:"FORMAT"` // json or console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:   DefaultServerConfig(),
		Redis:    DefaultRedisConfig(),
		Database: DefaultDatabaseConfig(),
		Handoff:  DefaultHandoffConfig(),
		Learner:  DefaultLearnerConfig(),
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultRedisConfig returns the default redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		KeyPrefix:    "leadflow:",
		DialTimeout:  5 * time.Second,
	}
}

// DefaultDatabaseConfig returns the default database configuration.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver: "sqlite",
		DSN:    "leadflow.db",
	}
}

// DefaultHandoffConfig returns the default policy configuration.
func DefaultHandoffConfig() HandoffConfig {
	return HandoffConfig{
		BaseConfidenceThreshold:  0.7,
		ThresholdFloor:           0.5,
		ThresholdCeil:            0.95,
		CircularPreventionWindow: 30 * time.Minute,
		RateLimitHourlyCap:       3,
		RateLimitDailyCap:        10,
		LockLeaseDuration:        3 * time.Second,
		LockWaitTimeout:          500 * time.Millisecond,
		StoreTimeout:             2 * time.Second,
		OutcomeWindow:            72 * time.Hour,
		HistoryRetention:         60 * 24 * time.Hour,
		RetentionSweepInterval:   6 * time.Hour,
	}
}

// DefaultLearnerConfig returns the default learner configuration.
func DefaultLearnerConfig() LearnerConfig {
	return LearnerConfig{
		Alpha:     0.2,
		BiasStep:  0.1,
		BiasMin:   -0.2,
		BiasMax:   0.2,
		QueueSize: 1024,
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	var errs []string

	h := c.Handoff
	if h.BaseConfidenceThreshold < 0 || h.BaseConfidenceThreshold > 1 {
		errs = append(errs, "base_confidence_threshold must be in [0,1]")
	}
	if h.ThresholdFloor >= h.ThresholdCeil {
		errs = append(errs, "threshold_floor must be below threshold_ceil")
	}
	if h.BaseConfidenceThreshold < h.ThresholdFloor || h.BaseConfidenceThreshold > h.ThresholdCeil {
		errs = append(errs, "base_confidence_threshold must be inside the clamp range")
	}
	if h.RateLimitHourlyCap <= 0 || h.RateLimitDailyCap <= 0 {
		errs = append(errs, "rate limit caps must be positive")
	}
	if h.RateLimitDailyCap < h.RateLimitHourlyCap {
		errs = append(errs, "rate_limit_daily_cap must be >= rate_limit_hourly_cap")
	}
	if h.LockLeaseDuration <= 0 {
		errs = append(errs, "lock_lease_duration must be positive")
	}
	if h.LockWaitTimeout >= h.LockLeaseDuration {
		errs = append(errs, "lock_wait_timeout must be below lock_lease_duration")
	}
	if h.CircularPreventionWindow <= 0 {
		errs = append(errs, "circular_prevention_window must be positive")
	}
	if h.HistoryRetention < 24*time.Hour {
		errs = append(errs, "history_retention must be at least 24h")
	}

	l := c.Learner
	if l.Alpha <= 0 || l.Alpha > 1 {
		errs = append(errs, "learner alpha must be in (0,1]")
	}
	if l.BiasMin > 0 || l.BiasMax < 0 || l.BiasMin >= l.BiasMax {
		errs = append(errs, "learner bias clamp must straddle zero")
	}
	if l.QueueSize <= 0 {
		errs = append(errs, "learner queue_size must be positive")
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("unsupported database driver: %s", c.Database.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
