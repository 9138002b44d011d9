package config

import "time"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Policy    PolicyConfig    `yaml:"policy"`
	Router    RouterConfig    `yaml:"router"`
	Guard     GuardConfig     `yaml:"guard"`
	Auth      AuthConfig      `yaml:"auth"`
	Limits    LimitsConfig    `yaml:"limits"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

type RedisConfig struct {
	Addresses []string `yaml:"addresses"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	PoolSize  int      `yaml:"pool_size"`
}

type TelemetryConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// PolicyConfig selects and tunes the dispatch gate. In static mode
// AllowDispatch is a platform-wide kill switch; in opa mode decisions come
// from the rego bundle under BundlePath.
type PolicyConfig struct {
	Mode              string        `yaml:"mode"`
	AllowDispatch     bool          `yaml:"allow_dispatch"`
	BundlePath        string        `yaml:"bundle_path"`
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout"`
}

const (
	PolicyModeStatic = "static"
	PolicyModeOPA    = "opa"
)

type RouterConfig struct {
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
	HealthGap        float64       `yaml:"health_gap"`
}

type GuardConfig struct {
	Credentials CredentialGuardConfig `yaml:"credentials"`
	Injection   InjectionGuardConfig  `yaml:"injection"`
}

type CredentialGuardConfig struct {
	Enabled bool `yaml:"enabled"`
}

type InjectionGuardConfig struct {
	Enabled        bool    `yaml:"enabled"`
	BlockThreshold float64 `yaml:"block_threshold"`
	FlagThreshold  float64 `yaml:"flag_threshold"`
}

type AuthConfig struct {
	Enabled bool           `yaml:"enabled"`
	Keys    []APIKeyConfig `yaml:"keys"`
}

// APIKeyConfig carries a key's SHA-256 hash, never the raw key.
type APIKeyConfig struct {
	ID                 string `yaml:"id"`
	Name               string `yaml:"name"`
	KeyHash            string `yaml:"key_hash"`
	RPMLimit           int    `yaml:"rpm_limit,omitempty"`
	DailyDispatchLimit int    `yaml:"daily_dispatch_limit,omitempty"`
}

type LimitsConfig struct {
	DefaultRPM             int `yaml:"default_rpm"`
	DefaultDailyDispatches int `yaml:"default_daily_dispatches"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Redis: RedisConfig{
			Addresses: []string{"localhost:6379"},
			DB:        0,
			PoolSize:  50,
		},
		Telemetry: TelemetryConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
		Policy: PolicyConfig{
			Mode:              PolicyModeStatic,
			AllowDispatch:     true,
			BundlePath:        "/etc/therapyflow/policies",
			EvaluationTimeout: 100 * time.Millisecond,
		},
		Router: RouterConfig{
			RetryBaseDelay:   250 * time.Millisecond,
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
			HealthGap:        0.1,
		},
		Guard: GuardConfig{
			Credentials: CredentialGuardConfig{Enabled: true},
			Injection: InjectionGuardConfig{
				Enabled:        true,
				BlockThreshold: 0.9,
				FlagThreshold:  0.7,
			},
		},
		Auth: AuthConfig{
			Enabled: true,
		},
		Limits: LimitsConfig{
			DefaultRPM: 120,
		},
	}
}
