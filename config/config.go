package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAPIURL is used when neither the config file nor the environment name a backend.
const DefaultAPIURL = "http://localhost:8000"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Minio    MinioConfig    `yaml:"minio"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	Watcher  WatcherConfig  `yaml:"watcher"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Users    []User         `yaml:"users"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	RateLimit      int      `yaml:"rate_limit"`      // requests per minute per client IP
	AllowedOrigins []string `yaml:"allowed_origins"` // empty = any origin
}

// APIConfig points at the consolidation backend.
type APIConfig struct {
	BaseURL        string      `yaml:"base_url"`
	TimeoutSeconds int         `yaml:"timeout_seconds"`
	Retry          RetryConfig `yaml:"retry"`
}

type RetryConfig struct {
	MaxRetries  int `yaml:"max_retries"`
	BaseDelayMS int `yaml:"base_delay_ms"`
	MaxDelayMS  int `yaml:"max_delay_ms"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether an object store was configured.
func (m MinioConfig) Enabled() bool {
	return m.Endpoint != ""
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	MaxRuns int `yaml:"max_runs"`
}

type WatcherConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	MaxAttempts     int `yaml:"max_attempts"`
}

// ScheduleConfig drives the periodic consolidation run. IntervalMinutes 0 disables it.
type ScheduleConfig struct {
	IntervalMinutes int      `yaml:"interval_minutes"`
	MasterObject    string   `yaml:"master_object"`
	Modo            string   `yaml:"modo"`
	Ano             int      `yaml:"ano"`
	Contratos       []string `yaml:"contratos"`
	GuardarEnBD     bool     `yaml:"guardar_en_bd"`
	ExportarAlertas bool     `yaml:"exportar_alertas"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

var GlobalConfig *Config

// Load reads the YAML file at path. A missing file is not an error: defaults and
// environment overrides still apply.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	GlobalConfig = &cfg
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CONSOLIDADOR_API_URL"); v != "" {
		c.API.BaseURL = v
	} else if v := os.Getenv("NEXT_PUBLIC_API_URL"); v != "" && c.API.BaseURL == "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("CONSOLIDADOR_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("CONSOLIDADOR_MINIO_SECRET_KEY"); v != "" {
		c.Minio.SecretKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 120
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIURL
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = 60
	}
	if c.API.Retry.BaseDelayMS == 0 {
		c.API.Retry.BaseDelayMS = 500
	}
	if c.API.Retry.MaxDelayMS == 0 {
		c.API.Retry.MaxDelayMS = 10000
	}
	if c.Minio.Bucket == "" {
		c.Minio.Bucket = "consolidador"
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Store.MaxRuns == 0 {
		c.Store.MaxRuns = 200
	}
	if c.Watcher.IntervalSeconds == 0 {
		c.Watcher.IntervalSeconds = 2
	}
	if c.Watcher.MaxAttempts == 0 {
		c.Watcher.MaxAttempts = 1800
	}
	if c.Schedule.Modo == "" {
		c.Schedule.Modo = "completo"
	}
}

// Timeout is the per-request deadline for calls to the backend.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// PollInterval is the delay between two progress polls of the same run.
func (w WatcherConfig) PollInterval() time.Duration {
	return time.Duration(w.IntervalSeconds) * time.Second
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
