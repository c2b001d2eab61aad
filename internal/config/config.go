package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "stayknown"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0

	defaultKeepalive   = 25 * time.Second
	defaultLinkTTL     = 30 * time.Minute
	defaultSweepEvery  = time.Minute
	defaultMaxVisitDur = 12 * time.Hour
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port     int                   `yaml:"port"`
	DSN      string                `yaml:"dsn"` // MySQL DSN
	RedisURL string                `yaml:"redis_url"`
	Database DatabaseRuntimeConfig `yaml:"database"`
	Redis    RedisRuntimeConfig    `yaml:"redis"`
	Env      string                `yaml:"env"` // "development" | "production"

	AllowedOrigins []string `yaml:"allowed_origins"`

	// SigningSecret signs and verifies capability links. Verification fails
	// closed when it is empty.
	SigningSecret string `yaml:"tracking_signing_secret"`
	JWTSecret     string `yaml:"jwt_secret"`

	Live  LiveRuntimeConfig  `yaml:"live"`
	Sweep SweepRuntimeConfig `yaml:"sweep"`
}

type DatabaseRuntimeConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
	Loc      string `yaml:"loc"`
}

type RedisRuntimeConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LiveRuntimeConfig struct {
	// KeepaliveInterval is the period between "ka" frames on open streams.
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
	// LinkTTL is the default expiry minted into capability links.
	LinkTTL time.Duration `yaml:"link_ttl"`
}

type SweepRuntimeConfig struct {
	Enable   bool          `yaml:"enable"`
	Interval time.Duration `yaml:"interval"`
	// MaxVisitDuration is the policy cap after which an open visit is ended.
	MaxVisitDuration time.Duration `yaml:"max_visit_duration"`
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool { return strings.EqualFold(c.Env, "development") }

// Load reads the YAML config file, applies defaults and env overrides.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := defaultAppConfig()

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if decodeErr := decoder.Decode(&cfg); decodeErr != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, decodeErr)
		}
	case os.IsNotExist(err) && configPath == "":
		// no config file, env-only startup
	default:
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d, expected 1-65535", cfg.Port)
	}
	if cfg.Redis.DB < 0 {
		return nil, fmt.Errorf("invalid redis.db %d, expected >= 0", cfg.Redis.DB)
	}

	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Host:     defaultDBHost,
			Port:     defaultDBPort,
			User:     defaultDBUser,
			Password: defaultDBPassword,
			Name:     defaultDBName,
			Charset:  defaultDBCharset,
			Loc:      defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Live: LiveRuntimeConfig{
			KeepaliveInterval: defaultKeepalive,
			LinkTTL:           defaultLinkTTL,
		},
		Sweep: SweepRuntimeConfig{
			Enable:           true,
			Interval:         defaultSweepEvery,
			MaxVisitDuration: defaultMaxVisitDur,
		},
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv("STAYKNOWN_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("STAYKNOWN_ENV")); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("STAYKNOWN_DSN")); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("STAYKNOWN_REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TRACKING_SIGNING_SECRET")); v != "" {
		cfg.SigningSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("STAYKNOWN_JWT_SECRET")); v != "" {
		cfg.JWTSecret = v
	}
}

func normalize(cfg *AppConfig) {
	if cfg.DSN == "" {
		cfg.DSN = cfg.Database.DSNValue()
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = cfg.Redis.URLValue()
	}
	if cfg.Live.KeepaliveInterval <= 0 {
		cfg.Live.KeepaliveInterval = defaultKeepalive
	}
	if cfg.Live.LinkTTL <= 0 {
		cfg.Live.LinkTTL = defaultLinkTTL
	}
	if cfg.Sweep.Interval <= 0 {
		cfg.Sweep.Interval = defaultSweepEvery
	}
	if cfg.Sweep.MaxVisitDuration <= 0 {
		cfg.Sweep.MaxVisitDuration = defaultMaxVisitDur
	}
}
