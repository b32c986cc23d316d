package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/sir_venger/mediagate/internal/models"
	"github.com/sir_venger/mediagate/pkg/mediaproto"
)

const (
	DefaultCacheTTL       = 30 * time.Minute
	DefaultSleepThreshold = 60 * time.Second
	DefaultAuthAttempts   = 6
	DefaultRequestTimeout = 30 * time.Second
)

// Config описывает настройки шлюза. Значения из YAML перекрываются переменными окружения.
type Config struct {
	ListenAddr     string        `yaml:"listen_addr" json:"listen_addr" envconfig:"LISTEN_ADDR" validate:"required"`
	BaseURL        string        `yaml:"base_url" json:"base_url" envconfig:"BASE_URL" validate:"omitempty,url"`
	CatalogDSN     string        `yaml:"catalog_dsn" json:"-" envconfig:"CATALOG_DSN" validate:"required"`
	ChunkSize      int64         `yaml:"chunk_size" json:"chunk_size" envconfig:"CHUNK_SIZE" validate:"gt=0"`
	CacheTTL       time.Duration `yaml:"cache_ttl" json:"cache_ttl" envconfig:"CACHE_TTL" validate:"gte=0"`
	SleepThreshold time.Duration `yaml:"sleep_threshold" json:"sleep_threshold" envconfig:"SLEEP_THRESHOLD" validate:"gte=0"`
	AuthAttempts   int           `yaml:"auth_attempts" json:"auth_attempts" envconfig:"AUTH_ATTEMPTS" validate:"gte=1"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout" envconfig:"REQUEST_TIMEOUT" validate:"gte=0"`

	LogLevel  string `yaml:"log_level" json:"log_level" envconfig:"LOG_LEVEL" validate:"omitempty,oneof=trace debug info warn error"`
	LogFormat string `yaml:"log_format" json:"log_format" envconfig:"LOG_FORMAT" validate:"omitempty,oneof=json console"`

	PrimaryDC      int    `yaml:"primary_dc" json:"primary_dc" envconfig:"PRIMARY_DC" validate:"gt=0"`
	PrimaryAuthKey string `yaml:"primary_auth_key" json:"-" envconfig:"PRIMARY_AUTH_KEY"`

	Endpoints []mediaproto.Endpoint `yaml:"endpoints" json:"endpoints" ignored:"true" validate:"required,min=1,dive"`
}

// Load читает .env-файлы, YAML-конфигурацию из CONFIG_PATH, применяет ENV-переопределения и валидирует результат.
func Load() (*Config, error) {
	for _, name := range []string{"config.env", ".env"} {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
	}

	return LoadFile(getenv("CONFIG_PATH", "./config.yaml"))
}

// LoadFile работает как Load, но без .env-файлов и с явным путём.
func LoadFile(path string) (*Config, error) {
	c := Defaults()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// ENV override
	if err := envconfig.Process("", c); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func Defaults() *Config {
	return &Config{
		ListenAddr:     ":8080",
		CatalogDSN:     "memory://",
		ChunkSize:      models.DefaultChunkSize,
		CacheTTL:       DefaultCacheTTL,
		SleepThreshold: DefaultSleepThreshold,
		AuthAttempts:   DefaultAuthAttempts,
		RequestTimeout: DefaultRequestTimeout,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

var validate = validator.New()

// Validate проверяет теги и связность: основной endpoint должен быть описан, id уникальны.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[int]struct{}, len(c.Endpoints))
	for _, ep := range c.Endpoints {
		if _, dup := seen[ep.ID]; dup {
			return fmt.Errorf("invalid config: duplicate endpoint id %d", ep.ID)
		}
		seen[ep.ID] = struct{}{}
	}
	if _, ok := seen[c.PrimaryDC]; !ok {
		return fmt.Errorf("invalid config: primary_dc %d has no endpoint", c.PrimaryDC)
	}

	return nil
}

// Endpoint ищет описание endpoint'а по id.
func (c *Config) Endpoint(id int) (mediaproto.Endpoint, bool) {
	for _, ep := range c.Endpoints {
		if ep.ID == id {
			return ep, true
		}
	}
	return mediaproto.Endpoint{}, false
}

// NodeConfig описывает настройки media-узла, читается только из окружения.
type NodeConfig struct {
	ListenAddr    string        `envconfig:"LISTEN_ADDR" default:":9001"`
	DataDir       string        `envconfig:"DATA_DIR" default:"./data"`
	DC            int           `envconfig:"DC_ID" default:"1" validate:"gt=0"`
	ClusterSecret string        `envconfig:"CLUSTER_SECRET" validate:"required"`
	AuthKeys      []string      `envconfig:"AUTH_KEYS"`
	ReadsPerKey   float64       `envconfig:"READS_PER_SECOND" default:"0"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	GCInterval    time.Duration `envconfig:"GC_INTERVAL" default:"30m"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat     string        `envconfig:"LOG_FORMAT" default:"json"`
}

func LoadNode() (*NodeConfig, error) {
	_ = godotenv.Load("node.env")

	var c NodeConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid node config: %w", err)
	}
	return &c, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}

	return def
}
