package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/wb-go/wbf/retry"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	Storage  StorageConfig  `yaml:"storage"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Worker   WorkerConfig   `yaml:"worker"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Retry    RetryConfig    `yaml:"retry"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"SERVER_ADDR" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type DBConfig struct {
	Host            string        `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port            int           `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User            string        `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password        string        `yaml:"password" env:"DB_PASSWORD" env-default:"postgres"`
	Name            string        `yaml:"name" env:"DB_NAME" env-default:"listing_images"`
	SSLMode         string        `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
}

type StorageConfig struct {
	Endpoint        string `yaml:"endpoint" env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	AccessKey       string `yaml:"access_key" env:"MINIO_ACCESS_KEY" env-default:"minioadmin"`
	SecretKey       string `yaml:"secret_key" env:"MINIO_SECRET_KEY" env-default:"minioadmin"`
	Bucket          string `yaml:"bucket" env:"MINIO_BUCKET" env-default:"listing-images"`
	UseSSL          bool   `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
	PublicBaseURL   string `yaml:"public_base_url" env:"MINIO_PUBLIC_BASE_URL" env-default:"http://localhost:9000/listing-images"`
	ImagePrefix     string `yaml:"image_prefix" env:"STORAGE_IMAGE_PREFIX" env-default:"listing_images/"`
	ThumbnailPrefix string `yaml:"thumbnail_prefix" env:"STORAGE_THUMBNAIL_PREFIX" env-default:"listing_images/thumbnails/"`
	SourcePrefix    string `yaml:"source_prefix" env:"STORAGE_SOURCE_PREFIX" env-default:"listing_images/sources/"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	RebuildTopic string   `yaml:"rebuild_topic" env:"KAFKA_REBUILD_TOPIC" env-default:"rendition-rebuild"`
	GroupID      string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"rendition-worker-group"`
}

type WorkerConfig struct {
	Concurrency int `yaml:"concurrency" env:"WORKER_CONCURRENCY" env-default:"4"`
}

// Rendition is one configured target size. All renditions of a deployment share
// the same aspect ratio.
type Rendition struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

type PipelineConfig struct {
	MaxFileSize int64 `yaml:"max_file_size" env:"PIPELINE_MAX_FILE_SIZE" env-default:"5242880"`
	MinWidth    int   `yaml:"min_width" env:"PIPELINE_MIN_WIDTH" env-default:"320"`
	MinHeight   int   `yaml:"min_height" env:"PIPELINE_MIN_HEIGHT" env-default:"240"`
	JPEGQuality int   `yaml:"jpeg_quality" env:"PIPELINE_JPEG_QUALITY" env-default:"85"`

	Renditions []Rendition `yaml:"renditions"`

	// PrimaryRendition names the size whose object name omits the rendition
	// suffix. It must match one of the configured renditions.
	PrimaryRendition  string `yaml:"primary_rendition" env:"PIPELINE_PRIMARY_RENDITION" env-default:"original"`
	OmitPrimarySuffix bool   `yaml:"omit_primary_suffix" env:"PIPELINE_OMIT_PRIMARY_SUFFIX" env-default:"true"`
}

type RetryConfig struct {
	Attempts int           `yaml:"attempts" env:"RETRY_ATTEMPTS" env-default:"3"`
	Delay    time.Duration `yaml:"delay" env:"RETRY_DELAY" env-default:"500ms"`
	Backoff  float64       `yaml:"backoff" env:"RETRY_BACKOFF" env-default:"2"`
}

func MustLoad() (*Config, error) {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from env: %w", err)
		}
	}

	if len(cfg.Pipeline.Renditions) == 0 {
		cfg.Pipeline.Renditions = []Rendition{
			{Name: "original", Width: 1200, Height: 900},
			{Name: "thumbnail", Width: 320, Height: 240},
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	found := false
	for _, r := range c.Pipeline.Renditions {
		if r.Width <= 0 || r.Height <= 0 {
			return fmt.Errorf("rendition %q has non-positive dimensions", r.Name)
		}
		if r.Name == c.Pipeline.PrimaryRendition {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("primary rendition %q is not configured", c.Pipeline.PrimaryRendition)
	}
	return nil
}

func (c *Config) DBDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

func (c *Config) DefaultRetryStrategy() retry.Strategy {
	return retry.Strategy{
		Attempts: c.Retry.Attempts,
		Delay:    c.Retry.Delay,
		Backoff:  c.Retry.Backoff,
	}
}
