package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// State backends selectable through CACHE_BACKEND.
const (
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMinIO    = "minio"
	BackendMemory   = "memory"
)

type Config struct {
	Server   ServerConfig
	Cache    CacheConfig
	Media    MediaConfig
	Upload   UploadConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Database DatabaseConfig
	MinIO    MinIOConfig
	RabbitMQ RabbitMQConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"60s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`
	// MaxUploadBytes bounds a whole multipart add request, source and compressed parts together.
	MaxUploadBytes int64 `envconfig:"API_MAX_UPLOAD_BYTES" default:"230686720"`
}

type CacheConfig struct {
	Backend         string        `envconfig:"CACHE_BACKEND" default:"sqlite"`
	MaxEntries      int           `envconfig:"CACHE_MAX_ENTRIES" default:"5"`
	MaxBytes        int64         `envconfig:"CACHE_MAX_BYTES" default:"104857600"`
	Expiry          time.Duration `envconfig:"CACHE_EXPIRY" default:"24h"`
	StateKey        string        `envconfig:"CACHE_STATE_KEY" default:"video_upload_cache"`
	CleanupInterval time.Duration `envconfig:"CACHE_CLEANUP_INTERVAL" default:"10m"`
}

type MediaConfig struct {
	FFmpegPath     string `envconfig:"MEDIA_FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath    string `envconfig:"MEDIA_FFPROBE_PATH" default:"ffprobe"`
	TempDir        string `envconfig:"MEDIA_TEMP_DIR" default:"/tmp/vidcache"`
	PreviewEnabled bool   `envconfig:"MEDIA_PREVIEW_ENABLED" default:"false"`
}

type UploadConfig struct {
	DownloadURLExpiry time.Duration `envconfig:"UPLOAD_DOWNLOAD_URL_EXPIRY" default:"1h"`
}

type SQLiteConfig struct {
	Path string `envconfig:"SQLITE_PATH" default:"vidcache.db"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"vidcache"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"vidcache"`
	DBName   string `envconfig:"POSTGRES_DB" default:"vidcache"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type MinIOConfig struct {
	Enabled        bool   `envconfig:"MINIO_ENABLED" default:"true"`
	Endpoint       string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	PublicEndpoint string `envconfig:"MINIO_PUBLIC_ENDPOINT" default:""`
	AccessKey      string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey      string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	Bucket         string `envconfig:"MINIO_BUCKET" default:"videos"`
	UseSSL         bool   `envconfig:"MINIO_USE_SSL" default:"false"`
	CreateBucket   bool   `envconfig:"MINIO_CREATE_BUCKET" default:"false"`
}

type RabbitMQConfig struct {
	Enabled  bool   `envconfig:"RABBITMQ_ENABLED" default:"false"`
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"vidcache"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"vidcache"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case BackendSQLite, BackendRedis, BackendPostgres, BackendMemory:
	case BackendMinIO:
		if !c.MinIO.Enabled {
			return fmt.Errorf("cache backend %q requires MINIO_ENABLED", BackendMinIO)
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.CleanupInterval < 0 {
		return fmt.Errorf("cleanup interval cannot be negative: %s", c.Cache.CleanupInterval)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive: %d", c.Server.MaxUploadBytes)
	}
	return nil
}
