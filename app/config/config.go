package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Driver cache và nơi lưu file
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheMongo  = "mongo"
	CacheHybrid = "hybrid"

	ArtifactLocal = "local"
	ArtifactS3    = "s3"
)

type AppCfg struct {
	Env  string `mapstructure:"env" yaml:"env"`
	Port string `mapstructure:"port" yaml:"port"`
}

type LogCfg struct {
	Level string `mapstructure:"level" yaml:"level"`
}

type GeocodeCfg struct {
	BaseURL          string        `mapstructure:"base_url" yaml:"base_url"`
	ClientID         string        `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret     string        `mapstructure:"client_secret" yaml:"client_secret"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBackoffBase time.Duration `mapstructure:"retry_backoff_base" yaml:"retry_backoff_base"`
	MaxBackoff       time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
}

type DispatcherCfg struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	MaxConcurrency    int     `mapstructure:"max_concurrency" yaml:"max_concurrency"`
}

type BatchCfg struct {
	CheckpointInterval int `mapstructure:"checkpoint_interval" yaml:"checkpoint_interval"`
	Workers            int `mapstructure:"workers" yaml:"workers"`
	MaxRows            int `mapstructure:"max_rows" yaml:"max_rows"`
	TopN               int `mapstructure:"top_n" yaml:"top_n"`
}

type CacheCfg struct {
	Driver   string        `mapstructure:"driver" yaml:"driver"`
	RedisURL string        `mapstructure:"redis_url" yaml:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	L1Size   int           `mapstructure:"l1_size" yaml:"l1_size"`
}

type MongoCfg struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Database string `mapstructure:"database" yaml:"database"`
}

type ArchiveCfg struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

type S3Cfg struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Region    string `mapstructure:"region" yaml:"region"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
}

type ArtifactsCfg struct {
	Driver    string `mapstructure:"driver" yaml:"driver"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	S3        S3Cfg  `mapstructure:"s3" yaml:"s3"`
}

type SearchCfg struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host" yaml:"host"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	Index   string `mapstructure:"index" yaml:"index"`
}

// Config cấu hình toàn bộ service
type Config struct {
	App        AppCfg        `mapstructure:"app" yaml:"app"`
	Log        LogCfg        `mapstructure:"log" yaml:"log"`
	Geocode    GeocodeCfg    `mapstructure:"geocode" yaml:"geocode"`
	Dispatcher DispatcherCfg `mapstructure:"dispatcher" yaml:"dispatcher"`
	Batch      BatchCfg      `mapstructure:"batch" yaml:"batch"`
	Cache      CacheCfg      `mapstructure:"cache" yaml:"cache"`
	Mongo      MongoCfg      `mapstructure:"mongo" yaml:"mongo"`
	Archive    ArchiveCfg    `mapstructure:"archive" yaml:"archive"`
	Artifacts  ArtifactsCfg  `mapstructure:"artifacts" yaml:"artifacts"`
	Search     SearchCfg     `mapstructure:"search" yaml:"search"`
}

// tên biến môi trường cũ cho từng key
var envBindings = map[string]string{
	"app.env":                        "APP_ENV",
	"app.port":                       "APP_PORT",
	"log.level":                      "LOG_LEVEL",
	"geocode.base_url":               "NAVER_GEOCODING_URL",
	"geocode.client_id":              "NAVER_CLIENT_ID",
	"geocode.client_secret":          "NAVER_CLIENT_SECRET",
	"geocode.timeout":                "GEOCODE_TIMEOUT",
	"geocode.max_retries":            "RETRY_MAX",
	"geocode.retry_backoff_base":     "RETRY_BACKOFF_BASE",
	"geocode.max_backoff":            "RETRY_BACKOFF_MAX",
	"dispatcher.requests_per_second": "API_RATE_LIMIT",
	"dispatcher.max_concurrency":     "CONCURRENCY",
	"batch.checkpoint_interval":      "CHECKPOINT_INTERVAL",
	"batch.workers":                  "BATCH_WORKERS",
	"batch.max_rows":                 "MAX_ROWS",
	"batch.top_n":                    "DEFAULT_TOP_N",
	"cache.driver":                   "CACHE_DRIVER",
	"cache.redis_url":                "REDIS_URL",
	"cache.ttl":                      "CACHE_TTL",
	"cache.l1_size":                  "L1_CACHE_SIZE",
	"mongo.url":                      "MONGO_URL",
	"mongo.database":                 "MONGO_DATABASE",
	"archive.enabled":                "ARCHIVE_ENABLED",
	"artifacts.driver":               "ARTIFACT_DRIVER",
	"artifacts.output_dir":           "OUTPUT_DIR",
	"artifacts.s3.endpoint":          "S3_ENDPOINT",
	"artifacts.s3.bucket":            "S3_BUCKET",
	"artifacts.s3.prefix":            "S3_PREFIX",
	"artifacts.s3.access_key":        "S3_ACCESS_KEY",
	"artifacts.s3.secret_key":        "S3_SECRET_KEY",
	"artifacts.s3.region":            "S3_REGION",
	"artifacts.s3.use_ssl":           "S3_USE_SSL",
	"search.enabled":                 "MEILI_ENABLED",
	"search.host":                    "MEILI_URL",
	"search.api_key":                 "MEILI_MASTER_KEY",
	"search.index":                   "MEILI_INDEX",
}

// các key thời gian; giá trị số nguyên không có đơn vị được hiểu là giây
var durationKeys = []string{
	"geocode.timeout",
	"geocode.retry_backoff_base",
	"geocode.max_backoff",
	"cache.ttl",
}

// SetDefaults đặt giá trị mặc định
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")

	v.SetDefault("geocode.base_url", "https://maps.apigw.ntruss.com/map-geocode/v2/geocode")
	v.SetDefault("geocode.client_id", "")
	v.SetDefault("geocode.client_secret", "")
	v.SetDefault("geocode.timeout", 30*time.Second)
	v.SetDefault("geocode.max_retries", 3)
	v.SetDefault("geocode.retry_backoff_base", time.Second)
	v.SetDefault("geocode.max_backoff", 30*time.Second)

	v.SetDefault("dispatcher.requests_per_second", 200)
	v.SetDefault("dispatcher.max_concurrency", 80)

	v.SetDefault("batch.checkpoint_interval", 100)
	v.SetDefault("batch.workers", 1)
	v.SetDefault("batch.max_rows", 10000)
	v.SetDefault("batch.top_n", 20)

	v.SetDefault("cache.driver", CacheMemory)
	v.SetDefault("cache.redis_url", "redis://localhost:6379")
	v.SetDefault("cache.ttl", time.Duration(0))
	v.SetDefault("cache.l1_size", 10000)

	v.SetDefault("mongo.url", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "address_geocoder")
	v.SetDefault("archive.enabled", false)

	v.SetDefault("artifacts.driver", ArtifactLocal)
	v.SetDefault("artifacts.output_dir", "./output")
	v.SetDefault("artifacts.s3.endpoint", "")
	v.SetDefault("artifacts.s3.bucket", "")
	v.SetDefault("artifacts.s3.prefix", "")
	v.SetDefault("artifacts.s3.access_key", "")
	v.SetDefault("artifacts.s3.secret_key", "")
	v.SetDefault("artifacts.s3.region", "")
	v.SetDefault("artifacts.s3.use_ssl", true)

	v.SetDefault("search.enabled", false)
	v.SetDefault("search.host", "http://localhost:7700")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.index", "geocoded_points")
}

// Load đọc .env, file config/app.yaml (nếu có) và biến môi trường
func Load() (*Config, []string, error) {
	var warnings []string
	if err := godotenv.Load(); err != nil {
		warnings = append(warnings, fmt.Sprintf("không đọc được .env: %v", err))
	}

	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		warnings = append(warnings, fmt.Sprintf("không đọc được file config: %v", err))
	}

	cfg, err := FromViper(v)
	return cfg, warnings, err
}

// FromViper đặt mặc định, bind env và decode cấu hình từ v
func FromViper(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("lỗi bind env %s: %w", env, err)
		}
	}

	for _, key := range durationKeys {
		if n, err := strconv.ParseInt(strings.TrimSpace(v.GetString(key)), 10, 64); err == nil {
			v.Set(key, time.Duration(n)*time.Second)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("lỗi decode cấu hình: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

const maxRetriesLimit = 10

// Validate kiểm tra các giá trị không hợp lệ
func (c *Config) Validate() error {
	var errs []error
	if c.Batch.CheckpointInterval <= 0 {
		errs = append(errs, errors.New("batch.checkpoint_interval phải > 0"))
	}
	if c.Batch.MaxRows <= 0 {
		errs = append(errs, errors.New("batch.max_rows phải > 0"))
	}
	if c.Batch.TopN <= 0 {
		errs = append(errs, errors.New("batch.top_n phải > 0"))
	}
	if c.Batch.Workers < 1 {
		errs = append(errs, errors.New("batch.workers phải >= 1"))
	}
	if c.Geocode.MaxRetries < 0 || c.Geocode.MaxRetries > maxRetriesLimit {
		errs = append(errs, fmt.Errorf("geocode.max_retries phải trong khoảng 0..%d", maxRetriesLimit))
	}
	if c.Dispatcher.MaxConcurrency < 0 {
		errs = append(errs, errors.New("dispatcher.max_concurrency không được âm"))
	}

	switch c.Cache.Driver {
	case CacheMemory, CacheRedis, CacheMongo, CacheHybrid:
	default:
		errs = append(errs, fmt.Errorf("cache.driver không hợp lệ: %q", c.Cache.Driver))
	}
	switch c.Artifacts.Driver {
	case ArtifactLocal:
	case ArtifactS3:
		if c.Artifacts.S3.Bucket == "" {
			errs = append(errs, errors.New("artifacts.s3.bucket bắt buộc khi artifacts.driver = s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("artifacts.driver không hợp lệ: %q", c.Artifacts.Driver))
	}

	return errors.Join(errs...)
}

// IsProduction môi trường production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// NeedsMongo cần kết nối MongoDB
func (c *Config) NeedsMongo() bool {
	return c.Cache.Driver == CacheMongo || c.Cache.Driver == CacheHybrid || c.Archive.Enabled
}
