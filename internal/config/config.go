package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Config holds settings for an AWS S3 (or S3-compatible) bucket accessed through the AWS SDK.
type S3Config struct {
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UsePathStyle bool
}

// SwiftConfig holds OpenStack Swift (Keystone v3) settings.
type SwiftConfig struct {
	AuthURL   string
	UserName  string
	APIKey    string
	Domain    string
	Tenant    string
	Region    string
	Container string
}

// BlobConfig selects the object store backend used for image bytes.
type BlobConfig struct {
	Backend string // minio | s3 | swift
	MinIO   MinIOConfig
	S3      S3Config
	Swift   SwiftConfig
}

// UploadConfig holds ingestion limits and public URL settings.
type UploadConfig struct {
	MaxFileSizeMB    int64
	MaxFilesPerBatch int
	MaxCount         int
	RateWindow       time.Duration
	PublicDomain     string
	PublicScheme     string
	NotFoundKey      string
}

// MaxFileSizeBytes returns the per-file ceiling in bytes.
func (u UploadConfig) MaxFileSizeBytes() int64 {
	return u.MaxFileSizeMB * 1024 * 1024
}

// CacheConfig holds edge cache sizing.
type CacheConfig struct {
	MaxObjectMB int64
	HardMaxMB   int
	Shards      int
	LifeWindow  time.Duration
}

// MaxObjectBytes is the cache-eligibility ceiling: larger objects are always streamed from the blob store.
func (c CacheConfig) MaxObjectBytes() int64 {
	return c.MaxObjectMB * 1024 * 1024
}

// PurgeConfig holds credentials for the external cache invalidation API.
type PurgeConfig struct {
	APIBase string
	ZoneID  string
	APIKey  string
	Email   string
	Timeout time.Duration
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost       string
	Port          string
	TimeZone      string
	LogLevel      string
	AdminPassword string
	Database      DatabaseConfig
	Blob          BlobConfig
	Upload        UploadConfig
	Cache         CacheConfig
	Purge         PurgeConfig
}

// BodyLimitBytes is the HTTP request body ceiling. It leaves room for one oversized
// file so the ingestion pipeline, not the router, reports the size violation.
func (c *AppConfig) BodyLimitBytes() int {
	limit := c.Upload.MaxFileSizeBytes()*int64(c.Upload.MaxFilesPerBatch+1) + 1024*1024
	return int(limit)
}

// Location resolves TimeZone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:       getEnv("APP_HOST", "localhost:8080"),
		Port:          getEnv("PORT", "8080"),
		TimeZone:      getEnv("TZ_NAME", "UTC"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Blob: BlobConfig{
			Backend: getEnv("BLOB_BACKEND", "minio"),
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", ""),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			S3: S3Config{
				Region:       getEnv("S3_REGION", "us-east-1"),
				Endpoint:     getEnv("S3_ENDPOINT", ""),
				AccessKey:    getEnv("S3_ACCESS_KEY", ""),
				SecretKey:    getEnv("S3_SECRET_KEY", ""),
				Bucket:       getEnv("S3_BUCKET", ""),
				UsePathStyle: getEnvBool("S3_USE_PATH_STYLE", false),
			},
			Swift: SwiftConfig{
				AuthURL:   getEnv("SWIFT_AUTH_URL", ""),
				UserName:  getEnv("SWIFT_USERNAME", ""),
				APIKey:    getEnv("SWIFT_API_KEY", ""),
				Domain:    getEnv("SWIFT_DOMAIN", "Default"),
				Tenant:    getEnv("SWIFT_TENANT", ""),
				Region:    getEnv("SWIFT_REGION", ""),
				Container: getEnv("SWIFT_CONTAINER", ""),
			},
		},
		Upload: UploadConfig{
			MaxFileSizeMB:    getEnvInt64("MAX_FILE_SIZE_MB", 20),
			MaxFilesPerBatch: getEnvInt("MAX_FILES_PER_BATCH", 10),
			MaxCount:         getEnvInt("MAX_COUNT", 50),
			RateWindow:       getEnvDuration("RATE_WINDOW", time.Hour),
			PublicDomain:     getEnv("PUBLIC_DOMAIN", "localhost:8080"),
			PublicScheme:     getEnv("PUBLIC_SCHEME", "https"),
			NotFoundKey:      getEnv("NOT_FOUND_KEY", "up/404.png"),
		},
		Cache: CacheConfig{
			MaxObjectMB: getEnvInt64("CACHE_MAX_OBJECT_MB", 110),
			HardMaxMB:   getEnvInt("CACHE_HARD_MAX_MB", 2048),
			Shards:      getEnvInt("CACHE_SHARDS", 16),
			LifeWindow:  getEnvDuration("CACHE_LIFE_WINDOW", 24*time.Hour),
		},
		Purge: PurgeConfig{
			APIBase: getEnv("CLOUDFLARE_API_BASE", "https://api.cloudflare.com/client/v4"),
			ZoneID:  getEnv("CLOUDFLARE_ZONE_ID", ""),
			APIKey:  getEnv("CLOUDFLARE_API_KEY", ""),
			Email:   getEnv("CLOUDFLARE_EMAIL", ""),
			Timeout: getEnvDuration("CLOUDFLARE_TIMEOUT", 10*time.Second),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
