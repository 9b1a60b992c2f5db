package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"catalog-import-service/internal/models"
	"github.com/Tesseract-Nexus/go-shared/secrets"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisURL string

	// Server
	Port           string
	Environment    string
	AllowedOrigins []string

	// Services
	NATSURL         string
	StaffServiceURL string

	// Object storage
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	ImageBucket    string
	ImagePublicURL string

	// Images
	MaxImagesPerRow   int
	ImageConcurrency  int
	ImageFetchTimeout time.Duration
	ImageMaxBytes     int64
	ImageMaxPixels    int64

	// Import settings
	MaxFileBytes        int64
	RunTTL              time.Duration
	DefaultProductTitle string
}

func Load() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	minioUseSSL, _ := strconv.ParseBool(getEnv("MINIO_USE_SSL", "false"))
	maxImagesPerRow, _ := strconv.Atoi(getEnv("MAX_IMAGES_PER_ROW", "10"))
	imageConcurrency, _ := strconv.Atoi(getEnv("IMAGE_CONCURRENCY", "4"))
	imageFetchTimeout, _ := time.ParseDuration(getEnv("IMAGE_FETCH_TIMEOUT", "15s"))
	imageMaxBytes, _ := strconv.ParseInt(getEnv("IMAGE_MAX_BYTES", "10485760"), 10, 64)
	imageMaxPixels, _ := strconv.ParseInt(getEnv("IMAGE_MAX_PIXELS", "40000000"), 10, 64)
	maxFileBytes, _ := strconv.ParseInt(getEnv("IMPORT_MAX_FILE_BYTES", "20971520"), 10, 64)
	runTTL, _ := time.ParseDuration(getEnv("IMPORT_RUN_TTL", "24h"))

	return &Config{
		// Database - fetch password from GCP Secret Manager if enabled
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: secrets.GetDBPassword(),
		DBName:     getEnv("DB_NAME", "products_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://redis.redis-marketplace.svc.cluster.local:6379/0"),

		// Server
		Port:           getEnv("PORT", "8095"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),

		// Services
		NATSURL:         os.Getenv("NATS_URL"),
		StaffServiceURL: getEnv("STAFF_SERVICE_URL", "http://staff-service:8080"),

		// Object storage
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioUseSSL:    minioUseSSL,
		ImageBucket:    getEnv("IMAGE_BUCKET", "product-images"),
		ImagePublicURL: getEnv("IMAGE_PUBLIC_BASE_URL", ""),

		// Images
		MaxImagesPerRow:   maxImagesPerRow,
		ImageConcurrency:  imageConcurrency,
		ImageFetchTimeout: imageFetchTimeout,
		ImageMaxBytes:     imageMaxBytes,
		ImageMaxPixels:    imageMaxPixels,

		// Import settings
		MaxFileBytes:        maxFileBytes,
		RunTTL:              runTTL,
		DefaultProductTitle: getEnv("DEFAULT_PRODUCT_TITLE", "Silk Thread"),
	}
}

// ImagesEnabled reports whether object storage credentials are configured
func (c *Config) ImagesEnabled() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != ""
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Running auto-migrations...")
	if err := db.AutoMigrate(models.CatalogModels()...); err != nil {
		return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
	}
	log.Println("Auto-migrations completed successfully")

	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
