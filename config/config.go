package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL string
	Port        string
	GoEnv       string
	LogLevel    string
	// EnvFile is the dotenv file that was loaded, empty when only the process environment was used.
	EnvFile string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	TokenTTL    time.Duration

	StorageBackend     string
	UploadDir          string
	AWSRegion          string
	AWSS3Bucket        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioBucket        string
	MinioUseSSL        bool

	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	MailFrom        string
	MaintainerEmail string

	RabbitMQURL       string
	NotificationQueue string
	RedisURL          string

	CORSAllowedOrigins []string

	SeedOperatorUsername  string
	SeedOperatorPassword  string
	SeedOperatorFirstName string
	SeedOperatorLastName  string
	SeedOperatorEmail     string
}

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Environment-specific file first, then .env. Neither is required since
	// deployments usually set variables directly.
	loaded := ""
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err == nil {
		loaded = envFile
	} else if err := godotenv.Load(); err == nil {
		loaded = ".env"
	}

	config := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Port:        getEnv("PORT", "8080"),
		GoEnv:       getEnv("GO_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		EnvFile:     loaded,

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "lab-orders-api"),
		JWTAudience: getEnv("JWT_AUDIENCE", "lab-orders"),
		TokenTTL:    getEnvDuration("TOKEN_TTL", 12*time.Hour),

		StorageBackend:     getEnv("STORAGE_BACKEND", "local"),
		UploadDir:          getEnv("UPLOAD_DIR", "./uploads"),
		AWSRegion:          getEnv("AWS_REGION", "eu-south-1"),
		AWSS3Bucket:        getEnv("AWS_S3_BUCKET", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		MinioEndpoint:      getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:     getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:        getEnv("MINIO_BUCKET", "lab-orders"),
		MinioUseSSL:        getEnvBool("MINIO_USE_SSL", false),

		SMTPHost:        getEnv("SMTP_HOST", "localhost"),
		SMTPPort:        getEnvInt("SMTP_PORT", 1025),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		MailFrom:        getEnv("MAIL_FROM", "noreply@lab-orders.local"),
		MaintainerEmail: getEnv("MAINTAINER_EMAIL", ""),

		RabbitMQURL:       getEnv("RABBITMQ_URL", ""),
		NotificationQueue: getEnv("NOTIFICATION_QUEUE", "order_notifications"),
		RedisURL:          getEnv("REDIS_URL", ""),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),

		SeedOperatorUsername:  getEnv("SEED_OPERATOR_USERNAME", ""),
		SeedOperatorPassword:  getEnv("SEED_OPERATOR_PASSWORD", ""),
		SeedOperatorFirstName: getEnv("SEED_OPERATOR_FIRST_NAME", "Admin"),
		SeedOperatorLastName:  getEnv("SEED_OPERATOR_LAST_NAME", "Lab"),
		SeedOperatorEmail:     getEnv("SEED_OPERATOR_EMAIL", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.IsTest() {
		return nil
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.StorageBackend {
	case "local":
	case "s3":
		if c.AWSS3Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	case "minio":
		if c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when STORAGE_BACKEND=minio")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// GetDatabaseURL returns the database URL
func (c *Config) GetDatabaseURL() string {
	return c.DatabaseURL
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
