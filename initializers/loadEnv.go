package initializers

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type DatabaseConfig struct {
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type KhaltiConfig struct {
	SecretKey string
	BaseURL   string
	ReturnURL string
	Timeout   time.Duration
}

type MailConfig struct {
	From        string
	Password    string
	SMTPHost    string
	SMTPAddress string
}

type StorageConfig struct {
	Driver    string
	UploadDir string
	S3Bucket  string
}

type AdminConfig struct {
	Email    string
	Password string
	Name     string
	Username string
	Phone    string
}

type Config struct {
	Port                  string
	GinMode               string
	AllowedOrigins        []string
	FrontendURL           string
	BackendURL            string
	JWTSecret             string
	JWTTTL                time.Duration
	SkipEmailVerification bool
	RedisAddr             string
	RedisPassword         string
	BookCacheTTL          time.Duration
	Database              DatabaseConfig
	Khalti                KhaltiConfig
	Mail                  MailConfig
	Storage               StorageConfig
	Admin                 AdminConfig
}

// LoadEnv reads a .env file if one exists. Real environment variables win.
func LoadEnv() {
	_ = godotenv.Load()
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		FrontendURL:    strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
		BackendURL:     strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8080"), "/"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		Database: DatabaseConfig{
			DSN:      os.Getenv("DB_DSN"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getEnv("DB_NAME", "readpage"),
		},
		Khalti: KhaltiConfig{
			SecretKey: os.Getenv("KHALTI_SECRET_KEY"),
			BaseURL:   strings.TrimRight(getEnv("KHALTI_BASE_URL", "https://a.khalti.com"), "/"),
		},
		Mail: MailConfig{
			From:        os.Getenv("FROM_EMAIL"),
			Password:    os.Getenv("FROM_EMAIL_PASSWORD"),
			SMTPHost:    os.Getenv("FROM_EMAIL_SMTP"),
			SMTPAddress: os.Getenv("SMTP_ADDRESS"),
		},
		Storage: StorageConfig{
			Driver:    getEnv("STORAGE_DRIVER", "local"),
			UploadDir: getEnv("UPLOAD_DIR", "uploads"),
			S3Bucket:  os.Getenv("S3_BUCKET"),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", "admin@readpage.local"),
			Password: os.Getenv("ADMIN_PASSWORD"),
			Name:     getEnv("ADMIN_NAME", "Administrator"),
			Username: getEnv("ADMIN_USERNAME", "admin"),
			Phone:    getEnv("ADMIN_PHONE", "0000000000"),
		},
	}
	cfg.Khalti.ReturnURL = getEnv("KHALTI_RETURN_URL", cfg.BackendURL+"/payments/khalti/complete")

	var err error
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.BookCacheTTL, err = getDuration("BOOK_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Khalti.Timeout, err = getDuration("KHALTI_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SkipEmailVerification, err = getBool("SKIP_EMAIL_VERIFICATION", false); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	switch cfg.Storage.Driver {
	case "local":
	case "s3":
		if cfg.Storage.S3Bucket == "" {
			return nil, errors.New("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.Storage.Driver)
	}
	return cfg, nil
}

// MySQLDSN returns the connection string, preferring DB_DSN when set.
func (c DatabaseConfig) MySQLDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

func (c MailConfig) Enabled() bool {
	return c.From != "" && c.Password != "" && c.SMTPAddress != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
