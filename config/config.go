package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	HTTP     ServerConfig
	MySQL    MySQLConfig
	Log      LogConfig
	Razorpay RazorpayConfig
	Bookings BookingsConfig
	Jobs     JobsConfig
}

type AppConfig struct {
	ServiceName string
	APIKey      string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type RazorpayConfig struct {
	KeyID              string
	KeySecret          string
	WebhookSecret      string
	WebhookVerifyToken string
	HTTPTimeout        time.Duration
}

type BookingsConfig struct {
	NotifyURL           string
	NotifyMaxAttempts   int32
	NotifyRetryInterval time.Duration
	NotifyHTTPTimeout   time.Duration
	PendingTimeout      time.Duration
	SweepStaleAfter     time.Duration
	JobBatchSize        int32
}

type JobsConfig struct {
	SweepInterval          time.Duration
	NotifyDispatchInterval time.Duration
	ExpirePendingInterval  time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "bookings-service"),
			APIKey:      getEnv("APP_API_KEY", ""),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Razorpay: RazorpayConfig{
			KeyID:              getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret:          getEnv("RAZORPAY_KEY_SECRET", ""),
			WebhookSecret:      getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
			WebhookVerifyToken: getEnv("RAZORPAY_WEBHOOK_VERIFY_TOKEN", ""),
			HTTPTimeout:        getSecondsEnv("RAZORPAY_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Bookings: BookingsConfig{
			NotifyURL:           getEnv("BOOKINGS_NOTIFY_URL", ""),
			NotifyMaxAttempts:   int32(getIntEnv("BOOKINGS_NOTIFY_MAX_ATTEMPTS", 10)),
			NotifyRetryInterval: getMinutesEnv("BOOKINGS_NOTIFY_RETRY_INTERVAL_MINUTES", 5*time.Minute),
			NotifyHTTPTimeout:   getSecondsEnv("BOOKINGS_NOTIFY_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			PendingTimeout:      getMinutesEnv("BOOKINGS_PENDING_TIMEOUT_MINUTES", 60*time.Minute),
			SweepStaleAfter:     getMinutesEnv("BOOKINGS_SWEEP_STALE_AFTER_MINUTES", 15*time.Minute),
			JobBatchSize:        int32(getIntEnv("BOOKINGS_JOB_BATCH_SIZE", 100)),
		},
		Jobs: JobsConfig{
			SweepInterval:          getMinutesEnv("BOOKINGS_SWEEP_INTERVAL_MINUTES", 2*time.Minute),
			NotifyDispatchInterval: getMinutesEnv("BOOKINGS_NOTIFY_DISPATCH_INTERVAL_MINUTES", time.Minute),
			ExpirePendingInterval:  getMinutesEnv("BOOKINGS_EXPIRE_PENDING_INTERVAL_MINUTES", 5*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
