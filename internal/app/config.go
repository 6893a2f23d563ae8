package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/vladislavdragonenkov/pos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pos/internal/service/checkout"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

const envPrefix = "POS"

// Config описывает настройки запуска кассы.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	LogLevel  string
	LogFormat string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	// SeedDemoData заполняет in-memory хранилище демонстрационным каталогом.
	SeedDemoData bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers  []string
	KafkaTopic    string
	KafkaClientID string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	// SessionIdleTimeout: сессия без запросов дольше этого срока закрывается.
	SessionIdleTimeout   time.Duration
	SessionSweepInterval time.Duration

	CommissionRate decimal.Decimal
	VATRate        decimal.Decimal
	Currency       string

	JWTSecret string
	JWTIssuer string

	CatalogRetryAttempts    int
	CatalogRetryDelay       time.Duration
	CatalogBreakerFailures  int
	CatalogBreakerResetWait time.Duration

	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает настройки для локального запуска на in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",

		LogLevel:  "info",
		LogFormat: "text",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		SeedDemoData:        true,

		KafkaTopic:    kafka.TopicOrderEvents,
		KafkaClientID: "pos-service",

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   200 * time.Millisecond,

		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,

		SessionIdleTimeout:   30 * time.Minute,
		SessionSweepInterval: time.Minute,

		CommissionRate: decimal.Zero,
		VATRate:        decimal.Zero,
		Currency:       checkout.DefaultCurrency,

		JWTIssuer: "pos",

		CatalogRetryAttempts:    3,
		CatalogRetryDelay:       100 * time.Millisecond,
		CatalogBreakerFailures:  5,
		CatalogBreakerResetWait: 30 * time.Second,

		ShutdownTimeout: 10 * time.Second,
	}
}

// LoadConfig читает настройки из окружения с префиксом POS_ (например, POS_HTTP_ADDR).
// envFile, если задан и существует, загружается в окружение раньше; уже выставленные
// переменные он не перекрывает.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	cfg := Config{
		HTTPAddr:    v.GetString("http.addr"),
		GRPCAddr:    v.GetString("grpc.addr"),
		MetricsAddr: v.GetString("metrics.addr"),

		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),

		StorageDriver:       strings.ToLower(v.GetString("storage.driver")),
		PostgresDSN:         v.GetString("postgres.dsn"),
		PostgresAutoMigrate: v.GetBool("postgres.auto_migrate"),
		SeedDemoData:        v.GetBool("storage.seed_demo"),

		RedisAddr:     v.GetString("redis.addr"),
		RedisPassword: v.GetString("redis.password"),
		RedisDB:       v.GetInt("redis.db"),

		KafkaBrokers:  splitList(v.GetString("kafka.brokers")),
		KafkaTopic:    v.GetString("kafka.topic"),
		KafkaClientID: v.GetString("kafka.client_id"),

		OutboxPollInterval: v.GetDuration("outbox.poll_interval"),
		OutboxBatchSize:    v.GetInt("outbox.batch_size"),
		OutboxMaxAttempts:  v.GetInt("outbox.max_attempts"),
		OutboxRetryDelay:   v.GetDuration("outbox.retry_delay"),

		IdempotencyTTL:              v.GetDuration("idempotency.ttl"),
		IdempotencyCleanupInterval:  v.GetDuration("idempotency.cleanup_interval"),
		IdempotencyCleanupBatchSize: v.GetInt("idempotency.cleanup_batch_size"),

		SessionIdleTimeout:   v.GetDuration("session.idle_timeout"),
		SessionSweepInterval: v.GetDuration("session.sweep_interval"),

		Currency: strings.ToUpper(v.GetString("pricing.currency")),

		JWTSecret: v.GetString("jwt.secret"),
		JWTIssuer: v.GetString("jwt.issuer"),

		CatalogRetryAttempts:    v.GetInt("catalog.retry_attempts"),
		CatalogRetryDelay:       v.GetDuration("catalog.retry_delay"),
		CatalogBreakerFailures:  v.GetInt("catalog.breaker_failures"),
		CatalogBreakerResetWait: v.GetDuration("catalog.breaker_reset"),

		ShutdownTimeout: v.GetDuration("shutdown.timeout"),
	}

	var err error
	if cfg.CommissionRate, err = decimal.NewFromString(v.GetString("pricing.commission_rate")); err != nil {
		return Config{}, fmt.Errorf("parse %s_PRICING_COMMISSION_RATE: %w", envPrefix, err)
	}
	if cfg.VATRate, err = decimal.NewFromString(v.GetString("pricing.vat_rate")); err != nil {
		return Config{}, fmt.Errorf("parse %s_PRICING_VAT_RATE: %w", envPrefix, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("http.addr", d.HTTPAddr)
	v.SetDefault("grpc.addr", d.GRPCAddr)
	v.SetDefault("metrics.addr", d.MetricsAddr)
	v.SetDefault("log.level", d.LogLevel)
	v.SetDefault("log.format", d.LogFormat)
	v.SetDefault("storage.driver", d.StorageDriver)
	v.SetDefault("storage.seed_demo", d.SeedDemoData)
	v.SetDefault("postgres.dsn", d.PostgresDSN)
	v.SetDefault("postgres.auto_migrate", d.PostgresAutoMigrate)
	v.SetDefault("redis.addr", d.RedisAddr)
	v.SetDefault("redis.password", d.RedisPassword)
	v.SetDefault("redis.db", d.RedisDB)
	v.SetDefault("kafka.brokers", strings.Join(d.KafkaBrokers, ","))
	v.SetDefault("kafka.topic", d.KafkaTopic)
	v.SetDefault("kafka.client_id", d.KafkaClientID)
	v.SetDefault("outbox.poll_interval", d.OutboxPollInterval)
	v.SetDefault("outbox.batch_size", d.OutboxBatchSize)
	v.SetDefault("outbox.max_attempts", d.OutboxMaxAttempts)
	v.SetDefault("outbox.retry_delay", d.OutboxRetryDelay)
	v.SetDefault("idempotency.ttl", d.IdempotencyTTL)
	v.SetDefault("idempotency.cleanup_interval", d.IdempotencyCleanupInterval)
	v.SetDefault("idempotency.cleanup_batch_size", d.IdempotencyCleanupBatchSize)
	v.SetDefault("session.idle_timeout", d.SessionIdleTimeout)
	v.SetDefault("session.sweep_interval", d.SessionSweepInterval)
	v.SetDefault("pricing.commission_rate", d.CommissionRate.String())
	v.SetDefault("pricing.vat_rate", d.VATRate.String())
	v.SetDefault("pricing.currency", d.Currency)
	v.SetDefault("jwt.secret", d.JWTSecret)
	v.SetDefault("jwt.issuer", d.JWTIssuer)
	v.SetDefault("catalog.retry_attempts", d.CatalogRetryAttempts)
	v.SetDefault("catalog.retry_delay", d.CatalogRetryDelay)
	v.SetDefault("catalog.breaker_failures", d.CatalogBreakerFailures)
	v.SetDefault("catalog.breaker_reset", d.CatalogBreakerResetWait)
	v.SetDefault("shutdown.timeout", d.ShutdownTimeout)
}

// Validate проверяет согласованность настроек до запуска.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("%s_POSTGRES_DSN is required for storage driver %q", envPrefix, c.StorageDriver)
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("%s_JWT_SECRET is required", envPrefix)
	}
	if c.CommissionRate.IsNegative() || c.VATRate.IsNegative() {
		return errors.New("pricing rates must be non-negative")
	}
	if c.SessionIdleTimeout < 0 || c.SessionSweepInterval < 0 {
		return errors.New("session idle timeout and sweep interval must be non-negative")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("%s_KAFKA_TOPIC is required when brokers are set", envPrefix)
	}
	return nil
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
