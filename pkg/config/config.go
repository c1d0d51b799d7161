package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	ClickHouse ClickHouseConfig
	Kafka      KafkaConfig
	Storage    StorageConfig
	Directory  DirectoryConfig
	Auth       AuthConfig
	Logging    LoggingConfig
	Usage      UsageConfig
	Analyzer   AnalyzerConfig
	Audit      AuditRelayConfig
}

type ServerConfig struct {
	HTTPPort    int           `mapstructure:"http_port"`
	MetricsPort int           `mapstructure:"metrics_port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Schema       string `mapstructure:"schema"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Addresses   []string `mapstructure:"addresses"`
	Password    string   `mapstructure:"password"`
	DB          int      `mapstructure:"db"`
	PoolSize    int      `mapstructure:"pool_size"`
	ClusterMode bool     `mapstructure:"cluster_mode"`
}

type ClickHouseConfig struct {
	Hosts    []string `mapstructure:"hosts"`
	Database string   `mapstructure:"database"`
	User     string   `mapstructure:"user"`
	Password string   `mapstructure:"password"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	ClientID       string   `mapstructure:"client_id"`
	SyncTopic      string   `mapstructure:"sync_topic"`
	SyncRetryTopic string   `mapstructure:"sync_retry_topic"`
	SyncDLQTopic   string   `mapstructure:"sync_dlq_topic"`
	SyncGroup      string   `mapstructure:"sync_group"`
	AuditTopic     string   `mapstructure:"audit_topic"`
	AuditDLQTopic  string   `mapstructure:"audit_dlq_topic"`
}

type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type DirectoryConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	PageSize int           `mapstructure:"page_size"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Issuer    string        `mapstructure:"issuer"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

type UsageConfig struct {
	StorageDriver string `mapstructure:"storage_driver"` // postgres or clickhouse
	RetentionDays int    `mapstructure:"retention_days"`
}

type AnalyzerConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	LookbackDays       int           `mapstructure:"lookback_days"`
	DowngradeThreshold float64       `mapstructure:"downgrade_threshold"`
}

type AuditRelayConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/seatwise/")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("SEATWISE")
	viper.AutomaticEnv()

	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.metrics_port", 9091)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("database.schema", "optimizer")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("redis.pool_size", 100)
	viper.SetDefault("kafka.client_id", "seatwise")
	viper.SetDefault("kafka.sync_topic", "seatwise.sync.jobs")
	viper.SetDefault("kafka.sync_retry_topic", "seatwise.sync.jobs.retry")
	viper.SetDefault("kafka.sync_dlq_topic", "seatwise.sync.jobs.dlq")
	viper.SetDefault("kafka.sync_group", "seatwise-sync-workers")
	viper.SetDefault("kafka.audit_topic", "seatwise.audit.events")
	viper.SetDefault("kafka.audit_dlq_topic", "seatwise.audit.events.dlq")
	viper.SetDefault("storage.bucket", "seatwise-reports")
	viper.SetDefault("directory.timeout", "30s")
	viper.SetDefault("directory.page_size", 200)
	viper.SetDefault("auth.token_ttl", "24h")
	viper.SetDefault("auth.issuer", "seatwise")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("usage.storage_driver", "postgres")
	viper.SetDefault("usage.retention_days", 365)
	viper.SetDefault("analyzer.poll_interval", "10s")
	viper.SetDefault("analyzer.lookback_days", 90)
	viper.SetDefault("analyzer.downgrade_threshold", 0.35)
	viper.SetDefault("audit.poll_interval", "5s")
	viper.SetDefault("audit.batch_size", 100)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode, c.Schema,
	)
}
