package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Bidding   BiddingConfig   `mapstructure:"bidding"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Product   ProductConfig   `mapstructure:"product"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Leader    LeaderConfig    `mapstructure:"leader"`
	Instance  InstanceConfig  `mapstructure:"instance"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

type BiddingConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type PaymentConfig struct {
	URL           string        `mapstructure:"url"`
	ServiceSecret string        `mapstructure:"service_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ProductConfig points at the product service. With an empty URL the seller
// is taken from the create request instead of the product listing.
type ProductConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SchedulerConfig.Spec takes 5-field or 6-field (leading seconds) cron
// expressions as well as descriptors like "@every 1m".
type SchedulerConfig struct {
	Spec string `mapstructure:"spec"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("storage.driver", StorageMySQL)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("mysql.migrate", true)
	v.SetDefault("bidding.max_attempts", 3)
	v.SetDefault("bidding.retry_backoff", 100*time.Millisecond)
	v.SetDefault("payment.url", "http://localhost:4040/api/v1/payment-service")
	v.SetDefault("payment.service_secret", "bidding-service-secret-key-12345")
	v.SetDefault("payment.timeout", 5*time.Second)
	v.SetDefault("product.url", "")
	v.SetDefault("product.timeout", 5*time.Second)
	v.SetDefault("scheduler.spec", "@every 1m")
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("instance.id", "bidding-service-1")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)
}

func bindEnv(v *viper.Viper) {
	bindings := map[string]string{
		"server.port":             "SERVER_PORT",
		"server.host":             "SERVER_HOST",
		"storage.driver":          "STORAGE_DRIVER",
		"redis.address":           "REDIS_ADDRESS",
		"redis.password":          "REDIS_PASSWORD",
		"redis.db":                "REDIS_DB",
		"mysql.dsn":               "MYSQL_DSN",
		"mysql.max_open_conns":    "MYSQL_MAX_OPEN_CONNS",
		"mysql.max_idle_conns":    "MYSQL_MAX_IDLE_CONNS",
		"mysql.conn_max_lifetime": "MYSQL_CONN_MAX_LIFETIME",
		"mysql.migrate":           "MYSQL_MIGRATE",
		"bidding.max_attempts":    "BIDDING_MAX_ATTEMPTS",
		"bidding.retry_backoff":   "BIDDING_RETRY_BACKOFF",
		"payment.url":             "PAYMENT_SERVICE_URL",
		"payment.service_secret":  "SERVICE_SECRET",
		"payment.timeout":         "PAYMENT_TIMEOUT",
		"product.url":             "PRODUCT_SERVICE_URL",
		"product.timeout":         "PRODUCT_TIMEOUT",
		"scheduler.spec":          "SCHEDULER_SPEC",
		"leader.ttl":              "LEADER_TTL",
		"instance.id":             "INSTANCE_ID",
		"log.level":               "LOG_LEVEL",
		"log.file":                "LOG_FILE",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/auction-bidding/")

	v.AutomaticEnv()
	bindEnv(v)

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.Bidding.MaxAttempts <= 0 {
		return fmt.Errorf("bidding.max_attempts must be positive, got %d", c.Bidding.MaxAttempts)
	}
	if c.Bidding.RetryBackoff <= 0 {
		return fmt.Errorf("bidding.retry_backoff must be positive, got %s", c.Bidding.RetryBackoff)
	}
	switch c.Storage.Driver {
	case StorageMySQL, StorageMemory:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Storage: %s, Redis: %s, Payment: %s, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Storage.Driver,
		c.Redis.Address,
		c.Payment.URL,
		c.Instance.ID,
	)
}
