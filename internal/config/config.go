package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Env             string `mapstructure:"env"`
	Port            int    `mapstructure:"port"`
	RateLimitPerMin int    `mapstructure:"rate_limit_per_min"`
}

func (a *AppConfig) PortString() string { return fmt.Sprintf("%d", a.Port) }

type MongoConfig struct {
	URI string `mapstructure:"uri"`
	DB  string `mapstructure:"db"`
}

type RedisConfig struct {
	Addr            string `mapstructure:"addr"`
	Password        string `mapstructure:"password"`
	DB              int    `mapstructure:"db"`
	RightsTTLSecond int    `mapstructure:"rights_ttl_seconds"`
}

type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	TopicReferences   string   `mapstructure:"topic_references"`
	RetryDelaySeconds int      `mapstructure:"retry_delay_seconds"`
	RetryAttempts     int      `mapstructure:"retry_attempts"`
	QueueSize         int      `mapstructure:"queue_size"`
}

type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type WSConfig struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
}

type Config struct {
	App   AppConfig   `mapstructure:"app"`
	Mongo MongoConfig `mapstructure:"mongo"`
	Redis RedisConfig `mapstructure:"redis"`
	Kafka KafkaConfig `mapstructure:"kafka"`
	S3    S3Config    `mapstructure:"s3"`
	JWT   JWTConfig   `mapstructure:"jwt"`
	WS    WSConfig    `mapstructure:"ws"`

	// derived
	PingInterval  time.Duration
	WriteDeadline time.Duration
	RetryDelay    time.Duration
	RightsTTL     time.Duration
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(path); statErr == nil {
				return nil, err
			}
		}
	}
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	overrideFromEnv(&c)
	applyDefaults(&c)

	if err := validate(&c); err != nil {
		return nil, err
	}

	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second
	c.RetryDelay = time.Duration(c.Kafka.RetryDelaySeconds) * time.Second
	c.RightsTTL = time.Duration(c.Redis.RightsTTLSecond) * time.Second
	return &c, nil
}

func overrideFromEnv(c *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.App.Env = v
	}
	if v := os.Getenv("SERVICE_PORT"); v != "" {
		n, _ := strconv.Atoi(v)
		c.App.Port = n
	}
	if v := os.Getenv("MONGODB_URI"); v != "" {
		c.Mongo.URI = v
	}
	if v := os.Getenv("MONGO_DB"); v != "" {
		c.Mongo.DB = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKER"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC_REFERENCES"); v != "" {
		c.Kafka.TopicReferences = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		c.S3.Region = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		c.S3.Bucket = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
}

func applyDefaults(c *Config) {
	if c.App.Port == 0 {
		c.App.Port = 8080
	}
	if c.App.RateLimitPerMin == 0 {
		c.App.RateLimitPerMin = 300
	}
	if c.Kafka.TopicReferences == "" {
		c.Kafka.TopicReferences = "room-references"
	}
	// retry policy mirrors the reference consumer contract: fixed delay,
	// bounded attempts.
	if c.Kafka.RetryDelaySeconds == 0 {
		c.Kafka.RetryDelaySeconds = 3
	}
	if c.Kafka.RetryAttempts == 0 {
		c.Kafka.RetryAttempts = 10
	}
	if c.Kafka.QueueSize == 0 {
		c.Kafka.QueueSize = 1024
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
	if c.S3.KeyPrefix == "" {
		c.S3.KeyPrefix = "ChatiZZe"
	}
	if c.Redis.RightsTTLSecond == 0 {
		c.Redis.RightsTTLSecond = 30
	}
	if c.WS.PingIntervalSeconds == 0 {
		c.WS.PingIntervalSeconds = 25
	}
	if c.WS.WriteDeadlineSeconds == 0 {
		c.WS.WriteDeadlineSeconds = 10
	}
	if c.WS.MaxMessageSizeBytes == 0 {
		c.WS.MaxMessageSizeBytes = 65536
	}
}

func validate(c *Config) error {
	if c.Mongo.URI == "" {
		return errors.New("mongo.uri missing")
	}
	if c.Mongo.DB == "" {
		return errors.New("mongo.db missing")
	}
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers missing")
	}
	if c.S3.Bucket == "" {
		return errors.New("s3.bucket missing")
	}
	return nil
}
