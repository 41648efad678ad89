package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"

	devJWTSecret = "dev-only-jwt-secret"
)

type AppConfig struct {
	Env             string        `mapstructure:"env"`
	Port            int           `mapstructure:"port"`
	FrontendURL     string        `mapstructure:"frontend_url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitPerMin int           `mapstructure:"rate_limit_per_min"`
}

func (a AppConfig) PortString() string { return fmt.Sprintf("%d", a.Port) }

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type MongoConfig struct {
	URI string `mapstructure:"uri"`
	DB  string `mapstructure:"db"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiry     time.Duration `mapstructure:"expiry"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	TopicMessageSent string   `mapstructure:"topic_message_sent"`
}

type NATSConfig struct {
	URL                string `mapstructure:"url"`
	SubjectRoomCreated string `mapstructure:"subject_room_created"`
}

type WSConfig struct {
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	WriteDeadline   time.Duration `mapstructure:"write_deadline"`
	InitTimeout     time.Duration `mapstructure:"init_timeout"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	RateLimitPerSec int           `mapstructure:"rate_limit_per_sec"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	App   AppConfig   `mapstructure:"app"`
	Store StoreConfig `mapstructure:"store"`
	Mongo MongoConfig `mapstructure:"mongo"`
	JWT   JWTConfig   `mapstructure:"jwt"`
	Redis RedisConfig `mapstructure:"redis"`
	Kafka KafkaConfig `mapstructure:"kafka"`
	NATS  NATSConfig  `mapstructure:"nats"`
	WS    WSConfig    `mapstructure:"ws"`
	Log   LogConfig   `mapstructure:"log"`
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "" || strings.EqualFold(c.App.Env, "development")
}

// envBindings lists the environment names accepted for each key, in priority order.
var envBindings = map[string][]string{
	"app.env":                   {"APP_ENV"},
	"app.port":                  {"PORT", "APP_PORT"},
	"app.frontend_url":          {"FRONTEND_URL"},
	"app.shutdown_timeout":      {"SHUTDOWN_TIMEOUT"},
	"app.rate_limit_per_min":    {"RATE_LIMIT_PER_MIN"},
	"store.driver":              {"STORE_DRIVER"},
	"mongo.uri":                 {"MONGODB_URI", "MONGO_URI"},
	"mongo.db":                  {"MONGO_DB"},
	"jwt.secret":                {"JWT_SECRET"},
	"jwt.expiry":                {"JWT_EXPIRY"},
	"jwt.bcrypt_cost":           {"BCRYPT_COST"},
	"redis.addr":                {"REDIS_ADDR"},
	"redis.password":            {"REDIS_PASSWORD"},
	"redis.db":                  {"REDIS_DB"},
	"redis.prefix":              {"REDIS_PREFIX"},
	"kafka.brokers":             {"KAFKA_BROKERS"},
	"kafka.topic_message_sent":  {"KAFKA_TOPIC_MESSAGE_SENT"},
	"nats.url":                  {"NATS_URL"},
	"nats.subject_room_created": {"NATS_SUBJECT_ROOM_CREATED"},
	"ws.ping_interval":          {"WS_PING_INTERVAL"},
	"ws.write_deadline":         {"WS_WRITE_DEADLINE"},
	"ws.init_timeout":           {"WS_INIT_TIMEOUT"},
	"ws.max_message_size":       {"WS_MAX_MESSAGE_SIZE"},
	"ws.rate_limit_per_sec":     {"WS_RATE_LIMIT_PER_SEC"},
	"log.level":                 {"LOG_LEVEL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 4000)
	v.SetDefault("app.frontend_url", "http://localhost:3000")
	v.SetDefault("app.shutdown_timeout", 10*time.Second)
	v.SetDefault("app.rate_limit_per_min", 300)
	v.SetDefault("store.driver", StoreMongo)
	v.SetDefault("mongo.uri", "mongodb://127.0.0.1:27017")
	v.SetDefault("mongo.db", "chat-app")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", 7*24*time.Hour)
	v.SetDefault("jwt.bcrypt_cost", 10)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "chat")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_message_sent", "message.sent")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_room_created", "room.created")
	v.SetDefault("ws.ping_interval", 25*time.Second)
	v.SetDefault("ws.write_deadline", 10*time.Second)
	v.SetDefault("ws.init_timeout", 3*time.Second)
	v.SetDefault("ws.max_message_size", int64(64*1024))
	v.SetDefault("ws.rate_limit_per_sec", 20)
	v.SetDefault("log.level", "")
}

// Load reads an optional config file, then .env, then the process environment.
// Later sources win.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.normalize()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) normalize() {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.App.FrontendURL = strings.TrimRight(strings.TrimSpace(c.App.FrontendURL), "/")

	brokers := c.Kafka.Brokers[:0]
	for _, b := range c.Kafka.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.Kafka.Brokers = brokers

	if c.JWT.Secret == "" && c.IsDevelopment() {
		c.JWT.Secret = devJWTSecret
	}
}

func (c *Config) validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return errors.New("app.port missing or invalid")
	}
	switch c.Store.Driver {
	case StoreMongo:
		if c.Mongo.URI == "" {
			return errors.New("mongo.uri missing")
		}
		if c.Mongo.DB == "" {
			return errors.New("mongo.db missing")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("store.driver %q not supported", c.Store.Driver)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret required outside development")
	}
	if c.JWT.Expiry <= 0 {
		return errors.New("jwt.expiry must be positive")
	}
	if c.App.FrontendURL == "" {
		return errors.New("app.frontend_url missing")
	}
	if c.WS.PingInterval <= 0 || c.WS.WriteDeadline <= 0 || c.WS.InitTimeout <= 0 {
		return errors.New("ws timings must be positive")
	}
	return nil
}
