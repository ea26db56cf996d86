package server

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	defaultPort               = ":8080"
	defaultMaxFrameSize       = 16384
	defaultMaxReadSize        = 1 << 20
	defaultMaxContentLength   = 2000
	defaultReplySnippetLength = 100
	defaultMaxConnections     = 1024
	defaultSendBufferSize     = 256
	defaultDispatchQueueSize  = 256
	defaultShutdownTimeout    = 10 * time.Second
	defaultPongWait           = 60 * time.Second
	defaultWriteWait          = 10 * time.Second
)

// Config holds the server settings, read from the environment.
type Config struct {
	Port               string        `env:"SERVER_PORT,default=:8080"`
	AllowedOrigins     string        `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxFrameSize       int64         `env:"MAX_FRAME_SIZE,default=16384" validate:"gte=0"`
	MaxReadSize        int64         `env:"MAX_READ_SIZE,default=1048576" validate:"gte=0"`
	MaxContentLength   int           `env:"MAX_CONTENT_LENGTH,default=2000" validate:"gte=0"`
	ReplySnippetLength int           `env:"REPLY_SNIPPET_LENGTH,default=100" validate:"gte=0"`
	MaxConnections     int           `env:"MAX_CONNECTIONS,default=1024" validate:"gte=0"`
	SendBufferSize     int           `env:"SEND_BUFFER_SIZE,default=256" validate:"gte=0"`
	DispatchQueueSize  int           `env:"DISPATCH_QUEUE_SIZE,default=256" validate:"gte=0"`
	JWTSecret          string        `env:"JWT_SECRET,required=true" validate:"required,min=16"`
	JWTIssuer          string        `env:"JWT_ISSUER,default=codechicks"`
	BadgerFilepath     string        `env:"BADGER_FILEPATH,default=./data/chat"`
	LogLevel           string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gte=0"`
	PongWait           time.Duration `env:"PONG_WAIT,default=60s" validate:"gte=0"`
	WriteWait          time.Duration `env:"WRITE_WAIT,default=10s" validate:"gte=0"`
}

// StorageConfig is the part of Config that commands working on the store
// alone need. It carries no credentials.
type StorageConfig struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/chat"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

var validate = validator.New()

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// LoadConfig reads an optional .env file, then the process environment.
func LoadConfig() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return checkConfig(cfg)
}

// LoadStorageConfig reads the store location and log level the same way
// LoadConfig does, without requiring the server secrets.
func LoadStorageConfig() (StorageConfig, error) {
	if err := loadDotEnv(); err != nil {
		return StorageConfig{}, err
	}
	var cfg StorageConfig
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return StorageConfig{}, fmt.Errorf("config error: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return StorageConfig{}, fmt.Errorf("invalid config: %w", err)
	}
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)
	return cfg, nil
}

// ParseConfig decodes, validates and sanitizes a config from es.
func ParseConfig(es env.EnvSet) (Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return checkConfig(cfg)
}

func checkConfig(cfg Config) (Config, error) {
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return sanitizeConfig(cfg), nil
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = defaultMaxFrameSize
	}
	if cfg.MaxReadSize <= 0 {
		cfg.MaxReadSize = defaultMaxReadSize
	}
	// Frames between the two limits are rejected but the connection is kept;
	// past MaxReadSize the socket is closed.
	if cfg.MaxReadSize < cfg.MaxFrameSize {
		cfg.MaxReadSize = cfg.MaxFrameSize
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = defaultMaxContentLength
	}
	if cfg.ReplySnippetLength <= 0 {
		cfg.ReplySnippetLength = defaultReplySnippetLength
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = defaultMaxConnections
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}
	if cfg.DispatchQueueSize <= 0 {
		cfg.DispatchQueueSize = defaultDispatchQueueSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaultWriteWait
	}
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)
	return cfg
}

// Origins returns the configured origin allow-list entries.
func (c Config) Origins() []string {
	return parseOrigins(c.AllowedOrigins)
}

// PingPeriod must stay below PongWait so a healthy peer always answers in
// time.
func (c Config) PingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

func parseOrigins(origins string) []string {
	if strings.TrimSpace(origins) == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
