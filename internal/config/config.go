// Package config loads runtime settings from a YAML file, the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/aretw0/storyline/pkg/domain"
)

// Progress store drivers.
const (
	StoreMemory    = "memory"
	StoreFile      = "file"
	StoreRedis     = "redis"
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"
)

// Notifier drivers.
const (
	NotifierLog  = "log"
	NotifierAMQP = "amqp"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Missions MissionsConfig `yaml:"missions"`
	Store    StoreConfig    `yaml:"store"`
	Notifier NotifierConfig `yaml:"notifier"`
	Audio    AudioConfig    `yaml:"audio"`
	Playback PlaybackConfig `yaml:"playback"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port    int `yaml:"port" env:"STORYLINE_PORT" env-default:"8080" env-description:"HTTP API port"`
	MCPPort int `yaml:"mcp_port" env:"STORYLINE_MCP_PORT" env-default:"8081" env-description:"MCP SSE port"`
}

type MissionsConfig struct {
	Dir   string `yaml:"dir" env:"STORYLINE_MISSIONS_DIR" env-default:"missions" env-description:"Mission content directory"`
	Watch bool   `yaml:"watch" env:"STORYLINE_WATCH" env-default:"false" env-description:"Stream reload signals when content changes"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" env:"STORYLINE_STORE" env-default:"memory" env-description:"memory, file, redis, postgres or firestore"`
	Path   string `yaml:"path" env:"STORYLINE_STORE_PATH" env-default:".storyline/progress" env-description:"Directory of the file store"`

	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
	RedisTTL      time.Duration `yaml:"redis_ttl" env:"STORYLINE_REDIS_TTL" env-default:"0s" env-description:"Checkpoint expiry, 0 keeps them forever"`

	// Lock serializes checkpoint writes across replicas through redis.
	Lock bool `yaml:"lock" env:"STORYLINE_DISTRIBUTED_LOCK" env-default:"false"`

	PostgresDSN string `yaml:"postgres_dsn" env:"DATABASE_URL"`

	FirebaseProject     string `yaml:"firebase_project" env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentials string `yaml:"firebase_credentials" env:"GOOGLE_APPLICATION_CREDENTIALS"`

	PseudonymKey string `yaml:"pseudonym_key" env:"STORYLINE_PSEUDONYM_KEY" env-description:"Stores HMAC pseudonyms instead of raw player ids when set"`
}

type NotifierConfig struct {
	Driver  string `yaml:"driver" env:"STORYLINE_NOTIFIER" env-default:"log" env-description:"log or amqp"`
	AMQPURL string `yaml:"amqp_url" env:"RABBITMQ_URI"`
	Queue   string `yaml:"queue" env:"STORYLINE_NOTIFIER_QUEUE" env-default:"storyline.mission_completed"`
}

type AudioConfig struct {
	AssetDir  string `yaml:"asset_dir" env:"STORYLINE_ASSET_DIR" env-default:"public" env-description:"Directory narration paths resolve against"`
	AssetRoot string `yaml:"asset_root" env:"STORYLINE_ASSET_ROOT" env-default:"/" env-description:"Public URL prefix of narration assets"`
	Autoplay  bool   `yaml:"autoplay" env:"STORYLINE_AUTOPLAY" env-default:"true" env-description:"false simulates a blocked autoplay policy"`
}

type PlaybackConfig struct {
	BackgroundApply      time.Duration `yaml:"background_apply" env:"STORYLINE_BACKGROUND_APPLY" env-default:"50ms"`
	BackgroundTransition time.Duration `yaml:"background_transition" env:"STORYLINE_BACKGROUND_TRANSITION" env-default:"1200ms"`
	FirstCharacterDelay  time.Duration `yaml:"first_character_delay" env:"STORYLINE_FIRST_CHARACTER_DELAY" env-default:"2s"`
	FallbackTyping       time.Duration `yaml:"fallback_typing" env:"STORYLINE_FALLBACK_TYPING" env-default:"3s"`
	ActionDelayFloor     time.Duration `yaml:"action_delay_floor" env:"STORYLINE_ACTION_DELAY_FLOOR" env-default:"500ms"`
	GateAdvanceOnTyping  bool          `yaml:"gate_advance_on_typing" env:"STORYLINE_GATE_ADVANCE_ON_TYPING" env-default:"false"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text" env-description:"text or json"`
}

// Load reads path when it is set, otherwise the environment alone.
// A .env file in the working directory is loaded first and never overrides
// variables that are already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks driver names and the settings each driver requires.
func (c *Config) Validate() error {
	var errs []error

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case StoreMemory, StoreFile, StoreRedis:
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store postgres requires DATABASE_URL"))
		}
	case StoreFirestore:
		if c.Store.FirebaseProject == "" {
			errs = append(errs, errors.New("store firestore requires FIREBASE_PROJECT_ID"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	c.Notifier.Driver = strings.ToLower(strings.TrimSpace(c.Notifier.Driver))
	switch c.Notifier.Driver {
	case NotifierLog:
	case NotifierAMQP:
		if c.Notifier.AMQPURL == "" {
			errs = append(errs, errors.New("notifier amqp requires RABBITMQ_URI"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown notifier driver %q", c.Notifier.Driver))
	}

	if c.Playback.FallbackTyping <= 0 {
		errs = append(errs, errors.New("playback fallback_typing must be positive"))
	}
	return errors.Join(errs...)
}

// Timings converts the playback section into engine timings.
func (c *Config) Timings() domain.Timings {
	p := c.Playback
	return domain.Timings{
		BackgroundApply:      p.BackgroundApply,
		BackgroundTransition: p.BackgroundTransition,
		FirstCharacterDelay:  p.FirstCharacterDelay,
		FallbackTyping:       p.FallbackTyping,
		ActionDelayFloor:     p.ActionDelayFloor,
		GateAdvanceOnTyping:  p.GateAdvanceOnTyping,
	}
}

// Describe lists the environment variables the configuration reads.
func Describe() (string, error) {
	var cfg Config
	return cleanenv.GetDescription(&cfg, nil)
}

// Redacted returns a copy with credentials masked, suitable for printing.
func (c Config) Redacted() Config {
	mask := func(s *string) {
		if *s != "" {
			*s = "****"
		}
	}
	mask(&c.Store.RedisPassword)
	mask(&c.Store.PostgresDSN)
	mask(&c.Store.PseudonymKey)
	mask(&c.Notifier.AMQPURL)
	return c
}
