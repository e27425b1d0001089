package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "HUDDLE"

type Config struct {
	Mode        string          `mapstructure:"mode"`
	Port        int             `mapstructure:"port"`
	StaticPath  string          `mapstructure:"static_path"`
	Secret      string          `mapstructure:"secret"`
	CORSOrigins []string        `mapstructure:"cors_origins"`
	Log         LogConfig       `mapstructure:"log"`
	WS          WSConfig        `mapstructure:"ws"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	Rooms       RoomsConfig     `mapstructure:"rooms"`
	Store       StoreConfig     `mapstructure:"store"`
	ICEServers  []ICEServer     `mapstructure:"ice_servers"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type WSConfig struct {
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
}

type RateLimitConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type RoomsConfig struct {
	// EmptyTTL is how long an explicitly created room may stay empty.
	EmptyTTL      time.Duration `mapstructure:"empty_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type StoreConfig struct {
	Driver       string      `mapstructure:"driver"`
	HistoryLimit int         `mapstructure:"history_limit"`
	Redis        RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Retention is how long a closed room's history and record are kept.
	Retention time.Duration `mapstructure:"retention"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "")
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("ws.read_limit", 65536)
	v.SetDefault("ws.ping_period", "54s")
	v.SetDefault("ws.pong_wait", "60s")
	v.SetDefault("ws.write_wait", "10s")
	v.SetDefault("ws.send_buffer", 64)
	v.SetDefault("rate_limit.limit", 20)
	v.SetDefault("rate_limit.interval", "10s")
	v.SetDefault("rooms.empty_ttl", "10m")
	v.SetDefault("rooms.sweep_interval", "1m")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.history_limit", 200)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.retention", "24h")
}

func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName if it exists, then applies HUDDLE_* overrides.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Static: %s | Store: %s\n", cfg.Mode, cfg.Port, cfg.StaticPath, cfg.Store.Driver)
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.WS.PongWait <= c.WS.PingPeriod {
		return fmt.Errorf("ws.pong_wait (%s) must exceed ws.ping_period (%s)", c.WS.PongWait, c.WS.PingPeriod)
	}
	if c.WS.SendBuffer <= 0 {
		return fmt.Errorf("ws.send_buffer must be positive")
	}
	if c.Rooms.SweepInterval <= 0 {
		return fmt.Errorf("rooms.sweep_interval must be positive")
	}
	switch c.Store.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	return nil
}
