// Package config provides configuration management using viper.
// It supports loading from YAML files, an optional .env file and environment
// variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported chat platforms.
const (
	PlatformDiscord  = "discord"
	PlatformTelegram = "telegram"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	RPS       RPSConfig       `mapstructure:"rps"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
	Log       LogConfig       `mapstructure:"log"`
}

// BotConfig selects which chat platform the bot connects to.
type BotConfig struct {
	Platform string `mapstructure:"platform"`
}

// DiscordConfig holds Discord gateway configuration.
type DiscordConfig struct {
	Token   string `mapstructure:"token"`
	AppID   string `mapstructure:"app_id"`
	GuildID string `mapstructure:"guild_id"` // empty registers commands globally
}

// TelegramConfig holds Telegram bot configuration.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds the redis connection used for rate limiting.
// An empty Addr disables limiting.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WhitelistConfig holds community whitelist configuration.
type WhitelistConfig struct {
	Guilds []string `mapstructure:"guilds"`
}

// HTTPConfig holds the ops server configuration.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// RPSConfig holds rock-paper-scissors timing and limits.
type RPSConfig struct {
	ChallengeTTL      time.Duration `mapstructure:"challenge_ttl"`
	TurnTimeout       time.Duration `mapstructure:"turn_timeout"`
	AIInitialTimeout  time.Duration `mapstructure:"ai_initial_timeout"`
	AIRoundTimeout    time.Duration `mapstructure:"ai_round_timeout"`
	TurnPromptDelay   time.Duration `mapstructure:"turn_prompt_delay"`
	RoundDelay        time.Duration `mapstructure:"round_delay"`
	AnimationInterval time.Duration `mapstructure:"animation_interval"`
	HistoryWindow     int           `mapstructure:"history_window"`
	MaxWager          int64         `mapstructure:"max_wager"`
	ChallengeLimit    int           `mapstructure:"challenge_limit"`
	ChallengeWindow   time.Duration `mapstructure:"challenge_window"`
	LockWait          time.Duration `mapstructure:"lock_wait"`
}

// SweeperConfig holds the orphaned match record sweeper schedule.
type SweeperConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory. A .env file in the
// working directory is loaded into the environment first, if present.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g., DISCORD_TOKEN, DATABASE_HOST, RPS_TURN_TIMEOUT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional - env vars can provide all config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Empty defaults register the keys so AutomaticEnv picks them up on Unmarshal
	v.SetDefault("bot.platform", PlatformDiscord)
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.app_id", "")
	v.SetDefault("discord.guild_id", "")
	v.SetDefault("telegram.token", "")
	v.SetDefault("database.password", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "gamebot")
	v.SetDefault("database.name", "gamebot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("redis.db", 0)
	v.SetDefault("http.addr", ":8080")

	// RPS defaults
	v.SetDefault("rps.challenge_ttl", "3m")
	v.SetDefault("rps.turn_timeout", "60s")
	v.SetDefault("rps.ai_initial_timeout", "30s")
	v.SetDefault("rps.ai_round_timeout", "60s")
	v.SetDefault("rps.turn_prompt_delay", "1s")
	v.SetDefault("rps.round_delay", "2s")
	v.SetDefault("rps.animation_interval", "500ms")
	v.SetDefault("rps.history_window", 10)
	v.SetDefault("rps.max_wager", 0)
	v.SetDefault("rps.challenge_limit", 5)
	v.SetDefault("rps.challenge_window", "1m")
	v.SetDefault("rps.lock_wait", "10s")

	v.SetDefault("sweeper.interval", "10m")
	v.SetDefault("sweeper.stale_after", "30m")

	v.SetDefault("log.level", "info")
}

// Validate checks that the selected platform has the credentials it needs.
func (c *Config) Validate() error {
	switch c.Bot.Platform {
	case PlatformDiscord, PlatformTelegram:
	default:
		return fmt.Errorf("unsupported bot platform %q", c.Bot.Platform)
	}
	if c.RPS.TurnTimeout <= 0 || c.RPS.ChallengeTTL <= 0 {
		return errors.New("rps timeouts must be positive")
	}
	if c.RPS.HistoryWindow <= 0 {
		return errors.New("rps.history_window must be positive")
	}
	return nil
}

// IsGuildAllowed checks if a community ID is in the whitelist.
func (c *Config) IsGuildAllowed(guildID string) bool {
	// Empty whitelist means all communities are allowed
	if len(c.Whitelist.Guilds) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Guilds {
		if id == guildID {
			return true
		}
	}
	return false
}
