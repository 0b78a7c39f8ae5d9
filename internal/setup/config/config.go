package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrUnknownBackend        = errors.New("unknown storage backend")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v1.0.0"

// TokenEnv overrides the Discord bot token when set.
const TokenEnv = "WORDWATCH_DISCORD_TOKEN"

// Current version of the config file.
const (
	CurrentCommonVersion = 1
	CurrentBotVersion    = 1
)

// Storage backend names.
const (
	BackendFile     = "file"
	BackendBolt     = "bolt"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig `koanf:"common"`
	Bot    BotConfig    `koanf:"bot"`
}

// CommonConfig contains configuration shared between the bot and the log tool.
type CommonConfig struct {
	// Version of the common config.
	Version int     `koanf:"version"`
	Debug   Debug   `koanf:"debug"`
	Storage Storage `koanf:"storage"`
	Export  Export  `koanf:"export"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warning, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines"`
}

// Storage selects and configures the document backend.
type Storage struct {
	// Backend is one of file, bolt, redis or postgres.
	Backend    string     `koanf:"backend"`
	Documents  Documents  `koanf:"documents"`
	File       File       `koanf:"file"`
	Bolt       Bolt       `koanf:"bolt"`
	Redis      Redis      `koanf:"redis"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
}

// Documents names the three persisted documents.
type Documents struct {
	Watches   string `koanf:"watches"`
	Cooldowns string `koanf:"cooldowns"`
	Log       string `koanf:"log"`
}

// File configures the file backend.
type File struct {
	// Directory holding the JSON documents.
	Directory string `koanf:"directory"`
}

// Bolt configures the bbolt backend.
type Bolt struct {
	// Path of the database file.
	Path string `koanf:"path"`
	// Bucket holding the documents.
	Bucket string `koanf:"bucket"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
	// Prefix of every document key.
	KeyPrefix string `koanf:"key_prefix"`
	// Lease TTL in seconds guarding against two bots sharing the documents.
	LeaseTTL int `koanf:"lease_ttl"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxConns int32 `koanf:"max_conns"`
	// Table holding the documents.
	Table string `koanf:"table"`
}

// DSN returns the connection string for pgx.
func (p PostgreSQL) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?pool_max_conns=%d",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.MaxConns)
}

// Export configures log exports.
type Export struct {
	// Directory receiving exported files.
	Directory string `koanf:"directory"`
	// Default format (xlsx, csv, sqlite).
	DefaultFormat string `koanf:"default_format"`
}

// BotConfig contains Discord bot specific configuration.
type BotConfig struct {
	// Version of the bot config.
	Version     int         `koanf:"version"`
	Discord     Discord     `koanf:"discord"`
	Scan        Scan        `koanf:"scan"`
	Save        Save        `koanf:"save"`
	Permissions Permissions `koanf:"permissions"`
}

// Discord contains the bot connection settings.
type Discord struct {
	// Bot token.
	Token string `koanf:"token"`
	// Command prefix.
	Prefix string `koanf:"prefix"`
}

// Scan configures live and historical scanning.
type Scan struct {
	// Seconds between live scan batches.
	IntervalSeconds int `koanf:"interval_seconds"`
	// Whether user cooldowns gate live notifications.
	EnforceCooldown bool `koanf:"enforce_cooldown"`
	// Channels read in parallel by one history fetch.
	HistoryChannels int `koanf:"history_channels"`
	// History fetches allowed to run at the same time.
	HistoryRuns int `koanf:"history_runs"`
	// Milliseconds between history page requests.
	HistoryPageDelayMS int `koanf:"history_page_delay_ms"`
}

// Save configures periodic persistence.
type Save struct {
	// Seconds between automatic saves.
	IntervalSeconds int `koanf:"interval_seconds"`
}

// Permissions configures the role permission file.
type Permissions struct {
	// Path of the command permission file.
	File string `koanf:"file"`
}

// defaults are applied before any config file is loaded.
var defaults = []struct {
	key   string
	value any
}{
	{"common.debug.log_level", "info"},
	{"common.debug.max_logs_to_keep", 10},
	{"common.debug.max_log_lines", 100000},
	{"common.storage.backend", BackendFile},
	{"common.storage.documents.watches", "userwords.json"},
	{"common.storage.documents.cooldowns", "usercds.json"},
	{"common.storage.documents.log", "message_log.json"},
	{"common.storage.file.directory", "."},
	{"common.storage.bolt.path", "wordwatch.db"},
	{"common.storage.bolt.bucket", "documents"},
	{"common.storage.redis.host", "localhost"},
	{"common.storage.redis.port", 6379},
	{"common.storage.redis.key_prefix", "wordwatch:"},
	{"common.storage.redis.lease_ttl", 60},
	{"common.storage.postgresql.host", "localhost"},
	{"common.storage.postgresql.port", 5432},
	{"common.storage.postgresql.max_conns", 4},
	{"common.storage.postgresql.table", "documents"},
	{"common.export.directory", "exports"},
	{"common.export.default_format", "xlsx"},
	{"bot.discord.prefix", ".."},
	{"bot.scan.interval_seconds", 5},
	{"bot.scan.enforce_cooldown", true},
	{"bot.scan.history_channels", 4},
	{"bot.scan.history_runs", 2},
	{"bot.scan.history_page_delay_ms", 500},
	{"bot.save.interval_seconds", 900},
	{"bot.permissions.file", "command_permissions.json"},
}

// LoadConfig loads the configuration from the default search paths.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return LoadConfigFrom(
		".wordwatch",
		homeDir+"/.wordwatch/config",
		"/etc/wordwatch/config",
		"config",
		".",
	)
}

// LoadConfigFrom loads common.toml and bot.toml from the first search path that
// has each file. A .env file in the working directory is loaded first so the
// token can come from the environment.
func LoadConfigFrom(configPaths ...string) (*Config, string, error) {
	k := koanf.New(".")
	for _, d := range defaults {
		if err := k.Set(d.key, d.value); err != nil {
			return nil, "", fmt.Errorf("failed to set default %s: %w", d.key, err)
		}
	}

	var usedConfigPath string

	for _, configName := range []string{"common", "bot"} {
		configLoaded := false

		for _, path := range configPaths {
			configPath := fmt.Sprintf("%s/%s.toml", path, configName)
			if _, err := os.Stat(configPath); err != nil {
				continue
			}
			if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
				return nil, "", fmt.Errorf("failed to parse %s: %w", configPath, err)
			}

			configLoaded = true
			if usedConfigPath == "" {
				usedConfigPath = path
			}
			break
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}
	if err := checkConfigVersion("bot", config.Bot.Version, CurrentBotVersion); err != nil {
		return nil, "", err
	}

	switch config.Common.Storage.Backend {
	case BackendFile, BackendBolt, BackendRedis, BackendPostgres:
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownBackend, config.Common.Storage.Backend)
	}

	// A missing .env file is fine.
	_ = godotenv.Load()
	if token := os.Getenv(TokenEnv); token != "" {
		config.Bot.Discord.Token = token
	}

	return &config, usedConfigPath, nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/wordwatch/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
