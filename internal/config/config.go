package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultAddr                 = "localhost:3000"
	defaultDSN                  = "host=localhost user=postgres password=postgres dbname=harmony sslmode=disable"
	defaultPresenceWriteTimeout = 5 * time.Second
)

type Config struct {
	DatabaseDSN          string
	ServerAddr           string
	SigningKey           []byte
	AllowedOrigins       []string
	LogLevel             string
	LogFormat            string
	PresenceWriteTimeout time.Duration
	MigrateOnStart       bool
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		DatabaseDSN:          databaseDSN,
		ServerAddr:           serverAddr,
		SigningKey:           signingKey,
		AllowedOrigins:       allowedOrigins,
		LogLevel:             "info",
		LogFormat:            "console",
		PresenceWriteTimeout: defaultPresenceWriteTimeout,
	}, nil
}

// RegisterFlags adds the server's command line flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("addr", defaultAddr, "server address")
	fs.String("dsn", defaultDSN, "database connection string")
	fs.String("signing-key", "", "base64 encoded signing key")
	fs.String("config", "", "path to a yaml, json or toml config file")
	fs.String("allowed-origins", "", "comma-separated list of allowed origins for CORS")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-format", "console", "log format (console, json)")
	fs.Duration("presence-write-timeout", defaultPresenceWriteTimeout, "timeout for persisting presence changes")
	fs.Bool("migrate", false, "apply database migrations on start")
}

// Load resolves the configuration from flags, HARMONY_* environment
// variables, the optional config file and defaults, in that order of
// precedence.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("harmony")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg, err := NewConfig(
		v.GetString("addr"),
		v.GetString("dsn"),
		v.GetString("signing-key"),
		allowedOrigins(v),
	)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = v.GetString("log-level")
	cfg.LogFormat = v.GetString("log-format")
	cfg.MigrateOnStart = v.GetBool("migrate")
	if timeout := v.GetDuration("presence-write-timeout"); timeout > 0 {
		cfg.PresenceWriteTimeout = timeout
	}

	return cfg, nil
}

// allowedOrigins accepts a comma-separated string, as flags and environment
// variables carry it, or a list from the config file.
func allowedOrigins(v *viper.Viper) []string {
	var raw []string
	if s, ok := v.Get("allowed-origins").(string); ok {
		raw = strings.Split(s, ",")
	} else {
		raw = v.GetStringSlice("allowed-origins")
	}

	var origins []string
	for _, origin := range raw {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
