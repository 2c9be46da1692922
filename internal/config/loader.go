package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "CHATTERBOX"
	envConfigDefaultPath = envPrefix + "_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
//
// A missing config file is created from the defaults so operators have a
// starting point to edit.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range settings(cfg) {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := readOrCreate(v, configPath, cfg, logger); err != nil {
		return cfg, configPath, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, configPath, nil
}

// settings flattens cfg into the dotted keys viper resolves. Every key is
// listed so that AutomaticEnv can see it even when the file omits it.
func settings(cfg Config) map[string]any {
	return map[string]any{
		"addr":                cfg.Addr,
		"read_header_timeout": cfg.ReadHeaderTimeout,
		"shutdown_timeout":    cfg.ShutdownTimeout,
		"log_level":           cfg.LogLevel,
		"log_format":          cfg.LogFormat,
		"redis.addr":          cfg.Redis.Addr,
		"redis.password":      cfg.Redis.Password,
		"redis.db":            cfg.Redis.DB,
		"redis.pool_size":     cfg.Redis.PoolSize,
		"redis.dial_timeout":  cfg.Redis.DialTimeout,
		"rate_limit.limit":    cfg.RateLimit.Limit,
		"rate_limit.window":   cfg.RateLimit.Window,
		"nick_ttl":            cfg.NickTTL,
		"cookie_name":         cfg.CookieName,
		"stream_keepalive":    cfg.StreamKeepalive,
	}
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func readOrCreate(v *viper.Viper, path string, cfg Config, logger *zerolog.Logger) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config: %w", err)
	}

	if writeErr := writeDefaultConfig(path, cfg); writeErr != nil {
		// Defaults and env still apply without a file.
		if logger != nil {
			logger.Warn().Err(writeErr).Str("path", path).Msg("failed to write default config")
		}
		return nil
	}
	if logger != nil {
		logger.Info().Str("path", path).Msg("created default config")
	}

	if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
		logger.Warn().Err(readErr).Str("path", path).Msg("failed to read config after writing default")
	}
	return nil
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

// defaultConfigHeader renders the comment block at the top of a generated
// config file, listing the environment override of every key.
func defaultConfigHeader(cfg Config) []byte {
	keys := make([]string, 0)
	for key := range settings(cfg) {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b bytes.Buffer
	b.WriteString("# chatterbox relay configuration.\n")
	b.WriteString("# Durations use Go syntax (90s, 1m0s). Environment variables override\n")
	b.WriteString("# this file:\n")
	for _, key := range keys {
		fmt.Fprintf(&b, "#   %-20s %s\n", key, EnvName(key))
	}
	b.WriteString("\n")
	return b.Bytes()
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	body, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	// The file may hold the Redis password.
	return os.WriteFile(path, append(defaultConfigHeader(cfg), body...), 0o600)
}
