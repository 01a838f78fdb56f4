package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfigMissing is returned when no config path was given.
var ErrConfigMissing = errors.New("config path is required")

const (
	DefaultAuthDir        = "data/whatsapp_auth"
	DefaultOutput         = "data/messages.jsonl"
	DefaultTelegramOutput = "data/telegram_messages.jsonl"
)

// FlexibleStringSlice is a []string that also accepts YAML numbers and a
// single scalar, so whatsapp_chats can hold both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" || value.Value == "" {
			*f = nil
			return nil
		}
		*f = FlexibleStringSlice{value.Value}
		return nil
	case yaml.SequenceNode:
		result := make([]string, 0, len(value.Content))
		for _, n := range value.Content {
			if n.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: chat id must be a string or number", n.Line)
			}
			result = append(result, n.Value)
		}
		*f = result
		return nil
	default:
		return fmt.Errorf("line %d: expected a list of chat ids", value.Line)
	}
}

// Config is the YAML file shared by all commands.
type Config struct {
	AuthDir       string              `yaml:"whatsapp_auth_dir"`
	OutputJSONL   string              `yaml:"whatsapp_output_jsonl"`
	LegacyOutput  string              `yaml:"output_jsonl"`
	Chats         FlexibleStringSlice `yaml:"whatsapp_chats"`
	BridgeURL     string              `yaml:"whatsapp_bridge_url"`
	BridgeCommand string              `yaml:"whatsapp_bridge_command"`
	Version       []int               `yaml:"whatsapp_version"`
	AuthIdentity  string              `yaml:"whatsapp_auth_identity"`

	TelegramBotToken    string              `yaml:"telegram_bot_token"`
	TelegramAPIURL      string              `yaml:"telegram_api_url"`
	TelegramChats       FlexibleStringSlice `yaml:"chats"`
	TelegramOutputJSONL string              `yaml:"telegram_output_jsonl"`

	Listener ListenerConfig `yaml:"-"`

	path string
}

// ListenerConfig comes from the environment only.
type ListenerConfig struct {
	MaxRetries   int     `env:"LISTENER_MAX_RETRIES"   envDefault:"5"`
	RetrySeconds float64 `env:"LISTENER_RETRY_SECONDS" envDefault:"5"`
	Log          string  `env:"LISTENER_LOG"`

	TelegramBotToken string `env:"TG_BOT_TOKEN"`
}

func (l ListenerConfig) RetryDelay() time.Duration {
	return time.Duration(l.RetrySeconds * float64(time.Second))
}

// Quiet and Verbose read LISTENER_LOG.
func (l ListenerConfig) Quiet() bool   { return strings.EqualFold(l.Log, "quiet") }
func (l ListenerConfig) Verbose() bool { return strings.EqualFold(l.Log, "verbose") }

// LoadConfig reads the YAML file at path. A .env file next to it is loaded
// first without overriding variables already set; string values written as
// ${VAR} or $VAR are then replaced from the environment.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, ErrConfigMissing
	}
	abs, err := filepath.Abs(expandHome(path))
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	envFile := filepath.Join(filepath.Dir(abs), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg := &Config{path: abs}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", abs, err)
	}
	cfg.resolveEnv()

	if err := env.Parse(&cfg.Listener); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.Listener.MaxRetries < 0 {
		return nil, fmt.Errorf("LISTENER_MAX_RETRIES must not be negative")
	}
	return cfg, nil
}

func (c *Config) resolveEnv() {
	for _, p := range []*string{
		&c.AuthDir, &c.OutputJSONL, &c.LegacyOutput,
		&c.BridgeURL, &c.BridgeCommand, &c.AuthIdentity,
		&c.TelegramBotToken, &c.TelegramAPIURL, &c.TelegramOutputJSONL,
	} {
		*p = resolveEnvValue(*p)
	}
	c.Chats = resolveEnvList(c.Chats)
	c.TelegramChats = resolveEnvList(c.TelegramChats)
}

func resolveEnvList(ids FlexibleStringSlice) FlexibleStringSlice {
	out := ids[:0]
	for _, id := range ids {
		if v := resolveEnvValue(id); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// resolveEnvValue replaces a whole-value ${VAR} or $VAR reference. Unset
// variables resolve to "".
func resolveEnvValue(v string) string {
	var key string
	switch {
	case strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}"):
		key = v[2 : len(v)-1]
	case strings.HasPrefix(v, "$"):
		key = v[1:]
	default:
		return v
	}
	return os.Getenv(key)
}

// Path is the absolute path of the loaded file.
func (c *Config) Path() string { return c.path }

func (c *Config) Dir() string { return filepath.Dir(c.path) }

func (c *Config) AuthDirPath() string {
	return c.resolvePath(c.AuthDir, DefaultAuthDir)
}

// OutputPath prefers whatsapp_output_jsonl over the shared output_jsonl.
func (c *Config) OutputPath() string {
	v := c.OutputJSONL
	if v == "" {
		v = c.LegacyOutput
	}
	return c.resolvePath(v, DefaultOutput)
}

// TelegramOutputPath prefers telegram_output_jsonl over the shared
// output_jsonl.
func (c *Config) TelegramOutputPath() string {
	v := c.TelegramOutputJSONL
	if v == "" {
		v = c.LegacyOutput
	}
	return c.resolvePath(v, DefaultTelegramOutput)
}

// BotToken falls back to TG_BOT_TOKEN when telegram_bot_token is unset.
func (c *Config) BotToken() string {
	if c.TelegramBotToken != "" {
		return c.TelegramBotToken
	}
	return c.Listener.TelegramBotToken
}

// IdentityPath is "" when credential encryption is not configured.
func (c *Config) IdentityPath() string {
	if c.AuthIdentity == "" {
		return ""
	}
	return c.resolvePath(c.AuthIdentity, "")
}

func (c *Config) resolvePath(value, def string) string {
	if value == "" {
		value = def
	}
	value = expandHome(value)
	if filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(c.Dir(), value)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
