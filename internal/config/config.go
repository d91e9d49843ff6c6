// Package config handles loading and managing configuration for dida-digest.
// It supports loading from YAML files, a .env file, environment variables,
// and hardcoded defaults.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Jayphen/dida-digest/internal/logging"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for dida-digest.
type Config struct {
	// ClientID and ClientSecret identify the registered Dida365 application
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	// RedirectURI is the OAuth redirect registered with the application
	RedirectURI string `yaml:"redirect_uri"`

	// AuthURL, TokenURL and APIBaseURL override the Dida365 endpoints
	AuthURL    string `yaml:"auth_url"`
	TokenURL   string `yaml:"token_url"`
	APIBaseURL string `yaml:"api_base_url"`

	// Source selects the task source, e.g. "dida" or "file:path=tasks.yaml"
	Source string `yaml:"source"`

	// Timezone is the IANA zone used for "today"; empty means the host zone
	Timezone string `yaml:"timezone"`

	// Timeout bounds each HTTP request
	Timeout time.Duration `yaml:"timeout"`

	// SkipEmpty suppresses delivery when no task is pending
	SkipEmpty bool `yaml:"skip_empty"`

	// DesktopNotify echoes the authorization reminder as a desktop notification
	DesktopNotify bool `yaml:"desktop_notify"`

	WeCom      WeComConfig      `yaml:"wecom"`
	TokenStore TokenStoreConfig `yaml:"token_store"`

	// RedisURL is the Redis connection URL, used by the redis token store
	// and the serve run lock
	RedisURL string `yaml:"redis_url"`

	Schedule ScheduleConfig `yaml:"schedule"`

	// ListenAddr is the address of the serve health and metrics endpoint
	ListenAddr string `yaml:"listen_addr"`

	// RunToken guards POST /run on the serve endpoint; empty disables it
	RunToken string `yaml:"run_token"`

	// CallbackAddr is where auth login listens; derived from RedirectURI if empty
	CallbackAddr string `yaml:"callback_addr"`

	Logging LoggingConfig `yaml:"logging"`
}

// WeComConfig holds the group robot settings.
type WeComConfig struct {
	// BotKey is the webhook key of the group robot
	BotKey string `yaml:"bot_key"`

	// WebhookURL overrides the webhook endpoint
	WebhookURL string `yaml:"webhook_url"`

	// MessageType is "text" or "markdown"
	MessageType string `yaml:"message_type"`

	// Mentions lists user IDs to @ in text messages ("@all" for everyone)
	Mentions []string `yaml:"mentions"`
}

// TokenStoreConfig selects where the OAuth token is kept.
type TokenStoreConfig struct {
	// Type is "file" or "redis"
	Type string `yaml:"type"`

	// Path is the token cache file for the file store
	Path string `yaml:"path"`
}

// ScheduleConfig controls serve.
type ScheduleConfig struct {
	// Times are daily clock times such as "08:30"
	Times []string `yaml:"times"`

	// Interval is used when no times are set
	Interval time.Duration `yaml:"interval"`
}

// LoggingConfig mirrors logging.Settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	JSON       bool   `yaml:"json"`
	Console    bool   `yaml:"console"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Settings converts the section for logging.InitFromSettings.
func (l LoggingConfig) Settings() logging.Settings {
	return logging.Settings{
		Level:      l.Level,
		FilePath:   l.File,
		JSON:       l.JSON,
		Console:    l.Console,
		MaxSize:    l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAge,
		Compress:   l.Compress,
	}
}

// Default configuration values
const (
	DefaultSource         = "dida"
	DefaultTimeout        = 30 * time.Second
	DefaultMessageType    = "text"
	DefaultTokenStoreType = "file"
	DefaultTokenPath      = "data/token_cache"
	DefaultRedisURL       = "redis://localhost:6379"
	DefaultListenAddr     = "127.0.0.1:9090"
	DefaultScheduleTime   = "08:00"
	DefaultLogLevel       = "info"
	DefaultEnvFile        = ".env"
)

var (
	globalConfig *Config
	configOnce   sync.Once
	configErr    error
)

// Get returns the global configuration, loading it if necessary.
// This function is safe for concurrent use.
func Get() (*Config, error) {
	configOnce.Do(func() {
		globalConfig, configErr = Load()
	})
	return globalConfig, configErr
}

// Load reads configuration from files and environment variables.
// Priority (highest to lowest):
// 1. Environment variables
// 2. ./.env
// 3. ~/.config/dida-digest/config.yaml
// 4. ~/.dida-digest.yaml
// 5. Hardcoded defaults
func Load() (*Config, error) {
	var paths []string
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = []string{
			filepath.Join(homeDir, ".dida-digest.yaml"),
			filepath.Join(homeDir, ".config", "dida-digest", "config.yml"),
			filepath.Join(homeDir, ".config", "dida-digest", "config.yaml"),
		}
	}
	return load(paths, DefaultEnvFile, os.Getenv)
}

// LoadFile reads a single config file on top of defaults, then applies the
// .env file and environment.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	return load([]string{path}, DefaultEnvFile, os.Getenv)
}

// load applies files in order, lowest priority first.
func load(paths []string, envFile string, getenv func(string) string) (*Config, error) {
	cfg := defaults()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", path, err)
		}
	}

	// Values already in the environment win over the .env file.
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("invalid env file %s: %w", envFile, err)
	}
	lookup := func(key string) string {
		if val := getenv(key); val != "" {
			return val
		}
		return dotenv[key]
	}

	if err := cfg.applyEnvOverrides(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Source:     DefaultSource,
		Timeout:    DefaultTimeout,
		WeCom:      WeComConfig{MessageType: DefaultMessageType},
		TokenStore: TokenStoreConfig{Type: DefaultTokenStoreType, Path: DefaultTokenPath},
		RedisURL:   DefaultRedisURL,
		Schedule:   ScheduleConfig{Times: []string{DefaultScheduleTime}},
		ListenAddr: DefaultListenAddr,
		Logging:    LoggingConfig{Level: DefaultLogLevel, Console: true, Compress: true},
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
// The unprefixed names are the ones earlier releases read from .env.
func (c *Config) applyEnvOverrides(getenv func(string) string) error {
	first := func(keys ...string) string {
		for _, k := range keys {
			if val := getenv(k); val != "" {
				return val
			}
		}
		return ""
	}

	// OAuth application
	if val := first("DIDA_DIGEST_CLIENT_ID", "CLIENT_ID"); val != "" {
		c.ClientID = val
	}
	if val := first("DIDA_DIGEST_CLIENT_SECRET", "CLIENT_SECRET"); val != "" {
		c.ClientSecret = val
	}
	if val := first("DIDA_DIGEST_REDIRECT_URI", "REDIRECT_URI"); val != "" {
		c.RedirectURI = val
	}
	if val := getenv("DIDA_DIGEST_API_BASE_URL"); val != "" {
		c.APIBaseURL = val
	}

	// WeCom robot
	if val := first("DIDA_DIGEST_WECHAT_BOT_KEY", "WECHAT_BOT_KEY"); val != "" {
		c.WeCom.BotKey = val
	}
	if val := getenv("DIDA_DIGEST_WEBHOOK_URL"); val != "" {
		c.WeCom.WebhookURL = val
	}
	if val := getenv("DIDA_DIGEST_MESSAGE_TYPE"); val != "" {
		c.WeCom.MessageType = val
	}

	if val := getenv("DIDA_DIGEST_SOURCE"); val != "" {
		c.Source = val
	}
	if val := getenv("DIDA_DIGEST_TIMEZONE"); val != "" {
		c.Timezone = val
	}
	if val := getenv("DIDA_DIGEST_TIMEOUT"); val != "" {
		d, err := parseDuration(val)
		if err != nil {
			return fmt.Errorf("DIDA_DIGEST_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if val := getenv("DIDA_DIGEST_SKIP_EMPTY"); val != "" {
		c.SkipEmpty = parseBool(val)
	}

	// Token store (support both REDIS_URL and DIDA_DIGEST_REDIS_URL)
	if val := getenv("DIDA_DIGEST_TOKEN_STORE"); val != "" {
		c.TokenStore.Type = val
	}
	if val := getenv("DIDA_DIGEST_TOKEN_PATH"); val != "" {
		c.TokenStore.Path = val
	}
	if val := first("DIDA_DIGEST_REDIS_URL", "REDIS_URL"); val != "" {
		c.RedisURL = val
	}

	// Schedule
	if val := getenv("DIDA_DIGEST_SCHEDULE_TIMES"); val != "" {
		c.Schedule.Times = splitList(val)
	}
	if val := getenv("DIDA_DIGEST_SCHEDULE_INTERVAL"); val != "" {
		d, err := parseDuration(val)
		if err != nil {
			return fmt.Errorf("DIDA_DIGEST_SCHEDULE_INTERVAL: %w", err)
		}
		c.Schedule.Interval = d
	}
	if val := getenv("DIDA_DIGEST_LISTEN_ADDR"); val != "" {
		c.ListenAddr = val
	}
	if val := getenv("DIDA_DIGEST_RUN_TOKEN"); val != "" {
		c.RunToken = val
	}

	if val := getenv("DIDA_DIGEST_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := getenv("DIDA_DIGEST_LOG_FILE"); val != "" {
		c.Logging.File = val
	}
	if val := getenv("DIDA_DIGEST_LOG_JSON"); val != "" {
		c.Logging.JSON = parseBool(val)
	}

	return nil
}

// parseDuration accepts Go durations and plain seconds.
func parseDuration(val string) (time.Duration, error) {
	if d, err := time.ParseDuration(val); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", val)
	}
	return time.Duration(secs) * time.Second, nil
}

func parseBool(val string) bool {
	switch strings.ToLower(val) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ResolveCallbackAddr returns CallbackAddr, or the host and port of
// RedirectURI when unset.
func (c *Config) ResolveCallbackAddr() (string, error) {
	if c.CallbackAddr != "" {
		return c.CallbackAddr, nil
	}
	if c.RedirectURI == "" {
		return "", fmt.Errorf("redirect_uri is not configured")
	}

	u, err := url.Parse(c.RedirectURI)
	if err != nil {
		return "", fmt.Errorf("invalid redirect_uri: %w", err)
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// CallbackPath is the path component of RedirectURI.
func (c *Config) CallbackPath() string {
	u, err := url.Parse(c.RedirectURI)
	if err != nil || u.Path == "" {
		return ""
	}
	return u.Path
}

// Validate checks the settings needed for a digest run.
func (c *Config) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if c.WeCom.BotKey == "" {
		missing = append(missing, "wecom.bot_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	switch c.TokenStore.Type {
	case "file", "redis":
	default:
		return fmt.Errorf("unknown token_store.type %q", c.TokenStore.Type)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	cp := *c
	cp.ClientSecret = mask(c.ClientSecret)
	cp.WeCom.BotKey = mask(c.WeCom.BotKey)
	cp.RunToken = mask(c.RunToken)
	return &cp
}

func mask(s string) string {
	if len(s) <= 4 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return s[:4] + "****"
}

// Reload forces a reload of the configuration.
// This resets the global singleton and returns the newly loaded config.
func Reload() (*Config, error) {
	configOnce = sync.Once{}
	return Get()
}

// ConfigPaths returns the paths where config files are searched.
func ConfigPaths() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(homeDir, ".config", "dida-digest", "config.yaml"),
		filepath.Join(homeDir, ".config", "dida-digest", "config.yml"),
		filepath.Join(homeDir, ".dida-digest.yaml"),
	}
}

// WriteExample writes an example configuration file to the specified path.
func WriteExample(path string) error {
	example := `# dida-digest configuration file
# Place this file at ~/.config/dida-digest/config.yaml or ~/.dida-digest.yaml
# Secrets may also come from ./.env or the environment
# (CLIENT_ID, CLIENT_SECRET, REDIRECT_URI, WECHAT_BOT_KEY).

# Dida365 OAuth application
client_id: ""
client_secret: ""
redirect_uri: http://localhost:8085/callback

# Task source: "dida", or "file:path=tasks.yaml" for an offline snapshot
source: dida

# IANA time zone for "today" (empty uses the host zone)
timezone: Asia/Shanghai

# HTTP timeout (Go duration format)
timeout: 30s

# Do not push a message when nothing is pending
skip_empty: false

# Echo the authorization reminder as a desktop notification
desktop_notify: false

wecom:
  bot_key: ""
  message_type: text   # text or markdown
  mentions: []

token_store:
  type: file           # file or redis
  path: data/token_cache

redis_url: redis://localhost:6379

# Used by "dida-digest serve"
schedule:
  times: ["08:00"]
  # interval: 1h       # used when times is empty
listen_addr: 127.0.0.1:9090
# Bearer token for POST /run; empty disables the endpoint
run_token: ""

logging:
  level: info
  file: ""
  json: false
  console: true
`
	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(example), 0600)
}
