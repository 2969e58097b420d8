package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/s3transfer/transferctl/internal/constants"
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIURL = "TRANSFERCTL_API_URL"
	EnvProxy  = "TRANSFERCTL_PROXY"
)

// Proxy modes understood by internal/http.ConfigureHTTPClient.
const (
	ProxyModeNone   = "no-proxy"
	ProxyModeSystem = "system"
	ProxyModeBasic  = "basic"
	ProxyModeNTLM   = "ntlm"
)

// Config is the client configuration.
//
// INI format:
//
//	[server]
//	api_base_url = http://localhost:8080/api
//	request_timeout = 5m
//	max_retries = 0
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 0
//	user =
//	no_proxy =
//	warmup = false
//
//	[client]
//	poll_interval = 2s
//	state_path = ~/.config/transferctl/state.json
//	desktop_notifications = false
//	log_file =
//
// The proxy password is never written to disk.
type Config struct {
	APIBaseURL string

	// Proxy settings
	ProxyMode     string // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string
	NoProxy       string // Comma-separated list of hosts to bypass proxy
	ProxyWarmup   bool

	// MaxRetries is how often a failed one-shot request is retried.
	// Zero keeps the single-attempt behaviour.
	MaxRetries     int
	RequestTimeout time.Duration

	// PollInterval is the transfer status polling period.
	PollInterval time.Duration

	// StatePath is the JSON key-value file holding recent buckets and the token.
	StatePath string

	DesktopNotifications bool
	LogFile              string
}

// Validation errors
var (
	ErrMissingAPIBaseURL   = errors.New("api_base_url is required")
	ErrInvalidAPIBaseURL   = errors.New("api_base_url must be an absolute http(s) URL")
	ErrInvalidProxyMode    = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost    = errors.New("proxy host is required for basic and ntlm modes")
	ErrInvalidMaxRetries   = errors.New("max_retries must be between 0 and 10")
	ErrInvalidPollInterval = errors.New("poll_interval must be positive")
	ErrInvalidTimeout      = errors.New("request_timeout must be positive")
)

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		APIBaseURL:     constants.DefaultAPIBaseURL,
		ProxyMode:      ProxyModeNone,
		MaxRetries:     constants.DefaultMaxRetries,
		RequestTimeout: constants.HTTPRequestTimeout,
		PollInterval:   constants.TransferPollInterval,
		StatePath:      DefaultStatePath(),
	}
}

// Load reads configuration from an INI file.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	server := iniFile.Section("server")
	cfg.APIBaseURL = server.Key("api_base_url").MustString(cfg.APIBaseURL)
	cfg.RequestTimeout = server.Key("request_timeout").MustDuration(cfg.RequestTimeout)
	cfg.MaxRetries = server.Key("max_retries").MustInt(cfg.MaxRetries)

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(0)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	client := iniFile.Section("client")
	cfg.PollInterval = client.Key("poll_interval").MustDuration(cfg.PollInterval)
	cfg.StatePath = client.Key("state_path").MustString(cfg.StatePath)
	cfg.DesktopNotifications = client.Key("desktop_notifications").MustBool(false)
	cfg.LogFile = client.Key("log_file").String()

	return cfg, nil
}

// Save writes configuration to an INI file.
// Creates parent directories if they don't exist.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	server, err := iniFile.NewSection("server")
	if err != nil {
		return fmt.Errorf("failed to create server section: %w", err)
	}
	server.Key("api_base_url").SetValue(cfg.APIBaseURL)
	server.Key("request_timeout").SetValue(cfg.RequestTimeout.String())
	server.Key("max_retries").SetValue(strconv.Itoa(cfg.MaxRetries))

	proxy, err := iniFile.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(strconv.Itoa(cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)
	proxy.Key("warmup").SetValue(strconv.FormatBool(cfg.ProxyWarmup))

	client, err := iniFile.NewSection("client")
	if err != nil {
		return fmt.Errorf("failed to create client section: %w", err)
	}
	client.Key("poll_interval").SetValue(cfg.PollInterval.String())
	client.Key("state_path").SetValue(cfg.StatePath)
	client.Key("desktop_notifications").SetValue(strconv.FormatBool(cfg.DesktopNotifications))
	client.Key("log_file").SetValue(cfg.LogFile)

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// ApplyEnv overlays environment variables on top of file values.
func (c *Config) ApplyEnv() {
	if envURL := os.Getenv(EnvAPIURL); envURL != "" {
		c.APIBaseURL = envURL
	}
	if envProxy := os.Getenv(EnvProxy); envProxy != "" {
		c.parseProxyURL(envProxy)
	}
}

// Overrides holds command-line values; zero values leave the config untouched.
type Overrides struct {
	APIBaseURL   string
	ProxyMode    string
	ProxyHost    string
	ProxyPort    int
	MaxRetries   int // negative = unset
	PollInterval time.Duration
	StatePath    string
	LogFile      string
}

// MergeWithFlags applies command-line overrides (highest priority).
func (c *Config) MergeWithFlags(o Overrides) {
	if o.APIBaseURL != "" {
		c.APIBaseURL = o.APIBaseURL
	}
	if o.ProxyMode != "" {
		c.ProxyMode = o.ProxyMode
	}
	if o.ProxyHost != "" {
		c.ProxyHost = o.ProxyHost
	}
	if o.ProxyPort > 0 {
		c.ProxyPort = o.ProxyPort
	}
	if o.MaxRetries >= 0 {
		c.MaxRetries = o.MaxRetries
	}
	if o.PollInterval > 0 {
		c.PollInterval = o.PollInterval
	}
	if o.StatePath != "" {
		c.StatePath = o.StatePath
	}
	if o.LogFile != "" {
		c.LogFile = o.LogFile
	}

	if c.APIBaseURL != "" && !strings.HasPrefix(c.APIBaseURL, "http") {
		c.APIBaseURL = "http://" + c.APIBaseURL
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
}

// parseProxyURL parses host[:port] or a proxy URL with optional credentials.
func (c *Config) parseProxyURL(raw string) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return
	}
	c.ProxyHost = u.Hostname()
	if p, err := strconv.Atoi(u.Port()); err == nil {
		c.ProxyPort = p
	}
	if u.User != nil {
		c.ProxyUser = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.ProxyPassword = pw
		}
	}
	if c.ProxyMode == "" || c.ProxyMode == ProxyModeNone {
		c.ProxyMode = ProxyModeBasic
	}
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return ErrMissingAPIBaseURL
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidAPIBaseURL
	}

	switch strings.ToLower(c.ProxyMode) {
	case "", ProxyModeNone, ProxyModeSystem:
	case ProxyModeBasic, ProxyModeNTLM:
		if c.ProxyHost == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrInvalidProxyMode
	}

	if c.MaxRetries < 0 || c.MaxRetries > constants.MaxMaxRetries {
		return ErrInvalidMaxRetries
	}
	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}
