package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rubiojr/fmsearch/pkg/log"
)

//go:embed config.toml.sample
var configTemplate string

// Environment variables overriding the proxy section.
const (
	EnvAllowedOrigins  = "FB_ALLOWED_ORIGINS"
	EnvWebhookURL      = "N8N_WEBHOOK_URL"
	EnvAuthHeaderName  = "N8N_AUTH_HEADER_NAME"
	EnvAuthHeaderValue = "N8N_AUTH_HEADER_VALUE"
)

type Config struct {
	StorageDir string       `toml:"storage_dir"`
	Widget     WidgetConfig `toml:"widget"`
	Proxy      ProxyConfig  `toml:"proxy"`
}

// WidgetConfig holds the search-as-you-type tunables.
type WidgetConfig struct {
	WebhookURL               string   `toml:"webhook_url"`
	MinChars                 int      `toml:"min_chars"`
	Debounce                 Duration `toml:"debounce"`
	MaxResults               int      `toml:"max_results"`
	InitialResults           int      `toml:"initial_results"`
	LoadMoreStep             int      `toml:"load_more_step"`
	RequestTimeout           Duration `toml:"request_timeout"`
	MaxHistory               int      `toml:"max_history"`
	Theme                    string   `toml:"theme"`
	PlaceholderExamples      []string `toml:"placeholder_examples"`
	PlaceholderRotationDelay Duration `toml:"placeholder_rotation_delay"`
}

type ProxyConfig struct {
	Listen          string   `toml:"listen"`
	AllowedOrigins  []string `toml:"allowed_origins"`
	WebhookURL      string   `toml:"webhook_url"`
	AuthHeaderName  string   `toml:"auth_header_name"`
	AuthHeaderValue string   `toml:"auth_header_value"`
	UpstreamTimeout Duration `toml:"upstream_timeout"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// DefaultWidget returns the widget defaults.
func DefaultWidget() WidgetConfig {
	return WidgetConfig{
		WebhookURL:     "http://localhost:8888/.netlify/functions/search",
		MinChars:       4,
		Debounce:       Duration{800 * time.Millisecond},
		MaxResults:     400,
		InitialResults: 100,
		LoadMoreStep:   50,
		RequestTimeout: Duration{30 * time.Second},
		MaxHistory:     3,
		Theme:          "light",
		PlaceholderExamples: []string{
			"Bracelets pour le stress et la fatigue",
			"Collier vert",
			"Pendentifs en améthyste",
			"Bague à moins de 30€",
			"Boucles d'oreilles les mieux notées",
		},
		PlaceholderRotationDelay: Duration{3 * time.Second},
	}
}

// DefaultProxy returns the proxy defaults. Upstream settings have no default.
func DefaultProxy() ProxyConfig {
	return ProxyConfig{
		Listen:          ":8888",
		UpstreamTimeout: Duration{30 * time.Second},
	}
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	return &Config{
		StorageDir: storageDir,
		Widget:     DefaultWidget(),
		Proxy:      DefaultProxy(),
	}, nil
}

// LoadConfig reads configPath, fills unset fields with defaults and applies
// environment overrides. A missing file yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.ForService("config").Debugf("%s not found, using defaults", configPath)
		cfg, err := GetDefaultConfig()
		if err != nil {
			return nil, err
		}
		cfg.Proxy.ApplyEnv(os.Getenv)
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		cfg.StorageDir = storageDir
	}
	cfg.Widget.fillDefaults()
	cfg.Proxy.fillDefaults()
	cfg.Proxy.ApplyEnv(os.Getenv)

	return &cfg, nil
}

func (w *WidgetConfig) fillDefaults() {
	def := DefaultWidget()
	if w.WebhookURL == "" {
		w.WebhookURL = def.WebhookURL
	}
	if w.MinChars <= 0 {
		w.MinChars = def.MinChars
	}
	if w.Debounce.Duration <= 0 {
		w.Debounce = def.Debounce
	}
	if w.MaxResults < 0 {
		w.MaxResults = 0
	}
	if w.MaxResults == 0 {
		w.MaxResults = def.MaxResults
	}
	if w.InitialResults <= 0 {
		w.InitialResults = def.InitialResults
	}
	if w.LoadMoreStep <= 0 {
		w.LoadMoreStep = def.LoadMoreStep
	}
	if w.RequestTimeout.Duration <= 0 {
		w.RequestTimeout = def.RequestTimeout
	}
	if w.MaxHistory <= 0 {
		w.MaxHistory = def.MaxHistory
	}
	if w.Theme == "" {
		w.Theme = def.Theme
	}
	if w.PlaceholderExamples == nil {
		w.PlaceholderExamples = def.PlaceholderExamples
	}
	if w.PlaceholderRotationDelay.Duration <= 0 {
		w.PlaceholderRotationDelay = def.PlaceholderRotationDelay
	}
}

func (p *ProxyConfig) fillDefaults() {
	def := DefaultProxy()
	if p.Listen == "" {
		p.Listen = def.Listen
	}
	if p.UpstreamTimeout.Duration <= 0 {
		p.UpstreamTimeout = def.UpstreamTimeout
	}
}

// ApplyEnv overrides proxy settings with non-blank environment values.
func (p *ProxyConfig) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvAllowedOrigins)); v != "" {
		p.AllowedOrigins = SplitOrigins(v)
	}
	if v := strings.TrimSpace(getenv(EnvWebhookURL)); v != "" {
		p.WebhookURL = v
	}
	if v := strings.TrimSpace(getenv(EnvAuthHeaderName)); v != "" {
		p.AuthHeaderName = v
	}
	if v := strings.TrimSpace(getenv(EnvAuthHeaderValue)); v != "" {
		p.AuthHeaderValue = v
	}
}

// MissingUpstream lists the environment variable names whose settings are
// still blank, in a stable order.
func (p *ProxyConfig) MissingUpstream() []string {
	var missing []string
	if strings.TrimSpace(p.WebhookURL) == "" {
		missing = append(missing, EnvWebhookURL)
	}
	if strings.TrimSpace(p.AuthHeaderName) == "" {
		missing = append(missing, EnvAuthHeaderName)
	}
	if strings.TrimSpace(p.AuthHeaderValue) == "" {
		missing = append(missing, EnvAuthHeaderValue)
	}
	return missing
}

// SplitOrigins parses a comma separated allow-list, dropping blanks.
func SplitOrigins(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes the commented sample with the storage
// directory filled in.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return fmt.Errorf("getting default storage directory: %w", err)
		}
	}

	template := strings.Replace(configTemplate, "/home/user/.local/share/fmsearch", storageDir, 1)
	return os.WriteFile(configPath, []byte(template), 0644)
}

// DBPath is the sqlite file holding client-side state.
func (c *Config) DBPath() string {
	return filepath.Join(c.StorageDir, "fmsearch.db")
}

// GetDefaultStorageDir returns $XDG_DATA_HOME/fmsearch, creating it.
func GetDefaultStorageDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "fmsearch")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetConfigDir returns $XDG_CONFIG_HOME/fmsearch, creating it.
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "fmsearch")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return dir, nil
}

func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
