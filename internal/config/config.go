// Package config handles Ecco6 configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order:
// ./config.yaml, ~/.config/ecco6/config.yaml, /etc/ecco6/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "ecco6", "config.yaml"))
	}

	paths = append(paths, "/etc/ecco6/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Ecco6 configuration.
type Config struct {
	Listen        ListenConfig        `yaml:"listen"`
	DataDir       string              `yaml:"data_dir"`
	LogLevel      string              `yaml:"log_level"`
	LogFormat     string              `yaml:"log_format"` // text or json
	Timezone      string              `yaml:"timezone"`
	OpenAI        OpenAIConfig        `yaml:"openai"`
	Agent         AgentConfig         `yaml:"agent"`
	Alarm         AlarmConfig         `yaml:"alarm"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Email         EmailConfig         `yaml:"email"`
	CalDAV        DAVConfig           `yaml:"caldav"`
	CardDAV       DAVConfig           `yaml:"carddav"`
	Weather       RapidAPIConfig      `yaml:"weather"`
	News          RapidAPIConfig      `yaml:"news"`
	Transit       TransitConfig       `yaml:"transit"`
	Geocode       GeocodeConfig       `yaml:"geocode"`
	Timer         TimerConfig         `yaml:"timer"`
	Documents     DocumentsConfig     `yaml:"documents"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
	// PublicURL is the address devices use to reach the server. It is
	// encoded in the pairing QR code.
	PublicURL string `yaml:"public_url"`
}

// OpenAIConfig defines the OpenAI-compatible endpoint used for chat
// completions and speech.
type OpenAIConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	TranscribeModel string `yaml:"transcribe_model"`
	SpeechModel     string `yaml:"speech_model"`
	Voice           string `yaml:"voice"`
}

// AgentConfig selects the language model and bounds the conversation loop.
type AgentConfig struct {
	Provider      string `yaml:"provider"` // openai or ollama
	Model         string `yaml:"model"`
	OllamaURL     string `yaml:"ollama_url"`
	MaxIterations int    `yaml:"max_iterations"`
	HistoryLimit  int    `yaml:"history_limit"`
}

// AlarmConfig configures the alarm notifier.
type AlarmConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	// NotifyTimeout bounds a single sink delivery.
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
}

// MQTTConfig configures the announcement publisher. An empty Broker
// disables MQTT.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // e.g. mqtt://localhost:1883
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	DeviceName  string `yaml:"device_name"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// Configured reports whether a broker is set.
func (c MQTTConfig) Configured() bool { return c.Broker != "" }

// HomeAssistantConfig defines HA connection settings for the smart light.
type HomeAssistantConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// Configured reports whether both URL and token are set.
func (c HomeAssistantConfig) Configured() bool { return c.URL != "" && c.Token != "" }

// EmailConfig defines the mailbox the assistant reads and sends from.
type EmailConfig struct {
	IMAP MailServerConfig `yaml:"imap"`
	SMTP MailServerConfig `yaml:"smtp"`
	From string           `yaml:"from"`
}

// Configured reports whether an IMAP host is set.
func (c EmailConfig) Configured() bool { return c.IMAP.Host != "" }

// MailServerConfig holds connection details for one mail server.
type MailServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// Insecure disables TLS. Only for local test servers.
	Insecure bool `yaml:"insecure"`
}

// DAVConfig holds a CalDAV or CardDAV endpoint.
type DAVConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// Collection selects a calendar or address book by name. Empty
	// picks the first one found.
	Collection string `yaml:"collection"`
}

// Configured reports whether a URL is set.
func (c DAVConfig) Configured() bool { return c.URL != "" }

// RapidAPIConfig holds a RapidAPI-hosted service.
type RapidAPIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// Configured reports whether an API key is set.
func (c RapidAPIConfig) Configured() bool { return c.APIKey != "" }

// TransitConfig holds the public transport planner settings.
type TransitConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	StopsFile  string `yaml:"stops_file"` // GTFS stops.txt (stop_name, stop_lat, stop_lon)
	MaxResults int    `yaml:"max_results"`
}

// Configured reports whether the planner can be used.
func (c TransitConfig) Configured() bool { return c.BaseURL != "" && c.StopsFile != "" }

// GeocodeConfig holds the reverse geocoding service.
type GeocodeConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// TimerConfig holds the device timer endpoint.
type TimerConfig struct {
	URL string `yaml:"url"`
}

// DocumentsConfig defines where created documents are stored. Empty
// disables the document tools.
type DocumentsConfig struct {
	Path string `yaml:"path"`
}

// LoadEnvFiles loads KEY=value pairs from each existing file into the
// process environment. Variables already set are not overridden and
// missing files are ignored.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from a YAML file. A .env file next to the
// config file is loaded first so secrets can be referenced as ${VAR}.
func Load(path string) (*Config, error) {
	if err := LoadEnvFiles(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.DataDir == "" {
		c.DataDir = "./db"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.OpenAI.TranscribeModel == "" {
		c.OpenAI.TranscribeModel = "whisper-1"
	}
	if c.OpenAI.SpeechModel == "" {
		c.OpenAI.SpeechModel = "tts-1"
	}
	if c.OpenAI.Voice == "" {
		c.OpenAI.Voice = "nova"
	}
	if c.Agent.Provider == "" {
		c.Agent.Provider = "openai"
	}
	if c.Agent.Model == "" {
		c.Agent.Model = "gpt-4o-mini"
	}
	if c.Agent.OllamaURL == "" {
		c.Agent.OllamaURL = "http://localhost:11434"
	}
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = 6
	}
	if c.Agent.HistoryLimit == 0 {
		c.Agent.HistoryLimit = 40
	}
	if c.Alarm.PollInterval == 0 {
		c.Alarm.PollInterval = 60 * time.Second
	}
	if c.Alarm.NotifyTimeout == 0 {
		c.Alarm.NotifyTimeout = 30 * time.Second
	}
	if c.MQTT.DeviceName == "" {
		c.MQTT.DeviceName = "ecco6"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "ecco6"
	}
	if c.Email.IMAP.Port == 0 {
		c.Email.IMAP.Port = 993
	}
	if c.Email.SMTP.Port == 0 {
		c.Email.SMTP.Port = 587
	}
	if c.Email.From == "" {
		c.Email.From = c.Email.SMTP.Username
	}
	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = "https://ai-weather-by-meteosource.p.rapidapi.com"
	}
	if c.News.BaseURL == "" {
		c.News.BaseURL = "https://google-news13.p.rapidapi.com"
	}
	if c.Transit.MaxResults == 0 {
		c.Transit.MaxResults = 3
	}
	if c.Geocode.BaseURL == "" {
		c.Geocode.BaseURL = "https://maps.googleapis.com/maps/api/geocode/json"
	}
}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range", c.Listen.Port)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format %q must be text or json", c.LogFormat)
	}
	if c.Agent.Provider != "openai" && c.Agent.Provider != "ollama" {
		return fmt.Errorf("agent.provider %q must be openai or ollama", c.Agent.Provider)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Alarm.PollInterval < time.Second {
		return fmt.Errorf("alarm.poll_interval %s must be at least 1s", c.Alarm.PollInterval)
	}
	return nil
}

// Location returns the time zone used to interpret alarm dates.
// An empty Timezone means the host's local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
