// Package config loads and edits the whoisscan configuration file. The file
// is YAML when its extension is .yaml or .yml and JSON otherwise.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel   string `json:"log_level" yaml:"log_level"`
	LogFile    string `json:"log_file" yaml:"log_file"`
	OutputPath string `json:"output_path" yaml:"output_path"`
	Marker     string `json:"marker" yaml:"marker"`
	Language   string `json:"language" yaml:"language"`
	DateLayout string `json:"date_layout" yaml:"date_layout"`

	Telegram   TelegramConfig   `json:"telegram" yaml:"telegram"`
	LLM        LLMConfig        `json:"llm" yaml:"llm"`
	Classifier ClassifierConfig `json:"classifier" yaml:"classifier"`
	Notify     NotifyConfig     `json:"notify" yaml:"notify"`
	Store      StoreConfig      `json:"store" yaml:"store"`
	Events     EventsConfig     `json:"events" yaml:"events"`
	Serve      ServeConfig      `json:"serve" yaml:"serve"`
}

type TelegramConfig struct {
	APIID           int    `json:"api_id" yaml:"api_id"`
	APIHash         string `json:"api_hash" yaml:"api_hash"`
	SessionName     string `json:"session_name" yaml:"session_name"`
	ChatID          int64  `json:"chat_id" yaml:"chat_id"`
	PhoneNumber     string `json:"phone_number" yaml:"phone_number"`
	HistoryLimit    int    `json:"history_limit" yaml:"history_limit"`
	MTProtoLogLevel string `json:"mtproto_log_level" yaml:"mtproto_log_level"`
}

type LLMConfig struct {
	Provider       string  `json:"provider" yaml:"provider"`
	BaseURL        string  `json:"base_url" yaml:"base_url"`
	APIKey         string  `json:"api_key" yaml:"api_key"`
	Model          string  `json:"model" yaml:"model"`
	MaxTokens      int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature    float32 `json:"temperature" yaml:"temperature"`
	MaxInputTokens int     `json:"max_input_tokens" yaml:"max_input_tokens"`
}

type ClassifierConfig struct {
	OnError string `json:"on_error" yaml:"on_error"`
}

type NotifyConfig struct {
	BotToken string `json:"bot_token" yaml:"bot_token"`
	ChatID   int64  `json:"chat_id" yaml:"chat_id"`
}

type StoreConfig struct {
	DatabaseURL string `json:"database_url" yaml:"database_url"`
	Table       string `json:"table" yaml:"table"`
}

type EventsConfig struct {
	NATSURL string `json:"nats_url" yaml:"nats_url"`
	Subject string `json:"subject" yaml:"subject"`
}

type ServeConfig struct {
	Listen   string `json:"listen" yaml:"listen"`
	Schedule string `json:"schedule" yaml:"schedule"`
}

// Error is an invalid or unreadable configuration.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config %s: %v", e.Key, e.Err)
	}
	return "config: " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Default returns the configuration used for keys the file does not set.
func Default() *Config {
	cfg := &Config{
		LogLevel:   "info",
		LogFile:    "whoisscan.log",
		OutputPath: "output.txt",
		Marker:     "#whois",
		Language:   "Russian",
		DateLayout: "02/01/2006 15:04:05",
	}
	cfg.Telegram.SessionName = "whoisscan"
	cfg.Telegram.MTProtoLogLevel = "warn"
	cfg.LLM.Provider = "openai"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-3.5-turbo"
	cfg.LLM.MaxTokens = 5
	cfg.LLM.Temperature = 0.2
	cfg.LLM.MaxInputTokens = 3000
	cfg.Classifier.OnError = "skip"
	cfg.Store.Table = "whois_matches"
	cfg.Events.Subject = "whoisscan.match"
	cfg.Serve.Listen = ":8080"
	cfg.Serve.Schedule = "@every 1h"
	return cfg
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is created with the defaults.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// loadFile is Load without the environment, for edits written back to disk.
func loadFile(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &Error{Err: fmt.Errorf("read %s: %w", path, err)}
		}
		if err := unmarshal(path, data, cfg); err != nil {
			return nil, &Error{Err: fmt.Errorf("parse %s: %w", path, err)}
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// applyEnv overrides file values from the environment (highest precedence).
func applyEnv(cfg *Config) {
	keyVar := map[string]string{
		"openai":    "OPENAI_API_KEY",
		"anthropic": "ANTHROPIC_API_KEY",
		"gemini":    "GEMINI_API_KEY",
	}[cfg.LLM.Provider]
	if keyVar != "" {
		if v := os.Getenv(keyVar); v != "" {
			cfg.LLM.APIKey = v
		}
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" && cfg.LLM.Provider == "openai" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("TELEGRAM_API_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.Telegram.APIID = id
		}
	}
	if v := os.Getenv("TELEGRAM_API_HASH"); v != "" {
		cfg.Telegram.APIHash = v
	}
	if v := os.Getenv("TELEGRAM_PHONE"); v != "" {
		cfg.Telegram.PhoneNumber = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notify.BotToken = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.DatabaseURL = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.Events.NATSURL = v
	}
}

// Mode selects which settings Validate requires.
type Mode int

const (
	ModeArchive Mode = iota
	ModeLive
	// ModeSession only needs the live session, not the classifier.
	ModeSession
)

// Validate checks the settings a run in mode depends on.
func (c *Config) Validate(mode Mode) error {
	if mode != ModeSession {
		if err := c.validateScan(); err != nil {
			return err
		}
	}
	if mode == ModeArchive {
		return nil
	}
	if c.Telegram.APIID == 0 {
		return &Error{Key: "telegram.api_id", Err: errors.New("not set")}
	}
	if c.Telegram.APIHash == "" {
		return &Error{Key: "telegram.api_hash", Err: errors.New("not set")}
	}
	if c.Telegram.ChatID == 0 {
		return &Error{Key: "telegram.chat_id", Err: errors.New("not set")}
	}
	return nil
}

func (c *Config) validateScan() error {
	switch c.LLM.Provider {
	case "openai", "anthropic", "gemini":
	default:
		return &Error{Key: "llm.provider", Err: fmt.Errorf("unsupported provider %q", c.LLM.Provider)}
	}
	if c.LLM.APIKey == "" {
		return &Error{Key: "llm.api_key", Err: errors.New("not set")}
	}
	switch c.Classifier.OnError {
	case "skip", "abort":
	default:
		return &Error{Key: "classifier.on_error", Err: fmt.Errorf("must be skip or abort, got %q", c.Classifier.OnError)}
	}
	if c.OutputPath == "" {
		return &Error{Key: "output_path", Err: errors.New("not set")}
	}
	return nil
}

// SessionPath is where the MTProto session for SessionName is stored,
// next to the config file.
func (c *Config) SessionPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), c.Telegram.SessionName+".session.json")
}

// Save writes cfg to path atomically, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := marshal(path, cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(path, data)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func marshal(path string, v any) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(v)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func unmarshal(path string, data []byte, v any) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
