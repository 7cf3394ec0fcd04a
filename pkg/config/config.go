package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	LLMProvider string          `json:"llm_provider"`
	Providers   ProvidersConfig `json:"providers"`
	Chat        ChatConfig      `json:"chat"`
	Speech      SpeechConfig    `json:"speech"`
	Server      ServerConfig    `json:"server"`
	DryRun      bool            `json:"dry_run"`
	LogLevel    string          `json:"log_level"`
	LogFormat   string          `json:"log_format"`
	LogFile     string          `json:"log_file"`
}

// ProvidersConfig holds per-provider credentials and endpoints.
type ProvidersConfig struct {
	OpenAI OpenAIConfig `json:"openai"`
	Google GoogleConfig `json:"google"`
}

// OpenAIConfig holds the OpenAI API configuration
type OpenAIConfig struct {
	APIKey            string `json:"api_key"`
	APIURL            string `json:"api_url"`
	Model             string `json:"model"`
	APITimeoutSeconds int    `json:"api_timeout_seconds"`
}

// GoogleConfig holds the Gemini API configuration
type GoogleConfig struct {
	APIKey            string `json:"api_key"`
	Model             string `json:"model"`
	APITimeoutSeconds int    `json:"api_timeout_seconds"`
}

// ChatConfig holds the request parameters sent with every completion.
type ChatConfig struct {
	SystemPrompt string  `json:"system_prompt"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
}

// SpeechConfig holds speech-to-text and text-to-speech settings.
type SpeechConfig struct {
	TranscriptionModel string `json:"transcription_model"`
	SpeechModel        string `json:"speech_model"`
	Voice              string `json:"voice"`
	OutputPath         string `json:"output_path"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr              string   `json:"addr"`
	AllowedOrigins    []string `json:"allowed_origins"`
	RequestsPerMinute int      `json:"requests_per_minute"`
}

// DefaultSystemPrompt is prepended to every conversation.
const DefaultSystemPrompt = "You are a helpful AI chatbot that answers questions asked by User. " +
	"Keep your responses conversational and engaging."

// Default returns a configuration with default values
func Default() Config {
	return Config{
		LLMProvider: "openai",
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{
				APIKey:            "",
				APIURL:            "https://api.openai.com/v1",
				Model:             "gpt-4o",
				APITimeoutSeconds: 60,
			},
			Google: GoogleConfig{
				APIKey:            "",
				Model:             "gemini-2.5-flash",
				APITimeoutSeconds: 60,
			},
		},
		Chat: ChatConfig{
			SystemPrompt: DefaultSystemPrompt,
			Temperature:  0.7,
			MaxTokens:    1000,
		},
		Speech: SpeechConfig{
			TranscriptionModel: "whisper-1",
			SpeechModel:        "tts-1",
			Voice:              "nova",
			OutputPath:         "temp_audio_play.mp3",
		},
		Server: ServerConfig{
			Addr:              ":8080",
			AllowedOrigins:    []string{"*"},
			RequestsPerMinute: 60,
		},
		DryRun:    false,
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load loads configuration from the specified path
// If the file doesn't exist, creates one with default values
func Load(configPath string) (Config, error) {
	// Ensure directory exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return Config{}, fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := Save(configPath, cfg); err != nil {
				return Config{}, fmt.Errorf("failed to create default config: %w", err)
			}
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	// Start from defaults so fields missing in older files keep sane values.
	// Explicit zero values in the file (e.g. temperature 0) are preserved.
	cfg := Default()
	cfg.Server.AllowedOrigins = nil
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = Default().Server.AllowedOrigins
	}

	return cfg, nil
}

// Save saves the configuration to the specified path
func Save(configPath string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// LoadEnvFiles reads dotenv files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides configuration values from environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	set := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v := strings.TrimSpace(getenv(key)); v != "" {
				*dst = v
				return
			}
		}
	}

	set(&c.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	set(&c.Providers.OpenAI.APIURL, "OPENAI_BASE_URL")
	set(&c.Providers.Google.APIKey, "GOOGLE_API_KEY", "GEMINI_API_KEY")
	set(&c.LLMProvider, "CHATRELAY_PROVIDER")
	set(&c.LogLevel, "CHATRELAY_LOG_LEVEL")
	set(&c.LogFile, "CHATRELAY_LOG_FILE")
	set(&c.Server.Addr, "CHATRELAY_ADDR")

	if model := strings.TrimSpace(getenv("CHATRELAY_MODEL")); model != "" {
		switch c.LLMProvider {
		case "google":
			c.Providers.Google.Model = model
		default:
			c.Providers.OpenAI.Model = model
		}
	}

	if v := strings.TrimSpace(getenv("CHATRELAY_DRY_RUN")); v != "" {
		if dry, err := strconv.ParseBool(v); err == nil {
			c.DryRun = dry
		}
	}
}

// Model returns the model configured for the active provider.
func (c Config) Model() string {
	switch c.LLMProvider {
	case "google":
		return c.Providers.Google.Model
	case "echo":
		return "echo"
	default:
		return c.Providers.OpenAI.Model
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	switch c.LLMProvider {
	case "openai", "google", "echo":
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLMProvider)
	}

	// API key required unless dry-run
	if !c.DryRun {
		switch c.LLMProvider {
		case "openai":
			if strings.TrimSpace(c.Providers.OpenAI.APIKey) == "" {
				return fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY or providers.openai.api_key)")
			}
		case "google":
			if strings.TrimSpace(c.Providers.Google.APIKey) == "" {
				return fmt.Errorf("Google API key is required (set GOOGLE_API_KEY or providers.google.api_key)")
			}
		}
	}

	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got: %f", c.Chat.Temperature)
	}

	if c.Chat.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got: %d", c.Chat.MaxTokens)
	}

	if c.Providers.OpenAI.APITimeoutSeconds <= 0 {
		return fmt.Errorf("openai api_timeout_seconds must be positive, got: %d", c.Providers.OpenAI.APITimeoutSeconds)
	}

	if c.Providers.Google.APITimeoutSeconds <= 0 {
		return fmt.Errorf("google api_timeout_seconds must be positive, got: %d", c.Providers.Google.APITimeoutSeconds)
	}

	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unsupported log_level: %s", c.LogLevel)
	}

	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "json", "text":
	default:
		return fmt.Errorf("unsupported log_format: %s", c.LogFormat)
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server addr is required")
	}

	if c.Server.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative, got: %d", c.Server.RequestsPerMinute)
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".chatrelay/config.json"
	}
	return filepath.Join(homeDir, ".chatrelay", "config.json")
}
