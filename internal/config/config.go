// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/lexrelay/internal/domain"
)

// Supported completion providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds all application configuration.
type Config struct {
	Port               string
	DBPath             string
	AllowedOrigins     []string
	MaxRequestBodySize int64
	LLM                LLMConfig
	Messages           MessagesConfig
	Turns              TurnsConfig
	ConversationLog    ConversationLogConfig
	Timeout            TimeoutConfig
}

// LLMConfig selects and configures the completion provider.
type LLMConfig struct {
	Enabled      bool
	Provider     string
	OpenAIAPIKey string
	OpenAIURL    string
	OpenAIModel  string
	GeminiAPIKey string
	GeminiURL    string
	GeminiModel  string
	Timeout      time.Duration
	SystemPrompt string
}

// MessagesConfig controls message history reads.
type MessagesConfig struct {
	DefaultLimit int
	MaxLimit     int
	Window       domain.ReadWindow
}

// TurnsConfig controls turn submission.
type TurnsConfig struct {
	SerializePerChat bool
	DiagnosticMaxLen int
}

// ConversationLogConfig controls the NDJSON conversation audit log.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// TimeoutConfig holds server-side timeouts.
type TimeoutConfig struct {
	HealthCheck time.Duration
	Shutdown    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	window, ok := domain.ParseReadWindow(strings.ToLower(getEnv("MESSAGES_READ_WINDOW", string(domain.WindowOldest))))
	if !ok {
		return nil, fmt.Errorf("invalid configuration: MESSAGES_READ_WINDOW must be %q or %q", domain.WindowOldest, domain.WindowNewest)
	}

	// USE_OPENAI is the historical name of the generation switch.
	enabled := getEnvBool("USE_OPENAI", true)
	enabled = getEnvBool("LLM_ENABLED", enabled)

	cfg := &Config{
		Port:               getEnv("PORT", "5000"),
		DBPath:             getEnv("DB_PATH", "./data/lexrelay.db"),
		AllowedOrigins:     getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 1<<20)),
		LLM: LLMConfig{
			Enabled:      enabled,
			Provider:     strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
			OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
			OpenAIURL:    getEnv("OPENAI_BASE_URL", ""),
			OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-5-mini"),
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			GeminiURL:    getEnv("GEMINI_BASE_URL", ""),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			Timeout:      getEnvDuration("LLM_TIMEOUT", 60*time.Second),
			SystemPrompt: getEnv("SYSTEM_PROMPT", ""),
		},
		Messages: MessagesConfig{
			DefaultLimit: getEnvInt("MESSAGES_DEFAULT_LIMIT", 200),
			MaxLimit:     getEnvInt("MESSAGES_MAX_LIMIT", 1000),
			Window:       window,
		},
		Turns: TurnsConfig{
			SerializePerChat: getEnvBool("TURNS_SERIALIZE_PER_CHAT", false),
			DiagnosticMaxLen: getEnvInt("DIAGNOSTIC_MAX_LEN", 300),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:       getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			QueueSize: getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000),
		},
		Timeout: TimeoutConfig{
			HealthCheck: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
			Shutdown:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if c.LLM.Provider != ProviderOpenAI && c.LLM.Provider != ProviderGemini {
		return fmt.Errorf("LLM_PROVIDER must be %q or %q", ProviderOpenAI, ProviderGemini)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be > 0")
	}
	if c.Messages.DefaultLimit <= 0 {
		return fmt.Errorf("MESSAGES_DEFAULT_LIMIT must be > 0")
	}
	if c.Messages.MaxLimit < c.Messages.DefaultLimit {
		return fmt.Errorf("MESSAGES_MAX_LIMIT must be >= MESSAGES_DEFAULT_LIMIT")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// GenerationEnabled reports whether a real provider should be constructed.
// Without the switch or without credentials the relay runs in demo mode.
func (c *LLMConfig) GenerationEnabled() bool {
	if !c.Enabled {
		return false
	}
	switch c.Provider {
	case ProviderGemini:
		return c.GeminiAPIKey != ""
	default:
		return c.OpenAIAPIKey != ""
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
