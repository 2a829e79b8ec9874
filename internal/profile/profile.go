package profile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the relay.
type Profile struct {
	// AI provider configuration (gemini native, or any OpenAI-compatible provider)
	AIProvider       string // Provider identifier: gemini, openai, deepseek, openrouter, ollama
	AIAPIKey         string // Provider API key
	AIBaseURL        string // Provider base URL (optional, has default per provider)
	AIModel          string // Model name: gemini-2.5-flash, gpt-4o, deepseek-chat, etc.
	AITimeout        int    // AI request timeout in seconds (default: 120)
	AISystemPrompt   string // Optional system prompt prepended to every conversation
	AIThinkingBudget int    // Token budget for the deep-reasoning variant (default: 8192)

	// WhatsApp bridge configuration
	BridgeURL    string // Base URL of the Baileys bridge service
	BridgeAPIKey string // Shared secret sent as x-bridge-api-key

	// Conversation memory configuration
	MemoryWindow   int // Retained exchanges per conversation (default: 20)
	MemoryTTLHours int // Hours of inactivity before a conversation is swept (default: 24)

	// Record log configuration (optional; empty endpoint disables mirroring)
	LogEndpoint string
	LogAPIKey   string

	// Credential storage
	CredentialKey string // 32-byte AES key for credentials at rest

	// Server configuration
	Mode    string
	Addr    string
	Port    int
	Data    string // Data directory (credential database lives here)
	Version string
}

// Provider default configurations.
// Used when WARELAY_AI_BASE_URL or WARELAY_AI_MODEL is not explicitly set.
var aiProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"gemini": {
		BaseURL: "https://generativelanguage.googleapis.com",
		Model:   "gemini-2.5-flash",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "google/gemini-2.5-flash",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.AIProvider = getEnvOrDefault("WARELAY_AI_PROVIDER", "gemini")
	p.AIAPIKey = getEnvOrDefault("WARELAY_AI_API_KEY", "")
	p.AIBaseURL = getEnvOrDefault("WARELAY_AI_BASE_URL", "")
	p.AIModel = getEnvOrDefault("WARELAY_AI_MODEL", "")
	p.AITimeout = getEnvOrDefaultInt("WARELAY_AI_TIMEOUT_SECONDS", 120)
	p.AISystemPrompt = getEnvOrDefault("WARELAY_AI_SYSTEM_PROMPT", "")
	p.AIThinkingBudget = getEnvOrDefaultInt("WARELAY_AI_THINKING_BUDGET", 8192)

	p.BridgeURL = getEnvOrDefault("WARELAY_BRIDGE_URL", "")
	p.BridgeAPIKey = getEnvOrDefault("WARELAY_BRIDGE_API_KEY", "")

	p.MemoryWindow = getEnvOrDefaultInt("WARELAY_MEMORY_WINDOW", 20)
	p.MemoryTTLHours = getEnvOrDefaultInt("WARELAY_MEMORY_TTL_HOURS", 24)

	p.LogEndpoint = getEnvOrDefault("WARELAY_LOG_ENDPOINT", "")
	p.LogAPIKey = getEnvOrDefault("WARELAY_LOG_API_KEY", "")

	p.CredentialKey = getEnvOrDefault("WARELAY_CREDENTIAL_KEY", "")

	if defaults, ok := aiProviderDefaults[p.AIProvider]; ok {
		if p.AIBaseURL == "" {
			p.AIBaseURL = defaults.BaseURL
		}
		if p.AIModel == "" {
			p.AIModel = defaults.Model
		}
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate checks that the profile is complete enough to start. Any error
// returned here is fatal: the process must not run without valid credentials.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.AIAPIKey == "" {
		return errors.New("WARELAY_AI_API_KEY is required")
	}
	if _, ok := aiProviderDefaults[p.AIProvider]; !ok {
		return errors.Errorf("unknown AI provider %q", p.AIProvider)
	}
	if p.BridgeURL == "" {
		return errors.New("WARELAY_BRIDGE_URL is required")
	}
	if p.CredentialKey != "" && len(p.CredentialKey) != 32 {
		return errors.Errorf("WARELAY_CREDENTIAL_KEY must be exactly 32 bytes, got %d", len(p.CredentialKey))
	}
	if p.Mode == "prod" && p.CredentialKey == "" {
		return errors.New("WARELAY_CREDENTIAL_KEY is required in prod mode")
	}

	if p.MemoryWindow <= 0 {
		p.MemoryWindow = 20
	}
	if p.MemoryTTLHours <= 0 {
		p.MemoryTTLHours = 24
	}
	if p.AITimeout <= 0 {
		p.AITimeout = 120
	}

	if p.Data == "" {
		p.Data = "."
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir

	return nil
}
