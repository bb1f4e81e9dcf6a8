package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/clio-agent/clio/internal/agent"
)

// Setup is the resolved provider configuration a session runs with.
type Setup struct {
	Client  agent.Client
	Model   string
	BaseURL string
}

// defaults per provider; overridable via <PROVIDER>_MODEL.
var defaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-sonnet-4-20250514",
	"gemini":    "gemini-2.0-flash",
	"deepseek":  "deepseek-chat",
	"groq":      "llama-3.3-70b-versatile",
	"ollama":    "llama3.1",
	"lmstudio":  "local-model",
}

// openAICompatible maps provider names to their fixed OpenAI-compatible base
// URLs. Local servers use a default that <PROVIDER>_BASE_URL overrides.
var openAICompatible = map[string]string{
	"deepseek": "https://api.deepseek.com/v1",
	"groq":     "https://api.groq.com/openai/v1",
	"ollama":   "http://localhost:11434/v1",
	"lmstudio": "http://localhost:1234/v1",
}

// New builds a provider client from a provider name, reading credentials and
// overrides from the environment. The returned Setup carries the base URL so
// capability resolution can detect local endpoints.
func New(ctx context.Context, name, model string) (*Setup, error) {
	if name == "" {
		name = os.Getenv("CLIO_PROVIDER")
	}
	if name == "" {
		name = "openai"
	}

	switch name {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		model = resolveModel(name, model)
		baseURL := os.Getenv("OPENAI_BASE_URL")
		return &Setup{Client: NewOpenAIClient(name, apiKey, baseURL), Model: model, BaseURL: baseURL}, nil

	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		model = resolveModel(name, model)
		return &Setup{Client: NewAnthropicClient(apiKey), Model: model}, nil

	case "gemini":
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY not set")
		}
		model = resolveModel(name, model)
		client, err := NewGeminiClient(ctx, apiKey)
		if err != nil {
			return nil, err
		}
		return &Setup{Client: client, Model: model}, nil

	case "deepseek", "groq", "ollama", "lmstudio":
		baseURL := os.Getenv(envPrefix(name) + "_BASE_URL")
		if baseURL == "" {
			baseURL = openAICompatible[name]
		}
		apiKey := os.Getenv(envPrefix(name) + "_API_KEY")
		if apiKey == "" {
			switch name {
			case "ollama", "lmstudio":
				// local servers accept any key
				apiKey = name
			default:
				return nil, fmt.Errorf("%s_API_KEY not set", envPrefix(name))
			}
		}
		model = resolveModel(name, model)
		return &Setup{Client: NewOpenAIClient(name, apiKey, baseURL), Model: model, BaseURL: baseURL}, nil

	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: openai, anthropic, gemini, deepseek, groq, ollama, lmstudio)", name)
	}
}

func resolveModel(provider, model string) string {
	if model != "" {
		return model
	}
	if m := os.Getenv(envPrefix(provider) + "_MODEL"); m != "" {
		return m
	}
	return defaultModels[provider]
}

func envPrefix(provider string) string {
	switch provider {
	case "ollama":
		return "OLLAMA"
	case "lmstudio":
		return "LMSTUDIO"
	case "deepseek":
		return "DEEPSEEK"
	case "groq":
		return "GROQ"
	case "openai":
		return "OPENAI"
	case "anthropic":
		return "ANTHROPIC"
	case "gemini":
		return "GEMINI"
	}
	return "CLIO"
}
