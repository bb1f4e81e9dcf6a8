package agent

import (
	"net/url"
	"strings"
)

// Capability describes per-model limits used for budgeting and feature gating.
type Capability struct {
	MaxPromptTokens   int
	SupportsTools     bool
	SupportsStreaming bool
	SupportsThinking  bool
}

const (
	defaultPromptTokens = 128000
	localPromptTokens   = 32000
)

// modelCapabilities is keyed by model-name prefix; the longest matching
// prefix wins.
var modelCapabilities = map[string]Capability{
	"gpt-4o":          {MaxPromptTokens: 128000, SupportsTools: true, SupportsStreaming: true},
	"gpt-4.1":         {MaxPromptTokens: 1000000, SupportsTools: true, SupportsStreaming: true},
	"gpt-4-turbo":     {MaxPromptTokens: 128000, SupportsTools: true, SupportsStreaming: true},
	"gpt-3.5-turbo":   {MaxPromptTokens: 16000, SupportsTools: true, SupportsStreaming: true},
	"o1":              {MaxPromptTokens: 200000, SupportsTools: true, SupportsStreaming: true, SupportsThinking: true},
	"o3":              {MaxPromptTokens: 200000, SupportsTools: true, SupportsStreaming: true, SupportsThinking: true},
	"claude-3-5":      {MaxPromptTokens: 200000, SupportsTools: true, SupportsStreaming: true},
	"claude-3-7":      {MaxPromptTokens: 200000, SupportsTools: true, SupportsStreaming: true, SupportsThinking: true},
	"claude-sonnet-4": {MaxPromptTokens: 200000, SupportsTools: true, SupportsStreaming: true, SupportsThinking: true},
	"claude-opus-4":   {MaxPromptTokens: 200000, SupportsTools: true, SupportsStreaming: true, SupportsThinking: true},
	"claude-3":        {MaxPromptTokens: 200000, SupportsTools: true, SupportsStreaming: true},
	"gemini-1.5":      {MaxPromptTokens: 1000000, SupportsTools: true, SupportsStreaming: true},
	"gemini-2":        {MaxPromptTokens: 1000000, SupportsTools: true, SupportsStreaming: true, SupportsThinking: true},
	"deepseek":        {MaxPromptTokens: 64000, SupportsTools: true, SupportsStreaming: true},
	"llama":           {MaxPromptTokens: localPromptTokens, SupportsTools: true, SupportsStreaming: true},
	"qwen":            {MaxPromptTokens: localPromptTokens, SupportsTools: true, SupportsStreaming: true},
	"mistral":         {MaxPromptTokens: localPromptTokens, SupportsTools: true, SupportsStreaming: true},
}

// localProviders run against loopback endpoints and get the conservative
// prompt budget when the model is unknown.
var localProviders = map[string]bool{
	"ollama":   true,
	"lmstudio": true,
	"local":    true,
	"llamacpp": true,
}

// CapabilityFor resolves the capability record for a model. Unknown models
// fall back on a provider/host heuristic: local or loopback endpoints get
// 32000 prompt tokens, everything else 128000.
func CapabilityFor(provider, model, baseURL string) Capability {
	var best string
	for prefix := range modelCapabilities {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		return modelCapabilities[best]
	}

	cap := Capability{
		MaxPromptTokens:   defaultPromptTokens,
		SupportsTools:     true,
		SupportsStreaming: true,
	}
	if localProviders[strings.ToLower(provider)] || isLoopbackURL(baseURL) {
		cap.MaxPromptTokens = localPromptTokens
	}
	return cap
}

func isLoopbackURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
