package ai

import (
	"fmt"

	"mailsync-backend/pkg/gemini"

	"github.com/rs/zerolog"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType

	GeminiAPIKey string
	GeminiModel  string

	OpenAIAPIKey string
	OpenAIModel  string

	OllamaBaseURL string // e.g., "http://localhost:11434"
	OllamaModel   string // e.g., "llama3", "mistral"
}

// NewCompleter creates a Completer based on the config.
// A named provider is used alone; "auto" chains every configured provider
// with Gemini first and Ollama last.
func NewCompleter(cfg Config, log zerolog.Logger) (Completer, error) {
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel), nil

	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil

	case ProviderOllama:
		return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel), nil

	case ProviderAuto, "":
		var chain []NamedCompleter
		if cfg.GeminiAPIKey != "" {
			chain = append(chain, NamedCompleter{Name: string(ProviderGemini), Completer: gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel)})
		}
		if cfg.OpenAIAPIKey != "" {
			chain = append(chain, NamedCompleter{Name: string(ProviderOpenAI), Completer: NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel)})
		}
		if cfg.OllamaBaseURL != "" || len(chain) == 0 {
			chain = append(chain, NamedCompleter{Name: string(ProviderOllama), Completer: NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel)})
		}
		if len(chain) == 1 {
			return chain[0].Completer, nil
		}
		return NewFallbackService(log, chain...), nil

	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
