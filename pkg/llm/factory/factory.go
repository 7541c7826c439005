package factory

import (
	"doc-chat-be/internal/apperr"
	"doc-chat-be/pkg/llm"
	"doc-chat-be/pkg/llm/ollama"
)

// New selects the answer-generating provider from configuration.
func New(providerType, model, baseURL string) (llm.Provider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.New(baseURL, model), nil
	default:
		return nil, apperr.Newf(apperr.ErrInvalidConfiguration, "unsupported LLM provider %q", providerType)
	}
}
