package rag

import (
	"testing"

	"github.com/fyrsmithlabs/landrag/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerator(t *testing.T) {
	for _, provider := range []string{"openai", "ollama"} {
		t.Run(provider, func(t *testing.T) {
			llm, err := NewGenerator(config.LLMConfig{Provider: provider, Model: "m", BaseURL: "http://localhost:1"})
			require.NoError(t, err)
			assert.NotNil(t, llm)
		})
	}

	_, err := NewGenerator(config.LLMConfig{Provider: "llamacpp"})
	assert.Error(t, err)
}

func TestConfigFromSettings(t *testing.T) {
	cfg := ConfigFromSettings(config.LLMConfig{TopK: 3, Temperature: 0.2, MaxTokens: 256, RequestsPerSecond: 1.5})
	assert.Equal(t, Config{TopK: 3, Temperature: 0.2, MaxTokens: 256, RequestsPerSecond: 1.5}, cfg)
}
