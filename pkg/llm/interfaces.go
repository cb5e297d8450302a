// Package llm talks to the language model that writes SQL and summarizes
// query results.
package llm

import (
	"context"
)

// LLMClient sends a single system + user prompt and returns the text answer.
// Use this interface for dependency injection to enable mocking in tests.
type LLMClient interface {
	// GenerateResponse returns the model's answer to prompt under systemMessage.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// GenerateResponseResult is the answer plus token usage.
type GenerateResponseResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// Config holds what every provider client needs.
type Config struct {
	Endpoint  string // Base URL; empty uses the provider default
	Model     string
	APIKey    string
	MaxTokens int
}
