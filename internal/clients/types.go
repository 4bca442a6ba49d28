package clients

import (
	"context"

	"github.com/sleepstars/chupapi/internal/models"
)

// Provider defines the two outbound calls the chat gateway makes
type Provider interface {
	// Moderate screens a single text against the provider's content policy
	Moderate(ctx context.Context, text string) (*models.ModerationVerdict, error)

	// Complete sends a chat completion request to the model
	Complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResult, error)
}

// ProviderConfig contains configuration for provider clients
type ProviderConfig struct {
	APIKey  string
	APIBase string // empty selects the public OpenAI endpoint
}
