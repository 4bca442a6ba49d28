package mocks

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/sleepstars/chupapi/internal/models"
)

// MockProvider implements clients.Provider for testing
type MockProvider struct {
	ModerateFunc func(ctx context.Context, text string) (*models.ModerationVerdict, error)
	CompleteFunc func(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResult, error)

	moderateCalls atomic.Int32
	completeCalls atomic.Int32
}

func (m *MockProvider) Moderate(ctx context.Context, text string) (*models.ModerationVerdict, error) {
	m.moderateCalls.Add(1)
	if m.ModerateFunc != nil {
		return m.ModerateFunc(ctx, text)
	}
	return &models.ModerationVerdict{}, nil
}

func (m *MockProvider) Complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResult, error) {
	m.completeCalls.Add(1)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	body, err := json.Marshal(map[string]any{
		"object": "chat.completion",
		"model":  req.Model,
		"choices": []map[string]any{{
			"index":         0,
			"message":       models.ChatMessage{Role: models.RoleAssistant, Content: "mock reply"},
			"finish_reason": "stop",
		}},
	})
	if err != nil {
		return nil, err
	}
	return &models.CompletionResult{Body: body}, nil
}

// ModerateCalls reports how many times Moderate was invoked
func (m *MockProvider) ModerateCalls() int {
	return int(m.moderateCalls.Load())
}

// CompleteCalls reports how many times Complete was invoked
func (m *MockProvider) CompleteCalls() int {
	return int(m.completeCalls.Load())
}
