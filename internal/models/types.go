package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message roles accepted on the chat endpoint
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Validation errors for incoming chat requests
var (
	ErrEmptyConversation = errors.New("messages must not be empty")
	ErrUnknownRole       = errors.New("unknown role")
)

// ChatMessage represents a message in the chat
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents an incoming POST /api/chat body
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// Validate checks that the conversation is non-empty and every role is known.
func (r *ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return ErrEmptyConversation
	}
	for i, msg := range r.Messages {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message %d: %w %q", i, ErrUnknownRole, msg.Role)
		}
	}
	return nil
}

// Last returns the most recent message of the conversation
func (r *ChatRequest) Last() ChatMessage {
	return r.Messages[len(r.Messages)-1]
}

// CompletionRequest is the outbound chat completion call. Every field is
// always sent: an empty content or a zero temperature is meaningful.
type CompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

// ModerationRequest is the outbound moderation call
type ModerationRequest struct {
	Input string `json:"input"`
}

// ModerationVerdict is the provider's judgement on a single text
type ModerationVerdict struct {
	Flagged        bool               `json:"flagged"`
	Categories     map[string]bool    `json:"categories,omitempty"`
	CategoryScores map[string]float32 `json:"category_scores,omitempty"`
}

// CompletionResult is the provider's chat completion payload, kept as the
// exact bytes the provider sent so it can be returned without reshaping.
type CompletionResult struct {
	Body json.RawMessage
}

// MarshalJSON emits the provider bytes unchanged
func (r CompletionResult) MarshalJSON() ([]byte, error) {
	if len(r.Body) == 0 {
		return []byte("null"), nil
	}
	return r.Body, nil
}
