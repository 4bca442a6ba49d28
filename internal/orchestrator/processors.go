package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sleepstars/chupapi/internal/clients"
	"github.com/sleepstars/chupapi/internal/logger"
	"github.com/sleepstars/chupapi/internal/models"
	"github.com/sleepstars/chupapi/internal/tokenizer"
)

// TokenCounter totals the tokens of the caller's messages
type TokenCounter struct {
	tokenizer *tokenizer.Tokenizer
}

func newTokenCounter(tk *tokenizer.Tokenizer) *TokenCounter {
	return &TokenCounter{tokenizer: tk}
}

func (s *TokenCounter) Name() string {
	return "token_counter"
}

func (s *TokenCounter) Execute(_ context.Context, data *Payload) error {
	data.TokenCount = s.tokenizer.CountMessages(data.Request.Messages)
	return nil
}

// Moderator screens the last message of the conversation, and only that one
type Moderator struct {
	provider clients.Provider
	logger   *logger.Logger
}

func newModerator(provider clients.Provider, log *logger.Logger) *Moderator {
	return &Moderator{
		provider: provider,
		logger:   log.WithComponent("moderator"),
	}
}

func (s *Moderator) Name() string {
	return "moderation"
}

func (s *Moderator) Execute(ctx context.Context, data *Payload) error {
	verdict, err := s.provider.Moderate(ctx, data.Request.Last().Content)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	data.Verdict = verdict

	if verdict.Flagged {
		flagged := make([]string, 0, len(verdict.Categories))
		for name, hit := range verdict.Categories {
			if hit {
				flagged = append(flagged, name)
			}
		}
		s.logger.Info("message flagged",
			zap.String("request_id", data.RequestID),
			zap.Strings("categories", flagged),
		)
		return ErrInappropriate
	}
	return nil
}

// PromptInjector prepends the persona system prompt and accounts for its tokens
type PromptInjector struct {
	prompt string
	tokens int
}

func newPromptInjector(prompt string, tk *tokenizer.Tokenizer) *PromptInjector {
	return &PromptInjector{
		prompt: prompt,
		tokens: tk.Count(prompt),
	}
}

func (s *PromptInjector) Name() string {
	return "prompt_injector"
}

func (s *PromptInjector) Execute(_ context.Context, data *Payload) error {
	msgs := make([]models.ChatMessage, 0, len(data.Request.Messages)+1)
	msgs = append(msgs, models.ChatMessage{Role: models.RoleSystem, Content: s.prompt})
	msgs = append(msgs, data.Request.Messages...)

	data.Messages = msgs
	data.TokenCount += s.tokens
	return nil
}

// BudgetGuard rejects conversations above the token ceiling
type BudgetGuard struct {
	maxTokens int
}

func newBudgetGuard(maxTokens int) *BudgetGuard {
	return &BudgetGuard{maxTokens: maxTokens}
}

func (s *BudgetGuard) Name() string {
	return "budget"
}

func (s *BudgetGuard) Execute(_ context.Context, data *Payload) error {
	chatPromptTokens.Observe(float64(data.TokenCount))
	if data.TokenCount > s.maxTokens {
		return fmt.Errorf("%w: %d tokens, limit %d", ErrTooLong, data.TokenCount, s.maxTokens)
	}
	return nil
}

// Completer sends the augmented conversation to the model
type Completer struct {
	provider    clients.Provider
	model       string
	temperature float32
	logger      *logger.Logger
}

func newCompleter(provider clients.Provider, model string, temperature float32, log *logger.Logger) *Completer {
	return &Completer{
		provider:    provider,
		model:       model,
		temperature: temperature,
		logger:      log.WithComponent("completer"),
	}
}

func (s *Completer) Name() string {
	return "completion"
}

func (s *Completer) Execute(ctx context.Context, data *Payload) error {
	s.logger.Debug("calling model",
		zap.String("request_id", data.RequestID),
		zap.String("model", s.model),
		zap.Int("messages", len(data.Messages)),
		zap.Int("tokens", data.TokenCount),
	)

	result, err := s.provider.Complete(ctx, &models.CompletionRequest{
		Model:       s.model,
		Messages:    data.Messages,
		Temperature: s.temperature,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	data.Result = result
	return nil
}
