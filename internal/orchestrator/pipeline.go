package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sleepstars/chupapi/internal/clients"
	"github.com/sleepstars/chupapi/internal/config"
	"github.com/sleepstars/chupapi/internal/logger"
	"github.com/sleepstars/chupapi/internal/models"
	"github.com/sleepstars/chupapi/internal/tokenizer"
)

// Rejections and failures surfaced by the pipeline. Callers match them
// with errors.Is.
var (
	ErrInappropriate = errors.New("message is inappropriate")
	ErrTooLong       = errors.New("message is too long")
	ErrUpstream      = errors.New("upstream provider failure")
)

var (
	chatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Chat requests by pipeline outcome.",
		},
		[]string{"outcome"},
	)
	chatPromptTokens = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_prompt_tokens",
			Help:    "Locally counted prompt tokens per request, system prompt included.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 3000, 4000, 8000},
		},
	)
)

func init() {
	prometheus.MustRegister(chatRequestsTotal)
	prometheus.MustRegister(chatPromptTokens)
}

// Payload represents the per-request state passed between pipeline stages
type Payload struct {
	RequestID  string
	Request    *models.ChatRequest
	Messages   []models.ChatMessage // outbound conversation, system prompt first
	TokenCount int
	Verdict    *models.ModerationVerdict
	Result     *models.CompletionResult
}

// PipelineStage defines the interface for a stage in the processing pipeline
type PipelineStage interface {
	Execute(ctx context.Context, data *Payload) error
	Name() string
}

// ChatPipeline screens, budgets and dispatches one conversation at a time.
// It holds only read-only collaborators and is safe for concurrent use.
type ChatPipeline struct {
	stages []PipelineStage
	logger *logger.Logger
}

// NewChatPipeline creates the chat pipeline for the given chat settings
func NewChatPipeline(cfg config.ChatConfig, provider clients.Provider, tk *tokenizer.Tokenizer, log *logger.Logger) *ChatPipeline {
	log = log.WithComponent("pipeline")
	log.Debug("creating chat pipeline",
		zap.String("model", cfg.Model),
		zap.Float32("temperature", cfg.Temperature),
		zap.Int("max_tokens", cfg.MaxTokens),
		zap.String("encoding", tk.Encoding()),
	)

	return &ChatPipeline{
		logger: log,
		stages: []PipelineStage{
			newTokenCounter(tk),
			newModerator(provider, log),
			newPromptInjector(cfg.SystemPrompt, tk),
			newBudgetGuard(cfg.MaxTokens),
			newCompleter(provider, cfg.Model, cfg.Temperature, log),
		},
	}
}

// Execute runs the pipeline stages in sequence. The first stage error ends
// the run; later stages, and the completion call in particular, never run.
func (p *ChatPipeline) Execute(ctx context.Context, requestID string, req *models.ChatRequest) (*models.CompletionResult, error) {
	if err := req.Validate(); err != nil {
		chatRequestsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	log := p.logger.Zap().With(zap.String("request_id", requestID))
	log.Debug("starting pipeline", zap.Int("messages", len(req.Messages)))

	payload := &Payload{
		RequestID: requestID,
		Request:   req,
	}

	for _, stage := range p.stages {
		if err := stage.Execute(ctx, payload); err != nil {
			chatRequestsTotal.WithLabelValues(outcome(err)).Inc()
			if errors.Is(err, ErrUpstream) {
				log.Error("stage failed", zap.String("stage", stage.Name()), zap.Error(err))
			} else {
				log.Info("request rejected", zap.String("stage", stage.Name()), zap.Error(err))
			}
			return nil, fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
	}

	chatRequestsTotal.WithLabelValues("ok").Inc()
	log.Debug("pipeline completed", zap.Int("tokens", payload.TokenCount))
	return payload.Result, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrInappropriate):
		return "inappropriate"
	case errors.Is(err, ErrTooLong):
		return "too_long"
	default:
		return "upstream_error"
	}
}
