package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sleepstars/chupapi/internal/models"
)

// ErrNoModerationResult is returned when the moderation endpoint answers
// without a verdict
var ErrNoModerationResult = errors.New("moderation returned no results")

// OpenAIClient implements Provider on top of the OpenAI API. go-openai
// supplies the connection settings and response types; request bodies use
// the models wire types so empty content and a zero temperature are sent.
// Completion responses are returned as the bytes the provider sent.
type OpenAIClient struct {
	config  ProviderConfig
	baseURL string
	client  openai.HTTPDoer
}

// NewOpenAIClient creates a new OpenAI provider client
func NewOpenAIClient(config ProviderConfig) *OpenAIClient {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.APIBase != "" {
		clientConfig.BaseURL = strings.TrimRight(config.APIBase, "/")
		if !strings.HasPrefix(clientConfig.BaseURL, "http://") && !strings.HasPrefix(clientConfig.BaseURL, "https://") {
			clientConfig.BaseURL = "http://" + clientConfig.BaseURL
		}
	}

	return &OpenAIClient{
		config:  config,
		baseURL: clientConfig.BaseURL,
		client:  clientConfig.HTTPClient,
	}
}

func (c *OpenAIClient) Moderate(ctx context.Context, text string) (*models.ModerationVerdict, error) {
	raw, err := c.post(ctx, "/moderations", models.ModerationRequest{Input: text})
	if err != nil {
		return nil, fmt.Errorf("moderation: %w", err)
	}

	var resp openai.ModerationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode moderation: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, ErrNoModerationResult
	}

	result := resp.Results[0]
	verdict := &models.ModerationVerdict{Flagged: result.Flagged}

	// Category sets differ between moderation models; keep whatever the
	// provider sent as plain maps.
	if err := remarshal(result.Categories, &verdict.Categories); err != nil {
		return nil, fmt.Errorf("decode moderation categories: %w", err)
	}
	if err := remarshal(result.CategoryScores, &verdict.CategoryScores); err != nil {
		return nil, fmt.Errorf("decode moderation scores: %w", err)
	}
	return verdict, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResult, error) {
	raw, err := c.post(ctx, "/chat/completions", req)
	if err != nil {
		return nil, fmt.Errorf("create chat completion: %w", err)
	}
	return &models.CompletionResult{Body: raw}, nil
}

func remarshal(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
