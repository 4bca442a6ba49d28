package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// post sends body as JSON to the provider and returns the raw response
// bytes. Non-2xx answers are decoded into the provider's error envelope.
func (c *OpenAIClient) post(ctx context.Context, path string, body any) ([]byte, error) {
	// Prepare request body
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	// Create HTTP request
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	// Send request
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// Check response status
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errRes openai.ErrorResponse
		if err := json.Unmarshal(raw, &errRes); err == nil && errRes.Error != nil {
			errRes.Error.HTTPStatusCode = resp.StatusCode
			return nil, errRes.Error
		}
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("malformed response body (%d bytes)", len(raw))
	}
	return raw, nil
}
