package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleepstars/chupapi/internal/clients"
	"github.com/sleepstars/chupapi/internal/config"
	"github.com/sleepstars/chupapi/internal/logger"
	"github.com/sleepstars/chupapi/internal/models"
	"github.com/sleepstars/chupapi/internal/orchestrator"
	"github.com/sleepstars/chupapi/internal/server"
	"github.com/sleepstars/chupapi/internal/tokenizer"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeProvider is an OpenAI-compatible stand-in that records what the
// gateway sends it.
type fakeProvider struct {
	moderations atomic.Int32
	completions atomic.Int32
	lastInput   atomic.Value // string
	lastChat    atomic.Value // models.CompletionRequest
	rawChat     atomic.Value // []byte
	failChat    bool
	noVerdict   bool
}

// upstreamCompletion is a completion as the provider currently sends it,
// including fields outside the classic response schema.
const upstreamCompletion = `{
  "id": "chatcmpl-abc",
  "object": "chat.completion",
  "created": 1680000000,
  "model": "gpt-3.5-turbo-0301",
  "service_tier": "default",
  "system_fingerprint": null,
  "choices": [{
    "index": 0,
    "message": {"role": "assistant", "content": "¡Hola! Soy Chupapi.", "refusal": null, "annotations": []},
    "logprobs": null,
    "finish_reason": "stop"
  }],
  "usage": {
    "prompt_tokens": 38,
    "completion_tokens": 7,
    "total_tokens": 45,
    "prompt_tokens_details": {"cached_tokens": 0, "audio_tokens": 0},
    "completion_tokens_details": {"reasoning_tokens": 0, "audio_tokens": 0, "accepted_prediction_tokens": 0, "rejected_prediction_tokens": 0}
  }
}`

func (f *fakeProvider) handler() http.Handler {
	r := gin.New()
	r.POST("/v1/moderations", func(c *gin.Context) {
		f.moderations.Add(1)
		var req struct {
			Input *string `json:"input"`
		}
		_ = c.ShouldBindJSON(&req)
		if req.Input == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "you must provide an input", "type": "invalid_request_error"}})
			return
		}
		f.lastInput.Store(*req.Input)

		if f.noVerdict {
			c.JSON(http.StatusOK, gin.H{"id": "modr-0", "model": "text-moderation-007", "results": []gin.H{}})
			return
		}

		flagged := strings.Contains(*req.Input, "<flagged text>")
		c.JSON(http.StatusOK, gin.H{
			"id":      "modr-1",
			"model":   "text-moderation-007",
			"results": []gin.H{{"flagged": flagged, "categories": gin.H{"harassment": flagged}}},
		})
	})
	r.POST("/v1/chat/completions", func(c *gin.Context) {
		f.completions.Add(1)
		raw, _ := c.GetRawData()
		f.rawChat.Store(raw)
		var req models.CompletionRequest
		_ = json.Unmarshal(raw, &req)
		f.lastChat.Store(req)

		if f.failChat {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{
				"message": "The server had an error while processing your request. org-secret",
				"type":    "server_error",
			}})
			return
		}
		c.Data(http.StatusOK, "application/json", []byte(upstreamCompletion))
	})
	return r
}

func newGateway(t *testing.T, fake *fakeProvider) http.Handler {
	t.Helper()
	upstream := httptest.NewServer(fake.handler())
	t.Cleanup(upstream.Close)

	cfg := config.Default()
	tk, err := tokenizer.New(cfg.Chat.Encoding)
	require.NoError(t, err)

	provider := clients.NewOpenAIClient(clients.ProviderConfig{
		APIKey:  "sk-integration",
		APIBase: upstream.URL + "/v1",
	})
	pipeline := orchestrator.NewChatPipeline(cfg.Chat, provider, tk, logger.Nop())
	return server.New(pipeline, logger.Nop()).Handler()
}

func postChat(t *testing.T, h http.Handler, req models.ChatRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(string(body)))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestChatIntegration(t *testing.T) {
	fake := &fakeProvider{}
	gw := newGateway(t, fake)

	w := postChat(t, gw, models.ChatRequest{Messages: []models.ChatMessage{
		{Role: models.RoleUser, Content: "hello"},
	}})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, upstreamCompletion, w.Body.String())
	assert.Equal(t, upstreamCompletion, w.Body.String(), "gateway must not re-encode the provider body")

	assert.Equal(t, int32(1), fake.moderations.Load())
	assert.Equal(t, int32(1), fake.completions.Load())
	assert.Equal(t, "hello", fake.lastInput.Load())

	sent := fake.lastChat.Load().(models.CompletionRequest)
	assert.Equal(t, "gpt-3.5-turbo", sent.Model)
	assert.InDelta(t, 0.6, sent.Temperature, 0.0001)
	require.Len(t, sent.Messages, 2)
	assert.Equal(t, models.RoleSystem, sent.Messages[0].Role)
	assert.Equal(t, config.DefaultSystemPrompt, sent.Messages[0].Content)
	assert.Equal(t, "hello", sent.Messages[1].Content)
}

func TestChatIntegrationRejections(t *testing.T) {
	testCases := []struct {
		name        string
		messages    []models.ChatMessage
		wantStatus  int
		wantBody    string
		moderations int32
	}{
		{
			name:        "flagged last message",
			messages:    []models.ChatMessage{{Role: models.RoleUser, Content: "<flagged text>"}},
			wantStatus:  http.StatusBadRequest,
			wantBody:    "Message is inappropriate",
			moderations: 1,
		},
		{
			name:        "over the token ceiling",
			messages:    []models.ChatMessage{{Role: models.RoleUser, Content: strings.Repeat("hello ", 5000)}},
			wantStatus:  http.StatusBadRequest,
			wantBody:    "Message is too long",
			moderations: 1,
		},
		{
			name: "flagged earlier message is not screened",
			messages: []models.ChatMessage{
				{Role: models.RoleUser, Content: "<flagged text>"},
				{Role: models.RoleUser, Content: "sorry about that"},
			},
			wantStatus:  http.StatusOK,
			moderations: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeProvider{}
			gw := newGateway(t, fake)

			w := postChat(t, gw, models.ChatRequest{Messages: tc.messages})

			assert.Equal(t, tc.wantStatus, w.Code)
			if tc.wantBody != "" {
				assert.Equal(t, tc.wantBody, w.Body.String())
				assert.Equal(t, int32(0), fake.completions.Load())
			}
			assert.Equal(t, tc.moderations, fake.moderations.Load())
		})
	}
}

func TestChatIntegrationUpstreamFailure(t *testing.T) {
	fake := &fakeProvider{failChat: true}
	gw := newGateway(t, fake)

	w := postChat(t, gw, models.ChatRequest{Messages: []models.ChatMessage{
		{Role: models.RoleUser, Content: "hello"},
	}})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Something went wrong", w.Body.String())
	assert.NotContains(t, w.Body.String(), "org-secret")
	assert.Equal(t, int32(1), fake.completions.Load(), "no retries")
}

func TestChatIntegrationEmptyContent(t *testing.T) {
	fake := &fakeProvider{}
	gw := newGateway(t, fake)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"messages":[{"role":"user","content":""}]}`))
	r.Header.Set("Content-Type", "application/json")
	gw.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, upstreamCompletion, w.Body.String())
	assert.Equal(t, int32(1), fake.moderations.Load())
	assert.Equal(t, "", fake.lastInput.Load())

	var sent struct {
		Temperature *float64         `json:"temperature"`
		Messages    []map[string]any `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(fake.rawChat.Load().([]byte), &sent))
	require.NotNil(t, sent.Temperature)
	assert.InDelta(t, 0.6, *sent.Temperature, 0.0001)
	require.Len(t, sent.Messages, 2)
	assert.Equal(t, map[string]any{"role": "user", "content": ""}, sent.Messages[1])
}

func TestChatIntegrationModerationWithoutVerdict(t *testing.T) {
	fake := &fakeProvider{noVerdict: true}
	gw := newGateway(t, fake)

	w := postChat(t, gw, models.ChatRequest{Messages: []models.ChatMessage{
		{Role: models.RoleUser, Content: "hello"},
	}})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Something went wrong", w.Body.String())
	assert.Equal(t, int32(1), fake.moderations.Load())
	assert.Equal(t, int32(0), fake.completions.Load())
}
