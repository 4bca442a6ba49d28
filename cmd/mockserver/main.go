package main

import (
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sleepstars/chupapi/internal/logger"
	"github.com/sleepstars/chupapi/internal/models"
)

// flagWord marks moderation input as a policy violation
const flagWord = "flagme"

func main() {
	port := flag.String("port", "8001", "Port to run the server on")
	flag.Parse()

	log, err := logger.New("debug", "console")
	if err != nil {
		panic(err)
	}
	log = log.WithComponent("mockserver")

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/v1/moderations", func(c *gin.Context) {
		var req struct {
			Input string `json:"input"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error(), "type": "invalid_request_error"}})
			return
		}

		flagged := strings.Contains(strings.ToLower(req.Input), flagWord)
		score := float32(0.01)
		if flagged {
			score = 0.98
		}
		log.Debug("moderation", zap.Int("chars", len(req.Input)), zap.Bool("flagged", flagged))

		c.JSON(http.StatusOK, gin.H{
			"id":    fmt.Sprintf("modr-%d", time.Now().UnixNano()),
			"model": "text-moderation-007",
			"results": []models.ModerationVerdict{{
				Flagged:        flagged,
				Categories:     map[string]bool{"harassment": flagged},
				CategoryScores: map[string]float32{"harassment": score},
			}},
		})
	})

	r.POST("/v1/chat/completions", func(c *gin.Context) {
		var req models.CompletionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error(), "type": "invalid_request_error"}})
			return
		}
		log.Debug("completion", zap.String("model", req.Model), zap.Int("messages", len(req.Messages)))

		last := ""
		if len(req.Messages) > 0 {
			last = req.Messages[len(req.Messages)-1].Content
		}

		c.JSON(http.StatusOK, openai.ChatCompletionResponse{
			ID:      fmt.Sprintf("chatcmpl-%d", time.Now().UnixNano()),
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   req.Model,
			Choices: []openai.ChatCompletionChoice{
				{
					Message: openai.ChatCompletionMessage{
						Role:    openai.ChatMessageRoleAssistant,
						Content: "Soy Chupapi. Recibí: " + last,
					},
					FinishReason: openai.FinishReasonStop,
				},
			},
		})
	})

	log.Info("mock provider listening", zap.String("port", *port))
	if err := r.Run(":" + *port); err != nil {
		log.Error("mock provider stopped", zap.Error(err))
	}
}
