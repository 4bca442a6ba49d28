package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sleepstars/chupapi/internal/models"
	"github.com/sleepstars/chupapi/internal/orchestrator"
)

// Response bodies are plain text and never carry provider detail.
const (
	msgInappropriate  = "Message is inappropriate"
	msgTooLong        = "Message is too long"
	msgInvalidRequest = "Invalid request"
	msgServerError    = "Something went wrong"
)

const indexHTML = `<html>
  <head>
    <title>Chupapi</title>
  </head>
  <body>
    <h1>Chupapi</h1>
    <p>Chupapi es un asistente basado en IA que te ayuda a programar</p>
    <p>Para usarlo, envía un mensaje a <a href="https://twitter.com/ChupapiBot">@ChupapiBot</a> en Twitter</p>
  </body>
</html>
`

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleChat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Info("bad chat body", zap.String("request_id", RequestID(c)), zap.Error(err))
		c.String(http.StatusBadRequest, msgInvalidRequest)
		return
	}

	// Once accepted, a request runs to completion even if the caller hangs up.
	ctx := context.WithoutCancel(c.Request.Context())

	resp, err := s.chat.Execute(ctx, RequestID(c), &req)
	switch {
	case err == nil:
		c.Data(http.StatusOK, "application/json; charset=utf-8", resp.Body)
	case errors.Is(err, orchestrator.ErrInappropriate):
		c.String(http.StatusBadRequest, msgInappropriate)
	case errors.Is(err, orchestrator.ErrTooLong):
		c.String(http.StatusBadRequest, msgTooLong)
	case errors.Is(err, models.ErrEmptyConversation), errors.Is(err, models.ErrUnknownRole):
		c.String(http.StatusBadRequest, msgInvalidRequest)
	default:
		c.String(http.StatusInternalServerError, msgServerError)
	}
}
