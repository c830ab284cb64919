package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"

	"contract-qa-platform/internal/logger"
	"contract-qa-platform/internal/rag"
	"contract-qa-platform/models"
	"contract-qa-platform/utils"

	"github.com/gin-gonic/gin"
)

// Asker answers questions about one indexed document
type Asker interface {
	Ask(ctx context.Context, req rag.AskRequest) (*models.Answer, error)
	AskStream(ctx context.Context, req rag.AskRequest) (iter.Seq[rag.Event], error)
}

type AskHandler struct {
	asker Asker
}

func NewAskHandler(asker Asker) *AskHandler {
	return &AskHandler{asker: asker}
}

func SetupAskRoutes(router *gin.Engine, h *AskHandler, requireAuth gin.HandlerFunc) {
	ask := router.Group("/api/ask")
	ask.Use(requireAuth)
	{
		ask.POST("", h.Ask)
		ask.POST("/stream", h.AskStream)
	}
}

func (h *AskHandler) Ask(c *gin.Context) {
	var req rag.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "Invalid request body", err.Error())
		return
	}

	ctx, cancel := utils.WithLongTimeout(c.Request.Context())
	defer cancel()

	answer, err := h.asker.Ask(ctx, req)
	if err != nil {
		logger.Error("Ask failed", "document_id", req.DocumentID, "error", err)
		utils.RespondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

// AskStream answers over server-sent events. Each event is one
// "data: <json>" frame; the stream ends after an end or error event.
func (h *AskHandler) AskStream(c *gin.Context) {
	var req rag.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "Invalid request body", err.Error())
		return
	}

	ctx, cancel := utils.WithLongTimeout(c.Request.Context())
	defer cancel()

	events, err := h.asker.AskStream(ctx, req)
	if err != nil {
		utils.RespondWithServiceError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for ev := range events {
		if err := writeEvent(c.Writer, ev); err != nil {
			logger.Warn("Stream write failed", "document_id", req.DocumentID, "error", err)
			return
		}
		if ev.Terminal() {
			return
		}
	}
}

func writeEvent(w gin.ResponseWriter, ev rag.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	w.Flush()
	return nil
}
