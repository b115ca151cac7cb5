package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"carebook-server/internal/chat"
	"carebook-server/internal/logging"
	"carebook-server/internal/utils"
)

// ChatHandler exposes the AI health assistant.
type ChatHandler struct {
	Assistant *chat.Assistant
	Log       *logging.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(assistant *chat.Assistant, log *logging.Logger) *ChatHandler {
	if log == nil {
		log = logging.Default()
	}
	return &ChatHandler{Assistant: assistant, Log: log}
}

// ChatRequest represents the request body for the assistant.
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// Ask answers one user message. Off-topic questions get a canned decline
// without a model call.
func (h *ChatHandler) Ask(c *gin.Context) {
	var req ChatRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	reply, err := h.Assistant.Ask(c.Request.Context(), req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrUpstream) {
			utils.BadGateway(c, "The assistant is temporarily unavailable. Please try again.")
			return
		}
		h.Log.Errorw("assistant request failed", "error", err)
		utils.InternalServerError(c, "Internal server error")
		return
	}

	utils.Success(c, "Reply generated", gin.H{"reply": reply})
}
