package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mentorlab/mentor-server/internal/logger"
	"github.com/mentorlab/mentor-server/internal/model"
	"github.com/mentorlab/mentor-server/internal/service"
)

// ConversationService processes user messages into mentor replies.
type ConversationService interface {
	SendMessage(ctx context.Context, externalID, message string) (service.ConversationResult, error)
	DeleteTurn(ctx context.Context, externalID string, turnID uuid.UUID) error
}

// MentorService manages mentor persona lifecycle.
type MentorService interface {
	CreateMentor(ctx context.Context, externalID, background, goal string) (model.MentorProfile, error)
	GetActiveMentor(ctx context.Context, externalID string) (model.MentorProfile, error)
}

// ExportService produces encrypted transcript exports.
type ExportService interface {
	ExportTranscript(ctx context.Context, externalID string) (string, error)
}

// Handler exposes the engine API over HTTP/JSON to trusted front-ends.
type Handler struct {
	conversation ConversationService
	mentor       MentorService
	export       ExportService
	logger       *logger.Logger
}

func NewHandler(
	conversation ConversationService,
	mentor MentorService,
	export ExportService,
	logger *logger.Logger,
) *Handler {
	return &Handler{
		conversation: conversation,
		mentor:       mentor,
		export:       export,
		logger:       logger,
	}
}

type createMentorRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	Background string `json:"background" binding:"required"`
	Goal       string `json:"goal"`
}

type mentorResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Age         int    `json:"age"`
	Personality string `json:"personality"`
	Greeting    string `json:"greeting"`
}

func (h *Handler) createMentor(c *gin.Context) {
	var req createMentorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	profile, err := h.mentor.CreateMentor(c.Request.Context(), req.UserID, req.Background, req.Goal)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toMentorResponse(profile))
}

func (h *Handler) getActiveMentor(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	profile, err := h.mentor.GetActiveMentor(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toMentorResponse(profile))
}

type sendMessageRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	Message string `json:"message" binding:"required"`
}

type sendMessageResponse struct {
	Reply     string `json:"reply"`
	Persisted bool   `json:"persisted"`
}

func (h *Handler) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is empty"})
		return
	}

	result, err := h.conversation.SendMessage(c.Request.Context(), req.UserID, req.Message)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, sendMessageResponse{
		Reply:     result.Reply,
		Persisted: result.Persisted,
	})
}

// deleteTurn removes a single turn from the caller's conversation log,
// together with its memory vector.
func (h *Handler) deleteTurn(c *gin.Context) {
	turnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid turn id"})
		return
	}
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	if err := h.conversation.DeleteTurn(c.Request.Context(), userID, turnID); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type exportRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *Handler) exportTranscript(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	key, err := h.export.ExportTranscript(c.Request.Context(), req.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key})
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps domain errors to HTTP status codes. Entitlement denials are
// policy outcomes: 402 with a machine-readable reason, not a server fault.
func (h *Handler) writeError(c *gin.Context, err error) {
	var entErr *model.EntitlementError
	switch {
	case errors.As(err, &entErr):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "entitlement denied", "reason": string(entErr.Reason)})
	case errors.Is(err, model.ErrInvalidBackground):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid background"})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, model.ErrGenerationFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "generation failed"})
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func toMentorResponse(profile model.MentorProfile) mentorResponse {
	return mentorResponse{
		ID:          profile.ID.String(),
		Name:        profile.Name,
		Age:         profile.Age,
		Personality: profile.Personality,
		Greeting:    profile.Greeting,
	}
}
