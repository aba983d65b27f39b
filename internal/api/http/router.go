package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mentorlab/mentor-server/internal/logger"
	"github.com/mentorlab/mentor-server/internal/model"
)

// NewRouter assembles the engine API. Everything under /api requires a valid
// service token; health checking does not.
func NewRouter(handler *Handler, tokens model.TokenManager, logger *logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthz", handler.healthz)

	api := router.Group("/api/v1", serviceAuth(tokens))
	{
		api.POST("/mentors", handler.createMentor)
		api.GET("/mentors/active", handler.getActiveMentor)
		api.POST("/turns", handler.sendMessage)
		api.DELETE("/turns/:id", handler.deleteTurn)
		api.POST("/exports", handler.exportTranscript)
	}

	return router
}

// serviceAuth authenticates the calling front-end by its bearer service token.
func serviceAuth(tokens model.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		service, err := tokens.ParseServiceToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid service token"})
			return
		}

		c.Set("service", service)
		c.Next()
	}
}

// requestLogger logs one line per request with latency and status.
func requestLogger(logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
