package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zulandar/flowguard/internal/ledger"
)

func registerRoutes(router *gin.Engine, opts *Options) {
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	api := router.Group("/api")
	if opts.JWTSecret != "" {
		api.Use(requireJWT(opts.JWTSecret))
	}

	api.GET("/commitments", handleListCommitments(opts))
	api.POST("/commitments", handleCreateCommitment(opts))
	api.GET("/commitments/:id", handleGetCommitment(opts))
	api.PUT("/commitments/:id", handleEditCommitment(opts))
	api.POST("/commitments/:id/status", handleChangeStatus(opts))
	api.POST("/commitments/:id/checklist", handleAddChecklistItem(opts))
	api.POST("/commitments/:id/checklist/:itemId/toggle", handleToggleChecklistItem(opts))
	api.DELETE("/commitments/:id/checklist/:itemId", handleRemoveChecklistItem(opts))

	api.GET("/health", handleHealth(opts))
	api.GET("/graph", handleGraph(opts))
	api.GET("/insights", handleInsights(opts))
	api.GET("/reflections", handleReflections(opts))
	api.GET("/brief", handleBrief(opts))
	api.GET("/stream", handleStream(opts))

	api.POST("/guardian/insights", handleGuardianInsights(opts))
	api.POST("/guardian/advisor", handleAdvisor(opts))
	api.POST("/guardian/premortem/:id", handlePreMortem(opts))
}

// writeError maps domain errors onto status codes.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case ledger.IsValidation(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Error("api: request failed",
			zap.String("method", c.Request.Method), zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
