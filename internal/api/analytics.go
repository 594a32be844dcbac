package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/flowguard/internal/brief"
	"github.com/zulandar/flowguard/internal/graph"
	"github.com/zulandar/flowguard/internal/health"
	"github.com/zulandar/flowguard/internal/insights"
	"github.com/zulandar/flowguard/internal/models"
	"github.com/zulandar/flowguard/internal/store"
)

const (
	reasonNoCommitments  = "Nenhum compromisso enviado para insights."
	reasonInsightsFailed = "Erro inesperado no Integrity Guardian."
)

// withCollection loads the collection and hands it to fn, writing any load
// error.
func withCollection(opts *Options, fn func(c *gin.Context, all []models.Commitment)) gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := opts.Ledger.List(c.Request.Context())
		if err != nil {
			writeError(c, opts.Log, err)
			return
		}
		fn(c, all)
	}
}

func handleHealth(opts *Options) gin.HandlerFunc {
	return withCollection(opts, func(c *gin.Context, all []models.Commitment) {
		summary := health.Score(all, opts.Now())
		opts.Metrics.ObserveHealth(summary.Score, summary.TotalActive)
		c.JSON(http.StatusOK, summary)
	})
}

func handleGraph(opts *Options) gin.HandlerFunc {
	return withCollection(opts, func(c *gin.Context, all []models.Commitment) {
		c.JSON(http.StatusOK, graph.Analyze(all, opts.Now()))
	})
}

func handleInsights(opts *Options) gin.HandlerFunc {
	return withCollection(opts, func(c *gin.Context, all []models.Commitment) {
		c.JSON(http.StatusOK, insights.Analyze(all, opts.Now(), insights.Options{ExcludedOwners: opts.ExcludedOwners}))
	})
}

func handleBrief(opts *Options) gin.HandlerFunc {
	return withCollection(opts, func(c *gin.Context, all []models.Commitment) {
		c.JSON(http.StatusOK, brief.Compile(all, opts.Now()))
	})
}

func handleReflections(opts *Options) gin.HandlerFunc {
	return withCollection(opts, func(c *gin.Context, all []models.Commitment) {
		if opts.Feed == nil {
			writeError(c, opts.Log, errors.New("api: reflection feed not configured"))
			return
		}
		feed, err := opts.Feed.Surface(c.Request.Context(), all, opts.Now())
		if err != nil {
			writeError(c, opts.Log, err)
			return
		}
		c.JSON(http.StatusOK, feed)
	})
}

// handleGuardianInsights analyzes a collection supplied by the caller
// instead of the stored one.
func handleGuardianInsights(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Commitments json.RawMessage `json:"commitments"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "unavailable", "reason": reasonInsightsFailed})
			return
		}
		var collection []models.Commitment
		if len(body.Commitments) > 0 && body.Commitments[0] == '[' {
			decoded, err := store.Decode(body.Commitments)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"status": "unavailable", "reason": reasonInsightsFailed})
				return
			}
			collection = decoded
		}
		if len(collection) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"status": "invalid_input", "reason": reasonNoCommitments})
			return
		}
		c.JSON(http.StatusOK, insights.Analyze(collection, opts.Now(), insights.Options{ExcludedOwners: opts.ExcludedOwners}))
	}
}
