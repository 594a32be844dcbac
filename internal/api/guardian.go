package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/flowguard/internal/advisor"
	"github.com/zulandar/flowguard/internal/premortem"
)

// advisorStatusCode maps advisory outcomes: disabled is a normal answer,
// unavailable is a provider failure.
func advisorStatusCode(s advisor.Status) int {
	switch s {
	case advisor.StatusOK, advisor.StatusDisabled:
		return http.StatusOK
	case advisor.StatusInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

func invalidAdvisorInput(c *gin.Context) {
	c.JSON(http.StatusBadRequest, advisor.Result[advisor.Output]{
		Status: advisor.StatusInvalidInput,
		Reason: advisor.ReasonInvalidInput,
	})
}

func handleAdvisor(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in advisor.Input
		if err := c.ShouldBindJSON(&in); err != nil {
			invalidAdvisorInput(c)
			return
		}
		in, ok := in.Normalize()
		if !ok {
			invalidAdvisorInput(c)
			return
		}
		if opts.Advisor == nil {
			c.JSON(http.StatusOK, advisor.Result[advisor.Output]{Status: advisor.StatusDisabled, Reason: advisor.ReasonFlagOff})
			return
		}
		res := opts.Advisor.Analyze(c.Request.Context(), in)
		c.JSON(advisorStatusCode(res.Status), res)
	}
}

func handlePreMortem(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		target, err := opts.Ledger.Get(ctx, c.Param("id"))
		if err != nil {
			writeError(c, opts.Log, err)
			return
		}
		all, err := opts.Ledger.List(ctx)
		if err != nil {
			writeError(c, opts.Log, err)
			return
		}
		pmContext := premortem.BuildContext(target, all, opts.Now())
		if opts.Advisor == nil {
			c.JSON(http.StatusOK, gin.H{"status": advisor.StatusDisabled, "reason": advisor.ReasonFlagOff, "context": pmContext})
			return
		}
		prompt, err := premortem.BuildPrompt(pmContext)
		if err != nil {
			writeError(c, opts.Log, err)
			return
		}
		res := opts.Advisor.PreMortem(ctx, prompt)
		c.JSON(advisorStatusCode(res.Status), gin.H{
			"status":  res.Status,
			"reason":  res.Reason,
			"result":  res.Result,
			"context": pmContext,
		})
	}
}
