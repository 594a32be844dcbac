package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/flowguard/internal/ledger"
	"github.com/zulandar/flowguard/internal/models"
)

// commitmentRequest is the create/edit body. Dates arrive as yyyy-mm-dd or
// ISO-8601 strings.
type commitmentRequest struct {
	Titulo       string          `json:"titulo"`
	Descricao    string          `json:"descricao"`
	Projeto      string          `json:"projeto"`
	Area         string          `json:"area"`
	Owner        string          `json:"owner"`
	Stakeholder  string          `json:"stakeholder"`
	Dependencias []string        `json:"dependencias"`
	DataEsperada string          `json:"dataEsperada"`
	Tipo         models.Type     `json:"tipo"`
	Impacto      models.Impact   `json:"impacto"`
	Riscos       models.RiskList `json:"riscos"`
}

func (r commitmentRequest) toOpts(opts *Options) (ledger.CreateOpts, error) {
	due, err := ledger.ParseDueDate(r.DataEsperada, opts.Location)
	if err != nil {
		return ledger.CreateOpts{}, err
	}
	out := ledger.CreateOpts{
		Titulo:       r.Titulo,
		Descricao:    r.Descricao,
		Projeto:      r.Projeto,
		Area:         r.Area,
		Owner:        r.Owner,
		Stakeholder:  r.Stakeholder,
		Dependencias: r.Dependencias,
		DataEsperada: due,
		Tipo:         r.Tipo,
		Impacto:      r.Impacto,
		Riscos:       r.Riscos,
	}
	if err := ledger.RequireParties(out); err != nil {
		return ledger.CreateOpts{}, err
	}
	return out, nil
}

func handleListCommitments(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := opts.Ledger.List(c.Request.Context())
		if err != nil {
			writeError(c, opts.Log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"commitments": all})
	}
}

func handleGetCommitment(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		commitment, err := opts.Ledger.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, opts.Log, err)
			return
		}
		c.JSON(http.StatusOK, commitment)
	}
}

func handleCreateCommitment(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req commitmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid JSON body")
			return
		}
		createOpts, err := req.toOpts(opts)
		if err != nil {
			writeError(c, opts.Log, err)
			return
		}
		created, err := opts.Ledger.Create(c.Request.Context(), createOpts)
		if err != nil {
			writeError(c, opts.Log, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

func handleEditCommitment(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req commitmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid JSON body")
			return
		}
		editOpts, err := req.toOpts(opts)
		if err != nil {
			writeError(c, opts.Log, err)
			return
		}
		updated, err := opts.Ledger.Edit(c.Request.Context(), c.Param("id"), editOpts)
		if err != nil {
			writeError(c, opts.Log, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func handleChangeStatus(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Status models.Status `json:"status"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid JSON body")
			return
		}
		updated, err := opts.Ledger.ChangeStatus(c.Request.Context(), c.Param("id"), req.Status)
		if err != nil {
			writeError(c, opts.Log, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func handleAddChecklistItem(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Text string `json:"text"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid JSON body")
			return
		}
		updated, err := opts.Ledger.AddChecklistItem(c.Request.Context(), c.Param("id"), req.Text)
		if err != nil {
			writeError(c, opts.Log, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func handleToggleChecklistItem(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		updated, err := opts.Ledger.ToggleChecklistItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
		if err != nil {
			writeError(c, opts.Log, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func handleRemoveChecklistItem(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		updated, err := opts.Ledger.RemoveChecklistItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
		if err != nil {
			writeError(c, opts.Log, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}
