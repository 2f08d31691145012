package handler

import (
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sphllzulu/QuickPactv2/middleware"
	"github.com/sphllzulu/QuickPactv2/model"
	"github.com/sphllzulu/QuickPactv2/pkg/logger"
	"github.com/sphllzulu/QuickPactv2/service"
)

type ContractHandler struct {
	generator service.Generator
	renderer  *service.Renderer
	exporter  service.Exporter
	archive   service.Archiver // nil when archiving is disabled
}

func NewContractHandler(gen service.Generator, renderer *service.Renderer, exporter service.Exporter, archive service.Archiver) *ContractHandler {
	return &ContractHandler{
		generator: gen,
		renderer:  renderer,
		exporter:  exporter,
		archive:   archive,
	}
}

type GenerateRequest struct {
	ContractType string `json:"contract_type"`
	Summary      string `json:"summary"`
}

// ContractTypes lists the contract catalogue
func (h *ContractHandler) ContractTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"contract_types": model.ContractTypes()})
}

// Generate runs the initial generation for the session. The request blocks
// until the provider answers; a second request meanwhile gets 409.
func (h *ContractHandler) Generate(c *gin.Context) {
	sess := middleware.GetSession(c)

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := sess.Submit(c.Request.Context(), h.generator, req.ContractType, req.Summary); err != nil {
		abortWithError(c, err, http.StatusBadGateway, gin.H{"session": sess.View()})
		return
	}

	c.JSON(http.StatusOK, sess.View())
}

// UpdateFields applies user edits made during review
func (h *ContractHandler) UpdateFields(c *gin.Context) {
	sess := middleware.GetSession(c)

	var values map[string]string
	if err := c.ShouldBindJSON(&values); err != nil || len(values) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Expected a JSON object of field names to string values"})
		return
	}

	if err := sess.UpdateFields(values); err != nil {
		abortWithError(c, err, http.StatusInternalServerError, nil)
		return
	}

	c.JSON(http.StatusOK, sess.View())
}

// Regenerate rebuilds the document from the edited fields
func (h *ContractHandler) Regenerate(c *gin.Context) {
	sess := middleware.GetSession(c)

	if err := sess.Regenerate(c.Request.Context(), h.generator); err != nil {
		abortWithError(c, err, http.StatusBadGateway, gin.H{"session": sess.View()})
		return
	}

	c.JSON(http.StatusOK, sess.View())
}

// Back returns the session to the input form
func (h *ContractHandler) Back(c *gin.Context) {
	sess := middleware.GetSession(c)

	if err := sess.Back(); err != nil {
		abortWithError(c, err, http.StatusInternalServerError, nil)
		return
	}

	c.JSON(http.StatusOK, sess.View())
}

// DismissError clears the message shown to the user
func (h *ContractHandler) DismissError(c *gin.Context) {
	sess := middleware.GetSession(c)
	sess.DismissError()
	c.JSON(http.StatusOK, sess.View())
}

// Document returns the rendered contract page
func (h *ContractHandler) Document(c *gin.Context) {
	sess := middleware.GetSession(c)

	page, _, err := h.render(sess)
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError, nil)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

// Export returns the contract as a PDF download named after the contract type
func (h *ContractHandler) Export(c *gin.Context) {
	sess := middleware.GetSession(c)
	ctx := c.Request.Context()

	mode, err := service.ParseExportMode(c.Query("mode"))
	if err != nil {
		abortWithError(c, err, http.StatusBadRequest, nil)
		return
	}

	page, label, err := h.render(sess)
	if err != nil {
		if !errors.Is(err, service.ErrNoDocument) {
			err = fmt.Errorf("%w: %v", service.ErrExportFailed, err)
		}
		abortWithError(c, err, http.StatusInternalServerError, nil)
		return
	}

	data, err := h.exporter.Export(ctx, page, mode)
	if err != nil {
		abortWithError(c, err, http.StatusInternalServerError, nil)
		return
	}

	filename := service.ExportFilename(label)
	if h.archive != nil {
		url, err := h.archive.Archive(ctx, sess.ID, filename, data)
		if err != nil {
			logger.Warn(ctx, "failed to archive export", "error", err)
		} else {
			c.Header("X-Archive-URL", url)
		}
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.Data(http.StatusOK, "application/pdf", data)
}

// render returns the HTML page for the session's document and the type label
func (h *ContractHandler) render(sess *service.Session) (string, string, error) {
	view := sess.View()
	if view.Document == "" {
		return "", "", service.ErrNoDocument
	}

	label := view.ContractType
	if ct, ok := sess.ContractType(); ok {
		label = ct.Label
	}

	page, err := h.renderer.Render(label, view.Document, view.Fields)
	if err != nil {
		return "", "", err
	}
	return page, label, nil
}
