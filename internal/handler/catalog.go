package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/precasttrack/backend/internal/middleware"
	"github.com/precasttrack/backend/internal/model"
	"github.com/precasttrack/backend/internal/service"
)

type CatalogHandler struct {
	catalogService *service.CatalogService
}

func NewCatalogHandler(catalogService *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// GET /catalog
func (h *CatalogHandler) List(c *gin.Context) {
	activeOnly := c.DefaultQuery("active_only", "true") != "false"
	items, err := h.catalogService.List(c.Query("category"), activeOnly)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, items)
}

// GET /catalog/:id
func (h *CatalogHandler) Get(c *gin.Context) {
	item, err := h.catalogService.Get(parseID(c.Param("id")))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, item)
}

// POST /catalog
func (h *CatalogHandler) Create(c *gin.Context) {
	var req struct {
		Category          string `json:"category" binding:"required"`
		Sequence          int    `json:"sequence" binding:"required,min=1"`
		Description       string `json:"description" binding:"required"`
		ReferenceDocument string `json:"reference_document"`
		DefaultSeverity   string `json:"default_severity" binding:"omitempty,oneof=critical major minor"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.CodeBadInput, "invalid request: "+err.Error())
		return
	}

	item, err := h.catalogService.Create(service.CreateTemplateItemInput{
		Category:          req.Category,
		Sequence:          req.Sequence,
		Description:       req.Description,
		ReferenceDocument: req.ReferenceDocument,
		DefaultSeverity:   model.IssueSeverity(req.DefaultSeverity),
	}, middleware.GetCurrentUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, item)
}

// DELETE /catalog/:id
func (h *CatalogHandler) Deactivate(c *gin.Context) {
	if err := h.catalogService.Deactivate(parseID(c.Param("id")), middleware.GetCurrentUserID(c)); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}
