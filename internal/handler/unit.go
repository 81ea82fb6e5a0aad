package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/precasttrack/backend/internal/middleware"
	"github.com/precasttrack/backend/internal/service"
	"github.com/precasttrack/backend/internal/sse"
)

type UnitHandler struct {
	unitService *service.UnitService
	gateService *service.GateService
	hub         *sse.Hub
}

func NewUnitHandler(unitService *service.UnitService, gateService *service.GateService, hub *sse.Hub) *UnitHandler {
	return &UnitHandler{unitService: unitService, gateService: gateService, hub: hub}
}

// POST /projects
func (h *UnitHandler) CreateProject(c *gin.Context) {
	var req struct {
		Code     string `json:"code" binding:"required"`
		Name     string `json:"name" binding:"required"`
		Location string `json:"location"`
		Client   string `json:"client"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.CodeBadInput, "invalid request: "+err.Error())
		return
	}

	project, err := h.unitService.CreateProject(service.CreateProjectInput{
		Code:     req.Code,
		Name:     req.Name,
		Location: req.Location,
		Client:   req.Client,
	}, middleware.GetCurrentUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, project)
}

// PUT /projects/:id/webhook
func (h *UnitHandler) SetProjectWebhook(c *gin.Context) {
	var req struct {
		URL   string `json:"url" binding:"required,url"`
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.CodeBadInput, "invalid request: "+err.Error())
		return
	}

	if err := h.unitService.SetProjectWebhook(parseID(c.Param("id")), req.URL, req.Token, middleware.GetCurrentUserID(c)); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

// POST /projects/:id/units
func (h *UnitHandler) CreateUnit(c *gin.Context) {
	projectID := parseID(c.Param("id"))

	var req struct {
		Code     string `json:"code" binding:"required"`
		Name     string `json:"name"`
		UnitType string `json:"unit_type"`
		Zone     string `json:"zone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.CodeBadInput, "invalid request: "+err.Error())
		return
	}

	unit, err := h.unitService.CreateUnit(service.CreateUnitInput{
		ProjectID: projectID,
		Code:      req.Code,
		Name:      req.Name,
		UnitType:  req.UnitType,
		Zone:      req.Zone,
	}, middleware.GetCurrentUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, unit)
}

// GET /projects/:id/units
func (h *UnitHandler) ListUnits(c *gin.Context) {
	page, pageSize := parsePage(c)
	units, total, err := h.unitService.ListUnits(parseID(c.Param("id")), page, pageSize)
	if err != nil {
		Fail(c, err)
		return
	}
	SuccessPaged(c, units, total, page, pageSize)
}

// GET /units/:id
func (h *UnitHandler) GetUnit(c *gin.Context) {
	unit, err := h.unitService.GetUnit(parseID(c.Param("id")))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, unit)
}

// GET /units/:id/progress
func (h *UnitHandler) ListProgress(c *gin.Context) {
	progress, err := h.unitService.ListProgress(parseID(c.Param("id")))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, progress)
}

// POST /units/:id/progress
func (h *UnitHandler) RecordProgress(c *gin.Context) {
	unitID := parseID(c.Param("id"))

	var req struct {
		ActivityID uint   `json:"activity_id" binding:"required"`
		Position   string `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.CodeBadInput, "invalid request: "+err.Error())
		return
	}

	result, err := h.gateService.OnProgressRecorded(c.Request.Context(), service.ProgressInput{
		UnitID:     unitID,
		ActivityID: req.ActivityID,
		Position:   req.Position,
		RecordedBy: middleware.GetCurrentUserID(c),
	})
	if err != nil {
		Fail(c, err)
		return
	}

	data := gin.H{"progress": result.Progress}
	if result.Checkpoint != nil {
		data["checkpoint"] = gin.H{
			"id":     result.Checkpoint.ID,
			"code":   result.Checkpoint.Code,
			"status": result.Checkpoint.Status,
			"reused": result.CheckpointReused,
		}
	}
	Success(c, data)
}

// GET /units/:id/can-complete/:activity_id
func (h *UnitHandler) CanComplete(c *gin.Context) {
	decision, err := h.gateService.CanCompleteActivity(parseID(c.Param("id")), parseID(c.Param("activity_id")))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, decision)
}

// POST /units/:id/complete/:activity_id
func (h *UnitHandler) CompleteActivity(c *gin.Context) {
	progress, err := h.gateService.CompleteActivity(
		parseID(c.Param("id")),
		parseID(c.Param("activity_id")),
		middleware.GetCurrentUserID(c),
	)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, progress)
}

// GET /units/:id/stream — SSE feed of inspection events for one unit.
func (h *UnitHandler) Stream(c *gin.Context) {
	unitID := int64(parseID(c.Param("id")))

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	if from := c.Query("from"); from != "" {
		fromID, _ := strconv.ParseInt(from, 10, 64)
		replayed, err := h.hub.ReplayFrom(unitID, fromID)
		if err == nil {
			for _, ev := range replayed {
				writeSSE(c.Writer, ev)
			}
			c.Writer.Flush()
		}
	}

	ch, unsub := h.hub.Subscribe(unitID)
	defer unsub()

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-ch
		if !ok {
			return false
		}
		writeSSE(w, ev)
		return true
	})
}

func writeSSE(w io.Writer, ev sse.Event) {
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: ", ev.ID, ev.Type)
	json.NewEncoder(w).Encode(ev.Data)
	fmt.Fprint(w, "\n")
}

// GET /activities
func (h *UnitHandler) ListActivities(c *gin.Context) {
	activities, err := h.unitService.ListActivities()
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, activities)
}

// POST /admin/activities
func (h *UnitHandler) CreateActivity(c *gin.Context) {
	var req struct {
		Name               string `json:"name" binding:"required"`
		Sequence           int    `json:"sequence" binding:"required,min=1"`
		Discipline         string `json:"discipline"`
		RequiresInspection bool   `json:"requires_inspection"`
		CheckpointCode     string `json:"checkpoint_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.CodeBadInput, "invalid request: "+err.Error())
		return
	}

	activity, err := h.unitService.CreateActivity(service.CreateActivityInput{
		Name:               req.Name,
		Sequence:           req.Sequence,
		Discipline:         req.Discipline,
		RequiresInspection: req.RequiresInspection,
		CheckpointCode:     req.CheckpointCode,
	}, middleware.GetCurrentUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, activity)
}

// GET /attachments/:owner_type/:owner_id
func (h *UnitHandler) ListAttachments(c *gin.Context) {
	attachments, err := h.unitService.ListAttachments(c.Param("owner_type"), parseID(c.Param("owner_id")))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, attachments)
}
