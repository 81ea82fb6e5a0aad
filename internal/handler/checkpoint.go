package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/precasttrack/backend/internal/middleware"
	"github.com/precasttrack/backend/internal/model"
	"github.com/precasttrack/backend/internal/service"
)

type CheckpointHandler struct {
	checkpointService *service.CheckpointService
	reviewService     *service.ReviewService
	unitService       *service.UnitService
}

func NewCheckpointHandler(checkpointService *service.CheckpointService, reviewService *service.ReviewService, unitService *service.UnitService) *CheckpointHandler {
	return &CheckpointHandler{
		checkpointService: checkpointService,
		reviewService:     reviewService,
		unitService:       unitService,
	}
}

// POST /units/:id/checkpoints
func (h *CheckpointHandler) Create(c *gin.Context) {
	unitID := parseID(c.Param("id"))

	var req struct {
		ActivityID  *uint  `json:"activity_id"`
		Code        string `json:"code" binding:"required"`
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.CodeBadInput, "invalid request: "+err.Error())
		return
	}

	cp, err := h.checkpointService.Create(service.CreateCheckpointInput{
		UnitID:      unitID,
		ActivityID:  req.ActivityID,
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		RequestedBy: middleware.GetCurrentUserID(c),
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, cp)
}

// GET /units/:id/checkpoints
func (h *CheckpointHandler) ListForUnit(c *gin.Context) {
	unitID := parseID(c.Param("id"))
	cps, err := h.checkpointService.ListForUnit(unitID)
	if err != nil {
		Fail(c, err)
		return
	}

	list := make([]gin.H, 0, len(cps))
	for _, cp := range cps {
		item := gin.H{
			"id":             cp.ID,
			"code":           cp.Code,
			"name":           cp.Name,
			"status":         cp.Status,
			"status_code":    cp.Status.Code(),
			"requested_date": cp.RequestedDate,
			"approval_date":  cp.ApprovalDate,
			"inspector_name": cp.InspectorName,
		}
		if cp.Activity != nil {
			item["activity"] = gin.H{"id": cp.Activity.ID, "name": cp.Activity.Name, "sequence": cp.Activity.Sequence}
		}
		list = append(list, item)
	}
	Success(c, list)
}

// GET /checkpoints/:id
func (h *CheckpointHandler) Get(c *gin.Context) {
	cp, err := h.checkpointService.Get(parseID(c.Param("id")))
	if err != nil {
		Fail(c, err)
		return
	}

	attachments, _ := h.unitService.ListAttachments(model.AttachmentOwnerCheckpoint, cp.ID)
	data := gin.H{
		"id":              cp.ID,
		"unit_id":         cp.UnitID,
		"activity_id":     cp.ActivityID,
		"code":            cp.Code,
		"name":            cp.Name,
		"description":     cp.Description,
		"status":          cp.Status,
		"status_code":     cp.Status.Code(),
		"requested_date":  cp.RequestedDate,
		"requested_by":    cp.RequestedBy,
		"inspection_date": cp.InspectionDate,
		"inspector_name":  cp.InspectorName,
		"inspector_role":  cp.InspectorRole,
		"approval_date":   cp.ApprovalDate,
		"comments":        cp.Comments,
		"items":           cp.Items,
		"attachments":     attachments,
	}
	if cp.Unit != nil {
		data["unit"] = gin.H{"id": cp.Unit.ID, "code": cp.Unit.Code, "name": cp.Unit.Name}
	}
	Success(c, data)
}

// POST /checkpoints/:id/items
func (h *CheckpointHandler) CloneItems(c *gin.Context) {
	checkpointID := parseID(c.Param("id"))

	var req struct {
		TemplateItemIDs []uint `json:"template_item_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.CodeBadInput, "invalid request: "+err.Error())
		return
	}

	items, err := h.checkpointService.CloneItems(checkpointID, req.TemplateItemIDs, middleware.GetCurrentUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, items)
}

// PUT /checklist-items/:id
func (h *CheckpointHandler) UpdateItem(c *gin.Context) {
	itemID := parseID(c.Param("id"))

	var req struct {
		Description       *string `json:"description"`
		ReferenceDocument *string `json:"reference_document"`
		Remarks           *string `json:"remarks"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.CodeBadInput, "invalid request: "+err.Error())
		return
	}

	item, err := h.checkpointService.UpdateItem(itemID, service.UpdateItemInput{
		Description:       req.Description,
		ReferenceDocument: req.ReferenceDocument,
		Remarks:           req.Remarks,
	}, middleware.GetCurrentUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, item)
}

// POST /checkpoints/:id/review
func (h *CheckpointHandler) Review(c *gin.Context) {
	checkpointID := parseID(c.Param("id"))

	var req struct {
		Items []struct {
			ItemID  uint   `json:"item_id" binding:"required"`
			Status  string `json:"status" binding:"required,oneof=pass fail na"`
			Remarks string `json:"remarks"`
		} `json:"items"`
		OverallComment string                          `json:"overall_comment"`
		ForceStatus    string                          `json:"force_status" binding:"omitempty,oneof=approved rejected conditionally_approved"`
		InspectorRole  string                          `json:"inspector_role"`
		Attachments    []service.ReviewAttachmentInput `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.CodeBadInput, "invalid request: "+err.Error())
		return
	}

	user := middleware.GetCurrentUser(c)
	items := make([]service.ReviewItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.ReviewItemInput{
			ItemID:  it.ItemID,
			Status:  model.ItemStatus(it.Status),
			Remarks: it.Remarks,
		})
	}

	inspectorRole := req.InspectorRole
	if inspectorRole == "" && user != nil {
		inspectorRole = user.Role
	}
	inspectorName := ""
	var inspectorID uint
	if user != nil {
		inspectorName = user.Name
		inspectorID = user.ID
	}

	result, err := h.reviewService.ReviewCheckpoint(service.ReviewInput{
		CheckpointID:   checkpointID,
		Items:          items,
		OverallComment: req.OverallComment,
		InspectorID:    inspectorID,
		InspectorName:  inspectorName,
		InspectorRole:  inspectorRole,
		ForceStatus:    model.CheckpointStatus(req.ForceStatus),
		Attachments:    req.Attachments,
	})
	if err != nil {
		Fail(c, err)
		return
	}

	issues := make([]gin.H, 0, len(result.CreatedIssues))
	for _, issue := range result.CreatedIssues {
		issues = append(issues, gin.H{
			"id":          issue.ID,
			"type":        issue.Type,
			"severity":    issue.Severity,
			"description": issue.Description,
		})
	}
	Success(c, gin.H{
		"checkpoint_id":  result.Checkpoint.ID,
		"code":           result.Checkpoint.Code,
		"status":         result.Checkpoint.Status,
		"status_code":    result.Checkpoint.Status.Code(),
		"approval_date":  result.Checkpoint.ApprovalDate,
		"created_issues": issues,
		"reviewed_at":    time.Now(),
	})
}

// POST /checkpoints/:id/reinspect
func (h *CheckpointHandler) Reinspect(c *gin.Context) {
	cp, err := h.checkpointService.CreateReinspection(parseID(c.Param("id")), middleware.GetCurrentUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{
		"id":     cp.ID,
		"code":   cp.Code,
		"status": cp.Status,
		"items":  cp.Items,
	})
}
