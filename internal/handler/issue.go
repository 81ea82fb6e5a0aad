package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/precasttrack/backend/internal/middleware"
	"github.com/precasttrack/backend/internal/model"
	"github.com/precasttrack/backend/internal/service"
)

type IssueHandler struct {
	issueService *service.IssueService
}

func NewIssueHandler(issueService *service.IssueService) *IssueHandler {
	return &IssueHandler{issueService: issueService}
}

// POST /units/:id/issues
func (h *IssueHandler) Create(c *gin.Context) {
	unitID := parseID(c.Param("id"))

	var req struct {
		CheckpointID *uint                           `json:"checkpoint_id"`
		Type         string                          `json:"type" binding:"required,oneof=defect non_conformance observation"`
		Severity     string                          `json:"severity" binding:"required,oneof=critical major minor"`
		Description  string                          `json:"description" binding:"required"`
		AssignedTo   *uint                           `json:"assigned_to"`
		DueDate      *time.Time                      `json:"due_date"`
		Attachments  []service.ReviewAttachmentInput `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.CodeBadInput, "invalid request: "+err.Error())
		return
	}

	issue, err := h.issueService.CreateManualIssue(service.CreateIssueInput{
		UnitID:       unitID,
		CheckpointID: req.CheckpointID,
		Type:         model.IssueType(req.Type),
		Severity:     model.IssueSeverity(req.Severity),
		Description:  req.Description,
		ReportedBy:   middleware.GetCurrentUserID(c),
		AssignedTo:   req.AssignedTo,
		DueDate:      req.DueDate,
		Attachments:  req.Attachments,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, h.issueJSON(issue))
}

// GET /units/:id/issues
func (h *IssueHandler) ListForUnit(c *gin.Context) {
	unitID := parseID(c.Param("id"))
	status := model.IssueStatus(c.Query("status"))

	issues, err := h.issueService.ListForUnit(unitID, status)
	if err != nil {
		Fail(c, err)
		return
	}

	list := make([]gin.H, 0, len(issues))
	for i := range issues {
		list = append(list, h.issueJSON(&issues[i]))
	}
	Success(c, list)
}

// GET /issues/:id
func (h *IssueHandler) Get(c *gin.Context) {
	issue, err := h.issueService.Get(parseID(c.Param("id")))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, h.issueJSON(issue))
}

// PUT /issues/:id/status
func (h *IssueHandler) UpdateStatus(c *gin.Context) {
	issueID := parseID(c.Param("id"))

	var req struct {
		Status                string                          `json:"status" binding:"required,oneof=in_progress resolved closed"`
		ResolutionDescription string                          `json:"resolution_description"`
		Attachments           []service.ReviewAttachmentInput `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.CodeBadInput, "invalid request: "+err.Error())
		return
	}

	issue, err := h.issueService.UpdateStatus(service.UpdateIssueStatusInput{
		IssueID:               issueID,
		NewStatus:             model.IssueStatus(req.Status),
		ResolutionDescription: req.ResolutionDescription,
		ActorID:               middleware.GetCurrentUserID(c),
		Attachments:           req.Attachments,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, h.issueJSON(issue))
}

// POST /issues/:id/comments
func (h *IssueHandler) AddComment(c *gin.Context) {
	issueID := parseID(c.Param("id"))

	var req struct {
		ParentCommentID *uint  `json:"parent_comment_id"`
		Text            string `json:"text" binding:"required"`
		IsStatusUpdate  bool   `json:"is_status_update"`
		RelatedStatus   string `json:"related_status" binding:"omitempty,oneof=open in_progress resolved closed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.CodeBadInput, "invalid request: "+err.Error())
		return
	}

	comment, err := h.issueService.AddComment(service.AddCommentInput{
		IssueID:         issueID,
		ParentCommentID: req.ParentCommentID,
		AuthorID:        middleware.GetCurrentUserID(c),
		Text:            req.Text,
		IsStatusUpdate:  req.IsStatusUpdate,
		RelatedStatus:   model.IssueStatus(req.RelatedStatus),
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, comment)
}

// GET /issues/:id/comments
func (h *IssueHandler) ListComments(c *gin.Context) {
	issueID := parseID(c.Param("id"))
	includeDeleted := c.Query("include_deleted") == "true"

	comments, err := h.issueService.ListComments(issueID, includeDeleted)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, comments)
}

// PUT /comments/:id
func (h *IssueHandler) EditComment(c *gin.Context) {
	commentID := parseID(c.Param("id"))

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.CodeBadInput, "invalid request: "+err.Error())
		return
	}

	comment, err := h.issueService.EditComment(commentID, middleware.GetCurrentUserID(c), req.Text)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, comment)
}

// DELETE /comments/:id
func (h *IssueHandler) DeleteComment(c *gin.Context) {
	if err := h.issueService.SoftDeleteComment(parseID(c.Param("id")), middleware.GetCurrentUserID(c)); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

func (h *IssueHandler) issueJSON(issue *model.QualityIssue) gin.H {
	now := time.Now()
	data := gin.H{
		"id":            issue.ID,
		"unit_id":       issue.UnitID,
		"checkpoint_id": issue.CheckpointID,
		"type":          issue.Type,
		"severity":      issue.Severity,
		"description":   issue.Description,
		"status":        issue.Status,
		"status_code":   issue.Status.Code(),
		"reported_by":   issue.ReportedBy,
		"assigned_to":   issue.AssignedTo,
		"due_date":      issue.DueDate,
		"is_overdue":    issue.IsOverdue(now),
		"overdue_days":  issue.OverdueDays(now),
		"created_at":    issue.CreatedAt,
	}
	if issue.ResolutionDate != nil {
		data["resolution_date"] = issue.ResolutionDate
		data["resolution_description"] = issue.ResolutionDescription
	}
	if issue.Assignee != nil {
		data["assignee"] = issue.Assignee.Brief()
	}
	if issue.Reporter != nil {
		data["reporter"] = issue.Reporter.Brief()
	}
	return data
}
