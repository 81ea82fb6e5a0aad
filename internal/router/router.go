package router

import (
	"github.com/gin-gonic/gin"
	"github.com/precasttrack/backend/internal/handler"
	"github.com/precasttrack/backend/internal/middleware"
	"github.com/precasttrack/backend/internal/model"
	"gorm.io/gorm"
)

type Deps struct {
	DB                *gorm.DB
	JWTSecret         string
	AuthHandler       *handler.AuthHandler
	UnitHandler       *handler.UnitHandler
	CheckpointHandler *handler.CheckpointHandler
	IssueHandler      *handler.IssueHandler
	CatalogHandler    *handler.CatalogHandler
}

func Setup(r *gin.Engine, deps Deps) {
	r.Use(middleware.CORSMiddleware())

	api := r.Group("/api/v1")

	// Public routes (no auth)
	api.POST("/auth/login", deps.AuthHandler.Login)

	// Authenticated routes
	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(deps.JWTSecret, deps.DB))
	{
		authed.GET("/auth/me", deps.AuthHandler.GetMe)

		// Admin
		admin := authed.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.POST("/users", deps.AuthHandler.CreateUser)
			admin.POST("/activities", deps.UnitHandler.CreateActivity)
			admin.POST("/catalog", deps.CatalogHandler.Create)
			admin.DELETE("/catalog/:id", deps.CatalogHandler.Deactivate)
		}

		// Checklist catalog (read)
		catalog := authed.Group("/catalog")
		{
			catalog.GET("", deps.CatalogHandler.List)
			catalog.GET("/:id", deps.CatalogHandler.Get)
		}

		// Projects & units
		projects := authed.Group("/projects")
		{
			projects.POST("", middleware.RequireRole(model.RoleQC), deps.UnitHandler.CreateProject)
			projects.PUT("/:id/webhook", middleware.RequireAdmin(), deps.UnitHandler.SetProjectWebhook)
			projects.POST("/:id/units", deps.UnitHandler.CreateUnit)
			projects.GET("/:id/units", deps.UnitHandler.ListUnits)
		}

		authed.GET("/activities", deps.UnitHandler.ListActivities)

		units := authed.Group("/units")
		{
			units.GET("/:id", deps.UnitHandler.GetUnit)
			units.GET("/:id/progress", deps.UnitHandler.ListProgress)
			units.POST("/:id/progress", deps.UnitHandler.RecordProgress)
			units.GET("/:id/can-complete/:activity_id", deps.UnitHandler.CanComplete)
			units.POST("/:id/complete/:activity_id", deps.UnitHandler.CompleteActivity)
			units.GET("/:id/stream", deps.UnitHandler.Stream)

			units.POST("/:id/checkpoints", deps.CheckpointHandler.Create)
			units.GET("/:id/checkpoints", deps.CheckpointHandler.ListForUnit)

			units.POST("/:id/issues", deps.IssueHandler.Create)
			units.GET("/:id/issues", deps.IssueHandler.ListForUnit)
		}

		// Checkpoints
		checkpoints := authed.Group("/checkpoints")
		{
			checkpoints.GET("/:id", deps.CheckpointHandler.Get)
			checkpoints.POST("/:id/items", deps.CheckpointHandler.CloneItems)
			checkpoints.POST("/:id/review", middleware.RequireRole(model.RoleQC), deps.CheckpointHandler.Review)
			checkpoints.POST("/:id/reinspect", deps.CheckpointHandler.Reinspect)
		}

		// Quality issues
		issues := authed.Group("/issues")
		{
			issues.GET("/:id", deps.IssueHandler.Get)
			issues.PUT("/:id/status", deps.IssueHandler.UpdateStatus)
			issues.POST("/:id/comments", deps.IssueHandler.AddComment)
			issues.GET("/:id/comments", deps.IssueHandler.ListComments)
		}

		authed.PUT("/checklist-items/:id", deps.CheckpointHandler.UpdateItem)

		authed.PUT("/comments/:id", deps.IssueHandler.EditComment)
		authed.DELETE("/comments/:id", deps.IssueHandler.DeleteComment)

		authed.GET("/attachments/:owner_type/:owner_id", deps.UnitHandler.ListAttachments)
	}
}
