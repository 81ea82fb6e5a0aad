package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/precasttrack/backend/internal/middleware"
	"github.com/precasttrack/backend/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.CodeBadInput, "invalid request: "+err.Error())
		return
	}

	result, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}

// GET /auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		Error(c, 401, 40103, "not authenticated")
		return
	}
	Success(c, user.Brief())
}

// POST /admin/users
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
		Name     string `json:"name" binding:"required"`
		Role     string `json:"role" binding:"required,oneof=qc engineer foreman"`
		IsAdmin  bool   `json:"is_admin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, service.CodeBadInput, "invalid request: "+err.Error())
		return
	}

	user, err := h.authService.CreateUser(service.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, user.Brief())
}
