package handlers

import (
	"github.com/gin-gonic/gin"

	"mailsentry/internal/middleware"
	"mailsentry/internal/services"
	"mailsentry/internal/utils"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
}

// RegisterProtectedRoutes registers routes that need the auth middleware.
func (h *AuthHandler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.Me)
	r.PUT("/password", h.UpdatePassword)
}

type registerInput struct {
	Username string  `json:"username" binding:"required"`
	Password string  `json:"password" binding:"required,min=6"`
	Email    *string `json:"email"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var input registerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.Error(c, 400, "用户名和密码是必填项（密码至少6位）", err)
		return
	}

	result, err := h.authService.Register(input.Username, input.Password, input.Email)
	if err != nil {
		utils.Error(c, 500, "注册失败", err)
		return
	}
	if !result.Success {
		utils.Error(c, 400, result.Message, nil)
		return
	}
	utils.Success(c, 201, result.Message, gin.H{"user": result.User, "token": result.Token})
}

type loginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.Error(c, 400, "用户名和密码是必填项", err)
		return
	}

	result, err := h.authService.Login(input.Username, input.Password)
	if err != nil {
		utils.Error(c, 500, "登录失败", err)
		return
	}
	if !result.Success {
		utils.Error(c, 401, result.Message, nil)
		return
	}
	utils.SuccessData(c, gin.H{"user": result.User, "token": result.Token})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authService.GetUserByID(middleware.GetUserID(c))
	if err != nil {
		utils.Error(c, 404, "用户不存在", err)
		return
	}
	utils.SuccessData(c, user)
}

type updatePasswordInput struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	var input updatePasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.Error(c, 400, "原密码和新密码是必填项（新密码至少6位）", err)
		return
	}

	result, err := h.authService.UpdatePassword(middleware.GetUserID(c), input.OldPassword, input.NewPassword)
	if err != nil {
		utils.Error(c, 500, "密码修改失败", err)
		return
	}
	if !result.Success {
		utils.Error(c, 400, result.Message, nil)
		return
	}
	utils.Success(c, 200, result.Message, nil)
}
