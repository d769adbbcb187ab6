package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"mailsentry/internal/middleware"
	"mailsentry/internal/services"
	"mailsentry/internal/utils"
)

type EmailHandler struct {
	emailService *services.EmailService
}

func NewEmailHandler(emailService *services.EmailService) *EmailHandler {
	return &EmailHandler{emailService: emailService}
}

func (h *EmailHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.GetEmails)
	r.GET("/:id", h.GetEmailDetail)
	r.POST("/:id/read", h.MarkAsRead)
	r.POST("/send", h.SendEmail)
}

func (h *EmailHandler) GetEmails(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	page, err := h.emailService.GetEmails(
		c.Request.Context(),
		middleware.GetUserID(c),
		c.Query("account_id"),
		c.Query("cursor"),
		limit,
	)
	if err != nil {
		utils.Error(c, 500, "获取邮件列表失败", err)
		return
	}
	utils.SuccessData(c, page)
}

func (h *EmailHandler) GetEmailDetail(c *gin.Context) {
	detail, err := h.emailService.GetEmailDetail(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, services.ErrUnauthorized) {
			utils.Error(c, 404, "邮件不存在", nil)
			return
		}
		utils.Error(c, 500, "获取邮件详情失败", err)
		return
	}
	utils.SuccessData(c, detail)
}

func (h *EmailHandler) MarkAsRead(c *gin.Context) {
	err := h.emailService.MarkAsRead(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, services.ErrUnauthorized) {
			utils.Error(c, 404, "邮件不存在", nil)
			return
		}
		utils.Error(c, 500, "标记已读失败", err)
		return
	}
	utils.Success(c, 200, "标记成功", nil)
}

func (h *EmailHandler) SendEmail(c *gin.Context) {
	var input services.SendEmailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.Error(c, 400, "发件账户和收件人是必填项", err)
		return
	}

	ok, message := h.emailService.SendEmail(middleware.GetUserID(c), input)
	if !ok {
		utils.Error(c, 400, message, nil)
		return
	}
	utils.Success(c, 200, message, nil)
}
