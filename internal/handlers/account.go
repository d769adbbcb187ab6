package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"mailsentry/internal/middleware"
	"mailsentry/internal/services"
	"mailsentry/internal/utils"
)

type AccountHandler struct {
	accountService *services.EmailAccountService
}

func NewAccountHandler(accountService *services.EmailAccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

func (h *AccountHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.GetAccounts)
	r.POST("", h.CreateAccount)
	r.DELETE("/:id", h.DeleteAccount)
	r.POST("/test", h.TestConnection)
	r.POST("/:id/sync", h.Sync)
}

func (h *AccountHandler) GetAccounts(c *gin.Context) {
	accounts, err := h.accountService.GetAccounts(middleware.GetUserID(c))
	if err != nil {
		utils.Error(c, 500, "获取邮箱账户失败", err)
		return
	}
	utils.SuccessData(c, accounts)
}

func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var input services.CreateAccountInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.Error(c, 400, "邮箱地址和授权密码是必填项", err)
		return
	}

	// Verify the credential before persisting it.
	ok, message := h.accountService.TestConnection(input)
	if !ok {
		utils.Error(c, 400, message, nil)
		return
	}

	account, err := h.accountService.CreateAccount(middleware.GetUserID(c), input)
	if err != nil {
		if errors.Is(err, services.ErrMissingEndpoints) {
			utils.Error(c, 400, "自定义邮箱需要填写IMAP服务器配置", nil)
			return
		}
		utils.Error(c, 500, "添加邮箱账户失败", err)
		return
	}
	utils.Success(c, 201, "邮箱账户添加成功", account.ToResponse())
}

func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	err := h.accountService.DeleteAccount(middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(c, 404, "邮箱账户不存在", nil)
			return
		}
		utils.Error(c, 500, "删除邮箱账户失败", err)
		return
	}
	utils.Success(c, 200, "邮箱删除成功", nil)
}

func (h *AccountHandler) TestConnection(c *gin.Context) {
	var input services.CreateAccountInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.Error(c, 400, "邮箱地址和授权密码是必填项", err)
		return
	}

	ok, message := h.accountService.TestConnection(input)
	if !ok {
		utils.Error(c, 400, message, nil)
		return
	}
	utils.Success(c, 200, message, nil)
}

func (h *AccountHandler) Sync(c *gin.Context) {
	result := h.accountService.Sync(middleware.GetUserID(c), c.Param("id"))
	if !result.Success {
		utils.Error(c, 400, result.Message, nil)
		return
	}
	utils.Success(c, 200, result.Message, gin.H{
		"synced_count":    result.SyncedCount,
		"folders_scanned": result.FoldersScanned,
	})
}
