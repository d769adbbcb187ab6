package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"mailsentry/internal/services"
	"mailsentry/internal/utils"
)

// WhitelistHandler exposes CRUD for sender and URL whitelist rules. Every
// mutation refreshes the matcher caches through the services.
type WhitelistHandler struct {
	senderService *services.SenderWhitelistService
	urlService    *services.URLWhitelistService
}

func NewWhitelistHandler(senderService *services.SenderWhitelistService, urlService *services.URLWhitelistService) *WhitelistHandler {
	return &WhitelistHandler{senderService: senderService, urlService: urlService}
}

func (h *WhitelistHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/senders", h.ListSenderRules)
	r.POST("/senders", h.CreateSenderRule)
	r.PUT("/senders/:id", h.UpdateSenderRule)
	r.DELETE("/senders/:id", h.DeleteSenderRule)

	r.GET("/urls", h.ListURLRules)
	r.POST("/urls", h.CreateURLRule)
	r.PUT("/urls/:id", h.UpdateURLRule)
	r.DELETE("/urls/:id", h.DeleteURLRule)

	r.POST("/refresh", h.Refresh)
}

func (h *WhitelistHandler) ListSenderRules(c *gin.Context) {
	rules, err := h.senderService.ListRules()
	if err != nil {
		utils.Error(c, 500, "获取发件人白名单失败", err)
		return
	}
	utils.SuccessData(c, rules)
}

func (h *WhitelistHandler) CreateSenderRule(c *gin.Context) {
	var input services.WhitelistRuleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.Error(c, 400, "规则类型和规则值是必填项", err)
		return
	}
	rule, err := h.senderService.CreateRule(input)
	if err != nil {
		utils.Error(c, 500, "创建白名单规则失败", err)
		return
	}
	utils.Success(c, 201, "白名单规则创建成功", rule)
}

func (h *WhitelistHandler) UpdateSenderRule(c *gin.Context) {
	var data map[string]interface{}
	if err := c.ShouldBindJSON(&data); err != nil {
		utils.Error(c, 400, "无效的请求数据", err)
		return
	}
	if err := h.senderService.UpdateRule(c.Param("id"), data); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(c, 404, "白名单规则不存在", nil)
			return
		}
		utils.Error(c, 500, "更新白名单规则失败", err)
		return
	}
	utils.Success(c, 200, "白名单规则更新成功", nil)
}

func (h *WhitelistHandler) DeleteSenderRule(c *gin.Context) {
	if err := h.senderService.DeleteRule(c.Param("id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(c, 404, "白名单规则不存在", nil)
			return
		}
		utils.Error(c, 500, "删除白名单规则失败", err)
		return
	}
	utils.Success(c, 200, "白名单规则删除成功", nil)
}

func (h *WhitelistHandler) ListURLRules(c *gin.Context) {
	rules, err := h.urlService.ListRules()
	if err != nil {
		utils.Error(c, 500, "获取URL白名单失败", err)
		return
	}
	utils.SuccessData(c, rules)
}

func (h *WhitelistHandler) CreateURLRule(c *gin.Context) {
	var input services.WhitelistRuleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.Error(c, 400, "规则类型和规则值是必填项", err)
		return
	}
	rule, err := h.urlService.CreateRule(input)
	if err != nil {
		utils.Error(c, 500, "创建白名单规则失败", err)
		return
	}
	utils.Success(c, 201, "白名单规则创建成功", rule)
}

func (h *WhitelistHandler) UpdateURLRule(c *gin.Context) {
	var data map[string]interface{}
	if err := c.ShouldBindJSON(&data); err != nil {
		utils.Error(c, 400, "无效的请求数据", err)
		return
	}
	if err := h.urlService.UpdateRule(c.Param("id"), data); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(c, 404, "白名单规则不存在", nil)
			return
		}
		utils.Error(c, 500, "更新白名单规则失败", err)
		return
	}
	utils.Success(c, 200, "白名单规则更新成功", nil)
}

func (h *WhitelistHandler) DeleteURLRule(c *gin.Context) {
	if err := h.urlService.DeleteRule(c.Param("id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(c, 404, "白名单规则不存在", nil)
			return
		}
		utils.Error(c, 500, "删除白名单规则失败", err)
		return
	}
	utils.Success(c, 200, "白名单规则删除成功", nil)
}

// Refresh reloads both matcher caches, for the operator surface.
func (h *WhitelistHandler) Refresh(c *gin.Context) {
	if err := h.senderService.Refresh(); err != nil {
		utils.Error(c, 500, "刷新发件人白名单缓存失败", err)
		return
	}
	if err := h.urlService.Refresh(); err != nil {
		utils.Error(c, 500, "刷新URL白名单缓存失败", err)
		return
	}
	utils.Success(c, 200, "白名单缓存刷新成功", nil)
}
