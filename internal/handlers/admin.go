package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"mailsentry/internal/services"
	"mailsentry/internal/utils"
)

// AdminHandler exposes the operator surface: global re-detection, system
// settings and detector info.
type AdminHandler struct {
	detectionService *services.PhishingDetectionService
	settingsService  *services.SystemSettingsService
}

func NewAdminHandler(detectionService *services.PhishingDetectionService, settingsService *services.SystemSettingsService) *AdminHandler {
	return &AdminHandler{
		detectionService: detectionService,
		settingsService:  settingsService,
	}
}

func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/phishing/redetect-all", h.RedetectAll)
	r.GET("/phishing/detector", h.DetectorInfo)
	r.GET("/settings", h.GetSettings)
	r.PUT("/settings", h.UpdateSettings)
}

func (h *AdminHandler) RedetectAll(c *gin.Context) {
	count, err := h.detectionService.RedetectAll()
	if err != nil {
		utils.Error(c, 500, "触发全量重新检测失败", err)
		return
	}
	utils.Success(c, 200, fmt.Sprintf("已调度%d封邮件重新检测", count), gin.H{"scheduled": count})
}

func (h *AdminHandler) DetectorInfo(c *gin.Context) {
	utils.SuccessData(c, h.detectionService.DetectorInfo())
}

func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingsService.GetSettings(true)
	if err != nil {
		utils.Error(c, 500, "获取系统设置失败", err)
		return
	}
	utils.SuccessData(c, settings)
}

type updateSettingsInput struct {
	EnableLongURLDetection *bool `json:"enable_long_url_detection"`
}

func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var input updateSettingsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.Error(c, 400, "无效的请求数据", err)
		return
	}

	settings, err := h.settingsService.UpdateSettings(input.EnableLongURLDetection)
	if err != nil {
		utils.Error(c, 500, "更新系统设置失败", err)
		return
	}
	utils.Success(c, 200, "系统设置更新成功", settings)
}
