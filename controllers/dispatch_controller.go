package controllers

import (
	"strconv"
	"time"
	"transferdesk/models"
	"transferdesk/repositories"
	"transferdesk/utils"
	"transferdesk/workers"

	"github.com/gin-gonic/gin"
)

// DispatchController exposes the delivery log and its aggregates.
type DispatchController struct {
	dispatchLogRepo *repositories.DispatchLogRepository
	auditWorker     *workers.AuditWorker
}

func NewDispatchController(dispatchLogRepo *repositories.DispatchLogRepository, auditWorker *workers.AuditWorker) *DispatchController {
	return &DispatchController{
		dispatchLogRepo: dispatchLogRepo,
		auditWorker:     auditWorker,
	}
}

// GetDispatchLogs lists persisted dispatch outcomes
// @Summary Get dispatch logs
// @Tags Dispatch
// @Security BearerAuth
// @Produce json
// @Param eventType query string false "Event type filter"
// @Param ruleId query string false "Rule ID filter"
// @Param channel query string false "Channel filter (email, sms)"
// @Param status query string false "Status filter (sent, failed, skipped, timeout)"
// @Success 200 {object} models.APIResponse{data=[]models.DispatchLog}
// @Router /dispatch/logs [get]
func (dc *DispatchController) GetDispatchLogs(c *gin.Context) {
	var req models.GetDispatchLogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid query parameters")
		return
	}

	logs, total, err := dc.dispatchLogRepo.GetLogs(c.Request.Context(), req)
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to load dispatch logs")
		return
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	utils.SuccessResponseWithMeta(c, "Dispatch logs retrieved", logs, utils.CreatePaginationMeta(page, pageSize, total))
}

// GetDeliveryStats aggregates outcomes over a trailing window (default 7 days)
func (dc *DispatchController) GetDeliveryStats(c *gin.Context) {
	days := 7
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			utils.BadRequestResponse(c, "days must be between 1 and 365")
			return
		}
		days = parsed
	}

	since := time.Now().AddDate(0, 0, -days)
	stats, err := dc.dispatchLogRepo.GetDeliveryStats(c.Request.Context(), since)
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to load delivery stats")
		return
	}

	utils.SuccessResponse(c, "Delivery stats retrieved", stats)
}

// GetWorkerStats reports audit worker queue health
func (dc *DispatchController) GetWorkerStats(c *gin.Context) {
	utils.SuccessResponse(c, "Worker stats retrieved", dc.auditWorker.GetStats())
}
