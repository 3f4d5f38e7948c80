package controllers

import (
	"transferdesk/models"
	"transferdesk/services"
	"transferdesk/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type RuleController struct {
	ruleService *services.RuleService
}

func NewRuleController(ruleService *services.RuleService) *RuleController {
	return &RuleController{ruleService: ruleService}
}

// CreateRule creates a notification rule
// @Summary Create rule
// @Tags Rules
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body models.CreateRuleRequest true "Rule data"
// @Success 201 {object} models.APIResponse{data=models.NotificationRule}
// @Failure 400 {object} models.APIResponse
// @Router /rules [post]
func (rc *RuleController) CreateRule(c *gin.Context) {
	var req models.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid rule body")
		return
	}

	rule, err := rc.ruleService.CreateRule(c.Request.Context(), req)
	if err != nil {
		logrus.Warnf("Create rule failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Rule created", rule)
}

// GetRules lists rules with pagination and filtering
func (rc *RuleController) GetRules(c *gin.Context) {
	var req models.GetRulesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid query parameters")
		return
	}

	rules, total, err := rc.ruleService.GetRules(c.Request.Context(), req)
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to load rules")
		return
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	utils.SuccessResponseWithMeta(c, "Rules retrieved", rules, utils.CreatePaginationMeta(page, pageSize, total))
}

func (rc *RuleController) GetRule(c *gin.Context) {
	rule, err := rc.ruleService.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Rule retrieved", rule)
}

func (rc *RuleController) UpdateRule(c *gin.Context) {
	var req models.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid rule body")
		return
	}

	rule, err := rc.ruleService.UpdateRule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		logrus.Warnf("Update rule failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Rule updated", rule)
}

func (rc *RuleController) DeleteRule(c *gin.Context) {
	if err := rc.ruleService.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Rule deleted", nil)
}

// ActivateRule flips a rule active after re-validating its configuration
func (rc *RuleController) ActivateRule(c *gin.Context) {
	rule, err := rc.ruleService.SetRuleActive(c.Request.Context(), c.Param("id"), true)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Rule activated", rule)
}

func (rc *RuleController) DeactivateRule(c *gin.Context) {
	rule, err := rc.ruleService.SetRuleActive(c.Request.Context(), c.Param("id"), false)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Rule deactivated", rule)
}

// TestRule runs a rule against a sample event without dispatching
// @Summary Test rule
// @Description Dry-run a rule against a sample event. No notifications are sent and no delivery provider is touched.
// @Tags Rules
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param request body models.TestRuleRequest true "Sample event"
// @Success 200 {object} models.APIResponse{data=models.TestRuleResult}
// @Router /rules/{id}/test [post]
func (rc *RuleController) TestRule(c *gin.Context) {
	var req models.TestRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid test body")
		return
	}

	result, err := rc.ruleService.TestRule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Rule tested", result)
}

func (rc *RuleController) GetRuleStats(c *gin.Context) {
	stats, err := rc.ruleService.GetRuleStats(c.Request.Context())
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to load rule stats")
		return
	}

	utils.SuccessResponse(c, "Rule stats retrieved", stats)
}
