package controllers

import (
	"transferdesk/models"
	"transferdesk/services"
	"transferdesk/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type TemplateController struct {
	templateService *services.TemplateService
}

func NewTemplateController(templateService *services.TemplateService) *TemplateController {
	return &TemplateController{templateService: templateService}
}

func (tc *TemplateController) CreateTemplate(c *gin.Context) {
	var req models.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid template body")
		return
	}

	template, err := tc.templateService.CreateTemplate(c.Request.Context(), req)
	if err != nil {
		logrus.Warnf("Create template failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Template created", template)
}

func (tc *TemplateController) GetTemplates(c *gin.Context) {
	var req models.GetTemplatesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid query parameters")
		return
	}

	templates, total, err := tc.templateService.GetTemplates(c.Request.Context(), req)
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to load templates")
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

	utils.SuccessResponseWithMeta(c, "Templates retrieved", templates, utils.CreatePaginationMeta(page, pageSize, total))
}

func (tc *TemplateController) GetTemplate(c *gin.Context) {
	template, err := tc.templateService.GetTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Template retrieved", template)
}

func (tc *TemplateController) UpdateTemplate(c *gin.Context) {
	var req models.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid template body")
		return
	}

	template, err := tc.templateService.UpdateTemplate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		logrus.Warnf("Update template failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Template updated", template)
}

func (tc *TemplateController) DeleteTemplate(c *gin.Context) {
	if err := tc.templateService.DeleteTemplate(c.Request.Context(), c.Param("id")); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Template deleted", nil)
}
