package routes

import (
	"transferdesk/middleware"
	"transferdesk/models"

	"github.com/gin-gonic/gin"
)

// setupAdminRoutes mounts the rule, template, and dispatch-log management
// surface. Admins own the configuration; managers can read and dry-run.
func setupAdminRoutes(router *gin.Engine, ctrls *Controllers, auth *middleware.AuthMiddleware) {
	v1 := router.Group("/api/v1")
	v1.Use(auth.RequireAuth())

	readRoles := auth.RequireRoles(models.RoleAdmin, models.RoleManager)
	writeRoles := auth.RequireRoles(models.RoleAdmin)

	rules := v1.Group("/rules")
	{
		rules.GET("", readRoles, ctrls.Rule.GetRules)
		rules.GET("/stats", readRoles, ctrls.Rule.GetRuleStats)
		rules.GET("/:id", readRoles, ctrls.Rule.GetRule)
		rules.POST("/:id/test", readRoles, ctrls.Rule.TestRule)

		rules.POST("", writeRoles, ctrls.Rule.CreateRule)
		rules.PUT("/:id", writeRoles, ctrls.Rule.UpdateRule)
		rules.DELETE("/:id", writeRoles, ctrls.Rule.DeleteRule)
		rules.POST("/:id/activate", writeRoles, ctrls.Rule.ActivateRule)
		rules.POST("/:id/deactivate", writeRoles, ctrls.Rule.DeactivateRule)
	}

	templates := v1.Group("/templates")
	{
		templates.GET("", readRoles, ctrls.Template.GetTemplates)
		templates.GET("/:id", readRoles, ctrls.Template.GetTemplate)

		templates.POST("", writeRoles, ctrls.Template.CreateTemplate)
		templates.PUT("/:id", writeRoles, ctrls.Template.UpdateTemplate)
		templates.DELETE("/:id", writeRoles, ctrls.Template.DeleteTemplate)
	}

	dispatch := v1.Group("/dispatch")
	{
		dispatch.GET("/logs", readRoles, ctrls.Dispatch.GetDispatchLogs)
		dispatch.GET("/stats", readRoles, ctrls.Dispatch.GetDeliveryStats)
		dispatch.GET("/worker", writeRoles, ctrls.Dispatch.GetWorkerStats)
	}
}
