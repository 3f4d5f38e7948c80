package controllers

import (
	"time"
	"transferdesk/models"
	"transferdesk/services"
	"transferdesk/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type EventController struct {
	engine *services.RuleEngine
}

func NewEventController(engine *services.RuleEngine) *EventController {
	return &EventController{engine: engine}
}

type ingestEventRequest struct {
	Type       models.EventType       `json:"type" binding:"required"`
	Payload    map[string]interface{} `json:"payload"`
	OccurredAt *time.Time             `json:"occurredAt,omitempty"`
}

// IngestEvent handles a business event from the DMS backend
// @Summary Ingest event
// @Description Evaluate notification rules for a business event and dispatch notifications. Returns the dispatch report.
// @Tags Events
// @Accept json
// @Produce json
// @Param request body ingestEventRequest true "Event data"
// @Success 200 {object} models.APIResponse{data=models.DispatchReport}
// @Failure 400 {object} models.APIResponse
// @Router /events [post]
func (ec *EventController) IngestEvent(c *gin.Context) {
	var req ingestEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid event body")
		return
	}

	event := &models.Event{
		Type:    req.Type,
		Payload: req.Payload,
	}
	if req.OccurredAt != nil {
		event.OccurredAt = *req.OccurredAt
	} else {
		event.OccurredAt = time.Now()
	}

	report, err := ec.engine.HandleEvent(c.Request.Context(), event)
	if err != nil {
		logrus.Errorf("Event handling failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Event processed", report)
}
