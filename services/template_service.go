package services

import (
	"context"
	"fmt"
	"net/http"
	"transferdesk/models"
	"transferdesk/repositories"
	"transferdesk/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
)

// TemplateService owns notification template configuration.
type TemplateService struct {
	templateRepo *repositories.TemplateRepository
	validator    *utils.ValidationService
}

func NewTemplateService(templateRepo *repositories.TemplateRepository) *TemplateService {
	return &TemplateService{
		templateRepo: templateRepo,
		validator:    utils.NewValidationService(),
	}
}

func (ts *TemplateService) CreateTemplate(ctx context.Context, req models.CreateTemplateRequest) (*models.NotificationTemplate, error) {
	if validationErrors := ts.validator.ValidateStruct(req); len(validationErrors) > 0 {
		return nil, utils.NewServiceErrorWithDetails(models.ErrCodeValidation,
			"template validation failed", formatValidationErrors(validationErrors))
	}

	template := &models.NotificationTemplate{
		Name:   req.Name,
		Active: req.Active,
		Email:  req.Email,
		SMS:    req.SMS,
	}

	if err := validateTemplateContent(template); err != nil {
		return nil, err
	}

	if err := ts.templateRepo.Create(ctx, template); err != nil {
		return nil, utils.NewServiceErrorWithCause(models.ErrCodeInternal, "failed to create template", err)
	}

	logrus.Infof("Template created: %s (%s)", template.Name, template.ID.Hex())
	return template, nil
}

func (ts *TemplateService) GetTemplate(ctx context.Context, id string) (*models.NotificationTemplate, error) {
	template, err := ts.templateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, utils.NewServiceErrorWithStatus(models.ErrCodeNotFound, "template not found", http.StatusNotFound)
	}
	return template, nil
}

func (ts *TemplateService) GetTemplates(ctx context.Context, req models.GetTemplatesRequest) ([]models.NotificationTemplate, int64, error) {
	return ts.templateRepo.GetTemplates(ctx, req)
}

func (ts *TemplateService) UpdateTemplate(ctx context.Context, id string, req models.UpdateTemplateRequest) (*models.NotificationTemplate, error) {
	if validationErrors := ts.validator.ValidateStruct(req); len(validationErrors) > 0 {
		return nil, utils.NewServiceErrorWithDetails(models.ErrCodeValidation,
			"template validation failed", formatValidationErrors(validationErrors))
	}

	template, err := ts.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}

	update := bson.M{}
	if req.Name != nil {
		template.Name = *req.Name
		update["name"] = *req.Name
	}
	if req.Active != nil {
		template.Active = *req.Active
		update["active"] = *req.Active
	}
	if req.Email != nil {
		template.Email = req.Email
		update["email"] = req.Email
	}
	if req.SMS != nil {
		template.SMS = req.SMS
		update["sms"] = req.SMS
	}
	if len(update) == 0 {
		return template, nil
	}

	if err := validateTemplateContent(template); err != nil {
		return nil, err
	}

	if err := ts.templateRepo.Update(ctx, id, update); err != nil {
		return nil, utils.NewServiceErrorWithCause(models.ErrCodeInternal, "failed to update template", err)
	}

	return ts.GetTemplate(ctx, id)
}

// DeleteTemplate soft-deletes a template unless a live rule still binds it.
func (ts *TemplateService) DeleteTemplate(ctx context.Context, id string) error {
	if _, err := ts.GetTemplate(ctx, id); err != nil {
		return err
	}

	inUse, err := ts.templateRepo.CountRulesUsing(ctx, id)
	if err != nil {
		return utils.NewServiceErrorWithCause(models.ErrCodeInternal, "failed to check template usage", err)
	}
	if inUse > 0 {
		return utils.NewServiceErrorWithStatus(models.ErrCodeConflict,
			fmt.Sprintf("template is referenced by %d rule(s)", inUse), http.StatusConflict)
	}

	if err := ts.templateRepo.Delete(ctx, id); err != nil {
		return utils.NewServiceErrorWithCause(models.ErrCodeInternal, "failed to delete template", err)
	}

	logrus.Infof("Template deleted: %s", id)
	return nil
}

// validateTemplateContent enforces channel content shape: a template must
// carry content for at least one channel, email content needs both subject
// and body, sms content a body.
func validateTemplateContent(template *models.NotificationTemplate) error {
	if template.Email == nil && template.SMS == nil {
		return utils.NewServiceErrorWithDetails(models.ErrCodeConfiguration,
			"template configuration is invalid", "template must define email or sms content")
	}
	if template.Email != nil && (template.Email.Subject == "" || template.Email.Body == "") {
		return utils.NewServiceErrorWithDetails(models.ErrCodeConfiguration,
			"template configuration is invalid", "email content requires subject and body")
	}
	if template.SMS != nil && template.SMS.Body == "" {
		return utils.NewServiceErrorWithDetails(models.ErrCodeConfiguration,
			"template configuration is invalid", "sms content requires a body")
	}
	return nil
}
