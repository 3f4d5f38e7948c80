package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"transferdesk/models"
	"transferdesk/repositories"
	"transferdesk/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
)

// RuleService owns notification rule configuration. All semantic checks
// happen here at save time: a rule that reaches the database is one the
// engine can evaluate without configuration surprises.
type RuleService struct {
	ruleRepo     *repositories.RuleRepository
	templateRepo *repositories.TemplateRepository
	engine       *RuleEngine
	validator    *utils.ValidationService
}

func NewRuleService(
	ruleRepo *repositories.RuleRepository,
	templateRepo *repositories.TemplateRepository,
	engine *RuleEngine,
) *RuleService {
	return &RuleService{
		ruleRepo:     ruleRepo,
		templateRepo: templateRepo,
		engine:       engine,
		validator:    utils.NewValidationService(),
	}
}

func (rs *RuleService) CreateRule(ctx context.Context, req models.CreateRuleRequest) (*models.NotificationRule, error) {
	if validationErrors := rs.validator.ValidateStruct(req); len(validationErrors) > 0 {
		return nil, utils.NewServiceErrorWithDetails(models.ErrCodeValidation,
			"rule validation failed", formatValidationErrors(validationErrors))
	}

	rule := &models.NotificationRule{
		Name:           req.Name,
		Description:    req.Description,
		Active:         req.Active,
		Event:          req.Event,
		Conditions:     req.Conditions,
		ConditionLogic: req.ConditionLogic,
		Recipients:     req.Recipients,
		Channels:       req.Channels,
	}
	applyRuleDefaults(rule)

	if err := rs.checkRuleConfig(ctx, rule); err != nil {
		return nil, err
	}

	if err := rs.ruleRepo.Create(ctx, rule); err != nil {
		return nil, utils.NewServiceErrorWithCause(models.ErrCodeInternal, "failed to create rule", err)
	}

	logrus.Infof("Rule created: %s (%s, event=%s, active=%v)", rule.Name, rule.ID.Hex(), rule.Event, rule.Active)
	return rule, nil
}

func (rs *RuleService) GetRule(ctx context.Context, id string) (*models.NotificationRule, error) {
	rule, err := rs.ruleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, utils.NewServiceErrorWithStatus(models.ErrCodeNotFound, "rule not found", http.StatusNotFound)
	}
	return rule, nil
}

func (rs *RuleService) GetRules(ctx context.Context, req models.GetRulesRequest) ([]models.NotificationRule, int64, error) {
	return rs.ruleRepo.GetRules(ctx, req)
}

func (rs *RuleService) UpdateRule(ctx context.Context, id string, req models.UpdateRuleRequest) (*models.NotificationRule, error) {
	if validationErrors := rs.validator.ValidateStruct(req); len(validationErrors) > 0 {
		return nil, utils.NewServiceErrorWithDetails(models.ErrCodeValidation,
			"rule validation failed", formatValidationErrors(validationErrors))
	}

	rule, err := rs.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	update := bson.M{}
	if req.Name != nil {
		rule.Name = *req.Name
		update["name"] = *req.Name
	}
	if req.Description != nil {
		rule.Description = *req.Description
		update["description"] = *req.Description
	}
	if req.Active != nil {
		rule.Active = *req.Active
		update["active"] = *req.Active
	}
	if req.Conditions != nil {
		rule.Conditions = *req.Conditions
		update["conditions"] = *req.Conditions
	}
	if req.ConditionLogic != nil {
		rule.ConditionLogic = *req.ConditionLogic
		update["conditionLogic"] = *req.ConditionLogic
	}
	if req.Recipients != nil {
		rule.Recipients = *req.Recipients
		update["recipients"] = *req.Recipients
	}
	if req.Channels != nil {
		rule.Channels = *req.Channels
		update["channels"] = *req.Channels
	}
	if len(update) == 0 {
		return rule, nil
	}

	applyRuleDefaults(rule)
	if rule.ConditionLogic != "" {
		update["conditionLogic"] = rule.ConditionLogic
	}
	if rule.Channels.Priority != "" {
		update["channels"] = rule.Channels
	}

	// The merged rule must pass the same gate as a new one.
	if err := rs.checkRuleConfig(ctx, rule); err != nil {
		return nil, err
	}

	if err := rs.ruleRepo.Update(ctx, id, update); err != nil {
		return nil, utils.NewServiceErrorWithCause(models.ErrCodeInternal, "failed to update rule", err)
	}

	return rs.GetRule(ctx, id)
}

func (rs *RuleService) DeleteRule(ctx context.Context, id string) error {
	if _, err := rs.GetRule(ctx, id); err != nil {
		return err
	}
	if err := rs.ruleRepo.Delete(ctx, id); err != nil {
		return utils.NewServiceErrorWithCause(models.ErrCodeInternal, "failed to delete rule", err)
	}
	logrus.Infof("Rule deleted: %s", id)
	return nil
}

// SetRuleActive flips a rule's active flag. Activation re-runs the full
// configuration gate so a rule edited while inactive cannot go live broken.
func (rs *RuleService) SetRuleActive(ctx context.Context, id string, active bool) (*models.NotificationRule, error) {
	rule, err := rs.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	if active {
		rule.Active = true
		if err := rs.checkRuleConfig(ctx, rule); err != nil {
			return nil, err
		}
	}

	if err := rs.ruleRepo.SetActive(ctx, id, active); err != nil {
		return nil, utils.NewServiceErrorWithCause(models.ErrCodeInternal, "failed to update rule", err)
	}

	return rs.GetRule(ctx, id)
}

// TestRule runs the dry-run harness against a stored rule.
func (rs *RuleService) TestRule(ctx context.Context, id string, req models.TestRuleRequest) (*models.TestRuleResult, error) {
	rule, err := rs.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	return rs.engine.TestRule(ctx, rule, &req.Event)
}

func (rs *RuleService) GetRuleStats(ctx context.Context) (*models.RuleStats, error) {
	return rs.ruleRepo.GetRuleStats(ctx)
}

// checkRuleConfig runs the semantic gate plus the checks that need the
// database: template bindings must point at existing, active templates with
// content for the bound channel.
func (rs *RuleService) checkRuleConfig(ctx context.Context, rule *models.NotificationRule) error {
	if validationErrors := rs.validator.ValidateRuleConfig(rule); len(validationErrors) > 0 {
		return utils.NewServiceErrorWithDetails(models.ErrCodeConfiguration,
			"rule configuration is invalid", formatValidationErrors(validationErrors))
	}

	for _, ch := range rule.EnabledChannels() {
		templateID := rule.Channels.Config(ch).TemplateID
		template, err := rs.templateRepo.GetByID(ctx, templateID)
		if err != nil {
			return utils.NewServiceErrorWithDetails(models.ErrCodeConfiguration,
				"rule configuration is invalid",
				fmt.Sprintf("%s channel references unknown template %s", ch, templateID))
		}
		if !template.HasChannel(ch) {
			return utils.NewServiceErrorWithDetails(models.ErrCodeConfiguration,
				"rule configuration is invalid",
				fmt.Sprintf("template %s has no %s content", templateID, ch))
		}
		if rule.Active && !template.Active {
			return utils.NewServiceErrorWithDetails(models.ErrCodeConfiguration,
				"rule configuration is invalid",
				fmt.Sprintf("active rule references inactive template %s", templateID))
		}
	}

	return nil
}

func applyRuleDefaults(rule *models.NotificationRule) {
	if len(rule.Conditions) > 0 && rule.ConditionLogic == "" {
		rule.ConditionLogic = models.ConditionLogicAnd
	}
	if rule.Channels.Priority == "" {
		rule.Channels.Priority = models.ChannelPriorityBoth
	}
}

func formatValidationErrors(errs []utils.ValidationError) string {
	parts := make([]string, 0, len(errs))
	for _, ve := range errs {
		parts = append(parts, fmt.Sprintf("%s: %s", ve.Field, ve.Message))
	}
	return strings.Join(parts, "; ")
}
