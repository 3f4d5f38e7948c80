package utils

import (
	"errors"
	"fmt"
	"regexp"
	"transferdesk/models"

	"github.com/go-playground/validator/v10"
)

type ValidationService struct {
	validator *validator.Validate
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func NewValidationService() *ValidationService {
	v := validator.New()

	// Register custom validators
	v.RegisterValidation("event_type", validateEventType)
	v.RegisterValidation("operator", validateOperator)
	v.RegisterValidation("condition_logic", validateConditionLogic)
	v.RegisterValidation("channel_priority", validateChannelPriority)
	v.RegisterValidation("role", validateRole)
	v.RegisterValidation("phone", validatePhone)

	return &ValidationService{
		validator: v,
	}
}

func (vs *ValidationService) ValidateStruct(s interface{}) []ValidationError {
	var validationErrors []ValidationError

	err := vs.validator.Struct(s)
	if err != nil {
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, ValidationError{
				Field:   err.Field(),
				Tag:     err.Tag(),
				Value:   fmt.Sprintf("%v", err.Value()),
				Message: vs.getErrorMessage(err),
			})
		}
	}

	return validationErrors
}

// ValidateRuleConfig performs the semantic checks struct tags cannot
// express. This is the configuration-error gate: unknown condition fields,
// bad roles, and broken channel bindings are rejected here at save time so
// the runtime evaluator never sees them.
func (vs *ValidationService) ValidateRuleConfig(rule *models.NotificationRule) []ValidationError {
	var errs []ValidationError

	if !rule.Event.IsValid() {
		errs = append(errs, ValidationError{
			Field:   "event",
			Tag:     "event_type",
			Value:   string(rule.Event),
			Message: fmt.Sprintf("unknown event type %q", rule.Event),
		})
		return errs
	}

	if len(rule.Conditions) > 0 && !rule.ConditionLogic.IsValid() {
		errs = append(errs, ValidationError{
			Field:   "conditionLogic",
			Tag:     "condition_logic",
			Value:   string(rule.ConditionLogic),
			Message: "conditionLogic must be AND or OR when conditions are present",
		})
	}

	for i, cond := range rule.Conditions {
		if !cond.Operator.IsValid() {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("conditions[%d].operator", i),
				Tag:     "operator",
				Value:   string(cond.Operator),
				Message: fmt.Sprintf("unknown operator %q", cond.Operator),
			})
		}
		if !models.KnownField(rule.Event, cond.Field, rule.Recipients.UseConditions) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("conditions[%d].field", i),
				Tag:     "field",
				Value:   cond.Field,
				Message: fmt.Sprintf("field %q is not available for event type %q", cond.Field, rule.Event),
			})
		}
	}

	errs = append(errs, vs.validateRecipientConfig(&rule.Recipients)...)
	errs = append(errs, vs.validateChannelSettings(rule)...)

	return errs
}

func (vs *ValidationService) validateRecipientConfig(rc *models.RecipientConfig) []ValidationError {
	var errs []ValidationError

	buckets := map[string][]models.Role{
		"currentLocation":     rc.CurrentLocation,
		"requestingLocation":  rc.RequestingLocation,
		"destinationLocation": rc.DestinationLocation,
	}
	for bucket, roles := range buckets {
		for _, role := range roles {
			if !role.IsValid() {
				errs = append(errs, ValidationError{
					Field:   bucket,
					Tag:     "role",
					Value:   string(role),
					Message: fmt.Sprintf("unknown role %q", role),
				})
			}
		}
	}

	for i, email := range rc.AdditionalEmails {
		if err := ValidateEmail(email); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("additionalEmails[%d]", i),
				Tag:     "email",
				Value:   email,
				Message: "invalid email address",
			})
		}
	}

	for i, phone := range rc.AdditionalPhones {
		if _, err := NormalizePhone(phone, ""); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("additionalPhones[%d]", i),
				Tag:     "phone",
				Value:   phone,
				Message: "invalid phone number",
			})
		}
	}

	return errs
}

func (vs *ValidationService) validateChannelSettings(rule *models.NotificationRule) []ValidationError {
	var errs []ValidationError

	if rule.Channels.Priority != "" && !rule.Channels.Priority.IsValid() {
		errs = append(errs, ValidationError{
			Field:   "channels.priority",
			Tag:     "channel_priority",
			Value:   string(rule.Channels.Priority),
			Message: "channel priority must be email_first, sms_first, or both",
		})
	}

	// Activation invariants: an active rule needs at least one enabled
	// channel, and every enabled channel a template binding.
	if rule.Active {
		if !rule.Channels.Email.Enabled && !rule.Channels.SMS.Enabled {
			errs = append(errs, ValidationError{
				Field:   "channels",
				Tag:     "required",
				Message: "an active rule must have at least one enabled channel",
			})
		}
	}
	if rule.Channels.Email.Enabled && rule.Channels.Email.TemplateID == "" {
		errs = append(errs, ValidationError{
			Field:   "channels.email.templateId",
			Tag:     "required",
			Message: "enabled email channel must reference a template",
		})
	}
	if rule.Channels.SMS.Enabled && rule.Channels.SMS.TemplateID == "" {
		errs = append(errs, ValidationError{
			Field:   "channels.sms.templateId",
			Tag:     "required",
			Message: "enabled sms channel must reference a template",
		})
	}

	return errs
}

func (vs *ValidationService) getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Invalid email format"
	case "phone":
		return "Invalid phone number format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	case "event_type":
		return "Invalid event type"
	case "operator":
		return "Invalid condition operator"
	case "condition_logic":
		return "Condition logic must be AND or OR"
	case "channel_priority":
		return "Invalid channel priority"
	case "role":
		return "Invalid role"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// Custom validation functions
func validateEventType(fl validator.FieldLevel) bool {
	return models.EventType(fl.Field().String()).IsValid()
}

func validateOperator(fl validator.FieldLevel) bool {
	return models.Operator(fl.Field().String()).IsValid()
}

func validateConditionLogic(fl validator.FieldLevel) bool {
	return models.ConditionLogic(fl.Field().String()).IsValid()
}

func validateChannelPriority(fl validator.FieldLevel) bool {
	return models.ChannelPriority(fl.Field().String()).IsValid()
}

func validateRole(fl validator.FieldLevel) bool {
	return models.Role(fl.Field().String()).IsValid()
}

func validatePhone(fl validator.FieldLevel) bool {
	phone := fl.Field().String()
	cleaned := regexp.MustCompile(`\D`).ReplaceAllString(phone, "")

	if len(cleaned) < 10 || len(cleaned) > 15 {
		return false
	}

	phoneRegex := regexp.MustCompile(`^\+?[1-9]\d{9,14}$`)
	return phoneRegex.MatchString(phone)
}

// Additional validation helpers
func ValidateEmail(email string) error {
	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	if !emailRegex.MatchString(email) {
		return errors.New("invalid email format")
	}
	return nil
}
