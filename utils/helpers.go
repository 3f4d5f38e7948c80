package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID returns a new random UUID string.
func GenerateUUID() string {
	return uuid.New().String()
}

// NormalizeEmail canonicalizes an email address for deduplication:
// addresses differing only by case or surrounding whitespace are the same
// recipient.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone converts a phone number to E.164. Formatting characters are
// stripped; numbers without a country code get the default country code
// ("1" when defaultCountryCode is empty). Returns an error when the digits
// don't form a plausible number.
func NormalizePhone(phone, defaultCountryCode string) (string, error) {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return "", fmt.Errorf("phone number cannot be empty")
	}

	hasPlus := strings.HasPrefix(trimmed, "+")

	var digits strings.Builder
	for _, ch := range trimmed {
		if ch >= '0' && ch <= '9' {
			digits.WriteRune(ch)
		}
	}
	number := digits.String()

	if !hasPlus {
		if defaultCountryCode == "" {
			defaultCountryCode = "1"
		}
		// 10-digit national numbers get the default country code; longer
		// numbers are assumed to already carry one.
		if len(number) == 10 {
			number = defaultCountryCode + number
		}
	}

	if len(number) < 10 || len(number) > 15 {
		return "", fmt.Errorf("invalid phone number length: %d digits", len(number))
	}
	if number[0] == '0' {
		return "", fmt.Errorf("phone number cannot start with 0 in E.164")
	}

	return "+" + number, nil
}

// TruncateForSMS bounds a message to a single SMS segment, keeping room for
// an ellipsis when cut.
func TruncateForSMS(message string, limit int) string {
	if limit <= 0 {
		limit = 160
	}
	if len(message) <= limit {
		return message
	}
	if limit <= 3 {
		return message[:limit]
	}
	return message[:limit-3] + "..."
}
