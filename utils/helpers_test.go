package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "dana@example.com", NormalizeEmail("  Dana@Example.COM "))
	assert.Equal(t, "dana@example.com", NormalizeEmail("dana@example.com"))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"ten digit gets default country code", "5550100302", "+15550100302", false},
		{"formatting stripped", "(555) 010-0302", "+15550100302", false},
		{"dots and dashes stripped", "555.010.0302", "+15550100302", false},
		{"plus prefix kept as-is", "+445550100302", "+445550100302", false},
		{"eleven digits assumed to carry country code", "15550100302", "+15550100302", false},
		{"empty", "", "", true},
		{"too short", "555-0302", "", true},
		{"too long", "+12345678901234567", "", true},
		{"leading zero rejected", "05550100302", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.input, "1")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizePhone_EmptyDefaultCountryCode(t *testing.T) {
	got, err := NormalizePhone("5550100302", "")
	assert.NoError(t, err)
	assert.Equal(t, "+15550100302", got)
}

func TestTruncateForSMS(t *testing.T) {
	assert.Equal(t, "short message", TruncateForSMS("short message", 160))

	long := strings.Repeat("a", 200)
	got := TruncateForSMS(long, 160)
	assert.Len(t, got, 160)
	assert.True(t, strings.HasSuffix(got, "..."))

	// Zero limit falls back to a single segment.
	assert.Len(t, TruncateForSMS(long, 0), 160)
}
