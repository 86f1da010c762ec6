// Package masking redacts tenant contact data before it reaches logs.
package masking

import (
	"strings"
	"unicode"
)

const maskToken = "****"

// MaskIdentifier redacts an opaque id while keeping a minimal suffix for tracing.
func MaskIdentifier(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := splitPrefix(trimmed)
	if len(remainder) <= 4 {
		return prefix + maskToken
	}

	return prefix + maskToken + remainder[len(remainder)-4:]
}

// MaskPhone keeps the carrier prefix and the last four digits: 010****5678.
func MaskPhone(value string) string {
	digits := DigitsOnly(value)
	if digits == "" {
		return ""
	}
	if len(digits) <= 7 {
		return maskToken
	}
	return digits[:3] + maskToken + digits[len(digits)-4:]
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(value string) string {
	trimmed := strings.TrimSpace(value)
	at := strings.LastIndex(trimmed, "@")
	if at <= 0 {
		return MaskIdentifier(trimmed)
	}
	return trimmed[:1] + maskToken + trimmed[at:]
}

// MaskVars returns a copy of template variables with contact values masked.
func MaskVars(input map[string]string) map[string]string {
	if len(input) == 0 {
		return nil
	}

	masked := make(map[string]string, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		masked[trimmedKey] = maskValue(trimmedKey, value)
	}

	if len(masked) == 0 {
		return nil
	}
	return masked
}

// DigitsOnly strips everything but ASCII digits, so 010-1234-5678 and
// 01012345678 compare equal.
func DigitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func maskValue(key, value string) string {
	switch {
	case strings.Contains(key, "phone"):
		return MaskPhone(value)
	case strings.Contains(key, "email"):
		return MaskEmail(value)
	default:
		return value
	}
}

func splitPrefix(value string) (string, string) {
	lastUnderscore := strings.LastIndex(value, "_")
	if lastUnderscore == -1 || lastUnderscore == len(value)-1 {
		return "", value
	}
	return value[:lastUnderscore+1], value[lastUnderscore+1:]
}
