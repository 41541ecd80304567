// Package utils provides utility functions for the application.
package utils

import (
	"fmt"
	"strings"
)

// NormalizePhone converts a raw phone number into the canonical digits-only
// international form used throughout the campaign tables, e.g.
// "+55 (11) 91234-5678" -> "5511912345678". Numbers without a country code
// are completed with defaultCountryCode.
func NormalizePhone(raw, defaultCountryCode string) (string, error) {
	var b strings.Builder
	hadPlus := strings.HasPrefix(strings.TrimSpace(raw), "+")
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	// Strip international dialing prefix
	if !hadPlus && strings.HasPrefix(digits, "00") {
		digits = digits[2:]
	}

	if len(digits) < 8 {
		return "", fmt.Errorf("phone number too short: %q", raw)
	}
	if len(digits) > 15 {
		return "", fmt.Errorf("phone number too long: %q", raw)
	}

	cc := strings.TrimPrefix(defaultCountryCode, "+")
	if !hadPlus && cc != "" && !strings.HasPrefix(digits, cc) && len(digits) <= 11 {
		digits = cc + digits
	}

	return digits, nil
}
