package utils

import (
	"strings"
)

// NormalizePhone turns a raw phone string into a digits-only destination
// number. Separators and a leading + are stripped; a local Egyptian number
// (trunk prefix 0) gets the country code 20 prepended. Best-effort for the
// Egyptian numbering plan only; other locales pass through as bare digits.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if strings.HasPrefix(digits, "0") && !strings.HasPrefix(digits, "20") {
		digits = "2" + digits
	}
	return digits
}
