package policy

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`(?:\+?\d[\d()\-\s.]{7,}\d)`)
	ibanPattern  = regexp.MustCompile(`\b[A-Z]{2}\d{2}(?:\s?[A-Z0-9]{4}){3,7}(?:\s?[A-Z0-9]{1,3})?\b`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)
)

// MaskPIIString redacts emails, phone numbers, IBANs and card numbers in free text.
func MaskPIIString(value string) string {
	masked := emailPattern.ReplaceAllStringFunc(value, func(_ string) string {
		return "[email_redacted]"
	})
	masked = ibanPattern.ReplaceAllStringFunc(masked, func(_ string) string {
		return "[iban_redacted]"
	})
	masked = cardPattern.ReplaceAllStringFunc(masked, maskCardNumber)
	masked = phonePattern.ReplaceAllStringFunc(masked, func(_ string) string {
		return "[phone_redacted]"
	})
	return masked
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(address string) string {
	address = strings.TrimSpace(address)
	at := strings.LastIndex(address, "@")
	if at <= 0 {
		return "[email_redacted]"
	}
	local := []rune(address[:at])
	return string(local[0]) + "***" + address[at:]
}

// MaskPhone keeps the last four digits.
func MaskPhone(number string) string {
	digits := make([]rune, 0, len(number))
	for _, char := range number {
		if char >= '0' && char <= '9' {
			digits = append(digits, char)
		}
	}
	if len(digits) <= 4 {
		return "[phone_redacted]"
	}
	return strings.Repeat("*", len(digits)-4) + string(digits[len(digits)-4:])
}

func maskCardNumber(value string) string {
	digits := make([]rune, 0, len(value))
	for _, char := range value {
		if char >= '0' && char <= '9' {
			digits = append(digits, char)
		}
	}
	if len(digits) < 8 {
		return "[card_redacted]"
	}

	last4 := string(digits[len(digits)-4:])
	return "**** **** **** " + last4
}
