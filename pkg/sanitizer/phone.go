package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	KenyaRegion      = "KE"
	KenyaCountryCode = "254"
)

// NormalizePhone converts a Kenyan phone number to 254XXXXXXXXX. Spaces and
// any character other than digits and '+' are dropped first, so "0712 345
// 678", "712345678", "+254712345678" and "254712345678" all normalize to
// "254712345678".
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	switch {
	case cleaned == "":
		return ""
	case strings.HasPrefix(cleaned, KenyaCountryCode):
		return cleaned
	case strings.HasPrefix(cleaned, "+"+KenyaCountryCode):
		return cleaned[1:]
	case strings.HasPrefix(cleaned, "0"):
		return KenyaCountryCode + cleaned[1:]
	}
	return KenyaCountryCode + strings.TrimPrefix(cleaned, "+")
}

// IsValidPhone reports whether the number, once normalized, is a possible
// Kenyan number.
func IsValidPhone(phone string) bool {
	normalized := NormalizePhone(phone)
	if len(normalized) != len(KenyaCountryCode)+9 {
		return false
	}
	parsed, err := phonenumbers.Parse("+"+normalized, KenyaRegion)
	if err != nil {
		return false
	}
	return phonenumbers.IsPossibleNumber(parsed) &&
		phonenumbers.GetRegionCodeForCountryCode(int(parsed.GetCountryCode())) == KenyaRegion
}

// FormatE164 returns the +254 form used in outbound emails.
func FormatE164(phone string) string {
	normalized := NormalizePhone(phone)
	parsed, err := phonenumbers.Parse("+"+normalized, KenyaRegion)
	if err != nil {
		return normalized
	}
	return phonenumbers.Format(parsed, phonenumbers.E164)
}
