package mapping

import "strings"

// NormalizePhone reduces a Russian phone number to its canonical digit form
// (11 digits starting with 7). Inputs it cannot interpret are returned as-is.
//
//	+7 (987) 672-60-10 -> 79876726010
//	8 (987) 672-60-10  -> 79876726010
//	9876726010         -> 79876726010
func NormalizePhone(phone string) string {
	if phone == "" {
		return phone
	}

	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return phone
	}

	if strings.HasPrefix(digits, "8") && len(digits) == 11 {
		digits = "7" + digits[1:]
	}
	if !strings.HasPrefix(digits, "7") && len(digits) == 10 {
		digits = "7" + digits
	}
	return digits
}
