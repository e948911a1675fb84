package util

import "strings"

const identityDigits = 13

// NormalizeIdentityNumber renders a national identity number as NNNNN-NNNNNNN-N.
// Values that do not decode to 13 digits come back as bare digits.
func NormalizeIdentityNumber(raw string) *string {
	s := CleanCell(raw)
	if s == "" {
		return nil
	}
	digits := DigitsOnly(RepairScientific(s))
	if digits == "" {
		return nil
	}
	if len(digits) != identityDigits {
		return &digits
	}
	out := strings.Join([]string{digits[:5], digits[5:12], digits[12:]}, "-")
	return &out
}

// NormalizePhone returns the local trunk form (0XXXXXXXXXX) where it can be recovered.
func NormalizePhone(raw string) *string {
	s := CleanCell(raw)
	if s == "" {
		return nil
	}
	digits := DigitsOnly(RepairScientific(s))
	if digits == "" {
		return &s
	}
	if strings.HasPrefix(digits, "92") && len(digits) > 10 {
		digits = digits[2:]
	}
	if len(digits) == 10 && !strings.HasPrefix(digits, "0") {
		digits = "0" + digits
	}
	return &digits
}
