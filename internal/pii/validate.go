package pii

import "strings"

// digitsOnly strips every non-digit byte from s.
func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// luhnValid reports whether a digits-only string passes the Luhn checksum:
// from the rightmost digit, every second digit is doubled and reduced by 9
// when the doubled value exceeds 9, and the total must divide by 10.
func luhnValid(digits string) bool {
	if digits == "" {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	return sum%10 == 0
}

// validCardNumber accepts a card-shaped span only when its digits form a
// plausible account number: 13-19 digits and a passing Luhn checksum.
func validCardNumber(value string) bool {
	digits := digitsOnly(value)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	return luhnValid(digits)
}

// validSSN applies the SSA issuance rules: area 000, 666, and 900-999 are
// never issued, nor are group 00 and serial 0000.
func validSSN(value string) bool {
	digits := digitsOnly(value)
	if len(digits) != 9 {
		return false
	}

	area := digits[:3]
	group := digits[3:5]
	serial := digits[5:]

	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	if group == "00" {
		return false
	}
	if serial == "0000" {
		return false
	}

	return true
}

// validPhone requires at least 10 digits once separators are stripped.
func validPhone(value string) bool {
	return len(digitsOnly(value)) >= 10
}
