package users

import "strings"

// NormalizePhone returns the 0-prefixed national form of an Algerian number.
// Mobiles are 0[567] followed by eight digits, fixed lines 0[234] followed by
// seven.
func NormalizePhone(s string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '.', r == '-', r == '(', r == ')':
		case r == '+' && i == 0:
		default:
			return "", ErrInvalidPhone
		}
	}
	d := b.String()
	switch {
	case strings.HasPrefix(d, "00213"):
		d = "0" + d[5:]
	case strings.HasPrefix(d, "213") && len(d) > 10:
		d = "0" + d[3:]
	case !strings.HasPrefix(d, "0"):
		return "", ErrInvalidPhone
	}

	if len(d) < 2 {
		return "", ErrInvalidPhone
	}
	switch d[1] {
	case '5', '6', '7':
		if len(d) == 10 {
			return d, nil
		}
	case '2', '3', '4':
		if len(d) == 9 {
			return d, nil
		}
	}
	return "", ErrInvalidPhone
}
