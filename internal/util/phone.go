package util

import (
	"regexp"
	"strings"
)

var nonPhone = regexp.MustCompile(`[^\d\+]+`)

// NormalizePhone turns user input into an E.164-like number. Numbers without
// an international prefix get defaultCC (e.g. "+34"); an empty defaultCC
// leaves national numbers untouched.
func NormalizePhone(raw, defaultCC string) string {
	s := nonPhone.ReplaceAllString(strings.TrimSpace(raw), "")
	cc := strings.TrimPrefix(defaultCC, "+")

	switch {
	case s == "":
		return ""
	case strings.HasPrefix(s, "+"):
		return s
	case strings.HasPrefix(s, "00"):
		return "+" + s[2:]
	case cc != "" && strings.HasPrefix(s, cc) && len(s) > len(cc)+8:
		return "+" + s
	case cc != "":
		return "+" + cc + strings.TrimPrefix(s, "0")
	}
	return s
}

// LooksLikePhone reports whether raw holds enough digits to be a phone number.
func LooksLikePhone(raw string) bool {
	digits := 0
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return digits >= 7
}
