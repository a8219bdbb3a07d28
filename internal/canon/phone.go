package canon

import "strings"

const (
	minE164Digits = 8
	maxE164Digits = 15
)

// NormalizePhoneE164 converts a raw phone number into E.164 using country as
// the dialing context. It returns nil when the input cannot be normalized;
// callers never receive a partially normalized number.
//
// Rules:
//   - "+<digits>": kept as international; a trunk 0 right after the
//     country's own dialing code is dropped.
//   - "00<digits>": the 00 international prefix is replaced by "+", then as above.
//   - otherwise local: a leading dialing code gets "+", a trunk 0 is replaced
//     by "+<code>", anything else is prefixed with "+<code>".
func NormalizePhoneE164(raw, country string) *string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	digits, ok := phoneDigits(s)
	if !ok || digits == "" {
		return nil
	}
	code, known := DialingCode(country)

	var out string
	switch {
	case strings.HasPrefix(s, "+"):
		out = dropTrunkAfterCode(digits, code, known)
	case strings.HasPrefix(digits, "00"):
		out = dropTrunkAfterCode(digits[2:], code, known)
	default:
		if !known {
			return nil
		}
		switch {
		case strings.HasPrefix(digits, code):
			out = digits
		case strings.HasPrefix(digits, "0"):
			out = code + digits[1:]
		default:
			out = code + digits
		}
	}

	if len(out) < minE164Digits || len(out) > maxE164Digits {
		return nil
	}
	e164 := "+" + out
	return &e164
}

// phoneDigits strips the separators people type into phone numbers. Any other
// character (letters, extensions) makes the number unusable.
func phoneDigits(s string) (string, bool) {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ', r == '-', r == '.', r == '(', r == ')', r == '/', r == '\t':
		default:
			return "", false
		}
	}
	return b.String(), true
}

func dropTrunkAfterCode(digits, code string, known bool) string {
	if known && strings.HasPrefix(digits, code+"0") {
		return code + digits[len(code)+1:]
	}
	return digits
}
