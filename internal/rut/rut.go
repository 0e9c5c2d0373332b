// Package rut normalizes and checksum-validates Chilean RUT identity numbers.
package rut

import (
	"errors"
	"strings"
)

var (
	// ErrMalformed reports input that cannot be reduced to a body and a check character.
	ErrMalformed = errors.New("rut: malformed")
	// ErrShape reports a normalized RUT outside the 7-8 digit body format.
	ErrShape = errors.New("rut: invalid shape")
	// ErrChecksumMismatch reports a check character that does not match the body.
	ErrChecksumMismatch = errors.New("rut: checksum mismatch")
)

// RUT is a normalized, checksum-verified identity number.
type RUT struct {
	body  string
	check byte
}

// Parse normalizes raw and applies the shape and checksum gates in order.
func Parse(raw string) (RUT, error) {
	normalized, ok := Normalize(raw)
	if !ok {
		return RUT{}, ErrMalformed
	}
	if !ValidShape(normalized) {
		return RUT{}, ErrShape
	}
	if !Validate(normalized) {
		return RUT{}, ErrChecksumMismatch
	}
	return RUT{body: normalized[:len(normalized)-1], check: normalized[len(normalized)-1]}, nil
}

// Body returns the digit sequence without the check character.
func (r RUT) Body() string { return r.body }

// Check returns the verification character ('0'-'9' or 'K').
func (r RUT) Check() byte { return r.check }

// String returns the canonical form: body followed by the check character.
func (r RUT) String() string {
	if r.body == "" {
		return ""
	}
	return r.body + string(r.check)
}

// Dashed returns the storage form body-check, e.g. 12345678-5.
func (r RUT) Dashed() string {
	if r.body == "" {
		return ""
	}
	return r.body + "-" + string(r.check)
}

// Format renders the RUT with thousands separators, e.g. 12.345.678-5.
func (r RUT) Format() string {
	if r.body == "" {
		return ""
	}
	var b strings.Builder
	lead := len(r.body) % 3
	if lead > 0 {
		b.WriteString(r.body[:lead])
	}
	for i := lead; i < len(r.body); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(r.body[i : i+3])
	}
	b.WriteByte('-')
	b.WriteByte(r.check)
	return b.String()
}

// Normalize strips everything except digits and K, upper-cases the result and
// returns body+check. It reports false when fewer than two characters remain or
// the body contains a non-digit.
func Normalize(raw string) (string, bool) {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case isDigit(c), c == 'K':
			b.WriteByte(c)
		case c == 'k':
			b.WriteByte('K')
		}
	}
	cleaned := b.String()
	if len(cleaned) < 2 {
		return "", false
	}
	if !allDigits(cleaned[:len(cleaned)-1]) {
		return "", false
	}
	return cleaned, true
}

// ComputeCheckDigit returns the modulo-11 verification character for body.
// Weights cycle 2..7 starting from the rightmost digit.
func ComputeCheckDigit(body string) (byte, bool) {
	if body == "" || !allDigits(body) {
		return 0, false
	}
	sum, weight := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}
	switch candidate := 11 - sum%11; candidate {
	case 11:
		return '0', true
	case 10:
		return 'K', true
	default:
		return byte('0' + candidate), true
	}
}

// Validate reports whether the last character of normalized is the check digit
// of the preceding body. Lower-case k is accepted.
func Validate(normalized string) bool {
	if len(normalized) < 2 {
		return false
	}
	body := normalized[:len(normalized)-1]
	check := upper(normalized[len(normalized)-1])
	if !allDigits(body) || !(isDigit(check) || check == 'K') {
		return false
	}
	expected, ok := ComputeCheckDigit(body)
	return ok && expected == check
}

// ValidShape reports whether normalized matches ^\d{7,8}[\dK]$ (K in either case).
func ValidShape(normalized string) bool {
	n := len(normalized)
	if n < 8 || n > 9 {
		return false
	}
	check := upper(normalized[n-1])
	return allDigits(normalized[:n-1]) && (isDigit(check) || check == 'K')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func upper(c byte) byte {
	if c == 'k' {
		return 'K'
	}
	return c
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
