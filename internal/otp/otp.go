// Package otp generates numeric one-time codes for the OTP fallback flow.
package otp

import (
	"crypto/rand"
	"fmt"
)

// CodeLength is the number of digits in a generated code.
const CodeLength = 6

// GenerateCode returns a numeric one-time code (e.g. "482913") drawn from
// crypto/rand. Rejection sampling keeps each digit uniform.
func GenerateCode() (string, error) {
	digits := make([]byte, 0, CodeLength)
	buf := make([]byte, 1)
	for len(digits) < CodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("otp: %w", err)
		}
		// Reject values that would bias the modulo.
		if buf[0] >= 250 {
			continue
		}
		digits = append(digits, '0'+buf[0]%10)
	}
	return string(digits), nil
}
