package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeLength is the fixed length of generated verification codes.
const CodeLength = 6

var codeSpan = big.NewInt(900000)

// GenerateCode returns a uniformly random six-digit code in
// [100000, 999999]. Keeping the first digit nonzero matches what the
// SMS template and client keypads expect.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}

// validCodeShape checks the submitted code's shape before any provider
// round trip.
func validCodeShape(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
