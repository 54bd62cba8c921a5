// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package credential

import (
	"unicode/utf16"
	"unicode/utf8"

	"github.com/samber/oops"
)

// Password policy parameters.
const (
	// MinPasswordLength is measured in UTF-16 code units, so a character
	// outside the Basic Multilingual Plane counts as two.
	MinPasswordLength = 8
	// MaxAscendingPairs is the number of ascending-by-one digit pairs at
	// which a password is rejected.
	MaxAscendingPairs = 3
)

// Policy rule names reported by CheckPassword.
const (
	RuleTooShort        = "too_short"
	RuleNoAlphanumeric  = "no_alphanumeric"
	RuleAscendingDigits = "ascending_digits"
)

// ValidatePassword reports whether password satisfies the acceptance policy.
func ValidatePassword(password string) bool {
	return violatedRule(password) == ""
}

// CheckPassword returns nil when password is acceptable, otherwise a
// validation error whose "rule" context names the first failing rule.
func CheckPassword(password string) error {
	rule := violatedRule(password)
	if rule == "" {
		return nil
	}
	return oops.Code(CodePolicyViolation).With("rule", rule).Wrap(ErrValidation)
}

func violatedRule(password string) string {
	if passwordLength(password) < MinPasswordLength {
		return RuleTooShort
	}
	if !hasAlphanumeric(password) {
		return RuleNoAlphanumeric
	}
	if countAscendingPairs(password) >= MaxAscendingPairs {
		return RuleAscendingDigits
	}
	return ""
}

func passwordLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// hasAlphanumeric reports whether an ASCII letter or digit appears before
// the first line terminator.
func hasAlphanumeric(s string) bool {
	for _, r := range s {
		switch {
		case isLineTerminator(r):
			return false
		case r < utf8.RuneSelf && ((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || isDigit(byte(r))):
			return true
		}
	}
	return false
}

func isLineTerminator(r rune) bool {
	return r == '\n' || r == '\r' || r == '\u2028' || r == '\u2029'
}

// countAscendingPairs counts adjacent digit pairs where the second digit is
// exactly one greater than the first. Pairs involving a non-digit never
// count, and the pairs need not be contiguous.
func countAscendingPairs(s string) int {
	runes := []rune(s)
	count := 0
	for i := 0; i+1 < len(runes); i++ {
		cur, next := runes[i], runes[i+1]
		if cur >= utf8.RuneSelf || next >= utf8.RuneSelf {
			continue
		}
		if !isDigit(byte(cur)) || !isDigit(byte(next)) {
			continue
		}
		if next-cur == 1 {
			count++
		}
	}
	return count
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
