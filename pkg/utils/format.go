// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatUSD formats a dollar amount with thousands grouping.
func FormatUSD(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	// Format with 2 decimal places
	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")
	intPart := parts[0]
	decPart := parts[1]

	result := "$" + groupThousands(intPart) + "." + decPart
	if negative {
		result = "-" + result
	}
	return result
}

// groupThousands inserts commas into an integer string, groups of three.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	result := s[n-3:]
	s = s[:n-3]

	for len(s) > 0 {
		if len(s) >= 3 {
			result = s[len(s)-3:] + "," + result
			s = s[:len(s)-3]
		} else {
			result = s + "," + result
			s = ""
		}
	}

	return result
}

// FormatPercent formats a percentage with two decimals.
func FormatPercent(value float64) string {
	return fmt.Sprintf("%.2f%%", value)
}

// FormatSigned formats a dollar amount with an explicit sign, for P&L and
// funding figures.
func FormatSigned(amount float64) string {
	formatted := FormatUSD(amount)
	if amount > 0 {
		return "+" + formatted
	}
	return formatted
}

// FormatQuantity formats a position quantity, trimming trailing zeros so
// fractional crypto sizes and whole contract counts both read naturally.
func FormatQuantity(qty float64) string {
	return strconv.FormatFloat(qty, 'f', -1, 64)
}

// FormatCompact formats a dollar amount in compact form (K/M/B).
func FormatCompact(amount float64) string {
	sign := ""
	absAmount := amount
	if absAmount < 0 {
		sign = "-"
		absAmount = -absAmount
	}

	switch {
	case absAmount >= 1e9:
		return fmt.Sprintf("%s$%.2fB", sign, absAmount/1e9)
	case absAmount >= 1e6:
		return fmt.Sprintf("%s$%.2fM", sign, absAmount/1e6)
	case absAmount >= 1e3:
		return fmt.Sprintf("%s$%.2fK", sign, absAmount/1e3)
	}
	return FormatUSD(amount)
}
