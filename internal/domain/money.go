package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a storefront money string such as "1,299.00", "₹ 499" or "Rs. 499".
// Anything before the first digit is a currency prefix, apart from a sign or a bare
// leading decimal point. The second return is false when the input could not be read;
// the amount is then zero.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	first := strings.IndexFunc(s, isDigit)
	if first < 0 {
		return decimal.Zero, false
	}
	var lead string
	switch prefix := s[:first]; {
	case prefix == "." || prefix == "-.":
		lead = prefix
	case strings.HasSuffix(prefix, "-"):
		lead = "-"
	}
	digits := strings.Map(func(r rune) rune {
		if isDigit(r) || r == '.' {
			return r
		}
		return -1
	}, s[first:])
	d, err := decimal.NewFromString(lead + strings.TrimSuffix(digits, "."))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// Money rounds to two places and returns a float for JSON output.
func Money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
