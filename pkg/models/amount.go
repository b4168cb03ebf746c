package models

import (
	"math/big"
	"strings"

	"github.com/stablepay-hq/payrunner/pkg/faults"
)

// ScaleAmount converts a decimal token amount to an integer count of smallest
// units (e.g. 10^6 per token for a 6-decimal jetton). The conversion is exact:
// amounts that would leave fractional smallest units are rejected, as are
// non-positive results. Rejection happens before any network call is made.
func ScaleAmount(amount string, decimals int) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, faults.Validationf("Invalid amount: empty")
	}
	if strings.HasPrefix(s, "-") {
		return nil, faults.Validationf("Invalid amount %q: negative", amount)
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if intPart == "0" && fracPart == "" && s == "." {
		return nil, faults.Validationf("Invalid amount %q", amount)
	}
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return nil, faults.Validationf("Invalid amount %q", amount)
	}

	// Fractional digits beyond the token's precision must all be zero.
	if len(fracPart) > decimals {
		for _, c := range fracPart[decimals:] {
			if c != '0' {
				return nil, faults.Validationf(
					"Invalid amount %q: more than %d decimal places", amount, decimals)
			}
		}
		fracPart = fracPart[:decimals]
	}
	fracPart += strings.Repeat("0", decimals-len(fracPart))

	units, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return nil, faults.Validationf("Invalid amount %q", amount)
	}
	if units.Sign() == 0 {
		return nil, faults.Validationf("Zero amount after scaling %q to %d decimals", amount, decimals)
	}
	return units, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
