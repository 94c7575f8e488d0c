package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Decimals is the number of fractional digits of a whole coin.
const Decimals = 8

// Coin is the number of base units (sats) in one whole coin.
const Coin uint64 = 100_000_000

// FormatAmount renders base units as a decimal string with 8 places.
func FormatAmount(units uint64) string {
	whole := units / Coin
	frac := units % Coin
	return fmt.Sprintf("%d.%08d", whole, frac)
}

// ParseAmount converts a decimal string to base units.
func ParseAmount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative amount")
	}

	parts := strings.SplitN(s, ".", 2)

	var whole uint64
	if parts[0] != "" {
		var err error
		whole, err = strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid whole part: %w", err)
		}
	}

	var frac uint64
	if len(parts) == 2 {
		fracStr := parts[1]
		if len(fracStr) > Decimals {
			return 0, fmt.Errorf("too many decimal places (max %d)", Decimals)
		}
		if fracStr != "" {
			// Pad to Decimals digits.
			fracStr = fracStr + strings.Repeat("0", Decimals-len(fracStr))
			var err error
			frac, err = strconv.ParseUint(fracStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid fractional part: %w", err)
			}
		}
	}
	if parts[0] == "" && (len(parts) == 1 || parts[1] == "") {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	// Check overflow.
	if whole > math.MaxUint64/Coin {
		return 0, fmt.Errorf("amount too large")
	}
	result := whole * Coin
	if result > math.MaxUint64-frac {
		return 0, fmt.Errorf("amount too large")
	}

	return result + frac, nil
}
