package payments

import (
	"fmt"
	"strconv"
	"strings"
)

// parseOrderID reads a provider order id as an integer. Przelewy24 sends
// numeric ids; the empty string maps to zero for notifications that omit it.
func parseOrderID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed order id %q", s)
	}
	return id, nil
}

// parseAmountMinor normalizes a notification amount into minor units.
// Providers send either an integer of minor units (4900) or a decimal string
// of major units ("49.00").
func parseAmountMinor(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, fmt.Errorf("missing amount")
	case float64:
		// JSON numbers arrive as float64; whole values are minor units.
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, fmt.Errorf("missing amount")
		}
		if !strings.Contains(s, ".") && !strings.Contains(s, ",") {
			minor, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("malformed amount %q", s)
			}
			return minor, nil
		}
		s = strings.ReplaceAll(s, ",", ".")
		parts := strings.SplitN(s, ".", 2)
		major, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("malformed amount %q", s)
		}
		frac := parts[1]
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		cents, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("malformed amount %q", s)
		}
		if major < 0 {
			return major*100 - cents, nil
		}
		return major*100 + cents, nil
	default:
		return 0, fmt.Errorf("unsupported amount type %T", v)
	}
}
