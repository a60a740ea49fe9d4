package instrument

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseHandicap normalizes a raw handicap to its canonical decimal form with at least one
// fractional digit: "0" and "" become "0.0", "-0.50" becomes "-0.5".
// Catalogue and stream handicaps for the same selection normalize to the same string.
func ParseHandicap(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "0.0", nil
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidHandicap, raw, err)
	}

	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s, nil
}
