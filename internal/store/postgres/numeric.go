package postgres

import (
	"fmt"
	"math/big"
	"strings"
)

// numeric renders a big.Int for a NUMERIC column. A nil value is stored
// as zero so balances never round-trip through NULL.
func numeric(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// parseNumeric parses a NUMERIC column scanned as text. Postgres may emit
// an empty string for freshly defaulted columns.
func parseNumeric(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parse numeric %q", s)
	}
	return v, nil
}
