package models

import (
	"regexp"
	"strings"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-^=]{1,16}$`)

// NormalizeSymbol trims and uppercases a ticker. ok is false when the
// result is not a usable ticker symbol.
func NormalizeSymbol(s string) (symbol string, ok bool) {
	symbol = strings.ToUpper(strings.TrimSpace(s))
	return symbol, symbolPattern.MatchString(symbol)
}
