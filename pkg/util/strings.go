package util

import "strings"

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeSymbols normalizes every ticker, dropping blanks and duplicates
// while keeping first-seen order.
func NormalizeSymbols(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = NormalizeSymbol(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// SplitSymbols parses a comma separated ticker list such as "aapl, msft".
func SplitSymbols(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return NormalizeSymbols(strings.Split(s, ","))
}
