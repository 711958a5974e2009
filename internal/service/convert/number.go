package convert

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber parses a displayed cell value: "1 234,56 €", "4870.5", "12%".
// Empty, non-numeric or ambiguous text ("12,345") gives nil.
func ParseNumber(raw string) (*float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "€", "").Replace(s)
	if s == "" {
		return nil, false
	}

	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")

	s, ok := normalizeDecimal(s)
	if !ok {
		return nil, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, false
	}
	if percent {
		v /= 100
	}
	return &v, true
}

// normalizeDecimal rewrites s with "." as the only decimal separator.
// The last of "," and "." is the decimal separator, the other one groups thousands.
// A lone "," is decimal unless it reads as a thousands group ("12,345").
func normalizeDecimal(s string) (string, bool) {
	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")

	switch {
	case comma < 0:
		if strings.Count(s, ".") > 1 {
			return ungroup(s, ".")
		}
		return s, true
	case dot < 0:
		if strings.Count(s, ",") > 1 {
			return ungroup(s, ",")
		}
		if _, grouped := ungroup(s, ","); grouped {
			return "", false
		}
		return strings.Replace(s, ",", ".", 1), true
	case comma > dot:
		if strings.Count(s, ",") > 1 {
			return "", false
		}
		intPart, ok := ungroup(s[:comma], ".")
		if !ok {
			return "", false
		}
		return intPart + "." + s[comma+1:], true
	default:
		if strings.Count(s, ".") > 1 {
			return "", false
		}
		intPart, ok := ungroup(s[:dot], ",")
		if !ok {
			return "", false
		}
		return intPart + s[dot:], true
	}
}

// ungroup drops thousands separators: the first group has 1 to 3 digits without a
// leading zero, every following group exactly 3.
func ungroup(s, sep string) (string, bool) {
	groups := strings.Split(s, sep)
	if len(groups) < 2 {
		return "", false
	}

	head := strings.TrimLeft(groups[0], "+-")
	if len(groups[0])-len(head) > 1 || len(head) == 0 || len(head) > 3 || head[0] == '0' || !digits(head) {
		return "", false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 || !digits(g) {
			return "", false
		}
	}
	return strings.Join(groups, ""), true
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
