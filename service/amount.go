package service

import (
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount reads a money amount typed by a courier ("50", "50,5",
// "R$ 1.234,56", "1.234", "12.30") into cents. Without a comma, dots
// followed by exactly three digits group thousands.
func ParseAmount(text string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(text))
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")

	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case thousandsGrouped(s):
		s = strings.ReplaceAll(s, ".", "")
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, ErrInvalidAmount
	}
	if !digitsOnly(whole) || !digitsOnly(frac) || len(frac) > 2 {
		return 0, ErrInvalidAmount
	}

	var units int64
	if whole != "" {
		v, err := strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return 0, ErrInvalidAmount
		}
		units = v
	}

	var cents int64
	if frac != "" {
		frac += strings.Repeat("0", 2-len(frac))
		v, _ := strconv.ParseInt(frac, 10, 64)
		cents = v
	}
	return units*100 + cents, nil
}

// thousandsGrouped reports whether s looks like "1.234" or "12.345.678".
func thousandsGrouped(s string) bool {
	groups := strings.Split(s, ".")
	if len(groups) < 2 {
		return false
	}
	lead := groups[0]
	if lead == "" || len(lead) > 3 || lead[0] == '0' || !digitsOnly(lead) {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 || !digitsOnly(g) {
			return false
		}
	}
	return true
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
