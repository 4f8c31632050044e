// Package core provides the GST domain types and the breakdown aggregator.
//
// This file contains amount parsing and the rupee formatting used wherever
// amounts are displayed. Rounding happens here and nowhere else.
package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidAmount is returned by ParseAmount for unparsable input.
var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts a loosely formatted amount to a float.
//
// It strips a rupee sign or "Rs"/"INR" prefix, whitespace and thousands
// separators, and accepts a trailing percent sign so it can be used for rates.
//
// Examples:
//
//	ParseAmount("1,23,456.50") -> 123456.5, nil
//	ParseAmount("₹ 300")       -> 300, nil
//	ParseAmount("18%")         -> 18, nil
//	ParseAmount("-50")         -> -50, nil
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	for _, p := range []string{"₹", "Rs.", "Rs", "INR"} {
		s = strings.TrimPrefix(s, p)
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidAmount
	}
	return f, nil
}

// FormatRupees renders v with a rupee sign, two decimals and Indian digit
// grouping: 1234567.5 -> "₹12,34,567.50".
func FormatRupees(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	out := "₹" + groupIndian(intPart) + frac
	if neg && out != "₹0.00" {
		return "-" + out
	}
	return out
}

// FormatPlain renders v with two decimals and no currency sign, for
// exports where a number is expected (CSV, spreadsheets).
func FormatPlain(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if s == "-0.00" {
		return "0.00"
	}
	return s
}

// FormatRate renders a rate as a percentage: 18 -> "18%", 5.5 -> "5.5%".
func FormatRate(rate float64) string {
	return FormatRateKey(rate) + "%"
}

// groupIndian inserts separators after the last three digits and then every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}
