package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"1", 1, true},
		{"1,200.50", 1200.5, true},
		{"1,23,456.50", 123456.5, true},
		{"₹ 300", 300, true},
		{"Rs. 45.10", 45.1, true},
		{"INR 10", 10, true},
		{"18%", 18, true},
		{" -50 ", -50, true},
		{"", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"1.2.3", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %v", tc.in, got)
		}
	}
}

func TestFormatRupees(t *testing.T) {
	cases := []struct {
		in  float64
		out string
	}{
		{0, "₹0.00"},
		{56.5, "₹56.50"},
		{999, "₹999.00"},
		{1000, "₹1,000.00"},
		{123456.5, "₹1,23,456.50"},
		{1234567.891, "₹12,34,567.89"},
		{-6, "-₹6.00"},
		{-0.001, "₹0.00"},
	}
	for _, tc := range cases {
		if got := FormatRupees(tc.in); got != tc.out {
			t.Errorf("FormatRupees(%v) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestFormatRateAndPlain(t *testing.T) {
	if got := FormatRate(18); got != "18%" {
		t.Errorf("FormatRate(18) = %q", got)
	}
	if got := FormatRate(5.5); got != "5.5%" {
		t.Errorf("FormatRate(5.5) = %q", got)
	}
	if got := FormatPlain(2.5); got != "2.50" {
		t.Errorf("FormatPlain(2.5) = %q", got)
	}
	if got := FormatPlain(-0.001); got != "0.00" {
		t.Errorf("FormatPlain(-0.001) = %q", got)
	}
}
