package utils

import "testing"

func TestFormatUSD(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{1, "$1.00"},
		{999.995, "$1,000.00"},
		{1234.5, "$1,234.50"},
		{1234567.891, "$1,234,567.89"},
		{-98765.4, "-$98,765.40"},
		{100, "$100.00"},
	}
	for _, tc := range cases {
		if got := FormatUSD(tc.in); got != tc.want {
			t.Errorf("FormatUSD(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(82.456); got != "82.46%" {
		t.Errorf("FormatPercent = %q", got)
	}
	if got := FormatPercent(-3.2); got != "-3.20%" {
		t.Errorf("FormatPercent = %q", got)
	}
}

func TestFormatSigned(t *testing.T) {
	if got := FormatSigned(1500.0); got != "+$1,500.00" {
		t.Errorf("FormatSigned = %q", got)
	}
	if got := FormatSigned(-15.0); got != "-$15.00" {
		t.Errorf("FormatSigned = %q", got)
	}
	if got := FormatSigned(0); got != "$0.00" {
		t.Errorf("FormatSigned = %q", got)
	}
}

func TestFormatQuantity(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0.5, "0.5"},
		{2, "2"},
		{0.0001, "0.0001"},
		{12.25, "12.25"},
	}
	for _, tc := range cases {
		if got := FormatQuantity(tc.in); got != tc.want {
			t.Errorf("FormatQuantity(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{500, "$500.00"},
		{1500, "$1.50K"},
		{2500000, "$2.50M"},
		{1250000000, "$1.25B"},
		{-1500000, "-$1.50M"},
	}
	for _, tc := range cases {
		if got := FormatCompact(tc.in); got != tc.want {
			t.Errorf("FormatCompact(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
