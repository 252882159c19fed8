package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"bare domestic", "6641234567", "+526641234567"},
		{"already e164", "+526641234567", "+526641234567"},
		{"spaces and dashes", " 664 123-4567 ", "+526641234567"},
		{"us number with plus", "+16502530000", "+16502530000"},
		{"garbage passes through trimmed", " not-a-number ", "not-a-number"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeE164(tc.input); got != tc.want {
				t.Fatalf("NormalizeE164(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestNormalizeLegacy(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"no digits", "abc", ""},
		{"bare ten digits", "6641234567", "+526641234567"},
		{"country code without plus", "526641234567", "+526641234567"},
		{"already international", "+16641234567", "+16641234567"},
		{"formatted domestic", "(664) 123-4567", "+526641234567"},
		{"stray plus not leading", "664+1234567", "+526641234567"},
		{"short number gets plus only", "12345", "+12345"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeLegacy(tc.input); got != tc.want {
				t.Fatalf("NormalizeLegacy(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
