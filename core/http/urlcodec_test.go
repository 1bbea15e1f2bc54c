package http

import "testing"

func TestDecodeURL(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		clean bool
	}{
		{"hello", "hello", true},
		{"a+b", "a b", true},
		{"a%20b", "a b", true},
		{"%2Fpath", "/path", true},
		{"100%25", "100%", true},
		{"%zz", "%zz", false},
		{"%2", "%2", false},
		{"trailing%", "trailing%", false},
	}

	for _, tt := range tests {
		got, clean := DecodeURL(tt.in)
		if got != tt.want || clean != tt.clean {
			t.Errorf("DecodeURL(%q) = (%q, %v), want (%q, %v)", tt.in, got, clean, tt.want, tt.clean)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	inputs := []string{
		"plain",
		"with space",
		"symbols&=?#/%",
		"unreserved-._~",
		"mixed 100% sure/yes",
	}

	for _, in := range inputs {
		decoded, clean := DecodeURL(EncodeURL(in))
		if decoded != in || !clean {
			t.Errorf("round trip of %q = %q (clean=%v)", in, decoded, clean)
		}
	}
}
