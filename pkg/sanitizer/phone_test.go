package sanitizer

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "local with leading zero", input: "0712345678", want: "254712345678"},
		{name: "bare subscriber number", input: "712345678", want: "254712345678"},
		{name: "international with plus", input: "+254712345678", want: "254712345678"},
		{name: "international without plus", input: "254712345678", want: "254712345678"},
		{name: "spaces", input: "0712 345 678", want: "254712345678"},
		{name: "dashes and parentheses", input: "(0712)-345-678", want: "254712345678"},
		{name: "surrounding whitespace", input: "  +254 712 345 678  ", want: "254712345678"},
		{name: "newer 01 prefix", input: "0110123456", want: "254110123456"},
		{name: "empty string", input: "", want: ""},
		{name: "only symbols", input: "--()", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePhone(tt.input); got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePhone_Idempotent(t *testing.T) {
	for _, in := range []string{"0712345678", "+254 712 345 678", "712345678"} {
		once := NormalizePhone(in)
		if twice := NormalizePhone(once); twice != once {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"0712345678", true},
		{"+254712345678", true},
		{"712345678", true},
		{"0110123456", true},
		{"071234", false},
		{"07123456789012", false},
		{"", false},
		{"phone", false},
	}

	for _, tt := range tests {
		if got := IsValidPhone(tt.input); got != tt.want {
			t.Errorf("IsValidPhone(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFormatE164(t *testing.T) {
	if got := FormatE164("0712 345 678"); got != "+254712345678" {
		t.Errorf("FormatE164 = %q", got)
	}
}
