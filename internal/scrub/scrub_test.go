package scrub

import (
	"strings"
	"testing"
)

func TestText(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		masked  string
		gone    string
	}{
		{
			name:   "email",
			in:     "reach me at jane.doe@example.com please",
			masked: "[REDACTED_EMAIL]",
			gone:   "jane.doe@example.com",
		},
		{
			name:   "ssn",
			in:     "my ssn is 123-45-6789 ok",
			masked: "[REDACTED_SSN]",
			gone:   "123-45-6789",
		},
		{
			name:   "credit card",
			in:     "card 4111111111111111 expires soon",
			masked: "[REDACTED_CREDIT_CARD]",
			gone:   "4111111111111111",
		},
		{
			name:   "phone",
			in:     "call (555) 123-4567 tonight",
			masked: "[REDACTED_PHONE]",
			gone:   "(555) 123-4567",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Text(tt.in)
			if !strings.Contains(out, tt.masked) {
				t.Errorf("Text(%q) = %q, missing %q", tt.in, out, tt.masked)
			}
			if strings.Contains(out, tt.gone) {
				t.Errorf("Text(%q) = %q, still contains PII %q", tt.in, out, tt.gone)
			}
		})
	}
}

func TestText_CleanInputUnchanged(t *testing.T) {
	in := "I need to buy some steaks for a BBQ tonight"
	if out := Text(in); out != in {
		t.Errorf("clean input modified: %q", out)
	}
}

func TestText_Empty(t *testing.T) {
	if out := Text(""); out != "" {
		t.Errorf("Text(\"\") = %q, want empty", out)
	}
}
