// Package scrub masks personally identifiable information in conversational
// text before it reaches the extraction collaborator or the session history.
package scrub

import "regexp"

var (
	emailRE = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	ssnRE   = regexp.MustCompile(`\b\d{3}[- ]?\d{2}[- ]?\d{4}\b`)
	cardRE  = regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+\d{1,2}\s)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b`)
)

// Text replaces detected PII patterns with masking tokens. It is a pure
// function; the input is never considered safe for external transmission
// until it has passed through here.
func Text(text string) string {
	if text == "" {
		return text
	}

	out := emailRE.ReplaceAllString(text, "[REDACTED_EMAIL]")
	out = ssnRE.ReplaceAllString(out, "[REDACTED_SSN]")
	out = cardRE.ReplaceAllString(out, "[REDACTED_CREDIT_CARD]")
	out = phoneRE.ReplaceAllString(out, "[REDACTED_PHONE]")
	return out
}
