package privacy

import (
	"regexp"
	"strings"
)

type scrubRule struct {
	Label       string
	Re          *regexp.Regexp
	Replacement string
}

// Rules run in order. Emails and URLs go first so their digit-bearing parts
// are consumed before the phone and id-run rules can chew on them.
var piiScrubRules = []scrubRule{
	{Label: "email", Re: regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`), Replacement: "[email]"},
	{Label: "url", Re: regexp.MustCompile(`https?://[^\s<>"]+|www\.[^\s<>"]+`), Replacement: "[link]"},
	{Label: "mention", Re: regexp.MustCompile(`@[A-Za-z0-9_.\-]+`), Replacement: "[@redacted]"},
	{Label: "phone", Re: regexp.MustCompile(`(?:\+\d{1,3}[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}\b`), Replacement: "[phone]"},
	{Label: "id_run", Re: regexp.MustCompile(`\b\d{6,10}\b`), Replacement: "[id]"},
}

var placeholderRE = regexp.MustCompile(`\[(?:email|link|@redacted|phone|id)\]`)

// Sanitize strips PII patterns from free text. It is pure and idempotent:
// placeholders inserted by one pass are never re-matched by a later pass.
// Text with no matches comes back unchanged.
func Sanitize(text string) string {
	if text == "" {
		return text
	}
	// Split around placeholders already present so a second pass cannot
	// mangle them (the mention rule would otherwise eat "[@redacted]").
	var b strings.Builder
	last := 0
	for _, loc := range placeholderRE.FindAllStringIndex(text, -1) {
		b.WriteString(scrubSegment(text[last:loc[0]]))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(scrubSegment(text[last:]))
	return b.String()
}

func scrubSegment(s string) string {
	if s == "" {
		return s
	}
	for _, r := range piiScrubRules {
		s = r.Re.ReplaceAllString(s, r.Replacement)
	}
	return s
}

// ScrubHits reports which rule labels matched, for audit detail fields.
// It never returns the matched text itself.
func ScrubHits(text string) []string {
	hits := make([]string, 0)
	for _, r := range piiScrubRules {
		if r.Re.MatchString(text) {
			hits = append(hits, r.Label)
		}
	}
	return hits
}
