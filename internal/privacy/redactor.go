package privacy

// LogRedactor plugs the PII scrubber into the logger so submitted text can
// never reach a log sink intact.
type LogRedactor struct{}

func (LogRedactor) Redact(s string) string { return Sanitize(s) }
