package logger

// Redactor scrubs PII from a string before it reaches any log sink. The
// privacy package provides the canonical implementation; the indirection
// exists so logger does not import privacy.
type Redactor interface {
	Redact(s string) string
}

// WithRedaction returns a logger whose string values are passed through r.
// Keys are left alone so structured fields stay queryable.
func (l *Logger) WithRedaction(r Redactor) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger, redactor: r}
}

func (l *Logger) redact(keysAndValues []interface{}) []interface{} {
	if l.redactor == nil {
		return keysAndValues
	}
	out := make([]interface{}, len(keysAndValues))
	copy(out, keysAndValues)
	for i := 1; i < len(out); i += 2 {
		if s, ok := out[i].(string); ok {
			out[i] = l.redactor.Redact(s)
		}
	}
	return out
}
