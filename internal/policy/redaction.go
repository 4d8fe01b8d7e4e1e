package policy

import "regexp"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
)

// RedactPII masks emails and phone numbers. Transcripts and user messages
// go through here before reaching any log line.
func RedactPII(input string) (redacted string, changed bool) {
	out := emailPattern.ReplaceAllString(input, "[REDACTED_EMAIL]")
	out = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	return out, out != input
}

// LogSafe redacts and truncates free text so a log entry never carries a
// full transcript.
func LogSafe(input string, max int) string {
	out, _ := RedactPII(input)
	if max > 0 && len(out) > max {
		out = out[:max] + "..."
	}
	return out
}
