package sanitize

import "regexp"

type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

// redactions scrub credential-like tokens, paths, emails, IPs and connection
// strings from text that may embed upstream response fragments.
var redactions = []redaction{
	{regexp.MustCompile(`(?i)["']?api[_-]?key["']?\s*[:=]\s*["']?[A-Za-z0-9_\-]{20,}["']?`), "api_key=***REDACTED***"},
	{regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9_\-.]{20,}`), "Bearer ***REDACTED***"},
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "***REDACTED_AWS_KEY***"},
	{regexp.MustCompile(`/(?:home|root|Users)/\S+`), "***REDACTED_PATH***"},
	{regexp.MustCompile(`(?i)[A-Z]:\\(?:Users|Windows|Program Files)\S*`), "***REDACTED_PATH***"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`), "***REDACTED_EMAIL***"},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), "***REDACTED_IP***"},
	{regexp.MustCompile(`(?i)password["']?\s*[:=]\s*["']?[^\s"']+["']?`), "password=***REDACTED***"},
	{regexp.MustCompile(`(?i)(postgres|mysql|mongodb|clickhouse|redis)://\S+`), "***REDACTED_DB_CONNECTION***"},
}

// Redact scrubs sensitive tokens from s before it is placed in any
// user-visible field.
func Redact(s string) string {
	for _, r := range redactions {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return s
}
