package relational

import "strings"

// syntaxErrorMarkers are substrings both the MySQL and the PostgreSQL
// drivers are known to put in a syntax-error message. This is a
// best-effort classification: database/sql does not expose a portable
// syntax-vs-other error code, so the underlying driver error text is all
// callers outside the driver package ever see either way.
var syntaxErrorMarkers = []string{
	"syntax error",
	"You have an error in your SQL syntax",
	"syntax error at or near",
}

func isSyntaxError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range syntaxErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
