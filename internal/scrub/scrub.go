// Package scrub provides security helpers for removing sensitive data from
// errors and messages surfaced to callers.
package scrub

import (
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// URLs replaces http(s) URLs embedded in s with a redaction marker. Upstream
// error messages may echo request URLs that carry query secrets or internal
// hostnames.
func URLs(s string) string {
	return urlPattern.ReplaceAllString(s, "[URL redacted]")
}

// TokenFromError removes the bearer token from error messages.
// Go's http.Client.Do() includes the request URL in error strings, and proxies
// occasionally echo authorization material back in bodies.
// Preserves the error chain for errors.Is/As via Unwrap().
func TokenFromError(err error, token string) error {
	if err == nil {
		return nil
	}
	if token == "" {
		return err
	}
	msg := err.Error()
	if strings.Contains(msg, token) {
		return &scrubbedError{
			msg: strings.ReplaceAll(msg, token, "[REDACTED]"),
			err: err,
		}
	}
	return err
}

type scrubbedError struct {
	msg string
	err error
}

func (e *scrubbedError) Error() string { return e.msg }
func (e *scrubbedError) Unwrap() error { return e.err }
