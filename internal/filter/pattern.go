// Package filter decides whether an outgoing email triggers the webhook.
//
// Patterns arrive as raw text with one regular expression per line. Each line
// is Go RE2 syntax (https://golang.org/pkg/regexp/syntax/). A line written in
// the delimited form `/expr/flags` is also accepted; the flags i, m, s and U
// map to the matching RE2 flags and u is accepted and ignored. Lines whose
// trailing letters are not such a flag set, like /etc/passwd, are plain lines.
//
// Undelimited lines match case-insensitively unless the matcher is configured
// with MatchCase. Delimited lines carry their own flags and are used as written.
//
// Lines that do not compile are skipped when matching and dropped when
// settings are saved; they never cause an error at send time.
package filter

import (
	"errors"
	"fmt"
	"strings"
)

var ErrBadPattern = errors.New("invalid pattern")

// InvalidPatternError describes a single rejected pattern line.
type InvalidPatternError struct {
	Line    int
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.Line, e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error {
	return ErrBadPattern
}

type line struct {
	no   int
	text string
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// splitLines splits raw on any line ending, trims each line and drops blank
// ones. Line numbers are 1-based positions in raw.
func splitLines(raw string) []line {
	parts := strings.Split(newlines.Replace(raw), "\n")
	out := make([]line, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, line{no: i + 1, text: p})
	}
	return out
}

// Lines returns the trimmed, non-blank pattern lines of raw in order.
func Lines(raw string) []string {
	ls := splitLines(raw)
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.text
	}
	return out
}

// expression converts a pattern line to the RE2 expression handed to the
// compiler. A line is read as /expr/flags only when the trailing letters form
// a valid flag set; anything else, such as /admin/login, is a plain line.
func expression(pattern string, matchCase bool) string {
	if expr, flags, ok := splitDelimited(pattern); ok {
		if prefix, ok := flagPrefix(flags); ok {
			return prefix + expr
		}
	}
	if matchCase {
		return pattern
	}
	return "(?i)" + pattern
}

// splitDelimited recognizes /expr/flags where flags is a run of ASCII letters.
func splitDelimited(pattern string) (expr, flags string, ok bool) {
	if len(pattern) < 2 || pattern[0] != '/' {
		return "", "", false
	}
	end := strings.LastIndexByte(pattern, '/')
	if end == 0 {
		return "", "", false
	}
	for i := end + 1; i < len(pattern); i++ {
		c := pattern[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return "", "", false
		}
	}
	return pattern[1:end], pattern[end+1:], true
}

func flagPrefix(flags string) (string, bool) {
	var b strings.Builder
	for i := 0; i < len(flags); i++ {
		switch c := flags[i]; c {
		case 'i', 'm', 's', 'U':
			if !strings.ContainsRune(b.String(), rune(c)) {
				b.WriteByte(c)
			}
		case 'u':
		default:
			return "", false
		}
	}
	if b.Len() == 0 {
		return "", true
	}
	return "(?" + b.String() + ")", true
}
