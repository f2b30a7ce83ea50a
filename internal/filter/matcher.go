package filter

import (
	"regexp"
	"strings"
	"sync"
)

// Regexp is the part of a compiled expression the matcher uses.
type Regexp interface {
	MatchString(s string) bool
}

// CompileFunc compiles an RE2 expression.
type CompileFunc func(expr string) (Regexp, error)

func compileRE2(expr string) (Regexp, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return re, nil
}

// Field names the email field a pattern matched.
type Field string

const (
	FieldSubject Field = "subject"
	FieldBody    Field = "body"
)

// Match describes the first pattern line that fired.
type Match struct {
	Line    int
	Pattern string
	Field   Field
}

// Matcher evaluates pattern text against an email. The zero value is ready to
// use. Compiled expressions are cached, so a Matcher should be reused.
type Matcher struct {
	MatchCase bool
	// Compile overrides the regexp engine. Nil means regexp.Compile.
	Compile CompileFunc

	mu      sync.Mutex
	reCache map[string]Regexp
}

// maxCachedExpressions bounds reCache. The cache is cleared when full so
// expressions from old settings revisions do not accumulate.
const maxCachedExpressions = 512

func (m *Matcher) compile(pattern string) (Regexp, error) {
	expr := expression(pattern, m.MatchCase)

	m.mu.Lock()
	re, ok := m.reCache[expr]
	m.mu.Unlock()
	if ok {
		return re, nil
	}

	compile := m.Compile
	if compile == nil {
		compile = compileRE2
	}
	re, err := compile(expr)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.reCache == nil || len(m.reCache) >= maxCachedExpressions {
		m.reCache = make(map[string]Regexp)
	}
	m.reCache[expr] = re
	m.mu.Unlock()
	return re, nil
}

// Valid reports whether pattern compiles. The compiled expression is probed
// against the empty string; the probe result is irrelevant.
func (m *Matcher) Valid(pattern string) bool {
	re, err := m.compile(strings.TrimSpace(pattern))
	if err != nil {
		return false
	}
	re.MatchString("")
	return true
}

// FirstMatch walks the pattern lines in order and returns the first one that
// matches. For each line the subject is tested before the body, and
// evaluation stops at the first hit.
func (m *Matcher) FirstMatch(subject, body, raw string) (Match, bool) {
	for _, l := range splitLines(raw) {
		re, err := m.compile(l.text)
		if err != nil {
			continue
		}
		if re.MatchString(subject) {
			return Match{Line: l.no, Pattern: l.text, Field: FieldSubject}, true
		}
		if re.MatchString(body) {
			return Match{Line: l.no, Pattern: l.text, Field: FieldBody}, true
		}
	}
	return Match{}, false
}

// Matches reports whether any valid pattern line in raw matches subject or body.
func (m *Matcher) Matches(subject, body, raw string) bool {
	_, ok := m.FirstMatch(subject, body, raw)
	return ok
}

// Check compiles every line of raw and returns the valid lines joined with
// "\n" together with the errors for the lines that were dropped.
func (m *Matcher) Check(raw string) (string, []*InvalidPatternError) {
	var (
		valid   []string
		invalid []*InvalidPatternError
	)
	for _, l := range splitLines(raw) {
		if _, err := m.compile(l.text); err != nil {
			invalid = append(invalid, &InvalidPatternError{Line: l.no, Pattern: l.text, Err: err})
			continue
		}
		valid = append(valid, l.text)
	}
	return strings.Join(valid, "\n"), invalid
}

var defaultMatcher = &Matcher{}

// IsValid reports whether pattern is usable with the default matcher.
func IsValid(pattern string) bool {
	return defaultMatcher.Valid(pattern)
}

// Matches evaluates raw with the default matcher.
func Matches(subject, body, raw string) bool {
	return defaultMatcher.Matches(subject, body, raw)
}

// Sanitize drops the lines of raw that do not compile.
func Sanitize(raw string) (string, []*InvalidPatternError) {
	return defaultMatcher.Check(raw)
}
