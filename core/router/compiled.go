package router

import (
	"fmt"
	"regexp"
	"strings"
)

// compiledPattern is a path template compiled to an anchored regex. Every
// ":name" segment becomes a single-segment capture.
type compiledPattern struct {
	source     string
	re         *regexp.Regexp
	paramNames []string
}

// compilePattern compiles a template of the form "/a/:id/b".
func compilePattern(pattern string) (*compiledPattern, error) {
	if pattern == "" || pattern[0] != '/' {
		return nil, fmt.Errorf("route pattern must begin with '/': %q", pattern)
	}

	var (
		b     strings.Builder
		names []string
	)
	b.WriteByte('^')
	for i, seg := range strings.Split(pattern, "/") {
		if i > 0 {
			b.WriteByte('/')
		}
		if strings.HasPrefix(seg, ":") {
			name := seg[1:]
			if name == "" {
				return nil, fmt.Errorf("unnamed path parameter in %q", pattern)
			}
			names = append(names, name)
			b.WriteString(`([^/]+)`)
			continue
		}
		b.WriteString(regexp.QuoteMeta(seg))
	}
	b.WriteByte('$')

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return &compiledPattern{source: pattern, re: re, paramNames: names}, nil
}

// match tests path against the pattern and returns the captured values in
// parameter order.
func (cp *compiledPattern) match(path string) ([]string, bool) {
	m := cp.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	return m[1:], true
}
