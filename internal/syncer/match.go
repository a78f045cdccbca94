package syncer

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher filters object names by include/exclude patterns. A pattern is an
// exact name or carries one % wildcard; it is translated to an anchored
// regular expression.
type Matcher struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// NewMatcher compiles the pattern lists. An empty include list admits every
// name not excluded.
func NewMatcher(include, exclude []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range include {
		re, err := compilePattern(p)
		if err != nil {
			return nil, err
		}
		m.include = append(m.include, re)
	}
	for _, p := range exclude {
		re, err := compilePattern(p)
		if err != nil {
			return nil, err
		}
		m.exclude = append(m.exclude, re)
	}
	return m, nil
}

// Match reports whether the name passes the filter.
func (m *Matcher) Match(name string) bool {
	if m == nil {
		return true
	}
	if len(m.include) > 0 {
		ok := false
		for _, re := range m.include {
			if re.MatchString(name) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, re := range m.exclude {
		if re.MatchString(name) {
			return false
		}
	}
	return true
}

// regexpForPattern is the lenient form used for the archive name pattern,
// which config validation has already checked.
func regexpForPattern(p string) *regexp.Regexp {
	if p == "" {
		return nil
	}
	re, err := compilePattern(p)
	if err != nil {
		return nil
	}
	return re
}

func compilePattern(p string) (*regexp.Regexp, error) {
	if strings.Count(p, "%") > 1 {
		return nil, fmt.Errorf("pattern %q: at most one %% wildcard is supported", p)
	}
	expr := "^" + strings.Replace(regexp.QuoteMeta(p), "%", ".*", 1) + "$"
	return regexp.Compile(expr)
}
