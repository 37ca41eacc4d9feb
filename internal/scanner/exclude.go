package scanner

import (
	"path"
	"strings"
)

// Pattern is a gitignore-style pattern matched against slash-separated entry
// paths, used to leave vendored or generated classes out of an inspection.
type Pattern struct {
	raw       string
	negation  bool
	directory bool
	anchored  bool
	segments  []string
}

// ParsePattern parses one exclude pattern. A leading "!" re-includes, a
// trailing "/" matches a directory and everything below it, a leading "/"
// anchors at the class root, and "**" spans any number of segments.
func ParsePattern(s string) Pattern {
	p := Pattern{raw: s}

	if strings.HasPrefix(s, "!") {
		p.negation = true
		s = s[1:]
	}
	if strings.HasSuffix(s, "/") {
		p.directory = true
		s = strings.TrimSuffix(s, "/")
	}
	if strings.HasPrefix(s, "/") {
		p.anchored = true
		s = s[1:]
	}

	p.segments = strings.Split(s, "/")
	return p
}

// String returns the pattern as written.
func (p Pattern) String() string { return p.raw }

// IsNegation reports whether the pattern re-includes what it matches.
func (p Pattern) IsNegation() bool { return p.negation }

// Match reports whether the slash-separated path matches the pattern.
func (p Pattern) Match(rel string) bool {
	parts := strings.Split(strings.Trim(rel, "/"), "/")

	last := len(parts)
	if p.directory {
		// a directory pattern must match a proper prefix of the path
		last = len(parts) - 1
	}

	for start := 0; start <= last; start++ {
		if p.anchored && start > 0 {
			break
		}
		if p.directory {
			if matchPrefix(p.segments, parts[start:last]) {
				return true
			}
			continue
		}
		if matchSegments(p.segments, parts[start:]) {
			return true
		}
	}
	return false
}

// matchSegments matches the whole of parts.
func matchSegments(pattern, parts []string) bool {
	if len(pattern) == 0 {
		return len(parts) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(parts); i++ {
			if matchSegments(pattern[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 || !matchSegment(pattern[0], parts[0]) {
		return false
	}
	return matchSegments(pattern[1:], parts[1:])
}

// matchPrefix matches pattern against a leading run of parts.
func matchPrefix(pattern, parts []string) bool {
	for n := len(parts); n >= 1; n-- {
		if matchSegments(pattern, parts[:n]) {
			return true
		}
	}
	return false
}

func matchSegment(pattern, segment string) bool {
	ok, err := path.Match(pattern, segment)
	return err == nil && ok
}

// Excluded applies patterns in order; later negations override earlier matches.
func Excluded(rel string, patterns []Pattern) bool {
	excluded := false
	for _, p := range patterns {
		if p.Match(rel) {
			excluded = !p.IsNegation()
		}
	}
	return excluded
}
