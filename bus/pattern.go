package bus

import "strings"

// MatchAll is the pattern collaborators fall back to when no explicit
// topic list is configured. It matches every topic regardless of
// segment count.
const MatchAll = "*"

// segment is one pre-parsed pattern element: a literal or a
// single-segment wildcard.
type segment struct {
	literal  string
	wildcard bool
}

// Pattern is a topic pattern parsed once at subscribe time, so matching
// at publish time is a plain slice comparison with no string splitting.
type Pattern struct {
	raw      string
	segments []segment
	matchAll bool
}

// ParsePattern parses a dot-separated pattern. Each segment is a
// literal or the wildcard "*" matching exactly one topic segment;
// partial-segment wildcards ("user.*name") are rejected. The bare
// pattern "*" is the explicit match-everything special case.
func ParsePattern(pattern string) (Pattern, error) {
	if pattern == "" {
		return Pattern{}, ErrInvalidPattern
	}
	if pattern == MatchAll {
		return Pattern{raw: pattern, matchAll: true}, nil
	}

	parts := strings.Split(pattern, ".")
	segments := make([]segment, len(parts))
	for i, part := range parts {
		switch {
		case part == MatchAll:
			segments[i] = segment{wildcard: true}
		case part == "" || strings.Contains(part, "*"):
			return Pattern{}, ErrInvalidPattern
		default:
			segments[i] = segment{literal: part}
		}
	}

	return Pattern{raw: pattern, segments: segments}, nil
}

// ParsePatterns parses a list of patterns, failing on the first
// malformed one.
func ParsePatterns(patterns []string) ([]Pattern, error) {
	parsed := make([]Pattern, len(patterns))
	for i, raw := range patterns {
		p, err := ParsePattern(raw)
		if err != nil {
			return nil, err
		}
		parsed[i] = p
	}
	return parsed, nil
}

// MustPattern parses a pattern and panics if it is malformed.
// For package-level constants and tests.
func MustPattern(pattern string) Pattern {
	p, err := ParsePattern(pattern)
	if err != nil {
		panic("bus: bad pattern " + pattern + ": " + err.Error())
	}
	return p
}

// String returns the original pattern text.
func (p Pattern) String() string {
	return p.raw
}

// Matches reports whether the pattern matches a topic. Empty topics
// never match.
func (p Pattern) Matches(topic string) bool {
	if topic == "" {
		return false
	}
	return p.matchSegments(strings.Split(topic, "."))
}

// matchSegments compares the pattern against an already-split topic.
// Segment counts must be equal unless the pattern is the bare "*";
// comparison is case-sensitive.
func (p Pattern) matchSegments(topic []string) bool {
	if p.raw == "" {
		// Zero value, matches nothing.
		return false
	}
	if p.matchAll {
		return true
	}
	if len(topic) != len(p.segments) {
		return false
	}
	for i, seg := range p.segments {
		if !seg.wildcard && seg.literal != topic[i] {
			return false
		}
	}
	return true
}

// Matches reports whether topic matches pattern. One-off convenience;
// subscription paths parse once and reuse the Pattern. Malformed
// patterns match nothing.
func Matches(topic, pattern string) bool {
	p, err := ParsePattern(pattern)
	if err != nil {
		return false
	}
	return p.Matches(topic)
}
