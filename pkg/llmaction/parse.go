package llmaction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// extractJSON parses an LLM response body: strip an
// optional triple-backtick fence, otherwise locate the first balanced
// `{...}` or `[...]` fragment; if that fragment looks like a sequence of
// top-level objects joined by commas (not already a list), wrap it in
// `[...]`; then json.Unmarshal the result into an `any`.
func extractJSON(body string) (any, error) {
	candidate := body
	if m := fencePattern.FindStringSubmatch(body); m != nil {
		candidate = m[1]
	} else {
		candidate = firstBalancedFragment(body)
	}
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil, fmt.Errorf("no JSON fragment found in response body")
	}

	if looksLikeBareObjectSequence(candidate) {
		candidate = "[" + candidate + "]"
	}

	var parsed any
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, fmt.Errorf("parse JSON fragment: %w", err)
	}
	return parsed, nil
}

// firstBalancedFragment scans for the first `{` or `[` and returns the
// substring up to its matching closer, tracking string/escape state so
// braces inside string literals don't confuse the depth count.
func firstBalancedFragment(s string) string {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

// looksLikeBareObjectSequence reports whether candidate is a top-level
// sequence of `{...}` objects separated by commas, without an enclosing
// `[...]`.
func looksLikeBareObjectSequence(candidate string) bool {
	if len(candidate) == 0 || candidate[0] != '{' {
		return false
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(candidate); i++ {
		c := candidate[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 && i < len(candidate)-1 {
				rest := strings.TrimSpace(candidate[i+1:])
				return strings.HasPrefix(rest, ",")
			}
		}
	}
	return false
}
