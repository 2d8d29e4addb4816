// Package recovery salvages structured JSON from imperfect model output.
// Models wrap answers in markdown fences, leave trailing commas, or run out
// of tokens mid-object; Repair applies a fixed sequence of mechanical fixes
// and Parse decides whether the result is usable.
package recovery

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// UnrecoverableParseError means every repair step ran and the text still does
// not parse as JSON. The raw text is kept so callers can log it verbatim.
type UnrecoverableParseError struct {
	Raw string
	Err error
}

func (e *UnrecoverableParseError) Error() string {
	return fmt.Sprintf("response unrecoverable after repair: %v", e.Err)
}

func (e *UnrecoverableParseError) Unwrap() error { return e.Err }

var (
	nestedQuoteRe   = regexp.MustCompile(`"([^"]*)"([^"]*)"([^"]*)":`)
	stringNewlineRe = regexp.MustCompile(`:\s*"([^"\n]*)\n([^"]*)"`)
)

// Repair applies the repair pipeline in a fixed order: strip code fences,
// drop trailing commas, escape stray quotes inside key strings, collapse
// raw newlines inside string values, close unbalanced brackets and braces,
// and cut any prose after the final closing brace. Each step is a plain
// text transformation; none of them consult a parser. Repair of valid JSON
// returns it unchanged, and Repair is idempotent.
func Repair(raw string) string {
	s := StripCodeFences(raw)

	s = stripTrailingCommas(s)

	s = nestedQuoteRe.ReplaceAllStringFunc(s, func(m string) string {
		parts := nestedQuoteRe.FindStringSubmatch(m)
		// Only repair when the middle segment cannot be valid JSON between
		// two separate strings, and skip anything already escaped. An
		// ambiguous match is left alone for the parser to reject.
		if parts[2] == "" || strings.ContainsAny(parts[2], ",:{}[]") ||
			strings.HasSuffix(parts[1], `\`) || strings.HasSuffix(parts[2], `\`) {
			return m
		}
		return fmt.Sprintf(`"%s\"%s\"%s":`, parts[1], parts[2], parts[3])
	})

	// The second capture can span further newlines, so iterate until the
	// value holds none. Each pass removes at least one newline.
	for {
		next := stringNewlineRe.ReplaceAllString(s, `: "$1 $2"`)
		if next == s {
			break
		}
		s = next
	}

	s = balanceContainers(s)
	s = stripTrailingCommas(s)

	if idx := strings.LastIndex(s, "}"); idx >= 0 && idx < len(s)-1 {
		s = s[:idx+1]
	}
	return s
}

// stripTrailingCommas drops a comma whose next non-whitespace character is a
// closing bracket or brace. Commas inside JSON strings are left alone.
func stripTrailingCommas(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			out.WriteByte(c)
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
		if c == '"' {
			inString = true
			out.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\r' || s[j] == '\n') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		out.WriteByte(c)
	}
	return out.String()
}

// balanceContainers closes unbalanced brackets and braces. A closer that does
// not match the innermost open container gets the missing closers inserted
// before it (arrays close before objects), and containers still open at the
// end of the text are closed in reverse order. Brackets inside JSON strings
// are ignored.
func balanceContainers(s string) string {
	var out strings.Builder
	out.Grow(len(s) + 4)
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			out.WriteByte(c)
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
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			open := byte('{')
			if c == ']' {
				open = '['
			}
			for len(stack) > 0 && stack[len(stack)-1] != open {
				if stack[len(stack)-1] == '[' {
					out.WriteByte(']')
				} else {
					out.WriteByte('}')
				}
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 0 {
				// Stray closer with no matching opener, drop it.
				continue
			}
			stack = stack[:len(stack)-1]
		}
		out.WriteByte(c)
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '[' {
			out.WriteByte(']')
		} else {
			out.WriteByte('}')
		}
	}
	return out.String()
}

// StripCodeFences removes a surrounding markdown code fence, with or without
// a language tag, and trims whitespace.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		first := strings.TrimSpace(s[:nl])
		if first == "" || strings.EqualFold(first, "json") {
			s = s[nl+1:]
		}
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Parse unmarshals raw into out, running Repair first when the raw text does
// not parse as-is. A still-broken result yields *UnrecoverableParseError.
func Parse(raw string, out any) error {
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), out); err == nil {
		return nil
	}
	repaired := Repair(raw)
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return &UnrecoverableParseError{Raw: raw, Err: err}
	}
	return nil
}
