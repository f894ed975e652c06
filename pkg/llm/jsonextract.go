package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse marks a model call that produced no usable text. Callers
// log it distinctly from malformed output.
var ErrEmptyResponse = errors.New("llm: empty response")

// DecodeJSON decodes a JSON object or array out of loosely structured model
// text into v. Models wrap payloads in markdown fences, prefix them with
// prose, or trail them with commentary, so decoding tries a fixed order of
// recovery strategies:
//
//  1. decode the fence-stripped text as-is
//  2. decode the first balanced {...} or [...] span
//  3. decode the widest first-to-last brace span
func DecodeJSON(content string, v any) error {
	text := StripFences(content)
	if text == "" {
		return ErrEmptyResponse
	}

	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	if span := balancedSpan(text); span != "" {
		if err := json.Unmarshal([]byte(span), v); err == nil {
			return nil
		}
	}

	if span := widestSpan(text); span != "" {
		if err := json.Unmarshal([]byte(span), v); err == nil {
			return nil
		}
	}

	return fmt.Errorf("llm: no decodable JSON in response")
}

// StripFences removes a surrounding markdown code fence, if present.
func StripFences(content string) string {
	text := strings.TrimSpace(content)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		// drop the language tag line (```json etc.)
		text = text[idx+1:]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// balancedSpan returns the first balanced JSON object or array in text,
// tracking string literals and escapes so braces inside strings do not
// terminate the scan.
func balancedSpan(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	open := text[start]
	var closer byte = '}'
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// widestSpan returns the first-open to last-close brace span, the crudest
// recovery for responses with unbalanced quoting.
func widestSpan(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end <= start {
		return ""
	}
	return text[start : end+1]
}
