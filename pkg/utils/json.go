package utils

import (
	"encoding/json"
	"strings"

	"github.com/shelfsense/shelfsense/pkg/errors"
)

// ParseJSONResponse attempts to parse a string response as JSON.
func ParseJSONResponse(response string) (map[string]interface{}, error) {
	var result map[string]interface{}
	err := json.Unmarshal([]byte(response), &result)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidResponse, "failed to parse response as JSON")
	}
	return result, nil
}

// ParseJSONWithFallbacks parses model output as a JSON object, trying
// progressively looser strategies: the raw text, a fenced code block, and
// finally the first balanced object in the text. Returns InvalidResponse
// when nothing works.
func ParseJSONWithFallbacks(response string) (map[string]interface{}, error) {
	if result, err := ParseJSONResponse(response); err == nil {
		return result, nil
	}

	if fenced := ExtractFencedBlock(response); fenced != "" {
		if result, err := ParseJSONResponse(fenced); err == nil {
			return result, nil
		}
	}

	if obj := ExtractFirstJSONObject(response); obj != "" {
		if result, err := ParseJSONResponse(obj); err == nil {
			return result, nil
		}
	}

	return nil, errors.WithFields(
		errors.New(errors.InvalidResponse, "no parseable JSON object in response"),
		errors.Fields{"response_len": len(response)})
}

// ExtractFencedBlock returns the contents of the first ``` fenced block,
// stripping an optional language tag. Empty string when no block is present.
func ExtractFencedBlock(text string) string {
	start := strings.Index(text, "```")
	if start == -1 {
		return ""
	}
	rest := text[start+3:]

	// Drop the language tag line, if any
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine == "" || !strings.ContainsAny(firstLine, "{[") {
			rest = rest[nl+1:]
		}
	}

	end := strings.Index(rest, "```")
	if end == -1 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}

// ExtractFirstJSONObject scans for the first balanced top-level JSON object.
// Braces inside string literals are ignored.
func ExtractFirstJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

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
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}

	return ""
}
