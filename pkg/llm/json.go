package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// thinkTagPattern matches a leading <think>...</think> block some models emit.
var thinkTagPattern = regexp.MustCompile(`(?s)^[\s]*<think>.*?</think>[\s]*`)

// codeFencePattern matches a markdown code fence with an optional language tag.
var codeFencePattern = regexp.MustCompile("(?s)```(?:[a-zA-Z]+\\n|\\n)?\\s*(.*?)\\s*```")

// StripCodeFences returns the content of the first markdown code block,
// or the trimmed response when it has none.
func StripCodeFences(response string) string {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")
	if m := codeFencePattern.FindStringSubmatch(cleaned); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(cleaned), "`"))
}

// ExtractJSON returns the first valid JSON object or array in response,
// skipping think blocks, code fences and surrounding prose.
func ExtractJSON(response string) (string, error) {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")

	objStart := strings.IndexByte(cleaned, '{')
	arrStart := strings.IndexByte(cleaned, '[')

	// Whichever bracket comes first decides the expected shape.
	if objStart >= 0 && (arrStart < 0 || objStart < arrStart) {
		if jsonStr, ok := extractBalancedJSON(cleaned, '{', '}'); ok {
			if json.Valid([]byte(jsonStr)) {
				return jsonStr, nil
			}
		}
	}

	if arrStart >= 0 {
		if jsonStr, ok := extractBalancedJSON(cleaned, '[', ']'); ok {
			if json.Valid([]byte(jsonStr)) {
				return jsonStr, nil
			}
		}
	}

	trimmed := strings.TrimSpace(cleaned)
	if json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	return "", fmt.Errorf("no valid JSON found in response")
}

// extractBalancedJSON returns s from the first openCh through its matching
// closeCh. Brackets inside string literals do not count.
func extractBalancedJSON(s string, openCh, closeCh byte) (string, bool) {
	start := strings.IndexByte(s, openCh)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		switch c := s[i]; {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == openCh:
			depth++
		case c == closeCh:
			if depth--; depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// ParseJSONResponse decodes the JSON embedded in an LLM response into T.
func ParseJSONResponse[T any](response string) (T, error) {
	var out T
	raw, err := ExtractJSON(response)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("failed to decode LLM JSON: %w", err)
	}
	return out, nil
}
