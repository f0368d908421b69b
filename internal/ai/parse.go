package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	// Matches ```json\n{...}\n``` and variants without newlines or language tag
	codeFenceRegex = regexp.MustCompile("(?s)`{3}(?:json|javascript|js)?\\s*\\n?(.*?)\\n?`{3}")

	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)

	// Greedy so nested objects are captured whole
	objectRegex = regexp.MustCompile(`(?s)\{.*\}`)
)

// parseJSON decodes a model response into T. Responses often wrap the
// JSON in code fences or prose, so it tries, in order: the raw text, the
// text without fences, the same with trailing commas removed, and finally
// the outermost {...} found anywhere.
func parseJSON[T any](text string) (T, error) {
	var zero T
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return zero, fmt.Errorf("empty response")
	}

	candidates := []string{trimmed}
	if m := codeFenceRegex.FindStringSubmatch(trimmed); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	last := candidates[len(candidates)-1]
	candidates = append(candidates, trailingCommaRegex.ReplaceAllString(last, "$1"))
	if obj := objectRegex.FindString(last); obj != "" {
		candidates = append(candidates, trailingCommaRegex.ReplaceAllString(obj, "$1"))
	}

	var lastErr error
	for _, c := range candidates {
		var v T
		if err := json.Unmarshal([]byte(c), &v); err != nil {
			lastErr = err
			continue
		}
		return v, nil
	}
	return zero, fmt.Errorf("no valid JSON in response (%s): %w", truncate(trimmed, 100), lastErr)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
