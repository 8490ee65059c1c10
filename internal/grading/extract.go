package grading

import "strings"

// extractJSON pulls the first balanced JSON object out of model output.
// Models wrap JSON in prose or code fences often enough that naive
// unmarshalling fails; brace counting (string- and escape-aware) is the
// reliable path, with fence stripping as the fallback.
func extractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return stripFences(text)
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
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

	// Unbalanced output: strip fences and cut at the last closing brace.
	out := stripFences(text)
	if last := strings.LastIndexByte(out, '}'); last > 0 {
		out = out[:last+1]
	}
	return out
}

func stripFences(text string) string {
	out := strings.ReplaceAll(text, "```json", "")
	out = strings.ReplaceAll(out, "```", "")
	return strings.TrimSpace(out)
}
