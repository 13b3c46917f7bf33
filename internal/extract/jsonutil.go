package extract

import "strings"

// FirstJSONObject returns the first balanced top-level JSON object in text.
// Extraction backends routinely wrap their JSON in prose ("Here is the
// result: {...} Let me know..."), so callers locate the outermost {...} span
// instead of unmarshaling the raw reply. Returns false when no balanced
// object exists.
func FirstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
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

		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}

	return "", false
}
