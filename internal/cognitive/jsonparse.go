package cognitive

import (
	"encoding/json"
	"regexp"
	"strings"
)

// extractJSONObject finds the first balanced {...} block in text, tolerating
// fenced code blocks and surrounding prose, the way LLMs routinely wrap
// their structured answers. Ported from the tool-call parser's permissive
// extraction technique and retargeted at the core's own JSON contracts.
func extractJSONObject(text string) (string, bool) {
	if fenced := fencedBlockRe.FindStringSubmatch(text); len(fenced) > 1 {
		if obj, ok := balancedBraces(fenced[1]); ok {
			return obj, true
		}
	}
	return balancedBraces(text)
}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

func balancedBraces(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
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
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// decodeJSONLenient unmarshals a JSON object extracted from free text,
// trying a straight decode first and falling back to common-error fixups
// (trailing commas, unquoted keys) before giving up.
func decodeJSONLenient(text string, out any) bool {
	obj, ok := extractJSONObject(text)
	if !ok {
		return false
	}
	if json.Unmarshal([]byte(obj), out) == nil {
		return true
	}
	fixed := fixCommonJSONErrors(obj)
	return json.Unmarshal([]byte(fixed), out) == nil
}

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyRe   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
)

// fixCommonJSONErrors repairs the handful of near-miss JSON shapes LLMs
// reliably produce: trailing commas and bare (unquoted) object keys.
func fixCommonJSONErrors(s string) string {
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = unquotedKeyRe.ReplaceAllString(s, `$1"$2"$3`)
	return s
}
