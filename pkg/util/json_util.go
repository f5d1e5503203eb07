package util

import (
	"regexp"
	"strings"
)

var codeBlockPattern = regexp.MustCompile("(?s)```(?:json)?(.*?)```")

// ExtractJsonFromText tries to find the largest JSON object/array in the text
func ExtractJsonFromText(text string) string {
	// fenced block wins
	matches := codeBlockPattern.FindStringSubmatch(text)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	start := firstIndex(text, "{", "[")
	if start == -1 {
		return text
	}
	end := lastIndex(text, "}", "]")
	if end != -1 && end > start {
		return text[start : end+1]
	}
	return text
}

func firstIndex(text string, seps ...string) int {
	best := -1
	for _, sep := range seps {
		if i := strings.Index(text, sep); i != -1 && (best == -1 || i < best) {
			best = i
		}
	}
	return best
}

func lastIndex(text string, seps ...string) int {
	best := -1
	for _, sep := range seps {
		if i := strings.LastIndex(text, sep); i > best {
			best = i
		}
	}
	return best
}
