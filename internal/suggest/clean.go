package suggest

import (
	"regexp"
	"strings"
)

// boilerplatePrefixes are meta-commentary openers models add despite the task
// instruction. Matched case-insensitively at the very start of the text;
// at most one is ever stripped.
var boilerplatePrefixes = []string{
	"here is your response:",
	"here is your reply:",
	"here is a draft:",
	"here's a draft:",
	"here is the reply:",
	"suggested reply:",
	"suggested response:",
	"draft:",
	"reply:",
	"response:",
}

var multiNewline = regexp.MustCompile(`\n{3,}`)

// CleanReply normalizes raw model output: trims surrounding whitespace,
// strips leading whitespace from every line, collapses runs of three or more
// newlines to exactly two, and removes a single boilerplate prefix (plus the
// colon/space that follows it) when one opens the text. Stacked prefixes
// ("Reply: Draft: ...") are left alone: stripping one would expose another,
// and cleaning must be stable under repetition.
func CleanReply(raw string) string {
	s := strings.TrimSpace(raw)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimLeft(line, " \t")
	}
	s = strings.Join(lines, "\n")

	s = multiNewline.ReplaceAllString(s, "\n\n")

	if prefix, ok := boilerplatePrefix(s); ok {
		stripped := strings.TrimLeft(s[len(prefix):], ": \t\n")
		if _, again := boilerplatePrefix(stripped); !again {
			s = stripped
		}
	}

	return strings.TrimSpace(s)
}

// boilerplatePrefix reports the prefix that opens s, if any. Matching is
// case-insensitive.
func boilerplatePrefix(s string) (string, bool) {
	lower := strings.ToLower(s)
	for _, prefix := range boilerplatePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return prefix, true
		}
	}
	return "", false
}
