package intake

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces name to a safe basename: non-ASCII characters are
// folded or dropped, path separators become word breaks, whitespace runs
// become underscores, anything outside [A-Za-z0-9_.-] is removed and leading
// or trailing dots and underscores are trimmed. The result may be empty.
func SanitizeFilename(name string) string {
	decomposed := norm.NFKD.String(name)
	var b strings.Builder
	for _, r := range decomposed {
		if r > unicode.MaxASCII {
			continue
		}
		if r == '/' || r == '\\' {
			r = ' '
		}
		b.WriteRune(r)
	}
	joined := strings.Join(strings.Fields(b.String()), "_")
	return strings.Trim(unsafeChars.ReplaceAllString(joined, ""), "._")
}

// Extension returns the lower-cased text after the last dot, or "" when name
// has no dot.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}
