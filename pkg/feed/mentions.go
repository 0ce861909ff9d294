package feed

import "strings"

const mentionDelimiter = ","

// ParseMentions splits a comma separated list of names. Tokens are trimmed,
// empty tokens dropped, order kept and duplicates left in place.
func ParseMentions(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, mentionDelimiter) {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
