package extractor

import (
	"regexp"
	"strconv"
	"strings"
)

var unicodeEscape = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)

// CleanEscapedURL undoes the JSON-in-HTML escaping Instagram applies to URLs:
// \uXXXX sequences are decoded, \/ becomes / and any leftover backslash is dropped.
func CleanEscapedURL(s string) string {
	s = unicodeEscape.ReplaceAllStringFunc(s, func(m string) string {
		v, err := strconv.ParseUint(m[2:], 16, 32)
		if err != nil {
			return m
		}
		return string(rune(v))
	})
	s = strings.ReplaceAll(s, `\/`, "/")
	return strings.ReplaceAll(s, `\`, "")
}

// looksLikeVideo is the acceptance test for scraped candidates
func looksLikeVideo(u string) bool {
	return strings.HasPrefix(u, "http") && strings.Contains(u, ".mp4")
}
