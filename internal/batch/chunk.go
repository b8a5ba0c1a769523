package batch

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitChunks cuts buf into pieces of at most quota bytes. A cut never
// lands inside a multi-byte character and prefers the last whitespace
// before the limit; the whitespace opens the next piece. When a piece has
// no whitespace at all it is cut at the character boundary instead.
func SplitChunks(buf string, quota int) []string {
	if buf == "" {
		return nil
	}
	if len(buf) <= quota {
		return []string{buf}
	}

	var chunks []string
	for len(buf) > quota {
		cut := quota
		for cut > 0 && !utf8.RuneStart(buf[cut]) {
			cut--
		}
		if cut == 0 {
			// not UTF-8; fall back to a plain byte cut
			cut = quota
		}
		if ws := strings.LastIndexFunc(buf[:cut], unicode.IsSpace); ws > 0 {
			cut = ws
		}
		chunks = append(chunks, buf[:cut])
		buf = buf[cut:]
	}
	if buf != "" {
		chunks = append(chunks, buf)
	}
	return chunks
}
