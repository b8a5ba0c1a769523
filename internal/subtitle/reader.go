package subtitle

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/encoding/unicode"
)

// Decode validates raw file bytes as UTF-8, strips a leading byte-order mark
// and normalizes CRLF line endings to LF.
func Decode(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", &DecodeError{Offset: firstInvalid(raw)}
	}

	// the BOM-aware decoder drops a leading U+FEFF and passes the rest through
	text, err := unicode.UTF8BOM.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode subtitle: %w", err)
	}
	return strings.ReplaceAll(string(text), "\r\n", "\n"), nil
}

func firstInvalid(raw []byte) int {
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRune(raw[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(raw)
}

// ParseBytes decodes and parses raw SRT bytes.
func ParseBytes(raw []byte) (*Stream, error) {
	text, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return Parse(text)
}

// LoadFile reads and parses the subtitle file at path.
func LoadFile(path string) (*Stream, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subtitle file: %w", err)
	}
	s, err := ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}

// DetectLanguage guesses the dominant ISO 639-1 language of the caption
// text. It returns "" when nothing could be detected.
func DetectLanguage(s *Stream) string {
	if s == nil || s.Len() == 0 {
		return ""
	}

	counts := make(map[string]int)
	for _, c := range s.All() {
		info := whatlanggo.Detect(c.Text)
		if !info.IsReliable() {
			continue
		}
		if code := info.Lang.Iso6391(); code != "" {
			counts[code]++
		}
	}

	var top string
	var topCount int
	for lang, n := range counts {
		if n > topCount || (n == topCount && lang < top) {
			top, topCount = lang, n
		}
	}
	return top
}
