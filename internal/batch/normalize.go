package batch

import (
	"regexp"
	"strings"

	"github.com/MimeLyc/bilingual-subs/internal/subtitle"
	"golang.org/x/text/language"
)

// Byte thresholds under which multi-line text is folded onto one line.
const (
	englishThreshold = 36
	defaultThreshold = 56
)

// TargetFor picks the translation target from a file's language hint:
// Chinese subtitles go to English, everything else goes to Chinese.
func TargetFor(hint string) language.Tag {
	if strings.Contains(strings.ToLower(hint), "zh") {
		return language.English
	}
	return language.Chinese
}

// ThresholdFor returns the fold threshold used when translating into tag:
// 36 bytes for English, 56 for everything else.
func ThresholdFor(tag language.Tag) int {
	if base, _ := tag.Base(); base.String() == "en" {
		return englishThreshold
	}
	return defaultThreshold
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

// Normalize folds short multi-line text onto a single line. Text at or
// above threshold bytes, or without line breaks and tabs, is returned as is.
func Normalize(text string, threshold int) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) >= threshold || !strings.ContainsAny(trimmed, "\n\r\t") {
		return text
	}
	return lineBreaks.Replace(trimmed)
}

var blankLines = regexp.MustCompile(`\n(?:[ \t]*\n)+`)

// squeezeBlankLines keeps translated text from reintroducing the blank
// line that separates caption blocks.
func squeezeBlankLines(s string) string {
	return blankLines.ReplaceAllString(s, "\n")
}

// cleanTranslation keeps translated text parseable as caption text: no
// blank lines and no header arrow.
func cleanTranslation(s string) string {
	s = squeezeBlankLines(s)
	for strings.Contains(s, subtitle.Arrow) {
		s = strings.ReplaceAll(s, subtitle.Arrow, " -> ")
	}
	return s
}
