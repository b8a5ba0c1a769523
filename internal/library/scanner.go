package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/language"
)

// SubtitleExt is the only caption format the scanner picks up.
const SubtitleExt = ".srt"

var mediaExts = []string{
	".mkv", ".mp4", ".m4v", ".mov", ".avi", ".wmv", ".flv", ".webm",
	".ogv", ".3gp", ".3g2", ".f4v", ".asf", ".rm", ".rmvb", ".ts",
	".m2ts", ".mts", ".vob", ".mpg", ".mpeg", ".m2v", ".divx", ".xvid",
}

// Entry is one caption file found in the media directory.
type Entry struct {
	Path string
	Name string
	// Stem is the file name without ".srt" and without the language part.
	Stem string
	// LangHint is the secondary extension ("movie.en.srt" -> "en"), or ""
	// when there is none or it does not name a language.
	LangHint string
	// Media is the video sharing Stem, or "" when there is none.
	Media string
	Size  int64
}

// Scanner lists caption files in a single directory.
type Scanner struct {
	dir string
}

func NewScanner(dir string) *Scanner {
	return &Scanner{dir: dir}
}

func (s *Scanner) Dir() string {
	return s.dir
}

// Scan returns caption files in name order. Subdirectories are not visited.
func (s *Scanner) Scan(ctx context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.dir, err)
	}

	mediaByStem := make(map[string]string)
	for _, d := range dirEntries {
		if d.Type().IsRegular() && isMedia(d.Name()) {
			stem := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
			if _, ok := mediaByStem[stem]; !ok {
				mediaByStem[stem] = filepath.Join(s.dir, d.Name())
			}
		}
	}

	ret := make([]Entry, 0)
	for _, d := range dirEntries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !d.Type().IsRegular() || !IsSubtitle(d.Name()) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", d.Name(), err)
		}

		stem, hint := SplitName(d.Name())
		ret = append(ret, Entry{
			Path:     filepath.Join(s.dir, d.Name()),
			Name:     d.Name(),
			Stem:     stem,
			LangHint: hint,
			Media:    mediaByStem[stem],
			Size:     info.Size(),
		})
	}

	// ReadDir already sorts by name
	return ret, nil
}

// IsSubtitle reports whether name has the caption extension, in any case.
func IsSubtitle(name string) bool {
	return strings.EqualFold(filepath.Ext(name), SubtitleExt)
}

func isMedia(name string) bool {
	return slices.Contains(mediaExts, strings.ToLower(filepath.Ext(name)))
}

// SplitName splits a caption file name into its stem and language hint.
// Three letter codes are reported by their two letter equivalent.
//
//	"movie.en.srt"  -> "movie", "en"
//	"movie.zho.srt" -> "movie", "zh"
//	"movie.srt"     -> "movie", ""
//	"show.s01.srt"  -> "show.s01", ""
func SplitName(name string) (stem, hint string) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	secondary := filepath.Ext(base)
	if secondary == "" {
		return base, ""
	}

	hint, ok := languageHint(strings.TrimPrefix(secondary, "."))
	if !ok {
		return base, ""
	}
	return strings.TrimSuffix(base, secondary), hint
}

// languageHint accepts tags whose primary language is an ISO 639-1 or
// ISO 639-2/3 code, such as "en", "zh-Hans", "pt_BR" or "zho".
func languageHint(code string) (string, bool) {
	norm := strings.ReplaceAll(code, "_", "-")
	tag, err := language.Parse(norm)
	if err != nil {
		return "", false
	}
	base, conf := tag.Base()
	if conf != language.Exact {
		return "", false
	}

	primary, rest, _ := strings.Cut(norm, "-")
	switch len(primary) {
	case 2:
		if strings.EqualFold(base.String(), primary) {
			return strings.ToLower(code), true
		}
	case 3:
		if strings.EqualFold(base.ISO3(), primary) || strings.EqualFold(base.String(), primary) {
			hint := base.String()
			if rest != "" {
				hint += "-" + strings.ToLower(rest)
			}
			return hint, true
		}
	}
	return "", false
}
