package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MimeLyc/bilingual-subs/internal/subtitle"
	"github.com/MimeLyc/bilingual-subs/internal/translator"
	"github.com/MimeLyc/bilingual-subs/pkg/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
)

// ErrDelimiterInText is returned when caption text already contains the
// segment delimiter, which would make the translated buffer ambiguous.
var ErrDelimiterInText = errors.New("caption text contains the segment delimiter")

// AlignmentError means the translated buffer did not split back into the
// number of segments that were sent.
type AlignmentError struct {
	Want int
	Got  int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("translation lost segment alignment: sent %d segments, got %d back", e.Want, e.Got)
}

// ChunkCache remembers translated chunks across runs.
type ChunkCache interface {
	Load(ctx context.Context, target, chunk string) (string, bool)
	Save(ctx context.Context, target, chunk, translated string) error
}

// Result summarizes one Translate run.
type Result struct {
	Target       language.Tag
	Segments     int // segments submitted after consecutive dedup
	Chunks       int // chunks the buffer was split into
	CachedChunks int // chunks answered by the cache
	Bytes        int // size of the outbound buffer
	Updated      int // captions whose text was replaced
}

// segment is one piece of the outbound buffer and the stream positions
// that take its translation.
type segment struct {
	text      string
	positions []int
}

type Option func(*Batcher)

// WithChunkCache lets the batcher reuse chunk translations.
func WithChunkCache(cache ChunkCache) Option {
	return func(b *Batcher) {
		b.cache = cache
	}
}

// Batcher turns a caption stream into bilingual captions with as few
// translate calls as the quota allows.
type Batcher struct {
	cfg        Config
	translator translator.Translator
	cache      ChunkCache
	wait       func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, tr translator.Translator, opts ...Option) (*Batcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch config: %w", err)
	}
	if tr == nil {
		return nil, fmt.Errorf("translator is required")
	}

	b := &Batcher{
		cfg:        cfg,
		translator: tr,
		wait:       sleepContext,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Translate rewrites every caption of s as "<translation>\n<original>".
// The stream is only modified when the whole run succeeds.
func (b *Batcher) Translate(ctx context.Context, s *subtitle.Stream, hint string) (Result, error) {
	target := TargetFor(hint)
	result := Result{Target: target}
	if s.Len() == 0 {
		return result, nil
	}

	// both directions fold against the target's threshold
	threshold := ThresholdFor(target)
	segments, err := b.plan(s, threshold)
	if err != nil {
		return result, err
	}

	var buf strings.Builder
	for _, seg := range segments {
		buf.WriteString(seg.text)
		buf.WriteString(b.cfg.Delimiter)
	}
	chunks := SplitChunks(buf.String(), b.cfg.QuotaBytes)

	result.Segments = len(segments)
	result.Chunks = len(chunks)
	result.Bytes = buf.Len()

	log.Debug("batch: %d captions -> %d segments, %s in %d chunks, target %s",
		s.Len(), len(segments), humanize.Bytes(uint64(buf.Len())), len(chunks), target)

	translated, cached, err := b.translateChunks(ctx, chunks, target.String())
	if err != nil {
		return result, err
	}
	result.CachedChunks = cached

	updated, err := b.reassemble(s, segments, translated, threshold)
	if err != nil {
		return result, err
	}
	result.Updated = updated
	return result, nil
}

// plan normalizes caption text and folds runs of identical consecutive
// captions into one segment. Equal text further apart is sent again.
func (b *Batcher) plan(s *subtitle.Stream, threshold int) ([]segment, error) {
	segments := make([]segment, 0, s.Len())
	for pos, c := range s.All() {
		if strings.Contains(c.Text, b.cfg.Delimiter) {
			return nil, fmt.Errorf("caption %d: %w", c.Index, ErrDelimiterInText)
		}
		text := Normalize(c.Text, threshold)

		if n := len(segments); n > 0 && segments[n-1].text == text {
			segments[n-1].positions = append(segments[n-1].positions, pos)
			continue
		}
		segments = append(segments, segment{text: text, positions: []int{pos}})
	}
	return segments, nil
}

// translateChunks sends chunks one at a time and concatenates the results.
// The configured delay separates outbound calls; cache hits cost nothing.
func (b *Batcher) translateChunks(ctx context.Context, chunks []string, target string) (string, int, error) {
	var out strings.Builder
	calls, cached := 0, 0

	for i, chunk := range chunks {
		if b.cache != nil {
			if hit, ok := b.cache.Load(ctx, target, chunk); ok {
				log.Debug("batch: chunk %d/%d served from cache", i+1, len(chunks))
				out.WriteString(hit)
				cached++
				continue
			}
		}

		if calls > 0 {
			if err := b.wait(ctx, b.cfg.ChunkDelay); err != nil {
				return "", cached, fmt.Errorf("waiting before chunk %d/%d: %w", i+1, len(chunks), err)
			}
		}

		log.Debug("batch: translating chunk %d/%d (%s)", i+1, len(chunks), humanize.Bytes(uint64(len(chunk))))
		translated, err := b.translator.Translate(ctx, chunk, translator.AutoSource, target)
		if err != nil {
			return "", cached, fmt.Errorf("translate chunk %d/%d: %w", i+1, len(chunks), err)
		}
		calls++

		// a chunk that lost delimiters would fail alignment again on every retry
		if b.cache != nil && strings.Count(translated, b.cfg.Delimiter) == strings.Count(chunk, b.cfg.Delimiter) {
			if err := b.cache.Save(ctx, target, chunk, translated); err != nil {
				log.Warn("batch: failed to cache chunk %d/%d: %v", i+1, len(chunks), err)
			}
		}
		out.WriteString(translated)
	}
	return out.String(), cached, nil
}

// reassemble pairs translated segments with planned segments by position
// and writes the bilingual text to every caption the segment stands for.
func (b *Batcher) reassemble(s *subtitle.Stream, segments []segment, translated string, threshold int) (int, error) {
	parts := strings.Split(translated, b.cfg.Delimiter)
	got := len(parts) - 1
	if strings.TrimSpace(parts[len(parts)-1]) != "" {
		got++
	}
	if got != len(segments) {
		return 0, &AlignmentError{Want: len(segments), Got: got}
	}

	updated := 0
	for i, seg := range segments {
		text := strings.TrimSpace(parts[i])
		if text == "" {
			continue
		}
		text = cleanTranslation(Normalize(text, threshold))
		bilingual := text + "\n" + seg.text

		for _, pos := range seg.positions {
			if err := s.SetText(pos, bilingual); err != nil {
				return updated, err
			}
			updated++
		}
	}
	return updated, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
