package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/MimeLyc/bilingual-subs/internal/subtitle"
	"github.com/MimeLyc/bilingual-subs/internal/translator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func makeStream(texts ...string) *subtitle.Stream {
	captions := make([]subtitle.Caption, len(texts))
	for i, text := range texts {
		captions[i] = subtitle.Caption{
			Index: i + 1,
			Start: subtitle.Timestamp{Seconds: uint8(i)},
			End:   subtitle.Timestamp{Seconds: uint8(i + 1)},
			Text:  text,
		}
	}
	return subtitle.NewStream(captions...)
}

func texts(s *subtitle.Stream) []string {
	out := make([]string, 0, s.Len())
	for _, c := range s.All() {
		out = append(out, c.Text)
	}
	return out
}

// recorder upper-cases its input, which keeps delimiters and whitespace
// intact so chunked results concatenate back to the translated buffer.
type recorder struct {
	calls   []string
	targets []string
}

func (r *recorder) Translate(_ context.Context, text, source, target string) (string, error) {
	r.calls = append(r.calls, text)
	r.targets = append(r.targets, target)
	return strings.ToUpper(text), nil
}

func newTestBatcher(t *testing.T, cfg Config, tr translator.Translator, opts ...Option) (*Batcher, *int) {
	t.Helper()
	b, err := New(cfg, tr, opts...)
	require.NoError(t, err)

	waits := 0
	b.wait = func(ctx context.Context, d time.Duration) error {
		waits++
		return nil
	}
	return b, &waits
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{QuotaBytes: 1, Delimiter: "🍎"}, &recorder{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid batch config")

	_, err = New(DefaultConfig(), nil)
	require.Error(t, err)
}

func TestTranslate_ConsecutiveDuplicatesShareOneSegment(t *testing.T) {
	rec := &recorder{}
	b, _ := newTestBatcher(t, DefaultConfig(), rec)
	s := makeStream("We're having a baby!", "We're having a baby!", "What?")

	res, err := b.Translate(context.Background(), s, "en")
	require.NoError(t, err)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, "We're having a baby!🍎What?🍎", rec.calls[0])
	assert.Equal(t, []string{"zh"}, rec.targets)

	assert.Equal(t, []string{
		"WE'RE HAVING A BABY!\nWe're having a baby!",
		"WE'RE HAVING A BABY!\nWe're having a baby!",
		"WHAT?\nWhat?",
	}, texts(s))
	assert.Equal(t, Result{
		Target:   language.Chinese,
		Segments: 2,
		Chunks:   1,
		Bytes:    len(rec.calls[0]),
		Updated:  3,
	}, res)
}

func TestTranslate_NonConsecutiveDuplicatesAreResubmitted(t *testing.T) {
	var sent string
	numbered := translator.Func(func(_ context.Context, text, _, _ string) (string, error) {
		sent = text
		parts := strings.Split(text, "🍎")
		for i := range parts[:len(parts)-1] {
			parts[i] = fmt.Sprintf("%s#%d", parts[i], i)
		}
		return strings.Join(parts, "🍎"), nil
	})
	b, _ := newTestBatcher(t, DefaultConfig(), numbered)
	s := makeStream("Hi", "Bye", "Hi", "Unrelated")

	res, err := b.Translate(context.Background(), s, "")
	require.NoError(t, err)

	assert.Equal(t, "Hi🍎Bye🍎Hi🍎Unrelated🍎", sent)
	assert.Equal(t, 4, res.Segments)
	assert.Equal(t, []string{
		"Hi#0\nHi",
		"Bye#1\nBye",
		"Hi#2\nHi",
		"Unrelated#3\nUnrelated",
	}, texts(s))
}

func TestTranslate_NormalizesShortMultilineCaptions(t *testing.T) {
	rec := &recorder{}
	b, _ := newTestBatcher(t, DefaultConfig(), rec)
	long := "This line is definitely long enough\nto stay on two lines"
	s := makeStream("What?\nNo way!", long)

	_, err := b.Translate(context.Background(), s, "en")
	require.NoError(t, err)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, "What? No way!🍎"+long+"🍎", rec.calls[0])
	assert.Equal(t, "WHAT? NO WAY!\nWhat? No way!", s.At(0).Text)
	assert.Equal(t, strings.ToUpper(long)+"\n"+long, s.At(1).Text)
}

func TestTranslate_ChineseHintTargetsEnglish(t *testing.T) {
	rec := &recorder{}
	b, _ := newTestBatcher(t, DefaultConfig(), rec)
	// 49 bytes: above the 36 byte English threshold, below 56
	long := "我们今天晚上一起\n去看电影好不好呢"
	s := makeStream("你好\n世界", long)

	res, err := b.Translate(context.Background(), s, "zh")
	require.NoError(t, err)

	assert.Equal(t, language.English, res.Target)
	assert.Equal(t, []string{"en"}, rec.targets)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, "你好 世界🍎"+long+"🍎", rec.calls[0])
	assert.Equal(t, long+"\n"+long, s.At(1).Text)
}

func TestTranslate_ThresholdFollowsTarget(t *testing.T) {
	// 44 bytes: kept by the English threshold, folded under 56
	rec := &recorder{}
	b, _ := newTestBatcher(t, DefaultConfig(), rec)
	s := makeStream("I have been keeping a secret\nfrom all of you")

	_, err := b.Translate(context.Background(), s, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"I have been keeping a secret from all of you🍎"}, rec.calls)
}

func TestTranslate_ChunksAreSequentialWithDelay(t *testing.T) {
	rec := &recorder{}
	cfg := DefaultConfig()
	cfg.QuotaBytes = 20
	b, waits := newTestBatcher(t, cfg, rec)
	s := makeStream("alpha beta", "gamma delta", "epsilon zeta")

	res, err := b.Translate(context.Background(), s, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha beta🍎gamma", " delta🍎epsilon", " zeta🍎"}, rec.calls)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 2, *waits)
	assert.Equal(t, []string{
		"ALPHA BETA\nalpha beta",
		"GAMMA DELTA\ngamma delta",
		"EPSILON ZETA\nepsilon zeta",
	}, texts(s))
}

type mapCache struct {
	entries map[string]string
	saves   int
	saveErr error
}

func (m *mapCache) Load(_ context.Context, target, chunk string) (string, bool) {
	v, ok := m.entries[target+"|"+chunk]
	return v, ok
}

func (m *mapCache) Save(_ context.Context, target, chunk, translated string) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.entries[target+"|"+chunk] = translated
	return nil
}

func TestTranslate_ChunkCache(t *testing.T) {
	cache := &mapCache{entries: map[string]string{
		"zh| delta🍎epsilon": " DELTA🍎EPSILON",
	}}
	rec := &recorder{}
	cfg := DefaultConfig()
	cfg.QuotaBytes = 20
	b, waits := newTestBatcher(t, cfg, rec, WithChunkCache(cache))
	s := makeStream("alpha beta", "gamma delta", "epsilon zeta")

	res, err := b.Translate(context.Background(), s, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha beta🍎gamma", " zeta🍎"}, rec.calls)
	assert.Equal(t, 1, res.CachedChunks)
	assert.Equal(t, 1, *waits)
	assert.Equal(t, 2, cache.saves)
	assert.Equal(t, "EPSILON ZETA\nepsilon zeta", s.At(2).Text)

	// a second run is served entirely from the cache
	rec2 := &recorder{}
	b2, waits2 := newTestBatcher(t, cfg, rec2, WithChunkCache(cache))
	res, err = b2.Translate(context.Background(), makeStream("alpha beta", "gamma delta", "epsilon zeta"), "")
	require.NoError(t, err)
	assert.Empty(t, rec2.calls)
	assert.Equal(t, 3, res.CachedChunks)
	assert.Equal(t, 0, *waits2)
}

func TestTranslate_CacheSaveFailureIsNotFatal(t *testing.T) {
	cache := &mapCache{entries: map[string]string{}, saveErr: errors.New("disk full")}
	b, _ := newTestBatcher(t, DefaultConfig(), &recorder{}, WithChunkCache(cache))
	s := makeStream("Hello")

	res, err := b.Translate(context.Background(), s, "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, "HELLO\nHello", s.At(0).Text)
}

func TestTranslate_AlignmentMismatchLeavesStreamUntouched(t *testing.T) {
	dropper := translator.Func(func(_ context.Context, text, _, _ string) (string, error) {
		return strings.Replace(text, "🍎", " ", 1), nil
	})
	b, _ := newTestBatcher(t, DefaultConfig(), dropper)
	s := makeStream("Hi", "Bye", "Hi")

	_, err := b.Translate(context.Background(), s, "")
	require.Error(t, err)

	var alignErr *AlignmentError
	require.ErrorAs(t, err, &alignErr)
	assert.Equal(t, 3, alignErr.Want)
	assert.Equal(t, 2, alignErr.Got)
	assert.Equal(t, []string{"Hi", "Bye", "Hi"}, texts(s))
}

func TestTranslate_ExtraSegmentsAreRejected(t *testing.T) {
	doubler := translator.Func(func(_ context.Context, text, _, _ string) (string, error) {
		return text + text, nil
	})
	b, _ := newTestBatcher(t, DefaultConfig(), doubler)

	_, err := b.Translate(context.Background(), makeStream("Hi"), "")
	var alignErr *AlignmentError
	require.ErrorAs(t, err, &alignErr)
	assert.Equal(t, 1, alignErr.Want)
	assert.Equal(t, 2, alignErr.Got)
}

func TestTranslate_DelimiterInCaptionText(t *testing.T) {
	rec := &recorder{}
	b, _ := newTestBatcher(t, DefaultConfig(), rec)

	_, err := b.Translate(context.Background(), makeStream("fine", "I like 🍎s"), "")
	require.ErrorIs(t, err, ErrDelimiterInText)
	assert.Contains(t, err.Error(), "caption 2")
	assert.Empty(t, rec.calls)
}

type mockTranslator struct {
	mock.Mock
}

func (m *mockTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	args := m.Called(ctx, text, source, target)
	return args.String(0), args.Error(1)
}

func TestTranslate_TranslatorErrorFailsRun(t *testing.T) {
	tr := new(mockTranslator)
	tr.On("Translate", mock.Anything, "Hello🍎", translator.AutoSource, "zh").
		Return("", errors.New("auth failure")).Once()

	b, _ := newTestBatcher(t, DefaultConfig(), tr)
	s := makeStream("Hello")

	_, err := b.Translate(context.Background(), s, "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "translate chunk 1/1")
	assert.Contains(t, err.Error(), "auth failure")
	assert.Equal(t, "Hello", s.At(0).Text)
	tr.AssertExpectations(t)
}

func TestTranslate_BlankTranslationKeepsOriginal(t *testing.T) {
	blanker := translator.Func(func(_ context.Context, text, _, _ string) (string, error) {
		return strings.Replace(text, "Bye", " ", 1), nil
	})
	b, _ := newTestBatcher(t, DefaultConfig(), blanker)
	s := makeStream("Hi", "Bye")

	res, err := b.Translate(context.Background(), s, "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, []string{"Hi\nHi", "Bye"}, texts(s))
}

func TestTranslate_SqueezesBlankLinesFromTranslation(t *testing.T) {
	spacer := translator.Func(func(_ context.Context, text, _, _ string) (string, error) {
		return "This translation is long enough to skip folding\n\n\nsecond line🍎", nil
	})
	b, _ := newTestBatcher(t, DefaultConfig(), spacer)
	s := makeStream("Hello")

	_, err := b.Translate(context.Background(), s, "")
	require.NoError(t, err)
	assert.Equal(t, "This translation is long enough to skip folding\nsecond line\nHello", s.At(0).Text)

	// the result must still parse as a single caption
	parsed, err := subtitle.Parse(s.Render())
	require.NoError(t, err)
	assert.Equal(t, 1, parsed.Len())
}

func TestTranslate_EmptyStream(t *testing.T) {
	rec := &recorder{}
	b, _ := newTestBatcher(t, DefaultConfig(), rec)

	res, err := b.Translate(context.Background(), subtitle.NewStream(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Chunks)
	assert.Empty(t, rec.calls)
}

func TestTranslate_CancelledWhileWaiting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QuotaBytes = 20
	cfg.ChunkDelay = time.Hour
	b, err := New(cfg, &recorder{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	s := makeStream("alpha beta", "gamma delta", "epsilon zeta")
	_, err = b.Translate(ctx, s, "")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "alpha beta", s.At(0).Text)
}

func TestTranslate_MisalignedChunkIsNotCached(t *testing.T) {
	cache := &mapCache{entries: map[string]string{}}
	dropper := translator.Func(func(_ context.Context, text, _, _ string) (string, error) {
		return strings.ReplaceAll(text, "🍎", " "), nil
	})
	b, _ := newTestBatcher(t, DefaultConfig(), dropper, WithChunkCache(cache))

	_, err := b.Translate(context.Background(), makeStream("Hi", "Bye"), "")
	require.Error(t, err)
	assert.Zero(t, cache.saves)
	assert.Empty(t, cache.entries)
}

func TestTranslate_OutputStaysParseable(t *testing.T) {
	arrow := translator.Func(func(_ context.Context, text, _, _ string) (string, error) {
		return "go --> there\n\n00:00:01,000 --> 00:00:02,000🍎", nil
	})
	b, _ := newTestBatcher(t, DefaultConfig(), arrow)
	s := makeStream("Hello")

	_, err := b.Translate(context.Background(), s, "")
	require.NoError(t, err)
	assert.NotContains(t, s.At(0).Text, subtitle.Arrow)

	again, err := subtitle.Parse(s.Render())
	require.NoError(t, err)
	assert.Equal(t, s.At(0).Text, again.At(0).Text)
}
