package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MimeLyc/bilingual-subs/internal/batch"
	"github.com/MimeLyc/bilingual-subs/internal/config"
	"github.com/MimeLyc/bilingual-subs/internal/library"
	"github.com/MimeLyc/bilingual-subs/internal/llm"
	"github.com/MimeLyc/bilingual-subs/internal/media"
	"github.com/MimeLyc/bilingual-subs/internal/persistence"
	"github.com/MimeLyc/bilingual-subs/internal/translator"
	"github.com/MimeLyc/bilingual-subs/pkg/log"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

// LockFile is created in the media directory while a run holds it.
const LockFile = ".bisub.lock"

// TransService translates every caption file of the media directory, one
// file at a time, then burns the results into matching videos.
type TransService struct {
	cfg        config.Config
	scanner    *library.Scanner
	translator translator.Translator
	muxer      media.Muxer
	store      Store
	handler    ErrorHandler
	now        func() time.Time

	// mu guards translator, which is resolved on first use.
	mu    sync.Mutex
	group singleflight.Group
}

type Option func(*TransService)

// WithTranslator replaces the translator built from the configuration.
func WithTranslator(tr translator.Translator) Option {
	return func(s *TransService) {
		s.translator = tr
	}
}

func WithMuxer(m media.Muxer) Option {
	return func(s *TransService) {
		s.muxer = m
	}
}

// WithStore enables the ledger, the chunk cache and run history.
func WithStore(store Store) Option {
	return func(s *TransService) {
		s.store = store
	}
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(s *TransService) {
		s.handler = h
	}
}

func NewTransService(cfg config.Config, opts ...Option) *TransService {
	s := &TransService{
		cfg:     cfg,
		scanner: library.NewScanner(cfg.Media.Dir),
		muxer:   media.NewFfmpeg(cfg.Mux.FFmpegCmd),
		handler: NewDefaultErrorHandler(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewTranslator builds the translator selected by cfg. It fails when the
// provider's credentials are missing.
func NewTranslator(cfg config.Config) (translator.Translator, error) {
	if err := cfg.TranslatorReady(); err != nil {
		return nil, NewErrorWithCause(ErrConfig, "translator unavailable", err)
	}
	delimiter := batch.DefaultConfig().Delimiter

	switch cfg.Translate.Provider {
	case config.ProviderLLM:
		client, err := llm.NewClient(&llm.Config{
			APIKey:      cfg.LLM.APIKey,
			APIURL:      cfg.LLM.APIURL,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
			SiteURL:     cfg.LLM.SiteURL,
			AppName:     cfg.LLM.AppName,
		})
		if err != nil {
			return nil, NewErrorWithCause(ErrConfig, "create LLM client", err)
		}
		return translator.NewLLM(client, delimiter), nil
	default:
		tmt, err := translator.NewTMT(translator.TMTConfig{
			SecretID:     cfg.Tencent.SecretID,
			SecretKey:    cfg.Tencent.SecretKey,
			Region:       cfg.Tencent.Region,
			ProjectID:    cfg.Tencent.ProjectID,
			Untranslated: delimiter,
		})
		if err != nil {
			return nil, NewErrorWithCause(ErrConfig, "create TMT client", err)
		}
		return tmt, nil
	}
}

func (s *TransService) resolveTranslator() (translator.Translator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.translator != nil {
		return s.translator, nil
	}
	tr, err := NewTranslator(s.cfg)
	if err != nil {
		return nil, err
	}
	s.translator = tr
	return tr, nil
}

func (s *TransService) newFileTranslator(tr translator.Translator, runID string) (*FileTranslator, error) {
	var opts []batch.Option
	if s.store != nil {
		opts = append(opts, batch.WithChunkCache(newChunkCache(s.store, s.cfg.Translate.Provider)))
	}
	batcher, err := batch.New(s.cfg.Batch(), tr, opts...)
	if err != nil {
		return nil, NewErrorWithCause(ErrConfig, "create batcher", err)
	}
	return NewFileTranslator(batcher, s.store, s.cfg.Translate.DetectLanguage, runID), nil
}

// lockDir takes the directory lock. ok is false when another process
// holds it.
func (s *TransService) lockDir() (unlock func(), ok bool, err error) {
	dir := s.scanner.Dir()
	info, err := os.Stat(dir)
	if err != nil {
		return nil, false, WrapError(err, ErrFileRead, "open media directory")
	}
	if !info.IsDir() {
		return nil, false, NewError(ErrConfig, fmt.Sprintf("%s is not a directory", dir))
	}

	lock := flock.New(filepath.Join(dir, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, false, WrapError(err, ErrFileWrite, "lock media directory")
	}
	if !locked {
		return nil, false, nil
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("Failed to unlock %s: %v", lock.Path(), err)
		}
	}, true, nil
}

// Run processes the media directory once. Missing credentials or a busy
// directory make an idle run, not an error. Per-file failures are logged,
// recorded in the report and do not stop the run.
func (s *TransService) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Dir:       s.scanner.Dir(),
		StartedAt: s.now(),
	}
	defer func() { report.FinishedAt = s.now() }()

	tr, err := s.resolveTranslator()
	if err != nil {
		log.Warn("Nothing to do: %v", err)
		report.Idle, report.IdleReason = true, "translator is not configured"
		return report, nil
	}

	unlock, ok, err := s.lockDir()
	if err != nil {
		return report, err
	}
	if !ok {
		log.Warn("Nothing to do: another run is processing %s", report.Dir)
		report.Idle, report.IdleReason = true, "media directory is locked by another run"
		return report, nil
	}
	defer unlock()

	entries, err := s.scanner.Scan(ctx)
	if err != nil {
		return report, WrapError(err, ErrFileRead, "scan media directory")
	}
	log.Info("Run %s: found %d subtitle files in %s", report.RunID, len(entries), report.Dir)

	s.pruneChunkCache(ctx)

	fileTranslator, err := s.newFileTranslator(tr, report.RunID)
	if err != nil {
		return report, err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		var outcome FileOutcome
		err := SafeExecute(func() error {
			var err error
			outcome, err = fileTranslator.Translate(ctx, entry)
			return err
		})
		if err != nil {
			s.handler.Handle(err)
			if outcome.Name == "" {
				outcome = FileOutcome{Name: entry.Name, Path: entry.Path, Hint: entry.LangHint}
			}
			outcome.Status = StatusFailed
			outcome.Err = err
		}

		if outcome.Status != StatusFailed && s.cfg.Mux.Enabled {
			outcome.MuxedTo = s.mux(ctx, entry)
		}
		report.Files = append(report.Files, outcome)
	}

	s.recordRun(ctx, report)
	return report, ctx.Err()
}

// TranslateFile translates a single caption file. Unlike Run, missing
// credentials are an error.
func (s *TransService) TranslateFile(ctx context.Context, path string) (FileOutcome, error) {
	entry, err := EntryForPath(path)
	if err != nil {
		return FileOutcome{Name: filepath.Base(path), Path: path, Status: StatusFailed, Err: err}, err
	}
	tr, err := s.resolveTranslator()
	if err != nil {
		return FileOutcome{Name: entry.Name, Path: path, Status: StatusFailed, Err: err}, err
	}
	fileTranslator, err := s.newFileTranslator(tr, uuid.NewString())
	if err != nil {
		return FileOutcome{Name: entry.Name, Path: path, Status: StatusFailed, Err: err}, err
	}

	var outcome FileOutcome
	err = SafeExecute(func() error {
		var err error
		outcome, err = fileTranslator.Translate(ctx, entry)
		return err
	})
	if err != nil && outcome.Err == nil {
		outcome = FileOutcome{Name: entry.Name, Path: path, Status: StatusFailed, Err: err}
	}
	return outcome, err
}

// MuxAll burns every caption file that has a matching video, without
// translating anything.
func (s *TransService) MuxAll(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Dir:       s.scanner.Dir(),
		StartedAt: s.now(),
	}
	defer func() { report.FinishedAt = s.now() }()

	unlock, ok, err := s.lockDir()
	if err != nil {
		return report, err
	}
	if !ok {
		report.Idle, report.IdleReason = true, "media directory is locked by another run"
		return report, nil
	}
	defer unlock()

	entries, err := s.scanner.Scan(ctx)
	if err != nil {
		return report, WrapError(err, ErrFileRead, "scan media directory")
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if muxed := s.mux(ctx, entry); muxed != "" {
			report.Files = append(report.Files, FileOutcome{Name: entry.Name, Path: entry.Path, MuxedTo: muxed})
		}
	}
	return report, nil
}

// mux burns entry into its video and returns the output path, or "" when
// there is no video or ffmpeg failed. Failures are only logged.
func (s *TransService) mux(ctx context.Context, entry library.Entry) string {
	if entry.Media == "" {
		log.Debug("No video matches %s, not muxing", entry.Name)
		return ""
	}
	output, err := s.muxer.Burn(ctx, entry.Path, entry.Media)
	if err != nil {
		log.Warn("%v", WrapError(err, ErrMux, "burn subtitles").WithContext("file", entry.Name))
		return ""
	}
	return output
}

func (s *TransService) pruneChunkCache(ctx context.Context) {
	if s.store == nil || s.cfg.Store.ChunkCacheDays <= 0 {
		return
	}
	cutoff := s.now().AddDate(0, 0, -s.cfg.Store.ChunkCacheDays)
	n, err := s.store.PruneChunks(ctx, cutoff)
	if err != nil {
		log.Warn("%v", WrapError(err, ErrPersistence, "prune chunk cache"))
		return
	}
	if n > 0 {
		log.Debug("Pruned %d cached chunks older than %s", n, cutoff.Format(time.DateOnly))
	}
}

func (s *TransService) recordRun(ctx context.Context, report *Report) {
	if s.store == nil {
		return
	}
	run := persistence.RunRecord{
		ID:         report.RunID,
		Dir:        report.Dir,
		StartedAt:  report.StartedAt,
		FinishedAt: s.now(),
		Files:      len(report.Files),
		Translated: report.Count(StatusTranslated),
		Skipped:    report.Count(StatusUpToDate),
		Failed:     report.Count(StatusFailed),
		Muxed:      report.Muxed(),
	}
	if err := s.store.RecordRun(ctx, run); err != nil {
		log.Warn("%v", WrapError(err, ErrPersistence, "record run"))
	}
}

// RunShared is Run, except that a call made while another RunShared is
// still going waits for that run and returns its report with shared set.
func (s *TransService) RunShared(ctx context.Context) (report *Report, shared bool, err error) {
	v, err, shared := s.group.Do("run", func() (any, error) {
		return s.Run(ctx)
	})
	report, _ = v.(*Report)
	return report, shared, err
}

// Schedule registers RunShared on c. Triggers that fire while a run is
// still going join that run instead of starting another.
func (s *TransService) Schedule(ctx context.Context, c *cron.Cron, onReport func(*Report)) (cron.EntryID, error) {
	return c.AddFunc(s.cfg.Translate.CronExpr, func() {
		report, shared, err := s.RunShared(ctx)
		if shared {
			log.Debug("Trigger joined the run already in progress")
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Scheduled run failed: %v", err)
		}
		if report != nil && onReport != nil {
			onReport(report)
		}
	})
}
