package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MimeLyc/bilingual-subs/internal/batch"
	"github.com/MimeLyc/bilingual-subs/internal/library"
	"github.com/MimeLyc/bilingual-subs/internal/persistence"
	"github.com/MimeLyc/bilingual-subs/internal/subtitle"
	"github.com/MimeLyc/bilingual-subs/pkg/log"
	"github.com/dustin/go-humanize"
)

// FileTranslator turns one caption file into its bilingual version in
// place. A failed file is never partially written.
type FileTranslator struct {
	batcher        *batch.Batcher
	store          Store
	detectLanguage bool
	runID          string
	now            func() time.Time
}

func NewFileTranslator(batcher *batch.Batcher, store Store, detectLanguage bool, runID string) *FileTranslator {
	return &FileTranslator{
		batcher:        batcher,
		store:          store,
		detectLanguage: detectLanguage,
		runID:          runID,
		now:            time.Now,
	}
}

// Translate processes entry and reports the outcome. The returned error is
// a *Error and is also stored in the outcome.
func (t *FileTranslator) Translate(ctx context.Context, entry library.Entry) (FileOutcome, error) {
	started := t.now()
	outcome := FileOutcome{
		Name: entry.Name,
		Path: entry.Path,
		Hint: entry.LangHint,
	}
	fail := func(err *Error) (FileOutcome, error) {
		err.WithContext("file", entry.Name)
		outcome.Status = StatusFailed
		outcome.Err = err
		outcome.Duration = t.now().Sub(started)
		return outcome, err
	}

	raw, err := os.ReadFile(entry.Path)
	if err != nil {
		return fail(WrapError(err, ErrFileRead, "read subtitle"))
	}

	if t.store != nil {
		done, err := t.alreadyTranslated(ctx, entry.Path, raw)
		if err != nil {
			log.Warn("Ledger lookup for %s failed: %v", entry.Name, err)
		} else if done {
			log.Info("Skipping %s: already bilingual", entry.Name)
			outcome.Status = StatusUpToDate
			return outcome, nil
		}
	}

	stream, err := subtitle.ParseBytes(raw)
	if err != nil {
		return fail(WrapError(err, classify(err), "load subtitle"))
	}
	outcome.Captions = stream.Len()

	if outcome.Hint == "" && t.detectLanguage {
		outcome.Hint = subtitle.DetectLanguage(stream)
		log.Debug("Detected language %q for %s", outcome.Hint, entry.Name)
	}

	res, err := t.batcher.Translate(ctx, stream, outcome.Hint)
	outcome.Target = res.Target.String()
	outcome.Segments = res.Segments
	outcome.Chunks = res.Chunks
	outcome.CachedChunks = res.CachedChunks
	outcome.Bytes = res.Bytes
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return fail(WrapError(err, ErrTranslation, "translation cancelled"))
		}
		return fail(WrapError(err, classify(err), "translate subtitle"))
	}

	if err := subtitle.WriteFile(entry.Path, stream); err != nil {
		return fail(WrapError(err, ErrFileWrite, "write bilingual subtitle"))
	}

	if t.store != nil {
		if err := t.store.RecordLedger(ctx, persistence.LedgerEntry{
			Path:         entry.Path,
			OutputSHA256: sha256Hex([]byte(stream.Render())),
			Target:       outcome.Target,
			RunID:        t.runID,
			CaptionCount: stream.Len(),
			TranslatedAt: t.now(),
		}); err != nil {
			log.Warn("%v", WrapError(err, ErrPersistence, "record ledger").WithContext("file", entry.Name))
		}
	}

	outcome.Status = StatusTranslated
	outcome.Duration = t.now().Sub(started)
	log.Info("Translated %s to %s: %d captions, %d segments, %s in %d chunks (%d cached) in %s",
		entry.Name, outcome.Target, outcome.Captions, outcome.Segments,
		humanize.Bytes(uint64(outcome.Bytes)), outcome.Chunks, outcome.CachedChunks, outcome.Duration.Round(time.Millisecond))
	return outcome, nil
}

// alreadyTranslated reports whether raw is exactly the output a previous
// run wrote to path.
func (t *FileTranslator) alreadyTranslated(ctx context.Context, path string, raw []byte) (bool, error) {
	entry, ok, err := t.store.LookupLedger(ctx, path)
	if err != nil || !ok {
		return false, err
	}
	return entry.OutputSHA256 == sha256Hex(raw), nil
}

// EntryForPath builds a scan entry for a single caption file.
func EntryForPath(path string) (library.Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return library.Entry{}, WrapError(err, ErrFileRead, "stat subtitle")
	}
	if info.IsDir() || !library.IsSubtitle(path) {
		return library.Entry{}, NewError(ErrConfig, fmt.Sprintf("%s is not an %s file", path, library.SubtitleExt))
	}
	name := filepath.Base(path)
	stem, hint := library.SplitName(name)
	return library.Entry{
		Path:     path,
		Name:     name,
		Stem:     stem,
		LangHint: hint,
		Size:     info.Size(),
	}, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
