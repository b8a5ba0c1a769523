package persistence

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		version := migrationVersion(entry.Name())
		if entry.IsDir() || version <= 0 {
			continue
		}
		var applied int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if applied > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	end := strings.IndexFunc(name, func(r rune) bool { return r < '0' || r > '9' })
	if end < 0 {
		end = len(name)
	}
	n, _ := strconv.Atoi(name[:end])
	return n
}

// LookupLedger returns the ledger entry for a caption file path.
func (s *SQLiteStore) LookupLedger(ctx context.Context, filePath string) (LedgerEntry, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT path, output_sha256, target_lang, run_id, caption_count, translated_at
		 FROM translated_files
		 WHERE path = ?`,
		filePath,
	)

	var ret LedgerEntry
	if err := row.Scan(&ret.Path, &ret.OutputSHA256, &ret.Target, &ret.RunID, &ret.CaptionCount, &ret.TranslatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LedgerEntry{}, false, nil
		}
		return LedgerEntry{}, false, err
	}
	return ret, true, nil
}

func (s *SQLiteStore) RecordLedger(ctx context.Context, entry LedgerEntry) error {
	translatedAt := entry.TranslatedAt.UTC()
	if translatedAt.IsZero() {
		translatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO translated_files (path, output_sha256, target_lang, run_id, caption_count, translated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			output_sha256=excluded.output_sha256,
			target_lang=excluded.target_lang,
			run_id=excluded.run_id,
			caption_count=excluded.caption_count,
			translated_at=excluded.translated_at`,
		entry.Path,
		entry.OutputSHA256,
		entry.Target,
		entry.RunID,
		entry.CaptionCount,
		translatedAt,
	)
	return err
}

// LoadChunk returns a cached chunk translation by cache key.
func (s *SQLiteStore) LoadChunk(ctx context.Context, key string) (string, bool, error) {
	var translated string
	err := s.db.QueryRowContext(ctx, `SELECT translated FROM chunk_cache WHERE cache_key = ?`, key).Scan(&translated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return translated, true, nil
}

func (s *SQLiteStore) SaveChunk(ctx context.Context, key, target, translated string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO chunk_cache (cache_key, target_lang, translated, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
			translated=excluded.translated,
			updated_at=excluded.updated_at`,
		key,
		target,
		translated,
		time.Now().UTC(),
	)
	return err
}

// PruneChunks removes cached chunks last written before cutoff.
func (s *SQLiteStore) PruneChunks(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunk_cache WHERE updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run RunRecord) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (id, dir, started_at, finished_at, files, translated, skipped, failed, muxed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Dir,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		run.Files,
		run.Translated,
		run.Skipped,
		run.Failed,
		run.Muxed,
	)
	return err
}

// ListRuns returns the most recent runs first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, dir, started_at, finished_at, files, translated, skipped, failed, muxed
		 FROM runs
		 ORDER BY started_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]RunRecord, 0)
	for rows.Next() {
		var item RunRecord
		if err := rows.Scan(
			&item.ID,
			&item.Dir,
			&item.StartedAt,
			&item.FinishedAt,
			&item.Files,
			&item.Translated,
			&item.Skipped,
			&item.Failed,
			&item.Muxed,
		); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}
