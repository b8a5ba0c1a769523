package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile renders the stream and atomically replaces the file at path.
// An existing file keeps its permission bits.
func WriteFile(path string, s *Stream) error {
	if s == nil {
		return fmt.Errorf("subtitle stream is nil")
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.WriteString(s.Render()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write subtitle: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod subtitle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close subtitle: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
