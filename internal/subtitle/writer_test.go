package subtitle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile_ReplacesAndKeepsMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movie.en.srt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	s := NewStream(
		Caption{Index: 1, Start: Timestamp{Seconds: 1}, End: Timestamp{Seconds: 2}, Text: "你好\nHello"},
		Caption{Index: 2, Start: Timestamp{Seconds: 3}, End: Timestamp{Seconds: 4}, Text: "World"},
	)
	require.NoError(t, WriteFile(path, s))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\n00:00:01,000 --> 00:00:02,000\n你好\nHello\n\n2\n00:00:03,000 --> 00:00:04,000\nWorld\n\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestWriteFile_NilStream(t *testing.T) {
	assert.Error(t, WriteFile(filepath.Join(t.TempDir(), "x.srt"), nil))
}
