package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/execlogs/internal/domain"
)

func TestFileWriterExclusiveOwnership(t *testing.T) {
	fw := NewFileWriter()
	path := filepath.Join(t.TempDir(), "stdout")

	s, err := fw.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 1, fw.OpenCount())

	// a relative spelling of the same file is still the same file
	_, err = fw.Open(filepath.Join(filepath.Dir(path), ".", "stdout"))
	assert.ErrorIs(t, err, domain.ErrSinkBusy)

	require.NoError(t, s.Close())
	assert.Zero(t, fw.OpenCount())

	s2, err := fw.Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestSinkWritesSequentially(t *testing.T) {
	fw := NewFileWriter()
	path := filepath.Join(t.TempDir(), "stderr")
	require.NoError(t, os.WriteFile(path, []byte("stale content from an earlier run"), 0644))

	s, err := fw.Open(path)
	require.NoError(t, err)

	_, err = s.WriteString("first ")
	require.NoError(t, err)
	_, err = s.Write([]byte("second"))
	require.NoError(t, err)
	assert.EqualValues(t, 12, s.Written())

	require.NoError(t, s.Close())
	// Close is idempotent
	require.NoError(t, s.Close())

	_, err = s.WriteString("late")
	assert.ErrorIs(t, err, os.ErrClosed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first second", string(data))
}

func TestCreateEmpty(t *testing.T) {
	fw := NewFileWriter()
	path := filepath.Join(t.TempDir(), "stdout")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	require.NoError(t, fw.CreateEmpty(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
	assert.Zero(t, fw.OpenCount())
}

func TestOpenFailureReleasesPath(t *testing.T) {
	fw := NewFileWriter()
	path := filepath.Join(t.TempDir(), "nope", "stdout")

	_, err := fw.Open(path)
	require.Error(t, err)
	assert.Zero(t, fw.OpenCount())
}
