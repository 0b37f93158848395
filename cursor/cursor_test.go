package cursor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	m := NewMemory()

	got, err := m.Load("feed")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, m.Save("feed", "17"))
	require.NoError(t, m.Save("other", "3"))

	got, err = m.Load("feed")
	require.NoError(t, err)
	assert.Equal(t, "17", got)

	// Saves overwrite.
	require.NoError(t, m.Save("feed", "18"))
	got, err = m.Load("feed")
	require.NoError(t, err)
	assert.Equal(t, "18", got)
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "cursors.json")
	f := NewFile(path)

	got, err := f.Load("feed")
	require.NoError(t, err)
	assert.Empty(t, got, "missing file means no saved position")

	require.NoError(t, f.Save("feed", "17"))
	require.NoError(t, f.Save("other", "3"))

	got, err = f.Load("feed")
	require.NoError(t, err)
	assert.Equal(t, "17", got)

	// Positions survive a new instance, as after a process restart.
	f2 := NewFile(path)
	got, err = f2.Load("feed")
	require.NoError(t, err)
	assert.Equal(t, "17", got)
	got, err = f2.Load("other")
	require.NoError(t, err)
	assert.Equal(t, "3", got)
}
