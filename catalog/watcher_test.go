package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherAddsOnlyDirectories(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(root)
	require.NoError(t, err)
	defer w.Close()

	track := filepath.Join(root, "track.mp3")
	require.NoError(t, os.WriteFile(track, []byte("x"), 0644))
	sub := filepath.Join(root, "album")
	require.NoError(t, os.Mkdir(sub, 0755))

	require.Eventually(t, func() bool {
		for _, p := range w.fsw.WatchList() {
			if p == sub {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "new directory not watched")

	// The file's create event was processed before the directory's, so
	// by now it would be in the list if files picked up watches.
	assert.NotContains(t, w.fsw.WatchList(), track)
}
