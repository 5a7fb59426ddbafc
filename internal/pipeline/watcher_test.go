package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"tgblog/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostsWatcher_LoadAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	require.NoError(t, WritePosts(path, []models.Post{{ID: 1, Date: "d", Text: "one"}, {ID: 5, Date: "d"}}, false))

	logger, _ := testLogger()
	w := NewPostsWatcher(path, 0, logger)
	require.NoError(t, w.Load())

	assert.Len(t, w.Posts(), 2)
	p, ok := w.Post(1)
	require.True(t, ok)
	assert.Equal(t, "one", p.Text)
	_, ok = w.Post(2)
	assert.False(t, ok)
}

func TestPostsWatcher_LoadMissing(t *testing.T) {
	logger, _ := testLogger()
	w := NewPostsWatcher(filepath.Join(t.TempDir(), "posts.json"), 0, logger)
	assert.Error(t, w.Load())
	assert.Empty(t, w.Posts())
}

func TestPostsWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	require.NoError(t, WritePosts(path, []models.Post{{ID: 1, Date: "d"}}, false))

	logger, logs := testLogger()
	w := NewPostsWatcher(path, 10*time.Millisecond, logger)
	require.NoError(t, w.Load())

	var calls atomic.Int32
	w.OnChange(func(posts []models.Post) {
		calls.Add(1)
	})
	w.OnChange(func([]models.Post) { panic("boom") })

	// Unchanged file is not reloaded
	w.poll()
	assert.Equal(t, int32(0), calls.Load())

	require.NoError(t, WritePosts(path, []models.Post{{ID: 1, Date: "d"}, {ID: 2, Date: "d"}}, false))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(w.Posts()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, logs.String(), "Posts change callback panicked")
}

func TestPostsWatcher_BadReloadKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	require.NoError(t, WritePosts(path, []models.Post{{ID: 1, Date: "d"}}, false))

	logger, logs := testLogger()
	w := NewPostsWatcher(path, 0, logger)
	require.NoError(t, w.Load())

	require.NoError(t, os.WriteFile(path, []byte("[{"), 0644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	w.poll()
	assert.Len(t, w.Posts(), 1)
	assert.Contains(t, logs.String(), "Failed to reload posts file")
}
