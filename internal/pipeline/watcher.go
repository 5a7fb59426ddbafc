package pipeline

import (
	"context"
	"os"
	"sync"
	"time"

	"tgblog/internal/constants"
	"tgblog/internal/models"

	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is how often PostsWatcher checks the posts file.
const DefaultPollInterval = 2 * time.Second

// PostsWatcher keeps the latest contents of a posts file in memory and
// reloads it when the file changes.
type PostsWatcher struct {
	path      string
	interval  time.Duration
	logger    *logrus.Logger
	mu        sync.RWMutex
	posts     []models.Post
	byID      map[int64]int
	modTime   time.Time
	callbacks []func([]models.Post)
}

// NewPostsWatcher creates a watcher for path. A non-positive interval uses
// DefaultPollInterval.
func NewPostsWatcher(path string, interval time.Duration, logger *logrus.Logger) *PostsWatcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &PostsWatcher{
		path:     path,
		interval: interval,
		logger:   logger,
		byID:     map[int64]int{},
	}
}

// Load reads the posts file once.
func (w *PostsWatcher) Load() error {
	stat, err := os.Stat(w.path)
	if err != nil {
		return err
	}
	posts, err := ReadPosts(w.path)
	if err != nil {
		return err
	}
	w.store(posts, stat.ModTime())
	return nil
}

// Start polls the posts file until ctx is done. Load must have succeeded
// for the file to be served before the first change.
func (w *PostsWatcher) Start(ctx context.Context) {
	w.logger.WithField(constants.LogFieldFilePath, w.path).Info("Posts watcher started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Posts watcher stopping")
			return

		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *PostsWatcher) poll() {
	stat, err := os.Stat(w.path)
	if err != nil {
		w.logger.WithError(err).Warn("Failed to stat posts file")
		return
	}

	w.mu.RLock()
	last := w.modTime
	w.mu.RUnlock()
	if !stat.ModTime().After(last) {
		return
	}

	posts, err := ReadPosts(w.path)
	if err != nil {
		w.logger.WithError(err).Error("Failed to reload posts file")
		return
	}
	w.store(posts, stat.ModTime())

	w.logger.WithFields(logrus.Fields{
		constants.LogFieldFilePath: w.path,
		constants.LogFieldPosts:    len(posts),
	}).Info("Posts reloaded")

	w.mu.RLock()
	callbacks := make([]func([]models.Post), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.WithField("panic", r).Error("Posts change callback panicked")
				}
			}()
			cb(posts)
		}()
	}
}

func (w *PostsWatcher) store(posts []models.Post, modTime time.Time) {
	byID := make(map[int64]int, len(posts))
	for i, p := range posts {
		byID[p.ID] = i
	}

	w.mu.Lock()
	w.posts = posts
	w.byID = byID
	w.modTime = modTime
	w.mu.Unlock()
}

// Posts returns the current posts. The slice must not be modified.
func (w *PostsWatcher) Posts() []models.Post {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.posts
}

// Post returns the post with the given id.
func (w *PostsWatcher) Post(id int64) (models.Post, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	i, ok := w.byID[id]
	if !ok {
		return models.Post{}, false
	}
	return w.posts[i], true
}

// OnChange registers a callback run after every reload.
func (w *PostsWatcher) OnChange(cb func([]models.Post)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}
