package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"tgblog/internal/constants"
	"tgblog/internal/errors"
	"tgblog/internal/models"
)

// WritePosts encodes posts as a JSON array and atomically replaces path.
// HTML in rendered text is written as is.
func WritePosts(path string, posts []models.Post, indent bool) error {
	if posts == nil {
		posts = []models.Post{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(posts); err != nil {
		return errors.Wrap(err, errors.ErrCodeOutputWrite, "failed to encode posts")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeOutputWrite, "failed to create temp file").
			WithContext(constants.LogFieldFilePath, path)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		cleanup()
		return errors.Wrap(err, errors.ErrCodeOutputWrite, "failed to write posts").
			WithContext(constants.LogFieldFilePath, path)
	}
	if err := tmp.Chmod(constants.DefaultFilePermissions); err != nil {
		cleanup()
		return errors.Wrap(err, errors.ErrCodeOutputWrite, "failed to set permissions").
			WithContext(constants.LogFieldFilePath, path)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrCodeOutputWrite, "failed to close temp file").
			WithContext(constants.LogFieldFilePath, path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrCodeOutputWrite, "failed to replace posts file").
			WithContext(constants.LogFieldFilePath, path)
	}
	return nil
}

// ReadPosts loads a posts.json written by WritePosts.
func ReadPosts(path string) ([]models.Post, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to read posts file").
			WithContext(constants.LogFieldFilePath, path)
	}
	var posts []models.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to parse posts file").
			WithContext(constants.LogFieldFilePath, path)
	}
	return posts, nil
}
