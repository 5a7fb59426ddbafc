package config

import (
	"os"
	"path/filepath"
	"testing"

	"tgblog/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, "posts.json", c.Output.PostsFile)
	assert.Equal(t, 5, c.Grouping.WindowSec)
	assert.Equal(t, []string{"sticker", "video"}, c.Grouping.ExcludedKinds)
	assert.Equal(t, "https://t.me/", c.Render.MentionBaseURL)
	assert.Equal(t, "emoji/", c.Render.EmojiPrefix)
	assert.Equal(t, 120, c.Media.ConvertTimeoutSec)
	assert.Equal(t, 3, c.Media.ConvertMaxFailures)
	assert.Equal(t, 300, c.Media.ConvertCooldownSec)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "tgblog", c.Tracing.ServiceName)
	assert.Equal(t, 1.0, c.Tracing.SampleRate)
	assert.Equal(t, 3, c.Retry.MaxAttempts)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "en", c.Feed.Language)
}

func TestLoadConfig(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		path := writeConfig(t, "config.json", `{
			"export_dir": "/data/export",
			"output": {"posts_file": "feed.json", "indent": true, "database_path": "posts.db"},
			"grouping": {"window_sec": 10, "excluded_kinds": ["sticker"]},
			"feed": {"title": "My Channel", "link": "https://blog.example.com"},
			"retry": {"initialBackoffMs": 100, "maxBackoffMs": 1000, "maxAttempts": 5},
			"log_level": "debug"
		}`)

		c, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "/data/export", c.ExportDir)
		assert.Equal(t, "feed.json", c.Output.PostsFile)
		assert.True(t, c.Output.Indent)
		assert.Equal(t, "posts.db", c.Output.DatabasePath)
		assert.Equal(t, 10, c.Grouping.WindowSec)
		assert.Equal(t, []string{"sticker"}, c.Grouping.ExcludedKinds)
		assert.Equal(t, "My Channel", c.Feed.Title)
		assert.Equal(t, 100, c.Retry.InitialBackoffMs)
		assert.Equal(t, 5, c.Retry.MaxAttempts)
		assert.Equal(t, "debug", c.LogLevel)
		assert.Equal(t, 8080, c.Server.Port)
	})

	t.Run("yaml", func(t *testing.T) {
		path := writeConfig(t, "config.yaml", `
export_dir: ./export
grouping:
  window_sec: 3
render:
  mention_base_url: https://example.org/
server:
  port: 9000
retry:
  initial_backoff_ms: 50
`)

		c, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "./export", c.ExportDir)
		assert.Equal(t, 3, c.Grouping.WindowSec)
		assert.Equal(t, "https://example.org/", c.Render.MentionBaseURL)
		assert.Equal(t, 9000, c.Server.Port)
		assert.Equal(t, 50, c.Retry.InitialBackoffMs)
	})

	t.Run("empty exclusion list is kept", func(t *testing.T) {
		path := writeConfig(t, "config.json", `{"grouping": {"excluded_kinds": []}}`)
		c, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Empty(t, c.Grouping.ExcludedKinds)
		assert.NotNil(t, c.Grouping.ExcludedKinds)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := LoadConfig("")
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "config.json", `{"grouping":`))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "config.yml", "grouping: [unclosed"))
		assert.Error(t, err)
	})
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
	}{
		{name: "negative window", body: `{"grouping": {"window_sec": -1}}`, err: ErrInvalidWindow},
		{name: "sample rate", body: `{"tracing": {"sample_rate": 1.5}}`, err: ErrInvalidSampleRate},
		{name: "port", body: `{"server": {"port": 70000}}`, err: ErrInvalidPort},
		{name: "unknown kind", body: `{"grouping": {"excluded_kinds": ["hologram"]}}`},
		{name: "log level", body: `{"log_level": "loud"}`},
		{name: "backoff order", body: `{"retry": {"initialBackoffMs": 5000, "maxBackoffMs": 10}}`},
		{name: "posts file outside export", body: `{"output": {"posts_file": "../posts.json"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, "config.json", tt.body))
			require.Error(t, err)
			var cfgErr models.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
			if tt.err != nil {
				assert.Equal(t, tt.err, err)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("TGBLOG_EXPORT_DIR", "/env/export")
	t.Setenv("TGBLOG_LOG_LEVEL", "warn")
	t.Setenv("TGBLOG_DB_PATH", "/env/posts.db")
	t.Setenv("TGBLOG_STICKER_CONVERTER", "/usr/local/bin/lottie")
	t.Setenv("TGBLOG_FEED_LINK", "https://env.example.com")

	c, err := LoadConfig(writeConfig(t, "config.json", `{"export_dir": "/file/export", "log_level": "debug"}`))
	require.NoError(t, err)
	assert.Equal(t, "/env/export", c.ExportDir)
	assert.Equal(t, "warn", c.LogLevel)
	assert.Equal(t, "/env/posts.db", c.Output.DatabasePath)
	assert.Equal(t, "/usr/local/bin/lottie", c.Media.StickerConverter)
	assert.Equal(t, "https://env.example.com", c.Feed.Link)

	d := Default()
	assert.Equal(t, "/env/export", d.ExportDir)
}

func TestEnvironmentOverrides_InvalidLevel(t *testing.T) {
	t.Setenv("TGBLOG_LOG_LEVEL", "chatty")
	_, err := LoadConfig(writeConfig(t, "config.json", `{}`))
	assert.Error(t, err)
}
