package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"tgblog/internal/constants"
	"tgblog/internal/models"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidWindow     = models.ConfigError{Message: "grouping window must be positive"}
	ErrInvalidSampleRate = models.ConfigError{Message: "tracing sample rate must be between 0 and 1"}
	ErrInvalidPort       = models.ConfigError{Message: "server port must be between 1 and 65535"}
)

var knownMediaClasses = []models.MediaClass{
	models.MediaPhoto, models.MediaVideo, models.MediaVideoMessage, models.MediaAudio,
	models.MediaVoice, models.MediaAnimation, models.MediaSticker, models.MediaDocument,
}

// Default returns the configuration used when no file is given, with
// environment overrides applied.
func Default() *models.Config {
	var c models.Config
	applyDefaults(&c)
	applyEnvironmentOverrides(&c)
	return &c
}

// LoadConfig reads a JSON config file, or YAML when the extension is .yaml
// or .yml, fills in defaults and applies environment overrides.
func LoadConfig(path string) (*models.Config, error) {
	if path == "" || strings.ContainsRune(path, '\x00') {
		return nil, models.ConfigError{Message: fmt.Sprintf("invalid config path: %q", path)}
	}

	file, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var config models.Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(file, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		if err := json.Unmarshal(file, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}

	applyDefaults(&config)
	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(c *models.Config) {
	if c.Output.PostsFile == "" {
		c.Output.PostsFile = constants.DefaultPostsFile
	}

	if c.Grouping.WindowSec == 0 {
		c.Grouping.WindowSec = constants.DefaultGroupWindowSec
	}
	// An explicit empty list in the file disables exclusions.
	if c.Grouping.ExcludedKinds == nil {
		c.Grouping.ExcludedKinds = slices.Clone(constants.DefaultExcludedGroupKinds)
	}

	if c.Render.MentionBaseURL == "" {
		c.Render.MentionBaseURL = constants.DefaultMentionBaseURL
	}
	if c.Render.EmojiPrefix == "" {
		c.Render.EmojiPrefix = constants.DefaultEmojiPrefix
	}

	if c.Media.ConvertTimeoutSec <= 0 {
		c.Media.ConvertTimeoutSec = constants.DefaultConvertTimeoutSec
	}
	if c.Media.ConvertMaxFailures <= 0 {
		c.Media.ConvertMaxFailures = constants.DefaultConvertMaxFailures
	}
	if c.Media.ConvertCooldownSec <= 0 {
		c.Media.ConvertCooldownSec = constants.DefaultConvertCooldownSec
	}

	if c.Feed.Language == "" {
		c.Feed.Language = constants.DefaultFeedLanguage
	}

	if c.Server.Port == 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = constants.DefaultTracingServiceName
	}
	if c.Tracing.OTLPEndpoint == "" {
		c.Tracing.OTLPEndpoint = constants.DefaultTracingOTLPEndpointURL
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = constants.DefaultTracingSampleRate
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}

	if c.LogLevel == "" {
		c.LogLevel = constants.DefaultLogLevel
	}
}

func applyEnvironmentOverrides(c *models.Config) {
	if dir := os.Getenv("TGBLOG_EXPORT_DIR"); dir != "" {
		c.ExportDir = dir
	}
	if level := os.Getenv("TGBLOG_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if path := os.Getenv("TGBLOG_DB_PATH"); path != "" {
		c.Output.DatabasePath = path
	}
	if cmd := os.Getenv("TGBLOG_STICKER_CONVERTER"); cmd != "" {
		c.Media.StickerConverter = cmd
	}
	if link := os.Getenv("TGBLOG_FEED_LINK"); link != "" {
		c.Feed.Link = link
	}
}

func validate(c *models.Config) error {
	if c.Grouping.WindowSec < 0 {
		return ErrInvalidWindow
	}
	for _, kind := range c.Grouping.ExcludedKinds {
		if !slices.Contains(knownMediaClasses, models.MediaClass(kind)) {
			return models.ConfigError{Message: fmt.Sprintf("unknown media kind in grouping.excluded_kinds: %s", kind)}
		}
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return ErrInvalidSampleRate
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ErrInvalidPort
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid log level: %s", c.LogLevel)}
	}
	if c.Retry.MaxBackoffMs < c.Retry.InitialBackoffMs {
		return models.ConfigError{Message: "retry.max_backoff_ms must not be below retry.initial_backoff_ms"}
	}
	if filepath.IsAbs(c.Output.PostsFile) || strings.Contains(c.Output.PostsFile, "..") {
		return models.ConfigError{Message: fmt.Sprintf("output.posts_file must be a file name inside the export: %s", c.Output.PostsFile)}
	}

	return nil
}
