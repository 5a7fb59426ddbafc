package models

// Config holds the application configuration
type Config struct {
	ExportDir string         `json:"export_dir" yaml:"export_dir"`
	Output    OutputConfig   `json:"output" yaml:"output"`
	Grouping  GroupingConfig `json:"grouping" yaml:"grouping"`
	Render    RenderConfig   `json:"render" yaml:"render"`
	Media     MediaConfig    `json:"media" yaml:"media"`
	Feed      FeedConfig     `json:"feed" yaml:"feed"`
	Server    ServerConfig   `json:"server" yaml:"server"`
	Tracing   TracingConfig  `json:"tracing" yaml:"tracing"`
	Retry     RetryConfig    `json:"retry" yaml:"retry"`
	LogLevel  string         `json:"log_level" yaml:"log_level"`
}

// OutputConfig controls where the post artifact is written
type OutputConfig struct {
	PostsFile    string `json:"posts_file" yaml:"posts_file"`
	Indent       bool   `json:"indent" yaml:"indent"`
	DatabasePath string `json:"database_path" yaml:"database_path"`
}

// GroupingConfig tunes the media group heuristic
type GroupingConfig struct {
	WindowSec     int      `json:"window_sec" yaml:"window_sec"`
	ExcludedKinds []string `json:"excluded_kinds" yaml:"excluded_kinds"`
}

// RenderConfig holds link targets used when rendering annotations
type RenderConfig struct {
	MentionBaseURL string `json:"mention_base_url" yaml:"mention_base_url"`
	EmojiPrefix    string `json:"emoji_prefix" yaml:"emoji_prefix"`
}

// MediaConfig holds media related configurations
type MediaConfig struct {
	StickerConverter     string   `json:"sticker_converter" yaml:"sticker_converter"`
	StickerConverterArgs []string `json:"sticker_converter_args" yaml:"sticker_converter_args"`
	ConvertTimeoutSec    int      `json:"convert_timeout_sec" yaml:"convert_timeout_sec"`
	ConvertMaxFailures   int      `json:"convert_max_failures" yaml:"convert_max_failures"`
	ConvertCooldownSec   int      `json:"convert_cooldown_sec" yaml:"convert_cooldown_sec"`
}

// FeedConfig is the channel metadata written into RSS and Atom feeds
type FeedConfig struct {
	Title       string `json:"title" yaml:"title"`
	Link        string `json:"link" yaml:"link"`
	Description string `json:"description" yaml:"description"`
	Language    string `json:"language" yaml:"language"`
	ImageURL    string `json:"image_url" yaml:"image_url"`
}

// ServerConfig configures the preview server
type ServerConfig struct {
	Port             int  `json:"port" yaml:"port"`
	ReadTimeoutSec   int  `json:"read_timeout_sec" yaml:"read_timeout_sec"`
	WriteTimeoutSec  int  `json:"write_timeout_sec" yaml:"write_timeout_sec"`
	WatchIntervalSec int  `json:"watch_interval_sec" yaml:"watch_interval_sec"`
	TrustProxy       bool `json:"trust_proxy" yaml:"trust_proxy"`
}

// TracingConfig contains OpenTelemetry configuration
type TracingConfig struct {
	ServiceName  string  `json:"service_name" yaml:"service_name"`
	Environment  string  `json:"environment" yaml:"environment"`
	OTLPEndpoint string  `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	SampleRate   float64 `json:"sample_rate" yaml:"sample_rate"`
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	UseStdout    bool    `json:"use_stdout" yaml:"use_stdout"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs" yaml:"initial_backoff_ms"`
	MaxBackoffMs     int `json:"maxBackoffMs" yaml:"max_backoff_ms"`
	MaxAttempts      int `json:"maxAttempts" yaml:"max_attempts"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
