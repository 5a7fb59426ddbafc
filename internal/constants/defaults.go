package constants

// Default grouping heuristic values. The export platform batches album
// uploads within a few seconds of each other; stickers and videos are
// always posted on their own.
const (
	DefaultGroupWindowSec = 5
)

var DefaultExcludedGroupKinds = []string{"sticker", "video"}

// Default rendering values
const (
	DefaultMentionBaseURL = "https://t.me/"
	DefaultEmojiPrefix    = "emoji/"
)

// Default file names inside an export directory
const (
	DefaultExportFile = "result.json"
	DefaultPostsFile  = "posts.json"
	DefaultRSSFile    = "rss.xml"
	DefaultAtomFile   = "atom.xml"
)

// Default retry and timeout values
const (
	DefaultRetryBackoffMs         = 200
	DefaultMaxBackoffMs           = 5000
	DefaultMaxAttempts            = 3
	DefaultConvertTimeoutSec      = 120
	DefaultConvertMaxFailures     = 3
	DefaultConvertCooldownSec     = 300
	DefaultServerPort             = 8080
	DefaultServerReadTimeoutSec   = 15
	DefaultServerWriteTimeoutSec  = 15
	DefaultServerIdleTimeoutSec   = 60
	DefaultAPIPageSize            = 50
	MaxAPIPageSize                = 500
	DefaultGracefulShutdownSec    = 10
	DefaultTracingShutdownSec     = 5
	DefaultTracingSampleRate      = 1.0
	DefaultTracingServiceName     = "tgblog"
	DefaultTracingOTLPEndpointURL = "localhost:4318"
)

// Default logging and feed values
const (
	DefaultLogLevel     = "info"
	DefaultFeedLanguage = "en"
)

// MissingFilePlaceholder is what the exporter writes instead of a path when
// the file was not downloaded.
const MissingFilePlaceholder = "(File not included. Change data exporting settings to download.)"

// File permission constants
const (
	DefaultFilePermissions      = 0644
	DefaultDirectoryPermissions = 0750
)
