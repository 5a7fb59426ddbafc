package constants

// Standard log field names. Use these exact names in WithFields calls so
// entries from every stage can be correlated.
const (
	// Core identifiers
	LogFieldRunID     = "run_id"
	LogFieldMessageID = "message_id"
	LogFieldPostID    = "post_id"
	LogFieldGroupID   = "group_id"
	LogFieldReplyToID = "reply_to_id"

	// Operation fields
	LogFieldComponent = "component"
	LogFieldOperation = "operation"
	LogFieldStage     = "stage"

	// Performance and counts
	LogFieldDuration = "duration_ms"
	LogFieldCount    = "count"
	LogFieldMessages = "messages"
	LogFieldGroups   = "groups"
	LogFieldPosts    = "posts"

	// File and media
	LogFieldFilePath  = "file_path"
	LogFieldMediaRef  = "media_ref"
	LogFieldMediaType = "media_type"
	LogFieldFileSize  = "file_size"

	// HTTP
	LogFieldMethod     = "method"
	LogFieldPath       = "path"
	LogFieldStatusCode = "status_code"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldRequestID  = "request_id"
	LogFieldTraceID    = "trace_id"
	LogFieldSize       = "size"
)
