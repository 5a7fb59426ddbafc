package constants

import "strings"

// MimeTypes maps file extensions to their corresponding MIME types
var MimeTypes = map[string]string{
	// Image formats
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".apng": "image/apng",

	// Video formats
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",

	// Document formats
	".pdf": "application/pdf",
	".zip": "application/zip",
	".txt": "text/plain",

	// Audio formats
	".ogg": "audio/ogg",
	".mp3": "audio/mpeg",
	".m4a": "audio/mp4",

	// Stickers
	".tgs": "application/x-tgsticker",
}

// DefaultMimeType is the fallback MIME type for unknown file extensions
const DefaultMimeType = "application/octet-stream"

// MimeTypeForExtension returns the MIME type registered for ext, or DefaultMimeType.
func MimeTypeForExtension(ext string) string {
	if mt, ok := MimeTypes[strings.ToLower(ext)]; ok {
		return mt
	}
	return DefaultMimeType
}

// IsImageMimeType reports whether mt names an image format.
func IsImageMimeType(mt string) bool {
	return strings.HasPrefix(strings.ToLower(mt), "image/")
}
