package models

import (
	"unicode/utf16"
)

// AnnotationKind is the closed set of text annotations understood by the renderer.
type AnnotationKind string

const (
	KindStrikethrough AnnotationKind = "strikethrough"
	KindCode          AnnotationKind = "code"
	KindItalic        AnnotationKind = "italic"
	KindUnderline     AnnotationKind = "underline"
	KindBold          AnnotationKind = "bold"
	KindSpoiler       AnnotationKind = "spoiler"
	KindLink          AnnotationKind = "link"
	KindTextLink      AnnotationKind = "text_link"
	KindHashtag       AnnotationKind = "hashtag"
	KindMention       AnnotationKind = "mention"
	KindCustomEmoji   AnnotationKind = "custom_emoji"
	KindCodeBlock     AnnotationKind = "code_block"
	KindQuote         AnnotationKind = "quote"
	KindUnknown       AnnotationKind = "unknown"
)

// ParseAnnotationKind maps a source entity type to an AnnotationKind.
// Source aliases ("pre", "blockquote") are folded into their kind and
// anything unrecognised becomes KindUnknown.
func ParseAnnotationKind(s string) AnnotationKind {
	switch s {
	case "strikethrough":
		return KindStrikethrough
	case "code":
		return KindCode
	case "italic":
		return KindItalic
	case "underline":
		return KindUnderline
	case "bold":
		return KindBold
	case "spoiler":
		return KindSpoiler
	case "link", "url":
		return KindLink
	case "text_link":
		return KindTextLink
	case "hashtag":
		return KindHashtag
	case "mention":
		return KindMention
	case "custom_emoji":
		return KindCustomEmoji
	case "pre", "code_block":
		return KindCodeBlock
	case "blockquote", "quote":
		return KindQuote
	default:
		return KindUnknown
	}
}

// Annotation marks a span of text. Offset and Length count UTF-16 code units.
type Annotation struct {
	Offset int            `json:"offset"`
	Length int            `json:"length"`
	Kind   AnnotationKind `json:"kind"`
	Extra  string         `json:"extra,omitempty"`
}

// TextRun is one piece of message text. A run with an empty Kind is literal text.
type TextRun struct {
	Text  string         `json:"text"`
	Kind  AnnotationKind `json:"kind,omitempty"`
	Extra string         `json:"extra,omitempty"`
}

// IsLiteral reports whether the run carries no annotation.
func (r TextRun) IsLiteral() bool {
	return r.Kind == ""
}

// Text is message text as an ordered sequence of runs.
type Text struct {
	Runs []TextRun `json:"runs,omitempty"`
}

// PlainString wraps a bare string as literal text.
func PlainString(s string) Text {
	if s == "" {
		return Text{}
	}
	return Text{Runs: []TextRun{{Text: s}}}
}

// IsEmpty reports whether the text has no characters at all.
func (t Text) IsEmpty() bool {
	for _, r := range t.Runs {
		if r.Text != "" {
			return false
		}
	}
	return true
}

// Flatten joins the runs into one base string and returns the annotations
// of every non-literal run, positioned in UTF-16 units over that string.
func (t Text) Flatten() (string, []Annotation) {
	var (
		base   []byte
		anns   []Annotation
		offset int
	)
	for _, r := range t.Runs {
		length := UTF16Len(r.Text)
		if !r.IsLiteral() {
			anns = append(anns, Annotation{
				Offset: offset,
				Length: length,
				Kind:   r.Kind,
				Extra:  r.Extra,
			})
		}
		base = append(base, r.Text...)
		offset += length
	}
	return string(base), anns
}

// UTF16Len returns the length of s in UTF-16 code units.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// MediaClass classifies the single media item a message may carry.
type MediaClass string

const (
	MediaPhoto        MediaClass = "photo"
	MediaVideo        MediaClass = "video"
	MediaVideoMessage MediaClass = "video_message"
	MediaAudio        MediaClass = "audio"
	MediaVoice        MediaClass = "voice"
	MediaAnimation    MediaClass = "animation"
	MediaSticker      MediaClass = "sticker"
	MediaDocument     MediaClass = "document"
)

// IsVideo reports whether the class renders as an inline video.
func (c MediaClass) IsVideo() bool {
	return c == MediaVideo || c == MediaVideoMessage
}

// MediaItem describes an attachment after media resolution.
type MediaItem struct {
	Kind         MediaClass `json:"kind,omitempty"`
	URL          string     `json:"url,omitempty"`
	Thumb        string     `json:"thumb,omitempty"`
	MimeType     string     `json:"mime_type,omitempty"`
	Size         *int64     `json:"size,omitempty"`
	Width        *int       `json:"width,omitempty"`
	Height       *int       `json:"height,omitempty"`
	Duration     *int       `json:"duration,omitempty"`
	Title        string     `json:"title,omitempty"`
	Performer    string     `json:"performer,omitempty"`
	StickerEmoji string     `json:"sticker_emoji,omitempty"`
	OriginalName string     `json:"original_name,omitempty"`
}

// RawMessage is one unprocessed record from the message source.
type RawMessage struct {
	ID            int64
	Date          string
	Timestamp     int64
	Text          Text
	Media         *MediaItem
	ReplyToID     *int64
	Author        string
	ForwardedFrom string
	Views         *int

	// GroupID is assigned by grouping.Infer only.
	GroupID *int64
}
