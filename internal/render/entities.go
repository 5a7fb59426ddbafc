// Package render turns annotated message text into inline HTML markup.
package render

import (
	"cmp"
	"html"
	"slices"
	"strings"
	"unicode/utf16"

	"tgblog/internal/constants"
	"tgblog/internal/models"
)

// Options tunes the link targets produced by a Renderer.
type Options struct {
	// MentionBaseURL is prefixed to a mentioned username.
	MentionBaseURL string
	// EmojiPrefix is prefixed to custom emoji ids that are not already paths.
	EmojiPrefix string
}

// Renderer inserts markup for annotations. It is safe for concurrent use.
type Renderer struct {
	opts Options
}

// New creates a Renderer, filling unset options with defaults.
func New(opts Options) *Renderer {
	if opts.MentionBaseURL == "" {
		opts.MentionBaseURL = constants.DefaultMentionBaseURL
	}
	if opts.EmojiPrefix == "" {
		opts.EmojiPrefix = constants.DefaultEmojiPrefix
	}
	return &Renderer{opts: opts}
}

var defaultRenderer = New(Options{})

// Entities renders base with the default options.
func Entities(base string, anns []models.Annotation) string {
	return defaultRenderer.Entities(base, anns)
}

// Text renders annotated text with the default options.
func Text(t models.Text) string {
	return defaultRenderer.Text(t)
}

// Text flattens t and renders it.
func (r *Renderer) Text(t models.Text) string {
	base, anns := t.Flatten()
	return r.Entities(base, anns)
}

// insertion is one tag to splice into the text. seq is its position in the
// event list and breaks ties between tags at the same offset.
type insertion struct {
	tag    string
	offset int
	seq    int
}

// Entities inserts open/close tags for each annotation into base.
//
// Tags are spliced from the highest offset to the lowest so earlier offsets
// stay valid. Tags sharing an offset are applied in reverse input order.
// Crossing annotations produce crossing tags; they are not repaired.
// Annotations with no markup leave their text untouched.
func (r *Renderer) Entities(base string, anns []models.Annotation) string {
	if len(anns) == 0 {
		return base
	}

	units := utf16.Encode([]rune(base))

	events := make([]insertion, 0, 2*len(anns))
	for _, a := range anns {
		start := clamp(a.Offset, 0, len(units))
		end := clamp(a.Offset+a.Length, start, len(units))
		literal := string(utf16.Decode(units[start:end]))

		open, closing, ok := r.tags(a.Kind, literal, a.Extra)
		if !ok {
			continue
		}
		events = append(events,
			insertion{tag: open, offset: start, seq: len(events)},
			insertion{tag: closing, offset: end, seq: len(events) + 1},
		)
	}
	if len(events) == 0 {
		return base
	}

	slices.SortFunc(events, func(a, b insertion) int {
		if c := cmp.Compare(b.offset, a.offset); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})

	for _, ev := range events {
		units = slices.Insert(units, ev.offset, utf16.Encode([]rune(ev.tag))...)
	}

	return string(utf16.Decode(units))
}

// tags returns the markup pair for an annotation kind. ok is false for kinds
// that have no visual representation.
func (r *Renderer) tags(kind models.AnnotationKind, literal, extra string) (open, closing string, ok bool) {
	switch kind {
	case models.KindStrikethrough:
		return "<del>", "</del>", true
	case models.KindCode:
		return "<code>", "</code>", true
	case models.KindItalic:
		return "<em>", "</em>", true
	case models.KindUnderline:
		return "<u>", "</u>", true
	case models.KindBold:
		return "<b>", "</b>", true
	case models.KindSpoiler:
		return `<span class="spoiler"><span>`, "</span></span>", true
	case models.KindLink, models.KindTextLink:
		href := extra
		if href == "" {
			href = literal
		}
		return `<a href="` + attr(href) + `">`, "</a>", true
	case models.KindHashtag:
		return `<a href="` + attr(literal) + `">`, "</a>", true
	case models.KindMention:
		return `<a href="` + attr(r.opts.MentionBaseURL+strings.Trim(literal, "@")) + `">`, "</a>", true
	case models.KindCustomEmoji:
		if asset := r.emojiAsset(extra); asset != "" {
			return `<i class="custom-emoji" emoji-src="` + attr(asset) + `">`, "</i>", true
		}
		return `<i class="custom-emoji">`, "</i>", true
	case models.KindCodeBlock:
		if extra != "" {
			return `<pre language="` + attr(extra) + `">`, "</pre>", true
		}
		return "<pre>", "</pre>", true
	case models.KindQuote:
		if extra != "" {
			return `<blockquote language="` + attr(extra) + `">`, "</blockquote>", true
		}
		return "<blockquote>", "</blockquote>", true
	default:
		return "", "", false
	}
}

// emojiAsset builds the asset reference for a custom emoji. Ids that already
// look like a path are used as they are.
func (r *Renderer) emojiAsset(id string) string {
	if id == "" || strings.ContainsAny(id, "/.") {
		return id
	}
	return r.opts.EmojiPrefix + id
}

func attr(s string) string {
	return html.EscapeString(s)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
