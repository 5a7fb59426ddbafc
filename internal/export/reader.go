// Package export reads a Telegram Desktop channel export into raw messages.
package export

import (
	"cmp"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"tgblog/internal/constants"
	"tgblog/internal/errors"
	"tgblog/internal/models"
	"tgblog/pkg/media"

	"github.com/sirupsen/logrus"
)

// DateLayout is the exporter's local date format, used when date_unixtime is absent.
const DateLayout = "2006-01-02T15:04:05"

// Export is the result of reading an export directory.
type Export struct {
	Name     string
	Messages []*models.RawMessage
	Stats    Stats
}

// Stats counts what happened to the export's media while reading it.
type Stats struct {
	Service       int
	MediaItems    int
	MediaFailures int
	MediaBytes    int64
}

// Reader loads result.json and resolves the media it references.
type Reader struct {
	resolver media.Resolver
	logger   *errors.Logger
}

// NewReader creates a Reader. A nil resolver keeps media references as written.
func NewReader(resolver media.Resolver, logger *logrus.Logger) *Reader {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reader{resolver: resolver, logger: errors.FromLogrus(logger)}
}

// Read returns the messages of the export in dir, ordered by id.
func (r *Reader) Read(ctx context.Context, dir string) ([]*models.RawMessage, error) {
	exp, err := r.ReadExport(ctx, dir)
	if err != nil {
		return nil, err
	}
	return exp.Messages, nil
}

// ReadExport reads dir/result.json. A message without an id or a usable
// timestamp, or a repeated id, fails the whole read. Media that cannot be
// resolved is logged and left out.
func (r *Reader) ReadExport(ctx context.Context, dir string) (*Export, error) {
	file := filepath.Join(dir, constants.DefaultExportFile)
	f, err := ReadFile(file)
	if err != nil {
		return nil, err
	}

	exp := &Export{
		Name:     f.Name,
		Messages: make([]*models.RawMessage, 0, len(f.Messages)),
	}
	seen := make(map[int64]struct{}, len(f.Messages))

	for i := range f.Messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		src := &f.Messages[i]
		if src.ID == nil {
			return nil, errors.NewMissingFieldError("id", i)
		}
		if _, dup := seen[*src.ID]; dup {
			return nil, errors.NewExportError(file, fmt.Errorf("duplicate message id %d", *src.ID)).
				WithContext(constants.LogFieldMessageID, *src.ID)
		}
		seen[*src.ID] = struct{}{}

		if src.IsService() {
			exp.Stats.Service++
			continue
		}

		ts, ok := timestamp(src)
		if !ok {
			return nil, errors.NewMissingFieldError("timestamp", i).
				WithContext(constants.LogFieldMessageID, *src.ID)
		}

		msg := &models.RawMessage{
			ID:            *src.ID,
			Date:          src.Date,
			Timestamp:     ts,
			Text:          r.resolveText(ctx, src.Text.Text, &exp.Stats),
			ReplyToID:     src.ReplyToMessageID,
			Author:        src.Author,
			ForwardedFrom: src.ForwardedFrom,
			Views:         src.Views,
		}
		msg.Media = r.mediaItem(ctx, src, &exp.Stats)
		exp.Messages = append(exp.Messages, msg)
	}

	slices.SortFunc(exp.Messages, func(a, b *models.RawMessage) int {
		return cmp.Compare(a.ID, b.ID)
	})

	r.logger.WithFields(logrus.Fields{
		constants.LogFieldFilePath: file,
		constants.LogFieldMessages: len(exp.Messages),
		"service_messages":         exp.Stats.Service,
		"media_failures":           exp.Stats.MediaFailures,
	}).Debug("Export read")

	return exp, nil
}

func timestamp(m *Message) (int64, bool) {
	if m.DateUnixtime.Valid {
		return m.DateUnixtime.Value, true
	}
	if m.Date == "" {
		return 0, false
	}
	t, err := time.ParseInLocation(DateLayout, m.Date, time.UTC)
	if err != nil {
		return 0, false
	}
	return t.Unix(), true
}

// Classify maps the exporter's photo/file/media_type fields to a media class.
// It returns "" when the message has no attachment.
func Classify(m *Message) models.MediaClass {
	if m.Photo != "" {
		return models.MediaPhoto
	}
	switch m.MediaType {
	case "video_file":
		return models.MediaVideo
	case "video_message":
		return models.MediaVideoMessage
	case "audio_file":
		return models.MediaAudio
	case "voice_message":
		return models.MediaVoice
	case "animation":
		return models.MediaAnimation
	case "sticker":
		return models.MediaSticker
	}
	if m.File != "" {
		return models.MediaDocument
	}
	return ""
}

func (r *Reader) mediaItem(ctx context.Context, m *Message, stats *Stats) *models.MediaItem {
	class := Classify(m)
	if class == "" {
		return nil
	}
	stats.MediaItems++

	item := &models.MediaItem{
		Kind:   class,
		Width:  m.Width,
		Height: m.Height,
	}

	if class == models.MediaPhoto {
		item.URL = r.resolve(ctx, *m.ID, m.Photo, stats)
		item.Size = r.size(item.URL, stats)
		return item
	}

	item.URL = r.resolve(ctx, *m.ID, m.File, stats)
	item.Size = r.size(item.URL, stats)
	if m.Thumbnail != "" {
		item.Thumb = r.resolve(ctx, *m.ID, m.Thumbnail, stats)
	}
	item.MimeType = m.MimeType
	if item.MimeType == "" && m.File != "" {
		item.MimeType = constants.MimeTypeForExtension(path.Ext(m.File))
	}
	item.Duration = m.DurationSeconds
	item.StickerEmoji = m.StickerEmoji
	item.Title = m.Title
	item.Performer = m.Performer
	item.OriginalName = m.FileName
	return item
}

// resolve returns the url-safe reference, or "" when the file is unusable.
func (r *Reader) resolve(ctx context.Context, id int64, ref string, stats *Stats) string {
	if ref == "" {
		return ""
	}
	if r.resolver == nil {
		if strings.HasPrefix(ref, "(File not included") {
			stats.MediaFailures++
			return ""
		}
		return ref
	}

	resolved, err := r.resolver.Resolve(ctx, ref)
	if err != nil {
		stats.MediaFailures++
		r.logger.LogWarn(err, "Media could not be resolved, omitting it", logrus.Fields{
			constants.LogFieldMessageID: id,
		})
		return ""
	}
	return resolved
}

func (r *Reader) size(ref string, stats *Stats) *int64 {
	if ref == "" || r.resolver == nil {
		return nil
	}
	n, err := r.resolver.Size(ref)
	if err != nil {
		return nil
	}
	stats.MediaBytes += n
	return &n
}

// resolveText rewrites custom emoji references that point into the export.
func (r *Reader) resolveText(ctx context.Context, t models.Text, stats *Stats) models.Text {
	if r.resolver == nil {
		return t
	}
	var runs []models.TextRun
	for i, run := range t.Runs {
		if run.Kind != models.KindCustomEmoji || !strings.ContainsAny(run.Extra, "/.") {
			continue
		}
		if runs == nil {
			runs = slices.Clone(t.Runs)
		}
		resolved, err := r.resolver.Resolve(ctx, run.Extra)
		if err != nil {
			stats.MediaFailures++
			r.logger.LogWarn(err, "Custom emoji could not be resolved")
			resolved = ""
		}
		runs[i].Extra = resolved
	}
	if runs == nil {
		return t
	}
	return models.Text{Runs: runs}
}
