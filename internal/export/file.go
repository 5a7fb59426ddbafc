package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"tgblog/internal/errors"
	"tgblog/internal/models"
)

// File is the top level of a Telegram Desktop result.json.
type File struct {
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	ID       int64     `json:"id"`
	Messages []Message `json:"messages"`
}

// Message is one entry of the messages array as the exporter writes it.
type Message struct {
	ID               *int64 `json:"id"`
	Type             string `json:"type"`
	Date             string `json:"date"`
	DateUnixtime     Unixtime `json:"date_unixtime"`
	From             string `json:"from"`
	Author           string `json:"author"`
	ForwardedFrom    string `json:"forwarded_from"`
	ReplyToMessageID *int64 `json:"reply_to_message_id"`
	Views            *int   `json:"views"`
	Text             Text   `json:"text"`

	Photo           string `json:"photo"`
	File            string `json:"file"`
	FileName        string `json:"file_name"`
	Thumbnail       string `json:"thumbnail"`
	MediaType       string `json:"media_type"`
	MimeType        string `json:"mime_type"`
	StickerEmoji    string `json:"sticker_emoji"`
	Title           string `json:"title"`
	Performer       string `json:"performer"`
	DurationSeconds *int   `json:"duration_seconds"`
	Width           *int   `json:"width"`
	Height          *int   `json:"height"`
}

// IsService reports whether the entry is a service notice (pins, joins)
// rather than a posted message.
func (m *Message) IsService() bool {
	return m.Type == "service"
}

// Unixtime is a unix timestamp written either as a string or as a number.
type Unixtime struct {
	Value int64
	Valid bool
}

// UnmarshalJSON accepts "1700000000", 1700000000 and null.
func (u *Unixtime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*u = Unixtime{}
		return nil
	}
	data = bytes.Trim(data, `"`)
	if len(data) == 0 {
		*u = Unixtime{}
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid unix time %q: %w", data, err)
	}
	*u = Unixtime{Value: v, Valid: true}
	return nil
}

// Text is the exporter's text field, either a bare string or an array of
// strings and entity objects.
type Text struct {
	models.Text
}

type textEntity struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	Href       string `json:"href"`
	DocumentID string `json:"document_id"`
	Language   string `json:"language"`
}

// UnmarshalJSON accepts null, a string or an array of strings and entities.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Text = models.Text{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		t.Text = models.PlainString(s)
		return nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("text must be a string or an array: %w", err)
	}

	runs := make([]models.TextRun, 0, len(parts))
	for _, part := range parts {
		part = bytes.TrimSpace(part)
		if len(part) > 0 && part[0] == '"' {
			var s string
			if err := json.Unmarshal(part, &s); err != nil {
				return err
			}
			runs = append(runs, models.TextRun{Text: s})
			continue
		}

		var e textEntity
		if err := json.Unmarshal(part, &e); err != nil {
			return fmt.Errorf("invalid text entity: %w", err)
		}
		runs = append(runs, entityRun(e))
	}
	t.Text = models.Text{Runs: runs}
	return nil
}

func entityRun(e textEntity) models.TextRun {
	if e.Type == "" || e.Type == "plain" {
		return models.TextRun{Text: e.Text}
	}

	run := models.TextRun{Text: e.Text, Kind: models.ParseAnnotationKind(e.Type)}
	switch run.Kind {
	case models.KindTextLink:
		run.Extra = e.Href
	case models.KindCustomEmoji:
		run.Extra = e.DocumentID
	case models.KindCodeBlock:
		run.Extra = e.Language
	}
	return run
}

// ReadFile decodes a result.json without touching the media it references.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewExportError(path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.NewExportError(path, err)
	}
	return &f, nil
}
