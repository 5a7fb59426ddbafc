package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"tgblog/internal/errors"
	"tgblog/internal/models"
	"tgblog/pkg/media"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExport(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "result.json"), []byte(body), 0644))
}

func writeMedia(t *testing.T, dir, rel string, size int) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0750))
	require.NoError(t, os.WriteFile(full, make([]byte, size), 0644))
}

func newTestReader(dir string) (*Reader, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	return NewReader(media.NewFileResolver(dir, nil), logger), &buf
}

const sampleExport = `{
  "name": "Test Channel",
  "type": "public_channel",
  "id": 100,
  "messages": [
    {"id": 3, "type": "message", "date": "2023-05-01T10:00:03", "date_unixtime": "1682935203",
     "file": "files/report 1.pdf", "mime_type": "application/pdf", "text": ""},
    {"id": 1, "type": "message", "date": "2023-05-01T10:00:00", "date_unixtime": "1682935200",
     "photo": "photos/photo_1.jpg", "width": 800, "height": 600,
     "text": ["hello ", {"type": "bold", "text": "world"}]},
    {"id": 2, "type": "service", "date": "2023-05-01T10:00:01", "date_unixtime": "1682935201",
     "action": "pin_message", "text": ""},
    {"id": 4, "type": "message", "date": "2023-05-01T10:00:04",
     "file": "(File not included. Change data exporting settings to download.)",
     "media_type": "video_file", "mime_type": "video/mp4", "duration_seconds": 12,
     "reply_to_message_id": 1, "author": "Editor", "text": "clip"}
  ]
}`

func TestReader_ReadExport(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, sampleExport)
	writeMedia(t, dir, "photos/photo_1.jpg", 2048)
	writeMedia(t, dir, "files/report 1.pdf", 100)

	r, logs := newTestReader(dir)
	exp, err := r.ReadExport(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "Test Channel", exp.Name)
	require.Len(t, exp.Messages, 3)
	assert.Equal(t, []int64{1, 3, 4}, []int64{exp.Messages[0].ID, exp.Messages[1].ID, exp.Messages[2].ID})

	first := exp.Messages[0]
	assert.Equal(t, "2023-05-01T10:00:00", first.Date)
	assert.Equal(t, int64(1682935200), first.Timestamp)
	assert.Equal(t, "hello world", first.Text.Runs[0].Text+first.Text.Runs[1].Text)
	require.NotNil(t, first.Media)
	assert.Equal(t, models.MediaPhoto, first.Media.Kind)
	assert.Equal(t, "photos/photo_1.jpg", first.Media.URL)
	require.NotNil(t, first.Media.Size)
	assert.Equal(t, int64(2048), *first.Media.Size)
	assert.Equal(t, 800, *first.Media.Width)

	doc := exp.Messages[1]
	require.NotNil(t, doc.Media)
	assert.Equal(t, models.MediaDocument, doc.Media.Kind)
	assert.Equal(t, "files/report_201.pdf", doc.Media.URL)
	assert.Equal(t, "application/pdf", doc.Media.MimeType)

	video := exp.Messages[2]
	assert.Equal(t, int64(1682935204), video.Timestamp, "falls back to the date field")
	require.NotNil(t, video.Media)
	assert.Equal(t, models.MediaVideo, video.Media.Kind)
	assert.Empty(t, video.Media.URL)
	assert.Equal(t, 12, *video.Media.Duration)
	require.NotNil(t, video.ReplyToID)
	assert.Equal(t, int64(1), *video.ReplyToID)
	assert.Equal(t, "Editor", video.Author)

	assert.Equal(t, Stats{Service: 1, MediaItems: 3, MediaFailures: 1, MediaBytes: 2148}, exp.Stats)
	assert.Contains(t, logs.String(), "Media could not be resolved")
}

func TestReader_Read(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, `{"messages": [{"id": 5, "type": "message", "date_unixtime": "10", "text": "a"}]}`)

	r, _ := newTestReader(dir)
	msgs, err := r.Read(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Nil(t, msgs[0].Media)
	assert.Nil(t, msgs[0].GroupID)
}

func TestReader_FatalErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code errors.ErrorCode
	}{
		{
			name: "missing id",
			body: `{"messages": [{"type": "message", "date_unixtime": "1", "text": ""}]}`,
			code: errors.ErrCodeMissingField,
		},
		{
			name: "missing timestamp",
			body: `{"messages": [{"id": 1, "type": "message", "text": ""}]}`,
			code: errors.ErrCodeMissingField,
		},
		{
			name: "unparseable date",
			body: `{"messages": [{"id": 1, "type": "message", "date": "yesterday", "text": ""}]}`,
			code: errors.ErrCodeMissingField,
		},
		{
			name: "duplicate id",
			body: `{"messages": [
				{"id": 1, "type": "message", "date_unixtime": "1", "text": ""},
				{"id": 1, "type": "message", "date_unixtime": "2", "text": ""}
			]}`,
			code: errors.ErrCodeInvalidExport,
		},
		{
			name: "malformed json",
			body: `{"messages": [}`,
			code: errors.ErrCodeInvalidExport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeExport(t, dir, tt.body)
			r, _ := newTestReader(dir)

			msgs, err := r.Read(context.Background(), dir)
			require.Error(t, err)
			assert.Nil(t, msgs)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestReader_MissingExport(t *testing.T) {
	r, _ := newTestReader(t.TempDir())
	_, err := r.Read(context.Background(), t.TempDir())
	assert.Equal(t, errors.ErrCodeInvalidExport, errors.GetCode(err))
}

func TestReader_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, `{"messages": [{"id": 1, "type": "message", "date_unixtime": "1", "text": ""}]}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, _ := newTestReader(dir)
	_, err := r.Read(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReader_CustomEmojiPaths(t *testing.T) {
	dir := t.TempDir()
	writeMedia(t, dir, "stickers/my emoji.webp", 10)
	writeExport(t, dir, `{"messages": [{"id": 1, "type": "message", "date_unixtime": "1", "text": [
		{"type": "custom_emoji", "text": "😀", "document_id": "stickers/my emoji.webp"},
		{"type": "custom_emoji", "text": "😎", "document_id": "5368324170671202286"}
	]}]}`)

	r, _ := newTestReader(dir)
	msgs, err := r.Read(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "stickers/my_20emoji.webp", msgs[0].Text.Runs[0].Extra)
	assert.Equal(t, "5368324170671202286", msgs[0].Text.Runs[1].Extra)
}

func TestReader_NoResolver(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, `{"messages": [
		{"id": 1, "type": "message", "date_unixtime": "1", "photo": "photos/a b.jpg", "text": ""},
		{"id": 2, "type": "message", "date_unixtime": "2", "file": "(File not included. Change data exporting settings to download.)", "text": ""}
	]}`)

	exp, err := NewReader(nil, nil).ReadExport(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "photos/a b.jpg", exp.Messages[0].Media.URL)
	assert.Nil(t, exp.Messages[0].Media.Size)
	assert.Empty(t, exp.Messages[1].Media.URL)
	assert.Equal(t, 1, exp.Stats.MediaFailures)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		msg      Message
		expected models.MediaClass
	}{
		{msg: Message{}, expected: ""},
		{msg: Message{Photo: "photos/a.jpg"}, expected: models.MediaPhoto},
		{msg: Message{File: "f", MediaType: "video_file"}, expected: models.MediaVideo},
		{msg: Message{File: "f", MediaType: "video_message"}, expected: models.MediaVideoMessage},
		{msg: Message{File: "f", MediaType: "audio_file"}, expected: models.MediaAudio},
		{msg: Message{File: "f", MediaType: "voice_message"}, expected: models.MediaVoice},
		{msg: Message{File: "f", MediaType: "animation"}, expected: models.MediaAnimation},
		{msg: Message{File: "f", MediaType: "sticker"}, expected: models.MediaSticker},
		{msg: Message{File: "files/a.zip"}, expected: models.MediaDocument},
	}
	for _, tt := range tests {
		t.Run(string(tt.expected), func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(&tt.msg))
		})
	}
}
