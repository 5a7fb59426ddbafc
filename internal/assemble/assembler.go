// Package assemble merges grouped messages into posts and resolves replies to
// the post that represents their target.
package assemble

import (
	"cmp"
	"slices"
	"strconv"

	"tgblog/internal/constants"
	"tgblog/internal/errors"
	"tgblog/internal/models"
	"tgblog/internal/render"
	"tgblog/internal/sparse"

	"github.com/sirupsen/logrus"
)

// Stats summarises one Assemble call.
type Stats struct {
	Posts           int
	Groups          int
	DanglingReplies int
}

// Assembler builds posts. It holds no per-run state and can be shared.
type Assembler struct {
	renderer *render.Renderer
	logger   *errors.Logger
}

// NewAssembler creates an Assembler. A nil renderer uses the default options.
func NewAssembler(renderer *render.Renderer, logger *logrus.Logger) *Assembler {
	if renderer == nil {
		renderer = render.New(render.Options{})
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Assembler{
		renderer: renderer,
		logger:   errors.FromLogrus(logger),
	}
}

// state is the per-call record of which groups already produced a post.
type state struct {
	idx       *Index
	processed map[int64]int64
	stats     Stats
}

// Assemble turns the indexed messages into posts ordered by id. The index is
// not modified, so calling Assemble again yields the same posts.
func (a *Assembler) Assemble(idx *Index) ([]models.Post, Stats) {
	st := &state{
		idx:       idx,
		processed: make(map[int64]int64, idx.GroupCount()),
	}
	st.stats.Groups = idx.GroupCount()

	posts := make([]models.Post, 0, idx.Len())
	for _, m := range idx.msgs {
		if m.GroupID != nil {
			if _, done := st.processed[*m.GroupID]; done {
				continue
			}
		}
		posts = append(posts, a.build(st, m))
	}

	slices.SortFunc(posts, func(x, y models.Post) int {
		return cmp.Compare(x.ID, y.ID)
	})
	st.stats.Posts = len(posts)

	return posts, st.stats
}

func (a *Assembler) build(st *state, m *models.RawMessage) models.Post {
	members := st.idx.Members(m)
	rep := st.idx.Representative(m)

	post := models.Post{
		ID:            rep.ID,
		Date:          rep.Date,
		Text:          a.renderer.Text(rep.Text),
		Views:         rep.Views,
		Author:        rep.Author,
		ForwardedFrom: rep.ForwardedFrom,
	}

	post.Images, post.Files = consolidate(members)
	post.Video = videoRef(members)
	post.Reply = a.resolveReply(st, replySource(rep, members))

	if m.GroupID != nil {
		st.processed[*m.GroupID] = rep.ID
	}

	sparse.Prune(&post)
	return post
}

// resolveReply points a reply at the post that represents its target. A
// target outside the export is dropped.
func (a *Assembler) resolveReply(st *state, m *models.RawMessage) *models.ReplyRef {
	if m == nil || m.ReplyToID == nil {
		return nil
	}

	target, ok := st.idx.Message(*m.ReplyToID)
	if !ok {
		st.stats.DanglingReplies++
		a.logger.LogWarn(
			errors.NewNotFoundError("reply target", strconv.FormatInt(*m.ReplyToID, 10)),
			"Reply target not in export, dropping reply",
			logrus.Fields{
				constants.LogFieldMessageID: m.ID,
				constants.LogFieldReplyToID: *m.ReplyToID,
			},
		)
		return nil
	}

	if target.GroupID != nil {
		if id, done := st.processed[*target.GroupID]; done {
			if rep, ok := st.idx.Message(id); ok {
				target = rep
			}
		} else {
			target = st.idx.Representative(target)
		}
	}

	ref := &models.ReplyRef{
		ID:   target.ID,
		Text: render.PlainText(target.Text),
	}
	if target.Media != nil && target.Media.Thumb != "" {
		ref.Thumb = target.Media.Thumb
	} else {
		for _, member := range st.idx.Members(target) {
			if isPhotoLike(member.Media) && member.Media.URL != "" {
				ref.Thumb = member.Media.URL
				break
			}
		}
	}
	return ref
}

// replySource picks the message whose reply the post carries.
func replySource(rep *models.RawMessage, members []*models.RawMessage) *models.RawMessage {
	if rep.ReplyToID != nil {
		return rep
	}
	for _, m := range members {
		if m.ReplyToID != nil {
			return m
		}
	}
	return nil
}

// consolidate collects the members' media. The items are images when every
// one of them is photo-like and files otherwise.
func consolidate(members []*models.RawMessage) (images, files []models.MediaItem) {
	var items []models.MediaItem
	allPhotos := true
	for _, m := range members {
		if m.Media == nil {
			continue
		}
		items = append(items, *m.Media)
		if !isPhotoLike(m.Media) {
			allPhotos = false
		}
	}
	if len(items) == 0 {
		return nil, nil
	}
	if allPhotos {
		return items, nil
	}
	return nil, items
}

func videoRef(members []*models.RawMessage) *models.VideoRef {
	for _, m := range members {
		if m.Media == nil || !m.Media.Kind.IsVideo() {
			continue
		}
		return &models.VideoRef{
			Src:      m.Media.URL,
			Thumb:    m.Media.Thumb,
			Duration: m.Media.Duration,
		}
	}
	return nil
}

// isPhotoLike reports whether item renders as an inline image.
func isPhotoLike(item *models.MediaItem) bool {
	if item == nil {
		return false
	}
	switch item.Kind {
	case models.MediaPhoto:
		return true
	case models.MediaDocument:
		return constants.IsImageMimeType(item.MimeType)
	default:
		return false
	}
}
