// Package feed builds RSS 2.0 and Atom documents from converted posts.
package feed

import (
	"cmp"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"tgblog/internal/constants"
	"tgblog/internal/errors"
	"tgblog/internal/models"
	"tgblog/internal/render"
	"tgblog/internal/validation"

	"github.com/gorilla/feeds"
)

// DateLayout is the layout of Post.Date, read as UTC.
const DateLayout = "2006-01-02T15:04:05"

// Options limits what goes into a feed.
type Options struct {
	// Limit caps the number of items, newest first. Zero keeps all posts.
	Limit int
}

// Build creates a feed with one item per post, newest first.
func Build(posts []models.Post, meta models.FeedConfig, opts Options) (*feeds.Feed, error) {
	if meta.Title == "" {
		return nil, errors.NewValidationError("feed.title", "", "feed title is required")
	}
	if err := validation.ValidateAbsoluteURL(meta.Link, "feed.link"); err != nil {
		return nil, err
	}
	base, err := url.Parse(meta.Link)
	if err != nil {
		return nil, errors.NewValidationError("feed.link", meta.Link, err.Error())
	}

	sorted := slices.Clone(posts)
	slices.SortFunc(sorted, func(a, b models.Post) int { return cmp.Compare(b.ID, a.ID) })
	if opts.Limit > 0 && len(sorted) > opts.Limit {
		sorted = sorted[:opts.Limit]
	}

	f := &feeds.Feed{
		Title:       meta.Title,
		Link:        &feeds.Link{Href: base.String()},
		Description: meta.Description,
		Id:          base.String(),
	}
	if meta.ImageURL != "" {
		f.Image = &feeds.Image{Url: meta.ImageURL, Title: meta.Title, Link: base.String()}
	}

	for _, p := range sorted {
		created, err := time.ParseInLocation(DateLayout, p.Date, time.UTC)
		if err != nil {
			return nil, errors.NewValidationError("post.date", p.Date, "unparseable post date").
				WithContext(constants.LogFieldPostID, p.ID)
		}
		if created.After(f.Updated) {
			f.Updated = created
		}

		link := itemLink(base, p.ID)
		item := &feeds.Item{
			Title:       fmt.Sprintf("%s #%d", meta.Title, p.ID),
			Link:        &feeds.Link{Href: link},
			Id:          link,
			Description: summary(p),
			Content:     p.Text,
			Created:     created,
		}
		if p.Author != "" {
			item.Author = &feeds.Author{Name: p.Author}
		}
		item.Enclosure = enclosure(base, p)
		f.Add(item)
	}
	f.Created = f.Updated

	return f, nil
}

func itemLink(base *url.URL, id int64) string {
	u := *base
	q := u.Query()
	q.Set("post", strconv.FormatInt(id, 10))
	u.RawQuery = q.Encode()
	return u.String()
}

// summary is the post text without markup.
func summary(p models.Post) string {
	if p.Text == "" {
		return ""
	}
	return render.StripTags(p.Text)
}

// enclosure attaches the first image, or else the video, of a post.
func enclosure(base *url.URL, p models.Post) *feeds.Enclosure {
	var item *models.MediaItem
	switch {
	case len(p.Images) > 0:
		item = &p.Images[0]
	case p.Video != nil && p.Video.Src != "":
		for i := range p.Files {
			if p.Files[i].URL == p.Video.Src {
				item = &p.Files[i]
				break
			}
		}
		if item == nil {
			item = &models.MediaItem{URL: p.Video.Src}
		}
	}
	if item == nil || item.URL == "" {
		return nil
	}

	ref, err := url.Parse(item.URL)
	if err != nil {
		return nil
	}
	enc := &feeds.Enclosure{
		Url:  base.ResolveReference(ref).String(),
		Type: item.MimeType,
	}
	if enc.Type == "" {
		enc.Type = constants.MimeTypeForExtension(filepath.Ext(item.URL))
	}
	if item.Size != nil {
		enc.Length = strconv.FormatInt(*item.Size, 10)
	} else {
		enc.Length = "0"
	}
	return enc
}

// WriteFiles writes rss.xml and atom.xml into dir.
func WriteFiles(dir string, f *feeds.Feed, language string) error {
	rss := (&feeds.Rss{Feed: f}).RssFeed()
	rss.Language = language

	rssXML, err := feeds.ToXML(rss)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeOutputWrite, "failed to encode RSS feed")
	}
	atomXML, err := f.ToAtom()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeOutputWrite, "failed to encode Atom feed")
	}

	for name, body := range map[string]string{
		constants.DefaultRSSFile:  rssXML,
		constants.DefaultAtomFile: atomXML,
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(strings.TrimSpace(body)+"\n"), constants.DefaultFilePermissions); err != nil {
			return errors.Wrap(err, errors.ErrCodeOutputWrite, "failed to write feed").
				WithContext(constants.LogFieldFilePath, path)
		}
	}
	return nil
}
