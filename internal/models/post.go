package models

// Post is one merged, rendered and reply-resolved record of the output feed.
type Post struct {
	ID            int64       `json:"id"`
	Date          string      `json:"date"`
	Text          string      `json:"text,omitempty"`
	Views         *int        `json:"views,omitempty"`
	Images        []MediaItem `json:"images,omitempty"`
	Files         []MediaItem `json:"files,omitempty"`
	Video         *VideoRef   `json:"video,omitempty"`
	Reply         *ReplyRef   `json:"reply,omitempty"`
	Author        string      `json:"author,omitempty"`
	ForwardedFrom string      `json:"forwarded_from,omitempty"`
}

// VideoRef points the front end at a playable video.
type VideoRef struct {
	Src      string `json:"src,omitempty"`
	Thumb    string `json:"thumb,omitempty"`
	Duration *int   `json:"duration,omitempty"`
}

// ReplyRef is a preview of the post being replied to. ID is always a Post id.
type ReplyRef struct {
	ID    int64  `json:"id"`
	Text  string `json:"text,omitempty"`
	Thumb string `json:"thumb,omitempty"`
}
