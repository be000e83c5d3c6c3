package models

import "time"

// Post is a single blog entry. Likes stays nil until the first like.
type Post struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Likes   *int   `json:"likes,omitempty"`
}

// LikeCount returns the number of likes, treating an unset counter as zero.
func (p Post) LikeCount() int {
	if p.Likes == nil {
		return 0
	}
	return *p.Likes
}

// Clone returns a copy that shares no memory with p.
func (p Post) Clone() Post {
	if p.Likes != nil {
		n := *p.Likes
		p.Likes = &n
	}
	return p
}

type EventType string

const (
	PostCreated EventType = "post_created"
	PostUpdated EventType = "post_updated"
	PostDeleted EventType = "post_deleted"
	PostLiked   EventType = "post_liked"
)

// PostEvent is published after every committed mutation and carries the
// post snapshot as it was right after the change.
type PostEvent struct {
	Type EventType `json:"type"`
	Post Post      `json:"post"`
	At   time.Time `json:"at"`
}
