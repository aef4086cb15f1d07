package comment

import (
	"time"

	"ecoforum/pkg/gateway"
	"ecoforum/pkg/user"
)

type CommentId string

type Comment struct {
	Id       CommentId   `json:"id"`
	PostId   string      `json:"post_id"`
	ParentId CommentId   `json:"parent_id,omitempty"`
	Author   user.Author `json:"author"`
	Created  time.Time   `json:"created"`
	Body     string      `json:"body"`
	Depth    int         `json:"depth"`
	Likes    int64       `json:"likes"`
	Dislikes int64       `json:"dislikes"`

	// Per-viewer flags, filled on read.
	IsLiked    bool `json:"is_liked"`
	IsDisliked bool `json:"is_disliked"`

	// Orphaned marks a comment whose parent link is broken. It is shown as a root.
	Orphaned bool       `json:"orphaned,omitempty"`
	Replies  []*Comment `json:"replies"`
}

func (c *Comment) Score() int64 {
	return c.Likes - c.Dislikes
}

func (c *Comment) IsRoot() bool {
	return c.ParentId == ""
}

func (c *Comment) row() gateway.Row {
	return gateway.Row{
		"id":          string(c.Id),
		"post_id":     c.PostId,
		"parent_id":   string(c.ParentId),
		"author_id":   c.Author.Id,
		"author_name": c.Author.Username,
		"body":        c.Body,
		"created":     c.Created,
		"depth":       int64(c.Depth),
		"likes":       c.Likes,
		"dislikes":    c.Dislikes,
	}
}

func fromRow(r gateway.Row) *Comment {
	return &Comment{
		Id:       CommentId(r.String("id")),
		PostId:   r.String("post_id"),
		ParentId: CommentId(r.String("parent_id")),
		Author:   user.Author{Id: r.String("author_id"), Username: r.String("author_name")},
		Created:  r.Time("created"),
		Body:     r.String("body"),
		Depth:    int(r.Int("depth")),
		Likes:    r.Int("likes"),
		Dislikes: r.Int("dislikes"),
	}
}
