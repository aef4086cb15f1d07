package post

import (
	"time"

	"ecoforum/pkg/award"
	"ecoforum/pkg/comment"
	"ecoforum/pkg/gateway"
	"ecoforum/pkg/user"
)

type PostId string

type Post struct {
	Id       PostId      `json:"id"`
	Author   user.Author `json:"author"`
	Title    string      `json:"title"`
	Content  string      `json:"content"`
	Category string      `json:"category"`
	Created  time.Time   `json:"created"`

	Likes        int64 `json:"likes"`
	Dislikes     int64 `json:"dislikes"`
	CommentCount int64 `json:"comment_count"`

	// Per-viewer flags, filled on read.
	IsLiked    bool `json:"is_liked"`
	IsDisliked bool `json:"is_disliked"`
	IsSaved    bool `json:"is_saved"`

	Awards   []*award.Award     `json:"awards"`
	Comments []*comment.Comment `json:"comments,omitempty"`
}

func (p *Post) Score() int64 {
	return p.Likes - p.Dislikes
}

func (p *Post) row() gateway.Row {
	return gateway.Row{
		"id":            string(p.Id),
		"author_id":     p.Author.Id,
		"author_name":   p.Author.Username,
		"title":         p.Title,
		"content":       p.Content,
		"category":      p.Category,
		"created":       p.Created,
		"likes":         p.Likes,
		"dislikes":      p.Dislikes,
		"comment_count": p.CommentCount,
	}
}

func fromRow(r gateway.Row) *Post {
	return &Post{
		Id:           PostId(r.String("id")),
		Author:       user.Author{Id: r.String("author_id"), Username: r.String("author_name")},
		Title:        r.String("title"),
		Content:      r.String("content"),
		Category:     r.String("category"),
		Created:      r.Time("created"),
		Likes:        r.Int("likes"),
		Dislikes:     r.Int("dislikes"),
		CommentCount: r.Int("comment_count"),
	}
}
