package post

import (
	"context"
	"fmt"
	"time"

	"ecoforum/pkg/common"
	"ecoforum/pkg/gateway"
	"ecoforum/pkg/tables"
)

type Repo struct {
	posts gateway.Gateway
}

func NewPostRepo(store gateway.Gateway) *Repo {
	return &Repo{posts: store}
}

func (r *Repo) Add(ctx context.Context, p *Post) (PostId, error) {
	if err := r.posts.Insert(ctx, tables.Posts, p.row()); err != nil {
		return PostId(``), common.GatewayError("post/repo: failed inserting a post", err)
	}
	return p.Id, nil
}

func (r *Repo) Delete(ctx context.Context, id PostId) error {
	_, err := r.posts.Delete(ctx, tables.Posts, []gateway.Filter{gateway.Eq("id", string(id))})
	if err != nil {
		return common.GatewayError("post/repo: failed deleting post", err)
	}
	return nil
}

func (r *Repo) GetById(ctx context.Context, id PostId) (*Post, error) {
	rows, err := r.posts.Select(ctx, tables.Posts, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("id", string(id))},
		Limit:   1,
	})
	if err != nil {
		return nil, common.GatewayError("post/repo: failed finding post", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("post/repo: post %s: %w", id, common.ErrNotFound)
	}
	return fromRow(rows[0]), nil
}

// List returns one page of posts matching q, filtered and ordered by the store
// and ranked again to settle ties the same way Rank does.
func (r *Repo) List(ctx context.Context, q Query, now time.Time, offset, limit int) ([]*Post, error) {
	rows, err := r.posts.Select(ctx, tables.Posts, gateway.Query{
		Filters: q.Filters(now),
		Order:   q.Order(),
		Offset:  offset,
		Limit:   limit,
	})
	if err != nil {
		return nil, common.GatewayError("post/repo: failed listing posts", err)
	}
	posts := make([]*Post, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, fromRow(row))
	}
	return Rank(posts, q, now), nil
}

func (r *Repo) GetUserPosts(ctx context.Context, authorId string) ([]*Post, error) {
	rows, err := r.posts.Select(ctx, tables.Posts, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("author_id", authorId)},
		Order:   []gateway.Order{{Field: "created", Desc: true}},
	})
	if err != nil {
		return nil, common.GatewayError("post/repo: failed finding user posts", err)
	}
	posts := make([]*Post, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, fromRow(row))
	}
	return posts, nil
}

func (r *Repo) SetCommentCount(ctx context.Context, id PostId, n int64) error {
	_, err := r.posts.Update(ctx, tables.Posts,
		[]gateway.Filter{gateway.Eq("id", string(id))},
		gateway.Row{"comment_count": n},
	)
	if err != nil {
		return common.GatewayError("post/repo: failed updating comment count", err)
	}
	return nil
}
