package comment

import (
	"context"
	"fmt"

	"ecoforum/pkg/common"
	"ecoforum/pkg/gateway"
	"ecoforum/pkg/tables"
)

type Repo struct {
	store gateway.Gateway
}

func NewCommentRepo(store gateway.Gateway) *Repo {
	return &Repo{store: store}
}

func (r *Repo) Add(ctx context.Context, c *Comment) error {
	if err := r.store.Insert(ctx, tables.Comments, c.row()); err != nil {
		return common.GatewayError("comment/repo: insert comment", err)
	}
	return nil
}

func (r *Repo) GetById(ctx context.Context, id CommentId) (*Comment, error) {
	rows, err := r.store.Select(ctx, tables.Comments, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("id", string(id))},
		Limit:   1,
	})
	if err != nil {
		return nil, common.GatewayError("comment/repo: get comment", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("comment/repo: comment %s: %w", id, common.ErrNotFound)
	}
	return fromRow(rows[0]), nil
}

// ByPost returns the flat comments of a post ordered by creation time.
func (r *Repo) ByPost(ctx context.Context, postId string) ([]*Comment, error) {
	rows, err := r.store.Select(ctx, tables.Comments, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("post_id", postId)},
		Order:   []gateway.Order{{Field: "created"}, {Field: "id"}},
	})
	if err != nil {
		return nil, common.GatewayError("comment/repo: list comments", err)
	}
	out := make([]*Comment, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

func (r *Repo) Count(ctx context.Context, postId string) (int64, error) {
	rows, err := r.store.Select(ctx, tables.Comments, gateway.Where(gateway.Eq("post_id", postId)))
	if err != nil {
		return 0, common.GatewayError("comment/repo: count comments", err)
	}
	return int64(len(rows)), nil
}

func (r *Repo) Delete(ctx context.Context, ids []CommentId) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	n, err := r.store.Delete(ctx, tables.Comments, []gateway.Filter{gateway.In("id", gateway.Strings(raw)...)})
	if err != nil {
		return 0, common.GatewayError("comment/repo: delete comments", err)
	}
	return n, nil
}

func (r *Repo) DeleteByPost(ctx context.Context, postId string) error {
	if _, err := r.store.Delete(ctx, tables.Comments, []gateway.Filter{gateway.Eq("post_id", postId)}); err != nil {
		return common.GatewayError("comment/repo: delete post comments", err)
	}
	return nil
}
