// Package community ties the forum engines together behind the operations the
// UI and the HTTP API call. Every operation takes the acting identity
// explicitly; nil means nobody is signed in.
package community

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ecoforum/pkg/award"
	"ecoforum/pkg/bookmark"
	"ecoforum/pkg/comment"
	"ecoforum/pkg/common"
	"ecoforum/pkg/gateway"
	"ecoforum/pkg/karma"
	"ecoforum/pkg/logger"
	"ecoforum/pkg/post"
	"ecoforum/pkg/tables"
	"ecoforum/pkg/user"
	"ecoforum/pkg/verification"
	"ecoforum/pkg/voting"
)

const (
	maxTitleLen     = 300
	defaultCategory = "general"
)

type Config struct {
	RequireVerifiedEmail bool
	PageSize             int
	AwardBonuses         award.Bonuses
	BadgeTiers           karma.Tiers
	Verification         verification.Config
}

type Service struct {
	posts    *post.Repo
	comments *comment.Repo
	ledger   *voting.Ledger
	karma    *karma.Accumulator
	saves    *bookmark.Service
	proofs   *verification.Engine

	cfg   Config
	locks *common.KeyedMutex

	Now   func() time.Time
	NewId func() string
}

func NewService(store gateway.Gateway, cfg Config) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	acc := karma.NewAccumulator(store, cfg.AwardBonuses, cfg.BadgeTiers)
	return &Service{
		posts:    post.NewPostRepo(store),
		comments: comment.NewCommentRepo(store),
		ledger:   voting.NewLedger(store, acc),
		karma:    acc,
		saves:    bookmark.NewService(store),
		proofs:   verification.NewEngine(store, acc, cfg.Verification),
		cfg:      cfg,
		locks:    common.NewKeyedMutex(),
		Now:      time.Now,
		NewId:    func() string { return common.RandStringRunes(12) },
	}
}

func (s *Service) PageSize() int {
	return s.cfg.PageSize
}

// actor checks that u may change forum state.
func (s *Service) actor(u *user.User) error {
	if u == nil || u.Id == "" {
		return common.ErrUnauthenticated
	}
	if s.cfg.RequireVerifiedEmail && !u.EmailVerified {
		return fmt.Errorf("community: email of %s not verified: %w", u.Id, common.ErrUnauthenticated)
	}
	return nil
}

func viewerId(viewer *user.User) string {
	if viewer == nil {
		return ""
	}
	return viewer.Id
}

func (s *Service) CreatePost(ctx context.Context, u *user.User, title, content, category string) (*post.Post, error) {
	if err := s.actor(u); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		return nil, common.Invalid("title", "must not be empty")
	case len(title) > maxTitleLen:
		return nil, common.Invalid("title", fmt.Sprintf("must be at most %d characters", maxTitleLen))
	case common.Blank(content):
		return nil, common.Invalid("content", "must not be empty")
	}
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = defaultCategory
	}

	p := &post.Post{
		Id:       post.PostId(s.NewId()),
		Author:   u.Author(),
		Title:    title,
		Content:  content,
		Category: category,
		Created:  s.Now(),
		Awards:   []*award.Award{},
	}
	if _, err := s.posts.Add(ctx, p); err != nil {
		return nil, err
	}
	logger.Log(ctx).Infof("community: post %s created by %s", p.Id, u.Id)
	return p, nil
}

// GetPost loads a post decorated for the viewer, with its comment forest.
func (s *Service) GetPost(ctx context.Context, viewer *user.User, id post.PostId) (*post.Post, error) {
	p, err := s.posts.GetById(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.decoratePosts(ctx, viewer, []*post.Post{p}); err != nil {
		return nil, err
	}
	p.Comments, err = s.Thread(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPosts returns one ranked page of posts.
func (s *Service) ListPosts(ctx context.Context, viewer *user.User, q post.Query, offset, limit int) ([]*post.Post, error) {
	if limit <= 0 {
		limit = s.cfg.PageSize
	}
	posts, err := s.posts.List(ctx, q, s.Now(), offset, limit)
	if err != nil {
		return nil, err
	}
	if err := s.decoratePosts(ctx, viewer, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// Feed returns a pager over ListPosts for the viewer.
func (s *Service) Feed(viewer *user.User) *post.Feed {
	return post.NewFeed(func(ctx context.Context, q post.Query, offset, limit int) ([]*post.Post, error) {
		return s.ListPosts(ctx, viewer, q, offset, limit)
	}, s.cfg.PageSize)
}

func (s *Service) UserPosts(ctx context.Context, viewer *user.User, authorId string) ([]*post.Post, error) {
	posts, err := s.posts.GetUserPosts(ctx, authorId)
	if err != nil {
		return nil, err
	}
	if err := s.decoratePosts(ctx, viewer, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// DeletePost removes the post with its comments and everything attached to them.
func (s *Service) DeletePost(ctx context.Context, u *user.User, id post.PostId) error {
	if err := s.actor(u); err != nil {
		return err
	}
	p, err := s.posts.GetById(ctx, id)
	if err != nil {
		return err
	}
	if p.Author.Id != u.Id {
		return fmt.Errorf("community: only the author can remove the post: %w", common.ErrForbidden)
	}

	flat, err := s.comments.ByPost(ctx, string(id))
	if err != nil {
		return err
	}
	commentIds := make([]string, len(flat))
	for i, c := range flat {
		commentIds[i] = string(c.Id)
	}
	if err := s.purge(ctx, tables.TargetComment, commentIds); err != nil {
		return err
	}
	if err := s.comments.DeleteByPost(ctx, string(id)); err != nil {
		return err
	}
	if err := s.purge(ctx, tables.TargetPost, []string{string(id)}); err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, id); err != nil {
		return err
	}
	logger.Log(ctx).Infof("community: post %s removed with %d comments", id, len(flat))
	return nil
}

func (s *Service) purge(ctx context.Context, targetType string, ids []string) error {
	if err := s.ledger.Purge(ctx, targetType, ids); err != nil {
		return err
	}
	if err := s.saves.Purge(ctx, targetType, ids); err != nil {
		return err
	}
	return s.karma.Awards().PurgeTargets(ctx, targetType, ids)
}

// VotePost casts the vote and returns the post as stored afterwards.
func (s *Service) VotePost(ctx context.Context, u *user.User, id post.PostId, value voting.VotingScore) (*post.Post, error) {
	if err := s.actor(u); err != nil {
		return nil, err
	}
	if _, err := s.ledger.CastVote(ctx, u, tables.TargetPost, string(id), value); err != nil {
		return nil, err
	}
	p, err := s.posts.GetById(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.decoratePosts(ctx, u, []*post.Post{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// VoteComment casts the vote on a comment. The outcome carries the owning post
// whose thread has to be rebuilt.
func (s *Service) VoteComment(ctx context.Context, u *user.User, id comment.CommentId, value voting.VotingScore) (*voting.Outcome, error) {
	if err := s.actor(u); err != nil {
		return nil, err
	}
	return s.ledger.CastVote(ctx, u, tables.TargetComment, string(id), value)
}

// ToggleSave saves or unsaves a post or comment.
func (s *Service) ToggleSave(ctx context.Context, u *user.User, targetType, targetId string) (bool, error) {
	if err := s.actor(u); err != nil {
		return false, err
	}
	if err := s.exists(ctx, targetType, targetId); err != nil {
		return false, err
	}
	return s.saves.Toggle(ctx, u, targetType, targetId)
}

func (s *Service) exists(ctx context.Context, targetType, targetId string) error {
	var err error
	switch targetType {
	case tables.TargetPost:
		_, err = s.posts.GetById(ctx, post.PostId(targetId))
	case tables.TargetComment:
		_, err = s.comments.GetById(ctx, comment.CommentId(targetId))
	default:
		err = common.Invalid("target_type", "must be post or comment")
	}
	return err
}

func (s *Service) GrantAward(ctx context.Context, u *user.User, targetType, targetId, awardType string) (*award.Award, error) {
	if err := s.actor(u); err != nil {
		return nil, err
	}
	return s.karma.GrantAward(ctx, u, targetType, targetId, strings.ToLower(awardType))
}

// CommentChange reports a comment mutation and the reconciled comment count of
// its post.
type CommentChange struct {
	PostId       post.PostId         `json:"post_id"`
	Comment      *comment.Comment    `json:"comment,omitempty"`
	Removed      []comment.CommentId `json:"removed,omitempty"`
	CommentCount int64               `json:"comment_count"`
}

// AddComment adds a root comment, or a reply when parentId is set.
func (s *Service) AddComment(ctx context.Context, u *user.User, postId post.PostId, parentId comment.CommentId, body string) (*CommentChange, error) {
	if err := s.actor(u); err != nil {
		return nil, err
	}
	if common.Blank(body) {
		return nil, common.Invalid("body", "must not be empty")
	}
	if _, err := s.posts.GetById(ctx, postId); err != nil {
		return nil, err
	}

	depth := 0
	if parentId != "" {
		parent, err := s.comments.GetById(ctx, parentId)
		if err != nil {
			return nil, err
		}
		if parent.PostId != string(postId) {
			return nil, common.Invalid("parent_id", "belongs to another post")
		}
		depth = parent.Depth + 1
	}

	c := &comment.Comment{
		Id:       comment.CommentId(s.NewId()),
		PostId:   string(postId),
		ParentId: parentId,
		Author:   u.Author(),
		Created:  s.Now(),
		Body:     strings.TrimSpace(body),
		Depth:    depth,
	}
	if err := s.comments.Add(ctx, c); err != nil {
		return nil, err
	}
	n, err := s.reconcileCommentCount(ctx, postId)
	if err != nil {
		return nil, err
	}
	return &CommentChange{PostId: postId, Comment: c, CommentCount: n}, nil
}

// DeleteComment removes the comment and all replies below it.
func (s *Service) DeleteComment(ctx context.Context, u *user.User, postId post.PostId, id comment.CommentId) (*CommentChange, error) {
	if err := s.actor(u); err != nil {
		return nil, err
	}
	c, err := s.comments.GetById(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.PostId != string(postId) {
		return nil, fmt.Errorf("community: comment %s not in post %s: %w", id, postId, common.ErrNotFound)
	}
	if c.Author.Id != u.Id {
		return nil, fmt.Errorf("community: only the author can remove the comment: %w", common.ErrForbidden)
	}

	flat, err := s.comments.ByPost(ctx, string(postId))
	if err != nil {
		return nil, err
	}
	removed := comment.NewArena(flat).Subtree(id)
	raw := make([]string, len(removed))
	for i, cid := range removed {
		raw[i] = string(cid)
	}
	if err := s.purge(ctx, tables.TargetComment, raw); err != nil {
		return nil, err
	}
	if _, err := s.comments.Delete(ctx, removed); err != nil {
		return nil, err
	}
	n, err := s.reconcileCommentCount(ctx, postId)
	if err != nil {
		return nil, err
	}
	return &CommentChange{PostId: postId, Removed: removed, CommentCount: n}, nil
}

func (s *Service) reconcileCommentCount(ctx context.Context, postId post.PostId) (int64, error) {
	unlock := s.locks.Lock(string(postId))
	defer unlock()
	n, err := s.comments.Count(ctx, string(postId))
	if err != nil {
		return 0, err
	}
	if err := s.posts.SetCommentCount(ctx, postId, n); err != nil {
		return 0, err
	}
	return n, nil
}

// Thread returns the comment forest of a post decorated for the viewer.
func (s *Service) Thread(ctx context.Context, viewer *user.User, postId post.PostId) ([]*comment.Comment, error) {
	flat, err := s.Comments(ctx, viewer, postId)
	if err != nil {
		return nil, err
	}
	return comment.BuildTree(flat), nil
}

// Comments returns the flat decorated comments of a post.
func (s *Service) Comments(ctx context.Context, viewer *user.User, postId post.PostId) ([]*comment.Comment, error) {
	flat, err := s.comments.ByPost(ctx, string(postId))
	if err != nil {
		return nil, err
	}
	if vid := viewerId(viewer); vid != "" && len(flat) > 0 {
		ids := make([]string, len(flat))
		for i, c := range flat {
			ids[i] = string(c.Id)
		}
		votes, err := s.ledger.VotesBy(ctx, vid, tables.TargetComment, ids)
		if err != nil {
			return nil, err
		}
		for _, c := range flat {
			c.IsLiked = votes[string(c.Id)] == voting.ScoreUp
			c.IsDisliked = votes[string(c.Id)] == voting.ScoreDown
		}
	}
	return flat, nil
}

func (s *Service) decoratePosts(ctx context.Context, viewer *user.User, posts []*post.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = string(p.Id)
	}

	vid := viewerId(viewer)
	var (
		awards map[string][]*award.Award
		votes  map[string]voting.VotingScore
		saved  map[string]bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		awards, err = s.karma.Awards().ForTargets(gctx, tables.TargetPost, ids)
		return err
	})
	g.Go(func() (err error) {
		votes, err = s.ledger.VotesBy(gctx, vid, tables.TargetPost, ids)
		return err
	})
	g.Go(func() (err error) {
		saved, err = s.saves.SavedIds(gctx, vid, tables.TargetPost, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for _, p := range posts {
		id := string(p.Id)
		p.IsLiked = votes[id] == voting.ScoreUp
		p.IsDisliked = votes[id] == voting.ScoreDown
		p.IsSaved = saved[id]
		p.Awards = awards[id]
		if p.Awards == nil {
			p.Awards = []*award.Award{}
		}
	}
	return nil
}

func (s *Service) Profile(ctx context.Context, userId string) (*karma.Profile, error) {
	if common.Blank(userId) {
		return nil, common.Invalid("user_id", "must not be empty")
	}
	return s.karma.Profile(ctx, userId)
}

func (s *Service) SubmitProof(ctx context.Context, u *user.User, challengeId, photoRef string) (*verification.Submission, error) {
	if err := s.actor(u); err != nil {
		return nil, err
	}
	return s.proofs.SubmitProof(ctx, u, challengeId, photoRef)
}

func (s *Service) AddReview(ctx context.Context, u *user.User, challengeId, submitterId string, score int) (*verification.Submission, error) {
	if err := s.actor(u); err != nil {
		return nil, err
	}
	return s.proofs.AddReview(ctx, u, challengeId, submitterId, score)
}

func (s *Service) Submission(ctx context.Context, challengeId, userId string) (*verification.Submission, error) {
	return s.proofs.Get(ctx, challengeId, userId)
}

func (s *Service) ReviewQueue(ctx context.Context, u *user.User, challengeId string) ([]*verification.Submission, error) {
	if err := s.actor(u); err != nil {
		return nil, err
	}
	return s.proofs.Queue(ctx, u, challengeId)
}
