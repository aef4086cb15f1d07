package community

import (
	"context"
	"sync"

	"ecoforum/pkg/comment"
	"ecoforum/pkg/common"
	"ecoforum/pkg/logger"
	"ecoforum/pkg/post"
	"ecoforum/pkg/tables"
	"ecoforum/pkg/user"
	"ecoforum/pkg/voting"
)

// Notice is the single dismissible error shown by a view.
type Notice struct {
	Kind    common.Kind `json:"kind"`
	Message string      `json:"message"`
}

// View is the per-viewer state of the community page: the post listing, the
// open threads and the error banner. Action methods never return errors; a
// failed action leaves the state as it was and fills the banner.
type View struct {
	svc    *Service
	viewer *user.User
	feed   *post.Feed

	mu      sync.Mutex
	threads map[post.PostId]*comment.Arena
	notice  *Notice
}

func NewView(svc *Service, viewer *user.User) *View {
	return &View{
		svc:     svc,
		viewer:  viewer,
		feed:    svc.Feed(viewer),
		threads: make(map[post.PostId]*comment.Arena),
	}
}

func (v *View) catch(ctx context.Context, err error) bool {
	if err == nil {
		return true
	}
	logger.Log(ctx).Warnf("community/view: action failed: %v", err)
	v.mu.Lock()
	v.notice = &Notice{Kind: common.KindOf(err), Message: common.UserMessage(err)}
	v.mu.Unlock()
	return false
}

// Error returns the current banner, nil when there is none.
func (v *View) Error() *Notice {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.notice == nil {
		return nil
	}
	n := *v.notice
	return &n
}

func (v *View) DismissError() {
	v.mu.Lock()
	v.notice = nil
	v.mu.Unlock()
}

// SetQuery switches the listing and loads its first page.
func (v *View) SetQuery(ctx context.Context, q post.Query) bool {
	v.feed.Reset(q)
	return v.LoadMore(ctx)
}

func (v *View) LoadMore(ctx context.Context) bool {
	_, err := v.feed.LoadMore(ctx)
	return v.catch(ctx, err)
}

func (v *View) Posts() []*post.Post {
	return v.feed.Posts()
}

func (v *View) Feed() *post.Feed {
	return v.feed
}

func (v *View) CreatePost(ctx context.Context, title, content, category string) bool {
	p, err := v.svc.CreatePost(ctx, v.viewer, title, content, category)
	if !v.catch(ctx, err) {
		return false
	}
	if v.feed.Query().Keep(p, v.svc.Now()) {
		v.feed.Prepend(p)
	}
	return true
}

func (v *View) DeletePost(ctx context.Context, id post.PostId) bool {
	if !v.catch(ctx, v.svc.DeletePost(ctx, v.viewer, id)) {
		return false
	}
	v.feed.Remove(id)
	v.mu.Lock()
	delete(v.threads, id)
	v.mu.Unlock()
	return true
}

func (v *View) VotePost(ctx context.Context, id post.PostId, value voting.VotingScore) bool {
	p, err := v.svc.VotePost(ctx, v.viewer, id, value)
	if !v.catch(ctx, err) {
		return false
	}
	v.feed.Replace(p)
	return true
}

func (v *View) ToggleSave(ctx context.Context, id post.PostId) bool {
	saved, err := v.svc.ToggleSave(ctx, v.viewer, tables.TargetPost, string(id))
	if !v.catch(ctx, err) {
		return false
	}
	for _, p := range v.feed.Posts() {
		if p.Id == id {
			cp := *p
			cp.IsSaved = saved
			v.feed.Replace(&cp)
		}
	}
	return true
}

func (v *View) GrantAward(ctx context.Context, id post.PostId, awardType string) bool {
	a, err := v.svc.GrantAward(ctx, v.viewer, tables.TargetPost, string(id), awardType)
	if !v.catch(ctx, err) {
		return false
	}
	for _, p := range v.feed.Posts() {
		if p.Id == id {
			cp := *p
			cp.Awards = append(append(cp.Awards[:0:0], p.Awards...), a)
			v.feed.Replace(&cp)
		}
	}
	return true
}

// OpenThread fetches the comments of a post into the view.
func (v *View) OpenThread(ctx context.Context, id post.PostId) bool {
	flat, err := v.svc.Comments(ctx, v.viewer, id)
	if !v.catch(ctx, err) {
		return false
	}
	v.mu.Lock()
	v.threads[id] = comment.NewArena(flat)
	v.mu.Unlock()
	return true
}

// Thread returns the comment forest of an opened post.
func (v *View) Thread(id post.PostId) []*comment.Comment {
	v.mu.Lock()
	defer v.mu.Unlock()
	a, ok := v.threads[id]
	if !ok {
		return nil
	}
	return a.Forest()
}

// inThread applies fn to the arena of an opened thread. Threads that were never
// opened stay unloaded; OpenThread fetches them whole.
func (v *View) inThread(id post.PostId, fn func(a *comment.Arena)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if a, ok := v.threads[id]; ok {
		fn(a)
	}
}

func (v *View) setCommentCount(id post.PostId, n int64) {
	for _, p := range v.feed.Posts() {
		if p.Id == id {
			cp := *p
			cp.CommentCount = n
			v.feed.Replace(&cp)
		}
	}
}

func (v *View) AddComment(ctx context.Context, postId post.PostId, parentId comment.CommentId, body string) bool {
	ch, err := v.svc.AddComment(ctx, v.viewer, postId, parentId, body)
	if !v.catch(ctx, err) {
		return false
	}
	v.inThread(postId, func(a *comment.Arena) { a.Put(ch.Comment) })
	v.setCommentCount(postId, ch.CommentCount)
	return true
}

func (v *View) DeleteComment(ctx context.Context, postId post.PostId, id comment.CommentId) bool {
	ch, err := v.svc.DeleteComment(ctx, v.viewer, postId, id)
	if !v.catch(ctx, err) {
		return false
	}
	v.inThread(postId, func(a *comment.Arena) { a.Remove(id) })
	v.setCommentCount(postId, ch.CommentCount)
	return true
}

func (v *View) VoteComment(ctx context.Context, postId post.PostId, id comment.CommentId, value voting.VotingScore) bool {
	out, err := v.svc.VoteComment(ctx, v.viewer, id, value)
	if !v.catch(ctx, err) {
		return false
	}
	v.inThread(postId, func(a *comment.Arena) {
		a.Update(id, func(c *comment.Comment) {
			c.Likes = out.Likes
			c.Dislikes = out.Dislikes
			c.IsLiked = out.Current() == voting.ScoreUp
			c.IsDisliked = out.Current() == voting.ScoreDown
		})
	})
	return true
}
