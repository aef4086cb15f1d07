package post

import (
	"context"
	"sync"
)

// FetchFunc loads one page of posts for q starting at offset.
type FetchFunc func(ctx context.Context, q Query, offset, limit int) ([]*Post, error)

// Feed accumulates pages of a listing. Changing the query starts a new
// generation. Pages fetched for an older generation are dropped on arrival.
type Feed struct {
	mu        sync.Mutex
	fetch     FetchFunc
	pageSize  int
	query     Query
	gen       uint64
	loading   bool
	exhausted bool
	offset    int
	posts     []*Post
}

func NewFeed(fetch FetchFunc, pageSize int) *Feed {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Feed{fetch: fetch, pageSize: pageSize, query: Query{Sort: SortNewest, Window: WindowAll}}
}

// Reset switches to q and clears the accumulated list.
func (f *Feed) Reset(q Query) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.query = q
	f.loading = false
	f.exhausted = false
	f.offset = 0
	f.posts = nil
}

// LoadMore appends the next page. It returns false without fetching when a load
// is already running or the listing is exhausted, and false when the page
// arrived after a Reset.
func (f *Feed) LoadMore(ctx context.Context) (bool, error) {
	f.mu.Lock()
	if f.loading || f.exhausted {
		f.mu.Unlock()
		return false, nil
	}
	f.loading = true
	gen, q, offset := f.gen, f.query, f.offset
	f.mu.Unlock()

	page, err := f.fetch(ctx, q, offset, f.pageSize)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return false, nil
	}
	f.loading = false
	if err != nil {
		return false, err
	}

	seen := make(map[PostId]bool, len(f.posts))
	for _, p := range f.posts {
		seen[p.Id] = true
	}
	for _, p := range page {
		if !seen[p.Id] {
			seen[p.Id] = true
			f.posts = append(f.posts, p)
		}
	}
	f.offset += len(page)
	if len(page) < f.pageSize {
		f.exhausted = true
	}
	return true, nil
}

func (f *Feed) Posts() []*Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Post, len(f.posts))
	copy(out, f.posts)
	return out
}

func (f *Feed) Query() Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.query
}

func (f *Feed) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

func (f *Feed) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exhausted
}

// Replace swaps in the fresh copy of a listed post. Unknown posts are ignored.
func (f *Feed) Replace(p *Post) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, cur := range f.posts {
		if cur.Id == p.Id {
			f.posts[i] = p
			return true
		}
	}
	return false
}

// Prepend puts a newly created post at the top of the list.
func (f *Feed) Prepend(p *Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append([]*Post{p}, f.posts...)
	f.offset++
}

func (f *Feed) Remove(id PostId) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, cur := range f.posts {
		if cur.Id == id {
			f.posts = append(f.posts[:i], f.posts[i+1:]...)
			f.offset--
			return
		}
	}
}
