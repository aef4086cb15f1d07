package post

import (
	"sort"
	"strings"
	"time"

	"ecoforum/pkg/common"
	"ecoforum/pkg/gateway"
)

type SortMode string

const (
	SortNewest        SortMode = "newest"
	SortTop           SortMode = "top"
	SortControversial SortMode = "controversial"
	// SortHot ranks by comment count.
	SortHot SortMode = "hot"
)

type Window string

const (
	WindowToday Window = "today"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
	WindowYear  Window = "year"
	WindowAll   Window = "all"
)

const day = 24 * time.Hour

// Duration is zero for WindowAll.
func (w Window) Duration() time.Duration {
	switch w {
	case WindowToday:
		return day
	case WindowWeek:
		return 7 * day
	case WindowMonth:
		return 30 * day
	case WindowYear:
		return 365 * day
	}
	return 0
}

func ParseSort(s string) (SortMode, error) {
	switch m := SortMode(strings.ToLower(s)); m {
	case "":
		return SortNewest, nil
	case SortNewest, SortTop, SortControversial, SortHot:
		return m, nil
	}
	return "", common.Invalid("sort", "must be newest, top, controversial or hot")
}

func ParseWindow(s string) (Window, error) {
	switch w := Window(strings.ToLower(s)); w {
	case "":
		return WindowAll, nil
	case WindowToday, WindowWeek, WindowMonth, WindowYear, WindowAll:
		return w, nil
	}
	return "", common.Invalid("window", "must be today, week, month, year or all")
}

// Query is the filter and sort configuration of a post listing.
type Query struct {
	Sort     SortMode `json:"sort"`
	Window   Window   `json:"window"`
	Category string   `json:"category"`
	Search   string   `json:"search"`
}

func (q Query) category() string {
	if strings.EqualFold(q.Category, "all") {
		return ""
	}
	return q.Category
}

// Keep reports whether p passes the query filters at the given moment. A post
// created exactly one window ago is outside the window.
func (q Query) Keep(p *Post, now time.Time) bool {
	if c := q.category(); c != "" && p.Category != c {
		return false
	}
	if q.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(q.Search)) {
		return false
	}
	if d := q.Window.Duration(); d > 0 && !p.Created.After(now.Add(-d)) {
		return false
	}
	return true
}

func sortKey(p *Post, m SortMode) int64 {
	switch m {
	case SortTop:
		return p.Likes
	case SortControversial:
		return p.Dislikes
	case SortHot:
		return p.CommentCount
	}
	return 0
}

func (q Query) less(a, b *Post) bool {
	if q.Sort != SortNewest && q.Sort != "" {
		ka, kb := sortKey(a, q.Sort), sortKey(b, q.Sort)
		if ka != kb {
			return ka > kb
		}
	}
	if !a.Created.Equal(b.Created) {
		return a.Created.After(b.Created)
	}
	return a.Id < b.Id
}

// Rank filters and orders posts without touching the input slice. Ties fall
// back to newest first, then id.
func Rank(posts []*Post, q Query, now time.Time) []*Post {
	out := make([]*Post, 0, len(posts))
	for _, p := range posts {
		if p != nil && q.Keep(p, now) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return q.less(out[i], out[j])
	})
	return out
}

// Filters expresses the query for a gateway select.
func (q Query) Filters(now time.Time) []gateway.Filter {
	var fs []gateway.Filter
	if c := q.category(); c != "" {
		fs = append(fs, gateway.Eq("category", c))
	}
	if q.Search != "" {
		fs = append(fs, gateway.Contains("title", q.Search))
	}
	if d := q.Window.Duration(); d > 0 {
		fs = append(fs, gateway.Gt("created", now.Add(-d)))
	}
	return fs
}

// Order is the gateway ordering matching Rank.
func (q Query) Order() []gateway.Order {
	var os []gateway.Order
	switch q.Sort {
	case SortTop:
		os = append(os, gateway.Order{Field: "likes", Desc: true})
	case SortControversial:
		os = append(os, gateway.Order{Field: "dislikes", Desc: true})
	case SortHot:
		os = append(os, gateway.Order{Field: "comment_count", Desc: true})
	}
	return append(os, gateway.Order{Field: "created", Desc: true}, gateway.Order{Field: "id"})
}
