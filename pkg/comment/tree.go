package comment

import "sort"

// BuildTree turns the flat comments of one post into a forest. Roots and every
// reply list are ordered by creation time, then id.
//
// A comment whose parent is missing, or whose stored depth is not the parent's
// depth plus one, is returned as an extra root with Orphaned set. Depths in the
// result are recomputed from the tree shape, so orphans sit at depth 0.
//
// The input is not modified.
func BuildTree(flat []*Comment) []*Comment {
	nodes := make([]*Comment, 0, len(flat))
	byId := make(map[CommentId]*Comment, len(flat))
	for _, c := range flat {
		if c == nil {
			continue
		}
		if _, dup := byId[c.Id]; dup {
			continue
		}
		cp := *c
		cp.Replies = nil
		nodes = append(nodes, &cp)
		byId[cp.Id] = &cp
	}
	sortComments(nodes)

	var roots []*Comment
	for _, c := range nodes {
		if c.IsRoot() {
			if c.Depth != 0 {
				c.Orphaned = true
			}
			roots = append(roots, c)
			continue
		}
		parent, ok := byId[c.ParentId]
		if !ok || parent.Depth+1 != c.Depth {
			c.Orphaned = true
			roots = append(roots, c)
			continue
		}
		parent.Replies = append(parent.Replies, c)
	}

	visited := make(map[CommentId]bool, len(nodes))
	forest := make([]*Comment, 0, len(roots))
	for _, r := range roots {
		if setDepth(r, 0, visited) {
			forest = append(forest, r)
		}
	}
	return forest
}

func setDepth(c *Comment, depth int, visited map[CommentId]bool) bool {
	if visited[c.Id] {
		return false
	}
	visited[c.Id] = true
	c.Depth = depth
	kept := c.Replies[:0]
	for _, r := range c.Replies {
		if setDepth(r, depth+1, visited) {
			kept = append(kept, r)
		}
	}
	c.Replies = kept
	return true
}

func sortComments(cs []*Comment) {
	sort.SliceStable(cs, func(i, j int) bool {
		if !cs[i].Created.Equal(cs[j].Created) {
			return cs[i].Created.Before(cs[j].Created)
		}
		return cs[i].Id < cs[j].Id
	})
}

// Flatten lists the forest in depth-first order, without replies.
func Flatten(forest []*Comment) []*Comment {
	var out []*Comment
	var walk func([]*Comment)
	walk = func(cs []*Comment) {
		for _, c := range cs {
			cp := *c
			cp.Replies = nil
			out = append(out, &cp)
			walk(c.Replies)
		}
	}
	walk(forest)
	return out
}

// Count is the number of comments in the forest.
func Count(forest []*Comment) int {
	n := 0
	for _, c := range forest {
		n += 1 + Count(c.Replies)
	}
	return n
}
