package comment

// Arena holds the comments of one post flat, indexed by id and by parent. The
// nested view is derived with BuildTree when asked for.
type Arena struct {
	byId     map[CommentId]*Comment
	children map[CommentId]map[CommentId]struct{}
}

func NewArena(flat []*Comment) *Arena {
	a := &Arena{
		byId:     make(map[CommentId]*Comment, len(flat)),
		children: make(map[CommentId]map[CommentId]struct{}),
	}
	for _, c := range flat {
		a.Put(c)
	}
	return a
}

// Put inserts c or replaces the comment with the same id.
func (a *Arena) Put(c *Comment) {
	if c == nil {
		return
	}
	if old, ok := a.byId[c.Id]; ok && old.ParentId != c.ParentId {
		delete(a.children[old.ParentId], c.Id)
	}
	cp := *c
	cp.Replies = nil
	a.byId[cp.Id] = &cp
	if a.children[cp.ParentId] == nil {
		a.children[cp.ParentId] = make(map[CommentId]struct{})
	}
	a.children[cp.ParentId][cp.Id] = struct{}{}
}

func (a *Arena) Get(id CommentId) (*Comment, bool) {
	c, ok := a.byId[id]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

// Update applies fn to the stored comment. It reports false for unknown ids.
func (a *Arena) Update(id CommentId, fn func(*Comment)) bool {
	c, ok := a.byId[id]
	if !ok {
		return false
	}
	fn(c)
	return true
}

// Subtree returns id and all of its descendants, parents first.
func (a *Arena) Subtree(id CommentId) []CommentId {
	if _, ok := a.byId[id]; !ok {
		return nil
	}
	out := []CommentId{id}
	seen := map[CommentId]bool{id: true}
	for i := 0; i < len(out); i++ {
		for child := range a.children[out[i]] {
			if !seen[child] {
				seen[child] = true
				out = append(out, child)
			}
		}
	}
	return out
}

// Remove deletes id with its whole subtree and returns the removed ids.
func (a *Arena) Remove(id CommentId) []CommentId {
	ids := a.Subtree(id)
	for _, cid := range ids {
		c := a.byId[cid]
		delete(a.children[c.ParentId], cid)
		delete(a.children, cid)
		delete(a.byId, cid)
	}
	return ids
}

func (a *Arena) Len() int {
	return len(a.byId)
}

func (a *Arena) All() []*Comment {
	out := make([]*Comment, 0, len(a.byId))
	for _, c := range a.byId {
		cp := *c
		out = append(out, &cp)
	}
	sortComments(out)
	return out
}

// Forest builds the nested view of the arena.
func (a *Arena) Forest() []*Comment {
	return BuildTree(a.All())
}
