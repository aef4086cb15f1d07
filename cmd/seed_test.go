package main

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"ecoforum/pkg/community"
	"ecoforum/pkg/gateway/memstore"
	"ecoforum/pkg/logger"
	"ecoforum/pkg/post"
	"ecoforum/pkg/tables"
	"ecoforum/pkg/user"
	"ecoforum/pkg/verification"
)

type fakeUsers struct {
	users    []*user.User
	verified map[string]bool
}

func (r *fakeUsers) Add(_ context.Context, u *user.User) (string, error) {
	id := strconv.Itoa(len(r.users) + 1)
	stored := *u
	stored.Id = id
	r.users = append(r.users, &stored)
	return id, nil
}

func (r *fakeUsers) GetAll(context.Context) ([]*user.User, error) {
	return r.users, nil
}

func (r *fakeUsers) MarkEmailVerified(_ context.Context, id string) error {
	r.verified[id] = true
	for _, u := range r.users {
		if u.Id == id {
			u.EmailVerified = true
		}
	}
	return nil
}

func TestSeederRun(t *testing.T) {
	repo := &fakeUsers{verified: map[string]bool{}}
	store := memstore.New(tables.Unique)
	s := &seeder{
		users: repo,
		forum: community.NewService(store, community.Config{
			RequireVerifiedEmail: true,
			Verification:         verification.DefaultConfig(),
		}),
		log: logger.Run("fatal"),
	}

	err := s.run(context.Background(), &seedOptions{Users: 3, Posts: 4, Comments: 5})
	assert.Nil(t, err)

	assert.Len(t, repo.users, 4)
	assert.Equal(t, "pike", repo.users[0].Username)
	assert.Len(t, repo.verified, 4)
	assert.Len(t, repo.users[0].Password, 8+32)

	posts, err := s.forum.ListPosts(context.Background(), nil, post.Query{Sort: post.SortNewest}, 0, 10)
	assert.Nil(t, err)
	assert.Len(t, posts, 4)
	for _, p := range posts {
		thread, err := s.forum.Comments(context.Background(), nil, p.Id)
		assert.Nil(t, err)
		assert.Equal(t, p.CommentCount, int64(len(thread)))
	}

	t.Run("existing authors are reused", func(t *testing.T) {
		err := s.run(context.Background(), &seedOptions{Users: 3, Posts: 1})
		assert.Nil(t, err)
		assert.Len(t, repo.users, 4)
		assert.Equal(t, 5, store.Len(tables.Posts))
	})
}

func TestSeedRefusesMemoryStore(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	if err := ioutil.WriteFile(envFile, []byte("FORUM_STORE=memory\nLOG_LEVEL=fatal\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FORUM_STORE", "memory")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"--env-file", envFile, "seed"})
	cmd.SetOut(ioutil.Discard)
	cmd.SetErr(ioutil.Discard)
	err := cmd.Execute()
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "FORUM_STORE=memory")
	}
}

func TestRootRejectsBadConfig(t *testing.T) {
	t.Setenv("PAGE_SIZE", "lots")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"seed"})
	cmd.SetOut(ioutil.Discard)
	cmd.SetErr(ioutil.Discard)
	err := cmd.Execute()
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "PAGE_SIZE")
	}
}
