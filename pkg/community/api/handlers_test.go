package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"ecoforum/pkg/community"
	"ecoforum/pkg/gateway/memstore"
	"ecoforum/pkg/karma"
	"ecoforum/pkg/post"
	"ecoforum/pkg/sessions"
	"ecoforum/pkg/tables"
	"ecoforum/pkg/user"
	"ecoforum/pkg/verification"
)

var users = map[string]*user.User{
	"alice": {Id: "alice", Username: "alice", EmailVerified: true},
	"bob":   {Id: "bob", Username: "bob", EmailVerified: true},
	"carol": {Id: "carol", Username: "carol", EmailVerified: true},
	"dave":  {Id: "dave", Username: "dave", EmailVerified: true},
}

// asUser stands in for the auth middleware: the X-Test-User header names the caller.
func asUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := users[r.Header.Get("X-Test-User")]; ok {
			r = r.WithContext(sessions.WithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

type client struct {
	t      *testing.T
	server *httptest.Server
}

func newClient(t *testing.T) *client {
	svc := community.NewService(memstore.New(tables.Unique), community.Config{
		Verification: verification.DefaultConfig(),
	})
	r := mux.NewRouter()
	r.Use(asUser)
	NewForumHandler(svc).Routes(r.PathPrefix("/api").Subrouter())
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &client{t: t, server: server}
}

func (c *client) do(method, path, who, body string, out interface{}) int {
	c.t.Helper()
	req, err := http.NewRequest(method, c.server.URL+path, strings.NewReader(body))
	if err != nil {
		c.t.Fatalf("bad request: %v", err)
	}
	if who != "" {
		req.Header.Set("X-Test-User", who)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("can't decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (c *client) createPost(who, title, category string) *post.Post {
	c.t.Helper()
	p := new(post.Post)
	code := c.do("POST", "/api/posts", who,
		fmt.Sprintf(`{"title": %q, "content": "details", "category": %q}`, title, category), p)
	assert.Equal(c.t, http.StatusCreated, code)
	return p
}

func TestPostsLifecycle(t *testing.T) {
	c := newClient(t)
	p := c.createPost("alice", "Community garden", "food")
	c.createPost("bob", "Bike lanes", "transport")

	var list []*post.Post
	assert.Equal(t, http.StatusOK, c.do("GET", "/api/posts?sort=newest&category=food", "", "", &list))
	if assert.Len(t, list, 1) {
		assert.Equal(t, p.Id, list[0].Id)
	}

	msg := struct{ Message string }{}
	assert.Equal(t, http.StatusBadRequest, c.do("GET", "/api/posts?sort=best", "", "", &msg))
	assert.Equal(t, http.StatusBadRequest, c.do("GET", "/api/posts?limit=-1", "", "", &msg))

	assert.Equal(t, http.StatusUnauthorized, c.do("POST", "/api/posts", "", `{"title": "x", "content": "y"}`, &msg))
	assert.Equal(t, "please sign in to continue", msg.Message)
	assert.Equal(t, http.StatusBadRequest, c.do("POST", "/api/posts", "alice", `{"title": `, &msg))

	var got post.Post
	assert.Equal(t, http.StatusOK, c.do("GET", "/api/post/"+string(p.Id), "", "", &got))
	assert.Equal(t, "Community garden", got.Title)
	assert.Equal(t, http.StatusNotFound, c.do("GET", "/api/post/missing", "", "", &msg))

	var mine []*post.Post
	assert.Equal(t, http.StatusOK, c.do("GET", "/api/user/alice/posts", "", "", &mine))
	assert.Len(t, mine, 1)

	assert.Equal(t, http.StatusForbidden, c.do("DELETE", "/api/post/"+string(p.Id), "bob", "", &msg))
	assert.Equal(t, http.StatusOK, c.do("DELETE", "/api/post/"+string(p.Id), "alice", "", &msg))
	assert.Equal(t, http.StatusNotFound, c.do("GET", "/api/post/"+string(p.Id), "", "", &msg))
}

func TestVotingSavingAwarding(t *testing.T) {
	c := newClient(t)
	p := c.createPost("alice", "Solar co-op", "energy")
	path := "/api/post/" + string(p.Id)

	var voted post.Post
	assert.Equal(t, http.StatusOK, c.do("POST", path+"/vote", "bob", `{"value": "up"}`, &voted))
	assert.Equal(t, int64(1), voted.Likes)
	assert.True(t, voted.IsLiked)

	assert.Equal(t, http.StatusOK, c.do("POST", path+"/vote", "bob", `{"value": "down"}`, &voted))
	assert.Equal(t, int64(0), voted.Likes)
	assert.Equal(t, int64(1), voted.Dislikes)

	msg := struct{ Message string }{}
	assert.Equal(t, http.StatusBadRequest, c.do("POST", path+"/vote", "bob", `{"value": "sideways"}`, &msg))
	assert.Equal(t, http.StatusUnauthorized, c.do("POST", path+"/vote", "", `{"value": "up"}`, &msg))

	saved := struct{ Saved bool }{}
	assert.Equal(t, http.StatusOK, c.do("POST", path+"/save", "bob", "", &saved))
	assert.True(t, saved.Saved)
	assert.Equal(t, http.StatusOK, c.do("POST", path+"/save", "bob", "", &saved))
	assert.False(t, saved.Saved)

	assert.Equal(t, http.StatusCreated, c.do("POST", path+"/award", "bob", `{"type": "Tree"}`, nil))
	assert.Equal(t, http.StatusBadRequest, c.do("POST", path+"/award", "bob", `{"type": "diamond"}`, &msg))

	var profile karma.Profile
	assert.Equal(t, http.StatusOK, c.do("GET", "/api/user/alice/profile", "", "", &profile))
	assert.Equal(t, int64(-1+20), profile.Karma)
	assert.Equal(t, "Seedling", profile.Badge)
}

func TestCommentsOverHTTP(t *testing.T) {
	c := newClient(t)
	p := c.createPost("alice", "Zero waste", "waste")
	path := "/api/post/" + string(p.Id) + "/comments"

	var root community.CommentChange
	assert.Equal(t, http.StatusCreated, c.do("POST", path, "bob", `{"body": "Glass jars"}`, &root))
	assert.Equal(t, int64(1), root.CommentCount)

	var reply community.CommentChange
	body := fmt.Sprintf(`{"body": "Where?", "parent_id": %q}`, root.Comment.Id)
	assert.Equal(t, http.StatusCreated, c.do("POST", path, "carol", body, &reply))
	assert.Equal(t, 1, reply.Comment.Depth)

	msg := struct{ Message string }{}
	assert.Equal(t, http.StatusBadRequest, c.do("POST", path, "carol", `{"body": "  "}`, &msg))

	assert.Equal(t, http.StatusOK, c.do("POST", "/api/comment/"+string(reply.Comment.Id)+"/vote", "bob", `{"value": "-1"}`, nil))

	var got post.Post
	assert.Equal(t, http.StatusOK, c.do("GET", "/api/post/"+string(p.Id), "bob", "", &got))
	if assert.Len(t, got.Comments, 1) && assert.Len(t, got.Comments[0].Replies, 1) {
		assert.Equal(t, int64(1), got.Comments[0].Replies[0].Dislikes)
		assert.True(t, got.Comments[0].Replies[0].IsDisliked)
	}

	assert.Equal(t, http.StatusForbidden, c.do("DELETE", path+"/"+string(root.Comment.Id), "carol", "", &msg))
	var removed community.CommentChange
	assert.Equal(t, http.StatusOK, c.do("DELETE", path+"/"+string(root.Comment.Id), "bob", "", &removed))
	assert.Len(t, removed.Removed, 2)
	assert.Equal(t, int64(0), removed.CommentCount)
}

func TestVerificationOverHTTP(t *testing.T) {
	c := newClient(t)
	msg := struct{ Message string }{}

	var sub verification.Submission
	assert.Equal(t, http.StatusOK, c.do("GET", "/api/challenge/c1/proof/alice", "", "", &sub))
	assert.Equal(t, verification.StatusUnsubmitted, sub.Status)

	assert.Equal(t, http.StatusCreated, c.do("POST", "/api/challenge/c1/proof", "alice", `{"photo_ref": "photos/1.jpg"}`, &sub))
	assert.Equal(t, verification.StatusPending, sub.Status)
	assert.Equal(t, http.StatusConflict, c.do("POST", "/api/challenge/c1/proof", "alice", `{"photo_ref": "photos/2.jpg"}`, &msg))

	var queue []*verification.Submission
	assert.Equal(t, http.StatusOK, c.do("GET", "/api/challenge/c1/queue", "bob", "", &queue))
	assert.Len(t, queue, 1)

	review := "/api/challenge/c1/proof/alice/review"
	assert.Equal(t, http.StatusForbidden, c.do("POST", review, "alice", `{"score": 90}`, &msg))
	assert.Equal(t, http.StatusBadRequest, c.do("POST", review, "bob", `{}`, &msg))
	assert.Equal(t, http.StatusBadRequest, c.do("POST", review, "bob", `{"score": 101}`, &msg))

	for _, who := range []string{"bob", "carol", "dave"} {
		assert.Equal(t, http.StatusOK, c.do("POST", review, who, `{"score": 80}`, &sub))
	}
	assert.Equal(t, verification.StatusVerified, sub.Status)
	assert.Equal(t, http.StatusConflict, c.do("POST", review, "bob", `{"score": 80}`, &msg))

	var profile karma.Profile
	assert.Equal(t, http.StatusOK, c.do("GET", "/api/user/alice/profile", "", "", &profile))
	assert.Equal(t, verification.DefaultConfig().Bonus, profile.Karma)
}
