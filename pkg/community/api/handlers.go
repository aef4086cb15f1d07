// Package api exposes the forum over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"ecoforum/pkg/award"
	"ecoforum/pkg/comment"
	. "ecoforum/pkg/common"
	"ecoforum/pkg/community"
	"ecoforum/pkg/karma"
	"ecoforum/pkg/logger"
	"ecoforum/pkg/post"
	"ecoforum/pkg/sessions"
	"ecoforum/pkg/tables"
	"ecoforum/pkg/user"
	"ecoforum/pkg/verification"
	"ecoforum/pkg/voting"
)

type Forum interface {
	CreatePost(ctx context.Context, u *user.User, title, content, category string) (*post.Post, error)
	GetPost(ctx context.Context, viewer *user.User, id post.PostId) (*post.Post, error)
	ListPosts(ctx context.Context, viewer *user.User, q post.Query, offset, limit int) ([]*post.Post, error)
	UserPosts(ctx context.Context, viewer *user.User, authorId string) ([]*post.Post, error)
	DeletePost(ctx context.Context, u *user.User, id post.PostId) error

	VotePost(ctx context.Context, u *user.User, id post.PostId, value voting.VotingScore) (*post.Post, error)
	VoteComment(ctx context.Context, u *user.User, id comment.CommentId, value voting.VotingScore) (*voting.Outcome, error)
	ToggleSave(ctx context.Context, u *user.User, targetType, targetId string) (bool, error)
	GrantAward(ctx context.Context, u *user.User, targetType, targetId, awardType string) (*award.Award, error)

	AddComment(ctx context.Context, u *user.User, postId post.PostId, parentId comment.CommentId, body string) (*community.CommentChange, error)
	DeleteComment(ctx context.Context, u *user.User, postId post.PostId, id comment.CommentId) (*community.CommentChange, error)

	Profile(ctx context.Context, userId string) (*karma.Profile, error)
	SubmitProof(ctx context.Context, u *user.User, challengeId, photoRef string) (*verification.Submission, error)
	AddReview(ctx context.Context, u *user.User, challengeId, submitterId string, score int) (*verification.Submission, error)
	Submission(ctx context.Context, challengeId, userId string) (*verification.Submission, error)
	ReviewQueue(ctx context.Context, u *user.User, challengeId string) ([]*verification.Submission, error)
}

type ForumHandler struct {
	Forum Forum
}

func NewForumHandler(f Forum) *ForumHandler {
	return &ForumHandler{Forum: f}
}

// Routes mounts every forum endpoint on r.
func (fh *ForumHandler) Routes(r *mux.Router) {
	r.HandleFunc("/posts", fh.List).Methods("GET")
	r.HandleFunc("/posts", fh.Add).Methods("POST")
	r.HandleFunc("/post/{post_id}", fh.Get).Methods("GET")
	r.HandleFunc("/post/{post_id}", fh.Delete).Methods("DELETE")
	r.HandleFunc("/post/{post_id}/vote", fh.VotePost).Methods("POST")
	r.HandleFunc("/post/{post_id}/save", fh.save(tables.TargetPost, "post_id")).Methods("POST")
	r.HandleFunc("/post/{post_id}/award", fh.award(tables.TargetPost, "post_id")).Methods("POST")
	r.HandleFunc("/post/{post_id}/comments", fh.AddComment).Methods("POST")
	r.HandleFunc("/post/{post_id}/comments/{comment_id}", fh.DeleteComment).Methods("DELETE")

	r.HandleFunc("/comment/{comment_id}/vote", fh.VoteComment).Methods("POST")
	r.HandleFunc("/comment/{comment_id}/save", fh.save(tables.TargetComment, "comment_id")).Methods("POST")
	r.HandleFunc("/comment/{comment_id}/award", fh.award(tables.TargetComment, "comment_id")).Methods("POST")

	r.HandleFunc("/user/{user_id}/posts", fh.UserPosts).Methods("GET")
	r.HandleFunc("/user/{user_id}/profile", fh.Profile).Methods("GET")

	r.HandleFunc("/challenge/{challenge_id}/proof", fh.SubmitProof).Methods("POST")
	r.HandleFunc("/challenge/{challenge_id}/queue", fh.ReviewQueue).Methods("GET")
	r.HandleFunc("/challenge/{challenge_id}/proof/{user_id}", fh.Submission).Methods("GET")
	r.HandleFunc("/challenge/{challenge_id}/proof/{user_id}/review", fh.Review).Methods("POST")
}

// viewer is the signed-in user or nil.
func viewer(r *http.Request) *user.User {
	u, err := sessions.GetAuthUser(r.Context())
	if err != nil {
		return nil
	}
	return u
}

func fail(w http.ResponseWriter, r *http.Request, what string, err error) {
	switch KindOf(err) {
	case KindGateway, KindUnknown:
		logger.Log(r.Context()).Errorf("%s: %v", what, err)
	default:
		logger.Log(r.Context()).Infof("%s: %v", what, err)
	}
	WriteError(w, err)
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	WriteRespJSON(w, data)
}

func parseQuery(r *http.Request) (post.Query, int, int, error) {
	params := r.URL.Query()
	var q post.Query
	var err error
	if q.Sort, err = post.ParseSort(params.Get("sort")); err != nil {
		return q, 0, 0, err
	}
	if q.Window, err = post.ParseWindow(params.Get("window")); err != nil {
		return q, 0, 0, err
	}
	q.Category = params.Get("category")
	q.Search = params.Get("q")

	offset, limit := 0, 0
	if v := params.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return q, 0, 0, Invalid("offset", "must be a non-negative number")
		}
	}
	if v := params.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return q, 0, 0, Invalid("limit", "must be a non-negative number")
		}
	}
	return q, offset, limit, nil
}

func (fh *ForumHandler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	q, offset, limit, err := parseQuery(r)
	if err != nil {
		fail(w, r, "bad posts query", err)
		return
	}
	posts, err := fh.Forum.ListPosts(r.Context(), viewer(r), q, offset, limit)
	if err != nil {
		fail(w, r, "can't load posts", err)
		return
	}
	respond(w, http.StatusOK, posts)
}

func (fh *ForumHandler) Add(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	req := struct {
		Title    string `json:"title"`
		Content  string `json:"content"`
		Category string `json:"category"`
	}{}
	if err := ParseReqBody(r.Body, &req); err != nil {
		fail(w, r, "can't parse post from request body", err)
		return
	}

	p, err := fh.Forum.CreatePost(r.Context(), viewer(r), req.Title, req.Content, req.Category)
	if err != nil {
		fail(w, r, "can't add post", err)
		return
	}
	respond(w, http.StatusCreated, p)
}

func (fh *ForumHandler) Get(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	postId := post.PostId(mux.Vars(r)["post_id"])
	p, err := fh.Forum.GetPost(r.Context(), viewer(r), postId)
	if err != nil {
		fail(w, r, "can't get post "+string(postId), err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (fh *ForumHandler) Delete(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	postId := post.PostId(mux.Vars(r)["post_id"])
	if err := fh.Forum.DeletePost(r.Context(), viewer(r), postId); err != nil {
		fail(w, r, "can't remove post "+string(postId), err)
		return
	}
	WriteMsg(w, "success", http.StatusOK)
}

func parseVote(r *http.Request) (voting.VotingScore, error) {
	req := struct {
		Value string `json:"value"`
	}{}
	if err := ParseReqBody(r.Body, &req); err != nil {
		return voting.ScoreDiscard, err
	}
	return voting.ParseScore(req.Value)
}

func (fh *ForumHandler) VotePost(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	postId := post.PostId(mux.Vars(r)["post_id"])
	value, err := parseVote(r)
	if err != nil {
		fail(w, r, "bad vote", err)
		return
	}
	p, err := fh.Forum.VotePost(r.Context(), viewer(r), postId, value)
	if err != nil {
		fail(w, r, "can't vote for post "+string(postId), err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (fh *ForumHandler) VoteComment(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	commentId := comment.CommentId(mux.Vars(r)["comment_id"])
	value, err := parseVote(r)
	if err != nil {
		fail(w, r, "bad vote", err)
		return
	}
	out, err := fh.Forum.VoteComment(r.Context(), viewer(r), commentId, value)
	if err != nil {
		fail(w, r, "can't vote for comment "+string(commentId), err)
		return
	}
	respond(w, http.StatusOK, out)
}

func (fh *ForumHandler) save(targetType, idVar string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		targetId := mux.Vars(r)[idVar]
		saved, err := fh.Forum.ToggleSave(r.Context(), viewer(r), targetType, targetId)
		if err != nil {
			fail(w, r, "can't toggle save of "+targetType+" "+targetId, err)
			return
		}
		respond(w, http.StatusOK, struct {
			Saved bool `json:"saved"`
		}{saved})
	}
}

func (fh *ForumHandler) award(targetType, idVar string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		targetId := mux.Vars(r)[idVar]
		req := struct {
			Type string `json:"type"`
		}{}
		if err := ParseReqBody(r.Body, &req); err != nil {
			fail(w, r, "can't parse award", err)
			return
		}
		a, err := fh.Forum.GrantAward(r.Context(), viewer(r), targetType, targetId, req.Type)
		if err != nil {
			fail(w, r, "can't award "+targetType+" "+targetId, err)
			return
		}
		respond(w, http.StatusCreated, a)
	}
}

func (fh *ForumHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	postId := post.PostId(mux.Vars(r)["post_id"])
	req := struct {
		Body     string `json:"body"`
		ParentId string `json:"parent_id"`
	}{}
	if err := ParseReqBody(r.Body, &req); err != nil {
		fail(w, r, "can't get comment body", err)
		return
	}

	change, err := fh.Forum.AddComment(r.Context(), viewer(r), postId, comment.CommentId(req.ParentId), req.Body)
	if err != nil {
		fail(w, r, "can't add comment to "+string(postId), err)
		return
	}
	respond(w, http.StatusCreated, change)
}

func (fh *ForumHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	vars := mux.Vars(r)
	postId := post.PostId(vars["post_id"])
	commentId := comment.CommentId(vars["comment_id"])

	change, err := fh.Forum.DeleteComment(r.Context(), viewer(r), postId, commentId)
	if err != nil {
		fail(w, r, "can't remove comment "+string(commentId), err)
		return
	}
	respond(w, http.StatusOK, change)
}

func (fh *ForumHandler) UserPosts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userId := mux.Vars(r)["user_id"]
	posts, err := fh.Forum.UserPosts(r.Context(), viewer(r), userId)
	if err != nil {
		fail(w, r, "can't load posts of user "+userId, err)
		return
	}
	respond(w, http.StatusOK, posts)
}

func (fh *ForumHandler) Profile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userId := mux.Vars(r)["user_id"]
	p, err := fh.Forum.Profile(r.Context(), userId)
	if err != nil {
		fail(w, r, "can't load profile of user "+userId, err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (fh *ForumHandler) SubmitProof(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	challengeId := mux.Vars(r)["challenge_id"]
	req := struct {
		PhotoRef string `json:"photo_ref"`
	}{}
	if err := ParseReqBody(r.Body, &req); err != nil {
		fail(w, r, "can't parse proof", err)
		return
	}
	sub, err := fh.Forum.SubmitProof(r.Context(), viewer(r), challengeId, req.PhotoRef)
	if err != nil {
		fail(w, r, "can't submit proof for challenge "+challengeId, err)
		return
	}
	respond(w, http.StatusCreated, sub)
}

func (fh *ForumHandler) Submission(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	vars := mux.Vars(r)
	sub, err := fh.Forum.Submission(r.Context(), vars["challenge_id"], vars["user_id"])
	if err != nil {
		fail(w, r, "can't load submission", err)
		return
	}
	respond(w, http.StatusOK, sub)
}

func (fh *ForumHandler) Review(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	vars := mux.Vars(r)
	req := struct {
		Score *int `json:"score"`
	}{}
	if err := ParseReqBody(r.Body, &req); err != nil {
		fail(w, r, "can't parse review", err)
		return
	}
	if req.Score == nil {
		fail(w, r, "can't parse review", Invalid("score", "is required"))
		return
	}
	sub, err := fh.Forum.AddReview(r.Context(), viewer(r), vars["challenge_id"], vars["user_id"], *req.Score)
	if err != nil {
		fail(w, r, "can't review submission", err)
		return
	}
	respond(w, http.StatusOK, sub)
}

func (fh *ForumHandler) ReviewQueue(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	challengeId := mux.Vars(r)["challenge_id"]
	subs, err := fh.Forum.ReviewQueue(r.Context(), viewer(r), challengeId)
	if err != nil {
		fail(w, r, "can't load review queue for "+challengeId, err)
		return
	}
	respond(w, http.StatusOK, subs)
}
