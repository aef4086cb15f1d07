package api

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"ecoforum/pkg/common"
	"ecoforum/pkg/logger"
	"ecoforum/pkg/sessions"
	"ecoforum/pkg/user"
)

//go:generate mockgen -source=handlers.go -destination=mocks_test.go -package=api

type (
	UserRepo interface {
		UserExists(ctx context.Context, username string) bool
		GetByUsernameAndPass(ctx context.Context, username, password string) (*user.User, error)
		Add(ctx context.Context, u *user.User) (string, error)
		MarkEmailVerified(ctx context.Context, userId string) error
	}

	SessionManager interface {
		CreateToken(*user.User) (string, error)
		CleanupUserSessions(userId string) error
	}

	UserHandler struct {
		Repo           UserRepo
		SessionManager SessionManager
	}

	HttpUser struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
)

const minPasswordLen = 8

func NewUserHandler(r UserRepo, sm SessionManager) *UserHandler {
	return &UserHandler{
		Repo:           r,
		SessionManager: sm,
	}
}

func (uh UserHandler) LogIn(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	httpUser := new(HttpUser)
	if err := common.ParseReqBody(r.Body, httpUser); err != nil {
		logger.Log(r.Context()).Errorf("can't parse request body as user: %v", err)
		common.WriteError(w, err)
		return
	}

	u, err := uh.Repo.GetByUsernameAndPass(r.Context(), httpUser.Username, httpUser.Password)
	if err != nil {
		logger.Log(r.Context()).Infof("can't get the user by username `%s` and password: %v",
			httpUser.Username, err)
		common.WriteMsg(w, "user not found", http.StatusNotFound)
		return
	}

	// Remove expired user session if there are any
	if err := uh.SessionManager.CleanupUserSessions(u.Id); err != nil {
		logger.Log(r.Context()).Errorf("user/handlers: can't cleanup sessions for user `%s`, %v", httpUser.Username, err)
		common.WriteMsg(w, "failed managing user sessions", http.StatusInternalServerError)
		return
	}

	uh.sendToken(w, r, u, http.StatusOK)
}

func (uh UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	httpUser := new(HttpUser)
	if err := common.ParseReqBody(r.Body, httpUser); err != nil {
		logger.Log(r.Context()).Errorf("can't parse request body as user: %v", err)
		common.WriteError(w, err)
		return
	}
	if err := validate(httpUser); err != nil {
		common.WriteError(w, err)
		return
	}

	if uh.Repo.UserExists(r.Context(), httpUser.Username) {
		msg := fmt.Sprintf(`user "%s" already exists`, httpUser.Username)
		logger.Log(r.Context()).Info(msg)
		common.WriteMsg(w, msg, http.StatusConflict)
		return
	}

	newUser := &user.User{
		Username: httpUser.Username,
		Email:    strings.ToLower(httpUser.Email),
		Password: common.HashPass(httpUser.Password, common.NewSalt()),
	}
	id, err := uh.Repo.Add(r.Context(), newUser)
	if err != nil {
		logger.Log(r.Context()).Errorf("can't add user `%s`: %v", httpUser.Username, err)
		common.WriteMsg(w, "can't add user", http.StatusInternalServerError)
		return
	}
	newUser.Id = id

	uh.sendToken(w, r, newUser, http.StatusCreated)
}

// VerifyEmail marks the signed-in user's email as confirmed. Delivery of the
// confirmation link is handled outside this service.
func (uh UserHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	u, err := sessions.GetAuthUser(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := uh.Repo.MarkEmailVerified(r.Context(), u.Id); err != nil {
		logger.Log(r.Context()).Errorf("can't verify email of user %s: %v", u.Id, err)
		common.WriteError(w, err)
		return
	}
	u.EmailVerified = true
	uh.sendToken(w, r, u, http.StatusOK)
}

func validate(u *HttpUser) error {
	switch {
	case common.Blank(u.Username):
		return common.Invalid("username", "must not be empty")
	case len(u.Password) < minPasswordLen:
		return common.Invalid("password", fmt.Sprintf("must have at least %d characters", minPasswordLen))
	}
	if u.Email != "" {
		if _, err := mail.ParseAddress(u.Email); err != nil {
			return common.Invalid("email", "is not a valid address")
		}
	}
	return nil
}

func (uh *UserHandler) sendToken(w http.ResponseWriter, r *http.Request, u *user.User, status int) {
	token, err := uh.SessionManager.CreateToken(u)
	if err != nil {
		logger.Log(r.Context()).Errorf("can't create JWT token from user: %v", err)
		common.WriteMsg(w, "user authentication failed", http.StatusInternalServerError)
		return
	}

	tk := struct {
		Token string `json:"token"`
	}{token}
	w.WriteHeader(status)
	common.WriteRespJSON(w, tk)
}
