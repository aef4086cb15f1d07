package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	. "ecoforum/pkg/common"
	"ecoforum/pkg/logger"
	"ecoforum/pkg/sessions"
	"ecoforum/pkg/user"
)

const userLookupTimeout = 5 * time.Second

type (
	IUserRepo interface {
		GetById(context.Context, string) (*user.User, error)
	}
	ISessionManager interface {
		UserFromToken(string) (*user.User, error)
	}
	Auth struct {
		UserRepo       IUserRepo
		SessionManager ISessionManager
	}
)

func NewAuthMiddleware(sm ISessionManager, ur IUserRepo) *Auth {
	return &Auth{
		UserRepo:       ur,
		SessionManager: sm,
	}
}

// Middleware resolves the caller once per request and puts it into the
// context. Requests without a usable token go on anonymously; handlers decide
// whether that is enough.
func (auth Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := auth.identify(r)
		if err != nil {
			WriteError(w, err)
			return
		}
		if u != nil {
			r = r.WithContext(sessions.WithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

// identify returns nil without an error for anonymous callers. Only a token
// naming a vanished account or an unreachable backend fails the request.
func (auth Auth) identify(r *http.Request) (*user.User, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}
	log := logger.Log(r.Context())

	claimed, err := auth.SessionManager.UserFromToken(header)
	switch {
	case errors.Is(err, ErrGateway):
		log.Errorf("auth: session store failed: %v", err)
		return nil, err
	case err != nil:
		log.Infof("auth: ignoring token: %v", err)
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(r.Context(), userLookupTimeout)
	defer cancel()
	u, err := auth.UserRepo.GetById(ctx, claimed.Id)
	switch {
	case errors.Is(err, ErrNotFound):
		log.Warnf("auth: token for unknown user %s", claimed.Id)
		return nil, fmt.Errorf("auth: %v: %w", err, ErrUnauthenticated)
	case err != nil:
		log.Errorf("auth: can't load user %s: %v", claimed.Id, err)
		return nil, GatewayError("auth: load user", err)
	}
	return u, nil
}
