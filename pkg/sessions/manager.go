package sessions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/gomodule/redigo/redis"

	. "ecoforum/pkg/common"
	"ecoforum/pkg/logger"
	"ecoforum/pkg/user"
)

const (
	redisNS     = "ecoforumSessions:"
	sessionTTL  = 90 * 24 * time.Hour
	prolongSpan = 24 * time.Hour
)

type (
	sessionKey string

	// SessionManager issues JWTs and keeps one Redis hash per user mapping
	// session ids to their expiry. A token is only honoured while its session
	// entry exists and has not expired.
	SessionManager struct {
		secret []byte
		mu     sync.Mutex // redis.Conn is not safe for concurrent use
		redis  redis.Conn
		Now    func() time.Time
	}

	jwtClaims struct {
		User user.User `json:"user"`
		jwt.StandardClaims
	}
)

const SessionKey sessionKey = "authenticatedUser"

var ErrNoAuth = fmt.Errorf("sessions: no session found: %w", ErrUnauthenticated)

func NewSessionManager(secret string, conn redis.Conn) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		redis:  conn,
		Now:    time.Now,
	}
}

func hashKey(userId string) string {
	return redisNS + userId
}

func (sm *SessionManager) do(cmd string, args ...interface{}) (interface{}, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.redis.Do(cmd, args...)
}

// UserFromToken returns the user carried by a valid token whose session is
// still registered.
func (sm *SessionManager) UserFromToken(authHeader string) (*user.User, error) {
	if authHeader == "" {
		return nil, fmt.Errorf("sessions: auth header not found: %w", ErrUnauthenticated)
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return sm.secret, nil
		})
	if err != nil {
		return nil, fmt.Errorf("sessions: bad token: %v: %w", err, ErrUnauthenticated)
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("sessions: token is not valid: %w", ErrUnauthenticated)
	}

	if err := sm.CheckRedis(claims.User.Id, claims.Id); err != nil {
		return nil, fmt.Errorf("sessions: session is not valid: %w", err)
	}

	return &claims.User, nil
}

// CleanupUserSessions drops the user's expired sessions.
func (sm *SessionManager) CleanupUserSessions(userId string) error {
	sessions, err := redis.StringMap(sm.do("HGETALL", hashKey(userId)))
	if err != nil {
		return fmt.Errorf("sessions: can't HGETALL user sessions: %w", err)
	}

	nowTs := sm.Now().Unix()
	for sessId, exp := range sessions {
		expTs, _ := strconv.ParseInt(exp, 10, 64)
		if nowTs > expTs {
			if _, err := sm.do("HDEL", hashKey(userId), sessId); err != nil {
				return fmt.Errorf("sessions: can't HDEL session %s: %w", sessId, err)
			}
			logger.Log(context.Background()).Debugf("sessions: session %s removed (expired at %s)", sessId, exp)
		}
	}
	return nil
}

// CheckRedis fails when the session is unknown or expired and pushes the
// expiry forward when it is close.
func (sm *SessionManager) CheckRedis(userId, sessionId string) error {
	expirationData, err := redis.Bytes(sm.do("HGET", hashKey(userId), sessionId))
	if errors.Is(err, redis.ErrNil) {
		return fmt.Errorf("sessions: unknown session: %w", ErrUnauthenticated)
	}
	if err != nil {
		return GatewayError("sessions: HGET", err)
	}

	expiredTs, _ := strconv.ParseInt(string(expirationData), 10, 64)
	now := sm.Now()
	if now.Unix() > expiredTs {
		return fmt.Errorf("sessions: session has expired: %w", ErrUnauthenticated)
	}

	if expiredTs-now.Unix() < int64(prolongSpan.Seconds()) {
		if err := sm.AddToRedis(userId, sessionId, now.Add(sessionTTL).Unix()); err != nil {
			return err
		}
	}
	return nil
}

func (sm *SessionManager) AddToRedis(userId, sessionId string, exp int64) error {
	if _, err := sm.do("HSET", hashKey(userId), sessionId, exp); err != nil {
		return GatewayError("sessions: HSET", err)
	}
	return nil
}

// Revoke forgets one session; the token carrying it stops working.
func (sm *SessionManager) Revoke(userId, sessionId string) error {
	if _, err := sm.do("HDEL", hashKey(userId), sessionId); err != nil {
		return GatewayError("sessions: HDEL", err)
	}
	return nil
}

func (sm *SessionManager) CreateToken(u *user.User) (string, error) {
	sessionID := RandStringRunes(10)
	now := sm.Now()
	claims := u.Author()
	data := jwtClaims{
		User: user.User{Id: claims.Id, Username: claims.Username, EmailVerified: u.EmailVerified},
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(sessionTTL).Unix(),
			IssuedAt:  now.Unix(),
			Id:        sessionID,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, data).SignedString(sm.secret)
	if err != nil {
		return "", fmt.Errorf("sessions: sign token: %w", err)
	}

	if err := sm.AddToRedis(u.Id, sessionID, data.ExpiresAt); err != nil {
		return ``, err
	}
	return token, nil
}

func GetAuthUser(ctx context.Context) (*user.User, error) {
	u, ok := ctx.Value(SessionKey).(*user.User)
	if !ok || u == nil {
		return nil, ErrNoAuth
	}
	return u, nil
}

// WithUser attaches the authenticated user to ctx.
func WithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, SessionKey, u)
}
