package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/playerhub/internal/api/apierr"
	"github.com/mcoot/playerhub/internal/model"
)

type contextKey string

const (
	accountContextKey contextKey = "account"
	sessionContextKey contextKey = "session"
	tokenContextKey   contextKey = "token"
)

// Authenticator resolves a session token to its session and account
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Session, *model.Account, error)
}

// Auth creates authentication middleware
func Auth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			session, account, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, sessionContextKey, session)
			ctx = context.WithValue(ctx, accountContextKey, account)
			ctx = context.WithValue(ctx, tokenContextKey, token)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractToken extracts the bearer session token from the request
func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// GetAccount returns the authenticated account from the request context
func GetAccount(ctx context.Context) *model.Account {
	account, _ := ctx.Value(accountContextKey).(*model.Account)
	return account
}

// GetSession returns the session from the request context
func GetSession(ctx context.Context) *model.Session {
	session, _ := ctx.Value(sessionContextKey).(*model.Session)
	return session
}

// GetToken returns the raw session token from the request context
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// MustGetAccount returns the authenticated account or panics
func MustGetAccount(ctx context.Context) *model.Account {
	account := GetAccount(ctx)
	if account == nil {
		panic("no account in context - auth middleware not applied?")
	}
	return account
}
