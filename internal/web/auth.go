package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/willemschots/rentals/internal/auth"
	"github.com/willemschots/rentals/internal/errorz"
)

// Both schemes carry the same PASETO token. "Token" is what older clients send.
var authSchemes = []string{"Bearer", "Token"}

var errNoToken = fmt.Errorf("%w: missing or malformed authorization header", errorz.ErrUnauthenticated)

// authenticated is a middleware that requires a valid access token for an active user.
// The user is made available in the request context.
func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := tokenFromHeader(r.Header.Get("Authorization"))
		if !ok {
			s.handleError(w, r, errNoToken)
			return
		}

		userID, err := s.deps.TokenService.Verify(raw)
		if err != nil {
			s.handleError(w, r, fmt.Errorf("%w: %w", errorz.ErrUnauthenticated, err))
			return
		}

		user, err := s.deps.AuthService.FindActiveUser(r.Context(), userID)
		if err != nil {
			if errors.Is(err, errorz.ErrNotFound) {
				err = fmt.Errorf("%w: no active user %d", errorz.ErrUnauthenticated, userID)
			}
			s.handleError(w, r, err)
			return
		}

		ctx := ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenFromHeader(h string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(h), " ")
	if !found {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	for _, s := range authSchemes {
		if strings.EqualFold(scheme, s) {
			return token, true
		}
	}

	return "", false
}

type ctxKey string

const userKey ctxKey = "rentalsUser"

func ContextWithUser(ctx context.Context, u auth.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) (auth.User, bool) {
	u, ok := ctx.Value(userKey).(auth.User)
	return u, ok
}

// callerID returns the id of the authenticated user, or 0 if there is none.
// Stores reject a zero caller.
func callerID(ctx context.Context) int {
	u, ok := UserFromContext(ctx)
	if !ok {
		return 0
	}
	return u.ID
}
