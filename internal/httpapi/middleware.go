package httpapi

import (
	"context"
	"net/http"
	"strings"
)

type contextKey int

const tokenContextKey contextKey = iota

// authMiddleware extracts Authorization: Token <value>, resolves it to a
// registered token, and stashes it in the request context. When the
// runtime registry holds exactly one token, the header check is skipped
// and that token is selected (single-tenant mode).
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens := s.runtime.Tokens()

		if len(tokens) == 1 {
			ctx := context.WithValue(r.Context(), tokenContextKey, tokens[0])
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Token ")
		if header == "" || !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if _, ok := s.runtime.Get(token); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), tokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey).(string)
	return token, ok
}
