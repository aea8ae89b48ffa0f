package middleware

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SajivJess/Wally/pkg/logger"
)

// RequestLogger makes base the request logger and records an X-User-ID
// header as the acting user. Fields come from context at log time, so the
// logger works the same wherever it is fetched.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.NewContext(r.Context(), base)
			if userID := r.Header.Get("X-User-ID"); userID != "" {
				ctx = logger.WithUserID(ctx, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserScope records the user id from the named chi URL parameter, replacing
// any header-supplied one. Inline middleware runs after routing, so attach it
// with r.With or inside a Route block.
func UserScope(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID := chi.URLParam(r, param); userID != "" {
				r = r.WithContext(logger.WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}
