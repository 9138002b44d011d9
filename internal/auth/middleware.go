package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jonathanprocter/therapyflow-router/internal/httputil"
)

// bearerToken pulls the credential out of an Authorization header.
// The scheme comparison is case-insensitive per RFC 7235.
func bearerToken(r *http.Request) (string, bool) {
	scheme, cred, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(cred), true
}

// Middleware authenticates every request with a Bearer API key before
// it reaches rate limiting or dispatch. Keys are matched by SHA-256
// digest, so neither the store nor the logs ever see a raw credential.
func Middleware(store KeyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := w.Header().Get("X-Request-ID")

			token, ok := bearerToken(r)
			if !ok {
				httputil.WriteAuthError(w, reqID, "Authorization required. Use: Authorization: Bearer <api-key>")
				return
			}
			if token == "" {
				httputil.WriteAuthError(w, reqID, "Empty API key")
				return
			}

			meta, err := store.Lookup(r.Context(), HashKey(token))
			if err != nil {
				slog.Error("api key lookup failed", "error", err, "key_prefix", KeyPrefix(token))
				httputil.WriteInternalError(w, reqID, "Internal error during authentication")
				return
			}
			if meta == nil {
				slog.Warn("rejected unknown api key", "key_prefix", KeyPrefix(token))
				httputil.WriteAuthError(w, reqID, "Invalid API key")
				return
			}

			info := &AuthInfo{
				KeyID:              meta.ID,
				Name:               meta.Name,
				RPMLimit:           meta.RPMLimit,
				DailyDispatchLimit: meta.DailyDispatchLimit,
			}
			next.ServeHTTP(w, r.WithContext(ContextWithAuth(r.Context(), info)))
		})
	}
}
