package router

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-content-go/pkg/utilities"
)

// AdminAuthMiddleware accepts requests carrying an HS256 bearer token signed
// with secret. With an empty secret every request is refused.
func AdminAuthMiddleware(secret []byte, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secret) == 0 {
				utilities.WriteError(w, http.StatusUnauthorized, "admin access disabled")
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				utilities.WriteError(w, http.StatusUnauthorized, "missing_token")
				return
			}
			token := strings.TrimSpace(auth[len("bearer "):])
			claims := jwt.RegisteredClaims{}
			if _, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
				return secret, nil
			}); err != nil {
				logger.Debugw("admin token rejected", "path", r.URL.Path, "err", err)
				utilities.WriteError(w, http.StatusUnauthorized, "invalid_token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
