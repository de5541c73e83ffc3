package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

const AdminTokenHeader = "X-Admin-Token"

// AdminOnly guards the synchronization tools. A request without a token
// gets 401, a wrong token 403. The token is read from X-Admin-Token or a
// bearer Authorization header. When enforce is false every request passes.
func AdminOnly(token string, enforce bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enforce {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := presentedToken(r)
			if presented == "" {
				deny(w, http.StatusUnauthorized, "Authentication required to access database synchronization tools")
				return
			}
			if token == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				deny(w, http.StatusForbidden, "Admin access required to use database synchronization tools")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func presentedToken(r *http.Request) string {
	if t := r.Header.Get(AdminTokenHeader); t != "" {
		return t
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func deny(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
		"error":   message,
	})
}
