package httpx

import (
	"net/http"
	"strings"
)

// Header di-set oleh gateway auth di depan service ini.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

func userID(r *http.Request) string { return strings.TrimSpace(r.Header.Get(HeaderUserID)) }

func isAdmin(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Get(HeaderUserRole)), "admin")
}

// requireUser: 401 kalau identitas kosong.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID(r) == "" {
			writeJSON(w, http.StatusUnauthorized, errorResp{Error: "Unauthenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID(r) == "" {
			writeJSON(w, http.StatusUnauthorized, errorResp{Error: "Unauthenticated"})
			return
		}
		if !isAdmin(r) {
			writeJSON(w, http.StatusForbidden, errorResp{Error: ReasonForbidden})
			return
		}
		next.ServeHTTP(w, r)
	})
}
