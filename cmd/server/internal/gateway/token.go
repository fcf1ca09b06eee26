package gateway

import (
	"net/http"
	"strings"
)

// ExtractToken pulls the bearer token from an upgrade request. The query
// parameter wins over the Authorization header when both are present;
// clients depend on that precedence.
func ExtractToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
