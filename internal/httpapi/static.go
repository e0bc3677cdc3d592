package httpapi

import (
	"net/http"
	"strings"
)

// newStaticHandler serves dir from disk. Synthesized speech lands in
// <dir>/audio and is fetched from here.
func newStaticHandler(dir string) http.Handler {
	if strings.TrimSpace(dir) == "" {
		return http.NotFoundHandler()
	}
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No directory listings.
		if strings.HasSuffix(r.URL.Path, "/") || r.URL.Path == "" {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}
