package ui

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed static
var staticFS embed.FS

// StaticFS returns the embedded static/ filesystem with the prefix stripped.
func StaticFS() (fs.FS, error) {
	return fs.Sub(staticFS, "static")
}

// Handler serves the embedded upload page. Unknown paths without an
// extension fall back to index.html; missing assets return 404.
func Handler() (http.Handler, error) {
	sub, err := StaticFS()
	if err != nil {
		return nil, err
	}
	fileServer := http.FileServerFS(sub)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if p == "" {
			fileServer.ServeHTTP(w, r)
			return
		}
		if _, err := fs.Stat(sub, p); err == nil {
			fileServer.ServeHTTP(w, r)
			return
		}
		if strings.Contains(p, ".") {
			http.NotFound(w, r)
			return
		}
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	}), nil
}
