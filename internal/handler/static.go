package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// StaticMiddleware serves files from staticDir ahead of the API routes. Only
// GET and HEAD requests that name an existing file (or a directory holding
// index.html) are answered here; everything else goes to next.
type StaticMiddleware struct {
	staticDir string
	indexFile string
}

func NewStaticMiddleware(staticDir string) *StaticMiddleware {
	return &StaticMiddleware{
		staticDir: staticDir,
		indexFile: "index.html",
	}
}

func (m *StaticMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.staticDir == "" || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
			next.ServeHTTP(w, r)
			return
		}

		urlPath := path.Clean("/" + r.URL.Path)
		filePath := filepath.Join(m.staticDir, filepath.FromSlash(urlPath))

		info, err := os.Stat(filePath)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		if !info.IsDir() {
			http.ServeFile(w, r, filePath)
			return
		}

		indexPath := filepath.Join(filePath, m.indexFile)
		if _, err := os.Stat(indexPath); err != nil {
			next.ServeHTTP(w, r)
			return
		}

		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		http.ServeFile(w, r, indexPath)
	})
}
