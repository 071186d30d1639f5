package dashboard

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path"
)

//go:embed web
var embedded embed.FS

const indexFile = "index.html"

// Handler serves the live PowerTag table.
//
// A non-empty dir that exists is served from disk, so the page can be
// edited without rebuilding; otherwise the assets compiled into the
// binary are used. Any path that is not an asset gets index.html.
func Handler(dir string) http.Handler {
	assets := assetFS(dir)
	files := http.FileServerFS(assets)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")

		name := path.Clean("/" + r.URL.Path)[1:]
		if name == "" || name == indexFile || !isFile(assets, name) {
			http.ServeFileFS(w, r, assets, indexFile)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func assetFS(dir string) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
	}
	web, err := fs.Sub(embedded, "web")
	if err != nil {
		// "web" is a literal directory in the embed pattern.
		panic("dashboard: " + err.Error())
	}
	return web
}

func isFile(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}
