package api

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

//go:embed static
var staticAssets embed.FS

// StaticHandler serves the stylesheet and other page assets.
// Prefers web/static/ on disk over embedded assets so styles can be edited
// without rebuilding. Mount it behind http.StripPrefix.
func StaticHandler() http.Handler {
	var assets fs.FS
	if info, err := os.Stat("web/static"); err == nil && info.IsDir() {
		assets = os.DirFS("web/static")
	} else if sub, err := fs.Sub(staticAssets, "static"); err == nil {
		assets = sub
	} else {
		return http.NotFoundHandler()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		urlPath := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if urlPath == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}

		content, err := fs.ReadFile(assets, urlPath)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		contentType := "application/octet-stream"
		switch {
		case strings.HasSuffix(urlPath, ".css"):
			contentType = "text/css; charset=utf-8"
		case strings.HasSuffix(urlPath, ".js"):
			contentType = "application/javascript"
		case strings.HasSuffix(urlPath, ".svg"):
			contentType = "image/svg+xml"
		case strings.HasSuffix(urlPath, ".png"):
			contentType = "image/png"
		case strings.HasSuffix(urlPath, ".ico"):
			contentType = "image/x-icon"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(content)
	})
}
