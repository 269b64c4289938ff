package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/artpar/instancedeck/internal/core/auth"
	"github.com/artpar/instancedeck/internal/core/instance"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageNames = []string{"index.html", "register.html", "login.html", "instances.html"}

// pages holds one parsed template set per page, each combined with the layout.
type pages struct {
	sets map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"launchAge": func(launchTime string) string {
		t, ok := instance.ParseLaunchTime(launchTime)
		if !ok {
			return ""
		}
		return humanize.Time(t)
	},
	"stateClass": func(s instance.State) string {
		switch s {
		case instance.StateRunning:
			return "ok"
		case instance.StateStopped, instance.StateTerminated:
			return "off"
		default:
			return "busy"
		}
	},
}

func mustParsePages() *pages {
	p := &pages{sets: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t := template.Must(template.New(name).Funcs(templateFuncs).ParseFS(templatesFS,
			"templates/layout.html",
			"templates/"+name,
		))
		p.sets[name] = t
	}
	return p
}

// pageData is passed to every page template.
type pageData struct {
	Title     string
	User      auth.Context
	Flashes   []Flash
	Region    string
	AllowLive bool
	Instances []instance.Summary
	Email     string
}

// render executes the page into a buffer first so template errors never
// produce half-written pages.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	set, ok := h.pages.sets[name]
	if !ok {
		h.logger.Error("unknown page", "page", name)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data.User = auth.FromContext(r.Context())
	data.Flashes = h.flash.Consume(w, r)

	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.Error("failed to render page", "page", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Debug("failed to write page", "page", name, "error", err)
	}
}
