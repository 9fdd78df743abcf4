// Package webui holds the embedded browser console.
package webui

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"padsynth/internal/events"
	"padsynth/internal/mapping"
)

//go:embed index.html
var indexHTML string

//go:embed static
var staticFiles embed.FS

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

// InitialData is embedded in the page so the console renders before the
// websocket connects.
type InitialData struct {
	State  *events.State   `json:"state,omitempty"`
	Config *mapping.Config `json:"config,omitempty"`
}

type pageData struct {
	Title       string
	InitialJSON template.JS
	AuthNeeded  bool
}

// RenderIndex writes the console page. data is nil when the API requires a
// token, since the page itself is served without authentication.
func RenderIndex(w io.Writer, data *InitialData, authNeeded bool) error {
	payload := []byte("{}")
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode initial state: %w", err)
		}
		payload = encoded
	}
	return indexTemplate.Execute(w, pageData{
		Title:       "padsynth",
		InitialJSON: template.JS(payload),
		AuthNeeded:  authNeeded,
	})
}

// StaticHandler serves /static/*.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
