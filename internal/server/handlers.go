package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nadi-hydro/nadi/internal/template"
	"github.com/nadi-hydro/nadi/internal/visual"
)

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// labelTemplate parses the "label" query parameter, defaulting to def.
func labelTemplate(r *http.Request, def string) (*template.Template, error) {
	src := r.URL.Query().Get("label")
	if src == "" {
		src = def
	}
	return template.Parse(src)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintln(w, "ok")
}

func (s *Server) handleNetwork(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := visual.WriteJSON(&buf, s.Network()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleDOT(w http.ResponseWriter, r *http.Request) {
	settings := visual.DefaultDOTSettings()
	if r.URL.Query().Has("label") {
		tmpl, err := labelTemplate(r, "")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		settings.Label = tmpl
	}
	if d := r.URL.Query().Get("direction"); d != "" {
		dir, err := visual.ParseDirection(d)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		settings.Direction = dir
	}

	var buf bytes.Buffer
	if err := visual.WriteDOT(&buf, s.Network(), settings); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleASCII(w http.ResponseWriter, r *http.Request) {
	tmpl, err := labelTemplate(r, "{name}")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var buf bytes.Buffer
	if err := visual.WriteASCII(&buf, s.Network(), tmpl); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	node, ok := s.Network().Node(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("node %q not found", name))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(visual.NewNodeJSON(node))
}

// handleEvents streams a server-sent "reload" event after every reload.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch:
			if _, err := fmt.Fprintf(w, "event: reload\ndata: %d\n\n", s.Network().Len()); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
