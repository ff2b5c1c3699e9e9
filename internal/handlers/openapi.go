package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

// openAPIDoc is the document in both served encodings
type openAPIDoc struct {
	yaml    []byte
	json    []byte
	modTime time.Time
}

// OpenAPIHandler serves the API description as YAML and JSON. The file is
// re-read only when its modification time changes.
type OpenAPIHandler struct {
	path string

	mu  sync.Mutex
	doc *openAPIDoc
}

func NewOpenAPIHandler(path string) *OpenAPIHandler {
	return &OpenAPIHandler{path: path}
}

func (h *OpenAPIHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/openapi.yaml", h.ServeYAML).Methods("GET")
	r.HandleFunc("/api/openapi.json", h.ServeJSON).Methods("GET")
}

func (h *OpenAPIHandler) load() (*openAPIDoc, error) {
	info, err := os.Stat(h.path)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.doc != nil && h.doc.modTime.Equal(info.ModTime()) {
		return h.doc, nil
	}

	raw, err := os.ReadFile(h.path)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("parse %s: %w", h.path, err)
	}
	asJSON, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode %s as json: %w", h.path, err)
	}

	h.doc = &openAPIDoc{yaml: raw, json: asJSON, modTime: info.ModTime()}
	return h.doc, nil
}

func (h *OpenAPIHandler) ServeYAML(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "application/x-yaml", func(d *openAPIDoc) []byte { return d.yaml })
}

func (h *OpenAPIHandler) ServeJSON(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "application/json", func(d *openAPIDoc) []byte { return d.json })
}

// serve supports conditional GETs through the document's modification time
func (h *OpenAPIHandler) serve(w http.ResponseWriter, r *http.Request, contentType string, pick func(*openAPIDoc) []byte) {
	doc, err := h.load()
	switch {
	case os.IsNotExist(err):
		http.Error(w, "OpenAPI specification not found", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, "OpenAPI specification unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	http.ServeContent(w, r, "", doc.modTime, bytes.NewReader(pick(doc)))
}
