// Package server exposes the compiler over HTTP. Every request compiles
// with a fresh engine, the layout pass itself stays single threaded.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"quire/compile"
	"quire/config"
	"quire/export"
	"quire/geom"
)

// Server is the HTTP front end of the compiler.
type Server struct {
	router chi.Router
	cfg    *config.Config
	log    *zap.Logger
}

// NewServer creates and configures the HTTP server.
func NewServer(cfg *config.Config, log *zap.Logger) *Server {
	s := &Server{
		cfg: cfg,
		log: log.Named("server"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/healthz", s.handleHealth)
	r.Get("/papers", s.handlePapers)

	r.Group(func(r chi.Router) {
		if token := string(s.cfg.Server.Token); len(token) > 0 {
			r.Use(AuthMiddleware(token, s.log))
		}
		r.Post("/compile", s.handleCompile)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// paperInfo describes one paper preset in the /papers listing.
type paperInfo struct {
	Name   string `json:"name"`
	Width  string `json:"width"`
	Height string `json:"height"`
}

func (s *Server) handlePapers(w http.ResponseWriter, _ *http.Request) {
	names := geom.PaperNames()
	list := make([]paperInfo, 0, len(names))
	for _, name := range names {
		size, err := geom.Paper(name)
		if err != nil {
			continue
		}
		list = append(list, paperInfo{Name: name, Width: size.Width.String(), Height: size.Height.String()})
	}
	writeJSON(w, http.StatusOK, list)
}

// compileResult is the JSON response of /compile when no rendition was
// requested.
type compileResult struct {
	ID          string             `json:"id"`
	Title       string             `json:"title,omitempty"`
	Pages       int                `json:"pages"`
	Diagnostics []diagnosticResult `json:"diagnostics,omitempty"`
}

type diagnosticResult struct {
	Severity string `json:"severity"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Message  string `json:"message"`
}

// handleCompile compiles the request body. The body is the document source,
// query parameters select the front end and the response shape:
//
//	name    source name, extension picks the parser (default input.qm)
//	format  json (default), text or xml
//	paper   initial paper preset, overrides the configured default
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxRequestBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, "unable to read request body: "+err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if len(data) == 0 {
		jsonError(w, "request body is empty", http.StatusBadRequest)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "input.qm"
	}
	name = sanitizeName(name)

	// The request must not mutate the shared configuration.
	cfg := *s.cfg
	if paper := r.URL.Query().Get("paper"); paper != "" {
		if _, err := geom.Paper(paper); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		cfg.Document.Paper = paper
	}

	doc, err := compile.CompileSource(r.Context(), name, data, "", &cfg, s.log)
	if err != nil {
		s.log.Error("Compilation failed", zap.String("name", name), zap.Error(err))
		jsonError(w, "compilation failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, resultOf(doc))
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		export.RenderText(w, doc)
	case "xml":
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		if err := export.RenderXML(w, doc); err != nil {
			s.log.Error("Unable to render response", zap.Error(err))
		}
	default:
		jsonError(w, fmt.Sprintf("unknown response format %q", format), http.StatusBadRequest)
	}
}

func resultOf(doc *export.Document) compileResult {
	res := compileResult{
		ID:    doc.ID.String(),
		Title: doc.Title,
		Pages: len(doc.Pages),
	}
	for _, d := range doc.Diags {
		res.Diagnostics = append(res.Diagnostics, diagnosticResult{
			Severity: d.Severity.String(),
			Start:    d.Span.Start,
			End:      d.Span.End,
			Message:  d.Message,
		})
	}
	return res
}

// sanitizeName strips any path components from a client supplied source name.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		name = "input.qm"
	}
	return name
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status is already on the wire, an encode failure cannot be
	// reported to the client anymore.
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
