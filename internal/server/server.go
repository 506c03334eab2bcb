package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/docvault-db/docvault"
	"github.com/docvault-db/docvault/internal/logger"
)

// Version is reported by the health endpoints.
const Version = "1.0.0"

// Server wraps a docvault.Database behind the HTTP/JSON
// contract, mirroring how bundoc-server is a thin net/http layer over
// the bundoc library rather than a reimplementation of it.
type Server struct {
	db  *docvault.Database
	log *logger.Logger
	mux *http.ServeMux
}

// New builds a Server and registers every route under /v1.0.
func New(db *docvault.Database, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	s := &Server{db: db, log: log, mux: http.NewServeMux()}
	s.routes()
	return s
}

// ServeHTTP lets Server itself be passed to http.Serve / httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, DELETE, HEAD, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{"Content-Type", "Accept"}, ", "))
	if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
		w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/", s.handleRoot)

	s.mux.HandleFunc("/v1.0/collections", s.handleCollections)
	s.mux.HandleFunc("/v1.0/collections/", s.handleCollectionSubroutes)

	s.mux.HandleFunc("/v1.0/schemas", s.handleSchemas)
	s.mux.HandleFunc("/v1.0/schemas/", s.handleSchemaSubroutes)

	s.mux.HandleFunc("/v1.0/tables", s.handleTables)
	s.mux.HandleFunc("/v1.0/tables/", s.handleTableEntries)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeRawJSON(w, http.StatusOK, map[string]string{
		"status":    "Healthy",
		"version":   Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.handleHealth(w, r)
}

func writeRawJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// pathSegments splits the portion of r.URL.Path after prefix into
// non-empty segments, the way the bundoc-server handlers peel apart
// "/v1/projects/{projectID}/..." paths.
func pathSegments(path, prefix string) []string {
	trimmed := strings.TrimPrefix(path, prefix)
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// ctxTimeout bounds one request's server-side work; requests do not
// carry their own deadline from the client.
func ctxTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 30*time.Second)
}
