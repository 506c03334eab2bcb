package server

import (
	"net/http"
	"time"

	"github.com/docvault-db/docvault"
)

type schemaView struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	Hash          string `json:"hash"`
	CreatedUtc    string `json:"createdUtc"`
	LastUpdateUtc string `json:"lastUpdateUtc"`
}

func toSchemaView(info docvault.SchemaInfo) schemaView {
	return schemaView{
		ID:            info.ID,
		Name:          info.Name,
		Hash:          info.Hash,
		CreatedUtc:    info.CreatedUTC,
		LastUpdateUtc: info.LastUpdateUTC,
	}
}

// handleSchemas serves GET /v1.0/schemas.
func (s *Server) handleSchemas(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := ctxTimeout(r)
	defer cancel()

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	schemas, err := s.db.ListSchemas(ctx)
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	views := make([]schemaView, len(schemas))
	for i, sc := range schemas {
		views[i] = toSchemaView(sc)
	}
	s.writeOK(w, start, http.StatusOK, views)
}

// handleSchemaSubroutes dispatches GET /v1.0/schemas/{id} and
// GET /v1.0/schemas/{id}/elements.
func (s *Server) handleSchemaSubroutes(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := ctxTimeout(r)
	defer cancel()

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	segs := pathSegments(r.URL.Path, "/v1.0/schemas/")
	if len(segs) == 0 {
		http.NotFound(w, r)
		return
	}
	schemaID := segs[0]

	switch {
	case len(segs) == 1:
		sc, err := s.db.GetSchema(ctx, schemaID)
		if err != nil {
			s.writeError(w, start, err)
			return
		}
		s.writeOK(w, start, http.StatusOK, toSchemaView(sc))

	case len(segs) == 2 && segs[1] == "elements":
		elements, err := s.db.GetSchemaElements(ctx, schemaID)
		if err != nil {
			s.writeError(w, start, err)
			return
		}
		s.writeOK(w, start, http.StatusOK, elements)

	default:
		http.NotFound(w, r)
	}
}
