package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/docvault-db/docvault"
	"github.com/docvault-db/docvault/internal/flatten"
)

type createCollectionRequest struct {
	Name                  string            `json:"name"`
	Description           string            `json:"description,omitempty"`
	DocumentsDirectory    string            `json:"documentsDirectory,omitempty"`
	Labels                []string          `json:"labels,omitempty"`
	Tags                  map[string]string `json:"tags,omitempty"`
	SchemaEnforcementMode string            `json:"schemaEnforcementMode,omitempty"`
	IndexingMode          string            `json:"indexingMode,omitempty"`
}

type collectionView struct {
	ID                    string            `json:"id"`
	Name                  string            `json:"name"`
	Description           string            `json:"description,omitempty"`
	DocumentsDirectory    string            `json:"documentsDirectory"`
	Labels                []string          `json:"labels,omitempty"`
	Tags                  map[string]string `json:"tags,omitempty"`
	SchemaEnforcementMode string            `json:"schemaEnforcementMode"`
	IndexingMode          string            `json:"indexingMode"`
	CreatedUtc            string            `json:"createdUtc"`
	LastUpdateUtc         string            `json:"lastUpdateUtc"`
}

func toCollectionView(info docvault.CollectionInfo) collectionView {
	return collectionView{
		ID:                    info.ID,
		Name:                  info.Name,
		Description:           info.Description,
		DocumentsDirectory:    info.DocumentsDirectory,
		Labels:                info.Labels,
		Tags:                  info.Tags,
		SchemaEnforcementMode: info.SchemaEnforcementMode.String(),
		IndexingMode:          info.IndexingMode.String(),
		CreatedUtc:            info.CreatedUTC,
		LastUpdateUtc:         info.LastUpdateUTC,
	}
}

// handleCollections serves GET /v1.0/collections and PUT /v1.0/collections.
func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := ctxTimeout(r)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		cols, err := s.db.ListCollections(ctx)
		if err != nil {
			s.writeError(w, start, err)
			return
		}
		views := make([]collectionView, len(cols))
		for i, c := range cols {
			views[i] = toCollectionView(c)
		}
		s.writeOK(w, start, http.StatusOK, views)

	case http.MethodPut:
		var req createCollectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, start, docvault.ErrInvalidInput("malformed JSON body: %v", err))
			return
		}
		enforcement, err := docvault.ParseSchemaEnforcementMode(req.SchemaEnforcementMode)
		if err != nil {
			s.writeError(w, start, docvault.ErrInvalidInput("%v", err))
			return
		}
		indexing, err := docvault.ParseIndexingMode(req.IndexingMode)
		if err != nil {
			s.writeError(w, start, docvault.ErrInvalidInput("%v", err))
			return
		}
		col, err := s.db.CreateCollection(ctx, req.Name, docvault.CreateCollectionOptions{
			Description:           req.Description,
			DocumentsDirectory:    req.DocumentsDirectory,
			Labels:                req.Labels,
			Tags:                  req.Tags,
			SchemaEnforcementMode: enforcement,
			IndexingMode:          indexing,
		})
		if err != nil {
			s.writeError(w, start, err)
			return
		}
		s.writeOK(w, start, http.StatusCreated, toCollectionView(col.Info()))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleCollectionSubroutes dispatches every path under
// /v1.0/collections/{id}[/...] to the right sub-handler.
func (s *Server) handleCollectionSubroutes(w http.ResponseWriter, r *http.Request) {
	segs := pathSegments(r.URL.Path, "/v1.0/collections/")
	if len(segs) == 0 {
		http.NotFound(w, r)
		return
	}
	collectionID := segs[0]

	switch {
	case len(segs) == 1:
		s.handleCollectionByID(w, r, collectionID)
	case len(segs) == 2 && segs[1] == "constraints":
		s.handleConstraints(w, r, collectionID)
	case len(segs) == 2 && segs[1] == "indexing":
		s.handleIndexing(w, r, collectionID)
	case len(segs) == 3 && segs[1] == "indexes" && segs[2] == "rebuild":
		s.handleRebuild(w, r, collectionID)
	case len(segs) == 2 && segs[1] == "documents":
		s.handleDocuments(w, r, collectionID)
	case len(segs) == 3 && segs[1] == "documents" && segs[2] == "search":
		s.handleSearch(w, r, collectionID)
	case len(segs) == 3 && segs[1] == "documents":
		s.handleDocumentByID(w, r, collectionID, segs[2])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleCollectionByID(w http.ResponseWriter, r *http.Request, id string) {
	start := time.Now()
	ctx, cancel := ctxTimeout(r)
	defer cancel()

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		col, err := s.db.GetCollection(ctx, id)
		if err != nil {
			s.writeError(w, start, err)
			return
		}
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		s.writeOK(w, start, http.StatusOK, toCollectionView(col.Info()))

	case http.MethodDelete:
		if err := s.db.DeleteCollection(ctx, id); err != nil {
			s.writeError(w, start, err)
			return
		}
		s.writeOK(w, start, http.StatusOK, nil)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type fieldConstraintWire struct {
	FieldPath        string   `json:"fieldPath"`
	DataType         string   `json:"dataType"`
	Required         bool     `json:"required,omitempty"`
	Nullable         bool     `json:"nullable,omitempty"`
	RegexPattern     string   `json:"regexPattern,omitempty"`
	MinValue         *float64 `json:"minValue,omitempty"`
	MaxValue         *float64 `json:"maxValue,omitempty"`
	MinLength        *int     `json:"minLength,omitempty"`
	MaxLength        *int     `json:"maxLength,omitempty"`
	AllowedValues    []string `json:"allowedValues,omitempty"`
	ArrayElementType string   `json:"arrayElementType,omitempty"`
}

type constraintsRequest struct {
	SchemaEnforcementMode string                `json:"schemaEnforcementMode"`
	FieldConstraints      []fieldConstraintWire `json:"fieldConstraints"`
}

func (s *Server) handleConstraints(w http.ResponseWriter, r *http.Request, id string) {
	start := time.Now()
	ctx, cancel := ctxTimeout(r)
	defer cancel()

	col, err := s.db.GetCollection(ctx, id)
	if err != nil {
		s.writeError(w, start, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		mode, constraints, err := col.GetConstraints(ctx)
		if err != nil {
			s.writeError(w, start, err)
			return
		}
		out := make([]fieldConstraintWire, len(constraints))
		for i, c := range constraints {
			out[i] = fieldConstraintWire{
				FieldPath: c.FieldPath, DataType: string(c.DataType), Required: c.Required,
				Nullable: c.Nullable, RegexPattern: c.RegexPattern, MinValue: c.MinValue, MaxValue: c.MaxValue,
				MinLength: c.MinLength, MaxLength: c.MaxLength, AllowedValues: c.AllowedValues,
			}
			if c.HasArrayElemType {
				out[i].ArrayElementType = string(c.ArrayElementType)
			}
		}
		s.writeOK(w, start, http.StatusOK, map[string]interface{}{
			"schemaEnforcementMode": mode.String(),
			"fieldConstraints":      out,
		})

	case http.MethodPut:
		var req constraintsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, start, docvault.ErrInvalidInput("malformed JSON body: %v", err))
			return
		}
		mode, err := docvault.ParseSchemaEnforcementMode(req.SchemaEnforcementMode)
		if err != nil {
			s.writeError(w, start, docvault.ErrInvalidInput("%v", err))
			return
		}
		constraints := make([]docvault.FieldConstraint, len(req.FieldConstraints))
		for i, fc := range req.FieldConstraints {
			constraints[i] = docvault.FieldConstraint{
				FieldPath: fc.FieldPath, DataType: flatten.DataType(fc.DataType), Required: fc.Required,
				Nullable: fc.Nullable, RegexPattern: fc.RegexPattern, MinValue: fc.MinValue, MaxValue: fc.MaxValue,
				MinLength: fc.MinLength, MaxLength: fc.MaxLength, AllowedValues: fc.AllowedValues,
			}
			if fc.ArrayElementType != "" {
				constraints[i].ArrayElementType = flatten.DataType(fc.ArrayElementType)
				constraints[i].HasArrayElemType = true
			}
		}
		if err := col.SetConstraints(ctx, mode, constraints); err != nil {
			s.writeError(w, start, err)
			return
		}
		s.writeOK(w, start, http.StatusOK, nil)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type indexingRequest struct {
	IndexingMode      string   `json:"indexingMode"`
	IndexedFields     []string `json:"indexedFields,omitempty"`
	RebuildIndexes    bool     `json:"rebuildIndexes,omitempty"`
	DropUnusedIndexes bool     `json:"dropUnusedIndexes,omitempty"`
}

func (s *Server) handleIndexing(w http.ResponseWriter, r *http.Request, id string) {
	start := time.Now()
	ctx, cancel := ctxTimeout(r)
	defer cancel()

	col, err := s.db.GetCollection(ctx, id)
	if err != nil {
		s.writeError(w, start, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		mode, fields, err := col.GetIndexing(ctx)
		if err != nil {
			s.writeError(w, start, err)
			return
		}
		s.writeOK(w, start, http.StatusOK, map[string]interface{}{
			"indexingMode":  mode.String(),
			"indexedFields": fields,
		})

	case http.MethodPut:
		var req indexingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, start, docvault.ErrInvalidInput("malformed JSON body: %v", err))
			return
		}
		mode, err := docvault.ParseIndexingMode(req.IndexingMode)
		if err != nil {
			s.writeError(w, start, docvault.ErrInvalidInput("%v", err))
			return
		}
		stats, err := col.SetIndexing(ctx, mode, req.IndexedFields, req.RebuildIndexes, req.DropUnusedIndexes)
		if err != nil {
			s.writeError(w, start, err)
			return
		}
		s.writeOK(w, start, http.StatusOK, stats)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type rebuildRequest struct {
	DropUnusedIndexes bool `json:"dropUnusedIndexes,omitempty"`
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request, id string) {
	start := time.Now()
	ctx, cancel := ctxTimeout(r)
	defer cancel()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	col, err := s.db.GetCollection(ctx, id)
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	var req rebuildRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, start, docvault.ErrInvalidInput("malformed JSON body: %v", err))
			return
		}
	}
	stats, err := col.Rebuild(ctx, req.DropUnusedIndexes)
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	s.writeOK(w, start, http.StatusOK, stats)
}
