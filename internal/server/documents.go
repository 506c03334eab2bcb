package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/docvault-db/docvault"
	"github.com/docvault-db/docvault/internal/query"
)

type documentView struct {
	ID            string `json:"id"`
	CollectionID  string `json:"collectionId"`
	SchemaID      string `json:"schemaId"`
	Name          string `json:"name,omitempty"`
	ContentLength int    `json:"contentLength"`
	SHA256        string `json:"sha256,omitempty"`
	CreatedUtc    string `json:"createdUtc"`
	LastUpdateUtc string `json:"lastUpdateUtc"`
}

func toDocumentView(info docvault.DocumentInfo) documentView {
	return documentView{
		ID:            info.ID,
		CollectionID:  info.CollectionID,
		SchemaID:      info.SchemaID,
		Name:          info.Name,
		ContentLength: info.ContentLength,
		SHA256:        info.SHA256,
		CreatedUtc:    info.CreatedUTC,
		LastUpdateUtc: info.LastUpdateUTC,
	}
}

type ingestRequest struct {
	Name   string            `json:"name,omitempty"`
	Body   json.RawMessage   `json:"body"`
	Labels []string          `json:"labels,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// handleDocuments serves GET/PUT /v1.0/collections/{cid}/documents.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request, collectionID string) {
	start := time.Now()
	ctx, cancel := ctxTimeout(r)
	defer cancel()

	col, err := s.db.GetCollection(ctx, collectionID)
	if err != nil {
		s.writeError(w, start, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		skip, limit := pagingParams(r)
		docs, err := col.ListDocuments(ctx, skip, limit)
		if err != nil {
			s.writeError(w, start, err)
			return
		}
		views := make([]documentView, len(docs))
		for i, d := range docs {
			views[i] = toDocumentView(d)
		}
		s.writeOK(w, start, http.StatusOK, views)

	case http.MethodPut:
		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, start, docvault.ErrInvalidInput("malformed JSON body: %v", err))
			return
		}
		result, err := col.Ingest(ctx, docvault.IngestRequest{
			Name:   req.Name,
			Body:   []byte(req.Body),
			Labels: req.Labels,
			Tags:   req.Tags,
		})
		if err != nil {
			s.writeError(w, start, err)
			return
		}
		s.writeOK(w, start, http.StatusCreated, map[string]interface{}{
			"document": toDocumentView(result.Document),
			"warnings": result.Warnings,
		})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleDocumentByID serves GET/HEAD/DELETE
// /v1.0/collections/{cid}/documents/{did}.
func (s *Server) handleDocumentByID(w http.ResponseWriter, r *http.Request, collectionID, documentID string) {
	start := time.Now()
	ctx, cancel := ctxTimeout(r)
	defer cancel()

	col, err := s.db.GetCollection(ctx, collectionID)
	if err != nil {
		s.writeError(w, start, err)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		doc, body, err := col.Get(ctx, documentID)
		if err != nil {
			s.writeError(w, start, err)
			return
		}
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.URL.Query().Get("includeContent") == "true" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(body)
			return
		}
		s.writeOK(w, start, http.StatusOK, toDocumentView(*doc))

	case http.MethodDelete:
		if err := col.Delete(ctx, documentID); err != nil {
			s.writeError(w, start, err)
			return
		}
		s.writeOK(w, start, http.StatusOK, nil)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type searchRequest struct {
	SQLExpression  string             `json:"sqlExpression,omitempty"`
	Filters        []searchFilterWire `json:"filters,omitempty"`
	Labels         []string           `json:"labels,omitempty"`
	Tags           map[string]string  `json:"tags,omitempty"`
	MaxResults     int                `json:"maxResults,omitempty"`
	Skip           int                `json:"skip,omitempty"`
	Ordering       string             `json:"ordering,omitempty"`
	IncludeContent bool               `json:"includeContent,omitempty"`
}

type searchFilterWire struct {
	Field     string `json:"field"`
	Condition string `json:"condition"`
	Value     string `json:"value"`
}

type searchRecordView struct {
	Document documentView    `json:"document"`
	Content  json.RawMessage `json:"content,omitempty"`
}

// handleSearch serves POST /v1.0/collections/{cid}/documents/search.
// sqlExpression wins over a structured filter list when both are
// present.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, collectionID string) {
	start := time.Now()
	ctx, cancel := ctxTimeout(r)
	defer cancel()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	col, err := s.db.GetCollection(ctx, collectionID)
	if err != nil {
		s.writeError(w, start, err)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, start, docvault.ErrInvalidInput("malformed JSON body: %v", err))
		return
	}

	var plan *query.Plan
	if req.SQLExpression != "" {
		plan, err = query.ParseSQL(req.SQLExpression)
		if err != nil {
			s.writeError(w, start, docvault.ErrInvalidInput("%v", err))
			return
		}
		plan.Labels, plan.Tags, plan.IncludeContent = req.Labels, req.Tags, req.IncludeContent
	} else {
		filters := make([]query.FieldFilterInput, len(req.Filters))
		for i, f := range req.Filters {
			filters[i] = query.FieldFilterInput{Field: f.Field, Condition: f.Condition, Value: f.Value}
		}
		plan, err = query.CompileStructured(query.StructuredRequest{
			Filters:        filters,
			Labels:         req.Labels,
			Tags:           req.Tags,
			MaxResults:     req.MaxResults,
			Skip:           req.Skip,
			Ordering:       req.Ordering,
			IncludeContent: req.IncludeContent,
		})
		if err != nil {
			s.writeError(w, start, docvault.ErrInvalidInput("%v", err))
			return
		}
	}

	result, err := col.Search(ctx, plan)
	if err != nil {
		s.writeError(w, start, err)
		return
	}

	records := make([]searchRecordView, len(result.Documents))
	for i, rec := range result.Documents {
		records[i] = searchRecordView{Document: toDocumentView(rec.Document)}
		if rec.Content != nil {
			records[i].Content = json.RawMessage(rec.Content)
		}
	}

	s.writeOK(w, start, http.StatusOK, map[string]interface{}{
		"success":          result.Success,
		"timestampUtc":     result.TimestampUTC,
		"maxResults":       result.MaxResults,
		"endOfResults":     result.EndOfResults,
		"totalRecords":     result.TotalRecords,
		"recordsRemaining": result.RecordsRemaining,
		"documents":        records,
	})
}

// pagingParams reads ?skip&limit from r, clamping limit into [1, 1000].
// An absent or non-positive limit clamps to the cap end, the same way
// max_results resolves for search.
func pagingParams(r *http.Request) (skip, limit int) {
	skip, _ = strconv.Atoi(r.URL.Query().Get("skip"))
	if skip < 0 {
		skip = 0
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	return skip, limit
}
