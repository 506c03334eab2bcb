package server

import (
	"net/http"
	"time"

	"github.com/docvault-db/docvault"
)

type tableView struct {
	FieldPath string `json:"fieldPath"`
	TableName string `json:"tableName"`
}

// handleTables serves GET /v1.0/tables.
func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := ctxTimeout(r)
	defer cancel()

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tables, err := s.db.ListIndexTables(ctx)
	if err != nil {
		s.writeError(w, start, err)
		return
	}
	views := make([]tableView, len(tables))
	for i, t := range tables {
		views[i] = tableView{FieldPath: t.FieldPath, TableName: t.TableName}
	}
	s.writeOK(w, start, http.StatusOK, views)
}

// handleTableEntries serves GET /v1.0/tables/{name}/entries?skip&limit.
func (s *Server) handleTableEntries(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := ctxTimeout(r)
	defer cancel()

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	segs := pathSegments(r.URL.Path, "/v1.0/tables/")
	if len(segs) != 2 || segs[1] != "entries" {
		http.NotFound(w, r)
		return
	}
	tableName := segs[0]

	skip, limit := pagingParams(r)
	entries, total, err := s.db.TableEntries(ctx, tableName, skip, limit)
	if err != nil {
		s.writeError(w, start, err)
		return
	}

	s.writeOK(w, start, http.StatusOK, map[string]interface{}{
		"entries": toEntryViews(entries),
		"total":   total,
	})
}

type indexEntryView struct {
	ID           string   `json:"id"`
	DocumentID   string   `json:"documentId"`
	Position     *int     `json:"position,omitempty"`
	Value        string   `json:"value"`
	ValueNumeric *float64 `json:"valueNumeric,omitempty"`
	CreatedUtc   string   `json:"createdUtc"`
}

func toEntryViews(entries []docvault.IndexEntryInfo) []indexEntryView {
	out := make([]indexEntryView, len(entries))
	for i, e := range entries {
		out[i] = indexEntryView{
			ID: e.ID, DocumentID: e.DocumentID, Position: e.Position,
			Value: e.Value, ValueNumeric: e.ValueNumeric, CreatedUtc: e.CreatedUTC,
		}
	}
	return out
}
