// Package client is a Go SDK for the docvault HTTP/JSON wire
// contract, the same shape bunauth's client wraps around its own
// REST service: a *http.Client plus a base URL and a doRequest helper
// that unwraps the envelope.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a docvaultd instance over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New builds a Client against baseURL (e.g. "http://localhost:8080").
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Envelope mirrors the server's uniform response wrapper.
type Envelope struct {
	Success          bool              `json:"success"`
	StatusCode       int               `json:"statusCode"`
	ErrorMessage     string            `json:"errorMessage,omitempty"`
	Data             json.RawMessage   `json:"data,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	ProcessingTimeMs int64             `json:"processingTimeMs"`
	GUID             string            `json:"guid,omitempty"`
	TimestampUTC     string            `json:"timestampUtc"`
}

// APIError is returned when the server answers with success=false.
type APIError struct {
	StatusCode int
	Message    string
	Data       json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("docvault: status %d: %s", e.StatusCode, e.Message)
}

// Collection is the wire shape of a collection record.
type Collection struct {
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

// CreateCollectionRequest is the PUT /v1.0/collections body.
type CreateCollectionRequest struct {
	Name                  string            `json:"name"`
	Description           string            `json:"description,omitempty"`
	DocumentsDirectory    string            `json:"documentsDirectory,omitempty"`
	Labels                []string          `json:"labels,omitempty"`
	Tags                  map[string]string `json:"tags,omitempty"`
	SchemaEnforcementMode string            `json:"schemaEnforcementMode,omitempty"`
	IndexingMode          string            `json:"indexingMode,omitempty"`
}

// Document is the wire shape of a document record.
type Document struct {
	ID            string `json:"id"`
	CollectionID  string `json:"collectionId"`
	SchemaID      string `json:"schemaId"`
	Name          string `json:"name,omitempty"`
	ContentLength int    `json:"contentLength"`
	SHA256        string `json:"sha256,omitempty"`
	CreatedUtc    string `json:"createdUtc"`
	LastUpdateUtc string `json:"lastUpdateUtc"`
}

// IngestRequest is the PUT .../documents body.
type IngestRequest struct {
	Name   string            `json:"name,omitempty"`
	Body   json.RawMessage   `json:"body"`
	Labels []string          `json:"labels,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// IngestResponse is the PUT .../documents result.
type IngestResponse struct {
	Document Document `json:"document"`
	Warnings []string `json:"warnings,omitempty"`
}

// FieldConstraint is the wire shape of one field constraint.
type FieldConstraint struct {
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

// ConstraintsResponse is the GET .../constraints result.
type ConstraintsResponse struct {
	SchemaEnforcementMode string            `json:"schemaEnforcementMode"`
	FieldConstraints      []FieldConstraint `json:"fieldConstraints"`
}

// ConstraintsRequest is the PUT .../constraints body.
type ConstraintsRequest struct {
	SchemaEnforcementMode string            `json:"schemaEnforcementMode"`
	FieldConstraints      []FieldConstraint `json:"fieldConstraints"`
}

// IndexingResponse is the GET .../indexing result.
type IndexingResponse struct {
	IndexingMode  string   `json:"indexingMode"`
	IndexedFields []string `json:"indexedFields,omitempty"`
}

// IndexingRequest is the PUT .../indexing body.
type IndexingRequest struct {
	IndexingMode      string   `json:"indexingMode"`
	IndexedFields     []string `json:"indexedFields,omitempty"`
	RebuildIndexes    bool     `json:"rebuildIndexes,omitempty"`
	DropUnusedIndexes bool     `json:"dropUnusedIndexes,omitempty"`
}

// RebuildStats is the result of a rebuild operation.
type RebuildStats struct {
	DocumentsProcessed int `json:"documentsProcessed"`
	IndexesCreated     int `json:"indexesCreated"`
	IndexesDropped     int `json:"indexesDropped"`
	ValuesInserted     int `json:"valuesInserted"`
	DurationMs         int64    `json:"durationMs"`
	Errors             []string `json:"errors,omitempty"`
	Success            bool     `json:"success"`
}

// SearchFilter is one structured filter entry in a SearchRequest.
type SearchFilter struct {
	Field     string `json:"field"`
	Condition string `json:"condition"`
	Value     string `json:"value"`
}

// SearchRequest is the POST .../documents/search body. SQLExpression,
// when non-empty, wins over Filters.
type SearchRequest struct {
	SQLExpression  string            `json:"sqlExpression,omitempty"`
	Filters        []SearchFilter    `json:"filters,omitempty"`
	Labels         []string          `json:"labels,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	MaxResults     int               `json:"maxResults,omitempty"`
	Skip           int               `json:"skip,omitempty"`
	Ordering       string            `json:"ordering,omitempty"`
	IncludeContent bool              `json:"includeContent,omitempty"`
}

// SearchRecord is one document in a SearchResponse.
type SearchRecord struct {
	Document Document        `json:"document"`
	Content  json.RawMessage `json:"content,omitempty"`
}

// SearchResponse is the POST .../documents/search result.
type SearchResponse struct {
	Success          bool           `json:"success"`
	TimestampUTC     string         `json:"timestampUtc"`
	MaxResults       int            `json:"maxResults"`
	EndOfResults     bool           `json:"endOfResults"`
	TotalRecords     int            `json:"totalRecords"`
	RecordsRemaining int            `json:"recordsRemaining"`
	Documents        []SearchRecord `json:"documents"`
}

// Schema is the wire shape of a schema record.
type Schema struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	Hash          string `json:"hash"`
	CreatedUtc    string `json:"createdUtc"`
	LastUpdateUtc string `json:"lastUpdateUtc"`
}

// SchemaElement is one field of a schema.
type SchemaElement struct {
	Path     string `json:"path"`
	DataType string `json:"dataType"`
	Nullable bool   `json:"nullable"`
	Position int    `json:"position"`
}

// IndexTable is one entry in the GET /v1.0/tables listing.
type IndexTable struct {
	FieldPath string `json:"fieldPath"`
	TableName string `json:"tableName"`
}

// IndexEntry is one row of an index table.
type IndexEntry struct {
	ID           string   `json:"id"`
	DocumentID   string   `json:"documentId"`
	Position     *int     `json:"position,omitempty"`
	Value        string   `json:"value"`
	ValueNumeric *float64 `json:"valueNumeric,omitempty"`
	CreatedUtc   string   `json:"createdUtc"`
}

// IndexEntriesResponse is the GET .../entries result.
type IndexEntriesResponse struct {
	Entries []IndexEntry `json:"entries"`
	Total   int          `json:"total"`
}

// Health is the GET /health result.
type Health struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return nil, err
	}
	if err := c.doRaw(req, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ListCollections calls GET /v1.0/collections.
func (c *Client) ListCollections(ctx context.Context) ([]Collection, error) {
	var out []Collection
	err := c.doRequest(ctx, http.MethodGet, "/v1.0/collections", nil, &out)
	return out, err
}

// CreateCollection calls PUT /v1.0/collections.
func (c *Client) CreateCollection(ctx context.Context, req CreateCollectionRequest) (*Collection, error) {
	var out Collection
	if err := c.doRequest(ctx, http.MethodPut, "/v1.0/collections", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCollection calls GET /v1.0/collections/{id}.
func (c *Client) GetCollection(ctx context.Context, id string) (*Collection, error) {
	var out Collection
	if err := c.doRequest(ctx, http.MethodGet, "/v1.0/collections/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteCollection calls DELETE /v1.0/collections/{id}.
func (c *Client) DeleteCollection(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodDelete, "/v1.0/collections/"+url.PathEscape(id), nil, nil)
}

// GetConstraints calls GET /v1.0/collections/{id}/constraints.
func (c *Client) GetConstraints(ctx context.Context, id string) (*ConstraintsResponse, error) {
	var out ConstraintsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/v1.0/collections/"+url.PathEscape(id)+"/constraints", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetConstraints calls PUT /v1.0/collections/{id}/constraints.
func (c *Client) SetConstraints(ctx context.Context, id string, req ConstraintsRequest) error {
	return c.doRequest(ctx, http.MethodPut, "/v1.0/collections/"+url.PathEscape(id)+"/constraints", req, nil)
}

// GetIndexing calls GET /v1.0/collections/{id}/indexing.
func (c *Client) GetIndexing(ctx context.Context, id string) (*IndexingResponse, error) {
	var out IndexingResponse
	if err := c.doRequest(ctx, http.MethodGet, "/v1.0/collections/"+url.PathEscape(id)+"/indexing", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetIndexing calls PUT /v1.0/collections/{id}/indexing.
func (c *Client) SetIndexing(ctx context.Context, id string, req IndexingRequest) (*RebuildStats, error) {
	var out RebuildStats
	if err := c.doRequest(ctx, http.MethodPut, "/v1.0/collections/"+url.PathEscape(id)+"/indexing", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rebuild calls POST /v1.0/collections/{id}/indexes/rebuild.
func (c *Client) Rebuild(ctx context.Context, id string, dropUnusedIndexes bool) (*RebuildStats, error) {
	var out RebuildStats
	body := map[string]bool{"dropUnusedIndexes": dropUnusedIndexes}
	if err := c.doRequest(ctx, http.MethodPost, "/v1.0/collections/"+url.PathEscape(id)+"/indexes/rebuild", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDocuments calls GET /v1.0/collections/{cid}/documents.
func (c *Client) ListDocuments(ctx context.Context, collectionID string, skip, limit int) ([]Document, error) {
	skip, limit = parseSkipLimit(skip, limit)
	path := fmt.Sprintf("/v1.0/collections/%s/documents?skip=%d&limit=%d", url.PathEscape(collectionID), skip, limit)
	var out []Document
	err := c.doRequest(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Ingest calls PUT /v1.0/collections/{cid}/documents.
func (c *Client) Ingest(ctx context.Context, collectionID string, req IngestRequest) (*IngestResponse, error) {
	var out IngestResponse
	if err := c.doRequest(ctx, http.MethodPut, "/v1.0/collections/"+url.PathEscape(collectionID)+"/documents", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDocument calls GET /v1.0/collections/{cid}/documents/{did}.
func (c *Client) GetDocument(ctx context.Context, collectionID, documentID string) (*Document, error) {
	path := "/v1.0/collections/" + url.PathEscape(collectionID) + "/documents/" + url.PathEscape(documentID)
	var out Document
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDocumentContent calls GET .../documents/{did}?includeContent=true,
// which bypasses the envelope and returns the raw document body.
func (c *Client) GetDocumentContent(ctx context.Context, collectionID, documentID string) ([]byte, error) {
	path := fmt.Sprintf("%s/v1.0/collections/%s/documents/%s?includeContent=true",
		c.BaseURL, url.PathEscape(collectionID), url.PathEscape(documentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: buf.String()}
	}
	return buf.Bytes(), nil
}

// DeleteDocument calls DELETE /v1.0/collections/{cid}/documents/{did}.
func (c *Client) DeleteDocument(ctx context.Context, collectionID, documentID string) error {
	path := "/v1.0/collections/" + url.PathEscape(collectionID) + "/documents/" + url.PathEscape(documentID)
	return c.doRequest(ctx, http.MethodDelete, path, nil, nil)
}

// Search calls POST /v1.0/collections/{cid}/documents/search.
func (c *Client) Search(ctx context.Context, collectionID string, req SearchRequest) (*SearchResponse, error) {
	var out SearchResponse
	path := "/v1.0/collections/" + url.PathEscape(collectionID) + "/documents/search"
	if err := c.doRequest(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSchemas calls GET /v1.0/schemas.
func (c *Client) ListSchemas(ctx context.Context) ([]Schema, error) {
	var out []Schema
	err := c.doRequest(ctx, http.MethodGet, "/v1.0/schemas", nil, &out)
	return out, err
}

// GetSchema calls GET /v1.0/schemas/{id}.
func (c *Client) GetSchema(ctx context.Context, id string) (*Schema, error) {
	var out Schema
	if err := c.doRequest(ctx, http.MethodGet, "/v1.0/schemas/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSchemaElements calls GET /v1.0/schemas/{id}/elements.
func (c *Client) GetSchemaElements(ctx context.Context, id string) ([]SchemaElement, error) {
	var out []SchemaElement
	err := c.doRequest(ctx, http.MethodGet, "/v1.0/schemas/"+url.PathEscape(id)+"/elements", nil, &out)
	return out, err
}

// ListTables calls GET /v1.0/tables.
func (c *Client) ListTables(ctx context.Context) ([]IndexTable, error) {
	var out []IndexTable
	err := c.doRequest(ctx, http.MethodGet, "/v1.0/tables", nil, &out)
	return out, err
}

// TableEntries calls GET /v1.0/tables/{name}/entries?skip&limit.
func (c *Client) TableEntries(ctx context.Context, tableName string, skip, limit int) (*IndexEntriesResponse, error) {
	skip, limit = parseSkipLimit(skip, limit)
	path := fmt.Sprintf("/v1.0/tables/%s/entries?skip=%d&limit=%d", url.PathEscape(tableName), skip, limit)
	var out IndexEntriesResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// doRequest marshals body (if any), sends the request, and unwraps the
// envelope into result. A nil result discards the payload.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if !env.Success {
		return &APIError{StatusCode: env.StatusCode, Message: env.ErrorMessage, Data: env.Data}
	}
	if result != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, result)
	}
	return nil
}

// doRaw sends req and decodes the raw (non-enveloped) JSON response,
// the way /health responds.
func (c *Client) doRaw(req *http.Request, result interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// parseSkipLimit is used by callers who want to reuse the server's
// clamping rule client-side before sending a request.
func parseSkipLimit(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	return skip, limit
}
