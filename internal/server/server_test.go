package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/docvault-db/docvault"
	"github.com/docvault-db/docvault/internal/config"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DSN = filepath.Join(dir, "server.db")
	cfg.Content.DocumentsDirectory = filepath.Join(dir, "documents")
	cfg.Rebuild.Concurrency = 1

	db, err := docvault.Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv := httptest.NewServer(New(db, nil))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, env
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	var h map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h["status"] != "Healthy" {
		t.Fatalf("expected Healthy, got %+v", h)
	}
}

func TestCreateIngestSearchOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	resp, env := doJSON(t, http.MethodPut, srv.URL+"/v1.0/collections", map[string]interface{}{
		"name":         "people",
		"indexingMode": "all",
	})
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("create collection: status=%d env=%+v", resp.StatusCode, env)
	}
	var col struct {
		ID string `json:"id"`
	}
	reencode(t, env.Data, &col)

	resp, env = doJSON(t, http.MethodPut, srv.URL+"/v1.0/collections/"+col.ID+"/documents", map[string]interface{}{
		"body": json.RawMessage(`{"first":"Joel","age":42}`),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("ingest: status=%d env=%+v", resp.StatusCode, env)
	}

	resp, env = doJSON(t, http.MethodPost, srv.URL+"/v1.0/collections/"+col.ID+"/documents/search", map[string]interface{}{
		"sqlExpression": "SELECT * FROM documents WHERE first = 'Joel'",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search: status=%d env=%+v", resp.StatusCode, env)
	}
	var result struct {
		TotalRecords int `json:"totalRecords"`
	}
	reencode(t, env.Data, &result)
	if result.TotalRecords != 1 {
		t.Fatalf("expected one match, got %d", result.TotalRecords)
	}
}

func TestUnknownCollectionIs404(t *testing.T) {
	srv := newTestServer(t)
	resp, env := doJSON(t, http.MethodGet, srv.URL+"/v1.0/collections/nope", nil)
	if resp.StatusCode != http.StatusNotFound || env.Success {
		t.Fatalf("expected 404 envelope, got status=%d env=%+v", resp.StatusCode, env)
	}
	if env.StatusCode != http.StatusNotFound || env.ErrorMessage == "" {
		t.Fatalf("envelope should carry status and message: %+v", env)
	}
}

func TestValidationFailureIs400WithFieldErrors(t *testing.T) {
	srv := newTestServer(t)

	_, env := doJSON(t, http.MethodPut, srv.URL+"/v1.0/collections", map[string]interface{}{
		"name":                  "users",
		"schemaEnforcementMode": "strict",
	})
	var col struct {
		ID string `json:"id"`
	}
	reencode(t, env.Data, &col)

	resp, env := doJSON(t, http.MethodPut, srv.URL+"/v1.0/collections/"+col.ID+"/constraints", map[string]interface{}{
		"schemaEnforcementMode": "strict",
		"fieldConstraints": []map[string]interface{}{
			{"fieldPath": "email", "dataType": "string", "required": true, "regexPattern": "[^@]+@[^@]+"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set constraints: status=%d env=%+v", resp.StatusCode, env)
	}

	resp, env = doJSON(t, http.MethodPut, srv.URL+"/v1.0/collections/"+col.ID+"/documents", map[string]interface{}{
		"body": json.RawMessage(`{"email":"nope"}`),
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var data struct {
		Errors []string `json:"Errors"`
	}
	reencode(t, env.Data, &data)
	if len(data.Errors) != 1 {
		t.Fatalf("expected one field error, got %+v", data)
	}
}

func TestRawContentBypassesEnvelope(t *testing.T) {
	srv := newTestServer(t)

	_, env := doJSON(t, http.MethodPut, srv.URL+"/v1.0/collections", map[string]interface{}{"name": "raw"})
	var col struct {
		ID string `json:"id"`
	}
	reencode(t, env.Data, &col)

	const body = `{"k":"v"}`
	_, env = doJSON(t, http.MethodPut, srv.URL+"/v1.0/collections/"+col.ID+"/documents", map[string]interface{}{
		"body": json.RawMessage(body),
	})
	var ingest struct {
		Document struct {
			ID string `json:"id"`
		} `json:"document"`
	}
	reencode(t, env.Data, &ingest)

	resp, err := http.Get(srv.URL + "/v1.0/collections/" + col.ID + "/documents/" + ingest.Document.ID + "?includeContent=true")
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if buf.String() != body {
		t.Fatalf("raw body round-trip: got %q, want %q", buf.String(), body)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/v1.0/collections", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Access-Control-Request-Headers", "X-Custom")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected wildcard origin, got %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
	if resp.Header.Get("Access-Control-Allow-Headers") != "X-Custom" {
		t.Fatalf("expected requested headers echoed, got %q", resp.Header.Get("Access-Control-Allow-Headers"))
	}
}

// reencode unmarshals an envelope's data payload into out. The envelope
// type stores Data as interface{}, so it round-trips through JSON.
func reencode(t *testing.T, data interface{}, out interface{}) {
	t.Helper()
	b, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}
