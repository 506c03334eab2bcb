package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func envelopeHandler(t *testing.T, status int, data interface{}) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal test payload: %v", err)
		}
		env := Envelope{Success: status < 400, StatusCode: status, Data: payload}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(env)
	}
}

func TestListCollections(t *testing.T) {
	want := []Collection{{ID: "c1", Name: "events"}}
	srv := httptest.NewServer(envelopeHandler(t, http.StatusOK, want))
	defer srv.Close()

	c := New(srv.URL)
	got, err := c.ListCollections(context.Background())
	if err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c1" {
		t.Errorf("ListCollections = %+v, want %+v", got, want)
	}
}

func TestCreateCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		var req CreateCollectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Name != "events" {
			t.Errorf("Name = %q, want events", req.Name)
		}
		envelopeHandler(t, http.StatusCreated, Collection{ID: "c1", Name: req.Name})(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL)
	got, err := c.CreateCollection(context.Background(), CreateCollectionRequest{Name: "events"})
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if got.ID != "c1" {
		t.Errorf("ID = %q, want c1", got.ID)
	}
}

func TestAPIErrorOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env := Envelope{Success: false, StatusCode: http.StatusNotFound, ErrorMessage: "collection not found"}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(env)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetCollection(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
}

func TestSearchSQLExpressionWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.SQLExpression == "" {
			t.Error("expected SQLExpression to be set on the wire")
		}
		envelopeHandler(t, http.StatusOK, SearchResponse{Success: true, TotalRecords: 0})(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Search(context.Background(), "c1", SearchRequest{
		SQLExpression: "SELECT * WHERE age > 21",
		Filters:       []SearchFilter{{Field: "age", Condition: "GreaterThan", Value: "21"}},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
}

func TestPagingParamsClamped(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		envelopeHandler(t, http.StatusOK, []Document{})(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.ListDocuments(context.Background(), "c1", -5, 5000); err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if gotQuery != "skip=0&limit=1000" {
		t.Errorf("query = %q, want skip=0&limit=1000", gotQuery)
	}
}
