package estransport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goyal15rajat/es-query-builder/logger"
)

func newOpenSearchTransport(t *testing.T, url string) *OpenSearch {
	t.Helper()
	transport, err := NewOpenSearch(Config{URL: url}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewOpenSearch: %v", err)
	}
	return transport
}

func TestOpenSearchExecute(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_id":"1","_source":{"title":"a"}}]}}`))
	}))
	defer srv.Close()

	transport := newOpenSearchTransport(t, srv.URL)

	raw, err := transport.Execute(context.Background(), "articles", map[string]any{
		"query": map[string]any{"match_all": map[string]any{}},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !strings.Contains(gotPath, "articles") {
		t.Errorf("request path = %q, want index in path", gotPath)
	}
	if _, ok := gotBody["query"]; !ok {
		t.Error("request body missing query")
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if _, ok := parsed["hits"]; !ok {
		t.Error("response missing hits")
	}
}

func TestOpenSearchExecuteClusterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"parsing_exception","reason":"unknown key"},"status":400}`))
	}))
	defer srv.Close()

	transport := newOpenSearchTransport(t, srv.URL)

	_, err := transport.Execute(context.Background(), "articles", map[string]any{})
	if err == nil {
		t.Fatal("expected error for 400 response, got nil")
	}
}

func TestOpenSearchGetMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"articles":{"mappings":{"properties":{"title":{"type":"text"}}}}}`))
	}))
	defer srv.Close()

	transport := newOpenSearchTransport(t, srv.URL)

	doc, err := transport.GetMapping(context.Background(), "articles")
	if err != nil {
		t.Fatalf("GetMapping: %v", err)
	}
	if _, ok := doc["mappings"]; !ok {
		t.Errorf("mapping doc = %v, want mappings key", doc)
	}
}

func TestOpenSearchGetMappingAliasedIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"articles-000003":{"mappings":{}}}`))
	}))
	defer srv.Close()

	transport := newOpenSearchTransport(t, srv.URL)

	doc, err := transport.GetMapping(context.Background(), "articles")
	if err != nil {
		t.Fatalf("GetMapping: %v", err)
	}
	if _, ok := doc["mappings"]; !ok {
		t.Errorf("mapping doc = %v, want resolution through alias", doc)
	}
}

func TestOpenSearchGetSettings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"articles":{"settings":{"index":{"number_of_shards":"3"}}}}`))
	}))
	defer srv.Close()

	transport := newOpenSearchTransport(t, srv.URL)

	doc, err := transport.GetSettings(context.Background(), "articles")
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if _, ok := doc["settings"]; !ok {
		t.Errorf("settings doc = %v, want settings key", doc)
	}
}
