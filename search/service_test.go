package search

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goyal15rajat/es-query-builder/esquery"
)

// fakeTransport records the query it receives and returns canned data.
type fakeTransport struct {
	gotIndex string
	gotQuery map[string]any
	response json.RawMessage
	err      error

	mapping  map[string]any
	settings map[string]any
}

func (f *fakeTransport) Execute(_ context.Context, index string, query map[string]any) (json.RawMessage, error) {
	f.gotIndex = index
	f.gotQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeTransport) GetMapping(context.Context, string) (map[string]any, error) {
	if f.mapping == nil {
		return nil, errors.New("no mapping configured")
	}
	return f.mapping, nil
}

func (f *fakeTransport) GetSettings(context.Context, string) (map[string]any, error) {
	if f.settings == nil {
		return nil, errors.New("no settings configured")
	}
	return f.settings, nil
}

func flatResponse() json.RawMessage {
	return json.RawMessage(`{
		"hits": {
			"hits": [
				{"_id": "a1", "_source": {"title": "first"}},
				{"_id": "a2", "_source": {"title": "second"}}
			]
		}
	}`)
}

func TestSearchPipeline(t *testing.T) {
	transport := &fakeTransport{response: flatResponse()}
	svc := NewService(transport, nil, WithClock(func() time.Time {
		return time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	}))

	cfg := &esquery.QueryConfig{
		SearchFilters: &esquery.SearchFilters{
			Equals: []esquery.EqualsFilter{{Field: "status", Value: "published"}},
		},
	}

	res, err := svc.Search(context.Background(), "articles", cfg)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if transport.gotIndex != "articles" {
		t.Errorf("index = %q, want articles", transport.gotIndex)
	}
	if _, ok := transport.gotQuery["query"]; !ok {
		t.Error("transport received query without query clause")
	}
	if res.QueryID == "" {
		t.Error("QueryID is empty")
	}
	if len(res.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(res.Records))
	}
	if res.Records[0].ID != "a1" || res.Records[1].ID != "a2" {
		t.Errorf("record order = %q, %q", res.Records[0].ID, res.Records[1].ID)
	}
}

func TestSearchNilConfig(t *testing.T) {
	transport := &fakeTransport{response: flatResponse()}
	svc := NewService(transport, nil)

	res, err := svc.Search(context.Background(), "articles", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// A nil config is an empty config: match-all query, flat extraction.
	q, ok := transport.gotQuery["query"].(map[string]any)
	if !ok {
		t.Fatalf("query clause = %v, want object", transport.gotQuery["query"])
	}
	if _, ok := q["match_all"]; !ok {
		t.Errorf("query = %v, want match_all", q)
	}
	if len(res.Records) != 2 {
		t.Errorf("records = %d, want 2", len(res.Records))
	}
}

func TestSearchInvalidConfigSkipsTransport(t *testing.T) {
	transport := &fakeTransport{response: flatResponse()}
	svc := NewService(transport, nil)

	cfg := &esquery.QueryConfig{
		SearchFilters: &esquery.SearchFilters{
			RangeFilters: []esquery.RangeFilter{
				{Field: "published_at", RangeType: "date"}, // no bounds
			},
		},
	}

	_, err := svc.Search(context.Background(), "articles", cfg)
	if !errors.Is(err, esquery.ErrInvalidFilterSpec) {
		t.Fatalf("err = %v, want ErrInvalidFilterSpec", err)
	}
	if transport.gotQuery != nil {
		t.Error("transport was called for an invalid configuration")
	}
}

func TestSearchTransportError(t *testing.T) {
	wantErr := errors.New("cluster unreachable")
	transport := &fakeTransport{err: wantErr}
	svc := NewService(transport, nil)

	_, err := svc.Search(context.Background(), "articles", &esquery.QueryConfig{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped transport error", err)
	}
}

func TestSearchParseError(t *testing.T) {
	transport := &fakeTransport{response: json.RawMessage(`not json`)}
	svc := NewService(transport, nil)

	_, err := svc.Search(context.Background(), "articles", &esquery.QueryConfig{})
	if err == nil {
		t.Fatal("expected parse error, got nil")
	}
}

func TestSearchRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	transport := &fakeTransport{response: flatResponse()}
	svc := NewService(transport, nil, WithMetrics(metrics))

	if _, err := svc.Search(context.Background(), "articles", &esquery.QueryConfig{}); err != nil {
		t.Fatalf("Search: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "esquery_pipeline_queries_total" {
			found = true
			if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 1 {
				t.Errorf("queries_total = %v, want 1", got)
			}
		}
	}
	if !found {
		t.Error("queries_total metric not registered")
	}
}

func TestValidateIndex(t *testing.T) {
	transport := &fakeTransport{
		mapping: map[string]any{
			"mappings": map[string]any{
				"properties": map[string]any{
					"title": map[string]any{"type": "text"},
				},
			},
		},
		settings: map[string]any{
			"settings": map[string]any{
				"index": map[string]any{"number_of_shards": "3"},
			},
		},
	}
	svc := NewService(transport, nil)

	expectedMapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"title":  map[string]any{"type": "text"},
				"author": map[string]any{"type": "keyword"},
			},
		},
	}

	res, err := svc.ValidateIndex(context.Background(), "articles", expectedMapping, nil)
	if err != nil {
		t.Fatalf("ValidateIndex: %v", err)
	}
	if res.Valid() {
		t.Fatal("expected validation failure for missing author field")
	}
	if len(res.Missing) != 1 || res.Missing[0] != "mappings.properties.author" {
		t.Errorf("missing = %v, want [mappings.properties.author]", res.Missing)
	}
}

func TestValidateIndexBothDocuments(t *testing.T) {
	transport := &fakeTransport{
		mapping: map[string]any{
			"mappings": map[string]any{"properties": map[string]any{}},
		},
		settings: map[string]any{
			"settings": map[string]any{
				"index": map[string]any{"number_of_shards": "3"},
			},
		},
	}
	svc := NewService(transport, nil)

	res, err := svc.ValidateIndex(context.Background(), "articles",
		map[string]any{"mappings": map[string]any{"properties": map[string]any{}}},
		map[string]any{"settings": map[string]any{"index": map[string]any{"number_of_shards": "3"}}},
	)
	if err != nil {
		t.Fatalf("ValidateIndex: %v", err)
	}
	if !res.Valid() {
		t.Errorf("expected valid result, got %s", res.Report())
	}
}
