package estransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"

	"github.com/goyal15rajat/es-query-builder/logger"
)

// OpenSearch is a Transport backed by an OpenSearch cluster.
type OpenSearch struct {
	client *opensearchapi.Client
	log    logger.Logger
}

// NewOpenSearch creates an OpenSearch transport.
func NewOpenSearch(cfg Config, log logger.Logger) (*OpenSearch, error) {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}

	client, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses:  []string{normalizeURL(cfg.URL)},
			Username:   cfg.Username,
			Password:   cfg.Password,
			Transport:  createTransport(cfg.TLS),
			MaxRetries: cfg.MaxRetries,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}

	return &OpenSearch{client: client, log: log}, nil
}

// Execute runs a search request and returns the raw response body.
func (o *OpenSearch) Execute(ctx context.Context, index string, query map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := o.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{index},
		Body:    bytes.NewReader(body),
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}

	respBody := res.Inspect().Response.Body
	defer respBody.Close()

	raw, err := io.ReadAll(respBody)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	return raw, nil
}

// GetMapping fetches the mapping document for the index.
func (o *OpenSearch) GetMapping(ctx context.Context, index string) (map[string]any, error) {
	res, err := o.client.Indices.Mapping.Get(ctx, &opensearchapi.MappingGetReq{
		Indices: []string{index},
	})
	if err != nil {
		return nil, fmt.Errorf("get mapping for %s: %w", index, err)
	}
	return decodeOpenSearchIndexDoc(res.Inspect().Response.Body, index, "mapping")
}

// GetSettings fetches the settings document for the index.
func (o *OpenSearch) GetSettings(ctx context.Context, index string) (map[string]any, error) {
	res, err := o.client.Indices.Settings.Get(ctx, &opensearchapi.SettingsGetReq{
		Indices: []string{index},
	})
	if err != nil {
		return nil, fmt.Errorf("get settings for %s: %w", index, err)
	}
	return decodeOpenSearchIndexDoc(res.Inspect().Response.Body, index, "settings")
}

func decodeOpenSearchIndexDoc(body io.ReadCloser, index, kind string) (map[string]any, error) {
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", kind, err)
	}

	var doc map[string]map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", kind, err)
	}
	if inner, ok := doc[index]; ok {
		return inner, nil
	}
	for _, v := range doc {
		return v, nil
	}
	return nil, fmt.Errorf("%s response missing index %s", kind, index)
}
