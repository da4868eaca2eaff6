// Package estransport executes search requests against Elasticsearch or
// OpenSearch clusters. Both backends satisfy the Transport interface, so the
// rest of the codebase builds queries and parses responses without knowing
// which engine serves them.
package estransport

import (
	"context"
	"encoding/json"
)

// Transport executes a search query document against a named index and
// returns the raw JSON response body.
type Transport interface {
	// Execute runs the query against the index. The query is the full search
	// request document (bool filters, aggs, sort, size).
	Execute(ctx context.Context, index string, query map[string]any) (json.RawMessage, error)

	// GetMapping fetches the index mapping document.
	GetMapping(ctx context.Context, index string) (map[string]any, error)

	// GetSettings fetches the index settings document.
	GetSettings(ctx context.Context, index string) (map[string]any, error)
}
