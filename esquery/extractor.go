package esquery

import (
	"encoding/json"
	"fmt"
)

// Record is one flattened document: the engine identifier plus all source
// fields. Bucket position is intentionally dropped during extraction; the use
// case is "the matching leaf documents regardless of branch".
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type rawHit struct {
	ID     string         `json:"_id"`
	Source map[string]any `json:"_source"`
}

type rawSearchResponse struct {
	Hits struct {
		Hits []rawHit `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

type rawTopHits struct {
	Hits struct {
		Hits []rawHit `json:"hits"`
	} `json:"hits"`
}

// Parse extracts flat records from a raw response document. The mode is
// chosen by the response's shape: when cfg requested aggregations and the
// response carries them, the bucket tree is walked depth-first and leaf
// documents are collected; otherwise each hit becomes one record in response
// order. A response whose aggregation nesting does not mirror cfg's
// aggregation tree fails with ErrMalformedAggregationResponse — a level is
// never silently skipped, and a failed parse yields no records.
func Parse(cfg *QueryConfig, body []byte) ([]Record, error) {
	if cfg == nil {
		cfg = &QueryConfig{}
	}

	var resp rawSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	if len(cfg.Aggs) == 0 || resp.Aggregations == nil {
		return extractHits(resp.Hits.Hits, cfg.ReturnFields), nil
	}
	return extractAggs(cfg.Aggs, resp.Aggregations, cfg.ReturnFields, "aggregations")
}

func extractHits(hits []rawHit, returnFields []string) []Record {
	records := make([]Record, 0, len(hits))
	for i := range hits {
		records = append(records, Record{
			ID:     hits[i].ID,
			Fields: projectFields(hits[i].Source, returnFields),
		})
	}
	return records
}

// projectFields restricts a source document to the requested fields. The
// engine already projects _source, but the guarantee that records contain
// exactly the requested fields belongs here, not to whatever the engine
// happened to return.
func projectFields(source map[string]any, returnFields []string) map[string]any {
	if len(returnFields) == 0 {
		if source == nil {
			return map[string]any{}
		}
		return source
	}
	projected := make(map[string]any, len(returnFields))
	for _, field := range returnFields {
		if v, ok := source[field]; ok {
			projected[field] = v
		}
	}
	return projected
}

// extractAggs walks one level of the response's bucket tree, mirroring the
// requested aggregation specs. Each spec names a bucket aggregation at this
// level; leaf specs yield documents from the injected top_hits aggregation,
// inner specs recurse into every bucket.
func extractAggs(specs []AggSpec, aggs map[string]json.RawMessage, returnFields []string, path string) ([]Record, error) {
	var records []Record
	for i := range specs {
		spec := &specs[i]
		aggPath := path + "." + spec.Name

		rawAgg, ok := aggs[spec.Name]
		if !ok {
			return nil, pathErrorf(ErrMalformedAggregationResponse, aggPath, "aggregation missing from response")
		}

		var node map[string]json.RawMessage
		if err := json.Unmarshal(rawAgg, &node); err != nil {
			return nil, pathErrorf(ErrMalformedAggregationResponse, aggPath, "not an aggregation object: %v", err)
		}
		rawBuckets, ok := node["buckets"]
		if !ok {
			return nil, pathErrorf(ErrMalformedAggregationResponse, aggPath, "bucket list missing from response")
		}
		var buckets []map[string]json.RawMessage
		if err := json.Unmarshal(rawBuckets, &buckets); err != nil {
			return nil, pathErrorf(ErrMalformedAggregationResponse, aggPath, "malformed bucket list: %v", err)
		}

		for j, bucket := range buckets {
			bucketPath := fmt.Sprintf("%s.buckets[%d]", aggPath, j)

			if len(spec.SubAggs) > 0 {
				children, err := extractAggs(spec.SubAggs, bucket, returnFields, bucketPath)
				if err != nil {
					return nil, err
				}
				records = append(records, children...)
				continue
			}

			rawDocs, ok := bucket[leafDocsKey]
			if !ok {
				return nil, pathErrorf(ErrMalformedAggregationResponse, bucketPath,
					"leaf documents (%s) missing from response", leafDocsKey)
			}
			var topHits rawTopHits
			if err := json.Unmarshal(rawDocs, &topHits); err != nil {
				return nil, pathErrorf(ErrMalformedAggregationResponse, bucketPath,
					"malformed leaf documents: %v", err)
			}
			records = append(records, extractHits(topHits.Hits.Hits, returnFields)...)
		}
	}
	return records, nil
}
