// Package search orchestrates the full query pipeline: compile a filter
// configuration into an engine query, execute it over a Transport, and parse
// the raw response back into records.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goyal15rajat/es-query-builder/esquery"
	"github.com/goyal15rajat/es-query-builder/estransport"
	"github.com/goyal15rajat/es-query-builder/logger"
	"github.com/goyal15rajat/es-query-builder/schema"
)

// Result is the outcome of one pipeline run.
type Result struct {
	// QueryID uniquely identifies this execution for log correlation.
	QueryID string

	// Records are the extracted documents, in engine return order for flat
	// responses and depth-first bucket order for aggregated ones.
	Records []esquery.Record

	// TookMs is the end-to-end pipeline duration in milliseconds.
	TookMs int64
}

// Service runs search configurations against a cluster.
type Service struct {
	transport estransport.Transport
	builder   *esquery.Builder
	log       logger.Logger
	metrics   *Metrics
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithMetrics attaches Prometheus metrics to the pipeline.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock fixes the clock used for date offset resolution and timing.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.builder = esquery.NewBuilder(esquery.WithClock(now))
	}
}

// NewService creates a pipeline service over the given transport.
func NewService(transport estransport.Transport, log logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Service{
		transport: transport,
		builder:   esquery.NewBuilder(),
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search compiles cfg, executes it against index, and parses the response.
// Configuration errors surface before any network call is made.
func (s *Service) Search(ctx context.Context, index string, cfg *esquery.QueryConfig) (*Result, error) {
	if cfg == nil {
		cfg = &esquery.QueryConfig{}
	}
	queryID := uuid.NewString()
	start := s.now()

	query, err := s.builder.Build(cfg)
	if err != nil {
		s.log.Warn("invalid search configuration",
			logger.String("query_id", queryID),
			logger.String("index", index),
			logger.Error(err),
		)
		s.recordQuery(index, "invalid_config", start, 0)
		return nil, err
	}

	s.log.Info("executing search",
		logger.String("query_id", queryID),
		logger.String("index", index),
		logger.Int("aggs", len(cfg.Aggs)),
	)

	raw, err := s.transport.Execute(ctx, index, query)
	if err != nil {
		s.log.Error("search execution failed",
			logger.String("query_id", queryID),
			logger.String("index", index),
			logger.Error(err),
		)
		s.recordQuery(index, "transport_error", start, 0)
		return nil, fmt.Errorf("execute search: %w", err)
	}

	records, err := esquery.Parse(cfg, raw)
	if err != nil {
		s.log.Error("failed to parse search response",
			logger.String("query_id", queryID),
			logger.String("index", index),
			logger.Error(err),
		)
		s.recordQuery(index, "parse_error", start, 0)
		return nil, err
	}

	tookMs := s.now().Sub(start).Milliseconds()
	s.log.Info("search completed",
		logger.String("query_id", queryID),
		logger.String("index", index),
		logger.Int("records", len(records)),
		logger.Int64("took_ms", tookMs),
	)
	s.recordQuery(index, "success", start, len(records))

	return &Result{QueryID: queryID, Records: records, TookMs: tookMs}, nil
}

// ValidateIndex compares the expected mapping and settings against what the
// cluster reports for index. Nil expectations skip that document.
func (s *Service) ValidateIndex(ctx context.Context, index string, expectedMapping, expectedSettings map[string]any) (*schema.Result, error) {
	combined := &schema.Result{}

	if expectedMapping != nil {
		actual, err := s.transport.GetMapping(ctx, index)
		if err != nil {
			return nil, fmt.Errorf("fetch mapping: %w", err)
		}
		merge(combined, schema.Compare(expectedMapping, actual))
	}

	if expectedSettings != nil {
		actual, err := s.transport.GetSettings(ctx, index)
		if err != nil {
			return nil, fmt.Errorf("fetch settings: %w", err)
		}
		merge(combined, schema.Compare(expectedSettings, actual))
	}

	if !combined.Valid() {
		s.log.Warn("index schema validation failed",
			logger.String("index", index),
			logger.Int("missing", len(combined.Missing)),
			logger.Int("mismatched", len(combined.Mismatched)),
		)
	}
	return combined, nil
}

func merge(dst, src *schema.Result) {
	dst.Missing = append(dst.Missing, src.Missing...)
	dst.Mismatched = append(dst.Mismatched, src.Mismatched...)
	dst.Extra = append(dst.Extra, src.Extra...)
}

func (s *Service) recordQuery(index, status string, start time.Time, records int) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordQuery(index, status, s.now().Sub(start).Seconds(), records)
}
