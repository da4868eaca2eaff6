package estransport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/goyal15rajat/es-query-builder/logger"
	"github.com/goyal15rajat/es-query-builder/retry"
)

// Elasticsearch is a Transport backed by an Elasticsearch cluster.
type Elasticsearch struct {
	client *es.Client
	log    logger.Logger
}

// NewElasticsearch creates an Elasticsearch transport and verifies the
// connection with retrying pings before returning.
func NewElasticsearch(ctx context.Context, cfg Config, log logger.Logger) (*Elasticsearch, error) {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}

	url := normalizeURL(cfg.URL)

	clientConfig := es.Config{
		Addresses:  []string{url},
		Transport:  createTransport(cfg.TLS),
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.APIKey != "" {
		clientConfig.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	log.Info("verifying elasticsearch connection", logger.String("url", url))
	if err := retry.Do(ctx, *cfg.RetryConfig, func() error {
		return ping(ctx, client, cfg.PingTimeout)
	}); err != nil {
		return nil, fmt.Errorf("connect to elasticsearch: %w", err)
	}
	log.Info("elasticsearch connection established", logger.String("url", url))

	return &Elasticsearch{client: client, log: log}, nil
}

// Execute runs a search request and returns the raw response body.
func (e *Elasticsearch) Execute(ctx context.Context, index string, query map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(index),
		e.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}
	defer closeBody(res, e.log)

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("search %s returned %s: %s", index, res.Status(), string(raw))
	}
	return raw, nil
}

// GetMapping fetches the mapping document for the index.
func (e *Elasticsearch) GetMapping(ctx context.Context, index string) (map[string]any, error) {
	res, err := e.client.Indices.GetMapping(
		e.client.Indices.GetMapping.WithContext(ctx),
		e.client.Indices.GetMapping.WithIndex(index),
	)
	if err != nil {
		return nil, fmt.Errorf("get mapping for %s: %w", index, err)
	}
	defer closeBody(res, e.log)
	return decodeIndexDoc(res, index, "mapping")
}

// GetSettings fetches the settings document for the index.
func (e *Elasticsearch) GetSettings(ctx context.Context, index string) (map[string]any, error) {
	res, err := e.client.Indices.GetSettings(
		e.client.Indices.GetSettings.WithContext(ctx),
		e.client.Indices.GetSettings.WithIndex(index),
	)
	if err != nil {
		return nil, fmt.Errorf("get settings for %s: %w", index, err)
	}
	defer closeBody(res, e.log)
	return decodeIndexDoc(res, index, "settings")
}

// decodeIndexDoc reads an indices API response shaped {index: {...}} and
// returns the inner document for the requested index.
func decodeIndexDoc(res *esapi.Response, index, kind string) (map[string]any, error) {
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", kind, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("get %s for %s returned %s: %s", kind, index, res.Status(), string(raw))
	}

	var doc map[string]map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", kind, err)
	}
	inner, ok := doc[index]
	if !ok {
		// Index lookups through aliases return the concrete index name.
		for _, v := range doc {
			return v, nil
		}
		return nil, fmt.Errorf("%s response missing index %s", kind, index)
	}
	return inner, nil
}

func ping(ctx context.Context, client *es.Client, timeout time.Duration) error {
	pingCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := client.Ping(client.Ping.WithContext(pingCtx))
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("ping returned %s: %s", res.Status(), string(body))
	}
	return nil
}

func closeBody(res *esapi.Response, log logger.Logger) {
	if err := res.Body.Close(); err != nil && log != nil {
		log.Debug("failed to close response body", logger.Error(err))
	}
}

// normalizeURL adds an http:// prefix when the scheme is missing.
func normalizeURL(url string) string {
	if url == "" {
		return "http://localhost:9200"
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}

// createTransport builds an HTTP transport with TLS settings when enabled.
func createTransport(tlsConfig *TLSConfig) *http.Transport {
	transport := &http.Transport{}
	if tlsConfig != nil && tlsConfig.Enabled {
		tlsClientConfig := &tls.Config{
			InsecureSkipVerify: tlsConfig.InsecureSkipVerify,
		}
		if tlsConfig.CertFile != "" && tlsConfig.KeyFile != "" {
			if cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile); err == nil {
				tlsClientConfig.Certificates = []tls.Certificate{cert}
			}
		}
		transport.TLSClientConfig = tlsClientConfig
	}
	return transport
}
