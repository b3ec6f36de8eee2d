package opensearch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mstgnz/gobaokim/infra/config"
	"github.com/mstgnz/gobaokim/infra/logger"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// Index names.
const (
	IndexAPICalls   = "gobaokim-api-calls"
	IndexWebhooks   = "gobaokim-webhooks"
	IndexSystemLogs = "gobaokim-system-logs"
)

// Client wraps the OpenSearch client
type Client struct {
	client *opensearch.Client
	config config.OpenSearchConfig
}

// NewClient creates a new OpenSearch client and makes sure the indices exist.
func NewClient(cfg config.OpenSearchConfig) (*Client, error) {
	opensearchConfig := opensearch.Config{
		Addresses: []string{cfg.URL},
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // For development/testing
			},
		},
		MaxRetries:    3,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
	}

	if cfg.User != "" && cfg.Password != "" {
		opensearchConfig.Username = cfg.User
		opensearchConfig.Password = cfg.Password
	}

	client, err := opensearch.NewClient(opensearchConfig)
	if err != nil {
		return nil, err
	}

	osClient := &Client{
		client: client,
		config: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := osClient.setupIndices(ctx); err != nil {
		logger.Warn("Failed to setup OpenSearch indices: "+err.Error(), logger.LogContext{})
	}

	return osClient, nil
}

// GetClient returns the underlying OpenSearch client
func (c *Client) GetClient() *opensearch.Client {
	return c.client
}

// IsEnabled returns whether OpenSearch logging is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// setupIndices creates any missing index. The first failure is returned
// after every index has been tried.
func (c *Client) setupIndices(ctx context.Context) error {
	mappings := map[string]string{
		IndexAPICalls:   apiCallMapping,
		IndexWebhooks:   webhookMapping,
		IndexSystemLogs: systemLogMapping,
	}

	var firstErr error
	for _, name := range []string{IndexAPICalls, IndexWebhooks, IndexSystemLogs} {
		exists, err := c.indexExists(ctx, name)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("check index %s: %w", name, err)
			}
			continue
		}
		if exists {
			continue
		}
		if err := c.createIndex(ctx, name, mappings[name]); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("create index %s: %w", name, err)
			}
			continue
		}
		logger.Info("Created OpenSearch index: "+name, logger.LogContext{})
	}
	return firstErr
}

// indexExists checks if an index exists
func (c *Client) indexExists(ctx context.Context, indexName string) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{
		Index: []string{indexName},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	return res.StatusCode == http.StatusOK, nil
}

// createIndex creates an index with one shard and no replicas.
func (c *Client) createIndex(ctx context.Context, indexName, mapping string) error {
	body := `{"settings":{"number_of_shards":1,"number_of_replicas":0},"mappings":` + mapping + `}`

	req := opensearchapi.IndicesCreateRequest{
		Index: indexName,
		Body:  strings.NewReader(body),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index creation error: %s", res.String())
	}
	return nil
}

const apiCallMapping = `{
	"properties": {
		"timestamp": {"type": "date", "format": "strict_date_optional_time||epoch_millis"},
		"endpoint": {"type": "keyword"},
		"request_id": {"type": "keyword"},
		"gateway_code": {"type": "integer"},
		"success": {"type": "boolean"},
		"request": {"properties": {"body": {"type": "text"}}},
		"response": {"properties": {
			"status_code": {"type": "integer"},
			"body": {"type": "text"},
			"processing_time_ms": {"type": "integer"}
		}},
		"error": {"properties": {"kind": {"type": "keyword"}, "message": {"type": "text"}}}
	}
}`

const webhookMapping = `{
	"properties": {
		"timestamp": {"type": "date", "format": "strict_date_optional_time||epoch_millis"},
		"operation": {"type": "keyword"},
		"verified": {"type": "boolean"},
		"mrc_order_id": {"type": "keyword"},
		"reply_code": {"type": "integer"},
		"reply_message": {"type": "text"},
		"body": {"type": "text"},
		"processing_time_ms": {"type": "integer"}
	}
}`

const systemLogMapping = `{
	"properties": {
		"timestamp": {"type": "date", "format": "strict_date_optional_time||epoch_millis"},
		"level": {"type": "keyword"},
		"message": {"type": "text"},
		"component": {"type": "keyword"},
		"operation": {"type": "keyword"},
		"variant": {"type": "keyword"},
		"request_id": {"type": "keyword"},
		"service": {"type": "keyword"},
		"environment": {"type": "keyword"}
	}
}`
