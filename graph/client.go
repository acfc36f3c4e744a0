package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"
	"github.com/swagftw/gi"

	"operator-console/goutils/httpclient"
	"operator-console/goutils/settings"
)

type ErrorKind int

const (
	// ErrKindTransport covers network failures and non-2xx statuses,
	// plausibly transient.
	ErrKindTransport ErrorKind = iota + 1
	// ErrKindApplication covers a well-formed response carrying an errors
	// list, retrying will not help.
	ErrKindApplication
)

// QueryError is the single failure taxonomy member surfaced by the client.
// Kind stays available for retry policy decisions.
type QueryError struct {
	Kind    ErrorKind
	Message string
}

func (e *QueryError) Error() string {
	return "query failed: " + e.Message
}

func (e *QueryError) Retriable() bool {
	return e.Kind == ErrKindTransport
}

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// Client posts query documents to the indexed data service. The endpoint
// embeds a rotating API key and can be reconfigured at runtime.
type Client struct {
	settingsObj *settings.SettingsObj
	httpClient  *retryablehttp.Client

	mu       sync.RWMutex
	endpoint string
}

func InitClient(settingsObj *settings.SettingsObj) *Client {
	client := &Client{
		settingsObj: settingsObj,
		httpClient:  httpclient.GetDefaultHTTPClient(settingsObj),
	}

	client.endpoint = client.buildEndpoint(settingsObj.Graph.DefaultAPIKey)

	if err := gi.Inject(client); err != nil {
		log.WithError(err).Fatal("failed to inject graph client")
	}

	return client
}

func (c *Client) buildEndpoint(apiKey string) string {
	if apiKey == "" {
		apiKey = c.settingsObj.Graph.DefaultAPIKey
	}

	return fmt.Sprintf(c.settingsObj.Graph.GatewayURLTemplate, apiKey, c.settingsObj.Graph.SubgraphID)
}

// Reconfigure swaps the rotating API key without restarting the process.
// An empty key falls back to the configured default.
func (c *Client) Reconfigure(apiKey string) {
	c.mu.Lock()
	c.endpoint = c.buildEndpoint(apiKey)
	c.mu.Unlock()

	log.Info("graph api key rotated")
}

func (c *Client) currentEndpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.endpoint
}

// Query executes one query document and returns the raw data object.
// Both transport and application failures come back as *QueryError.
func (c *Client) Query(ctx context.Context, query string, variables map[string]interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		log.WithError(err).Error("failed to marshal graph query")

		return nil, &QueryError{Kind: ErrKindApplication, Message: err.Error()}
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, c.currentEndpoint(), bytes.NewBuffer(body))
	if err != nil {
		log.WithError(err).Error("failed to create graph request")

		return nil, &QueryError{Kind: ErrKindTransport, Message: err.Error()}
	}

	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Error("graph request failed")

		return nil, &QueryError{Kind: ErrKindTransport, Message: err.Error()}
	}

	defer res.Body.Close()

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		log.WithError(err).Error("failed to read graph response body")

		return nil, &QueryError{Kind: ErrKindTransport, Message: err.Error()}
	}

	if res.StatusCode != http.StatusOK {
		log.WithField("status", res.Status).Error("graph endpoint returned non-200")

		return nil, &QueryError{Kind: ErrKindTransport, Message: "network error: " + res.Status}
	}

	parsed := new(gqlResponse)
	if err := json.Unmarshal(respBody, parsed); err != nil {
		log.WithError(err).Error("failed to unmarshal graph response")

		return nil, &QueryError{Kind: ErrKindApplication, Message: err.Error()}
	}

	if len(parsed.Errors) > 0 {
		log.WithField("message", parsed.Errors[0].Message).Error("graph query reported errors")

		return nil, &QueryError{Kind: ErrKindApplication, Message: parsed.Errors[0].Message}
	}

	return parsed.Data, nil
}
