package graph

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hashicorp/go-retryablehttp"

	"operator-console/goutils/settings"
)

func newTestClient(endpoint string) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 0
	httpClient.Logger = nil

	return &Client{
		settingsObj: &settings.SettingsObj{
			Graph: &settings.Graph{
				GatewayURLTemplate: "%s/%s",
				SubgraphID:         "test-subgraph",
				DefaultAPIKey:      "default-key",
				OperatorsPerPage:   20,
				DelegatorsPerPage:  100,
				MinSearchLength:    3,
				NameSearchDepth:    1000,
			},
			Chain: &settings.Chain{
				IPFSGatewayFormat: "https://ipfs.io/ipfs/%s",
			},
		},
		httpClient: httpClient,
		endpoint:   endpoint,
	}
}

func TestIsAddressTerm(t *testing.T) {
	cases := []struct {
		term string
		want bool
	}{
		{"0xabc123", true},
		{"ABC123", true},
		{"deadbeef", true},
		{"0x", false},
		{"alpha node", false},
		{"0xzz", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := IsAddressTerm(tc.term); got != tc.want {
			t.Errorf("IsAddressTerm(%q) = %v, want %v", tc.term, got, tc.want)
		}
	}
}

func TestQuoteTerm(t *testing.T) {
	if got := QuoteTerm(`ab"}) { evil`); got != "ab}) { evil" {
		t.Errorf("unexpected sanitized term %q", got)
	}

	if got := QuoteTerm(`a\"b`); got != "ab" {
		t.Errorf("unexpected sanitized term %q", got)
	}
}

func TestFetchOperatorsShortTermSkipsNetwork(t *testing.T) {
	calls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	operators, err := client.FetchOperators(context.Background(), 0, "ab")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(operators) != 0 {
		t.Errorf("expected empty result for short term, got %d operators", len(operators))
	}

	if calls != 0 {
		t.Errorf("expected no requests for short term, got %d", calls)
	}
}

func TestFetchOperatorsAddressSearchFiltersServerSide(t *testing.T) {
	var capturedQuery string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		req := new(gqlRequest)
		if err := json.Unmarshal(body, req); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		capturedQuery = req.Query

		_, _ = w.Write([]byte(`{"data": {"operators": [{"id": "0xabc123"}]}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	operators, err := client.FetchOperators(context.Background(), 0, "0xAbC123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(operators) != 1 || operators[0].ID != "0xabc123" {
		t.Errorf("unexpected operators result: %+v", operators)
	}

	if !contains(capturedQuery, `id_contains: "0xabc123"`) {
		t.Errorf("expected server side id filter in query, got: %s", capturedQuery)
	}
}

func TestFetchOperatorsNameSearchFiltersClientSide(t *testing.T) {
	var capturedQuery string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		req := new(gqlRequest)
		_ = json.Unmarshal(body, req)

		capturedQuery = req.Query

		_, _ = w.Write([]byte(`{"data": {"operators": [
			{"id": "0x01", "metadataJsonString": "{\"name\": \"Alpha Node\"}"},
			{"id": "0x02", "metadataJsonString": "{\"name\": \"Beta Node\"}"},
			{"id": "0x03", "metadataJsonString": ""}
		]}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	operators, err := client.FetchOperators(context.Background(), 0, "alpha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(operators) != 1 || operators[0].ID != "0x01" {
		t.Errorf("expected only the matching operator, got: %+v", operators)
	}

	if !contains(capturedQuery, "first: 1000") {
		t.Errorf("expected ranked superset query, got: %s", capturedQuery)
	}

	if contains(capturedQuery, "id_contains") {
		t.Errorf("name search must not filter server side, got: %s", capturedQuery)
	}
}

func TestQueryApplicationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors": [{"message": "indexing error"}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.FetchOperators(context.Background(), 0, "")
	if err == nil {
		t.Fatal("expected error for errors payload")
	}

	queryErr := new(QueryError)
	if !errors.As(err, &queryErr) {
		t.Fatalf("expected *QueryError, got %T", err)
	}

	if queryErr.Kind != ErrKindApplication {
		t.Errorf("expected application error kind, got %v", queryErr.Kind)
	}

	if queryErr.Retriable() {
		t.Error("application errors must not be retriable")
	}

	if queryErr.Error() != "query failed: indexing error" {
		t.Errorf("unexpected error message: %s", queryErr.Error())
	}
}

func TestQueryTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.FetchOperators(context.Background(), 0, "")

	queryErr := new(QueryError)
	if !errors.As(err, &queryErr) {
		t.Fatalf("expected *QueryError, got %T (%v)", err, err)
	}

	if queryErr.Kind != ErrKindTransport {
		t.Errorf("expected transport error kind, got %v", queryErr.Kind)
	}

	if !queryErr.Retriable() {
		t.Error("transport errors should be retriable")
	}
}

func TestReconfigureSwapsKey(t *testing.T) {
	client := newTestClient("")
	client.endpoint = client.buildEndpoint("")

	if client.currentEndpoint() != "default-key/test-subgraph" {
		t.Errorf("unexpected default endpoint: %s", client.currentEndpoint())
	}

	client.Reconfigure("rotated-key")

	if client.currentEndpoint() != "rotated-key/test-subgraph" {
		t.Errorf("endpoint did not pick up rotated key: %s", client.currentEndpoint())
	}

	client.Reconfigure("")

	if client.currentEndpoint() != "default-key/test-subgraph" {
		t.Errorf("empty key should fall back to default: %s", client.currentEndpoint())
	}
}

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
