package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"operator-console/console/rendering"
	"operator-console/console/streams"
	"operator-console/goutils/datamodel"
	"operator-console/goutils/metadata"
	"operator-console/goutils/settings"
)

type mockGraph struct {
	fetchOperators      func(ctx context.Context, skip int, filter string) ([]datamodel.Operator, error)
	fetchOperatorDetail func(ctx context.Context, operatorID string) (*datamodel.OperatorDetail, error)
	fetchMoreDelegators func(ctx context.Context, operatorID string, skip int) ([]datamodel.Delegation, error)
	reconfigure         func(apiKey string)
}

func (m *mockGraph) FetchOperators(ctx context.Context, skip int, filter string) ([]datamodel.Operator, error) {
	return m.fetchOperators(ctx, skip, filter)
}

func (m *mockGraph) FetchOperatorDetail(ctx context.Context, operatorID string) (*datamodel.OperatorDetail, error) {
	return m.fetchOperatorDetail(ctx, operatorID)
}

func (m *mockGraph) FetchMoreDelegators(ctx context.Context, operatorID string, skip int) ([]datamodel.Delegation, error) {
	return m.fetchMoreDelegators(ctx, operatorID, skip)
}

func (m *mockGraph) Reconfigure(apiKey string) {
	m.reconfigure(apiKey)
}

type mockExplorer struct {
	fetchHistory func(ctx context.Context, address string) ([]datamodel.HistoryEntry, error)
}

func (m *mockExplorer) FetchHistory(ctx context.Context, address string) ([]datamodel.HistoryEntry, error) {
	return m.fetchHistory(ctx, address)
}

type mockWallet struct{}

func (m *mockWallet) Delegate(ctx context.Context, operatorID string, amount string) (string, error) {
	return "0xtx", nil
}

func (m *mockWallet) Undelegate(ctx context.Context, operatorID string, amount string) (string, error) {
	return "0xtx", nil
}

func (m *mockWallet) EditStake(ctx context.Context, operatorID string, sponsorshipID string, currentWei *big.Int, targetAmount string) (string, error) {
	return "0xtx", nil
}

func (m *mockWallet) CollectEarnings(ctx context.Context, operatorID string, sponsorshipIDs []string) (string, error) {
	return "0xtx", nil
}

func (m *mockWallet) ProcessQueue(ctx context.Context, operatorID string) (string, error) {
	return "0xtx", nil
}

func (m *mockWallet) MyStake(ctx context.Context, operatorID string) (*big.Int, error) {
	return new(big.Int), nil
}

func (m *mockWallet) NativeBalances(ctx context.Context, addresses []string) map[string]string {
	return map[string]string{}
}

type mockFeed struct {
	mu         sync.Mutex
	subscribed []string
	teardowns  int
}

func (m *mockFeed) Subscribe(operatorID string, onMessage func(msg streams.CoordinationMessage)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subscribed = append(m.subscribed, operatorID)

	return nil
}

func (m *mockFeed) Teardown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardowns++

	return nil
}

type mockRenderer struct {
	mu      sync.Mutex
	lists   []rendering.OperatorListView
	details []rendering.OperatorDetailView
	notices []string
}

func (m *mockRenderer) RenderOperatorList(view rendering.OperatorListView) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lists = append(m.lists, view)
}

func (m *mockRenderer) RenderOperatorDetail(view rendering.OperatorDetailView) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.details = append(m.details, view)
}

func (m *mockRenderer) RenderFrame(view rendering.FrameView) {}

func (m *mockRenderer) Notify(level rendering.NotificationLevel, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.notices = append(m.notices, message)
}

type mockDbCache struct {
	graphKey   string
	lastViewed string
}

func (m *mockDbCache) GetGraphAPIKey(ctx context.Context) (string, error) {
	return m.graphKey, nil
}

func (m *mockDbCache) StoreGraphAPIKey(ctx context.Context, key string) error {
	m.graphKey = key

	return nil
}

func (m *mockDbCache) ClearGraphAPIKey(ctx context.Context) error {
	m.graphKey = ""

	return nil
}

func (m *mockDbCache) GetLastViewedOperator(ctx context.Context) (string, error) {
	return m.lastViewed, nil
}

func (m *mockDbCache) StoreLastViewedOperator(ctx context.Context, operatorID string) error {
	m.lastViewed = operatorID

	return nil
}

type mockMemCache struct{}

func (m *mockMemCache) GetOperatorMetadata(operatorID string) (metadata.OperatorMetadata, bool) {
	return metadata.OperatorMetadata{}, false
}

func (m *mockMemCache) SetOperatorMetadata(operatorID string, meta metadata.OperatorMetadata) {}

func (m *mockMemCache) GetNativeBalance(address string) (string, bool) { return "", false }

func (m *mockMemCache) SetNativeBalance(address string, balance string) {}

func testSettings() *settings.SettingsObj {
	return &settings.SettingsObj{
		DetailPollIntervalSecs: 30,
		Graph: &settings.Graph{
			OperatorsPerPage: 2,
			MinSearchLength:  3,
		},
		Chain: &settings.Chain{
			GovernanceSymbol:  "DATA",
			NativeSymbol:      "POL",
			IPFSGatewayFormat: "https://ipfs.io/ipfs/%s",
		},
	}
}

func detailFor(operatorID string) *datamodel.OperatorDetail {
	return &datamodel.OperatorDetail{
		Operator: &datamodel.Operator{
			ID:                   operatorID,
			ValueWithoutEarnings: "1000000000000000000",
		},
		StakingEvents: []datamodel.StakingEvent{
			{ID: "evt", Amount: "1000000000000000000", Date: "1700000100"},
		},
		DailyBuckets: []datamodel.DailyBucket{
			{Date: "1699920000", ValueWithoutEarnings: "1500000000000000000000000"},
			{Date: "1700006400", ValueWithoutEarnings: "2000000000000000000"},
		},
	}
}

func newTestConsole(graphClient *mockGraph, explorerClient *mockExplorer, feed *mockFeed, renderer *mockRenderer) *Service {
	return &Service{
		settingsObj: testSettings(),
		graph:       graphClient,
		explorer:    explorerClient,
		wallet:      &mockWallet{},
		dbCache:     &mockDbCache{},
		memCache:    &mockMemCache{},
		renderer:    renderer,
		feed:        feed,
	}
}

func TestLoadDetailDiscardsStaleResult(t *testing.T) {
	renderer := new(mockRenderer)

	graphClient := &mockGraph{
		fetchOperatorDetail: func(ctx context.Context, operatorID string) (*datamodel.OperatorDetail, error) {
			return detailFor(operatorID), nil
		},
	}

	explorerClient := &mockExplorer{
		fetchHistory: func(ctx context.Context, address string) ([]datamodel.HistoryEntry, error) {
			return nil, nil
		},
	}

	service := newTestConsole(graphClient, explorerClient, nil, renderer)
	service.viewToken = "current-view"

	service.loadDetail(context.Background(), "0xold", "stale-view")

	if len(renderer.details) != 0 {
		t.Fatalf("stale fetch must not render, got %d renders", len(renderer.details))
	}

	service.loadDetail(context.Background(), "0xcurrent", "current-view")

	if len(renderer.details) != 1 || renderer.details[0].ID != "0xcurrent" {
		t.Fatalf("current fetch must render, got %+v", renderer.details)
	}
}

func TestOpenOperatorCancelsPreviousPollAndResubscribes(t *testing.T) {
	renderer := new(mockRenderer)
	feed := new(mockFeed)

	graphClient := &mockGraph{
		fetchOperatorDetail: func(ctx context.Context, operatorID string) (*datamodel.OperatorDetail, error) {
			return detailFor(operatorID), nil
		},
	}

	explorerClient := &mockExplorer{
		fetchHistory: func(ctx context.Context, address string) ([]datamodel.HistoryEntry, error) {
			return nil, nil
		},
	}

	service := newTestConsole(graphClient, explorerClient, feed, renderer)

	service.OpenOperator(context.Background(), "0xfirst")

	firstToken := service.viewToken
	firstCancel := service.pollCancel

	service.OpenOperator(context.Background(), "0xsecond")

	if service.viewToken == firstToken {
		t.Error("switching operators must issue a fresh staleness token")
	}

	if firstCancel == nil {
		t.Fatal("expected a poll cancel handle for the first view")
	}

	if feed.subscribed[0] != "0xfirst" || feed.subscribed[1] != "0xsecond" {
		t.Errorf("unexpected subscription order: %v", feed.subscribed)
	}

	service.CloseOperator()

	if service.pollCancel != nil || service.viewToken != "" {
		t.Error("close must clear the poll handle and token")
	}

	if feed.teardowns == 0 {
		t.Error("close must tear the coordination feed down")
	}
}

func TestHistoryDegradesOnExplorerFailure(t *testing.T) {
	renderer := new(mockRenderer)

	graphClient := &mockGraph{
		fetchOperatorDetail: func(ctx context.Context, operatorID string) (*datamodel.OperatorDetail, error) {
			return detailFor(operatorID), nil
		},
	}

	explorerClient := &mockExplorer{
		fetchHistory: func(ctx context.Context, address string) ([]datamodel.HistoryEntry, error) {
			return nil, errors.New("explorer down")
		},
	}

	service := newTestConsole(graphClient, explorerClient, nil, renderer)
	service.viewToken = "t"

	service.loadDetail(context.Background(), "0xop", "t")

	if len(renderer.details) != 1 {
		t.Fatalf("expected one render, got %d", len(renderer.details))
	}

	view := renderer.details[0]

	if view.HistoryError == "" {
		t.Error("explorer failure must surface inline history error text")
	}

	// graph-sourced events still present
	if len(view.History) != 1 || view.History[0].Origin != datamodel.OriginGraph {
		t.Errorf("graph history must survive explorer failure, got %+v", view.History)
	}
}

func TestDetailViewCarriesStakeHistory(t *testing.T) {
	renderer := new(mockRenderer)

	graphClient := &mockGraph{
		fetchOperatorDetail: func(ctx context.Context, operatorID string) (*datamodel.OperatorDetail, error) {
			return detailFor(operatorID), nil
		},
	}

	explorerClient := &mockExplorer{
		fetchHistory: func(ctx context.Context, address string) ([]datamodel.HistoryEntry, error) {
			return nil, nil
		},
	}

	service := newTestConsole(graphClient, explorerClient, nil, renderer)
	service.viewToken = "t"

	service.loadDetail(context.Background(), "0xop", "t")

	if len(renderer.details) != 1 {
		t.Fatalf("expected one render, got %d", len(renderer.details))
	}

	points := renderer.details[0].StakeHistory

	if len(points) != 2 {
		t.Fatalf("expected 2 stake history points, got %d", len(points))
	}

	if points[0].Date != "2023-11-14" || points[0].Value != "1 500 000" {
		t.Errorf("unexpected first point %+v", points[0])
	}

	if points[1].Date != "2023-11-15" || points[1].Value != "2" {
		t.Errorf("unexpected second point %+v", points[1])
	}
}

func TestShowOperatorsPagination(t *testing.T) {
	renderer := new(mockRenderer)

	var capturedSkip int

	graphClient := &mockGraph{
		fetchOperators: func(ctx context.Context, skip int, filter string) ([]datamodel.Operator, error) {
			capturedSkip = skip

			return []datamodel.Operator{{ID: "0x01"}, {ID: "0x02"}}, nil
		},
	}

	service := newTestConsole(graphClient, nil, nil, renderer)

	service.ShowOperators(context.Background(), 3, "")

	// page 3 with 2 per page skips 6
	if capturedSkip != 6 {
		t.Errorf("expected skip 6, got %d", capturedSkip)
	}

	if len(renderer.lists) != 1 || !renderer.lists[0].HasMore {
		t.Errorf("full page must report more results, got %+v", renderer.lists)
	}
}

func TestSaveGraphAPIKeyPersistsAndReconfigures(t *testing.T) {
	renderer := new(mockRenderer)

	var rotatedTo string

	graphClient := &mockGraph{
		reconfigure: func(apiKey string) {
			rotatedTo = apiKey
		},
	}

	service := newTestConsole(graphClient, nil, nil, renderer)

	service.SaveGraphAPIKey(context.Background(), "fresh-key")

	if rotatedTo != "fresh-key" {
		t.Errorf("client not reconfigured, got %q", rotatedTo)
	}

	if key, _ := service.dbCache.GetGraphAPIKey(context.Background()); key != "fresh-key" {
		t.Errorf("key not persisted, got %q", key)
	}
}
