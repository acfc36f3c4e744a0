// Package service orchestrates the console: operator list with search and
// pagination, operator detail with a periodic refresh, unified history
// assembly and transaction submission. Continuations of async work are
// guarded by a per-view staleness token so a stale fetch or poll can never
// write into a view the user has already left.
package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/swagftw/gi"

	"operator-console/caching"
	"operator-console/console/history"
	"operator-console/console/metrics"
	"operator-console/console/rendering"
	"operator-console/console/streams"
	"operator-console/console/wallet"
	"operator-console/goutils/datamodel"
	"operator-console/goutils/metadata"
	"operator-console/goutils/settings"
	"operator-console/goutils/unitconv"
)

type graphAPI interface {
	FetchOperators(ctx context.Context, skip int, filter string) ([]datamodel.Operator, error)
	FetchOperatorDetail(ctx context.Context, operatorID string) (*datamodel.OperatorDetail, error)
	FetchMoreDelegators(ctx context.Context, operatorID string, skip int) ([]datamodel.Delegation, error)
	Reconfigure(apiKey string)
}

type explorerAPI interface {
	FetchHistory(ctx context.Context, address string) ([]datamodel.HistoryEntry, error)
}

type walletAPI interface {
	Delegate(ctx context.Context, operatorID string, amount string) (string, error)
	Undelegate(ctx context.Context, operatorID string, amount string) (string, error)
	EditStake(ctx context.Context, operatorID string, sponsorshipID string, currentWei *big.Int, targetAmount string) (string, error)
	CollectEarnings(ctx context.Context, operatorID string, sponsorshipIDs []string) (string, error)
	ProcessQueue(ctx context.Context, operatorID string) (string, error)
	MyStake(ctx context.Context, operatorID string) (*big.Int, error)
	NativeBalances(ctx context.Context, addresses []string) map[string]string
}

type coordinationAPI interface {
	Subscribe(operatorID string, onMessage func(msg streams.CoordinationMessage)) error
	Teardown() error
}

type Service struct {
	settingsObj *settings.SettingsObj
	graph       graphAPI
	explorer    explorerAPI
	wallet      walletAPI
	dbCache     caching.DbCache
	memCache    caching.MemCache
	renderer    rendering.Renderer
	feed        coordinationAPI

	mu              sync.Mutex
	page            int
	filter          string
	currentOperator string
	viewToken       string
	pollCancel      context.CancelFunc
	delegatorsShown int
	currentDetail   *datamodel.OperatorDetail
	currentHistory  []datamodel.HistoryEntry
	historyError    string
	myStakeWei      *big.Int
	nodeBalances    map[string]string
}

func InitService(graphClient graphAPI, explorerClient explorerAPI, walletService walletAPI, feed coordinationAPI, renderer rendering.Renderer) *Service {
	service := &Service{
		graph:    graphClient,
		explorer: explorerClient,
		wallet:   walletService,
		feed:     feed,
		renderer: renderer,
	}

	settingsObj, err := gi.Invoke[*settings.SettingsObj]()
	if err != nil {
		log.WithError(err).Fatal("failed to invoke settings object")
	}

	dbCache, err := gi.Invoke[*caching.RedisCache]()
	if err != nil {
		log.WithError(err).Fatal("failed to invoke redis cache")
	}

	memCache, err := gi.Invoke[*caching.LRUCache]()
	if err != nil {
		log.WithError(err).Fatal("failed to invoke lru cache")
	}

	service.settingsObj = settingsObj
	service.dbCache = dbCache
	service.memCache = memCache

	if err := gi.Inject(service); err != nil {
		log.WithError(err).Fatal("failed to inject console service")
	}

	return service
}

// Start restores persisted settings and renders the initial operator list.
func (s *Service) Start(ctx context.Context) {
	if apiKey, err := s.dbCache.GetGraphAPIKey(ctx); err == nil && apiKey != "" {
		s.graph.Reconfigure(apiKey)
	} else if err != nil && !errors.Is(err, caching.ErrNotFound) {
		log.WithError(err).Warn("failed to restore persisted graph api key")
	}

	s.ShowOperators(ctx, 0, "")

	if operatorID, err := s.dbCache.GetLastViewedOperator(ctx); err == nil && operatorID != "" {
		s.OpenOperator(ctx, operatorID)
	}
}

// HandleCommand dispatches one presentation-layer command into the core.
func (s *Service) HandleCommand(ctx context.Context, cmd rendering.Command) {
	switch c := cmd.(type) {
	case rendering.CmdSearch:
		s.ShowOperators(ctx, 0, c.Term)
	case rendering.CmdNextPage:
		s.mu.Lock()
		page, filter := s.page+1, s.filter
		s.mu.Unlock()
		s.ShowOperators(ctx, page, filter)
	case rendering.CmdOpenOperator:
		s.OpenOperator(ctx, c.OperatorID)
	case rendering.CmdCloseOperator:
		s.CloseOperator()
	case rendering.CmdLoadMoreDelegators:
		s.LoadMoreDelegators(ctx)
	case rendering.CmdDelegate:
		s.submitTx(ctx, func(operatorID string) (string, error) {
			return s.wallet.Delegate(ctx, operatorID, c.Amount)
		})
	case rendering.CmdUndelegate:
		s.submitTx(ctx, func(operatorID string) (string, error) {
			return s.wallet.Undelegate(ctx, operatorID, c.Amount)
		})
	case rendering.CmdEditStake:
		s.submitTx(ctx, func(operatorID string) (string, error) {
			return s.wallet.EditStake(ctx, operatorID, c.SponsorshipID, s.currentStakeWei(c.SponsorshipID), c.TargetAmount)
		})
	case rendering.CmdCollectEarnings:
		s.submitTx(ctx, func(operatorID string) (string, error) {
			return s.wallet.CollectEarnings(ctx, operatorID, c.SponsorshipIDs)
		})
	case rendering.CmdProcessQueue:
		s.submitTx(ctx, func(operatorID string) (string, error) {
			return s.wallet.ProcessQueue(ctx, operatorID)
		})
	case rendering.CmdSaveGraphAPIKey:
		s.SaveGraphAPIKey(ctx, c.Key)
	default:
		log.WithField("command", cmd).Warn("unhandled command")
	}
}

// ShowOperators renders one page of the operator list. Fetch failures
// degrade to an empty list plus a notification, never a dead view.
func (s *Service) ShowOperators(ctx context.Context, page int, filter string) {
	s.mu.Lock()
	s.page = page
	s.filter = filter
	s.mu.Unlock()

	perPage := s.settingsObj.Graph.OperatorsPerPage

	operators, err := s.graph.FetchOperators(ctx, page*perPage, filter)
	if err != nil {
		log.WithError(err).Error("operator list fetch failed")
		s.renderer.Notify(rendering.LevelError, "Failed to load operators: "+err.Error())
		s.renderer.RenderOperatorList(rendering.OperatorListView{Page: page, Filter: filter})

		return
	}

	rows := make([]rendering.OperatorRow, 0, len(operators))

	for _, op := range operators {
		meta := s.operatorMetadata(op.ID, op.MetadataJSONString)

		rows = append(rows, rendering.OperatorRow{
			ID:             op.ID,
			DisplayName:    meta.DisplayName(op.ID),
			ImageURL:       meta.ImageURL,
			TotalValue:     unitconv.GroupThousands(unitconv.ToDisplay(op.ValueWithoutEarnings, false)),
			DelegatorCount: op.DelegatorCount,
		})
	}

	s.renderer.RenderOperatorList(rendering.OperatorListView{
		Rows:    rows,
		Page:    page,
		Filter:  filter,
		HasMore: len(operators) == perPage,
	})
}

// OpenOperator switches the detail view to one operator: the previous poll
// is cancelled first, a fresh staleness token is issued, then the detail is
// loaded and a periodic refresh scheduled.
func (s *Service) OpenOperator(ctx context.Context, operatorID string) {
	s.mu.Lock()

	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}

	token := uuid.NewString()
	s.viewToken = token
	s.currentOperator = operatorID
	s.delegatorsShown = 0
	s.currentDetail = nil

	pollCtx, cancel := context.WithCancel(ctx)
	s.pollCancel = cancel
	s.mu.Unlock()

	if err := s.dbCache.StoreLastViewedOperator(ctx, operatorID); err != nil {
		log.WithError(err).Debug("failed to persist last viewed operator")
	}

	// the feed tears any previous subscription down before attaching
	if s.feed != nil {
		if err := s.feed.Subscribe(operatorID, s.onCoordinationMessage); err != nil {
			log.WithError(err).Warn("coordination feed subscription failed")
		}
	}

	s.loadDetail(ctx, operatorID, token)

	go s.pollDetail(pollCtx, operatorID, token)
}

func (s *Service) onCoordinationMessage(msg streams.CoordinationMessage) {
	if !s.operatorCurrent(msg.OperatorID) {
		return
	}

	s.renderer.Notify(rendering.LevelInfo, "Coordination: "+string(msg.Body))
}

func (s *Service) operatorCurrent(operatorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentOperator == operatorID
}

// CloseOperator tears the detail view down and stops its refresh.
func (s *Service) CloseOperator() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}

	s.viewToken = ""
	s.currentOperator = ""
	s.currentDetail = nil
	s.currentHistory = nil
	s.historyError = ""
	s.myStakeWei = nil
	s.nodeBalances = nil

	if s.feed != nil {
		if err := s.feed.Teardown(); err != nil {
			log.WithError(err).Warn("coordination feed teardown failed")
		}
	}
}

func (s *Service) pollDetail(ctx context.Context, operatorID string, token string) {
	interval := time.Duration(s.settingsObj.DetailPollIntervalSecs) * time.Second
	ticker := time.NewTicker(interval)

	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.tokenCurrent(token) {
				return
			}

			s.loadDetail(ctx, operatorID, token)
		}
	}
}

func (s *Service) tokenCurrent(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.viewToken == token
}

// loadDetail fetches everything the detail view needs and renders it, unless
// the view changed while the fetches were in flight.
func (s *Service) loadDetail(ctx context.Context, operatorID string, token string) {
	detail, err := s.graph.FetchOperatorDetail(ctx, operatorID)
	if err != nil {
		if s.tokenCurrent(token) {
			log.WithError(err).Error("operator detail fetch failed")
			s.renderer.Notify(rendering.LevelError, "Failed to load operator: "+err.Error())
		}

		return
	}

	if detail == nil || detail.Operator == nil {
		if s.tokenCurrent(token) {
			s.renderer.Notify(rendering.LevelWarning, "Operator not found")
		}

		return
	}

	historyEntries, historyErr := s.assembleHistory(ctx, detail)

	myStake, err := s.wallet.MyStake(ctx, operatorID)
	if err != nil {
		log.WithError(err).Warn("my-stake read failed")

		myStake = new(big.Int)
	}

	balanceTargets := append(append([]string{}, detail.Operator.Nodes...), detail.Operator.Controllers...)
	balances := s.wallet.NativeBalances(ctx, balanceTargets)

	if !s.tokenCurrent(token) {
		// the user moved on while we were fetching, discard
		return
	}

	s.mu.Lock()
	s.currentDetail = detail
	s.delegatorsShown = len(detail.Operator.Delegations)
	s.currentHistory = historyEntries
	s.historyError = historyErr
	s.myStakeWei = myStake
	s.nodeBalances = balances
	s.mu.Unlock()

	view := s.buildDetailView(detail, historyEntries, historyErr, myStake, balances)
	s.renderer.RenderOperatorDetail(view)
}

// assembleHistory merges graph staking events with explorer transactions.
// An explorer failure degrades to graph-only history plus inline error text.
func (s *Service) assembleHistory(ctx context.Context, detail *datamodel.OperatorDetail) ([]datamodel.HistoryEntry, string) {
	graphEntries := history.FromStakingEvents(detail.StakingEvents, s.settingsObj.Chain.GovernanceSymbol)

	explorerEntries, err := s.explorer.FetchHistory(ctx, detail.Operator.ID)
	if err != nil {
		log.WithError(err).Error("explorer history fetch failed")

		return history.Merge(graphEntries, nil), "Transaction history is currently unavailable"
	}

	return history.Merge(graphEntries, explorerEntries), ""
}

func (s *Service) buildDetailView(detail *datamodel.OperatorDetail, historyEntries []datamodel.HistoryEntry, historyErr string, myStake *big.Int, balances map[string]string) rendering.OperatorDetailView {
	op := detail.Operator
	meta := s.operatorMetadata(op.ID, op.MetadataJSONString)
	derived := metrics.Compute(detail)

	view := rendering.OperatorDetailView{
		ID:              op.ID,
		DisplayName:     meta.DisplayName(op.ID),
		Description:     meta.Description,
		ImageURL:        meta.ImageURL,
		Owner:           op.Owner,
		Nodes:           op.Nodes,
		Controllers:     op.Controllers,
		NodeBalances:    balances,
		TotalValue:      unitconv.GroupThousands(unitconv.ToDisplay(op.ValueWithoutEarnings, true)),
		DeployedStake:   unitconv.GroupThousands(unitconv.ToDisplayBig(derived.DeployedStakeWei, true)),
		MyStake:         unitconv.ToDisplayBig(myStake, true),
		WeightedAPY:     derived.WeightedAPY.Mul(hundred).StringFixed(2) + "%",
		OwnerCutPercent: formatPercent(derived.OwnerCutPercent),
		OwnerStakePct:   formatFloatPercent(derived.OwnerStakePercent),
		Distributed:     unitconv.GroupThousands(unitconv.ToDisplayBig(derived.DistributedWei, false)),
		DataAnomaly:     derived.DataAnomaly,
		DelegatorCount:  op.DelegatorCount,
		Delegators:      delegatorRows(op.Delegations),
		Queue:           queueRows(op.QueueEntries),
		Sponsorships:    sponsorshipRows(op.Stakes),
		StakeHistory:    stakeHistoryRows(detail.DailyBuckets),
		History:         historyEntries,
		HistoryError:    historyErr,
		FlagsAgainst:    detail.FlagsAgainst,
		FlagsAsFlagger:  detail.FlagsAsFlagger,
		SlashingEvents:  detail.SlashingEvents,
	}

	return view
}

// LoadMoreDelegators pages the delegator list of the open operator.
func (s *Service) LoadMoreDelegators(ctx context.Context) {
	s.mu.Lock()
	operatorID := s.currentOperator
	skip := s.delegatorsShown
	token := s.viewToken
	s.mu.Unlock()

	if operatorID == "" {
		return
	}

	delegations, err := s.graph.FetchMoreDelegators(ctx, operatorID, skip)
	if err != nil {
		log.WithError(err).Error("delegator page fetch failed")
		s.renderer.Notify(rendering.LevelError, "Failed to load more delegators")

		return
	}

	if !s.tokenCurrent(token) {
		return
	}

	s.mu.Lock()

	detail := s.currentDetail
	if detail != nil && detail.Operator != nil {
		detail.Operator.Delegations = append(detail.Operator.Delegations, delegations...)
		s.delegatorsShown += len(delegations)
	}

	historyEntries := s.currentHistory
	historyErr := s.historyError
	myStake := s.myStakeWei
	balances := s.nodeBalances
	s.mu.Unlock()

	if myStake == nil {
		myStake = new(big.Int)
	}

	if detail != nil && detail.Operator != nil {
		s.renderer.RenderOperatorDetail(s.buildDetailView(detail, historyEntries, historyErr, myStake, balances))
	}
}

// SaveGraphAPIKey persists the rotating key and reconfigures the client in
// place.
func (s *Service) SaveGraphAPIKey(ctx context.Context, apiKey string) {
	if err := s.dbCache.StoreGraphAPIKey(ctx, apiKey); err != nil {
		log.WithError(err).Error("failed to persist graph api key")
		s.renderer.Notify(rendering.LevelError, "Failed to save API key")

		return
	}

	s.graph.Reconfigure(apiKey)
	s.renderer.Notify(rendering.LevelInfo, "API key saved")
}

func (s *Service) submitTx(ctx context.Context, submit func(operatorID string) (string, error)) {
	s.mu.Lock()
	operatorID := s.currentOperator
	token := s.viewToken
	s.mu.Unlock()

	if operatorID == "" {
		s.renderer.Notify(rendering.LevelWarning, "No operator selected")

		return
	}

	txHash, err := submit(operatorID)
	if err != nil {
		s.renderer.Notify(rendering.LevelError, wallet.FriendlyMessage(err))

		return
	}

	s.renderer.Notify(rendering.LevelInfo, "Transaction submitted: "+txHash)

	// refresh so the new position shows up without waiting for the poll
	if s.tokenCurrent(token) {
		s.loadDetail(ctx, operatorID, token)
	}
}

func (s *Service) currentStakeWei(sponsorshipID string) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentDetail == nil || s.currentDetail.Operator == nil {
		return nil
	}

	for _, stake := range s.currentDetail.Operator.Stakes {
		if stake.Sponsorship != nil && stake.Sponsorship.ID == sponsorshipID {
			return datamodel.WeiOrZero(stake.AmountWei)
		}
	}

	return nil
}

func (s *Service) operatorMetadata(operatorID string, metadataJSON string) metadata.OperatorMetadata {
	if cached, ok := s.memCache.GetOperatorMetadata(operatorID); ok {
		return cached
	}

	meta := metadata.Parse(metadataJSON, s.settingsObj.Chain.IPFSGatewayFormat)
	s.memCache.SetOperatorMetadata(operatorID, meta)

	return meta
}
