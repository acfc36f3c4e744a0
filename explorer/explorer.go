package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/swagftw/gi"
	"golang.org/x/time/rate"

	"operator-console/goutils/datamodel"
	"operator-console/goutils/httpclient"
	"operator-console/goutils/settings"
)

// Action labels produced by selector classification.
const (
	LabelDelegate         = "delegate"
	LabelUndelegate       = "undelegate"
	LabelStake            = "stake"
	LabelReduceStake      = "reduce stake"
	LabelPayOutQueue      = "pay out queue"
	LabelWithdrawEarnings = "withdraw earnings"
	LabelProtocolFee      = "protocol fee"
	LabelTransfer         = "transfer"
	LabelApprove          = "approve"
	LabelVoteKick         = "vote to kick"
	LabelVoteKeep         = "vote to keep"
)

// selectorLabels maps the leading 4 bytes of call data to an action label.
// Unknown selectors keep the raw selector string.
var selectorLabels = map[string]string{
	"0x4000aea0": LabelDelegate, // transferAndCall
	"0xa9059cbb": LabelTransfer,
	"0x095ea7b3": LabelApprove,
	"0x23b872dd": LabelTransfer, // transferFrom
	"0x8d9db88d": LabelUndelegate,
	"0x9ff6a2c2": LabelStake,
	"0x866e0c49": LabelReduceStake,
	"0xc19e0b44": LabelPayOutQueue,
	"0x51cff8d9": LabelWithdrawEarnings,
}

// DefaultVoteAmounts maps magic transfer amounts to vote labels. The review
// contract encodes the vote choice as the transferred amount, so an otherwise
// unclassified governance-token transfer of exactly one of these values is a
// vote. Fragile if the contract constants ever change, which is why the map
// is replaceable on the client rather than hardcoded in classification.
var DefaultVoteAmounts = map[string]string{
	"500000000000000000": LabelVoteKick,
	"300000000000000000": LabelVoteKeep,
}

var ErrHistoryUnavailable = errors.New("transaction history unavailable")

type txEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type rawTx struct {
	Hash      string `json:"hash"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	Input     string `json:"input"`
	TimeStamp string `json:"timeStamp"`
}

type rawTokenTx struct {
	Hash         string `json:"hash"`
	From         string `json:"from"`
	To           string `json:"to"`
	Value        string `json:"value"`
	TokenSymbol  string `json:"tokenSymbol"`
	TokenDecimal string `json:"tokenDecimal"`
	TimeStamp    string `json:"timeStamp"`
}

// Client fetches and classifies address history from a block-explorer API.
type Client struct {
	settingsObj *settings.SettingsObj
	httpClient  *retryablehttp.Client
	limiter     *rate.Limiter

	// VoteAmounts is the magic-amount lookup used by reclassification,
	// swappable without touching the classifier.
	VoteAmounts map[string]string
}

func InitClient(settingsObj *settings.SettingsObj) *Client {
	limit := rate.Limit(5)
	burst := 5

	if settingsObj.Explorer.RateLimiter != nil {
		limit = rate.Limit(settingsObj.Explorer.RateLimiter.RequestsPerSec)
		burst = settingsObj.Explorer.RateLimiter.Burst
	}

	client := &Client{
		settingsObj: settingsObj,
		httpClient:  httpclient.GetDefaultHTTPClient(settingsObj),
		limiter:     rate.NewLimiter(limit, burst),
		VoteAmounts: DefaultVoteAmounts,
	}

	if err := gi.Inject(client); err != nil {
		log.WithError(err).Fatal("failed to inject explorer client")
	}

	return client
}

// FetchHistory returns the classified, directionally tagged transaction list
// for one address. Native and token lists are fetched concurrently; any
// failure on either side aborts the whole fetch so callers never see
// mismatched halves.
func (c *Client) FetchHistory(ctx context.Context, address string) ([]datamodel.HistoryEntry, error) {
	subject := strings.ToLower(address)

	var (
		wg        sync.WaitGroup
		native    []rawTx
		tokens    []rawTokenTx
		nativeErr error
		tokenErr  error
	)

	wg.Add(2)

	go func() {
		defer wg.Done()

		nativeErr = c.fetchList(ctx, "txlist", subject, &native)
	}()

	go func() {
		defer wg.Done()

		tokenErr = c.fetchList(ctx, "tokentx", subject, &tokens)
	}()

	wg.Wait()

	if nativeErr != nil || tokenErr != nil {
		if nativeErr != nil {
			log.WithError(nativeErr).Error("native transaction fetch failed")
		}

		if tokenErr != nil {
			log.WithError(tokenErr).Error("token transaction fetch failed")
		}

		return nil, ErrHistoryUnavailable
	}

	return c.classify(subject, native, tokens), nil
}

func (c *Client) fetchList(ctx context.Context, action string, address string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	url := fmt.Sprintf(
		"%s?module=account&action=%s&address=%s&startblock=0&endblock=99999999&sort=desc&apikey=%s",
		c.settingsObj.Explorer.URL, action, address, c.settingsObj.Explorer.APIKey)

	req, err := retryablehttp.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	req = req.WithContext(ctx)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}

	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("explorer returned %s", res.Status)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	envelope := new(txEnvelope)
	if err := json.Unmarshal(body, envelope); err != nil {
		return err
	}

	if envelope.Status == "0" {
		// an empty history is a success case in the upstream envelope
		if envelope.Message == "No transactions found" {
			return nil
		}

		return fmt.Errorf("explorer api error: %s", envelope.Message)
	}

	return json.Unmarshal(envelope.Result, out)
}

// classify turns the raw lists into the unified entry list. Selector labels
// resolved on native transactions carry over to token transfers sharing the
// same hash, multi-log transactions share one method.
func (c *Client) classify(subject string, native []rawTx, tokens []rawTokenTx) []datamodel.HistoryEntry {
	entries := make([]datamodel.HistoryEntry, 0, len(native)+len(tokens))
	labelsByHash := make(map[string]string)

	for _, tx := range native {
		direction := directionFor(subject, tx.From)

		label := tx.Input
		if len(tx.Input) >= 10 {
			selector := strings.ToLower(tx.Input[:10])

			label = selector
			if known, ok := selectorLabels[selector]; ok {
				label = known
				labelsByHash[strings.ToLower(tx.Hash)] = known
			}
		}

		amount := weiToDecimal(tx.Value, 18)

		// zero-value native entries are contract calls already represented
		// by their token logs, keep only real value movement
		if !amount.IsPositive() {
			continue
		}

		entries = append(entries, datamodel.HistoryEntry{
			Origin:    datamodel.OriginExplorer,
			Timestamp: parseUnix(tx.TimeStamp),
			Token:     c.settingsObj.Chain.NativeSymbol,
			Direction: direction,
			Action:    label,
			Amount:    amount,
			TxHash:    tx.Hash,
		})
	}

	for _, tx := range tokens {
		if !strings.EqualFold(tx.TokenSymbol, c.settingsObj.Chain.GovernanceSymbol) {
			continue
		}

		direction := directionFor(subject, tx.From)
		label := labelsByHash[strings.ToLower(tx.Hash)]

		if label == "" {
			if voteLabel, ok := c.VoteAmounts[tx.Value]; ok {
				label = voteLabel
			}
		}

		if label == LabelWithdrawEarnings && direction == datamodel.DirectionOut {
			label = LabelProtocolFee
		}

		decimals := 18
		if parsed, err := strconv.Atoi(tx.TokenDecimal); err == nil && parsed > 0 {
			decimals = parsed
		}

		entries = append(entries, datamodel.HistoryEntry{
			Origin:    datamodel.OriginExplorer,
			Timestamp: parseUnix(tx.TimeStamp),
			Token:     tx.TokenSymbol,
			Direction: direction,
			Action:    label,
			Amount:    weiToDecimal(tx.Value, int32(decimals)),
			TxHash:    tx.Hash,
		})
	}

	return entries
}

func directionFor(subject string, from string) datamodel.TxDirection {
	if strings.EqualFold(subject, from) {
		return datamodel.DirectionOut
	}

	return datamodel.DirectionIn
}

func weiToDecimal(raw string, decimals int32) decimal.Decimal {
	parsed, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}

	return parsed.Shift(-decimals)
}

func parseUnix(raw string) int64 {
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}

	return ts
}
