package datamodel

import (
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

// Graph-sourced entities. Numeric fields arrive as strings and stay strings
// until a consumer needs arithmetic; wei amounts then go through big.Int.

type Ref struct {
	ID                 string `json:"id"`
	MetadataJSONString string `json:"metadataJsonString"`
}

type Stream struct {
	ID string `json:"id"`
}

type Sponsorship struct {
	ID           string  `json:"id"`
	RemainingWei string  `json:"remainingWei"`
	SpotAPY      string  `json:"spotAPY"`
	IsRunning    bool    `json:"isRunning"`
	Stream       *Stream `json:"stream"`
}

type Stake struct {
	AmountWei   string       `json:"amountWei"`
	Sponsorship *Sponsorship `json:"sponsorship"`
}

type Delegation struct {
	ID           string `json:"id"`
	ValueDataWei string `json:"_valueDataWei"`
	Delegator    Ref    `json:"delegator"`
}

type QueueEntry struct {
	ID        string `json:"id"`
	Amount    string `json:"amount"`
	Delegator Ref    `json:"delegator"`
	Date      string `json:"date"`
}

type Operator struct {
	ID                          string       `json:"id"`
	Owner                       string       `json:"owner"`
	ValueWithoutEarnings        string       `json:"valueWithoutEarnings"`
	OperatorTokenTotalSupplyWei string       `json:"operatorTokenTotalSupplyWei"`
	DelegatorCount              int          `json:"delegatorCount"`
	CumulativeEarningsWei       string       `json:"cumulativeEarningsWei"`
	CumulativeProfitsWei        string       `json:"cumulativeProfitsWei"`
	CumulativeOperatorsCutWei   string       `json:"cumulativeOperatorsCutWei"`
	OperatorsCutFraction        string       `json:"operatorsCutFraction"`
	Nodes                       []string     `json:"nodes"`
	Controllers                 []string     `json:"controllers"`
	MetadataJSONString          string       `json:"metadataJsonString"`
	Stakes                      []Stake      `json:"stakes"`
	Delegations                 []Delegation `json:"delegations"`
	QueueEntries                []QueueEntry `json:"queueEntries"`
}

type StakingEvent struct {
	ID          string       `json:"id"`
	Amount      string       `json:"amount"`
	Date        string       `json:"date"`
	Sponsorship *Sponsorship `json:"sponsorship"`
}

type SlashingEvent struct {
	ID          string       `json:"id"`
	Amount      string       `json:"amount"`
	Date        string       `json:"date"`
	Sponsorship *Sponsorship `json:"sponsorship"`
}

type Vote struct {
	ID          string `json:"id"`
	Voter       Ref    `json:"voter"`
	VoterWeight string `json:"voterWeight"`
	VotedKick   bool   `json:"votedKick"`
	Timestamp   string `json:"timestamp"`
}

type Flag struct {
	ID                string       `json:"id"`
	Flagger           *Ref         `json:"flagger,omitempty"`
	Target            *Ref         `json:"target,omitempty"`
	Sponsorship       *Sponsorship `json:"sponsorship"`
	FlaggingTimestamp string       `json:"flaggingTimestamp"`
	Result            string       `json:"result"`
	Votes             []Vote       `json:"votes"`
}

type DailyBucket struct {
	Date                 string `json:"date"`
	ValueWithoutEarnings string `json:"valueWithoutEarnings"`
	Operator             *Ref   `json:"operator,omitempty"`
}

// OperatorDetail is the composite detail query result for one operator.
type OperatorDetail struct {
	Operator       *Operator       `json:"operator"`
	SelfDelegation []Delegation    `json:"selfDelegation"`
	StakingEvents  []StakingEvent  `json:"stakingEvents"`
	DailyBuckets   []DailyBucket   `json:"operatorDailyBuckets"`
	FlagsAgainst   []Flag          `json:"flagsAgainst"`
	FlagsAsFlagger []Flag          `json:"flagsAsFlagger"`
	SlashingEvents []SlashingEvent `json:"slashingEvents"`
}

// Unified history feed. Entries are built once and only re-sorted, never
// mutated afterwards.

type HistoryOrigin string

const (
	OriginGraph    HistoryOrigin = "graph"
	OriginExplorer HistoryOrigin = "explorer"
)

type TxDirection string

const (
	DirectionIn  TxDirection = "IN"
	DirectionOut TxDirection = "OUT"
)

type HistoryEntry struct {
	Origin        HistoryOrigin
	Timestamp     int64
	Token         string
	Direction     TxDirection
	Action        string
	Amount        decimal.Decimal
	TxHash        string
	SponsorshipID string
	StreamID      string
}

// ParseTimestamp converts a graph string timestamp (unix seconds) to int64,
// zero on malformed input.
func ParseTimestamp(s string) int64 {
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}

	return ts
}

// WeiOrZero parses a wei string into big.Int, zero on malformed input.
// Source data is untrusted, display paths degrade instead of failing.
func WeiOrZero(s string) *big.Int {
	wei, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}

	return wei
}
