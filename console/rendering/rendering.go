// Package rendering defines the contract between the console core and the
// presentation layer. The core hands over plain view models and never touches
// visual state; commands flow the other way as a tagged variant type instead
// of string sniffing on UI element identity.
package rendering

import (
	"operator-console/goutils/datamodel"
)

type NotificationLevel int

const (
	LevelInfo NotificationLevel = iota + 1
	LevelWarning
	LevelError
)

// OperatorRow is one line of the operator list.
type OperatorRow struct {
	ID             string
	DisplayName    string
	ImageURL       string
	TotalValue     string
	DelegatorCount int
}

type OperatorListView struct {
	Rows    []OperatorRow
	Page    int
	Filter  string
	HasMore bool
}

type DelegatorRow struct {
	Address string
	Value   string
}

type QueueRow struct {
	Address string
	Amount  string
	Date    string
}

type SponsorshipRow struct {
	SponsorshipID string
	StreamID      string
	Amount        string
	SpotAPY       string
	IsRunning     bool
}

// StakeHistoryPoint is one day of the operator's total value, feeding the
// stake chart on the detail screen.
type StakeHistoryPoint struct {
	Date  string
	Value string
}

// OperatorDetailView is the full detail screen. Sections that failed to load
// carry inline error text instead of failing the whole view.
type OperatorDetailView struct {
	ID              string
	DisplayName     string
	Description     string
	ImageURL        string
	Owner           string
	Nodes           []string
	Controllers     []string
	NodeBalances    map[string]string
	TotalValue      string
	DeployedStake   string
	MyStake         string
	WeightedAPY     string
	OwnerCutPercent string
	OwnerStakePct   string
	Distributed     string
	DataAnomaly     bool
	DelegatorCount  int
	Delegators      []DelegatorRow
	Queue           []QueueRow
	Sponsorships    []SponsorshipRow
	StakeHistory    []StakeHistoryPoint
	History         []datamodel.HistoryEntry
	HistoryError    string
	FlagsAgainst    []datamodel.Flag
	FlagsAsFlagger  []datamodel.Flag
	SlashingEvents  []datamodel.SlashingEvent
}

// FrameRow is one ranked bar in a timeline frame.
type FrameRow struct {
	OperatorID  string
	DisplayName string
	Color       string
	Value       string
	Rank        int
}

// FrameView is a single playback frame plus the scale markers the bars are
// drawn against.
type FrameView struct {
	Day          string
	Index        int
	Total        int
	Rows         []FrameRow
	ScaleMarkers []string
	Playing      bool
}

// Renderer is implemented by the presentation layer. Calls must be cheap, the
// core invokes them from its event loop.
type Renderer interface {
	RenderOperatorList(view OperatorListView)
	RenderOperatorDetail(view OperatorDetailView)
	RenderFrame(view FrameView)
	Notify(level NotificationLevel, message string)
}

// Command is the tagged variant type dispatched from the presentation layer
// into the core. Each variant names one core operation.
type Command interface {
	isCommand()
}

type CmdSearch struct{ Term string }

type CmdNextPage struct{}

type CmdOpenOperator struct{ OperatorID string }

type CmdCloseOperator struct{}

type CmdLoadMoreDelegators struct{}

type CmdDelegate struct{ Amount string }

type CmdUndelegate struct{ Amount string }

type CmdEditStake struct {
	SponsorshipID string
	TargetAmount  string
}

type CmdCollectEarnings struct{ SponsorshipIDs []string }

type CmdProcessQueue struct{}

type CmdSaveGraphAPIKey struct{ Key string }

type CmdStartRace struct{}

type CmdPlayPause struct{}

type CmdSetFastPlayback struct{ Fast bool }

type CmdScrubTo struct{ Frame int }

func (CmdSearch) isCommand() {}
func (CmdNextPage) isCommand() {}
func (CmdOpenOperator) isCommand() {}
func (CmdCloseOperator) isCommand() {}
func (CmdLoadMoreDelegators) isCommand() {}
func (CmdDelegate) isCommand() {}
func (CmdUndelegate) isCommand() {}
func (CmdEditStake) isCommand() {}
func (CmdCollectEarnings) isCommand() {}
func (CmdProcessQueue) isCommand() {}
func (CmdSaveGraphAPIKey) isCommand() {}
func (CmdStartRace) isCommand() {}
func (CmdPlayPause) isCommand() {}
func (CmdSetFastPlayback) isCommand() {}
func (CmdScrubTo) isCommand() {}

