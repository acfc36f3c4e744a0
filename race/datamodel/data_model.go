package datamodel

import (
	"math/big"
	"time"
)

// OperatorMeta is the display identity of one discovered operator. Color is
// derived deterministically from the id so it is stable across reloads.
type OperatorMeta struct {
	ID    string
	Name  string
	Color string
}

// ValueRecord is one daily value snapshot for one operator.
type ValueRecord struct {
	Date       int64
	OperatorID string
	ValueWei   *big.Int
}

// RankedOperator is one row of a reconstructed frame.
type RankedOperator struct {
	Meta     OperatorMeta
	ValueWei *big.Int
	Rank     int
}

// Frame is the ranking snapshot for one day.
type Frame struct {
	Date     int64
	Rankings []RankedOperator
}

func (f Frame) FormattedDate() string {
	return time.Unix(f.Date, 0).UTC().Format("Jan 2, 2006")
}

// Phase is the loading state machine of the timeline engine. Stages run as a
// strict pipeline, each one consumes the full output of the previous.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDiscovering
	PhaseFetchingMetadata
	PhaseReconstructing
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDiscovering:
		return "discovering"
	case PhaseFetchingMetadata:
		return "fetching-metadata"
	case PhaseReconstructing:
		return "reconstructing"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}
