// Package history merges graph-sourced staking events with explorer-sourced
// classified transactions into a single feed. The two origins track different
// event granularities, so no cross-origin de-duplication is attempted; the
// origin tag lets the presentation layer distinguish them.
package history

import (
	"sort"

	"github.com/shopspring/decimal"

	"operator-console/goutils/datamodel"
)

const stakingEventAction = "stake into sponsorship"

// FromStakingEvents converts graph staking events into unified entries.
// Amounts arrive as wei strings, the governance token always has 18 decimals.
func FromStakingEvents(events []datamodel.StakingEvent, governanceSymbol string) []datamodel.HistoryEntry {
	entries := make([]datamodel.HistoryEntry, 0, len(events))

	for _, event := range events {
		entry := datamodel.HistoryEntry{
			Origin:    datamodel.OriginGraph,
			Timestamp: datamodel.ParseTimestamp(event.Date),
			Token:     governanceSymbol,
			Direction: datamodel.DirectionOut,
			Action:    stakingEventAction,
			Amount:    decimal.NewFromBigInt(datamodel.WeiOrZero(event.Amount), -18),
		}

		if event.Sponsorship != nil {
			entry.SponsorshipID = event.Sponsorship.ID
			if event.Sponsorship.Stream != nil {
				entry.StreamID = event.Sponsorship.Stream.ID
			}
		}

		entries = append(entries, entry)
	}

	return entries
}

// Merge combines both origins into one list ordered by timestamp descending.
// Inputs are never mutated, the result is a fresh slice.
func Merge(graphEntries []datamodel.HistoryEntry, explorerEntries []datamodel.HistoryEntry) []datamodel.HistoryEntry {
	merged := make([]datamodel.HistoryEntry, 0, len(graphEntries)+len(explorerEntries))
	merged = append(merged, graphEntries...)
	merged = append(merged, explorerEntries...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp > merged[j].Timestamp
	})

	return merged
}
