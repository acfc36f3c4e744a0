package service

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"operator-console/console/rendering"
	"operator-console/goutils/datamodel"
	"operator-console/goutils/unitconv"
)

var hundred = decimal.NewFromInt(100)

func formatPercent(percent int64) string {
	return strconv.FormatInt(percent, 10) + "%"
}

func formatFloatPercent(percent float64) string {
	return strconv.FormatFloat(percent, 'f', 2, 64) + "%"
}

func formatDate(unixStr string) string {
	ts := datamodel.ParseTimestamp(unixStr)
	if ts == 0 {
		return ""
	}

	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04")
}

func formatDay(unixStr string) string {
	ts := datamodel.ParseTimestamp(unixStr)
	if ts == 0 {
		return ""
	}

	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

func stakeHistoryRows(buckets []datamodel.DailyBucket) []rendering.StakeHistoryPoint {
	points := make([]rendering.StakeHistoryPoint, 0, len(buckets))

	for _, bucket := range buckets {
		points = append(points, rendering.StakeHistoryPoint{
			Date:  formatDay(bucket.Date),
			Value: unitconv.GroupThousands(unitconv.ToDisplay(bucket.ValueWithoutEarnings, false)),
		})
	}

	return points
}

func delegatorRows(delegations []datamodel.Delegation) []rendering.DelegatorRow {
	rows := make([]rendering.DelegatorRow, 0, len(delegations))

	for _, delegation := range delegations {
		rows = append(rows, rendering.DelegatorRow{
			Address: delegation.Delegator.ID,
			Value:   unitconv.GroupThousands(unitconv.ToDisplay(delegation.ValueDataWei, true)),
		})
	}

	return rows
}

func queueRows(entries []datamodel.QueueEntry) []rendering.QueueRow {
	rows := make([]rendering.QueueRow, 0, len(entries))

	for _, entry := range entries {
		rows = append(rows, rendering.QueueRow{
			Address: entry.Delegator.ID,
			Amount:  unitconv.GroupThousands(unitconv.ToDisplay(entry.Amount, true)),
			Date:    formatDate(entry.Date),
		})
	}

	return rows
}

func sponsorshipRows(stakes []datamodel.Stake) []rendering.SponsorshipRow {
	rows := make([]rendering.SponsorshipRow, 0, len(stakes))

	for _, stake := range stakes {
		row := rendering.SponsorshipRow{
			Amount: unitconv.GroupThousands(unitconv.ToDisplay(stake.AmountWei, true)),
		}

		if stake.Sponsorship != nil {
			row.SponsorshipID = stake.Sponsorship.ID
			row.SpotAPY = stake.Sponsorship.SpotAPY
			row.IsRunning = stake.Sponsorship.IsRunning

			if stake.Sponsorship.Stream != nil {
				row.StreamID = stake.Sponsorship.Stream.ID
			}
		}

		rows = append(rows, row)
	}

	return rows
}
