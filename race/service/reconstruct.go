package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"operator-console/goutils/datamodel"
	racemodel "operator-console/race/datamodel"
)

type bucketRecord struct {
	Date                 string `json:"date"`
	ValueWithoutEarnings string `json:"valueWithoutEarnings"`
	Operator             struct {
		ID string `json:"id"`
	} `json:"operator"`
}

const valueHistoryQuery = `query GetValueHistory($ids: [ID!], $since: BigInt!) {
	operatorDailyBuckets(
		where: {operator_in: $ids, date_gt: $since}
		first: %d
		orderBy: date
		orderDirection: asc
	) { date valueWithoutEarnings operator { id } }
}`

// fetchValueHistory pages through the daily buckets of the whole discovered
// set in date order. An empty or short page signals the end.
func (s *Service) fetchValueHistory(ctx context.Context, operatorIDs []string) ([]racemodel.ValueRecord, error) {
	pageSize := s.settingsObj.Race.HistoryPageSize

	startDate, err := time.Parse(time.RFC3339, s.settingsObj.Race.StartDateISO)
	if err != nil {
		return nil, err
	}

	since := startDate.Unix()
	records := make([]racemodel.ValueRecord, 0)

	query := fmt.Sprintf(valueHistoryQuery, pageSize)

	for {
		variables := map[string]interface{}{
			"ids":   operatorIDs,
			"since": strconv.FormatInt(since, 10),
		}

		data, err := s.graph.Query(ctx, query, variables)
		if err != nil {
			return nil, err
		}

		page := new(struct {
			Buckets []bucketRecord `json:"operatorDailyBuckets"`
		})

		if err := json.Unmarshal(data, page); err != nil {
			return nil, err
		}

		if len(page.Buckets) == 0 {
			break
		}

		for _, bucket := range page.Buckets {
			records = append(records, racemodel.ValueRecord{
				Date:       datamodel.ParseTimestamp(bucket.Date),
				OperatorID: bucket.Operator.ID,
				ValueWei:   datamodel.WeiOrZero(bucket.ValueWithoutEarnings),
			})
		}

		since = records[len(records)-1].Date

		if len(page.Buckets) < pageSize {
			break
		}
	}

	log.WithField("records", len(records)).Info("value history loaded")

	return records, nil
}

// Reconstruct turns sparse per-day records into one frame per recorded day
// using a forward-fill merge: every discovered operator starts at zero, a
// day's records overwrite its last known value, and each frame ranks the
// last known values. Operators at or below the noise floor are dropped, the
// ranking is truncated to the display count. Pure function, no I/O.
func Reconstruct(records []racemodel.ValueRecord, operatorIDs []string, metaMap map[string]racemodel.OperatorMeta, noiseFloorWei *big.Int, displayCount int) []racemodel.Frame {
	recordsByDay := make(map[int64]map[string]*big.Int)
	days := make([]int64, 0)

	for _, record := range records {
		if _, seen := recordsByDay[record.Date]; !seen {
			recordsByDay[record.Date] = make(map[string]*big.Int)

			days = append(days, record.Date)
		}

		recordsByDay[record.Date][record.OperatorID] = record.ValueWei
	}

	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	lastKnown := make(map[string]*big.Int, len(operatorIDs))
	for _, id := range operatorIDs {
		lastKnown[id] = new(big.Int)
	}

	frames := make([]racemodel.Frame, 0, len(days))

	for _, day := range days {
		for operatorID, value := range recordsByDay[day] {
			lastKnown[operatorID] = value
		}

		rankings := make([]racemodel.RankedOperator, 0, len(operatorIDs))

		for _, id := range operatorIDs {
			value := lastKnown[id]
			if value.Cmp(noiseFloorWei) <= 0 {
				continue
			}

			rankings = append(rankings, racemodel.RankedOperator{
				Meta:     metaMap[id],
				ValueWei: value,
			})
		}

		sort.SliceStable(rankings, func(i, j int) bool {
			return rankings[i].ValueWei.Cmp(rankings[j].ValueWei) > 0
		})

		if len(rankings) > displayCount {
			rankings = rankings[:displayCount]
		}

		for rank := range rankings {
			rankings[rank].Rank = rank + 1
		}

		frames = append(frames, racemodel.Frame{Date: day, Rankings: rankings})
	}

	return frames
}
