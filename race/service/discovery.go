package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const secondsPerDay = 86400

// discoveredRef matches both bucket-shaped and operator-shaped items in the
// batched discovery response.
type discoveredRef struct {
	ID       string `json:"id"`
	Operator *struct {
		ID string `json:"id"`
	} `json:"operator"`
}

// discoverOperators samples the top operators at every checkpoint between
// the configured start date and now, plus the current global top. The union
// is a sampling heuristic: an operator whose peak fell entirely between two
// checkpoints and never reached the current top is missed.
func (s *Service) discoverOperators(ctx context.Context) ([]string, error) {
	race := s.settingsObj.Race

	startDate, err := time.Parse(time.RFC3339, race.StartDateISO)
	if err != nil {
		return nil, fmt.Errorf("invalid race start date: %w", err)
	}

	now := time.Now().Unix()
	interval := int64(race.SnapshotIntervalDays) * secondsPerDay

	checkpoints := make([]int64, 0)
	for t := startDate.Unix(); t <= now; t += interval {
		checkpoints = append(checkpoints, t)
	}

	checkpoints = append(checkpoints, now)

	var queryBody strings.Builder

	for idx, ts := range checkpoints {
		fmt.Fprintf(&queryBody, `
			t%d: operatorDailyBuckets(
				first: %d
				orderBy: valueWithoutEarnings
				orderDirection: desc
				where: {date_gte: "%d", date_lt: "%d"}
			) { operator { id } }`, idx, race.CheckpointTopN, ts, ts+secondsPerDay)
	}

	fmt.Fprintf(&queryBody, `
		currentTop: operators(
			first: %d
			orderBy: valueWithoutEarnings
			orderDirection: desc
		) { id }`, race.CurrentTopN)

	log.WithField("checkpoints", len(checkpoints)).Info("scanning ranking history")

	data, err := s.graph.Query(ctx, "query {"+queryBody.String()+"\n}", nil)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]discoveredRef)
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, err
	}

	unique := make(map[string]struct{})

	for _, group := range groups {
		for _, item := range group {
			id := item.ID
			if item.Operator != nil {
				id = item.Operator.ID
			}

			if id != "" {
				unique[id] = struct{}{}
			}
		}
	}

	ids := make([]string, 0, len(unique))
	for id := range unique {
		ids = append(ids, id)
	}

	// map iteration order is random, keep discovery output stable
	sort.Strings(ids)

	log.WithField("operators", len(ids)).Info("discovery complete")

	return ids, nil
}
