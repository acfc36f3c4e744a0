package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"operator-console/goutils/datamodel"
	"operator-console/goutils/metadata"
)

var hexTermRegex = regexp.MustCompile(`^[0-9a-f]+$`)

// IsAddressTerm reports whether the search term looks like an address
// fragment (hex, optionally 0x-prefixed). Address terms are filtered
// server side, anything else goes through the fuzzy name path.
func IsAddressTerm(term string) bool {
	term = strings.ToLower(term)
	term = strings.TrimPrefix(term, "0x")

	return term != "" && hexTermRegex.MatchString(term)
}

// QuoteTerm strips characters that would break out of the interpolated
// query document. The interpolation itself is an inherited weakness of the
// upstream query surface, see DESIGN.md.
func QuoteTerm(term string) string {
	term = strings.ReplaceAll(term, `\`, "")
	term = strings.ReplaceAll(term, `"`, "")

	return term
}

const operatorListFields = `id valueWithoutEarnings delegatorCount metadataJsonString stakes(first: 50) { amountWei sponsorship { spotAPY } }`

// FetchOperators returns one page of operators ranked by value. A non-empty
// filter routes to either server-side id-substring search or client-side
// name search over a ranked superset. Terms below the minimum length return
// an empty result without touching the network.
func (c *Client) FetchOperators(ctx context.Context, skip int, filter string) ([]datamodel.Operator, error) {
	filter = strings.TrimSpace(filter)

	if filter != "" && len(filter) < c.settingsObj.Graph.MinSearchLength {
		return []datamodel.Operator{}, nil
	}

	if filter == "" {
		query := fmt.Sprintf(`query GetOperatorsList {
			operators(first: %d, skip: %d, orderBy: valueWithoutEarnings, orderDirection: desc) { %s }
		}`, c.settingsObj.Graph.OperatorsPerPage, skip, operatorListFields)

		return c.queryOperators(ctx, query)
	}

	lowered := strings.ToLower(filter)

	if IsAddressTerm(lowered) {
		query := fmt.Sprintf(`query GetOperatorsList {
			operators(first: %d, skip: %d, orderBy: valueWithoutEarnings, orderDirection: desc, where: {id_contains: "%s"}) { %s }
		}`, c.settingsObj.Graph.OperatorsPerPage, skip, QuoteTerm(lowered), operatorListFields)

		return c.queryOperators(ctx, query)
	}

	// the indexed service cannot filter on the decoded display name, so pull
	// a ranked superset and filter here. search depth is bounded by the
	// superset size, a documented limitation.
	query := fmt.Sprintf(`query GetTopOperatorsForClientSearch {
		operators(first: %d, orderBy: valueWithoutEarnings, orderDirection: desc) { %s }
	}`, c.settingsObj.Graph.NameSearchDepth, operatorListFields)

	operators, err := c.queryOperators(ctx, query)
	if err != nil {
		return nil, err
	}

	matched := make([]datamodel.Operator, 0)

	for _, op := range operators {
		meta := metadata.Parse(op.MetadataJSONString, c.settingsObj.Chain.IPFSGatewayFormat)
		if meta.Name == "" {
			continue
		}

		if strings.Contains(strings.ToLower(meta.Name), lowered) {
			matched = append(matched, op)
		}
	}

	return matched, nil
}

func (c *Client) queryOperators(ctx context.Context, query string) ([]datamodel.Operator, error) {
	data, err := c.Query(ctx, query, nil)
	if err != nil {
		return nil, err
	}

	result := new(struct {
		Operators []datamodel.Operator `json:"operators"`
	})

	if err := json.Unmarshal(data, result); err != nil {
		log.WithError(err).Error("failed to unmarshal operators list")

		return nil, &QueryError{Kind: ErrKindApplication, Message: err.Error()}
	}

	return result.Operators, nil
}

// FetchOperatorDetail loads the full detail view for one operator: the
// operator itself, self delegation, staking events, daily value buckets and
// the flag/slashing feeds.
func (c *Client) FetchOperatorDetail(ctx context.Context, operatorID string) (*datamodel.OperatorDetail, error) {
	operatorID = QuoteTerm(strings.ToLower(operatorID))

	query := fmt.Sprintf(`query GetOperatorDetails {
		operator(id: "%[1]s") {
			id owner valueWithoutEarnings operatorTokenTotalSupplyWei delegatorCount cumulativeEarningsWei cumulativeProfitsWei cumulativeOperatorsCutWei operatorsCutFraction nodes controllers metadataJsonString
			stakes(first: 100) { amountWei sponsorship { id remainingWei spotAPY isRunning stream { id } } }
			delegations(where: {isSelfDelegation: false}, first: 15, orderBy: _valueDataWei, orderDirection: desc) { id _valueDataWei delegator { id } }
			queueEntries(orderBy: date, orderDirection: asc) { id amount delegator { id } date }
		}
		selfDelegation: delegations(where: {operator: "%[1]s", isSelfDelegation: true}, first: 1) { _valueDataWei }
		stakingEvents(orderBy: date, orderDirection: desc, first: 100, where: {operator: "%[1]s"}) {
			id amount date sponsorship { id stream { id } }
		}
		operatorDailyBuckets(first: 1000, orderBy: date, orderDirection: asc, where: {operator: "%[1]s"}) {
			date valueWithoutEarnings
		}
		flagsAgainst: flags(where: {target: "%[1]s"}, orderBy: flaggingTimestamp, orderDirection: desc) {
			id flagger { id metadataJsonString } sponsorship { id stream { id } } flaggingTimestamp result
			votes(orderBy: timestamp, orderDirection: desc) { id voter { id metadataJsonString } voterWeight votedKick timestamp }
		}
		flagsAsFlagger: flags(where: {flagger: "%[1]s"}, orderBy: flaggingTimestamp, orderDirection: desc, first: 100) {
			id target { id metadataJsonString } sponsorship { id stream { id } } flaggingTimestamp result
			votes(orderBy: timestamp, orderDirection: desc) { id voter { id metadataJsonString } voterWeight votedKick timestamp }
		}
		slashingEvents(where: {operator: "%[1]s"}, orderBy: date, orderDirection: desc, first: 100) { id amount date sponsorship { id stream { id } } }
	}`, operatorID)

	data, err := c.Query(ctx, query, nil)
	if err != nil {
		return nil, err
	}

	detail := new(datamodel.OperatorDetail)
	if err := json.Unmarshal(data, detail); err != nil {
		log.WithError(err).Error("failed to unmarshal operator detail")

		return nil, &QueryError{Kind: ErrKindApplication, Message: err.Error()}
	}

	return detail, nil
}

// FetchMoreDelegators pages through an operator's delegations beyond the
// initial top slice.
func (c *Client) FetchMoreDelegators(ctx context.Context, operatorID string, skip int) ([]datamodel.Delegation, error) {
	operatorID = QuoteTerm(strings.ToLower(operatorID))

	query := fmt.Sprintf(`query GetMoreDelegators {
		operator(id: "%s") {
			delegations(where: {isSelfDelegation: false}, first: %d, skip: %d, orderBy: _valueDataWei, orderDirection: desc) {
				id _valueDataWei delegator { id }
			}
		}
	}`, operatorID, c.settingsObj.Graph.DelegatorsPerPage, skip)

	data, err := c.Query(ctx, query, nil)
	if err != nil {
		return nil, err
	}

	result := new(struct {
		Operator *struct {
			Delegations []datamodel.Delegation `json:"delegations"`
		} `json:"operator"`
	})

	if err := json.Unmarshal(data, result); err != nil {
		log.WithError(err).Error("failed to unmarshal delegations page")

		return nil, &QueryError{Kind: ErrKindApplication, Message: err.Error()}
	}

	if result.Operator == nil {
		return []datamodel.Delegation{}, nil
	}

	return result.Operator.Delegations, nil
}
