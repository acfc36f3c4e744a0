// Package metrics derives display figures from an operator's raw graph data.
// Everything stays on wei-scale integers until the final display conversion,
// and every computation is a pure function of its input so periodic refresh
// can recompute without flicker.
package metrics

import (
	"math/big"

	"github.com/shopspring/decimal"

	"operator-console/goutils/datamodel"
)

var weiPerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// OperatorMetrics is recomputed on every refresh from the same inputs.
type OperatorMetrics struct {
	WeightedAPY       decimal.Decimal
	OwnerCutPercent   int64
	OwnerStakePercent float64
	DistributedWei    *big.Int
	DeployedStakeWei  *big.Int
	// DataAnomaly marks a source inconsistency; the cumulative cut exceeded
	// the cumulative earnings. The value is clamped to zero for display, the
	// flag lets callers surface the inconsistency instead of hiding it.
	DataAnomaly bool
}

// Compute derives all metrics for one operator detail snapshot.
func Compute(detail *datamodel.OperatorDetail) OperatorMetrics {
	m := OperatorMetrics{
		DistributedWei:   new(big.Int),
		DeployedStakeWei: new(big.Int),
	}

	if detail == nil || detail.Operator == nil {
		return m
	}

	op := detail.Operator

	m.WeightedAPY = WeightedAPY(op.Stakes)
	m.OwnerCutPercent = OwnerCutPercent(op.OperatorsCutFraction)
	m.DeployedStakeWei = DeployedStake(op.Stakes)
	m.DistributedWei, m.DataAnomaly = DistributedToDelegators(op.CumulativeEarningsWei, op.CumulativeOperatorsCutWei)

	if len(detail.SelfDelegation) > 0 {
		m.OwnerStakePercent = OwnerStakePercent(
			datamodel.WeiOrZero(detail.SelfDelegation[0].ValueDataWei),
			datamodel.WeiOrZero(op.ValueWithoutEarnings))
	}

	return m
}

// WeightedAPY is the stake-weighted average of sponsorship spot APYs,
// zero when no stake has a sponsorship APY attached.
func WeightedAPY(stakes []datamodel.Stake) decimal.Decimal {
	weightedSum := decimal.Zero
	totalStake := decimal.Zero

	for _, stake := range stakes {
		if stake.Sponsorship == nil || stake.Sponsorship.SpotAPY == "" {
			continue
		}

		apy, err := decimal.NewFromString(stake.Sponsorship.SpotAPY)
		if err != nil {
			continue
		}

		amount := decimal.NewFromBigInt(datamodel.WeiOrZero(stake.AmountWei), 0)

		weightedSum = weightedSum.Add(amount.Mul(apy))
		totalStake = totalStake.Add(amount)
	}

	if totalStake.IsZero() {
		return decimal.Zero
	}

	return weightedSum.Div(totalStake)
}

// OwnerCutPercent converts the 10^18-scaled cut fraction to an integer
// percent, truncating rather than rounding.
func OwnerCutPercent(fraction string) int64 {
	cut := datamodel.WeiOrZero(fraction)
	cut.Mul(cut, big.NewInt(100))
	cut.Quo(cut, weiPerToken)

	return cut.Int64()
}

// OwnerStakePercent keeps two decimal digits through integer math and only
// scales down at the end. Zero total stake yields zero.
func OwnerStakePercent(ownStakeWei *big.Int, totalStakeWei *big.Int) float64 {
	if totalStakeWei.Sign() == 0 {
		return 0
	}

	scaled := new(big.Int).Mul(ownStakeWei, big.NewInt(10000))
	scaled.Quo(scaled, totalStakeWei)

	return float64(scaled.Int64()) / 100
}

// DistributedToDelegators is the exact integer difference between cumulative
// earnings and the operator's cumulative cut. Valid source data never goes
// negative here; when it does the result is clamped to zero and flagged.
func DistributedToDelegators(earningsWei string, operatorsCutWei string) (*big.Int, bool) {
	distributed := new(big.Int).Sub(datamodel.WeiOrZero(earningsWei), datamodel.WeiOrZero(operatorsCutWei))

	if distributed.Sign() < 0 {
		return new(big.Int), true
	}

	return distributed, false
}

// DeployedStake sums the individual sponsorship stakes, which excludes the
// operator's undeployed free funds.
func DeployedStake(stakes []datamodel.Stake) *big.Int {
	total := new(big.Int)

	for _, stake := range stakes {
		total.Add(total, datamodel.WeiOrZero(stake.AmountWei))
	}

	return total
}
