package engine

import (
	"github.com/shopspring/decimal"

	"github.com/eosnow-bet/dice/internal/types"
	"github.com/eosnow-bet/dice/pkg/asset"
)

// tierMultiplier looks up the mint multiplier for a daily bet count.
// Counts outside every tier multiply by 1.
func tierMultiplier(tiers []types.BonusTier, count uint32) decimal.Decimal {
	for _, t := range tiers {
		if count >= t.Begin && count <= t.End {
			return t.Multiplier
		}
	}
	return decimal.NewFromInt(1)
}

// convertStake translates a bet-token amount into the secondary token.
// The rate is the bet-token price of one secondary token, so the stake
// is divided by it, scaled by the tier multiplier and floored across
// the precision change.
func convertStake(stake asset.Asset, target asset.Symbol, rate, mult decimal.Decimal) asset.Asset {
	if rate.IsZero() {
		return asset.New(0, target)
	}
	whole := decimal.New(stake.Amount, -int32(stake.Symbol.Precision))
	amount := whole.Div(rate).Mul(mult).Shift(int32(target.Precision)).Floor()
	return asset.New(amount.IntPart(), target)
}
