package engine

import (
	"fmt"

	"github.com/eosnow-bet/dice/internal/types"
	"github.com/eosnow-bet/dice/pkg/asset"
)

// settleReferral maintains the referral shadow ledger. Every resolved
// bet ensures the player has a ledger row; the referrer link is set
// only when the inviter is a distinct player already on the ledger.
// Accruals land on the referrer's own row, aggregated across all of
// their referees: a loss adds a share of the stake, a win claws back
// the net payout. The balance is paid to the referrer the moment it
// turns positive, so a persisted row is always zero or negative.
func (s *session) settleReferral(rec *types.BetRecord, win bool) error {
	ref, found, err := s.txn.Referral(rec.Player)
	if err != nil {
		return err
	}
	if !found {
		ref.Player = rec.Player
		ref.Balance = asset.New(0, rec.Bet.Symbol)
		if rec.Inviter != "" && rec.Inviter != rec.Player {
			_, ok, err := s.txn.Referral(rec.Inviter)
			if err != nil {
				return err
			}
			if ok {
				ref.Referrer = rec.Inviter
			}
		}
		if err := s.txn.PutReferral(ref); err != nil {
			return err
		}
	}
	if ref.Referrer == "" {
		return nil
	}

	agg, found, err := s.txn.Referral(ref.Referrer)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	var delta asset.Asset
	if win {
		net, err := rec.Payout.Sub(rec.Bet)
		if err != nil {
			return err
		}
		delta = asset.New(-net.Amount, net.Symbol)
	} else {
		delta = rec.Bet.Scale(s.cfg.ReferralMultiplier)
	}
	if agg.Balance, err = agg.Balance.Add(delta); err != nil {
		return err
	}

	if agg.Balance.Amount > 0 {
		payout := agg.Balance
		if s.cfg.PoolBalance, err = s.cfg.PoolBalance.Sub(payout); err != nil {
			return err
		}
		s.transfer(agg.Player, payout,
			fmt.Sprintf("referral bonus for inviting %s", rec.Player))
		agg.Balance = asset.New(0, payout.Symbol)
	}
	return s.txn.PutReferral(agg)
}
