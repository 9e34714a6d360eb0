package engine

import (
	"encoding/json"
	"fmt"

	"github.com/eosnow-bet/dice/internal/gamestore"
	"github.com/eosnow-bet/dice/internal/types"
	"github.com/eosnow-bet/dice/pkg/asset"
	"github.com/eosnow-bet/dice/pkg/events"
)

// placeBet books a validated wager and schedules its resolution. The
// bet task's sequence number doubles as the pending bet id.
func (e *Engine) placeBet(task types.Task) error {
	return e.invoke(func(s *session) error {
		var wt types.WagerTask
		if err := json.Unmarshal(task.Payload, &wt); err != nil {
			return fmt.Errorf("decode bet task: %w", err)
		}

		rec := &types.BetRecord{
			ID:         task.ID.Seq,
			Player:     wt.Player,
			RollType:   wt.RollType,
			RollBorder: wt.RollBorder,
			Bet:        wt.Quantity,
			Inviter:    wt.Inviter,
			Time:       s.now,
		}
		if err := s.txn.PutBet(gamestore.LedgerPending, rec); err != nil {
			return err
		}

		wt.BetID = rec.ID
		resolve, err := s.schedule(types.TaskResolve, wt, s.e.game.ResolveDelay.Duration)
		if err != nil {
			return err
		}
		s.e.log.Info("bet booked", "bet", rec.ID, "player", wt.Player, "resolve", resolve.ID)
		return nil
	})
}

// resolveBet draws the roll for a pending bet and settles every
// downstream account: pool, player stats, leaderboards, referral
// ledger, jackpot sequence and the history ledgers.
func (e *Engine) resolveBet(task types.Task) error {
	return e.invoke(func(s *session) error {
		var wt types.WagerTask
		if err := json.Unmarshal(task.Payload, &wt); err != nil {
			return fmt.Errorf("decode resolve task: %w", err)
		}

		rec, found, err := s.txn.Bet(gamestore.LedgerPending, wt.BetID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %d", ErrUnknownBet, wt.BetID)
		}
		s.txn.DeleteBet(gamestore.LedgerPending, wt.BetID)

		if rec.Bet.Amount <= 0 {
			return fmt.Errorf("%w: bet %d has no stake", ErrInvalidBet, rec.ID)
		}

		gen := NewGenerator(SystemSeed(task.ID.Seq, s.e.tips.Tip()), UserSeed(task.Payload))
		rec.RollValue = gen.Next(uint64(s.limits.MaxValue))
		rec.Seed = gen.Seed()

		win := rolledUnder(rec.RollType, rec.RollValue, rec.RollBorder)
		winners := winningValues(rec.RollType, rec.RollBorder, uint64(s.limits.MaxBetNum))

		rec.Payout = asset.New(0, rec.Bet.Symbol)
		if win {
			rec.Payout = rewardFor(rec.Bet, winners, uint64(s.limits.MaxBetNum), s.limits.PlatformFee)
		}

		if err := s.settleFunds(rec); err != nil {
			return err
		}

		player, err := s.settlePlayer(rec, win)
		if err != nil {
			return err
		}
		if err := s.updateBoards(player); err != nil {
			return err
		}
		if err := s.settleReferral(rec, win); err != nil {
			return err
		}
		if err := s.advanceJackpot(player, rec); err != nil {
			return err
		}
		if err := s.txn.PutPlayer(player); err != nil {
			return err
		}
		if err := s.recordHistory(rec, winners); err != nil {
			return err
		}
		if err := s.scheduleMint(rec, player); err != nil {
			return err
		}

		s.e.log.Info("bet resolved",
			"bet", rec.ID,
			"player", rec.Player,
			"roll", rec.RollValue,
			"win", win,
			"payout", rec.Payout.String())
		return nil
	})
}

// rolledUnder reports whether a roll value wins the wager.
func rolledUnder(rt types.RollType, roll, border uint64) bool {
	if rt == types.RollLeft {
		return roll < border
	}
	return roll > border
}

// settleFunds moves the payout and the jackpot contribution out of the
// pool and updates the aggregate flow counters.
func (s *session) settleFunds(rec *types.BetRecord) error {
	var err error

	contribution := rec.Bet.Scale(s.cfg.JackpotPercent)
	if s.cfg.PoolBalance, err = s.cfg.PoolBalance.Sub(contribution); err != nil {
		return err
	}
	if s.cfg.JackpotBalance, err = s.cfg.JackpotBalance.Add(contribution); err != nil {
		return err
	}

	if rec.Payout.IsZero() {
		return nil
	}

	if s.cfg.PoolBalance, err = s.cfg.PoolBalance.Sub(rec.Payout); err != nil {
		return err
	}
	if s.cfg.TotalPayout, err = s.cfg.TotalPayout.Add(rec.Payout); err != nil {
		return err
	}

	stats, _, err := s.txn.TokenStats()
	if err != nil {
		return err
	}
	stats.Out += rec.Payout.Amount
	stats.Wins++
	if err := s.txn.PutTokenStats(stats); err != nil {
		return err
	}

	if s.cfg.PayoutEnabled {
		s.transfer(rec.Player, rec.Payout,
			fmt.Sprintf("dice reward for bet %d, roll %d", rec.ID, rec.RollValue))
	} else {
		s.notice("payout %s for bet %d owed to %s, payouts are paused",
			rec.Payout, rec.ID, rec.Player)
	}
	return nil
}

// scheduleMint queues the secondary-token reward for the wager. Nothing
// is minted while the ante token is issued by the game account itself.
func (s *session) scheduleMint(rec *types.BetRecord, player *types.Player) error {
	if !s.cfg.MintingEnabled || s.cfg.AnteIssuer == s.cfg.Owner {
		return nil
	}
	tiers, err := s.txn.BonusTiers()
	if err != nil {
		return err
	}
	mult := tierMultiplier(tiers, uint32(player.Day.Bets))

	quantity := convertStake(rec.Bet, s.e.anteSym, s.cfg.ExchangeRate, mult)
	if quantity.IsZero() {
		return nil
	}
	_, err = s.schedule(types.TaskMint, types.MintTask{
		Issuer:   s.cfg.AnteIssuer,
		Quantity: quantity,
		Player:   rec.Player,
		Inviter:  rec.Inviter,
	}, s.e.game.MintDelay.Duration)
	return err
}

// mint forwards a mint continuation to the token service.
func (e *Engine) mint(task types.Task) error {
	return e.invoke(func(s *session) error {
		var mt types.MintTask
		if err := json.Unmarshal(task.Payload, &mt); err != nil {
			return fmt.Errorf("decode mint task: %w", err)
		}
		if !s.cfg.MintingEnabled {
			s.e.log.Warn("minting disabled, dropping mint", "player", mt.Player)
			return nil
		}
		s.mints = append(s.mints, events.MintEvent{
			Issuer:   mt.Issuer,
			Quantity: mt.Quantity,
			Player:   mt.Player,
			Inviter:  mt.Inviter,
		})
		return nil
	})
}
