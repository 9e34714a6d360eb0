package engine

import (
	"time"

	"github.com/eosnow-bet/dice/internal/types"
)

const (
	dayPeriod   = int64(24 * time.Hour / time.Second)
	weekPeriod  = 7 * dayPeriod
	monthPeriod = 30 * dayPeriod
)

// settlePlayer folds a resolved bet into the player's rolling
// statistics. Rolling periods reset lazily: a window is zeroed on the
// first bet that lands past its boundary.
func (s *session) settlePlayer(rec *types.BetRecord, win bool) (*types.Player, error) {
	player, found, err := s.txn.Player(rec.Player)
	if err != nil {
		return nil, err
	}
	if !found {
		player.Account = rec.Player
		player.JackpotSequence = types.JackpotSequenceStart
		player.Total.Symbol = rec.Bet.Symbol
		player.Day.Symbol = rec.Bet.Symbol
		player.Week.Symbol = rec.Bet.Symbol
		player.Month.Symbol = rec.Bet.Symbol
	}

	rollPeriod(&player.Day, dayPeriod, player.LastBetTime, s.now)
	rollPeriod(&player.Week, weekPeriod, player.LastBetTime, s.now)
	rollPeriod(&player.Month, monthPeriod, player.LastBetTime, s.now)

	for _, ps := range []*types.PeriodStats{&player.Total, &player.Day, &player.Week, &player.Month} {
		ps.TotalBetAmount += rec.Bet.Amount
		ps.TotalPayout += rec.Payout.Amount
		ps.Bets++
		if win {
			ps.Wins++
		}
	}

	player.LastBetTime = s.now
	player.LastBet = rec.Bet
	player.LastPayout = rec.Payout
	return player, nil
}

// rollPeriod zeroes the window when now falls into a later period than
// the player's previous bet.
func rollPeriod(ps *types.PeriodStats, length int64, lastBet, now time.Time) {
	start := (now.Unix() / length) * length
	if start > lastBet.Unix() {
		ps.Reset(ps.Symbol)
	}
}
