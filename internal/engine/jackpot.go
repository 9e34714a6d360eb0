package engine

import (
	"fmt"

	"github.com/eosnow-bet/dice/internal/types"
	"github.com/eosnow-bet/dice/pkg/asset"
)

// advanceJackpot drives the player's decile sequence. A streak
// completes when six consecutive rolls land in ascending deciles
// (0x, 1x, .. 5x); the completing roll empties the jackpot pool into
// the player's pocket. A finished sequence resets before the new roll
// is examined, so the jackpot can be chased again immediately.
func (s *session) advanceJackpot(player *types.Player, rec *types.BetRecord) error {
	if player.JackpotSequence == types.JackpotSequenceComplete {
		player.JackpotSequence = types.JackpotSequenceStart
		player.JackpotTrail = ""
	}

	decile := int(rec.RollValue / 10)
	if decile == player.JackpotSequence+1 {
		player.JackpotSequence++
		player.JackpotTrail += fmt.Sprintf("%d;", rec.RollValue)
	} else {
		player.JackpotSequence = types.JackpotSequenceStart
		player.JackpotTrail = ""
	}

	if player.JackpotSequence != types.JackpotSequenceComplete {
		return nil
	}
	return s.payJackpot(player, rec)
}

func (s *session) payJackpot(player *types.Player, rec *types.BetRecord) error {
	amount := s.cfg.JackpotBalance
	if amount.Amount <= 0 {
		s.notice("jackpot sequence completed by %s but the pool is empty", player.Account)
		return nil
	}
	s.cfg.JackpotBalance = asset.New(0, amount.Symbol)

	if err := s.txn.AppendJackpot(&types.JackpotRecord{
		Player: player.Account,
		Time:   s.now,
		Amount: amount,
	}); err != nil {
		return err
	}

	s.transfer(player.Account, amount,
		fmt.Sprintf("jackpot after rolls %s", player.JackpotTrail))
	s.notice("%s hit the jackpot of %s with rolls %s",
		player.Account, amount, player.JackpotTrail)
	s.e.log.Info("jackpot paid",
		"player", player.Account,
		"amount", amount.String(),
		"trail", player.JackpotTrail,
		"bet", rec.ID)
	return nil
}
