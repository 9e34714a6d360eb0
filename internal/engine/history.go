package engine

import (
	"github.com/eosnow-bet/dice/internal/gamestore"
	"github.com/eosnow-bet/dice/internal/types"
)

// recordHistory files a resolved bet into the bounded ledgers: every
// bet into the main ledger, large stakes into the high-bet ledger and
// long-odds wins into the rare-bet ledger. Each ledger keeps its own
// ring cursor; rows older than the visible frame are evicted.
func (s *session) recordHistory(rec *types.BetRecord, winners uint64) error {
	if err := s.fileBet(gamestore.LedgerAll, &s.cfg.BetsCursor, rec); err != nil {
		return err
	}

	if cmp, err := rec.Bet.Cmp(s.cfg.HighBetBound); err == nil && cmp >= 0 {
		if err := s.fileBet(gamestore.LedgerHigh, &s.cfg.HighBetsCursor, rec); err != nil {
			return err
		}
	}

	if rec.Payout.Amount > 0 && winners <= uint64(s.cfg.RareBetBound) {
		if err := s.fileBet(gamestore.LedgerRare, &s.cfg.RareBetsCursor, rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) fileBet(ledger gamestore.BetLedger, cursor *types.RingCursor, rec *types.BetRecord) error {
	row := *rec
	row.ID = cursor.Next()
	if err := s.txn.PutBet(ledger, &row); err != nil {
		return err
	}
	for cursor.Max > 0 && cursor.Size() > cursor.Max {
		s.txn.DeleteBet(ledger, cursor.First)
		cursor.First++
	}
	return nil
}
