package engine

import (
	"github.com/eosnow-bet/dice/internal/gamestore"
	"github.com/eosnow-bet/dice/internal/types"
)

// view runs a read-only invocation: same serialization, no commit.
func (e *Engine) view(fn func(*session) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &session{
		e:   e,
		txn: e.store.Begin(),
		now: e.clock().UTC(),
	}
	if err := s.load(); err != nil {
		return err
	}
	return fn(s)
}

// Status is a point-in-time snapshot of the global state.
type Status struct {
	Config *types.GlobalConfig
	Limits *types.Limits
	Stats  *types.TokenStats
}

func (e *Engine) Status() (*Status, error) {
	var st Status
	err := e.view(func(s *session) error {
		st.Config = s.cfg
		st.Limits = s.limits
		stats, _, err := s.txn.TokenStats()
		if err != nil {
			return err
		}
		st.Stats = stats
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// History returns a bounded ledger's visible rows, oldest first.
func (e *Engine) History(ledger gamestore.BetLedger) ([]types.BetRecord, error) {
	var out []types.BetRecord
	err := e.view(func(s *session) error {
		var err error
		out, err = s.txn.ListBets(ledger)
		return err
	})
	return out, err
}

// PlayerInfo returns a player's aggregate record, or nil when the
// account never placed a bet.
func (e *Engine) PlayerInfo(account string) (*types.Player, error) {
	var out *types.Player
	err := e.view(func(s *session) error {
		player, found, err := s.txn.Player(account)
		if err != nil {
			return err
		}
		if found {
			out = player
		}
		return nil
	})
	return out, err
}

// Board returns a leaderboard's rows, highest bet volume first.
func (e *Engine) Board(bt types.BoardType) ([]types.BoardEntry, error) {
	var out []types.BoardEntry
	err := e.view(func(s *session) error {
		var err error
		out, err = s.txn.ListBoard(bt)
		return err
	})
	return out, err
}

// Jackpots returns every jackpot ever paid, oldest first.
func (e *Engine) Jackpots() ([]types.JackpotRecord, error) {
	var out []types.JackpotRecord
	err := e.view(func(s *session) error {
		var err error
		out, err = s.txn.Jackpots()
		return err
	})
	return out, err
}

// Referrals returns the shadow-balance record kept for a player, or
// nil when the player never appeared on the referral ledger.
func (e *Engine) Referrals(player string) (*types.Referral, error) {
	var out *types.Referral
	err := e.view(func(s *session) error {
		ref, found, err := s.txn.Referral(player)
		if err != nil {
			return err
		}
		if found {
			out = ref
		}
		return nil
	})
	return out, err
}
