package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eosnow-bet/dice/internal/gamestore"
	"github.com/eosnow-bet/dice/internal/types"
	"github.com/eosnow-bet/dice/pkg/asset"
)

// adminUpdate wraps a configuration mutation with the caller check.
// Admins and the owner may tune the game; only the owner may hand over
// the owner account.
func (e *Engine) adminUpdate(caller string, fn func(*session) error) error {
	return e.invoke(func(s *session) error {
		if caller != s.cfg.Admin && caller != s.cfg.Owner {
			return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
		}
		return fn(s)
	})
}

func (e *Engine) ownerUpdate(caller string, fn func(*session) error) error {
	return e.invoke(func(s *session) error {
		if caller != s.cfg.Owner {
			return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
		}
		return fn(s)
	})
}

func (e *Engine) SetOwner(caller, owner string) error {
	return e.ownerUpdate(caller, func(s *session) error {
		if owner == "" {
			return fmt.Errorf("owner account must not be empty")
		}
		s.cfg.Owner = owner
		return nil
	})
}

func (e *Engine) SetAdmin(caller, admin string) error {
	return e.adminUpdate(caller, func(s *session) error {
		if admin == "" {
			return fmt.Errorf("admin account must not be empty")
		}
		s.cfg.Admin = admin
		return nil
	})
}

func (e *Engine) SetAnteIssuer(caller, issuer string) error {
	return e.adminUpdate(caller, func(s *session) error {
		s.cfg.AnteIssuer = issuer
		return nil
	})
}

func (e *Engine) SetBettingEnabled(caller string, enabled bool) error {
	return e.adminUpdate(caller, func(s *session) error {
		s.cfg.BettingEnabled = enabled
		return nil
	})
}

func (e *Engine) SetMintingEnabled(caller string, enabled bool) error {
	return e.adminUpdate(caller, func(s *session) error {
		s.cfg.MintingEnabled = enabled
		return nil
	})
}

func (e *Engine) SetPayoutEnabled(caller string, enabled bool) error {
	return e.adminUpdate(caller, func(s *session) error {
		s.cfg.PayoutEnabled = enabled
		return nil
	})
}

func (e *Engine) SetMinValue(caller string, v uint16) error {
	return e.adminUpdate(caller, func(s *session) error {
		if v > s.limits.MaxValue {
			return fmt.Errorf("min value %d above max value %d", v, s.limits.MaxValue)
		}
		s.limits.MinValue = v
		return s.txn.PutLimits(s.limits)
	})
}

func (e *Engine) SetMaxValue(caller string, v uint16) error {
	return e.adminUpdate(caller, func(s *session) error {
		if v < s.limits.MinValue || v >= s.limits.MaxBetNum {
			return fmt.Errorf("max value %d outside (%d, %d)", v, s.limits.MinValue, s.limits.MaxBetNum)
		}
		s.limits.MaxValue = v
		return s.txn.PutLimits(s.limits)
	})
}

func (e *Engine) SetMaxBetNum(caller string, v uint16) error {
	return e.adminUpdate(caller, func(s *session) error {
		if v == 0 || v <= s.limits.MaxValue {
			return fmt.Errorf("max bet num %d must exceed max value %d", v, s.limits.MaxValue)
		}
		s.limits.MaxBetNum = v
		return s.txn.PutLimits(s.limits)
	})
}

func (e *Engine) SetMaxBetPercent(caller string, v decimal.Decimal) error {
	return e.adminUpdate(caller, func(s *session) error {
		if err := checkFraction("max bet percent", v); err != nil {
			return err
		}
		s.limits.MaxBetPercent = v
		return s.txn.PutLimits(s.limits)
	})
}

func (e *Engine) SetPlatformFee(caller string, v decimal.Decimal) error {
	return e.adminUpdate(caller, func(s *session) error {
		if err := checkFraction("platform fee", v); err != nil {
			return err
		}
		s.limits.PlatformFee = v
		return s.txn.PutLimits(s.limits)
	})
}

func (e *Engine) SetMinBet(caller string, v asset.Asset) error {
	return e.adminUpdate(caller, func(s *session) error {
		if v.Symbol != s.e.betSym || v.Amount <= 0 {
			return fmt.Errorf("min bet must be a positive %s amount", s.e.betSym.Code)
		}
		s.limits.MinBet = v
		return s.txn.PutLimits(s.limits)
	})
}

// SetPoolBalance rewrites the pool counter after an out-of-band top-up
// or drain.
func (e *Engine) SetPoolBalance(caller string, v asset.Asset) error {
	return e.ownerUpdate(caller, func(s *session) error {
		if v.Symbol != s.e.betSym || v.Amount < 0 {
			return fmt.Errorf("pool balance must be a %s amount", s.e.betSym.Code)
		}
		s.cfg.PoolBalance = v
		return nil
	})
}

func (e *Engine) SetBalanceProtect(caller string, v asset.Asset) error {
	return e.adminUpdate(caller, func(s *session) error {
		if v.Symbol != s.e.betSym || v.Amount < 0 {
			return fmt.Errorf("balance protect must be a %s amount", s.e.betSym.Code)
		}
		s.limits.BalanceProtect = v
		return s.txn.PutLimits(s.limits)
	})
}

func (e *Engine) SetHighBetBound(caller string, v asset.Asset) error {
	return e.adminUpdate(caller, func(s *session) error {
		if v.Symbol != s.e.betSym || v.Amount <= 0 {
			return fmt.Errorf("high bet bound must be a positive %s amount", s.e.betSym.Code)
		}
		s.cfg.HighBetBound = v
		return nil
	})
}

func (e *Engine) SetRareBetBound(caller string, v uint16) error {
	return e.adminUpdate(caller, func(s *session) error {
		s.cfg.RareBetBound = v
		return nil
	})
}

func (e *Engine) SetExchangeRate(caller string, v decimal.Decimal) error {
	return e.adminUpdate(caller, func(s *session) error {
		if !v.IsPositive() {
			return fmt.Errorf("exchange rate must be positive")
		}
		s.cfg.ExchangeRate = v
		return nil
	})
}

func (e *Engine) SetReferralMultiplier(caller string, v decimal.Decimal) error {
	return e.adminUpdate(caller, func(s *session) error {
		if err := checkFraction("referral multiplier", v); err != nil {
			return err
		}
		s.cfg.ReferralMultiplier = v
		return nil
	})
}

func (e *Engine) SetJackpotPercent(caller string, v decimal.Decimal) error {
	return e.adminUpdate(caller, func(s *session) error {
		if err := checkFraction("jackpot percent", v); err != nil {
			return err
		}
		s.cfg.JackpotPercent = v
		return nil
	})
}

// SetHistoryWindow resizes the visible frame of one history ledger.
// Each ledger keeps its own window.
func (e *Engine) SetHistoryWindow(caller string, ledger gamestore.BetLedger, frame uint64) error {
	return e.adminUpdate(caller, func(s *session) error {
		if frame == 0 {
			return fmt.Errorf("history window must be positive")
		}
		switch ledger {
		case gamestore.LedgerAll:
			s.cfg.BetsCursor.Max = frame
		case gamestore.LedgerHigh:
			s.cfg.HighBetsCursor.Max = frame
		case gamestore.LedgerRare:
			s.cfg.RareBetsCursor.Max = frame
		default:
			return fmt.Errorf("ledger %q has no history window", ledger)
		}
		return nil
	})
}

func (e *Engine) SetBoardSize(caller string, bt types.BoardType, size uint32) error {
	return e.adminUpdate(caller, func(s *session) error {
		if size == 0 {
			return fmt.Errorf("board size must be positive")
		}
		s.cfg.Board(bt).Size = size
		return nil
	})
}

func (e *Engine) SetBoardBonusPercent(caller string, bt types.BoardType, v decimal.Decimal) error {
	return e.adminUpdate(caller, func(s *session) error {
		if err := checkFraction("board bonus percent", v); err != nil {
			return err
		}
		s.cfg.Board(bt).BonusPercent = v
		return nil
	})
}

func (e *Engine) SetBonusTiers(caller string, tiers []types.BonusTier) error {
	return e.adminUpdate(caller, func(s *session) error {
		prevEnd := uint32(0)
		for _, t := range tiers {
			if t.Begin <= prevEnd || t.End < t.Begin {
				return fmt.Errorf("bonus tiers must be disjoint and ascending")
			}
			if t.Multiplier.IsNegative() {
				return fmt.Errorf("bonus multiplier must not be negative")
			}
			prevEnd = t.End
		}
		return s.txn.PutBonusTiers(tiers)
	})
}

// Announce broadcasts an operator notice through the event stream.
func (e *Engine) Announce(caller, message string) error {
	return e.adminUpdate(caller, func(s *session) error {
		_, err := s.schedule(types.TaskNotify, types.NotifyTask{Message: message}, 0)
		return err
	})
}

func checkFraction(name string, v decimal.Decimal) error {
	if v.IsNegative() || v.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be within [0, 1]", name)
	}
	return nil
}
