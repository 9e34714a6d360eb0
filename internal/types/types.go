package types

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/eosnow-bet/dice/pkg/asset"
)

type RollType uint8

const (
	RollLeft  RollType = 1
	RollRight RollType = 2
)

func (r RollType) Valid() bool {
	return r == RollLeft || r == RollRight
}

// TokenTransfer is the inbound transfer notification consumed by the
// intake.
type TokenTransfer struct {
	From     string      `json:"from"`
	To       string      `json:"to"`
	Quantity asset.Asset `json:"quantity"`
	Memo     string      `json:"memo"`
}

// BetRecord is one row of a bounded history ledger. Immutable once
// written except for cyclic overwrite by the ring buffer.
type BetRecord struct {
	ID         uint64      `json:"id"`
	Player     string      `json:"player"`
	RollType   RollType    `json:"roll_type"`
	RollBorder uint64      `json:"roll_border"`
	RollValue  uint64      `json:"roll_value"`
	Bet        asset.Asset `json:"bet"`
	Payout     asset.Asset `json:"payout"`
	Seed       string      `json:"seed"` // hex digest used to draw the roll
	Inviter    string      `json:"inviter"`
	Time       time.Time   `json:"time"`
}

// PeriodStats is a rolling per-period aggregate. Reset-to-zero is lazy:
// it happens on the next mutation after a period rollover.
type PeriodStats struct {
	Symbol         asset.Symbol `json:"symbol"`
	TotalBetAmount int64        `json:"total_bet_amount"`
	TotalPayout    int64        `json:"total_payout"`
	Bets           uint64       `json:"bets"`
	Wins           uint64       `json:"wins"`
}

func (s *PeriodStats) Reset(symbol asset.Symbol) {
	*s = PeriodStats{Symbol: symbol}
}

const (
	JackpotSequenceStart    = -1
	JackpotSequenceComplete = 5
)

// Player aggregates everything known about one bettor.
type Player struct {
	Account     string      `json:"account"`
	LastBetTime time.Time   `json:"last_bet_time"`
	LastBet     asset.Asset `json:"last_bet"`
	LastPayout  asset.Asset `json:"last_payout"`

	// -1..5; the trail accumulates roll values of the current streak
	JackpotSequence int    `json:"jackpot_sequence"`
	JackpotTrail    string `json:"jackpot_trail"`

	Total PeriodStats `json:"total"`
	Day   PeriodStats `json:"day"`
	Week  PeriodStats `json:"week"`
	Month PeriodStats `json:"month"`
}

// BoardEntry is a leaderboard row: account plus the period statistics
// snapshot it is ranked by.
type BoardEntry struct {
	Account string      `json:"account"`
	Stats   PeriodStats `json:"stats"`
}

// Referral carries the shadow balance accrued for a referrer. The
// balance is realized (paid) whenever it turns positive, so a persisted
// record never holds a positive balance.
type Referral struct {
	Player   string      `json:"player"`
	Referrer string      `json:"referrer"` // empty = none
	Balance  asset.Asset `json:"balance"`
}

// JackpotRecord is an append-only record of a completed jackpot.
type JackpotRecord struct {
	ID     uint64      `json:"id"`
	Player string      `json:"player"`
	Time   time.Time   `json:"time"`
	Amount asset.Asset `json:"amount"`
}

// BonusTier maps a daily bet count range to a mint multiplier. Ranges
// are disjoint and ascending; counts outside all ranges multiply by 1.
type BonusTier struct {
	Begin      uint32          `json:"begin"`
	End        uint32          `json:"end"`
	Multiplier decimal.Decimal `json:"multiplier"`
}
