package types

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eosnow-bet/dice/pkg/asset"
)

// RingCursor tracks the visible window of a bounded history ledger.
// Logical ids grow monotonically even though physical storage is capped
// at Max rows.
type RingCursor struct {
	First uint64 `json:"first"` // id of first row stored
	Last  uint64 `json:"last"`  // id of last row stored
	Max   uint64 `json:"max"`   // visible frame size
}

// Next reserves the next logical id, wrapping on overflow.
func (c *RingCursor) Next() uint64 {
	if c.First == 0 {
		c.First++
	}
	if c.Last == math.MaxUint64 {
		c.Last = 1
	} else {
		c.Last++
	}
	return c.Last
}

// Size is the number of ids currently inside the window.
func (c *RingCursor) Size() uint64 {
	if c.Last < c.First {
		return 0
	}
	return c.Last - c.First + 1
}

type BoardType uint8

const (
	BoardDay   BoardType = 1
	BoardMonth BoardType = 2
)

func (b BoardType) String() string {
	switch b {
	case BoardDay:
		return "day"
	case BoardMonth:
		return "month"
	default:
		return "unknown"
	}
}

// LeaderboardConfig drives one periodic distribution state machine.
// DistributionID != 0 means a distribution task is in flight.
type LeaderboardConfig struct {
	Size              uint32          `json:"size"`
	BonusPercent      decimal.Decimal `json:"bonus_percent"`
	DistributionID    uint64          `json:"distribution_id"`
	DistributionStart time.Time       `json:"distribution_start"`
	PeriodStart       time.Time       `json:"period_start"`
	PeriodLength      int64           `json:"period_length_sec"`
}

func (c *LeaderboardConfig) DistributionActive() bool {
	return c.DistributionID != 0
}

func (c *LeaderboardConfig) DistributionExpired(now time.Time, window time.Duration) bool {
	return c.DistributionActive() && now.Sub(c.DistributionStart) > window
}

// PeriodEnded reports whether now falls into a later period than the
// recorded period start.
func (c *LeaderboardConfig) PeriodEnded(now time.Time) bool {
	if c.PeriodLength == 0 {
		return false
	}
	start := (now.Unix() / c.PeriodLength) * c.PeriodLength
	return start > c.PeriodStart.Unix()
}

func (c *LeaderboardConfig) AdvancePeriod(now time.Time) {
	start := (now.Unix() / c.PeriodLength) * c.PeriodLength
	c.PeriodStart = time.Unix(start, 0).UTC()
}

func (c *LeaderboardConfig) StartDistribution(id uint64, now time.Time) {
	c.DistributionID = id
	c.DistributionStart = now.UTC()
}

func (c *LeaderboardConfig) StopDistribution() {
	c.DistributionID = 0
	c.DistributionStart = time.Time{}
}

// GlobalConfig is the single mutable root: loaded at the start of every
// invocation, persisted at its end.
type GlobalConfig struct {
	Owner      string `json:"owner"` // house account, recipient of stakes
	Admin      string `json:"admin"`
	AnteIssuer string `json:"ante_issuer"` // secondary-token issuer account

	BettingEnabled bool `json:"betting_enabled"`
	MintingEnabled bool `json:"minting_enabled"`
	PayoutEnabled  bool `json:"payout_enabled"`

	PoolBalance asset.Asset `json:"pool_balance"`

	BetsCursor     RingCursor `json:"bets_cursor"`
	HighBetsCursor RingCursor `json:"high_bets_cursor"`
	RareBetsCursor RingCursor `json:"rare_bets_cursor"`

	HighBetBound asset.Asset `json:"high_bet_bound"` // lower bound for the high-bet ledger
	RareBetBound uint16      `json:"rare_bet_bound"` // winners upper bound for the rare ledger

	ExchangeRate       decimal.Decimal `json:"exchange_rate"` // bet tokens per one ante token
	ReferralMultiplier decimal.Decimal `json:"referral_multiplier"`
	JackpotPercent     decimal.Decimal `json:"jackpot_percent"`
	JackpotBalance     asset.Asset     `json:"jackpot_balance"`

	TotalPayout    asset.Asset `json:"total_payout"`
	TotalBetAmount asset.Asset `json:"total_bet_amount"`

	DayBoard   LeaderboardConfig `json:"day_board"`
	MonthBoard LeaderboardConfig `json:"month_board"`

	BaseDeferredID uint64 `json:"base_deferred_id"`
}

// NextDeferredID mints a distinct task id tagged with the task kind.
func (c *GlobalConfig) NextDeferredID(kind TaskKind) TaskID {
	c.BaseDeferredID++
	return TaskID{Kind: kind, Seq: c.BaseDeferredID}
}

func (c *GlobalConfig) Board(board BoardType) *LeaderboardConfig {
	if board == BoardMonth {
		return &c.MonthBoard
	}
	return &c.DayBoard
}

// Limits bound what a single wager may look like.
type Limits struct {
	MinValue      uint16          `json:"min_value"`
	MaxValue      uint16          `json:"max_value"`
	MaxBetPercent decimal.Decimal `json:"max_bet_percent"`
	MaxBetNum     uint16          `json:"max_bet_num"`
	MinBet        asset.Asset     `json:"min_bet"`
	// betting stops when the pool drops below this floor
	BalanceProtect asset.Asset     `json:"balance_protect"`
	PlatformFee    decimal.Decimal `json:"platform_fee"`
}

// TokenStats is the running in/out flow for the bet token.
type TokenStats struct {
	Symbol asset.Symbol `json:"symbol"`
	In     int64        `json:"in"`
	Out    int64        `json:"out"`
	Bets   uint64       `json:"bets"`
	Wins   uint64       `json:"wins"`
}
