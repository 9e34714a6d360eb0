package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Decimal wraps shopspring decimal so percentages and multipliers can
// be written as plain scalars in YAML without float64 round-tripping.
type Decimal struct {
	decimal.Decimal
}

func (d *Decimal) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("invalid decimal %q: %w", node.Value, err)
	}
	d.Decimal = parsed
	return nil
}

func (d Decimal) MarshalYAML() (any, error) {
	return d.String(), nil
}

func Dec(s string) Decimal {
	return Decimal{decimal.RequireFromString(s)}
}

// Duration accepts "1s" style values in YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

type Config struct {
	Environment string      `yaml:"environment"`
	NATS        NATSConfig  `yaml:"nats"`
	Store       StoreConfig `yaml:"store"`
	Game        GameConfig  `yaml:"game"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type StoreConfig struct {
	Type      string `yaml:"type"`
	Directory string `yaml:"directory"`
	Prefix    string `yaml:"prefix"`
}

type SymbolConfig struct {
	Code      string `yaml:"code"`
	Precision uint8  `yaml:"precision"`
}

type BoardConfig struct {
	Size         uint32  `yaml:"size"`
	BonusPercent Decimal `yaml:"bonus_percent"`
}

type TierConfig struct {
	Begin      uint32  `yaml:"begin"`
	End        uint32  `yaml:"end"`
	Multiplier Decimal `yaml:"multiplier"`
}

// GameConfig seeds the persisted game state on first start. Once the
// config singleton exists in the store, the administrative setters own
// these values and the YAML is ignored.
type GameConfig struct {
	Owner      string `yaml:"owner"`
	Admin      string `yaml:"admin"`
	AnteIssuer string `yaml:"ante_issuer"`

	BetSymbol  SymbolConfig `yaml:"bet_symbol"`
	AnteSymbol SymbolConfig `yaml:"ante_symbol"`

	BettingEnabled bool `yaml:"betting_enabled"`
	MintingEnabled bool `yaml:"minting_enabled"`
	PayoutEnabled  bool `yaml:"payout_enabled"`

	MinValue      uint16  `yaml:"min_value"`
	MaxValue      uint16  `yaml:"max_value"`
	MaxBetNum     uint16  `yaml:"max_bet_num"`
	MaxBetPercent Decimal `yaml:"max_bet_percent"`
	PlatformFee   Decimal `yaml:"platform_fee"`

	MinBetUnits         int64  `yaml:"min_bet_units"`         // whole tokens
	BalanceProtectUnits int64  `yaml:"balance_protect_units"` // whole tokens
	HighBetBoundUnits   int64  `yaml:"high_bet_bound_units"`  // whole tokens
	RareBetBound        uint16 `yaml:"rare_bet_bound"`

	ExchangeRate       Decimal `yaml:"exchange_rate"`
	ReferralMultiplier Decimal `yaml:"referral_multiplier"`
	JackpotPercent     Decimal `yaml:"jackpot_percent"`

	HistoryWindow uint64 `yaml:"history_window"`

	BetDelay           Duration `yaml:"bet_delay"`
	ResolveDelay       Duration `yaml:"resolve_delay"`
	MintDelay          Duration `yaml:"mint_delay"`
	DistributionExpiry Duration `yaml:"distribution_expiry"`

	DayBoard   BoardConfig `yaml:"day_board"`
	MonthBoard BoardConfig `yaml:"month_board"`

	BonusTiers []TierConfig `yaml:"bonus_tiers"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if cfg.Game.Owner == "" {
		return nil, fmt.Errorf("game.owner is required")
	}
	if cfg.Game.MaxBetNum == 0 {
		return nil, fmt.Errorf("game.max_bet_num must be positive")
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "dice"
	}
	if c.Store.Type == "" {
		c.Store.Type = "badger"
	}
	if c.Store.Directory == "" {
		c.Store.Directory = "data/dice"
	}

	g := &c.Game
	def := DefaultGame()
	if g.Admin == "" {
		g.Admin = g.Owner
	}
	if g.AnteIssuer == "" {
		g.AnteIssuer = g.Owner
	}
	if g.BetSymbol.Code == "" {
		g.BetSymbol = def.BetSymbol
	}
	if g.AnteSymbol.Code == "" {
		g.AnteSymbol = def.AnteSymbol
	}
	if g.MinValue == 0 {
		g.MinValue = def.MinValue
	}
	if g.MaxValue == 0 {
		g.MaxValue = def.MaxValue
	}
	if g.MaxBetNum == 0 {
		g.MaxBetNum = def.MaxBetNum
	}
	if g.MaxBetPercent.IsZero() {
		g.MaxBetPercent = def.MaxBetPercent
	}
	if g.PlatformFee.IsZero() {
		g.PlatformFee = def.PlatformFee
	}
	if g.MinBetUnits == 0 {
		g.MinBetUnits = def.MinBetUnits
	}
	if g.BalanceProtectUnits == 0 {
		g.BalanceProtectUnits = def.BalanceProtectUnits
	}
	if g.HighBetBoundUnits == 0 {
		g.HighBetBoundUnits = def.HighBetBoundUnits
	}
	if g.RareBetBound == 0 {
		g.RareBetBound = def.RareBetBound
	}
	if g.ExchangeRate.IsZero() {
		g.ExchangeRate = def.ExchangeRate
	}
	if g.ReferralMultiplier.IsZero() {
		g.ReferralMultiplier = def.ReferralMultiplier
	}
	if g.JackpotPercent.IsZero() {
		g.JackpotPercent = def.JackpotPercent
	}
	if g.HistoryWindow == 0 {
		g.HistoryWindow = def.HistoryWindow
	}
	if g.BetDelay.Duration == 0 {
		g.BetDelay = def.BetDelay
	}
	if g.ResolveDelay.Duration == 0 {
		g.ResolveDelay = def.ResolveDelay
	}
	if g.MintDelay.Duration == 0 {
		g.MintDelay = def.MintDelay
	}
	if g.DistributionExpiry.Duration == 0 {
		g.DistributionExpiry = def.DistributionExpiry
	}
	if g.DayBoard.Size == 0 {
		g.DayBoard = def.DayBoard
	}
	if g.MonthBoard.Size == 0 {
		g.MonthBoard = def.MonthBoard
	}
	if len(g.BonusTiers) == 0 {
		g.BonusTiers = def.BonusTiers
	}
}

// DefaultGame returns the stock game parameters.
func DefaultGame() GameConfig {
	return GameConfig{
		BetSymbol:  SymbolConfig{Code: "CHIP", Precision: 4},
		AnteSymbol: SymbolConfig{Code: "ANTE", Precision: 8},

		BettingEnabled: false,
		MintingEnabled: true,
		PayoutEnabled:  true,

		MinValue:      5,
		MaxValue:      94,
		MaxBetNum:     100,
		MaxBetPercent: Dec("0.10"),
		PlatformFee:   Dec("0.05"),

		MinBetUnits:         1,
		BalanceProtectUnits: 10000,
		HighBetBoundUnits:   10,
		RareBetBound:        5,

		ExchangeRate:       Dec("2.0"),
		ReferralMultiplier: Dec("0.1"),
		JackpotPercent:     Dec("0.01"),

		HistoryWindow: 100,

		BetDelay:           Duration{1 * time.Second},
		ResolveDelay:       Duration{2 * time.Second},
		MintDelay:          Duration{1 * time.Second},
		DistributionExpiry: Duration{1 * time.Hour},

		DayBoard:   BoardConfig{Size: 10, BonusPercent: Dec("0.01")},
		MonthBoard: BoardConfig{Size: 10, BonusPercent: Dec("0.02")},

		BonusTiers: []TierConfig{
			{Begin: 1, End: 10, Multiplier: Dec("1.01")},
			{Begin: 11, End: 20, Multiplier: Dec("1.02")},
			{Begin: 21, End: 30, Multiplier: Dec("1.03")},
			{Begin: 31, End: 40, Multiplier: Dec("1.04")},
			{Begin: 41, End: 50, Multiplier: Dec("1.05")},
			{Begin: 51, End: 100, Multiplier: Dec("1.07")},
			{Begin: 101, End: 200, Multiplier: Dec("1.10")},
			{Begin: 201, End: 500, Multiplier: Dec("1.15")},
			{Begin: 501, End: 65535, Multiplier: Dec("1.20")},
		},
	}
}
