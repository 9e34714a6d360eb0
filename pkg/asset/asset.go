// Package asset implements the integer asset primitive used by the
// wagering engine: an amount in minimal units plus a symbol, with
// arithmetic that fails on symbol mismatch and fractional scaling done
// through decimals so amounts are always floored, never rounded up.
package asset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrSymbolMismatch = errors.New("asset symbol mismatch")
	ErrInvalidAsset   = errors.New("invalid asset")
)

// Symbol identifies an asset kind together with its display precision.
type Symbol struct {
	Code      string `json:"code"`
	Precision uint8  `json:"precision"`
}

func (s Symbol) String() string {
	return fmt.Sprintf("%d,%s", s.Precision, s.Code)
}

func (s Symbol) Valid() bool {
	if s.Code == "" || len(s.Code) > 7 {
		return false
	}
	for _, r := range s.Code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Unit returns the number of minimal units in one whole token.
func (s Symbol) Unit() int64 {
	unit := int64(1)
	for i := uint8(0); i < s.Precision; i++ {
		unit *= 10
	}
	return unit
}

// Asset is an integer amount of minimal units of one symbol.
type Asset struct {
	Amount int64  `json:"amount"`
	Symbol Symbol `json:"symbol"`
}

func New(amount int64, symbol Symbol) Asset {
	return Asset{Amount: amount, Symbol: symbol}
}

// FromUnits builds an asset from whole tokens.
func FromUnits(units int64, symbol Symbol) Asset {
	return Asset{Amount: units * symbol.Unit(), Symbol: symbol}
}

func (a Asset) Valid() bool {
	return a.Symbol.Valid()
}

func (a Asset) IsZero() bool {
	return a.Amount == 0
}

func (a Asset) String() string {
	d := decimal.New(a.Amount, -int32(a.Symbol.Precision))
	return d.StringFixed(int32(a.Symbol.Precision)) + " " + a.Symbol.Code
}

func (a Asset) Add(b Asset) (Asset, error) {
	if a.Symbol != b.Symbol {
		return Asset{}, fmt.Errorf("%w: %s vs %s", ErrSymbolMismatch, a.Symbol, b.Symbol)
	}
	sum := a.Amount + b.Amount
	if (b.Amount > 0 && sum < a.Amount) || (b.Amount < 0 && sum > a.Amount) {
		return Asset{}, fmt.Errorf("%w: amount overflow", ErrInvalidAsset)
	}
	return Asset{Amount: sum, Symbol: a.Symbol}, nil
}

func (a Asset) Sub(b Asset) (Asset, error) {
	if a.Symbol != b.Symbol {
		return Asset{}, fmt.Errorf("%w: %s vs %s", ErrSymbolMismatch, a.Symbol, b.Symbol)
	}
	return a.Add(Asset{Amount: -b.Amount, Symbol: b.Symbol})
}

// Cmp returns -1, 0 or 1; both assets must share a symbol.
func (a Asset) Cmp(b Asset) (int, error) {
	if a.Symbol != b.Symbol {
		return 0, fmt.Errorf("%w: %s vs %s", ErrSymbolMismatch, a.Symbol, b.Symbol)
	}
	switch {
	case a.Amount < b.Amount:
		return -1, nil
	case a.Amount > b.Amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// Scale multiplies the amount by a decimal factor and floors the result.
func (a Asset) Scale(factor decimal.Decimal) Asset {
	scaled := decimal.NewFromInt(a.Amount).Mul(factor).Floor()
	return Asset{Amount: scaled.IntPart(), Symbol: a.Symbol}
}

// Parse reads "1.0000 CHIP" style strings.
func Parse(s string) (Asset, error) {
	parts := strings.Fields(strings.TrimSpace(s))
	if len(parts) != 2 {
		return Asset{}, fmt.Errorf("%w: %q", ErrInvalidAsset, s)
	}
	d, err := decimal.NewFromString(parts[0])
	if err != nil {
		return Asset{}, fmt.Errorf("%w: %q", ErrInvalidAsset, s)
	}
	precision := uint8(0)
	if i := strings.IndexByte(parts[0], '.'); i >= 0 {
		precision = uint8(len(parts[0]) - i - 1)
	}
	sym := Symbol{Code: parts[1], Precision: precision}
	if !sym.Valid() {
		return Asset{}, fmt.Errorf("%w: bad symbol %q", ErrInvalidAsset, parts[1])
	}
	return Asset{
		Amount: d.Shift(int32(precision)).IntPart(),
		Symbol: sym,
	}, nil
}
