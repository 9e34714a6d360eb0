package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/eosnow-bet/dice/internal/types"
)

var (
	ErrNotBetMemo = errors.New("memo is not a bet instruction")
	ErrBadMemo    = errors.New("malformed bet memo")
)

// BetMemo is the parsed form of "bet,<rollType>,<border>[,<inviter>]".
type BetMemo struct {
	RollType   types.RollType
	RollBorder uint16
	Inviter    string
}

// ParseBetMemo decodes a transfer memo. Transfers whose memo does not
// start with the bet keyword are not wagers and are silently accepted
// as deposits; anything starting with it is a bet attempt and a
// malformed one is an error, never a deposit.
func ParseBetMemo(memo string) (BetMemo, error) {
	if !strings.HasPrefix(memo, "bet") {
		return BetMemo{}, ErrNotBetMemo
	}
	parts := strings.Split(memo, ",")
	if len(parts) < 3 {
		return BetMemo{}, fmt.Errorf("%w: expected bet,<type>,<border>", ErrBadMemo)
	}

	rt, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 8)
	if err != nil {
		return BetMemo{}, fmt.Errorf("%w: roll type %q", ErrBadMemo, parts[1])
	}
	border, err := strconv.ParseUint(strings.TrimSpace(parts[2]), 10, 16)
	if err != nil {
		return BetMemo{}, fmt.Errorf("%w: roll border %q", ErrBadMemo, parts[2])
	}

	m := BetMemo{
		RollType:   types.RollType(rt),
		RollBorder: uint16(border),
	}
	if len(parts) >= 4 {
		m.Inviter = strings.TrimSpace(parts[3])
	}
	return m, nil
}
