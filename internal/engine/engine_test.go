package engine

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eosnow-bet/dice/internal/config"
	"github.com/eosnow-bet/dice/internal/gamestore"
	"github.com/eosnow-bet/dice/internal/types"
	"github.com/eosnow-bet/dice/pkg/asset"
)

func TestDepositIncreasesPool(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 500)

	st, err := te.Status()
	require.NoError(t, err)
	assert.Equal(t, chips(500), st.Config.PoolBalance)
	assert.Equal(t, chips(500).Amount, st.Stats.In)
	assert.Zero(t, st.Stats.Bets)
}

func TestWagerIntakeValidation(t *testing.T) {
	tests := []struct {
		name  string
		memo  string
		stake asset.Asset
		want  error
	}{
		{"malformed memo", "bet,1", chips(10), ErrBadMemo},
		{"bad roll type", "bet,3,50", chips(10), ErrInvalidBet},
		{"left border above maximum", "bet,1,95", chips(10), ErrInvalidBet},
		{"right border below minimum", "bet,2,2", chips(10), ErrInvalidBet},
		{"no winning values", "bet,2,99", chips(10), ErrInvalidBet},
		{"stake below minimum", "bet,1,50", asset.New(5000, chip), ErrInvalidBet},
		{"stake exceeds cap", "bet,1,50", chips(5000), ErrBetTooLarge},
		{"near even odds stake above cap", "bet,1,94", chips(15000), ErrBetTooLarge},
		{"payout exceeds cap", "bet,1,1", chips(100), ErrBetTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(t)
			te.fund(t, 20000)

			err := te.OnTransfer(types.TokenTransfer{
				From:     "alice",
				To:       "house",
				Quantity: tt.stake,
				Memo:     tt.memo,
			})
			assert.ErrorIs(t, err, tt.want)

			_, ok := te.sched.popKind(types.TaskBet)
			assert.False(t, ok, "rejected wager must not schedule a task")
		})
	}
}

func TestLowLeftBorderIsPlayable(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 20000)

	// long odds: a left roll may sit below the right-roll minimum
	err := te.OnTransfer(types.TokenTransfer{
		From:     "alice",
		To:       "house",
		Quantity: chips(10),
		Memo:     "bet,1,2",
	})
	require.NoError(t, err)

	_, ok := te.sched.popKind(types.TaskBet)
	assert.True(t, ok)
}

func TestWagerRejectedByPoolProtection(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 9000)

	// the pool, stake included, sits below the protection floor
	err := te.OnTransfer(types.TokenTransfer{
		From:     "alice",
		To:       "house",
		Quantity: chips(10),
		Memo:     "bet,1,5",
	})
	assert.ErrorIs(t, err, ErrPoolDrained)
}

func TestStakeCountsTowardPoolProtection(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 9995)

	// 9995 + 10 clears the 10000 floor
	err := te.OnTransfer(types.TokenTransfer{
		From:     "alice",
		To:       "house",
		Quantity: chips(10),
		Memo:     "bet,1,50",
	})
	require.NoError(t, err)

	_, ok := te.sched.popKind(types.TaskBet)
	assert.True(t, ok)
}

func TestIntakeFiltersCounterparties(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 20000)

	// the admin tops up the pool even with a bet-shaped memo
	require.NoError(t, te.OnTransfer(types.TokenTransfer{
		From: "admin", To: "house", Quantity: chips(50), Memo: "bet,1,50",
	}))
	_, ok := te.sched.popKind(types.TaskBet)
	assert.False(t, ok)

	st, err := te.Status()
	require.NoError(t, err)
	assert.Equal(t, chips(20050), st.Config.PoolBalance)

	// transfers addressed to somebody else are not ours
	require.NoError(t, te.OnTransfer(types.TokenTransfer{
		From: "alice", To: "exchange", Quantity: chips(50), Memo: "bet,1,50",
	}))
	_, ok = te.sched.popKind(types.TaskBet)
	assert.False(t, ok)

	st, err = te.Status()
	require.NoError(t, err)
	assert.Equal(t, chips(20050), st.Config.PoolBalance)
}

func TestBetPrefixedMemoNeverDeposits(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 20000)

	err := te.OnTransfer(types.TokenTransfer{
		From:     "alice",
		To:       "house",
		Quantity: chips(10),
		Memo:     "betting soon",
	})
	assert.ErrorIs(t, err, ErrBadMemo)

	st, err := te.Status()
	require.NoError(t, err)
	assert.Equal(t, chips(20000), st.Config.PoolBalance)
}

func TestBettingPausedAbsorbsWager(t *testing.T) {
	te := newTestEngine(t, func(g *config.GameConfig) {
		g.BettingEnabled = false
	})

	err := te.OnTransfer(types.TokenTransfer{
		From:     "alice",
		To:       "house",
		Quantity: chips(10),
		Memo:     "bet,1,50",
	})
	require.NoError(t, err)

	_, ok := te.sched.popKind(types.TaskBet)
	assert.False(t, ok)
	require.NotEmpty(t, te.emitted.notices)

	st, err := te.Status()
	require.NoError(t, err)
	assert.Equal(t, chips(10), st.Config.PoolBalance)
}

func TestWagerResolution(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 20000)

	err := te.OnTransfer(types.TokenTransfer{
		From:     "alice",
		To:       "house",
		Quantity: chips(10),
		Memo:     "bet,1,5,bob",
	})
	require.NoError(t, err)

	bet, ok := te.sched.popKind(types.TaskBet)
	require.True(t, ok)
	require.NoError(t, te.HandleTask(bet.task))

	resolve, ok := te.sched.popKind(types.TaskResolve)
	require.True(t, ok)

	expected := NewGenerator(
		SystemSeed(resolve.task.ID.Seq, te.tips.tip),
		UserSeed(resolve.task.Payload),
	).Next(94)

	require.NoError(t, te.HandleTask(resolve.task))

	rec := te.lastBet(t)
	assert.Equal(t, "alice", rec.Player)
	assert.Equal(t, expected, rec.RollValue)
	assert.Equal(t, "bob", rec.Inviter)

	win := expected < 5
	st, err := te.Status()
	require.NoError(t, err)

	contribution := chips(10).Scale(decimal.RequireFromString("0.01"))
	pool := chips(20010).Amount - contribution.Amount
	if win {
		assert.Equal(t, chips(190), rec.Payout)
		pool -= chips(190).Amount
		require.Len(t, te.emitted.transfers, 1)
		assert.Equal(t, "alice", te.emitted.transfers[0].To)
		assert.Equal(t, chips(190), te.emitted.transfers[0].Quantity)
	} else {
		assert.True(t, rec.Payout.IsZero())
		// bob has no ledger row of his own, so no referral accrues
		assert.Empty(t, te.emitted.transfers)
	}
	assert.Equal(t, pool, st.Config.PoolBalance.Amount)
	assert.Equal(t, contribution, st.Config.JackpotBalance)
	assert.Equal(t, uint64(1), st.Stats.Bets)

	// every resolved bet earns a secondary-token mint
	mint, ok := te.sched.popKind(types.TaskMint)
	require.True(t, ok)
	var mt types.MintTask
	require.NoError(t, json.Unmarshal(mint.task.Payload, &mt))
	assert.Equal(t, "issuer", mt.Issuer)
	assert.Equal(t, "alice", mt.Player)
	// 10 CHIP at 2.0 CHIP per ANTE and tier 1-10 multiplier 1.01
	assert.Equal(t, int64(505000000), mt.Quantity.Amount)
	assert.Equal(t, "ANTE", mt.Quantity.Symbol.Code)
}

func TestPayoutPausedKeepsDebtObservable(t *testing.T) {
	te := newTestEngine(t, func(g *config.GameConfig) {
		g.PayoutEnabled = false
	})
	te.fund(t, 100000)

	// run bets until one wins
	for i := 0; i < 40; i++ {
		rec := te.wager(t, "alice", "bet,1,50", chips(10))
		if !rec.Payout.IsZero() {
			assert.Empty(t, te.emitted.transfers, "payouts are paused")
			require.NotEmpty(t, te.emitted.notices)
			return
		}
	}
	t.Fatal("no winning bet in 40 attempts")
}

func TestResolveUnknownBet(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 20000)

	task, err := types.NewTask(
		types.TaskID{Kind: types.TaskResolve, Seq: 99},
		types.WagerTask{BetID: 12345, Player: "alice", Quantity: chips(10), RollType: types.RollLeft, RollBorder: 50},
	)
	require.NoError(t, err)
	assert.ErrorIs(t, te.HandleTask(task), ErrUnknownBet)
}

func TestRollDrawnBelowMaxValue(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 1000000)

	for i := 0; i < 50; i++ {
		rec := te.wager(t, "alice", "bet,1,5", chips(10))
		assert.Less(t, rec.RollValue, uint64(94))
	}
}

func TestResolveRequiresStake(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 20000)

	require.NoError(t, te.invoke(func(s *session) error {
		return s.txn.PutBet(gamestore.LedgerPending, &types.BetRecord{
			ID:         7,
			Player:     "alice",
			RollType:   types.RollLeft,
			RollBorder: 50,
			Bet:        asset.New(0, chip),
			Time:       *te.now,
		})
	}))

	task, err := types.NewTask(
		types.TaskID{Kind: types.TaskResolve, Seq: 8},
		types.WagerTask{BetID: 7, Player: "alice"},
	)
	require.NoError(t, err)
	assert.ErrorIs(t, te.HandleTask(task), ErrInvalidBet)
}

func TestMintTaskForwardsToEmitter(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 20000)

	task, err := types.NewTask(
		types.TaskID{Kind: types.TaskMint, Seq: 7},
		types.MintTask{Issuer: "issuer", Quantity: chips(5), Player: "alice", Inviter: "bob"},
	)
	require.NoError(t, err)
	require.NoError(t, te.HandleTask(task))

	require.Len(t, te.emitted.mints, 1)
	assert.Equal(t, "alice", te.emitted.mints[0].Player)
	assert.Equal(t, "bob", te.emitted.mints[0].Inviter)
}

func TestOnTaskFailureUnlocksBoard(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 20000)
	te.wager(t, "alice", "bet,1,50", chips(10))

	// roll the day period over and resolve another bet to trigger a
	// distribution
	te.advance(25 * time.Hour)
	te.wager(t, "alice", "bet,1,50", chips(10))

	dist, ok := te.sched.popKind(types.TaskDistribute)
	require.True(t, ok)

	st, err := te.Status()
	require.NoError(t, err)
	require.Equal(t, dist.task.ID.Seq, st.Config.DayBoard.DistributionID)

	require.NoError(t, te.OnTaskFailure(dist.task, errors.New("gave up")))

	st, err = te.Status()
	require.NoError(t, err)
	assert.Zero(t, st.Config.DayBoard.DistributionID)
	require.NotEmpty(t, te.emitted.notices)
}

func TestRewardFormula(t *testing.T) {
	fee := decimal.RequireFromString("0.05")
	assert.Equal(t, chips(190), rewardFor(chips(10), 5, 100, fee))
	assert.Equal(t, chips(19), rewardFor(chips(10), 50, 100, fee))
}

func TestWinningValues(t *testing.T) {
	assert.Equal(t, uint64(5), winningValues(types.RollLeft, 5, 100))
	assert.Equal(t, uint64(94), winningValues(types.RollRight, 5, 100))
	assert.Equal(t, uint64(49), winningValues(types.RollRight, 50, 100))
	assert.Zero(t, winningValues(types.RollRight, 99, 100))
}
