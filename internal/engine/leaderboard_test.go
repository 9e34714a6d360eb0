package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eosnow-bet/dice/internal/config"
	"github.com/eosnow-bet/dice/internal/types"
)

func TestBoardsRankByBetVolume(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 100000)

	te.wager(t, "alice", "bet,1,50", chips(10))
	te.wager(t, "bob", "bet,1,50", chips(30))
	te.wager(t, "carol", "bet,1,50", chips(20))

	board, err := te.Board(types.BoardDay)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, "bob", board[0].Account)
	assert.Equal(t, "carol", board[1].Account)
	assert.Equal(t, "alice", board[2].Account)
}

func TestPeriodEndTriggersDistribution(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 100000)
	te.wager(t, "alice", "bet,1,50", chips(30))
	te.wager(t, "bob", "bet,1,50", chips(10))

	te.advance(25 * time.Hour)
	te.wager(t, "carol", "bet,1,50", chips(5))

	dist, ok := te.sched.popKind(types.TaskDistribute)
	require.True(t, ok)

	st, err := te.Status()
	require.NoError(t, err)
	assert.Equal(t, dist.task.ID.Seq, st.Config.DayBoard.DistributionID)

	// a second period check while a distribution is in flight must not
	// start another one
	te.wager(t, "carol", "bet,1,50", chips(5))
	_, ok = te.sched.popKind(types.TaskDistribute)
	assert.False(t, ok)
}

func TestDistributionPaysHalvingLadder(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 100000)

	task, err := types.NewTask(types.TaskID{Kind: types.TaskDistribute, Seq: 55}, types.DistributeTask{
		Caller:  "house",
		Board:   types.BoardDay,
		Leaders: []string{"alice", "bob", "carol"},
		Bonus:   chips(80),
	})
	require.NoError(t, err)

	// arm the board so the task id matches
	require.NoError(t, te.invoke(func(s *session) error {
		s.cfg.DayBoard.StartDistribution(55, s.now)
		return nil
	}))

	require.NoError(t, te.HandleTask(task))

	require.Len(t, te.emitted.transfers, 3)
	assert.Equal(t, chips(40), te.emitted.transfers[0].Quantity)
	assert.Equal(t, chips(20), te.emitted.transfers[1].Quantity)
	assert.Equal(t, chips(10), te.emitted.transfers[2].Quantity)

	st, err := te.Status()
	require.NoError(t, err)
	assert.Zero(t, st.Config.DayBoard.DistributionID)
	// the whole reserved bonus leaves the pool, the ladder remainder is burned
	assert.Equal(t, chips(100000-80), st.Config.PoolBalance)
}

func TestDistributionSkippedWhilePayoutsPaused(t *testing.T) {
	te := newTestEngine(t, func(g *config.GameConfig) {
		g.PayoutEnabled = false
	})
	te.fund(t, 100000)

	task, err := types.NewTask(types.TaskID{Kind: types.TaskDistribute, Seq: 55}, types.DistributeTask{
		Caller:  "house",
		Board:   types.BoardDay,
		Leaders: []string{"alice", "bob"},
		Bonus:   chips(80),
	})
	require.NoError(t, err)

	require.NoError(t, te.invoke(func(s *session) error {
		s.cfg.DayBoard.StartDistribution(55, s.now)
		return nil
	}))

	require.NoError(t, te.HandleTask(task))

	assert.Empty(t, te.emitted.transfers)
	st, err := te.Status()
	require.NoError(t, err)
	assert.Zero(t, st.Config.DayBoard.DistributionID, "the reservation is released")
	assert.Equal(t, chips(100000), st.Config.PoolBalance)
}

func TestBoardEvictsOnlyOnNewRows(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 1000000)

	for i := 1; i <= 11; i++ {
		te.wager(t, fmt.Sprintf("player%02d", i), "bet,1,5", chips(int64(10*i)))
	}

	board, err := te.Board(types.BoardDay)
	require.NoError(t, err)
	require.Len(t, board, 10)
	for _, e := range board {
		assert.NotEqual(t, "player01", e.Account, "the smallest row is evicted")
	}

	// an existing row updating in place never evicts
	te.wager(t, "player11", "bet,1,5", chips(10))
	board, err = te.Board(types.BoardDay)
	require.NoError(t, err)
	assert.Len(t, board, 10)
}

func TestDistributionRejectsUnknownCaller(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 1000)

	task, err := types.NewTask(types.TaskID{Kind: types.TaskDistribute, Seq: 55}, types.DistributeTask{
		Caller:  "mallory",
		Board:   types.BoardDay,
		Leaders: []string{"alice"},
		Bonus:   chips(10),
	})
	require.NoError(t, err)

	require.NoError(t, te.invoke(func(s *session) error {
		s.cfg.DayBoard.StartDistribution(55, s.now)
		return nil
	}))

	assert.ErrorIs(t, te.HandleTask(task), ErrUnauthorized)
	assert.Empty(t, te.emitted.transfers)
}

func TestStaleDistributionIsDropped(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 1000)

	task, err := types.NewTask(types.TaskID{Kind: types.TaskDistribute, Seq: 99}, types.DistributeTask{
		Board:   types.BoardDay,
		Leaders: []string{"alice"},
		Bonus:   chips(10),
	})
	require.NoError(t, err)

	require.NoError(t, te.HandleTask(task))
	assert.Empty(t, te.emitted.transfers)
}

func TestExpiredDistributionStaysInItsPeriod(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 100000)
	te.wager(t, "alice", "bet,1,50", chips(30))

	te.advance(25 * time.Hour)
	te.fund(t, 1)

	_, ok := te.sched.popKind(types.TaskDistribute)
	require.True(t, ok)

	st, err := te.Status()
	require.NoError(t, err)
	start := st.Config.DayBoard.PeriodStart

	// the watchdog gives up on the task inside the already advanced
	// period; no second distribution may start for it
	te.advance(2 * time.Hour)
	te.fund(t, 1)

	_, ok = te.sched.popKind(types.TaskDistribute)
	assert.False(t, ok)

	st, err = te.Status()
	require.NoError(t, err)
	assert.Zero(t, st.Config.DayBoard.DistributionID)
	assert.Equal(t, start, st.Config.DayBoard.PeriodStart)
}

func TestEmptyBonusDefersDistribution(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 100000)
	te.wager(t, "alice", "bet,1,50", chips(30))
	require.NoError(t, te.SetBoardBonusPercent("house", types.BoardDay, decimal.Zero))

	st, err := te.Status()
	require.NoError(t, err)
	start := st.Config.DayBoard.PeriodStart

	te.advance(25 * time.Hour)
	te.fund(t, 1)

	// nothing to pay: the whole cycle waits, the board and the period
	// are left alone
	_, ok := te.sched.popKind(types.TaskDistribute)
	assert.False(t, ok)

	st, err = te.Status()
	require.NoError(t, err)
	assert.Zero(t, st.Config.DayBoard.DistributionID)
	assert.Equal(t, start, st.Config.DayBoard.PeriodStart)

	board, err := te.Board(types.BoardDay)
	require.NoError(t, err)
	assert.Len(t, board, 1)

	// restoring the bonus lets the deferred cycle run
	require.NoError(t, te.SetBoardBonusPercent("house", types.BoardDay, decimal.RequireFromString("0.01")))
	te.fund(t, 1)

	_, ok = te.sched.popKind(types.TaskDistribute)
	assert.True(t, ok)
}

func TestDistributionClearsBoardWhenScheduled(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 100000)
	te.wager(t, "alice", "bet,1,50", chips(30))

	te.advance(25 * time.Hour)
	te.fund(t, 1)

	_, ok := te.sched.popKind(types.TaskDistribute)
	require.True(t, ok)

	board, err := te.Board(types.BoardDay)
	require.NoError(t, err)
	assert.Empty(t, board, "the new period starts from a clean board")
}

func TestExpiredDistributionIsUnlocked(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 1000)

	require.NoError(t, te.invoke(func(s *session) error {
		s.cfg.DayBoard.StartDistribution(12, s.now)
		return nil
	}))

	// any invocation past the expiry window releases the lock
	te.advance(2 * time.Hour)
	te.fund(t, 1)

	st, err := te.Status()
	require.NoError(t, err)
	assert.Zero(t, st.Config.DayBoard.DistributionID)
	require.NotEmpty(t, te.emitted.notices)
}
