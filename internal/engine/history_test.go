package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eosnow-bet/dice/internal/config"
	"github.com/eosnow-bet/dice/internal/gamestore"
	"github.com/eosnow-bet/dice/internal/types"
	"github.com/eosnow-bet/dice/pkg/asset"
)

func TestHistoryRingEvictsOldRows(t *testing.T) {
	te := newTestEngine(t, func(g *config.GameConfig) {
		g.HistoryWindow = 3
	})
	te.fund(t, 100000)

	for i := 0; i < 5; i++ {
		te.wager(t, "alice", "bet,1,50", chips(10))
	}

	recs, err := te.History(gamestore.LedgerAll)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, uint64(3), recs[0].ID)
	assert.Equal(t, uint64(5), recs[2].ID)

	st, err := te.Status()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), st.Config.BetsCursor.First)
	assert.Equal(t, uint64(5), st.Config.BetsCursor.Last)
}

func TestHighAndRareLedgers(t *testing.T) {
	te := newTestEngine(t)
	te.fund(t, 100000)

	file := func(rec *types.BetRecord, winners uint64) {
		t.Helper()
		require.NoError(t, te.invoke(func(s *session) error {
			return s.recordHistory(rec, winners)
		}))
	}

	// a big stake on long odds that paid out lands in every ledger
	file(&types.BetRecord{ID: 1, Player: "alice", Bet: chips(50), Payout: chips(900)}, 5)
	// the same odds lost stay out of the rare ledger
	file(&types.BetRecord{ID: 2, Player: "bob", Bet: chips(50), Payout: asset.New(0, chip)}, 5)
	// a small even-odds win lands only in the main ledger
	file(&types.BetRecord{ID: 3, Player: "carol", Bet: chips(1), Payout: chips(2)}, 50)

	all, err := te.History(gamestore.LedgerAll)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	high, err := te.History(gamestore.LedgerHigh)
	require.NoError(t, err)
	require.Len(t, high, 2)
	assert.Equal(t, "alice", high[0].Player)
	assert.Equal(t, "bob", high[1].Player)

	rare, err := te.History(gamestore.LedgerRare)
	require.NoError(t, err)
	require.Len(t, rare, 1)
	assert.Equal(t, "alice", rare[0].Player)
}
