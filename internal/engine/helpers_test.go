package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/eosnow-bet/dice/internal/config"
	"github.com/eosnow-bet/dice/internal/gamestore"
	"github.com/eosnow-bet/dice/internal/types"
	"github.com/eosnow-bet/dice/pkg/asset"
	"github.com/eosnow-bet/dice/pkg/events"
	"github.com/eosnow-bet/dice/pkg/infra"
	"github.com/eosnow-bet/dice/pkg/kvstore"
)

var chip = asset.Symbol{Code: "CHIP", Precision: 4}

func chips(units int64) asset.Asset {
	return asset.FromUnits(units, chip)
}

type recordedTask struct {
	task      types.Task
	notBefore time.Time
}

type fakeScheduler struct {
	mu    sync.Mutex
	tasks []recordedTask
}

func (f *fakeScheduler) Schedule(task types.Task, notBefore time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, recordedTask{task: task, notBefore: notBefore})
	return nil
}

// popKind removes and returns the first recorded task of a kind.
func (f *fakeScheduler) popKind(kind types.TaskKind) (recordedTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.task.Kind == kind {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return t, true
		}
	}
	return recordedTask{}, false
}

type fakeEmitter struct {
	mu        sync.Mutex
	transfers []events.TransferEvent
	mints     []events.MintEvent
	notices   []string
}

func (f *fakeEmitter) EmitTransfer(from, to string, quantity asset.Asset, memo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, events.TransferEvent{From: from, To: to, Quantity: quantity, Memo: memo})
	return nil
}

func (f *fakeEmitter) EmitMint(issuer string, quantity asset.Asset, player, inviter string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mints = append(f.mints, events.MintEvent{Issuer: issuer, Quantity: quantity, Player: player, Inviter: inviter})
	return nil
}

func (f *fakeEmitter) EmitNotice(message string, recipients ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, message)
	return nil
}

func (f *fakeEmitter) Close() {}

type fixedTips struct {
	tip ChainTip
}

func (f *fixedTips) Tip() ChainTip {
	return f.tip
}

type testEngine struct {
	*Engine
	sched   *fakeScheduler
	emitted *fakeEmitter
	tips    *fixedTips
	now     *time.Time
}

func newTestEngine(t *testing.T, mutate ...func(*config.GameConfig)) *testEngine {
	t.Helper()

	game := config.DefaultGame()
	game.Owner = "house"
	game.Admin = "admin"
	game.AnteIssuer = "issuer"
	game.BettingEnabled = true
	for _, fn := range mutate {
		fn(&game)
	}

	store := gamestore.New(kvstore.NewMemoryStore(infra.JSON))
	t.Cleanup(func() { _ = store.Close() })

	sched := &fakeScheduler{}
	emitted := &fakeEmitter{}
	tips := &fixedTips{tip: ChainTip{Number: 42, Prefix: 7}}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	te := &testEngine{sched: sched, emitted: emitted, tips: tips, now: &now}
	te.Engine = New(Deps{
		Store:     store,
		Scheduler: sched,
		Emitter:   emitted,
		Tips:      tips,
		Game:      game,
		Clock:     func() time.Time { return *te.now },
	})
	return te
}

func (te *testEngine) advance(d time.Duration) {
	*te.now = te.now.Add(d)
}

// fund seeds the pool via a plain deposit.
func (te *testEngine) fund(t *testing.T, units int64) {
	t.Helper()
	if err := te.OnTransfer(types.TokenTransfer{
		From:     "whale",
		To:       "house",
		Quantity: chips(units),
		Memo:     "deposit",
	}); err != nil {
		t.Fatalf("fund pool: %v", err)
	}
}

// lastBet returns the newest record of the main history ledger.
func (te *testEngine) lastBet(t *testing.T) types.BetRecord {
	t.Helper()
	recs, err := te.History(gamestore.LedgerAll)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	if len(recs) == 0 {
		t.Fatal("no resolved bets in history")
	}
	return recs[len(recs)-1]
}

// wager drives a bet all the way through intake, booking and
// resolution, returning the resolved record.
func (te *testEngine) wager(t *testing.T, player, memo string, stake asset.Asset) types.BetRecord {
	t.Helper()

	if err := te.OnTransfer(types.TokenTransfer{
		From: player, To: "house", Quantity: stake, Memo: memo,
	}); err != nil {
		t.Fatalf("intake: %v", err)
	}

	bet, ok := te.sched.popKind(types.TaskBet)
	if !ok {
		t.Fatal("expected a bet task")
	}
	if err := te.HandleTask(bet.task); err != nil {
		t.Fatalf("place bet: %v", err)
	}

	resolve, ok := te.sched.popKind(types.TaskResolve)
	if !ok {
		t.Fatal("expected a resolve task")
	}
	if err := te.HandleTask(resolve.task); err != nil {
		t.Fatalf("resolve bet: %v", err)
	}
	return te.lastBet(t)
}
