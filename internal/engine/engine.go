// Package engine implements the dice wagering engine. Every public
// entry point runs as one serialized invocation: state is read and
// mutated through a staged transaction, and outward effects (scheduled
// continuations, transfers, mints, notices) are buffered and flushed
// only after the transaction commits. A failed invocation therefore
// changes nothing and emits nothing.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eosnow-bet/dice/internal/config"
	"github.com/eosnow-bet/dice/internal/gamestore"
	"github.com/eosnow-bet/dice/internal/types"
	"github.com/eosnow-bet/dice/pkg/asset"
	"github.com/eosnow-bet/dice/pkg/common/logger"
	"github.com/eosnow-bet/dice/pkg/events"
)

var (
	ErrUnauthorized = errors.New("caller is not permitted")
	ErrInvalidBet   = errors.New("invalid bet")
	ErrBetTooLarge  = errors.New("bet exceeds the payout cap")
	ErrPoolDrained  = errors.New("pool balance protection triggered")
	ErrUnknownBet   = errors.New("unknown bet id")
	ErrUnknownTask  = errors.New("unknown task kind")
)

// Scheduler registers a continuation to be delivered back to the
// engine no earlier than notBefore.
type Scheduler interface {
	Schedule(task types.Task, notBefore time.Time) error
}

type Deps struct {
	Store     *gamestore.Store
	Scheduler Scheduler
	Emitter   events.Emitter
	Tips      TipProvider
	Game      config.GameConfig
	Clock     func() time.Time
	Logger    *slog.Logger
}

type Engine struct {
	mu sync.Mutex

	store   *gamestore.Store
	sched   Scheduler
	emitter events.Emitter
	tips    TipProvider
	game    config.GameConfig
	clock   func() time.Time
	log     *slog.Logger

	betSym  asset.Symbol
	anteSym asset.Symbol
}

func New(deps Deps) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	log := deps.Logger
	if log == nil {
		log = logger.With("component", "engine")
	}
	return &Engine{
		store:   deps.Store,
		sched:   deps.Scheduler,
		emitter: deps.Emitter,
		tips:    deps.Tips,
		game:    deps.Game,
		clock:   clock,
		log:     log,
		betSym:  asset.Symbol{Code: deps.Game.BetSymbol.Code, Precision: deps.Game.BetSymbol.Precision},
		anteSym: asset.Symbol{Code: deps.Game.AnteSymbol.Code, Precision: deps.Game.AnteSymbol.Precision},
	}
}

// session is the per-invocation context. Side effects are buffered on
// it and replayed only after the transaction commits.
type session struct {
	e      *Engine
	txn    *gamestore.Txn
	cfg    *types.GlobalConfig
	limits *types.Limits
	now    time.Time

	tasks     []pendingTask
	transfers []events.TransferEvent
	mints     []events.MintEvent
	notices   []string
}

type pendingTask struct {
	task      types.Task
	notBefore time.Time
}

// invoke runs fn as one atomic invocation.
func (e *Engine) invoke(fn func(*session) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &session{
		e:   e,
		txn: e.store.Begin(),
		now: e.clock().UTC(),
	}
	if err := s.load(); err != nil {
		return err
	}
	if err := s.refreshBoards(); err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	if err := s.txn.PutConfig(s.cfg); err != nil {
		return err
	}
	if err := s.txn.Commit(); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *session) load() error {
	cfg, found, err := s.txn.Config()
	if err != nil {
		return err
	}
	if !found {
		if err := s.bootstrap(cfg); err != nil {
			return err
		}
	}
	s.cfg = cfg

	limits, found, err := s.txn.Limits()
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("limits missing from store")
	}
	s.limits = limits
	return nil
}

// bootstrap seeds the persisted state from the YAML game section on
// first start.
func (s *session) bootstrap(cfg *types.GlobalConfig) error {
	g := s.e.game

	cfg.Owner = g.Owner
	cfg.Admin = g.Admin
	cfg.AnteIssuer = g.AnteIssuer
	cfg.BettingEnabled = g.BettingEnabled
	cfg.MintingEnabled = g.MintingEnabled
	cfg.PayoutEnabled = g.PayoutEnabled
	cfg.PoolBalance = asset.New(0, s.e.betSym)
	cfg.BetsCursor = types.RingCursor{Max: g.HistoryWindow}
	cfg.HighBetsCursor = types.RingCursor{Max: g.HistoryWindow}
	cfg.RareBetsCursor = types.RingCursor{Max: g.HistoryWindow}
	cfg.HighBetBound = asset.FromUnits(g.HighBetBoundUnits, s.e.betSym)
	cfg.RareBetBound = g.RareBetBound
	cfg.ExchangeRate = g.ExchangeRate.Decimal
	cfg.ReferralMultiplier = g.ReferralMultiplier.Decimal
	cfg.JackpotPercent = g.JackpotPercent.Decimal
	cfg.JackpotBalance = asset.New(0, s.e.betSym)
	cfg.TotalPayout = asset.New(0, s.e.betSym)
	cfg.TotalBetAmount = asset.New(0, s.e.betSym)
	cfg.DayBoard = types.LeaderboardConfig{
		Size:         g.DayBoard.Size,
		BonusPercent: g.DayBoard.BonusPercent.Decimal,
		PeriodLength: int64(24 * time.Hour / time.Second),
	}
	cfg.MonthBoard = types.LeaderboardConfig{
		Size:         g.MonthBoard.Size,
		BonusPercent: g.MonthBoard.BonusPercent.Decimal,
		PeriodLength: int64(30 * 24 * time.Hour / time.Second),
	}
	cfg.DayBoard.AdvancePeriod(s.now)
	cfg.MonthBoard.AdvancePeriod(s.now)

	limits := &types.Limits{
		MinValue:       g.MinValue,
		MaxValue:       g.MaxValue,
		MaxBetPercent:  g.MaxBetPercent.Decimal,
		MaxBetNum:      g.MaxBetNum,
		MinBet:         asset.FromUnits(g.MinBetUnits, s.e.betSym),
		BalanceProtect: asset.FromUnits(g.BalanceProtectUnits, s.e.betSym),
		PlatformFee:    g.PlatformFee.Decimal,
	}
	if err := s.txn.PutLimits(limits); err != nil {
		return err
	}

	if err := s.txn.PutTokenStats(&types.TokenStats{Symbol: s.e.betSym}); err != nil {
		return err
	}

	tiers := make([]types.BonusTier, 0, len(g.BonusTiers))
	for _, t := range g.BonusTiers {
		tiers = append(tiers, types.BonusTier{
			Begin:      t.Begin,
			End:        t.End,
			Multiplier: t.Multiplier.Decimal,
		})
	}
	return s.txn.PutBonusTiers(tiers)
}

// flush replays the buffered effects after a successful commit.
// Effect failures at this point cannot roll anything back, so they are
// logged and the invocation still counts as applied.
func (s *session) flush() {
	for _, pt := range s.tasks {
		if err := s.e.sched.Schedule(pt.task, pt.notBefore); err != nil {
			s.e.log.Error("schedule task", "task", pt.task.ID, "error", err)
		}
	}
	for _, ev := range s.transfers {
		if err := s.e.emitter.EmitTransfer(ev.From, ev.To, ev.Quantity, ev.Memo); err != nil {
			s.e.log.Error("emit transfer", "to", ev.To, "error", err)
		}
	}
	for _, ev := range s.mints {
		if err := s.e.emitter.EmitMint(ev.Issuer, ev.Quantity, ev.Player, ev.Inviter); err != nil {
			s.e.log.Error("emit mint", "player", ev.Player, "error", err)
		}
	}
	recipients := []string{s.cfg.Admin}
	if s.cfg.Owner != s.cfg.Admin {
		recipients = append(recipients, s.cfg.Owner)
	}
	for _, msg := range s.notices {
		if err := s.e.emitter.EmitNotice(msg, recipients...); err != nil {
			s.e.log.Error("emit notice", "error", err)
		}
	}
}

func (s *session) schedule(kind types.TaskKind, payload any, delay time.Duration) (types.Task, error) {
	id := s.cfg.NextDeferredID(kind)
	task, err := types.NewTask(id, payload)
	if err != nil {
		return types.Task{}, err
	}
	s.tasks = append(s.tasks, pendingTask{task: task, notBefore: s.now.Add(delay)})
	return task, nil
}

func (s *session) transfer(to string, quantity asset.Asset, memo string) {
	s.transfers = append(s.transfers, events.TransferEvent{
		From:     s.cfg.Owner,
		To:       to,
		Quantity: quantity,
		Memo:     memo,
	})
}

func (s *session) notice(format string, args ...any) {
	s.notices = append(s.notices, fmt.Sprintf(format, args...))
}

// Init makes sure the persisted state exists, bootstrapping it on a
// fresh store.
func (e *Engine) Init() error {
	return e.invoke(func(s *session) error { return nil })
}

// OnTransfer consumes an inbound token transfer. Transfers carrying a
// bet memo are validated and booked as wagers; anything else is a
// deposit into the pool.
func (e *Engine) OnTransfer(tr types.TokenTransfer) error {
	return e.invoke(func(s *session) error {
		if tr.From == s.cfg.Owner || tr.From == "" {
			return nil
		}
		if tr.To != s.cfg.Owner {
			return nil
		}
		if tr.Quantity.Symbol != s.e.betSym || tr.Quantity.Amount <= 0 {
			return nil
		}
		if tr.From == s.cfg.Admin {
			return s.deposit(tr)
		}

		memo, err := ParseBetMemo(tr.Memo)
		if errors.Is(err, ErrNotBetMemo) {
			return s.deposit(tr)
		}
		if err != nil {
			return err
		}
		if !s.cfg.BettingEnabled {
			s.notice("betting is paused, %s credited as deposit from %s", tr.Quantity, tr.From)
			return s.deposit(tr)
		}
		return s.acceptWager(tr.From, tr.Quantity, memo)
	})
}

func (s *session) deposit(tr types.TokenTransfer) error {
	pool, err := s.cfg.PoolBalance.Add(tr.Quantity)
	if err != nil {
		return err
	}
	s.cfg.PoolBalance = pool

	stats, _, err := s.txn.TokenStats()
	if err != nil {
		return err
	}
	stats.In += tr.Quantity.Amount
	if err := s.txn.PutTokenStats(stats); err != nil {
		return err
	}
	s.e.log.Info("deposit", "from", tr.From, "quantity", tr.Quantity.String())
	return nil
}

func (s *session) acceptWager(player string, stake asset.Asset, memo BetMemo) error {
	pool, err := s.cfg.PoolBalance.Add(stake)
	if err != nil {
		return err
	}
	s.cfg.PoolBalance = pool

	if err := s.checkBet(stake, memo); err != nil {
		return err
	}

	inviter := memo.Inviter
	if inviter == "" || inviter == player {
		inviter = player
	}

	if s.cfg.TotalBetAmount, err = s.cfg.TotalBetAmount.Add(stake); err != nil {
		return err
	}

	stats, _, err := s.txn.TokenStats()
	if err != nil {
		return err
	}
	stats.In += stake.Amount
	stats.Bets++
	if err := s.txn.PutTokenStats(stats); err != nil {
		return err
	}

	task, err := s.schedule(types.TaskBet, types.WagerTask{
		Player:     player,
		Inviter:    inviter,
		Quantity:   stake,
		RollType:   memo.RollType,
		RollBorder: uint64(memo.RollBorder),
	}, s.e.game.BetDelay.Duration)
	if err != nil {
		return err
	}
	s.e.log.Info("wager accepted",
		"player", player,
		"stake", stake.String(),
		"roll_type", memo.RollType,
		"border", memo.RollBorder,
		"task", task.ID)
	return nil
}

// checkBet validates a wager against the limits and the pool. The pool
// already includes the stake when this runs.
func (s *session) checkBet(stake asset.Asset, memo BetMemo) error {
	if s.cfg.PoolBalance.Amount < s.limits.BalanceProtect.Amount {
		return fmt.Errorf("%w: pool %s below %s", ErrPoolDrained, s.cfg.PoolBalance, s.limits.BalanceProtect)
	}
	maxStake := s.cfg.PoolBalance.Scale(s.limits.MaxBetPercent)
	if stake.Amount > maxStake.Amount {
		return fmt.Errorf("%w: stake %s exceeds %s", ErrBetTooLarge, stake, maxStake)
	}
	if !memo.RollType.Valid() {
		return fmt.Errorf("%w: roll type %d", ErrInvalidBet, memo.RollType)
	}
	if memo.RollType == types.RollLeft && memo.RollBorder > s.limits.MaxValue {
		return fmt.Errorf("%w: border %d above %d", ErrInvalidBet, memo.RollBorder, s.limits.MaxValue)
	}
	if memo.RollType == types.RollRight && memo.RollBorder < s.limits.MinValue {
		return fmt.Errorf("%w: border %d below %d", ErrInvalidBet, memo.RollBorder, s.limits.MinValue)
	}
	if cmp, err := stake.Cmp(s.limits.MinBet); err != nil || cmp < 0 {
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: stake %s below minimum %s", ErrInvalidBet, stake, s.limits.MinBet)
	}

	winners := winningValues(memo.RollType, uint64(memo.RollBorder), uint64(s.limits.MaxBetNum))
	if winners == 0 {
		return fmt.Errorf("%w: no winning values for border %d", ErrInvalidBet, memo.RollBorder)
	}
	reward := rewardFor(stake, winners, uint64(s.limits.MaxBetNum), s.limits.PlatformFee)
	if reward.Amount > maxStake.Amount {
		return fmt.Errorf("%w: potential payout %s exceeds %s", ErrBetTooLarge, reward, maxStake)
	}
	return nil
}

// winningValues counts the roll values that pay out for a wager.
func winningValues(rt types.RollType, border, maxBetNum uint64) uint64 {
	if rt == types.RollLeft {
		return border
	}
	if border >= maxBetNum-1 {
		return 0
	}
	return maxBetNum - 1 - border
}

// rewardFor computes the gross payout of a winning wager:
// floor(stake * (1 - fee) * maxBetNum / winners).
func rewardFor(stake asset.Asset, winners, maxBetNum uint64, fee decimal.Decimal) asset.Asset {
	factor := decimal.NewFromInt(1).Sub(fee).
		Mul(decimal.NewFromInt(int64(maxBetNum))).
		Div(decimal.NewFromInt(int64(winners)))
	return stake.Scale(factor)
}

// HandleTask executes a scheduled continuation.
func (e *Engine) HandleTask(task types.Task) error {
	switch task.Kind {
	case types.TaskBet:
		return e.placeBet(task)
	case types.TaskResolve:
		return e.resolveBet(task)
	case types.TaskMint:
		return e.mint(task)
	case types.TaskDistribute:
		return e.distribute(task)
	case types.TaskNotify:
		return e.notify(task)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownTask, task.Kind)
	}
}

// OnTaskFailure records a continuation that was given up on. The
// engine compensates nothing; the failure is made observable and the
// affected board, if any, is unlocked.
func (e *Engine) OnTaskFailure(task types.Task, cause error) error {
	return e.invoke(func(s *session) error {
		s.notice("task %s (%s) abandoned: %v", task.ID, task.Kind, cause)
		if task.Kind != types.TaskDistribute {
			return nil
		}
		var dt types.DistributeTask
		if err := json.Unmarshal(task.Payload, &dt); err != nil {
			return nil
		}
		board := s.cfg.Board(dt.Board)
		if board.DistributionID == task.ID.Seq {
			board.StopDistribution()
			s.e.log.Warn("distribution abandoned", "board", dt.Board.String(), "id", task.ID.Seq)
		}
		return nil
	})
}

func (e *Engine) notify(task types.Task) error {
	return e.invoke(func(s *session) error {
		var nt types.NotifyTask
		if err := json.Unmarshal(task.Payload, &nt); err != nil {
			return fmt.Errorf("decode notify task: %w", err)
		}
		s.notice("%s", nt.Message)
		return nil
	})
}
