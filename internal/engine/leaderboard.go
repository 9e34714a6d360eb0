package engine

import (
	"encoding/json"
	"fmt"

	"github.com/eosnow-bet/dice/internal/types"
	"github.com/eosnow-bet/dice/pkg/asset"
)

// refreshBoards runs at the start of every invocation. It unlocks
// boards whose distribution has been in flight longer than the expiry
// window, then checks each board for a finished period and kicks off
// its distribution.
func (s *session) refreshBoards() error {
	for _, bt := range []types.BoardType{types.BoardDay, types.BoardMonth} {
		board := s.cfg.Board(bt)
		if board.DistributionExpired(s.now, s.e.game.DistributionExpiry.Duration) {
			id := board.DistributionID
			board.StopDistribution()
			s.notice("%s board distribution %d expired and was unlocked", bt, id)
			s.e.log.Warn("distribution expired", "board", bt.String(), "id", id)
		}
		if err := s.maybeDistribute(bt); err != nil {
			return err
		}
	}
	return nil
}

// updateBoards upserts the player's row on both leaderboards with the
// freshly settled period statistics. A new row evicts the tail beyond
// the board size; updating an existing row never evicts.
func (s *session) updateBoards(player *types.Player) error {
	if err := s.upsertBoard(types.BoardDay, player.Account, player.Day); err != nil {
		return err
	}
	return s.upsertBoard(types.BoardMonth, player.Account, player.Month)
}

func (s *session) upsertBoard(bt types.BoardType, account string, stats types.PeriodStats) error {
	_, existed, err := s.txn.BoardEntry(bt, account)
	if err != nil {
		return err
	}
	if err := s.txn.PutBoardEntry(bt, &types.BoardEntry{Account: account, Stats: stats}); err != nil {
		return err
	}
	if existed {
		return nil
	}
	entries, err := s.txn.ListBoard(bt)
	if err != nil {
		return err
	}
	for i := int(s.cfg.Board(bt).Size); i < len(entries); i++ {
		s.txn.DeleteBoardEntry(bt, entries[i].Account)
	}
	return nil
}

// maybeDistribute starts a distribution when a board's period has
// rolled over. A period with nothing to pay leaves the board untouched
// so the cycle retries on a later invocation; otherwise the period
// advances even when nobody made the board. The board is cleared as
// soon as the distribution is scheduled and stays locked until the
// task succeeds or the watchdog gives up on it.
func (s *session) maybeDistribute(bt types.BoardType) error {
	board := s.cfg.Board(bt)
	if board.DistributionActive() || !board.PeriodEnded(s.now) {
		return nil
	}

	bonus := s.cfg.PoolBalance.Scale(board.BonusPercent)
	if bonus.Amount <= 0 {
		return nil
	}

	entries, err := s.txn.ListBoard(bt)
	if err != nil {
		return err
	}
	board.AdvancePeriod(s.now)
	if len(entries) == 0 {
		return nil
	}

	top := entries
	if len(top) > int(board.Size) {
		top = top[:board.Size]
	}
	leaders := make([]string, 0, len(top))
	for _, e := range top {
		leaders = append(leaders, e.Account)
	}

	task, err := s.schedule(types.TaskDistribute, types.DistributeTask{
		Caller:  s.cfg.Owner,
		Board:   bt,
		Leaders: leaders,
		Bonus:   bonus,
	}, 0)
	if err != nil {
		return err
	}
	board.StartDistribution(task.ID.Seq, s.now)
	for _, e := range entries {
		s.txn.DeleteBoardEntry(bt, e.Account)
	}
	s.e.log.Info("distribution started",
		"board", bt.String(),
		"id", task.ID.Seq,
		"leaders", len(leaders),
		"bonus", bonus.String())
	return nil
}

// distribute pays a board's bonus down a halving ladder: the leader
// takes half, the runner-up a quarter, and so on. The pool is debited
// by the whole reserved bonus, so whatever the ladder leaves over is
// burned rather than returned. While payouts are paused nothing moves
// and the reservation is simply released. Stale tasks, whose id no
// longer matches the board's in-flight distribution, are dropped.
func (e *Engine) distribute(task types.Task) error {
	return e.invoke(func(s *session) error {
		var dt types.DistributeTask
		if err := json.Unmarshal(task.Payload, &dt); err != nil {
			return fmt.Errorf("decode distribute task: %w", err)
		}
		board := s.cfg.Board(dt.Board)
		if board.DistributionID != task.ID.Seq {
			s.e.log.Warn("stale distribution dropped", "board", dt.Board.String(), "id", task.ID.Seq)
			return nil
		}
		if dt.Caller != s.cfg.Admin && dt.Caller != s.cfg.Owner {
			return fmt.Errorf("%w: %s", ErrUnauthorized, dt.Caller)
		}
		if dt.Bonus.Amount <= 0 {
			return fmt.Errorf("%w: distribution %d carries no bonus", ErrPoolDrained, task.ID.Seq)
		}
		cmp, err := dt.Bonus.Cmp(s.cfg.PoolBalance)
		if err != nil {
			return err
		}
		if cmp > 0 {
			return fmt.Errorf("%w: bonus %s exceeds pool %s", ErrPoolDrained, dt.Bonus, s.cfg.PoolBalance)
		}

		if !s.cfg.PayoutEnabled {
			board.StopDistribution()
			s.notice("%s board distribution %d skipped, payouts are paused", dt.Board, task.ID.Seq)
			return nil
		}

		share := asset.New(dt.Bonus.Amount/2, dt.Bonus.Symbol)
		for rank, leader := range dt.Leaders {
			if share.Amount <= 0 {
				break
			}
			s.transfer(leader, share,
				fmt.Sprintf("%s leaderboard bonus, rank %d", dt.Board, rank+1))
			share = asset.New(share.Amount/2, share.Symbol)
		}

		if s.cfg.PoolBalance, err = s.cfg.PoolBalance.Sub(dt.Bonus); err != nil {
			return err
		}

		board.StopDistribution()
		s.notice("%s board distribution %d paid %s down to %d leaders",
			dt.Board, task.ID.Seq, dt.Bonus, len(dt.Leaders))
		return nil
	})
}
