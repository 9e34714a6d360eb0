// Package gamestore persists the engine's tables through an
// infra.KVStore. Every invocation runs inside a Txn: reads see staged
// writes, and nothing reaches the underlying store until Commit. An
// abandoned Txn leaves the store untouched, which gives the engine its
// all-or-nothing invocation semantics.
package gamestore

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/eosnow-bet/dice/internal/types"
	"github.com/eosnow-bet/dice/pkg/infra"
)

const (
	keyConfig     = "config/main"
	keyLimits     = "config/limits"
	keyTokenStats = "config/token_stats"
	keyBonusTiers = "config/ante_tiers"
	keyJackpotSeq = "jackpots/seq"

	prefixPlayers   = "players/"
	prefixReferrals = "referrals/"
	prefixJackpots  = "jackpots/rec/"
	prefixBoardDay  = "board/day/"
	prefixBoardMon  = "board/month/"
)

// BetLedger selects one of the three bounded history ledgers.
type BetLedger string

const (
	LedgerPending BetLedger = "pending"
	LedgerAll     BetLedger = "all"
	LedgerHigh    BetLedger = "high"
	LedgerRare    BetLedger = "rare"
)

type Store struct {
	kv    infra.KVStore
	codec infra.Codec
}

func New(kv infra.KVStore) *Store {
	return &Store{kv: kv, codec: infra.JSON}
}

func (s *Store) Close() error {
	return s.kv.Close()
}

// Begin opens a staged transaction over the store.
func (s *Store) Begin() *Txn {
	return &Txn{
		store:  s,
		staged: make(map[string][]byte),
	}
}

// Txn stages mutations in memory. A nil staged value marks a delete.
type Txn struct {
	store     *Store
	staged    map[string][]byte
	committed bool
}

func (t *Txn) get(key string, v any) (bool, error) {
	if data, ok := t.staged[key]; ok {
		if data == nil {
			return false, nil
		}
		return true, t.store.codec.Unmarshal(data, v)
	}
	return t.store.kv.GetAny(key, v)
}

func (t *Txn) put(key string, v any) error {
	data, err := t.store.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("stage %s: %w", key, err)
	}
	t.staged[key] = data
	return nil
}

func (t *Txn) delete(key string) {
	t.staged[key] = nil
}

// list merges persisted pairs with staged mutations under a prefix.
func (t *Txn) list(prefix string) ([]*infra.KVPair, error) {
	pairs, err := t.store.kv.List(prefix)
	if err != nil {
		return nil, err
	}
	merged := make(map[string][]byte, len(pairs))
	for _, p := range pairs {
		merged[p.Key] = p.Value
	}
	for k, v := range t.staged {
		if len(k) < len(prefix) || k[:len(prefix)] != prefix {
			continue
		}
		if v == nil {
			delete(merged, k)
		} else {
			merged[k] = v
		}
	}
	out := make([]*infra.KVPair, 0, len(merged))
	for k, v := range merged {
		out = append(out, &infra.KVPair{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Commit flushes every staged write. Writes are applied key by key;
// the underlying store is single-writer in this process, so a partial
// flush can only happen on storage failure, which is fatal upstream.
func (t *Txn) Commit() error {
	if t.committed {
		return fmt.Errorf("transaction already committed")
	}
	keys := make([]string, 0, len(t.staged))
	for k := range t.staged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data := t.staged[k]
		if data == nil {
			if err := t.store.kv.Delete(k); err != nil {
				return fmt.Errorf("commit delete %s: %w", k, err)
			}
			continue
		}
		if err := t.store.kv.Set(k, string(data)); err != nil {
			return fmt.Errorf("commit set %s: %w", k, err)
		}
	}
	t.committed = true
	return nil
}

// --- config singletons --- //

func (t *Txn) Config() (*types.GlobalConfig, bool, error) {
	var cfg types.GlobalConfig
	found, err := t.get(keyConfig, &cfg)
	return &cfg, found, err
}

func (t *Txn) PutConfig(cfg *types.GlobalConfig) error {
	return t.put(keyConfig, cfg)
}

func (t *Txn) Limits() (*types.Limits, bool, error) {
	var lim types.Limits
	found, err := t.get(keyLimits, &lim)
	return &lim, found, err
}

func (t *Txn) PutLimits(lim *types.Limits) error {
	return t.put(keyLimits, lim)
}

func (t *Txn) TokenStats() (*types.TokenStats, bool, error) {
	var ts types.TokenStats
	found, err := t.get(keyTokenStats, &ts)
	return &ts, found, err
}

func (t *Txn) PutTokenStats(ts *types.TokenStats) error {
	return t.put(keyTokenStats, ts)
}

// --- bonus tiers --- //

func (t *Txn) BonusTiers() ([]types.BonusTier, error) {
	var tiers []types.BonusTier
	if _, err := t.get(keyBonusTiers, &tiers); err != nil {
		return nil, err
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Begin < tiers[j].Begin })
	return tiers, nil
}

func (t *Txn) PutBonusTiers(tiers []types.BonusTier) error {
	return t.put(keyBonusTiers, tiers)
}

// --- bet history ledgers --- //

func betKey(ledger BetLedger, id uint64) string {
	return fmt.Sprintf("bets/%s/%020d", ledger, id)
}

func (t *Txn) Bet(ledger BetLedger, id uint64) (*types.BetRecord, bool, error) {
	var rec types.BetRecord
	found, err := t.get(betKey(ledger, id), &rec)
	return &rec, found, err
}

func (t *Txn) PutBet(ledger BetLedger, rec *types.BetRecord) error {
	return t.put(betKey(ledger, rec.ID), rec)
}

func (t *Txn) DeleteBet(ledger BetLedger, id uint64) {
	t.delete(betKey(ledger, id))
}

// ListBets returns a ledger's records in ascending id order.
func (t *Txn) ListBets(ledger BetLedger) ([]types.BetRecord, error) {
	pairs, err := t.list(fmt.Sprintf("bets/%s/", ledger))
	if err != nil {
		return nil, err
	}
	out := make([]types.BetRecord, 0, len(pairs))
	for _, p := range pairs {
		var rec types.BetRecord
		if err := t.store.codec.Unmarshal(p.Value, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// --- players --- //

func (t *Txn) Player(account string) (*types.Player, bool, error) {
	var p types.Player
	found, err := t.get(prefixPlayers+account, &p)
	return &p, found, err
}

func (t *Txn) PutPlayer(p *types.Player) error {
	return t.put(prefixPlayers+p.Account, p)
}

// --- referrals --- //

func (t *Txn) Referral(player string) (*types.Referral, bool, error) {
	var r types.Referral
	found, err := t.get(prefixReferrals+player, &r)
	return &r, found, err
}

func (t *Txn) PutReferral(r *types.Referral) error {
	return t.put(prefixReferrals+r.Player, r)
}

// --- jackpots --- //

func (t *Txn) AppendJackpot(rec *types.JackpotRecord) error {
	var seq uint64
	if data, ok := t.staged[keyJackpotSeq]; ok && data != nil {
		if err := t.store.codec.Unmarshal(data, &seq); err != nil {
			return err
		}
	} else {
		raw, err := t.store.kv.Get(keyJackpotSeq)
		if err != nil && err != infra.ErrKeyNotFound {
			return err
		}
		if raw != "" {
			seq, err = strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("parse jackpot seq: %w", err)
			}
		}
	}
	rec.ID = seq
	if err := t.put(fmt.Sprintf("%s%020d", prefixJackpots, rec.ID), rec); err != nil {
		return err
	}
	return t.put(keyJackpotSeq, seq+1)
}

func (t *Txn) Jackpots() ([]types.JackpotRecord, error) {
	pairs, err := t.list(prefixJackpots)
	if err != nil {
		return nil, err
	}
	out := make([]types.JackpotRecord, 0, len(pairs))
	for _, p := range pairs {
		var rec types.JackpotRecord
		if err := t.store.codec.Unmarshal(p.Value, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// --- leaderboards --- //

func boardPrefix(board types.BoardType) string {
	if board == types.BoardMonth {
		return prefixBoardMon
	}
	return prefixBoardDay
}

func (t *Txn) BoardEntry(board types.BoardType, account string) (*types.BoardEntry, bool, error) {
	var e types.BoardEntry
	found, err := t.get(boardPrefix(board)+account, &e)
	return &e, found, err
}

func (t *Txn) PutBoardEntry(board types.BoardType, e *types.BoardEntry) error {
	return t.put(boardPrefix(board)+e.Account, e)
}

func (t *Txn) DeleteBoardEntry(board types.BoardType, account string) {
	t.delete(boardPrefix(board) + account)
}

// ListBoard returns every entry of a board, highest bet amount first.
func (t *Txn) ListBoard(board types.BoardType) ([]types.BoardEntry, error) {
	pairs, err := t.list(boardPrefix(board))
	if err != nil {
		return nil, err
	}
	out := make([]types.BoardEntry, 0, len(pairs))
	for _, p := range pairs {
		var e types.BoardEntry
		if err := t.store.codec.Unmarshal(p.Value, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Stats.TotalBetAmount > out[j].Stats.TotalBetAmount
	})
	return out, nil
}
