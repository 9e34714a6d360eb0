package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// ChainTip is the external entropy sampled when a roll is resolved.
// Number and Prefix come from whatever head-of-ledger source the
// deployment trusts; a process-local provider is fine for a single
// operator.
type ChainTip struct {
	Number uint32
	Prefix uint32
}

// TipProvider supplies the current tip.
type TipProvider interface {
	Tip() ChainTip
}

// Generator produces roll values by repeatedly folding entropy into a
// running SHA-256 state. The sequence is fully determined by the two
// seeds it is constructed from.
type Generator struct {
	seed  [32]byte
	mixed [32]byte
}

// NewGenerator combines a system seed with a user seed.
func NewGenerator(sysSeed, userSeed [32]byte) *Generator {
	return &Generator{
		seed:  sysSeed,
		mixed: mix(sysSeed, userSeed),
	}
}

// Next returns a value in [0, max). Returns 0 when max is 0.
func (g *Generator) Next(max uint64) uint64 {
	g.seed = mix(g.mixed, g.seed)
	if max == 0 {
		return 0
	}
	return binary.LittleEndian.Uint64(g.seed[8:16]) % max
}

func (g *Generator) Seed() string {
	return hex.EncodeToString(g.seed[:])
}

func mix(a, b [32]byte) [32]byte {
	h := sha256.New()
	h.Write(a[:])
	h.Write(b[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// SystemSeed derives entropy from a per-roll nonce and the chain tip.
func SystemSeed(nonce uint64, tip ChainTip) [32]byte {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], nonce)
	binary.LittleEndian.PutUint32(buf[8:12], tip.Number)
	binary.LittleEndian.PutUint32(buf[12:16], tip.Prefix)
	return sha256.Sum256(buf[:])
}

// UserSeed hashes the raw task payload the player's wager produced.
func UserSeed(payload []byte) [32]byte {
	return sha256.Sum256(payload)
}
