// Package randsrc supplies the integers consumed by card generation.
//
// Two interchangeable strategies exist: Local derives a seed from block
// context and Beacon derives it from a relayed verifiable-randomness round.
// Neither layer deduplicates draws; repeats across positions are allowed.
package randsrc

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"pricepicks/chain/internal/state"
)

const (
	localDomain  = "ppc/v1/rand/local"
	beaconDomain = "ppc/v1/rand/beacon"
)

// Source draws n identifiers, each independently in [0, max].
type Source interface {
	Draw(n int, max uint32) ([]uint32, error)
}

// Local derives draws from block context mixed with the game id. Callers
// cannot choose the seed, but a block proposer can influence it; adequate for
// non-adversarial play, not safe against ordering-privileged actors.
type Local struct {
	seed [32]byte
}

func NewLocal(chainDomain string, height int64, lastAppHash []byte, gameID uint64) *Local {
	var h8, g8 [8]byte
	binary.LittleEndian.PutUint64(h8[:], uint64(height))
	binary.LittleEndian.PutUint64(g8[:], gameID)
	return &Local{seed: hashDomain(localDomain, []byte(chainDomain), h8[:], lastAppHash, g8[:])}
}

func (l *Local) Draw(n int, max uint32) ([]uint32, error) {
	return drawFromSeed(l.seed, n, max)
}

// Beacon derives draws from an on-chain verifiable randomness round. The
// constructor fails when no usable beacon exists; this path never degrades to
// fabricated values.
type Beacon struct {
	seed [32]byte
}

func NewBeacon(b *state.RandomnessBeacon, gameID uint64, nowUnix int64, maxAgeSecs uint64) (*Beacon, error) {
	if b == nil {
		return nil, fmt.Errorf("verifiable randomness unavailable: no beacon round relayed")
	}
	if len(b.Value) != 32 {
		return nil, fmt.Errorf("beacon value must be 32 bytes, got %d", len(b.Value))
	}
	if nowUnix > b.UpdatedAt && uint64(nowUnix-b.UpdatedAt) > maxAgeSecs {
		return nil, fmt.Errorf("beacon round %d is stale: updated at %d, now %d", b.Round, b.UpdatedAt, nowUnix)
	}
	var r8, g8 [8]byte
	binary.LittleEndian.PutUint64(r8[:], b.Round)
	binary.LittleEndian.PutUint64(g8[:], gameID)
	return &Beacon{seed: hashDomain(beaconDomain, b.Value, r8[:], g8[:])}, nil
}

func (b *Beacon) Draw(n int, max uint32) ([]uint32, error) {
	return drawFromSeed(b.seed, n, max)
}

// drawFromSeed generates n values via a sha256(seed||counter) stream.
func drawFromSeed(seed [32]byte, n int, max uint32) ([]uint32, error) {
	if n <= 0 {
		return nil, fmt.Errorf("draw count must be > 0, got %d", n)
	}
	out := make([]uint32, 0, n)
	buf := make([]byte, len(seed)+8)
	copy(buf, seed[:])
	for counter := uint64(0); len(out) < n; counter++ {
		binary.LittleEndian.PutUint64(buf[len(seed):], counter)
		h := sha256.Sum256(buf)
		v := binary.LittleEndian.Uint64(h[:8]) % (uint64(max) + 1)
		out = append(out, uint32(v))
	}
	return out, nil
}

// hashDomain hashes length-prefixed parts under a domain label to avoid
// ambiguous concatenations.
func hashDomain(domain string, parts ...[]byte) [32]byte {
	h := sha256.New()
	_, _ = h.Write([]byte(domain))

	var lenBuf [4]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(p)))
		_, _ = h.Write(lenBuf[:])
		_, _ = h.Write(p)
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
