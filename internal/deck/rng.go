package deck

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
)

// EntropySource supplies raw entropy for public seeds. The production
// source is crypto/rand; tests supply a fixed reader.
type EntropySource interface {
	Read(p []byte) (int, error)
}

// CryptoEntropy reads from crypto/rand
type CryptoEntropy struct{}

func (CryptoEntropy) Read(p []byte) (int, error) {
	return rand.Read(p)
}

// RNG is a deterministic random stream keyed by a 32-byte seed. The
// stream is SHA-256 over (seed || counter), consumed 8 bytes at a time.
// Every shuffle in the engine draws from one of these so a hand is fully
// reproducible from its seed.
type RNG struct {
	seed    [32]byte
	counter uint64
	buf     [32]byte
	used    int
}

// NewRNG creates a stream RNG keyed by the given seed bytes
func NewRNG(seed []byte) *RNG {
	return &RNG{seed: sha256.Sum256(seed), used: 32}
}

// NewRNGFromHex creates a stream RNG from a hex-encoded seed
func NewRNGFromHex(seedHex string) (*RNG, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("invalid seed hex: %w", err)
	}
	return NewRNG(seed), nil
}

// NewHandRNG keys a stream RNG from fresh entropy. Used for the initial
// hand shuffle; the seed is retained by the caller for audit.
func NewHandRNG(entropy EntropySource) (*RNG, string, error) {
	seed := make([]byte, 32)
	if _, err := io.ReadFull(entropy, seed); err != nil {
		return nil, "", fmt.Errorf("read entropy: %w", err)
	}
	return NewRNG(seed), hex.EncodeToString(seed), nil
}

func (r *RNG) next8() uint64 {
	if r.used+8 > len(r.buf) {
		var block [40]byte
		copy(block[:32], r.seed[:])
		binary.BigEndian.PutUint64(block[32:], r.counter)
		r.counter++
		r.buf = sha256.Sum256(block[:])
		r.used = 0
	}
	v := binary.BigEndian.Uint64(r.buf[r.used : r.used+8])
	r.used += 8
	return v
}

// Uint64 returns the next 64 bits of the stream
func (r *RNG) Uint64() uint64 {
	return r.next8()
}

// Intn returns a uniform value in [0, n). Rejection sampling keeps the
// shuffle unbiased.
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		panic("Intn: n must be positive")
	}
	max := ^uint64(0) - ^uint64(0)%uint64(n)
	for {
		v := r.next8()
		if v < max {
			return int(v % uint64(n))
		}
	}
}

// NewPublicSeed mixes server entropy with caller-supplied context
// (e.g. "room-1:hand-42") into an auditable public seed.
func NewPublicSeed(entropy EntropySource, context string) (string, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(entropy, buf); err != nil {
		return "", fmt.Errorf("read entropy: %w", err)
	}
	h := sha256.New()
	h.Write(buf)
	h.Write([]byte(context))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// PublicSeedFromContext derives a public seed from context alone.
// Used by verification and by tests that need a reproducible seed.
func PublicSeedFromContext(context string) string {
	sum := sha256.Sum256([]byte(context))
	return hex.EncodeToString(sum[:])
}

// DeriveRunSeeds derives n per-run seeds: seed_i = H(publicSeed || handNonce || i)
func DeriveRunSeeds(publicSeed, handNonce string, n int) []string {
	seeds := make([]string, n)
	for i := 0; i < n; i++ {
		h := sha256.New()
		h.Write([]byte(publicSeed))
		h.Write([]byte(handNonce))
		var idx [8]byte
		binary.BigEndian.PutUint64(idx[:], uint64(i))
		h.Write(idx[:])
		seeds[i] = hex.EncodeToString(h.Sum(nil))
	}
	return seeds
}

// ChainSeeds builds the audit hash chain over derived seeds:
// chain_0 = H(publicSeed); chain_i = H(chain_{i-1} || seed_i).
func ChainSeeds(publicSeed string, seeds []string) []string {
	chain := make([]string, len(seeds))
	prev := sha256.Sum256([]byte(publicSeed))
	for i, seed := range seeds {
		h := sha256.New()
		h.Write(prev[:])
		h.Write([]byte(seed))
		sum := h.Sum(nil)
		chain[i] = hex.EncodeToString(sum)
		copy(prev[:], sum)
	}
	return chain
}

// VerifySeeds recomputes the seed derivation and hash chain and compares
// them against the announced values
func VerifySeeds(seeds, chain []string, publicSeed, handNonce string) bool {
	if len(seeds) != len(chain) {
		return false
	}
	expectSeeds := DeriveRunSeeds(publicSeed, handNonce, len(seeds))
	for i := range seeds {
		if seeds[i] != expectSeeds[i] {
			return false
		}
	}
	expectChain := ChainSeeds(publicSeed, seeds)
	for i := range chain {
		if chain[i] != expectChain[i] {
			return false
		}
	}
	return true
}
