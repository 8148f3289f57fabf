package deck

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNGIsDeterministic(t *testing.T) {
	a := NewRNG([]byte("same"))
	b := NewRNG([]byte("same"))

	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Uint64(), b.Uint64())
	}
}

func TestRNGIntnBounds(t *testing.T) {
	r := NewRNG([]byte("bounds"))
	for i := 0; i < 1000; i++ {
		v := r.Intn(13)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 13)
	}
}

func TestNewHandRNGUsesEntropy(t *testing.T) {
	fixed := bytes.NewReader(bytes.Repeat([]byte{0xAB}, 64))
	r1, seed1, err := NewHandRNG(fixed)
	require.NoError(t, err)
	require.Len(t, seed1, 64)

	r2, err := NewRNGFromHex(seed1)
	require.NoError(t, err)
	assert.Equal(t, r1.Uint64(), r2.Uint64(), "seed hex must reproduce the stream")
}

func TestDeriveRunSeeds(t *testing.T) {
	publicSeed := PublicSeedFromContext("room-1:hand-1")
	seeds := DeriveRunSeeds(publicSeed, "hand-1", 2)

	require.Len(t, seeds, 2)
	for _, s := range seeds {
		assert.Len(t, s, 64, "seeds are 64-hex sha256 digests")
	}
	assert.NotEqual(t, seeds[0], seeds[1])

	// Same inputs, same seeds
	again := DeriveRunSeeds(publicSeed, "hand-1", 2)
	assert.Equal(t, seeds, again)
}

func TestVerifySeeds(t *testing.T) {
	publicSeed := PublicSeedFromContext("room-1:hand-1")
	seeds := DeriveRunSeeds(publicSeed, "hand-1", 3)
	chain := ChainSeeds(publicSeed, seeds)

	require.Len(t, chain, 3)
	assert.True(t, VerifySeeds(seeds, chain, publicSeed, "hand-1"))

	// Tampered seed fails
	bad := append([]string{}, seeds...)
	bad[1] = bad[0]
	assert.False(t, VerifySeeds(bad, chain, publicSeed, "hand-1"))

	// Tampered chain fails
	badChain := append([]string{}, chain...)
	badChain[2] = badChain[0]
	assert.False(t, VerifySeeds(seeds, badChain, publicSeed, "hand-1"))

	// Wrong nonce fails
	assert.False(t, VerifySeeds(seeds, chain, publicSeed, "hand-2"))

	// Length mismatch fails
	assert.False(t, VerifySeeds(seeds[:2], chain, publicSeed, "hand-1"))
}

func TestSeededRunsProduceDisjointBoards(t *testing.T) {
	base := NewShuffled(NewRNG([]byte("baseline")))
	base.MustDraw(4) // hole cards gone, board not yet dealt

	publicSeed := PublicSeedFromContext("room-1:hand-1")
	seeds := DeriveRunSeeds(publicSeed, "hand-1", 2)

	// Runs share one fork of the baseline: each run reshuffles the
	// undrawn suffix with its seed and then draws, so later runs can
	// never repeat an earlier run's cards.
	fork := base.Fork()
	boards := make([][]Card, 2)
	for i, seedHex := range seeds {
		rng, err := NewRNGFromHex(seedHex)
		require.NoError(t, err)
		fork.Reshuffle(rng)
		boards[i] = fork.MustDraw(5)
	}

	for _, a := range boards[0] {
		for _, b := range boards[1] {
			assert.NotEqual(t, a, b, "run boards must be disjoint")
		}
	}
	assert.Equal(t, 4, base.DrawnCount(), "baseline cursor untouched")
}
