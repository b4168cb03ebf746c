package keymanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"

	"github.com/stablepay-hq/payrunner/pkg/faults"
)

func testSeed(fill byte) []byte {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = fill
	}
	return seed
}

func TestFromMnemonicRejectsBadPhrases(t *testing.T) {
	valid24 := make([]string, 24)
	for i := range valid24 {
		valid24[i] = "abandon"
	}

	t.Run("wrong word count", func(t *testing.T) {
		_, err := FromMnemonic(valid24[:23])
		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.Configuration))
		assert.Contains(t, err.Error(), "24 words")
	})

	t.Run("unknown word", func(t *testing.T) {
		words := make([]string, 24)
		copy(words, valid24)
		words[7] = "xyzzy"

		_, err := FromMnemonic(words)
		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.Configuration))
		assert.Contains(t, err.Error(), "unknown word")
	})

	t.Run("empty phrase", func(t *testing.T) {
		_, err := FromMnemonic(nil)
		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.Configuration))
	})
}

func TestFromSeedIsDeterministic(t *testing.T) {
	a, err := FromSeed(testSeed(0x01))
	require.NoError(t, err)
	b, err := FromSeed(testSeed(0x01))
	require.NoError(t, err)
	c, err := FromSeed(testSeed(0x02))
	require.NoError(t, err)

	assert.Equal(t, a.Address().String(), b.Address().String())
	assert.Equal(t, a.PublicKey(), b.PublicKey())
	assert.NotEqual(t, a.Address().String(), c.Address().String())
}

func TestFromSeedRejectsWrongLength(t *testing.T) {
	_, err := FromSeed(make([]byte, 16))
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.Configuration))
}

func TestSignIsRepeatable(t *testing.T) {
	signer, err := FromSeed(testSeed(0x03))
	require.NoError(t, err)

	msg := []byte("payout batch digest")
	assert.Equal(t, signer.Sign(msg), signer.Sign(msg))
	assert.Len(t, signer.Sign(msg), 64)
}

func TestVerifyTreasury(t *testing.T) {
	signer, err := FromSeed(testSeed(0x04))
	require.NoError(t, err)

	t.Run("matching address passes", func(t *testing.T) {
		expected := address.NewAddress(0, byte(signer.Address().Workchain()), signer.Address().Data())
		assert.NoError(t, signer.VerifyTreasury(expected))
	})

	t.Run("mismatch is a fatal configuration error", func(t *testing.T) {
		other := address.NewAddress(0, 0, make([]byte, 32))
		err := signer.VerifyTreasury(other)
		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.Configuration))
		assert.Contains(t, err.Error(), "does not match configured treasury")
	})

	t.Run("nil treasury is rejected", func(t *testing.T) {
		err := signer.VerifyTreasury(nil)
		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.Configuration))
	})
}
