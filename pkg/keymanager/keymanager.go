// Package keymanager derives the treasury signing keypair from a secret
// recovery phrase and guards against paying out from the wrong account.
package keymanager

import (
	"bytes"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"strings"
	"sync"

	"github.com/tyler-smith/go-bip39"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"golang.org/x/crypto/pbkdf2"

	"github.com/stablepay-hq/payrunner/pkg/faults"
)

const (
	mnemonicWordCount = 24

	// TON mnemonic scheme constants: the phrase is the HMAC key, the seed is
	// stretched with PBKDF2-SHA512.
	basicSeedSalt    = "TON seed version"
	signingSeedSalt  = "TON default seed"
	pbkdf2Iterations = 100000
)

var (
	wordSetOnce sync.Once
	wordSet     map[string]struct{}
)

// englishWordSet returns the BIP-39 English word list as a set.
func englishWordSet() map[string]struct{} {
	wordSetOnce.Do(func() {
		words := bip39.GetWordList()
		wordSet = make(map[string]struct{}, len(words))
		for _, w := range words {
			wordSet[w] = struct{}{}
		}
	})
	return wordSet
}

// Signer holds the treasury keypair and its derived wallet address.
type Signer struct {
	priv ed25519.PrivateKey
	addr *address.Address
}

// FromMnemonic derives the treasury signer from a 24-word recovery phrase.
// All failures are configuration errors: they are fatal and happen before
// any row is touched.
func FromMnemonic(words []string) (*Signer, error) {
	if len(words) != mnemonicWordCount {
		return nil, faults.Configurationf(
			"recovery phrase must contain %d words, got %d", mnemonicWordCount, len(words))
	}
	valid := englishWordSet()
	for _, w := range words {
		if _, ok := valid[strings.ToLower(w)]; !ok {
			return nil, faults.Configurationf("recovery phrase contains an unknown word %q", w)
		}
	}

	mac := hmac.New(sha512.New, []byte(strings.Join(words, " ")))
	entropy := mac.Sum(nil)

	check := pbkdf2.Key(entropy, []byte(basicSeedSalt), pbkdf2Iterations/256, 64, sha512.New)
	if check[0] != 0 {
		return nil, faults.Configurationf("recovery phrase failed the seed version check")
	}

	seed := pbkdf2.Key(entropy, []byte(signingSeedSalt), pbkdf2Iterations, 32, sha512.New)
	return FromSeed(seed)
}

// FromSeed builds a signer from a raw 32-byte ed25519 seed. Deployments that
// hold the key material directly can skip mnemonic derivation.
func FromSeed(seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, faults.Configurationf("signing seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)

	addr, err := wallet.AddressFromPubKey(priv.Public().(ed25519.PublicKey), wallet.V4R2, wallet.DefaultSubwallet)
	if err != nil {
		return nil, faults.Wrap(faults.Configuration, err, "failed to derive wallet address")
	}
	return &Signer{priv: priv, addr: addr}, nil
}

// Address returns the derived treasury wallet address.
func (s *Signer) Address() *address.Address {
	return s.addr
}

// PublicKey returns the signing public key.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.priv.Public().(ed25519.PublicKey)
}

// Sign signs the given digest with the treasury key.
func (s *Signer) Sign(data []byte) []byte {
	return ed25519.Sign(s.priv, data)
}

// VerifyTreasury checks that the derived wallet address matches the configured
// treasury address. A mismatch means the process is holding the wrong secret
// and must not dispatch anything.
func (s *Signer) VerifyTreasury(expected *address.Address) error {
	if expected == nil {
		return faults.Configurationf("treasury address is not configured")
	}
	if s.addr.Workchain() != expected.Workchain() || !bytes.Equal(s.addr.Data(), expected.Data()) {
		return faults.Configurationf(
			"derived wallet address %s does not match configured treasury %s",
			s.addr.String(), expected.String())
	}
	return nil
}
