package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/tyler-smith/go-bip39"

	"github.com/klingon-exchange/accountcore/internal/chain"
)

// Material is the full set of values produced for a newly allocated
// deposit wallet. EncryptedMnemonic and EncryptedPrivateKey are ready to
// persist directly into the account row.
type Material struct {
	Address             string
	PublicKeyHex        string
	EncryptedMnemonic   string
	EncryptedPrivateKey string
}

// Generator allocates deposit wallets. The credential service depends on
// this interface so tests can substitute a deterministic fake.
type Generator interface {
	Generate() (*Material, error)
}

// HDGenerator generates a fresh BIP39 mnemonic per account and derives a
// single P2WPKH address at m/84'/coin'/0'/0/0. Secrets are encrypted with
// serverKey before being handed back for storage.
type HDGenerator struct {
	network   chain.Network
	serverKey string
}

// NewHDGenerator constructs a generator for the given network. serverKey is
// the custodial service's master encryption passphrase; it never touches
// the account holder's own password.
func NewHDGenerator(network chain.Network, serverKey string) *HDGenerator {
	return &HDGenerator{network: network, serverKey: serverKey}
}

// Generate mints a new mnemonic, derives the first external address, and
// encrypts the mnemonic and private key for storage.
func (g *HDGenerator) Generate() (*Material, error) {
	params, ok := chain.Get(g.network)
	if !ok {
		return nil, fmt.Errorf("unsupported network: %s", g.network)
	}

	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("failed to generate mnemonic: %w", err)
	}

	seed := bip39.NewSeed(mnemonic, "")
	defer secureClear(seed)

	master, err := deriveMasterKey(seed, params)
	if err != nil {
		return nil, err
	}
	addressKey, err := deriveAccountKey(master, params)
	if err != nil {
		return nil, err
	}

	pubKey, err := addressKey.ECPubKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}
	privKey, err := addressKey.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get private key: %w", err)
	}

	address, err := deriveP2WPKH(pubKey, toChainCfgParams(params))
	if err != nil {
		return nil, err
	}
	wif, err := PrivateKeyToWIF(privKey, params)
	if err != nil {
		return nil, err
	}

	encryptedMnemonic, err := encryptSecret([]byte(mnemonic), g.serverKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt mnemonic: %w", err)
	}
	encryptedPrivateKey, err := encryptSecret([]byte(wif), g.serverKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt private key: %w", err)
	}

	return &Material{
		Address:             address,
		PublicKeyHex:        hex.EncodeToString(pubKey.SerializeCompressed()),
		EncryptedMnemonic:   encryptedMnemonic,
		EncryptedPrivateKey: encryptedPrivateKey,
	}, nil
}

// DecryptMnemonic recovers the plaintext mnemonic for an allocated wallet.
// Used only by operator tooling; never by the signup/login path.
func DecryptMnemonic(encrypted, serverKey string) (string, error) {
	plaintext, err := decryptSecret(encrypted, serverKey)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// DecryptPrivateKeyWIF recovers the plaintext WIF private key for an
// allocated wallet.
func DecryptPrivateKeyWIF(encrypted, serverKey string) (string, error) {
	plaintext, err := decryptSecret(encrypted, serverKey)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
