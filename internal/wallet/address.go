// Package wallet allocates per-account Bitcoin deposit wallets: a fresh
// BIP39 mnemonic, HD-derived P2WPKH address, and at-rest encryption of the
// derived secrets.
package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/klingon-exchange/accountcore/internal/chain"
)

// deriveP2WPKH derives a native SegWit address (bc1q...) from a public key.
func deriveP2WPKH(pubKey *btcec.PublicKey, params *chaincfg.Params) (string, error) {
	pubKeyHash := btcutil.Hash160(pubKey.SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, params)
	if err != nil {
		return "", fmt.Errorf("failed to create P2WPKH address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// PrivateKeyToWIF converts a private key to Wallet Import Format.
func PrivateKeyToWIF(privKey *btcec.PrivateKey, params *chain.Params) (string, error) {
	chainParams := toChainCfgParams(params)
	wif, err := btcutil.NewWIF(privKey, chainParams, true)
	if err != nil {
		return "", fmt.Errorf("failed to create WIF: %w", err)
	}
	return wif.String(), nil
}

// toChainCfgParams converts our chain.Params to btcd's chaincfg.Params.
func toChainCfgParams(params *chain.Params) *chaincfg.Params {
	return &chaincfg.Params{
		Name: params.Name,

		PubKeyHashAddrID: params.PubKeyHashAddrID,
		ScriptHashAddrID: params.ScriptHashAddrID,
		Bech32HRPSegwit:  params.Bech32HRP,
		PrivateKeyID:     params.WIF,

		HDPrivateKeyID: params.HDPrivateKeyID,
		HDPublicKeyID:  params.HDPublicKeyID,
	}
}

// deriveMasterKey derives the BIP32 master extended key from a raw seed.
func deriveMasterKey(seed []byte, params *chain.Params) (*hdkeychain.ExtendedKey, error) {
	master, err := hdkeychain.NewMaster(seed, toChainCfgParams(params))
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}
	return master, nil
}

// deriveAccountKey walks the BIP44 path m/84'/coin'/0'/0/0 (external, first
// address) from a master key.
func deriveAccountKey(master *hdkeychain.ExtendedKey, params *chain.Params) (*hdkeychain.ExtendedKey, error) {
	purposeKey, err := master.Derive(hdkeychain.HardenedKeyStart + params.DefaultPurpose)
	if err != nil {
		return nil, fmt.Errorf("failed to derive purpose: %w", err)
	}
	coinKey, err := purposeKey.Derive(hdkeychain.HardenedKeyStart + params.CoinType)
	if err != nil {
		return nil, fmt.Errorf("failed to derive coin: %w", err)
	}
	accountKey, err := coinKey.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return nil, fmt.Errorf("failed to derive account: %w", err)
	}
	changeKey, err := accountKey.Derive(0)
	if err != nil {
		return nil, fmt.Errorf("failed to derive change: %w", err)
	}
	addressKey, err := changeKey.Derive(0)
	if err != nil {
		return nil, fmt.Errorf("failed to derive address: %w", err)
	}
	return addressKey, nil
}
