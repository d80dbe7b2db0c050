// Package chain defines the Bitcoin network parameters the deposit wallet
// allocator derives addresses against. All chain-specific values are
// hardcoded here - no external configuration needed.
package chain

// Network represents mainnet or testnet.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// Params contains the parameters needed to derive and encode addresses for
// a Bitcoin-family network.
type Params struct {
	Name     string // Bitcoin, Bitcoin Testnet
	Decimals uint8

	// BIP44 derivation
	CoinType       uint32 // BIP44 coin type (0 mainnet, 1 testnet)
	DefaultPurpose uint32 // 84 - native SegWit (bc1q...)

	// Network params
	PubKeyHashAddrID byte
	ScriptHashAddrID byte
	Bech32HRP        string
	WIF              byte

	// BIP32 HD key magic bytes (xpub/xprv serialization)
	HDPrivateKeyID [4]byte
	HDPublicKeyID  [4]byte
}

// DerivationPath returns the BIP44 derivation path for this chain.
// Format: m/purpose'/coin'/account'/change/index
func (p *Params) DerivationPath(account, change, index uint32) []uint32 {
	return []uint32{
		p.DefaultPurpose + 0x80000000,
		p.CoinType + 0x80000000,
		account + 0x80000000,
		change,
		index,
	}
}

// DerivationPathString returns the derivation path as a string.
func (p *Params) DerivationPathString(account, change, index uint32) string {
	return formatPath(p.DefaultPurpose, p.CoinType, account, change, index)
}

func formatPath(purpose, coinType, account, change, index uint32) string {
	return "m/" +
		itoa(purpose) + "'/" +
		itoa(coinType) + "'/" +
		itoa(account) + "'/" +
		itoa(change) + "/" +
		itoa(index)
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// registry holds chain parameters indexed by network.
var registry = make(map[Network]*Params)

func register(network Network, params *Params) {
	registry[network] = params
}

// Get returns the Bitcoin chain params for a network.
func Get(network Network) (*Params, bool) {
	params, ok := registry[network]
	return params, ok
}
