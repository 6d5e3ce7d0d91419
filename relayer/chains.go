package relayer

import "github.com/ethereum/go-ethereum/common"

// Chain describes the relayer deployment on one chain.
type Chain struct {
	ID            uint64
	Relayer       common.Address
	WrappedNative common.Address
}

// Mainnet is the Ethereum mainnet deployment.
var Mainnet = Chain{
	ID:            1,
	Relayer:       common.HexToAddress("0x35Cea9e57A393ac66Aaa7E25C391D52C74B5648f"),
	WrappedNative: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
}

var knownChains = map[uint64]Chain{
	Mainnet.ID: Mainnet,
}

// ChainByID returns the known deployment for id.
func ChainByID(id uint64) (Chain, bool) {
	c, ok := knownChains[id]
	return c, ok
}
