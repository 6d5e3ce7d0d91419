package relayer

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// relayerABIJSON is the subset of the batch relayer ABI used to run nested
// pool plans.
const relayerABIJSON = `[
	{
		"name": "joinPool",
		"type": "function",
		"stateMutability": "payable",
		"inputs": [
			{"name": "poolId", "type": "bytes32"},
			{"name": "kind", "type": "uint8"},
			{"name": "sender", "type": "address"},
			{"name": "recipient", "type": "address"},
			{"name": "request", "type": "tuple", "components": [
				{"name": "assets", "type": "address[]"},
				{"name": "maxAmountsIn", "type": "uint256[]"},
				{"name": "userData", "type": "bytes"},
				{"name": "fromInternalBalance", "type": "bool"}
			]},
			{"name": "value", "type": "uint256"},
			{"name": "outputReference", "type": "uint256"}
		],
		"outputs": []
	},
	{
		"name": "exitPool",
		"type": "function",
		"stateMutability": "payable",
		"inputs": [
			{"name": "poolId", "type": "bytes32"},
			{"name": "kind", "type": "uint8"},
			{"name": "sender", "type": "address"},
			{"name": "recipient", "type": "address"},
			{"name": "request", "type": "tuple", "components": [
				{"name": "assets", "type": "address[]"},
				{"name": "minAmountsOut", "type": "uint256[]"},
				{"name": "userData", "type": "bytes"},
				{"name": "toInternalBalance", "type": "bool"}
			]},
			{"name": "outputReferences", "type": "tuple[]", "components": [
				{"name": "index", "type": "uint256"},
				{"name": "key", "type": "uint256"}
			]}
		],
		"outputs": []
	},
	{
		"name": "peekChainedReferenceValue",
		"type": "function",
		"stateMutability": "view",
		"inputs": [
			{"name": "ref", "type": "uint256"}
		],
		"outputs": [
			{"name": "value", "type": "uint256"}
		]
	},
	{
		"name": "setRelayerApproval",
		"type": "function",
		"stateMutability": "payable",
		"inputs": [
			{"name": "relayer", "type": "address"},
			{"name": "approved", "type": "bool"},
			{"name": "authorisation", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"name": "multicall",
		"type": "function",
		"stateMutability": "payable",
		"inputs": [
			{"name": "data", "type": "bytes[]"}
		],
		"outputs": [
			{"name": "results", "type": "bytes[]"}
		]
	},
	{
		"name": "vaultActionsQueryMulticall",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "data", "type": "bytes[]"}
		],
		"outputs": [
			{"name": "results", "type": "bytes[]"}
		]
	}
]`

// ABI is the parsed relayer ABI.
var ABI = mustParseABI(relayerABIJSON)

func mustParseABI(abiJSON string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

var (
	uint256Type      = mustType("uint256")
	uint256ArrayType = mustType("uint256[]")

	// userData layouts of the pool join and exit kinds.
	joinExactTokensInArgs = abi.Arguments{{Type: uint256Type}, {Type: uint256ArrayType}, {Type: uint256Type}}
	exitSingleTokenArgs   = abi.Arguments{{Type: uint256Type}, {Type: uint256Type}, {Type: uint256Type}}
	exitProportionalArgs  = abi.Arguments{{Type: uint256Type}, {Type: uint256Type}}
)

// joinPoolRequest mirrors the vault's JoinPoolRequest tuple.
type joinPoolRequest struct {
	Assets              []common.Address
	MaxAmountsIn        []*big.Int
	UserData            []byte
	FromInternalBalance bool
}

// exitPoolRequest mirrors the vault's ExitPoolRequest tuple.
type exitPoolRequest struct {
	Assets            []common.Address
	MinAmountsOut     []*big.Int
	UserData          []byte
	ToInternalBalance bool
}

// outputReference stores the amount of asset Index under the reference Key.
type outputReference struct {
	Index *big.Int
	Key   *big.Int
}
