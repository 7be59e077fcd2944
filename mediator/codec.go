// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mediator

import (
	"fmt"
	"math/big"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
)

// Relayed calls are ABI-encoded invocations of the counterpart mediator:
// a 4-byte selector followed by ABI-packed arguments.
var (
	addressType = mustType("address")
	stringType  = mustType("string")
	uint8Type   = mustType("uint8")
	uint256Type = mustType("uint256")

	// handleBridgedTokens(address token, address recipient, uint256 value)
	handleArgs     = abi.Arguments{{Type: addressType}, {Type: addressType}, {Type: uint256Type}}
	selectorHandle = selector("handleBridgedTokens(address,address,uint256)")

	// deployAndHandleBridgedTokens(address token, string name, string symbol,
	//   uint8 decimals, address recipient, uint256 value)
	deployArgs     = abi.Arguments{{Type: addressType}, {Type: stringType}, {Type: stringType}, {Type: uint8Type}, {Type: addressType}, {Type: uint256Type}}
	selectorDeploy = selector("deployAndHandleBridgedTokens(address,string,string,uint8,address,uint256)")
)

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %s: %v", name, err))
	}
	return t
}

func selector(signature string) [4]byte {
	var s [4]byte
	copy(s[:], crypto.Keccak256([]byte(signature)))
	return s
}

// bridgedTokensCall is a decoded handleBridgedTokens invocation.
type bridgedTokensCall struct {
	Token     common.Address
	Recipient common.Address
	Value     *big.Int
}

// deployCall is a decoded deployAndHandleBridgedTokens invocation.
type deployCall struct {
	Token     common.Address
	Name      string
	Symbol    string
	Decimals  uint8
	Recipient common.Address
	Value     *big.Int
}

func encodeHandleBridgedTokens(token, recipient common.Address, value *big.Int) ([]byte, error) {
	packed, err := handleArgs.Pack(token, recipient, value)
	if err != nil {
		return nil, fmt.Errorf("pack handleBridgedTokens: %w", err)
	}
	return append(selectorHandle[:], packed...), nil
}

func encodeDeployAndHandleBridgedTokens(token common.Address, name, symbol string, decimals uint8, recipient common.Address, value *big.Int) ([]byte, error) {
	packed, err := deployArgs.Pack(token, name, symbol, decimals, recipient, value)
	if err != nil {
		return nil, fmt.Errorf("pack deployAndHandleBridgedTokens: %w", err)
	}
	return append(selectorDeploy[:], packed...), nil
}

func decodeHandleBridgedTokens(args []byte) (*bridgedTokensCall, error) {
	vals, err := handleArgs.Unpack(args)
	if err != nil {
		return nil, fmt.Errorf("unpack handleBridgedTokens: %w", err)
	}
	return &bridgedTokensCall{
		Token:     vals[0].(common.Address),
		Recipient: vals[1].(common.Address),
		Value:     vals[2].(*big.Int),
	}, nil
}

func decodeDeployAndHandleBridgedTokens(args []byte) (*deployCall, error) {
	vals, err := deployArgs.Unpack(args)
	if err != nil {
		return nil, fmt.Errorf("unpack deployAndHandleBridgedTokens: %w", err)
	}
	return &deployCall{
		Token:     vals[0].(common.Address),
		Name:      vals[1].(string),
		Symbol:    vals[2].(string),
		Decimals:  vals[3].(uint8),
		Recipient: vals[4].(common.Address),
		Value:     vals[5].(*big.Int),
	}, nil
}
