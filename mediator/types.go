// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mediator implements the orchestration core of the token bridge:
// the reentrancy-guarded transfer initiation path, message construction and
// lane selection, inbound execution, and failed-message recovery. One
// Mediator instance runs on each chain; the transport relays encoded calls
// between them with at-most-once execution.
package mediator

import (
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/bridge/token"
)

// DefaultRequestGasLimit is the execution gas requested for relayed calls.
const DefaultRequestGasLimit = 1_000_000

// Errors
var (
	ErrTokenNotRegistered = errors.New("token not registered with this mediator")
	ErrZeroReceiver       = errors.New("receiver cannot be zero")
	ErrReceiverIsMediator = errors.New("receiver cannot be the mediator itself")
	ErrZeroValue          = errors.New("value must be positive")
	ErrGuardHeld          = errors.New("transfer already in progress")
	ErrUnauthorized       = errors.New("caller lacks the required role")
	ErrUnknownMessage     = errors.New("no record for message id")
	ErrAlreadyFixed       = errors.New("message already fixed")
	ErrMessageNotFailed   = errors.New("transport has not confirmed the message failed")
	ErrUnknownMethod      = errors.New("unknown method selector")
)

// Token is the ledger surface the mediator drives. *token.Token satisfies
// it; tests substitute hostile implementations.
type Token interface {
	Address() common.Address
	Name() string
	Symbol() string
	Decimals() uint8
	BalanceOf(addr common.Address) *big.Int
	Mint(caller, to common.Address, value *big.Int) error
	Burn(caller, from common.Address, value *big.Int) error
	Transfer(from, to common.Address, value *big.Int) error
	TransferAndCall(from, to common.Address, value *big.Int, data []byte) error
	TransferOwnership(caller, newOwner common.Address) error
	RegisterReceiver(addr common.Address, r token.Receiver)
}

// Transport is the AMB delivery surface. *amb.Endpoint satisfies it.
type Transport interface {
	// Address is the caller identity the transport presents when it
	// executes relayed calls on this chain.
	Address() common.Address
	SourceChainID() *big.Int
	RequireToPassMessage(target common.Address, data []byte, gasLimit uint64) (common.Hash, error)
	RequireToConfirmMessage(target common.Address, data []byte, gasLimit uint64) (common.Hash, error)
	MessageFailed(id common.Hash) bool
}

// TokenFactory deploys bridged representations of remote tokens.
// Invoked exactly once per newly observed remote token.
type TokenFactory interface {
	Deploy(name, symbol string, decimals uint8, chainID uint64) (*token.Token, error)
}

// MessageRecord is the sending-side bookkeeping for one in-flight message.
// Read-only once written, except for the one-time fixed mark.
type MessageRecord struct {
	ID           common.Hash
	Token        common.Address
	Value        *big.Int
	OriginSender common.Address
	Fixed        bool
	// Register marks the message that announced the token to the
	// counterpart; fixing it rolls the announcement back.
	Register bool
}
