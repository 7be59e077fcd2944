// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token models the bridgeable tokens the mediator moves: an
// in-process ledger with owner-gated mint/burn and ERC677-style
// transfer-and-call. The callback on transfer is what lets a push-style
// transfer reach the mediator, and also what makes the mediator's own pull
// re-enter it.
package token

import (
	"errors"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
)

// Errors
var (
	ErrUnauthorized        = errors.New("caller is not the token owner")
	ErrZeroAddress         = errors.New("address cannot be zero")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Receiver is implemented by contracts that accept transfer callbacks.
type Receiver interface {
	OnTokenTransfer(token, from common.Address, value *big.Int, data []byte) error
}

// Token is a single token ledger. Mint and burn are restricted to the owner
// (the mediator for bridged representations).
type Token struct {
	address  common.Address
	name     string
	symbol   string
	decimals uint8
	chainID  uint64

	owner       common.Address
	balances    map[common.Address]*big.Int
	totalSupply *big.Int
	receivers   map[common.Address]Receiver

	mu sync.RWMutex
}

// NewToken creates an empty ledger.
func NewToken(address common.Address, name, symbol string, decimals uint8, chainID uint64, owner common.Address) *Token {
	return &Token{
		address:     address,
		name:        name,
		symbol:      symbol,
		decimals:    decimals,
		chainID:     chainID,
		owner:       owner,
		balances:    make(map[common.Address]*big.Int),
		totalSupply: big.NewInt(0),
		receivers:   make(map[common.Address]Receiver),
	}
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Name() string            { return t.name }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return t.decimals }
func (t *Token) ChainID() uint64         { return t.chainID }

// Owner returns the current mint/burn authority.
func (t *Token) Owner() common.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.owner
}

// TransferOwnership hands the mint/burn authority to newOwner.
func (t *Token) TransferOwnership(caller, newOwner common.Address) error {
	if newOwner == (common.Address{}) {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.owner {
		return ErrUnauthorized
	}
	t.owner = newOwner
	return nil
}

// RegisterReceiver installs a transfer callback for addr. Transfers to addr
// made with TransferAndCall will invoke it synchronously.
func (t *Token) RegisterReceiver(addr common.Address, r Receiver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.receivers[addr] = r
}

// BalanceOf returns the balance of addr.
func (t *Token) BalanceOf(addr common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if b, ok := t.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return big.NewInt(0)
}

// TotalSupply returns the minted supply.
func (t *Token) TotalSupply() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.totalSupply)
}

// Mint creates value tokens for to. Owner only.
func (t *Token) Mint(caller, to common.Address, value *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.owner {
		return ErrUnauthorized
	}
	t.credit(to, value)
	t.totalSupply.Add(t.totalSupply, value)
	return nil
}

// Burn destroys value tokens held by from. Owner only.
func (t *Token) Burn(caller, from common.Address, value *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.owner {
		return ErrUnauthorized
	}
	if err := t.debit(from, value); err != nil {
		return err
	}
	t.totalSupply.Sub(t.totalSupply, value)
	return nil
}

// Transfer moves value from from to to without invoking callbacks.
func (t *Token) Transfer(from, to common.Address, value *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.debit(from, value); err != nil {
		return err
	}
	t.credit(to, value)
	return nil
}

// TransferAndCall moves value and, when to has a registered receiver,
// invokes its callback synchronously. A callback error reverts the
// transfer.
func (t *Token) TransferAndCall(from, to common.Address, value *big.Int, data []byte) error {
	if err := t.Transfer(from, to, value); err != nil {
		return err
	}

	t.mu.RLock()
	receiver := t.receivers[to]
	t.mu.RUnlock()

	if receiver == nil {
		return nil
	}
	// Callback runs without the ledger lock held: it may re-enter this
	// token (burn, transfer) through the mediator.
	if err := receiver.OnTokenTransfer(t.address, from, value, data); err != nil {
		if undo := t.Transfer(to, from, value); undo != nil {
			return errors.Join(err, undo)
		}
		return err
	}
	return nil
}

func (t *Token) credit(addr common.Address, value *big.Int) {
	b, ok := t.balances[addr]
	if !ok {
		b = big.NewInt(0)
		t.balances[addr] = b
	}
	b.Add(b, value)
}

func (t *Token) debit(addr common.Address, value *big.Int) error {
	b, ok := t.balances[addr]
	if !ok || b.Cmp(value) < 0 {
		return ErrInsufficientBalance
	}
	b.Sub(b, value)
	return nil
}
