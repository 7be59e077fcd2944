// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"encoding/binary"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Factory deploys bridged token representations. Every deployment is owned
// by the configured token owner (the mediator), which is the only party
// allowed to mint and burn the representation.
type Factory struct {
	address    common.Address
	tokenOwner common.Address

	nonce    uint64
	deployed map[common.Address]*Token

	mu sync.Mutex
}

// NewFactory creates a factory. tokenOwner becomes the owner of every token
// it deploys.
func NewFactory(address, tokenOwner common.Address) *Factory {
	return &Factory{
		address:    address,
		tokenOwner: tokenOwner,
		deployed:   make(map[common.Address]*Token),
	}
}

// Deploy creates a new token ledger at a deterministic address derived from
// the factory address and its deployment nonce.
func (f *Factory) Deploy(name, symbol string, decimals uint8, chainID uint64) (*Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	addr := f.nextAddress()
	t := NewToken(addr, name, symbol, decimals, chainID, f.tokenOwner)
	f.deployed[addr] = t
	f.nonce++
	return t, nil
}

// Deployed returns the token previously deployed at addr, if any.
func (f *Factory) Deployed(addr common.Address) (*Token, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.deployed[addr]
	return t, ok
}

func (f *Factory) nextAddress() common.Address {
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], f.nonce)

	h := blake3.New()
	h.Write(f.address.Bytes())
	h.Write(nonce[:])
	digest := h.Sum(nil)

	return common.BytesToAddress(digest[:common.AddressLength])
}
