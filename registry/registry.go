// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry maintains the permanent bidirectional mapping between a
// token's home-chain and foreign-chain representations. Pairings are created
// the first time a token crosses the bridge and are never altered afterwards:
// minted supply on the far side already references the pairing, so removal
// would orphan it.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
)

// Storage key prefix for persisted pairings
var pairPrefix = []byte("registry/pair/")

// Errors
var (
	ErrZeroAddress  = errors.New("token address cannot be zero")
	ErrPairMismatch = errors.New("token already paired to a different counterpart")
)

// Registry is the persistent token-pair store. All pairings are mirrored in
// memory; the database is the durable copy.
type Registry struct {
	db    database.Database
	pairs map[common.Address]common.Address

	mu sync.RWMutex
}

// New creates a registry backed by db, loading any persisted pairings.
// A nil db yields a purely in-memory registry.
func New(db database.Database) (*Registry, error) {
	r := &Registry{
		db:    db,
		pairs: make(map[common.Address]common.Address),
	}
	if db != nil {
		if err := r.load(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) load() error {
	it := r.db.NewIteratorWithPrefix(pairPrefix)
	defer it.Release()

	for it.Next() {
		key := it.Key()
		if len(key) != len(pairPrefix)+common.AddressLength {
			return fmt.Errorf("corrupt pairing key 0x%x", key)
		}
		if len(it.Value()) != common.AddressLength {
			return fmt.Errorf("corrupt pairing value 0x%x", it.Value())
		}
		a := common.BytesToAddress(key[len(pairPrefix):])
		b := common.BytesToAddress(it.Value())
		r.pairs[a] = b
	}
	return it.Error()
}

// RegisterPair records a permanent pairing between a and b. Re-registering
// the exact same pairing is a no-op; pairing either token to a different
// counterpart fails with ErrPairMismatch.
func (r *Registry) RegisterPair(a, b common.Address) error {
	if a == (common.Address{}) || b == (common.Address{}) {
		return ErrZeroAddress
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.pairs[a]; ok {
		if existing == b {
			return nil
		}
		return fmt.Errorf("%w: %s -> %s", ErrPairMismatch, a.Hex(), existing.Hex())
	}
	if existing, ok := r.pairs[b]; ok {
		if existing == a {
			return nil
		}
		return fmt.Errorf("%w: %s -> %s", ErrPairMismatch, b.Hex(), existing.Hex())
	}

	if r.db != nil {
		if err := r.db.Put(pairKey(a), b.Bytes()); err != nil {
			return err
		}
		if err := r.db.Put(pairKey(b), a.Bytes()); err != nil {
			return err
		}
	}

	r.pairs[a] = b
	r.pairs[b] = a
	return nil
}

// PairOf returns the token paired with the given one. The second return is
// false when the token has never been paired.
func (r *Registry) PairOf(token common.Address) (common.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paired, ok := r.pairs[token]
	return paired, ok
}

// IsRegistered reports whether the token participates in any pairing.
func (r *Registry) IsRegistered(token common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.pairs[token]
	return ok
}

func pairKey(token common.Address) []byte {
	key := make([]byte, 0, len(pairPrefix)+common.AddressLength)
	key = append(key, pairPrefix...)
	return append(key, token.Bytes()...)
}
