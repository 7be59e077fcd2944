// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	tokenC = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func TestRegisterPair(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)

	require.NoError(t, r.RegisterPair(tokenA, tokenB))

	got, ok := r.PairOf(tokenA)
	require.True(t, ok)
	require.Equal(t, tokenB, got)

	got, ok = r.PairOf(tokenB)
	require.True(t, ok)
	require.Equal(t, tokenA, got)
}

func TestRegisterPairIdempotent(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)

	require.NoError(t, r.RegisterPair(tokenA, tokenB))
	require.NoError(t, r.RegisterPair(tokenA, tokenB))
	require.NoError(t, r.RegisterPair(tokenB, tokenA))
}

func TestRegisterPairMismatch(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)

	require.NoError(t, r.RegisterPair(tokenA, tokenB))

	require.ErrorIs(t, r.RegisterPair(tokenA, tokenC), ErrPairMismatch)
	require.ErrorIs(t, r.RegisterPair(tokenC, tokenB), ErrPairMismatch)

	// Original pairing untouched
	got, ok := r.PairOf(tokenA)
	require.True(t, ok)
	require.Equal(t, tokenB, got)
	_, ok = r.PairOf(tokenC)
	require.False(t, ok)
}

func TestRegisterPairZeroAddress(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)

	require.ErrorIs(t, r.RegisterPair(common.Address{}, tokenB), ErrZeroAddress)
	require.ErrorIs(t, r.RegisterPair(tokenA, common.Address{}), ErrZeroAddress)
}

func TestPairOfUnregistered(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)

	_, ok := r.PairOf(tokenA)
	require.False(t, ok)
	require.False(t, r.IsRegistered(tokenA))
}

func TestPersistence(t *testing.T) {
	db := memdb.New()
	defer db.Close()

	r, err := New(db)
	require.NoError(t, err)
	require.NoError(t, r.RegisterPair(tokenA, tokenB))

	// Reload from the same database
	reloaded, err := New(db)
	require.NoError(t, err)

	got, ok := reloaded.PairOf(tokenA)
	require.True(t, ok)
	require.Equal(t, tokenB, got)
	got, ok = reloaded.PairOf(tokenB)
	require.True(t, ok)
	require.Equal(t, tokenA, got)

	// And pairing is still immutable after reload
	require.ErrorIs(t, reloaded.RegisterPair(tokenA, tokenC), ErrPairMismatch)
}
