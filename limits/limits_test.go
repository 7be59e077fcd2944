// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package limits

import (
	"math/big"
	"testing"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

var token = common.HexToAddress("0x00000000000000000000000000000000000000a1")

// fakeClock is a controllable timestamp source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func TestUnconfiguredTokenIsUnlimited(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.RecordDeposit(token, big.NewInt(1_000_000_000)))
	require.NoError(t, m.RecordWithdraw(token, big.NewInt(1_000_000_000)))
}

func TestPerTxLimit(t *testing.T) {
	clock := newFakeClock()
	m := New(clock.now)
	m.SetDepositLimits(token, big.NewInt(1000), big.NewInt(300))

	require.NoError(t, m.RecordDeposit(token, big.NewInt(300)))
	require.ErrorIs(t, m.RecordDeposit(token, big.NewInt(301)), ErrPerTxLimit)

	// Failed call left the counter untouched
	require.Equal(t, big.NewInt(300), m.DepositedToday(token))
}

func TestDailyLimit(t *testing.T) {
	clock := newFakeClock()
	m := New(clock.now)
	m.SetDepositLimits(token, big.NewInt(1000), big.NewInt(0))

	require.NoError(t, m.RecordDeposit(token, big.NewInt(600)))
	require.NoError(t, m.RecordDeposit(token, big.NewInt(400)))

	// Crossing call fails with zero state change
	require.ErrorIs(t, m.RecordDeposit(token, big.NewInt(1)), ErrDailyLimit)
	require.Equal(t, big.NewInt(1000), m.DepositedToday(token))
}

func TestDailyReset(t *testing.T) {
	clock := newFakeClock()
	m := New(clock.now)
	m.SetDepositLimits(token, big.NewInt(1000), big.NewInt(0))

	require.NoError(t, m.RecordDeposit(token, big.NewInt(1000)))
	require.ErrorIs(t, m.RecordDeposit(token, big.NewInt(1)), ErrDailyLimit)

	// Next day the counter lazily resets to zero
	clock.advance(24 * time.Hour)
	require.Equal(t, big.NewInt(0), m.DepositedToday(token))
	require.NoError(t, m.RecordDeposit(token, big.NewInt(1000)))
}

func TestUndoDeposit(t *testing.T) {
	clock := newFakeClock()
	m := New(clock.now)
	m.SetDepositLimits(token, big.NewInt(1000), big.NewInt(0))

	require.NoError(t, m.RecordDeposit(token, big.NewInt(600)))
	m.UndoDeposit(token, big.NewInt(600))
	require.Equal(t, big.NewInt(0), m.DepositedToday(token))

	// The returned allowance is usable again
	require.NoError(t, m.RecordDeposit(token, big.NewInt(1000)))

	// Undo never drives the counter negative
	m.UndoDeposit(token, big.NewInt(2000))
	require.Equal(t, big.NewInt(0), m.DepositedToday(token))
}

func TestDepositWithdrawIndependent(t *testing.T) {
	clock := newFakeClock()
	m := New(clock.now)
	m.SetDepositLimits(token, big.NewInt(100), big.NewInt(0))
	m.SetWithdrawLimits(token, big.NewInt(500), big.NewInt(0))

	require.NoError(t, m.RecordDeposit(token, big.NewInt(100)))
	require.NoError(t, m.RecordWithdraw(token, big.NewInt(500)))

	require.ErrorIs(t, m.RecordDeposit(token, big.NewInt(1)), ErrDailyLimit)
	require.Equal(t, big.NewInt(500), m.WithdrawnToday(token))
}

func TestCheckDoesNotCount(t *testing.T) {
	clock := newFakeClock()
	m := New(clock.now)
	m.SetDepositLimits(token, big.NewInt(100), big.NewInt(0))

	require.NoError(t, m.CheckDeposit(token, big.NewInt(100)))
	require.NoError(t, m.CheckDeposit(token, big.NewInt(100)))
	require.Equal(t, big.NewInt(0), m.DepositedToday(token))

	require.NoError(t, m.RecordDeposit(token, big.NewInt(60)))
	require.ErrorIs(t, m.CheckDeposit(token, big.NewInt(41)), ErrDailyLimit)
}
