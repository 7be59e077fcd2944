// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package limits enforces per-token bridging caps. Deposits (outbound
// transfers) and withdrawals (inbound executions) are counted separately.
// Daily counters reset lazily on the first access after a day boundary;
// nothing is ever scheduled.
package limits

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/luxfi/geth/common"
)

const daySeconds = 86400

// Errors
var (
	ErrPerTxLimit = errors.New("amount exceeds per-transaction limit")
	ErrDailyLimit = errors.New("amount exceeds daily limit")
)

// Limit tracks one token's caps and usage in one direction. A zero cap
// means unlimited.
type Limit struct {
	DailyLimit       *big.Int
	PerTxLimit       *big.Int
	AccumulatedToday *big.Int
	windowDay        int64
}

// Manager holds deposit and withdrawal limits for all tokens. The timestamp
// source is injected so callers control day-boundary detection; it must be
// monotonically non-decreasing.
type Manager struct {
	now func() time.Time

	deposits    map[common.Address]*Limit
	withdrawals map[common.Address]*Limit

	mu sync.Mutex
}

// New creates a limits manager. A nil now defaults to time.Now.
func New(now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		now:         now,
		deposits:    make(map[common.Address]*Limit),
		withdrawals: make(map[common.Address]*Limit),
	}
}

// SetDepositLimits configures the outbound caps for a token.
func (m *Manager) SetDepositLimits(token common.Address, daily, perTx *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(m.deposits, token, daily, perTx)
}

// SetWithdrawLimits configures the inbound caps for a token.
func (m *Manager) SetWithdrawLimits(token common.Address, daily, perTx *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(m.withdrawals, token, daily, perTx)
}

func (m *Manager) set(side map[common.Address]*Limit, token common.Address, daily, perTx *big.Int) {
	l := side[token]
	if l == nil {
		l = &Limit{AccumulatedToday: big.NewInt(0)}
		side[token] = l
	}
	l.DailyLimit = new(big.Int).Set(daily)
	l.PerTxLimit = new(big.Int).Set(perTx)
}

// CheckDeposit reports whether a deposit of value would fit within the
// token's outbound caps, without counting it.
func (m *Manager) CheckDeposit(token common.Address, value *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.check(m.deposits, token, value)
}

// CheckWithdraw reports whether a withdrawal of value would fit within the
// token's inbound caps, without counting it.
func (m *Manager) CheckWithdraw(token common.Address, value *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.check(m.withdrawals, token, value)
}

// RecordDeposit counts value against the token's outbound caps. On a limit
// error the counter is untouched.
func (m *Manager) RecordDeposit(token common.Address, value *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(m.deposits, token, value); err != nil {
		return err
	}
	m.record(m.deposits, token, value)
	return nil
}

// UndoDeposit returns value to the token's outbound allowance after a
// counted deposit is rolled back within the same invocation. The counter
// never goes below zero.
func (m *Manager) UndoDeposit(token common.Address, value *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.deposits[token]
	if l == nil {
		return
	}
	m.rollWindow(l)
	l.AccumulatedToday.Sub(l.AccumulatedToday, value)
	if l.AccumulatedToday.Sign() < 0 {
		l.AccumulatedToday.SetInt64(0)
	}
}

// RecordWithdraw counts value against the token's inbound caps. On a limit
// error the counter is untouched.
func (m *Manager) RecordWithdraw(token common.Address, value *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(m.withdrawals, token, value); err != nil {
		return err
	}
	m.record(m.withdrawals, token, value)
	return nil
}

// DepositedToday returns the outbound amount counted for the token in the
// current day window.
func (m *Manager) DepositedToday(token common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.deposits[token]
	if l == nil {
		return big.NewInt(0)
	}
	m.rollWindow(l)
	return new(big.Int).Set(l.AccumulatedToday)
}

// WithdrawnToday returns the inbound amount counted for the token in the
// current day window.
func (m *Manager) WithdrawnToday(token common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.withdrawals[token]
	if l == nil {
		return big.NewInt(0)
	}
	m.rollWindow(l)
	return new(big.Int).Set(l.AccumulatedToday)
}

func (m *Manager) check(side map[common.Address]*Limit, token common.Address, value *big.Int) error {
	l := side[token]
	if l == nil {
		// No limits configured for this token
		return nil
	}
	m.rollWindow(l)

	if l.PerTxLimit.Sign() > 0 && value.Cmp(l.PerTxLimit) > 0 {
		return ErrPerTxLimit
	}
	if l.DailyLimit.Sign() > 0 {
		total := new(big.Int).Add(l.AccumulatedToday, value)
		if total.Cmp(l.DailyLimit) > 0 {
			return ErrDailyLimit
		}
	}
	return nil
}

func (m *Manager) record(side map[common.Address]*Limit, token common.Address, value *big.Int) {
	l := side[token]
	if l == nil {
		return
	}
	l.AccumulatedToday.Add(l.AccumulatedToday, value)
}

// rollWindow resets the accumulator when the current day differs from the
// window the counter was accumulated in.
func (m *Manager) rollWindow(l *Limit) {
	day := m.now().Unix() / daySeconds
	if day != l.windowDay {
		l.AccumulatedToday = big.NewInt(0)
		l.windowDay = day
	}
}
