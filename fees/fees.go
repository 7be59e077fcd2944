// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fees computes and splits the directional bridge fee across the
// reward-account set. Rates are expressed in parts per million and must stay
// strictly below 100%. The integer remainder of an even split goes to one
// pseudo-randomly chosen account; the entropy source is injected by the
// caller and is not assumed to be unpredictable.
package fees

import (
	"encoding/binary"
	"errors"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Scale is the fee-rate denominator: 1_000_000 ppm == 100%.
const Scale = 1_000_000

// Direction identifies which way across the bridge a transfer moves.
type Direction uint8

const (
	HomeToForeign Direction = iota
	ForeignToHome
)

// Errors
var (
	ErrInvalidFee       = errors.New("fee rate must be below 100%")
	ErrZeroAddress      = errors.New("reward account cannot be zero")
	ErrDuplicateAccount = errors.New("reward account already present")
	ErrUnknownAccount   = errors.New("reward account not present")
)

// Share is one reward account's cut of a distributed fee.
type Share struct {
	Account common.Address
	Amount  *big.Int
}

// Manager holds the directional fee rates and the ordered reward-account set.
type Manager struct {
	rates    map[Direction]uint64
	accounts []common.Address

	entropy func() common.Hash
	nonce   uint64

	mu sync.Mutex
}

// New creates a fee manager. entropy seeds remainder assignment; nil falls
// back to a zero seed (distributions still advance an internal nonce, so
// successive remainders rotate rather than stick).
func New(entropy func() common.Hash) *Manager {
	if entropy == nil {
		entropy = func() common.Hash { return common.Hash{} }
	}
	return &Manager{
		rates:   make(map[Direction]uint64),
		entropy: entropy,
	}
}

// SetFee sets the rate for one direction, in ppm.
func (m *Manager) SetFee(direction Direction, ratePpm uint64) error {
	if ratePpm >= Scale {
		return ErrInvalidFee
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[direction] = ratePpm
	return nil
}

// Fee returns the configured rate for one direction, in ppm.
func (m *Manager) Fee(direction Direction) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rates[direction]
}

// AddRewardAccount appends a distinct, non-zero account to the reward set.
func (m *Manager) AddRewardAccount(account common.Address) error {
	if account == (common.Address{}) {
		return ErrZeroAddress
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.accounts {
		if a == account {
			return ErrDuplicateAccount
		}
	}
	m.accounts = append(m.accounts, account)
	return nil
}

// RemoveRewardAccount removes an account from the reward set.
func (m *Manager) RemoveRewardAccount(account common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, a := range m.accounts {
		if a == account {
			m.accounts = append(m.accounts[:i], m.accounts[i+1:]...)
			return nil
		}
	}
	return ErrUnknownAccount
}

// RewardAccounts returns a copy of the ordered reward set.
func (m *Manager) RewardAccounts() []common.Address {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]common.Address, len(m.accounts))
	copy(out, m.accounts)
	return out
}

// CalculateFee returns floor(value * rate / Scale). The result never
// exceeds value because rates are strictly below Scale.
func (m *Manager) CalculateFee(direction Direction, value *big.Int) *big.Int {
	m.mu.Lock()
	rate := m.rates[direction]
	m.mu.Unlock()
	return feeOf(value, rate)
}

// DistributeFee splits value into the net bridged amount and the fee shares
// for the current reward set. With an empty set or a zero fee there are no
// shares and net equals value. net plus the sum of all shares always equals
// value exactly; the integer remainder of the even split is assigned whole
// to one pseudo-randomly selected account.
func (m *Manager) DistributeFee(direction Direction, value *big.Int) (net *big.Int, fee *big.Int, shares []Share) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fee = feeOf(value, m.rates[direction])
	if fee.Sign() == 0 || len(m.accounts) == 0 {
		return new(big.Int).Set(value), big.NewInt(0), nil
	}
	net = new(big.Int).Sub(value, fee)

	n := int64(len(m.accounts))
	perAccount := new(big.Int).Div(fee, big.NewInt(n))
	remainder := new(big.Int).Mod(fee, big.NewInt(n))

	lucky := m.pickIndex(len(m.accounts))
	shares = make([]Share, 0, n)
	for i, account := range m.accounts {
		amount := new(big.Int).Set(perAccount)
		if i == lucky {
			amount.Add(amount, remainder)
		}
		if amount.Sign() == 0 {
			continue
		}
		shares = append(shares, Share{Account: account, Amount: amount})
	}
	return net, fee, shares
}

// pickIndex derives the remainder recipient from the entropy seed and a
// per-distribution nonce. Weakly random on purpose: the original scheme
// seeds from observable chain state and compatibility matters more than
// unpredictability here.
func (m *Manager) pickIndex(n int) int {
	seed := m.entropy()
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], m.nonce)
	m.nonce++

	h := blake3.New()
	h.Write(seed[:])
	h.Write(nonce[:])
	digest := h.Sum(nil)

	return int(binary.BigEndian.Uint64(digest[:8]) % uint64(n))
}

// feeOf computes floor(value * rate / Scale) with a 512-bit intermediate so
// full-range token amounts cannot overflow.
func feeOf(value *big.Int, rate uint64) *big.Int {
	if rate == 0 || value == nil || value.Sign() <= 0 {
		return big.NewInt(0)
	}
	v, overflow := uint256.FromBig(value)
	if overflow {
		// Amounts beyond 2^256 never occur on-chain; fall back anyway.
		fee := new(big.Int).Mul(value, new(big.Int).SetUint64(rate))
		return fee.Div(fee, big.NewInt(Scale))
	}
	fee, _ := new(uint256.Int).MulDivOverflow(v, uint256.NewInt(rate), uint256.NewInt(Scale))
	if fee.IsZero() {
		// ToBig's zero is not canonical and trips deep comparisons
		return new(big.Int)
	}
	return fee.ToBig()
}
