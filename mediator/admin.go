// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mediator

import (
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/bridge/fees"
)

var (
	errNoFeeManager = errors.New("no fee manager configured")
	errNoRuleOracle = errors.New("no forwarding rules oracle configured")
)

// The administrative surface. Single writer, owner-gated, no batching:
// every operation authenticates the caller before touching anything.

func (m *Mediator) requireOwner(caller common.Address) error {
	if caller != m.cfg.Owner {
		return ErrUnauthorized
	}
	return nil
}

// AddNativeToken registers a token that lives on this chain. Its bridged
// escrow is held by the mediator and push transfers to the mediator start
// bridging it.
func (m *Mediator) AddNativeToken(caller common.Address, tok Token) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}

	tok.RegisterReceiver(m.cfg.Address, m)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tok.Address()] = tok
	m.native[tok.Address()] = true
	return nil
}

// SetFee sets the rate for one direction, in ppm.
func (m *Mediator) SetFee(caller common.Address, direction fees.Direction, ratePpm uint64) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	if m.fees == nil {
		return errNoFeeManager
	}
	return m.fees.SetFee(direction, ratePpm)
}

// AddRewardAccount adds an account to the fee reward set.
func (m *Mediator) AddRewardAccount(caller, account common.Address) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	if m.fees == nil {
		return errNoFeeManager
	}
	return m.fees.AddRewardAccount(account)
}

// RemoveRewardAccount removes an account from the fee reward set.
func (m *Mediator) RemoveRewardAccount(caller, account common.Address) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	if m.fees == nil {
		return errNoFeeManager
	}
	return m.fees.RemoveRewardAccount(account)
}

// SetDepositLimits configures a token's outbound caps.
func (m *Mediator) SetDepositLimits(caller, token common.Address, daily, perTx *big.Int) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	m.limits.SetDepositLimits(token, daily, perTx)
	return nil
}

// SetWithdrawLimits configures a token's inbound caps.
func (m *Mediator) SetWithdrawLimits(caller, token common.Address, daily, perTx *big.Int) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	m.limits.SetWithdrawLimits(token, daily, perTx)
	return nil
}

// SetForwardingRule routes matching transfers to the oracle-confirmed or
// fast lane.
func (m *Mediator) SetForwardingRule(caller, token, sender, receiver common.Address, oracleConfirmed bool) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	if m.rules == nil {
		return errNoRuleOracle
	}
	m.rules.SetRule(token, sender, receiver, oracleConfirmed)
	return nil
}

// RemoveForwardingRule drops a forwarding rule.
func (m *Mediator) RemoveForwardingRule(caller, token, sender, receiver common.Address) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	if m.rules == nil {
		return errNoRuleOracle
	}
	m.rules.RemoveRule(token, sender, receiver)
	return nil
}

// SetRequestGasLimit changes the execution gas requested per message.
func (m *Mediator) SetRequestGasLimit(caller common.Address, gasLimit uint64) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gasLimit = gasLimit
	return nil
}

// TransferTokenOwnership hands the mint/burn authority of a local token to
// newOwner, e.g. when migrating to a new mediator version.
func (m *Mediator) TransferTokenOwnership(caller, tokenAddr, newOwner common.Address) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}

	m.mu.Lock()
	tok, ok := m.tokens[tokenAddr]
	m.mu.Unlock()
	if !ok {
		return ErrTokenNotRegistered
	}
	return tok.TransferOwnership(m.cfg.Address, newOwner)
}
