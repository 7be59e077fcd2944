// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rules decides, per (token, sender, receiver), whether a transfer
// must take the oracle-confirmed lane or may use the fast lane. The zero
// address is a wildcard on any axis and the most specific matching rule
// wins. With no matching rule the fast lane applies.
package rules

import (
	"sync"

	"github.com/luxfi/geth/common"
)

type ruleKey struct {
	token    common.Address
	sender   common.Address
	receiver common.Address
}

// Oracle is the in-memory rule table. Callers are expected to query with
// the sending side's token identity so a rule binds the token pair rather
// than one direction.
type Oracle struct {
	rules map[ruleKey]bool

	mu sync.RWMutex
}

// New creates an empty oracle: everything defaults to the fast lane.
func New() *Oracle {
	return &Oracle{rules: make(map[ruleKey]bool)}
}

// SetRule installs or overwrites a rule. Zero addresses are wildcards.
func (o *Oracle) SetRule(token, sender, receiver common.Address, oracleConfirmed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rules[ruleKey{token, sender, receiver}] = oracleConfirmed
}

// RemoveRule drops a rule; lookups fall through to less specific ones.
func (o *Oracle) RemoveRule(token, sender, receiver common.Address) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.rules, ruleKey{token, sender, receiver})
}

// RequiresOracleConfirmation resolves the lane for a transfer. Exact axes
// beat wildcards, with token specificity weighing most and receiver least.
func (o *Oracle) RequiresOracleConfirmation(token, sender, receiver common.Address) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	wildcard := common.Address{}
	probes := []ruleKey{
		{token, sender, receiver},
		{token, sender, wildcard},
		{token, wildcard, receiver},
		{token, wildcard, wildcard},
		{wildcard, sender, receiver},
		{wildcard, sender, wildcard},
		{wildcard, wildcard, receiver},
		{wildcard, wildcard, wildcard},
	}
	for _, k := range probes {
		if confirmed, ok := o.rules[k]; ok {
			return confirmed
		}
	}
	return false
}
