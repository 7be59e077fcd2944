// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mediator

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/bridge/fees"
	"github.com/luxfi/bridge/limits"
	"github.com/luxfi/bridge/registry"
	"github.com/luxfi/bridge/rules"
)

// Config carries the mediator's identity and policy knobs.
type Config struct {
	// Address is the mediator's own account: escrow holder for native
	// tokens and mint/burn authority for bridged ones.
	Address common.Address
	// Counterpart is the remote mediator, the target of relayed calls.
	Counterpart common.Address
	// Owner is the administrative authority.
	Owner common.Address
	// IsHome selects which fee direction outbound transfers use.
	IsHome bool
	// RequestGasLimit is passed to the transport per message; zero means
	// DefaultRequestGasLimit.
	RequestGasLimit uint64
	// Log defaults to a test logger when nil.
	Log log.Logger
}

// Components are the collaborators injected at construction.
type Components struct {
	DB        database.Database
	Registry  *registry.Registry
	Limits    *limits.Manager
	Fees      *fees.Manager // nil disables fees
	Rules     *rules.Oracle // nil means fast lane always
	Factory   TokenFactory
	Transport Transport
}

// Mediator orchestrates one side of the bridge.
type Mediator struct {
	cfg Config
	log log.Logger

	registry  *registry.Registry
	limits    *limits.Manager
	fees      *fees.Manager
	rules     *rules.Oracle
	factory   TokenFactory
	transport Transport
	records   *recordStore

	tokens map[common.Address]Token
	// native marks tokens held in escrow here; everything else in tokens
	// is a bridged representation the mediator mints and burns.
	native map[common.Address]bool
	// announced marks native tokens whose deploying message has been
	// dispatched, so later transfers skip the deploy variant.
	announced map[common.Address]bool

	gasLimit      uint64
	lastMessageID common.Hash

	// entered is the reentrancy guard. It is held only for the duration
	// of a token pull, whose callback arrives synchronously on the same
	// goroutine; it is deliberately not a Go mutex.
	entered bool

	mu sync.Mutex
}

// New wires a mediator from its components.
func New(cfg Config, comp Components) (*Mediator, error) {
	switch {
	case cfg.Address == (common.Address{}):
		return nil, fmt.Errorf("%w: mediator address", errMissingConfig)
	case cfg.Counterpart == (common.Address{}):
		return nil, fmt.Errorf("%w: counterpart address", errMissingConfig)
	case cfg.Owner == (common.Address{}):
		return nil, fmt.Errorf("%w: owner address", errMissingConfig)
	case comp.Registry == nil:
		return nil, fmt.Errorf("%w: registry", errMissingConfig)
	case comp.Limits == nil:
		return nil, fmt.Errorf("%w: limits manager", errMissingConfig)
	case comp.Factory == nil:
		return nil, fmt.Errorf("%w: token factory", errMissingConfig)
	case comp.Transport == nil:
		return nil, fmt.Errorf("%w: transport", errMissingConfig)
	}

	logger := cfg.Log
	if logger == nil {
		logger = log.NewTestLogger(log.InfoLevel)
	}
	gasLimit := cfg.RequestGasLimit
	if gasLimit == 0 {
		gasLimit = DefaultRequestGasLimit
	}

	return &Mediator{
		cfg:       cfg,
		log:       logger,
		registry:  comp.Registry,
		limits:    comp.Limits,
		fees:      comp.Fees,
		rules:     comp.Rules,
		factory:   comp.Factory,
		transport: comp.Transport,
		records:   newRecordStore(comp.DB),
		tokens:    make(map[common.Address]Token),
		native:    make(map[common.Address]bool),
		announced: make(map[common.Address]bool),
		gasLimit:  gasLimit,
	}, nil
}

var errMissingConfig = errors.New("mediator misconfigured")

// Address returns the mediator's own account.
func (m *Mediator) Address() common.Address { return m.cfg.Address }

// Owner returns the administrative authority.
func (m *Mediator) Owner() common.Address { return m.cfg.Owner }

// LastMessageID returns the most recently dispatched message id. It doubles
// as the chain-state entropy feed for fee remainder assignment.
func (m *Mediator) LastMessageID() common.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMessageID
}

// Record returns the stored MessageRecord for id.
func (m *Mediator) Record(id common.Hash) (*MessageRecord, error) {
	rec, err := m.records.get(id)
	if err != nil {
		return nil, err
	}
	cp := *rec
	cp.Value = new(big.Int).Set(rec.Value)
	return &cp, nil
}

// Token returns the local token registered under addr.
func (m *Mediator) Token(addr common.Address) (Token, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[addr]
	return tok, ok
}

// IsNativeToken reports whether addr is escrowed here rather than minted.
func (m *Mediator) IsNativeToken(addr common.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.native[addr]
}

// RelayTokens bridges value of the given token from caller to receiver on
// the other chain. The caller's balance is pulled into the mediator's
// escrow; the pull's synchronous callback into OnTokenTransfer is absorbed
// by the reentrancy guard. Any failure leaves caller balances and counters
// unchanged.
func (m *Mediator) RelayTokens(caller, tokenAddr, receiver common.Address, value *big.Int) (common.Hash, error) {
	m.mu.Lock()
	if m.entered {
		m.mu.Unlock()
		return common.Hash{}, ErrGuardHeld
	}
	tok, ok := m.tokens[tokenAddr]
	if !ok {
		m.mu.Unlock()
		return common.Hash{}, ErrTokenNotRegistered
	}
	m.mu.Unlock()

	if err := validateTransfer(m.cfg.Address, receiver, value); err != nil {
		return common.Hash{}, err
	}
	if err := m.limits.CheckDeposit(tokenAddr, value); err != nil {
		return common.Hash{}, err
	}

	// Guard held only across the pull: the transfer callback it triggers
	// re-enters this mediator on the same goroutine.
	m.mu.Lock()
	m.entered = true
	m.mu.Unlock()

	pullErr := tok.TransferAndCall(caller, m.cfg.Address, value, nil)

	m.mu.Lock()
	m.entered = false
	m.mu.Unlock()

	if pullErr != nil {
		return common.Hash{}, fmt.Errorf("token pull: %w", pullErr)
	}

	id, err := m.bridgeOut(tok, caller, receiver, value)
	if err != nil {
		// Return the pulled balance; nothing else has been touched.
		if undo := tok.Transfer(m.cfg.Address, caller, value); undo != nil {
			return common.Hash{}, errors.Join(err, undo)
		}
		return common.Hash{}, err
	}
	return id, nil
}

// OnTokenTransfer is the ERC677 transfer callback. During the mediator's
// own pull it is a deliberate no-op that absorbs the reentrant invocation.
// Outside of a pull it is the push-style bridging path: data may carry the
// remote receiver address, defaulting to the sender. Returning an error
// makes the calling token revert the transfer.
func (m *Mediator) OnTokenTransfer(tokenAddr, from common.Address, value *big.Int, data []byte) error {
	m.mu.Lock()
	if m.entered {
		m.mu.Unlock()
		return nil
	}
	tok, ok := m.tokens[tokenAddr]
	m.mu.Unlock()
	if !ok {
		return ErrTokenNotRegistered
	}

	receiver := from
	if len(data) == common.AddressLength {
		receiver = common.BytesToAddress(data)
	}
	if err := validateTransfer(m.cfg.Address, receiver, value); err != nil {
		return err
	}

	_, err := m.bridgeOut(tok, from, receiver, value)
	return err
}

// bridgeOut runs the shared outbound pipeline. The bridged value is already
// held in the mediator's escrow. All fallible steps come before the first
// ledger mutation so a failure reverts to the caller with no local effects.
func (m *Mediator) bridgeOut(tok Token, from, receiver common.Address, value *big.Int) (common.Hash, error) {
	tokenAddr := tok.Address()

	// Count the deposit before dispatching so a concurrent transfer cannot
	// pass the cap while a message consuming the same allowance is already
	// in flight. A dispatch failure below returns the allowance.
	if err := m.limits.RecordDeposit(tokenAddr, value); err != nil {
		return common.Hash{}, err
	}

	// Outbound fee is carved out of the bridged amount before the
	// burn/lock amount is derived.
	net := new(big.Int).Set(value)
	var shares []fees.Share
	if m.fees != nil {
		net, _, shares = m.fees.DistributeFee(m.outboundDirection(), value)
	}

	id, err := m.passMessage(tok, from, receiver, net)
	if err != nil {
		m.limits.UndoDeposit(tokenAddr, value)
		return common.Hash{}, err
	}

	// Nothing below can fail: the escrow holds the full pulled value
	// covering both shares and net.
	for _, s := range shares {
		if err := tok.Transfer(m.cfg.Address, s.Account, s.Amount); err != nil {
			return common.Hash{}, err
		}
	}
	if !m.IsNativeToken(tokenAddr) {
		if err := tok.Burn(m.cfg.Address, m.cfg.Address, net); err != nil {
			return common.Hash{}, err
		}
	}

	m.log.Info("bridged tokens out",
		"token", tokenAddr, "from", from, "receiver", receiver,
		"value", value, "net", net, "message", id)
	return id, nil
}

// passMessage encodes the counterpart invocation, selects the delivery
// lane, dispatches, and stores the MessageRecord.
func (m *Mediator) passMessage(tok Token, from, receiver common.Address, net *big.Int) (common.Hash, error) {
	tokenAddr := tok.Address()

	var (
		data     []byte
		err      error
		register bool
	)
	switch paired, ok := m.registry.PairOf(tokenAddr); {
	case ok:
		// Pairing known: address the counterpart's own token directly.
		data, err = encodeHandleBridgedTokens(paired, receiver, net)
	case m.isAnnounced(tokenAddr):
		// Counterpart resolves our address through its registry.
		data, err = encodeHandleBridgedTokens(tokenAddr, receiver, net)
	case m.IsNativeToken(tokenAddr):
		// First bridging of a native token: ship the metadata so the
		// counterpart can deploy its representation.
		data, err = encodeDeployAndHandleBridgedTokens(tokenAddr, tok.Name(), tok.Symbol(), tok.Decimals(), receiver, net)
		register = true
	default:
		return common.Hash{}, ErrTokenNotRegistered
	}
	if err != nil {
		return common.Hash{}, err
	}

	var id common.Hash
	if m.rules != nil && m.rules.RequiresOracleConfirmation(tokenAddr, from, receiver) {
		id, err = m.transport.RequireToConfirmMessage(m.cfg.Counterpart, data, m.gasLimit)
	} else {
		id, err = m.transport.RequireToPassMessage(m.cfg.Counterpart, data, m.gasLimit)
	}
	if err != nil {
		return common.Hash{}, fmt.Errorf("transport: %w", err)
	}

	rec := &MessageRecord{
		ID:           id,
		Token:        tokenAddr,
		Value:        new(big.Int).Set(net),
		OriginSender: from,
		Register:     register,
	}
	if err := m.records.put(rec); err != nil {
		return common.Hash{}, err
	}

	m.mu.Lock()
	m.lastMessageID = id
	if register {
		m.announced[tokenAddr] = true
	}
	m.mu.Unlock()
	return id, nil
}

// HandleMessage executes a relayed call from the counterpart. Only the
// transport may invoke it.
func (m *Mediator) HandleMessage(caller common.Address, data []byte) error {
	if caller != m.transport.Address() {
		return ErrUnauthorized
	}

	m.mu.Lock()
	if m.entered {
		m.mu.Unlock()
		return ErrGuardHeld
	}
	m.mu.Unlock()

	if len(data) < 4 {
		return ErrUnknownMethod
	}
	var sel [4]byte
	copy(sel[:], data[:4])
	args := data[4:]

	switch sel {
	case selectorHandle:
		call, err := decodeHandleBridgedTokens(args)
		if err != nil {
			return err
		}
		return m.handleBridgedTokens(call)
	case selectorDeploy:
		call, err := decodeDeployAndHandleBridgedTokens(args)
		if err != nil {
			return err
		}
		return m.deployAndHandleBridgedTokens(call)
	default:
		return ErrUnknownMethod
	}
}

// handleBridgedTokens executes an inbound transfer of a known token. The
// token argument is either one of our local tokens (a native token coming
// home, or our bridged representation) or the counterpart's address for a
// token we have paired.
func (m *Mediator) handleBridgedTokens(call *bridgedTokensCall) error {
	tok, err := m.resolveLocal(call.Token)
	if err != nil {
		return err
	}
	return m.executeInbound(tok, call.Recipient, call.Value)
}

// deployAndHandleBridgedTokens executes the first inbound transfer of a
// remote token, deploying and pairing a local representation if one does
// not exist yet. Pairing idempotence guarantees at most one deploy per
// remote token even when several announcing messages arrive.
func (m *Mediator) deployAndHandleBridgedTokens(call *deployCall) error {
	tok, err := m.resolveLocal(call.Token)
	if errors.Is(err, ErrTokenNotRegistered) {
		// Validate before deploying: the pairing is permanent once the
		// representation exists, so nothing after the deploy may fail. A
		// failed execution must leave no trace on this side.
		if err := validateTransfer(m.cfg.Address, call.Recipient, call.Value); err != nil {
			return err
		}
		tok, err = m.deployRepresentation(call)
	}
	if err != nil {
		return err
	}
	return m.executeInbound(tok, call.Recipient, call.Value)
}

func (m *Mediator) deployRepresentation(call *deployCall) (Token, error) {
	deployed, err := m.factory.Deploy(call.Name, call.Symbol, call.Decimals, m.transport.SourceChainID().Uint64())
	if err != nil {
		return nil, fmt.Errorf("deploy representation: %w", err)
	}
	if err := m.registry.RegisterPair(call.Token, deployed.Address()); err != nil {
		return nil, err
	}

	deployed.RegisterReceiver(m.cfg.Address, m)

	m.mu.Lock()
	m.tokens[deployed.Address()] = deployed
	m.mu.Unlock()

	m.log.Info("deployed bridged token",
		"remote", call.Token, "local", deployed.Address(), "symbol", call.Symbol)
	return deployed, nil
}

// resolveLocal maps a token address from an inbound message onto a local
// token object.
func (m *Mediator) resolveLocal(addr common.Address) (Token, error) {
	m.mu.Lock()
	if tok, ok := m.tokens[addr]; ok {
		m.mu.Unlock()
		return tok, nil
	}
	m.mu.Unlock()

	if local, ok := m.registry.PairOf(addr); ok {
		m.mu.Lock()
		tok, ok := m.tokens[local]
		m.mu.Unlock()
		if ok {
			return tok, nil
		}
	}
	return nil, ErrTokenNotRegistered
}

// executeInbound mints or unlocks value for recipient. The inbound fee is
// taken out of the amount being minted or released, never out of existing
// balances.
func (m *Mediator) executeInbound(tok Token, recipient common.Address, value *big.Int) error {
	tokenAddr := tok.Address()

	if err := validateTransfer(m.cfg.Address, recipient, value); err != nil {
		return err
	}
	isNative := m.IsNativeToken(tokenAddr)
	if isNative && tok.BalanceOf(m.cfg.Address).Cmp(value) < 0 {
		return fmt.Errorf("escrow underfunded for %s", tokenAddr.Hex())
	}
	if err := m.limits.RecordWithdraw(tokenAddr, value); err != nil {
		return err
	}

	net := new(big.Int).Set(value)
	var shares []fees.Share
	if m.fees != nil {
		net, _, shares = m.fees.DistributeFee(m.inboundDirection(), value)
	}

	if isNative {
		for _, s := range shares {
			if err := tok.Transfer(m.cfg.Address, s.Account, s.Amount); err != nil {
				return err
			}
		}
		if err := tok.Transfer(m.cfg.Address, recipient, net); err != nil {
			return err
		}
	} else {
		for _, s := range shares {
			if err := tok.Mint(m.cfg.Address, s.Account, s.Amount); err != nil {
				return err
			}
		}
		if err := tok.Mint(m.cfg.Address, recipient, net); err != nil {
			return err
		}
	}

	m.log.Info("bridged tokens in",
		"token", tokenAddr, "recipient", recipient, "value", value, "net", net)
	return nil
}

// FixFailedMessage reverses the local burn/lock of a message the transport
// has confirmed failed on the counterpart. Succeeds at most once per id.
func (m *Mediator) FixFailedMessage(caller common.Address, id common.Hash) error {
	if caller != m.cfg.Owner {
		return ErrUnauthorized
	}
	if !m.transport.MessageFailed(id) {
		return ErrMessageNotFailed
	}

	rec, err := m.records.get(id)
	if err != nil {
		return err
	}
	if rec.Fixed {
		return ErrAlreadyFixed
	}

	m.mu.Lock()
	tok, ok := m.tokens[rec.Token]
	m.mu.Unlock()
	if !ok {
		return ErrTokenNotRegistered
	}

	if m.IsNativeToken(rec.Token) {
		if err := tok.Transfer(m.cfg.Address, rec.OriginSender, rec.Value); err != nil {
			return err
		}
	} else {
		if err := tok.Mint(m.cfg.Address, rec.OriginSender, rec.Value); err != nil {
			return err
		}
	}
	if err := m.records.markFixed(id); err != nil {
		return err
	}

	if rec.Register {
		// The announcing message never executed: the counterpart has no
		// representation yet, so the next transfer must announce again.
		m.mu.Lock()
		m.announced[rec.Token] = false
		m.mu.Unlock()
	}

	m.log.Info("fixed failed message",
		"message", id, "token", rec.Token, "sender", rec.OriginSender, "value", rec.Value)
	return nil
}

func (m *Mediator) outboundDirection() fees.Direction {
	if m.cfg.IsHome {
		return fees.HomeToForeign
	}
	return fees.ForeignToHome
}

func (m *Mediator) inboundDirection() fees.Direction {
	if m.cfg.IsHome {
		return fees.ForeignToHome
	}
	return fees.HomeToForeign
}

func (m *Mediator) isAnnounced(addr common.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.announced[addr]
}

func validateTransfer(mediator, receiver common.Address, value *big.Int) error {
	if receiver == (common.Address{}) {
		return ErrZeroReceiver
	}
	if receiver == mediator {
		return ErrReceiverIsMediator
	}
	if value == nil || value.Sign() <= 0 {
		return ErrZeroValue
	}
	return nil
}
