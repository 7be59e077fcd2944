// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package amb provides the arbitrary-message-bridge transport the mediators
// ride on: authenticated delivery of opaque calls with at-most-once
// execution and queryable failure status. The in-memory implementation
// connects two chain endpoints and models the two delivery lanes: fast
// messages execute on the next flush, oracle-confirmed messages wait for an
// explicit confirmation round.
package amb

import (
	"encoding/binary"
	"errors"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// DefaultMaxGasPerTx bounds the execution gas a message may request.
const DefaultMaxGasPerTx = 2_000_000

// Errors
var (
	ErrGasLimitTooHigh = errors.New("requested gas limit exceeds maximum")
	ErrEmptyPayload    = errors.New("message payload cannot be empty")
)

// Status is a relayed message's lifecycle state.
type Status uint8

const (
	StatusPending Status = iota
	StatusExecuted
	StatusFailed
)

// Handler executes a relayed call on the destination chain. caller is the
// delivering endpoint's address, letting targets authenticate the bridge.
type Handler interface {
	HandleMessage(caller common.Address, data []byte) error
}

// Message is one relayed call.
type Message struct {
	ID          common.Hash
	SourceChain *big.Int
	DestChain   *big.Int
	Target      common.Address
	Data        []byte
	GasLimit    uint64

	// OracleConfirmed messages stay queued until the confirmation round.
	OracleConfirmed bool
	confirmed       bool

	Status Status
}

// AMB is the shared relay connecting the two endpoints.
type AMB struct {
	home    *Endpoint
	foreign *Endpoint

	maxGasPerTx uint64
	nonce       uint64
	messages    map[common.Hash]*Message
	queue       []common.Hash

	mu sync.Mutex
}

// Endpoint is one chain's view of the relay. It is the Transport the local
// mediator sends through, and the caller identity inbound handlers see.
type Endpoint struct {
	amb      *AMB
	chainID  *big.Int
	address  common.Address
	handlers map[common.Address]Handler
}

// New creates a connected pair of endpoints.
func New(homeChainID, foreignChainID *big.Int, homeAddr, foreignAddr common.Address) *AMB {
	a := &AMB{
		maxGasPerTx: DefaultMaxGasPerTx,
		messages:    make(map[common.Hash]*Message),
	}
	a.home = &Endpoint{amb: a, chainID: homeChainID, address: homeAddr, handlers: make(map[common.Address]Handler)}
	a.foreign = &Endpoint{amb: a, chainID: foreignChainID, address: foreignAddr, handlers: make(map[common.Address]Handler)}
	return a
}

// Home returns the home-chain endpoint.
func (a *AMB) Home() *Endpoint { return a.home }

// Foreign returns the foreign-chain endpoint.
func (a *AMB) Foreign() *Endpoint { return a.foreign }

// Flush delivers every deliverable queued message exactly once and returns
// how many executed (successfully or not). Oracle-lane messages without a
// confirmation stay queued.
func (a *AMB) Flush() int {
	count := 0
	for {
		msg := a.dequeue()
		if msg == nil {
			return count
		}
		a.execute(msg)
		count++
	}
}

// ConfirmAndFlush runs the oracle confirmation round for every queued
// oracle-lane message, then flushes.
func (a *AMB) ConfirmAndFlush() int {
	a.mu.Lock()
	for _, id := range a.queue {
		a.messages[id].confirmed = true
	}
	a.mu.Unlock()
	return a.Flush()
}

// dequeue pops the first deliverable message under the lock; execution
// happens outside it so handlers can send follow-up messages.
func (a *AMB) dequeue() *Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, id := range a.queue {
		msg := a.messages[id]
		if msg.OracleConfirmed && !msg.confirmed {
			continue
		}
		a.queue = append(a.queue[:i], a.queue[i+1:]...)
		return msg
	}
	return nil
}

func (a *AMB) execute(msg *Message) {
	dest := a.home
	if msg.DestChain.Cmp(a.foreign.chainID) == 0 {
		dest = a.foreign
	}

	handler := dest.handlers[msg.Target]
	if handler == nil {
		a.finish(msg, StatusFailed)
		return
	}
	if err := handler.HandleMessage(dest.address, msg.Data); err != nil {
		a.finish(msg, StatusFailed)
		return
	}
	a.finish(msg, StatusExecuted)
}

func (a *AMB) finish(msg *Message, status Status) {
	a.mu.Lock()
	defer a.mu.Unlock()
	msg.Status = status
}

func (a *AMB) send(from *Endpoint, target common.Address, data []byte, gasLimit uint64, oracleConfirmed bool) (common.Hash, error) {
	if len(data) == 0 {
		return common.Hash{}, ErrEmptyPayload
	}
	if gasLimit > a.maxGasPerTx {
		return common.Hash{}, ErrGasLimitTooHigh
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	dest := a.foreign
	if from == a.foreign {
		dest = a.home
	}

	msg := &Message{
		ID:              a.messageID(from.chainID, dest.chainID, target, data),
		SourceChain:     from.chainID,
		DestChain:       dest.chainID,
		Target:          target,
		Data:            append([]byte(nil), data...),
		GasLimit:        gasLimit,
		OracleConfirmed: oracleConfirmed,
		Status:          StatusPending,
	}
	a.nonce++
	a.messages[msg.ID] = msg
	a.queue = append(a.queue, msg.ID)
	return msg.ID, nil
}

// messageID derives a unique id from the route, payload and relay nonce.
func (a *AMB) messageID(src, dst *big.Int, target common.Address, data []byte) common.Hash {
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], a.nonce)

	h := blake3.New()
	h.Write(src.Bytes())
	h.Write(dst.Bytes())
	h.Write(nonce[:])
	h.Write(target.Bytes())
	h.Write(data)

	return common.BytesToHash(h.Sum(nil))
}

// RegisterHandler attaches the executor for calls targeting addr on this
// endpoint's chain.
func (e *Endpoint) RegisterHandler(addr common.Address, h Handler) {
	e.amb.mu.Lock()
	defer e.amb.mu.Unlock()
	e.handlers[addr] = h
}

// Address is the caller identity this endpoint presents to handlers.
func (e *Endpoint) Address() common.Address { return e.address }

// SourceChainID identifies this endpoint's chain.
func (e *Endpoint) SourceChainID() *big.Int { return new(big.Int).Set(e.chainID) }

// RequireToPassMessage queues data for fast-lane execution against target
// on the other chain.
func (e *Endpoint) RequireToPassMessage(target common.Address, data []byte, gasLimit uint64) (common.Hash, error) {
	return e.amb.send(e, target, data, gasLimit, false)
}

// RequireToConfirmMessage queues data for oracle-confirmed execution
// against target on the other chain.
func (e *Endpoint) RequireToConfirmMessage(target common.Address, data []byte, gasLimit uint64) (common.Hash, error) {
	return e.amb.send(e, target, data, gasLimit, true)
}

// MessageFailed reports whether the relayed message executed and failed.
// Both endpoints observe the same status, mirroring the AMB's failure
// confirmation flow back to the origin chain.
func (e *Endpoint) MessageFailed(id common.Hash) bool {
	e.amb.mu.Lock()
	defer e.amb.mu.Unlock()

	msg, ok := e.amb.messages[id]
	return ok && msg.Status == StatusFailed
}

// MessageCallStatus returns the lifecycle status of a message.
func (e *Endpoint) MessageCallStatus(id common.Hash) (Status, bool) {
	e.amb.mu.Lock()
	defer e.amb.mu.Unlock()

	msg, ok := e.amb.messages[id]
	if !ok {
		return StatusPending, false
	}
	return msg.Status, true
}
