// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mediator

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
)

// Storage key prefix for persisted message records
var msgPrefix = []byte("mediator/msg/")

// recordStore keeps the sending-side MessageRecords. Records are written
// once and mutated only by the one-time fixed mark; the database is the
// durable copy, the map a cache.
type recordStore struct {
	db   database.Database
	recs map[common.Hash]*MessageRecord

	mu sync.Mutex
}

func newRecordStore(db database.Database) *recordStore {
	return &recordStore{
		db:   db,
		recs: make(map[common.Hash]*MessageRecord),
	}
}

func (s *recordStore) put(rec *MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Put(msgKey(rec.ID), encodeRecord(rec)); err != nil {
			return err
		}
	}
	s.recs[rec.ID] = rec
	return nil
}

func (s *recordStore) get(id common.Hash) (*MessageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

func (s *recordStore) markFixed(id common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(id)
	if err != nil {
		return err
	}
	rec.Fixed = true
	if s.db != nil {
		return s.db.Put(msgKey(id), encodeRecord(rec))
	}
	return nil
}

func (s *recordStore) load(id common.Hash) (*MessageRecord, error) {
	if rec, ok := s.recs[id]; ok {
		return rec, nil
	}
	if s.db == nil {
		return nil, ErrUnknownMessage
	}
	raw, err := s.db.Get(msgKey(id))
	if err == database.ErrNotFound {
		return nil, ErrUnknownMessage
	}
	if err != nil {
		return nil, err
	}
	rec, err := decodeRecord(id, raw)
	if err != nil {
		return nil, err
	}
	s.recs[id] = rec
	return rec, nil
}

func msgKey(id common.Hash) []byte {
	key := make([]byte, 0, len(msgPrefix)+common.HashLength)
	key = append(key, msgPrefix...)
	return append(key, id.Bytes()...)
}

// Record flag bits
const (
	flagFixed    = 1 << 0
	flagRegister = 1 << 1
)

// Record layout: token(20) | sender(20) | flags(1) | value(big-endian)
func encodeRecord(rec *MessageRecord) []byte {
	out := make([]byte, 0, 2*common.AddressLength+1+len(rec.Value.Bytes()))
	out = append(out, rec.Token.Bytes()...)
	out = append(out, rec.OriginSender.Bytes()...)
	var flags byte
	if rec.Fixed {
		flags |= flagFixed
	}
	if rec.Register {
		flags |= flagRegister
	}
	out = append(out, flags)
	return append(out, rec.Value.Bytes()...)
}

func decodeRecord(id common.Hash, raw []byte) (*MessageRecord, error) {
	if len(raw) < 2*common.AddressLength+1 {
		return nil, fmt.Errorf("corrupt message record 0x%x", raw)
	}
	flags := raw[2*common.AddressLength]
	return &MessageRecord{
		ID:           id,
		Token:        common.BytesToAddress(raw[:common.AddressLength]),
		OriginSender: common.BytesToAddress(raw[common.AddressLength : 2*common.AddressLength]),
		Fixed:        flags&flagFixed != 0,
		Register:     flags&flagRegister != 0,
		Value:        new(big.Int).SetBytes(raw[2*common.AddressLength+1:]),
	}, nil
}
