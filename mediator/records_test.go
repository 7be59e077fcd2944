// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mediator

import (
	"math/big"
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func TestRecordStorePersistence(t *testing.T) {
	db := memdb.New()
	store := newRecordStore(db)

	rec := &MessageRecord{
		ID:           common.HexToHash("0x01"),
		Token:        common.HexToAddress("0xaa"),
		Value:        big.NewInt(990),
		OriginSender: common.HexToAddress("0xbb"),
		Register:     true,
	}
	require.NoError(t, store.put(rec))
	require.NoError(t, store.markFixed(rec.ID))

	// A fresh store over the same database sees the record and both flags
	reloaded := newRecordStore(db)
	got, err := reloaded.get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.Token, got.Token)
	require.Equal(t, rec.OriginSender, got.OriginSender)
	require.Equal(t, big.NewInt(990), got.Value)
	require.True(t, got.Fixed)
	require.True(t, got.Register)

	_, err = reloaded.get(common.HexToHash("0x02"))
	require.ErrorIs(t, err, ErrUnknownMessage)
}
