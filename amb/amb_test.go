// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amb

import (
	"errors"
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

var (
	homeAMBAddr    = common.HexToAddress("0x0000000000000000000000000000000000000a0b")
	foreignAMBAddr = common.HexToAddress("0x0000000000000000000000000000000000000b0a")
	target         = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

type recordingHandler struct {
	calls  int
	caller common.Address
	data   [][]byte
	err    error
}

func (h *recordingHandler) HandleMessage(caller common.Address, data []byte) error {
	h.calls++
	h.caller = caller
	h.data = append(h.data, data)
	return h.err
}

func newTestAMB() *AMB {
	return New(big.NewInt(1), big.NewInt(2), homeAMBAddr, foreignAMBAddr)
}

func TestFastLaneDelivery(t *testing.T) {
	a := newTestAMB()
	h := &recordingHandler{}
	a.Foreign().RegisterHandler(target, h)

	id, err := a.Home().RequireToPassMessage(target, []byte{0x01, 0x02}, 100_000)
	require.NoError(t, err)
	require.NotEqual(t, common.Hash{}, id)

	require.Equal(t, 1, a.Flush())
	require.Equal(t, 1, h.calls)
	require.Equal(t, foreignAMBAddr, h.caller)

	status, ok := a.Home().MessageCallStatus(id)
	require.True(t, ok)
	require.Equal(t, StatusExecuted, status)
	require.False(t, a.Home().MessageFailed(id))
}

func TestAtMostOnceExecution(t *testing.T) {
	a := newTestAMB()
	h := &recordingHandler{}
	a.Foreign().RegisterHandler(target, h)

	_, err := a.Home().RequireToPassMessage(target, []byte{0x01}, 100_000)
	require.NoError(t, err)

	require.Equal(t, 1, a.Flush())
	require.Equal(t, 0, a.Flush())
	require.Equal(t, 0, a.ConfirmAndFlush())
	require.Equal(t, 1, h.calls)
}

func TestOracleLaneWaitsForConfirmation(t *testing.T) {
	a := newTestAMB()
	h := &recordingHandler{}
	a.Foreign().RegisterHandler(target, h)

	id, err := a.Home().RequireToConfirmMessage(target, []byte{0x01}, 100_000)
	require.NoError(t, err)

	require.Equal(t, 0, a.Flush())
	require.Equal(t, 0, h.calls)
	status, ok := a.Home().MessageCallStatus(id)
	require.True(t, ok)
	require.Equal(t, StatusPending, status)

	require.Equal(t, 1, a.ConfirmAndFlush())
	require.Equal(t, 1, h.calls)
}

func TestHandlerFailureRecorded(t *testing.T) {
	a := newTestAMB()
	h := &recordingHandler{err: errors.New("execution reverted")}
	a.Foreign().RegisterHandler(target, h)

	id, err := a.Home().RequireToPassMessage(target, []byte{0x01}, 100_000)
	require.NoError(t, err)
	a.Flush()

	// Failure visible from both ends
	require.True(t, a.Home().MessageFailed(id))
	require.True(t, a.Foreign().MessageFailed(id))

	// Failed is terminal: no redelivery
	require.Equal(t, 0, a.Flush())
	require.Equal(t, 1, h.calls)
}

func TestMissingHandlerFails(t *testing.T) {
	a := newTestAMB()

	id, err := a.Home().RequireToPassMessage(target, []byte{0x01}, 100_000)
	require.NoError(t, err)
	a.Flush()
	require.True(t, a.Home().MessageFailed(id))
}

func TestForeignToHomeDirection(t *testing.T) {
	a := newTestAMB()
	h := &recordingHandler{}
	a.Home().RegisterHandler(target, h)

	_, err := a.Foreign().RequireToPassMessage(target, []byte{0x07}, 100_000)
	require.NoError(t, err)
	require.Equal(t, 1, a.Flush())
	require.Equal(t, homeAMBAddr, h.caller)
}

func TestSendValidation(t *testing.T) {
	a := newTestAMB()

	_, err := a.Home().RequireToPassMessage(target, nil, 100_000)
	require.ErrorIs(t, err, ErrEmptyPayload)

	_, err = a.Home().RequireToPassMessage(target, []byte{0x01}, DefaultMaxGasPerTx+1)
	require.ErrorIs(t, err, ErrGasLimitTooHigh)
}

func TestDistinctMessageIDs(t *testing.T) {
	a := newTestAMB()
	id1, err := a.Home().RequireToPassMessage(target, []byte{0x01}, 100_000)
	require.NoError(t, err)
	id2, err := a.Home().RequireToPassMessage(target, []byte{0x01}, 100_000)
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
}

func TestUnknownMessageStatus(t *testing.T) {
	a := newTestAMB()
	_, ok := a.Home().MessageCallStatus(common.HexToHash("0x01"))
	require.False(t, ok)
	require.False(t, a.Home().MessageFailed(common.HexToHash("0x01")))
}
