package epicgame

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transactorSetup struct {
	Transactor  *Transactor
	Network     *mockNetwork
	Reader      *mockEthReader
	Broadcaster *mockEthBroadcaster
	Monitor     *mockTxMonitor
}

func newTransactorSetup(t *testing.T, mutate ...func(*transactorSetup)) *transactorSetup {
	t.Helper()
	setup := &transactorSetup{
		Network:     newMockNetwork(testChainID, "epicnet"),
		Reader:      &mockEthReader{},
		Broadcaster: &mockEthBroadcaster{},
		Monitor:     &mockTxMonitor{},
	}
	for _, m := range mutate {
		m(setup)
	}

	defaults := SessionDefaults{
		NumRetries:      3,
		SleepDuration:   time.Millisecond,
		TxCheckInterval: time.Millisecond,
		TxType:          types.DynamicFeeTxType,
	}
	components := NetworkComponents{Reader: setup.Reader, Broadcaster: setup.Broadcaster}
	if setup.Monitor != nil {
		components.Monitor = setup.Monitor
	}
	tr, err := NewTransactor(setup.Network, testAccount(t, testPrivateKeyHex1), defaults, components)
	require.NoError(t, err)
	setup.Transactor = tr
	return setup
}

func revertData(t *testing.T, reason string) string {
	t.Helper()
	stringTy, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringTy}}.Pack(reason)
	require.NoError(t, err)
	// Error(string) selector
	return hexutil.Encode(append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...))
}

func TestNewTransactor_Validation(t *testing.T) {
	_, err := NewTransactor(nil, testAccount(t, testPrivateKeyHex1), SessionDefaults{}, NetworkComponents{})
	assert.ErrorIs(t, err, ErrNetworkNil)

	_, err = NewTransactor(newMockNetwork(testChainID, "epicnet"), nil, SessionDefaults{}, NetworkComponents{})
	assert.ErrorIs(t, err, ErrFromAddressZero)

	tr, err := NewTransactor(newMockNetwork(testChainID, "epicnet"), testAccount(t, testPrivateKeyHex1), SessionDefaults{NumRetries: -1}, NetworkComponents{})
	require.NoError(t, err)
	assert.Equal(t, 0, tr.defaults.NumRetries)
	assert.Equal(t, DefaultSleepDuration, tr.defaults.SleepDuration)
	assert.Equal(t, DefaultTxCheckInterval, tr.defaults.TxCheckInterval)
}

func TestTransactor_BuildTx(t *testing.T) {
	setup := newTransactorSetup(t)
	setup.Reader.GetPendingNonceFn = func(string) (uint64, error) { return 7, nil }
	setup.Transactor.defaults.ExtraGasLimit = 1000

	tx, err := setup.Transactor.BuildTx(testGameAddr, nil, nil, 0, 0, 0, []byte{0x01})
	require.NoError(t, err)

	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(51000), tx.Gas())
	assert.Equal(t, testGameAddr, *tx.To())
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, []string{setup.Transactor.From().Hex()}, setup.Reader.GetPendingNonceCalls)
}

func TestTransactor_BuildTx_Errors(t *testing.T) {
	t.Run("estimate", func(t *testing.T) {
		setup := newTransactorSetup(t)
		setup.Reader.EstimateExactGasFn = func(string, string, float64, *big.Int, []byte) (uint64, error) {
			return 0, errors.New("execution reverted")
		}
		_, err := setup.Transactor.BuildTx(testGameAddr, nil, nil, 0, 0, 0, nil)
		assert.ErrorIs(t, err, ErrEstimateGasFailed)
	})

	t.Run("nonce", func(t *testing.T) {
		setup := newTransactorSetup(t)
		setup.Reader.GetPendingNonceFn = func(string) (uint64, error) { return 0, errors.New("no nodes") }
		_, err := setup.Transactor.BuildTx(testGameAddr, nil, nil, 0, 0, 0, nil)
		assert.ErrorIs(t, err, ErrAcquireNonceFailed)
	})

	t.Run("gas setting", func(t *testing.T) {
		setup := newTransactorSetup(t)
		setup.Reader.SuggestedGasSettingsFn = func() (float64, float64, error) { return 0, 0, errors.New("no nodes") }
		_, err := setup.Transactor.BuildTx(testGameAddr, nil, nil, 0, 0, 0, nil)
		assert.ErrorIs(t, err, ErrGetGasSettingFailed)
	})
}

func TestTransactor_Call(t *testing.T) {
	setup := newTransactorSetup(t)
	setup.Reader.EthCallFn = func(from, to string, data []byte, _ *map[common.Address]gethOverride) ([]byte, error) {
		return []byte{0xaa}, nil
	}

	out, err := setup.Transactor.Call(context.Background(), testGameAddr, []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa}, out)
	require.Len(t, setup.Reader.EthCallCalls, 1)
	assert.Equal(t, setup.Transactor.From().Hex(), setup.Reader.EthCallCalls[0].From)
	assert.Equal(t, testGameAddr.Hex(), setup.Reader.EthCallCalls[0].To)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = setup.Transactor.Call(ctx, testGameAddr, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransactor_SimulateRevert(t *testing.T) {
	setup := newTransactorSetup(t)
	data := revertData(t, "Not enough tokens")
	setup.Reader.EthCallFn = func(string, string, []byte, *map[common.Address]gethOverride) ([]byte, error) {
		return nil, &mockRevertError{data: data}
	}

	_, err := setup.Transactor.Submit(context.Background(), testGameAddr, []byte{0x01})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSimulatedTxReverted)
	assert.Contains(t, err.Error(), "Not enough tokens")
	assert.Empty(t, setup.Broadcaster.BroadcastTxCalls, "a reverting tx must not be broadcast")
}

func TestTransactor_SimulateFailure(t *testing.T) {
	setup := newTransactorSetup(t)
	setup.Reader.EthCallFn = func(string, string, []byte, *map[common.Address]gethOverride) ([]byte, error) {
		return nil, errors.New("connection refused")
	}

	err := setup.Transactor.Simulate(testGameAddr, nil)
	assert.ErrorIs(t, err, ErrSimulatedTxFailed)
	assert.NotErrorIs(t, err, ErrSimulatedTxReverted)
}

func TestTransactor_Submit(t *testing.T) {
	setup := newTransactorSetup(t)

	tx, err := setup.Transactor.Submit(context.Background(), testGameAddr, []byte{0x01})
	require.NoError(t, err)
	require.NotNil(t, tx)

	require.Len(t, setup.Broadcaster.BroadcastTxCalls, 1)
	assert.Equal(t, tx.Hash(), setup.Broadcaster.BroadcastTxCalls[0].Hash())
	assert.Empty(t, setup.Broadcaster.BroadcastTxSyncCalls)

	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(testChainID))
	from, err := types.Sender(signer, tx)
	require.NoError(t, err)
	assert.Equal(t, setup.Transactor.From(), from)
}

func TestTransactor_SubmitRetriesWithBumpedGas(t *testing.T) {
	setup := newTransactorSetup(t)
	var attempts atomic.Int32
	setup.Broadcaster.BroadcastTxFn = func(tx *types.Transaction) (string, bool, error) {
		if attempts.Add(1) < 3 {
			return "", false, errors.New("underpriced")
		}
		return tx.Hash().Hex(), true, nil
	}

	tx, err := setup.Transactor.Submit(context.Background(), testGameAddr, []byte{0x01})
	require.NoError(t, err)

	calls := setup.Broadcaster.BroadcastTxCalls
	require.Len(t, calls, 3)
	assert.Equal(t, calls[0].Nonce(), tx.Nonce(), "retries reuse the nonce")
	assert.Equal(t, calls[0].Gas(), tx.Gas(), "retries reuse the gas limit")
	assert.Equal(t, 1, tx.GasFeeCap().Cmp(calls[0].GasFeeCap()), "retries bump the fee cap")
	assert.Equal(t, 1, tx.GasTipCap().Cmp(calls[0].GasTipCap()), "retries bump the tip cap")

	assert.Len(t, setup.Reader.GetPendingNonceCalls, 1)
	assert.Equal(t, 1, setup.Reader.EstimateExactGasCalls)
}

func TestTransactor_SubmitGivesUp(t *testing.T) {
	setup := newTransactorSetup(t)
	setup.Broadcaster.BroadcastTxFn = func(*types.Transaction) (string, bool, error) {
		return "", false, nil
	}

	_, err := setup.Transactor.Submit(context.Background(), testGameAddr, nil)
	assert.ErrorIs(t, err, ErrBroadcastFailed)
	assert.Len(t, setup.Broadcaster.BroadcastTxCalls, 4)
}

func TestTransactor_SubmitEstimateFailureIsNotRetried(t *testing.T) {
	setup := newTransactorSetup(t)
	setup.Reader.EstimateExactGasFn = func(string, string, float64, *big.Int, []byte) (uint64, error) {
		return 0, errors.New("execution reverted")
	}

	_, err := setup.Transactor.Submit(context.Background(), testGameAddr, nil)
	assert.ErrorIs(t, err, ErrEstimateGasFailed)
	assert.Equal(t, 1, setup.Reader.EstimateExactGasCalls)
	assert.Empty(t, setup.Broadcaster.BroadcastTxCalls)
}

func TestTransactor_SubmitContextCancelledBetweenRetries(t *testing.T) {
	setup := newTransactorSetup(t)
	setup.Transactor.defaults.SleepDuration = time.Hour
	setup.Broadcaster.BroadcastTxFn = func(*types.Transaction) (string, bool, error) {
		return "", false, errors.New("underpriced")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := setup.Transactor.Submit(ctx, testGameAddr, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransactor_SyncBroadcast(t *testing.T) {
	setup := newTransactorSetup(t, func(s *transactorSetup) {
		s.Network.syncTx = true
	})

	tx, err := setup.Transactor.Submit(context.Background(), testGameAddr, nil)
	require.NoError(t, err)
	assert.Len(t, setup.Broadcaster.BroadcastTxSyncCalls, 1)
	assert.Empty(t, setup.Broadcaster.BroadcastTxCalls)

	receipt, err := setup.Transactor.Wait(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), receipt.TxHash)
	assert.Empty(t, setup.Monitor.MakeWaitChannelCalls, "sync receipts skip the monitor")
}

func TestTransactor_Wait(t *testing.T) {
	tx := newTestTx(1, testGameAddr)

	tests := []struct {
		name    string
		status  TxMonitorStatus
		wantErr error
	}{
		{"done", TxMonitorStatus{Status: "done", Receipt: newSuccessReceipt(tx)}, nil},
		{"done with failed receipt", TxMonitorStatus{Status: "done", Receipt: newFailedReceipt(tx)}, ErrTxReverted},
		{"reverted", TxMonitorStatus{Status: "reverted", Receipt: newFailedReceipt(tx)}, ErrTxReverted},
		{"lost", TxMonitorStatus{Status: "lost"}, ErrTxLost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setup := newTransactorSetup(t)
			setup.Monitor.StatusToReturn = tt.status

			receipt, err := setup.Transactor.Wait(context.Background(), tx)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tx.Hash(), receipt.TxHash)
			assert.Equal(t, []string{tx.Hash().Hex()}, setup.Monitor.MakeWaitChannelCalls)
		})
	}
}

func TestTransactor_WaitContextCancelled(t *testing.T) {
	setup := newTransactorSetup(t)
	setup.Monitor.Delay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := setup.Transactor.Wait(ctx, newTestTx(1, testGameAddr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransactor_WaitPollsWithoutMonitor(t *testing.T) {
	setup := newTransactorSetup(t, func(s *transactorSetup) {
		s.Monitor = nil
	})
	tx := newTestTx(1, testGameAddr)

	var polls atomic.Int32
	setup.Reader.TxInfoFromHashFn = func(string) (TxInfo, error) {
		if polls.Add(1) < 3 {
			return TxInfo{Status: TxStatusPending}, nil
		}
		return TxInfo{Status: TxStatusDone, Receipt: newSuccessReceipt(tx)}, nil
	}

	receipt, err := setup.Transactor.Wait(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), receipt.TxHash)
	assert.Equal(t, int32(3), polls.Load())
}

func TestTransactor_GasSettingIsCached(t *testing.T) {
	setup := newTransactorSetup(t)

	first, err := setup.Transactor.GasSetting()
	require.NoError(t, err)
	second, err := setup.Transactor.GasSetting()
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, setup.Reader.SuggestedGasSettingsCalls)

	// a stale entry is refreshed
	setup.Transactor.gasInfo.Timestamp = time.Now().Add(-2 * GasInfoTTL)
	_, err = setup.Transactor.GasSetting()
	require.NoError(t, err)
	assert.Equal(t, 2, setup.Reader.SuggestedGasSettingsCalls)
}
