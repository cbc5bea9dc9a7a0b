package epicgame

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	jarviscommon "github.com/tranvictor/jarvis/common"
	"github.com/tranvictor/jarvis/networks"
)

// Transactor executes contract calls for one account on one network. Reads
// go through eth_call; writes are simulated, built, signed, broadcast and
// then awaited separately so callers can react to each confirmation.
type Transactor struct {
	network  networks.Network
	signer   Signer
	defaults SessionDefaults

	reader      EthReader
	broadcaster EthBroadcaster
	monitor     TxMonitor

	gasMu   sync.Mutex
	gasInfo *GasInfo

	// receipts returned by eth_sendRawTransactionSync, keyed by tx hash
	receipts sync.Map // map[common.Hash]*types.Receipt
}

// NewTransactor wires a transactor from already-initialized network components.
func NewTransactor(network networks.Network, signer Signer, defaults SessionDefaults, c NetworkComponents) (*Transactor, error) {
	if network == nil {
		return nil, ErrNetworkNil
	}
	if signer == nil || signer.Address() == (common.Address{}) {
		return nil, ErrFromAddressZero
	}
	if defaults.NumRetries < 0 {
		defaults.NumRetries = 0
	}
	if defaults.SleepDuration <= 0 {
		defaults.SleepDuration = DefaultSleepDuration
	}
	if defaults.TxCheckInterval <= 0 {
		defaults.TxCheckInterval = DefaultTxCheckInterval
	}
	return &Transactor{
		network:     network,
		signer:      signer,
		defaults:    defaults,
		reader:      c.Reader,
		broadcaster: c.Broadcaster,
		monitor:     c.Monitor,
	}, nil
}

// From returns the account the transactor signs for.
func (t *Transactor) From() common.Address {
	return t.signer.Address()
}

// Network returns the network the transactor is bound to.
func (t *Transactor) Network() networks.Network {
	return t.network
}

// Call runs a read-only call from the session account.
func (t *Transactor) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.reader.EthCall(t.From().Hex(), to.Hex(), data, nil)
}

// BuildTx builds an unsigned transaction. Zero gasLimit, nil nonce and zero
// gasPrice are filled from the node.
func (t *Transactor) BuildTx(
	to common.Address,
	nonce *big.Int,
	value *big.Int,
	gasLimit uint64,
	gasPrice float64,
	tipCapGwei float64,
	data []byte,
) (*types.Transaction, error) {
	from := t.From()
	var err error

	if value == nil {
		value = big.NewInt(0)
	}

	if gasLimit == 0 {
		gasLimit, err = t.reader.EstimateExactGas(from.Hex(), to.Hex(), gasPrice, value, data)
		if err != nil {
			return nil, errors.Join(ErrEstimateGasFailed, fmt.Errorf("couldn't estimate gas. The tx is meant to revert or network error. Detail: %w", err))
		}
	}

	if nonce == nil {
		pending, err := t.reader.GetPendingNonce(from.Hex())
		if err != nil {
			return nil, errors.Join(ErrAcquireNonceFailed, fmt.Errorf("couldn't get nonce of the wallet from any nodes: %w", err))
		}
		nonce = new(big.Int).SetUint64(pending)
	}

	if gasPrice == 0 {
		gasInfo, err := t.GasSetting()
		if err != nil {
			return nil, errors.Join(ErrGetGasSettingFailed, fmt.Errorf("couldn't get gas price info from any nodes: %w", err))
		}
		gasPrice = gasInfo.GasPrice
		tipCapGwei = gasInfo.MaxPriorityPrice
	}

	return jarviscommon.BuildExactTx(
		t.defaults.TxType,
		nonce.Uint64(),
		to.Hex(),
		value,
		gasLimit+t.defaults.ExtraGasLimit,
		gasPrice+t.defaults.ExtraGasPrice,
		tipCapGwei+t.defaults.ExtraTipCapGwei,
		data,
		t.network.GetChainID(),
	), nil
}

// Simulate executes data against the pending state and reports a revert.
func (t *Transactor) Simulate(to common.Address, data []byte) error {
	_, err := t.reader.EthCall(t.From().Hex(), to.Hex(), data, nil)
	if err == nil {
		return nil
	}
	if revertData, isRevert := ethclient.RevertErrorData(err); isRevert {
		reason, unpackErr := abi.UnpackRevert(revertData)
		if unpackErr != nil {
			reason = common.Bytes2Hex(revertData)
		}
		return errors.Join(ErrSimulatedTxReverted, fmt.Errorf("tx will be reverted: %s. Detail: %w", reason, err))
	}
	return errors.Join(ErrSimulatedTxFailed, fmt.Errorf("couldn't simulate tx at pending state. Detail: %w", err))
}

// Submit simulates, builds, signs and broadcasts a transaction to `to`. It
// returns once the transaction is accepted by the network; use Wait for the
// confirmation. Broadcast failures are retried with the same nonce and bumped
// gas, up to the configured number of retries.
func (t *Transactor) Submit(ctx context.Context, to common.Address, data []byte) (*types.Transaction, error) {
	if err := t.Simulate(to, data); err != nil {
		logger.WithFields(logger.Fields{
			"from":  t.From().Hex(),
			"to":    to.Hex(),
			"error": err,
		}).Debug("Tx simulation failed")
		return nil, err
	}

	var (
		retryNonce    *big.Int
		retryGasPrice float64
		retryTipCap   float64
		gasLimit      uint64
		lastErr       error
	)

	for attempt := 0; attempt <= t.defaults.NumRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(t.defaults.SleepDuration):
			}
		}

		tx, err := t.BuildTx(to, retryNonce, nil, gasLimit, retryGasPrice, retryTipCap, data)
		if err != nil {
			if errors.Is(err, ErrEstimateGasFailed) {
				return nil, err
			}
			lastErr = err
			continue
		}

		signedTx, err := t.sign(tx)
		if err != nil {
			return nil, err
		}

		if err := t.broadcast(signedTx); err != nil {
			logger.WithFields(logger.Fields{
				"tx_hash":         signedTx.Hash().Hex(),
				"nonce":           signedTx.Nonce(),
				"gas_price":       signedTx.GasPrice().String(),
				"tip_cap":         signedTx.GasTipCap().String(),
				"max_fee_per_gas": signedTx.GasFeeCap().String(),
				"used_sync_tx":    t.network.IsSyncTxSupported(),
				"attempt":         attempt,
				"error":           err,
			}).Debug("Unsuccessful broadcasting transaction")

			lastErr = err
			retryNonce = new(big.Int).SetUint64(signedTx.Nonce())
			gasLimit = signedTx.Gas()
			retryGasPrice = jarviscommon.BigToFloat(signedTx.GasFeeCap(), 9) * DefaultGasPriceIncreasePercent
			retryTipCap = jarviscommon.BigToFloat(signedTx.GasTipCap(), 9) * DefaultTipCapIncreasePercent
			continue
		}

		logger.WithFields(logger.Fields{
			"tx_hash":         signedTx.Hash().Hex(),
			"nonce":           signedTx.Nonce(),
			"gas_price":       signedTx.GasPrice().String(),
			"tip_cap":         signedTx.GasTipCap().String(),
			"max_fee_per_gas": signedTx.GasFeeCap().String(),
			"used_sync_tx":    t.network.IsSyncTxSupported(),
		}).Info("Signed and broadcasted transaction")
		return signedTx, nil
	}

	return nil, errors.Join(ErrBroadcastFailed, fmt.Errorf("giving up after %d retries: %w", t.defaults.NumRetries, lastErr))
}

func (t *Transactor) sign(tx *types.Transaction) (*types.Transaction, error) {
	signedAddr, signedTx, err := t.signer.SignTx(tx, new(big.Int).SetUint64(t.network.GetChainID()))
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if signedAddr.Cmp(t.From()) != 0 {
		return nil, fmt.Errorf(
			"signed from wrong address. Expected wallet: %s, signed wallet: %s",
			t.From().Hex(),
			signedAddr.Hex(),
		)
	}
	return signedTx, nil
}

func (t *Transactor) broadcast(tx *types.Transaction) error {
	if t.network.IsSyncTxSupported() {
		receipt, err := t.broadcaster.BroadcastTxSync(tx)
		if err != nil {
			return fmt.Errorf("couldn't broadcast sync tx: %w", err)
		}
		if receipt != nil {
			t.receipts.Store(tx.Hash(), receipt)
		}
		return nil
	}
	_, broadcasted, err := t.broadcaster.BroadcastTx(tx)
	if !broadcasted {
		if err == nil {
			err = errors.New("no node accepted the tx")
		}
		return err
	}
	return nil
}

// Wait blocks until tx is mined, reverted or lost, or ctx is done. A
// reverted tx returns its receipt together with ErrTxReverted.
func (t *Transactor) Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if r, ok := t.receipts.LoadAndDelete(tx.Hash()); ok {
		return checkReceipt(tx, r.(*types.Receipt))
	}

	if t.monitor == nil {
		return t.poll(ctx, tx)
	}

	statusChan := t.monitor.MakeWaitChannelWithInterval(tx.Hash().Hex(), t.defaults.TxCheckInterval)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case status, ok := <-statusChan:
		if !ok {
			return nil, errors.Join(ErrTxLost, fmt.Errorf("monitor closed without status for %s", tx.Hash().Hex()))
		}
		switch TxInfoStatus(status.Status) {
		case TxStatusDone:
			return checkReceipt(tx, status.Receipt)
		case TxStatusReverted:
			return status.Receipt, errors.Join(ErrTxReverted, fmt.Errorf("tx %s", tx.Hash().Hex()))
		case TxStatusLost:
			logger.WithFields(logger.Fields{
				"tx_hash": tx.Hash().Hex(),
			}).Warn("Transaction lost")
			return nil, errors.Join(ErrTxLost, fmt.Errorf("tx %s", tx.Hash().Hex()))
		default:
			return nil, fmt.Errorf("unexpected status %q for tx %s", status.Status, tx.Hash().Hex())
		}
	}
}

// poll is used when no monitor is available for the network.
func (t *Transactor) poll(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ticker := time.NewTicker(t.defaults.TxCheckInterval)
	defer ticker.Stop()
	for {
		info, err := t.reader.TxInfoFromHash(tx.Hash().Hex())
		if err == nil {
			switch info.Status {
			case TxStatusDone:
				return checkReceipt(tx, info.Receipt)
			case TxStatusReverted:
				return info.Receipt, errors.Join(ErrTxReverted, fmt.Errorf("tx %s", tx.Hash().Hex()))
			case TxStatusLost:
				return nil, errors.Join(ErrTxLost, fmt.Errorf("tx %s", tx.Hash().Hex()))
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func checkReceipt(tx *types.Transaction, receipt *types.Receipt) (*types.Receipt, error) {
	if receipt != nil && receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, errors.Join(ErrTxReverted, fmt.Errorf("tx %s", tx.Hash().Hex()))
	}
	return receipt, nil
}
