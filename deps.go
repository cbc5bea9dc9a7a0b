// deps.go defines minimal interfaces for external dependencies.
// This allows for easy mocking in tests and decouples the session from the
// concrete jarvis implementations.
package epicgame

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/tranvictor/jarvis/networks"
)

// EthReader defines the minimal interface for reading blockchain state.
type EthReader interface {
	// GetPendingNonce returns the nonce of the next pending transaction for the address
	GetPendingNonce(addr string) (uint64, error)

	// EstimateExactGas estimates the gas required for a transaction
	EstimateExactGas(from, to string, gasPrice float64, value *big.Int, data []byte) (uint64, error)

	// SuggestedGasSettings returns suggested gas price and tip cap in gwei
	SuggestedGasSettings() (gasPrice float64, tipCapGwei float64, err error)

	// EthCall executes a read-only call, or simulates a transaction, at the pending state
	EthCall(from, to string, data []byte, overrides *map[common.Address]gethclient.OverrideAccount) ([]byte, error)

	// TxInfoFromHash returns transaction info for a given hash
	TxInfoFromHash(hash string) (TxInfo, error)
}

// TxInfoStatus is the raw status reported by the reader and the monitor.
type TxInfoStatus string

const (
	// TxStatusDone indicates the transaction was mined successfully
	TxStatusDone TxInfoStatus = "done"
	// TxStatusReverted indicates the transaction was mined but execution reverted
	TxStatusReverted TxInfoStatus = "reverted"
	// TxStatusLost indicates the transaction was dropped from the mempool
	TxStatusLost TxInfoStatus = "lost"
	// TxStatusPending indicates the transaction is still pending
	TxStatusPending TxInfoStatus = "pending"
)

// TxInfo represents transaction information returned by the reader.
type TxInfo struct {
	Status  TxInfoStatus
	Receipt *types.Receipt
}

// EthBroadcaster defines the minimal interface for broadcasting transactions.
type EthBroadcaster interface {
	// BroadcastTx broadcasts a signed transaction to the network
	// Returns the tx hash, whether it was broadcast successfully, and any errors
	BroadcastTx(tx *types.Transaction) (hash string, broadcasted bool, err error)

	// BroadcastTxSync broadcasts and waits for the transaction to be mined (for L2s that support it)
	BroadcastTxSync(tx *types.Transaction) (receipt *types.Receipt, err error)
}

// TxMonitorStatus represents the status of a monitored transaction.
type TxMonitorStatus struct {
	Status  string
	Receipt *types.Receipt
}

// TxMonitor defines the minimal interface for monitoring transaction status.
type TxMonitor interface {
	// MakeWaitChannelWithInterval creates a channel that receives the final status
	MakeWaitChannelWithInterval(txHash string, interval time.Duration) <-chan TxMonitorStatus
}

// Signer signs transactions on behalf of an account.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (common.Address, *types.Transaction, error)
}

// WalletProvider is the wallet the session talks to: account authorization,
// network identification, network switching and change notifications.
type WalletProvider interface {
	// RequestAccounts asks the wallet to authorize accounts. An empty result
	// means nothing was authorized.
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// ChainID returns the chain the wallet is currently connected to.
	ChainID(ctx context.Context) (uint64, error)

	// SwitchChain asks the wallet to move to another chain.
	SwitchChain(ctx context.Context, chainID uint64) error

	// SubscribeChainChanged delivers the new chain id every time the wallet
	// changes network. The channel is closed when ctx is done.
	SubscribeChainChanged(ctx context.Context) (<-chan uint64, error)

	// Signer returns the signer for an authorized account.
	Signer(addr common.Address) (Signer, error)
}

// ReaderFactory creates an EthReader for a given network.
// This allows injecting mock readers for testing.
type ReaderFactory func(network networks.Network) (EthReader, error)

// BroadcasterFactory creates an EthBroadcaster for a given network.
// This allows injecting mock broadcasters for testing.
type BroadcasterFactory func(network networks.Network) (EthBroadcaster, error)

// TxMonitorFactory creates a TxMonitor for a given reader.
// This allows injecting mock monitors for testing.
type TxMonitorFactory func(reader EthReader) TxMonitor

// NetworkResolver resolves a jarvis network by chain id.
type NetworkResolver func(chainID uint64) (networks.Network, error)
