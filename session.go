package epicgame

import (
	"context"
	"fmt"
	"sync"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/tranvictor/jarvis/networks"
)

// Backend is the per-account chain access of a session.
type Backend interface {
	ContractBackend
	TxWaiter
}

// BackendFactory builds the backend for one account on network.
type BackendFactory func(network networks.Network, signer Signer) (Backend, error)

// Contracts are the deployed addresses the session talks to.
type Contracts struct {
	Token common.Address
	Game  common.Address
}

// Session is one player's connection to the game: the active account, its
// contract handles, the synchronized state and the action lock. Sessions
// are built with NewSession, started with Start and torn down with Close.
// A network change is handled by closing the session and building a new one.
type Session struct {
	network   networks.Network
	contracts Contracts
	provider  WalletProvider

	pool               *NetworkPool
	readerFactory      ReaderFactory
	broadcasterFactory BroadcasterFactory
	txMonitorFactory   TxMonitorFactory
	backendFactory     BackendFactory
	tokenBinder        TokenBinder
	gameBinder         GameBinder

	notifier Notifier
	locker   Locker
	reload   func(chainID uint64)
	defaults SessionDefaults

	state     *gameState
	connector *Connector

	mu      sync.Mutex
	backend Backend
	token   TokenContract
	game    GameContract

	watchCancel context.CancelFunc
	watchDone   chan struct{}
	closeOnce   sync.Once
}

// NewSession creates a session for the given network and contract addresses.
// provider may be nil, in which case Start reports ErrNoWallet.
func NewSession(network networks.Network, contracts Contracts, provider WalletProvider, opts ...SessionOption) (*Session, error) {
	if network == nil {
		return nil, ErrNetworkNil
	}

	s := &Session{
		network:     network,
		contracts:   contracts,
		provider:    provider,
		tokenBinder: BindToken,
		gameBinder:  BindGame,
		notifier:    LogNotifier{},
		defaults: SessionDefaults{
			NumRetries:      DefaultNumRetries,
			SleepDuration:   DefaultSleepDuration,
			TxCheckInterval: DefaultTxCheckInterval,
			TxType:          types.DynamicFeeTxType,
		},
		state: &gameState{},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.pool == nil {
		s.pool = NewNetworkPool(s.readerFactory, s.broadcasterFactory, s.txMonitorFactory)
	}
	if s.backendFactory == nil {
		s.backendFactory = s.transactorBackend
	}
	if s.locker == nil {
		s.locker = NewMemoryLocker()
	}
	s.connector = newConnector(provider, network, s.state, s.activateAccount)

	return s, nil
}

func (s *Session) transactorBackend(network networks.Network, signer Signer) (Backend, error) {
	c, err := s.pool.Components(network)
	if err != nil {
		return nil, err
	}
	return NewTransactor(network, signer, s.defaults, c)
}

// Start connects the wallet, loads the game state of the authorized account
// and starts watching for network changes.
func (s *Session) Start(ctx context.Context) error {
	s.state.setLoading(true)

	if s.provider != nil {
		if err := s.startWatcher(); err != nil {
			s.state.setLoading(false)
			return err
		}
	}

	if err := s.connector.CheckConnection(ctx); err != nil {
		s.state.setLoading(false)
		return err
	}
	if s.state.getAccount() == (common.Address{}) {
		s.state.setLoading(false)
	}
	return nil
}

// startWatcher subscribes before returning so a switch requested while
// connecting is not missed.
func (s *Session) startWatcher() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchCancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	changes, err := s.provider.SubscribeChainChanged(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("couldn't subscribe to network changes: %w", err)
	}
	s.watchCancel = cancel
	s.watchDone = make(chan struct{})
	go func() {
		defer close(s.watchDone)
		s.connector.watch(ctx, changes, s.reload)
	}()
	return nil
}

// Close stops the network watcher. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		cancel, done := s.watchCancel, s.watchDone
		s.mu.Unlock()
		if cancel != nil {
			cancel()
			<-done
		}
		s.state.setLoading(false)
	})
}

// Connect is the user-initiated wallet connection.
func (s *Session) Connect(ctx context.Context) (common.Address, error) {
	return s.connector.Connect(ctx)
}

// Connector exposes the wallet connector of the session.
func (s *Session) Connector() *Connector {
	return s.connector
}

func (s *Session) Network() networks.Network {
	return s.network
}

// Account returns the active account, the zero address when none is set.
func (s *Session) Account() common.Address {
	return s.state.getAccount()
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	return s.state.Snapshot()
}

// activateAccount builds the account backend, rebinds the game contract and
// loads balance and game state.
func (s *Session) activateAccount(ctx context.Context, addr common.Address) error {
	if addr == s.state.getAccount() && s.currentBackend() != nil {
		return nil
	}

	signer, err := s.provider.Signer(addr)
	if err != nil {
		return fmt.Errorf("couldn't get signer for %s: %w", addr.Hex(), err)
	}
	backend, err := s.backendFactory(s.network, signer)
	if err != nil {
		return fmt.Errorf("couldn't build backend for %s: %w", addr.Hex(), err)
	}

	s.mu.Lock()
	s.backend = backend
	s.mu.Unlock()
	if prev := s.state.getAccount(); prev != (common.Address{}) && prev != addr {
		// nothing loaded for the previous account carries over
		s.state.reset()
	}
	s.state.setAccount(addr)

	if _, err := s.BindGameContract(); err != nil {
		return err
	}
	if _, err := s.FetchBalance(ctx); err != nil {
		logger.WithFields(logger.Fields{
			"account": addr.Hex(),
			"error":   err,
		}).Warn("Couldn't fetch balance")
	}
	return s.Refresh(ctx)
}

func (s *Session) currentBackend() Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend
}

// BindTokenContract returns the token handle, binding it on first use. The
// handle follows the active account, so it is never rebound.
func (s *Session) BindTokenContract() (TokenContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil {
		return s.token, nil
	}
	token, err := s.tokenBinder(s.contracts.Token, accountBackend{s: s})
	if err != nil {
		return nil, fmt.Errorf("couldn't bind token contract: %w", err)
	}
	s.token = token
	return token, nil
}

// BindGameContract binds a fresh game handle to the active account.
func (s *Session) BindGameContract() (GameContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend == nil {
		return nil, ErrNoAccount
	}
	game, err := s.gameBinder(s.contracts.Game, s.backend)
	if err != nil {
		return nil, fmt.Errorf("couldn't bind game contract: %w", err)
	}
	s.game = game
	return game, nil
}

func (s *Session) gameContract() (GameContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.game == nil {
		return nil, ErrNoAccount
	}
	return s.game, nil
}

func (s *Session) waiter() (TxWaiter, error) {
	b := s.currentBackend()
	if b == nil {
		return nil, ErrNoAccount
	}
	return b, nil
}

// accountBackend resolves the active account's backend on every call.
type accountBackend struct {
	s *Session
}

func (b accountBackend) From() common.Address {
	return b.s.state.getAccount()
}

func (b accountBackend) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	backend := b.s.currentBackend()
	if backend == nil {
		return nil, ErrNoAccount
	}
	return backend.Call(ctx, to, data)
}

func (b accountBackend) Submit(ctx context.Context, to common.Address, data []byte) (*types.Transaction, error) {
	backend := b.s.currentBackend()
	if backend == nil {
		return nil, ErrNoAccount
	}
	return backend.Submit(ctx, to, data)
}
