package epicgame

import (
	"context"
	"fmt"
	"sync"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tranvictor/jarvis/accounts"
	"github.com/tranvictor/jarvis/networks"
	"github.com/tranvictor/jarvis/util/account"
)

// Authorizer decides which of the provider's accounts a request may use.
// Returning an error rejects the request.
type Authorizer func(ctx context.Context, available []common.Address) ([]common.Address, error)

// LocalProvider is a WalletProvider over jarvis accounts held in process.
// It stands in for a browser wallet: it tracks a current network, can be
// switched to another one and notifies subscribers when that happens.
type LocalProvider struct {
	mu       sync.RWMutex
	network  networks.Network
	resolver NetworkResolver
	authz    Authorizer

	order    []common.Address
	accounts map[common.Address]*account.Account

	subs map[chan uint64]struct{}
}

// LocalProviderOption configures a LocalProvider.
type LocalProviderOption func(*LocalProvider)

// WithProviderResolver sets how SwitchChain resolves chain ids.
func WithProviderResolver(r NetworkResolver) LocalProviderOption {
	return func(p *LocalProvider) {
		p.resolver = r
	}
}

// WithAuthorizer sets the account authorization policy. The default
// authorizes every held account.
func WithAuthorizer(a Authorizer) LocalProviderOption {
	return func(p *LocalProvider) {
		p.authz = a
	}
}

func NewLocalProvider(network networks.Network, opts ...LocalProviderOption) *LocalProvider {
	p := &LocalProvider{
		network:  network,
		resolver: DefaultNetworkResolver,
		accounts: map[common.Address]*account.Account{},
		subs:     map[chan uint64]struct{}{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddAccount makes acc available to RequestAccounts. The first account added
// is the one sessions pick.
func (p *LocalProvider) AddAccount(acc *account.Account) {
	p.mu.Lock()
	defer p.mu.Unlock()
	addr := acc.Address()
	if _, ok := p.accounts[addr]; !ok {
		p.order = append(p.order, addr)
	}
	p.accounts[addr] = acc
}

// AddPrivateKey adds an account from a hex private key.
func (p *LocalProvider) AddPrivateKey(hex string) (common.Address, error) {
	acc, err := account.NewPrivateKeyAccount(hex)
	if err != nil {
		return common.Address{}, fmt.Errorf("couldn't load private key: %w", err)
	}
	p.AddAccount(acc)
	return acc.Address(), nil
}

// UnlockAccount unlocks a jarvis-managed account (keystore, ledger, trezor)
// and adds it.
func (p *LocalProvider) UnlockAccount(addr common.Address) (common.Address, error) {
	accDesc, err := accounts.GetAccount(addr.Hex())
	if err != nil {
		return common.Address{}, fmt.Errorf("wallet %s doesn't exist in jarvis", addr.Hex())
	}
	acc, err := accounts.UnlockAccount(accDesc)
	if err != nil {
		return common.Address{}, fmt.Errorf("unlocking wallet failed: %w", err)
	}
	p.AddAccount(acc)
	return acc.Address(), nil
}

func (p *LocalProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	p.mu.RLock()
	available := append([]common.Address(nil), p.order...)
	authz := p.authz
	p.mu.RUnlock()

	if authz == nil {
		return available, nil
	}
	return authz(ctx, available)
}

func (p *LocalProvider) ChainID(context.Context) (uint64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.network == nil {
		return 0, ErrNetworkNil
	}
	return p.network.GetChainID(), nil
}

// Network returns the network the provider is currently on.
func (p *LocalProvider) Network() networks.Network {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.network
}

func (p *LocalProvider) SwitchChain(_ context.Context, chainID uint64) error {
	network, err := p.resolver(chainID)
	if err != nil {
		return fmt.Errorf("unsupported chain %d: %w", chainID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.network != nil && p.network.GetChainID() == chainID {
		return nil
	}
	p.network = network

	logger.WithFields(logger.Fields{
		"chain_id": chainID,
		"network":  network.GetName(),
	}).Info("Wallet switched network")

	for ch := range p.subs {
		select {
		case ch <- chainID:
		default:
			// subscriber still has an unread change pending
		}
	}
	return nil
}

func (p *LocalProvider) SubscribeChainChanged(ctx context.Context) (<-chan uint64, error) {
	ch := make(chan uint64, 1)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.subs, ch)
		p.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (p *LocalProvider) Signer(addr common.Address) (Signer, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	acc, ok := p.accounts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoAccount, addr.Hex())
	}
	return acc, nil
}
