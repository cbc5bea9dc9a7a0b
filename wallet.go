package epicgame

import (
	"context"
	"fmt"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tranvictor/jarvis/networks"
)

// Connector drives the wallet side of a session: provider detection,
// account authorization and network checks.
type Connector struct {
	provider WalletProvider
	network  networks.Network
	state    *gameState

	// onAccount is called with every newly authorized account.
	onAccount func(ctx context.Context, addr common.Address) error
}

func newConnector(provider WalletProvider, network networks.Network, state *gameState, onAccount func(context.Context, common.Address) error) *Connector {
	return &Connector{
		provider:  provider,
		network:   network,
		state:     state,
		onAccount: onAccount,
	}
}

// CheckConnection reports ErrNoWallet when there is no provider, clearing the
// loading flag and leaving the rest of the state untouched. Otherwise it
// verifies the network.
func (c *Connector) CheckConnection(ctx context.Context) error {
	if c.provider == nil {
		logger.Warn("Make sure you have a wallet provider")
		c.state.setLoading(false)
		return ErrNoWallet
	}
	return c.VerifyNetwork(ctx)
}

// VerifyNetwork authorizes the first account when the wallet is on the
// required network. On any other network it asks the wallet to switch, sets
// the state error and returns ErrWrongNetwork; the switch is not awaited.
func (c *Connector) VerifyNetwork(ctx context.Context) error {
	chainID, err := c.provider.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("couldn't read wallet network: %w", err)
	}

	if chainID != c.network.GetChainID() {
		logger.WithFields(logger.Fields{
			"wallet_chain_id":   chainID,
			"required_chain_id": c.network.GetChainID(),
		}).Warn("Wallet is on the wrong network, requesting switch")

		if err := c.provider.SwitchChain(ctx, c.network.GetChainID()); err != nil {
			logger.WithFields(logger.Fields{
				"error": err,
			}).Warn("Wallet refused to switch network")
		}
		c.state.setError(fmt.Sprintf("Please connect to the %s network", c.network.GetName()))
		return ErrWrongNetwork
	}

	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		return fmt.Errorf("account request failed: %w", err)
	}
	if len(accounts) == 0 {
		logger.Info("No authorized account found")
		return nil
	}

	logger.WithFields(logger.Fields{
		"account": accounts[0].Hex(),
	}).Info("Found an authorized account")
	return c.setAccount(ctx, accounts[0])
}

// Connect is the user-initiated account request. A rejection is logged and
// returned; the state is left as it was.
func (c *Connector) Connect(ctx context.Context) (common.Address, error) {
	if c.provider == nil {
		return common.Address{}, ErrNoWallet
	}
	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		logger.WithFields(logger.Fields{
			"error": err,
		}).Warn("Wallet rejected account request")
		return common.Address{}, fmt.Errorf("account request rejected: %w", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, ErrNoAccount
	}

	logger.WithFields(logger.Fields{
		"account": accounts[0].Hex(),
	}).Info("Connected")
	return accounts[0], c.setAccount(ctx, accounts[0])
}

func (c *Connector) setAccount(ctx context.Context, addr common.Address) error {
	if c.onAccount != nil {
		return c.onAccount(ctx, addr)
	}
	c.state.setAccount(addr)
	return nil
}

// WatchNetwork calls reload for every network change reported by the wallet
// until ctx is done. The session is not patched in place: reload is expected
// to tear it down and build a new one.
func (c *Connector) WatchNetwork(ctx context.Context, reload func(chainID uint64)) error {
	if c.provider == nil {
		return ErrNoWallet
	}
	changes, err := c.provider.SubscribeChainChanged(ctx)
	if err != nil {
		return fmt.Errorf("couldn't subscribe to network changes: %w", err)
	}
	c.watch(ctx, changes, reload)
	return nil
}

func (c *Connector) watch(ctx context.Context, changes <-chan uint64, reload func(chainID uint64)) {
	for {
		select {
		case <-ctx.Done():
			return
		case chainID, ok := <-changes:
			if !ok {
				return
			}
			logger.WithFields(logger.Fields{
				"chain_id": chainID,
			}).Info("Wallet network changed, reloading")
			if reload != nil {
				reload(chainID)
			}
		}
	}
}
