package epicgame

import (
	"fmt"
	"sync"
	"time"

	"github.com/tranvictor/jarvis/networks"
)

// NetworkComponents are the node clients a transactor needs for one network.
// Monitor may be nil, in which case confirmations are polled.
type NetworkComponents struct {
	Reader      EthReader
	Broadcaster EthBroadcaster
	Monitor     TxMonitor
}

// NetworkPool lazily creates and caches network components per chain id so
// sessions rebuilt on the same network reuse their node connections.
type NetworkPool struct {
	readerFactory      ReaderFactory
	broadcasterFactory BroadcasterFactory
	txMonitorFactory   TxMonitorFactory

	readers      sync.Map // map[uint64]EthReader
	broadcasters sync.Map // map[uint64]EthBroadcaster
	txMonitors   sync.Map // map[uint64]TxMonitor

	networkLocks sync.Map // map[uint64]*sync.Mutex
}

// NewNetworkPool creates a pool. Nil factories fall back to the jarvis ones.
func NewNetworkPool(rf ReaderFactory, bf BroadcasterFactory, mf TxMonitorFactory) *NetworkPool {
	if rf == nil {
		rf = DefaultReaderFactory
	}
	if bf == nil {
		bf = DefaultBroadcasterFactory
	}
	if mf == nil {
		mf = DefaultTxMonitorFactory
	}
	return &NetworkPool{
		readerFactory:      rf,
		broadcasterFactory: bf,
		txMonitorFactory:   mf,
	}
}

func (p *NetworkPool) getNetworkLock(chainID uint64) *sync.Mutex {
	lock, _ := p.networkLocks.LoadOrStore(chainID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Components returns the cached components for network, creating missing ones.
func (p *NetworkPool) Components(network networks.Network) (NetworkComponents, error) {
	if network == nil {
		return NetworkComponents{}, ErrNetworkNil
	}
	if err := p.initNetwork(network); err != nil {
		return NetworkComponents{}, fmt.Errorf("couldn't init network %s: %w", network.GetName(), err)
	}

	chainID := network.GetChainID()
	c := NetworkComponents{}
	if r, ok := p.readers.Load(chainID); ok {
		c.Reader = r.(EthReader)
	}
	if b, ok := p.broadcasters.Load(chainID); ok {
		c.Broadcaster = b.(EthBroadcaster)
	}
	if m, ok := p.txMonitors.Load(chainID); ok {
		c.Monitor = m.(TxMonitor)
	}
	return c, nil
}

func (p *NetworkPool) initNetwork(network networks.Network) (err error) {
	chainID := network.GetChainID()
	lock := p.getNetworkLock(chainID)
	lock.Lock()
	defer lock.Unlock()

	var r EthReader
	if existing, ok := p.readers.Load(chainID); ok {
		r = existing.(EthReader)
	} else {
		r, err = p.readerFactory(network)
		if err != nil {
			return err
		}
		p.readers.Store(chainID, r)
	}

	if _, ok := p.broadcasters.Load(chainID); !ok {
		b, err := p.broadcasterFactory(network)
		if err != nil {
			return err
		}
		p.broadcasters.Store(chainID, b)
	}

	if _, ok := p.txMonitors.Load(chainID); !ok {
		if txMon := p.txMonitorFactory(r); txMon != nil {
			p.txMonitors.Store(chainID, txMon)
		}
	}

	return nil
}

// GasSetting returns the cached gas suggestion, refreshing it once stale.
func (t *Transactor) GasSetting() (*GasInfo, error) {
	t.gasMu.Lock()
	defer t.gasMu.Unlock()

	if t.gasInfo != nil && time.Since(t.gasInfo.Timestamp) < GasInfoTTL {
		return t.gasInfo, nil
	}

	gasPrice, gasTipCapGwei, err := t.reader.SuggestedGasSettings()
	if err != nil {
		return nil, fmt.Errorf("couldn't get gas settings for %s: %w", t.network.GetName(), err)
	}
	t.gasInfo = &GasInfo{
		GasPrice:         gasPrice,
		MaxPriorityPrice: gasTipCapGwei,
		Timestamp:        time.Now(),
	}
	return t.gasInfo, nil
}
