package epicgame

import (
	"fmt"
	"time"

	"github.com/tranvictor/jarvis/networks"
	"github.com/tranvictor/jarvis/util"
	"github.com/tranvictor/jarvis/util/broadcaster"
	"github.com/tranvictor/jarvis/util/monitor"
	"github.com/tranvictor/jarvis/util/reader"
)

// jarvisReader satisfies EthReader with a jarvis reader. Every method but
// TxInfoFromHash is promoted as is.
type jarvisReader struct {
	*reader.EthReader
}

func (r jarvisReader) TxInfoFromHash(hash string) (TxInfo, error) {
	info, err := r.EthReader.TxInfoFromHash(hash)
	if err != nil {
		return TxInfo{}, err
	}
	return TxInfo{Status: TxInfoStatus(info.Status), Receipt: info.Receipt}, nil
}

// jarvisBroadcaster satisfies EthBroadcaster with a jarvis broadcaster.
type jarvisBroadcaster struct {
	*broadcaster.Broadcaster
}

// jarvisMonitor converts jarvis monitor statuses into TxMonitorStatus.
type jarvisMonitor struct {
	m *monitor.TxMonitor
}

func (j jarvisMonitor) MakeWaitChannelWithInterval(txHash string, interval time.Duration) <-chan TxMonitorStatus {
	in := j.m.MakeWaitChannelWithInterval(txHash, interval)
	out := make(chan TxMonitorStatus, 1)
	go func() {
		defer close(out)
		if status, ok := <-in; ok {
			out <- TxMonitorStatus{Status: status.Status, Receipt: status.Receipt}
		}
	}()
	return out
}

// DefaultReaderFactory dials the nodes jarvis knows for network.
func DefaultReaderFactory(network networks.Network) (EthReader, error) {
	r, err := util.EthReader(network)
	if err != nil {
		return nil, fmt.Errorf("reader for %s: %w", network.GetName(), err)
	}
	return jarvisReader{r}, nil
}

func DefaultBroadcasterFactory(network networks.Network) (EthBroadcaster, error) {
	b, err := util.EthBroadcaster(network)
	if err != nil {
		return nil, fmt.Errorf("broadcaster for %s: %w", network.GetName(), err)
	}
	return jarvisBroadcaster{b}, nil
}

// DefaultTxMonitorFactory only knows how to monitor through a jarvis reader.
// For any other reader it returns nil and confirmations are polled.
func DefaultTxMonitorFactory(r EthReader) TxMonitor {
	jr, ok := r.(jarvisReader)
	if !ok {
		return nil
	}
	return jarvisMonitor{monitor.NewGenericTxMonitor(jr.EthReader)}
}

// DefaultNetworkResolver resolves chain ids through the jarvis network list.
func DefaultNetworkResolver(chainID uint64) (networks.Network, error) {
	return networks.GetNetworkByID(chainID)
}
