package epicgame

import (
	"time"
)

// SessionOption is a function that configures a Session
type SessionOption func(*Session)

// WithNetworkPool shares node connections between sessions
func WithNetworkPool(pool *NetworkPool) SessionOption {
	return func(s *Session) {
		s.pool = pool
	}
}

// WithReaderFactory sets a custom reader factory (useful for testing)
func WithReaderFactory(factory ReaderFactory) SessionOption {
	return func(s *Session) {
		s.readerFactory = factory
	}
}

// WithBroadcasterFactory sets a custom broadcaster factory (useful for testing)
func WithBroadcasterFactory(factory BroadcasterFactory) SessionOption {
	return func(s *Session) {
		s.broadcasterFactory = factory
	}
}

// WithTxMonitorFactory sets a custom tx monitor factory (useful for testing)
func WithTxMonitorFactory(factory TxMonitorFactory) SessionOption {
	return func(s *Session) {
		s.txMonitorFactory = factory
	}
}

// WithBackendFactory replaces the transactor built for each account
func WithBackendFactory(factory BackendFactory) SessionOption {
	return func(s *Session) {
		s.backendFactory = factory
	}
}

// WithTokenBinder replaces the token contract binding
func WithTokenBinder(binder TokenBinder) SessionOption {
	return func(s *Session) {
		s.tokenBinder = binder
	}
}

// WithGameBinder replaces the game contract binding
func WithGameBinder(binder GameBinder) SessionOption {
	return func(s *Session) {
		s.gameBinder = binder
	}
}

// WithNotifier sets where action notifications go
func WithNotifier(n Notifier) SessionOption {
	return func(s *Session) {
		s.notifier = n
	}
}

// WithLocker sets the action lock, e.g. a Redis one shared between processes
func WithLocker(l Locker) SessionOption {
	return func(s *Session) {
		s.locker = l
	}
}

// WithReloadHandler is called when the wallet changes network
func WithReloadHandler(reload func(chainID uint64)) SessionOption {
	return func(s *Session) {
		s.reload = reload
	}
}

// WithDefaultNumRetries sets the number of broadcast retries
func WithDefaultNumRetries(numRetries int) SessionOption {
	return func(s *Session) {
		s.defaults.NumRetries = numRetries
	}
}

// WithDefaultSleepDuration sets the sleep duration between retries
func WithDefaultSleepDuration(duration time.Duration) SessionOption {
	return func(s *Session) {
		s.defaults.SleepDuration = duration
	}
}

// WithDefaultTxCheckInterval sets the transaction check interval
func WithDefaultTxCheckInterval(interval time.Duration) SessionOption {
	return func(s *Session) {
		s.defaults.TxCheckInterval = interval
	}
}

// WithDefaultTxType sets the transaction type
func WithDefaultTxType(txType uint8) SessionOption {
	return func(s *Session) {
		s.defaults.TxType = txType
	}
}

// WithDefaults sets all tx defaults at once
func WithDefaults(defaults SessionDefaults) SessionOption {
	return func(s *Session) {
		s.defaults = defaults
	}
}
