package epicgame

import "errors"

var (
	// wallet / network
	ErrNoWallet     = errors.New("no wallet provider available")
	ErrWrongNetwork = errors.New("wallet is connected to the wrong network")
	ErrNoAccount    = errors.New("no authorized account")

	// dispatch
	ErrActionInProgress  = errors.New("another action is in progress")
	ErrInsufficientFunds = errors.New("insufficient token balance")
	ErrLockNotHeld       = errors.New("action lock is not held")

	// tx execution
	ErrEstimateGasFailed   = errors.New("estimate gas failed")
	ErrAcquireNonceFailed  = errors.New("acquire nonce failed")
	ErrGetGasSettingFailed = errors.New("get gas setting failed")
	ErrBroadcastFailed     = errors.New("broadcast failed")
	ErrSimulatedTxReverted = errors.New("tx will be reverted")
	ErrSimulatedTxFailed   = errors.New("couldn't simulate tx at pending state")
	ErrTxReverted          = errors.New("tx reverted")
	ErrTxLost              = errors.New("tx lost")
	ErrFromAddressZero     = errors.New("from address cannot be zero")
	ErrNetworkNil          = errors.New("network cannot be nil")

	// input
	ErrInvalidUint256 = errors.New("not a uint256")
)
