package epicgame

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Action names, used in results, notifications and lock logs.
const (
	ActionFaucet            = "faucet"
	ActionMintCharacterNFT  = "mintCharacterNFT"
	ActionAttackBoss        = "attackBoss"
	ActionAttackSpecialBoss = "attackBossWithSpecialAttack"
	ActionClaimHealth       = "claimHealth"
	ActionBuySpecialAttack  = "buySpecialAttack"
)

const tracerName = "github.com/tranvictor/epicgame"

// notification texts
const (
	pleaseWait                = "Please wait..."
	notEnoughTokensToMint     = "You don't have enough tokens to mint a character. Please get more tokens."
	notEnoughTokensToBuy      = "You don't have enough tokens to buy this special attack. Please get more tokens."
	faucetSucceeded           = "20 EPIC token added to your wallet"
	faucetFailed              = "Error in faucet"
	mintSucceeded             = "AVENGERS"
	mintAssembled             = "ASSEMBLE...."
	mintFailed                = "Error in minting character"
	attackCompleted           = "Attack Completed"
	attackFailed              = "Error in attacking boss"
	claimHealthSucceeded      = "Successfully Recovered Health"
	claimHealthFailed         = "Error in claiming health"
	buySpecialAttackSucceeded = "Successfully bought special attack"
	buySpecialAttackFailed    = "Error in buying special attack"
	refreshFailed             = "Error in loading game state"
)

// ActionStatus is the outcome class of an action.
type ActionStatus string

const (
	StatusSuccess           ActionStatus = "success"
	StatusFailure           ActionStatus = "failure"
	StatusInsufficientFunds ActionStatus = "insufficient-funds"
	StatusPrecondition      ActionStatus = "precondition"
	StatusBusy              ActionStatus = "busy"
)

// errPrecondition marks an action blocked before any transaction was sent
// for a reason other than funds.
var errPrecondition = errors.New("action precondition not met")

// ActionResult is returned by every action. Err is nil only on success.
type ActionResult struct {
	Action   string
	Status   ActionStatus
	TxHashes []common.Hash
	Err      error
}

// OK reports whether the action succeeded.
func (r ActionResult) OK() bool {
	return r.Status == StatusSuccess
}

// actionRun carries one action through its steps.
type actionRun struct {
	s       *Session
	name    string
	account common.Address
	note    *progress
	txs     []common.Hash
	loading bool
}

// runAction is the single execution path of every action: it takes the
// session action lock, traces the run, executes fn and maps whatever it
// returns to an ActionResult. The loading flag is cleared on exit whenever
// fn set it.
func (s *Session) runAction(ctx context.Context, name string, fn func(ctx context.Context, run *actionRun) error) (result ActionResult) {
	result = ActionResult{Action: name}

	account := s.state.getAccount()
	if account == (common.Address{}) {
		result.Status = StatusFailure
		result.Err = ErrNoAccount
		return result
	}

	release, err := s.locker.Acquire(ctx, s.lockKey(account))
	if err != nil {
		result.Status = StatusFailure
		if errors.Is(err, ErrActionInProgress) {
			result.Status = StatusBusy
		}
		result.Err = err
		logger.WithFields(logger.Fields{
			"action":  name,
			"account": account.Hex(),
			"error":   err,
		}).Warn("Couldn't acquire action lock")
		return result
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "epicgame."+name, trace.WithAttributes(
		attribute.String("epicgame.action", name),
		attribute.String("epicgame.account", account.Hex()),
		attribute.Int64("epicgame.chain_id", int64(s.network.GetChainID())),
	))

	run := &actionRun{
		s:       s,
		name:    name,
		account: account,
		note:    newProgress(s.notifier, name, account.Hex()),
	}

	defer func() {
		if run.loading {
			s.state.setLoading(false)
		}
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.WithFields(logger.Fields{
				"action":  name,
				"account": account.Hex(),
				"error":   err,
			}).Warn("Couldn't release action lock")
		}
		span.SetAttributes(attribute.String("epicgame.status", string(result.Status)))
		span.End()
	}()

	err = fn(ctx, run)
	result.TxHashes = run.txs
	result.Err = err
	switch {
	case err == nil:
		result.Status = StatusSuccess
	case errors.Is(err, ErrInsufficientFunds):
		result.Status = StatusInsufficientFunds
	case errors.Is(err, errPrecondition):
		result.Status = StatusPrecondition
	default:
		result.Status = StatusFailure
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	fields := logger.Fields{
		"action":    name,
		"account":   account.Hex(),
		"status":    result.Status,
		"tx_hashes": result.TxHashes,
	}
	if err != nil {
		fields["error"] = err
		logger.WithFields(fields).Warn("Action finished")
	} else {
		logger.WithFields(fields).Info("Action finished")
	}
	return result
}

func (s *Session) lockKey(account common.Address) string {
	return fmt.Sprintf("%d:%s", s.network.GetChainID(), account.Hex())
}

// send submits a transaction and waits for its confirmation.
func (r *actionRun) send(ctx context.Context, step string, submit func(ctx context.Context) (*types.Transaction, error)) error {
	waiter, err := r.s.waiter()
	if err != nil {
		return err
	}
	tx, err := submit(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	r.txs = append(r.txs, tx.Hash())

	logger.WithFields(logger.Fields{
		"action":  r.name,
		"step":    step,
		"tx_hash": tx.Hash().Hex(),
	}).Debug("Waiting for confirmation")

	if _, err := waiter.Wait(ctx, tx); err != nil {
		return fmt.Errorf("%s %s: %w", step, tx.Hash().Hex(), err)
	}
	return nil
}

// balance returns the known balance, fetching it when it was never loaded.
func (r *actionRun) balance(ctx context.Context) (*big.Int, error) {
	if b := r.s.state.getBalance(); b != nil {
		return b, nil
	}
	return r.s.FetchBalance(ctx)
}

func (r *actionRun) setLoading() {
	r.loading = true
	r.s.state.setLoading(true)
}

// alert emits a standalone notification, not tied to the run's progress.
func (r *actionRun) alert(ctx context.Context, kind NotificationKind, msg string) {
	newProgress(r.s.notifier, r.name, r.account.Hex()).emit(ctx, kind, msg)
}

func (r *actionRun) contracts() (TokenContract, GameContract, error) {
	token, err := r.s.BindTokenContract()
	if err != nil {
		return nil, nil, err
	}
	game, err := r.s.gameContract()
	if err != nil {
		return nil, nil, err
	}
	return token, game, nil
}

// Faucet mints FaucetAmount tokens to the account, unless it already holds
// FaucetThreshold or more.
func (s *Session) Faucet(ctx context.Context) ActionResult {
	return s.runAction(ctx, ActionFaucet, func(ctx context.Context, run *actionRun) error {
		balance, err := run.balance(ctx)
		if err != nil {
			return err
		}
		if balance.Cmp(FaucetThreshold) >= 0 {
			run.alert(ctx, NotifyWarning, fmt.Sprintf("You already have %s tokens. Please use that first.", FormatTokens(balance)))
			return fmt.Errorf("%w: balance %s is at least %s", errPrecondition, FormatTokens(balance), FormatTokens(FaucetThreshold))
		}
		token, err := s.BindTokenContract()
		if err != nil {
			return err
		}

		run.note.emit(ctx, NotifyLoading, pleaseWait)
		err = run.send(ctx, "faucet", func(ctx context.Context) (*types.Transaction, error) {
			return token.Faucet(ctx, run.account, FaucetAmount)
		})
		if err == nil {
			_, err = s.FetchBalance(ctx)
		}
		if err != nil {
			run.note.emit(ctx, NotifyError, faucetFailed)
			return err
		}
		run.note.emit(ctx, NotifySuccess, faucetSucceeded)
		return nil
	})
}

// MintCharacterNFT approves MintCost and mints the default character at
// characterIndex. The second notification stage follows the state refresh.
func (s *Session) MintCharacterNFT(ctx context.Context, characterIndex *big.Int) ActionResult {
	return s.runAction(ctx, ActionMintCharacterNFT, func(ctx context.Context, run *actionRun) error {
		if characterIndex == nil {
			return errors.New("character index is required")
		}
		balance, err := run.balance(ctx)
		if err != nil {
			return err
		}
		if balance.Cmp(MintCost) < 0 {
			run.alert(ctx, NotifyError, notEnoughTokensToMint)
			return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, FormatTokens(balance), FormatTokens(MintCost))
		}
		token, game, err := run.contracts()
		if err != nil {
			return err
		}

		run.note.emit(ctx, NotifyLoading, pleaseWait)
		err = run.send(ctx, "approve", func(ctx context.Context) (*types.Transaction, error) {
			return token.Approve(ctx, game.Address(), MintCost)
		})
		if err == nil {
			err = run.send(ctx, "mintCharacterNFT", func(ctx context.Context) (*types.Transaction, error) {
				return game.MintCharacterNFT(ctx, characterIndex)
			})
		}
		if err != nil {
			run.note.emit(ctx, NotifyError, mintFailed)
			return err
		}

		run.setLoading()
		run.note.emit(ctx, NotifySuccess, mintSucceeded)

		if err := s.Refresh(ctx); err != nil {
			run.note.emit(ctx, NotifyError, refreshFailed)
			return err
		}
		if _, err := s.FetchBalance(ctx); err != nil {
			run.note.emit(ctx, NotifyError, refreshFailed)
			return err
		}
		run.note.emit(ctx, NotifySuccess, mintAssembled)
		return nil
	})
}

// AttackBoss attacks the boss with a regular attack.
func (s *Session) AttackBoss(ctx context.Context, attackIndex *big.Int) ActionResult {
	return s.runAction(ctx, ActionAttackBoss, func(ctx context.Context, run *actionRun) error {
		return run.attack(ctx, "attackBoss", func(ctx context.Context, game GameContract) (*types.Transaction, error) {
			return game.AttackBoss(ctx, attackIndex)
		}, attackIndex)
	})
}

// AttackBossWithSpecialAttack attacks the boss with an owned special attack.
func (s *Session) AttackBossWithSpecialAttack(ctx context.Context, specialAttackIndex *big.Int) ActionResult {
	return s.runAction(ctx, ActionAttackSpecialBoss, func(ctx context.Context, run *actionRun) error {
		return run.attack(ctx, "attackSpecialBoss", func(ctx context.Context, game GameContract) (*types.Transaction, error) {
			return game.AttackSpecialBoss(ctx, specialAttackIndex)
		}, specialAttackIndex)
	})
}

func (r *actionRun) attack(ctx context.Context, step string, submit func(context.Context, GameContract) (*types.Transaction, error), index *big.Int) error {
	if index == nil {
		return errors.New("attack index is required")
	}
	game, err := r.s.gameContract()
	if err != nil {
		return err
	}

	r.note.emit(ctx, NotifyLoading, pleaseWait)
	if err := r.send(ctx, step, func(ctx context.Context) (*types.Transaction, error) {
		return submit(ctx, game)
	}); err != nil {
		r.note.emit(ctx, NotifyError, attackFailed)
		return err
	}
	r.note.emit(ctx, NotifySuccess, attackCompleted)
	return r.s.Refresh(ctx)
}

// ClaimHealth approves ClaimHealthCost and claims health regeneration. The
// state and balance are refreshed whatever the outcome.
func (s *Session) ClaimHealth(ctx context.Context) ActionResult {
	return s.runAction(ctx, ActionClaimHealth, func(ctx context.Context, run *actionRun) error {
		token, game, err := run.contracts()
		if err != nil {
			return err
		}

		run.note.emit(ctx, NotifyLoading, pleaseWait)
		txErr := run.send(ctx, "approve", func(ctx context.Context) (*types.Transaction, error) {
			return token.Approve(ctx, game.Address(), ClaimHealthCost)
		})
		if txErr == nil {
			txErr = run.send(ctx, "claimHealth", func(ctx context.Context) (*types.Transaction, error) {
				return game.ClaimHealth(ctx)
			})
		}
		if txErr != nil {
			run.note.emit(ctx, NotifyError, claimHealthFailed)
		} else {
			run.note.emit(ctx, NotifySuccess, claimHealthSucceeded)
		}

		refreshErr := s.Refresh(ctx)
		_, balanceErr := s.FetchBalance(ctx)
		return errors.Join(txErr, refreshErr, balanceErr)
	})
}

// BuySpecialAttack approves exactly price and buys the special attack at
// specialAttackIndex.
func (s *Session) BuySpecialAttack(ctx context.Context, price, specialAttackIndex *big.Int) ActionResult {
	return s.runAction(ctx, ActionBuySpecialAttack, func(ctx context.Context, run *actionRun) error {
		if price == nil || price.Sign() < 0 {
			return errors.New("a non-negative price is required")
		}
		if specialAttackIndex == nil {
			return errors.New("special attack index is required")
		}
		balance, err := run.balance(ctx)
		if err != nil {
			return err
		}
		if balance.Cmp(price) < 0 {
			run.alert(ctx, NotifyError, notEnoughTokensToBuy)
			return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, FormatTokens(balance), FormatTokens(price))
		}
		token, game, err := run.contracts()
		if err != nil {
			return err
		}

		run.note.emit(ctx, NotifyLoading, pleaseWait)
		txErr := run.send(ctx, "approve", func(ctx context.Context) (*types.Transaction, error) {
			return token.Approve(ctx, game.Address(), price)
		})
		if txErr == nil {
			txErr = run.send(ctx, "buySpecialAttack", func(ctx context.Context) (*types.Transaction, error) {
				return game.BuySpecialAttack(ctx, specialAttackIndex)
			})
		}
		if txErr != nil {
			run.note.emit(ctx, NotifyError, buySpecialAttackFailed)
		} else {
			run.note.emit(ctx, NotifySuccess, buySpecialAttackSucceeded)
		}

		refreshErr := s.Refresh(ctx)
		_, balanceErr := s.FetchBalance(ctx)
		return errors.Join(txErr, refreshErr, balanceErr)
	})
}
