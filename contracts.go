package epicgame

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ContractBackend is what contract bindings need from the chain: reads from
// the session account and submitted writes. *Transactor implements it.
type ContractBackend interface {
	From() common.Address
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	Submit(ctx context.Context, to common.Address, data []byte) (*types.Transaction, error)
}

// TxWaiter waits for a submitted transaction to confirm.
type TxWaiter interface {
	Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// TokenContract is the EPIC ERC-20 token.
type TokenContract interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	Approve(ctx context.Context, spender common.Address, amount *big.Int) (*types.Transaction, error)
	Faucet(ctx context.Context, to common.Address, amount *big.Int) (*types.Transaction, error)
}

// GameContract is the NFT game. Reads return raw records for the parsers.
type GameContract interface {
	Address() common.Address

	CheckIfUserHasNFT(ctx context.Context) (Record, error)
	GetAllDefaultCharacters(ctx context.Context) ([]Record, error)
	GetBigBoss(ctx context.Context) (Record, error)
	GetAllAttacks(ctx context.Context) ([]Record, error)
	GetAllSpecialAttacks(ctx context.Context) ([]Record, error)

	MintCharacterNFT(ctx context.Context, characterIndex *big.Int) (*types.Transaction, error)
	AttackBoss(ctx context.Context, attackIndex *big.Int) (*types.Transaction, error)
	AttackSpecialBoss(ctx context.Context, specialAttackIndex *big.Int) (*types.Transaction, error)
	ClaimHealth(ctx context.Context) (*types.Transaction, error)
	BuySpecialAttack(ctx context.Context, specialAttackIndex *big.Int) (*types.Transaction, error)
}

// TokenBinder and GameBinder construct contract handles at an address.
type (
	TokenBinder func(address common.Address, backend ContractBackend) (TokenContract, error)
	GameBinder  func(address common.Address, backend ContractBackend) (GameContract, error)
)

type boundContract struct {
	address common.Address
	abi     abi.ABI
	backend ContractBackend
}

func bindContract(address common.Address, abiJSON string, backend ContractBackend) (*boundContract, error) {
	if backend == nil {
		return nil, ErrNoAccount
	}
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("couldn't parse contract abi: %w", err)
	}
	return &boundContract{address: address, abi: parsed, backend: backend}, nil
}

func (c *boundContract) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("couldn't pack %s: %w", method, err)
	}
	out, err := c.backend.Call(ctx, c.address, data)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	values, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("couldn't unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}

func (c *boundContract) transact(ctx context.Context, method string, args ...any) (*types.Transaction, error) {
	for _, arg := range args {
		if v, ok := arg.(*big.Int); ok {
			if err := checkUint256(v); err != nil {
				return nil, fmt.Errorf("couldn't pack %s: %w", method, err)
			}
		}
	}
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("couldn't pack %s: %w", method, err)
	}
	tx, err := c.backend.Submit(ctx, c.address, data)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", method, err)
	}
	return tx, nil
}

type tokenContract struct {
	*boundContract
}

// BindToken binds the EPIC token ABI at address.
func BindToken(address common.Address, backend ContractBackend) (TokenContract, error) {
	c, err := bindContract(address, TokenABI, backend)
	if err != nil {
		return nil, err
	}
	return &tokenContract{c}, nil
}

func (t *tokenContract) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	values, err := t.call(ctx, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf returned %T", values[0])
	}
	return balance, nil
}

func (t *tokenContract) Approve(ctx context.Context, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.transact(ctx, "approve", spender, amount)
}

func (t *tokenContract) Faucet(ctx context.Context, to common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.transact(ctx, "faucet", to, amount)
}

type gameContract struct {
	*boundContract
}

// BindGame binds the NFT game ABI at address.
func BindGame(address common.Address, backend ContractBackend) (GameContract, error) {
	c, err := bindContract(address, GameABI, backend)
	if err != nil {
		return nil, err
	}
	return &gameContract{c}, nil
}

func (g *gameContract) Address() common.Address {
	return g.address
}

func (g *gameContract) record(ctx context.Context, method string) (Record, error) {
	values, err := g.call(ctx, method)
	if err != nil {
		return nil, err
	}
	return RecordFromTuple(values[0]), nil
}

func (g *gameContract) records(ctx context.Context, method string) ([]Record, error) {
	values, err := g.call(ctx, method)
	if err != nil {
		return nil, err
	}
	return RecordsFromTuples(values[0]), nil
}

func (g *gameContract) CheckIfUserHasNFT(ctx context.Context) (Record, error) {
	return g.record(ctx, "checkIfUserHasNFT")
}

func (g *gameContract) GetAllDefaultCharacters(ctx context.Context) ([]Record, error) {
	return g.records(ctx, "getAllDefaultCharacters")
}

func (g *gameContract) GetBigBoss(ctx context.Context) (Record, error) {
	return g.record(ctx, "getBigBoss")
}

func (g *gameContract) GetAllAttacks(ctx context.Context) ([]Record, error) {
	return g.records(ctx, "getAllAttacks")
}

func (g *gameContract) GetAllSpecialAttacks(ctx context.Context) ([]Record, error) {
	return g.records(ctx, "getAllSpecialAttacks")
}

func (g *gameContract) MintCharacterNFT(ctx context.Context, characterIndex *big.Int) (*types.Transaction, error) {
	return g.transact(ctx, "mintCharacterNFT", characterIndex)
}

func (g *gameContract) AttackBoss(ctx context.Context, attackIndex *big.Int) (*types.Transaction, error) {
	return g.transact(ctx, "attackBoss", attackIndex)
}

func (g *gameContract) AttackSpecialBoss(ctx context.Context, specialAttackIndex *big.Int) (*types.Transaction, error) {
	return g.transact(ctx, "attackSpecialBoss", specialAttackIndex)
}

func (g *gameContract) ClaimHealth(ctx context.Context) (*types.Transaction, error) {
	return g.transact(ctx, "claimHealth")
}

func (g *gameContract) BuySpecialAttack(ctx context.Context, specialAttackIndex *big.Int) (*types.Transaction, error) {
	return g.transact(ctx, "buySpecialAttack", specialAttackIndex)
}
