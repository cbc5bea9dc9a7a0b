package main

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tranvictor/epicgame"
)

var buyPrice string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the game state of the configured account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *epicgame.Session) error {
			return printJSON(cmd.OutOrStdout(), s.Snapshot())
		})
	},
}

var specialAttacksCmd = &cobra.Command{
	Use:   "special-attacks",
	Short: "List the special attacks for sale",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *epicgame.Session) error {
			specials, err := s.FetchSpecialAttacks(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), specials)
		})
	},
}

var faucetCmd = &cobra.Command{
	Use:   "faucet",
	Short: "Get 20 EPIC tokens",
	Args:  cobra.NoArgs,
	RunE: actionCmd(func(ctx context.Context, s *epicgame.Session, _ []*big.Int) epicgame.ActionResult {
		return s.Faucet(ctx)
	}),
}

var mintCmd = &cobra.Command{
	Use:   "mint <character-index>",
	Short: "Mint a default character",
	Args:  cobra.ExactArgs(1),
	RunE: actionCmd(func(ctx context.Context, s *epicgame.Session, idx []*big.Int) epicgame.ActionResult {
		return s.MintCharacterNFT(ctx, idx[0])
	}),
}

var attackCmd = &cobra.Command{
	Use:   "attack <attack-index>",
	Short: "Attack the boss",
	Args:  cobra.ExactArgs(1),
	RunE: actionCmd(func(ctx context.Context, s *epicgame.Session, idx []*big.Int) epicgame.ActionResult {
		return s.AttackBoss(ctx, idx[0])
	}),
}

var specialAttackCmd = &cobra.Command{
	Use:   "special-attack <special-attack-index>",
	Short: "Attack the boss with an owned special attack",
	Args:  cobra.ExactArgs(1),
	RunE: actionCmd(func(ctx context.Context, s *epicgame.Session, idx []*big.Int) epicgame.ActionResult {
		return s.AttackBossWithSpecialAttack(ctx, idx[0])
	}),
}

var claimHealthCmd = &cobra.Command{
	Use:   "claim-health",
	Short: "Pay 0.1 EPIC to regenerate health",
	Args:  cobra.NoArgs,
	RunE: actionCmd(func(ctx context.Context, s *epicgame.Session, _ []*big.Int) epicgame.ActionResult {
		return s.ClaimHealth(ctx)
	}),
}

var buySpecialAttackCmd = &cobra.Command{
	Use:   "buy-special-attack <special-attack-index>",
	Short: "Buy a special attack",
	Long:  `Buy a special attack. Without --price the catalog price is used.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := epicgame.ParseUint256(args[0])
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, s *epicgame.Session) error {
			price, err := resolvePrice(ctx, s, index)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), s.BuySpecialAttack(ctx, price, index))
		})
	},
}

func init() {
	buySpecialAttackCmd.Flags().StringVar(&buyPrice, "price", "", "Price in token wei")
}

func resolvePrice(ctx context.Context, s *epicgame.Session, index *big.Int) (*big.Int, error) {
	if buyPrice != "" {
		return epicgame.ParseUint256(buyPrice)
	}
	specials, err := s.FetchSpecialAttacks(ctx)
	if err != nil {
		return nil, err
	}
	for _, sa := range specials {
		if sa.Index != nil && sa.Index.Cmp(index) == 0 {
			return sa.Price, nil
		}
	}
	return nil, fmt.Errorf("no special attack with index %s", index)
}

// withSession builds a session for the configured account, runs fn and tears
// everything down.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *epicgame.Session) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	rt, err := newApp(epicgame.LogNotifier{})
	if err != nil {
		return err
	}
	defer rt.close()

	s, err := rt.start(ctx, false)
	if err != nil {
		return err
	}
	if s.Account() == (common.Address{}) {
		return epicgame.ErrNoAccount
	}
	return fn(ctx, s)
}

func actionCmd(run func(ctx context.Context, s *epicgame.Session, idx []*big.Int) epicgame.ActionResult) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		indexes := make([]*big.Int, 0, len(args))
		for _, a := range args {
			idx, err := epicgame.ParseUint256(a)
			if err != nil {
				return err
			}
			indexes = append(indexes, idx)
		}
		return withSession(cmd, func(ctx context.Context, s *epicgame.Session) error {
			return printResult(cmd.OutOrStdout(), run(ctx, s, indexes))
		})
	}
}

type resultOutput struct {
	Action   string                `json:"action"`
	Status   epicgame.ActionStatus `json:"status"`
	TxHashes []common.Hash         `json:"txHashes"`
	Error    string                `json:"error,omitempty"`
}

// printResult prints res and turns a failed action into a command error.
func printResult(w io.Writer, res epicgame.ActionResult) error {
	out := resultOutput{Action: res.Action, Status: res.Status, TxHashes: res.TxHashes}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	if err := printJSON(w, out); err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("%s: %s", res.Action, res.Status)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
