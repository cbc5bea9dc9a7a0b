package epicgame

import (
	"context"
	"fmt"
	"math/big"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
)

// Refresh pulls the whole game state for the active account: the owned
// character or the default roster, the boss and both attack catalogs. The
// reads are sequential and not atomic. A failing read aborts the refresh;
// the loading flag is cleared on every path.
func (s *Session) Refresh(ctx context.Context) error {
	defer s.state.setLoading(false)

	game, err := s.gameContract()
	if err != nil {
		return err
	}

	raw, err := game.CheckIfUserHasNFT(ctx)
	if err != nil {
		return fmt.Errorf("couldn't check owned character: %w", err)
	}
	character := ParseCharacter(raw)

	var changed bool
	if character.Name == "" {
		rawRoster, err := game.GetAllDefaultCharacters(ctx)
		if err != nil {
			return fmt.Errorf("couldn't get default characters: %w", err)
		}
		roster := make([]Character, 0, len(rawRoster))
		for _, r := range rawRoster {
			roster = append(roster, ParseCharacter(r))
		}
		changed = s.state.setCharacter(nil, roster)
	} else {
		changed = s.state.setCharacter(&character, nil)
	}

	rawBoss, err := game.GetBigBoss(ctx)
	if err != nil {
		return fmt.Errorf("couldn't get boss: %w", err)
	}

	rawAttacks, err := game.GetAllAttacks(ctx)
	if err != nil {
		return fmt.Errorf("couldn't get attacks: %w", err)
	}
	attacks := make([]Attack, 0, len(rawAttacks))
	for _, r := range rawAttacks {
		attacks = append(attacks, ParseAttack(r))
	}

	specials, err := s.fetchSpecialAttacks(ctx, game)
	if err != nil {
		return err
	}

	s.state.setWorld(ParseBoss(rawBoss), attacks, specials)

	if changed {
		// the has-character flag flipped: rebind the game handle
		if _, err := s.BindGameContract(); err != nil {
			return err
		}
	}

	logger.WithFields(logger.Fields{
		"account":       s.state.getAccount().Hex(),
		"has_character": character.Name != "",
		"attacks":       len(attacks),
		"special":       len(specials),
	}).Debug("Refreshed game state")
	return nil
}

// FetchSpecialAttacks returns a fresh special attack catalog without
// touching the session state.
func (s *Session) FetchSpecialAttacks(ctx context.Context) ([]SpecialAttack, error) {
	game, err := s.gameContract()
	if err != nil {
		return nil, err
	}
	return s.fetchSpecialAttacks(ctx, game)
}

func (s *Session) fetchSpecialAttacks(ctx context.Context, game GameContract) ([]SpecialAttack, error) {
	raw, err := game.GetAllSpecialAttacks(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't get special attacks: %w", err)
	}
	out := make([]SpecialAttack, 0, len(raw))
	for _, r := range raw {
		out = append(out, ParseSpecialAttack(r))
	}
	return out, nil
}

// FetchBalance reads the token balance of the active account into the state.
func (s *Session) FetchBalance(ctx context.Context) (*big.Int, error) {
	account := s.state.getAccount()
	if account == (common.Address{}) {
		return nil, ErrNoAccount
	}
	token, err := s.BindTokenContract()
	if err != nil {
		return nil, err
	}
	balance, err := token.BalanceOf(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("couldn't fetch balance: %w", err)
	}
	s.state.setBalance(balance)

	logger.WithFields(logger.Fields{
		"account": account.Hex(),
		"balance": balance.String(),
	}).Debug("Fetched balance")
	return copyBig(balance), nil
}
