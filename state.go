package epicgame

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// gameState is the session's view of the chain. All access goes through the
// mutex so HTTP readers can take snapshots while an action runs.
type gameState struct {
	mu sync.RWMutex

	loading      bool
	account      common.Address
	balance      *big.Int
	hasCharacter bool
	character    *Character
	roster       []Character
	boss         *Boss
	attacks      []Attack
	specials     []SpecialAttack
	err          string
}

func (s *gameState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Loading:      s.loading,
		Balance:      copyBig(s.balance),
		HasCharacter: s.hasCharacter,
		Error:        s.err,
	}
	if s.account != (common.Address{}) {
		acc := s.account
		snap.Account = &acc
	}
	if s.character != nil {
		c := s.character.clone()
		snap.Character = &c
	}
	if s.boss != nil {
		b := s.boss.clone()
		snap.Boss = &b
	}
	snap.DefaultCharacters = make([]Character, 0, len(s.roster))
	for _, c := range s.roster {
		snap.DefaultCharacters = append(snap.DefaultCharacters, c.clone())
	}
	snap.Attacks = make([]Attack, 0, len(s.attacks))
	for _, a := range s.attacks {
		snap.Attacks = append(snap.Attacks, a.clone())
	}
	snap.SpecialAttacks = make([]SpecialAttack, 0, len(s.specials))
	for _, sa := range s.specials {
		snap.SpecialAttacks = append(snap.SpecialAttacks, sa.clone())
	}
	return snap
}

func (s *gameState) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *gameState) setError(msg string) {
	s.mu.Lock()
	s.err = msg
	s.mu.Unlock()
}

func (s *gameState) getAccount() common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

func (s *gameState) setAccount(addr common.Address) {
	s.mu.Lock()
	s.account = addr
	s.mu.Unlock()
}

func (s *gameState) getBalance() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyBig(s.balance)
}

func (s *gameState) setBalance(b *big.Int) {
	s.mu.Lock()
	s.balance = copyBig(b)
	s.mu.Unlock()
}

// setCharacter stores the owned character, or the roster when c is nil. It
// reports whether the has-character flag flipped.
func (s *gameState) setCharacter(c *Character, roster []Character) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	has := c != nil
	changed = has != s.hasCharacter
	s.hasCharacter = has
	if has {
		cc := c.clone()
		s.character = &cc
		return changed
	}
	s.character = nil
	s.roster = roster
	return changed
}

func (s *gameState) setWorld(boss Boss, attacks []Attack, specials []SpecialAttack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boss = &boss
	s.attacks = attacks
	s.specials = specials
}

// reset clears everything but the loading flag and the error string.
func (s *gameState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = common.Address{}
	s.balance = nil
	s.hasCharacter = false
	s.character = nil
	s.roster = nil
	s.boss = nil
	s.attacks = nil
	s.specials = nil
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func copyBigs(v []*big.Int) []*big.Int {
	if v == nil {
		return nil
	}
	out := make([]*big.Int, len(v))
	for i, b := range v {
		out[i] = copyBig(b)
	}
	return out
}

func (c Character) clone() Character {
	return Character{
		Index:          copyBig(c.Index),
		Name:           c.Name,
		ImageURI:       c.ImageURI,
		HP:             copyBig(c.HP),
		MaxHP:          copyBig(c.MaxHP),
		Attacks:        copyBigs(c.Attacks),
		SpecialAttacks: copyBigs(c.SpecialAttacks),
		LastRegenTime:  copyBig(c.LastRegenTime),
		TokenID:        copyBig(c.TokenID),
	}
}

func (b Boss) clone() Boss {
	return Boss{
		Name:         b.Name,
		ImageURI:     b.ImageURI,
		AttackDamage: copyBig(b.AttackDamage),
		HP:           copyBig(b.HP),
		MaxHP:        copyBig(b.MaxHP),
	}
}

func (a Attack) clone() Attack {
	return Attack{
		Index:    copyBig(a.Index),
		Name:     a.Name,
		ImageURI: a.ImageURI,
		Damage:   copyBig(a.Damage),
	}
}

func (s SpecialAttack) clone() SpecialAttack {
	return SpecialAttack{
		Index:    copyBig(s.Index),
		Name:     s.Name,
		ImageURI: s.ImageURI,
		Damage:   copyBig(s.Damage),
		Price:    copyBig(s.Price),
	}
}
