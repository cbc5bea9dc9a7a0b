package epicgame

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jarviscommon "github.com/tranvictor/jarvis/common"
)

// Constants for transaction execution
const (
	DefaultNumRetries      = 9
	DefaultSleepDuration   = 5 * time.Second
	DefaultTxCheckInterval = 5 * time.Second

	// Default gas adjustment values used when a broadcast has to be retried
	DefaultGasPriceIncreasePercent = 1.2 // 20% increase
	DefaultTipCapIncreasePercent   = 1.1 // 10% increase

	// Gas settings are cached per network for this long
	GasInfoTTL = 60 * time.Second

	TokenDecimals = 18
)

// Game economics, expressed in token wei (18 decimals).
var (
	FaucetAmount    = tokens("20")
	FaucetThreshold = tokens("20")
	MintCost        = tokens("10")
	ClaimHealthCost = tokens("0.1")
)

// tokens converts a decimal token literal to wei. Only for literals with at
// most a few significant digits; it panics on malformed input.
func tokens(amount string) *big.Int {
	wei, err := jarviscommon.FloatStringToBig(amount, TokenDecimals)
	if err != nil {
		panic(fmt.Sprintf("invalid token amount %q: %v", amount, err))
	}
	return wei
}

// FormatTokens renders a wei amount as a decimal token amount, trimming
// trailing zeros ("25", "0.1"). The whole part is kept as an integer so
// large balances print exactly.
func FormatTokens(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)
	whole, frac := new(big.Int).QuoRem(new(big.Int).Abs(amount), unit, new(big.Int))

	// "0.25" -> ".25", "0." -> "."
	fraction := strings.TrimPrefix(jarviscommon.BigToFloatString(frac, TokenDecimals), "0")
	out := strings.TrimSuffix(whole.String()+fraction, ".")
	if amount.Sign() < 0 {
		out = "-" + out
	}
	return out
}

// Record is a raw contract record keyed by ABI field name.
type Record map[string]any

// Character is an owned character NFT or a default roster template.
type Character struct {
	Index          *big.Int   `json:"characterIndex"`
	Name           string     `json:"name"`
	ImageURI       string     `json:"imageURI"`
	HP             *big.Int   `json:"hp"`
	MaxHP          *big.Int   `json:"maxHp"`
	Attacks        []*big.Int `json:"attacks"`
	SpecialAttacks []*big.Int `json:"specialAttacks"`
	LastRegenTime  *big.Int   `json:"lastRegenTime"`
	TokenID        *big.Int   `json:"tokenId"`
}

// Boss is the single shared adversary.
type Boss struct {
	Name         string   `json:"name"`
	ImageURI     string   `json:"imageURI"`
	AttackDamage *big.Int `json:"attackDamage"`
	HP           *big.Int `json:"hp"`
	MaxHP        *big.Int `json:"maxHp"`
}

// Attack is an entry of the regular attack catalog.
type Attack struct {
	Index    *big.Int `json:"attackIndex"`
	Name     string   `json:"attackName"`
	ImageURI string   `json:"attackImage"`
	Damage   *big.Int `json:"attackDamage"`
}

// SpecialAttack is an entry of the purchasable attack catalog.
type SpecialAttack struct {
	Index    *big.Int `json:"specialAttackIndex"`
	Name     string   `json:"specialAttackName"`
	ImageURI string   `json:"specialAttackImage"`
	Damage   *big.Int `json:"specialAttackDamage"`
	Price    *big.Int `json:"price"`
}

// Snapshot is the state published to UI consumers. Slices and big ints are
// copies; mutating a Snapshot never affects the session.
type Snapshot struct {
	Loading           bool            `json:"isLoading"`
	Account           *common.Address `json:"currentAccount"`
	Balance           *big.Int        `json:"currentBalance"`
	HasCharacter      bool            `json:"hasCharacter"`
	Character         *Character      `json:"currentCharacter,omitempty"`
	DefaultCharacters []Character     `json:"defaultCharactersList"`
	Boss              *Boss           `json:"bigBoss"`
	Attacks           []Attack        `json:"allAttacks"`
	SpecialAttacks    []SpecialAttack `json:"allSpecialAttacks"`
	Error             string          `json:"error"`
}

// SessionDefaults holds the transaction execution settings of a session.
type SessionDefaults struct {
	NumRetries      int
	SleepDuration   time.Duration
	TxCheckInterval time.Duration

	ExtraGasLimit   uint64
	ExtraGasPrice   float64
	ExtraTipCapGwei float64

	TxType uint8
}

// GasInfo is a cached gas suggestion for a network.
type GasInfo struct {
	GasPrice         float64
	MaxPriorityPrice float64
	Timestamp        time.Time
}
