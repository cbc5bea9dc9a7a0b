package epicgame

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	jarviscommon "github.com/tranvictor/jarvis/common"
)

// ParseCharacter maps a raw character record. Missing or mistyped fields
// come back as zero values.
func ParseCharacter(r Record) Character {
	return Character{
		Index:          r.bigInt("characterIndex"),
		Name:           r.str("name"),
		ImageURI:       r.str("imageURI"),
		HP:             r.bigInt("hp"),
		MaxHP:          r.bigInt("maxHp"),
		Attacks:        r.bigInts("attacks"),
		SpecialAttacks: r.bigInts("specialAttacks"),
		LastRegenTime:  r.bigInt("lastRegenTime"),
		TokenID:        r.bigInt("tokenId"),
	}
}

// ParseBoss maps a raw boss record.
func ParseBoss(r Record) Boss {
	return Boss{
		Name:         r.str("name"),
		ImageURI:     r.str("imageURI"),
		AttackDamage: r.bigInt("attackDamage"),
		HP:           r.bigInt("hp"),
		MaxHP:        r.bigInt("maxHp"),
	}
}

// ParseAttack maps a raw attack record.
func ParseAttack(r Record) Attack {
	return Attack{
		Index:    r.bigInt("attackIndex"),
		Name:     r.str("attackName"),
		ImageURI: r.str("attackImage"),
		Damage:   r.bigInt("attackDamage"),
	}
}

// ParseSpecialAttack maps a raw special attack record.
func ParseSpecialAttack(r Record) SpecialAttack {
	return SpecialAttack{
		Index:    r.bigInt("specialAttackIndex"),
		Name:     r.str("specialAttackName"),
		ImageURI: r.str("specialAttackImage"),
		Damage:   r.bigInt("specialAttackDamage"),
		Price:    r.bigInt("price"),
	}
}

// Record returns the raw shape of c, the inverse of ParseCharacter.
func (c Character) Record() Record {
	return Record{
		"characterIndex": c.Index,
		"name":           c.Name,
		"imageURI":       c.ImageURI,
		"hp":             c.HP,
		"maxHp":          c.MaxHP,
		"attacks":        c.Attacks,
		"specialAttacks": c.SpecialAttacks,
		"lastRegenTime":  c.LastRegenTime,
		"tokenId":        c.TokenID,
	}
}

func (b Boss) Record() Record {
	return Record{
		"name":         b.Name,
		"imageURI":     b.ImageURI,
		"attackDamage": b.AttackDamage,
		"hp":           b.HP,
		"maxHp":        b.MaxHP,
	}
}

func (a Attack) Record() Record {
	return Record{
		"attackIndex":  a.Index,
		"attackName":   a.Name,
		"attackImage":  a.ImageURI,
		"attackDamage": a.Damage,
	}
}

func (s SpecialAttack) Record() Record {
	return Record{
		"specialAttackIndex":  s.Index,
		"specialAttackName":   s.Name,
		"specialAttackImage":  s.ImageURI,
		"specialAttackDamage": s.Damage,
		"price":               s.Price,
	}
}

func (r Record) bigInt(key string) *big.Int {
	v, _ := r[key].(*big.Int)
	return v
}

func (r Record) bigInts(key string) []*big.Int {
	v, _ := r[key].([]*big.Int)
	return v
}

func (r Record) str(key string) string {
	v, _ := r[key].(string)
	return v
}

// RecordFromTuple converts an unpacked ABI tuple into a Record. go-ethereum
// materializes tuples as anonymous structs whose json tags carry the ABI
// component names; untagged fields fall back to a lower-camel field name.
// Maps are passed through, anything else yields an empty Record.
func RecordFromTuple(v any) Record {
	switch t := v.(type) {
	case Record:
		return t
	case map[string]any:
		return Record(t)
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Record{}
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return Record{}
	}

	rt := rv.Type()
	out := make(Record, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" {
			name = strings.ToLower(field.Name[:1]) + field.Name[1:]
		}
		out[name] = rv.Field(i).Interface()
	}
	return out
}

// RecordsFromTuples converts an unpacked ABI tuple array into Records,
// preserving order.
func RecordsFromTuples(v any) []Record {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]Record, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out = append(out, RecordFromTuple(rv.Index(i).Interface()))
	}
	return out
}

// ParseUint256 parses a decimal uint256 argument such as an index or a wei
// price. abi.Pack reduces larger values modulo 2^256, so they are rejected
// here rather than sent as a different argument.
func ParseUint256(s string) (*big.Int, error) {
	v, err := jarviscommon.StringToBigInt(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUint256, s)
	}
	if err := checkUint256(v); err != nil {
		return nil, err
	}
	return v, nil
}

func checkUint256(v *big.Int) error {
	switch {
	case v == nil:
		return fmt.Errorf("%w: nil", ErrInvalidUint256)
	case v.Sign() < 0, v.BitLen() > 256:
		return fmt.Errorf("%w: %s", ErrInvalidUint256, v)
	}
	return nil
}
