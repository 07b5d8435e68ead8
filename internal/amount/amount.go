package amount

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"math/bits"
	"strconv"
)

// Amount is a signed 128-bit two's-complement integer.
//
// The zero value is 0. Amounts are immutable values; every operation
// returns a new Amount.
type Amount struct {
	hi int64
	lo uint64
}

var (
	// Zero is the additive identity.
	Zero = Amount{}

	// Max is the largest representable amount (2^127 - 1).
	Max = Amount{hi: math.MaxInt64, lo: math.MaxUint64}

	// Min is the smallest representable amount (-2^127).
	Min = Amount{hi: math.MinInt64, lo: 0}
)

var (
	bigMax  = Max.Big()
	bigMin  = Min.Big()
	bigMod  = new(big.Int).Lsh(big.NewInt(1), 128)
	bigMask = new(big.Int).SetUint64(math.MaxUint64)
)

// New returns the amount equal to v.
func New(v int64) Amount {
	if v < 0 {
		return Amount{hi: -1, lo: uint64(v)}
	}
	return Amount{lo: uint64(v)}
}

// FromUint64 returns the amount equal to v. Every uint64 is representable.
func FromUint64(v uint64) Amount {
	return Amount{lo: v}
}

// MustParse is Parse that panics on error. Intended for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Parse reads a base-10 integer. Values outside [Min, Max] are rejected.
func Parse(s string) (Amount, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Zero, fmt.Errorf("amount: invalid integer %q", s)
	}
	return FromBig(v)
}

// FromBig converts v, failing if it does not fit in 128 bits.
func FromBig(v *big.Int) (Amount, error) {
	if v.Cmp(bigMax) > 0 || v.Cmp(bigMin) < 0 {
		return Zero, fmt.Errorf("amount: %s out of 128-bit range", v)
	}
	u := new(big.Int).Set(v)
	if u.Sign() < 0 {
		u.Add(u, bigMod)
	}
	lo := new(big.Int).And(u, bigMask).Uint64()
	hi := new(big.Int).Rsh(u, 64).Uint64()
	return Amount{hi: int64(hi), lo: lo}, nil
}

// Big returns a as a newly allocated big.Int.
func (a Amount) Big() *big.Int {
	v := big.NewInt(a.hi)
	v.Lsh(v, 64)
	return v.Add(v, new(big.Int).SetUint64(a.lo))
}

// String formats a in base 10.
func (a Amount) String() string {
	if a.hi == 0 {
		return strconv.FormatUint(a.lo, 10)
	}
	if a.hi == -1 && a.lo >= 1<<63 {
		return strconv.FormatInt(int64(a.lo), 10)
	}
	return a.Big().String()
}

// Int64 returns a as an int64 and whether the conversion was exact.
func (a Amount) Int64() (int64, bool) {
	v := int64(a.lo)
	switch {
	case a.hi == 0 && v >= 0:
		return v, true
	case a.hi == -1 && v < 0:
		return v, true
	}
	return 0, false
}

// ClampInt64 returns a clamped into the int64 range.
func (a Amount) ClampInt64() int64 {
	if v, ok := a.Int64(); ok {
		return v
	}
	if a.Sign() < 0 {
		return math.MinInt64
	}
	return math.MaxInt64
}

// Sign returns -1, 0 or +1.
func (a Amount) Sign() int {
	switch {
	case a.hi < 0:
		return -1
	case a.hi == 0 && a.lo == 0:
		return 0
	}
	return 1
}

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool { return a.hi == 0 && a.lo == 0 }

// Cmp returns -1, 0 or +1 as a is less than, equal to, or greater than b.
func (a Amount) Cmp(b Amount) int {
	switch {
	case a.hi < b.hi:
		return -1
	case a.hi > b.hi:
		return 1
	case a.lo < b.lo:
		return -1
	case a.lo > b.lo:
		return 1
	}
	return 0
}

// Equal reports whether a == b.
func (a Amount) Equal(b Amount) bool { return a == b }

func (a Amount) wrappingAdd(b Amount) Amount {
	lo, carry := bits.Add64(a.lo, b.lo, 0)
	hi, _ := bits.Add64(uint64(a.hi), uint64(b.hi), carry)
	return Amount{hi: int64(hi), lo: lo}
}

func (a Amount) wrappingSub(b Amount) Amount {
	lo, borrow := bits.Sub64(a.lo, b.lo, 0)
	hi, _ := bits.Sub64(uint64(a.hi), uint64(b.hi), borrow)
	return Amount{hi: int64(hi), lo: lo}
}

// CheckedAdd returns a+b and false if the sum overflows.
func (a Amount) CheckedAdd(b Amount) (Amount, bool) {
	r := a.wrappingAdd(b)
	if (a.hi < 0) == (b.hi < 0) && (r.hi < 0) != (a.hi < 0) {
		return Zero, false
	}
	return r, true
}

// CheckedSub returns a-b and false if the difference overflows.
func (a Amount) CheckedSub(b Amount) (Amount, bool) {
	r := a.wrappingSub(b)
	if (a.hi < 0) != (b.hi < 0) && (r.hi < 0) != (a.hi < 0) {
		return Zero, false
	}
	return r, true
}

// CheckedMul returns a*b and false if the product overflows.
func (a Amount) CheckedMul(b Amount) (Amount, bool) {
	if a.IsZero() || b.IsZero() {
		return Zero, true
	}
	neg := (a.hi < 0) != (b.hi < 0)
	ahi, alo := a.magnitude()
	bhi, blo := b.magnitude()
	hi, lo, ok := mulU128(ahi, alo, bhi, blo)
	if !ok {
		return Zero, false
	}
	if !neg {
		if hi>>63 != 0 {
			return Zero, false
		}
		return Amount{hi: int64(hi), lo: lo}, true
	}
	// Magnitude of a negative result may reach exactly 2^127.
	if hi > 1<<63 || (hi == 1<<63 && lo != 0) {
		return Zero, false
	}
	return negateU128(hi, lo), true
}

// SaturatingAdd returns a+b clamped to [Min, Max].
func (a Amount) SaturatingAdd(b Amount) Amount {
	if r, ok := a.CheckedAdd(b); ok {
		return r
	}
	if a.hi < 0 {
		return Min
	}
	return Max
}

// SaturatingSub returns a-b clamped to [Min, Max].
func (a Amount) SaturatingSub(b Amount) Amount {
	if r, ok := a.CheckedSub(b); ok {
		return r
	}
	if a.hi < 0 {
		return Min
	}
	return Max
}

// SaturatingMul returns a*b clamped to [Min, Max].
func (a Amount) SaturatingMul(b Amount) Amount {
	if r, ok := a.CheckedMul(b); ok {
		return r
	}
	if (a.hi < 0) != (b.hi < 0) {
		return Min
	}
	return Max
}

// Neg returns -a, saturating at Max for Min.
func (a Amount) Neg() Amount {
	return Zero.SaturatingSub(a)
}

// MinOf returns the smaller of a and b.
func MinOf(a, b Amount) Amount {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// MaxOf returns the larger of a and b.
func MaxOf(a, b Amount) Amount {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// magnitude returns |a| as an unsigned 128-bit pair.
func (a Amount) magnitude() (hi, lo uint64) {
	if a.hi >= 0 {
		return uint64(a.hi), a.lo
	}
	n := negateU128(uint64(a.hi), a.lo)
	return uint64(n.hi), n.lo
}

func negateU128(hi, lo uint64) Amount {
	lo, borrow := bits.Sub64(0, lo, 0)
	hi, _ = bits.Sub64(0, hi, borrow)
	return Amount{hi: int64(hi), lo: lo}
}

func mulU128(ahi, alo, bhi, blo uint64) (hi, lo uint64, ok bool) {
	if ahi != 0 && bhi != 0 {
		return 0, 0, false
	}
	hi, lo = bits.Mul64(alo, blo)
	c1h, c1 := bits.Mul64(ahi, blo)
	c2h, c2 := bits.Mul64(alo, bhi)
	if c1h != 0 || c2h != 0 {
		return 0, 0, false
	}
	var carry uint64
	hi, carry = bits.Add64(hi, c1, 0)
	if carry != 0 {
		return 0, 0, false
	}
	hi, carry = bits.Add64(hi, c2, 0)
	if carry != 0 {
		return 0, 0, false
	}
	return hi, lo, true
}

// MarshalText encodes a as base-10 text.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes base-10 text.
func (a *Amount) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MarshalJSON encodes a as a JSON string so values past 2^53 survive
// JavaScript-style decoders.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either a JSON string or a bare JSON integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	return a.UnmarshalText([]byte(s))
}

// Value implements driver.Valuer. Amounts are stored as TEXT.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	case int64:
		*a = New(v)
		return nil
	case nil:
		*a = Zero
		return nil
	default:
		return fmt.Errorf("amount: cannot scan %T", src)
	}
}
