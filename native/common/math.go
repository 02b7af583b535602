package common

import (
	"math/big"

	"github.com/holiman/uint256"
)

// MaxBPS is the basis point denominator shared by every fee and ratio.
const MaxBPS = 10_000

// SecsPerYear matches the Gregorian year used for management fee accrual.
const SecsPerYear = 31_556_952

var (
	basisPoints = big.NewInt(MaxBPS)
	// MaxUint256 doubles as the infinite allowance marker.
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	// DegradationCoefficient is the fixed point scale for locked profit decay.
	DegradationCoefficient = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	// WAD is the 1e18 fixed point unit used by prices and indexes.
	WAD = new(big.Int).Set(DegradationCoefficient)
)

// Zero returns a fresh zero value.
func Zero() *big.Int { return big.NewInt(0) }

// Clone copies v, mapping nil to zero.
func Clone(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// CheckWord reverts when v does not fit an unsigned 256-bit word.
func CheckWord(v *big.Int) error {
	if v == nil {
		return nil
	}
	if v.Sign() < 0 {
		return ErrOverflow
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return ErrOverflow
	}
	return nil
}

// Add returns a+b, reverting on uint256 overflow.
func Add(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(Clone(a), Clone(b))
	if err := CheckWord(sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// Sub returns a-b, reverting on underflow.
func Sub(a, b *big.Int) (*big.Int, error) {
	diff := new(big.Int).Sub(Clone(a), Clone(b))
	if diff.Sign() < 0 {
		return nil, ErrOverflow
	}
	return diff, nil
}

// SubFloor returns max(a-b, 0).
func SubFloor(a, b *big.Int) *big.Int {
	diff := new(big.Int).Sub(Clone(a), Clone(b))
	if diff.Sign() < 0 {
		return big.NewInt(0)
	}
	return diff
}

// MulDiv computes a*b/c rounding down with a 512-bit intermediate. A zero
// divisor yields zero.
func MulDiv(a, b, c *big.Int) *big.Int {
	if a == nil || b == nil || c == nil || c.Sign() == 0 {
		return big.NewInt(0)
	}
	x, xOverflow := uint256.FromBig(a)
	y, yOverflow := uint256.FromBig(b)
	z, zOverflow := uint256.FromBig(c)
	if !xOverflow && !yOverflow && !zOverflow && a.Sign() >= 0 && b.Sign() >= 0 && c.Sign() > 0 {
		if quo, overflow := new(uint256.Int).MulDivOverflow(x, y, z); !overflow {
			return quo.ToBig()
		}
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, c)
}

// MulDivUp is MulDiv rounding up.
func MulDivUp(a, b, c *big.Int) *big.Int {
	if a == nil || b == nil || c == nil || c.Sign() == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(a, b)
	quo, rem := new(big.Int).QuoRem(num, c, new(big.Int))
	if rem.Sign() > 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

// ApplyBps returns amount*bps/MaxBPS.
func ApplyBps(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || bps == 0 {
		return big.NewInt(0)
	}
	return MulDiv(amount, new(big.Int).SetUint64(bps), basisPoints)
}

// Min returns the smaller of a and b as a copy.
func Min(a, b *big.Int) *big.Int {
	if Clone(a).Cmp(Clone(b)) <= 0 {
		return Clone(a)
	}
	return Clone(b)
}

// Max returns the larger of a and b as a copy.
func Max(a, b *big.Int) *big.Int {
	if Clone(a).Cmp(Clone(b)) >= 0 {
		return Clone(a)
	}
	return Clone(b)
}

// Pow10 returns 10^decimals.
func Pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
