// Package vetoken implements the voting-power engine (VPE): the lock
// store, the slope scheduler and the global aggregate described in spec
// §3-§4.3. The algorithmic core — a piecewise-quadratic function of time
// maintained by scheduled coefficient deltas — is modeled directly on the
// teacher's vesting-table maintenance in miner_state.go's
// AddLockedFunds/UnlockVestedFunds, generalized from "linear unlock of a
// deposit" to "quadratic decay of voting power", per DESIGN.md.
package vetoken

import (
	"io"

	"github.com/veglow-protocol/ve-contracts/actors/abi"
	"github.com/veglow-protocol/ve-contracts/actors/abi/big"
	"github.com/veglow-protocol/ve-contracts/actors/builtin"
	"github.com/veglow-protocol/ve-contracts/actors/util/cborutil"
)

// coefficientScale is the implicit decimal scale of every stored
// coefficient: q, l and c hold their value times 10^18, so that q = D/(e-s)
// keeps its fractional part instead of flooring to zero for realistic
// deposits and lock durations.
var coefficientScale = big.NewInt(1_000_000_000_000_000_000)

// Coefficients is the triple (q, l, c) from spec §4.1, each scaled by
// coefficientScale, such that, for the sum of all active (non-expired)
// locks contributing to it,
//
//	VP(t)     = (c + q*t^2 - l*t) / (VPDivisor * coefficientScale)
//	Locked(t) = (l/2 - q*t) / coefficientScale
//
// Addition and subtraction of Coefficients must be associative and
// commutative across every admissible sequence of lock operations (spec
// §4.1's numeric policy) — true here because each component is plain
// big.Int addition/subtraction.
type Coefficients struct {
	Q big.Int
	L big.Int
	C big.Int
}

func ZeroCoefficients() Coefficients {
	return Coefficients{Q: big.Zero(), L: big.Zero(), C: big.Zero()}
}

// NewLockCoefficients derives the (q, l, c) contribution of a single lock
// with deposit D, start s and end e, per spec §4.1:
//
//	q = D / (e - s)
//	l = 2*D*e / (e - s)
//	c = D*e^2 / (e - s)
//
// each multiplied by coefficientScale. All products are computed before
// the single division, per the "all intermediate multiplications are
// performed before final divisions" policy in spec §4.1.
func NewLockCoefficients(deposit abi.TokenAmount, start, end abi.UnixTime) Coefficients {
	duration := big.NewInt(int64(end - start))
	e := big.NewInt(int64(end))
	scaled := big.Mul(deposit, coefficientScale)

	q := big.Div(scaled, duration)
	l := big.Div(big.Mul(big.NewInt(2), big.Mul(scaled, e)), duration)
	c := big.Div(big.Mul(scaled, big.Mul(e, e)), duration)

	return Coefficients{Q: q, L: l, C: c}
}

func (c Coefficients) Add(o Coefficients) Coefficients {
	return Coefficients{Q: big.Add(c.Q, o.Q), L: big.Add(c.L, o.L), C: big.Add(c.C, o.C)}
}

func (c Coefficients) Sub(o Coefficients) Coefficients {
	return Coefficients{Q: big.Sub(c.Q, o.Q), L: big.Sub(c.L, o.L), C: big.Sub(c.C, o.C)}
}

func (c Coefficients) IsZero() bool {
	return c.Q.IsZero() && c.L.IsZero() && c.C.IsZero()
}

// Evaluate returns (votingPower, lockedAmount) at time t. Both are floored
// to zero rather than allowed to go negative, per spec §4.1: "Subtractions
// in the evaluator that would underflow due to rounding produce zero."
func (c Coefficients) Evaluate(t abi.UnixTime) (votingPower, locked abi.TokenAmount) {
	tInt := big.NewInt(int64(t))

	// c + q*t^2 - l*t, divided by VPDivisor and the scale, floored.
	qt2 := big.Mul(c.Q, big.Mul(tInt, tInt))
	lt := big.Mul(c.L, tInt)
	numerator := big.SubSaturating(big.Add(c.C, qt2), lt)
	votingPower = big.Div(numerator, big.Mul(big.NewInt(int64(builtin.VPDivisor)), coefficientScale))

	// l/2 - q*t, divided by the scale, floored.
	half := big.Div(c.L, big.NewInt(2))
	locked = big.Div(big.SubSaturating(half, big.Mul(c.Q, tInt)), coefficientScale)

	return votingPower, locked
}

func (c Coefficients) MarshalCBOR(w io.Writer) error {
	if err := cborutil.WriteArrayHeader(w, 3); err != nil {
		return err
	}
	if err := cborutil.WriteBigInt(w, c.Q); err != nil {
		return err
	}
	if err := cborutil.WriteBigInt(w, c.L); err != nil {
		return err
	}
	return cborutil.WriteBigInt(w, c.C)
}

func (c *Coefficients) UnmarshalCBOR(r io.Reader) error {
	br := cborutil.Peek(r)
	if _, err := cborutil.ReadArrayHeader(br); err != nil {
		return err
	}
	var err error
	if c.Q, err = cborutil.ReadBigInt(br); err != nil {
		return err
	}
	if c.L, err = cborutil.ReadBigInt(br); err != nil {
		return err
	}
	c.C, err = cborutil.ReadBigInt(br)
	return err
}
