// Package big provides a fixed-point arbitrary-precision integer used for
// every amount and coefficient in this module. It exists so that no
// arithmetic anywhere has to fall back to a machine float: locked amounts,
// voting-power coefficients and fee shares can all exceed 64 bits once a
// deposit is multiplied by the square of an end timestamp (see
// actors/builtin/vetoken/coefficients.go), so a native int64 is not safe.
package big

import (
	"io"
	"math/big"

	cbg "github.com/whyrusleeping/cbor-gen"
)

// Int wraps math/big.Int, giving it value semantics good enough for use as
// a struct field and a CBOR-friendly marshaled form. A zero Int (nil inner
// pointer) behaves as zero rather than panicking, mirroring the teacher's
// abi/big.Int nil-safety.
type Int struct {
	*big.Int
}

func Zero() Int {
	return Int{big.NewInt(0)}
}

func NewInt(n int64) Int {
	return Int{big.NewInt(n)}
}

func NewIntFromString(s string) (Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Zero(), false
	}
	return Int{v}, true
}

func (bi Int) val() *big.Int {
	if bi.Int == nil {
		return big.NewInt(0)
	}
	return bi.Int
}

func (bi Int) Copy() Int {
	return Int{new(big.Int).Set(bi.val())}
}

func Add(a, b Int) Int {
	return Int{new(big.Int).Add(a.val(), b.val())}
}

func Sub(a, b Int) Int {
	return Int{new(big.Int).Sub(a.val(), b.val())}
}

func Mul(a, b Int) Int {
	return Int{new(big.Int).Mul(a.val(), b.val())}
}

// Div is a floor division consistent with the spec's "all intermediate
// multiplications performed before final divisions" policy (§4.1): it never
// rounds toward zero for negative results, it rounds toward negative
// infinity, matching ordinary floor-div semantics for non-negative operands
// (the only case this module ever divides).
func Div(a, b Int) Int {
	if b.val().Sign() == 0 {
		return Zero()
	}
	q, m := new(big.Int).QuoRem(a.val(), b.val(), new(big.Int))
	if m.Sign() != 0 && (m.Sign() < 0) != (b.val().Sign() < 0) {
		q.Sub(q, big.NewInt(1))
	}
	return Int{q}
}

func Neg(a Int) Int {
	return Int{new(big.Int).Neg(a.val())}
}

func Max(a, b Int) Int {
	if a.val().Cmp(b.val()) >= 0 {
		return a
	}
	return b
}

func Min(a, b Int) Int {
	if a.val().Cmp(b.val()) <= 0 {
		return a
	}
	return b
}

// SubSaturating returns zero instead of a negative value, implementing the
// "underflow due to truncation saturates to zero rather than wrapping"
// policy mandated by spec §4.1 for the evaluator.
func SubSaturating(a, b Int) Int {
	r := Sub(a, b)
	if r.Sign() < 0 {
		return Zero()
	}
	return r
}

func (bi Int) Sign() int {
	return bi.val().Sign()
}

func (bi Int) IsZero() bool {
	return bi.val().Sign() == 0
}

func (bi Int) LessThan(o Int) bool {
	return bi.val().Cmp(o.val()) < 0
}

func (bi Int) LessThanEqual(o Int) bool {
	return bi.val().Cmp(o.val()) <= 0
}

func (bi Int) GreaterThan(o Int) bool {
	return bi.val().Cmp(o.val()) > 0
}

func (bi Int) GreaterThanEqual(o Int) bool {
	return bi.val().Cmp(o.val()) >= 0
}

func (bi Int) Equals(o Int) bool {
	return bi.val().Cmp(o.val()) == 0
}

func (bi Int) String() string {
	return bi.val().String()
}

func (bi Int) Int64() int64 {
	return bi.val().Int64()
}

// MarshalCBOR writes the sign byte followed by the big-endian magnitude as
// a length-prefixed CBOR byte string (major type 2), the same wire shape
// the teacher's generated MarshalCBOR methods use for abi.TokenAmount.
func (bi Int) MarshalCBOR(w io.Writer) error {
	buf := bi.val().Bytes()
	payload := make([]byte, len(buf)+1)
	if bi.val().Sign() < 0 {
		payload[0] = 1
	}
	copy(payload[1:], buf)
	if err := cbg.WriteMajorTypeHeader(w, cbg.MajByteString, uint64(len(payload))); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func (bi *Int) UnmarshalCBOR(r io.Reader) error {
	br := cbg.GetPeeker(r)
	maj, length, err := cbg.CborReadHeaderBuf(br, make([]byte, 9))
	if err != nil {
		return err
	}
	if maj != cbg.MajByteString {
		return xerrNotByteString
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(br, payload); err != nil {
		return err
	}
	v := new(big.Int)
	if len(payload) > 0 {
		v.SetBytes(payload[1:])
		if payload[0] == 1 {
			v.Neg(v)
		}
	}
	bi.Int = v
	return nil
}

var xerrNotByteString = errNotByteString("big.Int: cbor value was not a byte string")

type errNotByteString string

func (e errNotByteString) Error() string { return string(e) }
