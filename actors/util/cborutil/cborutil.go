// Package cborutil holds the small set of hand-written CBOR primitives
// that every persisted domain type in actors/builtin/{vetoken,feedistributor}
// composes its MarshalCBOR/UnmarshalCBOR methods from, in the same spirit
// as the teacher's cbor-gen generated methods (every on-chain struct in
// specs-actors implements MarshalCBOR/UnmarshalCBOR built from exactly
// these kinds of primitives).
package cborutil

import (
	"bufio"
	"fmt"
	"io"

	addr "github.com/filecoin-project/go-address"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/veglow-protocol/ve-contracts/actors/abi/big"
)

func WriteBytes(w io.Writer, b []byte) error {
	if err := cbg.WriteMajorTypeHeader(w, cbg.MajByteString, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func ReadBytes(br *bufio.Reader) ([]byte, error) {
	maj, extra, err := cbg.CborReadHeaderBuf(br, make([]byte, 9))
	if err != nil {
		return nil, err
	}
	if maj != cbg.MajByteString {
		return nil, fmt.Errorf("cborutil: expected byte string, got major type %d", maj)
	}
	buf := make([]byte, extra)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func WriteUint(w io.Writer, n uint64) error {
	return cbg.WriteMajorTypeHeader(w, cbg.MajUnsignedInt, n)
}

func ReadUint(br *bufio.Reader) (uint64, error) {
	maj, extra, err := cbg.CborReadHeaderBuf(br, make([]byte, 9))
	if err != nil {
		return 0, err
	}
	if maj != cbg.MajUnsignedInt {
		return 0, fmt.Errorf("cborutil: expected uint, got major type %d", maj)
	}
	return extra, nil
}

// WriteInt64 encodes a possibly-negative int64 (host timestamps are never
// negative in practice, but lock/claim math occasionally produces a
// transient negative delta before saturation) as a zigzag-coded uint.
func WriteInt64(w io.Writer, n int64) error {
	return WriteUint(w, zigzag(n))
}

func ReadInt64(br *bufio.Reader) (int64, error) {
	u, err := ReadUint(br)
	if err != nil {
		return 0, err
	}
	return unzigzag(u), nil
}

func zigzag(n int64) uint64 {
	return uint64((n << 1) ^ (n >> 63))
}

func unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

func WriteBool(w io.Writer, b bool) error {
	v := cbg.CborBoolFalse
	if b {
		v = cbg.CborBoolTrue
	}
	_, err := w.Write(v)
	return err
}

func ReadBool(br *bufio.Reader) (bool, error) {
	maj, extra, err := cbg.CborReadHeaderBuf(br, make([]byte, 9))
	if err != nil {
		return false, err
	}
	if maj != cbg.MajOther {
		return false, fmt.Errorf("cborutil: expected bool, got major type %d", maj)
	}
	return extra == 21, nil
}

func WriteArrayHeader(w io.Writer, n uint64) error {
	return cbg.WriteMajorTypeHeader(w, cbg.MajArray, n)
}

func ReadArrayHeader(br *bufio.Reader) (uint64, error) {
	maj, extra, err := cbg.CborReadHeaderBuf(br, make([]byte, 9))
	if err != nil {
		return 0, err
	}
	if maj != cbg.MajArray {
		return 0, fmt.Errorf("cborutil: expected array, got major type %d", maj)
	}
	return extra, nil
}

func WriteBigInt(w io.Writer, i big.Int) error {
	return i.MarshalCBOR(w)
}

func ReadBigInt(br *bufio.Reader) (big.Int, error) {
	var i big.Int
	if err := i.UnmarshalCBOR(br); err != nil {
		return big.Zero(), err
	}
	return i, nil
}

func WriteAddress(w io.Writer, a addr.Address) error {
	return WriteBytes(w, a.Bytes())
}

func ReadAddress(br *bufio.Reader) (addr.Address, error) {
	b, err := ReadBytes(br)
	if err != nil {
		return addr.Undef, err
	}
	if len(b) == 0 {
		return addr.Undef, nil
	}
	return addr.NewFromBytes(b)
}

func Peek(r io.Reader) *bufio.Reader {
	return cbg.GetPeeker(r)
}
