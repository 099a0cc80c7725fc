package adt

import (
	"io"

	cbg "github.com/whyrusleeping/cbor-gen"
)

// EmptyValue is the CBOR-marshalable unit type, used wherever an actor
// method takes no parameters or returns nothing, exactly mirroring the
// teacher's adt.EmptyValue (see `func (a Actor) Checkpoint(rt Runtime, _
// *adt.EmptyValue) *adt.EmptyValue` style signatures).
type EmptyValue struct{}

func (EmptyValue) MarshalCBOR(w io.Writer) error {
	return writeArrayHeader(w, 0)
}

func (e *EmptyValue) UnmarshalCBOR(r io.Reader) error {
	br := cbg.GetPeeker(r)
	_, err := readArrayHeader(br)
	return err
}
