package adt

import (
	"bufio"
	"fmt"
	"io"

	cbg "github.com/whyrusleeping/cbor-gen"
)

// writeByteString/readByteString and writeTextString/readTextString are the
// two primitives every hand-written MarshalCBOR/UnmarshalCBOR pair in this
// package builds on, kept in one place so the wire format used by Map,
// Array and their container blobs never drifts out of sync with itself.

func writeByteString(w io.Writer, b []byte) error {
	if err := cbg.WriteMajorTypeHeader(w, cbg.MajByteString, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readByteString(br *bufio.Reader) ([]byte, error) {
	maj, extra, err := cbg.CborReadHeaderBuf(br, make([]byte, 9))
	if err != nil {
		return nil, err
	}
	if maj != cbg.MajByteString {
		return nil, fmt.Errorf("adt: expected byte string, got major type %d", maj)
	}
	buf := make([]byte, extra)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeTextString(w io.Writer, s string) error {
	if err := cbg.WriteMajorTypeHeader(w, cbg.MajTextString, uint64(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readTextString(br *bufio.Reader) (string, error) {
	maj, extra, err := cbg.CborReadHeaderBuf(br, make([]byte, 9))
	if err != nil {
		return "", err
	}
	if maj != cbg.MajTextString {
		return "", fmt.Errorf("adt: expected text string, got major type %d", maj)
	}
	buf := make([]byte, extra)
	if _, err := io.ReadFull(br, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeArrayHeader(w io.Writer, n uint64) error {
	return cbg.WriteMajorTypeHeader(w, cbg.MajArray, n)
}

func readArrayHeader(br *bufio.Reader) (uint64, error) {
	maj, extra, err := cbg.CborReadHeaderBuf(br, make([]byte, 9))
	if err != nil {
		return 0, err
	}
	if maj != cbg.MajArray {
		return 0, fmt.Errorf("adt: expected array, got major type %d", maj)
	}
	return extra, nil
}

func writeUint(w io.Writer, n uint64) error {
	return cbg.WriteMajorTypeHeader(w, cbg.MajUnsignedInt, n)
}

func readUint(br *bufio.Reader) (uint64, error) {
	maj, extra, err := cbg.CborReadHeaderBuf(br, make([]byte, 9))
	if err != nil {
		return 0, err
	}
	if maj != cbg.MajUnsignedInt {
		return 0, fmt.Errorf("adt: expected uint, got major type %d", maj)
	}
	return extra, nil
}
