package adt

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	cid "github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"
)

// Array is a sparse, uint64-indexed, content-addressed container, the
// direct analog of the teacher's AMT[ChainEpoch]TokenAmount-style usage in
// miner_state.go's VestingFunds: entries are set at arbitrary integer
// indices (week-aligned timestamps here, rather than epochs) and
// ForEach/Get visit them in ascending key order. This module uses Array
// for SlopeChanges, WeeklyDistribution, and the per-user/global snapshot
// history (keyed directly by timestamp, exactly as AddLockedFunds keys its
// vesting entries directly by vestEpoch).
type Array struct {
	store   Store
	entries map[uint64][]byte
}

func MakeEmptyArray(store Store) *Array {
	return &Array{store: store, entries: make(map[uint64][]byte)}
}

func AsArray(store Store, root cid.Cid) (*Array, error) {
	var blob arrayBlob
	if err := store.Get(root, &blob); err != nil {
		return nil, fmt.Errorf("adt: load array %s: %w", root, err)
	}
	entries := make(map[uint64][]byte, len(blob.Keys))
	for i, k := range blob.Keys {
		entries[k] = blob.Vals[i]
	}
	return &Array{store: store, entries: entries}, nil
}

func (a *Array) Set(key uint64, v cbg.CBORMarshaler) error {
	var buf bytes.Buffer
	if err := v.MarshalCBOR(&buf); err != nil {
		return fmt.Errorf("adt: array marshal value at %d: %w", key, err)
	}
	a.entries[key] = buf.Bytes()
	return nil
}

func (a *Array) Get(key uint64, out cbg.CBORUnmarshaler) (bool, error) {
	raw, ok := a.entries[key]
	if !ok {
		return false, nil
	}
	if err := out.UnmarshalCBOR(bytes.NewReader(raw)); err != nil {
		return false, fmt.Errorf("adt: array unmarshal value at %d: %w", key, err)
	}
	return true, nil
}

func (a *Array) Delete(key uint64) error {
	delete(a.entries, key)
	return nil
}

func (a *Array) Length() uint64 {
	return uint64(len(a.entries))
}

// ForEach visits entries in ascending key order, stopping early if cb
// returns a non-nil error — the same ascending-with-early-stop idiom the
// teacher's UnlockVestedFunds/UnlockUnvestedFunds use against VestingFunds.
func (a *Array) ForEach(out cbg.CBORUnmarshaler, cb func(key uint64) error) error {
	keys := make([]uint64, 0, len(a.entries))
	for k := range a.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		if err := out.UnmarshalCBOR(bytes.NewReader(a.entries[k])); err != nil {
			return fmt.Errorf("adt: array foreach unmarshal key %d: %w", k, err)
		}
		if err := cb(k); err != nil {
			return err
		}
	}
	return nil
}

// ForEachRanged visits only the entries with key in [lo, hi], ascending.
// vetoken's per-user and global history lookups use this to visit only
// the snapshots written before a query time.
func (a *Array) ForEachRanged(lo, hi uint64, out cbg.CBORUnmarshaler, cb func(key uint64) error) error {
	keys := make([]uint64, 0)
	for k := range a.entries {
		if k >= lo && k <= hi {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		if err := out.UnmarshalCBOR(bytes.NewReader(a.entries[k])); err != nil {
			return fmt.Errorf("adt: array foreach unmarshal key %d: %w", k, err)
		}
		if err := cb(k); err != nil {
			return err
		}
	}
	return nil
}

func (a *Array) Root() (cid.Cid, error) {
	keys := make([]uint64, 0, len(a.entries))
	for k := range a.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	blob := arrayBlob{Keys: keys, Vals: make([][]byte, len(keys))}
	for i, k := range keys {
		blob.Vals[i] = a.entries[k]
	}
	return a.store.Put(&blob)
}

type arrayBlob struct {
	Keys []uint64
	Vals [][]byte
}

func (b *arrayBlob) MarshalCBOR(w io.Writer) error {
	if err := writeArrayHeader(w, uint64(len(b.Keys))*2); err != nil {
		return err
	}
	for i, k := range b.Keys {
		if err := writeUint(w, k); err != nil {
			return err
		}
		if err := writeByteString(w, b.Vals[i]); err != nil {
			return err
		}
	}
	return nil
}

func (b *arrayBlob) UnmarshalCBOR(r io.Reader) error {
	br := cbg.GetPeeker(r)

	extra, err := readArrayHeader(br)
	if err != nil {
		return err
	}
	count := extra / 2
	b.Keys = make([]uint64, 0, count)
	b.Vals = make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		k, err := readUint(br)
		if err != nil {
			return err
		}
		v, err := readByteString(br)
		if err != nil {
			return err
		}
		b.Keys = append(b.Keys, k)
		b.Vals = append(b.Vals, v)
	}
	return nil
}
