package adt

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	cid "github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"
)

// Map is a string-keyed, content-addressed associative container. Its call
// shape (Put/Get/Delete/ForEach/Root) is identical to the teacher's
// adt.Map, used throughout miner_state.go for PreCommittedSectors and in
// this module for the per-address UserLock index and the per-address claim
// cursor. See DESIGN.md for why the leaf encoding is a flat sorted blob
// rather than a HAMT.
type Map struct {
	store   Store
	entries map[string][]byte // already-CBOR-encoded values, by key
}

// MakeEmptyMap constructs a new, empty Map ready to be populated and
// flushed, mirroring adt.MakeEmptyMap(store).
func MakeEmptyMap(store Store) *Map {
	return &Map{store: store, entries: make(map[string][]byte)}
}

// AsMap loads a previously-flushed Map by root CID, mirroring
// adt.AsMap(store, root).
func AsMap(store Store, root cid.Cid) (*Map, error) {
	var blob mapBlob
	if err := store.Get(root, &blob); err != nil {
		return nil, fmt.Errorf("adt: load map %s: %w", root, err)
	}
	entries := make(map[string][]byte, len(blob.Keys))
	for i, k := range blob.Keys {
		entries[k] = blob.Vals[i]
	}
	return &Map{store: store, entries: entries}, nil
}

func (m *Map) Put(key string, v cbg.CBORMarshaler) error {
	var buf bytes.Buffer
	if err := v.MarshalCBOR(&buf); err != nil {
		return fmt.Errorf("adt: map marshal value for key %q: %w", key, err)
	}
	m.entries[key] = buf.Bytes()
	return nil
}

// Get loads the value for key into out, reporting whether it was present.
func (m *Map) Get(key string, out cbg.CBORUnmarshaler) (bool, error) {
	raw, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if err := out.UnmarshalCBOR(bytes.NewReader(raw)); err != nil {
		return false, fmt.Errorf("adt: map unmarshal value for key %q: %w", key, err)
	}
	return true, nil
}

func (m *Map) Delete(key string) error {
	delete(m.entries, key)
	return nil
}

// ForEach visits entries in ascending key order — a deterministic order is
// required so that callers that rely on ordered iteration with early stop
// (the teacher's UnlockVestedFunds idiom) behave identically on every read.
func (m *Map) ForEach(out cbg.CBORUnmarshaler, cb func(key string) error) error {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := out.UnmarshalCBOR(bytes.NewReader(m.entries[k])); err != nil {
			return fmt.Errorf("adt: map foreach unmarshal key %q: %w", k, err)
		}
		if err := cb(k); err != nil {
			return err
		}
	}
	return nil
}

func (m *Map) Length() int {
	return len(m.entries)
}

// Root flushes the map to the store and returns its content-addressed
// root, mirroring vestingFunds.Root()/precommitted.Root() in the teacher.
func (m *Map) Root() (cid.Cid, error) {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	blob := mapBlob{Keys: keys, Vals: make([][]byte, len(keys))}
	for i, k := range keys {
		blob.Vals[i] = m.entries[k]
	}
	return m.store.Put(&blob)
}

// mapBlob is the on-the-wire encoding of a whole Map: a sorted list of
// keys and their already-encoded value bytes.
type mapBlob struct {
	Keys []string
	Vals [][]byte
}

func (b *mapBlob) MarshalCBOR(w io.Writer) error {
	if err := writeArrayHeader(w, uint64(len(b.Keys))*2); err != nil {
		return err
	}
	for i, k := range b.Keys {
		if err := writeTextString(w, k); err != nil {
			return err
		}
		if err := writeByteString(w, b.Vals[i]); err != nil {
			return err
		}
	}
	return nil
}

func (b *mapBlob) UnmarshalCBOR(r io.Reader) error {
	br := cbg.GetPeeker(r)

	extra, err := readArrayHeader(br)
	if err != nil {
		return err
	}
	count := extra / 2
	b.Keys = make([]string, 0, count)
	b.Vals = make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		k, err := readTextString(br)
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
