// Package adt provides the content-addressed, versioned key/value
// abstractions every piece of persisted state in this module is built on,
// mirroring the call shape of the teacher's actors/util/adt package
// (adt.AsStore, adt.AsMap, adt.AsArray, adt.MakeEmptyMap, adt.MakeEmptyArray,
// and the Map/Array Get/Set/Delete/ForEach/Root methods used throughout
// miner_state.go and miner_actor.go).
//
// The host's storage key/value engine itself is out of scope per spec §1
// ("the host chain environment ... storage key/value engine ... specified
// only by the interfaces the core needs"); Store is that interface. The
// in-memory blockstore below is a reference implementation an embedding
// host can swap out, not part of the spec surface itself.
package adt

import (
	"bytes"
	"fmt"
	"sync"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	sha256 "github.com/minio/sha256-simd"
	cbg "github.com/whyrusleeping/cbor-gen"
)

// Store is the content-addressed get/put capability threaded through every
// adt.Map/adt.Array, the same role cbor.IpldStore plays for the teacher's
// adt.Store (obtained via adt.AsStore(rt) in every actor method).
type Store interface {
	Put(v cbg.CBORMarshaler) (cid.Cid, error)
	Get(c cid.Cid, out cbg.CBORUnmarshaler) error
}

// BlockStore is an in-memory content-addressed block store, standing in
// for the host-provided storage engine in tests and in the reference
// runtime (support/mock). Real deployments back Store with whatever
// key/value engine the host chain provides; this module only ever talks to
// the Store interface above.
type BlockStore struct {
	mu     sync.RWMutex
	blocks map[string]blocks.Block
}

func NewBlockStore() *BlockStore {
	return &BlockStore{blocks: make(map[string]blocks.Block)}
}

var _ Store = (*BlockStore)(nil)

func (bs *BlockStore) Put(v cbg.CBORMarshaler) (cid.Cid, error) {
	var buf bytes.Buffer
	if err := v.MarshalCBOR(&buf); err != nil {
		return cid.Undef, fmt.Errorf("adt: marshal failed: %w", err)
	}
	digest, err := mh.Sum(buf.Bytes(), mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("adt: hash failed: %w", err)
	}
	c := cid.NewCidV1(cid.DagCBOR, digest)

	bs.mu.Lock()
	defer bs.mu.Unlock()
	blk, err := blocks.NewBlockWithCid(buf.Bytes(), c)
	if err != nil {
		return cid.Undef, err
	}
	bs.blocks[c.KeyString()] = blk
	return c, nil
}

func (bs *BlockStore) Get(c cid.Cid, out cbg.CBORUnmarshaler) error {
	bs.mu.RLock()
	blk, ok := bs.blocks[c.KeyString()]
	bs.mu.RUnlock()
	if !ok {
		return fmt.Errorf("adt: block %s not found", c)
	}
	return out.UnmarshalCBOR(bytes.NewReader(blk.RawData()))
}

// sum256 returns a raw SHA-256 digest without going through the CID/block
// machinery. Nothing in this module calls it.
func sum256(data []byte) [32]byte {
	return sha256.Sum256(data)
}
