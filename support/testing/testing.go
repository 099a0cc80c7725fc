// Package testing (tutil in import aliases, matching the teacher's
// support/testing package) holds small deterministic address/CID
// constructors for tests: NewIDAddr, NewSECP256K1Addr, NewBLSAddr, MakeCID,
// mirroring tutil.NewIDAddr/tutil.NewBLSAddr/tutil.MakeCID as used throughout
// miner_test.go.
package testing

import (
	"fmt"
	"testing"

	addr "github.com/filecoin-project/go-address"
	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
)

// NewIDAddr builds a deterministic actor-protocol address (a contract, per
// abi.IsUserAddress), for the ContractsCannotInteractWithLocks test cases.
func NewIDAddr(t testing.TB, id uint64) addr.Address {
	a, err := addr.NewIDAddress(id)
	require.NoError(t, err)
	return a
}

// NewSECP256K1Addr builds a deterministic signable (user) address from a
// seed string, standing in for a real secp256k1 public key hash.
func NewSECP256K1Addr(t testing.TB, seed string) addr.Address {
	a, err := addr.NewSecp256k1Address([]byte(seed))
	require.NoError(t, err)
	return a
}

// NewBLSAddr builds a deterministic BLS (user) address from a numeric seed.
func NewBLSAddr(t testing.TB, seed int64) addr.Address {
	buf := make([]byte, addr.BlsPublicKeyBytes)
	copy(buf, []byte(fmt.Sprintf("bls-seed-%d", seed)))
	a, err := addr.NewBLSAddress(buf)
	require.NoError(t, err)
	return a
}

// MakeCID derives a deterministic CID from a seed string, for tests that
// need a stand-in content identifier without going through a real Store.
func MakeCID(seed string, prefix *cid.Prefix) cid.Cid {
	if prefix == nil {
		prefix = &cid.Prefix{
			Version:  1,
			Codec:    cid.DagCBOR,
			MhType:   mh.SHA2_256,
			MhLength: -1,
		}
	}
	c, err := prefix.Sum([]byte(seed))
	if err != nil {
		panic(err)
	}
	return c
}
