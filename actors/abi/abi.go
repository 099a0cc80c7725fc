// Package abi holds the small value types shared by every actor in this
// module: the host-clock timestamp type and the user/contract address type.
// It plays the same role the teacher's actors/abi package plays for
// ChainEpoch/Address, adapted from block-height units to wall-clock seconds
// per spec §2 ("a monotonically advancing timestamp ... seconds since
// epoch").
package abi

import (
	"github.com/veglow-protocol/ve-contracts/actors/abi/big"

	addr "github.com/filecoin-project/go-address"
)

// UnixTime is seconds since the Unix epoch, supplied by the host and never
// read from the wall clock directly by actor code.
type UnixTime int64

// TokenAmount is a non-negative amount of the fungible token, denominated
// in its smallest unit.
type TokenAmount = big.Int

func NewTokenAmount(n int64) TokenAmount {
	return big.NewInt(n)
}

// Address identifies a caller or a lock owner. Re-exported from go-address
// so that callers of this module never import the upstream package
// directly.
type Address = addr.Address

// IsUserAddress reports whether addr is permitted to own a lock: the host
// chain distinguishes wallet (signable) addresses from actor/contract
// addresses by protocol byte, and spec §1 forbids contracts from owning
// locks. This is the "contract-detection predicate" spec §4.2 calls a
// host-provided capability.
func IsUserAddress(a Address) bool {
	switch a.Protocol() {
	case addr.SECP256K1, addr.BLS:
		return true
	default:
		return false
	}
}
