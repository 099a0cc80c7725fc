// Package builtin holds constants and helpers shared by the vetoken and
// feedistributor actors, mirroring the teacher's actors/builtin package
// (policy constants such as EpochsInDay, and the RequireNoErr helper used
// throughout miner_actor.go).
package builtin

import (
	"github.com/veglow-protocol/ve-contracts/actors/abi"
	"github.com/veglow-protocol/ve-contracts/actors/runtime"
	"github.com/veglow-protocol/ve-contracts/actors/runtime/exitcode"
	"github.com/veglow-protocol/ve-contracts/actors/util/adt"
)

// Week is the fixed distribution/lock-expiry bucket width, spec §3.
const Week = abi.UnixTime(604800)

// MaxWeeks bounds how far into the future a lock's end time may be set.
const MaxWeeks = 52

// MaxLock is the maximum lock duration in seconds.
const MaxLock = Week * MaxWeeks

// VPDivisor scales the voting-power quadratic back down to locked-amount
// units, spec §4.1. It is defined equal to MaxLock so that a lock created
// at the maximum duration starts with voting power numerically equal to
// its deposited amount.
const VPDivisor = MaxLock

// MaxCheckpointSteps bounds the per-call work of the slope-change
// catch-up loop, spec §4.3/§5: "Bound the loop at 255 iterations per call".
const MaxCheckpointSteps = 255

// DefaultClaimLimit is the default number of weekly entries a claim()
// touches when the caller does not specify limit, spec §4.4.
const DefaultClaimLimit = 20

// MaxClaimLimit is the implementation-chosen cap on the caller-specified
// limit, keeping claim() bounded-work regardless of input (spec §5,
// "Bounded computation").
const MaxClaimLimit = 200

// QuantizeDown floors t to the nearest (lower) week boundary, used by
// create_lock/increase_end_lock_time (spec §4.2: "Align end = floor(
// requested_end / WEEK) * WEEK") and by the catch-up/claim logic to find
// "the current week".
func QuantizeDown(t abi.UnixTime) abi.UnixTime {
	if t < 0 {
		// Locks and distributions only ever deal in non-negative host
		// timestamps; a negative input indicates a caller bug rather than
		// a value this module needs to make sense of.
		return (t - Week + 1) / Week * Week
	}
	return t / Week * Week
}

// AsStore adapts a Runtime's content-addressed store for adt.AsMap/AsArray/
// MakeEmptyMap/MakeEmptyArray calls, mirroring adt.AsStore(rt) in the
// teacher. It cannot live in package adt itself without an import cycle
// (adt must not depend on runtime, since runtime.Runtime.Store() returns
// adt.Store).
func AsStore(rt runtime.Runtime) adt.Store {
	return rt.Store()
}

// AbortOnErr aborts rt if err is non-nil: a typed *exitcode.Error (raised
// by a vetoken/feedistributor state method) propagates its own code,
// anything else (a store/plumbing failure) aborts ErrIllegalState,
// mirroring the teacher's RequireNoErr helper but preserving the specific
// error-surface codes named in spec §6 rather than collapsing them all.
func AbortOnErr(rt runtime.Runtime, err error) {
	if err == nil {
		return
	}
	if ec, ok := err.(*exitcode.Error); ok {
		rt.Abortf(ec.Code, "%s", ec.Msg)
	}
	rt.Abortf(exitcode.ErrIllegalState, "%v", err)
}
