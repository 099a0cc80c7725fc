// Package runtime declares the host-chain collaborator interface. Per
// spec §1, the host chain environment (block/wall-clock time, the storage
// key/value engine, signed messages, address validation), the fungible
// token transfer mechanism and the DEX swap adapter are all out of scope,
// specified only by the interfaces the core engines need. This mirrors the
// teacher's actors/runtime.Runtime exactly in shape: a single capability
// object threaded through every actor method (see miner_actor.go's
// `func (a Actor) AddLockedFund(rt Runtime, ...)`).
package runtime

import (
	"github.com/veglow-protocol/ve-contracts/actors/abi"
	"github.com/veglow-protocol/ve-contracts/actors/runtime/exitcode"
	"github.com/veglow-protocol/ve-contracts/actors/util/adt"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Message exposes the caller/receiver of the in-flight invocation, as
// miner_actor.go reads via rt.Message().Caller()/Receiver().
type Message interface {
	Caller() abi.Address
	Receiver() abi.Address
}

// StateAPI is the versioned per-actor state cell: Create initializes it
// once at construction, Readonly loads the current value without allowing
// mutation, and Transaction loads it, runs f (which may mutate the pointee
// in place) and persists the result atomically — exactly the
// `rt.State().Transaction(&st, func() { ... })` idiom used throughout
// miner_actor.go.
type StateAPI interface {
	Create(stateObj interface{})
	Readonly(stateObj interface{})
	Transaction(stateObj interface{}, f func())
}

// TokenTransferrer is the out-of-scope fungible-token transfer mechanism
// (spec §1). Send emits a transfer of amount to "to"; failures there abort
// the host's outer transaction (spec §7) rather than being handled here.
type TokenTransferrer interface {
	Send(to abi.Address, amount abi.TokenAmount) error
}

// Runtime is the full host-collaborator surface available to an actor
// method body.
type Runtime interface {
	// Now returns the host-supplied, monotonically advancing timestamp
	// (spec §2). Actor code must never read a wall clock directly.
	Now() abi.UnixTime

	Message() Message

	// ValidateImmediateCallerIs aborts with exitcode.Unauthorized unless
	// the caller is one of the given addresses, mirroring
	// rt.ValidateImmediateCallerIs in the teacher.
	ValidateImmediateCallerIs(addrs ...abi.Address)

	// ValidateImmediateCallerIsUser aborts with
	// exitcode.ContractsCannotInteractWithLocks unless the caller is a
	// signable (non-contract) address, implementing spec §1's "Contracts
	// ... are forbidden from owning locks" and §4.2's per-operation check.
	ValidateImmediateCallerIsUser()

	// ValidateImmediateCallerAcceptAny is a no-op caller check, used by
	// read-only queries and by anyone-may-call operations (sweep,
	// distribute_glow, checkpoint), mirroring the teacher's method of the
	// same name.
	ValidateImmediateCallerAcceptAny()

	State() StateAPI
	Store() adt.Store

	// Send invokes method on the actor at "to", marshaling params and
	// unmarshaling its response into ret, mirroring the teacher's
	// `_, code := rt.Send(to, method, params, value)` used throughout
	// miner_actor.go for cross-actor calls (e.g. to the power actor). The
	// fee distributor uses this to query the registered vetoken actor's
	// StateQuery/StakerQuery methods rather than reaching into its state
	// directly — the two are separate actors with isolated state roots.
	Send(to abi.Address, method uint64, params interface{}, ret interface{}) error

	Tokens() TokenTransferrer
	CurrentTokenBalance() abi.TokenAmount

	Log(level LogLevel, msg string, args ...interface{})

	// Abortf raises a typed, unrecoverable failure for the current
	// invocation. No operation partially mutates state past an Abortf
	// (spec §7).
	Abortf(code exitcode.ExitCode, format string, args ...interface{})
}

// RequireNoErr aborts rt with code if err is non-nil, exactly mirroring
// the teacher's builtin.RequireNoErr helper used after every fallible adt
// call in miner_actor.go.
func RequireNoErr(rt Runtime, err error, code exitcode.ExitCode, msg string) {
	if err != nil {
		rt.Abortf(code, "%s: %v", msg, err)
	}
}

func Require(rt Runtime, cond bool, code exitcode.ExitCode, format string, args ...interface{}) {
	if !cond {
		rt.Abortf(code, format, args...)
	}
}
