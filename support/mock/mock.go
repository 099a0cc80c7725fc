// Package mock is a minimal in-memory Runtime, grounded on the call shape
// the teacher's miner_test.go drives its mock.Runtime with: a Builder that
// produces a *Runtime wired to a receiver/epoch/balance, CheckActorExports
// to sanity-check an Actor's method table, and Runtime.Call/CallExpectAbort
// to invoke an exported actor method and assert on its outcome.
//
// Because vetoken and feedistributor are separate actors with their own
// state roots, this harness also supports RegisterActor: wiring a second
// *Runtime (with its own store and state) behind an address so a test can
// exercise a real rt.Send cross-actor call instead of stubbing the result.
package mock

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veglow-protocol/ve-contracts/actors/abi"
	"github.com/veglow-protocol/ve-contracts/actors/runtime"
	"github.com/veglow-protocol/ve-contracts/actors/runtime/exitcode"
	"github.com/veglow-protocol/ve-contracts/actors/util/adt"
)

// AbortError is what a recovered Runtime.Abortf panic unwraps to, letting
// tests (and Send, across an actor boundary) distinguish a deliberate abort
// from a genuine harness bug.
type AbortError struct {
	Code exitcode.ExitCode
	Msg  string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

type tokenSend struct {
	To     abi.Address
	Amount abi.TokenAmount
}

// tokenSink is the mock TokenTransferrer: it never fails, it just records.
type tokenSink struct {
	sent []tokenSend
}

func (s *tokenSink) Send(to abi.Address, amount abi.TokenAmount) error {
	s.sent = append(s.sent, tokenSend{To: to, Amount: amount})
	return nil
}

type mockMessage struct {
	caller, receiver abi.Address
}

func (m mockMessage) Caller() abi.Address   { return m.caller }
func (m mockMessage) Receiver() abi.Address { return m.receiver }

var _ runtime.Runtime = (*Runtime)(nil)

// Runtime is a single actor's test environment: its own content-addressed
// store, its own in-memory state cell, and a table of peer actors reachable
// through Send.
type Runtime struct {
	t        testing.TB
	receiver abi.Address
	caller   abi.Address
	epoch    abi.UnixTime
	balance  abi.TokenAmount
	store    adt.Store
	state    interface{}
	exports  []interface{}
	peers    map[string]*Runtime
	tokens   *tokenSink
}

func (rt *Runtime) Now() abi.UnixTime { return rt.epoch }

func (rt *Runtime) Message() runtime.Message {
	return mockMessage{caller: rt.caller, receiver: rt.receiver}
}

// ValidateImmediateCallerIs mirrors the Runtime.ValidateImmediateCallerIs
// contract: abort Unauthorized unless the caller is one of addrs.
func (rt *Runtime) ValidateImmediateCallerIs(addrs ...abi.Address) {
	for _, a := range addrs {
		if a == rt.caller {
			return
		}
	}
	rt.Abortf(exitcode.Unauthorized, "caller %s is not one of the expected addresses", rt.caller)
}

// ValidateImmediateCallerIsUser mirrors the documented contract on
// runtime.Runtime: only a signable (non-contract) caller may proceed.
func (rt *Runtime) ValidateImmediateCallerIsUser() {
	if !abi.IsUserAddress(rt.caller) {
		rt.Abortf(exitcode.ContractsCannotInteractWithLocks, "caller %s is not a user address", rt.caller)
	}
}

func (rt *Runtime) ValidateImmediateCallerAcceptAny() {}

type stateAPI struct{ rt *Runtime }

func (s stateAPI) Create(stateObj interface{}) {
	if s.rt.state != nil {
		s.rt.Abortf(exitcode.ErrIllegalState, "state already created")
	}
	s.rt.state = reflect.ValueOf(stateObj).Elem().Interface()
}

func (s stateAPI) Readonly(stateObj interface{}) {
	if s.rt.state == nil {
		s.rt.Abortf(exitcode.ErrIllegalState, "state not yet created")
	}
	reflect.ValueOf(stateObj).Elem().Set(reflect.ValueOf(s.rt.state))
}

func (s stateAPI) Transaction(stateObj interface{}, f func()) {
	s.Readonly(stateObj)
	f()
	s.rt.state = reflect.ValueOf(stateObj).Elem().Interface()
}

func (rt *Runtime) State() runtime.StateAPI { return stateAPI{rt} }

func (rt *Runtime) Store() adt.Store { return rt.store }

// RegisterActor wires a peer actor's environment and export table behind
// addr, so this Runtime's Send can route a cross-actor call to it exactly
// as vetoken and feedistributor do in production.
func (rt *Runtime) RegisterActor(addr abi.Address, target *Runtime, actor interface{ Exports() []interface{} }) {
	target.exports = actor.Exports()
	if rt.peers == nil {
		rt.peers = map[string]*Runtime{}
	}
	rt.peers[addr.String()] = target
}

// Send invokes method on the actor registered at "to", setting that actor's
// caller to this Runtime's receiver for the duration of the call. An
// Abortf raised by the callee is recovered and returned as an *AbortError
// rather than propagated as a panic, matching how a real host would report
// a failed cross-actor call to the caller.
func (rt *Runtime) Send(to abi.Address, method uint64, params interface{}, ret interface{}) (err error) {
	target, ok := rt.peers[to.String()]
	if !ok {
		return fmt.Errorf("mock: no actor registered at %s", to)
	}
	if method >= uint64(len(target.exports)) || target.exports[method] == nil {
		return fmt.Errorf("mock: %s does not export method %d", to, method)
	}
	fn := target.exports[method]

	prevCaller := target.caller
	target.caller = rt.receiver
	defer func() { target.caller = prevCaller }()

	defer func() {
		if r := recover(); r != nil {
			if ae, ok := r.(*AbortError); ok {
				err = ae
				return
			}
			panic(r)
		}
	}()

	result := target.Call(fn, params)
	if ret != nil && result != nil {
		rv := reflect.ValueOf(result)
		if rv.Kind() == reflect.Ptr && !rv.IsNil() {
			reflect.ValueOf(ret).Elem().Set(rv.Elem())
		}
	}
	return nil
}

func (rt *Runtime) Tokens() runtime.TokenTransferrer { return rt.tokens }

// TokensSent exposes what the mock TokenTransferrer recorded, for tests
// asserting a Withdraw/Claim payout.
func (rt *Runtime) TokensSent() []tokenSend { return rt.tokens.sent }

func (rt *Runtime) CurrentTokenBalance() abi.TokenAmount { return rt.balance }

func (rt *Runtime) Log(level runtime.LogLevel, msg string, args ...interface{}) {
	if rt.t != nil {
		rt.t.Logf(msg, args...)
	}
}

// Abortf raises the test equivalent of a real actor abort: a panic carrying
// the exit code, recovered by CallExpectAbort or by a Send across an actor
// boundary.
func (rt *Runtime) Abortf(code exitcode.ExitCode, format string, args ...interface{}) {
	panic(&AbortError{Code: code, Msg: fmt.Sprintf(format, args...)})
}

// SetCaller/SetEpoch/SetBalance let a test mutate the environment between
// calls without rebuilding the Runtime, mirroring the teacher's
// rt.SetCaller/rt.SetEpoch helpers used between sub-tests in miner_test.go.
func (rt *Runtime) SetCaller(c abi.Address)     { rt.caller = c }
func (rt *Runtime) SetEpoch(e abi.UnixTime)     { rt.epoch = e }
func (rt *Runtime) SetBalance(b abi.TokenAmount) { rt.balance = b }
func (rt *Runtime) Caller() abi.Address         { return rt.caller }
func (rt *Runtime) Receiver() abi.Address       { return rt.receiver }

// Call invokes an exported actor method (e.g. vetoken.Actor{}.Withdraw)
// against this Runtime, marshaling params through reflection the same way
// Exports()'s slice-of-interface{} dispatch table does at the real host
// boundary. params may be nil for a *adt.EmptyValue-typed method.
func (rt *Runtime) Call(method interface{}, params interface{}) interface{} {
	mv := reflect.ValueOf(method)
	mt := mv.Type()
	args := make([]reflect.Value, 2)
	args[0] = reflect.ValueOf(rt)
	if params == nil {
		args[1] = reflect.Zero(mt.In(1))
	} else {
		args[1] = reflect.ValueOf(params)
	}
	out := mv.Call(args)
	if len(out) == 0 || out[0].IsNil() {
		return nil
	}
	return out[0].Interface()
}

// CallExpectAbort invokes method and requires that it aborts with exactly
// code, mirroring the teacher's rt.ExpectAbort/builder.ExpectValidateCallerAny
// assertion idiom used throughout miner_test.go.
func CallExpectAbort(t testing.TB, rt *Runtime, code exitcode.ExitCode, method interface{}, params interface{}) {
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected call to abort with %s, it did not abort", code)
		ae, ok := r.(*AbortError)
		require.True(t, ok, "expected an *AbortError panic, got %v", r)
		require.Equal(t, code, ae.Code, "unexpected abort code")
	}()
	rt.Call(method, params)
}

// CheckActorExports sanity-checks that every non-nil entry of an Actor's
// Exports() table has the (Runtime, *Params) -> *Return shape the mock's
// Call/Send dispatch relies on, mirroring mock.CheckActorExports(t, a) in
// the teacher.
func CheckActorExports(t testing.TB, a interface{ Exports() []interface{} }) {
	for i, m := range a.Exports() {
		if m == nil {
			continue
		}
		v := reflect.ValueOf(m)
		require.Equal(t, reflect.Func, v.Kind(), "export %d is not a func", i)
		require.Equal(t, 2, v.Type().NumIn(), "export %d must take exactly (Runtime, *Params)", i)
		require.Equal(t, 1, v.Type().NumOut(), "export %d must return exactly one value", i)
	}
}

// Builder constructs a Runtime the way mock.NewBuilder(ctx, receiver) does
// in the teacher: a fluent set of With* calls terminated by Build(t).
type Builder struct {
	receiver abi.Address
	caller   abi.Address
	epoch    abi.UnixTime
	balance  abi.TokenAmount
}

func NewBuilder(receiver abi.Address) *Builder {
	return &Builder{receiver: receiver, balance: abi.NewTokenAmount(0)}
}

func (b *Builder) WithEpoch(e abi.UnixTime) *Builder {
	b.epoch = e
	return b
}

func (b *Builder) WithCaller(c abi.Address) *Builder {
	b.caller = c
	return b
}

func (b *Builder) WithBalance(bal abi.TokenAmount) *Builder {
	b.balance = bal
	return b
}

func (b *Builder) Build(t testing.TB) *Runtime {
	return &Runtime{
		t:        t,
		receiver: b.receiver,
		caller:   b.caller,
		epoch:    b.epoch,
		balance:  b.balance,
		store:    adt.NewBlockStore(),
		peers:    map[string]*Runtime{},
		tokens:   &tokenSink{},
	}
}
