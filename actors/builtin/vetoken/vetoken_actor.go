package vetoken

import (
	"github.com/veglow-protocol/ve-contracts/actors/abi"
	"github.com/veglow-protocol/ve-contracts/actors/builtin"
	"github.com/veglow-protocol/ve-contracts/actors/runtime"
	"github.com/veglow-protocol/ve-contracts/actors/runtime/exitcode"
	"github.com/veglow-protocol/ve-contracts/actors/util/adt"
)

// Config is the one-shot wiring record: the registered reward-token
// endpoint that alone may invoke Receive, mirroring the
// ChangeWorkerAddress/ChangePeerID-style "Config struct, mutated only
// through an explicit method" shape used throughout the teacher.
type Config struct {
	Owner       abi.Address
	RewardToken abi.Address
	Registered  bool
}

// ActorState is the vetoken actor's single persisted root: the wiring
// Config plus the VPE's own State (lock store, slope scheduler, global
// aggregate, histories).
type ActorState struct {
	Config Config
	VPE    State
}

type Actor struct{}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		1: a.Constructor,
		2: a.RegisterToken,
		3: a.Receive,
		4: a.IncreaseEndLockTime,
		5: a.Withdraw,
		6: a.Checkpoint,
		7: a.ConfigQuery,
		8: a.StateQuery,
		9: a.StakerQuery,
	}
}

type ConstructorParams struct {
	Owner abi.Address
}

func (a Actor) Constructor(rt runtime.Runtime, params *ConstructorParams) *adt.EmptyValue {
	vpe, err := NewState(builtin.AsStore(rt))
	builtin.AbortOnErr(rt, err)
	rt.State().Create(&ActorState{
		Config: Config{Owner: params.Owner},
		VPE:    *vpe,
	})
	return nil
}

// RegisterToken wires the reward-token transfer endpoint exactly once;
// a second call fails Unauthorized, spec §6.
func (a Actor) RegisterToken(rt runtime.Runtime, tokenAddr *abi.Address) *adt.EmptyValue {
	var st ActorState
	rt.State().Transaction(&st, func() {
		rt.ValidateImmediateCallerIs(st.Config.Owner)
		if st.Config.Registered {
			rt.Abortf(exitcode.Unauthorized, "reward token already registered")
		}
		st.Config.RewardToken = *tokenAddr
		st.Config.Registered = true
	})
	return nil
}

// ReceiveParams is the reward-token callback payload: either the
// create_lock{end_lock_time} subcommand (CreateLock true) or
// increase_lock_amount{} (CreateLock false), spec §6.
type ReceiveParams struct {
	Sender      abi.Address
	Amount      abi.TokenAmount
	CreateLock  bool
	EndLockTime abi.UnixTime
}

func (a Actor) Receive(rt runtime.Runtime, params *ReceiveParams) *adt.EmptyValue {
	if params.Amount.Sign() <= 0 {
		rt.Abortf(exitcode.DataShouldBeGiven, "amount must be positive")
	}
	if !abi.IsUserAddress(params.Sender) {
		rt.Abortf(exitcode.ContractsCannotInteractWithLocks, "contracts cannot own locks")
	}

	var st ActorState
	rt.State().Transaction(&st, func() {
		rt.ValidateImmediateCallerIs(st.Config.RewardToken)
		if !st.Config.Registered {
			rt.Abortf(exitcode.ConfigContractsNotRegistered, "reward token not yet registered")
		}

		addrKey := params.Sender.String()
		store := builtin.AsStore(rt)
		now := rt.Now()

		if params.CreateLock {
			end := builtin.QuantizeDown(params.EndLockTime)
			err := st.VPE.CreateLock(store, addrKey, params.Amount, now, end)
			builtin.AbortOnErr(rt, err)
		} else {
			err := st.VPE.IncreaseLockAmount(store, addrKey, now, params.Amount)
			builtin.AbortOnErr(rt, err)
		}
	})
	return nil
}

func (a Actor) IncreaseEndLockTime(rt runtime.Runtime, requestedEnd *abi.UnixTime) *adt.EmptyValue {
	rt.ValidateImmediateCallerIsUser()
	var st ActorState
	rt.State().Transaction(&st, func() {
		caller := rt.Message().Caller()
		end := builtin.QuantizeDown(*requestedEnd)
		err := st.VPE.IncreaseEndLockTime(builtin.AsStore(rt), caller.String(), rt.Now(), end)
		builtin.AbortOnErr(rt, err)
	})
	return nil
}

func (a Actor) Withdraw(rt runtime.Runtime, _ *adt.EmptyValue) *abi.TokenAmount {
	rt.ValidateImmediateCallerIsUser()
	var payout abi.TokenAmount
	var st ActorState
	rt.State().Transaction(&st, func() {
		caller := rt.Message().Caller()
		p, err := st.VPE.Withdraw(builtin.AsStore(rt), caller.String(), rt.Now())
		builtin.AbortOnErr(rt, err)
		payout = p
	})
	if payout.Sign() > 0 {
		err := rt.Tokens().Send(rt.Message().Caller(), payout)
		builtin.AbortOnErr(rt, err)
	}
	return &payout
}

// Checkpoint advances the aggregate to now with no other user-visible
// effect, spec §6.
func (a Actor) Checkpoint(rt runtime.Runtime, _ *adt.EmptyValue) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	var st ActorState
	rt.State().Transaction(&st, func() {
		_, err := st.VPE.Checkpoint(builtin.AsStore(rt), rt.Now())
		builtin.AbortOnErr(rt, err)
	})
	return nil
}

func (a Actor) ConfigQuery(rt runtime.Runtime, _ *adt.EmptyValue) *Config {
	var st ActorState
	rt.State().Readonly(&st)
	return &st.Config
}

type StateQueryParams struct {
	Timestamp *abi.UnixTime
}

type StateQueryReturn struct {
	TotalDeposit     abi.TokenAmount
	TotalVotingPower abi.TokenAmount
}

func (a Actor) StateQuery(rt runtime.Runtime, params *StateQueryParams) *StateQueryReturn {
	var st ActorState
	rt.State().Readonly(&st)
	at := rt.Now()
	if params.Timestamp != nil {
		at = *params.Timestamp
	}
	vp, err := st.VPE.TotalVotingPowerAt(builtin.AsStore(rt), at)
	builtin.AbortOnErr(rt, err)
	return &StateQueryReturn{TotalDeposit: st.VPE.Global.TotalDeposit, TotalVotingPower: vp}
}

type StakerQueryParams struct {
	Address   abi.Address
	Timestamp *abi.UnixTime
}

type StakerQueryReturn struct {
	VotingPower     abi.TokenAmount
	DepositedAmount abi.TokenAmount
	LockedAmount    abi.TokenAmount
}

func (a Actor) StakerQuery(rt runtime.Runtime, params *StakerQueryParams) *StakerQueryReturn {
	var st ActorState
	rt.State().Readonly(&st)
	at := rt.Now()
	if params.Timestamp != nil {
		at = *params.Timestamp
	}
	vp, deposited, locked, err := st.VPE.StakerSnapshotAt(builtin.AsStore(rt), params.Address.String(), at)
	builtin.AbortOnErr(rt, err)
	return &StakerQueryReturn{VotingPower: vp, DepositedAmount: deposited, LockedAmount: locked}
}
