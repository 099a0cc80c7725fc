package feedistributor

import (
	addr "github.com/filecoin-project/go-address"

	"github.com/veglow-protocol/ve-contracts/actors/abi"
	"github.com/veglow-protocol/ve-contracts/actors/abi/big"
	"github.com/veglow-protocol/ve-contracts/actors/builtin"
	"github.com/veglow-protocol/ve-contracts/actors/builtin/vetoken"
	"github.com/veglow-protocol/ve-contracts/actors/runtime"
	"github.com/veglow-protocol/ve-contracts/actors/runtime/exitcode"
	"github.com/veglow-protocol/ve-contracts/actors/util/adt"
)

// vetokenMethod numbers mirror vetoken.Actor.Exports(): the ve-token
// contract is a separate actor with its own state root (spec §6 lists VPE
// and Fee Distributor operations as two distinct contracts), so its
// historical voting-power data is reached only via rt.Send, exactly as
// miner_actor.go calls builtin.MethodsPower.SubmitPoRepForBulkVerify
// across the actor boundary rather than touching the power actor's state
// directly.
const (
	vetokenMethodStateQuery  uint64 = 8
	vetokenMethodStakerQuery uint64 = 9
)

// vetokenClient adapts a registered ve-token actor address into the
// votingPowerLookup interface state.go's Claim/Distribute need, performing
// one rt.Send per lookup.
type vetokenClient struct {
	rt      runtime.Runtime
	veToken abi.Address
}

func (v vetokenClient) TotalVotingPowerAt(at abi.UnixTime) (abi.TokenAmount, error) {
	params := vetoken.StateQueryParams{Timestamp: &at}
	var ret vetoken.StateQueryReturn
	if err := v.rt.Send(v.veToken, vetokenMethodStateQuery, &params, &ret); err != nil {
		return big.Zero(), err
	}
	return ret.TotalVotingPower, nil
}

func (v vetokenClient) VotingPowerAt(addrKey string, at abi.UnixTime) (abi.TokenAmount, error) {
	a, err := addr.NewFromString(addrKey)
	if err != nil {
		return big.Zero(), err
	}
	params := vetoken.StakerQueryParams{Address: a, Timestamp: &at}
	var ret vetoken.StakerQueryReturn
	if err := v.rt.Send(v.veToken, vetokenMethodStakerQuery, &params, &ret); err != nil {
		return big.Zero(), err
	}
	return ret.VotingPower, nil
}

// DexFactory and DexPair are the external collaborators of the Sweep
// Adapter (spec §4.5), out of scope per spec §1 ("a DEX swap adapter ...
// specified only by the interfaces the core needs"): a lookup from a
// foreign denomination to the pair holding it against the reward token,
// and a swap endpoint on that pair.
type DexFactory interface {
	GetPair(rt runtime.Runtime, denom string) (abi.Address, bool)
}

type DexPair interface {
	Swap(rt runtime.Runtime, pair abi.Address, denom string, amount abi.TokenAmount) error
}

// ForeignBalance is the out-of-scope host capability for reading the
// contract's balance of a non-reward-token denomination, mirroring
// CurrentTokenBalance but parameterized by denom.
type ForeignBalance interface {
	BalanceOf(rt runtime.Runtime, denom string) abi.TokenAmount
	TransferTax(rt runtime.Runtime, denom string, amount abi.TokenAmount) abi.TokenAmount
}

// Config is the distributor's one-shot wiring record, spec §6
// register_contracts{reward_token, ve_token, dex_factory}, plus the
// supplemented config query surface from original_source/ (§ "config
// query surface" in SPEC_FULL.md) so sweep/distribute can fail fast with
// ConfigContractsNotRegistered instead of dereferencing an unset address.
type Config struct {
	Owner       abi.Address
	RewardToken abi.Address
	VeToken     abi.Address
	DexFactory  abi.Address
	Registered  bool
}

// ActorState is the distributor's single persisted root.
type ActorState struct {
	Config Config
	FDL    State
}

type Actor struct {
	Dex     DexFactory
	Pair    DexPair
	Foreign ForeignBalance
}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		1: a.Constructor,
		2: a.RegisterContracts,
		3: a.Sweep,
		4: a.DistributeGlow,
		5: a.Claim,
		6: a.UpdateConfig,
		7: a.ConfigQuery,
		8: a.StateQuery,
		9: a.StakerQuery,
	}
}

type ConstructorParams struct {
	Owner abi.Address
}

func (a Actor) Constructor(rt runtime.Runtime, params *ConstructorParams) *adt.EmptyValue {
	fdl, err := NewState(builtin.AsStore(rt))
	builtin.AbortOnErr(rt, err)
	rt.State().Create(&ActorState{
		Config: Config{Owner: params.Owner},
		FDL:    *fdl,
	})
	return nil
}

type RegisterContractsParams struct {
	RewardToken abi.Address
	VeToken     abi.Address
	DexFactory  abi.Address
}

func (a Actor) RegisterContracts(rt runtime.Runtime, params *RegisterContractsParams) *adt.EmptyValue {
	var st ActorState
	rt.State().Transaction(&st, func() {
		rt.ValidateImmediateCallerIs(st.Config.Owner)
		if st.Config.Registered {
			rt.Abortf(exitcode.Unauthorized, "contracts already registered")
		}
		st.Config.RewardToken = params.RewardToken
		st.Config.VeToken = params.VeToken
		st.Config.DexFactory = params.DexFactory
		st.Config.Registered = true
	})
	return nil
}

type SweepParams struct {
	Denom string
}

// Sweep converts the contract's balance of a foreign denomination into
// the reward token via the external DEX, spec §4.5. Anyone may call it.
// A zero net offer (after the host's transfer tax) is a no-op, the
// idempotent-sweep behavior supplemented from original_source/.
func (a Actor) Sweep(rt runtime.Runtime, params *SweepParams) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	var st ActorState
	rt.State().Readonly(&st)
	if !st.Config.Registered {
		rt.Abortf(exitcode.ConfigContractsNotRegistered, "dex factory not yet registered")
	}

	pairAddr, ok := a.Dex.GetPair(rt, params.Denom)
	if !ok {
		rt.Abortf(exitcode.ErrIllegalArgument, "no dex pair registered for denom %s", params.Denom)
	}

	gross := a.Foreign.BalanceOf(rt, params.Denom)
	tax := a.Foreign.TransferTax(rt, params.Denom, gross)
	net := big.SubSaturating(gross, tax)
	if net.Sign() <= 0 {
		return nil
	}

	err := a.Pair.Swap(rt, pairAddr, params.Denom, net)
	builtin.AbortOnErr(rt, err)
	return nil
}

// DistributeGlow attributes newly-arrived reward-token balance to the
// current week, spec §4.4/§6. Anyone may call it.
func (a Actor) DistributeGlow(rt runtime.Runtime, _ *adt.EmptyValue) *adt.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	var st ActorState
	rt.State().Transaction(&st, func() {
		if !st.Config.Registered {
			rt.Abortf(exitcode.ConfigContractsNotRegistered, "reward token not yet registered")
		}
		store := builtin.AsStore(rt)
		now := rt.Now()
		week := builtin.QuantizeDown(now)

		vpe := vetokenClient{rt: rt, veToken: st.Config.VeToken}
		totalVP, err := vpe.TotalVotingPowerAt(week + 1)
		builtin.AbortOnErr(rt, err)

		balance := rt.CurrentTokenBalance()
		err = st.FDL.Distribute(store, now, balance, totalVP)
		builtin.AbortOnErr(rt, err)
	})
	return nil
}

type ClaimParams struct {
	Limit uint64
}

func (a Actor) Claim(rt runtime.Runtime, params *ClaimParams) *ClaimResult {
	rt.ValidateImmediateCallerIsUser()
	caller := rt.Message().Caller()

	var result ClaimResult
	var st ActorState
	rt.State().Transaction(&st, func() {
		vpe := vetokenClient{rt: rt, veToken: st.Config.VeToken}
		store := builtin.AsStore(rt)
		r, err := st.FDL.Claim(store, vpe, caller.String(), rt.Now(), params.Limit, true)
		builtin.AbortOnErr(rt, err)
		result = r
	})

	if result.Owed.Sign() > 0 {
		err := rt.Tokens().Send(caller, result.Owed)
		builtin.AbortOnErr(rt, err)
	}
	return &result
}

type UpdateConfigParams struct {
	Owner *abi.Address
}

func (a Actor) UpdateConfig(rt runtime.Runtime, params *UpdateConfigParams) *adt.EmptyValue {
	var st ActorState
	rt.State().Transaction(&st, func() {
		rt.ValidateImmediateCallerIs(st.Config.Owner)
		if params.Owner != nil {
			st.Config.Owner = *params.Owner
		}
	})
	return nil
}

func (a Actor) ConfigQuery(rt runtime.Runtime, _ *adt.EmptyValue) *Config {
	var st ActorState
	rt.State().Readonly(&st)
	return &st.Config
}

type StateQueryReturn struct {
	TotalDistributedUnclaimed abi.TokenAmount
}

func (a Actor) StateQuery(rt runtime.Runtime, _ *adt.EmptyValue) *StateQueryReturn {
	var st ActorState
	rt.State().Readonly(&st)
	return &StateQueryReturn{TotalDistributedUnclaimed: st.FDL.TotalDistributedUnclaimed}
}

// StakerQueryParams mirrors spec §6's staker{address, fee_limit?,
// fee_start_after?}; fee_start_after is accepted for interface fidelity
// with the original contract but this implementation always derives the
// start week from the stored cursor (the cursor already encodes "start
// after" for this address), so it is otherwise unused.
type StakerQueryParams struct {
	Address       abi.Address
	FeeLimit      uint64
	FeeStartAfter *abi.UnixTime
}

// StakerQueryReturn reports the claimable lower bound, the supplemented
// read-only query from original_source/ described in SPEC_FULL.md.
type StakerQueryReturn struct {
	ClaimableFeesLowerBound abi.TokenAmount
}

func (a Actor) StakerQuery(rt runtime.Runtime, params *StakerQueryParams) *StakerQueryReturn {
	var st ActorState
	rt.State().Readonly(&st)
	vpe := vetokenClient{rt: rt, veToken: st.Config.VeToken}
	store := builtin.AsStore(rt)

	r, err := st.FDL.Claim(store, vpe, params.Address.String(), rt.Now(), params.FeeLimit, false)
	builtin.AbortOnErr(rt, err)
	return &StakerQueryReturn{ClaimableFeesLowerBound: r.Owed}
}
