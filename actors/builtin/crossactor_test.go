package builtin_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veglow-protocol/ve-contracts/actors/abi"
	"github.com/veglow-protocol/ve-contracts/actors/builtin"
	"github.com/veglow-protocol/ve-contracts/actors/builtin/feedistributor"
	"github.com/veglow-protocol/ve-contracts/actors/builtin/vetoken"
	"github.com/veglow-protocol/ve-contracts/support/mock"
	tutil "github.com/veglow-protocol/ve-contracts/support/testing"
)

// TestCrossActorClaimFlow exercises vetoken and feedistributor wired as two
// separate actors, with feedistributor reaching vetoken's historical
// voting-power data only through rt.Send, exactly as the two contracts are
// deployed independently in production.
func TestCrossActorClaimFlow(t *testing.T) {
	owner := tutil.NewIDAddr(t, 100)
	rewardToken := tutil.NewIDAddr(t, 101)
	veTokenAddr := tutil.NewIDAddr(t, 200)
	distributorAddr := tutil.NewIDAddr(t, 201)
	dexFactory := tutil.NewIDAddr(t, 300)
	staker := tutil.NewBLSAddr(t, 1)

	veRt := mock.NewBuilder(veTokenAddr).WithCaller(owner).Build(t)
	veRt.Call(vetoken.Actor{}.Constructor, &vetoken.ConstructorParams{Owner: owner})
	veRt.Call(vetoken.Actor{}.RegisterToken, &rewardToken)

	veRt.SetCaller(rewardToken)
	veRt.Call(vetoken.Actor{}.Receive, &vetoken.ReceiveParams{
		Sender:      staker,
		Amount:      abi.NewTokenAmount(1_000_000),
		CreateLock:  true,
		EndLockTime: abi.UnixTime(builtin.MaxLock),
	})

	distRt := mock.NewBuilder(distributorAddr).WithCaller(owner).Build(t)
	distRt.Call(feedistributor.Actor{}.Constructor, &feedistributor.ConstructorParams{Owner: owner})
	distRt.Call(feedistributor.Actor{}.RegisterContracts, &feedistributor.RegisterContractsParams{
		RewardToken: rewardToken,
		VeToken:     veTokenAddr,
		DexFactory:  dexFactory,
	})
	distRt.RegisterActor(veTokenAddr, veRt, vetoken.Actor{})

	distRt.SetBalance(abi.NewTokenAmount(1000))
	distRt.SetEpoch(abi.UnixTime(2 * builtin.Week))
	distRt.SetCaller(staker)
	distRt.Call(feedistributor.Actor{}.DistributeGlow, nil)

	stateRet := distRt.Call(feedistributor.Actor{}.StateQuery, nil).(*feedistributor.StateQueryReturn)
	require.True(t, stateRet.TotalDistributedUnclaimed.Equals(abi.NewTokenAmount(1000)))

	distRt.SetEpoch(abi.UnixTime(3 * builtin.Week))
	claimRet := distRt.Call(feedistributor.Actor{}.Claim, &feedistributor.ClaimParams{Limit: 0}).(*feedistributor.ClaimResult)
	require.True(t, claimRet.Owed.Sign() > 0, "claim must see the distribution fetched via the cross-actor vetoken query")

	sent := distRt.TokensSent()
	require.Len(t, sent, 1)
	require.Equal(t, staker, sent[0].To)
	require.True(t, sent[0].Amount.Equals(claimRet.Owed))
}

// TestCrossActorStakerQueryIsReadOnly exercises the claimable-lower-bound
// query across the actor boundary without mutating either actor's state.
func TestCrossActorStakerQueryIsReadOnly(t *testing.T) {
	owner := tutil.NewIDAddr(t, 100)
	rewardToken := tutil.NewIDAddr(t, 101)
	veTokenAddr := tutil.NewIDAddr(t, 200)
	distributorAddr := tutil.NewIDAddr(t, 201)
	dexFactory := tutil.NewIDAddr(t, 300)
	staker := tutil.NewBLSAddr(t, 2)

	veRt := mock.NewBuilder(veTokenAddr).WithCaller(owner).Build(t)
	veRt.Call(vetoken.Actor{}.Constructor, &vetoken.ConstructorParams{Owner: owner})
	veRt.Call(vetoken.Actor{}.RegisterToken, &rewardToken)
	veRt.SetCaller(rewardToken)
	veRt.Call(vetoken.Actor{}.Receive, &vetoken.ReceiveParams{
		Sender:      staker,
		Amount:      abi.NewTokenAmount(500_000),
		CreateLock:  true,
		EndLockTime: abi.UnixTime(builtin.MaxLock),
	})

	distRt := mock.NewBuilder(distributorAddr).WithCaller(owner).Build(t)
	distRt.Call(feedistributor.Actor{}.Constructor, &feedistributor.ConstructorParams{Owner: owner})
	distRt.Call(feedistributor.Actor{}.RegisterContracts, &feedistributor.RegisterContractsParams{
		RewardToken: rewardToken,
		VeToken:     veTokenAddr,
		DexFactory:  dexFactory,
	})
	distRt.RegisterActor(veTokenAddr, veRt, vetoken.Actor{})

	distRt.SetBalance(abi.NewTokenAmount(400))
	distRt.SetEpoch(abi.UnixTime(2 * builtin.Week))
	distRt.Call(feedistributor.Actor{}.DistributeGlow, nil)

	before := distRt.Call(feedistributor.Actor{}.StateQuery, nil).(*feedistributor.StateQueryReturn)

	distRt.SetEpoch(abi.UnixTime(3 * builtin.Week))
	lowerBound := distRt.Call(feedistributor.Actor{}.StakerQuery, &feedistributor.StakerQueryParams{Address: staker}).(*feedistributor.StakerQueryReturn)
	require.True(t, lowerBound.ClaimableFeesLowerBound.Sign() > 0)

	after := distRt.Call(feedistributor.Actor{}.StateQuery, nil).(*feedistributor.StateQueryReturn)
	require.True(t, before.TotalDistributedUnclaimed.Equals(after.TotalDistributedUnclaimed), "StakerQuery must not mutate the ledger")
}
