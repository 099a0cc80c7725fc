package feedistributor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veglow-protocol/ve-contracts/actors/abi"
	"github.com/veglow-protocol/ve-contracts/actors/builtin"
	"github.com/veglow-protocol/ve-contracts/actors/builtin/feedistributor"
	"github.com/veglow-protocol/ve-contracts/actors/runtime/exitcode"
	"github.com/veglow-protocol/ve-contracts/actors/util/adt"
)

const week = int64(builtin.Week)

// flatVP is a votingPowerLookup stand-in reporting a fixed user/total split
// at every week, standing in for a real vetokenClient cross-actor call.
type flatVP struct {
	user, total abi.TokenAmount
}

func (f flatVP) VotingPowerAt(addrKey string, at abi.UnixTime) (abi.TokenAmount, error) {
	return f.user, nil
}

func (f flatVP) TotalVotingPowerAt(at abi.UnixTime) (abi.TokenAmount, error) {
	return f.total, nil
}

func newHarness(t *testing.T) (*feedistributor.State, adt.Store) {
	store := adt.NewBlockStore()
	st, err := feedistributor.NewState(store)
	require.NoError(t, err)
	return st, store
}

func TestDistributeRejectsNoNewBalance(t *testing.T) {
	st, store := newHarness(t)
	err := st.Distribute(store, abi.UnixTime(week), abi.NewTokenAmount(0), abi.NewTokenAmount(100))
	require.Error(t, err)
	requireExitCode(t, err, exitcode.NothingToDistribute)
}

func TestDistributeRejectsNothingStaked(t *testing.T) {
	st, store := newHarness(t)
	err := st.Distribute(store, abi.UnixTime(week), abi.NewTokenAmount(1000), abi.NewTokenAmount(0))
	require.Error(t, err)
	requireExitCode(t, err, exitcode.NothingStaked)
}

func TestDistributeAccumulatesAcrossCalls(t *testing.T) {
	st, store := newHarness(t)
	now := abi.UnixTime(week)
	require.NoError(t, st.Distribute(store, now, abi.NewTokenAmount(100), abi.NewTokenAmount(10)))
	require.True(t, st.TotalDistributedUnclaimed.Equals(abi.NewTokenAmount(100)))

	// A second call sees the prior balance as already-distributed and only
	// folds in the delta.
	require.NoError(t, st.Distribute(store, now, abi.NewTokenAmount(150), abi.NewTokenAmount(10)))
	require.True(t, st.TotalDistributedUnclaimed.Equals(abi.NewTokenAmount(150)))
}

func TestClaimSingleWeek(t *testing.T) {
	st, store := newHarness(t)
	require.NoError(t, st.Distribute(store, abi.UnixTime(week), abi.NewTokenAmount(1000), abi.NewTokenAmount(100)))

	vp := flatVP{user: abi.NewTokenAmount(25), total: abi.NewTokenAmount(100)}
	now := abi.UnixTime(3 * week)
	result, err := st.Claim(store, vp, "addr1", now, 0, true)
	require.NoError(t, err)
	require.True(t, result.Owed.Equals(abi.NewTokenAmount(250)))
	require.True(t, st.TotalDistributedUnclaimed.Equals(abi.NewTokenAmount(750)))

	// A second claim from the same cursor sees nothing new to pay.
	result2, err := st.Claim(store, vp, "addr1", now, 0, true)
	require.NoError(t, err)
	require.True(t, result2.Owed.IsZero())
}

func TestClaimReadOnlyDoesNotMutate(t *testing.T) {
	st, store := newHarness(t)
	require.NoError(t, st.Distribute(store, abi.UnixTime(week), abi.NewTokenAmount(1000), abi.NewTokenAmount(100)))

	vp := flatVP{user: abi.NewTokenAmount(25), total: abi.NewTokenAmount(100)}
	now := abi.UnixTime(3 * week)

	before := st.TotalDistributedUnclaimed
	result, err := st.Claim(store, vp, "addr1", now, 0, false)
	require.NoError(t, err)
	require.True(t, result.Owed.Sign() > 0)
	require.True(t, st.TotalDistributedUnclaimed.Equals(before), "read-only claim must not mutate the ledger")
}

func TestClaimLimitBoundsWorkAcrossSparseWeeks(t *testing.T) {
	st, store := newHarness(t)
	// Only the first week of a long span carries a distribution; the rest
	// are sparse. limit must still bound total weeks visited, not just
	// "active" ones (spec §4.4/§5 bounded-work guarantee).
	require.NoError(t, st.Distribute(store, abi.UnixTime(week), abi.NewTokenAmount(1000), abi.NewTokenAmount(100)))

	vp := flatVP{user: abi.NewTokenAmount(25), total: abi.NewTokenAmount(100)}
	now := abi.UnixTime(int64(week) * 50)

	result, err := st.Claim(store, vp, "addr1", now, 3, true)
	require.NoError(t, err)
	// With limit=3, the cursor can advance at most 3 weeks from 0.
	require.Equal(t, abi.UnixTime(3*week), result.NewCursor)
}

func TestClaimLimitNormalization(t *testing.T) {
	st, store := newHarness(t)
	require.NoError(t, st.Distribute(store, abi.UnixTime(week), abi.NewTokenAmount(1000), abi.NewTokenAmount(100)))
	vp := flatVP{user: abi.NewTokenAmount(25), total: abi.NewTokenAmount(100)}
	now := abi.UnixTime(int64(week) * int64(builtin.MaxClaimLimit+10))

	// limit above MaxClaimLimit is capped, not reset to the (smaller) default.
	result, err := st.Claim(store, vp, "addr1", now, builtin.MaxClaimLimit+50, true)
	require.NoError(t, err)
	require.Equal(t, abi.UnixTime(int64(builtin.MaxClaimLimit)*week), result.NewCursor)
}

func requireExitCode(t *testing.T, err error, code exitcode.ExitCode) {
	t.Helper()
	ec, ok := err.(*exitcode.Error)
	require.True(t, ok, "expected *exitcode.Error, got %T: %v", err, err)
	require.Equal(t, code, ec.Code)
}
