package vetoken_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veglow-protocol/ve-contracts/actors/abi"
	"github.com/veglow-protocol/ve-contracts/actors/abi/big"
	"github.com/veglow-protocol/ve-contracts/actors/builtin"
	"github.com/veglow-protocol/ve-contracts/actors/builtin/vetoken"
	"github.com/veglow-protocol/ve-contracts/actors/runtime/exitcode"
	"github.com/veglow-protocol/ve-contracts/actors/util/adt"
)

const week = int64(builtin.Week)

func newHarness(t *testing.T) (*vetoken.State, adt.Store) {
	store := adt.NewBlockStore()
	st, err := vetoken.NewState(store)
	require.NoError(t, err)
	return st, store
}

func TestCreateLockBasics(t *testing.T) {
	st, store := newHarness(t)
	deposit := abi.NewTokenAmount(1000)
	end := abi.UnixTime(10 * week)

	require.NoError(t, st.CreateLock(store, "addr1", deposit, 0, end))
	require.True(t, st.Global.TotalDeposit.Equals(deposit))

	vp, err := st.VotingPowerAt(store, "addr1", 1)
	require.NoError(t, err)
	require.True(t, vp.GreaterThanEqual(abi.NewTokenAmount(0)))

	// A write at t is invisible at t itself, spec §4.3 one-step lag.
	vpAtZero, err := st.VotingPowerAt(store, "addr1", 0)
	require.NoError(t, err)
	require.True(t, vpAtZero.IsZero())
}

func TestCreateLockRejectsDuplicate(t *testing.T) {
	st, store := newHarness(t)
	end := abi.UnixTime(10 * week)
	require.NoError(t, st.CreateLock(store, "addr1", abi.NewTokenAmount(1000), 0, end))

	err := st.CreateLock(store, "addr1", abi.NewTokenAmount(500), 0, end)
	require.Error(t, err)
	requireExitCode(t, err, exitcode.LockAlreadyExists)
}

func TestCreateLockValidatesAmountAndEnd(t *testing.T) {
	st, store := newHarness(t)
	end := abi.UnixTime(10 * week)

	err := st.CreateLock(store, "addr1", abi.NewTokenAmount(0), 0, end)
	requireExitCode(t, err, exitcode.InsufficientLockAmount)

	err = st.CreateLock(store, "addr2", abi.NewTokenAmount(10), 100, 50)
	requireExitCode(t, err, exitcode.EndLockTimeTooEarly)

	err = st.CreateLock(store, "addr3", abi.NewTokenAmount(10), 0, abi.UnixTime(builtin.MaxLock)+abi.UnixTime(week))
	requireExitCode(t, err, exitcode.EndLockTimeTooLate)
}

func TestVotingPowerDecaysToZeroAtExpiry(t *testing.T) {
	st, store := newHarness(t)
	deposit := abi.NewTokenAmount(1_000_000)
	end := abi.UnixTime(builtin.MaxLock)
	require.NoError(t, st.CreateLock(store, "addr1", deposit, 0, end))

	vpStart, err := st.VotingPowerAt(store, "addr1", 1)
	require.NoError(t, err)
	// A lock created at the maximum duration starts with voting power
	// numerically equal to its deposit, per VPDivisor's definition.
	require.True(t, vpStart.LessThan(deposit) || vpStart.Equals(deposit))

	vpEnd, err := st.VotingPowerAt(store, "addr1", end+1)
	require.NoError(t, err)
	require.True(t, vpEnd.IsZero())

	// Far past expiry, the underlying parabola would otherwise start
	// growing again; voting power must stay pinned at zero, not resume.
	vpFar, err := st.VotingPowerAt(store, "addr1", end+abi.UnixTime(100*week))
	require.NoError(t, err)
	require.True(t, vpFar.IsZero(), "voting power must not grow again long after a lock's expiry")
}

func TestIncreaseLockAmount(t *testing.T) {
	st, store := newHarness(t)
	end := abi.UnixTime(10 * week)
	require.NoError(t, st.CreateLock(store, "addr1", abi.NewTokenAmount(1000), 0, end))
	require.NoError(t, st.IncreaseLockAmount(store, "addr1", abi.UnixTime(week), abi.NewTokenAmount(500)))
	require.True(t, st.Global.TotalDeposit.Equals(abi.NewTokenAmount(1500)))

	err := st.IncreaseLockAmount(store, "addr1", abi.UnixTime(week), abi.NewTokenAmount(0))
	requireExitCode(t, err, exitcode.InsufficientLockIncreaseAmount)

	err = st.IncreaseLockAmount(store, "nobody", abi.UnixTime(week), abi.NewTokenAmount(10))
	requireExitCode(t, err, exitcode.LockDoesNotExist)
}

func TestIncreaseLockAmountRejectsExpiredLock(t *testing.T) {
	st, store := newHarness(t)
	end := abi.UnixTime(2 * week)
	require.NoError(t, st.CreateLock(store, "addr1", abi.NewTokenAmount(1000), 0, end))

	err := st.IncreaseLockAmount(store, "addr1", end, abi.NewTokenAmount(10))
	requireExitCode(t, err, exitcode.LockIsExpired)
}

func TestIncreaseEndLockTime(t *testing.T) {
	st, store := newHarness(t)
	end := abi.UnixTime(10 * week)
	require.NoError(t, st.CreateLock(store, "addr1", abi.NewTokenAmount(1000), 0, end))

	err := st.IncreaseEndLockTime(store, "addr1", abi.UnixTime(week), end)
	requireExitCode(t, err, exitcode.EndLockTimeTooEarly)

	newEnd := end + abi.UnixTime(week)
	require.NoError(t, st.IncreaseEndLockTime(store, "addr1", abi.UnixTime(week), newEnd))
}

func TestWithdrawBeforeExpiryKeepsResidualLock(t *testing.T) {
	st, store := newHarness(t)
	deposit := abi.NewTokenAmount(1_000_000)
	end := abi.UnixTime(10 * week)
	require.NoError(t, st.CreateLock(store, "addr1", deposit, 0, end))

	mid := abi.UnixTime(5 * week)
	payout, err := st.Withdraw(store, "addr1", mid)
	require.NoError(t, err)
	require.True(t, payout.Sign() > 0, "non-expired withdraw releases the decayed portion")
	require.True(t, payout.LessThan(deposit), "payout must be less than the full deposit before expiry")

	// The residual lock is not void: increase-amount must still work on it.
	require.NoError(t, st.IncreaseLockAmount(store, "addr1", mid, abi.NewTokenAmount(10)))
}

func TestWithdrawAfterExpiryVoidsLock(t *testing.T) {
	st, store := newHarness(t)
	deposit := abi.NewTokenAmount(1000)
	end := abi.UnixTime(2 * week)
	require.NoError(t, st.CreateLock(store, "addr1", deposit, 0, end))
	// A second, still-active lock so the global aggregate isn't trivially
	// zero regardless of whether addr1's contribution was double-subtracted.
	addr2End := abi.UnixTime(20 * week)
	addr2Deposit := abi.NewTokenAmount(5000)
	require.NoError(t, st.CreateLock(store, "addr2", addr2Deposit, 0, addr2End))

	payout, err := st.Withdraw(store, "addr1", end)
	require.NoError(t, err)
	require.True(t, payout.Equals(deposit))

	// addr1's contribution is already folded out of Aggregate by the
	// Checkpoint at the top of Withdraw; a second subtraction there would
	// leave Aggregate short of addr2's own, still-active contribution.
	want := vetoken.NewLockCoefficients(addr2Deposit, 0, addr2End)
	require.True(t, st.Global.Aggregate.Sub(want).IsZero(), "Aggregate must equal addr2's lock alone; addr1's expired lock must not be subtracted twice")

	// The lock is void: a second withdraw fails LockDoesNotExist.
	_, err = st.Withdraw(store, "addr1", end+1)
	requireExitCode(t, err, exitcode.LockDoesNotExist)
}

func TestStakerSnapshotReportsDepositAndLockedAmount(t *testing.T) {
	st, store := newHarness(t)
	deposit := abi.NewTokenAmount(1_000_000)
	end := abi.UnixTime(10 * week)
	require.NoError(t, st.CreateLock(store, "addr1", deposit, 0, end))

	vp, depositedAmount, lockedAmount, err := st.StakerSnapshotAt(store, "addr1", abi.UnixTime(week))
	require.NoError(t, err)
	require.True(t, vp.Sign() > 0)
	require.True(t, depositedAmount.Equals(deposit), "deposited_amount must report the lock's original deposit, not the decayed locked amount")
	require.True(t, lockedAmount.Sign() > 0 && lockedAmount.LessThan(deposit), "locked_amount must have decayed below the original deposit partway through the lock")
}

func TestCheckpointBoundedWork(t *testing.T) {
	st, store := newHarness(t)
	require.NoError(t, st.CreateLock(store, "addr1", abi.NewTokenAmount(1000), 0, abi.UnixTime(week)))

	far := abi.UnixTime(int64(builtin.MaxCheckpointSteps)*2*week + week)
	steps, err := st.Checkpoint(store, far)
	require.NoError(t, err)
	require.LessOrEqual(t, steps, builtin.MaxCheckpointSteps)
}

func TestTotalVotingPowerAggregatesMultipleLocks(t *testing.T) {
	st, store := newHarness(t)
	end := abi.UnixTime(10 * week)
	require.NoError(t, st.CreateLock(store, "addr1", abi.NewTokenAmount(1000), 0, end))
	require.NoError(t, st.CreateLock(store, "addr2", abi.NewTokenAmount(2000), 0, end))

	vp1, err := st.VotingPowerAt(store, "addr1", 1)
	require.NoError(t, err)
	vp2, err := st.VotingPowerAt(store, "addr2", 1)
	require.NoError(t, err)
	total, err := st.TotalVotingPowerAt(store, 1)
	require.NoError(t, err)

	require.True(t, total.Equals(big.Add(vp1, vp2)))
}

func requireExitCode(t *testing.T, err error, code exitcode.ExitCode) {
	t.Helper()
	require.Error(t, err)
	ec, ok := err.(*exitcode.Error)
	require.True(t, ok, "expected *exitcode.Error, got %T: %v", err, err)
	require.Equal(t, code, ec.Code)
}
