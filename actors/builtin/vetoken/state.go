package vetoken

import (
	"io"

	cid "github.com/ipfs/go-cid"
	"github.com/pkg/errors"

	"github.com/veglow-protocol/ve-contracts/actors/abi"
	"github.com/veglow-protocol/ve-contracts/actors/abi/big"
	"github.com/veglow-protocol/ve-contracts/actors/builtin"
	"github.com/veglow-protocol/ve-contracts/actors/runtime/exitcode"
	"github.com/veglow-protocol/ve-contracts/actors/util/adt"
	"github.com/veglow-protocol/ve-contracts/actors/util/cborutil"
)

// UserLock is the single active lock a staking address may hold at a time,
// spec §3 ("an address holds at most one lock"; create_lock fails if one is
// already open, increase_* operate on the existing one). Amount is the
// cumulative deposit (not decayed); Start/End bound the quadratic whose
// coefficients are folded into the global aggregate.
type UserLock struct {
	Amount abi.TokenAmount
	Start  abi.UnixTime
	End    abi.UnixTime
}

func (l *UserLock) Coefficients() Coefficients {
	return NewLockCoefficients(l.Amount, l.Start, l.End)
}

func (l *UserLock) MarshalCBOR(w io.Writer) error {
	if err := cborutil.WriteArrayHeader(w, 3); err != nil {
		return err
	}
	if err := cborutil.WriteBigInt(w, l.Amount); err != nil {
		return err
	}
	if err := cborutil.WriteInt64(w, int64(l.Start)); err != nil {
		return err
	}
	return cborutil.WriteInt64(w, int64(l.End))
}

func (l *UserLock) UnmarshalCBOR(r io.Reader) error {
	br := cborutil.Peek(r)
	if _, err := cborutil.ReadArrayHeader(br); err != nil {
		return err
	}
	var err error
	if l.Amount, err = cborutil.ReadBigInt(br); err != nil {
		return err
	}
	start, err := cborutil.ReadInt64(br)
	if err != nil {
		return err
	}
	end, err := cborutil.ReadInt64(br)
	if err != nil {
		return err
	}
	l.Start, l.End = abi.UnixTime(start), abi.UnixTime(end)
	return nil
}

// GlobalState is the checkpointed aggregate: the sum of every open lock's
// Coefficients plus the last week boundary the slope-change schedule has
// been applied through. It is what CreateLock/Withdraw/Checkpoint advance,
// and what the history arrays snapshot on every mutation.
type GlobalState struct {
	Aggregate    Coefficients
	TotalDeposit abi.TokenAmount
	// LastWeek is the most recent week-aligned boundary whose SlopeChanges
	// delta has already been folded into Aggregate.
	LastWeek abi.UnixTime
}

func (g *GlobalState) MarshalCBOR(w io.Writer) error {
	if err := cborutil.WriteArrayHeader(w, 3); err != nil {
		return err
	}
	if err := g.Aggregate.MarshalCBOR(w); err != nil {
		return err
	}
	if err := cborutil.WriteBigInt(w, g.TotalDeposit); err != nil {
		return err
	}
	return cborutil.WriteInt64(w, int64(g.LastWeek))
}

func (g *GlobalState) UnmarshalCBOR(r io.Reader) error {
	br := cborutil.Peek(r)
	if _, err := cborutil.ReadArrayHeader(br); err != nil {
		return err
	}
	if err := g.Aggregate.UnmarshalCBOR(br); err != nil {
		return err
	}
	var err error
	if g.TotalDeposit, err = cborutil.ReadBigInt(br); err != nil {
		return err
	}
	last, err := cborutil.ReadInt64(br)
	if err != nil {
		return err
	}
	g.LastWeek = abi.UnixTime(last)
	return nil
}

// State is the actor's persisted root, content-addressed the way the
// teacher's MinerState holds Cids for its VestingFunds/PreCommittedSectors
// etc, loaded into adt.Map/adt.Array handles on demand rather than held
// in memory across calls.
type State struct {
	Global GlobalState

	// SlopeChanges maps a week-aligned abi.UnixTime to the Coefficients
	// delta that must be subtracted from Global.Aggregate once the clock
	// crosses that boundary — the aggregate analogue of the teacher's
	// per-epoch vesting-table entries.
	SlopeChanges cid.Cid

	// UserLocks maps a stringified address to its single open UserLock.
	UserLocks cid.Cid

	// GlobalHistory records a GlobalState snapshot, keyed by the exact
	// timestamp of every mutation, for the one-step-lag historical query
	// semantics of spec §4.3: a write at t is visible only to queries at
	// timestamps strictly greater than t.
	GlobalHistory cid.Cid

	// UserHistory maps an address to an adt.Array of UserLock snapshots
	// keyed the same way.
	UserHistory cid.Cid
}

func NewState(store adt.Store) (*State, error) {
	emptyMap, err := adt.MakeEmptyMap(store).Root()
	if err != nil {
		return nil, err
	}
	emptyArray, err := adt.MakeEmptyArray(store).Root()
	if err != nil {
		return nil, err
	}
	return &State{
		Global:        GlobalState{Aggregate: ZeroCoefficients(), TotalDeposit: big.Zero(), LastWeek: 0},
		SlopeChanges:  emptyArray,
		UserLocks:     emptyMap,
		GlobalHistory: emptyArray,
		UserHistory:   emptyMap,
	}, nil
}

func (st *State) loadSlopeChanges(store adt.Store) (*adt.Array, error) {
	arr, err := adt.AsArray(store, st.SlopeChanges)
	return arr, errors.Wrapf(err, "failed to load slope-change schedule %v", st.SlopeChanges)
}

func (st *State) loadUserLocks(store adt.Store) (*adt.Map, error) {
	m, err := adt.AsMap(store, st.UserLocks)
	return m, errors.Wrapf(err, "failed to load lock store %v", st.UserLocks)
}

func (st *State) loadGlobalHistory(store adt.Store) (*adt.Array, error) {
	arr, err := adt.AsArray(store, st.GlobalHistory)
	return arr, errors.Wrapf(err, "failed to load global history %v", st.GlobalHistory)
}

func (st *State) loadUserHistory(store adt.Store) (*adt.Map, error) {
	m, err := adt.AsMap(store, st.UserHistory)
	return m, errors.Wrapf(err, "failed to load user history %v", st.UserHistory)
}

// scheduleSlopeChange adds delta to whatever is already recorded for week w.
func scheduleSlopeChange(changes *adt.Array, w abi.UnixTime, delta Coefficients) error {
	var existing Coefficients
	found, err := changes.Get(uint64(w), &existing)
	if err != nil {
		return err
	}
	if !found {
		existing = ZeroCoefficients()
	}
	return changes.Set(uint64(w), cborValue(existing.Add(delta)))
}

// cancelSlopeChange removes delta from whatever is recorded for week w
// (used when a lock is extended or withdrawn before its original
// expiry, spec §4.2's "re-deriving the schedule on every mutation").
func cancelSlopeChange(changes *adt.Array, w abi.UnixTime, delta Coefficients) error {
	var existing Coefficients
	found, err := changes.Get(uint64(w), &existing)
	if err != nil {
		return err
	}
	if !found {
		existing = ZeroCoefficients()
	}
	remainder := existing.Sub(delta)
	if remainder.IsZero() {
		return changes.Delete(uint64(w))
	}
	return changes.Set(uint64(w), cborValue(remainder))
}

// cborValue is a tiny adapter so Coefficients (a value type, not a pointer)
// satisfies cbg.CBORMarshaler at call sites that need the interface.
func cborValue(c Coefficients) *Coefficients { return &c }

// Checkpoint folds every SlopeChanges entry between the last-processed
// week boundary and the current one into Global.Aggregate, bounded at
// builtin.MaxCheckpointSteps iterations per call (spec §4.3/§5). It
// returns the number of week boundaries actually applied; a caller whose
// clock has drifted further than MaxCheckpointSteps*Week must call
// Checkpoint repeatedly (across separate messages) to fully catch up,
// exactly as the teacher bounds per-call vesting-table work.
func (st *State) Checkpoint(store adt.Store, now abi.UnixTime) (int, error) {
	changes, err := st.loadSlopeChanges(store)
	if err != nil {
		return 0, err
	}

	nowWeek := builtin.QuantizeDown(now)
	steps := 0
	for st.Global.LastWeek < nowWeek && steps < builtin.MaxCheckpointSteps {
		next := st.Global.LastWeek + builtin.Week
		var delta Coefficients
		found, err := changes.Get(uint64(next), &delta)
		if err != nil {
			return steps, err
		}
		if found {
			st.Global.Aggregate = st.Global.Aggregate.Sub(delta)
		}
		st.Global.LastWeek = next
		steps++
	}

	if steps > 0 {
		if err := st.snapshotGlobal(store, now); err != nil {
			return steps, err
		}
		root, err := changes.Root()
		if err != nil {
			return steps, err
		}
		st.SlopeChanges = root
	}
	return steps, nil
}

func (st *State) snapshotGlobal(store adt.Store, at abi.UnixTime) error {
	history, err := st.loadGlobalHistory(store)
	if err != nil {
		return err
	}
	snap := st.Global
	if err := history.Set(uint64(at), &snap); err != nil {
		return err
	}
	root, err := history.Root()
	if err != nil {
		return err
	}
	st.GlobalHistory = root
	return nil
}

func (st *State) snapshotUser(store adt.Store, addrKey string, lock *UserLock, at abi.UnixTime) error {
	userHist, err := st.loadUserHistory(store)
	if err != nil {
		return err
	}
	var perUserRoot cid.Cid
	var perUser *adt.Array
	var raw cidHolder
	found, err := userHist.Get(addrKey, &raw)
	if err != nil {
		return err
	}
	if found {
		perUser, err = adt.AsArray(store, raw.Cid)
		if err != nil {
			return err
		}
	} else {
		perUser = adt.MakeEmptyArray(store)
	}
	if err := perUser.Set(uint64(at), lock); err != nil {
		return err
	}
	perUserRoot, err = perUser.Root()
	if err != nil {
		return err
	}
	if err := userHist.Put(addrKey, &cidHolder{Cid: perUserRoot}); err != nil {
		return err
	}
	root, err := userHist.Root()
	if err != nil {
		return err
	}
	st.UserHistory = root
	return nil
}

// cidHolder lets adt.Map (which stores CBOR-marshalable values, not raw
// Cids) key a nested per-user adt.Array by its root.
type cidHolder struct {
	Cid cid.Cid
}

func (h *cidHolder) MarshalCBOR(w io.Writer) error {
	return cborutil.WriteBytes(w, h.Cid.Bytes())
}

func (h *cidHolder) UnmarshalCBOR(r io.Reader) error {
	br := cborutil.Peek(r)
	b, err := cborutil.ReadBytes(br)
	if err != nil {
		return err
	}
	c, err := cid.Cast(b)
	if err != nil {
		return err
	}
	h.Cid = c
	return nil
}

// CreateLock opens addrKey's single lock for the given deposit, locking
// until end (already week-quantized by the caller), folding its
// Coefficients into the global aggregate and scheduling their removal at
// end, spec §4.2.
func (st *State) CreateLock(store adt.Store, addrKey string, deposit abi.TokenAmount, now, end abi.UnixTime) error {
	if _, err := st.Checkpoint(store, now); err != nil {
		return err
	}
	locks, err := st.loadUserLocks(store)
	if err != nil {
		return err
	}
	var existing UserLock
	found, err := locks.Get(addrKey, &existing)
	if err != nil {
		return err
	}
	if found {
		return exitcode.Errorf(exitcode.LockAlreadyExists, "address already has an open lock")
	}
	if deposit.Sign() <= 0 {
		return exitcode.Errorf(exitcode.InsufficientLockAmount, "deposit must be positive")
	}
	if end <= now {
		return exitcode.Errorf(exitcode.EndLockTimeTooEarly, "end_lock_time must be in the future")
	}
	if end-now > builtin.MaxLock {
		return exitcode.Errorf(exitcode.EndLockTimeTooLate, "lock duration exceeds the maximum")
	}

	lock := &UserLock{Amount: deposit, Start: now, End: end}
	coeffs := lock.Coefficients()

	changes, err := st.loadSlopeChanges(store)
	if err != nil {
		return err
	}
	if err := scheduleSlopeChange(changes, end, coeffs); err != nil {
		return err
	}
	root, err := changes.Root()
	if err != nil {
		return err
	}
	st.SlopeChanges = root

	st.Global.Aggregate = st.Global.Aggregate.Add(coeffs)
	st.Global.TotalDeposit = big.Add(st.Global.TotalDeposit, deposit)

	if err := locks.Put(addrKey, lock); err != nil {
		return err
	}
	lroot, err := locks.Root()
	if err != nil {
		return err
	}
	st.UserLocks = lroot

	if err := st.snapshotGlobal(store, now); err != nil {
		return err
	}
	return st.snapshotUser(store, addrKey, lock, now)
}

// mutateLock is the shared core of IncreaseLockAmount/IncreaseEndLockTime:
// remove the old Coefficients contribution (and its scheduled removal),
// apply f to derive the new lock, fold in the new Coefficients and
// re-schedule their removal, per spec §4.2's "re-derive from scratch on
// every mutation" policy (the same approach the teacher's
// AddLockedFunds/ModifyCollateral pair uses against VestingFunds).
func (st *State) mutateLock(store adt.Store, addrKey string, now abi.UnixTime, f func(*UserLock) error) error {
	if _, err := st.Checkpoint(store, now); err != nil {
		return err
	}
	locks, err := st.loadUserLocks(store)
	if err != nil {
		return err
	}
	var lock UserLock
	found, err := locks.Get(addrKey, &lock)
	if err != nil {
		return err
	}
	if !found {
		return exitcode.Errorf(exitcode.LockDoesNotExist, "address has no open lock")
	}
	if now >= lock.End {
		return exitcode.Errorf(exitcode.LockIsExpired, "lock is expired")
	}

	oldCoeffs := lock.Coefficients()
	changes, err := st.loadSlopeChanges(store)
	if err != nil {
		return err
	}
	if err := cancelSlopeChange(changes, lock.End, oldCoeffs); err != nil {
		return err
	}
	st.Global.Aggregate = st.Global.Aggregate.Sub(oldCoeffs)
	st.Global.TotalDeposit = big.Sub(st.Global.TotalDeposit, lock.Amount)

	if err := f(&lock); err != nil {
		return err
	}

	newCoeffs := lock.Coefficients()
	if err := scheduleSlopeChange(changes, lock.End, newCoeffs); err != nil {
		return err
	}
	root, err := changes.Root()
	if err != nil {
		return err
	}
	st.SlopeChanges = root

	st.Global.Aggregate = st.Global.Aggregate.Add(newCoeffs)
	st.Global.TotalDeposit = big.Add(st.Global.TotalDeposit, lock.Amount)

	if err := locks.Put(addrKey, &lock); err != nil {
		return err
	}
	lroot, err := locks.Root()
	if err != nil {
		return err
	}
	st.UserLocks = lroot

	if err := st.snapshotGlobal(store, now); err != nil {
		return err
	}
	return st.snapshotUser(store, addrKey, &lock, now)
}

func (st *State) IncreaseLockAmount(store adt.Store, addrKey string, now abi.UnixTime, extra abi.TokenAmount) error {
	if extra.Sign() <= 0 {
		return exitcode.Errorf(exitcode.InsufficientLockIncreaseAmount, "extra amount must be positive")
	}
	return st.mutateLock(store, addrKey, now, func(l *UserLock) error {
		l.Amount = big.Add(l.Amount, extra)
		return nil
	})
}

func (st *State) IncreaseEndLockTime(store adt.Store, addrKey string, now, newEnd abi.UnixTime) error {
	return st.mutateLock(store, addrKey, now, func(l *UserLock) error {
		if newEnd <= l.End {
			return exitcode.Errorf(exitcode.EndLockTimeTooEarly, "new end must extend the existing lock")
		}
		if newEnd-now > builtin.MaxLock {
			return exitcode.Errorf(exitcode.EndLockTimeTooLate, "lock duration exceeds the maximum")
		}
		l.End = newEnd
		return nil
	})
}

// Withdraw settles addrKey's lock. If the lock is expired (now >= End) the
// full deposited_amount is paid out and the record is voided. Otherwise,
// per spec §9's resolved open question, only the already-released portion
// deposited_amount - L(now) is paid out, and the lock is replaced — not
// voided — by a fresh one of deposit L(now), same End, start_lock_time =
// now: the original contract's observed formula, preserved rather than
// "fixed" into a full-refund or a hard block.
func (st *State) Withdraw(store adt.Store, addrKey string, now abi.UnixTime) (abi.TokenAmount, error) {
	if _, err := st.Checkpoint(store, now); err != nil {
		return big.Zero(), err
	}
	locks, err := st.loadUserLocks(store)
	if err != nil {
		return big.Zero(), err
	}
	var lock UserLock
	found, err := locks.Get(addrKey, &lock)
	if err != nil {
		return big.Zero(), err
	}
	if !found {
		return big.Zero(), exitcode.Errorf(exitcode.LockDoesNotExist, "address has no open lock")
	}

	oldCoeffs := lock.Coefficients()
	changes, err := st.loadSlopeChanges(store)
	if err != nil {
		return big.Zero(), err
	}
	// The Checkpoint call above already folds oldCoeffs out of
	// Global.Aggregate via the SlopeChanges entry once now has reached
	// lock.End's week boundary (spec's per-lock expiry safeguard); doing
	// it again here would double-subtract an already-expired lock.
	expired := now >= lock.End
	if !expired {
		if err := cancelSlopeChange(changes, lock.End, oldCoeffs); err != nil {
			return big.Zero(), err
		}
		st.Global.Aggregate = st.Global.Aggregate.Sub(oldCoeffs)
	}
	st.Global.TotalDeposit = big.Sub(st.Global.TotalDeposit, lock.Amount)

	var payout abi.TokenAmount
	var residual UserLock
	if expired {
		payout = lock.Amount
		residual = UserLock{Amount: big.Zero(), Start: 0, End: 0}
	} else {
		_, locked := oldCoeffs.Evaluate(now)
		payout = big.SubSaturating(lock.Amount, locked)
		residual = UserLock{Amount: locked, Start: now, End: lock.End}
	}

	if residual.Amount.IsZero() {
		if err := locks.Delete(addrKey); err != nil {
			return big.Zero(), err
		}
	} else {
		newCoeffs := residual.Coefficients()
		if err := scheduleSlopeChange(changes, residual.End, newCoeffs); err != nil {
			return big.Zero(), err
		}
		st.Global.Aggregate = st.Global.Aggregate.Add(newCoeffs)
		st.Global.TotalDeposit = big.Add(st.Global.TotalDeposit, residual.Amount)
		if err := locks.Put(addrKey, &residual); err != nil {
			return big.Zero(), err
		}
	}

	root, err := changes.Root()
	if err != nil {
		return big.Zero(), err
	}
	st.SlopeChanges = root

	lroot, err := locks.Root()
	if err != nil {
		return big.Zero(), err
	}
	st.UserLocks = lroot

	if err := st.snapshotGlobal(store, now); err != nil {
		return big.Zero(), err
	}
	if err := st.snapshotUser(store, addrKey, &residual, now); err != nil {
		return big.Zero(), err
	}
	return payout, nil
}

// lockSnapshotAt returns the latest per-user lock snapshot strictly before
// queryTime, or nil if none exists.
func (st *State) lockSnapshotAt(store adt.Store, addrKey string, queryTime abi.UnixTime) (*UserLock, error) {
	if queryTime <= 0 {
		return nil, nil
	}
	userHist, err := st.loadUserHistory(store)
	if err != nil {
		return nil, err
	}
	var holder cidHolder
	found, err := userHist.Get(addrKey, &holder)
	if err != nil || !found {
		return nil, err
	}
	perUser, err := adt.AsArray(store, holder.Cid)
	if err != nil {
		return nil, err
	}

	var latest *UserLock
	var snap UserLock
	if err := perUser.ForEachRanged(0, uint64(queryTime-1), &snap, func(key uint64) error {
		s := snap
		latest = &s
		return nil
	}); err != nil {
		return nil, err
	}
	return latest, nil
}

// VotingPowerAt returns addrKey's voting power as of the latest snapshot
// strictly before queryTime, the one-step-lag semantics of spec §4.3: a
// mutation recorded at t is invisible to a query at t itself, only to
// queries at times > t.
func (st *State) VotingPowerAt(store adt.Store, addrKey string, queryTime abi.UnixTime) (abi.TokenAmount, error) {
	latest, err := st.lockSnapshotAt(store, addrKey, queryTime)
	if err != nil || latest == nil {
		return big.Zero(), err
	}
	vp, _ := latest.Coefficients().Evaluate(clampTo(queryTime, latest.End))
	return vp, nil
}

// StakerSnapshotAt returns addrKey's voting power, deposited amount and
// currently-locked amount as of the latest snapshot strictly before
// queryTime, per spec §8's staker query scenarios.
func (st *State) StakerSnapshotAt(store adt.Store, addrKey string, queryTime abi.UnixTime) (votingPower, depositedAmount, lockedAmount abi.TokenAmount, err error) {
	latest, err := st.lockSnapshotAt(store, addrKey, queryTime)
	if err != nil || latest == nil {
		return big.Zero(), big.Zero(), big.Zero(), err
	}
	evalAt := clampTo(queryTime, latest.End)
	vp, locked := latest.Coefficients().Evaluate(evalAt)
	return vp, latest.Amount, locked, nil
}

// clampTo caps t at most to limit; a lock's coefficients only describe a
// decay to zero up to its own End, evaluating the same parabola past that
// point grows again instead of staying at zero, so per-user reads clamp to
// the snapshot's End rather than the raw query time.
func clampTo(t, limit abi.UnixTime) abi.UnixTime {
	if t > limit {
		return limit
	}
	return t
}

// TotalVotingPowerAt mirrors VotingPowerAt against the global snapshot
// history. Slope changes between the snapshot's LastWeek and queryTime are
// applied on a scratch copy before evaluating, so callers need not
// Checkpoint first.
func (st *State) TotalVotingPowerAt(store adt.Store, queryTime abi.UnixTime) (abi.TokenAmount, error) {
	if queryTime <= 0 {
		return big.Zero(), nil
	}
	history, err := st.loadGlobalHistory(store)
	if err != nil {
		return big.Zero(), err
	}
	var latest *GlobalState
	var snap GlobalState
	if err := history.ForEachRanged(0, uint64(queryTime-1), &snap, func(key uint64) error {
		s := snap
		latest = &s
		return nil
	}); err != nil {
		return big.Zero(), err
	}
	if latest == nil {
		return big.Zero(), nil
	}
	// The snapshot's Aggregate only reflects SlopeChanges up through
	// LastWeek; fold in the later ones on a scratch copy (its roots are
	// discarded, st is untouched) so that locks which expired since then
	// are not evaluated past their End.
	scratch := State{Global: *latest, SlopeChanges: st.SlopeChanges, GlobalHistory: st.GlobalHistory}
	if _, err := scratch.Checkpoint(store, queryTime); err != nil {
		return big.Zero(), err
	}
	vp, _ := scratch.Global.Aggregate.Evaluate(queryTime)
	return vp, nil
}
