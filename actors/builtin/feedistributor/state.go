// Package feedistributor implements the fee-distribution ledger (FDL):
// weekly reward buckets, a per-user claim cursor, and bounded-work
// incremental claims, spec §3-4.4. Grounded the same way vetoken's
// slope-change schedule is: an adt.Array keyed by week-aligned timestamp,
// in the teacher's VestingFunds idiom.
package feedistributor

import (
	"io"

	"github.com/filecoin-project/go-bitfield"
	cid "github.com/ipfs/go-cid"

	"github.com/veglow-protocol/ve-contracts/actors/abi"
	"github.com/veglow-protocol/ve-contracts/actors/abi/big"
	"github.com/veglow-protocol/ve-contracts/actors/builtin"
	"github.com/veglow-protocol/ve-contracts/actors/runtime/exitcode"
	"github.com/veglow-protocol/ve-contracts/actors/util/adt"
	"github.com/veglow-protocol/ve-contracts/actors/util/cborutil"
)

// weekAmount is the CBOR-marshalable wrapper stored at each
// WeeklyDistribution[week] entry.
type weekAmount struct {
	Amount abi.TokenAmount
}

func (w *weekAmount) MarshalCBOR(iow io.Writer) error {
	return cborutil.WriteBigInt(iow, w.Amount)
}

func (w *weekAmount) UnmarshalCBOR(r io.Reader) error {
	br := cborutil.Peek(r)
	v, err := cborutil.ReadBigInt(br)
	if err != nil {
		return err
	}
	w.Amount = v
	return nil
}

// weekCursor is the CBOR-marshalable wrapper for UserClaimCursor[user].
type weekCursor struct {
	Week abi.UnixTime
}

func (w *weekCursor) MarshalCBOR(iow io.Writer) error {
	return cborutil.WriteInt64(iow, int64(w.Week))
}

func (w *weekCursor) UnmarshalCBOR(r io.Reader) error {
	br := cborutil.Peek(r)
	v, err := cborutil.ReadInt64(br)
	if err != nil {
		return err
	}
	w.Week = abi.UnixTime(v)
	return nil
}

// State is the distributor's persisted root. WeeklyDistribution holds the
// per-week reward bucket; ActiveWeeks is a go-bitfield index of which week
// numbers (week-timestamp / builtin.Week) carry a nonzero bucket, letting
// Claim skip empty weeks within its bounded-work budget exactly as the
// teacher's abi.BitField lets DeclareFaultsRecovered skip untouched
// sectors rather than scan every index in range; UserClaimCursor is the
// per-user last-claimed-week map; TotalDistributedUnclaimed is the
// ledger invariant of spec §3/§8 I4.
type State struct {
	WeeklyDistribution        cid.Cid
	ActiveWeeks               bitfield.BitField
	UserClaimCursor           cid.Cid
	TotalDistributedUnclaimed abi.TokenAmount
}

func NewState(store adt.Store) (*State, error) {
	emptyArray, err := adt.MakeEmptyArray(store).Root()
	if err != nil {
		return nil, err
	}
	emptyMap, err := adt.MakeEmptyMap(store).Root()
	if err != nil {
		return nil, err
	}
	return &State{
		WeeklyDistribution:        emptyArray,
		ActiveWeeks:               bitfield.NewFromSet(nil),
		UserClaimCursor:           emptyMap,
		TotalDistributedUnclaimed: big.Zero(),
	}, nil
}

func (st *State) loadWeeklyDistribution(store adt.Store) (*adt.Array, error) {
	return adt.AsArray(store, st.WeeklyDistribution)
}

func (st *State) loadUserClaimCursor(store adt.Store) (*adt.Map, error) {
	return adt.AsMap(store, st.UserClaimCursor)
}

// weekIndex converts a week-aligned timestamp into the small dense
// integer the bitfield indexes by.
func weekIndex(w abi.UnixTime) uint64 {
	return uint64(w / builtin.Week)
}

// Distribute folds the contract's newly-arrived reward-token balance into
// the current week's bucket, spec §4.4.
func (st *State) Distribute(store adt.Store, now abi.UnixTime, contractBalance, globalVotingPowerAtWeek abi.TokenAmount) error {
	incoming := big.Sub(contractBalance, st.TotalDistributedUnclaimed)
	if incoming.Sign() <= 0 {
		return exitcode.Errorf(exitcode.NothingToDistribute, "no new reward-token balance to distribute")
	}
	if globalVotingPowerAtWeek.Sign() <= 0 {
		return exitcode.Errorf(exitcode.NothingStaked, "no voting power staked at the current week")
	}

	week := builtin.QuantizeDown(now)
	dist, err := st.loadWeeklyDistribution(store)
	if err != nil {
		return err
	}
	var existing weekAmount
	found, err := dist.Get(uint64(week), &existing)
	if err != nil {
		return err
	}
	if !found {
		existing = weekAmount{Amount: big.Zero()}
	}
	existing.Amount = big.Add(existing.Amount, incoming)
	if err := dist.Set(uint64(week), &existing); err != nil {
		return err
	}
	root, err := dist.Root()
	if err != nil {
		return err
	}
	st.WeeklyDistribution = root

	merged, err := bitfield.MergeBitFields(st.ActiveWeeks, bitfield.NewFromSet([]uint64{weekIndex(week)}))
	if err != nil {
		return err
	}
	st.ActiveWeeks = merged

	st.TotalDistributedUnclaimed = big.Add(st.TotalDistributedUnclaimed, incoming)
	return nil
}

// ClaimResult reports what a (possibly read-only) claim pass computed.
type ClaimResult struct {
	InitialCursor abi.UnixTime
	NewCursor     abi.UnixTime
	Owed          abi.TokenAmount
}

// votingPowerLookup abstracts the two historical VPE queries Claim needs.
// vetoken is a separate actor with its own isolated state root (spec §6
// lists VPE and Fee Distributor operations as two distinct contracts), so
// this is a cross-actor call boundary, not a shared struct: the actor
// layer supplies an adapter (feedistributor_actor.go's vetokenClient)
// that performs rt.Send against the registered ve_token address.
type votingPowerLookup interface {
	VotingPowerAt(addrKey string, at abi.UnixTime) (abi.TokenAmount, error)
	TotalVotingPowerAt(at abi.UnixTime) (abi.TokenAmount, error)
}

// Claim runs the bounded incremental claim algorithm of spec §4.4 against
// weeks in (cursor, floor(now/WEEK)*WEEK - WEEK], touching at most limit
// entries. When persist is false (the read-only "lower bound" query,
// spec §9 supplemented feature) no state is mutated: cursor/ledger
// updates are computed and returned but discarded by the caller.
func (st *State) Claim(store adt.Store, vpe votingPowerLookup, addrKey string, now abi.UnixTime, limit uint64, persist bool) (ClaimResult, error) {
	if limit == 0 {
		limit = builtin.DefaultClaimLimit
	} else if limit > builtin.MaxClaimLimit {
		limit = builtin.MaxClaimLimit
	}

	cursors, err := st.loadUserClaimCursor(store)
	if err != nil {
		return ClaimResult{}, err
	}
	var cur weekCursor
	found, err := cursors.Get(addrKey, &cur)
	if err != nil {
		return ClaimResult{}, err
	}
	if !found {
		cur = weekCursor{Week: 0}
	}

	startWeek := cur.Week + builtin.Week
	endWeek := builtin.QuantizeDown(now) - builtin.Week

	result := ClaimResult{InitialCursor: cur.Week, NewCursor: cur.Week, Owed: big.Zero()}
	if endWeek < startWeek {
		return result, nil
	}

	dist, err := st.loadWeeklyDistribution(store)
	if err != nil {
		return ClaimResult{}, err
	}

	owed := big.Zero()
	lastWeek := cur.Week
	touched := uint64(0)
	for w := startWeek; w <= endWeek && touched < limit; w += builtin.Week {
		// ActiveWeeks lets us skip the Get/VP lookups for a week with no
		// distribution entry at all, without affecting the touched count
		// (spec §4.4: a claim touches at most limit weekly entries,
		// whether or not each turns out to carry a nonzero amount).
		if active, err := st.ActiveWeeks.IsSet(weekIndex(w)); err != nil {
			return ClaimResult{}, err
		} else if active {
			var amt weekAmount
			ok, err := dist.Get(uint64(w), &amt)
			if err != nil {
				return ClaimResult{}, err
			}
			if ok && amt.Amount.Sign() > 0 {
				totalVP, err := vpe.TotalVotingPowerAt(w)
				if err != nil {
					return ClaimResult{}, err
				}
				if totalVP.Sign() > 0 {
					userVP, err := vpe.VotingPowerAt(addrKey, w)
					if err != nil {
						return ClaimResult{}, err
					}
					share := big.Div(big.Mul(amt.Amount, userVP), totalVP)
					owed = big.Add(owed, share)
				}
			}
		}
		lastWeek = w
		touched++
	}

	result.NewCursor = lastWeek
	result.Owed = owed

	if persist && lastWeek != cur.Week {
		if err := cursors.Put(addrKey, &weekCursor{Week: lastWeek}); err != nil {
			return ClaimResult{}, err
		}
		root, err := cursors.Root()
		if err != nil {
			return ClaimResult{}, err
		}
		st.UserClaimCursor = root
		st.TotalDistributedUnclaimed = big.SubSaturating(st.TotalDistributedUnclaimed, owed)
	}

	return result, nil
}
