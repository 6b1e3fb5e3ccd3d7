package staking

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type totals struct {
	staked     uint256.Int
	rewardPaid uint256.Int
	pool       uint256.Int
	count      uint64
	rate       uint64
}

// Ledger owns every stake record and the ledger-wide counters. Records are
// never removed; closing one is an in-place status change. Every mutation
// registers its inverse with the supplied txn.
type Ledger struct {
	variant Variant
	period  uint64
	totals  totals

	stakes       map[common.Address][]*Record
	participants []common.Address
}

func newLedger(p Params) *Ledger {
	l := &Ledger{
		variant: p.Variant,
		period:  p.Period,
		stakes:  make(map[common.Address][]*Record),
	}
	l.totals.rate = p.Rate
	l.totals.pool = p.InitialPool
	return l
}

func (l *Ledger) snapshotTotals(tx *txn) {
	before := l.totals
	tx.onRollback(func() { l.totals = before })
}

func (l *Ledger) snapshotRecord(tx *txn, rec *Record) {
	before := *rec
	tx.onRollback(func() { *rec = before })
}

func (l *Ledger) createStake(tx *txn, owner common.Address, principal *uint256.Int, now uint64) (*Record, error) {
	if principal.IsZero() {
		return nil, fmt.Errorf("%w: stake amount must be positive", ErrInvalidArgument)
	}
	staked, overflow := new(uint256.Int).AddOverflow(&l.totals.staked, principal)
	if overflow {
		return nil, fmt.Errorf("%w: total staked overflow", ErrInvalidArgument)
	}

	l.snapshotTotals(tx)
	records, known := l.stakes[owner]
	if !known {
		l.participants = append(l.participants, owner)
		n := len(l.participants)
		tx.onRollback(func() {
			l.participants = l.participants[:n-1]
			delete(l.stakes, owner)
		})
	}

	rec := &Record{
		ID:        uint64(len(records)),
		Owner:     owner,
		Principal: *principal,
		StartedAt: now,
	}
	l.stakes[owner] = append(records, rec)
	if known {
		n := len(records)
		tx.onRollback(func() { l.stakes[owner] = l.stakes[owner][:n] })
	}

	l.totals.staked = *staked
	l.totals.count++
	return rec, nil
}

func (l *Ledger) record(owner common.Address, id uint64) (*Record, error) {
	records := l.stakes[owner]
	if id >= uint64(len(records)) {
		return nil, fmt.Errorf("%w: id %d for %s", ErrNotFound, id, owner.Hex())
	}
	return records[id], nil
}

func (l *Ledger) records(owner common.Address) []*Record {
	return l.stakes[owner]
}

func (l *Ledger) open(owner common.Address) []*Record {
	var out []*Record
	for _, rec := range l.stakes[owner] {
		if !rec.Closed {
			out = append(out, rec)
		}
	}
	return out
}

func (l *Ledger) all() []*Record {
	out := make([]*Record, 0, l.totals.count)
	for _, owner := range l.participants {
		out = append(out, l.stakes[owner]...)
	}
	return out
}

func (l *Ledger) allOpen() []*Record {
	var out []*Record
	for _, owner := range l.participants {
		out = append(out, l.open(owner)...)
	}
	return out
}

// payReward moves reward out of the pool onto rec and advances its claimed
// periods by periods. The record stays open.
func (l *Ledger) payReward(tx *txn, rec *Record, reward *uint256.Int, periods uint64) error {
	if rec.Closed {
		return ErrAlreadyClosed
	}
	if l.totals.pool.Lt(reward) {
		return fmt.Errorf("%w: pool %s, reward %s", ErrPoolInsufficient, l.totals.pool.Dec(), reward.Dec())
	}
	paid, overflow := new(uint256.Int).AddOverflow(&l.totals.rewardPaid, reward)
	if overflow {
		return fmt.Errorf("%w: reward paid overflow", ErrInvalidArgument)
	}
	withdrawn, overflow := new(uint256.Int).AddOverflow(&rec.RewardWithdrawn, reward)
	if overflow {
		return fmt.Errorf("%w: reward withdrawn overflow", ErrInvalidArgument)
	}

	l.snapshotTotals(tx)
	l.snapshotRecord(tx, rec)
	l.totals.pool.Sub(&l.totals.pool, reward)
	l.totals.rewardPaid = *paid
	rec.RewardWithdrawn = *withdrawn
	rec.PeriodsClaimed += periods
	return nil
}

// close pays reward and marks rec closed at now, releasing its principal
// from the staked total. periodsClaimed is the record's final claimed count.
func (l *Ledger) close(tx *txn, rec *Record, reward *uint256.Int, periodsClaimed, now uint64) error {
	if rec.Closed {
		return ErrAlreadyClosed
	}
	if l.totals.staked.Lt(&rec.Principal) {
		return fmt.Errorf("staking: total staked %s below principal %s", l.totals.staked.Dec(), rec.Principal.Dec())
	}
	if err := l.payReward(tx, rec, reward, 0); err != nil {
		return err
	}
	l.totals.staked.Sub(&l.totals.staked, &rec.Principal)
	rec.PeriodsClaimed = periodsClaimed
	rec.EndedAt = now
	rec.Closed = true
	return nil
}

func (l *Ledger) fund(tx *txn, amount *uint256.Int) error {
	pool, overflow := new(uint256.Int).AddOverflow(&l.totals.pool, amount)
	if overflow {
		return fmt.Errorf("%w: reward pool overflow", ErrInvalidArgument)
	}
	l.snapshotTotals(tx)
	l.totals.pool = *pool
	return nil
}

func (l *Ledger) defund(tx *txn, amount *uint256.Int) error {
	if l.totals.pool.Lt(amount) {
		return fmt.Errorf("%w: pool %s, requested %s", ErrPoolInsufficient, l.totals.pool.Dec(), amount.Dec())
	}
	l.snapshotTotals(tx)
	l.totals.pool.Sub(&l.totals.pool, amount)
	return nil
}

func (l *Ledger) setRate(tx *txn, rate uint64) {
	l.snapshotTotals(tx)
	l.totals.rate = rate
}

func (l *Ledger) accrue(rec *Record, now uint64) (Accrual, error) {
	return Accrue(l.variant, rec, l.totals.rate, l.period, now)
}

// view derives the query-time fields of rec. Closed periodic records report
// nothing claimable; closed simple records keep reporting the reward
// recomputed against now.
func (l *Ledger) view(rec *Record, now uint64) (RecordView, error) {
	v := RecordView{Record: *rec}
	if rec.Closed && l.variant == VariantPeriodic {
		return v, nil
	}
	a, err := l.accrue(rec, now)
	if err != nil {
		return v, err
	}
	v.Claimable = a.Reward
	if !rec.Closed {
		v.NextAccrualIn = a.NextAccrualIn
	}
	return v, nil
}

func (l *Ledger) views(records []*Record, now uint64) ([]RecordView, error) {
	out := make([]RecordView, 0, len(records))
	for _, rec := range records {
		v, err := l.view(rec, now)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (l *Ledger) aggregates() Aggregates {
	return Aggregates{
		TotalStaked:        l.totals.staked,
		TotalStakeCount:    l.totals.count,
		TotalRewardPaid:    l.totals.rewardPaid,
		RewardPool:         l.totals.pool,
		RatePerTenThousand: l.totals.rate,
		Period:             l.period,
		Variant:            l.variant.String(),
	}
}

// page returns items[offset:min(offset+limit, len)], or nothing when offset
// is past the end.
func page[T any](items []T, offset, limit uint64) []T {
	n := uint64(len(items))
	if offset >= n || limit == 0 {
		return nil
	}
	end := n
	if limit < n-offset {
		end = offset + limit
	}
	return items[offset:end]
}
