package staking

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Payout is what one record transition paid out.
type Payout struct {
	ID        uint64
	Owner     common.Address
	Principal uint256.Int
	Reward    uint256.Int
	// Periods is the number of accrual periods paid by this transition.
	Periods uint64
	Closed  bool
}

// BatchItem reports the outcome for one record of a batch operation.
type BatchItem struct {
	Payout
	Err error
}

// Stake opens a new position of amount for caller and returns its id.
func (e *Engine) Stake(ctx context.Context, caller common.Address, amount *uint256.Int) (uint64, error) {
	var id uint64
	err := e.run(ctx, func(ctx context.Context, tx *txn) error {
		if err := e.requireOpen(); err != nil {
			return err
		}
		now := e.clock.Now()
		rec, err := e.ledger.createStake(tx, caller, amount, now)
		if err != nil {
			return err
		}
		id = rec.ID
		tx.emit(e.event(EventStakeCreated, caller, rec, amount, now))
		return e.debit(ctx, tx, caller, amount)
	})
	if err != nil {
		return 0, err
	}
	e.log.Debug().Str("staker", caller.Hex()).Uint64("id", id).Str("amount", amount.Dec()).Msg("stake created")
	return id, nil
}

// Claim pays out the reward on one of caller's records. In the simple
// variant it pays principal and reward and closes the record; in the
// periodic variant it pays the reward of every unclaimed whole period and
// leaves the record open.
func (e *Engine) Claim(ctx context.Context, caller common.Address, id uint64) (Payout, error) {
	var p Payout
	err := e.run(ctx, func(ctx context.Context, tx *txn) error {
		if err := e.requireOpen(); err != nil {
			return err
		}
		rec, err := e.ledger.record(caller, id)
		if err != nil {
			return err
		}
		p, err = e.claimOne(ctx, tx, caller, rec, e.clock.Now())
		return err
	})
	return p, err
}

// Withdraw closes one of caller's records, returning principal and any
// unclaimed reward. Periodic variant only.
func (e *Engine) Withdraw(ctx context.Context, caller common.Address, id uint64) (Payout, error) {
	if e.params.Variant != VariantPeriodic {
		return Payout{}, fmt.Errorf("%w: withdraw in %s variant", ErrUnsupported, e.params.Variant)
	}
	var p Payout
	err := e.run(ctx, func(ctx context.Context, tx *txn) error {
		if err := e.requireOpen(); err != nil {
			return err
		}
		rec, err := e.ledger.record(caller, id)
		if err != nil {
			return err
		}
		p, err = e.withdrawOne(ctx, tx, caller, rec, e.clock.Now())
		return err
	})
	return p, err
}

// ClaimAll applies Claim to every open record of caller. Each record is an
// independent unit: a failing record is rolled back and reported while the
// others keep their effects.
func (e *Engine) ClaimAll(ctx context.Context, caller common.Address) ([]BatchItem, error) {
	return e.batch(ctx, caller, e.claimOne)
}

// WithdrawAll closes every open record of caller. In the simple variant it
// is the same as ClaimAll.
func (e *Engine) WithdrawAll(ctx context.Context, caller common.Address) ([]BatchItem, error) {
	if e.params.Variant == VariantSimple {
		return e.batch(ctx, caller, e.claimOne)
	}
	return e.batch(ctx, caller, e.withdrawOne)
}

type transition func(ctx context.Context, tx *txn, actor common.Address, rec *Record, now uint64) (Payout, error)

func (e *Engine) batch(ctx context.Context, caller common.Address, apply transition) ([]BatchItem, error) {
	var items []BatchItem
	err := e.run(ctx, func(ctx context.Context, tx *txn) error {
		if err := e.requireOpen(); err != nil {
			return err
		}
		now := e.clock.Now()
		items = applyEach(ctx, tx, caller, e.ledger.open(caller), now, apply)
		return batchErr(items)
	})
	return items, err
}

func applyEach(ctx context.Context, tx *txn, actor common.Address, records []*Record, now uint64, apply transition) []BatchItem {
	items := make([]BatchItem, 0, len(records))
	for _, rec := range records {
		sp := tx.savepoint()
		p, err := apply(ctx, tx, actor, rec, now)
		if err != nil {
			tx.rollbackTo(sp)
			p = Payout{ID: rec.ID, Owner: rec.Owner}
		}
		items = append(items, BatchItem{Payout: p, Err: err})
	}
	return items
}

// batchErr fails a batch only when nothing in it succeeded.
func batchErr(items []BatchItem) error {
	if len(items) == 0 {
		return ErrNothingToClaim
	}
	for _, it := range items {
		if it.Err == nil {
			return nil
		}
	}
	return items[0].Err
}

func (e *Engine) claimOne(ctx context.Context, tx *txn, actor common.Address, rec *Record, now uint64) (Payout, error) {
	if rec.Closed {
		return Payout{}, fmt.Errorf("%w: stake %d", ErrAlreadyClosed, rec.ID)
	}
	a, err := e.ledger.accrue(rec, now)
	if err != nil {
		return Payout{}, err
	}
	if e.params.Variant == VariantSimple {
		return e.settle(ctx, tx, actor, rec, &a.Reward, a.UnclaimedPeriods, 0, now)
	}

	if a.Reward.IsZero() {
		return Payout{}, fmt.Errorf("%w: stake %d", ErrNothingToClaim, rec.ID)
	}
	if err := e.ledger.payReward(tx, rec, &a.Reward, a.UnclaimedPeriods); err != nil {
		return Payout{}, err
	}
	tx.emit(e.event(EventRewardClaimed, actor, rec, &a.Reward, now))
	if err := e.credit(ctx, tx, rec.Owner, &a.Reward); err != nil {
		return Payout{}, err
	}
	return Payout{ID: rec.ID, Owner: rec.Owner, Reward: a.Reward, Periods: a.UnclaimedPeriods}, nil
}

func (e *Engine) withdrawOne(ctx context.Context, tx *txn, actor common.Address, rec *Record, now uint64) (Payout, error) {
	if rec.Closed {
		return Payout{}, fmt.Errorf("%w: stake %d", ErrAlreadyClosed, rec.ID)
	}
	a, err := e.ledger.accrue(rec, now)
	if err != nil {
		return Payout{}, err
	}
	claimed := rec.PeriodsClaimed
	if a.PeriodsElapsed > claimed {
		claimed = a.PeriodsElapsed
	}
	return e.settle(ctx, tx, actor, rec, &a.Reward, a.UnclaimedPeriods, claimed, now)
}

// settle closes rec, paying reward from the pool, and then transfers the
// principal and reward to the owner. The simple variant pays both in one
// transfer; the periodic variant pays them separately, skipping a zero
// reward.
func (e *Engine) settle(ctx context.Context, tx *txn, actor common.Address, rec *Record, reward *uint256.Int, periods, periodsClaimed, now uint64) (Payout, error) {
	if err := e.ledger.close(tx, rec, reward, periodsClaimed, now); err != nil {
		return Payout{}, err
	}
	if !reward.IsZero() {
		tx.emit(e.event(EventRewardClaimed, actor, rec, reward, now))
	}
	tx.emit(e.event(EventPositionClosed, actor, rec, &rec.Principal, now))

	p := Payout{
		ID:        rec.ID,
		Owner:     rec.Owner,
		Principal: rec.Principal,
		Reward:    *reward,
		Periods:   periods,
		Closed:    true,
	}

	if e.params.Variant == VariantSimple {
		total, overflow := new(uint256.Int).AddOverflow(&p.Principal, reward)
		if overflow {
			return Payout{}, fmt.Errorf("%w: claim amount overflow", ErrInvalidArgument)
		}
		if err := e.credit(ctx, tx, rec.Owner, total); err != nil {
			return Payout{}, err
		}
		return p, nil
	}

	if err := e.credit(ctx, tx, rec.Owner, &p.Principal); err != nil {
		return Payout{}, err
	}
	if !reward.IsZero() {
		if err := e.credit(ctx, tx, rec.Owner, reward); err != nil {
			return Payout{}, err
		}
	}
	return p, nil
}
