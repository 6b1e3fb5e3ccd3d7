package staking

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func (e *Engine) GetRecord(ctx context.Context, owner common.Address, id uint64) (RecordView, error) {
	var (
		v   RecordView
		err error
	)
	e.view(ctx, func() {
		var rec *Record
		if rec, err = e.ledger.record(owner, id); err != nil {
			return
		}
		v, err = e.ledger.view(rec, e.clock.Now())
	})
	return v, err
}

// Preview returns the accrual of one record as of now without changing it.
func (e *Engine) Preview(ctx context.Context, owner common.Address, id uint64) (Accrual, error) {
	var (
		a   Accrual
		err error
	)
	e.view(ctx, func() {
		var rec *Record
		if rec, err = e.ledger.record(owner, id); err != nil {
			return
		}
		a, err = e.ledger.accrue(rec, e.clock.Now())
	})
	return a, err
}

// ListRecords pages through owner's records in creation order. An offset
// past the end yields an empty page.
func (e *Engine) ListRecords(ctx context.Context, owner common.Address, offset, limit uint64) ([]RecordView, error) {
	var (
		out []RecordView
		err error
	)
	e.view(ctx, func() {
		out, err = e.ledger.views(page(e.ledger.records(owner), offset, limit), e.clock.Now())
	})
	return out, err
}

// ListActive pages through owner's open records and sums the reward
// claimable across all of them, not just the returned page.
func (e *Engine) ListActive(ctx context.Context, owner common.Address, offset, limit uint64) ([]RecordView, uint256.Int, error) {
	var (
		out   []RecordView
		total uint256.Int
		err   error
	)
	e.view(ctx, func() {
		var all []RecordView
		if all, err = e.ledger.views(e.ledger.open(owner), e.clock.Now()); err != nil {
			return
		}
		for i := range all {
			if _, overflow := total.AddOverflow(&total, &all[i].Claimable); overflow {
				err = fmt.Errorf("%w: claimable overflow", ErrInvalidArgument)
				return
			}
		}
		out = page(all, offset, limit)
	})
	return out, total, err
}

// ListAll pages through every record, grouped by participant in first-stake
// order and by creation order within a participant.
func (e *Engine) ListAll(ctx context.Context, offset, limit uint64) ([]RecordView, error) {
	var (
		out []RecordView
		err error
	)
	e.view(ctx, func() {
		out, err = e.ledger.views(page(e.ledger.all(), offset, limit), e.clock.Now())
	})
	return out, err
}

// Forecast projects the reward owed across all open records periodsAhead
// periods from now at the current rate.
func (e *Engine) Forecast(ctx context.Context, periodsAhead uint64) (uint256.Int, error) {
	var (
		total uint256.Int
		err   error
	)
	e.view(ctx, func() {
		now := e.clock.Now()
		for _, rec := range e.ledger.allOpen() {
			var a Accrual
			if a, err = e.ledger.accrue(rec, now); err != nil {
				return
			}
			var projected *uint256.Int
			if projected, err = a.Project(periodsAhead); err != nil {
				return
			}
			if _, overflow := total.AddOverflow(&total, projected); overflow {
				err = fmt.Errorf("%w: forecast overflow", ErrInvalidArgument)
				return
			}
		}
	})
	return total, err
}

func (e *Engine) Stats(ctx context.Context) Aggregates {
	var agg Aggregates
	e.view(ctx, func() { agg = e.ledger.aggregates() })
	return agg
}

func (e *Engine) Participants(ctx context.Context) []common.Address {
	var out []common.Address
	e.view(ctx, func() { out = append(out, e.ledger.participants...) })
	return out
}
