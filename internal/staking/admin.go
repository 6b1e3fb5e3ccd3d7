package staking

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// FundPool moves amount from admin into the reward pool.
func (e *Engine) FundPool(ctx context.Context, admin common.Address, amount *uint256.Int) error {
	return e.run(ctx, func(ctx context.Context, tx *txn) error {
		if err := e.requireAdmin(admin); err != nil {
			return err
		}
		if amount.IsZero() {
			return fmt.Errorf("%w: fund amount must be positive", ErrInvalidArgument)
		}
		if err := e.ledger.fund(tx, amount); err != nil {
			return err
		}
		now := e.clock.Now()
		tx.emit(e.event(EventPoolFunded, admin, nil, amount, now))
		return e.debit(ctx, tx, admin, amount)
	})
}

// DefundPool returns amount from the reward pool to admin.
func (e *Engine) DefundPool(ctx context.Context, admin common.Address, amount *uint256.Int) error {
	return e.run(ctx, func(ctx context.Context, tx *txn) error {
		if err := e.requireAdmin(admin); err != nil {
			return err
		}
		if amount.IsZero() {
			return fmt.Errorf("%w: defund amount must be positive", ErrInvalidArgument)
		}
		if err := e.ledger.defund(tx, amount); err != nil {
			return err
		}
		now := e.clock.Now()
		tx.emit(e.event(EventPoolDefunded, admin, nil, amount, now))
		return e.credit(ctx, tx, admin, amount)
	})
}

// SetRate replaces the global reward rate. The new rate applies to every
// period not yet claimed, including ones that have already elapsed.
func (e *Engine) SetRate(ctx context.Context, admin common.Address, rate uint64) error {
	return e.run(ctx, func(ctx context.Context, tx *txn) error {
		if err := e.requireAdmin(admin); err != nil {
			return err
		}
		if rate == 0 {
			return fmt.Errorf("%w: rate must be positive", ErrInvalidArgument)
		}
		e.ledger.setRate(tx, rate)
		tx.emit(e.event(EventRateChanged, admin, nil, uint256.NewInt(rate), e.clock.Now()))
		return nil
	})
}

// ForceCloseAll closes every open record in the ledger while the engine is
// paused, returning principal to each owner. In the periodic variant any
// unclaimed reward is paid as well. Records that fail stay open and are
// reported.
func (e *Engine) ForceCloseAll(ctx context.Context, admin common.Address) ([]BatchItem, error) {
	var items []BatchItem
	err := e.run(ctx, func(ctx context.Context, tx *txn) error {
		if err := e.requireAdmin(admin); err != nil {
			return err
		}
		if !e.gate.IsPaused() {
			return ErrNotPaused
		}
		apply := e.withdrawOne
		if e.params.Variant == VariantSimple {
			apply = e.returnPrincipal
		}
		items = applyEach(ctx, tx, admin, e.ledger.allOpen(), e.clock.Now(), apply)
		for _, it := range items {
			if it.Err != nil {
				e.log.Warn().Err(it.Err).Str("owner", it.Owner.Hex()).Uint64("id", it.ID).Msg("force close failed")
			}
		}
		return nil
	})
	return items, err
}

func (e *Engine) returnPrincipal(ctx context.Context, tx *txn, actor common.Address, rec *Record, now uint64) (Payout, error) {
	if rec.Closed {
		return Payout{}, fmt.Errorf("%w: stake %d", ErrAlreadyClosed, rec.ID)
	}
	return e.settle(ctx, tx, actor, rec, new(uint256.Int), 0, 0, now)
}

// Pause and Unpause toggle the pause gate when it is a Pauser.
func (e *Engine) Pause(admin common.Address) error { return e.setPaused(admin, true) }

func (e *Engine) Unpause(admin common.Address) error { return e.setPaused(admin, false) }

func (e *Engine) setPaused(admin common.Address, paused bool) error {
	if err := e.requireAdmin(admin); err != nil {
		return err
	}
	p, ok := e.gate.(Pauser)
	if !ok {
		return fmt.Errorf("%w: pause gate is read-only", ErrUnsupported)
	}
	p.SetPaused(paused)
	e.log.Info().Str("admin", admin.Hex()).Bool("paused", paused).Msg("pause state changed")
	return nil
}

func (e *Engine) Paused() bool { return e.gate.IsPaused() }
