package staking

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

// Engine is the single writer over a Ledger. Every mutating call runs as
// one operation under the engine lock: checks, then ledger effects, then
// custodian transfers. A failure anywhere rolls the operation back.
type Engine struct {
	mu     sync.Mutex
	params Params
	ledger *Ledger

	clock     Clock
	custodian Custodian
	auth      Authorizer
	gate      PauseGate
	notifier  Notifier
	log       zerolog.Logger

	// notifyMu is taken before mu is released so that events reach the
	// notifier in commit order.
	notifyMu sync.Mutex
}

type Option func(*Engine)

func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

func WithAuthorizer(a Authorizer) Option { return func(e *Engine) { e.auth = a } }

func WithPauseGate(g PauseGate) Option { return func(e *Engine) { e.gate = g } }

func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// New creates an engine with an empty ledger.
func New(params Params, custodian Custodian, opts ...Option) (*Engine, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if custodian == nil {
		return nil, fmt.Errorf("%w: custodian required", ErrInvalidArgument)
	}
	e := &Engine{
		params:    params,
		ledger:    newLedger(params),
		clock:     SystemClock{},
		custodian: custodian,
		auth:      denyAll{},
		gate:      neverPaused{},
		notifier:  Notifiers(nil),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Restore creates an engine whose ledger holds records and the counters in
// agg. Records must be supplied in creation order. The variant and period
// come from params; rate, pool and reward paid come from agg. The stake
// count and staked total in agg must agree with records.
func Restore(params Params, records []Record, agg Aggregates, custodian Custodian, opts ...Option) (*Engine, error) {
	params.Rate = agg.RatePerTenThousand
	params.InitialPool = agg.RewardPool
	e, err := New(params, custodian, opts...)
	if err != nil {
		return nil, err
	}

	l := e.ledger
	for i := range records {
		rec := records[i]
		owned, known := l.stakes[rec.Owner]
		if rec.ID != uint64(len(owned)) {
			return nil, fmt.Errorf("%w: record %d of %s out of sequence", ErrInvalidArgument, rec.ID, rec.Owner.Hex())
		}
		if !known {
			l.participants = append(l.participants, rec.Owner)
		}
		l.stakes[rec.Owner] = append(owned, &rec)
		l.totals.count++
		if !rec.Closed {
			if _, overflow := l.totals.staked.AddOverflow(&l.totals.staked, &rec.Principal); overflow {
				return nil, fmt.Errorf("%w: total staked overflow", ErrInvalidArgument)
			}
		}
	}
	if l.totals.count != agg.TotalStakeCount {
		return nil, fmt.Errorf("%w: snapshot counts %d stakes, records hold %d",
			ErrInvalidArgument, agg.TotalStakeCount, l.totals.count)
	}
	if !l.totals.staked.Eq(&agg.TotalStaked) {
		return nil, fmt.Errorf("%w: snapshot stakes %s, open records hold %s",
			ErrInvalidArgument, agg.TotalStaked.Dec(), l.totals.staked.Dec())
	}
	l.totals.rewardPaid = agg.TotalRewardPaid
	return e, nil
}

func (e *Engine) Variant() Variant { return e.params.Variant }

func (e *Engine) requireOpen() error {
	if e.gate.IsPaused() {
		return ErrPaused
	}
	return nil
}

func (e *Engine) requireAdmin(who common.Address) error {
	if !e.auth.IsAuthorized(who, RoleAdmin) {
		return fmt.Errorf("%w: %s lacks role %s", ErrUnauthorized, who.Hex(), RoleAdmin)
	}
	return nil
}

// debit pulls amount from who. A later rollback credits it back.
func (e *Engine) debit(ctx context.Context, tx *txn, who common.Address, amount *uint256.Int) error {
	if err := e.custodian.DebitFrom(ctx, who, amount); err != nil {
		return fmt.Errorf("staking: debit %s from %s: %w", amount.Dec(), who.Hex(), err)
	}
	refund := new(uint256.Int).Set(amount)
	tx.onRollback(func() {
		if err := e.custodian.CreditTo(ctx, who, refund); err != nil {
			e.log.Error().Err(err).Str("account", who.Hex()).Str("amount", refund.Dec()).Msg("compensating credit failed")
		}
	})
	return nil
}

// credit pays amount to who. A later rollback debits it back.
func (e *Engine) credit(ctx context.Context, tx *txn, who common.Address, amount *uint256.Int) error {
	if err := e.custodian.CreditTo(ctx, who, amount); err != nil {
		return fmt.Errorf("staking: credit %s to %s: %w", amount.Dec(), who.Hex(), err)
	}
	clawback := new(uint256.Int).Set(amount)
	tx.onRollback(func() {
		if err := e.custodian.DebitFrom(ctx, who, clawback); err != nil {
			e.log.Error().Err(err).Str("account", who.Hex()).Str("amount", clawback.Dec()).Msg("compensating debit failed")
		}
	})
	return nil
}
