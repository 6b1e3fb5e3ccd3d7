package staking

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

type EventKind string

const (
	EventPoolFunded     EventKind = "pool_funded"
	EventPoolDefunded   EventKind = "pool_defunded"
	EventRateChanged    EventKind = "rate_changed"
	EventStakeCreated   EventKind = "stake_created"
	EventRewardClaimed  EventKind = "reward_claimed"
	EventPositionClosed EventKind = "position_closed"
)

// Event describes one committed state transition.
type Event struct {
	Kind    EventKind
	Actor   common.Address
	Owner   common.Address
	StakeID uint64
	Amount  uint256.Int
	Time    uint64
	// Record is the stake after the transition; nil for pool and rate events.
	Record *Record
	Totals Aggregates
}

// Notifier receives committed events, one at a time and in commit order.
// Implementations must not fail the operation that produced them, and must
// not start another mutating operation on the engine from Notify.
type Notifier interface {
	Notify(Event)
}

type NotifierFunc func(Event)

func (f NotifierFunc) Notify(ev Event) { f(ev) }

// Notifiers fans an event out to every member in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ev Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ev)
		}
	}
}

// LogNotifier writes every event to a zerolog logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(ev Event) {
	e := n.Logger.Info().
		Str("event", string(ev.Kind)).
		Str("actor", ev.Actor.Hex()).
		Str("amount", ev.Amount.Dec()).
		Uint64("time", ev.Time).
		Str("pool", ev.Totals.RewardPool.Dec())
	if ev.Record != nil {
		e = e.Str("owner", ev.Owner.Hex()).Uint64("stake", ev.StakeID)
	}
	e.Msg("staking event")
}

func (e *Engine) event(kind EventKind, actor common.Address, rec *Record, amount *uint256.Int, now uint64) Event {
	ev := Event{
		Kind:   kind,
		Actor:  actor,
		Amount: *amount,
		Time:   now,
		Totals: e.ledger.aggregates(),
	}
	if rec != nil {
		snap := *rec
		ev.Owner = rec.Owner
		ev.StakeID = rec.ID
		ev.Record = &snap
	}
	return ev
}
