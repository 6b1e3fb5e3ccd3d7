package db

import (
	"context"
	"database/sql"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/pkg/errors"

	"github.com/generativelabs/stakeledger/internal/staking"
)

const writeTimeout = 5 * time.Second

// Notify journals one committed event. Failures are logged; the journal
// never fails the ledger operation that produced the event.
func (c *Backend) Notify(ev staking.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := c.record(ctx, ev); err != nil {
		c.log.Error().Err(err).
			Str("event", string(ev.Kind)).
			Str("owner", ev.Owner.Hex()).
			Uint64("stake", ev.StakeID).
			Msg("journal write failed")
	}
}

func (c *Backend) record(ctx context.Context, ev staking.Event) (err error) {
	tx, err := c.driver.Tx(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = c.insertEvent(ctx, tx, ev); err != nil {
		return err
	}
	if ev.Record != nil {
		if ev.Kind == staking.EventStakeCreated {
			err = c.insertStake(ctx, tx, ev.Record)
		} else {
			err = c.updateStake(ctx, tx, ev.Record)
		}
		if err != nil {
			return err
		}
	}
	if err = c.saveState(ctx, tx, ev.Totals, ev.Time); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func exec(ctx context.Context, ex dialect.ExecQuerier, query string, args []any) error {
	var res sql.Result
	return ex.Exec(ctx, query, args, &res)
}

func (c *Backend) insertEvent(ctx context.Context, ex dialect.ExecQuerier, ev staking.Event) error {
	query, args := c.builder().Insert(stakeEventsTable).
		Columns("kind", "actor", "owner", "stake_id", "amount", "occurred_at").
		Values(string(ev.Kind), ev.Actor.Hex(), ev.Owner.Hex(), int64(ev.StakeID), ev.Amount.Dec(), int64(ev.Time)).
		Query()
	return errors.Wrap(exec(ctx, ex, query, args), "insert event")
}

func (c *Backend) insertStake(ctx context.Context, ex dialect.ExecQuerier, rec *staking.Record) error {
	query, args := c.builder().Insert(stakesTable).
		Columns("owner", "stake_id", "principal", "started_at", "ended_at", "closed", "reward_withdrawn", "periods_claimed").
		Values(rec.Owner.Hex(), int64(rec.ID), rec.Principal.Dec(), int64(rec.StartedAt), int64(rec.EndedAt),
			rec.Closed, rec.RewardWithdrawn.Dec(), int64(rec.PeriodsClaimed)).
		Query()
	return errors.Wrapf(exec(ctx, ex, query, args), "insert stake %s/%d", rec.Owner.Hex(), rec.ID)
}

func (c *Backend) updateStake(ctx context.Context, ex dialect.ExecQuerier, rec *staking.Record) error {
	query, args := c.builder().Update(stakesTable).
		Set("ended_at", int64(rec.EndedAt)).
		Set("closed", rec.Closed).
		Set("reward_withdrawn", rec.RewardWithdrawn.Dec()).
		Set("periods_claimed", int64(rec.PeriodsClaimed)).
		Where(entsql.And(
			entsql.EQ("owner", rec.Owner.Hex()),
			entsql.EQ("stake_id", int64(rec.ID)),
		)).
		Query()
	return errors.Wrapf(exec(ctx, ex, query, args), "update stake %s/%d", rec.Owner.Hex(), rec.ID)
}

func (c *Backend) saveState(ctx context.Context, ex dialect.ExecQuerier, agg staking.Aggregates, now uint64) error {
	query, args := c.builder().Delete(ledgerStateTable).Query()
	if err := exec(ctx, ex, query, args); err != nil {
		return errors.Wrap(err, "clear ledger state")
	}
	query, args = c.builder().Insert(ledgerStateTable).
		Columns("total_staked", "total_stake_count", "total_reward_paid", "reward_pool", "rate",
			"variant", "period", "updated_at").
		Values(agg.TotalStaked.Dec(), int64(agg.TotalStakeCount), agg.TotalRewardPaid.Dec(),
			agg.RewardPool.Dec(), int64(agg.RatePerTenThousand), agg.Variant, int64(agg.Period), int64(now)).
		Query()
	return errors.Wrap(exec(ctx, ex, query, args), "save ledger state")
}
