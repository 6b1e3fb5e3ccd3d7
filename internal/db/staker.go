package db

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/generativelabs/stakeledger/internal/staking"
)

var stakeColumns = []string{
	"owner", "stake_id", "principal", "started_at", "ended_at", "closed", "reward_withdrawn", "periods_claimed",
}

// EventRow is one journalled event.
type EventRow struct {
	Seq     int64  `json:"seq"`
	Kind    string `json:"kind"`
	Actor   string `json:"actor"`
	Owner   string `json:"owner"`
	StakeID uint64 `json:"stakeId"`
	Amount  string `json:"amount"`
	Time    uint64 `json:"time"`
}

// Snapshot is the journalled ledger: every record in creation order and the
// latest counters.
type Snapshot struct {
	Records []staking.Record
	Totals  staking.Aggregates
}

func (c *Backend) QueryStakesByStaker(ctx context.Context, staker common.Address) ([]staking.Record, error) {
	query, args := c.builder().Select(stakeColumns...).
		From(c.builder().Table(stakesTable)).
		Where(entsql.EQ("owner", staker.Hex())).
		OrderBy("stake_id").
		Query()
	return c.queryStakes(ctx, query, args)
}

func (c *Backend) QueryOpenStakes(ctx context.Context, limit int) ([]staking.Record, error) {
	query, args := c.builder().Select(stakeColumns...).
		From(c.builder().Table(stakesTable)).
		Where(entsql.EQ("closed", false)).
		OrderBy("id").
		Limit(limit).
		Query()
	return c.queryStakes(ctx, query, args)
}

// QueryEvents returns the newest events first. A zero owner matches every
// account.
func (c *Backend) QueryEvents(ctx context.Context, owner common.Address, limit int) ([]EventRow, error) {
	sel := c.builder().Select("id", "kind", "actor", "owner", "stake_id", "amount", "occurred_at").
		From(c.builder().Table(stakeEventsTable))
	if owner != (common.Address{}) {
		sel = sel.Where(entsql.EQ("owner", owner.Hex()))
	}
	query, args := sel.OrderBy(entsql.Desc("id")).Limit(limit).Query()

	rows := &entsql.Rows{}
	if err := c.driver.Query(ctx, query, args, rows); err != nil {
		return nil, errors.Wrap(err, "query events")
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var (
			row             EventRow
			stakeID, occurs int64
		)
		if err := rows.Scan(&row.Seq, &row.Kind, &row.Actor, &row.Owner, &stakeID, &row.Amount, &occurs); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		row.StakeID = uint64(stakeID)
		row.Time = uint64(occurs)
		out = append(out, row)
	}
	return out, errors.Wrap(rows.Err(), "iterate events")
}

// Transfer is one custody movement implied by a journalled event.
type Transfer struct {
	Account common.Address
	Amount  uint256.Int
	// Inbound is set when the ledger paid Amount to Account.
	Inbound bool
}

// QueryTransfers replays the event log into the custody movements the
// events caused, oldest first.
func (c *Backend) QueryTransfers(ctx context.Context) ([]Transfer, error) {
	query, args := c.builder().Select("kind", "actor", "owner", "amount").
		From(c.builder().Table(stakeEventsTable)).
		Where(entsql.NEQ("kind", string(staking.EventRateChanged))).
		OrderBy("id").
		Query()

	rows := &entsql.Rows{}
	if err := c.driver.Query(ctx, query, args, rows); err != nil {
		return nil, errors.Wrap(err, "query transfers")
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		var kind, actor, owner, amount string
		if err := rows.Scan(&kind, &actor, &owner, &amount); err != nil {
			return nil, errors.Wrap(err, "scan transfer")
		}
		var t Transfer
		if err := t.Amount.SetFromDecimal(amount); err != nil {
			return nil, errors.Wrapf(err, "parse amount %q", amount)
		}
		switch staking.EventKind(kind) {
		case staking.EventStakeCreated:
			t.Account = common.HexToAddress(owner)
		case staking.EventPoolFunded:
			t.Account = common.HexToAddress(actor)
		case staking.EventPoolDefunded:
			t.Account, t.Inbound = common.HexToAddress(actor), true
		case staking.EventRewardClaimed, staking.EventPositionClosed:
			t.Account, t.Inbound = common.HexToAddress(owner), true
		default:
			return nil, errors.Errorf("unknown event kind %q", kind)
		}
		if !t.Amount.IsZero() {
			out = append(out, t)
		}
	}
	return out, errors.Wrap(rows.Err(), "iterate transfers")
}

// LoadSnapshot reads the whole journal. found is false when nothing has
// been journalled yet.
func (c *Backend) LoadSnapshot(ctx context.Context) (snap Snapshot, found bool, err error) {
	query, args := c.builder().Select(stakeColumns...).
		From(c.builder().Table(stakesTable)).
		OrderBy("id").
		Query()
	if snap.Records, err = c.queryStakes(ctx, query, args); err != nil {
		return snap, false, err
	}

	query, args = c.builder().Select("total_staked", "total_stake_count", "total_reward_paid", "reward_pool", "rate", "variant", "period").
		From(c.builder().Table(ledgerStateTable)).
		Limit(1).
		Query()
	rows := &entsql.Rows{}
	if err = c.driver.Query(ctx, query, args, rows); err != nil {
		return snap, false, errors.Wrap(err, "query ledger state")
	}
	defer rows.Close()
	if !rows.Next() {
		return snap, false, errors.Wrap(rows.Err(), "query ledger state")
	}

	var (
		staked, paid, pool, variant string
		count, rate, period         int64
	)
	if err = rows.Scan(&staked, &count, &paid, &pool, &rate, &variant, &period); err != nil {
		return snap, false, errors.Wrap(err, "scan ledger state")
	}
	t := &snap.Totals
	t.TotalStakeCount = uint64(count)
	t.RatePerTenThousand = uint64(rate)
	t.Variant = variant
	t.Period = uint64(period)
	for _, f := range []struct {
		dst *uint256.Int
		src string
	}{{&t.TotalStaked, staked}, {&t.TotalRewardPaid, paid}, {&t.RewardPool, pool}} {
		if err = f.dst.SetFromDecimal(f.src); err != nil {
			return snap, false, errors.Wrapf(err, "parse amount %q", f.src)
		}
	}
	return snap, true, nil
}

func (c *Backend) queryStakes(ctx context.Context, query string, args []any) ([]staking.Record, error) {
	rows := &entsql.Rows{}
	if err := c.driver.Query(ctx, query, args, rows); err != nil {
		return nil, errors.Wrap(err, "query stakes")
	}
	defer rows.Close()

	var out []staking.Record
	for rows.Next() {
		var (
			rec                                staking.Record
			owner, principal, withdrawn        string
			id, started, ended, periodsClaimed int64
		)
		if err := rows.Scan(&owner, &id, &principal, &started, &ended, &rec.Closed, &withdrawn, &periodsClaimed); err != nil {
			return nil, errors.Wrap(err, "scan stake")
		}
		rec.Owner = common.HexToAddress(owner)
		rec.ID = uint64(id)
		rec.StartedAt = uint64(started)
		rec.EndedAt = uint64(ended)
		rec.PeriodsClaimed = uint64(periodsClaimed)
		if err := rec.Principal.SetFromDecimal(principal); err != nil {
			return nil, errors.Wrapf(err, "parse principal %q", principal)
		}
		if err := rec.RewardWithdrawn.SetFromDecimal(withdrawn); err != nil {
			return nil, errors.Wrapf(err, "parse reward withdrawn %q", withdrawn)
		}
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "iterate stakes")
}
