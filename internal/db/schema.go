package db

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	stakesTable      = "stakes"
	stakeEventsTable = "stake_events"
	ledgerStateTable = "ledger_state"

	// amountSize fits the decimal form of a 256-bit integer.
	amountSize = 78
	// addressSize fits a 0x-prefixed hex account address.
	addressSize = 42
)

var (
	StakesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "owner", Type: field.TypeString, Size: addressSize},
		{Name: "stake_id", Type: field.TypeInt64},
		{Name: "principal", Type: field.TypeString, Size: amountSize},
		{Name: "started_at", Type: field.TypeInt64},
		{Name: "ended_at", Type: field.TypeInt64},
		{Name: "closed", Type: field.TypeBool},
		{Name: "reward_withdrawn", Type: field.TypeString, Size: amountSize},
		{Name: "periods_claimed", Type: field.TypeInt64},
	}
	StakesTable = &schema.Table{
		Name:       stakesTable,
		Columns:    StakesColumns,
		PrimaryKey: []*schema.Column{StakesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "stake_owner_stake_id", Unique: true, Columns: []*schema.Column{StakesColumns[1], StakesColumns[2]}},
			{Name: "stake_closed_owner", Columns: []*schema.Column{StakesColumns[6], StakesColumns[1]}},
		},
	}

	StakeEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "kind", Type: field.TypeString, Size: 32},
		{Name: "actor", Type: field.TypeString, Size: addressSize},
		{Name: "owner", Type: field.TypeString, Size: addressSize},
		{Name: "stake_id", Type: field.TypeInt64},
		{Name: "amount", Type: field.TypeString, Size: amountSize},
		{Name: "occurred_at", Type: field.TypeInt64},
	}
	StakeEventsTable = &schema.Table{
		Name:       stakeEventsTable,
		Columns:    StakeEventsColumns,
		PrimaryKey: []*schema.Column{StakeEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "stake_event_owner", Columns: []*schema.Column{StakeEventsColumns[3]}},
		},
	}

	LedgerStateColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "total_staked", Type: field.TypeString, Size: amountSize},
		{Name: "total_stake_count", Type: field.TypeInt64},
		{Name: "total_reward_paid", Type: field.TypeString, Size: amountSize},
		{Name: "reward_pool", Type: field.TypeString, Size: amountSize},
		{Name: "rate", Type: field.TypeInt64},
		{Name: "variant", Type: field.TypeString, Size: 16},
		{Name: "period", Type: field.TypeInt64},
		{Name: "updated_at", Type: field.TypeInt64},
	}
	LedgerStateTable = &schema.Table{
		Name:       ledgerStateTable,
		Columns:    LedgerStateColumns,
		PrimaryKey: []*schema.Column{LedgerStateColumns[0]},
	}

	Tables = []*schema.Table{
		StakesTable,
		StakeEventsTable,
		LedgerStateTable,
	}
)
