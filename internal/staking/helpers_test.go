package staking

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/generativelabs/stakeledger/internal/custody"
)

const (
	testStart   = 1_000_000
	testBalance = 1_000_000
)

var (
	admin = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func u64(v uint256.Int) uint64 { return v.Uint64() }

type roleTable map[common.Address]bool

func (r roleTable) IsAuthorized(who common.Address, role Role) bool {
	return role == RoleAdmin && r[who]
}

type pauseFlag struct{ paused bool }

func (p *pauseFlag) IsPaused() bool { return p.paused }
func (p *pauseFlag) SetPaused(b bool) { p.paused = b }

// hookedCustodian wraps a vault with optional interceptors.
type hookedCustodian struct {
	*custody.Vault
	beforeCredit func(ctx context.Context, who common.Address, amount *uint256.Int) error
	beforeDebit  func(ctx context.Context, who common.Address, amount *uint256.Int) error
}

func (h *hookedCustodian) CreditTo(ctx context.Context, who common.Address, amount *uint256.Int) error {
	if h.beforeCredit != nil {
		if err := h.beforeCredit(ctx, who, amount); err != nil {
			return err
		}
	}
	return h.Vault.CreditTo(ctx, who, amount)
}

func (h *hookedCustodian) DebitFrom(ctx context.Context, who common.Address, amount *uint256.Int) error {
	if h.beforeDebit != nil {
		if err := h.beforeDebit(ctx, who, amount); err != nil {
			return err
		}
	}
	return h.Vault.DebitFrom(ctx, who, amount)
}

type recorder struct {
	events []Event
}

func (r *recorder) Notify(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) kinds() []EventKind {
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	engine *Engine
	clock  *ManualClock
	vault  *custody.Vault
	cust   *hookedCustodian
	gate   *pauseFlag
	events *recorder
	params Params
}

// newFixture builds an engine whose reward pool is funded with pool through
// a real transfer, so the vault can pay every reward the pool covers.
func newFixture(t *testing.T, variant Variant, period, rate, pool uint64) *fixture {
	t.Helper()
	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		clock:  NewManualClock(testStart),
		vault:  custody.NewVault(),
		gate:   &pauseFlag{},
		events: &recorder{},
		params: Params{Variant: variant, Period: period, Rate: rate},
	}
	f.cust = &hookedCustodian{Vault: f.vault}
	for _, who := range []common.Address{admin, alice, bob} {
		require.NoError(t, f.vault.Deposit(who, u(testBalance)))
	}

	var err error
	f.engine, err = New(f.params, f.cust,
		WithClock(f.clock),
		WithAuthorizer(roleTable{admin: true}),
		WithPauseGate(f.gate),
		WithNotifier(f.events),
	)
	require.NoError(t, err)

	if pool > 0 {
		require.NoError(t, f.engine.FundPool(f.ctx, admin, u(pool)))
	}
	f.events.events = nil
	return f
}

func (f *fixture) stake(who common.Address, amount uint64) uint64 {
	f.t.Helper()
	id, err := f.engine.Stake(f.ctx, who, u(amount))
	require.NoError(f.t, err)
	return id
}

func (f *fixture) balance(who common.Address) uint64 {
	return u64(f.vault.BalanceOf(who))
}

func (f *fixture) record(who common.Address, id uint64) RecordView {
	f.t.Helper()
	v, err := f.engine.GetRecord(f.ctx, who, id)
	require.NoError(f.t, err)
	return v
}

// requireConserved checks that the staked total matches the open principals
// and that the pool matches funding minus payouts.
func (f *fixture) requireConserved(funded, defunded uint64) {
	f.t.Helper()
	all, err := f.engine.ListAll(f.ctx, 0, 1<<32)
	require.NoError(f.t, err)
	var open uint64
	for _, v := range all {
		if !v.Closed {
			open += u64(v.Principal)
		}
	}
	agg := f.engine.Stats(f.ctx)
	require.Equal(f.t, open, u64(agg.TotalStaked))
	require.Equal(f.t, funded-defunded-u64(agg.TotalRewardPaid), u64(agg.RewardPool))

	held := f.vault.Held()
	require.Equal(f.t, u64(agg.TotalStaked)+u64(agg.RewardPool), u64(held))
}
