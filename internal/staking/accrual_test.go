package staking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccrue(t *testing.T) {
	tests := []struct {
		name      string
		variant   Variant
		principal uint64
		claimed   uint64
		rate      uint64
		period    uint64
		elapsed   uint64

		reward, claimAmount  uint64
		elapsedPeriods, open uint64
		next                 uint64
	}{
		{
			name: "simple two days", variant: VariantSimple,
			principal: 1000, rate: 1000, period: 3600, elapsed: 2 * 3600,
			reward: 200, claimAmount: 1200, elapsedPeriods: 2, open: 2, next: 3600,
		},
		{
			name: "simple partial day", variant: VariantSimple,
			principal: 1000, rate: 1000, period: 3600, elapsed: 3599,
			reward: 0, claimAmount: 1000, elapsedPeriods: 0, open: 0, next: 1,
		},
		{
			name: "periodic nothing claimed", variant: VariantPeriodic,
			principal: 1000, rate: 500, period: 100, elapsed: 250,
			reward: 100, claimAmount: 1100, elapsedPeriods: 2, open: 2, next: 50,
		},
		{
			name: "periodic after claim", variant: VariantPeriodic,
			principal: 1000, claimed: 2, rate: 500, period: 100, elapsed: 330,
			reward: 50, claimAmount: 1050, elapsedPeriods: 3, open: 1, next: 70,
		},
		{
			name: "periodic fully claimed", variant: VariantPeriodic,
			principal: 1000, claimed: 3, rate: 500, period: 100, elapsed: 330,
			reward: 0, claimAmount: 1000, elapsedPeriods: 3, open: 0, next: 70,
		},
		{
			name: "floor per period", variant: VariantPeriodic,
			principal: 333, rate: 100, period: 10, elapsed: 30,
			reward: 9, claimAmount: 342, elapsedPeriods: 3, open: 3, next: 10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &Record{Principal: *u(tt.principal), StartedAt: testStart, PeriodsClaimed: tt.claimed}
			a, err := Accrue(tt.variant, rec, tt.rate, tt.period, testStart+tt.elapsed)
			require.NoError(t, err)
			assert.Equal(t, tt.reward, u64(a.Reward))
			assert.Equal(t, tt.claimAmount, u64(a.ClaimAmount))
			assert.Equal(t, tt.elapsedPeriods, a.PeriodsElapsed)
			assert.Equal(t, tt.open, a.UnclaimedPeriods)
			assert.Equal(t, tt.next, a.NextAccrualIn)
		})
	}
}

func TestAccrueBeforeStart(t *testing.T) {
	rec := &Record{Principal: *u(1000), StartedAt: testStart}
	a, err := Accrue(VariantPeriodic, rec, 500, 100, testStart-10)
	require.NoError(t, err)
	assert.True(t, a.Reward.IsZero())
	assert.Equal(t, uint64(100), a.NextAccrualIn)
}

func TestAccrueRejectsZeroPeriod(t *testing.T) {
	_, err := Accrue(VariantSimple, &Record{}, 1, 0, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAccrualProject(t *testing.T) {
	rec := &Record{Principal: *u(1000), StartedAt: testStart}
	a, err := Accrue(VariantPeriodic, rec, 500, 100, testStart+150)
	require.NoError(t, err)
	projected, err := a.Project(4)
	require.NoError(t, err)
	assert.Equal(t, uint64(50+4*50), projected.Uint64())
}
