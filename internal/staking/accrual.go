package staking

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Accrual is the reward state of one record at a point in time.
type Accrual struct {
	// PerPeriod is the reward for one whole period at the rate in force.
	PerPeriod uint256.Int
	// Reward is the amount payable now.
	Reward uint256.Int
	// ClaimAmount is principal plus Reward. Only the simple variant pays it.
	ClaimAmount uint256.Int

	PeriodsElapsed   uint64
	UnclaimedPeriods uint64
	// NextAccrualIn is the number of seconds until the next period boundary.
	NextAccrualIn uint64
}

var rateDenominator = uint256.NewInt(RateDenominator)

// PerPeriodReward returns floor(principal * rate / RateDenominator).
func PerPeriodReward(principal *uint256.Int, rate uint64) (*uint256.Int, error) {
	scaled, overflow := new(uint256.Int).MulOverflow(principal, uint256.NewInt(rate))
	if overflow {
		return nil, fmt.Errorf("%w: reward overflow for principal %s", ErrInvalidArgument, principal.Dec())
	}
	return scaled.Div(scaled, rateDenominator), nil
}

// Accrue computes the reward owed on rec at time now. It is a pure function
// of its inputs; the rate is whatever is current, not the rate at creation.
func Accrue(variant Variant, rec *Record, rate, period, now uint64) (Accrual, error) {
	var a Accrual
	if period == 0 {
		return a, fmt.Errorf("%w: zero period", ErrInvalidArgument)
	}

	var elapsed uint64
	if now > rec.StartedAt {
		elapsed = now - rec.StartedAt
	}
	a.PeriodsElapsed = elapsed / period
	a.NextAccrualIn = period - elapsed%period

	perPeriod, err := PerPeriodReward(&rec.Principal, rate)
	if err != nil {
		return a, err
	}
	a.PerPeriod = *perPeriod

	switch variant {
	case VariantSimple:
		a.UnclaimedPeriods = a.PeriodsElapsed
	case VariantPeriodic:
		if rec.PeriodsClaimed < a.PeriodsElapsed {
			a.UnclaimedPeriods = a.PeriodsElapsed - rec.PeriodsClaimed
		}
	default:
		return a, fmt.Errorf("%w: variant %d", ErrInvalidArgument, variant)
	}

	reward, overflow := new(uint256.Int).MulOverflow(perPeriod, uint256.NewInt(a.UnclaimedPeriods))
	if overflow {
		return a, fmt.Errorf("%w: reward overflow", ErrInvalidArgument)
	}
	a.Reward = *reward

	total, overflow := new(uint256.Int).AddOverflow(&rec.Principal, reward)
	if overflow {
		return a, fmt.Errorf("%w: claim amount overflow", ErrInvalidArgument)
	}
	a.ClaimAmount = *total
	return a, nil
}

// Project returns the linear reward for periodsAhead further periods on top
// of what is claimable now.
func (a Accrual) Project(periodsAhead uint64) (*uint256.Int, error) {
	ahead, overflow := new(uint256.Int).MulOverflow(&a.PerPeriod, uint256.NewInt(periodsAhead))
	if overflow {
		return nil, fmt.Errorf("%w: forecast overflow", ErrInvalidArgument)
	}
	total, overflow := ahead.AddOverflow(ahead, &a.Reward)
	if overflow {
		return nil, fmt.Errorf("%w: forecast overflow", ErrInvalidArgument)
	}
	return total, nil
}
