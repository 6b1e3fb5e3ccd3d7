package staking

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// RateDenominator is the divisor applied to RatePerTenThousand.
const RateDenominator = 10_000

// Variant selects the accrual and claim algorithm.
type Variant uint8

const (
	// VariantSimple pays principal and reward in a single claim that closes
	// the stake.
	VariantSimple Variant = iota
	// VariantPeriodic pays reward in repeatable per-period claims and returns
	// principal on a separate withdraw.
	VariantPeriodic
)

func (v Variant) String() string {
	switch v {
	case VariantSimple:
		return "simple"
	case VariantPeriodic:
		return "periodic"
	default:
		return "unknown"
	}
}

// ParseVariant maps a configuration string onto a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simple", "":
		return VariantSimple, nil
	case "periodic":
		return VariantPeriodic, nil
	default:
		return 0, fmt.Errorf("%w: unknown variant %q", ErrInvalidArgument, s)
	}
}

// Params fixes the engine behaviour at construction time.
type Params struct {
	Variant Variant
	// Period is the accrual unit in seconds: the day length in the simple
	// variant, the reward period in the periodic variant.
	Period uint64
	// Rate is the initial reward per period in units of 1/RateDenominator.
	Rate uint64
	// InitialPool seeds the reward pool without a transfer.
	InitialPool uint256.Int
}

func (p Params) validate() error {
	if p.Variant != VariantSimple && p.Variant != VariantPeriodic {
		return fmt.Errorf("%w: variant %d", ErrInvalidArgument, p.Variant)
	}
	if p.Period == 0 {
		return fmt.Errorf("%w: period must be positive", ErrInvalidArgument)
	}
	if p.Rate == 0 {
		return fmt.Errorf("%w: rate must be positive", ErrInvalidArgument)
	}
	return nil
}

// Record is one stake position.
type Record struct {
	ID              uint64
	Owner           common.Address
	Principal       uint256.Int
	StartedAt       uint64
	EndedAt         uint64
	Closed          bool
	RewardWithdrawn uint256.Int
	PeriodsClaimed  uint64
}

// RecordView is a Record with the values derived at query time.
type RecordView struct {
	Record
	Claimable     uint256.Int
	NextAccrualIn uint64
}

// Aggregates are the ledger-wide counters.
type Aggregates struct {
	TotalStaked        uint256.Int
	TotalStakeCount    uint64
	TotalRewardPaid    uint256.Int
	RewardPool         uint256.Int
	RatePerTenThousand uint64
	Period             uint64
	Variant            string
}
