package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/generativelabs/stakeledger/internal/custody"
	"github.com/generativelabs/stakeledger/internal/staking"
)

type Staker struct {
	Staker string `form:"staker" binding:"required"`
}

type Page struct {
	Offset uint64 `form:"offset"`
	Limit  uint64 `form:"limit,default=50"`
}

type ForecastQuery struct {
	Periods uint64 `form:"periods"`
}

type EventsQuery struct {
	Staker string `form:"staker"`
	Limit  int    `form:"limit,default=50" binding:"min=1"`
}

type StakeRef struct {
	Staker string  `form:"staker" binding:"required"`
	ID     *uint64 `form:"id" binding:"required"`
}

type IDRequest struct {
	ID *uint64 `json:"id" binding:"required"`
}

type AmountRequest struct {
	Amount string `json:"amount" binding:"required"`
}

type RateRequest struct {
	Rate uint64 `json:"rate" binding:"required"`
}

type StakeView struct {
	ID              uint64 `json:"id"`
	Owner           string `json:"owner"`
	Principal       string `json:"principal"`
	StartedAt       uint64 `json:"startedAt"`
	EndedAt         uint64 `json:"endedAt,omitempty"`
	Closed          bool   `json:"closed"`
	RewardWithdrawn string `json:"rewardWithdrawn"`
	PeriodsClaimed  uint64 `json:"periodsClaimed"`
	Claimable       string `json:"claimable"`
	NextAccrualIn   uint64 `json:"nextAccrualIn"`
}

func stakeView(v *staking.RecordView) StakeView {
	return StakeView{
		ID:              v.ID,
		Owner:           v.Owner.Hex(),
		Principal:       v.Principal.Dec(),
		StartedAt:       v.StartedAt,
		EndedAt:         v.EndedAt,
		Closed:          v.Closed,
		RewardWithdrawn: v.RewardWithdrawn.Dec(),
		PeriodsClaimed:  v.PeriodsClaimed,
		Claimable:       v.Claimable.Dec(),
		NextAccrualIn:   v.NextAccrualIn,
	}
}

func stakeViews(views []staking.RecordView) []StakeView {
	out := make([]StakeView, 0, len(views))
	for i := range views {
		out = append(out, stakeView(&views[i]))
	}
	return out
}

type PayoutView struct {
	ID        uint64 `json:"id"`
	Owner     string `json:"owner"`
	Principal string `json:"principal"`
	Reward    string `json:"reward"`
	Periods   uint64 `json:"periods"`
	Closed    bool   `json:"closed"`
	Error     string `json:"error,omitempty"`
}

func payoutView(p *staking.Payout) PayoutView {
	return PayoutView{
		ID:        p.ID,
		Owner:     p.Owner.Hex(),
		Principal: p.Principal.Dec(),
		Reward:    p.Reward.Dec(),
		Periods:   p.Periods,
		Closed:    p.Closed,
	}
}

func batchViews(items []staking.BatchItem) []PayoutView {
	out := make([]PayoutView, 0, len(items))
	for i := range items {
		v := payoutView(&items[i].Payout)
		if items[i].Err != nil {
			v.Error = items[i].Err.Error()
		}
		out = append(out, v)
	}
	return out
}

type AccrualView struct {
	PerPeriod        string `json:"perPeriod"`
	Reward           string `json:"reward"`
	ClaimAmount      string `json:"claimAmount"`
	PeriodsElapsed   uint64 `json:"periodsElapsed"`
	UnclaimedPeriods uint64 `json:"unclaimedPeriods"`
	NextAccrualIn    uint64 `json:"nextAccrualIn"`
}

type StatsView struct {
	TotalStaked        string `json:"totalStaked"`
	TotalStakeCount    uint64 `json:"totalStakeCount"`
	TotalRewardPaid    string `json:"totalRewardPaid"`
	RewardPool         string `json:"rewardPool"`
	RatePerTenThousand uint64 `json:"ratePerTenThousand"`
	Period             uint64 `json:"period"`
	Variant            string `json:"variant"`
	Paused             bool   `json:"paused"`
}

// statusFor maps ledger errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, staking.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, staking.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, staking.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, staking.ErrAlreadyClosed),
		errors.Is(err, staking.ErrNothingToClaim),
		errors.Is(err, staking.ErrPoolInsufficient),
		errors.Is(err, staking.ErrNotPaused):
		return http.StatusConflict
	case errors.Is(err, staking.ErrPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, staking.ErrUnsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, custody.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
