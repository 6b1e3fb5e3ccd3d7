package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"

	"github.com/generativelabs/stakeledger/internal/staking"
)

var errNoJournal = errors.New("event journal not configured")

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", staking.ErrInvalidArgument, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid amount %q: %v", staking.ErrInvalidArgument, s, err)
	}
	return v, nil
}

// caller reads the acting account from the request header.
func caller(c *gin.Context) (common.Address, bool) {
	who, err := parseAddress(c.GetHeader(StakerHeader))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return common.Address{}, false
	}
	return who, true
}

func (s Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	abortWithError(c, status, err)
}

func bindQuery(c *gin.Context, v any) bool {
	if err := c.ShouldBindQuery(v); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return false
	}
	return true
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s Server) GetStakesByStaker(c *gin.Context) {
	var (
		staker Staker
		page   Page
	)
	if !bindQuery(c, &staker) || !bindQuery(c, &page) {
		return
	}
	owner, err := parseAddress(staker.Staker)
	if err != nil {
		s.fail(c, err)
		return
	}

	stakes, err := s.ledger.ListRecords(c.Request.Context(), owner, page.Offset, page.Limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stakeViews(stakes))
}

func (s Server) GetActiveStakes(c *gin.Context) {
	var (
		staker Staker
		page   Page
	)
	if !bindQuery(c, &staker) || !bindQuery(c, &page) {
		return
	}
	owner, err := parseAddress(staker.Staker)
	if err != nil {
		s.fail(c, err)
		return
	}

	stakes, total, err := s.ledger.ListActive(c.Request.Context(), owner, page.Offset, page.Limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stakes":         stakeViews(stakes),
		"totalClaimable": total.Dec(),
	})
}

func (s Server) GetAllStakes(c *gin.Context) {
	var page Page
	if !bindQuery(c, &page) {
		return
	}
	stakes, err := s.ledger.ListAll(c.Request.Context(), page.Offset, page.Limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stakeViews(stakes))
}

func (s Server) GetStake(c *gin.Context) {
	var ref StakeRef
	if !bindQuery(c, &ref) {
		return
	}
	owner, err := parseAddress(ref.Staker)
	if err != nil {
		s.fail(c, err)
		return
	}
	v, err := s.ledger.GetRecord(c.Request.Context(), owner, *ref.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stakeView(&v))
}

func (s Server) PreviewStake(c *gin.Context) {
	var ref StakeRef
	if !bindQuery(c, &ref) {
		return
	}
	owner, err := parseAddress(ref.Staker)
	if err != nil {
		s.fail(c, err)
		return
	}
	a, err := s.ledger.Preview(c.Request.Context(), owner, *ref.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, AccrualView{
		PerPeriod:        a.PerPeriod.Dec(),
		Reward:           a.Reward.Dec(),
		ClaimAmount:      a.ClaimAmount.Dec(),
		PeriodsElapsed:   a.PeriodsElapsed,
		UnclaimedPeriods: a.UnclaimedPeriods,
		NextAccrualIn:    a.NextAccrualIn,
	})
}

func (s Server) Forecast(c *gin.Context) {
	var q ForecastQuery
	if !bindQuery(c, &q) {
		return
	}
	total, err := s.ledger.Forecast(c.Request.Context(), q.Periods)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"periods": q.Periods, "reward": total.Dec()})
}

func (s Server) Stats(c *gin.Context) {
	agg := s.ledger.Stats(c.Request.Context())
	c.JSON(http.StatusOK, StatsView{
		TotalStaked:        agg.TotalStaked.Dec(),
		TotalStakeCount:    agg.TotalStakeCount,
		TotalRewardPaid:    agg.TotalRewardPaid.Dec(),
		RewardPool:         agg.RewardPool.Dec(),
		RatePerTenThousand: agg.RatePerTenThousand,
		Period:             agg.Period,
		Variant:            agg.Variant,
		Paused:             s.ledger.Paused(),
	})
}

func (s Server) Events(c *gin.Context) {
	if s.backend == nil {
		abortWithError(c, http.StatusNotFound, errNoJournal)
		return
	}
	var q EventsQuery
	if !bindQuery(c, &q) {
		return
	}
	var owner common.Address
	if q.Staker != "" {
		var err error
		if owner, err = parseAddress(q.Staker); err != nil {
			s.fail(c, err)
			return
		}
	}

	events, err := s.backend.QueryEvents(c.Request.Context(), owner, q.Limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (s Server) Stake(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var req AmountRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.fail(c, err)
		return
	}
	id, err := s.ledger.Stake(c.Request.Context(), who, amount)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s Server) Claim(c *gin.Context) {
	s.transition(c, s.ledger.Claim)
}

func (s Server) Withdraw(c *gin.Context) {
	s.transition(c, s.ledger.Withdraw)
}

func (s Server) transition(c *gin.Context, op func(context.Context, common.Address, uint64) (staking.Payout, error)) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var req IDRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := op(c.Request.Context(), who, *req.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, payoutView(&p))
}

func (s Server) ClaimAll(c *gin.Context) {
	s.batch(c, s.ledger.ClaimAll)
}

func (s Server) WithdrawAll(c *gin.Context) {
	s.batch(c, s.ledger.WithdrawAll)
}

func (s Server) batch(c *gin.Context, op func(context.Context, common.Address) ([]staking.BatchItem, error)) {
	who, ok := caller(c)
	if !ok {
		return
	}
	items, err := op(c.Request.Context(), who)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, batchViews(items))
}

func (s Server) FundPool(c *gin.Context) {
	s.poolChange(c, s.ledger.FundPool)
}

func (s Server) DefundPool(c *gin.Context) {
	s.poolChange(c, s.ledger.DefundPool)
}

func (s Server) poolChange(c *gin.Context, op func(context.Context, common.Address, *uint256.Int) error) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var req AmountRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := op(c.Request.Context(), who, amount); err != nil {
		s.fail(c, err)
		return
	}
	s.Stats(c)
}

func (s Server) SetRate(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var req RateRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := s.ledger.SetRate(c.Request.Context(), who, req.Rate); err != nil {
		s.fail(c, err)
		return
	}
	s.Stats(c)
}

func (s Server) Pause(c *gin.Context) {
	s.setPaused(c, s.ledger.Pause)
}

func (s Server) Unpause(c *gin.Context) {
	s.setPaused(c, s.ledger.Unpause)
}

func (s Server) setPaused(c *gin.Context, op func(common.Address) error) {
	who, ok := caller(c)
	if !ok {
		return
	}
	if err := op(who); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": s.ledger.Paused()})
}

func (s Server) ForceCloseAll(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	items, err := s.ledger.ForceCloseAll(c.Request.Context(), who)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, batchViews(items))
}
