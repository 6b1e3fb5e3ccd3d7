// Package metrics exports staking ledger activity to prometheus.
package metrics

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/generativelabs/stakeledger/internal/staking"
)

const namespace = "stakeledger"

// Recorder is a staking.Notifier that mirrors committed events into
// prometheus counters and ledger gauges.
type Recorder struct {
	events      *prometheus.CounterVec
	totalStaked prometheus.Gauge
	rewardPool  prometheus.Gauge
	rewardPaid  prometheus.Gauge
	stakeCount  prometheus.Gauge
	rate        prometheus.Gauge
}

func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Committed ledger events by kind.",
		}, []string{"kind"}),
		totalStaked: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_staked",
			Help:      "Principal held by open stakes.",
		}),
		rewardPool: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reward_pool",
			Help:      "Reward reserve available for payouts.",
		}),
		rewardPaid: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reward_paid_total",
			Help:      "Reward paid out since genesis.",
		}),
		stakeCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stakes_created",
			Help:      "Stake records ever created.",
		}),
		rate: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_per_ten_thousand",
			Help:      "Current reward rate per period.",
		}),
	}
}

func (r *Recorder) Notify(ev staking.Event) {
	r.events.WithLabelValues(string(ev.Kind)).Inc()
	r.Observe(ev.Totals)
}

// Observe sets the ledger gauges from agg.
func (r *Recorder) Observe(agg staking.Aggregates) {
	r.totalStaked.Set(toFloat(&agg.TotalStaked))
	r.rewardPool.Set(toFloat(&agg.RewardPool))
	r.rewardPaid.Set(toFloat(&agg.TotalRewardPaid))
	r.stakeCount.Set(float64(agg.TotalStakeCount))
	r.rate.Set(float64(agg.RatePerTenThousand))
}

func toFloat(v *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
