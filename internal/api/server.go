package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/generativelabs/stakeledger/internal/db"
	"github.com/generativelabs/stakeledger/internal/staking"
)

// StakerHeader carries the acting account of a mutating request.
const StakerHeader = "X-Staker"

type Server struct {
	ledger  *staking.Engine
	backend *db.Backend
	engine  *gin.Engine
	log     zerolog.Logger
}

// New builds the HTTP API over ledger. backend is optional; without it the
// event history route answers 404.
func New(ledger *staking.Engine, backend *db.Backend, logger zerolog.Logger) *Server {
	server := &Server{
		ledger:  ledger,
		backend: backend,
		log:     logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), server.accessLog)

	r.GET("/stakes", server.GetStakesByStaker)
	r.GET("/stakes/active", server.GetActiveStakes)
	r.GET("/stakes/all", server.GetAllStakes)
	r.GET("/stake", server.GetStake)
	r.GET("/stake/preview", server.PreviewStake)
	r.GET("/forecast", server.Forecast)
	r.GET("/stats", server.Stats)
	r.GET("/events", server.Events)

	r.POST("/stakes", server.Stake)
	r.POST("/claim", server.Claim)
	r.POST("/withdraw", server.Withdraw)
	r.POST("/claim-all", server.ClaimAll)
	r.POST("/withdraw-all", server.WithdrawAll)

	admin := r.Group("/admin")
	admin.POST("/pool/fund", server.FundPool)
	admin.POST("/pool/defund", server.DefundPool)
	admin.POST("/rate", server.SetRate)
	admin.POST("/pause", server.Pause)
	admin.POST("/unpause", server.Unpause)
	admin.POST("/force-close", server.ForceCloseAll)

	server.engine = r
	return server
}

// EnableMetrics serves g on /metrics.
func (s *Server) EnableMetrics(g prometheus.Gatherer) {
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run(servicePort int) error {
	return s.engine.Run(fmt.Sprintf(":%d", servicePort))
}

func (s *Server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Debug().
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", c.Writer.Status()).
		Dur("latency", time.Since(start)).
		Msg("request")
}
