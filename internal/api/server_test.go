package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/generativelabs/stakeledger/internal/custody"
	"github.com/generativelabs/stakeledger/internal/db"
	"github.com/generativelabs/stakeledger/internal/guard"
	"github.com/generativelabs/stakeledger/internal/metrics"
	"github.com/generativelabs/stakeledger/internal/staking"
)

var (
	admin = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

type testServer struct {
	t      *testing.T
	server *Server
	clock  *staking.ManualClock
	vault  *custody.Vault
}

func newTestServer(t *testing.T, variant staking.Variant, withJournal bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	vault := custody.NewVault()
	require.NoError(t, vault.Deposit(admin, uint256.NewInt(100_000)))
	require.NoError(t, vault.Deposit(alice, uint256.NewInt(100_000)))

	roles, err := guard.NewAdmins([]string{admin.Hex()})
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	notifiers := staking.Notifiers{metrics.New(reg)}

	var backend *db.Backend
	if withJournal {
		backend, err = db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "api.db"), zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { backend.Close() })
		notifiers = append(notifiers, backend)
	}

	clock := staking.NewManualClock(10_000)
	ledger, err := staking.New(staking.Params{Variant: variant, Period: 100, Rate: 500}, vault,
		staking.WithClock(clock),
		staking.WithAuthorizer(roles),
		staking.WithPauseGate(&guard.Switch{}),
		staking.WithNotifier(notifiers),
	)
	require.NoError(t, err)

	s := New(ledger, backend, zerolog.Nop())
	s.EnableMetrics(reg)
	return &testServer{t: t, server: s, clock: clock, vault: vault}
}

func (ts *testServer) do(method, path string, who common.Address, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if who != (common.Address{}) {
		req.Header.Set(StakerHeader, who.Hex())
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestPeriodicFlow(t *testing.T) {
	ts := newTestServer(t, staking.VariantPeriodic, true)

	rec := ts.do(http.MethodPost, "/admin/pool/fund", admin, AmountRequest{Amount: "10000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "10000", decode[StatsView](t, rec).RewardPool)

	rec = ts.do(http.MethodPost, "/stakes", alice, AmountRequest{Amount: "1000"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	ts.clock.Advance(250)
	rec = ts.do(http.MethodGet, "/stake/preview?staker="+alice.Hex()+"&id=0", common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decode[AccrualView](t, rec)
	assert.Equal(t, "100", preview.Reward)
	assert.Equal(t, uint64(2), preview.UnclaimedPeriods)

	rec = ts.do(http.MethodPost, "/claim", alice, map[string]uint64{"id": 0})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payout := decode[PayoutView](t, rec)
	assert.Equal(t, "100", payout.Reward)
	assert.False(t, payout.Closed)

	rec = ts.do(http.MethodPost, "/claim", alice, map[string]uint64{"id": 0})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodGet, "/stakes/active?staker="+alice.Hex(), common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	active := decode[struct {
		Stakes         []StakeView `json:"stakes"`
		TotalClaimable string      `json:"totalClaimable"`
	}](t, rec)
	require.Len(t, active.Stakes, 1)
	assert.Equal(t, uint64(2), active.Stakes[0].PeriodsClaimed)
	assert.Equal(t, "0", active.TotalClaimable)

	ts.clock.Advance(80)
	rec = ts.do(http.MethodPost, "/withdraw", alice, map[string]uint64{"id": 0})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payout = decode[PayoutView](t, rec)
	assert.Equal(t, "1000", payout.Principal)
	assert.Equal(t, "50", payout.Reward)
	assert.True(t, payout.Closed)

	rec = ts.do(http.MethodGet, "/stake?staker="+alice.Hex()+"&id=0", common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[StakeView](t, rec).Closed)

	rec = ts.do(http.MethodGet, "/events?staker="+alice.Hex(), common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]db.EventRow](t, rec)
	require.Len(t, events, 4)
	assert.Equal(t, string(staking.EventPositionClosed), events[0].Kind)

	rec = ts.do(http.MethodGet, "/events?staker="+alice.Hex()+"&limit=1", common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]db.EventRow](t, rec), 1)
	rec = ts.do(http.MethodGet, "/events?limit=0", common.Address{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(http.MethodGet, "/events?staker=nobody", common.Address{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/stats", common.Address{}, nil)
	stats := decode[StatsView](t, rec)
	assert.Equal(t, "150", stats.TotalRewardPaid)
	assert.Equal(t, "9850", stats.RewardPool)
	assert.Equal(t, "periodic", stats.Variant)

	rec = ts.do(http.MethodGet, "/metrics", common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stakeledger_reward_pool 9850")
}

func TestListing(t *testing.T) {
	ts := newTestServer(t, staking.VariantSimple, false)
	for _, amount := range []string{"10", "20", "30"} {
		rec := ts.do(http.MethodPost, "/stakes", alice, AmountRequest{Amount: amount})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := ts.do(http.MethodGet, "/stakes?staker="+alice.Hex()+"&offset=1&limit=5", common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stakes := decode[[]StakeView](t, rec)
	require.Len(t, stakes, 2)
	assert.Equal(t, "20", stakes[0].Principal)

	rec = ts.do(http.MethodGet, "/stakes/all?offset=9", common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]StakeView](t, rec))

	rec = ts.do(http.MethodGet, "/forecast?periods=3", common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// 5% of 60 floors per record: 0 + 1 + 1 per period
	assert.Equal(t, "6", decode[map[string]any](t, rec)["reward"])

	rec = ts.do(http.MethodGet, "/events", common.Address{}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrors(t *testing.T) {
	ts := newTestServer(t, staking.VariantSimple, false)

	rec := ts.do(http.MethodPost, "/stakes", common.Address{}, AmountRequest{Amount: "10"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/stakes", alice, AmountRequest{Amount: "0"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/stakes", alice, AmountRequest{Amount: "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/stakes", alice, AmountRequest{Amount: "1000000"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = ts.do(http.MethodPost, "/claim", alice, map[string]uint64{"id": 3})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/withdraw", alice, map[string]uint64{"id": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(http.MethodPost, "/admin/rate", alice, RateRequest{Rate: 10})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPost, "/admin/force-close", admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodGet, "/stakes", common.Address{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/forecast?periods=abc", common.Address{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(http.MethodGet, "/forecast", common.Address{}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", decode[map[string]any](t, rec)["reward"])
}

func TestPauseAndForceClose(t *testing.T) {
	ts := newTestServer(t, staking.VariantSimple, false)
	rec := ts.do(http.MethodPost, "/stakes", alice, AmountRequest{Amount: "500"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(http.MethodPost, "/admin/pause", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/claim-all", alice, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = ts.do(http.MethodPost, "/admin/force-close", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	items := decode[[]PayoutView](t, rec)
	require.Len(t, items, 1)
	assert.True(t, items[0].Closed)
	assert.Empty(t, items[0].Error)

	bal := ts.vault.BalanceOf(alice)
	assert.Equal(t, uint64(100_000), bal.Uint64())
}
