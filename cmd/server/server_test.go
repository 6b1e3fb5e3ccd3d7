package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/generativelabs/stakeledger/internal/staking"
)

var (
	admin = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

const configTemplate = `
staking:
  variant: %s
  period: 60
  rate: 500
  initial-pool: "1000"
admins:
  - "%s"
genesis-balances:
  "%s": "5000"
  "%s": "5000"
sqlite-path: %s
service-port: 9000
`

func writeConfig(t *testing.T, dir, variant string) string {
	t.Helper()
	path := filepath.Join(dir, "stakeledger.yml")
	body := fmt.Sprintf(configTemplate, variant, admin.Hex(), alice.Hex(), admin.Hex(), filepath.Join(dir, "journal.db"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "periodic")
	t.Setenv("STAKELEDGER_STAKING_RATE", "700")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "periodic", config.Staking.Variant)
	assert.Equal(t, uint64(60), config.Staking.Period)
	assert.Equal(t, uint64(700), config.Staking.Rate)
	assert.Equal(t, "info", config.LogLevel)
	assert.True(t, config.Metrics)

	params, err := config.Params()
	require.NoError(t, err)
	assert.Equal(t, staking.VariantPeriodic, params.Variant)
	assert.Equal(t, uint64(1000), params.InitialPool.Uint64())

	balances, err := config.Balances()
	require.NoError(t, err)
	require.Contains(t, balances, alice)
	assert.Equal(t, uint64(5000), balances[alice].Uint64())
}

func TestLoadConfigRejects(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "periodic")

	t.Setenv("STAKELEDGER_STAKING_PERIOD", "0")
	_, err := LoadConfig(path)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	var config Config
	config.Staking.Variant = "compound"
	assert.Error(t, config.Validate())
}

func TestBuildRestoresJournal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	config, err := LoadConfig(writeConfig(t, dir, "periodic"))
	require.NoError(t, err)

	node, err := Build(ctx, config, zerolog.Nop())
	require.NoError(t, err)
	id, err := node.Ledger.Stake(ctx, alice, uint256.NewInt(2000))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)
	require.NoError(t, node.Ledger.FundPool(ctx, admin, uint256.NewInt(500)))
	node.Close()

	node, err = Build(ctx, config, zerolog.Nop())
	require.NoError(t, err)

	stats := node.Ledger.Stats(ctx)
	assert.Equal(t, uint64(2000), stats.TotalStaked.Uint64())
	assert.Equal(t, uint64(1), stats.TotalStakeCount)
	assert.Equal(t, uint64(1500), stats.RewardPool.Uint64())

	held := node.Vault.Held()
	assert.Equal(t, uint64(3500), held.Uint64())
	// balances carry over instead of resetting to genesis
	bal := node.Vault.BalanceOf(alice)
	assert.Equal(t, uint64(3000), bal.Uint64())
	bal = node.Vault.BalanceOf(admin)
	assert.Equal(t, uint64(4500), bal.Uint64())

	_, err = node.Ledger.Withdraw(ctx, alice, 0)
	require.NoError(t, err)
	node.Close()

	node, err = Build(ctx, config, zerolog.Nop())
	require.NoError(t, err)
	defer node.Close()
	paid := node.Ledger.Stats(ctx).TotalRewardPaid
	bal = node.Vault.BalanceOf(alice)
	assert.Equal(t, 5000+paid.Uint64(), bal.Uint64())
	held = node.Vault.Held()
	assert.Equal(t, 1500-paid.Uint64(), held.Uint64())

	records, err := node.Ledger.ListRecords(ctx, alice, 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(2000), records[0].Principal.Uint64())
	assert.NotNil(t, node.Registry)
}

func TestBuildRejectsVariantChange(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	config, err := LoadConfig(writeConfig(t, dir, "periodic"))
	require.NoError(t, err)

	node, err := Build(ctx, config, zerolog.Nop())
	require.NoError(t, err)
	_, err = node.Ledger.Stake(ctx, alice, uint256.NewInt(100))
	require.NoError(t, err)
	node.Close()

	config, err = LoadConfig(writeConfig(t, dir, "simple"))
	require.NoError(t, err)
	_, err = Build(ctx, config, zerolog.Nop())
	assert.ErrorContains(t, err, "journal holds a periodic ledger")
}

func TestBuildRejectsJournalBeyondGenesis(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	config, err := LoadConfig(writeConfig(t, dir, "periodic"))
	require.NoError(t, err)

	node, err := Build(ctx, config, zerolog.Nop())
	require.NoError(t, err)
	_, err = node.Ledger.Stake(ctx, alice, uint256.NewInt(4000))
	require.NoError(t, err)
	node.Close()

	config.GenesisBalances[strings.ToLower(alice.Hex())] = "100"
	_, err = Build(ctx, config, zerolog.Nop())
	assert.ErrorContains(t, err, "replay journalled transfer")
}
