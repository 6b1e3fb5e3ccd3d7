package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/generativelabs/stakeledger/internal/api"
	"github.com/generativelabs/stakeledger/internal/custody"
	"github.com/generativelabs/stakeledger/internal/db"
	"github.com/generativelabs/stakeledger/internal/guard"
	"github.com/generativelabs/stakeledger/internal/metrics"
	"github.com/generativelabs/stakeledger/internal/staking"
)

const envPrefix = "STAKELEDGER"

// LoadConfig reads a yaml config file. Every key can be overridden from the
// environment, e.g. STAKELEDGER_STAKING_RATE.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)

	v.SetDefault("staking.variant", staking.VariantSimple.String())
	v.SetDefault("staking.period", 86400)
	v.SetDefault("staking.rate", 100)
	v.SetDefault("staking.initial-pool", "0")
	v.SetDefault("log-level", "info")
	v.SetDefault("metrics", true)
	v.SetDefault("service-port", 8080)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.ReadInConfig(); err != nil {
		return config, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("decode config: %w", err)
	}
	return config, config.Validate()
}

// Node is a fully wired staking service.
type Node struct {
	Ledger   *staking.Engine
	Vault    *custody.Vault
	Switch   *guard.Switch
	Backend  *db.Backend
	API      *api.Server
	Registry *prometheus.Registry
}

func openBackend(ctx context.Context, config Config, logger zerolog.Logger) (*db.Backend, error) {
	switch {
	case config.SqlitePath != "":
		return db.OpenSQLite(ctx, config.SqlitePath, logger)
	case config.Mysql.Host != "":
		return db.CreateBackend(ctx, config.Mysql, logger)
	default:
		return nil, nil
	}
}

// Build wires custody, access control, the journal and the HTTP API around a
// ledger. The vault starts from genesis-balances with the initial pool in
// custody. A journalled ledger is restored from its last snapshot and its
// transfers are replayed on top of the genesis balances.
func Build(ctx context.Context, config Config, logger zerolog.Logger) (*Node, error) {
	params, err := config.Params()
	if err != nil {
		return nil, err
	}
	balances, err := config.Balances()
	if err != nil {
		return nil, err
	}

	vault := custody.NewVault()
	for who, amount := range balances {
		if err := vault.Deposit(who, amount); err != nil {
			return nil, fmt.Errorf("genesis balance of %s: %w", who.Hex(), err)
		}
	}
	roles, err := guard.NewAdmins(config.Admins)
	if err != nil {
		return nil, err
	}

	node := &Node{Vault: vault, Switch: &guard.Switch{}}
	notifiers := staking.Notifiers{staking.LogNotifier{Logger: logger}}

	var recorder *metrics.Recorder
	if config.Metrics {
		node.Registry = prometheus.NewRegistry()
		node.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder = metrics.New(node.Registry)
		notifiers = append(notifiers, recorder)
	}

	node.Backend, err = openBackend(ctx, config, logger)
	if err != nil {
		return nil, err
	}
	if node.Backend != nil {
		notifiers = append(notifiers, node.Backend)
	}

	opts := []staking.Option{
		staking.WithAuthorizer(roles),
		staking.WithPauseGate(node.Switch),
		staking.WithNotifier(notifiers),
		staking.WithLogger(logger),
	}

	snap, found := db.Snapshot{}, false
	if node.Backend != nil {
		if snap, found, err = node.Backend.LoadSnapshot(ctx); err != nil {
			node.close()
			return nil, err
		}
	}

	// the vault holds everything the ledger owes: open principal plus the pool
	if err := vault.Hold(&params.InitialPool); err != nil {
		node.close()
		return nil, err
	}
	if found {
		node.Ledger, err = restore(ctx, node.Backend, vault, params, snap, opts)
		if err == nil {
			logger.Info().Int("records", len(snap.Records)).Msg("ledger restored from journal")
		}
	} else {
		node.Ledger, err = staking.New(params, vault, opts...)
	}
	if err != nil {
		node.close()
		return nil, err
	}
	if recorder != nil {
		recorder.Observe(node.Ledger.Stats(ctx))
	}

	node.API = api.New(node.Ledger, node.Backend, logger)
	if node.Registry != nil {
		node.API.EnableMetrics(node.Registry)
	}
	return node, nil
}

// restore rebuilds the ledger from snap and replays every journalled
// transfer against the genesis vault, so participant balances and custody
// pick up where the previous run stopped.
func restore(ctx context.Context, backend *db.Backend, vault *custody.Vault, params staking.Params, snap db.Snapshot, opts []staking.Option) (*staking.Engine, error) {
	if snap.Totals.Variant != params.Variant.String() || snap.Totals.Period != params.Period {
		return nil, fmt.Errorf("journal holds a %s ledger with period %d, config asks for %s with period %d",
			snap.Totals.Variant, snap.Totals.Period, params.Variant, params.Period)
	}
	ledger, err := staking.Restore(params, snap.Records, snap.Totals, vault, opts...)
	if err != nil {
		return nil, err
	}

	transfers, err := backend.QueryTransfers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range transfers {
		t := &transfers[i]
		if t.Inbound {
			err = vault.CreditTo(ctx, t.Account, &t.Amount)
		} else {
			err = vault.DebitFrom(ctx, t.Account, &t.Amount)
		}
		if err != nil {
			return nil, fmt.Errorf("replay journalled transfer %d for %s: %w", i, t.Account.Hex(), err)
		}
	}

	owed, overflow := new(uint256.Int).AddOverflow(&snap.Totals.TotalStaked, &snap.Totals.RewardPool)
	held := vault.Held()
	if overflow || !held.Eq(owed) {
		return nil, fmt.Errorf("journal custody %s does not cover staked %s plus pool %s",
			held.Dec(), snap.Totals.TotalStaked.Dec(), snap.Totals.RewardPool.Dec())
	}
	return ledger, nil
}

func (n *Node) close() {
	if n.Backend != nil {
		if err := n.Backend.Close(); err != nil {
			log.Warn().Err(err).Msg("close journal")
		}
	}
}

func (n *Node) Close() { n.close() }

func Run(configPath string) {
	config, err := LoadConfig(configPath)
	if err != nil {
		log.Fatal().Msgf("❌ Fatal error loading config: %s ", err)
	}

	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		log.Fatal().Msgf("❌ Fatal error parsing log level: %s ", err)
	}
	logger := log.Logger.Level(level)

	node, err := Build(context.Background(), config, logger)
	if err != nil {
		log.Fatal().Msgf("❌ Fatal error building staking service: %s ", err)
	}
	defer node.Close()

	logger.Info().
		Str("variant", node.Ledger.Variant().String()).
		Int("port", config.ServicePort).
		Msg("staking service started")
	err = node.API.Run(config.ServicePort)
	if err != nil {
		log.Fatal().Msgf("❌ Fatal error in api server: %s ", err)
	}
}
