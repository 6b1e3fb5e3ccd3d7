package server

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/generativelabs/stakeledger/internal/db"
	"github.com/generativelabs/stakeledger/internal/staking"
)

type Config struct {
	Staking struct {
		// Variant selects the claim algorithm: simple or periodic
		Variant string `mapstructure:"variant"`
		// Period defines the accrual unit in seconds
		Period uint64 `mapstructure:"period"`
		// Rate defines the reward per period in units of 1/10000
		Rate uint64 `mapstructure:"rate"`
		// InitialPool defines the reward reserve present at genesis
		InitialPool string `mapstructure:"initial-pool"`
	} `mapstructure:"staking"`

	// Admins lists the accounts allowed to run admin operations
	Admins []string `mapstructure:"admins"`
	// GenesisBalances seeds the in-memory custody vault
	GenesisBalances map[string]string `mapstructure:"genesis-balances"`

	Mysql db.Config `mapstructure:"mysql"`
	// SqlitePath selects an embedded journal instead of mysql
	SqlitePath string `mapstructure:"sqlite-path"`

	Metrics  bool   `mapstructure:"metrics"`
	LogLevel string `mapstructure:"log-level"`

	ServicePort int `mapstructure:"service-port"`
}

// Params converts the staking section into engine parameters.
func (c Config) Params() (staking.Params, error) {
	variant, err := staking.ParseVariant(c.Staking.Variant)
	if err != nil {
		return staking.Params{}, err
	}
	p := staking.Params{
		Variant: variant,
		Period:  c.Staking.Period,
		Rate:    c.Staking.Rate,
	}
	if c.Staking.InitialPool != "" {
		if err := p.InitialPool.SetFromDecimal(c.Staking.InitialPool); err != nil {
			return p, fmt.Errorf("staking.initial-pool: %w", err)
		}
	}
	if p.Period == 0 {
		return p, fmt.Errorf("staking.period must be positive")
	}
	if p.Rate == 0 {
		return p, fmt.Errorf("staking.rate must be positive")
	}
	return p, nil
}

// Balances parses the genesis balances section.
func (c Config) Balances() (map[common.Address]*uint256.Int, error) {
	out := make(map[common.Address]*uint256.Int, len(c.GenesisBalances))
	for addr, amount := range c.GenesisBalances {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("genesis-balances: invalid address %q", addr)
		}
		v, err := uint256.FromDecimal(amount)
		if err != nil {
			return nil, fmt.Errorf("genesis-balances: %s: %w", addr, err)
		}
		out[common.HexToAddress(addr)] = v
	}
	return out, nil
}

func (c Config) Validate() error {
	if _, err := c.Params(); err != nil {
		return err
	}
	if _, err := c.Balances(); err != nil {
		return err
	}
	if c.ServicePort <= 0 || c.ServicePort > 65535 {
		return fmt.Errorf("service-port %d out of range", c.ServicePort)
	}
	return nil
}
