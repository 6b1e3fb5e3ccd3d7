package staking

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Custodian moves the staked asset between participants and the engine.
// Both calls may re-enter the engine with the context they are given.
type Custodian interface {
	DebitFrom(ctx context.Context, who common.Address, amount *uint256.Int) error
	CreditTo(ctx context.Context, who common.Address, amount *uint256.Int) error
}

// Role names a permission checked by an Authorizer.
type Role string

const RoleAdmin Role = "admin"

type Authorizer interface {
	IsAuthorized(who common.Address, role Role) bool
}

type PauseGate interface {
	IsPaused() bool
}

// Pauser is a PauseGate that can be toggled through the engine.
type Pauser interface {
	PauseGate
	SetPaused(paused bool)
}

type denyAll struct{}

func (denyAll) IsAuthorized(common.Address, Role) bool { return false }

type neverPaused struct{}

func (neverPaused) IsPaused() bool { return false }
