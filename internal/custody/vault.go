// Package custody holds participant balances of the staked asset and the
// amount the staking engine has taken into custody.
package custody

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientFunds = errors.New("custody: insufficient funds")
	ErrInvalidAmount     = errors.New("custody: amount must be positive")
	ErrOverflow          = errors.New("custody: balance overflow")
)

// Vault is an in-memory custodian. DebitFrom moves funds from a participant
// into the vault, CreditTo moves them back out.
type Vault struct {
	mu       sync.Mutex
	balances map[common.Address]*uint256.Int
	held     uint256.Int
}

func NewVault() *Vault {
	return &Vault{balances: make(map[common.Address]*uint256.Int)}
}

// Deposit adds amount to who's balance from outside the system.
func (v *Vault) Deposit(who common.Address, amount *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	bal := v.balance(who)
	sum, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return ErrOverflow
	}
	bal.Set(sum)
	return nil
}

// Hold adds amount to custody without debiting a participant. It seeds the
// vault for ledger state carried over from a previous run.
func (v *Vault) Hold(amount *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	held, overflow := new(uint256.Int).AddOverflow(&v.held, amount)
	if overflow {
		return ErrOverflow
	}
	v.held = *held
	return nil
}

func (v *Vault) BalanceOf(who common.Address) uint256.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if bal, ok := v.balances[who]; ok {
		return *bal
	}
	return uint256.Int{}
}

// Held returns the amount currently in custody.
func (v *Vault) Held() uint256.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.held
}

func (v *Vault) DebitFrom(_ context.Context, who common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	bal := v.balance(who)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, who.Hex(), bal.Dec(), amount.Dec())
	}
	held, overflow := new(uint256.Int).AddOverflow(&v.held, amount)
	if overflow {
		return ErrOverflow
	}
	bal.Sub(bal, amount)
	v.held = *held
	return nil
}

func (v *Vault) CreditTo(_ context.Context, who common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.held.Lt(amount) {
		return fmt.Errorf("%w: vault holds %s, needs %s", ErrInsufficientFunds, v.held.Dec(), amount.Dec())
	}
	bal := v.balance(who)
	if _, overflow := new(uint256.Int).AddOverflow(bal, amount); overflow {
		return ErrOverflow
	}
	v.held.Sub(&v.held, amount)
	bal.Add(bal, amount)
	return nil
}

func (v *Vault) balance(who common.Address) *uint256.Int {
	bal, ok := v.balances[who]
	if !ok {
		bal = new(uint256.Int)
		v.balances[who] = bal
	}
	return bal
}
