// Package guard provides the default authorization and pause collaborators
// for the staking engine.
package guard

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"github.com/generativelabs/stakeledger/internal/staking"
)

// Roles is a static role table.
type Roles struct {
	mu      sync.RWMutex
	members map[staking.Role]map[common.Address]struct{}
}

func NewRoles() *Roles {
	return &Roles{members: make(map[staking.Role]map[common.Address]struct{})}
}

// NewAdmins builds a role table granting RoleAdmin to every hex address in
// admins.
func NewAdmins(admins []string) (*Roles, error) {
	r := NewRoles()
	for _, a := range admins {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("guard: invalid admin address %q", a)
		}
		r.Grant(common.HexToAddress(a), staking.RoleAdmin)
	}
	return r, nil
}

func (r *Roles) Grant(who common.Address, role staking.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.members[role]
	if !ok {
		set = make(map[common.Address]struct{})
		r.members[role] = set
	}
	set[who] = struct{}{}
}

func (r *Roles) Revoke(who common.Address, role staking.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members[role], who)
}

func (r *Roles) IsAuthorized(who common.Address, role staking.Role) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[role][who]
	return ok
}

// Switch is a process-wide pause flag.
type Switch struct {
	paused atomic.Bool
}

func (s *Switch) IsPaused() bool { return s.paused.Load() }

func (s *Switch) SetPaused(paused bool) { s.paused.Store(paused) }
