package staking

import "errors"

var (
	ErrInvalidArgument  = errors.New("staking: invalid argument")
	ErrNotFound         = errors.New("staking: stake not found")
	ErrAlreadyClosed    = errors.New("staking: stake already closed")
	ErrNothingToClaim   = errors.New("staking: nothing to claim")
	ErrPoolInsufficient = errors.New("staking: reward pool insufficient")
	ErrUnauthorized     = errors.New("staking: unauthorized")
	ErrPaused           = errors.New("staking: paused")
	ErrNotPaused        = errors.New("staking: not paused")
	ErrUnsupported      = errors.New("staking: operation not supported by variant")
)
