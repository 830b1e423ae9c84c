package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidBid        = fmt.Errorf("%w: bid must exceed the current price", ErrValidation)
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotPurchasable    = errors.New("listing is not purchasable")
	ErrPersistence       = errors.New("persistence failure")
	ErrInventoryFull     = errors.New("inventory full")
	ErrNotSeller         = errors.New("only the seller may cancel a listing")
	ErrHasBids           = errors.New("listing has a standing bid")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrClosed            = errors.New("closed")
	ErrLockHeld          = errors.New("lock held by another holder")
)
