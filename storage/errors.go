package storage

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrAccountExists    = errors.New("account already exists")
	ErrCapacityExceeded = errors.New("account capacity exceeded")
	ErrInvalidCapacity  = errors.New("invalid account capacity")
)

// CapacityError reports an account write that does not fit the account's
// allocated region.
type CapacityError struct {
	Required int
	Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("account capacity exceeded: need %d bytes, have %d", e.Required, e.Capacity)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}
