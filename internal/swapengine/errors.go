package swapengine

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrSlippageExceeded = errors.New("slippage exceeded")
	ErrVenueCall        = errors.New("venue call failed")
	ErrReentrant        = errors.New("reentrant execution")
	ErrPaused           = errors.New("execution paused")
	// ErrDeadlineExceeded is always delivered inside a *router.ValidationError.
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)

// SlippageError reports a hop that delivered less than its floor.
type SlippageError struct {
	Hop    int
	Min    *big.Int
	Actual *big.Int
}

func (e *SlippageError) Error() string {
	return fmt.Sprintf("hop %d received %s, minimum %s", e.Hop, e.Actual, e.Min)
}

func (e *SlippageError) Unwrap() error { return ErrSlippageExceeded }

// VenueCallError wraps a failure raised by, or detected around, a venue's Swap.
type VenueCallError struct {
	VenueID string
	Hop     int
	Err     error
}

func (e *VenueCallError) Error() string {
	return fmt.Sprintf("venue %s (hop %d): %v", e.VenueID, e.Hop, e.Err)
}

func (e *VenueCallError) Unwrap() []error { return []error{ErrVenueCall, e.Err} }
