package storage

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrOrderNotAssigned   = errors.New("order is not assigned to this courier or already resolved")
	ErrRouteAlreadyActive = errors.New("courier already has an active route")
	ErrRouteClosed        = errors.New("route already ended")
)

// PendingOrdersError refuses a finalization while orders are still open.
type PendingOrdersError struct {
	OrderIDs []int64
}

func (e *PendingOrdersError) Error() string {
	return fmt.Sprintf("route has %d pending orders", len(e.OrderIDs))
}
