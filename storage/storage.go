package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"courierbot/pkg/models"
)

type IStorage interface {
	Courier() ICourierStorage
	Order() IOrderStorage
	Route() IRouteStorage
	Ledger() ILedgerStorage
	Close()
	GetPool() *pgxpool.Pool
}

type ICourierStorage interface {
	GetByChatID(ctx context.Context, chatID int64) (*models.Courier, error)
	GetByID(ctx context.Context, id int64) (*models.Courier, error)
}

type IOrderStorage interface {
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	// GetAssigned lists the courier's assigned orders that are not on an open route.
	GetAssigned(ctx context.Context, courierID int64) ([]*models.Order, error)
	GetByRoute(ctx context.Context, routeID uuid.UUID) ([]*models.Order, error)
	UpdateAddress(ctx context.Context, orderID, courierID int64, address string) error
}

type IRouteStorage interface {
	// GetActive returns nil, nil when the courier has no open route.
	GetActive(ctx context.Context, courierID int64) (*models.Route, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Route, error)
}

// ILedgerStorage groups the multi-table writes. Each method runs in its own
// transaction and leaves nothing behind when it fails.
type ILedgerStorage interface {
	StartRoute(ctx context.Context, route *models.Route) error
	ResolveOrder(ctx context.Context, p ResolveParams) error
	FinalizeRoute(ctx context.Context, routeID uuid.UUID, endedAt time.Time) (*models.RouteSummary, error)
	CancelRoute(ctx context.Context, routeID uuid.UUID, endedAt time.Time) error
}

type ResolveParams struct {
	OrderID       int64
	CourierID     int64
	Outcome       models.Outcome
	ReceivedCents *int64
	Reason        string
	At            time.Time
}

type ISessionStorage interface {
	// Get returns nil, nil when the courier has no stored session.
	Get(ctx context.Context, courierID int64) (*models.CourierSession, error)
	Save(ctx context.Context, session *models.CourierSession) error
	Delete(ctx context.Context, courierID int64) error
}
