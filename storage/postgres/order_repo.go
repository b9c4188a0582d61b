package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courierbot/pkg/logger"
	"courierbot/pkg/models"
	"courierbot/storage"
)

type orderRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewOrderRepo(db *pgxpool.Pool, log logger.ILogger) storage.IOrderStorage {
	return &orderRepo{db: db, log: log}
}

const orderSelect = `
	SELECT o.id, o.sale_id, o.daily_order_id, o.courier_id, o.route_id, o.client_reference, o.address,
	       s.payment_method, s.total_cents, s.paid_cents, o.status, o.sequence_index,
	       o.assigned_at, o.resolved_at, o.failure_reason, o.created_at,
	       COALESCE(o.located, FALSE), o.leg_distance_meters, o.leg_duration_seconds
	FROM orders o
	JOIN sales s ON s.id = o.sale_id`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanStop reads one orderSelect row together with its route leg.
func scanStop(row rowScanner) (models.RouteStop, error) {
	var (
		o               models.Order
		payment, status string
		located         bool
		meters, seconds *int
	)
	err := row.Scan(
		&o.ID, &o.SaleID, &o.DailyOrderID, &o.CourierID, &o.RouteID, &o.ClientReference, &o.Address,
		&payment, &o.TotalCents, &o.PaidCents, &status, &o.SequenceIndex,
		&o.AssignedAt, &o.ResolvedAt, &o.FailureReason, &o.CreatedAt,
		&located, &meters, &seconds,
	)
	if err != nil {
		return models.RouteStop{}, err
	}
	o.PaymentMethod = models.PaymentMethod(payment)
	o.Status = models.OrderStatus(status)
	if err := o.Status.Validate(); err != nil {
		return models.RouteStop{}, fmt.Errorf("order %d: %w", o.ID, err)
	}

	stop := models.RouteStop{Order: &o, Located: located}
	if meters != nil && seconds != nil {
		stop.Leg = &models.Leg{DistanceMeters: *meters, DurationSeconds: *seconds}
	}
	return stop, nil
}

func collectStops(rows pgx.Rows) ([]models.RouteStop, error) {
	defer rows.Close()

	var stops []models.RouteStop
	for rows.Next() {
		stop, err := scanStop(rows)
		if err != nil {
			return nil, err
		}
		stops = append(stops, stop)
	}
	return stops, rows.Err()
}

func ordersOf(stops []models.RouteStop) []*models.Order {
	orders := make([]*models.Order, 0, len(stops))
	for _, s := range stops {
		orders = append(orders, s.Order)
	}
	return orders
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	stop, err := scanStop(r.db.QueryRow(ctx, orderSelect+` WHERE o.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to get order", logger.Int64("order_id", id), logger.Error(err))
		return nil, err
	}
	return stop.Order, nil
}

func (r *orderRepo) GetAssigned(ctx context.Context, courierID int64) ([]*models.Order, error) {
	query := orderSelect + `
		JOIN daily_orders d ON d.id = o.daily_order_id
		WHERE o.courier_id = $1 AND o.status = 'assigned' AND o.route_id IS NULL AND d.valid
		ORDER BY o.id`
	rows, err := r.db.Query(ctx, query, courierID)
	if err != nil {
		r.log.Error("failed to list assigned orders", logger.Int64("courier_id", courierID), logger.Error(err))
		return nil, err
	}
	stops, err := collectStops(rows)
	if err != nil {
		return nil, err
	}
	return ordersOf(stops), nil
}

func (r *orderRepo) GetByRoute(ctx context.Context, routeID uuid.UUID) ([]*models.Order, error) {
	stops, err := routeStops(ctx, r.db, routeID)
	if err != nil {
		r.log.Error("failed to list route orders", logger.String("route_id", routeID.String()), logger.Error(err))
		return nil, err
	}
	return ordersOf(stops), nil
}

// UpdateAddress only touches assigned orders that are not locked into an open route.
func (r *orderRepo) UpdateAddress(ctx context.Context, orderID, courierID int64, address string) error {
	res, err := r.db.Exec(ctx, `
		UPDATE orders SET address = $1
		WHERE id = $2 AND courier_id = $3 AND status = 'assigned' AND route_id IS NULL`,
		address, orderID, courierID,
	)
	if err != nil {
		r.log.Error("failed to update order address", logger.Int64("order_id", orderID), logger.Error(err))
		return err
	}
	if res.RowsAffected() == 0 {
		return storage.ErrOrderNotAssigned
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func routeStops(ctx context.Context, q querier, routeID uuid.UUID) ([]models.RouteStop, error) {
	rows, err := q.Query(ctx, orderSelect+` WHERE o.route_id = $1 ORDER BY o.sequence_index`, routeID)
	if err != nil {
		return nil, err
	}
	return collectStops(rows)
}
