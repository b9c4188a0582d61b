package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"courierbot/pkg/logger"
	"courierbot/pkg/models"
	"courierbot/storage"
)

const uniqueViolation = "23505"

type ledgerRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewLedgerRepo(db *pgxpool.Pool, log logger.ILogger) storage.ILedgerStorage {
	return &ledgerRepo{db: db, log: log}
}

// inTx commits when fn succeeds and rolls back otherwise.
func (r *ledgerRepo) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ledgerRepo) StartRoute(ctx context.Context, route *models.Route) error {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO delivery_routes (id, courier_id, origin_address, origin_lat, origin_lng,
				total_distance_meters, total_duration_seconds, has_totals, started_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			route.ID, route.CourierID, route.OriginAddress, route.Origin.Lat, route.Origin.Lng,
			route.TotalDistanceMeters, route.TotalDurationSeconds, route.HasTotals, route.StartedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return storage.ErrRouteAlreadyActive
			}
			return err
		}

		for i, stop := range route.Stops {
			var meters, seconds *int
			if stop.Leg != nil {
				meters, seconds = &stop.Leg.DistanceMeters, &stop.Leg.DurationSeconds
			}
			res, err := tx.Exec(ctx, `
				UPDATE orders
				SET route_id = $1, sequence_index = $2, located = $3,
				    leg_distance_meters = $4, leg_duration_seconds = $5
				WHERE id = $6 AND courier_id = $7 AND status = 'assigned' AND route_id IS NULL`,
				route.ID, i, stop.Located, meters, seconds, stop.Order.ID, route.CourierID,
			)
			if err != nil {
				return err
			}
			if res.RowsAffected() == 0 {
				return fmt.Errorf("order %d: %w", stop.Order.ID, storage.ErrOrderNotAssigned)
			}
		}
		return nil
	})
	if err != nil {
		r.log.Error("failed to start route",
			logger.String("route_id", route.ID.String()),
			logger.Int64("courier_id", route.CourierID),
			logger.Error(err))
		return err
	}

	for i := range route.Stops {
		idx := i
		route.Stops[i].Order.RouteID = &route.ID
		route.Stops[i].Order.SequenceIndex = &idx
	}
	return nil
}

func (r *ledgerRepo) ResolveOrder(ctx context.Context, p storage.ResolveParams) error {
	received := p.Outcome == models.OutcomeDelivered

	var reason *string
	if p.Reason != "" {
		reason = &p.Reason
	}

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var saleID, dailyOrderID int64
		err := tx.QueryRow(ctx, `
			UPDATE orders
			SET status = $1, resolved_at = $2, failure_reason = $3, received_cents = $4
			WHERE id = $5 AND courier_id = $6 AND status = 'assigned'
			RETURNING sale_id, daily_order_id`,
			string(p.Outcome.Status()), p.At, reason, p.ReceivedCents, p.OrderID, p.CourierID,
		).Scan(&saleID, &dailyOrderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return storage.ErrOrderNotAssigned
			}
			return err
		}

		var receivedAt *time.Time
		if received {
			receivedAt = &p.At
		}
		res, err := tx.Exec(ctx, `UPDATE sales SET received = $1, received_at = $2 WHERE id = $3`, received, receivedAt, saleID)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return fmt.Errorf("sale %d: %w", saleID, storage.ErrNotFound)
		}

		res, err = tx.Exec(ctx, `UPDATE daily_orders SET status = $1, received = $2 WHERE id = $3`,
			p.Outcome.DailyOrderStatus(), received, dailyOrderID)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return fmt.Errorf("daily order %d: %w", dailyOrderID, storage.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		r.log.Error("failed to resolve order",
			logger.Int64("order_id", p.OrderID),
			logger.String("outcome", string(p.Outcome)),
			logger.Error(err))
		return err
	}
	return nil
}

func (r *ledgerRepo) FinalizeRoute(ctx context.Context, routeID uuid.UUID, endedAt time.Time) (*models.RouteSummary, error) {
	var summary *models.RouteSummary
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		route, err := scanRoute(tx.QueryRow(ctx, `SELECT `+routeColumns+` FROM delivery_routes WHERE id = $1 FOR UPDATE`, routeID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return storage.ErrNotFound
			}
			return err
		}
		if route.EndedAt != nil {
			return storage.ErrRouteClosed
		}

		route.Stops, err = routeStops(ctx, tx, routeID)
		if err != nil {
			return err
		}
		if pending := route.Pending(); len(pending) > 0 {
			ids := make([]int64, 0, len(pending))
			for _, o := range pending {
				ids = append(ids, o.ID)
			}
			return &storage.PendingOrdersError{OrderIDs: ids}
		}

		summary = models.Summarize(route, endedAt)
		_, err = tx.Exec(ctx, `
			UPDATE delivery_routes
			SET ended_at = $2, completed = TRUE, elapsed_seconds = $3, avg_order_seconds = $4,
			    delivered_count = $5, failed_count = $6
			WHERE id = $1`,
			routeID, endedAt, int(summary.Elapsed.Seconds()), int(summary.AveragePerOrder.Seconds()),
			summary.Delivered, summary.Failed,
		)
		return err
	})
	if err != nil {
		var pending *storage.PendingOrdersError
		if !errors.As(err, &pending) && !errors.Is(err, storage.ErrRouteClosed) {
			r.log.Error("failed to finalize route", logger.String("route_id", routeID.String()), logger.Error(err))
		}
		return nil, err
	}
	return summary, nil
}

func (r *ledgerRepo) CancelRoute(ctx context.Context, routeID uuid.UUID, endedAt time.Time) error {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		res, err := tx.Exec(ctx, `
			UPDATE delivery_routes SET ended_at = $2, completed = FALSE
			WHERE id = $1 AND ended_at IS NULL`, routeID, endedAt)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return storage.ErrRouteClosed
		}

		// open orders go back to the courier's unrouted set
		_, err = tx.Exec(ctx, `
			UPDATE orders
			SET route_id = NULL, sequence_index = NULL, located = NULL,
			    leg_distance_meters = NULL, leg_duration_seconds = NULL
			WHERE route_id = $1 AND status = 'assigned'`, routeID)
		return err
	})
	if err != nil && !errors.Is(err, storage.ErrRouteClosed) {
		r.log.Error("failed to cancel route", logger.String("route_id", routeID.String()), logger.Error(err))
	}
	return err
}
