package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courierbot/pkg/logger"
	"courierbot/pkg/models"
	"courierbot/storage"
)

type routeRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewRouteRepo(db *pgxpool.Pool, log logger.ILogger) storage.IRouteStorage {
	return &routeRepo{db: db, log: log}
}

const routeColumns = `id, courier_id, origin_address, origin_lat, origin_lng,
	total_distance_meters, total_duration_seconds, has_totals, started_at, ended_at, completed`

func scanRoute(row rowScanner) (*models.Route, error) {
	var rt models.Route
	err := row.Scan(
		&rt.ID, &rt.CourierID, &rt.OriginAddress, &rt.Origin.Lat, &rt.Origin.Lng,
		&rt.TotalDistanceMeters, &rt.TotalDurationSeconds, &rt.HasTotals, &rt.StartedAt, &rt.EndedAt, &rt.Completed,
	)
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *routeRepo) GetActive(ctx context.Context, courierID int64) (*models.Route, error) {
	return r.get(ctx, `SELECT `+routeColumns+` FROM delivery_routes WHERE courier_id = $1 AND ended_at IS NULL`, courierID)
}

func (r *routeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Route, error) {
	return r.get(ctx, `SELECT `+routeColumns+` FROM delivery_routes WHERE id = $1`, id)
}

func (r *routeRepo) get(ctx context.Context, query string, arg any) (*models.Route, error) {
	rt, err := scanRoute(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to get route", logger.Error(err))
		return nil, err
	}

	rt.Stops, err = routeStops(ctx, r.db, rt.ID)
	if err != nil {
		r.log.Error("failed to load route stops", logger.String("route_id", rt.ID.String()), logger.Error(err))
		return nil, err
	}
	return rt, nil
}
