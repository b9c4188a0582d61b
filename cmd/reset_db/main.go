package main

import (
	"context"

	"courierbot/config"
	"courierbot/pkg/logger"
	"courierbot/storage/postgres"
)

// Clears route history and puts routed orders back to assigned. Couriers,
// sales and daily orders are left alone.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)
	ctx := context.Background()

	pg, err := postgres.New(ctx, cfg, log)
	if err != nil {
		panic(err)
	}
	defer pg.Close()

	tx, err := pg.GetPool().Begin(ctx)
	if err != nil {
		panic(err)
	}
	defer tx.Rollback(ctx)

	stmts := []string{
		`UPDATE orders SET route_id = NULL, sequence_index = NULL, located = NULL,
			leg_distance_meters = NULL, leg_duration_seconds = NULL
		 WHERE route_id IS NOT NULL`,
		`DELETE FROM delivery_routes`,
	}
	for _, q := range stmts {
		if _, err := tx.Exec(ctx, q); err != nil {
			log.Error("Failed to reset routes", logger.Error(err))
			return
		}
	}
	if err := tx.Commit(ctx); err != nil {
		log.Error("Failed to commit reset", logger.Error(err))
		return
	}
	log.Info("Successfully cleared delivery routes.")
}
