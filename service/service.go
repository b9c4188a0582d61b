package service

import (
	"courierbot/config"
	"courierbot/pkg/logger"
	"courierbot/pkg/maps"
	"courierbot/pkg/metrics"
	"courierbot/storage"
)

type IServiceManager interface {
	Session() *SessionService
}

type service struct {
	sessionService *SessionService
}

func New(cfg config.Config, stg storage.IStorage, sessions storage.ISessionStorage, geocoder maps.Geocoder, distances maps.DistanceEstimator, log logger.ILogger, m *metrics.Metrics) IServiceManager {
	builder := NewRouteBuilder(geocoder, distances, int(cfg.DistanceConcurrency), log.With(logger.String("component", "route_builder")), m)
	ledger := NewDeliveryLedger(stg, log.With(logger.String("component", "ledger")), m)
	return &service{
		sessionService: NewSessionService(sessions, ledger, builder, geocoder, cfg.SessionIdleTimeout, log.With(logger.String("component", "session"))),
	}
}

func (s *service) Session() *SessionService {
	return s.sessionService
}
