package maps

import (
	gmaps "googlemaps.github.io/maps"

	"courierbot/config"
	"courierbot/pkg/logger"
	"courierbot/pkg/metrics"
	"courierbot/pkg/retry"
)

type Clients struct {
	Geocoder  *GoogleGeocoder
	Distances *GoogleDistanceEstimator
	Quota     *Quota
}

// New builds the geocoder and the distance estimator on one Google Maps client.
func New(cfg config.Config, log logger.ILogger, m *metrics.Metrics) (*Clients, error) {
	client, err := gmaps.NewClient(gmaps.WithAPIKey(cfg.GoogleMapsAPIKey))
	if err != nil {
		log.Error("failed to create google maps client", logger.Error(err))
		return nil, err
	}

	quota := NewQuota(cfg.DistanceDailyQuota, cfg.Location())
	policy := retry.Policy{
		MaxAttempts:    cfg.RetryAttempts,
		Backoff:        retry.Linear(cfg.RetryStep),
		AttemptTimeout: cfg.ExternalCallTimeout,
	}

	return &Clients{
		Geocoder:  NewGoogleGeocoder(client, cfg.ReferenceLocality, cfg.ExternalCallTimeout, log.With(logger.String("component", "geocoder")), m),
		Distances: NewGoogleDistanceEstimator(client, quota, cfg.DistanceConcurrency, policy, log.With(logger.String("component", "distance")), m),
		Quota:     quota,
	}, nil
}
