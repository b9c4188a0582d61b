package maps

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	gmaps "googlemaps.github.io/maps"

	"courierbot/pkg/logger"
	"courierbot/pkg/metrics"
	"courierbot/pkg/models"
	"courierbot/pkg/retry"
)

var (
	// ErrDistanceUnavailable means no estimate could be produced. Callers rank
	// such a destination as infinitely far.
	ErrDistanceUnavailable = errors.New("distance unavailable")
	// ErrQuotaExceeded is returned without any network call once the daily
	// quota is spent. It matches ErrDistanceUnavailable.
	ErrQuotaExceeded = fmt.Errorf("%w: daily quota exceeded", ErrDistanceUnavailable)
)

type DistanceEstimator interface {
	Estimate(ctx context.Context, from, to models.Coordinates) (models.Leg, error)
}

// MatrixAPI is the part of *maps.Client used for distance lookups.
type MatrixAPI interface {
	DistanceMatrix(ctx context.Context, r *gmaps.DistanceMatrixRequest) (*gmaps.DistanceMatrixResponse, error)
}

type GoogleDistanceEstimator struct {
	api      MatrixAPI
	quota    *Quota
	sem      *semaphore.Weighted
	capacity int64
	queued   atomic.Int64
	policy   retry.Policy
	log      logger.ILogger
	metrics  *metrics.Metrics
}

func NewGoogleDistanceEstimator(api MatrixAPI, quota *Quota, concurrency int64, policy retry.Policy, log logger.ILogger, m *metrics.Metrics) *GoogleDistanceEstimator {
	if concurrency < 1 {
		concurrency = 1
	}
	if policy.Retryable == nil {
		policy.Retryable = func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}
	}
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, err error, wait time.Duration) {
			log.Debug("distance lookup failed, retrying",
				logger.Int("attempt", attempt),
				logger.Duration("wait", wait),
				logger.Error(err))
		}
	}
	return &GoogleDistanceEstimator{
		api:      api,
		quota:    quota,
		sem:      semaphore.NewWeighted(concurrency),
		capacity: concurrency,
		policy:   policy,
		log:      log,
		metrics:  m,
	}
}

// Busy reports whether a new call would have to wait for a queue slot.
func (e *GoogleDistanceEstimator) Busy() bool {
	return e.queued.Load() >= e.capacity
}

// Estimate spends one quota unit only once a queue slot is held and ctx is
// still live, so calls that never reach the network cost nothing.
func (e *GoogleDistanceEstimator) Estimate(ctx context.Context, from, to models.Coordinates) (models.Leg, error) {
	if e.quota.Exhausted() {
		e.metrics.DistanceCall("quota_exceeded")
		return models.Leg{}, ErrQuotaExceeded
	}

	e.queued.Add(1)
	defer e.queued.Add(-1)

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return models.Leg{}, fmt.Errorf("%w: %w", ErrDistanceUnavailable, err)
	}
	defer e.sem.Release(1)

	if err := ctx.Err(); err != nil {
		return models.Leg{}, fmt.Errorf("%w: %w", ErrDistanceUnavailable, err)
	}
	if !e.quota.TryAcquire() {
		e.metrics.DistanceCall("quota_exceeded")
		return models.Leg{}, ErrQuotaExceeded
	}
	e.metrics.QuotaUsed(e.quota.Used())

	var leg models.Leg
	err := e.policy.Do(ctx, func(ctx context.Context) error {
		l, err := e.lookup(ctx, from, to)
		if err != nil {
			return err
		}
		leg = l
		return nil
	})
	if err != nil {
		e.log.Warning("distance unavailable",
			logger.String("from", from.String()),
			logger.String("to", to.String()),
			logger.Error(err))
		e.metrics.DistanceCall("unavailable")
		return models.Leg{}, fmt.Errorf("%w: %w", ErrDistanceUnavailable, err)
	}

	e.metrics.DistanceCall("ok")
	return leg, nil
}

func (e *GoogleDistanceEstimator) lookup(ctx context.Context, from, to models.Coordinates) (models.Leg, error) {
	resp, err := e.api.DistanceMatrix(ctx, &gmaps.DistanceMatrixRequest{
		Origins:      []string{from.String()},
		Destinations: []string{to.String()},
		Mode:         gmaps.TravelModeDriving,
		Units:        gmaps.UnitsMetric,
	})
	if err != nil {
		return models.Leg{}, err
	}
	if resp == nil || len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return models.Leg{}, errors.New("empty distance matrix")
	}

	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return models.Leg{}, fmt.Errorf("distance matrix element status %s", el.Status)
	}
	return models.Leg{
		DistanceMeters:  el.Distance.Meters,
		DurationSeconds: int(el.Duration.Seconds()),
	}, nil
}
