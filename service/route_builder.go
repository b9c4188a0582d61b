package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"courierbot/pkg/logger"
	"courierbot/pkg/maps"
	"courierbot/pkg/metrics"
	"courierbot/pkg/models"
)

var (
	ErrInvalidOrigin = errors.New("origin address could not be resolved")
	ErrNoOrders      = errors.New("no orders to route")
	ErrBuildAborted  = errors.New("route build abandoned")
)

type BuildRequest struct {
	CourierID int64
	Origin    string
	Orders    []*models.Order
	// Abandoned is polled between steps; a true result stops the build.
	Abandoned func() bool
}

type BuildResult struct {
	Route *models.Route
	// QuotaExceeded is set once when any estimate hit the daily cap.
	QuotaExceeded   bool
	UnavailableLegs int
}

// RouteBuilder orders a courier's deliveries with a greedy nearest-neighbour walk.
type RouteBuilder struct {
	geocoder     maps.Geocoder
	distances    maps.DistanceEstimator
	geocodeLimit int
	log          logger.ILogger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewRouteBuilder(geocoder maps.Geocoder, distances maps.DistanceEstimator, geocodeLimit int, log logger.ILogger, m *metrics.Metrics) *RouteBuilder {
	if geocodeLimit < 1 {
		geocodeLimit = 1
	}
	return &RouteBuilder{
		geocoder:     geocoder,
		distances:    distances,
		geocodeLimit: geocodeLimit,
		log:          log,
		metrics:      m,
		now:          time.Now,
	}
}

// Busy reports whether distance lookups are currently queueing.
func (b *RouteBuilder) Busy() bool {
	if q, ok := b.distances.(interface{ Busy() bool }); ok {
		return q.Busy()
	}
	return false
}

type candidate struct {
	order  *models.Order
	coords models.Coordinates
}

func (b *RouteBuilder) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	started := b.now()
	defer func() { b.metrics.RouteBuilt(b.now().Sub(started)) }()

	origin, ok := b.geocoder.Geocode(ctx, req.Origin)
	if !ok {
		return nil, ErrInvalidOrigin
	}
	if len(req.Orders) == 0 {
		return nil, ErrNoOrders
	}
	if err := b.checkpoint(ctx, req); err != nil {
		return nil, err
	}

	located, unlocated := b.locate(ctx, req.Orders)
	if err := b.checkpoint(ctx, req); err != nil {
		return nil, err
	}

	res := &BuildResult{Route: &models.Route{
		ID:            uuid.New(),
		CourierID:     req.CourierID,
		OriginAddress: req.Origin,
		Origin:        origin,
		Stops:         make([]models.RouteStop, 0, len(req.Orders)),
		StartedAt:     started,
	}}
	route := res.Route

	current := origin
	knownLegs := 0
	for len(located) > 0 {
		if err := b.checkpoint(ctx, req); err != nil {
			return nil, err
		}

		var (
			best int
			leg  *models.Leg
		)
		if len(located) == 1 {
			leg = b.leg(ctx, current, located[0].coords, res)
		} else {
			best, leg = b.nearest(ctx, current, located, res)
		}

		next := located[best]
		route.Stops = append(route.Stops, models.RouteStop{Order: next.order, Located: true, Leg: leg})
		if leg != nil {
			knownLegs++
			route.TotalDistanceMeters += leg.DistanceMeters
			route.TotalDurationSeconds += leg.DurationSeconds
		}

		current = next.coords
		located = append(located[:best], located[best+1:]...)
	}

	for _, o := range unlocated {
		route.Stops = append(route.Stops, models.RouteStop{Order: o})
	}
	route.HasTotals = knownLegs > 0

	b.log.Info("route built",
		logger.String("route_id", route.ID.String()),
		logger.Int64("courier_id", req.CourierID),
		logger.Int("stops", len(route.Stops)),
		logger.Int("unlocated", len(unlocated)),
		logger.Int("total_distance_m", route.TotalDistanceMeters),
		logger.Bool("quota_exceeded", res.QuotaExceeded))
	return res, nil
}

// nearest picks the closest remaining candidate. Unknown distances rank as
// infinitely far and ties keep input order.
func (b *RouteBuilder) nearest(ctx context.Context, from models.Coordinates, cands []candidate, res *BuildResult) (int, *models.Leg) {
	best, bestDist := -1, math.MaxInt
	var bestLeg *models.Leg
	for i, c := range cands {
		leg := b.leg(ctx, from, c.coords, res)
		dist := math.MaxInt
		if leg != nil {
			dist = leg.DistanceMeters
		}
		if best == -1 || dist < bestDist {
			best, bestDist, bestLeg = i, dist, leg
		}
	}
	return best, bestLeg
}

func (b *RouteBuilder) leg(ctx context.Context, from, to models.Coordinates, res *BuildResult) *models.Leg {
	leg, err := b.distances.Estimate(ctx, from, to)
	if err != nil {
		if errors.Is(err, maps.ErrQuotaExceeded) {
			res.QuotaExceeded = true
		}
		res.UnavailableLegs++
		return nil
	}
	return &leg
}

// locate geocodes every order, at most geocodeLimit at a time, and keeps input order.
func (b *RouteBuilder) locate(ctx context.Context, orders []*models.Order) ([]candidate, []*models.Order) {
	coords := make([]*models.Coordinates, len(orders))

	var g errgroup.Group
	g.SetLimit(b.geocodeLimit)
	for i, o := range orders {
		g.Go(func() error {
			if c, ok := b.geocoder.Geocode(ctx, o.Address); ok {
				coords[i] = &c
			}
			return nil
		})
	}
	_ = g.Wait()

	var (
		located   []candidate
		unlocated []*models.Order
	)
	for i, o := range orders {
		if coords[i] == nil {
			unlocated = append(unlocated, o)
			continue
		}
		located = append(located, candidate{order: o, coords: *coords[i]})
	}
	return located, unlocated
}

func (b *RouteBuilder) checkpoint(ctx context.Context, req BuildRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.Abandoned != nil && req.Abandoned() {
		return ErrBuildAborted
	}
	return nil
}
