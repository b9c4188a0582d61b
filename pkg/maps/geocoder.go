package maps

import (
	"context"
	"strings"
	"time"

	gmaps "googlemaps.github.io/maps"

	"courierbot/pkg/logger"
	"courierbot/pkg/metrics"
	"courierbot/pkg/models"
)

// Geocoder resolves a free-text address. ok is false when the address could
// not be resolved for any reason; errors never reach the caller.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Coordinates, bool)
}

// GeocodeAPI is the part of *maps.Client used for geocoding.
type GeocodeAPI interface {
	Geocode(ctx context.Context, r *gmaps.GeocodingRequest) ([]gmaps.GeocodingResult, error)
}

type GoogleGeocoder struct {
	api      GeocodeAPI
	locality string
	region   string
	timeout  time.Duration
	log      logger.ILogger
	metrics  *metrics.Metrics
}

func NewGoogleGeocoder(api GeocodeAPI, locality string, timeout time.Duration, log logger.ILogger, m *metrics.Metrics) *GoogleGeocoder {
	return &GoogleGeocoder{
		api:      api,
		locality: locality,
		region:   "br",
		timeout:  timeout,
		log:      log,
		metrics:  m,
	}
}

func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) (models.Coordinates, bool) {
	address = strings.TrimSpace(address)
	if address == "" {
		return models.Coordinates{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	results, err := g.api.Geocode(ctx, &gmaps.GeocodingRequest{
		Address: g.withLocality(address),
		Region:  g.region,
	})
	if err != nil {
		g.log.Warning("geocode failed", logger.String("address", address), logger.Error(err))
		g.metrics.GeocodeCall(false)
		return models.Coordinates{}, false
	}
	if len(results) == 0 {
		g.log.Debug("geocode returned no results", logger.String("address", address))
		g.metrics.GeocodeCall(false)
		return models.Coordinates{}, false
	}

	g.metrics.GeocodeCall(true)
	loc := results[0].Geometry.Location
	return models.Coordinates{Lat: loc.Lat, Lng: loc.Lng}, true
}

func (g *GoogleGeocoder) withLocality(address string) string {
	if g.locality == "" || strings.Contains(strings.ToLower(address), strings.ToLower(g.locality)) {
		return address
	}
	return address + ", " + g.locality
}
