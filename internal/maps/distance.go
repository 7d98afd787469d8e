// README: Distance providers; road distance is an external input to dispatch, never computed by business logic.
package maps

import (
	"context"
	"fmt"
	"math"

	"googlemaps.github.io/maps"

	"leafline/internal/types"
)

// DistanceProvider returns the delivery distance in kilometres between two points.
type DistanceProvider interface {
	DistanceKm(ctx context.Context, origin, destination types.Point) (float64, error)
}

// RouteService resolves driving distance via the Google Maps Directions API.
type RouteService struct {
	client *maps.Client
}

func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

func (s *RouteService) DistanceKm(ctx context.Context, origin, destination types.Point) (float64, error) {
	r := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%f,%f", destination.Lat, destination.Lng),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, fmt.Errorf("no route found")
	}

	var meters int
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
	}
	return float64(meters) / 1000.0, nil
}

// roadFactor inflates straight-line distance to approximate street routing.
const roadFactor = 1.3

// HaversineProvider estimates distance as great-circle distance times a road
// factor. Used when no Maps API key is configured.
type HaversineProvider struct{}

func (HaversineProvider) DistanceKm(_ context.Context, origin, destination types.Point) (float64, error) {
	return HaversineKm(origin, destination) * roadFactor, nil
}

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func HaversineKm(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// KmToMiles converts kilometres to statute miles for mileage pay.
func KmToMiles(km float64) float64 {
	return km * 0.621371
}
