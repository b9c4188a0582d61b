package models

import "strconv"

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String renders "lat,lng", the form accepted by the distance matrix API.
func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(c.Lng, 'f', 6, 64)
}

// Leg is the travel cost between two consecutive points of a route.
type Leg struct {
	DistanceMeters  int `json:"distance_meters"`
	DurationSeconds int `json:"duration_seconds"`
}

func (l Leg) KM() float64 {
	return float64(l.DistanceMeters) / 1000
}

func (l Leg) Minutes() float64 {
	return float64(l.DurationSeconds) / 60
}
