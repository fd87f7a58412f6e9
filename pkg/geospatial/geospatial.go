package geospatial

import (
	"encoding/json"
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// CoordinatePrecision is the number of decimal places coordinates are
// rounded to before fingerprinting. Four decimals is roughly 11 m at the
// equator, below the resolution of any restoration site boundary.
const CoordinatePrecision = 4

// AreaPrecision is the number of decimal places for area in hectares.
const AreaPrecision = 2

// ValidateCoordinates checks latitude/longitude ranges
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return errors.New("coordinates must be numbers")
	}
	if lat < -90 || lat > 90 {
		return errors.New("latitude must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return errors.New("longitude must be between -180 and 180")
	}
	return nil
}

// RoundCoordinate rounds a coordinate to CoordinatePrecision decimals
func RoundCoordinate(v float64) float64 {
	return roundTo(v, CoordinatePrecision)
}

// RoundArea rounds an area in hectares to AreaPrecision decimals
func RoundArea(v float64) float64 {
	return roundTo(v, AreaPrecision)
}

func roundTo(v float64, decimals int) float64 {
	shift := math.Pow(10, float64(decimals))
	return math.Round(v*shift) / shift
}

// ValidateGeoJSON validates a GeoJSON string
func ValidateGeoJSON(geojsonStr string) (orb.Geometry, error) {
	var raw map[string]interface{}
	err := json.Unmarshal([]byte(geojsonStr), &raw)
	if err != nil {
		return nil, err
	}

	feature, err := geojson.UnmarshalFeature([]byte(geojsonStr))
	if err != nil {
		return nil, err
	}

	if feature.Geometry == nil {
		return nil, errors.New("invalid GeoJSON: no geometry")
	}

	return feature.Geometry, nil
}

// CalculateArea calculates the geodesic area in square meters for a geometry
func CalculateArea(geometry orb.Geometry) float64 {
	return math.Abs(geo.Area(geometry))
}

// CalculateCentroid calculates the centroid of a geometry
func CalculateCentroid(geometry orb.Geometry) orb.Point {
	centroid, _ := planar.CentroidArea(geometry)
	return centroid
}

// ConvertToHectares converts square meters to hectares
func ConvertToHectares(sqMeters float64) float64 {
	return sqMeters / 10000
}

// AreaMatchesDeclared reports whether the boundary-derived area agrees with
// the declared hectares within the given relative tolerance.
func AreaMatchesDeclared(boundaryHectares, declaredHectares, tolerance float64) bool {
	if declaredHectares <= 0 {
		return false
	}
	return math.Abs(boundaryHectares-declaredHectares)/declaredHectares <= tolerance
}
