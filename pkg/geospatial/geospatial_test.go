package geospatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCoordinates(t *testing.T) {
	assert.NoError(t, ValidateCoordinates(10.5, -73.2))
	assert.NoError(t, ValidateCoordinates(-90, 180))
	assert.Error(t, ValidateCoordinates(90.1, 0))
	assert.Error(t, ValidateCoordinates(0, -180.1))
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 10.1235, RoundCoordinate(10.12345))
	assert.Equal(t, 10.0, RoundCoordinate(10.000004))
	assert.Equal(t, 5.0, RoundArea(5.0049))
	assert.Equal(t, 5.01, RoundArea(5.005))
}

func TestValidateGeoJSON(t *testing.T) {
	valid := `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[0.01,0],[0.01,0.01],[0,0.01],[0,0]]]}}`
	geometry, err := ValidateGeoJSON(valid)
	require.NoError(t, err)
	require.NotNil(t, geometry)

	area := CalculateArea(geometry)
	assert.Greater(t, area, 0.0)

	centroid := CalculateCentroid(geometry)
	assert.InDelta(t, 0.005, centroid.Lon(), 1e-9)
	assert.InDelta(t, 0.005, centroid.Lat(), 1e-9)

	_, err = ValidateGeoJSON(`{"type":"Feature"}`)
	assert.Error(t, err)

	_, err = ValidateGeoJSON(`not json`)
	assert.Error(t, err)
}

func TestAreaMatchesDeclared(t *testing.T) {
	assert.True(t, AreaMatchesDeclared(100, 100, 0.05))
	assert.True(t, AreaMatchesDeclared(104, 100, 0.05))
	assert.False(t, AreaMatchesDeclared(106, 100, 0.05))
	assert.False(t, AreaMatchesDeclared(100, 0, 0.05))
}
