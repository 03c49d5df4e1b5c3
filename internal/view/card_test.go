package view

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/fleet-loads/internal/models"
)

func TestCardForPlaceholders(t *testing.T) {
	c := CardFor(models.Load{ID: "7", Status: models.StatusOpen, Amount: 99, LoadingAddress: "A", UnloadingAddress: "B"})

	assert.Equal(t, "T", c.Badge)
	assert.Equal(t, "-", c.Weight)
	assert.Equal(t, "-", c.Dimensions)
	assert.Equal(t, "-", c.Distance)
	assert.Equal(t, "4.6", c.Rating)
	assert.Equal(t, "99.00", c.Amount)
	assert.Equal(t, "A → B", c.Route)
	assert.Equal(t, "Accept", c.ActionLabel)
	assert.False(t, c.Disabled)
}

func TestCardForPopulated(t *testing.T) {
	c := CardFor(models.Load{
		ID:              "1",
		VehicleType:     "container",
		Amount:          780,
		Weight:          models.Float64(12),
		Dimensions:      "6x2x2m",
		DistanceKm:      models.Float64(620),
		Rating:          models.Float64(4.9),
		Status:          models.StatusAccepted,
		VehicleAccepted: true,
	})

	assert.Equal(t, "C", c.Badge)
	assert.Equal(t, "12", c.Weight)
	assert.Equal(t, "6x2x2m", c.Dimensions)
	assert.Equal(t, "620", c.Distance)
	assert.Equal(t, "4.9", c.Rating)
	assert.Equal(t, "780.00", c.Amount)
	assert.Equal(t, "Accepted", c.ActionLabel)
	assert.True(t, c.Disabled)
}

func TestCardForLoadedWins(t *testing.T) {
	c := CardFor(models.Load{ID: "1", Status: models.StatusOpen, VehicleAccepted: true, VehicleLoaded: true})
	assert.Equal(t, "Loaded", c.ActionLabel)
	assert.True(t, c.Disabled)
}

func TestCardForZeroWeightIsPlaceholder(t *testing.T) {
	c := CardFor(models.Load{ID: "1", Status: models.StatusOpen, Weight: models.Float64(0), Rating: models.Float64(0)})
	assert.Equal(t, "-", c.Weight)
	assert.Equal(t, "0", c.Rating)
}
