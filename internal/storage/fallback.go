package storage

import "github.com/example/fleet-loads/internal/models"

// FallbackLoads is the listing installed when the backend cannot be reached
// or returns something undecodable. It returns a fresh copy on every call.
func FallbackLoads() []models.Load {
	return []models.Load{
		{
			ID:               "1",
			VehicleType:      "truck",
			Amount:           420,
			LoadingAddress:   "NYC",
			UnloadingAddress: "Boston",
			ProductName:      "Steel Coils",
			Weight:           models.Float64(20),
			Dimensions:       "10x2x2m",
			DistanceKm:       models.Float64(350),
			Rating:           models.Float64(4.7),
			Status:           models.StatusOpen,
		},
		{
			ID:               "2",
			VehicleType:      "container",
			Amount:           780,
			LoadingAddress:   "LA",
			UnloadingAddress: "SF",
			ProductName:      "Electronics",
			Weight:           models.Float64(12),
			Dimensions:       "6x2x2m",
			DistanceKm:       models.Float64(620),
			Rating:           models.Float64(4.9),
			Status:           models.StatusAccepted,
			VehicleAccepted:  true,
		},
	}
}
