package view

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/example/fleet-loads/internal/models"
)

const (
	placeholder   = "-"
	defaultRating = "4.6"
	defaultBadge  = "T"
)

// Card is what the dashboard renders for one load. Every optional field
// already carries its placeholder so renderers never branch on absence.
type Card struct {
	ID          string        `json:"id"`
	Badge       string        `json:"badge"`
	ProductName string        `json:"product_name"`
	Route       string        `json:"route"`
	Status      models.Status `json:"status"`
	Weight      string        `json:"weight"`
	Dimensions  string        `json:"dimensions"`
	Distance    string        `json:"distance"`
	Amount      string        `json:"amount"`
	Rating      string        `json:"rating"`
	ActionLabel string        `json:"action_label"`
	Disabled    bool          `json:"disabled"`
}

func CardFor(l models.Load) Card {
	return Card{
		ID:          l.ID,
		Badge:       badge(l.VehicleType),
		ProductName: l.ProductName,
		Route:       l.LoadingAddress + " → " + l.UnloadingAddress,
		Status:      l.Status,
		Weight:      optionalNumber(l.Weight),
		Dimensions:  orPlaceholder(l.Dimensions),
		Distance:    optionalNumber(l.DistanceKm),
		Amount:      strconv.FormatFloat(l.Amount, 'f', 2, 64),
		Rating:      rating(l.Rating),
		ActionLabel: actionLabel(l),
		Disabled:    !models.IsAcceptable(l),
	}
}

func Cards(loads []models.Load) []Card {
	out := make([]Card, 0, len(loads))
	for _, l := range loads {
		out = append(out, CardFor(l))
	}
	return out
}

func actionLabel(l models.Load) string {
	switch {
	case l.VehicleLoaded:
		return "Loaded"
	case l.VehicleAccepted:
		return "Accepted"
	default:
		return "Accept"
	}
}

func badge(vehicleType string) string {
	r, _ := utf8.DecodeRuneInString(vehicleType)
	if r == utf8.RuneError {
		return defaultBadge
	}
	return string(unicode.ToUpper(r))
}

// zero counts as absent for descriptive numerics
func optionalNumber(v *float64) string {
	if v == nil || *v == 0 {
		return placeholder
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func rating(v *float64) string {
	if v == nil {
		return defaultRating
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
