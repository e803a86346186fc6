package product

import (
	"math"

	"github.com/google/uuid"
)

// Component is one BOM requirement of a finished product: the semi-finished
// base or a packaging material.
type Component struct {
	ItemType  string
	ItemID    uuid.UUID
	Name      string
	Unit      string
	PerUnit   float64
	Available float64
}

// Requirement is the availability check result for one component
type Requirement struct {
	ItemType  string    `json:"item_type"`
	ItemID    uuid.UUID `json:"item_id"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	PerUnit   float64   `json:"per_unit"`
	Required  float64   `json:"required"`
	Available float64   `json:"available"`
	Shortage  float64   `json:"shortage"`
}

// BuildRequirements multiplies each per-unit requirement by the desired
// output quantity and compares it to current stock. Shortage is never
// negative. The second return value is true when every component is covered.
func BuildRequirements(qty float64, components []Component) ([]Requirement, bool) {
	requirements := make([]Requirement, 0, len(components))
	covered := true

	for _, comp := range components {
		required := comp.PerUnit * qty
		shortage := math.Max(0, required-comp.Available)
		if shortage > 0 {
			covered = false
		}
		requirements = append(requirements, Requirement{
			ItemType:  comp.ItemType,
			ItemID:    comp.ItemID,
			Name:      comp.Name,
			Unit:      comp.Unit,
			PerUnit:   comp.PerUnit,
			Required:  required,
			Available: comp.Available,
			Shortage:  shortage,
		})
	}

	return requirements, covered
}

// MaxProducible returns how many whole units can be assembled from current
// stock, limited by the scarcest component.
func MaxProducible(components []Component) int {
	if len(components) == 0 {
		return 0
	}

	canMake := math.MaxFloat64
	for _, comp := range components {
		if comp.PerUnit <= 0 {
			continue
		}
		units := comp.Available / comp.PerUnit
		if units < canMake {
			canMake = units
		}
	}

	if canMake == math.MaxFloat64 {
		return 0
	}
	return int(math.Floor(canMake))
}
