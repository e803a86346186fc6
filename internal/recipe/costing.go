package recipe

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CostInput struct {
	RawMaterialID uuid.UUID
	Name          string
	Unit          string
	Quantity      float64
	UnitCost      decimal.Decimal
}

type CostLine struct {
	RawMaterialID uuid.UUID       `json:"raw_material_id"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	Quantity      float64         `json:"quantity"`
	Percentage    float64         `json:"percentage"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	Cost          decimal.Decimal `json:"cost"`
}

type CostSummary struct {
	BatchSize float64         `json:"batch_size"`
	TotalCost decimal.Decimal `json:"total_cost"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Lines     []CostLine      `json:"lines"`
}

// Costing computes each component's share of the batch, the total batch
// cost and the derived cost per output unit. A batch size of zero or less
// yields zero percentages and a zero unit cost rather than dividing by zero.
func Costing(batchSize float64, inputs []CostInput) CostSummary {
	summary := CostSummary{
		BatchSize: batchSize,
		TotalCost: decimal.Zero,
		UnitCost:  decimal.Zero,
		Lines:     make([]CostLine, 0, len(inputs)),
	}

	for _, in := range inputs {
		cost := in.UnitCost.Mul(decimal.NewFromFloat(in.Quantity))
		line := CostLine{
			RawMaterialID: in.RawMaterialID,
			Name:          in.Name,
			Unit:          in.Unit,
			Quantity:      in.Quantity,
			UnitCost:      in.UnitCost,
			Cost:          cost,
		}
		if batchSize > 0 {
			line.Percentage = in.Quantity / batchSize * 100
		}
		summary.TotalCost = summary.TotalCost.Add(cost)
		summary.Lines = append(summary.Lines, line)
	}

	if batchSize > 0 {
		summary.UnitCost = summary.TotalCost.Div(decimal.NewFromFloat(batchSize))
	}

	return summary
}
