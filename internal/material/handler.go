package material

import (
	"errors"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/yasminehelmy/cosmetra-backend/pkg/activitylog"
)

type Handler struct {
	db    *gorm.DB
	audit *activitylog.Logger
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, audit: activitylog.NewLogger(db)}
}

type MaterialInput struct {
	Code     string  `json:"code" binding:"required"`
	Name     string  `json:"name" binding:"required"`
	Unit     string  `json:"unit" binding:"required"`
	UnitCost float64 `json:"unit_cost"`
	StockQty float64 `json:"stock_qty"`
	MinStock float64 `json:"min_stock"`
	Supplier string  `json:"supplier"`
}

type AdjustStockInput struct {
	Adjustment float64 `json:"adjustment" binding:"required"`
	Reason     string  `json:"reason"`
}

// isUniqueViolation reports whether err is a postgres unique constraint error
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
