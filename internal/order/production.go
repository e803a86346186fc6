package order

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yasminehelmy/cosmetra-backend/pkg/database"
	"github.com/yasminehelmy/cosmetra-backend/pkg/posting"
)

type CreateProductionInput struct {
	SemiFinishedID uuid.UUID `json:"semi_finished_id" binding:"required"`
	Quantity       float64   `json:"quantity" binding:"required,gt=0"`
	Notes          string    `json:"notes"`
}

// ListProduction returns all production orders
func (h *Handler) ListProduction(c *gin.Context) {
	var orders []database.ProductionOrder
	query := h.db.Preload("SemiFinished").
		Preload("Items").
		Preload("Items.RawMaterial").
		Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": orders})
}

// GetProduction returns a single production order
func (h *Handler) GetProduction(c *gin.Context) {
	var order database.ProductionOrder
	if err := h.db.Preload("SemiFinished").
		Preload("Items").
		Preload("Items.RawMaterial").
		Where("id = ?", c.Param("id")).
		First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

// CreateProduction creates a pending production order with consumption lines
// snapshotted from the recipe, scaled to the requested output quantity.
// Nothing moves until the order is completed.
func (h *Handler) CreateProduction(c *gin.Context) {
	var input CreateProductionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var sf database.SemiFinished
	if err := h.db.Preload("Recipe").Preload("Recipe.RawMaterial").
		First(&sf, "id = ?", input.SemiFinishedID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Semi-finished product not found"})
		return
	}
	if len(sf.Recipe) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Semi-finished product has no recipe"})
		return
	}

	batchSize := sf.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	scale := input.Quantity / batchSize

	order := database.ProductionOrder{
		Code:           generateCode("PRO"),
		SemiFinishedID: sf.ID,
		Quantity:       input.Quantity,
		Status:         database.StatusPending,
		Notes:          input.Notes,
	}
	for _, line := range sf.Recipe {
		qty := line.Quantity * scale
		total := line.RawMaterial.UnitCost.Mul(decimal.NewFromFloat(qty))
		order.Items = append(order.Items, database.ProductionOrderItem{
			RawMaterialID: line.RawMaterialID,
			Quantity:      qty,
			UnitCost:      line.RawMaterial.UnitCost,
			Total:         total,
		})
	}

	if err := h.db.Create(&order).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.db.Preload("SemiFinished").Preload("Items").Preload("Items.RawMaterial").First(&order, order.ID)
	c.JSON(http.StatusCreated, gin.H{"data": order})
}

// StartProduction moves a pending order to inProgress
func (h *Handler) StartProduction(c *gin.Context) {
	var order database.ProductionOrder
	if err := h.db.Where("id = ?", c.Param("id")).First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if order.Status != database.StatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "Only pending orders can be started"})
		return
	}

	order.Status = database.StatusInProgress
	h.db.Save(&order)

	c.JSON(http.StatusOK, gin.H{"data": order})
}

// CompleteProduction consumes the recipe components, produces the
// semi-finished quantity and rolls the batch cost onto the product. All
// effects are applied in one transaction.
func (h *Handler) CompleteProduction(c *gin.Context) {
	var order database.ProductionOrder
	if err := h.db.Preload("Items").Preload("Items.RawMaterial").
		Where("id = ?", c.Param("id")).
		First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if order.Status != database.StatusPending && order.Status != database.StatusInProgress {
		c.JSON(http.StatusConflict, gin.H{"error": "Only pending or in-progress orders can be completed"})
		return
	}

	allowNegative := h.allowNegativeStock()

	err := h.db.Transaction(func(tx *gorm.DB) error {
		// Re-price consumption lines at completion time
		totalCost := decimal.Zero
		for i := range order.Items {
			var material database.RawMaterial
			if err := tx.First(&material, "id = ?", order.Items[i].RawMaterialID).Error; err != nil {
				return err
			}
			order.Items[i].UnitCost = material.UnitCost
			order.Items[i].Total = material.UnitCost.Mul(decimal.NewFromFloat(order.Items[i].Quantity))
			totalCost = totalCost.Add(order.Items[i].Total)
			if err := tx.Save(&order.Items[i]).Error; err != nil {
				return err
			}
		}

		if err := posting.Apply(tx, productionSet(&order), allowNegative); err != nil {
			return err
		}

		// Roll the batch cost onto the semi-finished unit cost
		if order.Quantity > 0 {
			unitCost := totalCost.Div(decimal.NewFromFloat(order.Quantity))
			if err := tx.Model(&database.SemiFinished{}).
				Where("id = ?", order.SemiFinishedID).
				Update("unit_cost", unitCost).Error; err != nil {
				return err
			}
		}

		now := time.Now()
		order.Status = database.StatusCompleted
		order.TotalCost = totalCost
		order.CompletedAt = &now
		return tx.Save(&order).Error
	})
	if err != nil {
		if errors.Is(err, posting.ErrInsufficientStock) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logrus.WithError(err).WithField("order", order.Code).Error("production completion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.LogTransition(c, "complete", "production_order", order.ID, order.Code)
	c.JSON(http.StatusOK, gin.H{"data": order})
}

// CancelProduction reverses a completed order: restores every consumed
// component and removes the produced quantity.
func (h *Handler) CancelProduction(c *gin.Context) {
	var order database.ProductionOrder
	if err := h.db.Preload("Items").Where("id = ?", c.Param("id")).First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if order.Status != database.StatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "Only completed orders can be cancelled"})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		// Removing produced output may leave semi-finished stock negative if
		// it was already consumed downstream; the policy flag governs that.
		if err := posting.Apply(tx, productionSet(&order).Inverse(), h.allowNegativeStock()); err != nil {
			return err
		}
		order.Status = database.StatusCancelled
		return tx.Save(&order).Error
	})
	if err != nil {
		if errors.Is(err, posting.ErrInsufficientStock) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logrus.WithError(err).WithField("order", order.Code).Error("production cancellation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.LogTransition(c, "cancel", "production_order", order.ID, order.Code)
	c.JSON(http.StatusOK, gin.H{"data": order})
}

// DeleteProduction removes an order that has not moved stock. Starting an
// order has no inventory effect, so in-progress orders delete like pending
// ones; completed orders must be cancelled first.
func (h *Handler) DeleteProduction(c *gin.Context) {
	var order database.ProductionOrder
	if err := h.db.Where("id = ?", c.Param("id")).First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if order.Status == database.StatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "Completed orders must be cancelled before deletion"})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", order.ID).Delete(&database.ProductionOrderItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&order).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.audit.LogDelete(c, "production_order", order.ID, order.Code)

	c.JSON(http.StatusOK, gin.H{"message": "Order deleted"})
}

// productionSet is the full stock effect of completing a production order
func productionSet(order *database.ProductionOrder) posting.Set {
	set := posting.Set{}
	for _, item := range order.Items {
		set.Stock = append(set.Stock, posting.StockDelta{
			ItemType: database.ItemRawMaterial,
			ItemID:   item.RawMaterialID,
			Change:   -item.Quantity,
		})
	}
	set.Stock = append(set.Stock, posting.StockDelta{
		ItemType: database.ItemSemiFinished,
		ItemID:   order.SemiFinishedID,
		Change:   order.Quantity,
	})
	return set
}
