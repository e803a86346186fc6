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

	"github.com/yasminehelmy/cosmetra-backend/internal/product"
	"github.com/yasminehelmy/cosmetra-backend/pkg/database"
	"github.com/yasminehelmy/cosmetra-backend/pkg/posting"
)

type CreatePackagingInput struct {
	FinishedProductID uuid.UUID `json:"finished_product_id" binding:"required"`
	Quantity          float64   `json:"quantity" binding:"required,gt=0"`
	Notes             string    `json:"notes"`
}

// ListPackaging returns all packaging orders
func (h *Handler) ListPackaging(c *gin.Context) {
	var orders []database.PackagingOrder
	query := h.db.Preload("FinishedProduct").
		Preload("Items").
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

// GetPackaging returns a single packaging order
func (h *Handler) GetPackaging(c *gin.Context) {
	var order database.PackagingOrder
	if err := h.db.Preload("FinishedProduct").
		Preload("Items").
		Where("id = ?", c.Param("id")).
		First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

// CreatePackaging creates a pending packaging order with consumption lines
// snapshotted from the product's BOM. The availability report is returned
// alongside but does not block creation; shortages are enforced at
// completion per the stock policy.
func (h *Handler) CreatePackaging(c *gin.Context) {
	var input CreatePackagingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var fp database.FinishedProduct
	if err := h.db.Preload("SemiFinished").
		Preload("Components").
		Preload("Components.PackagingMaterial").
		First(&fp, "id = ?", input.FinishedProductID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Finished product not found"})
		return
	}

	components := product.ResolveComponents(&fp)
	if len(components) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Product has no base or packaging components"})
		return
	}
	requirements, covered := product.BuildRequirements(input.Quantity, components)

	order := database.PackagingOrder{
		Code:              generateCode("PCK"),
		FinishedProductID: fp.ID,
		Quantity:          input.Quantity,
		Status:            database.StatusPending,
		Notes:             input.Notes,
	}
	for _, req := range requirements {
		unitCost := componentUnitCost(h.db, req.ItemType, req.ItemID)
		order.Items = append(order.Items, database.PackagingOrderItem{
			ComponentType: req.ItemType,
			ComponentID:   req.ItemID,
			Quantity:      req.Required,
			UnitCost:      unitCost,
			Total:         unitCost.Mul(decimal.NewFromFloat(req.Required)),
		})
	}

	if err := h.db.Create(&order).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.db.Preload("FinishedProduct").Preload("Items").First(&order, order.ID)
	c.JSON(http.StatusCreated, gin.H{
		"data":         order,
		"covered":      covered,
		"requirements": requirements,
	})
}

// StartPackaging moves a pending order to in progress
func (h *Handler) StartPackaging(c *gin.Context) {
	var order database.PackagingOrder
	if err := h.db.Where("id = ?", c.Param("id")).First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if order.Status != database.StatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "Only pending orders can be started"})
		return
	}

	order.Status = database.StatusInProgress
	if err := h.db.Save(&order).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.LogTransition(c, "start", "packaging_order", order.ID, order.Code)
	c.JSON(http.StatusOK, gin.H{"data": order})
}

// CompletePackaging consumes the base and packaging components, produces
// the finished units and rolls the assembly cost onto the product.
func (h *Handler) CompletePackaging(c *gin.Context) {
	var order database.PackagingOrder
	if err := h.db.Preload("Items").Where("id = ?", c.Param("id")).First(&order).Error; err != nil {
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
			unitCost := componentUnitCost(tx, order.Items[i].ComponentType, order.Items[i].ComponentID)
			order.Items[i].UnitCost = unitCost
			order.Items[i].Total = unitCost.Mul(decimal.NewFromFloat(order.Items[i].Quantity))
			totalCost = totalCost.Add(order.Items[i].Total)
			if err := tx.Save(&order.Items[i]).Error; err != nil {
				return err
			}
		}

		if err := posting.Apply(tx, packagingSet(&order), allowNegative); err != nil {
			return err
		}

		if order.Quantity > 0 {
			unitCost := totalCost.Div(decimal.NewFromFloat(order.Quantity))
			if err := tx.Model(&database.FinishedProduct{}).
				Where("id = ?", order.FinishedProductID).
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
		logrus.WithError(err).WithField("order", order.Code).Error("packaging completion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.LogTransition(c, "complete", "packaging_order", order.ID, order.Code)
	c.JSON(http.StatusOK, gin.H{"data": order})
}

// CancelPackaging reverses a completed order: restores components and
// removes the produced finished units.
func (h *Handler) CancelPackaging(c *gin.Context) {
	var order database.PackagingOrder
	if err := h.db.Preload("Items").Where("id = ?", c.Param("id")).First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if order.Status != database.StatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "Only completed orders can be cancelled"})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := posting.Apply(tx, packagingSet(&order).Inverse(), h.allowNegativeStock()); err != nil {
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
		logrus.WithError(err).WithField("order", order.Code).Error("packaging cancellation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.LogTransition(c, "cancel", "packaging_order", order.ID, order.Code)
	c.JSON(http.StatusOK, gin.H{"data": order})
}

// DeletePackaging removes an order that has not moved stock. In-progress
// orders delete like pending ones; completed orders must be cancelled first.
func (h *Handler) DeletePackaging(c *gin.Context) {
	var order database.PackagingOrder
	if err := h.db.Where("id = ?", c.Param("id")).First(&order).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if order.Status == database.StatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "Completed orders must be cancelled before deletion"})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", order.ID).Delete(&database.PackagingOrderItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&order).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.audit.LogDelete(c, "packaging_order", order.ID, order.Code)

	c.JSON(http.StatusOK, gin.H{"message": "Order deleted"})
}

// packagingSet is the full stock effect of completing a packaging order
func packagingSet(order *database.PackagingOrder) posting.Set {
	set := posting.Set{}
	for _, item := range order.Items {
		set.Stock = append(set.Stock, posting.StockDelta{
			ItemType: item.ComponentType,
			ItemID:   item.ComponentID,
			Change:   -item.Quantity,
		})
	}
	set.Stock = append(set.Stock, posting.StockDelta{
		ItemType: database.ItemFinishedProduct,
		ItemID:   order.FinishedProductID,
		Change:   order.Quantity,
	})
	return set
}

func componentUnitCost(db *gorm.DB, componentType string, componentID uuid.UUID) decimal.Decimal {
	switch componentType {
	case database.ItemSemiFinished:
		var sf database.SemiFinished
		if err := db.First(&sf, "id = ?", componentID).Error; err == nil {
			return sf.UnitCost
		}
	case database.ItemPackagingMaterial:
		var pm database.PackagingMaterial
		if err := db.First(&pm, "id = ?", componentID).Error; err == nil {
			return pm.UnitCost
		}
	}
	return decimal.Zero
}
