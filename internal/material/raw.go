package material

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/yasminehelmy/cosmetra-backend/pkg/database"
)

// ListRaw returns all raw materials
func (h *Handler) ListRaw(c *gin.Context) {
	var materials []database.RawMaterial
	if err := h.db.Order("name ASC").Find(&materials).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": materials})
}

// CreateRaw adds a new raw material
func (h *Handler) CreateRaw(c *gin.Context) {
	var input MaterialInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	material := database.RawMaterial{
		Code:     input.Code,
		Name:     input.Name,
		Unit:     input.Unit,
		UnitCost: decimal.NewFromFloat(input.UnitCost),
		StockQty: input.StockQty,
		MinStock: input.MinStock,
		Supplier: input.Supplier,
	}

	if err := h.db.Create(&material).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Material code already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": material})
}

// GetRaw returns a single raw material
func (h *Handler) GetRaw(c *gin.Context) {
	var material database.RawMaterial
	if err := h.db.Where("id = ?", c.Param("id")).First(&material).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Material not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": material})
}

// UpdateRaw modifies a raw material
func (h *Handler) UpdateRaw(c *gin.Context) {
	var material database.RawMaterial
	if err := h.db.Where("id = ?", c.Param("id")).First(&material).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Material not found"})
		return
	}

	var input MaterialInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	material.Code = input.Code
	material.Name = input.Name
	material.Unit = input.Unit
	material.UnitCost = decimal.NewFromFloat(input.UnitCost)
	material.MinStock = input.MinStock
	material.Supplier = input.Supplier

	if err := h.db.Save(&material).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Material code already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": material})
}

// DeleteRaw removes a raw material
func (h *Handler) DeleteRaw(c *gin.Context) {
	var usedCount int64
	h.db.Model(&database.RecipeItem{}).Where("raw_material_id = ?", c.Param("id")).Count(&usedCount)
	if usedCount > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Material is used in a recipe"})
		return
	}

	result := h.db.Where("id = ?", c.Param("id")).Delete(&database.RawMaterial{})
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Material not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Material deleted"})
}

// AdjustRawStock applies a manual stock adjustment
func (h *Handler) AdjustRawStock(c *gin.Context) {
	var input AdjustStockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var material database.RawMaterial
	if err := h.db.Where("id = ?", c.Param("id")).First(&material).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Material not found"})
		return
	}

	newQty := material.StockQty + input.Adjustment
	if newQty < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Stock cannot go below zero"})
		return
	}

	material.StockQty = newQty
	h.db.Save(&material)
	h.audit.LogStockAdjust(c, "raw_material", material.ID, input.Adjustment, input.Reason)

	c.JSON(http.StatusOK, gin.H{"data": material})
}

// GetAlerts returns raw and packaging materials at or below their minimum stock
func (h *Handler) GetAlerts(c *gin.Context) {
	var lowRaw []database.RawMaterial
	h.db.Where("stock_qty <= min_stock").Order("stock_qty ASC").Find(&lowRaw)

	var lowPackaging []database.PackagingMaterial
	h.db.Where("stock_qty <= min_stock").Order("stock_qty ASC").Find(&lowPackaging)

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"raw_materials":       lowRaw,
			"packaging_materials": lowPackaging,
		},
	})
}
