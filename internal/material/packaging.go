package material

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/yasminehelmy/cosmetra-backend/pkg/database"
)

// ListPackaging returns all packaging materials
func (h *Handler) ListPackaging(c *gin.Context) {
	var materials []database.PackagingMaterial
	if err := h.db.Order("name ASC").Find(&materials).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": materials})
}

// CreatePackaging adds a new packaging material
func (h *Handler) CreatePackaging(c *gin.Context) {
	var input MaterialInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	material := database.PackagingMaterial{
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

// GetPackaging returns a single packaging material
func (h *Handler) GetPackaging(c *gin.Context) {
	var material database.PackagingMaterial
	if err := h.db.Where("id = ?", c.Param("id")).First(&material).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Material not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": material})
}

// UpdatePackaging modifies a packaging material
func (h *Handler) UpdatePackaging(c *gin.Context) {
	var material database.PackagingMaterial
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

// DeletePackaging removes a packaging material
func (h *Handler) DeletePackaging(c *gin.Context) {
	var usedCount int64
	h.db.Model(&database.PackageComponent{}).Where("packaging_material_id = ?", c.Param("id")).Count(&usedCount)
	if usedCount > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Material is used in a product package"})
		return
	}

	result := h.db.Where("id = ?", c.Param("id")).Delete(&database.PackagingMaterial{})
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Material not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Material deleted"})
}

// AdjustPackagingStock applies a manual stock adjustment
func (h *Handler) AdjustPackagingStock(c *gin.Context) {
	var input AdjustStockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var material database.PackagingMaterial
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
	h.audit.LogStockAdjust(c, "packaging_material", material.ID, input.Adjustment, input.Reason)

	c.JSON(http.StatusOK, gin.H{"data": material})
}
