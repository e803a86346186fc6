package product

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yasminehelmy/cosmetra-backend/pkg/database"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

type ProductInput struct {
	Code           string     `json:"code" binding:"required"`
	Name           string     `json:"name" binding:"required"`
	Barcode        string     `json:"barcode"`
	SemiFinishedID *uuid.UUID `json:"semi_finished_id"`
	BaseQtyPerUnit float64    `json:"base_qty_per_unit"`
	SalePrice      float64    `json:"sale_price"`
	MinStock       float64    `json:"min_stock"`
}

type ComponentInput struct {
	PackagingMaterialID uuid.UUID `json:"packaging_material_id" binding:"required"`
	QtyPerUnit          float64   `json:"qty_per_unit" binding:"required,gt=0"`
}

// List returns all finished products
func (h *Handler) List(c *gin.Context) {
	var products []database.FinishedProduct
	query := h.db.Preload("SemiFinished").
		Preload("Components").
		Preload("Components.PackagingMaterial").
		Order("name ASC")
	if c.Query("active") == "true" {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": products})
}

// Create adds a new finished product
func (h *Handler) Create(c *gin.Context) {
	var input ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product := database.FinishedProduct{
		Code:           input.Code,
		Name:           input.Name,
		Barcode:        input.Barcode,
		SemiFinishedID: input.SemiFinishedID,
		BaseQtyPerUnit: input.BaseQtyPerUnit,
		SalePrice:      decimal.NewFromFloat(input.SalePrice),
		MinStock:       input.MinStock,
		IsActive:       true,
	}

	if err := h.db.Create(&product).Error; err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "Product code already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": product})
}

// Get returns a single product with its package BOM
func (h *Handler) Get(c *gin.Context) {
	var product database.FinishedProduct
	if err := h.db.Preload("SemiFinished").
		Preload("Components").
		Preload("Components.PackagingMaterial").
		Where("id = ?", c.Param("id")).
		First(&product).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": product})
}

// Update modifies a finished product
func (h *Handler) Update(c *gin.Context) {
	var product database.FinishedProduct
	if err := h.db.Where("id = ?", c.Param("id")).First(&product).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	var input ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product.Code = input.Code
	product.Name = input.Name
	product.Barcode = input.Barcode
	product.SemiFinishedID = input.SemiFinishedID
	product.BaseQtyPerUnit = input.BaseQtyPerUnit
	product.SalePrice = decimal.NewFromFloat(input.SalePrice)
	product.MinStock = input.MinStock

	if err := h.db.Save(&product).Error; err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "Product code already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": product})
}

// ToggleActive flips a product's active flag
func (h *Handler) ToggleActive(c *gin.Context) {
	var product database.FinishedProduct
	if err := h.db.Where("id = ?", c.Param("id")).First(&product).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	product.IsActive = !product.IsActive
	h.db.Save(&product)

	c.JSON(http.StatusOK, gin.H{"data": product})
}

// Delete removes a finished product that has no document references
func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")

	var orderCount int64
	h.db.Model(&database.PackagingOrder{}).Where("finished_product_id = ?", id).Count(&orderCount)
	if orderCount > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Packaging orders reference this product"})
		return
	}

	h.db.Where("finished_product_id = ?", id).Delete(&database.PackageComponent{})
	result := h.db.Where("id = ?", id).Delete(&database.FinishedProduct{})
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}

// SetComponents replaces the packaging BOM of a product
func (h *Handler) SetComponents(c *gin.Context) {
	var product database.FinishedProduct
	if err := h.db.Where("id = ?", c.Param("id")).First(&product).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	var input struct {
		Components []ComponentInput `json:"components" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("finished_product_id = ?", product.ID).Delete(&database.PackageComponent{}).Error; err != nil {
			return err
		}
		for _, comp := range input.Components {
			var material database.PackagingMaterial
			if err := tx.First(&material, "id = ?", comp.PackagingMaterialID).Error; err != nil {
				return err
			}
			if err := tx.Create(&database.PackageComponent{
				FinishedProductID:   product.ID,
				PackagingMaterialID: comp.PackagingMaterialID,
				QtyPerUnit:          comp.QtyPerUnit,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.db.Preload("Components").Preload("Components.PackagingMaterial").First(&product, product.ID)
	c.JSON(http.StatusOK, gin.H{"data": product})
}

// Availability checks whether the requested quantity can be assembled and
// reports any component shortages. The check is advisory: order creation is
// not blocked by it.
func (h *Handler) Availability(c *gin.Context) {
	qty, err := strconv.ParseFloat(c.DefaultQuery("qty", "1"), 64)
	if err != nil || qty <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "qty must be a positive number"})
		return
	}

	var product database.FinishedProduct
	if err := h.db.Preload("SemiFinished").
		Preload("Components").
		Preload("Components.PackagingMaterial").
		Where("id = ?", c.Param("id")).
		First(&product).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	components := ResolveComponents(&product)
	requirements, covered := BuildRequirements(qty, components)

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"product_id":   product.ID,
			"quantity":     qty,
			"covered":      covered,
			"can_make":     MaxProducible(components),
			"requirements": requirements,
		},
	})
}

// ResolveComponents flattens a product's BOM (semi-finished base plus
// packaging materials) into availability-check components. The product must
// have SemiFinished and Components preloaded.
func ResolveComponents(product *database.FinishedProduct) []Component {
	var components []Component

	if product.SemiFinishedID != nil && product.SemiFinished != nil && product.BaseQtyPerUnit > 0 {
		components = append(components, Component{
			ItemType:  database.ItemSemiFinished,
			ItemID:    *product.SemiFinishedID,
			Name:      product.SemiFinished.Name,
			Unit:      product.SemiFinished.Unit,
			PerUnit:   product.BaseQtyPerUnit,
			Available: product.SemiFinished.StockQty,
		})
	}

	for _, comp := range product.Components {
		components = append(components, Component{
			ItemType:  database.ItemPackagingMaterial,
			ItemID:    comp.PackagingMaterialID,
			Name:      comp.PackagingMaterial.Name,
			Unit:      comp.PackagingMaterial.Unit,
			PerUnit:   comp.QtyPerUnit,
			Available: comp.PackagingMaterial.StockQty,
		})
	}

	return components
}
