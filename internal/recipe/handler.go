package recipe

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/yasminehelmy/cosmetra-backend/pkg/activitylog"
	"github.com/yasminehelmy/cosmetra-backend/pkg/database"
)

type Handler struct {
	db    *gorm.DB
	audit *activitylog.Logger
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, audit: activitylog.NewLogger(db)}
}

type SemiFinishedInput struct {
	Code      string  `json:"code" binding:"required"`
	Name      string  `json:"name" binding:"required"`
	Unit      string  `json:"unit" binding:"required"`
	BatchSize float64 `json:"batch_size" binding:"required,gt=0"`
}

type RecipeLineInput struct {
	RawMaterialID uuid.UUID `json:"raw_material_id" binding:"required"`
	Quantity      float64   `json:"quantity" binding:"required,gt=0"`
}

// List returns all semi-finished products with their recipes
func (h *Handler) List(c *gin.Context) {
	var items []database.SemiFinished
	if err := h.db.Preload("Recipe").Preload("Recipe.RawMaterial").
		Order("name ASC").
		Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

// Create adds a new semi-finished product
func (h *Handler) Create(c *gin.Context) {
	var input SemiFinishedInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item := database.SemiFinished{
		Code:      input.Code,
		Name:      input.Name,
		Unit:      input.Unit,
		BatchSize: input.BatchSize,
	}

	if err := h.db.Create(&item).Error; err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "Code already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

// Get returns one semi-finished product with its recipe
func (h *Handler) Get(c *gin.Context) {
	var item database.SemiFinished
	if err := h.db.Preload("Recipe").Preload("Recipe.RawMaterial").
		Where("id = ?", c.Param("id")).
		First(&item).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Semi-finished product not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

// Update modifies a semi-finished product's master data
func (h *Handler) Update(c *gin.Context) {
	var item database.SemiFinished
	if err := h.db.Where("id = ?", c.Param("id")).First(&item).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Semi-finished product not found"})
		return
	}

	var input SemiFinishedInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item.Code = input.Code
	item.Name = input.Name
	item.Unit = input.Unit
	item.BatchSize = input.BatchSize
	h.db.Save(&item)

	c.JSON(http.StatusOK, gin.H{"data": item})
}

// Delete removes a semi-finished product that is not referenced by orders
// or finished products.
func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")

	var orderCount int64
	h.db.Model(&database.ProductionOrder{}).Where("semi_finished_id = ?", id).Count(&orderCount)
	if orderCount > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Production orders reference this product"})
		return
	}

	var productCount int64
	h.db.Model(&database.FinishedProduct{}).Where("semi_finished_id = ?", id).Count(&productCount)
	if productCount > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Finished products reference this product"})
		return
	}

	h.db.Where("semi_finished_id = ?", id).Delete(&database.RecipeItem{})
	result := h.db.Where("id = ?", id).Delete(&database.SemiFinished{})
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Semi-finished product not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Semi-finished product deleted"})
}

// SetRecipe replaces the full recipe of a semi-finished product
func (h *Handler) SetRecipe(c *gin.Context) {
	var item database.SemiFinished
	if err := h.db.Where("id = ?", c.Param("id")).First(&item).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Semi-finished product not found"})
		return
	}

	var input struct {
		Lines []RecipeLineInput `json:"lines" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("semi_finished_id = ?", item.ID).Delete(&database.RecipeItem{}).Error; err != nil {
			return err
		}
		for _, line := range input.Lines {
			var material database.RawMaterial
			if err := tx.First(&material, "id = ?", line.RawMaterialID).Error; err != nil {
				return err
			}
			if err := tx.Create(&database.RecipeItem{
				SemiFinishedID: item.ID,
				RawMaterialID:  line.RawMaterialID,
				Quantity:       line.Quantity,
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

	h.db.Preload("Recipe").Preload("Recipe.RawMaterial").First(&item, item.ID)
	c.JSON(http.StatusOK, gin.H{"data": item})
}

// GetCosting returns the computed batch costing without writing anything
func (h *Handler) GetCosting(c *gin.Context) {
	summary, _, err := h.costingFor(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// ApplyCost writes the derived unit cost back onto the semi-finished product
func (h *Handler) ApplyCost(c *gin.Context) {
	summary, item, err := h.costingFor(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	item.UnitCost = summary.UnitCost
	if err := h.db.Model(item).Update("unit_cost", summary.UnitCost).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.LogActivity(c, "apply_cost", "semi_finished", &item.ID, gin.H{
		"unit_cost": summary.UnitCost,
	})

	c.JSON(http.StatusOK, gin.H{"data": item, "costing": summary})
}

func (h *Handler) costingFor(id string) (CostSummary, *database.SemiFinished, error) {
	var item database.SemiFinished
	if err := h.db.Preload("Recipe").Preload("Recipe.RawMaterial").
		Where("id = ?", id).
		First(&item).Error; err != nil {
		return CostSummary{}, nil, errors.New("semi-finished product not found")
	}

	inputs := make([]CostInput, 0, len(item.Recipe))
	for _, line := range item.Recipe {
		inputs = append(inputs, CostInput{
			RawMaterialID: line.RawMaterialID,
			Name:          line.RawMaterial.Name,
			Unit:          line.RawMaterial.Unit,
			Quantity:      line.Quantity,
			UnitCost:      line.RawMaterial.UnitCost,
		})
	}

	return Costing(item.BatchSize, inputs), &item, nil
}
