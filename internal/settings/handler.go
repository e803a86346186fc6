// Package settings exposes the single company profile row, including the
// negative stock policy that document transitions consult.
package settings

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
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

type SettingsInput struct {
	Name               string          `json:"name" binding:"required"`
	Currency           string          `json:"currency"`
	Address            string          `json:"address"`
	Phone              string          `json:"phone"`
	TaxNumber          string          `json:"tax_number"`
	DefaultTaxRate     decimal.Decimal `json:"default_tax_rate"`
	AllowNegativeStock bool            `json:"allow_negative_stock"`
}

func (h *Handler) Get(c *gin.Context) {
	settings, err := database.GetSettings(h.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settings})
}

func (h *Handler) Update(c *gin.Context) {
	settings, err := database.GetSettings(h.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var input SettingsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings.Name = input.Name
	settings.Address = input.Address
	settings.Phone = input.Phone
	settings.TaxNumber = input.TaxNumber
	settings.DefaultTaxRate = input.DefaultTaxRate
	settings.AllowNegativeStock = input.AllowNegativeStock
	if input.Currency != "" {
		settings.Currency = input.Currency
	}

	if err := h.db.Save(settings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.LogActivity(c, "update", "settings", &settings.ID, gin.H{
		"allow_negative_stock": settings.AllowNegativeStock,
	})
	c.JSON(http.StatusOK, gin.H{"data": settings})
}
