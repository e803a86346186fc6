// Package invoice implements sales and purchase documents and their
// returns. One handler serves all four kinds; routes bind the kind and
// the posting direction follows from it.
package invoice

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
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

type ItemInput struct {
	ItemType  string          `json:"item_type" binding:"required"`
	ItemID    uuid.UUID       `json:"item_id" binding:"required"`
	Quantity  float64         `json:"quantity" binding:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type InvoiceInput struct {
	Date       time.Time       `json:"date"`
	CustomerID *uuid.UUID      `json:"customer_id"`
	SupplierID *uuid.UUID      `json:"supplier_id"`
	TreasuryID *uuid.UUID      `json:"treasury_id"`
	Items      []ItemInput     `json:"items" binding:"required,min=1,dive"`
	Discount   decimal.Decimal `json:"discount"`
	Tax        decimal.Decimal `json:"tax"`
	Shipping   decimal.Decimal `json:"shipping"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	Notes      string          `json:"notes"`
}

var numberPrefix = map[string]string{
	database.InvoiceSales:          "INV",
	database.InvoicePurchase:       "PUR",
	database.InvoiceSalesReturn:    "SRT",
	database.InvoicePurchaseReturn: "PRT",
}

func generateNumber(kind string) string {
	return fmt.Sprintf("%s-%s-%d", numberPrefix[kind], time.Now().Format("20060102"), time.Now().UnixNano()%10000)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// isCustomerKind reports whether the document's party is a customer
func isCustomerKind(kind string) bool {
	return kind == database.InvoiceSales || kind == database.InvoiceSalesReturn
}

// List returns all invoices of the given kind, newest first
func (h *Handler) List(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var invoices []database.Invoice
		query := h.db.Preload("Customer").
			Preload("Supplier").
			Preload("Treasury").
			Preload("Items").
			Where("kind = ?", kind).
			Order("created_at DESC")
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status)
		}
		if err := query.Find(&invoices).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": invoices})
	}
}

// Get returns one invoice of the given kind with its payments
func (h *Handler) Get(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var inv database.Invoice
		if err := h.db.Preload("Customer").
			Preload("Supplier").
			Preload("Treasury").
			Preload("Items").
			Where("id = ? AND kind = ?", c.Param("id"), kind).
			First(&inv).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
			return
		}

		var payments []database.InvoicePayment
		h.db.Where("invoice_id = ?", inv.ID).Order("date ASC").Find(&payments)

		c.JSON(http.StatusOK, gin.H{"data": inv, "payments": payments})
	}
}

// Create creates a draft invoice. Drafts have no stock or ledger effect
// and stay editable until posted.
func (h *Handler) Create(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input InvoiceInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		inv := database.Invoice{
			Kind:       kind,
			Number:     generateNumber(kind),
			Status:     database.StatusDraft,
			CustomerID: input.CustomerID,
			SupplierID: input.SupplierID,
			TreasuryID: input.TreasuryID,
			Discount:   input.Discount,
			Tax:        input.Tax,
			Shipping:   input.Shipping,
			PaidAmount: input.PaidAmount,
			Notes:      input.Notes,
			Date:       input.Date,
		}
		if inv.Date.IsZero() {
			inv.Date = time.Now()
		}
		if err := h.validateHeader(&inv); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		items, subtotal, err := h.buildItems(kind, input.Items)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		inv.Items = items
		inv.Subtotal = subtotal
		inv.Total = subtotal.Sub(inv.Discount).Add(inv.Tax).Add(inv.Shipping)
		if inv.PaidAmount.GreaterThan(inv.Total) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Paid amount exceeds invoice total"})
			return
		}

		if err := h.db.Create(&inv).Error; err != nil {
			if isUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "Invoice number already exists"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		h.db.Preload("Customer").Preload("Supplier").Preload("Items").First(&inv, inv.ID)
		c.JSON(http.StatusCreated, gin.H{"data": inv})
	}
}

// Update replaces a draft's header and lines. Posted and void documents
// are immutable.
func (h *Handler) Update(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var inv database.Invoice
		if err := h.db.Where("id = ? AND kind = ?", c.Param("id"), kind).First(&inv).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
			return
		}
		if inv.Status != database.StatusDraft {
			c.JSON(http.StatusConflict, gin.H{"error": "Only draft invoices can be edited"})
			return
		}

		var input InvoiceInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		inv.CustomerID = input.CustomerID
		inv.SupplierID = input.SupplierID
		inv.TreasuryID = input.TreasuryID
		inv.Discount = input.Discount
		inv.Tax = input.Tax
		inv.Shipping = input.Shipping
		inv.PaidAmount = input.PaidAmount
		inv.Notes = input.Notes
		if !input.Date.IsZero() {
			inv.Date = input.Date
		}
		if err := h.validateHeader(&inv); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		items, subtotal, err := h.buildItems(kind, input.Items)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		inv.Subtotal = subtotal
		inv.Total = subtotal.Sub(inv.Discount).Add(inv.Tax).Add(inv.Shipping)
		if inv.PaidAmount.GreaterThan(inv.Total) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Paid amount exceeds invoice total"})
			return
		}

		err = h.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("invoice_id = ?", inv.ID).Delete(&database.InvoiceItem{}).Error; err != nil {
				return err
			}
			for i := range items {
				items[i].InvoiceID = inv.ID
			}
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
			inv.Items = nil
			return tx.Save(&inv).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		h.db.Preload("Customer").Preload("Supplier").Preload("Items").First(&inv, inv.ID)
		c.JSON(http.StatusOK, gin.H{"data": inv})
	}
}

// Delete removes a draft. Posted documents must be voided instead.
func (h *Handler) Delete(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var inv database.Invoice
		if err := h.db.Where("id = ? AND kind = ?", c.Param("id"), kind).First(&inv).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
			return
		}
		if inv.Status != database.StatusDraft {
			c.JSON(http.StatusConflict, gin.H{"error": "Only draft invoices can be deleted; void posted invoices instead"})
			return
		}

		err := h.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("invoice_id = ?", inv.ID).Delete(&database.InvoiceItem{}).Error; err != nil {
				return err
			}
			return tx.Delete(&inv).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		h.audit.LogDelete(c, "invoice", inv.ID, inv.Number)

		c.JSON(http.StatusOK, gin.H{"message": "Invoice deleted"})
	}
}

func (h *Handler) validateHeader(inv *database.Invoice) error {
	if isCustomerKind(inv.Kind) {
		if inv.CustomerID == nil {
			return errors.New("customer is required")
		}
		var count int64
		h.db.Model(&database.Customer{}).Where("id = ?", inv.CustomerID).Count(&count)
		if count == 0 {
			return errors.New("customer not found")
		}
	} else {
		if inv.SupplierID == nil {
			return errors.New("supplier is required")
		}
		var count int64
		h.db.Model(&database.Supplier{}).Where("id = ?", inv.SupplierID).Count(&count)
		if count == 0 {
			return errors.New("supplier not found")
		}
	}
	if inv.PaidAmount.IsNegative() {
		return errors.New("paid amount cannot be negative")
	}
	if inv.PaidAmount.IsPositive() && inv.TreasuryID == nil {
		return errors.New("treasury is required when a paid amount is set")
	}
	if inv.TreasuryID != nil {
		var count int64
		h.db.Model(&database.Treasury{}).Where("id = ? AND is_active = ?", inv.TreasuryID, true).Count(&count)
		if count == 0 {
			return errors.New("treasury not found or inactive")
		}
	}
	return nil
}

// buildItems validates line items against the kind's allowed stock tables
// and snapshots names and totals.
func (h *Handler) buildItems(kind string, inputs []ItemInput) ([]database.InvoiceItem, decimal.Decimal, error) {
	items := make([]database.InvoiceItem, 0, len(inputs))
	subtotal := decimal.Zero

	for _, in := range inputs {
		if in.UnitPrice.IsNegative() {
			return nil, decimal.Zero, errors.New("unit price cannot be negative")
		}

		name, err := h.lookupItem(kind, in.ItemType, in.ItemID)
		if err != nil {
			return nil, decimal.Zero, err
		}

		total := in.UnitPrice.Mul(decimal.NewFromFloat(in.Quantity))
		items = append(items, database.InvoiceItem{
			ItemType:  in.ItemType,
			ItemID:    in.ItemID,
			Name:      name,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			Total:     total,
		})
		subtotal = subtotal.Add(total)
	}
	return items, subtotal, nil
}

func (h *Handler) lookupItem(kind, itemType string, itemID uuid.UUID) (string, error) {
	if isCustomerKind(kind) {
		if itemType != database.ItemFinishedProduct {
			return "", fmt.Errorf("sales documents only accept finished products, got %q", itemType)
		}
		var fp database.FinishedProduct
		if err := h.db.First(&fp, "id = ?", itemID).Error; err != nil {
			return "", fmt.Errorf("finished product %s not found", itemID)
		}
		return fp.Name, nil
	}

	switch itemType {
	case database.ItemRawMaterial:
		var m database.RawMaterial
		if err := h.db.First(&m, "id = ?", itemID).Error; err != nil {
			return "", fmt.Errorf("raw material %s not found", itemID)
		}
		return m.Name, nil
	case database.ItemPackagingMaterial:
		var m database.PackagingMaterial
		if err := h.db.First(&m, "id = ?", itemID).Error; err != nil {
			return "", fmt.Errorf("packaging material %s not found", itemID)
		}
		return m.Name, nil
	}
	return "", fmt.Errorf("purchase documents only accept raw or packaging materials, got %q", itemType)
}
