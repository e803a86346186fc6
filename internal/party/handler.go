// Package party manages customers and suppliers and their running
// balances. Balances are only mutated by posted documents and treasury
// transactions; this package exposes CRUD, statements and summaries.
package party

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

type PartyInput struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// statementLine is one ledger row with a running balance attached
type statementLine struct {
	database.LedgerEntry
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// ListCustomers returns all customers with optional name search
func (h *Handler) ListCustomers(c *gin.Context) {
	var customers []database.Customer
	query := h.db.Order("name ASC")
	if search := c.Query("search"); search != "" {
		query = query.Where("name ILIKE ? OR phone LIKE ?", "%"+search+"%", "%"+search+"%")
	}
	if err := query.Find(&customers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": customers})
}

func (h *Handler) GetCustomer(c *gin.Context) {
	var customer database.Customer
	if err := h.db.First(&customer, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": customer})
}

func (h *Handler) CreateCustomer(c *gin.Context) {
	var input PartyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	customer := database.Customer{
		Name:    input.Name,
		Phone:   input.Phone,
		Email:   input.Email,
		Address: input.Address,
	}
	if err := h.db.Create(&customer).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": customer})
}

func (h *Handler) UpdateCustomer(c *gin.Context) {
	var customer database.Customer
	if err := h.db.First(&customer, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}

	var input PartyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	customer.Name = input.Name
	customer.Phone = input.Phone
	customer.Email = input.Email
	customer.Address = input.Address
	if err := h.db.Save(&customer).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": customer})
}

// DeleteCustomer refuses when the customer has documents or a non-zero
// balance; history must stay reconstructable.
func (h *Handler) DeleteCustomer(c *gin.Context) {
	var customer database.Customer
	if err := h.db.First(&customer, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}

	if !customer.Balance.IsZero() {
		c.JSON(http.StatusConflict, gin.H{"error": "Customer has a non-zero balance"})
		return
	}
	var count int64
	h.db.Model(&database.Invoice{}).Where("customer_id = ?", customer.ID).Count(&count)
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Customer has invoices and cannot be deleted"})
		return
	}

	h.db.Delete(&customer)
	h.audit.LogDelete(c, "customer", customer.ID, customer.Name)

	c.JSON(http.StatusOK, gin.H{"message": "Customer deleted"})
}

// CustomerStatement returns the customer's ledger history oldest first
// with a running balance per line.
func (h *Handler) CustomerStatement(c *gin.Context) {
	var customer database.Customer
	if err := h.db.First(&customer, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}

	lines, err := h.statement(database.PartyCustomer, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    lines,
		"balance": customer.Balance,
	})
}

// ListSuppliers returns all suppliers with optional name search
func (h *Handler) ListSuppliers(c *gin.Context) {
	var suppliers []database.Supplier
	query := h.db.Order("name ASC")
	if search := c.Query("search"); search != "" {
		query = query.Where("name ILIKE ? OR phone LIKE ?", "%"+search+"%", "%"+search+"%")
	}
	if err := query.Find(&suppliers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": suppliers})
}

func (h *Handler) GetSupplier(c *gin.Context) {
	var supplier database.Supplier
	if err := h.db.First(&supplier, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Supplier not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": supplier})
}

func (h *Handler) CreateSupplier(c *gin.Context) {
	var input PartyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	supplier := database.Supplier{
		Name:    input.Name,
		Phone:   input.Phone,
		Email:   input.Email,
		Address: input.Address,
	}
	if err := h.db.Create(&supplier).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": supplier})
}

func (h *Handler) UpdateSupplier(c *gin.Context) {
	var supplier database.Supplier
	if err := h.db.First(&supplier, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Supplier not found"})
		return
	}

	var input PartyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	supplier.Name = input.Name
	supplier.Phone = input.Phone
	supplier.Email = input.Email
	supplier.Address = input.Address
	if err := h.db.Save(&supplier).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": supplier})
}

func (h *Handler) DeleteSupplier(c *gin.Context) {
	var supplier database.Supplier
	if err := h.db.First(&supplier, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Supplier not found"})
		return
	}

	if !supplier.Balance.IsZero() {
		c.JSON(http.StatusConflict, gin.H{"error": "Supplier has a non-zero balance"})
		return
	}
	var count int64
	h.db.Model(&database.Invoice{}).Where("supplier_id = ?", supplier.ID).Count(&count)
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Supplier has invoices and cannot be deleted"})
		return
	}

	h.db.Delete(&supplier)
	h.audit.LogDelete(c, "supplier", supplier.ID, supplier.Name)

	c.JSON(http.StatusOK, gin.H{"message": "Supplier deleted"})
}

// SupplierStatement returns the supplier's ledger history oldest first
// with a running balance per line.
func (h *Handler) SupplierStatement(c *gin.Context) {
	var supplier database.Supplier
	if err := h.db.First(&supplier, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Supplier not found"})
		return
	}

	lines, err := h.statement(database.PartySupplier, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    lines,
		"balance": supplier.Balance,
	})
}

// statement reconstructs the running balance from the ledger. Customer
// balances grow with debits, supplier balances with credits.
func (h *Handler) statement(partyType, partyID string) ([]statementLine, error) {
	var entries []database.LedgerEntry
	if err := h.db.Where("party_type = ? AND party_id = ?", partyType, partyID).
		Order("entry_date ASC, created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}

	lines := make([]statementLine, 0, len(entries))
	running := decimal.Zero
	for _, e := range entries {
		if partyType == database.PartyCustomer {
			running = running.Add(e.Debit).Sub(e.Credit)
		} else {
			running = running.Add(e.Credit).Sub(e.Debit)
		}
		lines = append(lines, statementLine{LedgerEntry: e, RunningBalance: running})
	}
	return lines, nil
}

// Stats summarizes receivables and payables across all parties
func (h *Handler) Stats(c *gin.Context) {
	var customers []database.Customer
	var suppliers []database.Supplier
	if err := h.db.Find(&customers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.db.Find(&suppliers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	receivable := decimal.Zero
	for _, cu := range customers {
		receivable = receivable.Add(cu.Balance)
	}
	payable := decimal.Zero
	for _, s := range suppliers {
		payable = payable.Add(s.Balance)
	}

	c.JSON(http.StatusOK, gin.H{
		"customer_count":   len(customers),
		"supplier_count":   len(suppliers),
		"total_receivable": receivable,
		"total_payable":    payable,
	})
}
