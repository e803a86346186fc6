// Package treasury manages cash and bank accounts. Every movement goes
// through the posting engine so the ledger stays the source of truth for
// balance reconstruction.
package treasury

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yasminehelmy/cosmetra-backend/pkg/activitylog"
	"github.com/yasminehelmy/cosmetra-backend/pkg/database"
	"github.com/yasminehelmy/cosmetra-backend/pkg/posting"
)

const ledgerSource = "treasury"

type Handler struct {
	db    *gorm.DB
	audit *activitylog.Logger
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, audit: activitylog.NewLogger(db)}
}

type TreasuryInput struct {
	Name     string `json:"name" binding:"required"`
	Kind     string `json:"kind"`
	Currency string `json:"currency"`
}

type MovementInput struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Notes  string          `json:"notes"`
}

type TransferInput struct {
	ToTreasuryID uuid.UUID       `json:"to_treasury_id" binding:"required"`
	Amount       decimal.Decimal `json:"amount" binding:"required"`
	Notes        string          `json:"notes"`
}

func (h *Handler) List(c *gin.Context) {
	var treasuries []database.Treasury
	if err := h.db.Order("name ASC").Find(&treasuries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": treasuries})
}

func (h *Handler) Get(c *gin.Context) {
	var treasury database.Treasury
	if err := h.db.First(&treasury, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Treasury not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": treasury})
}

func (h *Handler) Create(c *gin.Context) {
	var input TreasuryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	treasury := database.Treasury{
		Name:     input.Name,
		Kind:     input.Kind,
		Currency: input.Currency,
		IsActive: true,
	}
	if treasury.Kind == "" {
		treasury.Kind = "cash"
	}
	if err := h.db.Create(&treasury).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": treasury})
}

func (h *Handler) Update(c *gin.Context) {
	var treasury database.Treasury
	if err := h.db.First(&treasury, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Treasury not found"})
		return
	}

	var input TreasuryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	treasury.Name = input.Name
	if input.Kind != "" {
		treasury.Kind = input.Kind
	}
	if input.Currency != "" {
		treasury.Currency = input.Currency
	}
	if err := h.db.Save(&treasury).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": treasury})
}

// ToggleActive deactivates or reactivates an account. Inactive accounts
// are rejected by invoice posting and payments; balances are untouched.
func (h *Handler) ToggleActive(c *gin.Context) {
	var treasury database.Treasury
	if err := h.db.First(&treasury, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Treasury not found"})
		return
	}

	treasury.IsActive = !treasury.IsActive
	if err := h.db.Save(&treasury).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": treasury})
}

// Deposit adds money to the account and records the ledger entry
func (h *Handler) Deposit(c *gin.Context) {
	h.move(c, true)
}

// Withdraw takes money out; overdrafts are rejected
func (h *Handler) Withdraw(c *gin.Context) {
	h.move(c, false)
}

func (h *Handler) move(c *gin.Context, deposit bool) {
	var treasury database.Treasury
	if err := h.db.First(&treasury, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Treasury not found"})
		return
	}
	if !treasury.IsActive {
		c.JSON(http.StatusConflict, gin.H{"error": "Treasury is inactive"})
		return
	}

	var input MovementInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !input.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be positive"})
		return
	}

	action := "deposit"
	change := input.Amount
	debit, credit := input.Amount, decimal.Zero
	if !deposit {
		if input.Amount.GreaterThan(treasury.Balance) {
			c.JSON(http.StatusConflict, gin.H{"error": "Insufficient treasury balance"})
			return
		}
		action = "withdraw"
		change = input.Amount.Neg()
		debit, credit = decimal.Zero, input.Amount
	}

	movementID := uuid.New()
	err := h.db.Transaction(func(tx *gorm.DB) error {
		tid := treasury.ID
		set := posting.Set{
			Treasuries: []posting.TreasuryDelta{{TreasuryID: treasury.ID, Change: change}},
			Ledger: []database.LedgerEntry{{
				EntryDate:   time.Now(),
				TreasuryID:  &tid,
				Debit:       debit,
				Credit:      credit,
				SourceType:  ledgerSource,
				SourceID:    movementID,
				Description: action + ": " + input.Notes,
			}},
		}
		return posting.Apply(tx, set, true)
	})
	if err != nil {
		logrus.WithError(err).WithField("treasury", treasury.Name).Error("treasury movement failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.LogTransition(c, action, "treasury", treasury.ID, treasury.Name)
	h.db.First(&treasury, "id = ?", treasury.ID)
	c.JSON(http.StatusOK, gin.H{"data": treasury})
}

// Transfer moves money between two accounts in one transaction
func (h *Handler) Transfer(c *gin.Context) {
	var from database.Treasury
	if err := h.db.First(&from, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Treasury not found"})
		return
	}

	var input TransferInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !input.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be positive"})
		return
	}
	if input.ToTreasuryID == from.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot transfer to the same treasury"})
		return
	}
	if input.Amount.GreaterThan(from.Balance) {
		c.JSON(http.StatusConflict, gin.H{"error": "Insufficient treasury balance"})
		return
	}

	var to database.Treasury
	if err := h.db.Where("id = ? AND is_active = ?", input.ToTreasuryID, true).First(&to).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Destination treasury not found or inactive"})
		return
	}

	transferID := uuid.New()
	now := time.Now()
	err := h.db.Transaction(func(tx *gorm.DB) error {
		fromID, toID := from.ID, to.ID
		set := posting.Set{
			Treasuries: []posting.TreasuryDelta{
				{TreasuryID: from.ID, Change: input.Amount.Neg()},
				{TreasuryID: to.ID, Change: input.Amount},
			},
			Ledger: []database.LedgerEntry{
				{
					EntryDate:   now,
					TreasuryID:  &fromID,
					Credit:      input.Amount,
					SourceType:  ledgerSource,
					SourceID:    transferID,
					Description: "Transfer to " + to.Name,
				},
				{
					EntryDate:   now,
					TreasuryID:  &toID,
					Debit:       input.Amount,
					SourceType:  ledgerSource,
					SourceID:    transferID,
					Description: "Transfer from " + from.Name,
				},
			},
		}
		return posting.Apply(tx, set, true)
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"from": from.Name,
			"to":   to.Name,
		}).Error("treasury transfer failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit.LogTransition(c, "transfer", "treasury", from.ID, from.Name+" -> "+to.Name)
	h.db.First(&from, "id = ?", from.ID)
	h.db.First(&to, "id = ?", to.ID)
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to})
}

// Statement returns the account's ledger history oldest first with a
// running balance per line.
func (h *Handler) Statement(c *gin.Context) {
	var treasury database.Treasury
	if err := h.db.First(&treasury, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Treasury not found"})
		return
	}

	var entries []database.LedgerEntry
	if err := h.db.Where("treasury_id = ?", treasury.ID).
		Order("entry_date ASC, created_at ASC").
		Find(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	type line struct {
		database.LedgerEntry
		RunningBalance decimal.Decimal `json:"running_balance"`
	}
	lines := make([]line, 0, len(entries))
	running := decimal.Zero
	for _, e := range entries {
		running = running.Add(e.Debit).Sub(e.Credit)
		lines = append(lines, line{LedgerEntry: e, RunningBalance: running})
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    lines,
		"balance": treasury.Balance,
	})
}
