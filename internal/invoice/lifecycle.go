package invoice

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

// ledgerSource tags every ledger entry an invoice produces, including
// later payments, so voiding reverses all of them in one pass.
const ledgerSource = "invoice"

// stockSign is the on-hand direction of one document unit: sales and
// purchase returns ship goods out, purchases and sales returns bring
// goods in.
func stockSign(kind string) float64 {
	if kind == database.InvoiceSales || kind == database.InvoicePurchaseReturn {
		return -1
	}
	return 1
}

// balanceSign is the party balance direction: regular documents grow what
// the party owes (or is owed), returns shrink it.
func balanceSign(kind string) decimal.Decimal {
	if kind == database.InvoiceSales || kind == database.InvoicePurchase {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(-1)
}

// cashSign is the treasury direction of money against this document:
// sales and purchase returns collect, purchases and sales returns pay out.
func cashSign(kind string) decimal.Decimal {
	if kind == database.InvoiceSales || kind == database.InvoicePurchaseReturn {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(-1)
}

func party(inv *database.Invoice) (string, uuid.UUID) {
	if isCustomerKind(inv.Kind) {
		return database.PartyCustomer, *inv.CustomerID
	}
	return database.PartySupplier, *inv.SupplierID
}

// Post transitions a draft to posted: stock moves per line, the party
// balance takes the unpaid remainder, any paid amount hits the treasury,
// and ledger entries record both legs. One transaction, all or nothing.
func (h *Handler) Post(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var inv database.Invoice
		if err := h.db.Preload("Items").
			Where("id = ? AND kind = ?", c.Param("id"), kind).
			First(&inv).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
			return
		}
		if inv.Status != database.StatusDraft {
			c.JSON(http.StatusConflict, gin.H{"error": "Only draft invoices can be posted"})
			return
		}
		if len(inv.Items) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invoice has no items"})
			return
		}

		allowNegative := h.allowNegativeStock()

		err := h.db.Transaction(func(tx *gorm.DB) error {
			set := postingSet(&inv)
			if err := posting.Apply(tx, set, allowNegative); err != nil {
				return err
			}

			if inv.PaidAmount.IsPositive() {
				payment := database.InvoicePayment{
					InvoiceID:  inv.ID,
					TreasuryID: *inv.TreasuryID,
					Amount:     inv.PaidAmount,
					Date:       inv.Date,
					Notes:      "Paid on posting",
				}
				if err := tx.Create(&payment).Error; err != nil {
					return err
				}
			}

			now := time.Now()
			inv.Status = database.StatusPosted
			inv.PostedAt = &now
			inv.Items = nil
			return tx.Save(&inv).Error
		})
		if err != nil {
			if errors.Is(err, posting.ErrInsufficientStock) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			logrus.WithError(err).WithField("invoice", inv.Number).Error("invoice posting failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		h.audit.LogTransition(c, "post", "invoice", inv.ID, inv.Number)
		h.db.Preload("Customer").Preload("Supplier").Preload("Items").First(&inv, inv.ID)
		c.JSON(http.StatusOK, gin.H{"data": inv})
	}
}

// Void reverses a posted invoice: stock, the party balance and every
// treasury movement return to their pre-post values, and each live ledger
// entry gets a negating twin. Double voids are rejected by the status
// guard.
func (h *Handler) Void(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var inv database.Invoice
		if err := h.db.Preload("Items").
			Where("id = ? AND kind = ?", c.Param("id"), kind).
			First(&inv).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
			return
		}
		if inv.Status != database.StatusPosted {
			c.JSON(http.StatusConflict, gin.H{"error": "Only posted invoices can be voided"})
			return
		}

		var payments []database.InvoicePayment
		if err := h.db.Where("invoice_id = ?", inv.ID).Find(&payments).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		err := h.db.Transaction(func(tx *gorm.DB) error {
			set := cumulativeSet(&inv, payments)
			if err := posting.Apply(tx, set.Inverse(), h.allowNegativeStock()); err != nil {
				return err
			}
			if err := posting.ReverseLedger(tx, ledgerSource, inv.ID); err != nil {
				return err
			}

			now := time.Now()
			inv.Status = database.StatusVoid
			inv.VoidedAt = &now
			inv.Items = nil
			return tx.Save(&inv).Error
		})
		if err != nil {
			if errors.Is(err, posting.ErrInsufficientStock) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			logrus.WithError(err).WithField("invoice", inv.Number).Error("invoice voiding failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		h.audit.LogTransition(c, "void", "invoice", inv.ID, inv.Number)
		h.db.Preload("Customer").Preload("Supplier").Preload("Items").First(&inv, inv.ID)
		c.JSON(http.StatusOK, gin.H{"data": inv})
	}
}

type PaymentInput struct {
	TreasuryID uuid.UUID       `json:"treasury_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	Date       time.Time       `json:"date"`
	Notes      string          `json:"notes"`
}

// RegisterPayment settles part of a posted invoice's open remainder:
// money moves through a treasury, the party balance shrinks by the same
// amount, and both legs land in the ledger under the invoice.
func (h *Handler) RegisterPayment(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var inv database.Invoice
		if err := h.db.Where("id = ? AND kind = ?", c.Param("id"), kind).First(&inv).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
			return
		}
		if inv.Status != database.StatusPosted {
			c.JSON(http.StatusConflict, gin.H{"error": "Payments can only be registered on posted invoices"})
			return
		}

		var input PaymentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !input.Amount.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be positive"})
			return
		}
		remaining := inv.Total.Sub(inv.PaidAmount)
		if input.Amount.GreaterThan(remaining) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Amount exceeds the open remainder"})
			return
		}
		var treasury database.Treasury
		if err := h.db.Where("id = ? AND is_active = ?", input.TreasuryID, true).First(&treasury).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Treasury not found or inactive"})
			return
		}
		if input.Date.IsZero() {
			input.Date = time.Now()
		}

		partyType, partyID := party(&inv)

		err := h.db.Transaction(func(tx *gorm.DB) error {
			set := posting.Set{
				Parties: []posting.PartyDelta{{
					PartyType: partyType,
					PartyID:   partyID,
					Change:    input.Amount.Mul(balanceSign(inv.Kind)).Neg(),
				}},
				Treasuries: []posting.TreasuryDelta{{
					TreasuryID: input.TreasuryID,
					Change:     input.Amount.Mul(cashSign(inv.Kind)),
				}},
				Ledger: paymentLedger(&inv, partyType, partyID, input.TreasuryID, input.Amount, input.Date),
			}
			if err := posting.Apply(tx, set, true); err != nil {
				return err
			}

			payment := database.InvoicePayment{
				InvoiceID:  inv.ID,
				TreasuryID: input.TreasuryID,
				Amount:     input.Amount,
				Date:       input.Date,
				Notes:      input.Notes,
			}
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}

			inv.PaidAmount = inv.PaidAmount.Add(input.Amount)
			return tx.Save(&inv).Error
		})
		if err != nil {
			logrus.WithError(err).WithField("invoice", inv.Number).Error("payment registration failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		h.audit.LogTransition(c, "payment", "invoice", inv.ID, inv.Number)
		c.JSON(http.StatusOK, gin.H{"data": inv})
	}
}

func (h *Handler) allowNegativeStock() bool {
	settings, err := database.GetSettings(h.db)
	if err != nil {
		return false
	}
	return settings.AllowNegativeStock
}

// postingSet is the full effect of posting: per-line stock moves, the
// unpaid remainder on the party, the paid amount on the treasury, and the
// ledger entries for both.
func postingSet(inv *database.Invoice) posting.Set {
	set := posting.Set{}
	sign := stockSign(inv.Kind)
	for _, item := range inv.Items {
		set.Stock = append(set.Stock, posting.StockDelta{
			ItemType: item.ItemType,
			ItemID:   item.ItemID,
			Change:   sign * item.Quantity,
		})
	}

	partyType, partyID := party(inv)
	remainder := inv.Total.Sub(inv.PaidAmount)
	set.Parties = append(set.Parties, posting.PartyDelta{
		PartyType: partyType,
		PartyID:   partyID,
		Change:    remainder.Mul(balanceSign(inv.Kind)),
	})

	if inv.PaidAmount.IsPositive() {
		set.Treasuries = append(set.Treasuries, posting.TreasuryDelta{
			TreasuryID: *inv.TreasuryID,
			Change:     inv.PaidAmount.Mul(cashSign(inv.Kind)),
		})
	}

	set.Ledger = postingLedger(inv, partyType, partyID)
	return set
}

// cumulativeSet is everything a posted invoice has applied so far,
// including payments registered after posting. Voiding applies its
// inverse.
func cumulativeSet(inv *database.Invoice, payments []database.InvoicePayment) posting.Set {
	set := posting.Set{}
	sign := stockSign(inv.Kind)
	for _, item := range inv.Items {
		set.Stock = append(set.Stock, posting.StockDelta{
			ItemType: item.ItemType,
			ItemID:   item.ItemID,
			Change:   sign * item.Quantity,
		})
	}

	partyType, partyID := party(inv)
	remainder := inv.Total.Sub(inv.PaidAmount)
	set.Parties = append(set.Parties, posting.PartyDelta{
		PartyType: partyType,
		PartyID:   partyID,
		Change:    remainder.Mul(balanceSign(inv.Kind)),
	})

	for _, p := range payments {
		set.Treasuries = append(set.Treasuries, posting.TreasuryDelta{
			TreasuryID: p.TreasuryID,
			Change:     p.Amount.Mul(cashSign(inv.Kind)),
		})
	}
	return set
}

// postingLedger writes the document total against the party and, when
// money moved, a settlement pair: the paid portion off the party and into
// the treasury. Customer balances read as debit minus credit, supplier
// balances as credit minus debit.
func postingLedger(inv *database.Invoice, partyType string, partyID uuid.UUID) []database.LedgerEntry {
	pid := partyID
	entries := []database.LedgerEntry{{
		EntryDate:   inv.Date,
		PartyType:   partyType,
		PartyID:     &pid,
		SourceType:  ledgerSource,
		SourceID:    inv.ID,
		Description: kindLabel(inv.Kind) + " " + inv.Number,
	}}

	amount := inv.Total.Mul(balanceSign(inv.Kind))
	if partyType == database.PartyCustomer {
		entries[0].Debit, entries[0].Credit = splitSigned(amount)
	} else {
		entries[0].Credit, entries[0].Debit = splitSigned(amount)
	}

	if inv.PaidAmount.IsPositive() {
		entries = append(entries, paymentLedger(inv, partyType, partyID, *inv.TreasuryID, inv.PaidAmount, inv.Date)...)
	}
	return entries
}

// paymentLedger is the two-entry settlement leg: one against the party,
// one against the treasury.
func paymentLedger(inv *database.Invoice, partyType string, partyID, treasuryID uuid.UUID, amount decimal.Decimal, date time.Time) []database.LedgerEntry {
	pid := partyID
	tid := treasuryID

	partyEntry := database.LedgerEntry{
		EntryDate:   date,
		PartyType:   partyType,
		PartyID:     &pid,
		SourceType:  ledgerSource,
		SourceID:    inv.ID,
		Description: "Payment on " + inv.Number,
	}
	partyAmount := amount.Mul(balanceSign(inv.Kind)).Neg()
	if partyType == database.PartyCustomer {
		partyEntry.Debit, partyEntry.Credit = splitSigned(partyAmount)
	} else {
		partyEntry.Credit, partyEntry.Debit = splitSigned(partyAmount)
	}

	treasuryEntry := database.LedgerEntry{
		EntryDate:   date,
		TreasuryID:  &tid,
		SourceType:  ledgerSource,
		SourceID:    inv.ID,
		Description: "Payment on " + inv.Number,
	}
	treasuryEntry.Debit, treasuryEntry.Credit = splitSigned(amount.Mul(cashSign(inv.Kind)))

	return []database.LedgerEntry{partyEntry, treasuryEntry}
}

// splitSigned maps a signed amount onto a (debit, credit) pair
func splitSigned(amount decimal.Decimal) (debit, credit decimal.Decimal) {
	if amount.IsNegative() {
		return decimal.Zero, amount.Neg()
	}
	return amount, decimal.Zero
}

func kindLabel(kind string) string {
	switch kind {
	case database.InvoiceSales:
		return "Sales invoice"
	case database.InvoicePurchase:
		return "Purchase invoice"
	case database.InvoiceSalesReturn:
		return "Sales return"
	case database.InvoicePurchaseReturn:
		return "Purchase return"
	}
	return "Invoice"
}
