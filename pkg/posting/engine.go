// Package posting applies and reverses the inventory and financial effects
// of document transitions. Every document type (production order, packaging
// order, sales/purchase invoice, return, treasury movement) describes its
// effect as a Set of deltas; completing or posting applies the set, and
// cancelling or voiding applies its inverse. All callers run inside a single
// database transaction so a failed transition leaves no partial state.
package posting

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yasminehelmy/cosmetra-backend/pkg/database"
)

// ErrInsufficientStock is wrapped by Apply when a consumption delta would
// drive an item below zero and negative stock is not allowed.
var ErrInsufficientStock = errors.New("insufficient stock")

// StockDelta changes one inventory item's on-hand quantity.
// Negative consumes, positive produces.
type StockDelta struct {
	ItemType string
	ItemID   uuid.UUID
	Change   float64
}

// PartyDelta changes a customer or supplier running balance
type PartyDelta struct {
	PartyType string
	PartyID   uuid.UUID
	Change    decimal.Decimal
}

// TreasuryDelta changes a cash/bank account balance
type TreasuryDelta struct {
	TreasuryID uuid.UUID
	Change     decimal.Decimal
}

// Set is the full effect of one document transition
type Set struct {
	Stock      []StockDelta
	Parties    []PartyDelta
	Treasuries []TreasuryDelta
	Ledger     []database.LedgerEntry
}

// Inverse returns a sign-swapped copy of the set. Ledger entries are not
// carried over; reversal entries are written by ReverseLedger so the
// originals stay linked.
func (s Set) Inverse() Set {
	inv := Set{
		Stock:      make([]StockDelta, len(s.Stock)),
		Parties:    make([]PartyDelta, len(s.Parties)),
		Treasuries: make([]TreasuryDelta, len(s.Treasuries)),
	}
	for i, d := range s.Stock {
		d.Change = -d.Change
		inv.Stock[i] = d
	}
	for i, d := range s.Parties {
		d.Change = d.Change.Neg()
		inv.Parties[i] = d
	}
	for i, d := range s.Treasuries {
		d.Change = d.Change.Neg()
		inv.Treasuries[i] = d
	}
	return inv
}

// Apply writes every delta in the set. When allowNegative is false, any
// stock delta that would leave a negative quantity fails the whole set.
// Must be called inside a transaction.
func Apply(tx *gorm.DB, set Set, allowNegative bool) error {
	for _, d := range set.Stock {
		if err := applyStock(tx, d, allowNegative); err != nil {
			return err
		}
	}
	for _, d := range set.Parties {
		if err := applyParty(tx, d); err != nil {
			return err
		}
	}
	for _, d := range set.Treasuries {
		if err := applyTreasury(tx, d); err != nil {
			return err
		}
	}
	for i := range set.Ledger {
		if err := tx.Create(&set.Ledger[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// ReverseLedger negates every live ledger entry of the given source
// document: a mirror entry (debit and credit swapped) is inserted pointing
// back at the original, and the original is marked reversed. Entries are
// never deleted, so the net effect of a posted+voided pair is zero.
func ReverseLedger(tx *gorm.DB, sourceType string, sourceID uuid.UUID) error {
	var entries []database.LedgerEntry
	if err := tx.Where("source_type = ? AND source_id = ? AND reversed = ? AND reversal_of_id IS NULL",
		sourceType, sourceID, false).
		Find(&entries).Error; err != nil {
		return err
	}

	now := time.Now()
	for _, e := range entries {
		origID := e.ID
		reversal := database.LedgerEntry{
			EntryDate:    now,
			PartyType:    e.PartyType,
			PartyID:      e.PartyID,
			TreasuryID:   e.TreasuryID,
			Debit:        e.Credit,
			Credit:       e.Debit,
			SourceType:   e.SourceType,
			SourceID:     e.SourceID,
			Description:  "Reversal: " + e.Description,
			ReversalOfID: &origID,
		}
		if err := tx.Create(&reversal).Error; err != nil {
			return err
		}
		if err := tx.Model(&database.LedgerEntry{}).
			Where("id = ?", origID).
			Update("reversed", true).Error; err != nil {
			return err
		}
	}
	return nil
}

func applyStock(tx *gorm.DB, d StockDelta, allowNegative bool) error {
	switch d.ItemType {
	case database.ItemRawMaterial:
		var m database.RawMaterial
		if err := tx.First(&m, "id = ?", d.ItemID).Error; err != nil {
			return fmt.Errorf("raw material %s: %w", d.ItemID, err)
		}
		newQty := m.StockQty + d.Change
		if newQty < 0 && !allowNegative {
			return fmt.Errorf("%w: %s has %v, needs %v", ErrInsufficientStock, m.Name, m.StockQty, -d.Change)
		}
		return tx.Model(&m).Update("stock_qty", newQty).Error
	case database.ItemPackagingMaterial:
		var m database.PackagingMaterial
		if err := tx.First(&m, "id = ?", d.ItemID).Error; err != nil {
			return fmt.Errorf("packaging material %s: %w", d.ItemID, err)
		}
		newQty := m.StockQty + d.Change
		if newQty < 0 && !allowNegative {
			return fmt.Errorf("%w: %s has %v, needs %v", ErrInsufficientStock, m.Name, m.StockQty, -d.Change)
		}
		return tx.Model(&m).Update("stock_qty", newQty).Error
	case database.ItemSemiFinished:
		var m database.SemiFinished
		if err := tx.First(&m, "id = ?", d.ItemID).Error; err != nil {
			return fmt.Errorf("semi-finished %s: %w", d.ItemID, err)
		}
		newQty := m.StockQty + d.Change
		if newQty < 0 && !allowNegative {
			return fmt.Errorf("%w: %s has %v, needs %v", ErrInsufficientStock, m.Name, m.StockQty, -d.Change)
		}
		return tx.Model(&m).Update("stock_qty", newQty).Error
	case database.ItemFinishedProduct:
		var m database.FinishedProduct
		if err := tx.First(&m, "id = ?", d.ItemID).Error; err != nil {
			return fmt.Errorf("finished product %s: %w", d.ItemID, err)
		}
		newQty := m.StockQty + d.Change
		if newQty < 0 && !allowNegative {
			return fmt.Errorf("%w: %s has %v, needs %v", ErrInsufficientStock, m.Name, m.StockQty, -d.Change)
		}
		return tx.Model(&m).Update("stock_qty", newQty).Error
	}
	return fmt.Errorf("unknown stock item type %q", d.ItemType)
}

func applyParty(tx *gorm.DB, d PartyDelta) error {
	switch d.PartyType {
	case database.PartyCustomer:
		var c database.Customer
		if err := tx.First(&c, "id = ?", d.PartyID).Error; err != nil {
			return fmt.Errorf("customer %s: %w", d.PartyID, err)
		}
		return tx.Model(&c).Update("balance", c.Balance.Add(d.Change)).Error
	case database.PartySupplier:
		var s database.Supplier
		if err := tx.First(&s, "id = ?", d.PartyID).Error; err != nil {
			return fmt.Errorf("supplier %s: %w", d.PartyID, err)
		}
		return tx.Model(&s).Update("balance", s.Balance.Add(d.Change)).Error
	}
	return fmt.Errorf("unknown party type %q", d.PartyType)
}

func applyTreasury(tx *gorm.DB, d TreasuryDelta) error {
	var t database.Treasury
	if err := tx.First(&t, "id = ?", d.TreasuryID).Error; err != nil {
		return fmt.Errorf("treasury %s: %w", d.TreasuryID, err)
	}
	return tx.Model(&t).Update("balance", t.Balance.Add(d.Change)).Error
}
