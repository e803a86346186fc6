package posting

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yasminehelmy/cosmetra-backend/pkg/database"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedFixtures(t *testing.T, db *gorm.DB) (database.RawMaterial, database.Customer, database.Treasury) {
	raw := database.RawMaterial{Code: "RM-001", Name: "Shea Butter", Unit: "kg", StockQty: 100}
	require.NoError(t, db.Create(&raw).Error)

	customer := database.Customer{Name: "Nour Cosmetics"}
	require.NoError(t, db.Create(&customer).Error)

	treasury := database.Treasury{Name: "Main Cash", Kind: "cash", IsActive: true}
	require.NoError(t, db.Create(&treasury).Error)

	return raw, customer, treasury
}

func TestApplyWritesAllDeltas(t *testing.T) {
	db := setupTestDB(t)
	raw, customer, treasury := seedFixtures(t, db)

	sourceID := raw.ID
	set := Set{
		Stock: []StockDelta{{ItemType: database.ItemRawMaterial, ItemID: raw.ID, Change: -30}},
		Parties: []PartyDelta{{
			PartyType: database.PartyCustomer,
			PartyID:   customer.ID,
			Change:    decimal.NewFromInt(200),
		}},
		Treasuries: []TreasuryDelta{{
			TreasuryID: treasury.ID,
			Change:     decimal.NewFromInt(300),
		}},
		Ledger: []database.LedgerEntry{{
			PartyType:  database.PartyCustomer,
			PartyID:    &customer.ID,
			Debit:      decimal.NewFromInt(200),
			SourceType: "invoice",
			SourceID:   sourceID,
		}},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return Apply(tx, set, false)
	})
	require.NoError(t, err)

	var gotRaw database.RawMaterial
	require.NoError(t, db.First(&gotRaw, "id = ?", raw.ID).Error)
	assert.Equal(t, 70.0, gotRaw.StockQty)

	var gotCustomer database.Customer
	require.NoError(t, db.First(&gotCustomer, "id = ?", customer.ID).Error)
	assert.True(t, gotCustomer.Balance.Equal(decimal.NewFromInt(200)))

	var gotTreasury database.Treasury
	require.NoError(t, db.First(&gotTreasury, "id = ?", treasury.ID).Error)
	assert.True(t, gotTreasury.Balance.Equal(decimal.NewFromInt(300)))

	var entryCount int64
	db.Model(&database.LedgerEntry{}).Count(&entryCount)
	assert.Equal(t, int64(1), entryCount)
}

func TestApplyBlocksNegativeStock(t *testing.T) {
	db := setupTestDB(t)
	raw, _, _ := seedFixtures(t, db)

	set := Set{
		Stock: []StockDelta{{ItemType: database.ItemRawMaterial, ItemID: raw.ID, Change: -150}},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return Apply(tx, set, false)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientStock))

	// The whole transaction must roll back
	var gotRaw database.RawMaterial
	require.NoError(t, db.First(&gotRaw, "id = ?", raw.ID).Error)
	assert.Equal(t, 100.0, gotRaw.StockQty)
}

func TestApplyAllowsNegativeStockWhenPermitted(t *testing.T) {
	db := setupTestDB(t)
	raw, _, _ := seedFixtures(t, db)

	set := Set{
		Stock: []StockDelta{{ItemType: database.ItemRawMaterial, ItemID: raw.ID, Change: -150}},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return Apply(tx, set, true)
	})
	require.NoError(t, err)

	var gotRaw database.RawMaterial
	require.NoError(t, db.First(&gotRaw, "id = ?", raw.ID).Error)
	assert.Equal(t, -50.0, gotRaw.StockQty)
}

func TestApplyInverseRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	raw, customer, treasury := seedFixtures(t, db)

	set := Set{
		Stock: []StockDelta{{ItemType: database.ItemRawMaterial, ItemID: raw.ID, Change: -25}},
		Parties: []PartyDelta{{
			PartyType: database.PartyCustomer,
			PartyID:   customer.ID,
			Change:    decimal.NewFromInt(500),
		}},
		Treasuries: []TreasuryDelta{{
			TreasuryID: treasury.ID,
			Change:     decimal.NewFromInt(120),
		}},
	}

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return Apply(tx, set, false)
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return Apply(tx, set.Inverse(), false)
	}))

	var gotRaw database.RawMaterial
	require.NoError(t, db.First(&gotRaw, "id = ?", raw.ID).Error)
	assert.Equal(t, 100.0, gotRaw.StockQty)

	var gotCustomer database.Customer
	require.NoError(t, db.First(&gotCustomer, "id = ?", customer.ID).Error)
	assert.True(t, gotCustomer.Balance.IsZero())

	var gotTreasury database.Treasury
	require.NoError(t, db.First(&gotTreasury, "id = ?", treasury.ID).Error)
	assert.True(t, gotTreasury.Balance.IsZero())
}

func TestReverseLedgerNetsToZero(t *testing.T) {
	db := setupTestDB(t)
	raw, customer, _ := seedFixtures(t, db)
	sourceID := raw.ID

	set := Set{
		Ledger: []database.LedgerEntry{
			{
				PartyType:  database.PartyCustomer,
				PartyID:    &customer.ID,
				Debit:      decimal.NewFromInt(500),
				SourceType: "invoice",
				SourceID:   sourceID,
			},
			{
				PartyType:  database.PartyCustomer,
				PartyID:    &customer.ID,
				Credit:     decimal.NewFromInt(300),
				SourceType: "invoice",
				SourceID:   sourceID,
			},
		},
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return Apply(tx, set, false)
	}))

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return ReverseLedger(tx, "invoice", sourceID)
	}))

	var entries []database.LedgerEntry
	require.NoError(t, db.Where("source_id = ?", sourceID).Find(&entries).Error)
	assert.Len(t, entries, 4)

	net := decimal.Zero
	for _, e := range entries {
		net = net.Add(e.Debit).Sub(e.Credit)
	}
	assert.True(t, net.IsZero(), "ledger must net to zero after reversal, got %s", net)

	// Originals are flagged, reversals point back at them
	var reversed, reversals int64
	db.Model(&database.LedgerEntry{}).Where("reversed = ?", true).Count(&reversed)
	db.Model(&database.LedgerEntry{}).Where("reversal_of_id IS NOT NULL").Count(&reversals)
	assert.Equal(t, int64(2), reversed)
	assert.Equal(t, int64(2), reversals)
}

func TestReverseLedgerIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	raw, customer, _ := seedFixtures(t, db)
	sourceID := raw.ID

	set := Set{
		Ledger: []database.LedgerEntry{{
			PartyType:  database.PartyCustomer,
			PartyID:    &customer.ID,
			Debit:      decimal.NewFromInt(100),
			SourceType: "invoice",
			SourceID:   sourceID,
		}},
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return Apply(tx, set, false)
	}))

	for i := 0; i < 2; i++ {
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return ReverseLedger(tx, "invoice", sourceID)
		}))
	}

	// A second pass finds nothing live to reverse
	var count int64
	db.Model(&database.LedgerEntry{}).Where("source_id = ?", sourceID).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestApplyUnknownItemTypeFails(t *testing.T) {
	db := setupTestDB(t)
	raw, _, _ := seedFixtures(t, db)

	set := Set{
		Stock: []StockDelta{{ItemType: "gift_card", ItemID: raw.ID, Change: -1}},
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return Apply(tx, set, false)
	})
	require.Error(t, err)
}
