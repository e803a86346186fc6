package invoice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
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

func setupRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", uuid.New().String())
		c.Next()
	})

	h := NewHandler(db)
	for path, kind := range map[string]string{
		"/sales-invoices":    database.InvoiceSales,
		"/purchase-invoices": database.InvoicePurchase,
		"/sales-returns":     database.InvoiceSalesReturn,
		"/purchase-returns":  database.InvoicePurchaseReturn,
	} {
		r.POST(path, h.Create(kind))
		r.DELETE(path+"/:id", h.Delete(kind))
		r.POST(path+"/:id/post", h.Post(kind))
		r.POST(path+"/:id/void", h.Void(kind))
		r.POST(path+"/:id/payments", h.RegisterPayment(kind))
	}
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type fixtures struct {
	customer database.Customer
	supplier database.Supplier
	treasury database.Treasury
	product  database.FinishedProduct
	raw      database.RawMaterial
}

func seed(t *testing.T, db *gorm.DB) fixtures {
	f := fixtures{
		customer: database.Customer{Name: "Nour Cosmetics"},
		supplier: database.Supplier{Name: "Delta Chemicals"},
		treasury: database.Treasury{Name: "Main Cash", Kind: "cash", IsActive: true},
		product:  database.FinishedProduct{Code: "FP-001", Name: "Face Cream 50ml", StockQty: 20, IsActive: true, SalePrice: decimal.NewFromInt(100)},
		raw:      database.RawMaterial{Code: "RM-001", Name: "Shea Butter", Unit: "kg", StockQty: 100},
	}
	require.NoError(t, db.Create(&f.customer).Error)
	require.NoError(t, db.Create(&f.supplier).Error)
	require.NoError(t, db.Create(&f.treasury).Error)
	require.NoError(t, db.Create(&f.product).Error)
	require.NoError(t, db.Create(&f.raw).Error)
	return f
}

func createSalesInvoice(t *testing.T, r *gin.Engine, f fixtures, paid float64) database.Invoice {
	w := doJSON(r, http.MethodPost, "/sales-invoices", gin.H{
		"customer_id": f.customer.ID,
		"treasury_id": f.treasury.ID,
		"paid_amount": paid,
		"items": []gin.H{{
			"item_type":  database.ItemFinishedProduct,
			"item_id":    f.product.ID,
			"quantity":   5.0,
			"unit_price": 100.0,
		}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data database.Invoice `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	return created.Data
}

func TestSalesInvoicePostVoidRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	f := seed(t, db)

	inv := createSalesInvoice(t, r, f, 300)
	assert.True(t, inv.Total.Equal(decimal.NewFromInt(500)), "got %s", inv.Total)

	// Drafts have no effect
	var gotProduct database.FinishedProduct
	require.NoError(t, db.First(&gotProduct, "id = ?", f.product.ID).Error)
	assert.Equal(t, 20.0, gotProduct.StockQty)

	w := doJSON(r, http.MethodPost, fmt.Sprintf("/sales-invoices/%s/post", inv.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, db.First(&gotProduct, "id = ?", f.product.ID).Error)
	assert.Equal(t, 15.0, gotProduct.StockQty)

	var gotCustomer database.Customer
	require.NoError(t, db.First(&gotCustomer, "id = ?", f.customer.ID).Error)
	assert.True(t, gotCustomer.Balance.Equal(decimal.NewFromInt(200)), "owed remainder, got %s", gotCustomer.Balance)

	var gotTreasury database.Treasury
	require.NoError(t, db.First(&gotTreasury, "id = ?", f.treasury.ID).Error)
	assert.True(t, gotTreasury.Balance.Equal(decimal.NewFromInt(300)), "got %s", gotTreasury.Balance)

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/sales-invoices/%s/void", inv.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, db.First(&gotProduct, "id = ?", f.product.ID).Error)
	assert.Equal(t, 20.0, gotProduct.StockQty)
	require.NoError(t, db.First(&gotCustomer, "id = ?", f.customer.ID).Error)
	assert.True(t, gotCustomer.Balance.IsZero(), "got %s", gotCustomer.Balance)
	require.NoError(t, db.First(&gotTreasury, "id = ?", f.treasury.ID).Error)
	assert.True(t, gotTreasury.Balance.IsZero(), "got %s", gotTreasury.Balance)

	// No orphaned ledger effect: everything nets to zero
	var entries []database.LedgerEntry
	require.NoError(t, db.Where("source_id = ?", inv.ID).Find(&entries).Error)
	assert.NotEmpty(t, entries)
	net := decimal.Zero
	for _, e := range entries {
		net = net.Add(e.Debit).Sub(e.Credit)
	}
	assert.True(t, net.IsZero(), "ledger net %s", net)
}

func TestVoidRequiresPostedState(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	f := seed(t, db)

	inv := createSalesInvoice(t, r, f, 0)

	// Draft cannot be voided
	w := doJSON(r, http.MethodPost, fmt.Sprintf("/sales-invoices/%s/void", inv.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/sales-invoices/%s/post", inv.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(r, http.MethodPost, fmt.Sprintf("/sales-invoices/%s/void", inv.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Double void is rejected
	w = doJSON(r, http.MethodPost, fmt.Sprintf("/sales-invoices/%s/void", inv.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDraftDeletionHasNoSideEffects(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	f := seed(t, db)

	inv := createSalesInvoice(t, r, f, 0)

	w := doJSON(r, http.MethodDelete, fmt.Sprintf("/sales-invoices/%s", inv.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var gotProduct database.FinishedProduct
	require.NoError(t, db.First(&gotProduct, "id = ?", f.product.ID).Error)
	assert.Equal(t, 20.0, gotProduct.StockQty)

	var ledgerCount int64
	db.Model(&database.LedgerEntry{}).Count(&ledgerCount)
	assert.Zero(t, ledgerCount)
}

func TestPostedInvoiceCannotBeDeleted(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	f := seed(t, db)

	inv := createSalesInvoice(t, r, f, 0)
	w := doJSON(r, http.MethodPost, fmt.Sprintf("/sales-invoices/%s/post", inv.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodDelete, fmt.Sprintf("/sales-invoices/%s", inv.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPostBlocksOnInsufficientStock(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	f := seed(t, db)

	w := doJSON(r, http.MethodPost, "/sales-invoices", gin.H{
		"customer_id": f.customer.ID,
		"items": []gin.H{{
			"item_type":  database.ItemFinishedProduct,
			"item_id":    f.product.ID,
			"quantity":   25.0, // only 20 on hand
			"unit_price": 100.0,
		}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data database.Invoice `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/sales-invoices/%s/post", created.Data.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	var gotInv database.Invoice
	require.NoError(t, db.First(&gotInv, "id = ?", created.Data.ID).Error)
	assert.Equal(t, database.StatusDraft, gotInv.Status)
}

func TestPurchaseInvoiceIncreasesStockAndPayable(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	f := seed(t, db)

	w := doJSON(r, http.MethodPost, "/purchase-invoices", gin.H{
		"supplier_id": f.supplier.ID,
		"items": []gin.H{{
			"item_type":  database.ItemRawMaterial,
			"item_id":    f.raw.ID,
			"quantity":   40.0,
			"unit_price": 50.0,
		}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data database.Invoice `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/purchase-invoices/%s/post", created.Data.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var gotRaw database.RawMaterial
	require.NoError(t, db.First(&gotRaw, "id = ?", f.raw.ID).Error)
	assert.Equal(t, 140.0, gotRaw.StockQty)

	var gotSupplier database.Supplier
	require.NoError(t, db.First(&gotSupplier, "id = ?", f.supplier.ID).Error)
	assert.True(t, gotSupplier.Balance.Equal(decimal.NewFromInt(2000)), "got %s", gotSupplier.Balance)
}

func TestSalesReturnRestocksAndCredits(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	f := seed(t, db)

	w := doJSON(r, http.MethodPost, "/sales-returns", gin.H{
		"customer_id": f.customer.ID,
		"items": []gin.H{{
			"item_type":  database.ItemFinishedProduct,
			"item_id":    f.product.ID,
			"quantity":   3.0,
			"unit_price": 100.0,
		}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data database.Invoice `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/sales-returns/%s/post", created.Data.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var gotProduct database.FinishedProduct
	require.NoError(t, db.First(&gotProduct, "id = ?", f.product.ID).Error)
	assert.Equal(t, 23.0, gotProduct.StockQty)

	var gotCustomer database.Customer
	require.NoError(t, db.First(&gotCustomer, "id = ?", f.customer.ID).Error)
	assert.True(t, gotCustomer.Balance.Equal(decimal.NewFromInt(-300)), "got %s", gotCustomer.Balance)
}

func TestRegisterPaymentAndVoidAfterwards(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	f := seed(t, db)

	inv := createSalesInvoice(t, r, f, 0)
	w := doJSON(r, http.MethodPost, fmt.Sprintf("/sales-invoices/%s/post", inv.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/sales-invoices/%s/payments", inv.ID), gin.H{
		"treasury_id": f.treasury.ID,
		"amount":      200.0,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var gotCustomer database.Customer
	require.NoError(t, db.First(&gotCustomer, "id = ?", f.customer.ID).Error)
	assert.True(t, gotCustomer.Balance.Equal(decimal.NewFromInt(300)), "got %s", gotCustomer.Balance)

	var gotTreasury database.Treasury
	require.NoError(t, db.First(&gotTreasury, "id = ?", f.treasury.ID).Error)
	assert.True(t, gotTreasury.Balance.Equal(decimal.NewFromInt(200)), "got %s", gotTreasury.Balance)

	// Overpaying the remainder is rejected
	w = doJSON(r, http.MethodPost, fmt.Sprintf("/sales-invoices/%s/payments", inv.ID), gin.H{
		"treasury_id": f.treasury.ID,
		"amount":      400.0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Voiding reverses the posting and the later payment
	w = doJSON(r, http.MethodPost, fmt.Sprintf("/sales-invoices/%s/void", inv.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, db.First(&gotCustomer, "id = ?", f.customer.ID).Error)
	assert.True(t, gotCustomer.Balance.IsZero(), "got %s", gotCustomer.Balance)
	require.NoError(t, db.First(&gotTreasury, "id = ?", f.treasury.ID).Error)
	assert.True(t, gotTreasury.Balance.IsZero(), "got %s", gotTreasury.Balance)

	var gotProduct database.FinishedProduct
	require.NoError(t, db.First(&gotProduct, "id = ?", f.product.ID).Error)
	assert.Equal(t, 20.0, gotProduct.StockQty)
}

func TestCustomerBalanceMatchesLedger(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	f := seed(t, db)

	inv := createSalesInvoice(t, r, f, 300)
	w := doJSON(r, http.MethodPost, fmt.Sprintf("/sales-invoices/%s/post", inv.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []database.LedgerEntry
	require.NoError(t, db.Where("party_type = ? AND party_id = ?", database.PartyCustomer, f.customer.ID).
		Find(&entries).Error)

	ledgerBalance := decimal.Zero
	for _, e := range entries {
		ledgerBalance = ledgerBalance.Add(e.Debit).Sub(e.Credit)
	}

	var gotCustomer database.Customer
	require.NoError(t, db.First(&gotCustomer, "id = ?", f.customer.ID).Error)
	assert.True(t, gotCustomer.Balance.Equal(ledgerBalance),
		"stored %s, ledger %s", gotCustomer.Balance, ledgerBalance)
}
