package treasury

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

func setupTest(t *testing.T) (*gorm.DB, *gin.Engine) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", uuid.New().String())
		c.Next()
	})

	h := NewHandler(db)
	r.POST("/treasuries/:id/deposit", h.Deposit)
	r.POST("/treasuries/:id/withdraw", h.Withdraw)
	r.POST("/treasuries/:id/transfer", h.Transfer)
	r.GET("/treasuries/:id/statement", h.Statement)
	return db, r
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

func TestDepositAndWithdraw(t *testing.T) {
	db, r := setupTest(t)
	cash := database.Treasury{Name: "Main Cash", Kind: "cash", IsActive: true}
	require.NoError(t, db.Create(&cash).Error)

	w := doJSON(r, http.MethodPost, fmt.Sprintf("/treasuries/%s/deposit", cash.ID), gin.H{"amount": 1000.0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/treasuries/%s/withdraw", cash.ID), gin.H{"amount": 400.0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got database.Treasury
	require.NoError(t, db.First(&got, "id = ?", cash.ID).Error)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(600)), "got %s", got.Balance)

	// Both movements are in the ledger
	var entries []database.LedgerEntry
	require.NoError(t, db.Where("treasury_id = ?", cash.ID).Find(&entries).Error)
	assert.Len(t, entries, 2)
}

func TestWithdrawRejectsOverdraft(t *testing.T) {
	db, r := setupTest(t)
	cash := database.Treasury{Name: "Main Cash", Kind: "cash", IsActive: true, Balance: decimal.NewFromInt(100)}
	require.NoError(t, db.Create(&cash).Error)

	w := doJSON(r, http.MethodPost, fmt.Sprintf("/treasuries/%s/withdraw", cash.ID), gin.H{"amount": 500.0})
	assert.Equal(t, http.StatusConflict, w.Code)

	var got database.Treasury
	require.NoError(t, db.First(&got, "id = ?", cash.ID).Error)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)))
}

func TestTransferMovesBetweenAccounts(t *testing.T) {
	db, r := setupTest(t)
	cash := database.Treasury{Name: "Main Cash", Kind: "cash", IsActive: true, Balance: decimal.NewFromInt(1000)}
	bank := database.Treasury{Name: "Bank", Kind: "bank", IsActive: true}
	require.NoError(t, db.Create(&cash).Error)
	require.NoError(t, db.Create(&bank).Error)

	w := doJSON(r, http.MethodPost, fmt.Sprintf("/treasuries/%s/transfer", cash.ID), gin.H{
		"to_treasury_id": bank.ID,
		"amount":         250.0,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var gotCash, gotBank database.Treasury
	require.NoError(t, db.First(&gotCash, "id = ?", cash.ID).Error)
	require.NoError(t, db.First(&gotBank, "id = ?", bank.ID).Error)
	assert.True(t, gotCash.Balance.Equal(decimal.NewFromInt(750)))
	assert.True(t, gotBank.Balance.Equal(decimal.NewFromInt(250)))

	// One credit out, one debit in, same source
	var entries []database.LedgerEntry
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0].SourceID, entries[1].SourceID)
}

func TestTransferToSelfRejected(t *testing.T) {
	db, r := setupTest(t)
	cash := database.Treasury{Name: "Main Cash", Kind: "cash", IsActive: true, Balance: decimal.NewFromInt(1000)}
	require.NoError(t, db.Create(&cash).Error)

	w := doJSON(r, http.MethodPost, fmt.Sprintf("/treasuries/%s/transfer", cash.ID), gin.H{
		"to_treasury_id": cash.ID,
		"amount":         100.0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
