package order

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
	r.POST("/production-orders", h.CreateProduction)
	r.POST("/production-orders/:id/complete", h.CompleteProduction)
	r.POST("/production-orders/:id/cancel", h.CancelProduction)
	r.POST("/production-orders/:id/start", h.StartProduction)
	r.DELETE("/production-orders/:id", h.DeleteProduction)
	r.POST("/packaging-orders", h.CreatePackaging)
	r.POST("/packaging-orders/:id/complete", h.CompletePackaging)
	r.POST("/packaging-orders/:id/cancel", h.CancelPackaging)
	r.POST("/packaging-orders/:id/start", h.StartPackaging)
	r.DELETE("/packaging-orders/:id", h.DeletePackaging)
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

func seedProduction(t *testing.T, db *gorm.DB) (database.RawMaterial, database.SemiFinished) {
	raw := database.RawMaterial{Code: "RM-001", Name: "Shea Butter", Unit: "kg", StockQty: 100, UnitCost: decimal.NewFromInt(50)}
	require.NoError(t, db.Create(&raw).Error)

	sf := database.SemiFinished{Code: "SF-001", Name: "Body Butter Base", Unit: "kg", BatchSize: 10}
	require.NoError(t, db.Create(&sf).Error)
	require.NoError(t, db.Create(&database.RecipeItem{
		SemiFinishedID: sf.ID,
		RawMaterialID:  raw.ID,
		Quantity:       4, // per 10 kg batch
	}).Error)

	return raw, sf
}

func TestProductionCompleteCancelRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	raw, sf := seedProduction(t, db)

	w := doJSON(r, http.MethodPost, "/production-orders", gin.H{
		"semi_finished_id": sf.ID,
		"quantity":         20.0,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data database.ProductionOrder `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	orderID := created.Data.ID

	// Creation alone moves nothing
	var gotRaw database.RawMaterial
	require.NoError(t, db.First(&gotRaw, "id = ?", raw.ID).Error)
	assert.Equal(t, 100.0, gotRaw.StockQty)

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/production-orders/%s/complete", orderID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 20 kg output at 4 kg raw per 10 kg batch consumes 8 kg
	require.NoError(t, db.First(&gotRaw, "id = ?", raw.ID).Error)
	assert.Equal(t, 92.0, gotRaw.StockQty)

	var gotSF database.SemiFinished
	require.NoError(t, db.First(&gotSF, "id = ?", sf.ID).Error)
	assert.Equal(t, 20.0, gotSF.StockQty)
	// 8 kg * 50 = 400 over 20 units
	assert.True(t, gotSF.UnitCost.Equal(decimal.NewFromInt(20)), "got %s", gotSF.UnitCost)

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/production-orders/%s/cancel", orderID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, db.First(&gotRaw, "id = ?", raw.ID).Error)
	assert.Equal(t, 100.0, gotRaw.StockQty)
	require.NoError(t, db.First(&gotSF, "id = ?", sf.ID).Error)
	assert.Equal(t, 0.0, gotSF.StockQty)
}

func TestProductionCompleteBlocksOnShortage(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	raw, sf := seedProduction(t, db)

	// Needs 400 kg of raw, only 100 available
	w := doJSON(r, http.MethodPost, "/production-orders", gin.H{
		"semi_finished_id": sf.ID,
		"quantity":         1000.0,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Data database.ProductionOrder `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/production-orders/%s/complete", created.Data.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	// Nothing moved
	var gotRaw database.RawMaterial
	require.NoError(t, db.First(&gotRaw, "id = ?", raw.ID).Error)
	assert.Equal(t, 100.0, gotRaw.StockQty)

	var gotOrder database.ProductionOrder
	require.NoError(t, db.First(&gotOrder, "id = ?", created.Data.ID).Error)
	assert.Equal(t, database.StatusPending, gotOrder.Status)
}

func TestProductionCompleteAllowedWithNegativeStockPolicy(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	raw, sf := seedProduction(t, db)

	settings, err := database.GetSettings(db)
	require.NoError(t, err)
	settings.AllowNegativeStock = true
	require.NoError(t, db.Save(settings).Error)

	w := doJSON(r, http.MethodPost, "/production-orders", gin.H{
		"semi_finished_id": sf.ID,
		"quantity":         1000.0,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data database.ProductionOrder `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/production-orders/%s/complete", created.Data.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var gotRaw database.RawMaterial
	require.NoError(t, db.First(&gotRaw, "id = ?", raw.ID).Error)
	assert.Equal(t, -300.0, gotRaw.StockQty)
}

func TestCompletedProductionOrderCannotBeDeleted(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	_, sf := seedProduction(t, db)

	w := doJSON(r, http.MethodPost, "/production-orders", gin.H{
		"semi_finished_id": sf.ID,
		"quantity":         10.0,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data database.ProductionOrder `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	orderID := created.Data.ID

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/production-orders/%s/complete", orderID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodDelete, fmt.Sprintf("/production-orders/%s", orderID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStartedProductionOrderCanBeDeleted(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	raw, sf := seedProduction(t, db)

	w := doJSON(r, http.MethodPost, "/production-orders", gin.H{
		"semi_finished_id": sf.ID,
		"quantity":         10.0,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data database.ProductionOrder `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	orderID := created.Data.ID

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/production-orders/%s/start", orderID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Starting moves no stock, so the order must still be deletable.
	w = doJSON(r, http.MethodDelete, fmt.Sprintf("/production-orders/%s", orderID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var orderCount, itemCount int64
	db.Model(&database.ProductionOrder{}).Where("id = ?", orderID).Count(&orderCount)
	db.Model(&database.ProductionOrderItem{}).Where("order_id = ?", orderID).Count(&itemCount)
	assert.Zero(t, orderCount)
	assert.Zero(t, itemCount)

	var rawAfter database.RawMaterial
	require.NoError(t, db.First(&rawAfter, "id = ?", raw.ID).Error)
	assert.Equal(t, raw.StockQty, rawAfter.StockQty)
}

func TestStartedPackagingOrderCanBeDeleted(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	sf, box, fp := seedPackaging(t, db)

	w := doJSON(r, http.MethodPost, "/packaging-orders", gin.H{
		"finished_product_id": fp.ID,
		"quantity":            10.0,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data database.PackagingOrder `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	orderID := created.Data.ID

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/packaging-orders/%s/start", orderID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodDelete, fmt.Sprintf("/packaging-orders/%s", orderID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var itemCount int64
	db.Model(&database.PackagingOrderItem{}).Where("order_id = ?", orderID).Count(&itemCount)
	assert.Zero(t, itemCount)

	var sfAfter database.SemiFinished
	var boxAfter database.PackagingMaterial
	require.NoError(t, db.First(&sfAfter, "id = ?", sf.ID).Error)
	require.NoError(t, db.First(&boxAfter, "id = ?", box.ID).Error)
	assert.Equal(t, sf.StockQty, sfAfter.StockQty)
	assert.Equal(t, box.StockQty, boxAfter.StockQty)
}

func seedPackaging(t *testing.T, db *gorm.DB) (database.SemiFinished, database.PackagingMaterial, database.FinishedProduct) {
	sf := database.SemiFinished{Code: "SF-001", Name: "Face Cream Base", Unit: "kg", BatchSize: 10, StockQty: 100, UnitCost: decimal.NewFromInt(30)}
	require.NoError(t, db.Create(&sf).Error)

	box := database.PackagingMaterial{Code: "PM-001", Name: "Cream Box", Unit: "pcs", StockQty: 50, UnitCost: decimal.NewFromInt(2)}
	require.NoError(t, db.Create(&box).Error)

	sfID := sf.ID
	fp := database.FinishedProduct{
		Code:           "FP-001",
		Name:           "Face Cream 50ml",
		SemiFinishedID: &sfID,
		BaseQtyPerUnit: 2,
		IsActive:       true,
	}
	require.NoError(t, db.Create(&fp).Error)
	require.NoError(t, db.Create(&database.PackageComponent{
		FinishedProductID:   fp.ID,
		PackagingMaterialID: box.ID,
		QtyPerUnit:          1,
	}).Error)

	return sf, box, fp
}

func TestPackagingEndToEnd(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	sf, box, fp := seedPackaging(t, db)

	w := doJSON(r, http.MethodPost, "/packaging-orders", gin.H{
		"finished_product_id": fp.ID,
		"quantity":            40.0,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data         database.PackagingOrder `json:"data"`
		Covered      bool                    `json:"covered"`
		Requirements []struct {
			Required  float64 `json:"required"`
			Available float64 `json:"available"`
			Shortage  float64 `json:"shortage"`
		} `json:"requirements"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	assert.True(t, created.Covered)
	require.Len(t, created.Requirements, 2)
	assert.Equal(t, 80.0, created.Requirements[0].Required)
	assert.Zero(t, created.Requirements[0].Shortage)
	assert.Equal(t, 40.0, created.Requirements[1].Required)
	assert.Zero(t, created.Requirements[1].Shortage)

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/packaging-orders/%s/complete", created.Data.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var gotSF database.SemiFinished
	require.NoError(t, db.First(&gotSF, "id = ?", sf.ID).Error)
	assert.Equal(t, 20.0, gotSF.StockQty)

	var gotBox database.PackagingMaterial
	require.NoError(t, db.First(&gotBox, "id = ?", box.ID).Error)
	assert.Equal(t, 10.0, gotBox.StockQty)

	var gotFP database.FinishedProduct
	require.NoError(t, db.First(&gotFP, "id = ?", fp.ID).Error)
	assert.Equal(t, 40.0, gotFP.StockQty)
	// 80 kg * 30 + 40 boxes * 2 = 2480 over 40 units
	assert.True(t, gotFP.UnitCost.Equal(decimal.NewFromInt(62)), "got %s", gotFP.UnitCost)
}

func TestPackagingCancelRestoresStock(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	sf, box, fp := seedPackaging(t, db)

	w := doJSON(r, http.MethodPost, "/packaging-orders", gin.H{
		"finished_product_id": fp.ID,
		"quantity":            10.0,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data database.PackagingOrder `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(r, http.MethodPost, fmt.Sprintf("/packaging-orders/%s/complete", created.Data.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(r, http.MethodPost, fmt.Sprintf("/packaging-orders/%s/cancel", created.Data.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var gotSF database.SemiFinished
	require.NoError(t, db.First(&gotSF, "id = ?", sf.ID).Error)
	assert.Equal(t, 100.0, gotSF.StockQty)

	var gotBox database.PackagingMaterial
	require.NoError(t, db.First(&gotBox, "id = ?", box.ID).Error)
	assert.Equal(t, 50.0, gotBox.StockQty)

	var gotFP database.FinishedProduct
	require.NoError(t, db.First(&gotFP, "id = ?", fp.ID).Error)
	assert.Equal(t, 0.0, gotFP.StockQty)
}

func TestPackagingCreateWarnsButDoesNotBlock(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)
	_, _, fp := seedPackaging(t, db)

	// 200 units need 400 kg base against 100 on hand: advisory only
	w := doJSON(r, http.MethodPost, "/packaging-orders", gin.H{
		"finished_product_id": fp.ID,
		"quantity":            200.0,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Covered bool `json:"covered"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.False(t, created.Covered)
}
